package jsonapi

import (
	"fmt"
	"strconv"
)

// NewError creates an error object.
func NewError(status int, code, title, detail string) Error {
	return Error{
		Status: strconv.Itoa(status),
		Code:   code,
		Title:  title,
		Detail: detail,
	}
}

// StatusCode returns the HTTP status code as an int.
func (e Error) StatusCode() int {
	code, _ := strconv.Atoi(e.Status)
	return code
}

// ErrBadRequest creates a 400 Bad Request error.
func ErrBadRequest(detail string) Error {
	return NewError(400, "bad_request", "Bad Request", detail)
}

// ErrNotFound creates a 404 Not Found error.
func ErrNotFound(kind, id string) Error {
	return NewError(404, "not_found", "Not Found", fmt.Sprintf("%s %q was not found", kind, id))
}

// ErrInvalidField creates a 422 error pointing at one attribute.
func ErrInvalidField(field, detail string) Error {
	e := NewError(422, "invalid_field", "Invalid Field", detail)
	e.Source = &ErrorSource{Pointer: "/data/attributes/" + field}
	return e
}

// ErrValidation creates one 422 error per invalid field, in the given order.
func ErrValidation(fields []string) []Error {
	errs := make([]Error, len(fields))
	for i, f := range fields {
		errs[i] = ErrInvalidField(f, fmt.Sprintf("%s is invalid", f))
	}
	return errs
}

// ErrInternal creates a 500 Internal Server Error.
func ErrInternal(detail string) Error {
	if detail == "" {
		detail = "An internal error occurred"
	}
	return NewError(500, "internal_error", "Internal Server Error", detail)
}
