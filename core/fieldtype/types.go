package fieldtype

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/artpar/modelkit/core/schema"
	"github.com/google/uuid"
)

// IDGenerator produces identifiers for the uuid type's default.
type IDGenerator interface {
	New() string
}

// String is the default type: values are converted to their text form.
var String = Mixin{
	Default: "",
	Parse:   parseString,
}

// Int holds integers. Integral floats and numeric strings are accepted.
var Int = Mixin{
	Default: 0,
	Parse:   parseInt,
}

// Float holds float64 values.
var Float = Mixin{
	Default: 0.0,
	Parse:   parseFloat,
}

// Bool holds booleans. Strings go through strconv.ParseBool; numbers are
// true when non-zero.
var Bool = Mixin{
	Default: false,
	Parse:   parseBool,
}

// ID holds an identifier of any scalar type. It defaults to nil and compares
// loosely, so 1 and "1" are the same id.
var ID = Mixin{
	Parse: parseID,
	Equal: looseEqual,
}

// UUID returns a mixin whose default is a fresh identifier from ids. A nil
// generator uses random v4 UUIDs.
func UUID(ids IDGenerator) Mixin {
	return Mixin{
		Default: func() any {
			if ids == nil {
				return uuid.NewString()
			}
			return ids.New()
		},
		Parse: parseUUID,
	}
}

// Standard returns a registry with every built-in type: string, int, float,
// bool, id and uuid.
func Standard(ids IDGenerator) *Registry {
	r := NewRegistry()
	r.MustRegister(schema.FieldTypeInt, Int)
	r.MustRegister(schema.FieldTypeFloat, Float)
	r.MustRegister(schema.FieldTypeBool, Bool)
	r.MustRegister(schema.FieldTypeID, ID)
	r.MustRegister(schema.FieldTypeUUID, UUID(ids))
	return r
}

func parseString(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case []byte:
		return string(v), nil
	default:
		return fmt.Sprint(v), nil
	}
}

func parseInt(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return intFromInt64(v)
	case uint:
		return intFromUint64(uint64(v))
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return intFromUint64(uint64(v))
	case uint64:
		return intFromUint64(v)
	case float32:
		return intFromFloat(float64(v))
	case float64:
		return intFromFloat(v)
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", v, err)
		}
		return intFromInt64(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("parse int %q: %w", v, err)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to int", raw)
	}
}

func intFromInt64(n int64) (any, error) {
	if int64(int(n)) != n {
		return nil, fmt.Errorf("%d overflows int", n)
	}
	return int(n), nil
}

func intFromUint64(n uint64) (any, error) {
	if n > math.MaxInt {
		return nil, fmt.Errorf("%d overflows int", n)
	}
	return int(n), nil
}

func intFromFloat(f float64) (any, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%v is not an integer", f)
	}
	if f >= float64(math.MaxInt) || f < float64(math.MinInt) {
		return nil, fmt.Errorf("%v overflows int", f)
	}
	return int(f), nil
}

func parseFloat(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return 0.0, nil
	case int:
		return float64(v), nil
	case int8:
		return float64(v), nil
	case int16:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint8:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", v, err)
		}
		return f, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("parse float %q: %w", v, err)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("cannot convert %T to float", raw)
	}
}

func parseBool(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("parse bool %q: %w", v, err)
		}
		return b, nil
	default:
		f, err := parseFloat(raw)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %T to bool", raw)
		}
		return f.(float64) != 0, nil
	}
}

func parseID(raw any) (any, error) {
	switch v := raw.(type) {
	case nil, string, int, int32, int64, uint, uint32, uint64:
		return v, nil
	case float64:
		// JSON numbers arrive as float64.
		if n, err := intFromFloat(v); err == nil {
			return n, nil
		}
		return nil, fmt.Errorf("id %v is not an integer", v)
	default:
		return nil, fmt.Errorf("cannot use %T as id", raw)
	}
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func parseUUID(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return "", nil
	case uuid.UUID:
		return v.String(), nil
	case string:
		if v == "" {
			return "", nil
		}
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("parse uuid %q: %w", v, err)
		}
		return id.String(), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to uuid", raw)
	}
}
