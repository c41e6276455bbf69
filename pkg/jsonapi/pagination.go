package jsonapi

import (
	"net/url"
	"strconv"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page describes an offset window over a collection.
type Page struct {
	Number  int // 1-based
	Size    int
	Total   int
	BaseURL string
}

// ParsePage reads page[number] and page[size] from query. Missing or invalid
// values fall back to page 1 and the default size; the size is capped.
func ParsePage(query url.Values) Page {
	p := Page{Number: 1, Size: defaultPageSize}

	if n, err := strconv.Atoi(query.Get("page[number]")); err == nil && n > 0 {
		p.Number = n
	}
	if n, err := strconv.Atoi(query.Get("page[size]")); err == nil && n > 0 {
		p.Size = n
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

// Offset returns the number of items before the page.
func (p *Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// HasNext reports whether items remain after the page.
func (p *Page) HasNext() bool {
	return p.Offset()+p.Size < p.Total
}

// Meta returns the pagination metadata.
func (p *Page) Meta() Meta {
	return Meta{"total": p.Total, "page": p.Number, "per_page": p.Size}
}

// Links returns navigation links, or nil without a base URL.
func (p *Page) Links() *Links {
	if p.BaseURL == "" {
		return nil
	}

	links := &Links{Self: p.url(p.Number), First: p.url(1)}
	if p.Number > 1 {
		links.Prev = p.url(p.Number - 1)
	}
	if p.HasNext() {
		links.Next = p.url(p.Number + 1)
	}
	return links
}

func (p *Page) url(number int) string {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return p.BaseURL
	}

	q := u.Query()
	q.Set("page[number]", strconv.Itoa(number))
	q.Set("page[size]", strconv.Itoa(p.Size))
	u.RawQuery = q.Encode()
	return u.String()
}
