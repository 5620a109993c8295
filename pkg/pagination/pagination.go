// Package pagination holds the page/limit arithmetic shared by list
// endpoints.
package pagination

import "strings"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps (Page-1)*PageSize well inside int range.
	MaxPage = 1_000_000
)

// Query is a normalized list request. Page is 1-based.
type Query struct {
	Search   string
	Page     int
	PageSize int
}

// Normalize trims the search term and clamps page and page size into range.
func (q Query) Normalize() Query {
	q.Search = strings.TrimSpace(q.Search)
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

func (q Query) Offset() int {
	q = q.Normalize()
	return (q.Page - 1) * q.PageSize
}

func (q Query) Limit() int {
	return q.Normalize().PageSize
}

type Page[T any] struct {
	Items       []T
	TotalCount  int64
	Page        int
	PageSize    int
	TotalPages  int
	HasNextPage bool
	HasPrevPage bool
}

func New[T any](items []T, total int64, query Query) Page[T] {
	query = query.Normalize()
	if items == nil {
		items = []T{}
	}

	totalPages := int((total + int64(query.PageSize) - 1) / int64(query.PageSize))

	return Page[T]{
		Items:       items,
		TotalCount:  total,
		Page:        query.Page,
		PageSize:    query.PageSize,
		TotalPages:  totalPages,
		HasNextPage: query.Page < totalPages,
		HasPrevPage: query.Page > 1,
	}
}

// Map converts the items of a page while keeping its metadata.
func Map[T, R any](page Page[T], fn func(T) R) Page[R] {
	items := make([]R, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, fn(item))
	}
	return Page[R]{
		Items:       items,
		TotalCount:  page.TotalCount,
		Page:        page.Page,
		PageSize:    page.PageSize,
		TotalPages:  page.TotalPages,
		HasNextPage: page.HasNextPage,
		HasPrevPage: page.HasPrevPage,
	}
}
