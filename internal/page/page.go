// Package page slices result sets into numbered pages.
package page

import (
	"context"
	"fmt"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

// Source counts and fetches the rows of a query.
type Source[T any] struct {
	Count func(ctx context.Context) (int64, error)
	Fetch func(ctx context.Context, offset, limit int) ([]T, error)
}

// Enricher fills derived fields on a fetched item.
type Enricher[T any] func(ctx context.Context, item *T) error

// Page is one page of results with navigation metadata.
type Page[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	Size    int   `json:"size"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"has_next"`
	HasPrev bool  `json:"has_prev"`
}

// Clamp bounds page to at least 1 and size to [1, MaxSize].
func Clamp(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 1
	}
	if size > MaxSize {
		size = MaxSize
	}
	return page, size
}

// Pages returns the page count for total rows, never less than 1.
func Pages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 1
	}
	return int((total + int64(size) - 1) / int64(size))
}

// Paginate counts src, fetches the requested page and runs enrich on each
// fetched item. enrich may be nil.
func Paginate[T any](ctx context.Context, src Source[T], page, size int, enrich Enricher[T]) (*Page[T], error) {
	page, size = Clamp(page, size)

	total, err := src.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("page: count: %w", err)
	}
	items, err := src.Fetch(ctx, (page-1)*size, size)
	if err != nil {
		return nil, fmt.Errorf("page: fetch page %d: %w", page, err)
	}
	if items == nil {
		items = []T{}
	}
	if enrich != nil {
		for i := range items {
			if err := enrich(ctx, &items[i]); err != nil {
				return nil, fmt.Errorf("page: enrich: %w", err)
			}
		}
	}

	pages := Pages(total, size)
	return &Page[T]{
		Items:   items,
		Total:   total,
		Page:    page,
		Size:    size,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}, nil
}
