package pg

import (
	"context"
	"iter"

	"github.com/uptrace/bun"
)

// Rows lazily yields every row the query matches, fetching one page of
// pageSize rows at a time as the sequence is pulled. newQuery must return a
// fresh select query each call since executing a query consumes it. A query
// failure ends the sequence with that error.
func Rows[V any, T Pageable[V]](ctx context.Context, newQuery func() *bun.SelectQuery, pageSize int) iter.Seq2[*V, error] {
	if pageSize <= 0 {
		panic("pg: page size must be positive")
	}

	return func(yield func(*V, error) bool) {
		var cursor Cursor

		for {
			page, next, err := Paginate[V, T](ctx, newQuery(), PageRequest{
				Limit:  pageSize,
				Cursor: cursor,
			})
			if err != nil {
				yield(nil, err)
				return
			}

			for _, row := range page {
				if !yield(row, nil) {
					return
				}
			}

			if next.Next == "" {
				return
			}
			cursor = Cursor{Next: next.Next}
		}
	}
}
