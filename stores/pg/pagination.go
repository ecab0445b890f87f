// Package pg provides cursor pagination for Postgres-backed record sets.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/uptrace/bun"

	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

var ErrCursorValues = errors.New("unable to parse expected cursor values")

type SortOrder string

const (
	SortOrderAscending  SortOrder = "ASC"
	SortOrderDescending SortOrder = "DESC"
)

func (so SortOrder) Opposite() SortOrder {
	if so == SortOrderAscending {
		return SortOrderDescending
	}
	return SortOrderAscending
}

// Cursor marks a position within a sorted record set. Next points past the
// last row of a page, Previous before the first.
type Cursor struct {
	Next     string
	Previous string
}

func (c Cursor) IsReverse() bool {
	return c.Previous != ""
}

func (c Cursor) Exists() bool {
	return c.Next != "" || c.Previous != ""
}

func (c Cursor) value() string {
	if c.Previous != "" {
		return c.Previous
	}
	return c.Next
}

type comparator string

const (
	comparatorGreaterThan comparator = ">"
	comparatorLessThan    comparator = "<"
	comparatorEqual       comparator = "="
)

func (co comparator) opposite() comparator {
	switch co {
	case comparatorGreaterThan:
		return comparatorLessThan
	case comparatorLessThan:
		return comparatorGreaterThan
	default:
		return comparatorEqual
	}
}

// KeySort names one column of the sort key. Expr marks keys that are SQL
// expressions rather than plain column names.
type KeySort struct {
	Key  string
	Sort SortOrder
	Expr bool
}

func (k KeySort) String() string {
	return fmt.Sprintf("%s %s", k.Key, k.Sort)
}

func (k KeySort) Opposite() string {
	return fmt.Sprintf("%s %s", k.Key, k.Sort.Opposite())
}

// Pageable defines how cursor pagination works for a given row type.
type Pageable[V any] interface {
	SortKeys() []KeySort                             // e.g. [{"created_at", SortOrderDescending}, {"id", SortOrderDescending}]
	CursorValues() []string                          // values as strings in the same order as SortKeys
	ParseCursorValues(values []string) ([]any, error) // convert cursor values back to their column types
	Unwrap() V                                       // the underlying row
}

type PageOpts interface {
	GetLimit() int
	GetCursor() Cursor
}

// PageRequest is a plain PageOpts for callers without their own options type.
type PageRequest struct {
	Limit  int
	Cursor Cursor
}

func (p PageRequest) GetLimit() int     { return p.Limit }
func (p PageRequest) GetCursor() Cursor { return p.Cursor }

// Paginate runs the filter query with the sort and cursor constraints of T
// applied, returning one page of rows plus the cursors to its neighbors.
// A zero limit returns everything in one page.
func Paginate[V any, T Pageable[V]](ctx context.Context, filterQuery *bun.SelectQuery, opts PageOpts) ([]*V, Cursor, error) {
	var data []T
	var err error

	cur := opts.GetCursor()
	if cur.Exists() {
		filterQuery, err = cursorWhere[V, T](filterQuery, cur)
		if err != nil {
			return nil, Cursor{}, err
		}
	} else {
		filterQuery = applySort[V, T](filterQuery, false)
	}

	limit := opts.GetLimit()
	if limit > 0 {
		// Fetch one more than the limit to learn whether more rows exist
		filterQuery = filterQuery.Limit(limit + 1)
	}

	err = filterQuery.Scan(ctx, &data)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, Cursor{}, stacktrace.Wrap(err)
	}
	if len(data) == 0 {
		return nil, Cursor{}, nil
	}
	if limit == 0 {
		return unwrapAll(data), Cursor{}, nil
	}

	more := len(data) > limit

	var out Cursor
	if cur.IsReverse() {
		// Reverse queries scan backwards; restore the proper order.
		// Cursors stay empty in a direction with no more data.
		if more {
			data = data[1:]
		}
		slices.Reverse(data)
		if more {
			out.Previous = joinCursorValues(data[0])
		}
		out.Next = joinCursorValues(data[len(data)-1])
	} else {
		if more {
			data = data[:limit]
			out.Next = joinCursorValues(data[len(data)-1])
		}
		if cur.Exists() {
			out.Previous = joinCursorValues(data[0])
		}
	}

	return unwrapAll(data), out, nil
}

func joinCursorValues[V any, T Pageable[V]](row T) string {
	return strings.Join(row.CursorValues(), ",")
}

func applySort[V any, T Pageable[V]](q *bun.SelectQuery, reverse bool) *bun.SelectQuery {
	var row T
	for _, keySort := range row.SortKeys() {
		order := keySort.String()
		if reverse {
			order = keySort.Opposite()
		}
		if keySort.Expr {
			q.OrderExpr(order)
			continue
		}
		q.Order(order)
	}
	return q
}

type clause struct {
	key        string
	comparator comparator
	value      any
}

func (cl clause) String() string {
	return fmt.Sprintf("%s %s ?", cl.key, cl.comparator)
}

func (cl clause) EqualityString() string {
	return fmt.Sprintf("%s %s ?", cl.key, comparatorEqual)
}

func cursorWhere[V any, T Pageable[V]](q *bun.SelectQuery, cur Cursor) (*bun.SelectQuery, error) {
	var row T

	cursorValues := strings.Split(cur.value(), ",")
	parsedValues, err := row.ParseCursorValues(cursorValues)
	if err != nil {
		return nil, stacktrace.Wrap(err)
	}

	sortKeys := row.SortKeys()
	if len(parsedValues) != len(sortKeys) {
		return nil, stacktrace.Wrap(ErrCursorValues)
	}

	clauses := make([]clause, 0, len(sortKeys))
	for i, keySort := range sortKeys {
		cl := clause{
			key:   keySort.Key,
			value: parsedValues[i],
		}
		if keySort.Sort == SortOrderAscending {
			cl.comparator = comparatorGreaterThan
		} else {
			cl.comparator = comparatorLessThan
		}
		// Walking backwards flips the comparator; the query results are
		// reversed again before being returned.
		if cur.IsReverse() {
			cl.comparator = cl.comparator.opposite()
		}
		clauses = append(clauses, cl)
	}

	// Each clause must also consider equality on the clauses before it, OR'd
	// together. With two keys the full condition looks like:
	// `WHERE (key1 > ?) OR (key1 = ? AND key2 > ?)`
	fullClauses := make([]string, 0, len(clauses))
	numValues := (len(clauses) * (len(clauses) + 1)) / 2 // sum of 1 to n
	valueSet := make([]any, 0, numValues)

	for i, cl := range clauses {
		subClauses := make([]string, 0, i+1)
		for _, previous := range clauses[:i] {
			subClauses = append(subClauses, previous.EqualityString())
			valueSet = append(valueSet, previous.value)
		}
		subClauses = append(subClauses, cl.String())
		valueSet = append(valueSet, cl.value)
		fullClauses = append(fullClauses, fmt.Sprintf("(%s)", strings.Join(subClauses, " AND ")))
	}

	filterQuery := q.Where(strings.Join(fullClauses, " OR "), valueSet...)
	return applySort[V, T](filterQuery, cur.IsReverse()), nil
}

func unwrapAll[V any, T Pageable[V]](rows []T) []*V {
	parsed := make([]*V, 0, len(rows))
	for _, row := range rows {
		value := row.Unwrap()
		parsed = append(parsed, &value)
	}
	return parsed
}
