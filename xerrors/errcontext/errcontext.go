// Package errcontext enriches errors with structured log attributes.
package errcontext

import (
	"errors"
	"log/slog"
	"maps"
	"slices"

	"github.com/datapipe-labs/dp-go-common/xerrors"
)

// Context is the set of log attributes attached to an error.
type Context map[string]slog.Value

// Attrs returns the context as a slice of slog.Attr, sorted by key.
func (c Context) Attrs() []slog.Attr {
	keys := slices.Sorted(maps.Keys(c))
	attrs := make([]slog.Attr, 0, len(c))
	for _, key := range keys {
		attrs = append(attrs, slog.Attr{Key: key, Value: c[key]})
	}
	return attrs
}

// LogValue implements slog.LogValuer, presenting the context as a flat group.
func (c Context) LogValue() slog.Value {
	if len(c) == 0 {
		return slog.Value{}
	}
	return slog.GroupValue(c.Attrs()...)
}

// Add wraps err with the given attributes.
// Existing context is preserved, with new keys replacing old ones.
// For joined errors, the context is applied to each child.
func Add(err error, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}

	if children := xerrors.Split(err); len(children) > 1 {
		annotated := make([]error, len(children))
		for i, child := range children {
			annotated[i] = Add(child, attrs...)
		}
		return errors.Join(annotated...)
	}

	merged := make(Context, len(attrs))
	if existing := Get(err); existing != nil {
		merged = maps.Clone(existing)
	}
	for _, attr := range attrs {
		merged[attr.Key] = attr.Value
	}

	return xerrors.Attach(merged, err)
}

// Get returns the newest Context attached to err, or nil.
func Get(err error) Context {
	if err == nil {
		return nil
	}
	if ctx, ok := xerrors.Lookup[Context](err); ok {
		return ctx
	}
	return nil
}
