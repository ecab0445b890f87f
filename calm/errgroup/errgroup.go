// Package errgroup wraps the x/sync errgroup so that panics in goroutines
// surface as errors instead of crashing the process.
package errgroup

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/datapipe-labs/dp-go-common/calm"
)

type Group struct {
	group *errgroup.Group
}

func New() *Group {
	return &Group{group: new(errgroup.Group)}
}

func WithContext(ctx context.Context) (*Group, context.Context) {
	group, ctx := errgroup.WithContext(ctx)
	return &Group{group: group}, ctx
}

func (g *Group) Go(f func() error) {
	g.group.Go(func() error {
		return calm.Unpanic(f)
	})
}

func (g *Group) TryGo(f func() error) bool {
	return g.group.TryGo(func() error {
		return calm.Unpanic(f)
	})
}

func (g *Group) SetLimit(n int) {
	g.group.SetLimit(n)
}

func (g *Group) Wait() error {
	return g.group.Wait()
}
