// Package pipeline composes lazy record sequences into runnable tasks: a
// pipeline pulls records from a source, transforms them one at a time, and
// hands the results to a sink. Records are processed in order, exactly once,
// and the first failure stops the pipeline without pulling further records.
package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/datapipe-labs/dp-go-common/log"
	"github.com/datapipe-labs/dp-go-common/retry"
	"github.com/datapipe-labs/dp-go-common/stream"
	"github.com/datapipe-labs/dp-go-common/xerrors/errcontext"
	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

// Source produces the fallible lazy sequence of records to process. It is
// invoked once per pipeline run, so a re-runnable pipeline needs a source
// that returns a fresh sequence each call.
type Source[S any] func(ctx context.Context) iter.Seq2[S, error]

// Sink receives transformed records one at a time.
type Sink[T any] func(ctx context.Context, record T) error

// Retrier retries fallible operations based on their error class.
type Retrier interface {
	Try(ctx context.Context, f func() error) error
}

type options struct {
	name    string
	logger  *slog.Logger
	retrier Retrier
}

type Option func(options *options)

// WithLogger sets the logger to be used.
func WithLogger(logger *slog.Logger) Option {
	return func(options *options) {
		options.logger = logger
	}
}

// WithName sets the name of the pipeline.
func WithName(name string) Option {
	return func(options *options) {
		options.name = name
	}
}

// WithRetrier sets the retrier used around sink writes.
func WithRetrier(retrier Retrier) Option {
	return func(options *options) {
		options.retrier = retrier
	}
}

// Pipeline implements the Task interface.
type Pipeline[S, T any] struct {
	source    Source[S]
	transform func(S) (T, error)
	sink      Sink[T]
	opts      options
}

// New creates a pipeline whose transform cannot fail.
func New[S, T any](source Source[S], transform stream.Transformation[S, T], sink Sink[T], opts ...Option) *Pipeline[S, T] {
	return NewTry(source, func(s S) (T, error) {
		return transform(s), nil
	}, sink, opts...)
}

// NewTry creates a pipeline with a fallible transform. A transform failure
// stops the run; the error carries the zero-based position of the record
// that failed.
func NewTry[S, T any](source Source[S], transform func(S) (T, error), sink Sink[T], opts ...Option) *Pipeline[S, T] {
	options := options{
		name:    "pipeline",
		logger:  log.NewNilLogger(),
		retrier: retry.NewRetrier(retry.WithMaxAttempts(3)),
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &Pipeline[S, T]{
		source:    source,
		transform: transform,
		sink:      sink,
		opts:      options,
	}
}

// Run implements the Task interface. It pulls records from the source until
// the source is exhausted, the context is done, or an error occurs.
func (p *Pipeline[S, T]) Run(ctx context.Context) error {
	logger := p.opts.logger.With(slog.String("pipeline", p.opts.name))
	start := time.Now()
	processed := 0

	for record, err := range p.source(ctx) {
		if err != nil {
			return errcontext.Add(stacktrace.Wrap(err), slog.Int("position", processed))
		}

		if ctx.Err() != nil {
			logger.Info("pipeline cancelled", slog.Int("processed", processed))
			return nil
		}

		out, err := p.transform(record)
		if err != nil {
			return errcontext.Add(stacktrace.Wrap(err), slog.Int("position", processed))
		}

		err = p.opts.retrier.Try(ctx, func() error {
			return p.sink(ctx, out)
		})
		if err != nil {
			return errcontext.Add(stacktrace.Wrap(err), slog.Int("position", processed))
		}

		processed++
	}

	logger.Info("pipeline completed",
		slog.Int("processed", processed),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// Name returns the name of this task.
func (p *Pipeline[S, T]) Name() string {
	return fmt.Sprintf("pipeline (%s)", p.opts.name)
}

// FromSeq adapts an existing fallible sequence into a Source.
func FromSeq[S any](seq iter.Seq2[S, error]) Source[S] {
	return func(_ context.Context) iter.Seq2[S, error] {
		return seq
	}
}

// FromSlice builds a re-runnable Source over a fixed set of records.
func FromSlice[S any](records []S) Source[S] {
	return func(_ context.Context) iter.Seq2[S, error] {
		return func(yield func(S, error) bool) {
			for _, r := range records {
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}
