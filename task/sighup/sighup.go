// Package sighup provides a Task that executes registered actions when the
// process receives SIGHUP, typically to reload configuration.
package sighup

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/datapipe-labs/dp-go-common/log"
	"github.com/datapipe-labs/dp-go-common/xerrors/errcontext"
	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

// Action defines the interface for an action to be run on signal.
type Action interface {
	// Run is the signal action.
	// It is expected to be context aware, especially if the action
	// could take any significant time to complete.
	Run(context.Context) error

	// Cleanup is executed when the task terminates.
	Cleanup()

	// Name returns the name of the action for logging purposes.
	Name() string
}

// DefaultSignals are the os signals that trigger the actions.
var DefaultSignals = []os.Signal{syscall.SIGHUP}

// Task waits for a signal from the OS and executes its actions in order.
type Task struct {
	sigCh            chan os.Signal
	actions          []Action
	terminateOnError bool
	logger           *slog.Logger
}

type options struct {
	signals          []os.Signal
	actions          []Action
	terminateOnError bool
	logger           *slog.Logger
}

// Option is an option func for NewTask.
type Option func(options *options)

// WithLogger sets the logger to be used.
func WithLogger(logger *slog.Logger) Option {
	return func(options *options) {
		options.logger = logger
	}
}

// WithTerminateOnError causes the task to exit when an action fails.
func WithTerminateOnError(terminate bool) Option {
	return func(options *options) {
		options.terminateOnError = terminate
	}
}

// WithSignals overrides the default signals being listened for.
func WithSignals(signals ...os.Signal) Option {
	return func(options *options) {
		options.signals = signals
	}
}

// WithAction adds an action to the task on creation.
func WithAction(action Action) Option {
	return func(options *options) {
		options.actions = append(options.actions, action)
	}
}

// NewTask creates a new sighup Task.
func NewTask(opts ...Option) *Task {
	options := options{
		signals: DefaultSignals,
		logger:  log.NewNilLogger(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	task := &Task{
		sigCh:            make(chan os.Signal, 1),
		terminateOnError: options.terminateOnError,
		actions:          options.actions,
		logger:           options.logger,
	}
	signal.Notify(task.sigCh, options.signals...)
	return task
}

// Name returns the name of this task.
func (t *Task) Name() string {
	return "sighup task"
}

// AddAction appends an action to the task's action list.
func (t *Task) AddAction(act Action) {
	t.actions = append(t.actions, act)
}

// Run executes the task.
func (t *Task) Run(ctx context.Context) error {
	var errOuter error
loop:
	for {
		select {
		case sig := <-t.sigCh:
			t.logger.Debug("signal received, executing actions", slog.String("signal", sig.String()))
			for _, act := range t.actions {
				t.logger.Debug("executing action", slog.String("action", act.Name()))
				if err := act.Run(ctx); err != nil {
					t.logger.Error("error executing action", log.ErrAttr(err), slog.String("action", act.Name()))
					if t.terminateOnError {
						errOuter = errcontext.Add(stacktrace.Wrap(err), slog.String("action", act.Name()))
						break loop
					}
				}
			}
		case <-ctx.Done():
			break loop
		}
	}

	signal.Stop(t.sigCh)
	close(t.sigCh)

	// Cleanup actions in reverse order of registration
	for _, act := range slices.Backward(t.actions) {
		act.Cleanup()
	}

	return errOuter
}
