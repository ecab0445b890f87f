package log_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapipe-labs/dp-go-common/log"
	"github.com/datapipe-labs/dp-go-common/xerrors/errclass"
	"github.com/datapipe-labs/dp-go-common/xerrors/errcontext"
	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

func TestSetLogLevel(t *testing.T) { //nolint:paralleltest // mutates package state
	require.NoError(t, log.SetLogLevel(""))
	require.NoError(t, log.SetLogLevel("debug"))
	require.NoError(t, log.SetLogLevel("WARN"))
	assert.Error(t, log.SetLogLevel("not-a-level"))
	require.NoError(t, log.SetLogLevel("info"))
}

func TestErrAttr(t *testing.T) {
	t.Parallel()

	err := errors.New("boom")
	attr := log.ErrAttr(err)
	assert.Equal(t, log.ErrorKey, attr.Key)
	assert.Equal(t, err, attr.Value.Any())
}

func TestNilLoggerDiscardsEverything(t *testing.T) {
	t.Parallel()

	logger := log.NewNilLogger()
	require.NotNil(t, logger)

	// must be safe at every level without output or panic
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", log.ErrAttr(errors.New("boom")))

	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestNilHandlerChaining(t *testing.T) {
	t.Parallel()

	h := &log.NilHandler{}
	assert.Equal(t, h, h.WithAttrs([]slog.Attr{slog.String("k", "v")}))
	assert.Equal(t, h, h.WithGroup("group"))
	assert.NoError(t, h.Handle(context.Background(), slog.Record{}))
}

// TestTestLoggerWithRichErrors exercises the converter path end to end:
// a classified error with stack trace and context must log without panicking.
func TestTestLoggerWithRichErrors(t *testing.T) {
	t.Parallel()

	logger := log.NewTestLogger(t)

	err := stacktrace.Wrap(errors.New("record rejected"))
	err = errclass.Mark(err, errclass.Transient)
	err = errcontext.Add(err, slog.Int("position", 3), slog.String("stage", "decode"))

	logger.Error("handled", log.ErrAttr(err))

	joined := errors.Join(
		stacktrace.Wrap(errors.New("first")),
		errclass.Mark(errors.New("second"), errclass.Persistent),
	)
	logger.Error("joined", log.ErrAttr(joined))
}
