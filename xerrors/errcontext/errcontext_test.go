package errcontext_test

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapipe-labs/dp-go-common/xerrors"
	"github.com/datapipe-labs/dp-go-common/xerrors/errcontext"
)

func TestAddNil(t *testing.T) {
	t.Parallel()
	assert.NoError(t, errcontext.Add(nil, slog.String("key", "value")))
}

func TestAddAndGet(t *testing.T) {
	t.Parallel()

	err := errcontext.Add(errors.New("read failed"),
		slog.String("source", "events.jsonl"),
		slog.Int("position", 7),
	)
	require.Error(t, err)

	ctx := errcontext.Get(err)
	require.NotNil(t, ctx)
	assert.Equal(t, "events.jsonl", ctx["source"].String())
	assert.Equal(t, int64(7), ctx["position"].Int64())
}

func TestGetMissing(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errcontext.Get(nil))
	assert.Nil(t, errcontext.Get(errors.New("plain")))
}

func TestGetThroughWrapping(t *testing.T) {
	t.Parallel()

	err := errcontext.Add(errors.New("base"), slog.String("key", "value"))
	err = fmt.Errorf("outer: %w", err)

	ctx := errcontext.Get(err)
	require.NotNil(t, ctx)
	assert.Equal(t, "value", ctx["key"].String())
}

func TestAddMergesLastEntryWins(t *testing.T) {
	t.Parallel()

	err := errcontext.Add(errors.New("base"),
		slog.String("stage", "parse"),
		slog.Int("attempt", 1),
	)
	err = errcontext.Add(err, slog.Int("attempt", 2))

	ctx := errcontext.Get(err)
	require.NotNil(t, ctx)
	assert.Equal(t, int64(2), ctx["attempt"].Int64())
	assert.Equal(t, "parse", ctx["stage"].String())
}

func TestAddJoinedErrors(t *testing.T) {
	t.Parallel()

	joined := errors.Join(errors.New("a"), errors.New("b"))
	err := errcontext.Add(joined, slog.String("batch", "42"))

	children := xerrors.Split(err)
	require.Len(t, children, 2)
	for _, child := range children {
		ctx := errcontext.Get(child)
		require.NotNil(t, ctx)
		assert.Equal(t, "42", ctx["batch"].String())
	}
}

func TestAttrsSorted(t *testing.T) {
	t.Parallel()

	ctx := errcontext.Context{
		"zebra": slog.StringValue("z"),
		"alpha": slog.StringValue("a"),
		"mid":   slog.StringValue("m"),
	}

	attrs := ctx.Attrs()
	require.Len(t, attrs, 3)
	assert.Equal(t, "alpha", attrs[0].Key)
	assert.Equal(t, "mid", attrs[1].Key)
	assert.Equal(t, "zebra", attrs[2].Key)
}
