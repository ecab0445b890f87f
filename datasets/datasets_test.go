package datasets_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapipe-labs/dp-go-common/datasets"
	"github.com/datapipe-labs/dp-go-common/xerrors/errcontext"
)

type event struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

const eventPayload = `{"name":"a","value":1}
{"name":"b","value":2}

{"name":"c","value":3}
`

var expectedEvents = []event{
	{Name: "a", Value: 1},
	{Name: "b", Value: 2},
	{Name: "c", Value: 3},
}

func TestRecords(t *testing.T) {
	t.Parallel()

	var events []event
	for record, err := range datasets.Records[event](strings.NewReader(eventPayload)) {
		require.NoError(t, err)
		events = append(events, record)
	}

	assert.Equal(t, expectedEvents, events)
}

func TestRecordsEmpty(t *testing.T) {
	t.Parallel()

	count := 0
	for _, err := range datasets.Records[event](strings.NewReader("")) {
		require.NoError(t, err)
		count++
	}
	assert.Zero(t, count)
}

// TestRecordsBadLine ensures a malformed line stops decoding with an error
// naming the failing line, and that nothing after it is decoded.
func TestRecordsBadLine(t *testing.T) {
	t.Parallel()

	payload := `{"name":"a","value":1}
not json
{"name":"c","value":3}
`

	var events []event
	var seqErr error
	for record, err := range datasets.Records[event](strings.NewReader(payload)) {
		if err != nil {
			seqErr = err
			break
		}
		events = append(events, record)
	}

	assert.Equal(t, expectedEvents[:1], events)
	require.Error(t, seqErr)

	attrs := errcontext.Get(seqErr)
	require.Contains(t, attrs, "line")
	assert.Equal(t, int64(1), attrs["line"].Int64())
}

// countingReader tracks how many Read calls are made.
type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

func TestRecordsLazy(t *testing.T) {
	t.Parallel()

	reader := &countingReader{r: strings.NewReader(eventPayload)}
	seq := datasets.Records[event](reader)
	assert.Zero(t, reader.reads, "constructing the sequence must not read")

	for range seq {
		break
	}
	assert.NotZero(t, reader.reads)
}

func TestLocalFetcher(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.jsonl"), []byte(eventPayload), 0o600))

	fetcher := datasets.NewLocalFetcher(dir)

	rc, err := fetcher.Fetch(context.Background(), "events.jsonl")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, eventPayload, string(data))
}

func TestLocalFetcherNotFound(t *testing.T) {
	t.Parallel()

	fetcher := datasets.NewLocalFetcher(t.TempDir())

	_, err := fetcher.Fetch(context.Background(), "missing.jsonl")
	assert.ErrorIs(t, err, datasets.ErrNotFound)

	attrs := errcontext.Get(err)
	require.Contains(t, attrs, "name")
	assert.Equal(t, "missing.jsonl", attrs["name"].String())
}

// fakeBlobStore serves payloads by key.
type fakeBlobStore struct {
	payloads map[string]string
	fetches  int
}

func (f *fakeBlobStore) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	f.fetches++
	payload, ok := f.payloads[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(strings.NewReader(payload)), nil
}

func TestS3Fetcher(t *testing.T) {
	t.Parallel()

	store := &fakeBlobStore{payloads: map[string]string{"datasets/events.jsonl": eventPayload}}
	fetcher := datasets.NewS3Fetcher(store)

	rc, err := fetcher.Fetch(context.Background(), "datasets/events.jsonl")
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, eventPayload, string(data))
}

func TestStream(t *testing.T) {
	t.Parallel()

	store := &fakeBlobStore{payloads: map[string]string{"events.jsonl": eventPayload}}

	seq := datasets.Stream[event](context.Background(), datasets.NewS3Fetcher(store), "events.jsonl")
	assert.Zero(t, store.fetches, "constructing the sequence must not fetch")

	var events []event
	for record, err := range seq {
		require.NoError(t, err)
		events = append(events, record)
	}

	assert.Equal(t, expectedEvents, events)
	assert.Equal(t, 1, store.fetches)
}

func TestStreamFetchFailure(t *testing.T) {
	t.Parallel()

	store := &fakeBlobStore{payloads: map[string]string{}}

	var seqErr error
	for _, err := range datasets.Stream[event](context.Background(), datasets.NewS3Fetcher(store), "missing") {
		if err != nil {
			seqErr = err
			break
		}
	}
	assert.ErrorContains(t, seqErr, "no such key")
}
