// Package datasets fetches dataset payloads from local disk or blob storage
// and decodes them as lazy record streams.
package datasets

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/datapipe-labs/dp-go-common/stream"
	"github.com/datapipe-labs/dp-go-common/xerrors/errcontext"
	"github.com/datapipe-labs/dp-go-common/xerrors/stacktrace"
)

var ErrNotFound = errors.New("dataset not found")

// Fetcher opens a named dataset payload for reading.
// The caller must close the returned reader.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (io.ReadCloser, error)
}

// LocalFetcher reads dataset payloads from a directory on disk.
type LocalFetcher struct {
	root string
}

func NewLocalFetcher(root string) *LocalFetcher {
	return &LocalFetcher{root: root}
}

func (f *LocalFetcher) Fetch(_ context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Join(f.root, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errcontext.Add(stacktrace.Wrap(ErrNotFound), slog.String("name", name))
		}
		return nil, stacktrace.Wrap(err)
	}
	return file, nil
}

// blobGetter is the part of the S3 blob store a fetcher needs.
type blobGetter interface {
	GetReader(ctx context.Context, key string) (io.ReadCloser, error)
}

// S3Fetcher reads dataset payloads from a blob store.
type S3Fetcher struct {
	store blobGetter
}

func NewS3Fetcher(store blobGetter) *S3Fetcher {
	return &S3Fetcher{store: store}
}

func (f *S3Fetcher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	return f.store.GetReader(ctx, name)
}

// Records lazily decodes a JSONL payload, one record per line. Blank lines
// are skipped. A decode failure ends the sequence with an error carrying the
// zero-based line number; lines after the failure are never read.
func Records[T any](r io.Reader) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		line := 0
		for text, err := range stream.Lines(r) {
			if err != nil {
				yield(zero, err)
				return
			}

			if strings.TrimSpace(text) == "" {
				line++
				continue
			}

			var record T
			if err := json.Unmarshal([]byte(text), &record); err != nil {
				yield(zero, errcontext.Add(stacktrace.Wrap(err), slog.Int("line", line)))
				return
			}
			if !yield(record, nil) {
				return
			}
			line++
		}
	}
}

// Stream fetches a dataset on first pull and decodes its records lazily. The
// underlying reader is closed when the sequence ends or the caller breaks.
func Stream[T any](ctx context.Context, fetcher Fetcher, name string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		rc, err := fetcher.Fetch(ctx, name)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		defer rc.Close()

		for record, err := range Records[T](rc) {
			if !yield(record, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
