package gcs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	bytes.Buffer
	contentType string
	closed      bool
	closeErr    error
}

func (w *fakeWriter) SetContentType(ct string) { w.contentType = ct }

func (w *fakeWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	var gotBucket, gotObject string
	w := &fakeWriter{}
	store, err := newStore(Config{Bucket: "dumps"}, func(_ context.Context, bucket, object string) objectWriter {
		gotBucket, gotObject = bucket, object
		return w
	})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "/samgov/t-1/abc.json", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	require.Equal(t, "gs://dumps/samgov/t-1/abc.json", uri)
	require.Equal(t, "dumps", gotBucket)
	require.Equal(t, "samgov/t-1/abc.json", gotObject)
	require.Equal(t, "application/json", w.contentType)
	require.Equal(t, `{}`, w.String())
	require.True(t, w.closed)
}

func TestPutObjectCloseError(t *testing.T) {
	t.Parallel()

	store, err := newStore(Config{Bucket: "dumps"}, func(context.Context, string, string) objectWriter {
		return &fakeWriter{closeErr: errors.New("precondition failed")}
	})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "a.json", "", strings.NewReader(`{}`))
	require.ErrorContains(t, err, "close writer")
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)
	_, err = newStore(Config{}, nil)
	require.Error(t, err)
}
