package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	url, err := store.Put(ctx, "jobs/job-1/original/a.jpg", bytes.NewReader([]byte("photo bytes")))
	require.NoError(t, err)
	require.Contains(t, url, "a.jpg")

	r, err := store.Get(ctx, "jobs/job-1/original/a.jpg")
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	content, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "photo bytes", string(content))

	require.NoError(t, store.Delete(ctx, "jobs/job-1/original/a.jpg"))
	_, err = store.Get(ctx, "jobs/job-1/original/a.jpg")
	require.Error(t, err)
}

func TestLocalStore_DeletePrefix(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Put(ctx, "jobs/job-1/original/a.jpg", bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	_, err = store.Put(ctx, "jobs/job-1/enhanced/enhanced_a.jpg", bytes.NewReader([]byte("b")))
	require.NoError(t, err)

	require.NoError(t, store.DeletePrefix(ctx, BuildJobPrefix("job-1")))

	_, statErr := os.Stat(filepath.Join(dir, "jobs", "job-1"))
	require.True(t, os.IsNotExist(statErr))
}

func TestBuildKey(t *testing.T) {
	require.Equal(t, "jobs/job-1/original/a.jpg", BuildKey("job-1", "a.jpg"))
	require.Equal(t, "jobs/job-1/enhanced/enhanced_a.jpg", BuildEnhancedKey("job-1", "a.jpg"))
	require.Equal(t, "jobs/job-1/", BuildJobPrefix("job-1"))
}
