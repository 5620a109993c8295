package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"family-circle-go/internal/domain/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadAndDelete(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := New(dir, "http://localhost:8080/uploads/")
	require.NoError(t, err)

	object, err := store.Upload(ctx, []byte("png"), "family-image-beach.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/uploads/"+object.Key, object.URL)

	data, err := os.ReadFile(filepath.Join(dir, object.Key))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, store.Delete(ctx, object.Key))
	assert.ErrorIs(t, store.Delete(ctx, object.Key), storage.ErrObjectNotFound)
}

func TestDeleteRejectsPaths(t *testing.T) {
	store, err := New(t.TempDir(), "http://localhost/uploads")
	require.NoError(t, err)

	err = store.Delete(context.Background(), "../secret")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid key"))
}
