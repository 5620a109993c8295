// Package local keeps uploads on disk and serves them under a base URL.
// It is meant for development where no bucket is available.
package local

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"family-circle-go/internal/domain/storage"
)

type Store struct {
	dir     string
	baseURL string
}

func New(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Upload(ctx context.Context, data []byte, filename, _ string) (storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return storage.Object{}, err
	}

	key := storage.NewKey(filename)
	if err := os.WriteFile(filepath.Join(s.dir, key), data, 0o644); err != nil {
		return storage.Object{}, fmt.Errorf("write %s: %w", key, err)
	}

	return storage.Object{
		URL: s.baseURL + "/" + url.PathEscape(key),
		Key: key,
	}, nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	if key == "" || filepath.Base(key) != key {
		return fmt.Errorf("invalid key %q", key)
	}

	err := os.Remove(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return storage.ErrObjectNotFound
	}
	return err
}
