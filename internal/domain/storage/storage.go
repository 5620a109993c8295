// Package storage defines the blob collaborator the family workflow uploads
// images through. Implementations live under internal/storage.
package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("object not found")

// File is an uploaded file held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Object is the handle pair a blob store returns for a stored file.
type Object struct {
	URL string
	Key string
}

type BlobStore interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (Object, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a collision-free object key that keeps the original file
// name readable: "<uuid>-<name>".
func NewKey(filename string) string {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '-'
		case r < 0x20 || r == '/' || r == '\\':
			return -1
		}
		return r
	}, name)

	if name == "" {
		return uuid.NewString()
	}
	return uuid.NewString() + "-" + name
}
