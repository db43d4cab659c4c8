package derivative

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by backends when a key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// Backend is a flat key space. Keys use "/" separators; List and
// DeletePrefix take a prefix that ends at a path segment.
type Backend interface {
	Put(ctx context.Context, key string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Copy(ctx context.Context, src, dst string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// localBackend is implemented by backends whose objects already live on disk.
type localBackend interface {
	LocalPath(key string) string
}
