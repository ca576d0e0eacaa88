package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a key has no stored content.
var ErrNotFound = errors.New("blob not found")

// BlobStore stores opaque documents by key.
type BlobStore interface {
	// Put replaces the content stored under key.
	Put(ctx context.Context, key string, reader io.Reader) error

	// Get retrieves content. Missing keys return ErrNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Copy duplicates the content of src into dst. A missing src is not an
	// error and leaves dst untouched.
	Copy(ctx context.Context, src, dst string) error
}
