package media

import (
	"context"
	"io"
)

// Storage is the object store contract shared by the S3 and GCS backends.
// Bodies passed to Put and UploadPart are fully buffered by the handler,
// so size is always exact.
type Storage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error

	// Stat returns object metadata or ErrObjectNotFound.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Get opens the object, or only rng when it is non-nil.
	Get(ctx context.Context, key string, rng *ByteRange) (*ObjectReader, error)

	// List returns up to limit objects in key order. Zero means all.
	List(ctx context.Context, limit int) ([]Object, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	CreateMultipart(ctx context.Context, key, contentType string) (uploadID string, err error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int, body io.Reader, size int64) (etag string, err error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []CompletedPart) error

	// Ping verifies the bucket is reachable.
	Ping(ctx context.Context) error
}
