// Package blob stores uploaded call recordings as opaque byte streams.
// Audio content is never parsed.
package blob

import (
	"context"
	"io"
	"time"
)

// Store provides access to recording blobs.
type Store interface {
	// Put writes the stream under key and returns the canonical key.
	Put(ctx context.Context, key string, r io.Reader) (string, error)

	// Get opens the blob stored under key. Returns ErrNotFound when absent.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob stored under key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error

	// DeleteOlderThan removes blobs last modified before cutoff and returns
	// how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
