package blob

import "errors"

// Sentinel kinds for blob storage errors.
var (
	ErrNotFound   = errors.New("recording not found")
	ErrInvalidKey = errors.New("invalid recording key")
)
