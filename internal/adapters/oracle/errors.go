package oracle

import "errors"

// Sentinel kinds for oracle errors.
var (
	ErrUnavailable = errors.New("scoring oracle unavailable")
	ErrBadResponse = errors.New("scoring oracle returned malformed response")
)
