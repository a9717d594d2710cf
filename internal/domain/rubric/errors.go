package rubric

import "errors"

// Sentinel kinds for rubric errors.
var (
	ErrInvalidDefinition = errors.New("invalid rubric definition")
	ErrUnknownCategory   = errors.New("unknown call category")
)
