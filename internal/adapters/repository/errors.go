package repository

import "errors"

// Sentinel kinds for record store errors.
var (
	ErrNotFound    = errors.New("call record not found")
	ErrDuplicateID = errors.New("call record id already exists")
)
