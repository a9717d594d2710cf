// Package repository defines the call record store interface and its
// implementations.
package repository

import (
	"context"
	"time"

	"github.com/okian/callscore/internal/domain/model"
	"github.com/okian/callscore/internal/domain/rubric"
)

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	// RMName matches records whose RM name contains this string
	// (case-insensitive).
	RMName string
	// Category matches records with this exact call category.
	Category rubric.Category
	// MinScore keeps records whose overall score is at least this value.
	MinScore float64
	// Limit caps the number of returned records; 0 means no cap.
	Limit int
}

// Store provides read/write access to persisted call records.
// Records are returned newest-first by upload time.
type Store interface {
	// Create persists a new record. Returns ErrDuplicateID when the id is
	// already present.
	Create(ctx context.Context, rec model.CallRecord) error

	// Get returns the record with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (model.CallRecord, error)

	// Update replaces the stored record with the same id, or ErrNotFound.
	// Used for the pending -> scored transition and feedback appends.
	Update(ctx context.Context, rec model.CallRecord) error

	// Delete removes the record with the given id, or ErrNotFound. Used to
	// roll back a pending record whose job could not be queued.
	Delete(ctx context.Context, id string) error

	// List returns records matching the filter, newest first.
	List(ctx context.Context, f Filter) ([]model.CallRecord, error)

	// Count returns the number of stored records.
	Count(ctx context.Context) int

	// DeleteOlderThan removes records uploaded before cutoff and returns
	// them so the caller can clean up associated recordings.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]model.CallRecord, error)

	// Close releases store resources.
	Close() error
}
