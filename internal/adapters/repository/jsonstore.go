package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/callscore/internal/domain/model"
	"github.com/okian/callscore/pkg/metrics"
)

const (
	jsonFilePerm = 0o644
	jsonDirPerm  = 0o755
)

// JSONStore persists call records as a flat JSON array in a single file,
// the way the original tool kept its database. The whole array is held in
// memory and rewritten on every mutation; fine for the intended scale of an
// internal coaching tool.
type JSONStore struct {
	mu      sync.RWMutex
	path    string
	records []model.CallRecord
	index   map[string]int // id -> position in records
}

// NewJSONStore opens (or creates) the store file at path.
func NewJSONStore(path string) (*JSONStore, error) {
	if path == "" {
		path = "data/calls_database.json"
	}
	if err := os.MkdirAll(filepath.Dir(path), jsonDirPerm); err != nil {
		return nil, fmt.Errorf("jsonstore: create data dir: %w", err)
	}

	s := &JSONStore{path: path, index: make(map[string]int)}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("jsonstore: read %s: %w", path, err)
	default:
		if len(data) > 0 {
			if err := json.Unmarshal(data, &s.records); err != nil {
				return nil, fmt.Errorf("jsonstore: parse %s: %w", path, err)
			}
		}
		for i, rec := range s.records {
			s.index[rec.ID] = i
		}
	}
	metrics.UpdateStoreRecords(len(s.records))
	return s, nil
}

// persistLocked writes the array atomically (temp file + rename).
// Callers must hold at least a write intent on s.mu.
func (s *JSONStore) persistLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonstore: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, jsonFilePerm); err != nil {
		return fmt.Errorf("jsonstore: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("jsonstore: rename %s: %w", tmp, err)
	}
	return nil
}

// Create persists a new record.
func (s *JSONStore) Create(_ context.Context, rec model.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[rec.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, rec.ID)
	}
	s.records = append(s.records, rec)
	s.index[rec.ID] = len(s.records) - 1
	if err := s.persistLocked(); err != nil {
		metrics.RecordStoreError()
		return err
	}
	metrics.UpdateStoreRecords(len(s.records))
	return nil
}

// Get returns the record with the given id.
func (s *JSONStore) Get(_ context.Context, id string) (model.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return model.CallRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.records[i], nil
}

// Update replaces the stored record with the same id.
func (s *JSONStore) Update(_ context.Context, rec model.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[rec.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	s.records[i] = rec
	if err := s.persistLocked(); err != nil {
		metrics.RecordStoreError()
		return err
	}
	return nil
}

// Delete removes the record with the given id.
func (s *JSONStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.records); j++ {
		s.index[s.records[j].ID] = j
	}
	if err := s.persistLocked(); err != nil {
		metrics.RecordStoreError()
		return err
	}
	metrics.UpdateStoreRecords(len(s.records))
	return nil
}

// List returns records matching the filter, newest first.
func (s *JSONStore) List(_ context.Context, f Filter) ([]model.CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.CallRecord, 0, len(s.records))
	for _, rec := range s.records {
		if matches(rec, f) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// Count returns the number of stored records.
func (s *JSONStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// DeleteOlderThan removes records uploaded before cutoff.
func (s *JSONStore) DeleteOlderThan(_ context.Context, cutoff time.Time) ([]model.CallRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept, deleted []model.CallRecord
	for _, rec := range s.records {
		if rec.UploadedAt.Before(cutoff) {
			deleted = append(deleted, rec)
		} else {
			kept = append(kept, rec)
		}
	}
	if len(deleted) == 0 {
		return nil, nil
	}

	s.records = kept
	s.index = make(map[string]int, len(kept))
	for i, rec := range kept {
		s.index[rec.ID] = i
	}
	if err := s.persistLocked(); err != nil {
		metrics.RecordStoreError()
		return nil, err
	}
	metrics.UpdateStoreRecords(len(s.records))
	return deleted, nil
}

// Close persists any pending state. The store writes through on every
// mutation, so this is a no-op kept for interface symmetry.
func (s *JSONStore) Close() error {
	return nil
}

// matches applies the filter to one record.
func matches(rec model.CallRecord, f Filter) bool {
	if f.RMName != "" && !strings.Contains(strings.ToLower(rec.RMName), strings.ToLower(f.RMName)) {
		return false
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	if f.MinScore > 0 {
		if rec.Analysis == nil || rec.Analysis.OverallScore < f.MinScore {
			return false
		}
	}
	return true
}
