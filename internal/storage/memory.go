package storage

import (
	"context"
	"sync"

	"agent-bridge/internal/models"
)

// MemoryStorage keeps notes and events in process memory. Used when no
// database is configured and in tests.
type MemoryStorage struct {
	mu     sync.RWMutex
	notes  []*models.Note
	events []*models.EventRecord
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) SaveNote(_ context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *note
	s.notes = append(s.notes, &copied)
	return nil
}

func (s *MemoryStorage) ListNotes(_ context.Context, limit int) ([]*models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Note, 0, len(s.notes))
	for i := len(s.notes) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		copied := *s.notes[i]
		out = append(out, &copied)
	}
	return out, nil
}

func (s *MemoryStorage) SaveEvent(_ context.Context, event *models.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

// Events returns the stored events newest first, for tests and the
// smoke-check tooling.
func (s *MemoryStorage) Events() []*models.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.EventRecord, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		copied := *s.events[i]
		out = append(out, &copied)
	}
	return out
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
