package storage

import (
	"context"

	"agent-bridge/internal/models"
)

// Storage persists routed notes and events locally, independent of the
// upstream Google services.
type Storage interface {
	SaveNote(ctx context.Context, note *models.Note) error
	// ListNotes returns notes newest first. limit <= 0 means all.
	ListNotes(ctx context.Context, limit int) ([]*models.Note, error)
	SaveEvent(ctx context.Context, event *models.EventRecord) error
	Close() error
}
