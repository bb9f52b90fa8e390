package queue

import (
	"context"
	"errors"
	"time"
)

// Event kinds published by the repository.
const (
	KindFlashcardCount  = "note.flashcard_count"
	KindPagesReconciled = "note.pages_reconciled"
	KindFlashcardAdded  = "flashcard.added"
	KindFlashcardUpdate = "flashcard.updated"
	KindFlashcardDelete = "flashcard.deleted"
)

var (
	// ErrQueueFull is returned when a buffered publisher has no room left.
	ErrQueueFull = errors.New("queue is full")
	// ErrClosed is returned when publishing to a closed publisher.
	ErrClosed = errors.New("publisher is closed")
)

// Event is a change notification for downstream consumers.
type Event struct {
	Kind     string            `json:"kind"`
	NoteID   string            `json:"note_id"`
	EntityID string            `json:"entity_id,omitempty"`
	Count    int               `json:"count,omitempty"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	At       time.Time         `json:"at"`
}

// Publisher appends change events to a queue.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

var _ Publisher = Nop{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() error { return nil }
