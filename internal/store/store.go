package store

import (
	"context"
	"time"

	"github.com/emrgen/notecache/internal/model"
)

// Gateway is the read/write surface of the durable backend store. Every call
// may fail with a transient error; callers never assume success.
type Gateway interface {
	PageStore
	FlashcardStore
	NoteStore
}

// Store is a Gateway that can run transactions and migrate its schema.
type Store interface {
	Gateway
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type PageStore interface {
	// FetchPagesByNote returns the pages of a note ordered by page number.
	FetchPagesByNote(ctx context.Context, noteID string) ([]model.Page, error)
	// CreatePage creates a page, generating an id when empty.
	CreatePage(ctx context.Context, page *model.Page) error
	// UpdatePage overwrites the text fields of an existing page.
	UpdatePage(ctx context.Context, page *model.Page) error
}

type FlashcardStore interface {
	// FetchFlashcardsByNote returns the flashcards of a note ordered by creation time.
	FetchFlashcardsByNote(ctx context.Context, noteID string) ([]model.FlashCard, error)
	// GetFlashcard retrieves a flashcard by id.
	GetFlashcard(ctx context.Context, id string) (*model.FlashCard, error)
	// CreateFlashcard creates a flashcard. An id already set on the card is kept.
	CreateFlashcard(ctx context.Context, card *model.FlashCard) (*model.FlashCard, error)
	// UpdateFlashcard overwrites a flashcard as given.
	UpdateFlashcard(ctx context.Context, card *model.FlashCard) (*model.FlashCard, error)
	// DeleteFlashcard deletes a flashcard by id.
	DeleteFlashcard(ctx context.Context, id string) error
	// CountFlashcardsByNote counts the flashcards linked to a note.
	CountFlashcardsByNote(ctx context.Context, noteID string) (int, error)
}

type NoteStore interface {
	// GetNote retrieves a note with its page ids.
	GetNote(ctx context.Context, id string) (*model.Note, error)
	// CreateNote creates a note, generating an id when empty.
	CreateNote(ctx context.Context, note *model.Note) error
	// ListNotes lists notes updated at or after since. A zero since lists all notes.
	ListNotes(ctx context.Context, since time.Time) ([]model.Note, error)
	// UpdateNoteFlashcardCount writes the denormalized flashcard count.
	UpdateNoteFlashcardCount(ctx context.Context, noteID string, count int) error
	// RecountFlashcards counts the flashcards of a note and writes the count
	// in one transaction, returning the new count.
	RecountFlashcards(ctx context.Context, noteID string) (int, error)
	// RemoveHighlightedTerm drops term from the note's highlighted terms and
	// reports whether it was present.
	RemoveHighlightedTerm(ctx context.Context, noteID, term string) (bool, error)
}
