package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/emrgen/notecache/internal/model"
	"github.com/emrgen/notecache/internal/store"
	"github.com/sirupsen/logrus"
)

// CreateNote creates a note in the remote store and caches its metadata.
func (r *Repository) CreateNote(ctx context.Context, note model.Note) (*model.Note, error) {
	if err := required("title", note.Title); err != nil {
		return nil, err
	}
	if note.PageIDs == nil {
		note.PageIDs = []string{}
	}
	if note.HighlightedTerms == nil {
		note.HighlightedTerms = []string{}
	}

	if err := r.gateway.CreateNote(ctx, &note); err != nil {
		return nil, remoteFailed("create note", err)
	}

	log := logrus.WithField("note_id", note.ID)
	cacheFailed(log, "cache note metadata", r.cache.CacheNoteMetadata(ctx, note.ID, &note))

	return &note, nil
}

// LoadNote returns the metadata of a note. A forced load reads the remote
// store, recounts the note's flashcards and overwrites the cached metadata,
// repairing any count a failed propagation left stale.
func (r *Repository) LoadNote(ctx context.Context, noteID string, forceRefresh bool) (*model.Note, error) {
	if err := required("note id", noteID); err != nil {
		return nil, err
	}

	log := logrus.WithField("note_id", noteID)

	cached, err := r.cache.GetNoteMetadata(ctx, noteID)
	cacheFailed(log, "read note metadata", err)
	if cached != nil && !forceRefresh {
		return cached, nil
	}

	note, err := r.gateway.GetNote(ctx, noteID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: note %s", ErrNotFound, noteID)
		}
		if cached != nil {
			log.Warnf("fetch note failed, serving cached metadata: %v", err)
			return cached, nil
		}
		return nil, fmt.Errorf("%w: note %s: %v", ErrLoad, noteID, err)
	}

	count, err := r.gateway.RecountFlashcards(ctx, noteID)
	switch {
	case err != nil:
		log.Warnf("recount flashcards: %v", err)
	case count != note.FlashcardCount:
		log.Infof("repaired flashcard count %d -> %d", note.FlashcardCount, count)
		note.FlashcardCount = count
	}

	cacheFailed(log, "cache note metadata", r.cache.CacheNoteMetadata(ctx, noteID, note))
	return note, nil
}
