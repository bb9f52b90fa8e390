package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/emrgen/notecache/internal/model"
	"github.com/emrgen/notecache/internal/queue"
	"github.com/emrgen/notecache/internal/store"
	"github.com/sirupsen/logrus"
)

// LoadFlashcards returns the flashcards of a note, oldest first. The remote
// store is asked first. Cached cards the remote store does not know are pushed
// back to it so the two stores converge, except cards deleted while the cache
// was failing. The result is never nil.
func (r *Repository) LoadFlashcards(ctx context.Context, noteID string) ([]model.FlashCard, error) {
	if err := required("note id", noteID); err != nil {
		return nil, err
	}

	log := logrus.WithField("note_id", noteID)

	local, err := r.cache.GetFlashcards(ctx, noteID)
	cacheFailed(log, "read cached flashcards", err)
	local, stale := r.withoutDeleted(local)

	remote, err := r.gateway.FetchFlashcardsByNote(ctx, noteID)
	if err != nil {
		if len(local) > 0 {
			log.Warnf("fetch flashcards failed, serving %d cached cards: %v", len(local), err)
			return local, nil
		}
		return nil, fmt.Errorf("%w: flashcards of note %s: %v", ErrLoad, noteID, err)
	}

	known := make(map[string]struct{}, len(remote))
	for _, c := range remote {
		known[c.ID] = struct{}{}
	}

	cards := make([]model.FlashCard, 0, len(remote)+len(local))
	cards = append(cards, remote...)

	pushed := 0
	for _, c := range local {
		if _, ok := known[c.ID]; ok || c.NoteID != noteID {
			continue
		}

		created, err := r.gateway.CreateFlashcard(ctx, &c)
		if err != nil {
			log.WithField("card_id", c.ID).Warnf("push cached flashcard back: %v", err)
			cards = append(cards, c)
			continue
		}
		cards = append(cards, *created)
		pushed++
	}

	model.SortFlashcards(cards)
	if err := r.cache.CacheFlashcards(ctx, noteID, cards); err != nil {
		cacheFailed(log, "cache flashcards", err)
	} else {
		// the cached set was replaced, so the stale entries are gone
		for _, id := range stale {
			r.deleted.Remove(id)
		}
	}

	if pushed > 0 {
		log.Infof("pushed %d cached flashcards back to the remote store", pushed)
		r.counter.Sync(ctx, noteID)
	}
	return cards, nil
}

// AddFlashcard creates a flashcard for a note. When a card with the same front
// already exists in the note, its back and pinyin are overwritten instead and
// no second card is created.
func (r *Repository) AddFlashcard(ctx context.Context, front, back, noteID, pinyin string) (*model.FlashCard, error) {
	for _, f := range []struct{ name, value string }{
		{"front", front},
		{"back", back},
		{"note id", noteID},
	} {
		if err := required(f.name, f.value); err != nil {
			return nil, err
		}
	}

	log := logrus.WithField("note_id", noteID)

	existing, err := r.gateway.FetchFlashcardsByNote(ctx, noteID)
	if err != nil {
		log.Warnf("fetch flashcards for duplicate check failed, using cache: %v", err)
		existing, err = r.cache.GetFlashcards(ctx, noteID)
		cacheFailed(log, "read cached flashcards", err)
	}

	var card *model.FlashCard
	kind := queue.KindFlashcardAdded
	if match, ok := model.FindByFront(existing, front); ok {
		match.Back = back
		match.Pinyin = pinyin
		card, err = r.gateway.UpdateFlashcard(ctx, &match)
		if err != nil {
			return nil, remoteFailed("update flashcard", err)
		}
		kind = queue.KindFlashcardUpdate
	} else {
		card, err = r.gateway.CreateFlashcard(ctx, &model.FlashCard{
			Front:     front,
			Back:      back,
			Pinyin:    pinyin,
			NoteID:    noteID,
			CreatedAt: r.now(),
		})
		if err != nil {
			return nil, remoteFailed("create flashcard", err)
		}
	}

	cacheFailed(log.WithField("card_id", card.ID), "cache flashcard", r.cache.PutFlashcard(ctx, card))
	r.counter.Sync(ctx, noteID)
	r.publish(ctx, queue.Event{Kind: kind, NoteID: noteID, EntityID: card.ID})

	return card, nil
}

// UpdateFlashcard stores card as a review: every update increments the review
// count and stamps the review time. Moving a card to another note recounts both notes.
func (r *Repository) UpdateFlashcard(ctx context.Context, card model.FlashCard) (*model.FlashCard, error) {
	if err := required("flashcard id", card.ID); err != nil {
		return nil, err
	}

	log := logrus.WithFields(logrus.Fields{"card_id": card.ID, "note_id": card.NoteID})

	previous, remoteMissing, err := r.lookupFlashcard(ctx, card.ID)
	if err != nil {
		return nil, err
	}

	// the stored count wins over a stale or partial card
	card.ReviewCount = max(card.ReviewCount, previous.ReviewCount)
	if card.CreatedAt.IsZero() {
		card.CreatedAt = previous.CreatedAt
	}
	reviewed := card.Reviewed(r.now())
	var saved *model.FlashCard
	if remoteMissing {
		// known only to the cache: recreate it remotely
		saved, err = r.gateway.CreateFlashcard(ctx, &reviewed)
	} else {
		saved, err = r.gateway.UpdateFlashcard(ctx, &reviewed)
	}
	if err != nil {
		return nil, remoteFailed("save flashcard", err)
	}

	cacheFailed(log, "cache flashcard", r.cache.PutFlashcard(ctx, saved))

	if saved.NoteID != "" {
		r.counter.Sync(ctx, saved.NoteID)
	}
	if previous.NoteID != "" && previous.NoteID != saved.NoteID {
		r.counter.Sync(ctx, previous.NoteID)
	}
	r.publish(ctx, queue.Event{Kind: queue.KindFlashcardUpdate, NoteID: saved.NoteID, EntityID: saved.ID})

	return saved, nil
}

// DeleteFlashcard deletes a flashcard from both stores, recounts its note and
// drops its front from the note's highlighted terms. noteID may be empty, in
// which case the card's own note is used. Recount and highlight cleanup are
// best effort and never fail the delete.
func (r *Repository) DeleteFlashcard(ctx context.Context, id, noteID string) error {
	if err := required("flashcard id", id); err != nil {
		return err
	}

	card, remoteMissing, err := r.lookupFlashcard(ctx, id)
	if err != nil {
		return err
	}
	if noteID == "" {
		noteID = card.NoteID
	}

	log := logrus.WithFields(logrus.Fields{"card_id": id, "note_id": noteID})

	if !remoteMissing {
		err := r.gateway.DeleteFlashcard(ctx, id)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return remoteFailed("delete flashcard", err)
		}
	}
	if err := r.cache.RemoveFlashcard(ctx, noteID, id); err != nil {
		cacheFailed(log, "remove cached flashcard", err)
		r.deleted.Add(id)
	}

	if noteID == "" {
		return nil
	}

	r.counter.Sync(ctx, noteID)
	r.removeHighlight(ctx, noteID, card.Front)
	r.publish(ctx, queue.Event{Kind: queue.KindFlashcardDelete, NoteID: noteID, EntityID: id})

	return nil
}

// lookupFlashcard finds a card in the remote store, falling back to the cache.
// remoteMissing is set when only the cache knows the card.
func (r *Repository) lookupFlashcard(ctx context.Context, id string) (card *model.FlashCard, remoteMissing bool, err error) {
	card, err = r.gateway.GetFlashcard(ctx, id)
	if err == nil {
		return card, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, fmt.Errorf("get flashcard: %w", err)
	}

	cached, cacheErr := r.cache.GetFlashcard(ctx, id)
	cacheFailed(logrus.WithField("card_id", id), "read cached flashcard", cacheErr)
	if cached == nil || r.deleted.Contains(id) {
		return nil, false, fmt.Errorf("%w: flashcard %s", ErrNotFound, id)
	}

	return cached, true, nil
}

// withoutDeleted drops cards whose delete did not reach the cache and returns
// their ids.
func (r *Repository) withoutDeleted(cards []model.FlashCard) ([]model.FlashCard, []string) {
	if r.deleted.Cardinality() == 0 {
		return cards, nil
	}

	var stale []string
	kept := make([]model.FlashCard, 0, len(cards))
	for _, c := range cards {
		if r.deleted.Contains(c.ID) {
			stale = append(stale, c.ID)
			continue
		}
		kept = append(kept, c)
	}
	return kept, stale
}

func (r *Repository) removeHighlight(ctx context.Context, noteID, term string) {
	log := logrus.WithFields(logrus.Fields{"note_id": noteID, "step": "highlight cleanup"})

	if _, err := r.gateway.RemoveHighlightedTerm(ctx, noteID, term); err != nil {
		log.Warnf("remove highlighted term remotely: %v", err)
	}

	note, err := r.cache.GetNoteMetadata(ctx, noteID)
	cacheFailed(log, "read note metadata", err)
	if note == nil {
		return
	}

	terms, found := note.WithoutHighlight(term)
	if !found {
		return
	}
	note.HighlightedTerms = terms
	cacheFailed(log, "cache note metadata", r.cache.CacheNoteMetadata(ctx, noteID, note))
}
