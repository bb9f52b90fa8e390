package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/emrgen/notecache/internal/compress"
	"github.com/emrgen/notecache/internal/model"
)

// unlinkedParent groups flashcards that do not belong to a note.
const unlinkedParent = "_unlinked"

// NoteCache is the typed boundary the engine uses to talk to a LocalStore.
// Values are JSON, optionally compressed. Every failure wraps ErrCacheUnavailable.
type NoteCache struct {
	store LocalStore
	codec compress.Compress
}

func NewNoteCache(store LocalStore, codec compress.Compress) *NoteCache {
	if codec == nil {
		codec = compress.NewNop()
	}
	return &NoteCache{store: store, codec: codec}
}

// cachedPage remembers the position a page held in its note's set, so pages
// sharing a page number come back in the order they were cached.
type cachedPage struct {
	model.Page
	Seq int `json:"seq"`
}

// CachePages replaces the cached page set of a note, keeping the given order.
func (c *NoteCache) CachePages(ctx context.Context, noteID string, pages []model.Page) error {
	entries := make([]Entry, 0, len(pages))
	for i := range pages {
		value, err := c.encode(&cachedPage{Page: pages[i], Seq: i})
		if err != nil {
			return err
		}
		entries = append(entries, Entry{ID: pages[i].ID, Value: value})
	}

	return c.store.PutBulk(ctx, KindPage, noteID, entries)
}

// GetPages returns the cached pages of a note sorted by page number, ties in
// cached order.
func (c *NoteCache) GetPages(ctx context.Context, noteID string) ([]model.Page, error) {
	cached, err := c.cachedPages(ctx, noteID)
	if err != nil {
		return nil, err
	}

	pages := make([]model.Page, 0, len(cached))
	for _, cp := range cached {
		pages = append(pages, cp.Page)
	}
	return pages, nil
}

// PutPage writes a single page into its note's page set. A page already in
// the set keeps its position; a new one goes after the others.
func (c *NoteCache) PutPage(ctx context.Context, page *model.Page) error {
	siblings, err := c.cachedPages(ctx, page.NoteID)
	if err != nil {
		return err
	}

	entry := cachedPage{Page: *page}
	for _, s := range siblings {
		if s.ID == page.ID {
			entry.Seq = s.Seq
			break
		}
		entry.Seq = max(entry.Seq, s.Seq+1)
	}

	value, err := c.encode(&entry)
	if err != nil {
		return err
	}

	return c.store.Put(ctx, KindPage, page.ID, page.NoteID, value)
}

func (c *NoteCache) cachedPages(ctx context.Context, noteID string) ([]cachedPage, error) {
	values, err := c.store.GetBulkByParent(ctx, KindPage, noteID)
	if err != nil {
		return nil, err
	}

	pages := make([]cachedPage, 0, len(values))
	for _, v := range values {
		var page cachedPage
		if err := c.decode(v, &page); err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}

	sort.Slice(pages, func(i, j int) bool {
		a, b := pages[i], pages[j]
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.ID < b.ID
	})
	return pages, nil
}

// CacheFlashcards replaces the cached flashcards of a note.
func (c *NoteCache) CacheFlashcards(ctx context.Context, noteID string, cards []model.FlashCard) error {
	entries := make([]Entry, 0, len(cards))
	for i := range cards {
		value, err := c.encode(&cards[i])
		if err != nil {
			return err
		}
		entries = append(entries, Entry{ID: cards[i].ID, Value: value})
	}

	return c.store.PutBulk(ctx, KindFlashcard, flashcardParent(noteID), entries)
}

// GetFlashcards returns the cached flashcards of a note, oldest first.
func (c *NoteCache) GetFlashcards(ctx context.Context, noteID string) ([]model.FlashCard, error) {
	values, err := c.store.GetBulkByParent(ctx, KindFlashcard, flashcardParent(noteID))
	if err != nil {
		return nil, err
	}

	cards := make([]model.FlashCard, 0, len(values))
	for _, v := range values {
		var card model.FlashCard
		if err := c.decode(v, &card); err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}

	model.SortFlashcards(cards)
	return cards, nil
}

// GetFlashcard returns a cached flashcard or nil.
func (c *NoteCache) GetFlashcard(ctx context.Context, id string) (*model.FlashCard, error) {
	var card model.FlashCard
	ok, err := c.get(ctx, KindFlashcard, id, &card)
	if err != nil || !ok {
		return nil, err
	}
	return &card, nil
}

// PutFlashcard writes a single flashcard into its note's set, moving it when
// the note changed.
func (c *NoteCache) PutFlashcard(ctx context.Context, card *model.FlashCard) error {
	value, err := c.encode(card)
	if err != nil {
		return err
	}

	return c.store.Put(ctx, KindFlashcard, card.ID, flashcardParent(card.NoteID), value)
}

// RemoveFlashcard drops a flashcard from the cache.
func (c *NoteCache) RemoveFlashcard(ctx context.Context, noteID, id string) error {
	return c.store.Remove(ctx, KindFlashcard, id)
}

// CacheNoteMetadata overwrites the cached note.
func (c *NoteCache) CacheNoteMetadata(ctx context.Context, noteID string, note *model.Note) error {
	value, err := c.encode(note)
	if err != nil {
		return err
	}

	return c.store.Put(ctx, KindNote, noteID, "", value)
}

// GetNoteMetadata returns the cached note or nil.
func (c *NoteCache) GetNoteMetadata(ctx context.Context, noteID string) (*model.Note, error) {
	var note model.Note
	ok, err := c.get(ctx, KindNote, noteID, &note)
	if err != nil || !ok {
		return nil, err
	}
	return &note, nil
}

// CacheProcessedText overwrites the processed text of a page.
func (c *NoteCache) CacheProcessedText(ctx context.Context, pt *model.ProcessedText) error {
	value, err := c.encode(pt)
	if err != nil {
		return err
	}

	return c.store.Put(ctx, KindProcessedText, pt.PageID, "", value)
}

// GetProcessedText returns the cached processed text of a page or nil.
func (c *NoteCache) GetProcessedText(ctx context.Context, pageID string) (*model.ProcessedText, error) {
	var pt model.ProcessedText
	ok, err := c.get(ctx, KindProcessedText, pageID, &pt)
	if err != nil || !ok {
		return nil, err
	}
	return &pt, nil
}

func (c *NoteCache) RemoveProcessedText(ctx context.Context, pageID string) error {
	return c.store.Remove(ctx, KindProcessedText, pageID)
}

func (c *NoteCache) get(ctx context.Context, kind Kind, id string, v any) (bool, error) {
	value, ok, err := c.store.Get(ctx, kind, id)
	if err != nil || !ok {
		return false, err
	}

	if err := c.decode(value, v); err != nil {
		return false, err
	}
	return true, nil
}

func (c *NoteCache) encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %v", ErrCacheUnavailable, err)
	}

	encoded, err := c.codec.Encode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrCacheUnavailable, err)
	}
	return encoded, nil
}

func (c *NoteCache) decode(value []byte, v any) error {
	data, err := c.codec.Decode(value)
	if err != nil {
		return fmt.Errorf("%w: decode: %v", ErrCacheUnavailable, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: unmarshal: %v", ErrCacheUnavailable, err)
	}
	return nil
}

func flashcardParent(noteID string) string {
	if noteID == "" {
		return unlinkedParent
	}
	return noteID
}
