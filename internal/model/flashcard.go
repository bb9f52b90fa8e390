package model

import (
	"sort"
	"time"
)

// FlashCard is a front/back study item, optionally linked to a note.
type FlashCard struct {
	ID             string     `json:"id"`
	Front          string     `json:"front"`
	Back           string     `json:"back"`
	Pinyin         string     `json:"pinyin,omitempty"`
	NoteID         string     `json:"note_id,omitempty"` // empty means not linked to a note
	CreatedAt      time.Time  `json:"created_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
	ReviewCount    int        `json:"review_count"`
}

// Reviewed returns a copy of the card with one more review recorded at now.
func (c FlashCard) Reviewed(now time.Time) FlashCard {
	c.ReviewCount++
	c.LastReviewedAt = &now
	return c
}

// FindByFront returns the first card whose front matches exactly.
func FindByFront(cards []FlashCard, front string) (FlashCard, bool) {
	for _, c := range cards {
		if c.Front == front {
			return c, true
		}
	}
	return FlashCard{}, false
}

// SortFlashcards orders cards by creation time, oldest first.
func SortFlashcards(cards []FlashCard) {
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].CreatedAt.Before(cards[j].CreatedAt)
	})
}
