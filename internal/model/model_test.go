package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProcessedText_Complete(t *testing.T) {
	tests := []struct {
		name string
		pt   *ProcessedText
		want bool
	}{
		{name: "nil", pt: nil, want: false},
		{name: "empty segments", pt: &ProcessedText{Segments: []TextSegment{}}, want: false},
		{name: "nil segments", pt: &ProcessedText{FullOriginalText: "书"}, want: false},
		{name: "segments", pt: &ProcessedText{Segments: []TextSegment{{OriginalText: "书"}}}, want: true},
		{name: "full text mode", pt: &ProcessedText{ShowFullText: true, FullOriginalText: "书"}, want: true},
		{name: "full text mode empty", pt: &ProcessedText{ShowFullText: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pt.Complete())
		})
	}
}

func TestProcessedText_WithoutSegment(t *testing.T) {
	pt := &ProcessedText{
		PageID: "p1",
		Segments: []TextSegment{
			{OriginalText: "我有书。", TranslatedText: "I have a book."},
			{OriginalText: "你好。", TranslatedText: "Hello."},
			{OriginalText: "再见。", TranslatedText: "Bye."},
		},
	}

	got, ok := pt.WithoutSegment(1)
	assert.True(t, ok)
	assert.Len(t, got.Segments, 2)
	assert.Equal(t, "我有书。再见。", got.FullOriginalText)
	assert.Equal(t, "I have a book. Bye.", got.FullTranslatedText)
	assert.Len(t, pt.Segments, 3, "original must not be modified")

	_, ok = pt.WithoutSegment(3)
	assert.False(t, ok)
	_, ok = pt.WithoutSegment(-1)
	assert.False(t, ok)
}

func TestFlashCard_Reviewed(t *testing.T) {
	now := time.Now()
	card := FlashCard{ID: "c1", ReviewCount: 2}

	got := card.Reviewed(now)
	assert.Equal(t, 3, got.ReviewCount)
	assert.Equal(t, now, *got.LastReviewedAt)
	assert.Equal(t, 2, card.ReviewCount)
	assert.Nil(t, card.LastReviewedAt)
}

func TestFindByFront(t *testing.T) {
	cards := []FlashCard{{ID: "a", Front: "书"}, {ID: "b", Front: "书"}, {ID: "c", Front: "Book"}}

	got, ok := FindByFront(cards, "书")
	assert.True(t, ok)
	assert.Equal(t, "a", got.ID)

	_, ok = FindByFront(cards, "book")
	assert.False(t, ok, "front matching is case-sensitive")
}

func TestNote_WithoutHighlight(t *testing.T) {
	note := &Note{HighlightedTerms: []string{"书", "好", "书"}}

	terms, found := note.WithoutHighlight("书")
	assert.True(t, found)
	assert.Equal(t, []string{"好"}, terms)

	_, found = note.WithoutHighlight("猫")
	assert.False(t, found)
}
