package store

import (
	"time"

	"github.com/emrgen/notecache/internal/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type pageRecord struct {
	ID             string `gorm:"primaryKey;uuid;not null"`
	NoteID         string `gorm:"not null;index:idx_pages_note_id_number"`
	PageNumber     int    `gorm:"not null;index:idx_pages_note_id_number"`
	OriginalText   string
	TranslatedText string
	ImageRef       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (pageRecord) TableName() string {
	return "pages"
}

type flashcardRecord struct {
	ID             string `gorm:"primaryKey;uuid;not null"`
	NoteID         string `gorm:"index:idx_flashcards_note_id"`
	Front          string `gorm:"not null"`
	Back           string `gorm:"not null"`
	Pinyin         string
	ReviewCount    int `gorm:"not null;default:0"`
	LastReviewedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (flashcardRecord) TableName() string {
	return "flashcards"
}

type noteRecord struct {
	ID               string `gorm:"primaryKey;uuid;not null"`
	Title            string
	FlashcardCount   int                         `gorm:"not null;default:0"`
	HighlightedTerms datatypes.JSONSlice[string] `gorm:"type:json"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (noteRecord) TableName() string {
	return "notes"
}

// Migrate creates or updates the tables of the remote store.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&noteRecord{}, &pageRecord{}, &flashcardRecord{})
}

func pageFromRecord(r *pageRecord) model.Page {
	return model.Page{
		ID:             r.ID,
		NoteID:         r.NoteID,
		PageNumber:     r.PageNumber,
		OriginalText:   r.OriginalText,
		TranslatedText: r.TranslatedText,
		ImageRef:       r.ImageRef,
		UpdatedAt:      r.UpdatedAt,
	}
}

func pageToRecord(p *model.Page) *pageRecord {
	return &pageRecord{
		ID:             p.ID,
		NoteID:         p.NoteID,
		PageNumber:     p.PageNumber,
		OriginalText:   p.OriginalText,
		TranslatedText: p.TranslatedText,
		ImageRef:       p.ImageRef,
	}
}

func flashcardFromRecord(r *flashcardRecord) model.FlashCard {
	return model.FlashCard{
		ID:             r.ID,
		Front:          r.Front,
		Back:           r.Back,
		Pinyin:         r.Pinyin,
		NoteID:         r.NoteID,
		CreatedAt:      r.CreatedAt,
		LastReviewedAt: r.LastReviewedAt,
		ReviewCount:    r.ReviewCount,
	}
}

func flashcardToRecord(c *model.FlashCard) *flashcardRecord {
	return &flashcardRecord{
		ID:             c.ID,
		NoteID:         c.NoteID,
		Front:          c.Front,
		Back:           c.Back,
		Pinyin:         c.Pinyin,
		ReviewCount:    c.ReviewCount,
		LastReviewedAt: c.LastReviewedAt,
		CreatedAt:      c.CreatedAt,
	}
}

func noteFromRecord(r *noteRecord, pageIDs []string) model.Note {
	terms := []string(r.HighlightedTerms)
	if terms == nil {
		terms = make([]string, 0)
	}
	if pageIDs == nil {
		pageIDs = make([]string, 0)
	}

	return model.Note{
		ID:               r.ID,
		Title:            r.Title,
		FlashcardCount:   r.FlashcardCount,
		PageIDs:          pageIDs,
		HighlightedTerms: terms,
		UpdatedAt:        r.UpdatedAt,
	}
}
