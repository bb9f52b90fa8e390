package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/emrgen/notecache/internal/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the target id does not exist in the remote store.
	ErrNotFound = errors.New("not found")
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

// GormStore implements Store over a relational database.
type GormStore struct {
	db *gorm.DB
}

// DB returns the underlying connection.
func (g *GormStore) DB() *gorm.DB {
	return g.db
}

func (g *GormStore) FetchPagesByNote(ctx context.Context, noteID string) ([]model.Page, error) {
	var records []*pageRecord
	err := g.db.WithContext(ctx).Where("note_id = ?", noteID).Order("page_number asc").Find(&records).Error
	if err != nil {
		return nil, err
	}

	pages := make([]model.Page, 0, len(records))
	for _, r := range records {
		pages = append(pages, pageFromRecord(r))
	}

	// the database order is not trusted for ties
	sort.SliceStable(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})
	return pages, nil
}

func (g *GormStore) CreatePage(ctx context.Context, page *model.Page) error {
	if page.NoteID == "" {
		return fmt.Errorf("page note id is required")
	}
	if page.ID == "" {
		page.ID = uuid.New().String()
	}

	record := pageToRecord(page)
	if err := g.db.WithContext(ctx).Create(record).Error; err != nil {
		return err
	}

	page.UpdatedAt = record.UpdatedAt
	return nil
}

func (g *GormStore) UpdatePage(ctx context.Context, page *model.Page) error {
	res := g.db.WithContext(ctx).Model(&pageRecord{}).Where("id = ?", page.ID).Updates(map[string]any{
		"original_text":   page.OriginalText,
		"translated_text": page.TranslatedText,
		"page_number":     page.PageNumber,
		"image_ref":       page.ImageRef,
		"updated_at":      time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("page %s: %w", page.ID, ErrNotFound)
	}

	return nil
}

func (g *GormStore) FetchFlashcardsByNote(ctx context.Context, noteID string) ([]model.FlashCard, error) {
	var records []*flashcardRecord
	err := g.db.WithContext(ctx).Where("note_id = ?", noteID).Find(&records).Error
	if err != nil {
		return nil, err
	}

	cards := make([]model.FlashCard, 0, len(records))
	for _, r := range records {
		cards = append(cards, flashcardFromRecord(r))
	}

	model.SortFlashcards(cards)
	return cards, nil
}

func (g *GormStore) GetFlashcard(ctx context.Context, id string) (*model.FlashCard, error) {
	var record flashcardRecord
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("flashcard %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	card := flashcardFromRecord(&record)
	return &card, nil
}

func (g *GormStore) CreateFlashcard(ctx context.Context, card *model.FlashCard) (*model.FlashCard, error) {
	record := flashcardToRecord(card)
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	if err := g.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}

	created := flashcardFromRecord(record)
	return &created, nil
}

func (g *GormStore) UpdateFlashcard(ctx context.Context, card *model.FlashCard) (*model.FlashCard, error) {
	res := g.db.WithContext(ctx).Model(&flashcardRecord{}).Where("id = ?", card.ID).Updates(map[string]any{
		"note_id":          card.NoteID,
		"front":            card.Front,
		"back":             card.Back,
		"pinyin":           card.Pinyin,
		"review_count":     card.ReviewCount,
		"last_reviewed_at": card.LastReviewedAt,
		"updated_at":       time.Now(),
	})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("flashcard %s: %w", card.ID, ErrNotFound)
	}

	return g.GetFlashcard(ctx, card.ID)
}

func (g *GormStore) DeleteFlashcard(ctx context.Context, id string) error {
	res := g.db.WithContext(ctx).Where("id = ?", id).Delete(&flashcardRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("flashcard %s: %w", id, ErrNotFound)
	}

	return nil
}

func (g *GormStore) CountFlashcardsByNote(ctx context.Context, noteID string) (int, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&flashcardRecord{}).Where("note_id = ?", noteID).Count(&count).Error
	return int(count), err
}

func (g *GormStore) GetNote(ctx context.Context, id string) (*model.Note, error) {
	var record noteRecord
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	var pageIDs []string
	err = g.db.WithContext(ctx).Model(&pageRecord{}).Where("note_id = ?", id).
		Order("page_number asc").Pluck("id", &pageIDs).Error
	if err != nil {
		return nil, err
	}

	note := noteFromRecord(&record, pageIDs)
	return &note, nil
}

func (g *GormStore) CreateNote(ctx context.Context, note *model.Note) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}

	record := &noteRecord{
		ID:               note.ID,
		Title:            note.Title,
		FlashcardCount:   note.FlashcardCount,
		HighlightedTerms: datatypes.JSONSlice[string](note.HighlightedTerms),
	}
	if err := g.db.WithContext(ctx).Create(record).Error; err != nil {
		return err
	}

	note.UpdatedAt = record.UpdatedAt
	return nil
}

func (g *GormStore) ListNotes(ctx context.Context, since time.Time) ([]model.Note, error) {
	query := g.db.WithContext(ctx).Order("updated_at desc")
	if !since.IsZero() {
		query = query.Where("updated_at >= ?", since)
	}

	var records []*noteRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	notes := make([]model.Note, 0, len(records))
	for _, r := range records {
		notes = append(notes, noteFromRecord(r, nil))
	}
	return notes, nil
}

func (g *GormStore) UpdateNoteFlashcardCount(ctx context.Context, noteID string, count int) error {
	res := g.db.WithContext(ctx).Model(&noteRecord{}).Where("id = ?", noteID).Updates(map[string]any{
		"flashcard_count": count,
		"updated_at":      time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("note %s: %w", noteID, ErrNotFound)
	}

	return nil
}

func (g *GormStore) RecountFlashcards(ctx context.Context, noteID string) (int, error) {
	var count int
	err := g.Transaction(ctx, func(tx Store) error {
		n, err := tx.CountFlashcardsByNote(ctx, noteID)
		if err != nil {
			return err
		}
		if err := tx.UpdateNoteFlashcardCount(ctx, noteID, n); err != nil {
			return err
		}
		count = n
		return nil
	})

	return count, err
}

func (g *GormStore) RemoveHighlightedTerm(ctx context.Context, noteID, term string) (bool, error) {
	removed := false
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record noteRecord
		if err := tx.Where("id = ?", noteID).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("note %s: %w", noteID, ErrNotFound)
			}
			return err
		}

		note := noteFromRecord(&record, nil)
		terms, found := note.WithoutHighlight(term)
		if !found {
			return nil
		}

		logrus.Infof("removing highlighted term %q from note %s", term, noteID)
		removed = true
		return tx.Model(&noteRecord{}).Where("id = ?", noteID).Updates(map[string]any{
			"highlighted_terms": datatypes.JSONSlice[string](terms),
			"updated_at":        time.Now(),
		}).Error
	})

	return removed, err
}

func (g *GormStore) Migrate() error {
	return Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
