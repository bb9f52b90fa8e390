package jobs

import (
	"context"
	"time"

	"github.com/emrgen/notecache/internal/model"
	"github.com/sirupsen/logrus"
)

// Loader reloads a note's pages and flashcards through the repository so the
// local cache holds their reconciled state.
type Loader interface {
	LoadPages(ctx context.Context, noteID string, forceRefresh bool) ([]model.Page, error)
	LoadFlashcards(ctx context.Context, noteID string) ([]model.FlashCard, error)
}

// CacheWarmTask force-reloads notes updated within the last window.
type CacheWarmTask struct {
	schedule string
	window   time.Duration
	notes    NoteLister
	loader   Loader
	now      func() time.Time
}

var _ CronJob = (*CacheWarmTask)(nil)

func NewCacheWarmTask(schedule string, window time.Duration, notes NoteLister, loader Loader) *CacheWarmTask {
	return &CacheWarmTask{
		schedule: schedule,
		window:   window,
		notes:    notes,
		loader:   loader,
		now:      time.Now,
	}
}

func (c *CacheWarmTask) Name() string {
	return "cache_warm"
}

func (c *CacheWarmTask) Schedule() string {
	return c.schedule
}

func (c *CacheWarmTask) Run(ctx context.Context) {
	since := c.now().Add(-c.window)
	notes, err := c.notes.ListNotes(ctx, since)
	if err != nil {
		logrus.Errorf("cache warm: list notes updated since %s: %v", since.Format(time.RFC3339), err)
		return
	}

	for _, note := range notes {
		if ctx.Err() != nil {
			return
		}

		log := logrus.WithField("note_id", note.ID)
		if _, err := c.loader.LoadPages(ctx, note.ID, true); err != nil {
			log.Warnf("cache warm: pages: %v", err)
		}
		if _, err := c.loader.LoadFlashcards(ctx, note.ID); err != nil {
			log.Warnf("cache warm: flashcards: %v", err)
		}
	}

	logrus.Debugf("cache warm: reloaded %d notes", len(notes))
}
