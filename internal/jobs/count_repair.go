package jobs

import (
	"context"
	"time"

	"github.com/emrgen/notecache/internal/counter"
	"github.com/emrgen/notecache/internal/model"
	"github.com/sirupsen/logrus"
)

// NoteLister lists notes updated at or after since. A zero since lists all notes.
type NoteLister interface {
	ListNotes(ctx context.Context, since time.Time) ([]model.Note, error)
}

// CountRepairTask recounts the flashcards of every note and propagates the
// result, repairing counts that a failed propagation left stale.
type CountRepairTask struct {
	schedule string
	notes    NoteLister
	sync     *counter.Synchronizer
}

var _ CronJob = (*CountRepairTask)(nil)

func NewCountRepairTask(schedule string, notes NoteLister, sync *counter.Synchronizer) *CountRepairTask {
	return &CountRepairTask{schedule: schedule, notes: notes, sync: sync}
}

func (c *CountRepairTask) Name() string {
	return "count_repair"
}

func (c *CountRepairTask) Schedule() string {
	return c.schedule
}

func (c *CountRepairTask) Run(ctx context.Context) {
	notes, err := c.notes.ListNotes(ctx, time.Time{})
	if err != nil {
		logrus.Errorf("count repair: list notes: %v", err)
		return
	}

	repaired, failed := 0, 0
	for _, note := range notes {
		if ctx.Err() != nil {
			return
		}

		res := c.sync.Sync(ctx, note.ID)
		switch {
		case len(res.Failed()) > 0:
			failed++
		case res.Counted && res.Count != note.FlashcardCount:
			logrus.WithField("note_id", note.ID).Infof("flashcard count repaired %d -> %d", note.FlashcardCount, res.Count)
			repaired++
		}
	}

	logrus.Infof("count repair: %d notes, %d repaired, %d with failed steps", len(notes), repaired, failed)
}
