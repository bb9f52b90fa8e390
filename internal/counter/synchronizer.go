// Package counter keeps the denormalized flashcard count of a note in step
// with the flashcards that reference it.
//
// Propagation is a sequence of independent steps: the remote note field, the
// cached note metadata, registered listeners and the event queue. A failing
// step is logged and the remaining steps still run. There is no rollback; a
// later full reload of the note repairs whatever a failed step left behind.
package counter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emrgen/notecache/internal/model"
	"github.com/emrgen/notecache/internal/queue"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a whole Sync run.
const DefaultTimeout = 10 * time.Second

// Step names, as they appear in logs and results.
const (
	StepCount     = "count"
	StepRemote    = "remote"
	StepLocal     = "local"
	StepListeners = "listeners"
	StepPublish   = "publish"
)

// RemoteNotes is the part of the remote store the synchronizer writes to.
type RemoteNotes interface {
	CountFlashcardsByNote(ctx context.Context, noteID string) (int, error)
	UpdateNoteFlashcardCount(ctx context.Context, noteID string, count int) error
}

// LocalNotes is the part of the local cache the synchronizer writes to.
type LocalNotes interface {
	GetFlashcards(ctx context.Context, noteID string) ([]model.FlashCard, error)
	GetNoteMetadata(ctx context.Context, noteID string) (*model.Note, error)
	CacheNoteMetadata(ctx context.Context, noteID string, note *model.Note) error
}

// Listener is told the new count of a note so in-memory copies can be updated.
type Listener func(noteID string, count int)

// StepResult is the outcome of one propagation step. Err is nil on success.
type StepResult struct {
	Step string
	Err  error
}

// Result reports what a Sync run did.
type Result struct {
	NoteID  string
	Count   int
	Counted bool
	Steps   []StepResult
}

// Failed returns the steps that did not succeed.
func (r Result) Failed() []StepResult {
	var failed []StepResult
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

type Options struct {
	// Timeout bounds a Sync run. Zero means DefaultTimeout.
	Timeout time.Duration
	// Publisher receives a count event after each run. Nil disables publishing.
	Publisher queue.Publisher
}

type Synchronizer struct {
	remote    RemoteNotes
	local     LocalNotes
	publisher queue.Publisher
	timeout   time.Duration

	mu        sync.RWMutex
	listeners []Listener
}

func NewSynchronizer(remote RemoteNotes, local LocalNotes, opts Options) *Synchronizer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Synchronizer{
		remote:    remote,
		local:     local,
		publisher: opts.Publisher,
		timeout:   opts.Timeout,
	}
}

// OnChange registers a listener called after every successful recount.
func (s *Synchronizer) OnChange(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Sync recounts the flashcards of a note and propagates the count. It never
// fails: step errors are logged and reported in the result.
func (s *Synchronizer) Sync(ctx context.Context, noteID string) Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res := Result{NoteID: noteID}
	log := logrus.WithField("note_id", noteID)

	count, err := s.count(ctx, noteID)
	res.Steps = append(res.Steps, StepResult{Step: StepCount, Err: err})
	if err != nil {
		log.WithField("step", StepCount).Warnf("flashcard recount failed: %v", err)
		return res
	}
	res.Count = count
	res.Counted = true

	steps := []struct {
		name string
		run  func(context.Context, string, int) error
	}{
		{StepRemote, s.remote.UpdateNoteFlashcardCount},
		{StepLocal, s.updateLocal},
		{StepListeners, s.notify},
		{StepPublish, s.publish},
	}
	for _, step := range steps {
		err := step.run(ctx, noteID, count)
		res.Steps = append(res.Steps, StepResult{Step: step.name, Err: err})
		if err != nil {
			log.WithFields(logrus.Fields{"step": step.name, "count": count}).
				Warnf("flashcard count propagation failed: %v", err)
		}
	}

	log.WithField("count", count).Debug("flashcard count synced")
	return res
}

func (s *Synchronizer) count(ctx context.Context, noteID string) (int, error) {
	count, err := s.remote.CountFlashcardsByNote(ctx, noteID)
	if err == nil {
		return count, nil
	}

	cards, cacheErr := s.local.GetFlashcards(ctx, noteID)
	if cacheErr != nil {
		return 0, fmt.Errorf("remote: %w; local: %v", err, cacheErr)
	}

	logrus.WithField("note_id", noteID).Warnf("remote recount failed, using cached flashcards: %v", err)
	return len(cards), nil
}

func (s *Synchronizer) updateLocal(ctx context.Context, noteID string, count int) error {
	note, err := s.local.GetNoteMetadata(ctx, noteID)
	if err != nil {
		return err
	}
	if note == nil {
		note = &model.Note{ID: noteID, PageIDs: []string{}, HighlightedTerms: []string{}}
	}

	note.FlashcardCount = count
	return s.local.CacheNoteMetadata(ctx, noteID, note)
}

func (s *Synchronizer) notify(_ context.Context, noteID string, count int) error {
	s.mu.RLock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(noteID, count)
	}
	return nil
}

func (s *Synchronizer) publish(ctx context.Context, noteID string, count int) error {
	if s.publisher == nil {
		return nil
	}

	return s.publisher.Publish(ctx, queue.Event{
		Kind:   queue.KindFlashcardCount,
		NoteID: noteID,
		Count:  count,
		At:     time.Now().UTC(),
	})
}
