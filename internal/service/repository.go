package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/notecache/internal/counter"
	"github.com/emrgen/notecache/internal/model"
	"github.com/emrgen/notecache/internal/processing"
	"github.com/emrgen/notecache/internal/queue"
	"github.com/emrgen/notecache/internal/store"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// LocalCache is the typed cache boundary the repository reads and writes.
// *cache.NoteCache implements it.
type LocalCache interface {
	counter.LocalNotes
	processing.ResultCache

	CachePages(ctx context.Context, noteID string, pages []model.Page) error
	GetPages(ctx context.Context, noteID string) ([]model.Page, error)
	PutPage(ctx context.Context, page *model.Page) error

	CacheFlashcards(ctx context.Context, noteID string, cards []model.FlashCard) error
	GetFlashcard(ctx context.Context, id string) (*model.FlashCard, error)
	PutFlashcard(ctx context.Context, card *model.FlashCard) error
	RemoveFlashcard(ctx context.Context, noteID, id string) error
}

// Options carries the collaborators of a Repository. Gateway and Cache are
// required; the rest get defaults built on top of them.
type Options struct {
	Gateway   store.Gateway
	Cache     LocalCache
	Tracker   *processing.Tracker
	Counter   *counter.Synchronizer
	Publisher queue.Publisher
	Now       func() time.Time
}

// Repository is the single entry point for loading and mutating notes, pages
// and flashcards. Remote failures on primary operations are returned; cache
// failures and secondary propagation failures are logged and swallowed.
type Repository struct {
	gateway   store.Gateway
	cache     LocalCache
	tracker   *processing.Tracker
	counter   *counter.Synchronizer
	publisher queue.Publisher
	now       func() time.Time

	group singleflight.Group
	// ids of cards deleted remotely whose cache entry could not be removed
	deleted mapset.Set[string]
}

func NewRepository(opts Options) *Repository {
	if opts.Publisher == nil {
		opts.Publisher = queue.Nop{}
	}
	if opts.Tracker == nil {
		opts.Tracker = processing.NewTracker(&processing.Segmenter{}, processing.Options{Cache: opts.Cache})
	}
	if opts.Counter == nil {
		opts.Counter = counter.NewSynchronizer(opts.Gateway, opts.Cache, counter.Options{Publisher: opts.Publisher})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Repository{
		gateway:   opts.Gateway,
		cache:     opts.Cache,
		tracker:   opts.Tracker,
		counter:   opts.Counter,
		publisher: opts.Publisher,
		now:       opts.Now,
		deleted:   mapset.NewSet[string](),
	}
}

// Tracker returns the processing tracker used by the repository.
func (r *Repository) Tracker() *processing.Tracker {
	return r.tracker
}

// OnCountChange registers fn to receive every recomputed flashcard count.
func (r *Repository) OnCountChange(fn counter.Listener) {
	r.counter.OnChange(fn)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrValidation, field)
	}
	return nil
}

// remoteFailed wraps a remote store error, mapping a missing id to ErrNotFound.
func remoteFailed(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w: %v", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// cacheFailed logs a local cache failure. The call goes on as if the cache were empty.
func cacheFailed(log *logrus.Entry, step string, err error) {
	if err == nil {
		return
	}
	log.WithField("step", step).Warnf("%v: %v", ErrTransientCache, err)
}

func (r *Repository) publish(ctx context.Context, event queue.Event) {
	event.At = r.now().UTC()
	if err := r.publisher.Publish(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{"kind": event.Kind, "note_id": event.NoteID}).Warnf("publish event: %v", err)
	}
}
