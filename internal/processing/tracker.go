package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/notecache/internal/model"
	"github.com/sirupsen/logrus"
)

// DefaultMaxAttempts bounds how often a page that keeps producing empty or
// failed results is processed automatically.
const DefaultMaxAttempts = 3

// Options configures a Tracker.
type Options struct {
	// MaxAttempts is the number of consecutive failures after which a page is
	// reported as Failed. Zero means DefaultMaxAttempts.
	MaxAttempts int
	// Cache, when set, persists results so they survive a restart.
	Cache ResultCache
}

// Tracker records per page whether processed text has been computed, so a
// page is processed at most once per session even across remounts.
type Tracker struct {
	processor   TextProcessor
	cache       ResultCache
	maxAttempts int

	mu       sync.Mutex
	inFlight mapset.Set[string]
	results  map[string]*model.ProcessedText
	failures map[string]int
	batches  map[string]*Batch
}

func NewTracker(processor TextProcessor, opts Options) *Tracker {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	return &Tracker{
		processor:   processor,
		cache:       opts.Cache,
		maxAttempts: opts.MaxAttempts,
		inFlight:    mapset.NewThreadUnsafeSet[string](),
		results:     make(map[string]*model.ProcessedText),
		failures:    make(map[string]int),
		batches:     make(map[string]*Batch),
	}
}

// Status returns the processing state of a page. A held result with no
// segments is degenerate and reported as Unknown.
func (t *Tracker) Status(ctx context.Context, pageID string) Status {
	t.mu.Lock()
	status, known := t.statusLocked(pageID)
	t.mu.Unlock()
	if known {
		return status
	}

	if pt := t.loadCached(ctx, pageID); pt != nil {
		return Done
	}
	return status
}

func (t *Tracker) statusLocked(pageID string) (Status, bool) {
	if t.inFlight.Contains(pageID) {
		return Processing, true
	}
	if t.results[pageID].Complete() {
		return Done, true
	}
	if t.failures[pageID] >= t.maxAttempts {
		return Failed, true
	}
	return Unknown, false
}

// Result returns the held processed text of a page, consulting the cache when
// nothing is held in memory. Degenerate results are returned as they are.
func (t *Tracker) Result(ctx context.Context, pageID string) *model.ProcessedText {
	t.mu.Lock()
	pt, ok := t.results[pageID]
	t.mu.Unlock()
	if ok {
		return pt.Clone()
	}

	return t.loadCached(ctx, pageID).Clone()
}

// Process produces the processed text of a page unless a complete one is
// already held. Concurrent calls for the same page do not schedule twice: the
// second caller gets ErrInFlight.
func (t *Tracker) Process(ctx context.Context, page model.Page) (*model.ProcessedText, error) {
	if page.IsProcessing() {
		return nil, fmt.Errorf("page %s: %w", page.ID, ErrPageNotReady)
	}

	t.mu.Lock()
	if t.inFlight.Contains(page.ID) {
		t.mu.Unlock()
		return nil, fmt.Errorf("page %s: %w", page.ID, ErrInFlight)
	}
	if pt := t.results[page.ID]; pt.Complete() {
		t.mu.Unlock()
		return pt.Clone(), nil
	}
	if t.failures[page.ID] >= t.maxAttempts {
		t.mu.Unlock()
		return nil, fmt.Errorf("page %s: %w", page.ID, ErrGaveUp)
	}
	t.inFlight.Add(page.ID)
	t.mu.Unlock()

	if pt := t.loadCached(ctx, page.ID); pt != nil {
		t.mu.Lock()
		t.inFlight.Remove(page.ID)
		t.mu.Unlock()
		return pt.Clone(), nil
	}

	pt, err := t.processor.ProcessPageText(ctx, page)
	if err == nil && !pt.Complete() {
		err = ErrEmptyResult
	}
	if err != nil {
		// a cancelled caller says nothing about the page
		cancelled := ctx.Err() != nil && errors.Is(err, ctx.Err())

		t.mu.Lock()
		t.inFlight.Remove(page.ID)
		if !cancelled {
			t.failures[page.ID]++
		}
		attempts := t.failures[page.ID]
		t.mu.Unlock()

		logrus.WithFields(logrus.Fields{"page_id": page.ID, "attempt": attempts}).
			Warnf("page processing failed: %v", err)
		return nil, fmt.Errorf("page %s: %w", page.ID, err)
	}

	pt = pt.Clone()
	pt.PageID = page.ID

	t.mu.Lock()
	t.inFlight.Remove(page.ID)
	t.results[page.ID] = pt
	delete(t.failures, page.ID)
	t.mu.Unlock()

	t.store(ctx, pt)
	return pt.Clone(), nil
}

// Replace overwrites the processed text of a page, for edits such as segment
// deletion.
func (t *Tracker) Replace(ctx context.Context, pt *model.ProcessedText) {
	pt = pt.Clone()

	t.mu.Lock()
	t.results[pt.PageID] = pt
	delete(t.failures, pt.PageID)
	t.mu.Unlock()

	t.store(ctx, pt)
}

// Reset forgets everything known about a page so the next access processes it again.
func (t *Tracker) Reset(ctx context.Context, pageID string) {
	t.mu.Lock()
	delete(t.results, pageID)
	delete(t.failures, pageID)
	t.mu.Unlock()

	if t.cache == nil {
		return
	}
	if err := t.cache.RemoveProcessedText(ctx, pageID); err != nil {
		logrus.WithField("page_id", pageID).Warnf("remove cached processed text: %v", err)
	}
}

func (t *Tracker) loadCached(ctx context.Context, pageID string) *model.ProcessedText {
	if t.cache == nil {
		return nil
	}

	pt, err := t.cache.GetProcessedText(ctx, pageID)
	if err != nil {
		logrus.WithField("page_id", pageID).Warnf("read cached processed text: %v", err)
		return nil
	}
	if !pt.Complete() {
		return nil
	}

	t.mu.Lock()
	if _, ok := t.results[pageID]; !ok {
		t.results[pageID] = pt
	}
	t.mu.Unlock()
	return pt
}

func (t *Tracker) store(ctx context.Context, pt *model.ProcessedText) {
	if t.cache == nil {
		return
	}
	if err := t.cache.CacheProcessedText(ctx, pt); err != nil {
		logrus.WithField("page_id", pt.PageID).Warnf("cache processed text: %v", err)
	}
}
