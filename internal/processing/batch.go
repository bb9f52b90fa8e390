package processing

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/emrgen/notecache/internal/model"
	"github.com/sirupsen/logrus"
)

// Session scopes the callbacks of a batch to one consumer, typically a reader
// view. Closing it stops callbacks but never stops the background work.
type Session struct {
	closed atomic.Bool
}

func NewSession() *Session {
	return &Session{}
}

// Active reports whether the session is still open.
func (s *Session) Active() bool {
	return s != nil && !s.closed.Load()
}

// Close marks the session inactive. It is safe to call more than once.
func (s *Session) Close() {
	s.closed.Store(true)
}

// PageResult is the outcome of processing one page of a batch.
type PageResult struct {
	PageID string
	Text   *model.ProcessedText
	Err    error
}

// PageFunc receives each finished page of a batch while its session is active.
type PageFunc func(PageResult)

type listener struct {
	session *Session
	fn      PageFunc
}

// Batch walks the pages of one note sequentially in the background.
type Batch struct {
	noteID string
	done   chan struct{}

	mu        sync.Mutex
	results   []PageResult
	listeners []listener
}

func newBatch(noteID string) *Batch {
	return &Batch{noteID: noteID, done: make(chan struct{})}
}

// Done is closed once every page of the batch has been visited.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch finishes or ctx is done and returns the results
// gathered so far.
func (b *Batch) Wait(ctx context.Context) ([]PageResult, error) {
	select {
	case <-b.done:
		return b.Results(), nil
	case <-ctx.Done():
		return b.Results(), ctx.Err()
	}
}

// Results returns a copy of the per-page results collected so far, in page order.
func (b *Batch) Results() []PageResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]PageResult, len(b.results))
	copy(out, b.results)
	return out
}

func (b *Batch) subscribe(session *Session, fn PageFunc) {
	if fn == nil {
		return
	}

	b.mu.Lock()
	b.listeners = append(b.listeners, listener{session: session, fn: fn})
	b.mu.Unlock()
}

func (b *Batch) record(res PageResult) {
	b.mu.Lock()
	b.results = append(b.results, res)
	listeners := make([]listener, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	for _, l := range listeners {
		if l.session.Active() {
			l.fn(res)
		}
	}
}

// StartBatch processes pages one at a time, in order, in a single background
// goroutine. While a batch for the same note is still running, the running
// batch is returned and onPage is attached to it instead of starting a second
// walk. Cancelling ctx stops the walk after the current page.
func (t *Tracker) StartBatch(ctx context.Context, session *Session, noteID string, pages []model.Page, onPage PageFunc) *Batch {
	t.mu.Lock()
	if running, ok := t.batches[noteID]; ok {
		t.mu.Unlock()
		running.subscribe(session, onPage)
		return running
	}
	b := newBatch(noteID)
	b.subscribe(session, onPage)
	t.batches[noteID] = b
	t.mu.Unlock()

	pages = append([]model.Page(nil), pages...)
	go t.walk(ctx, b, pages)

	return b
}

func (t *Tracker) walk(ctx context.Context, b *Batch, pages []model.Page) {
	defer func() {
		t.mu.Lock()
		if t.batches[b.noteID] == b {
			delete(t.batches, b.noteID)
		}
		t.mu.Unlock()
		close(b.done)
	}()

	for _, page := range pages {
		if ctx.Err() != nil {
			logrus.WithField("note_id", b.noteID).Debugf("processing batch stopped: %v", ctx.Err())
			return
		}

		pt, err := t.Process(ctx, page)
		b.record(PageResult{PageID: page.ID, Text: pt, Err: err})
	}
}
