package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/emrgen/notecache/internal/cache"
	"github.com/emrgen/notecache/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu      sync.Mutex
	calls   []string
	active  int
	overlap bool
	release chan struct{}
	result  func(model.Page) (*model.ProcessedText, error)
}

func (f *fakeProcessor) ProcessPageText(ctx context.Context, page model.Page) (*model.ProcessedText, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page.ID)
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.release != nil {
		<-f.release
	}
	if f.result != nil {
		return f.result(page)
	}
	return segmented(page.ID), nil
}

func (f *fakeProcessor) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func segmented(pageID string) *model.ProcessedText {
	return &model.ProcessedText{
		PageID:           pageID,
		FullOriginalText: "你好。",
		Segments:         []model.TextSegment{{OriginalText: "你好。", TranslatedText: "Hello."}},
	}
}

func newCache() *cache.NoteCache {
	return cache.NewNoteCache(cache.NewMemoryStore(), nil)
}

func TestTracker_ProcessStoresResult(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{}
	nc := newCache()
	tr := NewTracker(proc, Options{Cache: nc})

	assert.Equal(t, Unknown, tr.Status(ctx, "p1"))

	pt, err := tr.Process(ctx, model.Page{ID: "p1"})
	require.NoError(t, err)
	assert.Len(t, pt.Segments, 1)
	assert.Equal(t, Done, tr.Status(ctx, "p1"))

	// second call is served from memory
	_, err = tr.Process(ctx, model.Page{ID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, proc.Calls())

	cached, err := nc.GetProcessedText(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, pt, cached)
}

func TestTracker_CachedResultSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	nc := newCache()
	require.NoError(t, nc.CacheProcessedText(ctx, segmented("p1")))

	proc := &fakeProcessor{}
	tr := NewTracker(proc, Options{Cache: nc})

	assert.Equal(t, Done, tr.Status(ctx, "p1"))
	_, err := tr.Process(ctx, model.Page{ID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, proc.Calls())
}

func TestTracker_EmptySegmentsAreUnknown(t *testing.T) {
	ctx := context.Background()
	nc := newCache()
	require.NoError(t, nc.CacheProcessedText(ctx, &model.ProcessedText{PageID: "p1", Segments: []model.TextSegment{}}))

	tr := NewTracker(&fakeProcessor{}, Options{Cache: nc})
	assert.Equal(t, Unknown, tr.Status(ctx, "p1"))

	tr.Replace(ctx, &model.ProcessedText{PageID: "p2"})
	assert.Equal(t, Unknown, tr.Status(ctx, "p2"))
}

func TestTracker_DegenerateResultsAreCapped(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{result: func(p model.Page) (*model.ProcessedText, error) {
		return &model.ProcessedText{PageID: p.ID}, nil
	}}
	tr := NewTracker(proc, Options{MaxAttempts: 2})

	_, err := tr.Process(ctx, model.Page{ID: "p1"})
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.Equal(t, Unknown, tr.Status(ctx, "p1"))

	_, err = tr.Process(ctx, model.Page{ID: "p1"})
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.Equal(t, Failed, tr.Status(ctx, "p1"))

	_, err = tr.Process(ctx, model.Page{ID: "p1"})
	assert.ErrorIs(t, err, ErrGaveUp)
	assert.Len(t, proc.Calls(), 2)

	tr.Reset(ctx, "p1")
	assert.Equal(t, Unknown, tr.Status(ctx, "p1"))
	_, err = tr.Process(ctx, model.Page{ID: "p1"})
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.Len(t, proc.Calls(), 3)
}

func TestTracker_ProcessorErrorCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("model overloaded")
	proc := &fakeProcessor{result: func(model.Page) (*model.ProcessedText, error) { return nil, boom }}
	tr := NewTracker(proc, Options{MaxAttempts: 1})

	_, err := tr.Process(ctx, model.Page{ID: "p1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Failed, tr.Status(ctx, "p1"))
}

func TestTracker_CancelledCallIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	proc := &fakeProcessor{result: func(model.Page) (*model.ProcessedText, error) {
		cancel()
		return nil, ctx.Err()
	}}
	tr := NewTracker(proc, Options{MaxAttempts: 1})

	_, err := tr.Process(ctx, model.Page{ID: "p1"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Unknown, tr.Status(context.Background(), "p1"))

	proc.result = nil
	pt, err := tr.Process(context.Background(), model.Page{ID: "p1"})
	require.NoError(t, err)
	assert.Len(t, pt.Segments, 1)
}

func TestTracker_PageNotReady(t *testing.T) {
	proc := &fakeProcessor{}
	tr := NewTracker(proc, Options{})

	_, err := tr.Process(context.Background(), model.Page{ID: "p1", OriginalText: model.ProcessingSentinel})
	assert.ErrorIs(t, err, ErrPageNotReady)
	assert.Empty(t, proc.Calls())
	assert.Equal(t, Unknown, tr.Status(context.Background(), "p1"))
}

func TestTracker_NoDoubleScheduling(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{release: make(chan struct{})}
	tr := NewTracker(proc, Options{})

	first := make(chan error, 1)
	go func() {
		_, err := tr.Process(ctx, model.Page{ID: "p1"})
		first <- err
	}()

	require.Eventually(t, func() bool {
		return tr.Status(ctx, "p1") == Processing
	}, time.Second, 5*time.Millisecond)

	_, err := tr.Process(ctx, model.Page{ID: "p1"})
	assert.ErrorIs(t, err, ErrInFlight)

	close(proc.release)
	require.NoError(t, <-first)
	assert.Equal(t, []string{"p1"}, proc.Calls())
}

func TestTracker_BatchIsSequential(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{}
	tr := NewTracker(proc, Options{})

	pages := []model.Page{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}

	var mu sync.Mutex
	var seen []string
	b := tr.StartBatch(ctx, NewSession(), "n1", pages, func(r PageResult) {
		mu.Lock()
		seen = append(seen, r.PageID)
		mu.Unlock()
	})

	results, err := b.Wait(ctx)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, []string{"p1", "p2", "p3"}, proc.Calls())
	assert.False(t, proc.overlap)

	mu.Lock()
	assert.Equal(t, []string{"p1", "p2", "p3"}, seen)
	mu.Unlock()

	for _, p := range pages {
		assert.Equal(t, Done, tr.Status(ctx, p.ID))
	}
}

func TestTracker_ClosedSessionGetsNoCallbacks(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{release: make(chan struct{})}
	tr := NewTracker(proc, Options{})

	session := NewSession()
	called := false
	b := tr.StartBatch(ctx, session, "n1", []model.Page{{ID: "p1"}, {ID: "p2"}}, func(PageResult) {
		called = true
	})

	session.Close()
	session.Close()
	close(proc.release)

	results, err := b.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, called)
	// work continues after the session is closed
	assert.Len(t, results, 2)
	assert.Equal(t, Done, tr.Status(ctx, "p2"))
}

func TestTracker_SecondBatchJoinsRunningOne(t *testing.T) {
	ctx := context.Background()
	proc := &fakeProcessor{release: make(chan struct{})}
	tr := NewTracker(proc, Options{})
	pages := []model.Page{{ID: "p1"}, {ID: "p2"}}

	first := tr.StartBatch(ctx, NewSession(), "n1", pages, nil)

	var mu sync.Mutex
	var joined []string
	second := tr.StartBatch(ctx, NewSession(), "n1", pages, func(r PageResult) {
		mu.Lock()
		joined = append(joined, r.PageID)
		mu.Unlock()
	})
	assert.Same(t, first, second)

	close(proc.release)
	<-first.Done()

	assert.Equal(t, []string{"p1", "p2"}, proc.Calls())
	mu.Lock()
	assert.Equal(t, []string{"p1", "p2"}, joined)
	mu.Unlock()
}

func TestTracker_BatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := &fakeProcessor{}
	tr := NewTracker(proc, Options{})
	b := tr.StartBatch(ctx, NewSession(), "n1", []model.Page{{ID: "p1"}}, nil)

	<-b.Done()
	assert.Empty(t, proc.Calls())
	assert.Empty(t, b.Results())
}

func TestSegmenter(t *testing.T) {
	s := &Segmenter{}
	pt, err := s.ProcessPageText(context.Background(), model.Page{
		ID:             "p1",
		OriginalText:   "你好。我是学生！\n谢谢",
		TranslatedText: "Hello. I am a student!",
	})
	require.NoError(t, err)

	assert.True(t, pt.Complete())
	assert.Equal(t, []model.TextSegment{
		{OriginalText: "你好。", TranslatedText: "Hello."},
		{OriginalText: "我是学生！", TranslatedText: "I am a student!"},
		{OriginalText: "谢谢"},
	}, pt.Segments)
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "   ", want: nil},
		{in: "one", want: []string{"one"}},
		{in: "One. Two? Three!", want: []string{"One.", "Two?", "Three!"}},
		{in: "第一行\n第二行", want: []string{"第一行", "第二行"}},
		{in: "真的？？", want: []string{"真的？", "？"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSentences(tt.in))
		})
	}
}
