package counter

import (
	"context"
	"errors"
	"testing"

	"github.com/emrgen/notecache/internal/cache"
	"github.com/emrgen/notecache/internal/model"
	"github.com/emrgen/notecache/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	count    int
	countErr error
	writeErr error
	written  map[string]int
}

func (f *fakeRemote) CountFlashcardsByNote(ctx context.Context, noteID string) (int, error) {
	return f.count, f.countErr
}

func (f *fakeRemote) UpdateNoteFlashcardCount(ctx context.Context, noteID string, count int) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	if f.written == nil {
		f.written = make(map[string]int)
	}
	f.written[noteID] = count
	return nil
}

type brokenLocal struct {
	*cache.NoteCache
}

func (brokenLocal) CacheNoteMetadata(ctx context.Context, noteID string, note *model.Note) error {
	return cache.ErrCacheUnavailable
}

func steps(res Result) map[string]error {
	out := make(map[string]error)
	for _, s := range res.Steps {
		out[s.Step] = s.Err
	}
	return out
}

func TestSync_PropagatesEverywhere(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{count: 3}
	local := cache.NewNoteCache(cache.NewMemoryStore(), nil)
	require.NoError(t, local.CacheNoteMetadata(ctx, "n1", &model.Note{ID: "n1", Title: "Lesson 1", FlashcardCount: 1}))

	pub := queue.NewChannelPublisher(4)
	s := NewSynchronizer(remote, local, Options{Publisher: pub})

	var notified []int
	s.OnChange(func(noteID string, count int) { notified = append(notified, count) })

	res := s.Sync(ctx, "n1")
	assert.True(t, res.Counted)
	assert.Equal(t, 3, res.Count)
	assert.Empty(t, res.Failed())

	assert.Equal(t, 3, remote.written["n1"])
	note, err := local.GetNoteMetadata(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, 3, note.FlashcardCount)
	assert.Equal(t, "Lesson 1", note.Title)
	assert.Equal(t, []int{3}, notified)

	e := <-pub.Events()
	assert.Equal(t, queue.KindFlashcardCount, e.Kind)
	assert.Equal(t, 3, e.Count)
}

func TestSync_CreatesMissingMetadata(t *testing.T) {
	ctx := context.Background()
	local := cache.NewNoteCache(cache.NewMemoryStore(), nil)
	s := NewSynchronizer(&fakeRemote{count: 0}, local, Options{})

	s.Sync(ctx, "n1")

	note, err := local.GetNoteMetadata(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, note)
	assert.Equal(t, 0, note.FlashcardCount)
}

func TestSync_RemoteWriteFailureDoesNotStopLocal(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{count: 2, writeErr: errors.New("unavailable")}
	local := cache.NewNoteCache(cache.NewMemoryStore(), nil)
	s := NewSynchronizer(remote, local, Options{})

	res := s.Sync(ctx, "n1")
	got := steps(res)
	assert.Error(t, got[StepRemote])
	assert.NoError(t, got[StepLocal])

	note, err := local.GetNoteMetadata(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, 2, note.FlashcardCount)
}

func TestSync_LocalFailureDoesNotStopListeners(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{count: 0}
	local := brokenLocal{cache.NewNoteCache(cache.NewMemoryStore(), nil)}
	s := NewSynchronizer(remote, local, Options{})

	called := false
	s.OnChange(func(string, int) { called = true })

	res := s.Sync(ctx, "n1")
	got := steps(res)
	assert.ErrorIs(t, got[StepLocal], cache.ErrCacheUnavailable)
	assert.Equal(t, 0, remote.written["n1"])
	assert.True(t, called)
}

func TestSync_FallsBackToCachedCards(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{countErr: errors.New("timeout")}
	local := cache.NewNoteCache(cache.NewMemoryStore(), nil)
	require.NoError(t, local.CacheFlashcards(ctx, "n1", []model.FlashCard{
		{ID: "c1", NoteID: "n1", Front: "书"},
		{ID: "c2", NoteID: "n1", Front: "水"},
	}))

	res := NewSynchronizer(remote, local, Options{}).Sync(ctx, "n1")
	assert.True(t, res.Counted)
	assert.Equal(t, 2, res.Count)
}

func TestSync_CountFailureSkipsPropagation(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{countErr: errors.New("timeout")}
	local := brokenCounts{cache.NewNoteCache(cache.NewMemoryStore(), nil)}

	res := NewSynchronizer(remote, local, Options{}).Sync(ctx, "n1")
	assert.False(t, res.Counted)
	assert.Len(t, res.Steps, 1)
	assert.Nil(t, remote.written)
}

type brokenCounts struct {
	*cache.NoteCache
}

func (brokenCounts) GetFlashcards(ctx context.Context, noteID string) ([]model.FlashCard, error) {
	return nil, cache.ErrCacheUnavailable
}
