package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPublisher(t *testing.T) {
	ctx := context.Background()
	p := NewChannelPublisher(1)

	require.NoError(t, p.Publish(ctx, Event{Kind: KindFlashcardCount, NoteID: "n1", Count: 2}))
	assert.ErrorIs(t, p.Publish(ctx, Event{Kind: KindFlashcardCount, NoteID: "n1"}), ErrQueueFull)

	e := <-p.Events()
	assert.Equal(t, "n1", e.NoteID)
	assert.Equal(t, 2, e.Count)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.ErrorIs(t, p.Publish(ctx, Event{}), ErrClosed)
}

func TestDrain(t *testing.T) {
	p := NewChannelPublisher(3)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, p.Publish(context.Background(), Event{NoteID: id}))
	}
	require.NoError(t, p.Close())

	var got []string
	Drain(context.Background(), p.Events(), func(e Event) {
		got = append(got, e.NoteID)
	})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	assert.NoError(t, p.Close())
}
