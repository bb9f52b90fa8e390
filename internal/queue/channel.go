package queue

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// ChannelPublisher delivers events to an in-process buffered channel. Events
// are dropped when the buffer is full.
type ChannelPublisher struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

var _ Publisher = (*ChannelPublisher)(nil)

func NewChannelPublisher(size int) *ChannelPublisher {
	return &ChannelPublisher{ch: make(chan Event, size)}
}

// Events returns the channel consumers read from. It is closed by Close.
func (c *ChannelPublisher) Events() <-chan Event {
	return c.ch
}

func (c *ChannelPublisher) Publish(ctx context.Context, event Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClosed
	}

	select {
	case c.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		logrus.WithFields(logrus.Fields{"kind": event.Kind, "note_id": event.NoteID}).Warn("event queue is full, dropping event")
		return ErrQueueFull
	}
}

func (c *ChannelPublisher) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
	return nil
}

// Drain calls fn for every event until the publisher is closed or ctx is done.
func Drain(ctx context.Context, events <-chan Event, fn func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			fn(e)
		}
	}
}
