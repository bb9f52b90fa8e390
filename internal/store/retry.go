package store

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/emrgen/notecache/internal/model"
	"github.com/sirupsen/logrus"
)

var _ Gateway = (*RetryGateway)(nil)

// RetryGateway retries the read calls of a Gateway on transient failures.
// Writes go through once: a retried create may duplicate a flashcard.
type RetryGateway struct {
	Gateway
	attempts uint
	delay    time.Duration
}

// WithRetry wraps g so reads are attempted up to attempts times.
func WithRetry(g Gateway, attempts uint, delay time.Duration) *RetryGateway {
	if attempts == 0 {
		attempts = 1
	}
	return &RetryGateway{Gateway: g, attempts: attempts, delay: delay}
}

func (r *RetryGateway) FetchPagesByNote(ctx context.Context, noteID string) ([]model.Page, error) {
	return retryRead(ctx, r, "fetch pages", func() ([]model.Page, error) {
		return r.Gateway.FetchPagesByNote(ctx, noteID)
	})
}

func (r *RetryGateway) FetchFlashcardsByNote(ctx context.Context, noteID string) ([]model.FlashCard, error) {
	return retryRead(ctx, r, "fetch flashcards", func() ([]model.FlashCard, error) {
		return r.Gateway.FetchFlashcardsByNote(ctx, noteID)
	})
}

func (r *RetryGateway) GetFlashcard(ctx context.Context, id string) (*model.FlashCard, error) {
	return retryRead(ctx, r, "get flashcard", func() (*model.FlashCard, error) {
		return r.Gateway.GetFlashcard(ctx, id)
	})
}

func (r *RetryGateway) CountFlashcardsByNote(ctx context.Context, noteID string) (int, error) {
	return retryRead(ctx, r, "count flashcards", func() (int, error) {
		return r.Gateway.CountFlashcardsByNote(ctx, noteID)
	})
}

func (r *RetryGateway) GetNote(ctx context.Context, id string) (*model.Note, error) {
	return retryRead(ctx, r, "get note", func() (*model.Note, error) {
		return r.Gateway.GetNote(ctx, id)
	})
}

func (r *RetryGateway) ListNotes(ctx context.Context, since time.Time) ([]model.Note, error) {
	return retryRead(ctx, r, "list notes", func() ([]model.Note, error) {
		return r.Gateway.ListNotes(ctx, since)
	})
}

func retryRead[T any](ctx context.Context, r *RetryGateway, op string, fn func() (T, error)) (T, error) {
	return retry.DoWithData(fn,
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(r.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
		}),
		retry.OnRetry(func(n uint, err error) {
			logrus.Warnf("%s failed (attempt %d/%d): %v", op, n+1, r.attempts, err)
		}),
	)
}
