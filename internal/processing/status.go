package processing

import (
	"context"
	"errors"

	"github.com/emrgen/notecache/internal/model"
)

// Status is the processing state of one page.
type Status int

const (
	// Unknown means no usable processed text exists; the next access processes the page.
	Unknown Status = iota
	// Processing means a call to the text processor is in flight.
	Processing
	// Done means a complete processed text is held for the page.
	Done
	// Failed means the page failed MaxAttempts times in a row and is no longer
	// processed automatically until Reset.
	Failed
)

func (s Status) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case Processing:
		return "processing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

var (
	// ErrInFlight is returned when the page is already being processed.
	ErrInFlight = errors.New("page is already being processed")
	// ErrPageNotReady is returned for pages whose captured text is not available yet.
	ErrPageNotReady = errors.New("page text is not ready")
	// ErrEmptyResult is returned when the processor returned nothing or a degenerate result.
	ErrEmptyResult = errors.New("processor returned an empty result")
	// ErrGaveUp is returned once a page has reached the attempt limit.
	ErrGaveUp = errors.New("page processing gave up after repeated failures")
)

// TextProcessor turns a page into processed text. It is a black box: the
// tracker only reacts to success, empty results and errors.
type TextProcessor interface {
	ProcessPageText(ctx context.Context, page model.Page) (*model.ProcessedText, error)
}

// ResultCache persists processed text across tracker instances.
type ResultCache interface {
	GetProcessedText(ctx context.Context, pageID string) (*model.ProcessedText, error)
	CacheProcessedText(ctx context.Context, pt *model.ProcessedText) error
	RemoveProcessedText(ctx context.Context, pageID string) error
}
