package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/emrgen/notecache/internal/model"
	"github.com/emrgen/notecache/internal/processing"
	"github.com/emrgen/notecache/internal/queue"
	"github.com/emrgen/notecache/internal/reconcile"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// LoadPages returns the pages of a note sorted by page number.
//
// Unless forceRefresh is set, a complete cached set is returned without
// touching the remote store. Otherwise the remote pages are merged into the
// cached ones by id and the merge is written back to the cache. Pages missing
// from a partial remote response are kept. When the remote store fails the
// cached pages are returned if there are any, ErrLoad otherwise.
func (r *Repository) LoadPages(ctx context.Context, noteID string, forceRefresh bool) ([]model.Page, error) {
	if err := required("note id", noteID); err != nil {
		return nil, err
	}

	key := "pages:" + noteID + ":" + strconv.FormatBool(forceRefresh)
	ch := r.group.DoChan(key, func() (any, error) {
		// joined callers share this load; it must outlive the caller that started it
		return r.loadPages(context.WithoutCancel(ctx), noteID, forceRefresh)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	shared := res.Val.([]model.Page)
	pages := make([]model.Page, len(shared))
	copy(pages, shared)
	return pages, nil
}

func (r *Repository) loadPages(ctx context.Context, noteID string, forceRefresh bool) ([]model.Page, error) {
	log := logrus.WithField("note_id", noteID)

	cached, err := r.cache.GetPages(ctx, noteID)
	cacheFailed(log, "read cached pages", err)

	if !forceRefresh && r.completeSet(ctx, noteID, cached) {
		return cached, nil
	}

	fresh, err := r.gateway.FetchPagesByNote(ctx, noteID)
	if err != nil {
		if len(cached) > 0 {
			log.Warnf("fetch pages failed, serving %d cached pages: %v", len(cached), err)
			return cached, nil
		}
		return nil, fmt.Errorf("%w: pages of note %s: %v", ErrLoad, noteID, err)
	}

	merged := reconcile.MergePages(cached, fresh)
	changes := reconcile.Diff(cached, fresh, merged)
	log.WithFields(logrus.Fields{
		"added":    len(changes.Added),
		"updated":  len(changes.Updated),
		"retained": len(changes.Retained),
	}).Debug("pages reconciled")

	cacheFailed(log, "cache pages", r.cache.CachePages(ctx, noteID, merged))

	if len(changes.Added)+len(changes.Updated) > 0 {
		r.publish(ctx, queue.Event{Kind: queue.KindPagesReconciled, NoteID: noteID, Count: len(merged)})
	}
	return merged, nil
}

// completeSet reports whether the cached pages can be served without a
// remote fetch: there is at least one page and, when the note metadata is
// cached, every page it lists is present.
func (r *Repository) completeSet(ctx context.Context, noteID string, cached []model.Page) bool {
	if len(cached) == 0 {
		return false
	}

	note, err := r.cache.GetNoteMetadata(ctx, noteID)
	if err != nil || note == nil {
		cacheFailed(logrus.WithField("note_id", noteID), "read note metadata", err)
		return true
	}

	have := make(map[string]struct{}, len(cached))
	for _, p := range cached {
		have[p.ID] = struct{}{}
	}
	for _, id := range note.PageIDs {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}

// AddPage creates a page in the remote store and adds it to the cached page
// set and note metadata.
func (r *Repository) AddPage(ctx context.Context, page model.Page) (*model.Page, error) {
	if err := required("note id", page.NoteID); err != nil {
		return nil, err
	}

	if err := r.gateway.CreatePage(ctx, &page); err != nil {
		return nil, remoteFailed("create page", err)
	}

	log := logrus.WithFields(logrus.Fields{"note_id": page.NoteID, "page_id": page.ID})
	cacheFailed(log, "cache page", r.cache.PutPage(ctx, &page))

	note, err := r.cache.GetNoteMetadata(ctx, page.NoteID)
	cacheFailed(log, "read note metadata", err)
	if note != nil {
		note.PageIDs = append(note.PageIDs, page.ID)
		cacheFailed(log, "cache note metadata", r.cache.CacheNoteMetadata(ctx, page.NoteID, note))
	}

	return &page, nil
}

// ProcessNote walks the pages of a note through the processing tracker in the
// background. onPage is called for every finished page while session is active.
func (r *Repository) ProcessNote(ctx context.Context, session *processing.Session, noteID string, onPage processing.PageFunc) (*processing.Batch, error) {
	pages, err := r.LoadPages(ctx, noteID, false)
	if err != nil {
		return nil, err
	}

	return r.tracker.StartBatch(ctx, session, noteID, pages, onPage), nil
}

// ProcessedText returns the processed text of a page, processing it first when
// no complete result is held.
func (r *Repository) ProcessedText(ctx context.Context, noteID, pageID string) (*model.ProcessedText, error) {
	page, err := r.findPage(ctx, noteID, pageID)
	if err != nil {
		return nil, err
	}

	return r.tracker.Process(ctx, *page)
}

// DeleteSegment removes one segment from the processed text of a page and
// rewrites the page text to match.
func (r *Repository) DeleteSegment(ctx context.Context, noteID, pageID string, index int) (*model.ProcessedText, error) {
	page, err := r.findPage(ctx, noteID, pageID)
	if err != nil {
		return nil, err
	}

	pt := r.tracker.Result(ctx, pageID)
	if pt == nil {
		return nil, fmt.Errorf("%w: processed text of page %s", ErrNotFound, pageID)
	}

	next, ok := pt.WithoutSegment(index)
	if !ok {
		return nil, fmt.Errorf("%w: segment %d out of range", ErrValidation, index)
	}

	page.OriginalText = next.FullOriginalText
	page.TranslatedText = next.FullTranslatedText
	if err := r.gateway.UpdatePage(ctx, page); err != nil {
		return nil, remoteFailed("update page", err)
	}

	r.tracker.Replace(ctx, next)
	log := logrus.WithFields(logrus.Fields{"note_id": noteID, "page_id": pageID})
	cacheFailed(log, "cache page", r.cache.PutPage(ctx, page))

	return next, nil
}

func (r *Repository) findPage(ctx context.Context, noteID, pageID string) (*model.Page, error) {
	if err := required("page id", pageID); err != nil {
		return nil, err
	}

	// a page added elsewhere may be missing from a cached set
	for _, refresh := range []bool{false, true} {
		pages, err := r.LoadPages(ctx, noteID, refresh)
		if err != nil {
			return nil, err
		}

		for i := range pages {
			if pages[i].ID == pageID {
				return &pages[i], nil
			}
		}
	}

	return nil, fmt.Errorf("%w: page %s of note %s", ErrNotFound, pageID, noteID)
}

// IsProcessingError reports whether err only means the page is not ready yet
// or already being worked on.
func IsProcessingError(err error) bool {
	return errors.Is(err, processing.ErrInFlight) || errors.Is(err, processing.ErrPageNotReady)
}
