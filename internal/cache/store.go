package cache

import (
	"context"
	"errors"
)

// Kind namespaces cached entities.
type Kind string

const (
	KindPage          Kind = "page"
	KindFlashcard     Kind = "flashcard"
	KindNote          Kind = "note"
	KindProcessedText Kind = "processed"
)

// ErrCacheUnavailable wraps every local store read/write failure. Callers treat
// it as recoverable and fall through to the remote store.
var ErrCacheUnavailable = errors.New("local cache unavailable")

// Entry is a value together with its id, used by bulk writes.
type Entry struct {
	ID    string
	Value []byte
}

// LocalStore is a persistent key-value cache keyed by kind and id. Entries can
// be grouped under a parent id (a note) for bulk reads. There is no eviction:
// last write wins and stale values are removed explicitly.
type LocalStore interface {
	// Get returns the value for id, and false when it is absent.
	Get(ctx context.Context, kind Kind, id string) ([]byte, bool, error)
	// Put writes a value. A non-empty parentID also indexes the entry under that parent.
	Put(ctx context.Context, kind Kind, id, parentID string, value []byte) error
	// Remove deletes the value and drops it from its parent index.
	Remove(ctx context.Context, kind Kind, id string) error
	// GetBulkByParent returns every value indexed under parentID.
	GetBulkByParent(ctx context.Context, kind Kind, parentID string) ([][]byte, error)
	// PutBulk replaces the set of values indexed under parentID with entries.
	PutBulk(ctx context.Context, kind Kind, parentID string, entries []Entry) error
}

func valueKey(kind Kind, id string) string {
	return "notecache:" + string(kind) + ":v:" + id
}

func ownerKey(kind Kind, id string) string {
	return "notecache:" + string(kind) + ":owner:" + id
}

func childrenKey(kind Kind, parentID string) string {
	return "notecache:" + string(kind) + ":children:" + parentID
}
