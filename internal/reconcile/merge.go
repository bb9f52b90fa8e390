// Package reconcile merges locally held page sets with freshly fetched ones.
// Everything here is pure so it can be exercised without a store.
package reconcile

import (
	"sort"

	"github.com/emrgen/notecache/internal/model"
)

// MergePages merges the pages held before a fetch with the pages the remote
// store returned.
//
//   - ids only in old are kept: a partial response never drops local pages
//   - ids in both take the fresh version
//   - ids only in fresh are added
//
// The result is stably sorted by PageNumber over the concatenation old then
// fresh, so ties keep their order of appearance. Neither input is modified.
func MergePages(old, fresh []model.Page) []model.Page {
	latest := make(map[string]model.Page, len(old)+len(fresh))
	for _, p := range old {
		latest[p.ID] = p
	}
	for _, p := range fresh {
		latest[p.ID] = p
	}

	merged := make([]model.Page, 0, len(latest))
	seen := make(map[string]struct{}, len(latest))
	for _, group := range [][]model.Page{old, fresh} {
		for _, p := range group {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			merged = append(merged, latest[p.ID])
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PageNumber < merged[j].PageNumber
	})
	return merged
}

// RemapByID moves per-page resources (decoded images, for example) from the
// positions of oldPages to the positions of merged, matching by page id.
// Slots without a match are left as the zero value, meaning "not yet loaded".
// oldRes may be shorter than oldPages.
func RemapByID[T any](oldPages []model.Page, oldRes []T, merged []model.Page) []T {
	index := make(map[string]int, len(oldPages))
	for i, p := range oldPages {
		if _, ok := index[p.ID]; !ok {
			index[p.ID] = i
		}
	}

	out := make([]T, len(merged))
	for i, p := range merged {
		if j, ok := index[p.ID]; ok && j < len(oldRes) {
			out[i] = oldRes[j]
		}
	}
	return out
}

// Changes summarises what a merge did, for logging.
type Changes struct {
	Added    []string
	Updated  []string
	Retained []string
}

// Diff compares the pages held before a merge with the merged result and the
// fresh pages that drove it.
func Diff(old, fresh, merged []model.Page) Changes {
	inOld := make(map[string]model.Page, len(old))
	for _, p := range old {
		inOld[p.ID] = p
	}
	inFresh := make(map[string]struct{}, len(fresh))
	for _, p := range fresh {
		inFresh[p.ID] = struct{}{}
	}

	var c Changes
	for _, p := range merged {
		prev, wasOld := inOld[p.ID]
		_, isFresh := inFresh[p.ID]
		switch {
		case !wasOld:
			c.Added = append(c.Added, p.ID)
		case !isFresh:
			c.Retained = append(c.Retained, p.ID)
		case prev != p:
			c.Updated = append(c.Updated, p.ID)
		}
	}
	return c
}
