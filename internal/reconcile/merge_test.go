package reconcile

import (
	"fmt"
	"testing"

	"github.com/emrgen/notecache/internal/model"
	"github.com/stretchr/testify/assert"
)

func pages(specs ...string) []model.Page {
	out := make([]model.Page, 0, len(specs))
	for i, id := range specs {
		out = append(out, model.Page{ID: id, NoteID: "n1", PageNumber: i})
	}
	return out
}

func TestMergePages_Union(t *testing.T) {
	tests := []struct {
		name  string
		old   []model.Page
		fresh []model.Page
		want  []string
	}{
		{name: "both empty", want: []string{}},
		{name: "old only", old: pages("a", "b"), want: []string{"a", "b"}},
		{name: "fresh only", fresh: pages("a", "b"), want: []string{"a", "b"}},
		{
			name:  "disjoint",
			old:   []model.Page{{ID: "a", PageNumber: 0}, {ID: "b", PageNumber: 2}},
			fresh: []model.Page{{ID: "c", PageNumber: 1}, {ID: "d", PageNumber: 3}},
			want:  []string{"a", "c", "b", "d"},
		},
		{
			name:  "overlap",
			old:   pages("a", "b", "c"),
			fresh: pages("a", "b"),
			want:  []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergePages(tt.old, tt.fresh)
			assert.Equal(t, tt.want, model.PageIDs(got))
		})
	}
}

func TestMergePages_DisjointKeepsEveryID(t *testing.T) {
	for n := 0; n < 6; n++ {
		var old, fresh []model.Page
		for i := 0; i < n; i++ {
			old = append(old, model.Page{ID: fmt.Sprintf("a%d", i), PageNumber: i * 2})
			fresh = append(fresh, model.Page{ID: fmt.Sprintf("b%d", i), PageNumber: i*2 + 1})
		}

		got := MergePages(old, fresh)
		assert.Len(t, got, 2*n)

		ids := make(map[string]int)
		for _, p := range got {
			ids[p.ID]++
		}
		for id, count := range ids {
			assert.Equal(t, 1, count, "duplicate id %s", id)
		}
	}
}

func TestMergePages_FreshWins(t *testing.T) {
	old := []model.Page{
		{ID: "p1", PageNumber: 0, OriginalText: model.ProcessingSentinel},
		{ID: "p2", PageNumber: 1, OriginalText: "old"},
	}
	fresh := []model.Page{{ID: "p1", PageNumber: 0, OriginalText: "updated"}}

	got := MergePages(old, fresh)
	assert.Equal(t, []model.Page{
		{ID: "p1", PageNumber: 0, OriginalText: "updated"},
		{ID: "p2", PageNumber: 1, OriginalText: "old"},
	}, got)
}

func TestMergePages_StableOnTies(t *testing.T) {
	old := []model.Page{{ID: "x", PageNumber: 1}, {ID: "y", PageNumber: 0}}
	fresh := []model.Page{{ID: "z", PageNumber: 1}, {ID: "w", PageNumber: 0}}

	got := MergePages(old, fresh)
	assert.Equal(t, []string{"y", "w", "x", "z"}, model.PageIDs(got))
}

func TestMergePages_Idempotent(t *testing.T) {
	a := []model.Page{{ID: "p1", PageNumber: 3}, {ID: "p2", PageNumber: 1}, {ID: "p3", PageNumber: 1}}
	b := []model.Page{{ID: "p2", PageNumber: 1, OriginalText: "new"}, {ID: "p4", PageNumber: 0}}

	once := MergePages(a, b)
	twice := MergePages(once, b)
	assert.Equal(t, once, twice)

	self := MergePages(a, a)
	assert.Equal(t, []string{"p2", "p3", "p1"}, model.PageIDs(self))
}

func TestMergePages_DoesNotModifyInputs(t *testing.T) {
	old := []model.Page{{ID: "b", PageNumber: 1}, {ID: "a", PageNumber: 0}}
	fresh := []model.Page{{ID: "c", PageNumber: 2}}

	MergePages(old, fresh)
	assert.Equal(t, []string{"b", "a"}, model.PageIDs(old))
}

func TestRemapByID(t *testing.T) {
	oldPages := pages("p1", "p2", "p3")
	images := []*string{ptr("img1"), nil, ptr("img3")}

	merged := []model.Page{{ID: "p0"}, {ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	got := RemapByID(oldPages, images, merged)

	assert.Len(t, got, 4)
	assert.Nil(t, got[0], "new page is not loaded yet")
	assert.Equal(t, "img1", *got[1])
	assert.Nil(t, got[2])
	assert.Equal(t, "img3", *got[3])
}

func TestRemapByID_ShortResourceSlice(t *testing.T) {
	got := RemapByID(pages("p1", "p2"), []int{7}, pages("p2", "p1"))
	assert.Equal(t, []int{0, 7}, got)
}

func TestDiff(t *testing.T) {
	old := []model.Page{{ID: "p1", OriginalText: "a"}, {ID: "p2"}, {ID: "p3"}}
	fresh := []model.Page{{ID: "p1", OriginalText: "b"}, {ID: "p3"}, {ID: "p4", PageNumber: 9}}
	merged := MergePages(old, fresh)

	c := Diff(old, fresh, merged)
	assert.Equal(t, []string{"p4"}, c.Added)
	assert.Equal(t, []string{"p1"}, c.Updated)
	assert.Equal(t, []string{"p2"}, c.Retained)
}

func ptr(s string) *string {
	return &s
}
