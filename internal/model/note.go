package model

import "time"

// Note is referenced by the cache layer, not owned by it. FlashcardCount is a
// denormalized projection and never the source of truth for flashcard existence.
type Note struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	FlashcardCount   int       `json:"flashcard_count"`
	PageIDs          []string  `json:"page_ids"`
	HighlightedTerms []string  `json:"highlighted_terms"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// WithoutHighlight returns the highlighted terms with term removed and whether
// it was present.
func (n *Note) WithoutHighlight(term string) ([]string, bool) {
	terms := make([]string, 0, len(n.HighlightedTerms))
	found := false
	for _, t := range n.HighlightedTerms {
		if t == term {
			found = true
			continue
		}
		terms = append(terms, t)
	}
	return terms, found
}
