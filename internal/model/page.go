package model

import "time"

// ProcessingSentinel is stored in Page.OriginalText while the capture pipeline
// has not produced text for the page yet.
const ProcessingSentinel = "___PROCESSING___"

// Page is one captured image of a note plus its extracted and translated text.
// PageNumber defines display order and is not necessarily contiguous.
type Page struct {
	ID             string    `json:"id"`
	NoteID         string    `json:"note_id"`
	PageNumber     int       `json:"page_number"`
	OriginalText   string    `json:"original_text"`
	TranslatedText string    `json:"translated_text"`
	ImageRef       string    `json:"image_ref,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsProcessing reports whether the page text is still being produced.
func (p *Page) IsProcessing() bool {
	return p.OriginalText == ProcessingSentinel
}

// PageIDs returns the ids of pages in order.
func PageIDs(pages []Page) []string {
	ids := make([]string, 0, len(pages))
	for _, p := range pages {
		ids = append(ids, p.ID)
	}
	return ids
}
