package model

import "strings"

// TextSegment is one sentence-sized unit of a processed page.
type TextSegment struct {
	OriginalText   string `json:"original_text"`
	Pinyin         string `json:"pinyin,omitempty"`
	TranslatedText string `json:"translated_text"`
}

// ProcessedText is the derived, cacheable content of a page.
// It is overwritten as a whole, never patched.
type ProcessedText struct {
	PageID             string        `json:"page_id"`
	FullOriginalText   string        `json:"full_original_text"`
	FullTranslatedText string        `json:"full_translated_text"`
	Segments           []TextSegment `json:"segments"`
	ShowFullText       bool          `json:"show_full_text"`
}

// Complete reports whether the processed text is evidence of successful
// processing. An empty segment list is degenerate unless the page is shown
// in full-text mode and has full text.
func (p *ProcessedText) Complete() bool {
	if p == nil {
		return false
	}
	if p.ShowFullText {
		return p.FullOriginalText != ""
	}
	return len(p.Segments) > 0
}

// Clone returns a deep copy.
func (p *ProcessedText) Clone() *ProcessedText {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Segments = append([]TextSegment(nil), p.Segments...)
	return &clone
}

// WithoutSegment returns a copy with segment i removed and the full texts
// rebuilt from the remaining segments. It returns false when i is out of range.
func (p *ProcessedText) WithoutSegment(i int) (*ProcessedText, bool) {
	if p == nil || i < 0 || i >= len(p.Segments) {
		return nil, false
	}

	clone := p.Clone()
	clone.Segments = append(clone.Segments[:i:i], p.Segments[i+1:]...)
	clone.FullOriginalText, clone.FullTranslatedText = joinSegments(clone.Segments)
	return clone, true
}

func joinSegments(segments []TextSegment) (string, string) {
	var original, translated strings.Builder
	for _, s := range segments {
		original.WriteString(s.OriginalText)
		if s.TranslatedText == "" {
			continue
		}
		if translated.Len() > 0 {
			translated.WriteString(" ")
		}
		translated.WriteString(s.TranslatedText)
	}
	return original.String(), translated.String()
}
