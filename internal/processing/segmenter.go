package processing

import (
	"context"
	"strings"

	"github.com/emrgen/notecache/internal/model"
)

// Segmenter is the built-in TextProcessor. It splits the captured and
// translated text of a page into sentences and pairs them by position.
// Pinyin is left empty.
type Segmenter struct {
	// ShowFullText makes the produced text render as one block instead of segments.
	ShowFullText bool
}

var _ TextProcessor = (*Segmenter)(nil)

func (s *Segmenter) ProcessPageText(ctx context.Context, page model.Page) (*model.ProcessedText, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	originals := SplitSentences(page.OriginalText)
	translations := SplitSentences(page.TranslatedText)

	segments := make([]model.TextSegment, 0, len(originals))
	for i, original := range originals {
		seg := model.TextSegment{OriginalText: original}
		if i < len(translations) {
			seg.TranslatedText = translations[i]
		}
		segments = append(segments, seg)
	}

	return &model.ProcessedText{
		PageID:             page.ID,
		FullOriginalText:   page.OriginalText,
		FullTranslatedText: page.TranslatedText,
		Segments:           segments,
		ShowFullText:       s.ShowFullText,
	}, nil
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '!', '?', '.', '\n':
		return true
	}
	return false
}

// SplitSentences splits text after each sentence terminator, keeping the
// terminator with its sentence. Blank sentences are dropped.
func SplitSentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}

	for _, r := range text {
		if r != '\n' {
			b.WriteRune(r)
		}
		if isSentenceEnd(r) {
			flush()
		}
	}
	flush()

	return out
}
