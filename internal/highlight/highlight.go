// Package highlight tokenizes script text into colored spans and keeps them
// current across edits without rescanning the whole document.
package highlight

import (
	"sort"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
)

// Highlighter is immutable after New and safe for concurrent use.
type Highlighter struct {
	lex *lexer
}

func New(syntax models.Syntax) *Highlighter {
	return &Highlighter{lex: newLexer(syntax)}
}

// Highlight returns the span sequence for text. Without prev or edit it
// scans the whole text. Otherwise prev must be the spans of the text before
// edit was applied; only the region the edit can affect is re-lexed and the
// result is identical to a full scan. Inconsistent input falls back to a
// full scan.
func (h *Highlighter) Highlight(text string, prev []models.Span, edit *models.Edit) []models.Span {
	if prev == nil || edit == nil {
		return h.Full(text)
	}
	if spans, ok := h.incremental(text, prev, *edit); ok {
		return spans
	}
	return h.Full(text)
}

// Full scans text left to right.
func (h *Highlighter) Full(text string) []models.Span {
	spans := make([]models.Span, 0, len(text)/4+1)
	for pos := 0; pos < len(text); {
		end, cat := h.lex.next(text, pos)
		spans = appendSpan(spans, models.Span{Start: pos, End: end, Category: cat})
		pos = end
	}
	return spans
}

func (h *Highlighter) incremental(text string, prev []models.Span, e models.Edit) ([]models.Span, bool) {
	oldLen := len(text) - e.NewLength + e.OldLength
	if e.Start < 0 || e.OldLength < 0 || e.NewLength < 0 ||
		e.Start+e.NewLength > len(text) || e.Start+e.OldLength > oldLen {
		return nil, false
	}
	if !covers(prev, oldLen) {
		return nil, false
	}

	// Tokens ending at or before restart never looked at edited bytes.
	i := 0
	if anchor := e.Start - h.lex.lookahead; anchor > 0 {
		i = sort.Search(len(prev), func(k int) bool { return prev[k].End > anchor })
	}
	restart := 0
	if i < len(prev) {
		restart = prev[i].Start
	}

	spans := make([]models.Span, i, len(prev)+8)
	copy(spans, prev[:i])

	delta := e.Delta()
	editEnd := e.Start + e.NewLength
	j := i
	for pos := restart; pos < len(text); {
		end, cat := h.lex.next(text, pos)
		spans = appendSpan(spans, models.Span{Start: pos, End: end, Category: cat})
		pos = end
		if pos < editEnd {
			continue
		}

		// Past the edit, a token boundary that was also a span boundary
		// before the edit starts identical text in the same lexer state.
		old := pos - delta
		for j < len(prev) && prev[j].Start < old {
			j++
		}
		if j < len(prev) && prev[j].Start == old {
			for _, s := range prev[j:] {
				spans = appendSpan(spans, models.Span{Start: s.Start + delta, End: s.End + delta, Category: s.Category})
			}
			return spans, true
		}
	}
	return spans, true
}

// covers reports whether spans tile [0, n) in order.
func covers(spans []models.Span, n int) bool {
	at := 0
	for _, s := range spans {
		if s.Start != at || s.End <= s.Start {
			return false
		}
		at = s.End
	}
	return at == n
}

// appendSpan appends s, extending the last span instead when the categories
// match so spans stay maximal.
func appendSpan(spans []models.Span, s models.Span) []models.Span {
	if n := len(spans); n > 0 && spans[n-1].Category == s.Category && spans[n-1].End == s.Start {
		spans[n-1].End = s.End
		return spans
	}
	return append(spans, s)
}
