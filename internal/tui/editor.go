package tui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/highlight"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
)

// editor is a plain text buffer that reports every change as a single-point
// edit, which is what the incremental highlighter consumes.
type editor struct {
	text   string
	cursor int // byte offset on a rune boundary
	top    int // first visible line
}

func (e *editor) SetText(text string) {
	e.text = text
	e.cursor = 0
	e.top = 0
}

func (e *editor) Text() string {
	return e.text
}

// HandleKey applies msg and returns the edit if the text changed.
func (e *editor) HandleKey(msg tea.KeyMsg) (models.Edit, bool) {
	switch msg.Type {
	case tea.KeyRunes:
		return e.insert(string(msg.Runes)), true
	case tea.KeySpace:
		return e.insert(" "), true
	case tea.KeyEnter:
		return e.insert("\n"), true
	case tea.KeyBackspace:
		if e.cursor == 0 {
			return models.Edit{}, false
		}
		_, size := utf8.DecodeLastRuneInString(e.text[:e.cursor])
		return e.replace(e.cursor-size, size, ""), true
	case tea.KeyDelete:
		if e.cursor == len(e.text) {
			return models.Edit{}, false
		}
		_, size := utf8.DecodeRuneInString(e.text[e.cursor:])
		return e.replace(e.cursor, size, ""), true
	case tea.KeyLeft:
		if e.cursor > 0 {
			_, size := utf8.DecodeLastRuneInString(e.text[:e.cursor])
			e.cursor -= size
		}
	case tea.KeyRight:
		if e.cursor < len(e.text) {
			_, size := utf8.DecodeRuneInString(e.text[e.cursor:])
			e.cursor += size
		}
	case tea.KeyUp:
		e.moveLine(-1)
	case tea.KeyDown:
		e.moveLine(1)
	case tea.KeyHome, tea.KeyCtrlA:
		e.cursor = e.lineStart(e.cursor)
	case tea.KeyEnd, tea.KeyCtrlE:
		e.cursor = e.lineEnd(e.cursor)
	}
	return models.Edit{}, false
}

func (e *editor) insert(s string) models.Edit {
	return e.replace(e.cursor, 0, s)
}

func (e *editor) replace(start, oldLength int, insert string) models.Edit {
	text, edit := highlight.Replace(e.text, start, oldLength, insert)
	e.text = text
	e.cursor = start + len(insert)
	return edit
}

func (e *editor) lineStart(pos int) int {
	return strings.LastIndexByte(e.text[:pos], '\n') + 1
}

func (e *editor) lineEnd(pos int) int {
	if i := strings.IndexByte(e.text[pos:], '\n'); i >= 0 {
		return pos + i
	}
	return len(e.text)
}

// moveLine keeps the rune column where the target line is long enough.
func (e *editor) moveLine(delta int) {
	start := e.lineStart(e.cursor)
	col := utf8.RuneCountInString(e.text[start:e.cursor])

	var target int
	if delta < 0 {
		if start == 0 {
			return
		}
		target = e.lineStart(start - 1)
	} else {
		end := e.lineEnd(e.cursor)
		if end == len(e.text) {
			return
		}
		target = end + 1
	}

	limit := e.lineEnd(target)
	pos := target
	for i := 0; i < col && pos < limit; i++ {
		_, size := utf8.DecodeRuneInString(e.text[pos:])
		pos += size
	}
	e.cursor = pos
}

func (e *editor) line() int {
	return strings.Count(e.text[:e.cursor], "\n")
}

// View renders height lines of the buffer around the cursor.
func (e *editor) View(spans []models.Span, height int, focused bool) string {
	cursor := -1
	if focused {
		cursor = e.cursor
	}
	lines := strings.Split(renderSpans(e.text, spans, cursor), "\n")

	if height > 0 {
		if cur := e.line(); cur < e.top {
			e.top = cur
		} else if cur >= e.top+height {
			e.top = cur - height + 1
		}
		e.top = min(e.top, max(len(lines)-1, 0))
		lines = lines[e.top:min(len(lines), e.top+height)]
	}

	width := len(fmt.Sprint(e.top + len(lines)))
	for i, l := range lines {
		lines[i] = gutterStyle.Render(fmt.Sprintf("%*d ", width, e.top+i+1)) + l
	}
	return strings.Join(lines, "\n")
}
