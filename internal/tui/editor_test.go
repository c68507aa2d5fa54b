package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/highlight"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
	"github.com/LukasSkrivanek/ScriptVisualizer/internal/profile"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func keyOf(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func TestEditorEditsStayInSync(t *testing.T) {
	hl := highlight.New(profile.Builtins()[profile.Default].Syntax)

	var e editor
	text := ""
	spans := hl.Full(text)

	keys := []tea.KeyMsg{
		runes("let s = \"hé\""),
		keyOf(tea.KeyEnter),
		runes("// done"),
		keyOf(tea.KeyUp),
		keyOf(tea.KeyBackspace),
		keyOf(tea.KeyBackspace),
		keyOf(tea.KeyHome),
		keyOf(tea.KeyDelete),
		keyOf(tea.KeyDelete),
		keyOf(tea.KeyDelete),
		runes("var"),
		keyOf(tea.KeyEnd),
		keyOf(tea.KeySpace),
		runes("/*"),
	}
	for _, k := range keys {
		edit, changed := e.HandleKey(k)
		if !changed {
			continue
		}
		before := text
		text = e.Text()

		replaced, want := highlight.Replace(before, edit.Start, edit.OldLength, text[edit.Start:edit.Start+edit.NewLength])
		require.Equal(t, text, replaced)
		require.Equal(t, want, edit)

		spans = hl.Highlight(text, spans, &edit)
		require.Empty(t, cmp.Diff(hl.Full(text), spans), "after %q", k.String())
	}

	require.Equal(t, "var s \"hé\" /*\n// done", text)
}

func TestEditorCursorMovement(t *testing.T) {
	var e editor
	e.SetText("ab\nçdef\ng")

	e.HandleKey(keyOf(tea.KeyDown))
	require.Equal(t, 3, e.cursor)

	e.HandleKey(keyOf(tea.KeyRight))
	e.HandleKey(keyOf(tea.KeyRight))
	require.Equal(t, 6, e.cursor, "ç is two bytes")

	e.HandleKey(keyOf(tea.KeyDown))
	require.Equal(t, len(e.text), e.cursor, "column clamps to the shorter line")

	e.HandleKey(keyOf(tea.KeyDown))
	require.Equal(t, len(e.text), e.cursor)

	e.HandleKey(keyOf(tea.KeyUp))
	e.HandleKey(keyOf(tea.KeyUp))
	require.Equal(t, 1, e.cursor)

	e.HandleKey(keyOf(tea.KeyLeft))
	e.HandleKey(keyOf(tea.KeyLeft))
	require.Zero(t, e.cursor)

	_, changed := e.HandleKey(keyOf(tea.KeyBackspace))
	require.False(t, changed)
}

func TestEditorViewScrollsToCursor(t *testing.T) {
	var e editor
	e.SetText("1\n2\n3\n4\n5\n6")
	for range 5 {
		e.HandleKey(keyOf(tea.KeyDown))
	}

	view := e.View(nil, 2, false)
	require.Equal(t, 4, e.top)
	require.Contains(t, view, "5 5")
	require.Contains(t, view, "6 6")
	require.NotContains(t, view, "4 4")
}

func TestColorizeKeepsText(t *testing.T) {
	hl := highlight.New(profile.Builtins()[profile.Default].Syntax)
	text := "let x = \"a\nb\" // é\n/* open"

	// tests run without a terminal, so styles render as plain text
	require.Equal(t, text, Colorize(text, hl.Full(text)))
	require.Equal(t, text, Colorize(text, nil))
	require.Equal(t, text, Colorize(text, []models.Span{{Start: 0, End: 100}}))
}
