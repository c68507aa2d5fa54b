package tui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusComplete  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusCancelled = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("205"))

	cursorStyle = lipgloss.NewStyle().Reverse(true)

	gutterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("239"))
)

// Token colors
var categoryStyles = map[models.Category]lipgloss.Style{
	models.Plain:        lipgloss.NewStyle(),
	models.Keyword:      lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
	models.String:       lipgloss.NewStyle().Foreground(lipgloss.Color("114")),
	models.Comment:      lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true),
	models.Number:       lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
	models.Unterminated: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Underline(true),
}

func styleFor(c models.Category) lipgloss.Style {
	if s, ok := categoryStyles[c]; ok {
		return s
	}
	return categoryStyles[models.Plain]
}

// Colorize renders text with one style per span. Bytes not covered by spans
// are rendered plain.
func Colorize(text string, spans []models.Span) string {
	return renderSpans(text, spans, -1)
}

// renderSpans styles text by spans and, when cursor >= 0, marks the rune at
// the cursor. Each line is styled on its own so escape sequences never
// straddle a newline.
func renderSpans(text string, spans []models.Span, cursor int) string {
	var b strings.Builder
	pos := 0
	emit := func(end int, style lipgloss.Style) {
		for pos < end {
			if cursor >= pos && cursor < end {
				writeStyled(&b, text[pos:cursor], style)
				size := 1
				if text[cursor] != '\n' {
					_, size = utf8.DecodeRuneInString(text[cursor:])
					b.WriteString(cursorStyle.Render(text[cursor : cursor+size]))
				} else {
					b.WriteString(cursorStyle.Render(" "))
					b.WriteByte('\n')
				}
				pos = cursor + size
				cursor = -1
				continue
			}
			writeStyled(&b, text[pos:end], style)
			pos = end
		}
	}

	for _, sp := range spans {
		if sp.Start != pos || sp.End > len(text) || sp.End <= sp.Start {
			break
		}
		emit(sp.End, styleFor(sp.Category))
	}
	emit(len(text), styleFor(models.Plain))

	if cursor == len(text) {
		b.WriteString(cursorStyle.Render(" "))
	}
	return b.String()
}

func writeStyled(b *strings.Builder, s string, style lipgloss.Style) {
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		if line != "" {
			b.WriteString(style.Render(line))
		}
	}
}
