package highlight

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/LukasSkrivanek/ScriptVisualizer/internal/models"
)

type openerKind int

const (
	openLineComment openerKind = iota
	openBlockComment
	openQuote
	openRawQuote
)

// opener is a delimiter that starts a multi-character region.
type opener struct {
	kind  openerKind
	open  string
	close string
}

// lexer turns text into tokens. Every token is lexed from the same default
// state and no rule looks behind its start, so any token boundary is a valid
// place to resume lexing.
type lexer struct {
	keywords  map[string]struct{}
	openers   []opener // longest first
	lookahead int      // max bytes a token inspects past its own end, plus slack
}

func newLexer(syntax models.Syntax) *lexer {
	l := &lexer{keywords: make(map[string]struct{}, len(syntax.Keywords))}
	for _, kw := range syntax.Keywords {
		l.keywords[kw] = struct{}{}
	}

	for _, d := range syntax.LineComments {
		if d != "" {
			l.openers = append(l.openers, opener{kind: openLineComment, open: d})
		}
	}
	for _, d := range syntax.BlockComments {
		if d.Open != "" && d.Close != "" {
			l.openers = append(l.openers, opener{kind: openBlockComment, open: d.Open, close: d.Close})
		}
	}
	for _, d := range syntax.RawQuotes {
		if d != "" {
			l.openers = append(l.openers, opener{kind: openRawQuote, open: d, close: d})
		}
	}
	for _, d := range syntax.Quotes {
		if d != "" {
			l.openers = append(l.openers, opener{kind: openQuote, open: d, close: d})
		}
	}
	sort.SliceStable(l.openers, func(i, j int) bool {
		return len(l.openers[i].open) > len(l.openers[j].open)
	})

	longest := 0
	for _, o := range l.openers {
		longest = max(longest, len(o.open), len(o.close))
	}
	// rune decoding peeks up to utf8.UTFMax bytes past a token end
	l.lookahead = max(longest, utf8.UTFMax) + 2
	return l
}

// next lexes the token starting at pos and returns its end offset and category.
func (l *lexer) next(text string, pos int) (int, models.Category) {
	for _, o := range l.openers {
		if strings.HasPrefix(text[pos:], o.open) {
			return l.region(text, pos, o)
		}
	}

	c := text[pos]
	if isDigit(c) {
		return lexNumber(text, pos), models.Number
	}

	r, size := utf8.DecodeRuneInString(text[pos:])
	if r == '_' || unicode.IsLetter(r) {
		end := lexIdentifier(text, pos+size)
		if _, ok := l.keywords[text[pos:end]]; ok {
			return end, models.Keyword
		}
		return end, models.Plain
	}
	return pos + size, models.Plain
}

func (l *lexer) region(text string, pos int, o opener) (int, models.Category) {
	body := pos + len(o.open)
	switch o.kind {
	case openLineComment:
		if i := strings.IndexByte(text[body:], '\n'); i >= 0 {
			return body + i, models.Comment
		}
		return len(text), models.Comment

	case openBlockComment:
		if i := strings.Index(text[body:], o.close); i >= 0 {
			return body + i + len(o.close), models.Comment
		}
		return len(text), models.Unterminated

	case openRawQuote:
		if i := strings.Index(text[body:], o.close); i >= 0 {
			return body + i + len(o.close), models.String
		}
		return len(text), models.Unterminated

	default:
		return lexQuoted(text, body, o.close)
	}
}

// lexQuoted scans a single-line string body. A backslash escapes the next
// byte unless that byte is a newline; a newline always ends the string.
func lexQuoted(text string, i int, close string) (int, models.Category) {
	for i < len(text) {
		c := text[i]
		switch {
		case c == '\n':
			return i, models.Unterminated
		case c == '\\' && i+1 < len(text) && text[i+1] != '\n':
			i += 2
		case strings.HasPrefix(text[i:], close):
			return i + len(close), models.String
		default:
			i++
		}
	}
	return len(text), models.Unterminated
}

func lexNumber(text string, pos int) int {
	i := pos + 1
	hex := text[pos] == '0' && i < len(text) && (text[i] == 'x' || text[i] == 'X')
	for i < len(text) {
		c := text[i]
		switch {
		case !hex && (c == 'e' || c == 'E') && i+2 < len(text) &&
			(text[i+1] == '+' || text[i+1] == '-') && isDigit(text[i+2]):
			i += 3
		case isDigit(c) || isASCIILetter(c) || c == '_':
			i++
		case c == '.' && i+1 < len(text) && isDigit(text[i+1]):
			i++
		default:
			return i
		}
	}
	return i
}

func lexIdentifier(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return i
		}
		i += size
	}
	return i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
