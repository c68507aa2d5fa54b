package models

// Category is the lexical class a span of script text is colored with.
type Category int

const (
	Plain Category = iota
	Keyword
	String
	Comment
	Number
	Unterminated
)

func (c Category) String() string {
	switch c {
	case Plain:
		return "plain"
	case Keyword:
		return "keyword"
	case String:
		return "string"
	case Comment:
		return "comment"
	case Number:
		return "number"
	case Unterminated:
		return "unterminated"
	default:
		return "unknown"
	}
}

// Span covers the byte range [Start, End) of the highlighted text.
type Span struct {
	Start    int
	End      int
	Category Category
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Edit describes a single-point text change: OldLength bytes at Start were
// replaced by NewLength bytes.
type Edit struct {
	Start     int
	OldLength int
	NewLength int
}

func (e Edit) Delta() int {
	return e.NewLength - e.OldLength
}
