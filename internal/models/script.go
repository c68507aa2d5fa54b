package models

import "errors"

var ErrEmptySource = errors.New("script source is empty")

type SourceKind string

const (
	SourcePath   SourceKind = "path"
	SourceInline SourceKind = "inline"
)

// ScriptSource is either a filesystem path or inline script text.
type ScriptSource struct {
	Kind  SourceKind
	Value string
}

func PathSource(path string) ScriptSource {
	return ScriptSource{Kind: SourcePath, Value: path}
}

func InlineSource(text string) ScriptSource {
	return ScriptSource{Kind: SourceInline, Value: text}
}

// Validate reports ErrEmptySource unless exactly one variant is populated.
func (s ScriptSource) Validate() error {
	switch s.Kind {
	case SourcePath, SourceInline:
		if s.Value == "" {
			return ErrEmptySource
		}
		return nil
	default:
		return ErrEmptySource
	}
}
