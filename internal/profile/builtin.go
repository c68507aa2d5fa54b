package profile

import "github.com/LukasSkrivanek/ScriptVisualizer/internal/models"

const Default = "swift"

var cStyleComments = []models.Delimiters{{Open: "/*", Close: "*/"}}

// Builtins returns a fresh copy of the profiles that ship with scriptviz.
func Builtins() map[string]*models.Profile {
	return map[string]*models.Profile{
		"swift": {
			Name:        "swift",
			Description: "Swift script via the swift interpreter",
			Command:     []string{"/usr/bin/env", "swift"},
			Extension:   ".swift",
			Syntax: models.Syntax{
				Keywords: []string{
					"associatedtype", "break", "case", "catch", "class", "continue", "default",
					"defer", "do", "else", "enum", "extension", "fallthrough", "false", "for",
					"func", "guard", "if", "import", "in", "init", "inout", "internal", "is",
					"let", "nil", "operator", "private", "protocol", "public", "repeat",
					"rethrows", "return", "self", "Self", "static", "struct", "subscript",
					"super", "switch", "throw", "throws", "true", "try", "typealias", "var",
					"where", "while", "async", "await",
				},
				LineComments:  []string{"//"},
				BlockComments: cStyleComments,
				Quotes:        []string{`"`},
				RawQuotes:     []string{`"""`},
			},
		},
		"kotlin": {
			Name:        "kotlin",
			Description: "Kotlin script via kotlinc -script",
			Command:     []string{"kotlinc", "-script"},
			Extension:   ".kts",
			Syntax: models.Syntax{
				Keywords: []string{
					"as", "break", "class", "continue", "do", "else", "false", "for", "fun",
					"if", "in", "interface", "is", "null", "object", "package", "return",
					"super", "this", "throw", "true", "try", "typealias", "typeof", "val",
					"var", "when", "while", "by", "catch", "constructor", "finally", "import",
					"init", "override", "private", "public", "internal", "data", "companion",
				},
				LineComments:  []string{"//"},
				BlockComments: cStyleComments,
				Quotes:        []string{`"`, `'`},
				RawQuotes:     []string{`"""`},
			},
		},
		"python": {
			Name:        "python",
			Description: "Python 3 script",
			Command:     []string{"python3", "-u"},
			Extension:   ".py",
			Syntax: models.Syntax{
				Keywords: []string{
					"False", "None", "True", "and", "as", "assert", "async", "await", "break",
					"class", "continue", "def", "del", "elif", "else", "except", "finally",
					"for", "from", "global", "if", "import", "in", "is", "lambda", "nonlocal",
					"not", "or", "pass", "raise", "return", "try", "while", "with", "yield",
				},
				LineComments: []string{"#"},
				Quotes:       []string{`"`, `'`},
				RawQuotes:    []string{`"""`, `'''`},
			},
		},
		"sh": {
			Name:        "sh",
			Description: "POSIX shell script",
			Command:     []string{"/bin/sh"},
			Extension:   ".sh",
			Syntax: models.Syntax{
				Keywords: []string{
					"if", "then", "else", "elif", "fi", "for", "while", "until", "do", "done",
					"case", "esac", "in", "function", "return", "exit", "export", "local",
					"echo", "sleep",
				},
				LineComments: []string{"#"},
				Quotes:       []string{`"`, `'`},
			},
		},
		"exec": {
			Name:        "exec",
			Description: "Run the file directly; it must be executable",
			Extension:   "",
		},
	}
}
