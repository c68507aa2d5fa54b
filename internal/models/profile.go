package models

type Profile struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Command     []string `yaml:"command"`   // interpreter argv; the script path is appended
	Extension   string   `yaml:"extension"` // used for inline scripts
	Syntax      Syntax   `yaml:"syntax"`
}

type Syntax struct {
	Keywords      []string     `yaml:"keywords"`
	LineComments  []string     `yaml:"line_comments"`
	BlockComments []Delimiters `yaml:"block_comments"`
	Quotes        []string     `yaml:"quotes"`
	RawQuotes     []string     `yaml:"raw_quotes"`
}

type Delimiters struct {
	Open  string `yaml:"open"`
	Close string `yaml:"close"`
}
