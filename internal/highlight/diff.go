package highlight

import "github.com/LukasSkrivanek/ScriptVisualizer/internal/models"

// Diff returns the single-point edit that turns before into after, taking
// the longest common prefix and then the longest common suffix of the rest.
func Diff(before, after string) models.Edit {
	p := 0
	for p < len(before) && p < len(after) && before[p] == after[p] {
		p++
	}
	s := 0
	for s < len(before)-p && s < len(after)-p && before[len(before)-1-s] == after[len(after)-1-s] {
		s++
	}
	return models.Edit{
		Start:     p,
		OldLength: len(before) - p - s,
		NewLength: len(after) - p - s,
	}
}

// Replace applies a replacement of oldLength bytes at start with insert and
// returns the new text together with the edit describing it.
func Replace(text string, start, oldLength int, insert string) (string, models.Edit) {
	return text[:start] + insert + text[start+oldLength:], models.Edit{
		Start:     start,
		OldLength: oldLength,
		NewLength: len(insert),
	}
}
