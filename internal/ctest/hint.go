package ctest

import (
	"log/slog"
	"strings"

	"github.com/cloze-lab/ctest/internal/model"
)

// Hint reveals one character of the first blank, in index order, whose value
// does not match its expected answer. The field value is cut at the first
// divergence and the expected rune appended; that rune is recorded in hints.
// Blanks without answer text are skipped. It returns the hinted blank index,
// or false if every blank already matches.
// hints must not be nil.
func Hint(f *Form, specs model.AnswerSpecs, hints model.GivenHints) (int, bool) {
	for _, fld := range f.fields {
		given := []rune(strings.TrimSpace(fld.Value))
		expected := []rune(strings.TrimSpace(specs[fld.Index].Answer))
		if len(expected) == 0 {
			slog.Debug("no answer text to hint from", "blank_index", fld.Index)
			continue
		}
		if string(given) == string(expected) {
			continue
		}

		pos := divergence(given, expected)
		if pos >= len(expected) {
			// The answer only overshoots a correct prefix: drop the excess.
			fld.Value = string(expected)
			slog.Debug("hint truncated overlong answer", "blank_index", fld.Index)
			return fld.Index, true
		}

		fld.Value = string(given[:pos]) + string(expected[pos])
		r := hints[fld.Index]
		r.Set(pos, expected[pos])
		hints[fld.Index] = r
		slog.Debug("hint given", "blank_index", fld.Index, "position", pos)
		return fld.Index, true
	}
	return 0, false
}

// divergence returns the first position where given and expected differ. Running
// out of given runes counts as a mismatch at that position.
func divergence(given, expected []rune) int {
	i := 0
	for i < len(given) && i < len(expected) && given[i] == expected[i] {
		i++
	}
	return i
}
