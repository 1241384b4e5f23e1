package ctest

import (
	"log/slog"
	"sort"

	"github.com/cloze-lab/ctest/internal/model"
)

// Decorate applies one blank's verdict to its field.
func Decorate(fld *Field, d model.DetailResult) {
	fld.Disabled = true
	if d.IsCorrect {
		fld.Mark = MarkCorrect
		fld.Expected = ""
		return
	}
	fld.Mark = MarkIncorrect
	fld.Expected = d.ExpectedAnswer
}

// ApplyDetails decorates every field whose index has an entry in details and
// returns how many were decorated. Gaps on either side are logged and skipped.
func ApplyDetails(f *Form, details map[int]model.DetailResult) int {
	decorated := 0
	for _, fld := range f.fields {
		d, ok := details[fld.Index]
		if !ok {
			slog.Warn("no score details for blank", "blank_index", fld.Index)
			continue
		}
		Decorate(fld, d)
		decorated++
	}

	var orphans []int
	for idx := range details {
		if _, ok := f.Field(idx); !ok {
			orphans = append(orphans, idx)
		}
	}
	sort.Ints(orphans)
	for _, idx := range orphans {
		slog.Warn("no input found for blank index", "blank_index", idx)
	}
	return decorated
}
