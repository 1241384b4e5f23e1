package ctest

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/cloze-lab/ctest/internal/model"
)

// ErrNoFields is returned when a form has no blank fields to collect from.
var ErrNoFields = errors.New("no blank fields rendered")

// Form is a parsed test bound to its fields. fields[i] is the field of blank i;
// the association is fixed when the form is built.
type Form struct {
	Words  []Word
	fields []*Field
}

// Build parses text with the word-boundary parser and creates one field per blank.
func Build(text string, specs model.AnswerSpecs, mode FieldMode) *Form {
	words := ParseWords(text, specs)
	f := &Form{Words: words}
	for _, w := range words {
		for _, s := range w.Segments {
			if s.Kind != SegmentBlank {
				continue
			}
			f.fields = append(f.fields, NewField(s.Index, s.Length, mode))
		}
	}
	return f
}

// Fields returns the fields in blank index order.
func (f *Form) Fields() []*Field {
	return f.fields
}

// Len returns the number of fields.
func (f *Form) Len() int {
	return len(f.fields)
}

// Field returns the field for blank index.
func (f *Form) Field(index int) (*Field, bool) {
	if index < 0 || index >= len(f.fields) {
		return nil, false
	}
	return f.fields[index], true
}

// Fill sets field values by blank index. Unknown indices are ignored.
func (f *Form) Fill(values model.UserAnswerMap) {
	for idx, v := range values {
		if fld, ok := f.Field(idx); ok {
			fld.Value = v
		}
	}
}

// FillFrom sets every field's value from lookup, keyed by field name.
func (f *Form) FillFrom(lookup func(name string) string) {
	for _, fld := range f.fields {
		fld.Value = lookup(fld.Name())
	}
}

// Collect builds the answer map from the current field values.
func (f *Form) Collect() (model.UserAnswerMap, error) {
	if len(f.fields) == 0 {
		slog.Error("answers could not be collected", "error", ErrNoFields)
		return nil, ErrNoFields
	}
	answers := make(model.UserAnswerMap, len(f.fields))
	for _, fld := range f.fields {
		answers[fld.Index] = strings.TrimSpace(fld.Value)
	}
	return answers, nil
}

// DisableAll disables every field.
func (f *Form) DisableAll() {
	for _, fld := range f.fields {
		fld.Disabled = true
	}
}
