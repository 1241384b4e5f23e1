package ctest

import (
	"fmt"
	"math"
)

const (
	// WidthScaleEm is the input width per expected character.
	WidthScaleEm = 0.8
	// MinWidthEm keeps one-letter blanks clickable.
	MinWidthEm = 2.0
)

// FieldMode selects between the interactive and the review rendition of a blank.
type FieldMode int

const (
	ModeEditable FieldMode = iota
	ModeReadOnly
)

// Mark is the feedback state of a field.
type Mark string

const (
	MarkNone      Mark = ""
	MarkCorrect   Mark = "is-correct"
	MarkIncorrect Mark = "is-incorrect"
)

// Field is the placeholder rendered for one blank.
type Field struct {
	Index     int
	MaxLength int
	WidthEm   float64
	Mode      FieldMode

	Value     string
	Disabled  bool
	Mark      Mark
	Expected  string // shown inline after an incorrect field
	GivenHint string // review pages only
}

// NewField creates the placeholder for blank index with the expected answer length.
func NewField(index, length int, mode FieldMode) *Field {
	return &Field{
		Index:     index,
		MaxLength: length,
		WidthEm:   Width(length),
		Mode:      mode,
	}
}

// Width returns the field width in em for an answer of length characters.
func Width(length int) float64 {
	return math.Max(float64(length)*WidthScaleEm, MinWidthEm)
}

// Name is the form field name carrying the blank index.
func (f *Field) Name() string {
	return FieldName(f.Index)
}

// ReadOnly reports whether the field accepts no input.
func (f *Field) ReadOnly() bool {
	return f.Mode == ModeReadOnly
}

// FieldName returns the form name used for blank index.
func FieldName(index int) string {
	return fmt.Sprintf("blank_%d", index)
}
