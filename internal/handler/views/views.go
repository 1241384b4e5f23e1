// Package views holds the templ components for the frontend's pages and htmx
// fragments, plus the plain Go data and helpers they use.
package views

import (
	"context"
	"strconv"

	"github.com/cloze-lab/ctest/internal/ctest"
	"github.com/cloze-lab/ctest/internal/model"
)

// TakingData is the state of a taking page.
type TakingData struct {
	CTestID   string
	Form      *ctest.Form
	HintsJSON string
	HintUntil string
	HintsUsed int
	Controls  ctest.Controls
	// Locked disables the hint control once no further input is useful.
	Locked  bool
	Message ctest.Message
}

// ReviewData is the state of a results page.
type ReviewData struct {
	CTestID   string
	Form      *ctest.Form
	HintsUsed int
	Message   ctest.Message
}

// IndexData is the state of the authoring page.
type IndexData struct {
	Text       string
	Difficulty model.Difficulty
	History    []model.GeneratedTest
	Message    ctest.Message
	Result     *GeneratedData
}

// GeneratedData is a successfully generated test, with absolute links.
type GeneratedData struct {
	ShareURL    string
	ResultsURL  string
	CTestText   string
	StudentCode string
	TeacherCode string
}

var difficultyKeys = map[model.Difficulty]string{
	model.DifficultyEasy:   "DifficultyEasy",
	model.DifficultyMedium: "DifficultyMedium",
	model.DifficultyHard:   "DifficultyHard",
}

// Path prefixes p with the deployment base path.
func Path(ctx context.Context, p string) string {
	return model.BasePathFromContext(ctx) + p
}

func csrfToken(ctx context.Context) string {
	return model.CSRFTokenFromContext(ctx)
}

func severityOf(msg ctest.Message) string {
	if msg.Severity == "" {
		return string(ctest.SeverityInfo)
	}
	return string(msg.Severity)
}

func blankClass(fld *ctest.Field) string {
	class := "blank"
	if fld.ReadOnly() {
		class += " readonly"
	}
	if fld.Mark != ctest.MarkNone {
		class += " " + string(fld.Mark)
	}
	return class
}

func blankWidth(fld *ctest.Field) string {
	return "width: " + strconv.FormatFloat(fld.WidthEm, 'f', -1, 64) + "em"
}

// blankAt returns the field behind a blank segment, or nil.
func blankAt(f *ctest.Form, seg ctest.Segment) *ctest.Field {
	fld, ok := f.Field(seg.Index)
	if !ok {
		return nil
	}
	return fld
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
