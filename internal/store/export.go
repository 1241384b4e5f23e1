package store

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cloze-lab/ctest/internal/model"
)

// ExportHistory groups the submission log by test. Tests generated here come
// first in creation order; tests only known from submissions follow, sorted
// by ID.
func (s *Store) ExportHistory() (*model.HistoryExport, error) {
	generated, err := s.ListGenerated(0)
	if err != nil {
		return nil, fmt.Errorf("list generated tests: %w", err)
	}
	records, err := s.ListSubmissions("")
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	byTest := make(map[string][]model.SubmissionRecord)
	for _, r := range records {
		byTest[r.CTestID] = append(byTest[r.CTestID], r)
	}

	exp := &model.HistoryExport{ExportedAt: time.Now().UTC()}
	// ListGenerated is newest first.
	for i := len(generated) - 1; i >= 0; i-- {
		g := generated[i]
		created := g.CreatedAt
		subs := byTest[g.CTestID]
		if subs == nil {
			subs = []model.SubmissionRecord{}
		}
		exp.Tests = append(exp.Tests, model.TestExport{
			CTestID:     g.CTestID,
			Difficulty:  g.Difficulty,
			CreatedAt:   &created,
			ShareURL:    g.ShareURL,
			ResultsURL:  g.ResultsURL,
			Submissions: subs,
		})
		delete(byTest, g.CTestID)
	}

	orphans := make([]string, 0, len(byTest))
	for id := range byTest {
		orphans = append(orphans, id)
	}
	sort.Strings(orphans)
	for _, id := range orphans {
		exp.Tests = append(exp.Tests, model.TestExport{CTestID: id, Submissions: byTest[id]})
	}
	return exp, nil
}

var xlsxHeader = []any{
	"ctest_id", "difficulty", "state", "submission_id",
	"correct_count", "total_count", "percentage", "hints_used", "detail", "submitted_at",
}

// WriteXLSX renders the export as a workbook with one row per submission.
func WriteXLSX(w io.Writer, exp *model.HistoryExport) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Submissions"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetRow("A1", xlsxHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, t := range exp.Tests {
		for _, r := range t.Submissions {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []any{
				r.CTestID, string(t.Difficulty), r.State, r.SubmissionID,
				r.CorrectCount, r.TotalCount, r.Percentage, r.HintsUsed, r.Detail,
				r.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := sw.SetRow(cell, values); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
			row++
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
