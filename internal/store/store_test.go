package store

import (
	"bytes"
	"database/sql"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cloze-lab/ctest/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var baseTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func insertTestGenerated(t *testing.T, s *Store, id string, offset time.Duration) {
	t.Helper()
	_, err := s.RecordGenerated(model.GeneratedTest{
		CTestID:      id,
		Difficulty:   model.DifficultyMedium,
		OriginalText: "Der Hund bellt.",
		CTestText:    "Der Hu__ bellt.",
		ShareURL:     "https://ctest.example/api/student_authorize/" + id,
		ResultsURL:   "https://ctest.example/api/teacher_authorize/" + id,
		CreatedAt:    baseTime.Add(offset),
	})
	if err != nil {
		t.Fatalf("insertTestGenerated: %v", err)
	}
}

func TestGeneratedCRUD(t *testing.T) {
	s := newTestStore(t)

	list, err := s.ListGenerated(10)
	if err != nil {
		t.Fatalf("ListGenerated: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}

	insertTestGenerated(t, s, "t1", 0)
	insertTestGenerated(t, s, "t2", time.Minute)
	insertTestGenerated(t, s, "t3", 2*time.Minute)

	g, err := s.GetGenerated("t2")
	if err != nil {
		t.Fatalf("GetGenerated: %v", err)
	}
	if g.CTestText != "Der Hu__ bellt." || g.Difficulty != model.DifficultyMedium {
		t.Errorf("unexpected test %+v", g)
	}
	if !g.CreatedAt.Equal(baseTime.Add(time.Minute)) {
		t.Errorf("created_at = %v", g.CreatedAt)
	}

	_, err = s.GetGenerated("missing")
	if err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	list, err = s.ListGenerated(2)
	if err != nil {
		t.Fatalf("ListGenerated: %v", err)
	}
	if len(list) != 2 || list[0].CTestID != "t3" || list[1].CTestID != "t2" {
		t.Errorf("expected newest two [t3 t2], got %+v", list)
	}

	all, err := s.ListGenerated(0)
	if err != nil {
		t.Fatalf("ListGenerated(0): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 tests, got %d", len(all))
	}
}

func TestRecordGeneratedUpsert(t *testing.T) {
	s := newTestStore(t)
	insertTestGenerated(t, s, "t1", 0)

	id, err := s.RecordGenerated(model.GeneratedTest{
		CTestID:    "t1",
		Difficulty: model.DifficultyMedium,
		ShareURL:   "https://other.example/s",
		ResultsURL: "https://other.example/r",
		CreatedAt:  baseTime.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("RecordGenerated: %v", err)
	}
	if id == 0 {
		t.Error("expected row id")
	}

	g, err := s.GetGenerated("t1")
	if err != nil {
		t.Fatalf("GetGenerated: %v", err)
	}
	if g.ShareURL != "https://other.example/s" {
		t.Errorf("share url not refreshed: %q", g.ShareURL)
	}
	if !g.CreatedAt.Equal(baseTime) {
		t.Errorf("created_at changed to %v", g.CreatedAt)
	}

	if _, err := s.RecordGenerated(model.GeneratedTest{}); err == nil {
		t.Error("expected error for empty test id")
	}
}

func TestSubmissionLog(t *testing.T) {
	s := newTestStore(t)
	insertTestGenerated(t, s, "t1", 0)

	records := []model.SubmissionRecord{
		{CTestID: "t1", State: "accepted", SubmissionID: "s1", CorrectCount: 3, TotalCount: 4, Percentage: 75, HintsUsed: 2},
		{CTestID: "t1", State: "duplicate"},
		{CTestID: "t1", State: "rejected", Detail: "Test has expired"},
		{CTestID: "other", State: "accepted", CorrectCount: 1, TotalCount: 1, Percentage: 100},
	}
	for _, r := range records {
		if _, err := s.RecordSubmission(r); err != nil {
			t.Fatalf("RecordSubmission: %v", err)
		}
	}

	count, err := s.SubmissionCount()
	if err != nil {
		t.Fatalf("SubmissionCount: %v", err)
	}
	if count != 4 {
		t.Errorf("expected 4 records, got %d", count)
	}

	got, err := s.ListSubmissions("t1")
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records for t1, got %d", len(got))
	}
	if got[0].SubmissionID != "s1" || got[0].HintsUsed != 2 || got[0].Percentage != 75 {
		t.Errorf("unexpected first record %+v", got[0])
	}
	if got[2].Detail != "Test has expired" {
		t.Errorf("detail = %q", got[2].Detail)
	}
	if got[0].CreatedAt.IsZero() {
		t.Error("created_at should default to now")
	}

	g, err := s.GetGenerated("t1")
	if err != nil {
		t.Fatalf("GetGenerated: %v", err)
	}
	if g.Submissions != 1 {
		t.Errorf("only accepted submissions count, got %d", g.Submissions)
	}
}

func TestExportHistory(t *testing.T) {
	s := newTestStore(t)
	insertTestGenerated(t, s, "t2", time.Minute)
	insertTestGenerated(t, s, "t1", 0)
	if _, err := s.RecordSubmission(model.SubmissionRecord{CTestID: "t1", State: "accepted", TotalCount: 2}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordSubmission(model.SubmissionRecord{CTestID: "zz", State: "accepted"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.RecordSubmission(model.SubmissionRecord{CTestID: "aa", State: "rejected"}); err != nil {
		t.Fatal(err)
	}

	exp, err := s.ExportHistory()
	if err != nil {
		t.Fatalf("ExportHistory: %v", err)
	}

	var ids []string
	for _, te := range exp.Tests {
		ids = append(ids, te.CTestID)
	}
	want := []string{"t1", "t2", "aa", "zz"}
	if len(ids) != len(want) {
		t.Fatalf("tests = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("tests = %v, want %v", ids, want)
		}
	}

	if len(exp.Tests[0].Submissions) != 1 {
		t.Errorf("t1 submissions = %d", len(exp.Tests[0].Submissions))
	}
	if exp.Tests[1].Submissions == nil {
		t.Error("tests without submissions should export an empty list")
	}
	if exp.Tests[2].CreatedAt != nil {
		t.Error("tests only known from submissions have no creation time")
	}
}

func TestWriteXLSX(t *testing.T) {
	exp := &model.HistoryExport{
		Tests: []model.TestExport{
			{
				CTestID:    "t1",
				Difficulty: model.DifficultyHard,
				Submissions: []model.SubmissionRecord{
					{CTestID: "t1", State: "accepted", CorrectCount: 3, TotalCount: 4, Percentage: 75, CreatedAt: baseTime},
					{CTestID: "t1", State: "duplicate", CreatedAt: baseTime},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, exp); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Submissions")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "ctest_id" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "hard" || rows[1][2] != "accepted" || rows[1][4] != "3" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][9] != "2025-03-14T09:00:00Z" {
		t.Errorf("submitted_at = %q", rows[2][9])
	}
}
