// Package store keeps the local history of this frontend: tests generated
// through it and the submission outcomes it observed.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cloze-lab/ctest/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS generated_tests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ctest_id TEXT NOT NULL UNIQUE,
		difficulty TEXT NOT NULL,
		original_text TEXT NOT NULL DEFAULT '',
		ctest_text TEXT NOT NULL DEFAULT '',
		share_url TEXT NOT NULL,
		results_url TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS submission_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ctest_id TEXT NOT NULL,
		state TEXT NOT NULL,
		submission_id TEXT NOT NULL DEFAULT '',
		correct_count INTEGER NOT NULL DEFAULT 0,
		total_count INTEGER NOT NULL DEFAULT 0,
		percentage REAL NOT NULL DEFAULT 0,
		hints_used INTEGER NOT NULL DEFAULT 0,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submission_log_ctest ON submission_log(ctest_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// RecordGenerated stores a generated test. Recording the same test ID again
// refreshes its links and keeps the original creation time.
func (s *Store) RecordGenerated(t model.GeneratedTest) (int64, error) {
	if t.CTestID == "" {
		return 0, errors.New("generated test has no id")
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO generated_tests (ctest_id, difficulty, original_text, ctest_text, share_url, results_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(ctest_id) DO UPDATE SET share_url = excluded.share_url, results_url = excluded.results_url`,
		t.CTestID, t.Difficulty, t.OriginalText, t.CTestText, t.ShareURL, t.ResultsURL, t.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRow(`SELECT id FROM generated_tests WHERE ctest_id = ?`, t.CTestID).Scan(&id)
	return id, err
}

// GetGenerated returns a generated test by its test ID.
func (s *Store) GetGenerated(ctestID string) (*model.GeneratedTest, error) {
	var t model.GeneratedTest
	err := s.db.QueryRow(
		`SELECT g.id, g.ctest_id, g.difficulty, g.original_text, g.ctest_text, g.share_url, g.results_url, g.created_at,
		        (SELECT COUNT(*) FROM submission_log l WHERE l.ctest_id = g.ctest_id AND l.state = ?)
		 FROM generated_tests g WHERE g.ctest_id = ?`, acceptedState, ctestID,
	).Scan(&t.ID, &t.CTestID, &t.Difficulty, &t.OriginalText, &t.CTestText, &t.ShareURL, &t.ResultsURL, &t.CreatedAt, &t.Submissions)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListGenerated returns the most recently generated tests, newest first.
// limit <= 0 returns all.
func (s *Store) ListGenerated(limit int) ([]model.GeneratedTest, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT g.id, g.ctest_id, g.difficulty, g.original_text, g.ctest_text, g.share_url, g.results_url, g.created_at,
		        (SELECT COUNT(*) FROM submission_log l WHERE l.ctest_id = g.ctest_id AND l.state = ?)
		 FROM generated_tests g ORDER BY g.created_at DESC, g.id DESC LIMIT ?`, acceptedState, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tests []model.GeneratedTest
	for rows.Next() {
		var t model.GeneratedTest
		if err := rows.Scan(&t.ID, &t.CTestID, &t.Difficulty, &t.OriginalText, &t.CTestText, &t.ShareURL, &t.ResultsURL, &t.CreatedAt, &t.Submissions); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// acceptedState is the state label of a freshly stored submission.
const acceptedState = "accepted"

// RecordSubmission appends a submission outcome to the log.
func (s *Store) RecordSubmission(r model.SubmissionRecord) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO submission_log (ctest_id, state, submission_id, correct_count, total_count, percentage, hints_used, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CTestID, r.State, r.SubmissionID, r.CorrectCount, r.TotalCount, r.Percentage, r.HintsUsed, r.Detail, r.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListSubmissions returns logged submissions in insertion order. An empty
// ctestID returns the whole log.
func (s *Store) ListSubmissions(ctestID string) ([]model.SubmissionRecord, error) {
	query := `SELECT id, ctest_id, state, submission_id, correct_count, total_count, percentage, hints_used, detail, created_at
		FROM submission_log`
	var args []any
	if ctestID != "" {
		query += ` WHERE ctest_id = ?`
		args = append(args, ctestID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []model.SubmissionRecord
	for rows.Next() {
		var r model.SubmissionRecord
		if err := rows.Scan(&r.ID, &r.CTestID, &r.State, &r.SubmissionID, &r.CorrectCount, &r.TotalCount, &r.Percentage, &r.HintsUsed, &r.Detail, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SubmissionCount returns the number of logged submissions.
func (s *Store) SubmissionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM submission_log`).Scan(&count)
	return count, err
}
