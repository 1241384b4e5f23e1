package model

import "time"

// GeneratedTest is a test created through this frontend.
type GeneratedTest struct {
	ID           int64      `json:"-"`
	CTestID      string     `json:"ctest_id"`
	Difficulty   Difficulty `json:"difficulty"`
	OriginalText string     `json:"original_text"`
	CTestText    string     `json:"ctest_text"`
	ShareURL     string     `json:"share_url"`
	ResultsURL   string     `json:"results_url"`
	CreatedAt    time.Time  `json:"created_at"`
	// Submissions counts accepted submissions observed for the test.
	Submissions int `json:"submissions"`
}

// SubmissionRecord is one observed submission outcome.
type SubmissionRecord struct {
	ID           int64     `json:"-"`
	CTestID      string    `json:"ctest_id"`
	State        string    `json:"state"`
	SubmissionID string    `json:"submission_id,omitempty"`
	CorrectCount int       `json:"correct_count"`
	TotalCount   int       `json:"total_count"`
	Percentage   float64   `json:"percentage"`
	HintsUsed    int       `json:"hints_used"`
	Detail       string    `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HistoryExport is the top-level JSON structure of the export command.
type HistoryExport struct {
	ExportedAt time.Time    `json:"exported_at"`
	Tests      []TestExport `json:"tests"`
}

// TestExport groups the submissions of one test.
type TestExport struct {
	CTestID     string             `json:"ctest_id"`
	Difficulty  Difficulty         `json:"difficulty,omitempty"`
	CreatedAt   *time.Time         `json:"created_at,omitempty"`
	ShareURL    string             `json:"share_url,omitempty"`
	ResultsURL  string             `json:"results_url,omitempty"`
	Submissions []SubmissionRecord `json:"submissions"`
}
