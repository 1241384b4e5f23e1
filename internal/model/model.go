package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// BlankMarker is the rune the backend uses to mark blank positions in test text.
const BlankMarker = '_'

// Difficulty controls server-side blank density. Opaque to the frontend.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the accepted difficulty values in display order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

// AnswerSpec describes the expected answer of one blank.
// Only Len is needed to render a form; Answer is needed for hints and feedback.
type AnswerSpec struct {
	Answer string
	Length int
}

// Len returns the number of marker runes the blank occupies.
func (a AnswerSpec) Len() int {
	if a.Length > 0 {
		return a.Length
	}
	return utf8.RuneCountInString(a.Answer)
}

type answerSpecJSON struct {
	Answer string          `json:"answer"`
	Length json.RawMessage `json:"length,omitempty"`
}

// UnmarshalJSON accepts length as a number or a numeric string ("3").
func (a *AnswerSpec) UnmarshalJSON(data []byte) error {
	var raw answerSpecJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Answer = raw.Answer
	a.Length = 0
	if len(raw.Length) == 0 || string(raw.Length) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(raw.Length, &n); err == nil {
		a.Length = n
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Length, &s); err != nil {
		return fmt.Errorf("answer length: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("answer length %q: %w", s, err)
	}
	a.Length = n
	return nil
}

// MarshalJSON emits the backend's shape, with length as a string.
func (a AnswerSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Answer string `json:"answer"`
		Length string `json:"length"`
	}{a.Answer, strconv.Itoa(a.Len())})
}

// AnswerSpecs maps blank index to its answer spec.
type AnswerSpecs map[int]AnswerSpec

// UserAnswerMap maps blank index to the student's trimmed input.
type UserAnswerMap map[int]string

// DetailResult is the server's verdict for one blank.
type DetailResult struct {
	IsCorrect      bool   `json:"is_correct"`
	ExpectedAnswer string `json:"expected_answer"`
	StudentAnswer  string `json:"student_answer,omitempty"`
}

// ScoreData is the server-computed outcome of a submission.
type ScoreData struct {
	CorrectCount    int                  `json:"correct_count"`
	TotalCount      int                  `json:"total_count"`
	Percentage      float64              `json:"percentage"`
	DetailedResults map[int]DetailResult `json:"detailed_results,omitempty"`
}

// GenerateRequest is the body of the generate-test and generate-pdf calls.
type GenerateRequest struct {
	OriginalText string     `json:"original_text" validate:"required"`
	Difficulty   Difficulty `json:"difficulty" validate:"required,oneof=easy medium hard"`
}

// GenerateResponse is returned by the generate-test call.
type GenerateResponse struct {
	ShareURL    string `json:"share_url"`
	ResultsURL  string `json:"results_url"`
	CTestText   string `json:"ctest_text"`
	StudentCode string `json:"student_code"`
	TeacherCode string `json:"teacher_code"`
}

// SubmitRequest is the body of the submit-answers call.
type SubmitRequest struct {
	CTestID        string        `json:"ctest_id"`
	StudentAnswers UserAnswerMap `json:"student_answers"`
	GivenHints     GivenHints    `json:"given_hints"`
}

// SubmitResponse is returned by the submit-answers call.
// WasInDB is a pointer so a response missing the field can be told apart.
type SubmitResponse struct {
	WasInDB      *bool      `json:"was_in_db"`
	Message      string     `json:"message,omitempty"`
	SubmissionID string     `json:"submission_id,omitempty"`
	ScoreData    *ScoreData `json:"score_data,omitempty"`
}

// PageData is the initial state of a taking page.
type PageData struct {
	CTestID string      `json:"ctest_id"`
	Text    string      `json:"ctest_text"`
	Answers AnswerSpecs `json:"correct_answers"`
}

// ReviewData is the initial state of a results page.
type ReviewData struct {
	PageData
	StudentAnswers UserAnswerMap `json:"student_answers"`
	ScoreData      *ScoreData    `json:"score_data"`
	GivenHints     GivenHints    `json:"given_hints"`
}

// AppConfig holds runtime frontend parameters set via CLI flags.
type AppConfig struct {
	BasePath      string // URL prefix for sub-path deployments
	PublicURL     string // origin used for share links; empty means the request origin
	SecureCookies bool
	HintCooldown  time.Duration
	// GenerateRate is the sustained per-client rate of generation requests
	// per second; zero disables limiting.
	GenerateRate  float64
	GenerateBurst int
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}
