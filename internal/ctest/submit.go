package ctest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloze-lab/ctest/internal/model"
)

var (
	// ErrMalformedResponse marks a success response missing required fields.
	ErrMalformedResponse = errors.New("malformed server response")
	// ErrMissingTestID is returned when a submission has no test identifier.
	ErrMissingTestID = errors.New("ctest id is undefined")
	// ErrSubmitInert is returned when the submit control is disabled.
	ErrSubmitInert = errors.New("submit control is disabled")
)

// Submitter sends answers to the scoring backend.
type Submitter interface {
	Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error)
}

// ServerError is implemented by errors that represent a non-2xx response.
type ServerError interface {
	error
	ServerDetail() string
}

// State is the submission protocol state.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateAcceptedFresh
	StateAcceptedDuplicate
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateAcceptedFresh:
		return "accepted"
	case StateAcceptedDuplicate:
		return "duplicate"
	case StateRejected:
		return "rejected"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Controls is the state of the submit control and the form.
type Controls struct {
	SubmitDisabled bool
	SubmitLabel    string
	Loading        bool
}

// Submission drives one form through the submit protocol.
type Submission struct {
	Form     *Form
	State    State
	Controls Controls
	Message  Message
	Response *model.SubmitResponse

	t Translator
}

// NewSubmission returns an idle submission for form.
func NewSubmission(form *Form, t Translator) *Submission {
	return &Submission{
		Form:     form,
		State:    StateIdle,
		Controls: Controls{SubmitLabel: t(MsgSend, nil)},
		t:        t,
	}
}

// Run collects the answers and sends them. Errors are returned only when the
// submission is aborted before any network call; server and transport failures
// end in StateRejected with a message instead.
func (s *Submission) Run(ctx context.Context, sub Submitter, ctestID string, hints model.GivenHints) error {
	if s.Controls.SubmitDisabled {
		return ErrSubmitInert
	}
	if ctestID == "" {
		slog.Error("cannot submit", "error", ErrMissingTestID)
		return ErrMissingTestID
	}
	answers, err := s.Form.Collect()
	if err != nil {
		return err
	}
	if hints == nil {
		hints = model.GivenHints{}
	}

	s.State = StateSubmitting
	s.Controls = Controls{
		SubmitDisabled: true,
		SubmitLabel:    s.t(MsgTransfer, nil),
		Loading:        true,
	}
	defer func() {
		if s.State != StateAcceptedDuplicate {
			s.restore()
		}
	}()

	resp, err := sub.Submit(ctx, model.SubmitRequest{
		CTestID:        ctestID,
		StudentAnswers: answers,
		GivenHints:     hints,
	})
	if err == nil && (resp == nil || resp.WasInDB == nil) {
		err = fmt.Errorf("%w: missing was_in_db", ErrMalformedResponse)
	}
	if err != nil {
		s.reject(err)
		return nil
	}

	s.Response = resp
	if *resp.WasInDB {
		s.duplicate()
		return nil
	}
	s.accept(resp)
	return nil
}

func (s *Submission) restore() {
	s.Controls = Controls{SubmitLabel: s.t(MsgSend, nil)}
}

func (s *Submission) duplicate() {
	s.State = StateAcceptedDuplicate
	s.Message = Message{Lines: []string{s.t(MsgFormSent, nil)}, Severity: SeverityWarning}
	s.Controls = Controls{SubmitDisabled: true, SubmitLabel: s.t(MsgSent, nil)}
	s.Form.DisableAll()
}

func (s *Submission) accept(resp *model.SubmitResponse) {
	s.State = StateAcceptedFresh
	first := resp.Message
	if first == "" {
		first = s.t(MsgSaved, nil)
	}
	lines := []string{first}
	if sd := resp.ScoreData; sd != nil {
		lines = append(lines, ResultLine(s.t, sd))
		if sd.DetailedResults != nil {
			ApplyDetails(s.Form, sd.DetailedResults)
		}
	}
	s.Message = Message{Lines: lines, Severity: SeveritySuccess}
}

func (s *Submission) reject(err error) {
	s.State = StateRejected
	var se ServerError
	if errors.As(err, &se) {
		detail := se.ServerDetail()
		if detail == "" {
			detail = s.t(MsgUnknown, nil)
		}
		slog.Warn("submission rejected", "error", err)
		s.Message = Message{
			Lines:    []string{s.t(MsgSendError, map[string]any{"Detail": detail})},
			Severity: SeverityDanger,
		}
		return
	}
	slog.Error("submission failed", "error", err)
	s.Message = Message{Lines: []string{s.t(MsgRequestFailed, nil)}, Severity: SeverityDanger}
}

// ResultLine formats the aggregate score.
func ResultLine(t Translator, sd *model.ScoreData) string {
	return t(MsgResult, map[string]any{
		"Correct":    sd.CorrectCount,
		"Total":      sd.TotalCount,
		"Percentage": fmt.Sprintf("%.2f", sd.Percentage),
	})
}
