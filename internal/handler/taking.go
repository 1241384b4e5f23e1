package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cloze-lab/ctest/internal/backend"
	"github.com/cloze-lab/ctest/internal/ctest"
	"github.com/cloze-lab/ctest/internal/handler/views"
	appI18n "github.com/cloze-lab/ctest/internal/i18n"
	"github.com/cloze-lab/ctest/internal/model"
	"github.com/cloze-lab/ctest/internal/monitoring"
)

// testID validates the {id} route parameter.
func (h *Handler) testID(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		slog.Warn("invalid test id", "id", raw)
		h.renderError(w, r, http.StatusBadRequest, "InvalidTestID")
		return "", false
	}
	return id.String(), true
}

// loadFailed renders the page for a failed page-data call.
func (h *Handler) loadFailed(w http.ResponseWriter, r *http.Request, id string, err error) {
	if backend.IsNotFound(err) {
		slog.Info("test not found", "ctest_id", id)
		h.renderError(w, r, http.StatusNotFound, "TestNotFound")
		return
	}
	slog.Error("failed to load test", "ctest_id", id, "error", err)
	h.renderError(w, r, http.StatusBadGateway, "LoadFailed")
}

// takingState is the page state reconstructed for one round trip.
type takingState struct {
	id       string
	page     *model.PageData
	form     *ctest.Form
	hints    model.GivenHints
	cooldown ctest.Cooldown
}

func (h *Handler) loadTaking(w http.ResponseWriter, r *http.Request) (*takingState, bool) {
	id, ok := h.testID(w, r)
	if !ok {
		return nil, false
	}
	pd, err := h.backend.LoadTest(r.Context(), id)
	if err != nil {
		h.loadFailed(w, r, id, err)
		return nil, false
	}
	st := &takingState{
		id:    id,
		page:  pd,
		form:  ctest.Build(pd.Text, pd.Answers, ctest.ModeEditable),
		hints: model.GivenHints{},
	}
	if r.Method == http.MethodPost {
		st.form.FillFrom(r.PostFormValue)
		st.hints = decodeHints(r.PostFormValue("given_hints"))
		st.cooldown = ctest.ParseCooldown(r.PostFormValue("hint_until"))
	}
	return st, true
}

func decodeHints(raw string) model.GivenHints {
	hints := model.GivenHints{}
	if raw == "" {
		return hints
	}
	if err := json.Unmarshal([]byte(raw), &hints); err != nil {
		slog.Warn("discarding undecodable hints", "error", err)
		return model.GivenHints{}
	}
	return hints
}

func encodeHints(hints model.GivenHints) string {
	if len(hints) == 0 {
		return ""
	}
	b, err := json.Marshal(hints.Slots())
	if err != nil {
		slog.Error("failed to encode hints", "error", err)
		return ""
	}
	return string(b)
}

func (h *Handler) takingData(r *http.Request, st *takingState) views.TakingData {
	d := views.TakingData{
		CTestID:   st.id,
		Form:      st.form,
		HintsJSON: encodeHints(st.hints),
		HintUntil: st.cooldown.Encode(),
		HintsUsed: st.hints.Total(),
		Controls:  ctest.Controls{SubmitLabel: appI18n.T(r.Context(), string(ctest.MsgSend))},
	}
	if st.form.Len() == 0 {
		d.Locked = true
		d.Controls.SubmitDisabled = true
		d.Message = ctest.Message{
			Lines:    []string{appI18n.T(r.Context(), string(ctest.MsgNoAnswers))},
			Severity: ctest.SeverityWarning,
		}
	}
	return d
}

func (h *Handler) renderTaking(w http.ResponseWriter, r *http.Request, status int, d views.TakingData) {
	if isHTMX(r) {
		h.render(w, r, status, views.TakingForm(d))
		return
	}
	h.render(w, r, status, views.TakingPage(d))
}

func (h *Handler) handleTakingPage(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadTaking(w, r)
	if !ok {
		return
	}
	h.renderTaking(w, r, http.StatusOK, h.takingData(r, st))
}

func (h *Handler) handleHint(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadTaking(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var msg ctest.Message

	now := h.now()
	switch {
	case st.form.Len() == 0:
	case !st.cooldown.Allow(now):
		monitoring.HintsThrottled.Inc()
		msg = ctest.Message{Lines: []string{appI18n.T(ctx, "HintCooldown")}, Severity: ctest.SeverityInfo}
	default:
		before := st.hints.Total()
		if idx, ok := ctest.Hint(st.form, st.page.Answers, st.hints); ok {
			if st.hints.Total() > before {
				monitoring.HintsGiven.Inc()
			}
			st.cooldown = ctest.NextCooldown(now, h.config.HintCooldown)
			slog.Debug("hint served", "ctest_id", st.id, "blank_index", idx)
		} else {
			msg = ctest.Message{
				Lines:    []string{appI18n.T(ctx, string(ctest.MsgHintNothingToShow))},
				Severity: ctest.SeverityInfo,
			}
		}
	}

	d := h.takingData(r, st)
	if !msg.Empty() {
		d.Message = msg
	}
	h.renderTaking(w, r, http.StatusOK, d)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	st, ok := h.loadTaking(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	sub := ctest.NewSubmission(st.form, appI18n.Translator(ctx))
	if err := sub.Run(ctx, h.backend, st.id, st.hints); err != nil {
		slog.Warn("submission aborted", "ctest_id", st.id, "error", err)
		d := h.takingData(r, st)
		if errors.Is(err, ctest.ErrNoFields) {
			d.Message = ctest.Message{Lines: []string{appI18n.T(ctx, string(ctest.MsgNoAnswers))}, Severity: ctest.SeverityWarning}
		}
		h.renderTaking(w, r, http.StatusUnprocessableEntity, d)
		return
	}

	monitoring.Submissions.WithLabelValues(sub.State.String()).Inc()
	h.recordSubmission(st, sub)

	d := h.takingData(r, st)
	d.Controls = sub.Controls
	d.Message = sub.Message
	status := http.StatusOK
	switch sub.State {
	case ctest.StateAcceptedFresh, ctest.StateAcceptedDuplicate:
		d.Locked = true
	case ctest.StateRejected:
		status = http.StatusBadGateway
	}
	h.renderTaking(w, r, status, d)
}

func (h *Handler) recordSubmission(st *takingState, sub *ctest.Submission) {
	rec := model.SubmissionRecord{
		CTestID:   st.id,
		State:     sub.State.String(),
		HintsUsed: st.hints.Total(),
	}
	if resp := sub.Response; resp != nil {
		rec.SubmissionID = resp.SubmissionID
		if sd := resp.ScoreData; sd != nil {
			rec.CorrectCount = sd.CorrectCount
			rec.TotalCount = sd.TotalCount
			rec.Percentage = sd.Percentage
		}
	}
	if sub.State == ctest.StateRejected {
		rec.Detail = sub.Message.Text()
	}
	if _, err := h.store.RecordSubmission(rec); err != nil {
		slog.Warn("failed to record submission", "ctest_id", st.id, "error", err)
	}
}
