package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloze-lab/ctest/internal/backend"
	"github.com/cloze-lab/ctest/internal/ctest"
	"github.com/cloze-lab/ctest/internal/handler/views"
	appI18n "github.com/cloze-lab/ctest/internal/i18n"
	"github.com/cloze-lab/ctest/internal/model"
)

const historyLimit = 20

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// stripTags removes anything that looks like an HTML tag.
func stripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, views.IndexPage(views.IndexData{
		Difficulty: model.DifficultyMedium,
		History:    h.history(),
	}))
}

func (h *Handler) history() []model.GeneratedTest {
	tests, err := h.store.ListGenerated(historyLimit)
	if err != nil {
		slog.Error("failed to list generated tests", "error", err)
		return nil
	}
	return tests
}

// generateRequest reads and validates the authoring form.
func (h *Handler) generateRequest(r *http.Request) (model.GenerateRequest, error) {
	req := model.GenerateRequest{
		OriginalText: strings.TrimSpace(stripTags(r.PostFormValue("original_text"))),
		Difficulty:   model.Difficulty(r.PostFormValue("difficulty")),
	}
	if err := h.validate.Struct(req); err != nil {
		slog.Debug("authoring form rejected", "error", err)
		return req, ErrMissingInput
	}
	return req, nil
}

// renderAuthoring renders the result area for htmx requests and the whole
// page otherwise.
func (h *Handler) renderAuthoring(w http.ResponseWriter, r *http.Request, status int, d views.IndexData) {
	if isHTMX(r) {
		h.render(w, r, status, views.GenerateResult(d.Message, d.Result))
		return
	}
	d.History = h.history()
	h.render(w, r, status, views.IndexPage(d))
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.generateRequest(r)
	d := views.IndexData{Text: req.OriginalText, Difficulty: req.Difficulty}
	if err != nil {
		d.Message = ctest.Message{Lines: []string{appI18n.T(ctx, string(ctest.MsgMissingInput))}, Severity: ctest.SeverityWarning}
		h.renderAuthoring(w, r, http.StatusUnprocessableEntity, d)
		return
	}

	resp, err := h.backend.Generate(ctx, req)
	if err == nil && (resp.ShareURL == "" || resp.ResultsURL == "") {
		err = ctest.ErrMalformedResponse
	}
	if err != nil {
		slog.Error("test generation failed", "error", err)
		d.Message = failureMessage(r, ctest.MsgGenerationFailed, err)
		h.renderAuthoring(w, r, http.StatusBadGateway, d)
		return
	}

	shareURL := h.absoluteURL(r, resp.ShareURL)
	resultsURL := h.absoluteURL(r, resp.ResultsURL)
	ctestID := testIDFromURL(resp.ShareURL)
	if ctestID != "" {
		if _, err := h.store.RecordGenerated(model.GeneratedTest{
			CTestID:      ctestID,
			Difficulty:   req.Difficulty,
			OriginalText: req.OriginalText,
			CTestText:    resp.CTestText,
			ShareURL:     shareURL,
			ResultsURL:   resultsURL,
		}); err != nil {
			slog.Warn("failed to record generated test", "ctest_id", ctestID, "error", err)
		}
	}
	slog.Info("test generated", "ctest_id", ctestID, "difficulty", req.Difficulty)

	d.Result = &views.GeneratedData{
		ShareURL:    shareURL,
		ResultsURL:  resultsURL,
		CTestText:   resp.CTestText,
		StudentCode: resp.StudentCode,
		TeacherCode: resp.TeacherCode,
	}
	h.renderAuthoring(w, r, http.StatusOK, d)
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := h.generateRequest(r)
	d := views.IndexData{Text: req.OriginalText, Difficulty: req.Difficulty}
	if err != nil {
		d.Message = ctest.Message{Lines: []string{appI18n.T(ctx, string(ctest.MsgMissingInput))}, Severity: ctest.SeverityWarning}
		h.renderAuthoring(w, r, http.StatusUnprocessableEntity, d)
		return
	}

	data, err := h.backend.GeneratePDF(ctx, req)
	if err != nil {
		slog.Error("pdf generation failed", "error", err)
		// The endpoint's error bodies are meant for display as they are.
		text := appI18n.T(ctx, string(ctest.MsgPDFFailed))
		var se *backend.StatusError
		if errors.As(err, &se) && se.Detail != "" {
			text = se.Detail
		}
		d.Message = ctest.Message{Lines: []string{text}, Severity: ctest.SeverityDanger}
		h.renderAuthoring(w, r, http.StatusBadGateway, d)
		return
	}

	filename := fmt.Sprintf("CTest_%s.pdf", h.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Warn("pdf write failed", "error", err)
	}
}

// failureMessage builds the alert for a failed backend call: the generic
// text, followed by the server's detail when there is one.
func failureMessage(r *http.Request, id ctest.MessageID, err error) ctest.Message {
	lines := []string{appI18n.T(r.Context(), string(id))}
	var se ctest.ServerError
	if errors.As(err, &se) && se.ServerDetail() != "" {
		lines = append(lines, se.ServerDetail())
	}
	return ctest.Message{Lines: lines, Severity: ctest.SeverityDanger}
}

// absoluteURL resolves a backend-relative link against the public origin, or
// the request's own origin when none is configured.
func (h *Handler) absoluteURL(r *http.Request, link string) string {
	u, err := url.Parse(link)
	if err != nil || u.IsAbs() {
		return link
	}
	origin := strings.TrimRight(h.config.PublicURL, "/")
	if origin == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		origin = scheme + "://" + r.Host
	}
	base, err := url.Parse(origin + "/")
	if err != nil {
		return link
	}
	return base.ResolveReference(u).String()
}

// testIDFromURL returns the last path segment of a share link, which is the
// test's identifier.
func testIDFromURL(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	id := path.Base(strings.TrimRight(u.Path, "/"))
	if id == "." || id == "/" {
		return ""
	}
	return id
}
