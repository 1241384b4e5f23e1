package handler

import (
	"log/slog"
	"net/http"

	"github.com/cloze-lab/ctest/internal/ctest"
	"github.com/cloze-lab/ctest/internal/handler/views"
	appI18n "github.com/cloze-lab/ctest/internal/i18n"
)

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	id, ok := h.testID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	rd, err := h.backend.LoadResults(ctx, id)
	if err != nil {
		h.loadFailed(w, r, id, err)
		return
	}

	form := ctest.Build(rd.Text, rd.Answers, ctest.ModeReadOnly)
	form.Fill(rd.StudentAnswers)
	for idx, reveal := range rd.GivenHints {
		if reveal.Count() == 0 {
			continue
		}
		fld, ok := form.Field(idx)
		if !ok {
			slog.Warn("hint for unknown blank", "ctest_id", id, "blank_index", idx)
			continue
		}
		fld.GivenHint = appI18n.Td(ctx, string(ctest.MsgGivenHint), map[string]any{"Hint": reveal.String()})
	}

	d := views.ReviewData{
		CTestID:   id,
		Form:      form,
		HintsUsed: rd.GivenHints.Total(),
	}
	if rd.ScoreData != nil {
		ctest.ApplyDetails(form, rd.ScoreData.DetailedResults)
		d.Message = ctest.Message{
			Lines:    []string{ctest.ResultLine(appI18n.Translator(ctx), rd.ScoreData)},
			Severity: ctest.SeverityInfo,
		}
	} else {
		d.Message = ctest.Message{
			Lines:    []string{appI18n.T(ctx, "NoSubmission")},
			Severity: ctest.SeverityInfo,
		}
	}
	h.render(w, r, http.StatusOK, views.ReviewPage(d))
}
