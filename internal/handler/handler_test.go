package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloze-lab/ctest/internal/backend"
	appI18n "github.com/cloze-lab/ctest/internal/i18n"
	"github.com/cloze-lab/ctest/internal/model"
	"github.com/cloze-lab/ctest/internal/store"
)

const (
	testID    = "3f2c6f0e-8a4b-4d3e-9b1a-6c2d8e7f9a01"
	testToken = "test-csrf-token"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

type fakeBackend struct {
	mu sync.Mutex

	page    *model.PageData
	results *model.ReviewData
	loadErr error

	genResp *model.GenerateResponse
	genErr  error
	pdf     []byte
	pdfErr  error

	submitResp *model.SubmitResponse
	submitErr  error

	generated []model.GenerateRequest
	submits   []model.SubmitRequest
}

func (f *fakeBackend) Generate(_ context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated = append(f.generated, req)
	return f.genResp, f.genErr
}

func (f *fakeBackend) GeneratePDF(_ context.Context, req model.GenerateRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated = append(f.generated, req)
	return f.pdf, f.pdfErr
}

func (f *fakeBackend) LoadTest(_ context.Context, id string) (*model.PageData, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	pd := *f.page
	pd.CTestID = id
	return &pd, nil
}

func (f *fakeBackend) LoadResults(_ context.Context, id string) (*model.ReviewData, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	rd := *f.results
	rd.CTestID = id
	return &rd, nil
}

func (f *fakeBackend) Submit(_ context.Context, req model.SubmitRequest) (*model.SubmitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, req)
	return f.submitResp, f.submitErr
}

func boolPtr(b bool) *bool { return &b }

// samplePage is "Der Hu__ bel__ laut." with answers "nd" and "lt".
func samplePage() *model.PageData {
	return &model.PageData{
		Text: "Der Hu__ bel__ laut.",
		Answers: model.AnswerSpecs{
			0: {Answer: "nd", Length: 2},
			1: {Answer: "lt", Length: 2},
		},
	}
}

type testEnv struct {
	h       *Handler
	router  http.Handler
	store   *store.Store
	backend *fakeBackend
}

func newTestEnv(t *testing.T, fb *fakeBackend, cfg model.AppConfig) *testEnv {
	t.Helper()
	require.NoError(t, appI18n.Init("de"))

	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	if cfg.HintCooldown == 0 {
		cfg.HintCooldown = time.Second
	}
	h, err := New(fb, s, cfg)
	require.NoError(t, err)
	h.now = func() time.Time { return fixedNow }
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Use(appI18n.Middleware("de"))
	r.Use(h.BasePathMiddleware)
	h.Routes(r)

	return &testEnv{h: h, router: r, store: s, backend: fb}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) post(t *testing.T, path string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", testToken)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: testToken})
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{}, model.AppConfig{})
	_, err := env.store.RecordGenerated(model.GeneratedTest{
		CTestID:    testID,
		Difficulty: model.DifficultyHard,
		CTestText:  "Der Hu__ bellt.",
		ShareURL:   "https://ctest.example/s",
		ResultsURL: "https://ctest.example/r",
	})
	require.NoError(t, err)

	rec := env.get(t, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="original_text"`)
	assert.Contains(t, body, `value="medium" checked`)
	assert.Contains(t, body, `href="/results/`+testID+`"`)
	assert.Contains(t, body, "Schwer")
	assert.Contains(t, body, "0 Abgaben")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var csrf *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName {
			csrf = c
		}
	}
	require.NotNil(t, csrf, "GET should issue a CSRF cookie")
	assert.Contains(t, body, `name="csrf_token" value="`+csrf.Value+`"`)
}

func TestCSRFRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{}, model.AppConfig{})
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("original_text=x&difficulty=easy"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, env.backend.generated)
}

func TestGenerateMissingInput(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"empty", url.Values{}},
		{"tags only", url.Values{"original_text": {"<b></b>"}, "difficulty": {"easy"}}},
		{"no difficulty", url.Values{"original_text": {"Text"}}},
		{"unknown difficulty", url.Values{"original_text": {"Text"}, "difficulty": {"extreme"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeBackend{}, model.AppConfig{})
			rec := env.post(t, "/generate", tt.form, false)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), "Bitte geben Sie einen Text ein")
			assert.Empty(t, env.backend.generated)
		})
	}
}

func TestGenerateSuccess(t *testing.T) {
	fb := &fakeBackend{genResp: &model.GenerateResponse{
		ShareURL:    "/api/student_authorize/" + testID,
		ResultsURL:  "/api/teacher_authorize/" + testID,
		CTestText:   "Der Hu__ bellt.",
		StudentCode: "123456",
		TeacherCode: "654321",
	}}
	env := newTestEnv(t, fb, model.AppConfig{PublicURL: "https://ctest.example/"})

	rec := env.post(t, "/generate", url.Values{
		"original_text": {"<p>Der Hund bellt.</p>"},
		"difficulty":    {"hard"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	require.Len(t, fb.generated, 1)
	assert.Equal(t, "Der Hund bellt.", fb.generated[0].OriginalText)
	assert.Equal(t, model.DifficultyHard, fb.generated[0].Difficulty)

	assert.Contains(t, body, `href="https://ctest.example/api/student_authorize/`+testID+`"`)
	assert.Contains(t, body, "https://ctest.example/api/teacher_authorize/"+testID)
	assert.Contains(t, body, "<code>123456</code>")
	assert.Contains(t, body, "<code>654321</code>")
	assert.NotContains(t, body, "<html>", "htmx requests get the fragment only")

	g, err := env.store.GetGenerated(testID)
	require.NoError(t, err)
	assert.Equal(t, "Der Hund bellt.", g.OriginalText)
	assert.Equal(t, "https://ctest.example/api/student_authorize/"+testID, g.ShareURL)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name     string
		resp     *model.GenerateResponse
		err      error
		contains []string
	}{
		{"malformed", &model.GenerateResponse{ShareURL: "/s/x"}, nil, []string{"Fehler bei der Generierung des C-Tests"}},
		{"server detail", nil, &backend.StatusError{Status: 400, Detail: "Text zu kurz"}, []string{"Fehler bei der Generierung des C-Tests", "Text zu kurz"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeBackend{genResp: tt.resp, genErr: tt.err}, model.AppConfig{})
			rec := env.post(t, "/generate", url.Values{"original_text": {"Text"}, "difficulty": {"easy"}}, false)
			assert.Equal(t, http.StatusBadGateway, rec.Code)
			for _, s := range tt.contains {
				assert.Contains(t, rec.Body.String(), s)
			}
			assert.Contains(t, rec.Body.String(), "alert-danger")

			generated, err := env.store.ListGenerated(0)
			require.NoError(t, err)
			assert.Empty(t, generated)
		})
	}
}

func TestPDF(t *testing.T) {
	t.Run("download", func(t *testing.T) {
		env := newTestEnv(t, &fakeBackend{pdf: []byte("%PDF-1.4")}, model.AppConfig{})
		rec := env.post(t, "/pdf", url.Values{"original_text": {"Text"}, "difficulty": {"easy"}}, false)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="CTest_2025-03-14.pdf"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, "%PDF-1.4", rec.Body.String())
	})

	t.Run("plain text error", func(t *testing.T) {
		env := newTestEnv(t, &fakeBackend{pdfErr: &backend.StatusError{Status: 500, Detail: "LaTeX fehlgeschlagen"}}, model.AppConfig{})
		rec := env.post(t, "/pdf", url.Values{"original_text": {"Text"}, "difficulty": {"easy"}}, false)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), "LaTeX fehlgeschlagen")
		assert.Contains(t, rec.Body.String(), ">Text</textarea>", "input is kept")
	})

	t.Run("fallback message", func(t *testing.T) {
		env := newTestEnv(t, &fakeBackend{pdfErr: context.DeadlineExceeded}, model.AppConfig{})
		rec := env.post(t, "/pdf", url.Values{"original_text": {"Text"}, "difficulty": {"easy"}}, false)
		assert.Contains(t, rec.Body.String(), "Fehler beim PDF-Download")
	})
}

func TestRateLimitGeneration(t *testing.T) {
	fb := &fakeBackend{pdf: []byte("%PDF")}
	env := newTestEnv(t, fb, model.AppConfig{GenerateRate: 0.001, GenerateBurst: 1})
	form := func() url.Values { return url.Values{"original_text": {"Text"}, "difficulty": {"easy"}} }

	first := env.post(t, "/pdf", form(), false)
	assert.Equal(t, http.StatusOK, first.Code)

	second := env.post(t, "/pdf", form(), false)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "Zu viele Anfragen")
	assert.Len(t, fb.generated, 1)
}

func TestTakingPage(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{page: samplePage()}, model.AppConfig{})

	rec := env.get(t, "/ctest/"+testID)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="blank_0"`)
	assert.Contains(t, body, `name="blank_1"`)
	assert.Contains(t, body, `maxlength="2" style="width: 2em;"`)
	assert.Contains(t, body, `<span class="word">Der</span> <span class="word">Hu<input`)
	assert.Contains(t, body, `hx-post="/ctest/`+testID+`/submit"`)
	assert.Contains(t, body, `>Absenden</button>`)
}

func TestTakingPageErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
		text   string
	}{
		{"invalid id", "/ctest/not-a-uuid", nil, http.StatusBadRequest, "Ungültige Test-ID."},
		{"not found", "/ctest/" + testID, &backend.StatusError{Status: 404}, http.StatusNotFound, "nicht gefunden"},
		{"expired", "/ctest/" + testID, &backend.StatusError{Status: 410}, http.StatusNotFound, "nicht gefunden"},
		{"backend down", "/ctest/" + testID, context.DeadlineExceeded, http.StatusBadGateway, "konnte nicht geladen werden"},
		{"results not found", "/results/" + testID, &backend.StatusError{Status: 404}, http.StatusNotFound, "nicht gefunden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeBackend{page: samplePage(), loadErr: tt.err}, model.AppConfig{})
			rec := env.get(t, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.text)
		})
	}
}

func TestTakingPageWithoutBlanks(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{page: &model.PageData{Text: "Nur Text."}}, model.AppConfig{})
	rec := env.get(t, "/ctest/"+testID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keine Lücken")
	assert.Contains(t, rec.Body.String(), `disabled>Absenden</button>`)
}

func TestHint(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{page: samplePage()}, model.AppConfig{})

	rec := env.post(t, "/ctest/"+testID+"/hint", url.Values{
		"blank_0": {"nx"},
		"blank_1": {""},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, `name="blank_0" class="blank" data-index="0" maxlength="2" style="width: 2em;" value="nd"`)
	assert.Contains(t, body, `name="given_hints" value="{&#34;0&#34;:[null,&#34;d&#34;]}"`)
	wantUntil := fixedNow.Add(time.Second).UnixMilli()
	assert.Contains(t, body, `name="hint_until" value="`+itoa64(wantUntil)+`"`)
	assert.Contains(t, body, "1 Hinweis verwendet")
	assert.True(t, strings.HasPrefix(body, `<form id="ctest-form"`), "htmx requests get the form fragment")
}

func TestHintCooldown(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{page: samplePage()}, model.AppConfig{})

	rec := env.post(t, "/ctest/"+testID+"/hint", url.Values{
		"blank_0":    {"nx"},
		"hint_until": {itoa64(fixedNow.Add(500 * time.Millisecond).UnixMilli())},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Bitte warten Sie kurz")
	assert.Contains(t, body, `value="nx"`, "field unchanged while cooling down")
	assert.NotContains(t, body, "Hinweis verwendet")
}

func TestHintNothingToShow(t *testing.T) {
	env := newTestEnv(t, &fakeBackend{page: samplePage()}, model.AppConfig{})
	rec := env.post(t, "/ctest/"+testID+"/hint", url.Values{
		"blank_0": {"nd"},
		"blank_1": {" lt "},
	}, true)
	assert.Contains(t, rec.Body.String(), "Alle Lücken sind bereits richtig ausgefüllt.")
	assert.Contains(t, rec.Body.String(), `name="hint_until" value=""`)
}

func TestSubmitFresh(t *testing.T) {
	fb := &fakeBackend{
		page: samplePage(),
		submitResp: &model.SubmitResponse{
			WasInDB:      boolPtr(false),
			SubmissionID: "sub-1",
			ScoreData: &model.ScoreData{
				CorrectCount: 1,
				TotalCount:   2,
				Percentage:   50,
				DetailedResults: map[int]model.DetailResult{
					0: {IsCorrect: true, ExpectedAnswer: "nd"},
					1: {IsCorrect: false, ExpectedAnswer: "lt"},
				},
			},
		},
	}
	env := newTestEnv(t, fb, model.AppConfig{})

	rec := env.post(t, "/ctest/"+testID+"/submit", url.Values{
		"blank_0":     {" nd "},
		"blank_1":     {"xx"},
		"given_hints": {`{"0":"_d"}`},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	require.Len(t, fb.submits, 1)
	got := fb.submits[0]
	assert.Equal(t, testID, got.CTestID)
	assert.Equal(t, model.UserAnswerMap{0: "nd", 1: "xx"}, got.StudentAnswers)
	assert.Equal(t, 'd', got.GivenHints[0].At(1))

	assert.Contains(t, body, "Ergebnis gespeichert.")
	assert.Contains(t, body, "Ergebnis: 1/2 richtig (50.00%)")
	assert.Contains(t, body, `class="blank is-correct"`)
	assert.Contains(t, body, `class="blank is-incorrect"`)
	assert.Contains(t, body, `<span class="expected">lt</span>`)
	assert.Contains(t, body, `>Absenden</button>`)

	recs, err := env.store.ListSubmissions(testID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "accepted", recs[0].State)
	assert.Equal(t, "sub-1", recs[0].SubmissionID)
	assert.Equal(t, 1, recs[0].HintsUsed)
	assert.Equal(t, 50.0, recs[0].Percentage)
}

func TestSubmitDuplicate(t *testing.T) {
	fb := &fakeBackend{page: samplePage(), submitResp: &model.SubmitResponse{WasInDB: boolPtr(true)}}
	env := newTestEnv(t, fb, model.AppConfig{})

	rec := env.post(t, "/ctest/"+testID+"/submit", url.Values{"blank_0": {"nd"}, "blank_1": {"lt"}}, false)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Dieser Test wurde bereits übermittelt.")
	assert.Contains(t, body, `disabled>Bereits gesendet</button>`)
	assert.Contains(t, body, `value="nd" disabled>`)
	assert.NotContains(t, body, `class="blank is-correct"`)

	recs, err := env.store.ListSubmissions(testID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "duplicate", recs[0].State)
}

func TestSubmitRejected(t *testing.T) {
	tests := []struct {
		name string
		resp *model.SubmitResponse
		err  error
		want string
	}{
		{"server detail", nil, &backend.StatusError{Status: 410, Detail: "Test abgelaufen"}, "Fehler beim Absenden: Test abgelaufen"},
		{"server without detail", nil, &backend.StatusError{Status: 500}, "Fehler beim Absenden: Unbekannter Fehler"},
		{"transport", nil, context.DeadlineExceeded, "Die Anfrage ist fehlgeschlagen"},
		{"malformed", &model.SubmitResponse{Message: "ok"}, nil, "Die Anfrage ist fehlgeschlagen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &fakeBackend{page: samplePage(), submitResp: tt.resp, submitErr: tt.err}, model.AppConfig{})
			rec := env.post(t, "/ctest/"+testID+"/submit", url.Values{"blank_0": {"nd"}, "blank_1": {"lt"}}, false)
			assert.Equal(t, http.StatusBadGateway, rec.Code)
			body := rec.Body.String()
			assert.Contains(t, body, tt.want)
			assert.Contains(t, body, `hx-indicator="#ctest-form">Absenden</button>`, "submit control restored")

			recs, err := env.store.ListSubmissions(testID)
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, "rejected", recs[0].State)
			assert.Equal(t, tt.want, recs[0].Detail)
		})
	}
}

func TestResultsPage(t *testing.T) {
	hints := model.GivenHints{}
	r := hints[1]
	r.Set(1, 't')
	hints[1] = r

	fb := &fakeBackend{results: &model.ReviewData{
		PageData:       *samplePage(),
		StudentAnswers: model.UserAnswerMap{0: "nd", 1: "lx"},
		ScoreData: &model.ScoreData{
			CorrectCount: 1,
			TotalCount:   2,
			Percentage:   50,
			DetailedResults: map[int]model.DetailResult{
				0: {IsCorrect: true, ExpectedAnswer: "nd"},
				1: {IsCorrect: false, ExpectedAnswer: "lt"},
			},
		},
		GivenHints: hints,
	}}
	env := newTestEnv(t, fb, model.AppConfig{})

	rec := env.get(t, "/results/"+testID)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `class="blank readonly is-correct"`)
	assert.Contains(t, body, `value="lx" readonly tabindex="-1">`)
	assert.Contains(t, body, `<span class="expected">lt</span>`)
	assert.Contains(t, body, `<span class="given-hint">(Gegebener Hinweis: _t)</span>`)
	assert.Contains(t, body, "Ergebnis: 1/2 richtig (50.00%)")
	assert.Contains(t, body, "1 Hinweis verwendet")
	assert.NotContains(t, body, "<button type=\"submit\"")
}

func TestResultsPageWithoutSubmission(t *testing.T) {
	fb := &fakeBackend{results: &model.ReviewData{PageData: *samplePage()}}
	env := newTestEnv(t, fb, model.AppConfig{})
	rec := env.get(t, "/results/"+testID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "noch keine Abgabe")
	assert.NotContains(t, rec.Body.String(), `readonly is-correct"`)
}

func TestBasePath(t *testing.T) {
	require.NoError(t, appI18n.Init("de"))
	s, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h, err := New(&fakeBackend{page: samplePage()}, s, model.AppConfig{BasePath: "/de"})
	require.NoError(t, err)
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Route("/de", func(sub chi.Router) {
		sub.Use(h.BasePathMiddleware)
		h.Routes(sub)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/de/ctest/"+testID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/de/ctest/`+testID+`/submit"`)
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName {
			assert.Equal(t, "/de/", c.Path)
		}
	}
}

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		name   string
		public string
		tls    bool
		link   string
		want   string
	}{
		{"already absolute", "", false, "https://b.example/x", "https://b.example/x"},
		{"request origin", "", false, "/api/student_authorize/1", "http://frontend.example/api/student_authorize/1"},
		{"tls origin", "", true, "/r/1", "https://frontend.example/r/1"},
		{"public url", "https://ctest.example/", false, "/r/1", "https://ctest.example/r/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handler{config: model.AppConfig{PublicURL: tt.public}}
			r := httptest.NewRequest(http.MethodPost, "http://frontend.example/generate", nil)
			if tt.tls {
				r = httptest.NewRequest(http.MethodPost, "https://frontend.example/generate", nil)
			}
			assert.Equal(t, tt.want, h.absoluteURL(r, tt.link))
		})
	}
}

func TestTestIDFromURL(t *testing.T) {
	assert.Equal(t, testID, testIDFromURL("/api/student_authorize/"+testID))
	assert.Equal(t, testID, testIDFromURL("https://x.example/s/"+testID+"/"))
	assert.Equal(t, "", testIDFromURL(""))
	assert.Equal(t, "", testIDFromURL("/"))
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Der Hund bellt.", stripTags("<p>Der <b>Hund</b> bellt.</p>"))
	assert.Equal(t, "a < b", stripTags("a < b"))
}

func itoa64(i int64) string {
	return strconv.FormatInt(i, 10)
}
