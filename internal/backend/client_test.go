package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloze-lab/ctest/internal/ctest"
	"github.com/cloze-lab/ctest/internal/model"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", 5*time.Second)
}

func TestSubmitSendsContract(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/submit-ctest", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{
			"was_in_db": false,
			"message": "Ihr C-Test wurde erfolgreich abgesendet",
			"submission_id": "s-1",
			"score_data": {
				"correct_count": 1, "total_count": 2, "percentage": 50.0,
				"detailed_results": {
					"0": {"student_answer": "cat", "expected_answer": "cat", "expected_length": "3", "is_correct": true},
					"1": {"student_answer": "dig", "expected_answer": "dog", "expected_length": "3", "is_correct": false}
				}
			}
		}`)
	})

	hints := model.GivenHints{}
	r := hints[1]
	r.Set(2, 'g')
	hints[1] = r

	resp, err := c.Submit(context.Background(), model.SubmitRequest{
		CTestID:        "abc",
		StudentAnswers: model.UserAnswerMap{0: "cat", 1: "dig"},
		GivenHints:     hints,
	})
	require.NoError(t, err)

	assert.Equal(t, "abc", got["ctest_id"])
	assert.Equal(t, map[string]any{"0": "cat", "1": "dig"}, got["student_answers"])
	assert.Equal(t, map[string]any{"1": "__g"}, got["given_hints"])

	require.NotNil(t, resp.WasInDB)
	assert.False(t, *resp.WasInDB)
	require.NotNil(t, resp.ScoreData)
	assert.Equal(t, 2, resp.ScoreData.TotalCount)
	assert.True(t, resp.ScoreData.DetailedResults[0].IsCorrect)
	assert.Equal(t, "dog", resp.ScoreData.DetailedResults[1].ExpectedAnswer)
}

func TestSubmitErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"fastapi detail", http.StatusGone, `{"detail":"Test has expired"}`, "Test has expired"},
		{"message field", http.StatusBadRequest, `{"message":"bad"}`, "bad"},
		{"plain text", http.StatusBadGateway, "upstream down", "upstream down"},
		{"validation list", http.StatusUnprocessableEntity, `{"detail":[{"msg":"x"}]}`, `[{"msg":"x"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Submit(context.Background(), model.SubmitRequest{CTestID: "x"})
			var se *StatusError
			require.True(t, errors.As(err, &se), "expected StatusError, got %v", err)
			assert.Equal(t, tt.status, se.Status)
			assert.Equal(t, tt.want, se.ServerDetail())

			var srvErr ctest.ServerError
			assert.True(t, errors.As(err, &srvErr), "StatusError should satisfy ctest.ServerError")
		})
	}
}

func TestGenerate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req model.GenerateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.DifficultyHard, req.Difficulty)
		_ = json.NewEncoder(w).Encode(model.GenerateResponse{
			ShareURL:    "/api/student_authorize/abc",
			ResultsURL:  "/api/teacher_authorize/abc",
			CTestText:   "Der Hu__ bellt.",
			StudentCode: "123456",
			TeacherCode: "654321",
		})
	})

	resp, err := c.Generate(context.Background(), model.GenerateRequest{OriginalText: "Der Hund bellt.", Difficulty: model.DifficultyHard})
	require.NoError(t, err)
	assert.Equal(t, "/api/student_authorize/abc", resp.ShareURL)
	assert.Equal(t, "123456", resp.StudentCode)
}

func TestGeneratePDF(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/create_pdf", r.URL.Path)
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = io.WriteString(w, "%PDF-1.4")
		})
		data, err := c.GeneratePDF(context.Background(), model.GenerateRequest{OriginalText: "x", Difficulty: model.DifficultyEasy})
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(data))
	})

	t.Run("plain text error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Der Text ist zu kurz", http.StatusBadRequest)
		})
		_, err := c.GeneratePDF(context.Background(), model.GenerateRequest{OriginalText: "x", Difficulty: model.DifficultyEasy})
		var se *StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, "Der Text ist zu kurz", se.Detail)
	})
}

func TestLoadTestUsesCache(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/ctest/abc/data", r.URL.Path)
		_, _ = io.WriteString(w, `{"ctest_text":"Der Hu__ bellt.","correct_answers":{"0":{"answer":"nd","length":"2"}}}`)
	})
	c.WithCache(newMemCache(), time.Hour)

	for i := 0; i < 3; i++ {
		pd, err := c.LoadTest(context.Background(), "abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", pd.CTestID)
		assert.Equal(t, 2, pd.Answers[0].Len())
		assert.Equal(t, "nd", pd.Answers[0].Answer)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoadResults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/results/abc/data", r.URL.Path)
		_, _ = io.WriteString(w, `{
			"ctest_id": "abc",
			"ctest_text": "Der Hu__ bellt.",
			"correct_answers": {"0": {"answer": "nd", "length": 2}},
			"student_answers": {"0": "nt"},
			"score_data": {"correct_count": 0, "total_count": 1, "percentage": 0,
				"detailed_results": {"0": {"is_correct": false, "expected_answer": "nd"}}},
			"given_hints": {"0": [null, "d"]}
		}`)
	})

	rd, err := c.LoadResults(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "nt", rd.StudentAnswers[0])
	require.NotNil(t, rd.ScoreData)
	assert.False(t, rd.ScoreData.DetailedResults[0].IsCorrect)
	assert.Equal(t, 'd', rd.GivenHints[0].At(1))
	assert.Equal(t, "_d", rd.GivenHints[0].String())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(&StatusError{Status: http.StatusNotFound}))
	assert.True(t, IsNotFound(&StatusError{Status: http.StatusGone}))
	assert.False(t, IsNotFound(&StatusError{Status: http.StatusBadRequest}))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestContextCancelAbortsCall(t *testing.T) {
	block := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Submit(ctx, model.SubmitRequest{CTestID: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
