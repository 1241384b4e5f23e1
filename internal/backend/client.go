// Package backend is the JSON-over-HTTP client for the C-Test backend that
// generates tests, scores submissions and renders PDFs.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloze-lab/ctest/internal/model"
	"github.com/cloze-lab/ctest/internal/monitoring"
)

const (
	pathCreate      = "/api/create"
	pathCreatePDF   = "/api/create_pdf"
	pathSubmit      = "/api/submit-ctest"
	pathTestData    = "/api/ctest/%s/data"
	pathResultsData = "/api/results/%s/data"

	maxErrorBody = 64 << 10
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Detail)
}

// ServerDetail returns the backend's error detail text.
func (e *StatusError) ServerDetail() string {
	return e.Detail
}

// IsNotFound reports whether err is a backend 404 or 410.
func IsNotFound(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == http.StatusNotFound || se.Status == http.StatusGone
}

// Client talks to the C-Test backend.
type Client struct {
	baseURL  string
	http     *http.Client
	cache    PageCache
	cacheTTL time.Duration
}

// New creates a backend client. timeout bounds every call; the caller's
// context can end a call earlier.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   noCache{},
	}
}

// WithCache makes LoadTest consult c before calling the backend.
func (c *Client) WithCache(cache PageCache, ttl time.Duration) *Client {
	c.cache = cache
	c.cacheTTL = ttl
	return c
}

// Generate asks the backend to create a blanked test from free text.
func (c *Client) Generate(ctx context.Context, req model.GenerateRequest) (*model.GenerateResponse, error) {
	var out model.GenerateResponse
	if err := c.doJSON(ctx, "generate", http.MethodPost, pathCreate, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GeneratePDF returns a printable PDF of a newly generated test.
// Error bodies of this endpoint are plain text.
func (c *Client) GeneratePDF(ctx context.Context, req model.GenerateRequest) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.do(ctx, "pdf", http.MethodPost, pathCreatePDF, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(text))}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return data, nil
}

// Submit sends a student's answers and the hints they used.
func (c *Client) Submit(ctx context.Context, req model.SubmitRequest) (*model.SubmitResponse, error) {
	var out model.SubmitResponse
	if err := c.doJSON(ctx, "submit", http.MethodPost, pathSubmit, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadTest returns the initial state of a taking page. The blanked text and
// answer specs never change for a test, so they are cached.
func (c *Client) LoadTest(ctx context.Context, ctestID string) (*model.PageData, error) {
	key := "ctest:page:" + ctestID
	if raw, err := c.cache.Get(ctx, key); err == nil {
		var pd model.PageData
		if err := json.Unmarshal(raw, &pd); err == nil {
			monitoring.PageCache.WithLabelValues("hit").Inc()
			return &pd, nil
		}
		slog.Warn("discarding undecodable cached page", "ctest_id", ctestID)
	} else if !errors.Is(err, ErrCacheMiss) {
		monitoring.PageCache.WithLabelValues("error").Inc()
		slog.Warn("page cache lookup failed", "ctest_id", ctestID, "error", err)
	} else {
		monitoring.PageCache.WithLabelValues("miss").Inc()
	}

	var pd model.PageData
	path := fmt.Sprintf(pathTestData, url.PathEscape(ctestID))
	if err := c.doJSON(ctx, "load_test", http.MethodGet, path, nil, &pd); err != nil {
		return nil, err
	}
	if pd.CTestID == "" {
		pd.CTestID = ctestID
	}

	if raw, err := json.Marshal(pd); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.cacheTTL); err != nil {
			slog.Warn("page cache store failed", "ctest_id", ctestID, "error", err)
		}
	}
	return &pd, nil
}

// LoadResults returns the initial state of a results page.
func (c *Client) LoadResults(ctx context.Context, ctestID string) (*model.ReviewData, error) {
	var rd model.ReviewData
	path := fmt.Sprintf(pathResultsData, url.PathEscape(ctestID))
	if err := c.doJSON(ctx, "load_results", http.MethodGet, path, nil, &rd); err != nil {
		return nil, err
	}
	if rd.CTestID == "" {
		rd.CTestID = ctestID
	}
	return &rd, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	resp, err := c.do(ctx, op, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Status: resp.StatusCode, Detail: errorDetail(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	monitoring.BackendDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		monitoring.BackendCalls.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	monitoring.BackendCalls.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()
	slog.Debug("backend call", "op", op, "status", resp.StatusCode, "duration", time.Since(start))
	return resp, nil
}

// errorDetail extracts the most useful text from an error body: the "detail"
// or "message" field of a JSON object, else the raw text.
func errorDetail(raw []byte) string {
	var obj struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return strings.TrimSpace(string(raw))
	}
	if len(obj.Detail) > 0 {
		var s string
		if err := json.Unmarshal(obj.Detail, &s); err == nil {
			return s
		}
		return string(obj.Detail)
	}
	return obj.Message
}
