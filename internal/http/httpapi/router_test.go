package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgen/internal/domain"
	"postgen/internal/http/handlers"
	"postgen/internal/middleware"
	"postgen/internal/storage"
)

const secret = "router-secret"

type fakeJobs struct {
	mu      sync.Mutex
	reqs    []domain.GenerationRequest
	callers []domain.Caller
	jobs    map[string]*domain.Job
	err     error
}

func (f *fakeJobs) Submit(ctx context.Context, req domain.GenerationRequest, caller domain.Caller) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.reqs = append(f.reqs, req)
	f.callers = append(f.callers, caller)
	id := fmt.Sprintf("job-%d", len(f.reqs))
	f.jobs[id] = &domain.Job{ID: id, UserID: caller.UserID, Mode: req.Mode(), Status: domain.JobStatusPending}
	return id, nil
}

func (f *fakeJobs) StatusFor(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

type harness struct {
	jobs   *fakeJobs
	server *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	posts, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	jobs := &fakeJobs{jobs: map[string]*domain.Job{}}
	app := handlers.NewApp(jobs, posts, zerolog.Nop())
	app.Ready = []handlers.Pinger{func(context.Context) error { return nil }}

	router := NewRouter(app, Options{
		Logger:          zerolog.Nop(),
		JWTSecret:       secret,
		DefaultLocale:   "en",
		RateLimitPerMin: 100,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("postgen_queue_depth 0\n"))
		}),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &harness{jobs: jobs, server: srv}
}

func token(t *testing.T, user, style string) string {
	t.Helper()
	tok, err := middleware.SignJWT(secret, middleware.TokenClaims{Sub: user, Style: style, Exp: time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	return tok
}

func (h *harness) do(t *testing.T, method, path, tok, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, h.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var raw any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&raw))
		if m, ok := raw.(map[string]any); ok {
			out = m
		} else {
			out = map[string]any{"items": raw}
		}
	}
	return resp, out
}

func TestPublicEndpoints(t *testing.T) {
	h := newHarness(t)

	resp, body := h.do(t, http.MethodGet, "/v1/healthz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, body = h.do(t, http.MethodGet, "/v1/readyz", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready", body["status"])

	resp, _ = h.do(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/v1/openapi.json", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGenerateRequiresAuth(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, http.MethodPost, "/v1/generate", "", `{"length":"short"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", body["error"].(map[string]any)["code"])
	assert.Empty(t, h.jobs.reqs)
}

func TestGenerateAcceptsAndReportsStatus(t *testing.T) {
	h := newHarness(t)
	tok := token(t, "alice", "witty")

	resp, body := h.do(t, http.MethodPost, "/v1/generate", tok,
		`{"topic":"cold outreach","length":"short","additional_instructions":"add a question"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	jobID := body["job_id"].(string)

	require.Len(t, h.jobs.reqs, 1)
	assert.Equal(t, "cold outreach", *h.jobs.reqs[0].Topic)
	assert.Equal(t, "add a question", *h.jobs.reqs[0].Instructions)
	assert.Equal(t, "alice", h.jobs.callers[0].UserID)
	assert.Equal(t, "witty", h.jobs.callers[0].Style)
	assert.NotEmpty(t, h.jobs.callers[0].RequestID)

	resp, body = h.do(t, http.MethodGet, "/v1/generate/status/"+jobID, tok, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, jobID, body["job_id"])
	assert.Equal(t, "pending", body["status"])
	assert.NotContains(t, body, "result")

	resp, body = h.do(t, http.MethodGet, "/v1/generate/status/"+jobID, token(t, "mallory", ""), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"].(map[string]any)["code"])
}

func TestGenerateAutoIgnoresTopic(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, http.MethodPost, "/v1/generate/auto", token(t, "alice", ""), `{"topic":"ignored","length":"long"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, h.jobs.reqs, 1)
	assert.Nil(t, h.jobs.reqs[0].Topic)
	assert.Equal(t, domain.ModeProfile, h.jobs.reqs[0].Mode())
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{name: "malformed", body: `{"length":`, status: http.StatusBadRequest, code: "bad_request"},
		{name: "unknown field", body: `{"lenght":"short"}`, status: http.StatusBadRequest, code: "bad_request"},
		{name: "validation", err: fmt.Errorf("%w: topic too long", domain.ErrValidation), body: `{}`, status: http.StatusBadRequest, code: "bad_request"},
		{name: "saturated", err: domain.ErrPoolSaturated, body: `{}`, status: http.StatusServiceUnavailable, code: domain.CodePoolSaturated},
		{name: "internal", err: fmt.Errorf("registry: %w", context.DeadlineExceeded), body: `{}`, status: http.StatusInternalServerError, code: "internal"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.jobs.err = tc.err
			resp, body := h.do(t, http.MethodPost, "/v1/generate", token(t, "alice", ""), tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, body["error"].(map[string]any)["code"])
		})
	}
}

func TestPostsCRUD(t *testing.T) {
	h := newHarness(t)
	tok := token(t, "alice", "")

	resp, created := h.do(t, http.MethodPost, "/v1/posts", tok, `{"content":"  hello linkedin  "}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "hello linkedin", created["content"])
	assert.Equal(t, "draft", created["status"])
	id := created["id"].(string)

	resp, list := h.do(t, http.MethodGet, "/v1/posts", tok, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list["items"], 1)

	resp, updated := h.do(t, http.MethodPut, "/v1/posts/"+id, tok, `{"content":"edited"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "edited", updated["content"])

	resp, _ = h.do(t, http.MethodGet, "/v1/posts/"+id, token(t, "bob", ""), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPut, "/v1/posts/"+id, tok, `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = h.do(t, http.MethodDelete, "/v1/posts/"+id, tok, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, "/v1/posts/"+id, tok, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEveryRouteIsDocumented(t *testing.T) {
	router := NewRouter(handlers.NewApp(&fakeJobs{}, nil, zerolog.Nop()), Options{Logger: zerolog.Nop(), JWTSecret: secret})
	routes, ok := router.(chi.Routes)
	require.True(t, ok)

	undocumented := map[string]bool{"/v1/openapi.json": true, "/v1/docs": true, "/metrics": true}
	var served []string
	require.NoError(t, chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route != "/" {
			route = strings.TrimSuffix(route, "/")
		}
		if !undocumented[route] {
			served = append(served, method+" "+route)
		}
		return nil
	}))
	sort.Strings(served)

	assert.Equal(t, handlers.DocumentedOperations(), served)
}

func TestOpenAPIDocumentCaching(t *testing.T) {
	h := newHarness(t)

	resp, _ := h.do(t, http.MethodGet, "/v1/openapi.json", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, err := http.NewRequest(http.MethodGet, h.server.URL+"/v1/openapi.json", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	resp, err = http.Get(h.server.URL + "/v1/docs")
	require.NoError(t, err)
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(page), "<title>postgen API 1.0.0</title>")
}
