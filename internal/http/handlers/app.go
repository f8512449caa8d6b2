package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"postgen/internal/domain"
	"postgen/internal/middleware"
)

// JobService is the orchestrator surface the handlers need.
type JobService interface {
	Submit(ctx context.Context, req domain.GenerationRequest, caller domain.Caller) (string, error)
	StatusFor(ctx context.Context, jobID, userID string) (*domain.Job, error)
}

// Pinger reports dependency readiness for /v1/readyz.
type Pinger func(ctx context.Context) error

type App struct {
	Jobs   JobService
	Posts  domain.PostRepository
	Ready  []Pinger
	Logger zerolog.Logger
}

func NewApp(jobs JobService, posts domain.PostRepository, logger zerolog.Logger) *App {
	return &App{Jobs: jobs, Posts: posts, Logger: logger.With().Str("component", "http").Logger()}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorBody{Error: errorDetail{Code: errCode, Message: message}})
}

// fail maps domain errors onto HTTP statuses. Unclassified errors are logged
// and reported as internal without leaking details.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrPoolSaturated):
		w.Header().Set("Retry-After", "5")
		a.error(w, http.StatusServiceUnavailable, domain.CodePoolSaturated, "generation queue is full, retry shortly")
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}
