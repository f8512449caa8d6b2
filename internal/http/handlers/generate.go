package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"postgen/internal/domain"
	"postgen/internal/middleware"
)

type generateRequest struct {
	Topic        *string `json:"topic"`
	Length       string  `json:"length"`
	Style        string  `json:"style"`
	Instructions *string `json:"additional_instructions"`
}

type acceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type statusResponse struct {
	JobID     string            `json:"job_id"`
	Status    string            `json:"status"`
	Result    *domain.JobResult `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorCode string            `json:"error_code,omitempty"`
}

// Generate accepts a post request and answers 202 with the job id. A missing
// or blank topic selects profile mode.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !a.decode(w, r, &req) {
		return
	}
	a.submit(w, r, req)
}

// GenerateAuto always runs in profile mode; any topic in the body is ignored.
func (a *App) GenerateAuto(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !a.decode(w, r, &req) {
		return
	}
	req.Topic = nil
	a.submit(w, r, req)
}

func (a *App) submit(w http.ResponseWriter, r *http.Request, req generateRequest) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	caller := domain.Caller{
		UserID:    userID,
		RequestID: middleware.RequestIDFromContext(r.Context()),
		Locale:    middleware.LocaleFromContext(r.Context()),
		Country:   middleware.CountryFromContext(r.Context()),
		Style:     middleware.StyleFromContext(r.Context()),
	}
	jobID, err := a.Jobs.Submit(r.Context(), domain.GenerationRequest{
		Topic:        req.Topic,
		Length:       req.Length,
		Style:        req.Style,
		Instructions: req.Instructions,
	}, caller)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, acceptedResponse{JobID: jobID, Status: string(domain.JobStatusPending)})
}

func (a *App) GenerateStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	job, err := a.Jobs.StatusFor(r.Context(), chi.URLParam(r, "job_id"), userID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, statusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Result:    job.Result,
		Error:     job.Error,
		ErrorCode: job.ErrorCode,
	})
}
