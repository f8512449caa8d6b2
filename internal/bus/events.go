package bus

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"postgen/internal/domain"
)

// JobFinishedEvent is published once per job when it reaches a terminal state.
type JobFinishedEvent struct {
	JobID       string `json:"job_id"`
	UserID      string `json:"user_id"`
	Mode        string `json:"mode"`
	Status      string `json:"status"`
	PostID      string `json:"post_id,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorCode   string `json:"error_code,omitempty"`
	CompletedAt string `json:"completed_at"`
}

// Publisher is the subset of Client used by JobEvents.
type Publisher interface {
	PublishJSON(subject string, v any) error
}

// JobEvents implements domain.JobNotifier. Publish failures are logged, never
// propagated: the job outcome is already recorded.
type JobEvents struct {
	pub     Publisher
	subject string
	logger  zerolog.Logger
}

func NewJobEvents(pub Publisher, subject string, logger zerolog.Logger) *JobEvents {
	return &JobEvents{pub: pub, subject: subject, logger: logger.With().Str("component", "job_events").Logger()}
}

func (e *JobEvents) JobFinished(ctx context.Context, job *domain.Job) {
	if job == nil {
		return
	}
	ev := NewJobFinishedEvent(job)
	if err := e.pub.PublishJSON(e.subject, ev); err != nil {
		e.logger.Warn().Err(err).Str("job_id", job.ID).Str("subject", e.subject).Msg("publish job event failed")
	}
}

func NewJobFinishedEvent(job *domain.Job) JobFinishedEvent {
	ev := JobFinishedEvent{
		JobID:       job.ID,
		UserID:      job.UserID,
		Mode:        string(job.Mode),
		Status:      string(job.Status),
		Error:       job.Error,
		ErrorCode:   job.ErrorCode,
		CompletedAt: job.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if job.Result != nil {
		ev.PostID = job.Result.PostID
	}
	return ev
}

var _ domain.JobNotifier = (*JobEvents)(nil)
