package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"postgen/internal/domain"
	"postgen/internal/infra"
	"postgen/internal/sqlinline"
)

// JobRepositoryPG is a durable domain.JobRegistry. The allowed source states
// travel with every transition so the database enforces the state machine.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobRepository creates a job registry backed by PostgreSQL.
func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

// Create inserts a pending job with a fresh id.
func (r *JobRepositoryPG) Create(ctx context.Context, userID string, mode domain.GenerationMode) (*domain.Job, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertGenerationJob, uuid.NewString(), userID, string(mode))
	var (
		job          domain.Job
		modeStr, st  string
		created, upd time.Time
	)
	if err := row.Scan(&job.ID, &job.UserID, &modeStr, &st, &created, &upd); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	job.Mode = domain.GenerationMode(modeStr)
	job.Status = domain.JobStatus(st)
	job.CreatedAt = created
	job.UpdatedAt = upd
	return &job, nil
}

// Get fetches a job by its identifier.
func (r *JobRepositoryPG) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationJob, jobID)
	var (
		job                              domain.Job
		modeStr, st                      string
		postID, content, errMsg, errCode *string
	)
	if err := row.Scan(&job.ID, &job.UserID, &modeStr, &st, &postID, &content, &errMsg, &errCode, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select job: %w", err)
	}
	job.Mode = domain.GenerationMode(modeStr)
	job.Status = domain.JobStatus(st)
	if job.Status == domain.JobStatusCompleted && postID != nil {
		job.Result = &domain.JobResult{PostID: *postID, Content: deref(content)}
	}
	job.Error = deref(errMsg)
	job.ErrorCode = deref(errCode)
	return &job, nil
}

// Transition moves a job only if its current state allows next.
func (r *JobRepositoryPG) Transition(ctx context.Context, jobID string, next domain.JobStatus, outcome domain.Outcome) error {
	if next == domain.JobStatusCompleted && outcome.Result == nil {
		return fmt.Errorf("%w: job %s completed without a result", domain.ErrInternalConsistency, jobID)
	}
	from := sourceStates(next)
	if len(from) == 0 {
		return fmt.Errorf("%w: no state may move to %s", domain.ErrInternalConsistency, next)
	}

	var postID, content *string
	if outcome.Result != nil {
		postID = &outcome.Result.PostID
		content = &outcome.Result.Content
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QTransitionGenerationJob,
		jobID,
		string(next),
		postID,
		content,
		nullable(outcome.Error),
		nullable(outcome.ErrorCode),
		from,
	)
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	current, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s cannot move from %s to %s", domain.ErrInternalConsistency, jobID, current.Status, next)
}

// EvictTerminal deletes terminal jobs last updated before the cutoff.
func (r *JobRepositoryPG) EvictTerminal(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.sql.Exec(ctx, sqlinline.QEvictTerminalGenerationJobs, before)
	if err != nil {
		return 0, fmt.Errorf("evict jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var allStatuses = []domain.JobStatus{
	domain.JobStatusPending,
	domain.JobStatusRunning,
	domain.JobStatusCompleted,
	domain.JobStatusFailed,
}

func sourceStates(next domain.JobStatus) []string {
	var from []string
	for _, s := range allStatuses {
		if s.CanTransition(next) {
			from = append(from, string(s))
		}
	}
	return from
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var (
	_ domain.JobRegistry = (*JobRepositoryPG)(nil)
	_ domain.JobEvicter  = (*JobRepositoryPG)(nil)
)
