package domain

import "time"

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job in state s may move to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next.Terminal()
	case JobStatusRunning:
		return next.Terminal()
	default:
		return false
	}
}

// GenerationMode tells the retrieval pipeline where the query text comes from.
type GenerationMode string

const (
	ModeProfile GenerationMode = "profile"
	ModeTopic   GenerationMode = "topic"
)

// JobResult is the payload of a completed job.
type JobResult struct {
	PostID  string `json:"post_id"`
	Content string `json:"content"`
}

// Job tracks one generation request from acceptance to a terminal state.
type Job struct {
	ID        string
	UserID    string
	Mode      GenerationMode
	Status    JobStatus
	Result    *JobResult
	Error     string
	ErrorCode string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so readers never share state with the registry.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.Result != nil {
		r := *j.Result
		out.Result = &r
	}
	return &out
}

// Outcome carries what a transition records alongside the new status.
type Outcome struct {
	Result    *JobResult
	Error     string
	ErrorCode string
}

// GenerationRequest is the immutable input of a generation job. A nil Topic
// selects profile mode.
type GenerationRequest struct {
	Topic        *string
	Length       string
	Style        string
	Instructions *string
}

// Mode derives the retrieval mode from the request.
func (r GenerationRequest) Mode() GenerationMode {
	if r.Topic == nil {
		return ModeProfile
	}
	return ModeTopic
}

// Caller is captured at submission time and travels with the job, since the
// background execution outlives the originating request.
type Caller struct {
	UserID    string
	RequestID string
	Locale    string
	Country   string
	Style     string
}
