package jobs

import (
	"time"

	"postgen/internal/domain"
)

// Recorder receives job lifecycle measurements.
type Recorder interface {
	JobSubmitted(mode domain.GenerationMode)
	JobRejected(reason string)
	JobFinished(mode domain.GenerationMode, status domain.JobStatus, code string, took time.Duration)
	StageObserved(stage string, took time.Duration, err error)
	QueueDepth(n int)
}

type nopRecorder struct{}

func (nopRecorder) JobSubmitted(domain.GenerationMode)                                         {}
func (nopRecorder) JobRejected(string)                                                         {}
func (nopRecorder) JobFinished(domain.GenerationMode, domain.JobStatus, string, time.Duration) {}
func (nopRecorder) StageObserved(string, time.Duration, error)                                 {}
func (nopRecorder) QueueDepth(int)                                                             {}
