package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestJobStatusCanTransition(t *testing.T) {
	tests := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobStatusPending, JobStatusRunning, true},
		{JobStatusPending, JobStatusCompleted, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusPending, false},
		{JobStatusRunning, JobStatusCompleted, true},
		{JobStatusRunning, JobStatusFailed, true},
		{JobStatusRunning, JobStatusRunning, false},
		{JobStatusRunning, JobStatusPending, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusCompleted, JobStatusCompleted, false},
		{JobStatusFailed, JobStatusRunning, false},
		{JobStatusFailed, JobStatusCompleted, false},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s->%s", tc.from, tc.to), func(t *testing.T) {
			if got := tc.from.CanTransition(tc.to); got != tc.want {
				t.Fatalf("CanTransition() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"profile", fmt.Errorf("retrieve: %w", ErrProfileUnavailable), CodeProfileUnavailable},
		{"embedding", fmt.Errorf("%w: boom", ErrEmbeddingFailed), CodeEmbeddingFailed},
		{"search", fmt.Errorf("%w: boom", ErrSearchFailed), CodeSearchFailed},
		{"store", fmt.Errorf("%w: boom", ErrStoreFailed), CodeStoreFailed},
		{"provider", ErrProviderUnavailable, CodeProviderUnavailable},
		{"deadline beats stage", fmt.Errorf("%w: %w", ErrEmbeddingFailed, context.DeadlineExceeded), CodeTimeout},
		{"timeout sentinel", ErrTimeout, CodeTimeout},
		{"unknown", errors.New("mystery"), CodeUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ErrorCode(tc.err); got != tc.want {
				t.Fatalf("ErrorCode() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestJobCloneIsDeep(t *testing.T) {
	orig := &Job{ID: "a", Result: &JobResult{PostID: "p", Content: "c"}}
	cp := orig.Clone()
	cp.Result.Content = "changed"
	if orig.Result.Content != "c" {
		t.Fatalf("clone shares result with original")
	}
}

func TestWrapStage(t *testing.T) {
	boom := errors.New("boom")

	err := WrapStage(context.Background(), ErrSearchFailed, boom)
	if !errors.Is(err, ErrSearchFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected stage and cause in chain, got %v", err)
	}
	if ErrorCode(err) != CodeSearchFailed {
		t.Fatalf("ErrorCode() = %q", ErrorCode(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()
	err = WrapStage(ctx, ErrSearchFailed, boom)
	if ErrorCode(err) != CodeTimeout {
		t.Fatalf("expired ctx should classify as timeout, got %q", ErrorCode(err))
	}

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	err = WrapStage(cancelled, ErrGenerationFailed, context.Canceled)
	if ErrorCode(err) != CodeTimeout {
		t.Fatalf("cancelled ctx should classify as timeout, got %q", ErrorCode(err))
	}
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("stage sentinel lost: %v", err)
	}

	if WrapStage(context.Background(), ErrSearchFailed, nil) != nil {
		t.Fatalf("nil error must stay nil")
	}
}
