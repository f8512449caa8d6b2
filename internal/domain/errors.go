package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("invalid request")

	ErrProfileUnavailable  = errors.New("profile unavailable")
	ErrEmbeddingFailed     = errors.New("embedding failed")
	ErrSearchFailed        = errors.New("vector search failed")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrStoreFailed         = errors.New("artifact store failed")
	ErrProviderUnavailable = errors.New("generation provider unavailable")
	ErrTimeout             = errors.New("collaborator timed out")
	ErrPoolSaturated       = errors.New("job pool saturated")

	// ErrInternalConsistency marks a programming fault such as a second
	// terminal write to the same job. It never reaches API callers.
	ErrInternalConsistency = errors.New("internal consistency fault")
)

// Error codes recorded on failed jobs.
const (
	CodeValidation          = "validation_error"
	CodeProfileUnavailable  = "profile_unavailable"
	CodeEmbeddingFailed     = "embedding_failed"
	CodeSearchFailed        = "search_failed"
	CodeGenerationFailed    = "generation_failed"
	CodeStoreFailed         = "store_failed"
	CodeProviderUnavailable = "provider_unavailable"
	CodePoolSaturated       = "pool_saturated"
	CodeTimeout             = "timeout"
	CodeInternal            = "internal_consistency_fault"
	CodeUnknown             = "internal_error"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrValidation, CodeValidation},
	{ErrProfileUnavailable, CodeProfileUnavailable},
	{ErrProviderUnavailable, CodeProviderUnavailable},
	{ErrEmbeddingFailed, CodeEmbeddingFailed},
	{ErrSearchFailed, CodeSearchFailed},
	{ErrGenerationFailed, CodeGenerationFailed},
	{ErrStoreFailed, CodeStoreFailed},
	{ErrPoolSaturated, CodePoolSaturated},
	{ErrInternalConsistency, CodeInternal},
}

// ErrorCode maps an error chain onto the stable code stored with a failed job.
// An expired deadline wins over the stage that observed it.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}

// WrapStage tags err with the stage sentinel. When ctx is done, by deadline
// or by the shutdown drain cancelling it, the chain also carries ErrTimeout,
// so the job records a timeout rather than the stage that happened to notice.
func WrapStage(ctx context.Context, sentinel, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if !errors.Is(err, sentinel) {
		err = fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
