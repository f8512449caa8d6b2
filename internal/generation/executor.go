package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"postgen/internal/domain"
)

// DefaultHealthTimeout bounds the startup reachability check.
const DefaultHealthTimeout = 10 * time.Second

// Executor wraps a single provider call. Availability is decided once, in
// NewExecutor; an unavailable executor fails every call without dialing out.
type Executor struct {
	provider    domain.TextGenerator
	unavailable error
	logger      zerolog.Logger
}

// NewExecutor checks the provider up front. A nil provider, or one whose
// HealthCheck fails, yields an executor that always reports
// ErrProviderUnavailable; construction itself never fails.
func NewExecutor(ctx context.Context, provider domain.TextGenerator, logger zerolog.Logger) *Executor {
	e := &Executor{provider: provider, logger: logger.With().Str("component", "generation").Logger()}
	if provider == nil {
		e.unavailable = fmt.Errorf("%w: no provider configured", domain.ErrProviderUnavailable)
	} else if hc, ok := provider.(domain.HealthChecker); ok {
		hctx, cancel := context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
		if err := hc.HealthCheck(hctx); err != nil {
			e.unavailable = fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
		}
	}
	if e.unavailable != nil {
		e.logger.Warn().Err(e.unavailable).Msg("generation provider unavailable")
	}
	return e
}

// Available reports the result of the startup check.
func (e *Executor) Available() error {
	return e.unavailable
}

// Execute returns the generated text. No retries are attempted.
func (e *Executor) Execute(ctx context.Context, prompt domain.Prompt) (string, error) {
	if e.unavailable != nil {
		return "", e.unavailable
	}
	text, err := e.provider.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, domain.ErrProviderUnavailable) {
			return "", err
		}
		return "", domain.WrapStage(ctx, domain.ErrGenerationFailed, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: provider returned no text", domain.ErrGenerationFailed)
	}
	return text, nil
}
