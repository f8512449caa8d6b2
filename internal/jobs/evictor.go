package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"postgen/internal/domain"
)

// RunEvictor periodically drops terminal jobs older than retention until ctx
// is done. It returns immediately when retention is zero or the registry
// cannot evict.
func RunEvictor(ctx context.Context, registry domain.JobRegistry, retention, every time.Duration, logger zerolog.Logger) {
	evicter, ok := registry.(domain.JobEvicter)
	if !ok || retention <= 0 {
		return
	}
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := evicter.EvictTerminal(ctx, now.Add(-retention))
			if err != nil {
				logger.Warn().Err(err).Msg("job eviction failed")
				continue
			}
			if n > 0 {
				logger.Info().Int("evicted", n).Msg("evicted terminal jobs")
			}
		}
	}
}
