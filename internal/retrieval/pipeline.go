// Package retrieval turns a user's profile or a topic into the context block
// that grounds a generated post.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"postgen/internal/domain"
)

const (
	// DefaultTopK is how many matches feed the context block.
	DefaultTopK = 5
	// DefaultCallTimeout bounds each collaborator call.
	DefaultCallTimeout = 30 * time.Second

	// SourceTypeProfile restricts searches to vectors indexed from onboarding profiles.
	SourceTypeProfile = "profile"
)

// Kind tags a ContextResult.
type Kind int

const (
	// KindOK carries context assembled from search matches.
	KindOK Kind = iota
	// KindEmpty means profile mode found nothing; the post is written without context.
	KindEmpty
	// KindDegraded means topic mode found nothing and the topic itself is the context.
	KindDegraded
	// KindFailed aborts the job.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindEmpty:
		return "empty"
	case KindDegraded:
		return "degraded"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ContextResult is the outcome of one retrieval. Err is set only for KindFailed.
type ContextResult struct {
	Kind Kind
	Text string
	Err  error
}

// Failed reports whether the job must abort.
func (r ContextResult) Failed() bool {
	return r.Kind == KindFailed
}

func ok(text string) ContextResult       { return ContextResult{Kind: KindOK, Text: text} }
func empty() ContextResult               { return ContextResult{Kind: KindEmpty} }
func degraded(text string) ContextResult { return ContextResult{Kind: KindDegraded, Text: text} }
func failed(err error) ContextResult     { return ContextResult{Kind: KindFailed, Err: err} }

// Request selects the mode: a nil Topic means profile mode.
type Request struct {
	UserID string
	Topic  *string
}

// StageObserver receives the duration and outcome of every collaborator call.
type StageObserver func(stage string, took time.Duration, err error)

type Options struct {
	Profiles    domain.ProfileService
	Embedder    domain.Embedder
	Searcher    domain.VectorSearcher
	TopK        int
	CallTimeout time.Duration
	Observe     StageObserver
	Logger      zerolog.Logger
}

// Pipeline runs embed-then-search retrieval with per-mode fallbacks.
type Pipeline struct {
	profiles domain.ProfileService
	embedder domain.Embedder
	searcher domain.VectorSearcher
	topK     int
	timeout  time.Duration
	observe  StageObserver
	logger   zerolog.Logger
}

func NewPipeline(opts Options) (*Pipeline, error) {
	if opts.Profiles == nil || opts.Embedder == nil || opts.Searcher == nil {
		return nil, errors.New("retrieval: profiles, embedder and searcher are required")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	observe := opts.Observe
	if observe == nil {
		observe = func(string, time.Duration, error) {}
	}
	return &Pipeline{
		profiles: opts.Profiles,
		embedder: opts.Embedder,
		searcher: opts.Searcher,
		topK:     topK,
		timeout:  timeout,
		observe:  observe,
		logger:   opts.Logger.With().Str("component", "retrieval").Logger(),
	}, nil
}

// Retrieve never returns a Go error; failures travel inside the result.
func (p *Pipeline) Retrieve(ctx context.Context, req Request) ContextResult {
	if strings.TrimSpace(req.UserID) == "" {
		return failed(fmt.Errorf("%w: user id is required for retrieval", domain.ErrValidation))
	}
	if req.Topic == nil {
		return p.fromProfile(ctx, req.UserID)
	}
	return p.fromTopic(ctx, req.UserID, *req.Topic)
}

func (p *Pipeline) fromProfile(ctx context.Context, userID string) ContextResult {
	var profile string
	err := p.call(ctx, "profile", domain.ErrProfileUnavailable, func(ctx context.Context) error {
		var err error
		profile, err = p.profiles.ProfileText(ctx, userID)
		return err
	})
	if err != nil {
		return failed(err)
	}
	if strings.TrimSpace(profile) == "" {
		return failed(fmt.Errorf("%w: profile has no answers", domain.ErrProfileUnavailable))
	}

	matches, err := p.search(ctx, userID, profile)
	if err != nil {
		return failed(err)
	}
	if len(matches) == 0 {
		p.logger.Info().Str("user_id", userID).Msg("no profile context found")
		return empty()
	}
	return ok(p.join(matches))
}

func (p *Pipeline) fromTopic(ctx context.Context, userID, topic string) ContextResult {
	matches, err := p.search(ctx, userID, topic)
	if err != nil {
		return failed(err)
	}
	if len(matches) == 0 {
		p.logger.Info().Str("user_id", userID).Msg("no topic context found, using topic as context")
		return degraded(topic)
	}
	return ok(p.join(matches))
}

func (p *Pipeline) search(ctx context.Context, userID, text string) ([]domain.Match, error) {
	var vector []float32
	err := p.call(ctx, "embed", domain.ErrEmbeddingFailed, func(ctx context.Context) error {
		var err error
		vector, err = p.embedder.Embed(ctx, text)
		if err == nil && len(vector) == 0 {
			err = errors.New("empty embedding")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	var matches []domain.Match
	err = p.call(ctx, "search", domain.ErrSearchFailed, func(ctx context.Context) error {
		var err error
		matches, err = p.searcher.Query(ctx, domain.VectorQuery{
			Vector:    vector,
			Namespace: userID,
			TopK:      p.topK,
			Filter:    map[string]string{"source_type": SourceTypeProfile},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// join keeps the searcher's order and caps at topK.
func (p *Pipeline) join(matches []domain.Match) string {
	if len(matches) > p.topK {
		matches = matches[:p.topK]
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Text
	}
	return strings.Join(parts, " ")
}

func (p *Pipeline) call(ctx context.Context, stage string, sentinel error, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := fn(cctx)
	took := time.Since(start)
	p.observe(stage, took, err)
	if err != nil {
		p.logger.Debug().Err(err).Str("stage", stage).Dur("took", took).Msg("retrieval stage failed")
		return domain.WrapStage(cctx, sentinel, err)
	}
	return nil
}
