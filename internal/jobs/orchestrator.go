package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"postgen/internal/domain"
	"postgen/internal/generation"
	"postgen/internal/retrieval"
)

const (
	DefaultStageTimeout  = 30 * time.Second
	DefaultJobTimeout    = 2 * time.Minute
	DefaultStyleTimeout  = 2 * time.Second
	DefaultScrapeTimeout = 5 * time.Second
)

// ContextRetriever is satisfied by *retrieval.Pipeline.
type ContextRetriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) retrieval.ContextResult
}

// PromptExecutor is satisfied by *generation.Executor.
type PromptExecutor interface {
	Execute(ctx context.Context, prompt domain.Prompt) (string, error)
}

// FaultHandler is called with every internal-consistency fault.
type FaultHandler func(err error)

// PanicOnFault aborts loudly; wire it outside production.
func PanicOnFault(err error) {
	panic(err)
}

type Options struct {
	Registry  domain.JobRegistry
	Retriever ContextRetriever
	Executor  PromptExecutor
	Artifacts domain.ArtifactStore
	Profiles  domain.ProfileService
	// Scraper and Notifier are optional.
	Scraper  domain.ScrapeTrigger
	Notifier domain.JobNotifier
	Metrics  Recorder
	Logger   zerolog.Logger

	Workers       int
	QueueSize     int
	StageTimeout  time.Duration
	JobTimeout    time.Duration
	StyleTimeout  time.Duration
	ScrapeTimeout time.Duration
	OnFault       FaultHandler
}

// Orchestrator owns the submit/poll protocol. Submit returns as soon as the
// job is recorded and queued; the pipeline runs on the pool.
type Orchestrator struct {
	registry  domain.JobRegistry
	retriever ContextRetriever
	executor  PromptExecutor
	artifacts domain.ArtifactStore
	profiles  domain.ProfileService
	scraper   domain.ScrapeTrigger
	notifier  domain.JobNotifier
	metrics   Recorder
	logger    zerolog.Logger
	pool      *Pool
	workers   int
	scrapes   sync.WaitGroup

	stageTimeout  time.Duration
	jobTimeout    time.Duration
	styleTimeout  time.Duration
	scrapeTimeout time.Duration
	onFault       FaultHandler
}

// work is everything a job needs, captured at submission. An empty style
// means the profile decides once the job runs.
type work struct {
	jobID     string
	caller    domain.Caller
	req       domain.GenerationRequest
	style     string
	submitted time.Time
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Registry == nil || opts.Retriever == nil || opts.Executor == nil || opts.Artifacts == nil {
		return nil, errors.New("jobs: registry, retriever, executor and artifact store are required")
	}
	o := &Orchestrator{
		registry:      opts.Registry,
		retriever:     opts.Retriever,
		executor:      opts.Executor,
		artifacts:     opts.Artifacts,
		profiles:      opts.Profiles,
		scraper:       opts.Scraper,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		logger:        opts.Logger.With().Str("component", "orchestrator").Logger(),
		workers:       opts.Workers,
		stageTimeout:  orDefault(opts.StageTimeout, DefaultStageTimeout),
		jobTimeout:    orDefault(opts.JobTimeout, DefaultJobTimeout),
		styleTimeout:  orDefault(opts.StyleTimeout, DefaultStyleTimeout),
		scrapeTimeout: orDefault(opts.ScrapeTimeout, DefaultScrapeTimeout),
		onFault:       opts.OnFault,
	}
	if o.metrics == nil {
		o.metrics = nopRecorder{}
	}
	if o.workers <= 0 {
		o.workers = 4
	}
	queue := opts.QueueSize
	if queue <= 0 {
		queue = o.workers * 16
	}
	o.pool = NewPool(queue, opts.Logger)
	return o, nil
}

// Start launches the workers. Jobs run on ctx, never on a request context;
// cancelling ctx fails in-flight jobs at their next collaborator call.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.pool.Start(ctx, o.workers)
}

// Close stops accepting work and waits for queued and running jobs to reach
// a terminal state, then for outstanding scrape triggers.
func (o *Orchestrator) Close() {
	o.pool.Stop()
	o.scrapes.Wait()
}

// Submit validates req, records a pending job and queues it. The returned id
// is immediately visible through Status.
func (o *Orchestrator) Submit(ctx context.Context, req domain.GenerationRequest, caller domain.Caller) (string, error) {
	if strings.TrimSpace(caller.UserID) == "" {
		o.metrics.JobRejected("validation")
		return "", fmt.Errorf("%w: caller identity is required", domain.ErrValidation)
	}
	normalized, err := NormalizeRequest(req)
	if err != nil {
		o.metrics.JobRejected("validation")
		return "", err
	}
	mode := normalized.Mode()

	w := work{
		caller:    caller,
		req:       normalized,
		style:     submittedStyle(normalized, caller),
		submitted: time.Now(),
	}

	job, err := o.registry.Create(ctx, caller.UserID, mode)
	if err != nil {
		o.metrics.JobRejected("registry")
		return "", fmt.Errorf("create job: %w", err)
	}
	w.jobID = job.ID

	if err := o.pool.Submit(func(base context.Context) { o.run(base, w) }); err != nil {
		o.metrics.JobRejected("pool")
		o.abandon(ctx, w, err)
		return "", fmt.Errorf("schedule job: %w", err)
	}

	o.metrics.JobSubmitted(mode)
	o.metrics.QueueDepth(o.pool.QueueDepth())
	o.logger.Info().
		Str("job_id", job.ID).
		Str("user_id", caller.UserID).
		Str("request_id", caller.RequestID).
		Str("mode", string(mode)).
		Msg("job accepted")
	return job.ID, nil
}

// Status returns a snapshot of the job.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*domain.Job, error) {
	return o.registry.Get(ctx, jobID)
}

// QueueDepth reports accepted jobs not yet picked up by a worker.
func (o *Orchestrator) QueueDepth() int {
	return o.pool.QueueDepth()
}

// StatusFor is Status scoped to one user; other users' jobs are not found.
func (o *Orchestrator) StatusFor(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, err := o.registry.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// submittedStyle is the override fixed at submission: the request's style as
// sent, then the token claim. Empty leaves the choice to the profile.
func submittedStyle(req domain.GenerationRequest, caller domain.Caller) string {
	if strings.TrimSpace(req.Style) != "" {
		return req.Style
	}
	return strings.TrimSpace(caller.Style)
}

// resolveStyle asks the profile for a tone when no override was captured.
func (o *Orchestrator) resolveStyle(ctx context.Context, w work) string {
	if w.style != "" {
		return w.style
	}
	if o.profiles == nil {
		return domain.DefaultStyle
	}
	sctx, cancel := context.WithTimeout(ctx, o.styleTimeout)
	defer cancel()
	start := time.Now()
	s := strings.TrimSpace(o.profiles.Style(sctx, w.caller.UserID))
	o.metrics.StageObserved("style", time.Since(start), nil)
	if s == "" {
		return domain.DefaultStyle
	}
	return s
}

// abandon fails a job the pool refused so it never lingers in pending.
func (o *Orchestrator) abandon(ctx context.Context, w work, cause error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.stageTimeout)
	defer cancel()
	outcome := domain.Outcome{Error: cause.Error(), ErrorCode: domain.ErrorCode(cause)}
	if err := o.registry.Transition(wctx, w.jobID, domain.JobStatusFailed, outcome); err != nil {
		o.handleTransitionError(w, err)
	}
}

func (o *Orchestrator) run(base context.Context, w work) {
	logger := o.logger.With().
		Str("job_id", w.jobID).
		Str("user_id", w.caller.UserID).
		Str("request_id", w.caller.RequestID).
		Str("locale", w.caller.Locale).
		Str("mode", string(w.req.Mode())).
		Logger()

	ctx, cancel := context.WithTimeout(base, o.jobTimeout)
	defer cancel()

	if err := o.registry.Transition(ctx, w.jobID, domain.JobStatusRunning, domain.Outcome{}); err != nil {
		if errors.Is(err, domain.ErrInternalConsistency) {
			o.fault(logger, err)
			return
		}
		o.finish(base, logger, w, nil, fmt.Errorf("%w: mark running: %w", domain.ErrStoreFailed, err))
		return
	}
	logger.Debug().Dur("queued", time.Since(w.submitted)).Msg("job running")

	o.triggerScrape(base, logger, w)
	result, err := o.safeExecute(ctx, logger, w)
	o.finish(base, logger, w, result, err)
}

func (o *Orchestrator) safeExecute(ctx context.Context, logger zerolog.Logger, w work) (res *domain.JobResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("pipeline panicked")
			res, err = nil, fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return o.execute(ctx, logger, w)
}

// execute runs the stages strictly in order. Any error aborts the job.
func (o *Orchestrator) execute(ctx context.Context, logger zerolog.Logger, w work) (*domain.JobResult, error) {
	style := o.resolveStyle(ctx, w)

	start := time.Now()
	cr := o.retriever.Retrieve(ctx, retrieval.Request{UserID: w.caller.UserID, Topic: w.req.Topic})
	if cr.Failed() {
		return nil, cr.Err
	}
	logger.Debug().Str("context", cr.Kind.String()).Dur("took", time.Since(start)).Msg("context retrieved")

	prompt := generation.Assemble(generation.PromptInput{
		Context:      cr.Text,
		Style:        style,
		Topic:        w.req.Topic,
		Length:       w.req.Length,
		Instructions: w.req.Instructions,
	})

	var text string
	err := o.stage(ctx, "generate", domain.ErrGenerationFailed, func(ctx context.Context) error {
		var err error
		text, err = o.executor.Execute(ctx, prompt)
		return err
	})
	if err != nil {
		return nil, err
	}

	var postID string
	err = o.stage(ctx, "persist", domain.ErrStoreFailed, func(ctx context.Context) error {
		var err error
		postID, err = o.artifacts.Save(ctx, w.caller.UserID, text)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &domain.JobResult{PostID: postID, Content: text}, nil
}

func (o *Orchestrator) stage(ctx context.Context, name string, sentinel error, fn func(context.Context) error) error {
	sctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()
	start := time.Now()
	err := fn(sctx)
	o.metrics.StageObserved(name, time.Since(start), err)
	return domain.WrapStage(sctx, sentinel, err)
}

// triggerScrape asks the discovery service to gather material for the topic.
// It is best effort and runs beside the job, bounded by scrapeTimeout; the
// job proceeds with whatever is already indexed.
func (o *Orchestrator) triggerScrape(base context.Context, logger zerolog.Logger, w work) {
	if o.scraper == nil || w.req.Topic == nil {
		return
	}
	topic := *w.req.Topic
	o.scrapes.Add(1)
	go func() {
		defer o.scrapes.Done()
		sctx, cancel := context.WithTimeout(base, o.scrapeTimeout)
		defer cancel()
		start := time.Now()
		scrapeID, err := o.scraper.StartTopicScrape(sctx, w.caller.UserID, topic)
		o.metrics.StageObserved("scrape", time.Since(start), err)
		if err != nil {
			logger.Warn().Err(err).Msg("topic scrape trigger failed")
			return
		}
		logger.Debug().Str("scrape_job_id", scrapeID).Msg("topic scrape started")
	}()
}

// finish performs the job's single terminal write. It runs on a context
// detached from the job deadline so an expired job can still be failed.
func (o *Orchestrator) finish(base context.Context, logger zerolog.Logger, w work, result *domain.JobResult, runErr error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(base), o.stageTimeout)
	defer cancel()

	next := domain.JobStatusCompleted
	outcome := domain.Outcome{Result: result}
	if runErr == nil && result == nil {
		runErr = fmt.Errorf("%w: pipeline returned no result", domain.ErrInternalConsistency)
	}
	if runErr != nil {
		next = domain.JobStatusFailed
		outcome = domain.Outcome{Error: runErr.Error(), ErrorCode: domain.ErrorCode(runErr)}
	}

	err := o.registry.Transition(wctx, w.jobID, next, outcome)
	if err != nil && next == domain.JobStatusCompleted && !errors.Is(err, domain.ErrInternalConsistency) {
		logger.Error().Err(err).Msg("record completion failed")
		runErr = fmt.Errorf("%w: record completion: %w", domain.ErrStoreFailed, err)
		next = domain.JobStatusFailed
		outcome = domain.Outcome{Error: runErr.Error(), ErrorCode: domain.ErrorCode(runErr)}
		err = o.registry.Transition(wctx, w.jobID, next, outcome)
	}
	if err != nil {
		o.handleTransitionError(w, err)
		return
	}

	took := time.Since(w.submitted)
	o.metrics.JobFinished(w.req.Mode(), next, outcome.ErrorCode, took)
	if runErr != nil {
		logger.Warn().Err(runErr).Str("error_code", outcome.ErrorCode).Dur("took", took).Msg("job failed")
	} else {
		logger.Info().Str("post_id", result.PostID).Dur("took", took).Msg("job completed")
	}

	if o.notifier != nil {
		if job, err := o.registry.Get(wctx, w.jobID); err == nil {
			o.notifier.JobFinished(wctx, job)
		}
	}
}

func (o *Orchestrator) handleTransitionError(w work, err error) {
	logger := o.logger.With().Str("job_id", w.jobID).Logger()
	if errors.Is(err, domain.ErrInternalConsistency) {
		o.fault(logger, err)
		return
	}
	logger.Error().Err(err).Msg("job transition failed")
}

func (o *Orchestrator) fault(logger zerolog.Logger, err error) {
	logger.Error().Err(err).Str("error_code", domain.CodeInternal).Msg("internal consistency fault")
	if o.onFault != nil {
		o.onFault(err)
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
