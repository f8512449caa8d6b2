package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"postgen/internal/adapter/repo"
	"postgen/internal/bus"
	"postgen/internal/domain"
	"postgen/internal/generation"
	"postgen/internal/http/handlers"
	httpapi "postgen/internal/http/httpapi"
	"postgen/internal/infra"
	"postgen/internal/infra/credentials"
	"postgen/internal/infra/geoip"
	"postgen/internal/jobs"
	"postgen/internal/metrics"
	"postgen/internal/middleware"
	genaiprovider "postgen/internal/providers/genai"
	"postgen/internal/retrieval"
	"postgen/internal/scraper"
	"postgen/internal/storage"
	"postgen/internal/vectorstore"
)

const drainTimeout = 30 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api stopped with error")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) error {
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbpool.Close()
	sqlRunner := infra.NewSQLRunner(dbpool, logger)

	collector := metrics.NewCollector()

	var registry domain.JobRegistry = jobs.NewMemoryRegistry()
	if cfg.JobRegistry == "postgres" {
		registry = repo.NewJobRepository(sqlRunner)
	}

	var posts domain.PostRepository = repo.NewPostRepository(sqlRunner)
	if cfg.ArtifactStore == "file" {
		fs, err := storage.NewFileStore(cfg.StoragePath)
		if err != nil {
			return err
		}
		logger.Info().Str("path", fs.BasePath()).Msg("posts stored on local filesystem")
		posts = fs
	}
	profiles := repo.NewProfileRepository(sqlRunner)

	provider, embedder := newProvider(ctx, cfg, sqlRunner, logger)
	executor := generation.NewExecutor(ctx, provider, logger)

	vectors, err := vectorstore.Open(cfg.VectorDBPath)
	if err != nil {
		return err
	}
	defer vectors.Close()

	pipeline, err := retrieval.NewPipeline(retrieval.Options{
		Profiles:    profiles,
		Embedder:    embedder,
		Searcher:    vectors,
		TopK:        cfg.Pipeline.TopK,
		CallTimeout: cfg.Pipeline.StageTimeout,
		Observe:     collector.StageObserved,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	var (
		notifier domain.JobNotifier
		trigger  domain.ScrapeTrigger
	)
	if cfg.NATSURL != "" {
		natsClient, err := bus.Connect(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer natsClient.Close()
		notifier = bus.NewJobEvents(natsClient, cfg.EventsSubject, logger)
		if cfg.ScrapeSubject != "" {
			trigger = scraper.NewBusTrigger(natsClient, cfg.ScrapeSubject)
		}
	}
	if trigger == nil && cfg.ScraperURL != "" {
		if trigger, err = scraper.NewHTTPTrigger(scraper.HTTPOptions{BaseURL: cfg.ScraperURL}); err != nil {
			return err
		}
	}

	onFault := jobs.PanicOnFault
	if cfg.Production() {
		onFault = nil
	}
	orchestrator, err := jobs.New(jobs.Options{
		Registry:      registry,
		Retriever:     pipeline,
		Executor:      executor,
		Artifacts:     posts,
		Profiles:      profiles,
		Scraper:       trigger,
		Notifier:      notifier,
		Metrics:       collector,
		Logger:        logger,
		Workers:       cfg.Pipeline.Workers,
		QueueSize:     cfg.Pipeline.QueueSize,
		StageTimeout:  cfg.Pipeline.StageTimeout,
		JobTimeout:    cfg.Pipeline.JobTimeout,
		StyleTimeout:  cfg.Pipeline.StyleTimeout,
		ScrapeTimeout: cfg.Pipeline.ScrapeTimeout,
		OnFault:       onFault,
	})
	if err != nil {
		return err
	}

	// Jobs outlive the signal context so Close can drain them.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()
	if err := orchestrator.Start(jobCtx); err != nil {
		return err
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	if resolver != nil {
		lookup = resolver.Country
		defer resolver.Close()
	}

	app := handlers.NewApp(orchestrator, posts, logger)
	app.Ready = []handlers.Pinger{
		dbpool.Ping,
		func(context.Context) error { return executor.Available() },
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		JWTSecret:       cfg.JWTSecret,
		JWTAudience:     cfg.JWTAudience,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   lookup,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Metrics:         collector.Handler(),
	})
	server := infra.NewHTTPServer(ctx, cfg, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		return server.Start()
	})
	g.Go(func() error {
		jobs.RunEvictor(gctx, registry, cfg.Pipeline.JobRetention, cfg.Pipeline.SweepEvery, logger)
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				collector.QueueDepth(orchestrator.QueueDepth())
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}
		return nil
	})

	err = g.Wait()
	drain(orchestrator, cancelJobs, logger)
	return err
}

// drain waits for accepted jobs; past drainTimeout their context is cancelled
// so they fail fast, recorded as timeouts, and still reach a terminal state.
func drain(o *jobs.Orchestrator, cancel context.CancelFunc, logger zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		o.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(drainTimeout):
		logger.Warn().Msg("jobs still running at shutdown, cancelling")
		cancel()
		<-done
	}
}

// newProvider builds the Gemini client. Without a usable key the service
// still starts: generation reports the provider unavailable and retrieval
// fails its embed stage.
func newProvider(ctx context.Context, cfg *infra.Config, sql infra.SQLExecutor, logger zerolog.Logger) (domain.TextGenerator, domain.Embedder) {
	keyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	apiKey, err := credentials.NewStore(sql).ResolveGeminiAPIKey(keyCtx, cfg.GeminiAPIKey)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load stored gemini key")
	}
	client, err := genaiprovider.New(ctx, genaiprovider.Options{
		APIKey:         apiKey,
		Model:          cfg.GeminiModel,
		EmbeddingModel: cfg.EmbeddingModel,
		Temperature:    cfg.Temperature,
		Logger:         logger,
	})
	if err != nil {
		logger.Error().Err(err).Msg("gemini client unavailable")
		down := genaiprovider.Unavailable{Err: err}
		return nil, down
	}
	return client, client
}
