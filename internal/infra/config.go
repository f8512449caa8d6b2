package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	JWTSecret        string
	JWTAudience      string
	GeoIPDBPath      string
	DefaultLocale    string
	GeminiAPIKey     string
	GeminiModel      string
	EmbeddingModel   string
	Temperature      float64
	VectorDBPath     string
	JobRegistry      string
	ArtifactStore    string
	StoragePath      string
	ScraperURL       string
	NATSURL          string
	EventsSubject    string
	ScrapeSubject    string
	Pipeline         PipelineConfig
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// PipelineConfig holds the job execution tunables. They may also come from
// the YAML file named by CONFIG_FILE; environment variables win.
type PipelineConfig struct {
	Workers       int           `yaml:"workers"`
	QueueSize     int           `yaml:"queue_size"`
	TopK          int           `yaml:"top_k"`
	StageTimeout  time.Duration `yaml:"stage_timeout"`
	JobTimeout    time.Duration `yaml:"job_timeout"`
	StyleTimeout  time.Duration `yaml:"style_timeout"`
	ScrapeTimeout time.Duration `yaml:"scrape_timeout"`
	JobRetention  time.Duration `yaml:"job_retention"`
	SweepEvery    time.Duration `yaml:"sweep_every"`
}

type fileConfig struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
}

func defaultPipeline() PipelineConfig {
	return PipelineConfig{
		Workers:       4,
		QueueSize:     64,
		TopK:          5,
		StageTimeout:  30 * time.Second,
		JobTimeout:    2 * time.Minute,
		StyleTimeout:  2 * time.Second,
		ScrapeTimeout: 5 * time.Second,
		SweepEvery:    time.Minute,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	pipeline := defaultPipeline()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadPipelineFile(path, &pipeline); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTAudience:      getEnv("JWT_AUDIENCE", "authenticated"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		Temperature:      getEnvFloat("GEMINI_TEMPERATURE", 0.7),
		VectorDBPath:     getEnv("VECTOR_DB_PATH", "./data/vectors.db"),
		JobRegistry:      strings.ToLower(getEnv("JOB_REGISTRY", "memory")),
		ArtifactStore:    strings.ToLower(getEnv("ARTIFACT_STORE", "postgres")),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		ScraperURL:       strings.TrimRight(os.Getenv("SCRAPER_SERVICE_URL"), "/"),
		NATSURL:          os.Getenv("NATS_URL"),
		EventsSubject:    getEnv("NATS_EVENTS_SUBJECT", "postgen.jobs.finished"),
		ScrapeSubject:    os.Getenv("NATS_SCRAPE_SUBJECT"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	pipeline.Workers = getEnvInt("JOB_WORKERS", pipeline.Workers)
	pipeline.QueueSize = getEnvInt("JOB_QUEUE_SIZE", pipeline.QueueSize)
	pipeline.StageTimeout = getEnvDuration("STAGE_TIMEOUT", pipeline.StageTimeout)
	pipeline.JobTimeout = getEnvDuration("JOB_TIMEOUT", pipeline.JobTimeout)
	pipeline.StyleTimeout = getEnvDuration("STYLE_TIMEOUT", pipeline.StyleTimeout)
	pipeline.ScrapeTimeout = getEnvDuration("SCRAPE_TIMEOUT", pipeline.ScrapeTimeout)
	pipeline.JobRetention = getEnvDuration("JOB_RETENTION", pipeline.JobRetention)
	pipeline.SweepEvery = getEnvDuration("JOB_SWEEP_EVERY", pipeline.SweepEvery)
	cfg.Pipeline = pipeline

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.JobRegistry {
	case "memory", "postgres":
	default:
		return nil, fmt.Errorf("JOB_REGISTRY must be memory or postgres, got %q", cfg.JobRegistry)
	}

	switch cfg.ArtifactStore {
	case "postgres", "file":
	default:
		return nil, fmt.Errorf("ARTIFACT_STORE must be postgres or file, got %q", cfg.ArtifactStore)
	}

	if cfg.Pipeline.Workers <= 0 || cfg.Pipeline.QueueSize <= 0 {
		return nil, fmt.Errorf("job workers and queue size must be positive")
	}

	return cfg, nil
}

// Production reports whether the service runs with production semantics.
func (c *Config) Production() bool {
	return c.AppEnv == "production"
}

func loadPipelineFile(path string, into *PipelineConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	file := fileConfig{Pipeline: *into}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	*into = file.Pipeline
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
