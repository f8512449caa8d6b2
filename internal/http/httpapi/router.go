package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"postgen/internal/http/handlers"
	"postgen/internal/middleware"
)

type Options struct {
	Logger         zerolog.Logger
	JWTSecret      string
	JWTAudience    string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	AllowedOrigins []string
	// RateLimitPerMin caps generation requests per user; zero disables it.
	RateLimitPerMin int
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/readyz", app.Readiness)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret, opts.JWTAudience))

		r.Route("/v1/generate", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
				r.Post("/", app.Generate)
				r.Post("/manual", app.Generate)
				r.Post("/auto", app.GenerateAuto)
			})
			r.Get("/status/{job_id}", app.GenerateStatus)
		})

		r.Route("/v1/posts", func(r chi.Router) {
			r.Get("/", app.PostsList)
			r.Post("/", app.PostsCreate)
			r.Get("/{post_id}", app.PostsGet)
			r.Put("/{post_id}", app.PostsUpdate)
			r.Delete("/{post_id}", app.PostsDelete)
		})
	})

	return r
}
