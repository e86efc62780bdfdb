// Package web serves the upload form and the JSON analysis API.
package web

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
	"github.com/Lllllllleong/earningscallanalyst/internal/services"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTmpl = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// multipartOverhead is allowed on top of the upload limit for form fields
// and part headers.
const multipartOverhead = 1 << 20

// Runner executes one analysis.
type Runner interface {
	Run(ctx context.Context, apiKey string, acquire services.AcquireFunc) *services.Outcome
}

// Options configures a Server.
type Options struct {
	// EnvAPIKey is used when the form leaves the key blank.
	EnvAPIKey             string
	ModelName             string
	SafetyFiltersDisabled bool
	MaterializeMode       models.MaterializeMode
	MaxUploadBytes        int64
	RequestTimeout        time.Duration
	Version               string
}

// Server holds the handlers' dependencies.
type Server struct {
	runner Runner
	opts   Options
}

// NewServer returns a Server backed by runner.
func NewServer(runner Runner, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	return &Server{runner: runner, opts: opts}
}

// Router builds the chi router with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/", s.handleIndex)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.RequestSize(s.opts.MaxUploadBytes + multipartOverhead))
		if s.opts.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(s.opts.RequestTimeout))
		}
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/api/analyze", s.handleAPIAnalyze)
	})

	return r
}

// requestLogger logs each request through slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("HTTP request.",
			"requestId", chimiddleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}
