// Package http serves the ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"dietledger/internal/core"
	"dietledger/internal/foods"
	"dietledger/internal/history"
	"dietledger/internal/log"
	"dietledger/internal/middleware/ratelimit"
	"dietledger/internal/middleware/security"
	"dietledger/internal/middleware/trace"
	"dietledger/internal/recommend"
	"dietledger/internal/services"
)

// maxBodyBytes bounds POST bodies.
const maxBodyBytes = 1 << 20

// Tracker is the application surface the handlers call.
type Tracker interface {
	AddEntry(ctx context.Context, date string, in services.EntryInput) (core.Entry, error)
	AddEntriesBatch(ctx context.Context, date string, in []services.EntryInput) ([]core.Entry, error)
	ResetDay(ctx context.Context, date string) error
	GetDay(ctx context.Context, date string) ([]core.Entry, error)
	GetRange(ctx context.Context, start, end string) (map[string][]core.Entry, error)
	GetProgress(ctx context.Context, date string) (services.DayProgress, error)
	GetSuggestions(ctx context.Context, date string) (services.Suggestions, error)
	GetMonth(ctx context.Context, year, month int) (services.MonthView, error)
	Challenging(ctx context.Context, end string, days int) ([]history.CategoryAverage, error)
	Categories() []services.CategoryRequirement
	Foods(category string) []foods.Food
	Recommendations(ctx context.Context, date string) (recommend.Result, error)
	Ping(ctx context.Context) error
}

var _ Tracker = (*services.Tracker)(nil)

type Server struct {
	http.Server
	tracker     Tracker
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	version     string

	shutdownOnce sync.Once
}

type Option func(*Server)

// WithVersion sets what /version reports.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithRateLimit sets the per-IP budget for POST requests.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		s.rateLimiter = ratelimit.NewLimiter(cfg)
	}
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, tracker Tracker, logger *log.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		tracker: tracker,
		logger:  logger.WithComponent(log.ComponentHTTP),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rateLimiter == nil {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	s.tracer = trace.NewMiddleware(logger, security.ClientIP)

	limited := s.rateLimiter.Middleware(security.ClientIP, s.onRateLimit)
	post := func(h http.HandlerFunc) http.Handler {
		return limited(http.MaxBytesHandler(h, maxBodyBytes))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /entries", post(s.handleAddEntry))
	mux.Handle("POST /entries/batch", post(s.handleAddBatch))
	mux.Handle("POST /entries/reset", post(s.handleReset))
	mux.HandleFunc("GET /entries/range", s.handleRange)
	mux.HandleFunc("GET /entries/{date}", s.handleDay)
	mux.HandleFunc("GET /progress/{date}", s.handleProgress)
	mux.HandleFunc("GET /suggestions/{date}", s.handleSuggestions)
	mux.HandleFunc("GET /months/{year}/{month}", s.handleMonth)
	mux.HandleFunc("GET /challenging", s.handleChallenging)
	mux.HandleFunc("GET /categories", s.handleCategories)
	mux.HandleFunc("GET /foods/{category}", s.handleFoods)
	mux.HandleFunc("GET /recommendations/{date}", s.handleRecommendations)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /version", s.handleVersion)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = s.tracer.Middleware(headers.Middleware(mux))
	return s
}

// Shutdown stops the limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, security.ClientIP(r),
		log.FieldPath, r.URL.Path)
	writeJSON(w, r, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, try again later"})
}
