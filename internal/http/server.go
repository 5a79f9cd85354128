// Package http exposes the tracker over a small JSON and CSV API.
package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"spesevoce/internal/core"
	"spesevoce/internal/log"
	"spesevoce/internal/middleware/ratelimit"
	"spesevoce/internal/middleware/security"
	"spesevoce/internal/middleware/trace"
	"spesevoce/internal/tracker"
)

// maxBodyBytes caps request bodies; transcripts are short.
const maxBodyBytes = 64 << 10

// ExpenseTracker is the part of tracker.Service the handlers need.
type ExpenseTracker interface {
	ProcessSpeech(ctx context.Context, text string) (tracker.SpeechResult, error)
	SetCurrency(raw string) (core.Currency, error)
	DailySummary(ctx context.Context, currency string) (core.DailySummary, error)
	ExportCSV(ctx context.Context, w io.Writer, currency string) error
	Today() time.Time
}

// ReadyCheck is probed by /readyz. A non-nil error marks the server not ready.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	TrustedProxies     []string
}

type Server struct {
	http.Server
	tracker     ExpenseTracker
	logger      *log.Logger
	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	readyChecks []ReadyCheck
	readyInfo   map[string]string

	shutdownOnce sync.Once
}

type Option func(*Server)

func WithReadyCheck(name string, check func(context.Context) error) Option {
	return func(s *Server) {
		s.readyChecks = append(s.readyChecks, ReadyCheck{Name: name, Check: check})
	}
}

// WithReadyInfo adds a static key reported by /readyz, such as the annotator provider.
func WithReadyInfo(key, value string) Option {
	return func(s *Server) {
		s.readyInfo[key] = value
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentHTTP)
		}
	}
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(cfg Config, t ExpenseTracker, opts ...Option) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		tracker:   t,
		logger:    log.Discard(),
		detector:  security.NewDetector(),
		readyInfo: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, cidr := range cfg.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/process-speech", s.handleProcessSpeech)
	mux.HandleFunc("/set-currency", s.handleSetCurrency)
	mux.HandleFunc("/daily-summary", s.handleDailySummary)
	mux.HandleFunc("/export-csv", s.handleExportCSV)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited, http.MethodPost)(h)
	h = security.CORS(cfg.CORSAllowedOrigins)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(s.logger)(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(s.logger)(h)
	h = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger).Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
