package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budget/internal/cache"
	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/recovery"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
)

const (
	rateLimitWindow      = time.Minute
	cacheCleanupInterval = 5 * time.Minute
	readinessTimeout     = 3 * time.Second
)

type (
	// ExpenseService is the expense API the handlers depend on.
	ExpenseService interface {
		List(ctx context.Context, f core.ExpenseFilter) ([]core.Expense, error)
		Create(ctx context.Context, in core.NewExpense) (core.Expense, error)
		Update(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error)
		Delete(ctx context.Context, id int64) error
	}

	AnalyticsService interface {
		CurrentMonthTotal(ctx context.Context) (core.MonthSummary, error)
		MonthlyTotals(ctx context.Context, year *int) ([]core.MonthTotal, int, error)
		ByCategory(ctx context.Context, r *core.DateRange) ([]core.CategoryTotal, error)
	}

	CategoryService interface {
		ListAll(ctx context.Context) ([]core.Category, error)
	}

	// Services groups the application services served over HTTP.
	Services struct {
		Expenses   ExpenseService
		Analytics  AnalyticsService
		Categories CategoryService
	}

	// ReadinessCheck reports whether a dependency can serve traffic.
	ReadinessCheck func(ctx context.Context) error
)

type Server struct {
	http.Server
	svc        Services
	logger     *log.Logger
	diagnostic bool
	now        func() time.Time

	detector  *security.Detector
	tracer    *trace.Middleware
	limiter   *ratelimit.Limiter
	recoverer *recovery.Middleware
	caches    *cache.Manager

	checks   map[string]ReadinessCheck
	gauges   map[string]func() any
	rpm      int
	origins  []string
	cleaners []cache.Cleaner

	shutdownOnce sync.Once
}

type Option func(*Server)

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDiagnostic exposes internal error detail in 500 responses.
func WithDiagnostic(on bool) Option {
	return func(s *Server) { s.diagnostic = on }
}

// WithRateLimit sets the per-client budget for mutating requests.
func WithRateLimit(requestsPerMinute int) Option {
	return func(s *Server) { s.rpm = requestsPerMinute }
}

func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithReadinessCheck adds a dependency probed by /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithGauge adds a value reported by /metrics.
func WithGauge(name string, read func() any) Option {
	return func(s *Server) { s.gauges[name] = read }
}

// WithCacheCleanup registers a cache swept periodically while the server runs.
func WithCacheCleanup(c cache.Cleaner) Option {
	return func(s *Server) { s.cleaners = append(s.cleaners, c) }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		now:     time.Now,
		checks:  make(map[string]ReadinessCheck),
		gauges:  make(map[string]func() any),
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.Default(log.ComponentHTTP)
	}

	cfg := ratelimit.DefaultConfig()
	if s.rpm > 0 {
		cfg.RequestsPerMinute = s.rpm
	}
	s.limiter = ratelimit.NewLimiter(cfg)
	s.detector = security.NewDetector()
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)
	s.recoverer = recovery.NewMiddleware(s.writePanic)

	s.caches = cache.NewManager(s.logger.WithComponent(log.ComponentCache).Logger)
	for _, c := range s.cleaners {
		s.caches.Register(c)
	}
	if len(s.cleaners) > 0 {
		s.caches.StartCleanup(context.Background(), cacheCleanupInterval)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	cors := security.NewCORS(s.origins)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.writeRateLimited)(h)
	h = s.detector.Middleware(h)
	h = cors.Middleware(h)
	h = headers.Middleware(h)
	h = s.recoverer.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/analytics/current-month", s.handleCurrentMonth)
	mux.HandleFunc("GET /api/analytics/monthly", s.handleMonthly)
	mux.HandleFunc("GET /api/analytics/by-category", s.handleByCategory)

	mux.HandleFunc("GET /healthz", handleLiveness)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("/", s.handleNotFound)
}

// Shutdown stops background routines, then drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
