package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"paluwagan/internal/cache"
	"paluwagan/internal/core"
	"paluwagan/internal/log"
	"paluwagan/internal/metrics"
	"paluwagan/internal/middleware/ratelimit"
	"paluwagan/internal/middleware/security"
	"paluwagan/internal/middleware/trace"
	"paluwagan/internal/services"
	"paluwagan/internal/sheets"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

type Server struct {
	http.Server
	ledger  *services.LedgerService
	entries sheets.LedgerReader
	logger  *log.Logger
	metrics *metrics.Metrics
	checks  map[string]ReadinessCheck

	limiter  *ratelimit.Limiter
	detector *security.Detector
	headers  *security.HeadersMiddleware
	tracer   *trace.Middleware

	headDashboards   *cache.LRUCache[core.HeadDashboard]
	memberDashboards *cache.LRUCache[core.MemberDashboard]
	cacheManager     *cache.Manager

	startedAt    time.Time
	shutdownOnce sync.Once
}

type serverOptions struct {
	logger       *log.Logger
	metrics      *metrics.Metrics
	entries      sheets.LedgerReader
	checks       map[string]ReadinessCheck
	rateLimit    int
	dashboardTTL time.Duration
	clock        core.Clock
}

type ServerOption func(*serverOptions)

func WithLogger(l *log.Logger) ServerOption { return func(o *serverOptions) { o.logger = l } }

// WithMetrics serves /metrics and records request metrics.
func WithMetrics(m *metrics.Metrics) ServerOption { return func(o *serverOptions) { o.metrics = m } }

// WithReadinessCheck adds a named dependency check to /readyz.
func WithReadinessCheck(name string, check ReadinessCheck) ServerOption {
	return func(o *serverOptions) { o.checks[name] = check }
}

// WithLedgerReader serves the exported payment ledger of each group.
func WithLedgerReader(r sheets.LedgerReader) ServerOption {
	return func(o *serverOptions) { o.entries = r }
}

func WithRateLimit(perMinute int) ServerOption {
	return func(o *serverOptions) { o.rateLimit = perMinute }
}

// WithDashboardCacheTTL sets how long dashboards are cached. Only this
// server's own writes purge the caches; changes made by other processes
// appear once the TTL expires.
func WithDashboardCacheTTL(ttl time.Duration) ServerOption {
	return func(o *serverOptions) { o.dashboardTTL = ttl }
}

// WithClock sets the clock used by the rate limiter and dashboard cache.
func WithClock(c core.Clock) ServerOption { return func(o *serverOptions) { o.clock = c } }

// NewServer wires middleware and routes, returning a ready-to-run server.
func NewServer(addr string, ledger *services.LedgerService, opts ...ServerOption) *Server {
	o := serverOptions{
		checks:       make(map[string]ReadinessCheck),
		rateLimit:    60,
		dashboardTTL: 30 * time.Second,
		clock:        core.SystemClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		ledger:           ledger,
		logger:           o.logger.WithComponent(log.ComponentHTTP),
		metrics:          o.metrics,
		entries:          o.entries,
		checks:           o.checks,
		headers:          security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		headDashboards:   cache.NewLRUCache[core.HeadDashboard](256, o.dashboardTTL, o.clock),
		memberDashboards: cache.NewLRUCache[core.MemberDashboard](1024, o.dashboardTTL, o.clock),
		cacheManager:     cache.NewManager(),
		startedAt:        time.Now(),
	}

	var onSuspicious func(*http.Request)
	var onLimited func(string)
	var recorder trace.Recorder
	if s.metrics != nil {
		onSuspicious = func(*http.Request) { s.metrics.SuspiciousRequest() }
		onLimited = func(string) { s.metrics.RateLimited() }
		recorder = s.metrics
	}
	s.detector = security.NewDetector(onSuspicious)
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, recorder)
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: o.rateLimit,
		Clock:             o.clock,
		OnLimited:         onLimited,
	})

	s.cacheManager.Register(s.headDashboards)
	s.cacheManager.Register(s.memberDashboards)
	s.cacheManager.StartCleanup(10 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(chimw.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(s.headers.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Group(func(api chi.Router) {
		api.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
		}))

		api.Route("/users", func(u chi.Router) {
			u.Post("/", s.handleSignUp)
			u.Get("/{id}", s.handleGetUser)
			u.Put("/{id}/role", s.handleSelectRole)
			u.Get("/{id}/groups", s.handleUserGroups)
			u.Get("/{id}/collections/upcoming", s.handleUpcoming)
			u.Get("/{id}/dashboard/head", s.handleHeadDashboard)
			u.Get("/{id}/dashboard/member", s.handleMemberDashboard)
		})

		api.Route("/groups", func(g chi.Router) {
			g.Post("/", s.handleCreateGroup)
			g.Get("/{id}", s.handleGetGroup)
			g.Post("/{id}/members", s.handleJoinGroup)
			g.Delete("/{id}/members/{userId}", s.handleLeaveGroup)
			g.Post("/{id}/advance", s.handleAdvanceCycle)
			g.Get("/{id}/collections", s.handleGroupCollections)
			if s.entries != nil {
				g.Get("/{id}/ledger", s.handleGroupLedger)
			}
		})

		api.Route("/collections", func(c chi.Router) {
			c.Get("/{id}", s.handleGetCollection)
			c.Post("/{id}/payment", s.handleRecordPayment)
			c.Post("/{id}/cancel", s.handleCancelCollection)
			c.Post("/{id}/overdue", s.handleMarkOverdue)
			c.Post("/{id}/reminder-sent", s.handleReminderSent)
			c.Get("/{id}/reminder", s.handleEvaluateReminder)
		})
	})

	return r
}

// invalidateDashboards drops cached dashboards after a write.
func (s *Server) invalidateDashboards() {
	s.headDashboards.Purge()
	s.memberDashboards.Purge()
}

// Shutdown stops background routines and then the HTTP server. Safe to call
// more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
