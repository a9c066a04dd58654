// Package http exposes the record store, the summaries and the user
// endpoints as a JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"budget/internal/auth"
	"budget/internal/cache"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"

	"golang.org/x/sync/singleflight"
)

// Options tunes the server; zero values fall back to defaults.
type Options struct {
	RateLimitPerMinute int
	SummaryCacheTTL    time.Duration
	SummaryCacheSize   int
	Logger             *applog.Logger
}

// Server is the API listener plus the state its handlers share.
type Server struct {
	http.Server

	records *services.RecordService
	users   *auth.UserService
	tokens  *auth.TokenService

	summaries    *cache.LRUCache[core.Summary]
	summaryMu    sync.Mutex
	summaryGen   map[string]uint64
	flights      singleflight.Group
	cacheManager *cache.Manager
	limiter      *ratelimit.Limiter
	ipResolver   *security.ClientIPResolver
	tracer       *trace.Middleware
	logger       *applog.Logger
	events       *applog.StructuredLogger

	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, records *services.RecordService, users *auth.UserService, tokens *auth.TokenService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.SummaryCacheTTL == 0 {
		opts.SummaryCacheTTL = 5 * time.Minute
	}
	if opts.SummaryCacheSize == 0 {
		opts.SummaryCacheSize = 500
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		records:      records,
		users:        users,
		tokens:       tokens,
		summaries:    cache.NewLRUCache[core.Summary](opts.SummaryCacheSize, opts.SummaryCacheTTL),
		summaryGen:   make(map[string]uint64),
		cacheManager: cache.NewManager(),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		ipResolver:   security.NewClientIPResolver(),
		logger:       logger,
		events:       applog.NewStructuredLogger(logger.WithComponent(applog.ComponentRecords)),
		now:          time.Now,
	}
	s.tracer = trace.NewMiddleware(opts.Logger, s.ipResolver.ClientIP)

	s.cacheManager.Register(s.summaries)
	s.cacheManager.StartCleanup(10 * time.Minute)
	records.OnChange(s.invalidateSummaries)

	mux := http.NewServeMux()
	s.routes(mux)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/users", s.handleRegister)
	mux.HandleFunc("GET /api/users", s.handleLookupUser)
	mux.HandleFunc("POST /api/sessions", s.handleLogin)

	mux.HandleFunc("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.requireAuth(s.handleCreateExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/categoryBudgets", s.requireAuth(s.handleListBudgets))
	mux.HandleFunc("POST /api/categoryBudgets", s.requireAuth(s.handleCreateBudget))
	mux.HandleFunc("PUT /api/categoryBudgets/{id}", s.requireAuth(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/categoryBudgets/{id}", s.requireAuth(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/income", s.requireAuth(s.handleListIncomes))
	mux.HandleFunc("POST /api/income", s.requireAuth(s.handleCreateIncome))
	mux.HandleFunc("PUT /api/income/{id}", s.requireAuth(s.handleUpdateIncome))
	mux.HandleFunc("DELETE /api/income/{id}", s.requireAuth(s.handleDeleteIncome))

	mux.HandleFunc("GET /api/summary", s.requireAuth(s.handleSummary))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, core.NewNotFound("route", r.URL.Path))
	})
}

// middleware applies, outermost first: tracing, security headers, rate
// limiting of writes and credential lookups.
func (s *Server) middleware(next http.Handler) http.Handler {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.limiter.Middleware(s.ipResolver.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.ipResolver.ClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		writeError(w, r, errRateLimited)
	})(next)

	gate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldRateLimit(r) {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
	return s.tracer.Middleware(headers.Middleware(gate))
}

func shouldRateLimit(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return true
	}
	return r.URL.Path == "/api/users"
}

func summaryKey(ownerID string, m core.Month) string {
	return ownerID + "|" + m.String()
}

// invalidateSummaries is registered as a record service hook. A nil months
// slice drops every cached month of the owner. Bumping the owner's
// generation keeps summaries computed before the mutation out of the cache.
func (s *Server) invalidateSummaries(ownerID string, months []core.Month) {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	s.summaryGen[ownerID]++
	if months == nil {
		prefix := ownerID + "|"
		n := s.summaries.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
		s.logger.Debug("Summary cache invalidated", applog.FieldUserID, ownerID, "entries", n)
		return
	}
	for _, m := range months {
		s.summaries.Delete(summaryKey(ownerID, m))
	}
}

func (s *Server) summaryGeneration(ownerID string) uint64 {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	return s.summaryGen[ownerID]
}

// storeSummary caches sum unless the owner's records changed since gen.
func (s *Server) storeSummary(ownerID, key string, gen uint64, sum core.Summary) bool {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	if s.summaryGen[ownerID] != gen {
		return false
	}
	s.summaries.Set(key, sum)
	return true
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
