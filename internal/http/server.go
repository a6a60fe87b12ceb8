// Package http exposes the recurring scheduler, transactions, reports and
// text import as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/middleware/ratelimit"
	"financas/internal/middleware/security"
	"financas/internal/middleware/trace"
	"financas/internal/services"
)

// Catalog is the reference data the API reads and creates.
type Catalog interface {
	CreateAccount(ctx context.Context, a core.Account) error
	ListAccounts(ctx context.Context) ([]core.Account, error)
	CreateCard(ctx context.Context, c core.Card) error
	ListCards(ctx context.Context) ([]core.Card, error)
	CreateCategory(ctx context.Context, c core.Category) error
	ListCategories(ctx context.Context) ([]core.Category, error)
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the API. Import may be nil.
type Deps struct {
	Recurring    *services.RecurringProcessor
	Transactions *services.TransactionService
	Reports      *services.ReportService
	Import       *services.ImportService
	Catalog      Catalog
	Store        Pinger
	Logger       *log.Logger
}

// Options tune the middleware chain.
type Options struct {
	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server
	deps Deps

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	deps.Logger = deps.Logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}
	rlConfig := ratelimit.DefaultConfig()
	rlConfig.RequestsPerMinute = opts.RateLimitPerMinute

	s := &Server{
		deps:        deps,
		detector:    detector,
		rateLimiter: ratelimit.NewLimiter(rlConfig),
		tracer:      trace.NewMiddleware(detector.ExtractClientIP),
		started:     time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/cards", s.handleListCards)
	mux.HandleFunc("POST /api/cards", s.handleCreateCard)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)

	mux.HandleFunc("GET /api/recurring", s.handleListRecurring)
	mux.HandleFunc("POST /api/recurring", s.handleCreateRecurring)
	mux.HandleFunc("POST /api/recurring/fire", s.handleFireRecurring)
	mux.HandleFunc("GET /api/recurring/{id}", s.handleGetRecurring)
	mux.HandleFunc("PUT /api/recurring/{id}", s.handleUpdateRecurring)
	mux.HandleFunc("POST /api/recurring/{id}/enable", s.handleSetRecurringEnabled(true))
	mux.HandleFunc("POST /api/recurring/{id}/disable", s.handleSetRecurringEnabled(false))
	mux.HandleFunc("DELETE /api/recurring/{id}", s.handleDeleteRecurring)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/transactions/{id}/installments/{n}/pay", s.handlePayInstallment)
	mux.HandleFunc("POST /api/transactions/{id}/installments/{n}/unpay", s.handleUnpayInstallment)

	mux.HandleFunc("GET /api/reports", s.handleReport)
	mux.HandleFunc("POST /api/import", s.handleImport)

	// outermost first
	var h http.Handler = mux
	h = s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
	})(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = log.Middleware(deps.Logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
