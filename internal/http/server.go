package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"finledger/internal/auth"
	"finledger/internal/ledger"
	"finledger/internal/log"
	"finledger/internal/middleware/ratelimit"
	"finledger/internal/middleware/security"
	"finledger/internal/middleware/trace"
	"finledger/internal/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Services bundles what the handlers call into.
type Services struct {
	Auth      *services.AuthService
	Expenses  *services.ExpenseService
	Goals     *services.GoalService
	Bills     *services.BillService
	Budgets   *ledger.BudgetEngine
	Dashboard *ledger.Dashboard
}

// Pinger reports whether a dependency can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr           string
	HTTP2Cleartext bool
	RateLimitRPS   float64
	RateLimitBurst int
	MaxUploadBytes int64
}

type Server struct {
	http.Server
	svc      Services
	tokens   *auth.JWTManager
	ready    Pinger
	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	metrics  *trace.Metrics
	registry *prometheus.Registry

	maxUploadBytes int64
	shutdownOnce   sync.Once
}

// NewServer wires routes and the middleware chain. Every request passes
// request id, logging, security, rate limiting and authentication, in that
// order; each route records its own metrics.
func NewServer(cfg Config, svc Services, tokens *auth.JWTManager, ready Pinger, logger *log.Logger) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		svc:      svc,
		tokens:   tokens,
		ready:    ready,
		logger:   logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(registry),
		metrics:  trace.NewMetrics(registry),
		registry: registry,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}),
		maxUploadBytes: cfg.MaxUploadBytes,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = s.requireAuth(mux)
	handler = s.limiter.Middleware(s.detector.ClientIP, s.handleRateLimited)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.accessLog(handler)
	handler = log.Middleware(s.logger, trace.FromRequest)(handler)
	handler = trace.RequestID(handler)

	if cfg.HTTP2Cleartext {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.metrics.Route(pattern, h))
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	handle("POST /api/auth/register", s.handleRegister)
	handle("POST /api/auth/login", s.handleLogin)
	handle("GET /api/users/profile", s.handleProfile)
	handle("PUT /api/users/profile", s.handleUpdateProfile)

	handle("GET /api/budget", s.handleCurrentBudget)
	handle("POST /api/budget", s.handleUpsertBudget)
	handle("GET /api/budget/{month}/{year}", s.handleBudgetFor)

	handle("GET /api/dashboard/stats", s.handleDashboardStats)
	handle("GET /api/dashboard/spending-breakdown", s.handleSpendingBreakdown)
	handle("GET /api/dashboard/spending-trends", s.handleSpendingTrends)

	handle("GET /api/expenses", s.handleListExpenses)
	handle("POST /api/expenses", s.handleCreateExpense)
	handle("GET /api/expenses/stats/monthly", s.handleMonthlyExpenseStats)
	handle("GET /api/expenses/categories", s.handleCategories)
	handle("GET /api/expenses/filter", s.handleFilterExpenses)
	handle("GET /api/expenses/category/{category}", s.handleExpensesByCategory)
	handle("GET /api/expenses/{id}", s.handleGetExpense)
	handle("PUT /api/expenses/{id}", s.handleUpdateExpense)
	handle("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	handle("POST /api/expenses/{id}/attachment", s.handleUploadAttachment)
	handle("GET /api/expenses/{id}/attachment", s.handleDownloadAttachment)

	handle("GET /api/savings/goals", s.handleListGoals)
	handle("POST /api/savings/goals", s.handleCreateGoal)
	handle("GET /api/savings/goals/{id}", s.handleGetGoal)
	handle("PUT /api/savings/goals/{id}", s.handleUpdateGoal)
	handle("DELETE /api/savings/goals/{id}", s.handleDeleteGoal)
	handle("POST /api/savings/goals/{id}/deposit", s.handleDeposit)
	handle("GET /api/savings/progress", s.handleSavingsProgress)

	handle("GET /api/split-bills", s.handleListBills)
	handle("POST /api/split-bills", s.handleCreateBill)
	handle("GET /api/split-bills/summary", s.handleBillSummary)
	handle("GET /api/split-bills/{id}", s.handleGetBill)
	handle("PUT /api/split-bills/{id}", s.handleUpdateBill)
	handle("DELETE /api/split-bills/{id}", s.handleDeleteBill)
	handle("POST /api/split-bills/{id}/participants", s.handleAddParticipants)
	handle("PUT /api/split-bills/{id}/participants/{pid}/pay", s.handleMarkPaid)
}

// requireAuth demands a bearer token on /api/ except for /api/auth/ and
// stores the token's user as the request owner.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/api/auth/") {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r)
		if err == nil {
			var claims *auth.Claims
			if claims, err = s.tokens.Validate(token); err == nil {
				ctx := auth.WithOwner(r.Context(), claims.UserID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rejected unauthenticated request",
			log.FieldPath, r.URL.Path, log.FieldError, err)
		w.Header().Set("WWW-Authenticate", `Bearer realm="finledger"`)
		writeError(w, r, err)
	})
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", auth.ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

// accessLog logs every completed request at a level matching its status.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogHTTPEnd(r.Context(), r, rw.status, time.Since(start).Milliseconds(), s.detector.ClientIP(r))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ClientIP(r),
		log.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, please try again later"})
}

// Shutdown stops accepting requests, waits for in-flight ones and stops the
// rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
