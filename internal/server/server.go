// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sentinel-labs/sentinelx/internal/audit"
	"github.com/sentinel-labs/sentinelx/internal/config"
	"github.com/sentinel-labs/sentinelx/internal/events"
	"github.com/sentinel-labs/sentinelx/internal/guard"
	"github.com/sentinel-labs/sentinelx/internal/health"
	"github.com/sentinel-labs/sentinelx/internal/idgen"
	"github.com/sentinel-labs/sentinelx/internal/logging"
	"github.com/sentinel-labs/sentinelx/internal/loginrisk"
	"github.com/sentinel-labs/sentinelx/internal/metrics"
	"github.com/sentinel-labs/sentinelx/internal/ratelimit"
	"github.com/sentinel-labs/sentinelx/internal/realtime"
	"github.com/sentinel-labs/sentinelx/internal/security"
	"github.com/sentinel-labs/sentinelx/internal/transferrisk"
	"github.com/sentinel-labs/sentinelx/internal/trust"
	"github.com/sentinel-labs/sentinelx/internal/validation"
)

// Version reported by the health and info endpoints.
const Version = "0.1.0"

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg            *config.Config
	history        events.HistoryProvider
	scanner        *guard.Scanner
	loginScorer    *loginrisk.Scorer
	transferScorer *transferrisk.Scorer
	enforcer       *trust.Enforcer
	trustStore     trust.Store
	batcher        *audit.Batcher
	auditTimer     *audit.Timer
	realtimeHub    *realtime.Hub
	rateLimiter    *ratelimit.Limiter
	healthReg      *health.Registry
	db             *sql.DB // nil if using in-memory
	router         *gin.Engine
	httpSrv        *http.Server
	logger         *slog.Logger
	cancelRunCtx   context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClassifier sets a custom advisory classifier (for testing)
func WithClassifier(c guard.Classifier) Option {
	return func(s *Server) {
		s.scanner = guard.NewScanner(c, s.logger)
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	// Apply options first (may set logger/scanner)
	for _, opt := range opts {
		opt(s)
	}

	// Context for initialization
	ctx := context.Background()

	var (
		attemptStore  loginrisk.AttemptStore
		transferStore transferrisk.TransferStore
		batchStore    audit.BatchStore
	)

	// Initialize storage (Postgres if DATABASE_URL set, otherwise in-memory)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		// Test connection
		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))

		eventStore := events.NewPostgresStore(db)
		if err := eventStore.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate event store", "error", err)
		}
		s.history = eventStore

		pgAttempts := loginrisk.NewPostgresAttemptStore(db)
		if err := pgAttempts.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate login attempt store", "error", err)
		}
		attemptStore = pgAttempts

		pgTransfers := transferrisk.NewPostgresTransferStore(db)
		if err := pgTransfers.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate transfer store", "error", err)
		}
		transferStore = pgTransfers

		pgTrust := trust.NewPostgresStore(db)
		if err := pgTrust.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate trust store", "error", err)
		}
		s.trustStore = pgTrust

		pgBatches := audit.NewPostgresBatchStore(db)
		if err := pgBatches.Migrate(ctx); err != nil {
			s.logger.Warn("failed to migrate audit batch store", "error", err)
		}
		batchStore = pgBatches
	} else {
		s.logger.Info("using in-memory storage (set DATABASE_URL for persistence)")
		s.history = events.NewMemoryStore()
		attemptStore = loginrisk.NewMemoryAttemptStore()
		transferStore = transferrisk.NewMemoryTransferStore()
		s.trustStore = trust.NewMemoryStore()
		batchStore = audit.NewMemoryBatchStore()
	}

	// Content scanner. The advisory classifier is optional; patterns
	// alone carry the scan when no endpoint is configured.
	if s.scanner == nil {
		var classifier guard.Classifier
		if cfg.AdvisoryURL != "" {
			if err := security.ValidateEndpointURL(cfg.AdvisoryURL); err != nil {
				return nil, fmt.Errorf("advisory url rejected: %w", err)
			}
			classifier = guard.NewHTTPClassifier(cfg.AdvisoryURL, cfg.AdvisoryTimeout)
			s.logger.Info("advisory classifier enabled", "url", cfg.AdvisoryURL)
		}
		s.scanner = guard.NewScanner(classifier, s.logger)
	}

	// Risk scorers
	s.loginScorer = loginrisk.NewScorer(attemptStore, s.history, s.logger)
	s.loginScorer.SetNormalHours(cfg.NormalHoursStart, cfg.NormalHoursEnd)

	s.transferScorer = transferrisk.NewScorer(transferStore, s.history, s.logger)
	s.transferScorer.SetCooldown(cfg.TransferCooldown)

	// Trust enforcement
	s.enforcer = trust.NewEnforcer(s.history, s.trustStore, s.logger)
	s.enforcer.SetLockCooldown(cfg.LockCooldown)

	// Merkle audit batching
	s.batcher = audit.NewBatcher(cfg.BatchSize, batchStore, s.logger)
	s.auditTimer = audit.NewTimer(s.batcher, cfg.BatchInterval, s.logger)

	// Create realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)
	s.logger.Info("realtime streaming enabled")

	// Push enforcement transitions and batch cuts to subscribers
	s.enforcer.OnTransition(func(state *trust.TrustState, from string) {
		s.realtimeHub.BroadcastTrustChange(map[string]interface{}{
			"identity":   state.Identity,
			"from":       from,
			"to":         state.Status,
			"trustScore": state.TrustScore,
			"reason":     state.Reason,
		})
	})
	s.batcher.OnCut(func(b *audit.Batch) {
		s.realtimeHub.BroadcastBatchCut(map[string]interface{}{
			"batchId":    b.ID,
			"merkleRoot": b.Root,
			"eventCount": b.EventCount,
		})
	})

	s.healthReg = health.NewRegistry()
	s.healthReg.Register("database", func(ctx context.Context) (bool, string) {
		if s.db == nil {
			return true, "in-memory"
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := s.db.PingContext(pingCtx); err != nil {
			return false, err.Error()
		}
		return true, ""
	})
	s.healthReg.Register("audit", func(_ context.Context) (bool, string) {
		return true, fmt.Sprintf("%d events pending", s.batcher.PendingCount())
	})

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPS > 0 {
		rlCfg.RequestsPerSecond = float64(s.cfg.RateLimitRPS)
		rlCfg.Burst = s.cfg.RateLimitRPS
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.WithPrefix("req_")
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// Live dashboard
	s.router.GET("/", dashboardHandler)

	// WebSocket for real-time streaming
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// API info endpoint
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")

	guardHandler := guard.NewHandler(s.scanner, s.history, s.batcher, s.enforcer, s.realtimeHub)
	guardHandler.RegisterRoutes(v1)

	loginHandler := loginrisk.NewHandler(s.loginScorer, s.batcher, s.enforcer, s.realtimeHub)
	loginHandler.RegisterRoutes(v1)

	transferHandler := transferrisk.NewHandler(s.transferScorer, s.batcher, s.enforcer, s.realtimeHub)
	transferHandler.RegisterRoutes(v1)

	trustHandler := trust.NewHandler(s.enforcer, s.trustStore)
	trustHandler.RegisterRoutes(v1)

	auditHandler := audit.NewHandler(s.batcher)
	auditHandler.RegisterRoutes(v1)
}

// -----------------------------------------------------------------------------
// Health & info handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Checks    []health.Status `json:"checks"`
	Timestamp string          `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	healthy, checks := s.healthReg.CheckAll(c.Request.Context())

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   Version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "SentinelX",
		"version": Version,
		"endpoints": gin.H{
			"scan":      "POST /v1/guard/scan",
			"redact":    "POST /v1/guard/redact",
			"logins":    "POST /v1/logins/score",
			"transfers": "POST /v1/transfers/evaluate",
			"trust":     "GET /v1/trust/:identity",
			"audit":     "GET /v1/audit/stats",
			"stream":    "GET /ws",
		},
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"env", s.cfg.Env,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start audit batch timer
	go s.auditTimer.Start(runCtx)

	// Collect DB pool stats
	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, timers)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Flush the pending audit queue so no event is left unbatched
	if s.auditTimer != nil {
		s.auditTimer.Stop()
	}
	if s.batcher != nil && s.batcher.PendingCount() > 0 {
		if batch := s.batcher.CutBatch(); batch != nil {
			s.logger.Info("final audit batch cut", "root", batch.Root, "events", batch.EventCount)
		}
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}
