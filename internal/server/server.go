package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/veyselaydin/gamehouse/internal/domain"
	"github.com/veyselaydin/gamehouse/internal/server/handler"
	"github.com/veyselaydin/gamehouse/internal/server/middleware"
	"github.com/veyselaydin/gamehouse/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AdminToken  string // if empty, admin endpoints are unauthenticated

	// RateLimit caps requests per client IP per RateLimitWindow. Zero
	// disables rate limiting.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health   *handler.HealthHandler
	Rounds   *handler.RoundHandler
	Wagers   *handler.WagerHandler
	Queue    *handler.QueueHandler
	Accounts *handler.AccountHandler
	Admin    *handler.AdminHandler
}

// Server is the JSON + WebSocket API over the wagering services.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting) and attaches the
// WebSocket hub. Admin routes are additionally guarded by the token check.
// limiter may be nil when rate limiting is disabled.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Round endpoints.
	mux.HandleFunc("GET /api/rounds/active", handlers.Rounds.ActiveRound)
	mux.HandleFunc("GET /api/rounds/{id}", handlers.Rounds.GetRound)
	mux.HandleFunc("GET /api/rounds/{id}/stats", handlers.Rounds.RoundStats)

	// Wager endpoints.
	mux.HandleFunc("POST /api/wagers", handlers.Wagers.PlaceWager)
	mux.HandleFunc("GET /api/wagers", handlers.Wagers.ListWagers)

	// Matchmaking and duel endpoints.
	mux.HandleFunc("POST /api/queue", handlers.Queue.Join)
	mux.HandleFunc("GET /api/queue/{user_id}", handlers.Queue.Status)
	mux.HandleFunc("DELETE /api/queue/{user_id}", handlers.Queue.Leave)
	mux.HandleFunc("POST /api/duels/roll", handlers.Queue.Roll)

	// Account endpoints.
	mux.HandleFunc("GET /api/accounts/{id}/history", handlers.Accounts.BalanceHistory)

	// Admin endpoints behind the token check.
	adminAuth := middleware.Auth(cfg.AdminToken)
	mux.Handle("POST /api/admin/rounds/{id}/decision", adminAuth(http.HandlerFunc(handlers.Admin.SubmitDecision)))
	mux.Handle("POST /api/admin/rounds/{id}/outcome", adminAuth(http.HandlerFunc(handlers.Admin.ChangeOutcome)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
