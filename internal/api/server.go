// Package api serves the paper trading ledger and market data over a local JSON API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"polypaper/internal/history"
	"polypaper/internal/market"
	"polypaper/internal/metrics"
	"polypaper/internal/portfolio"
	"polypaper/internal/resilience"
	"polypaper/internal/security"
	"polypaper/internal/trading"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server exposes the engine, valuation and market data over HTTP.
type Server struct {
	engine    *trading.Engine
	gateway   market.Gateway
	valuation *portfolio.Service
	recorder  *history.Recorder
	health    *resilience.HealthChecker
	access    *security.AccessController
	logger    zerolog.Logger
	now       func() time.Time
}

// Deps groups the collaborators of a Server.
type Deps struct {
	Engine    *trading.Engine
	Gateway   market.Gateway
	Valuation *portfolio.Service
	Recorder  *history.Recorder
	Health    *resilience.HealthChecker
	Access    *security.AccessController
}

// NewServer creates an API server. A nil health checker gets a ledger check registered and a
// nil access controller allows every mutation.
func NewServer(deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		engine:    deps.Engine,
		gateway:   deps.Gateway,
		valuation: deps.Valuation,
		recorder:  deps.Recorder,
		health:    deps.Health,
		access:    deps.Access,
		logger:    logger.With().Str("component", "api").Logger(),
		now:       time.Now,
	}
	if s.health == nil {
		s.health = resilience.NewHealthChecker(5 * time.Second)
		s.health.Register("ledger", LedgerHealth(s.engine))
	}
	if s.access == nil {
		s.access = security.NewAccessController(false, s.logger)
	}
	return s
}

// LedgerHealth reports whether the ledger store can be read.
func LedgerHealth(engine *trading.Engine) resilience.HealthCheck {
	return func(ctx context.Context) resilience.ComponentHealth {
		if _, err := engine.Balance(ctx); err != nil {
			return resilience.ComponentHealth{Status: resilience.HealthStatusUnhealthy, Message: err.Error()}
		}
		return resilience.ComponentHealth{Status: resilience.HealthStatusHealthy}
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(metrics.Middleware)
	r.Use(cors)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/markets", s.handleMarkets)
		r.Get("/markets/search", s.handleSearch)
		r.Get("/events/{slug}", s.handleEvent)

		r.Get("/portfolio", s.handlePortfolio)
		r.Get("/balance", s.handleBalance)
		r.Get("/history", s.handleHistory)

		r.Get("/trades", s.handleTrades)
		r.Post("/trades", s.handleOpen)
		r.Get("/trades/{id}", s.handleTrade)
		r.Post("/trades/{id}/close", s.handleClose)

		r.Post("/reset", s.handleReset)
	})

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("API server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info().Msg("Shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		event := s.logger.Debug()
		if status >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event.
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// cors allows the local frontend to call the API from another origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
