// Package api exposes the engine to local callers over HTTP: bearer-token
// auth, per-client rate limiting, intent endpoints, ledger queries and the
// metrics scrape target.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shadowprism/go-core/internal/config"
	"shadowprism/go-core/internal/dispatch"
	"shadowprism/go-core/internal/ledger"
	"shadowprism/go-core/internal/platform/ratelimiter"
)

// Engine is the dispatch surface the transport exposes.
type Engine interface {
	Shield(ctx context.Context, req dispatch.ShieldRequest) (*dispatch.ShieldResult, error)
	Swap(ctx context.Context, req dispatch.SwapRequest) (*dispatch.SwapResult, error)
	Pay(ctx context.Context, req dispatch.PayRequest) (*dispatch.PayResult, error)
}

// LedgerReader is the query surface over transaction records.
type LedgerReader interface {
	Get(ctx context.Context, id string) (ledger.Record, error)
	ListRecent(ctx context.Context, limit int) ([]ledger.Record, error)
}

type Server struct {
	httpServer *http.Server
	engine     Engine
	records    LedgerReader
	authToken  string
	limiter    *ratelimiter.Keyed
	log        *slog.Logger
}

func NewServer(cfg config.Config, engine Engine, records LedgerReader, log *slog.Logger) *Server {
	s := &Server{
		engine:    engine,
		records:   records,
		authToken: cfg.AuthToken,
		log:       log,
	}
	if cfg.RateLimit.Enabled {
		s.limiter = ratelimiter.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	if s.authToken == "" {
		log.Warn("auth token is not set; API auth disabled")
	}

	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/health", s.handleHealth)
	router.HandlerFunc(http.MethodPost, "/v1/shield", s.guard(s.handleShield))
	router.HandlerFunc(http.MethodPost, "/v1/swap", s.guard(s.handleSwap))
	router.HandlerFunc(http.MethodPost, "/v1/pay", s.guard(s.handlePay))
	router.HandlerFunc(http.MethodGet, "/v1/transactions", s.guard(s.handleList))
	router.GET("/v1/transactions/:id", s.guardParams(s.handleGet))
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	s.log.Info("api server listening", "addr", s.httpServer.Addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

// guard wraps a handler with rate limiting and auth, in that order.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.admit(w, r) {
			return
		}
		next(w, r)
	}
}

func (s *Server) guardParams(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !s.admit(w, r) {
			return
		}
		next(w, r, ps)
	}
}

func (s *Server) admit(w http.ResponseWriter, r *http.Request) bool {
	if !s.limiter.Allow(clientKey(r), time.Now()) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return false
	}
	if s.authToken == "" {
		return true
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	return true
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
