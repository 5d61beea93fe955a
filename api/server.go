package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/gorilla/mux"

	"github.com/openalpha/epoch-vault/api/handlers"
	"github.com/openalpha/epoch-vault/api/middleware"
	"github.com/openalpha/epoch-vault/api/websocket"
	"github.com/openalpha/epoch-vault/metrics"
)

// Server is the standalone vault HTTP API
type Server struct {
	config      *Config
	service     *KeeperService
	hub         *websocket.Hub
	rateLimiter *middleware.RateLimiter
	collector   *metrics.Collector
	httpServer  *http.Server
	logger      log.Logger

	clock  func() time.Time
	cancel context.CancelFunc
}

// Option customizes a Server
type Option func(*Server)

// WithClock replaces wall time as the source of block time
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// NewServer builds the service state and wires handlers, the event hub and
// middleware
func NewServer(config *Config, logger log.Logger, opts ...Option) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		config:    config,
		collector: metrics.GetCollector(),
		logger:    logger.With("module", "vault-api"),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.hub = websocket.NewHub(nil, s.collector, s.logger)
	service, err := NewKeeperService(config, s.clock, s.hub, s.collector, s.logger)
	if err != nil {
		return nil, err
	}
	s.service = service

	if !config.DisableRateLimit {
		s.rateLimiter = middleware.NewRateLimiter(config.RateLimit, s.collector)
	}

	s.httpServer = &http.Server{
		Addr:         config.Address(),
		Handler:      s.Handler(),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	return s, nil
}

// Handler returns the full middleware chain around the router
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, middleware.Instrument(s.collector, s.logger))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWS)

	handlers.NewVaultHandler(s.service, s.config.EnableFaucet, s.config.OperatorKeys()).RegisterRoutes(r)

	var h http.Handler = r
	if s.rateLimiter != nil {
		h = middleware.RateLimitMiddleware(s.rateLimiter)(h)
	}
	return corsMiddleware(h)
}

// Service returns the keeper-backed service
func (s *Server) Service() *KeeperService {
	return s.service
}

// Hub returns the websocket hub
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}

// Start runs the hub and serves HTTP until Stop is called
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.hub.Run(ctx)

	s.logger.Info("vault api listening",
		"addr", s.httpServer.Addr,
		"faucet", s.config.EnableFaucet,
		"operators", len(s.config.Operators),
		"rate_limit", s.rateLimiter != nil,
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	height, blockTime := s.service.Status()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":     "ok",
		"height":     height,
		"block_time": blockTime,
		"ws_clients": s.hub.GetClientCount(),
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+middleware.RequestIDHeader+", "+middleware.APIKeyHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
