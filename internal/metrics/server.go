package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerConfig holds the metrics endpoint settings.
type ServerConfig struct {
	Port        int
	MetricsPath string
	HealthPath  string
}

// DefaultServerConfig returns the default endpoint settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:        9091,
		MetricsPath: "/metrics",
		HealthPath:  "/health",
	}
}

// Check is one named health probe result.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthChecker probes one dependency. It must be fast; probes run inline
// in the request handler.
type HealthChecker func() Check

// Server exposes /metrics, a JSON health endpoint and a liveness endpoint.
type Server struct {
	cfg       ServerConfig
	logger    *slog.Logger
	startedAt time.Time
	http      *http.Server

	mu     sync.RWMutex
	probes map[string]HealthChecker
}

// NewServer builds the server. Zero-value config fields fall back to
// DefaultServerConfig.
func NewServer(cfg ServerConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultServerConfig()
	if cfg.Port <= 0 {
		cfg.Port = def.Port
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = def.MetricsPath
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = def.HealthPath
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now(),
		probes:    make(map[string]HealthChecker),
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.Handler())
	mux.HandleFunc(cfg.HealthPath, s.handleHealth)
	mux.HandleFunc("/live", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// RegisterHealthCheck adds a named probe to the health endpoint.
func (s *Server) RegisterHealthCheck(name string, probe HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes[name] = probe
}

// Start begins serving in the background.
func (s *Server) Start() {
	s.logger.Info("starting metrics server",
		"port", s.cfg.Port,
		"metrics_path", s.cfg.MetricsPath,
	)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error", "err", err)
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down metrics server")
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	probes := make(map[string]HealthChecker, len(s.probes))
	for name, probe := range s.probes {
		probes[name] = probe
	}
	s.mu.RUnlock()

	overall := "healthy"
	checks := make(map[string]Check, len(probes))
	for name, probe := range probes {
		result := probe()
		checks[name] = result
		if result.Status != "healthy" {
			overall = "unhealthy"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if overall != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    overall,
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startedAt).String(),
		"checks":    checks,
	})
}
