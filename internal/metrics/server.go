package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ransomwatch/internal/health"
	"ransomwatch/internal/state"
)

// Server serves /metrics, /healthz, /readyz and, when a state path is set,
// /api/state for the dashboard.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer builds a server listening on addr.
func NewServer(addr string, m *Metrics, statePath string, checker *health.Checker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      Handler(m, statePath, checker),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the HTTP routes. Without a checker /healthz is a plain
// liveness probe.
func Handler(m *Metrics, statePath string, checker *health.Checker) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))
	if checker != nil {
		mux.Handle("/healthz", checker.HealthHandler())
		mux.Handle("/readyz", checker.ReadinessHandler())
	} else {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
	}
	if statePath != "" {
		mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
			st, err := state.Read(statePath)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(st)
		})
	}
	return mux
}

// Start serves in a background goroutine. Listener failures other than a
// clean shutdown are logged.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", "addr", s.server.Addr, "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
