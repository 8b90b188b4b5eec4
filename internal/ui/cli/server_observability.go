package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreapp "revwatch/internal/core/app"
)

type ObservabilityServer struct {
	addr          string
	app           *coreapp.App
	healthService *coreapp.HealthService
	server        *http.Server
	listener      net.Listener
}

func NewObservabilityServer(addr string, app *coreapp.App) *ObservabilityServer {
	return &ObservabilityServer{
		addr:          addr,
		app:           app,
		healthService: coreapp.NewHealthService(app),
	}
}

func (s *ObservabilityServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.healthService.Check(r.Context())
		code := http.StatusOK
		if status.Status != "up" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	})

	mux.HandleFunc("/changes", func(w http.ResponseWriter, r *http.Request) {
		views := s.app.Monitor.Views()
		if limit := queryLimit(r); limit > 0 && limit < len(views) {
			views = views[:limit]
		}
		writeJSON(w, http.StatusOK, views)
	})

	mux.HandleFunc("/cycles", func(w http.ResponseWriter, r *http.Request) {
		if !s.app.JournalEnabled() {
			http.Error(w, "journal disabled (set db.enabled = true)", http.StatusNotFound)
			return
		}
		cycles, err := s.app.RecentCycles(r.Context(), queryLimit(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, cycles)
	})

	return mux
}

// Start binds the listener synchronously so address errors surface here, then serves in the background.
func (s *ObservabilityServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler()}

	slog.Info("observability server starting", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server failed", "error", err)
		}
	}()

	return nil
}

// Addr is the bound address once Start succeeded.
func (s *ObservabilityServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response failed", "error", err)
	}
}
