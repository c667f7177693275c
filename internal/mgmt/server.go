// Package mgmt implements the management HTTP surface: a stdlib
// net/http + ServeMux server exposing /health /status /metrics /version
// /settings /state, bound to server.management_host/management_port and
// kept strictly separate from the agent-facing MCP surface. Grounded on
// the teacher's internal/cli/indexer_start.go, the only file in the tree
// that builds a real net/http.Server with ServeMux routing and a
// signal-driven graceful shutdown (cmd/cortex-embed/main.go, by contrast,
// spawns a Python subprocess and never touches net/http).
package mgmt

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/knitli/codeweaver/internal/config"
	"github.com/knitli/codeweaver/internal/indexer"
	"github.com/knitli/codeweaver/internal/vectorstore"
)

// Version is the build-time version string, overridable via -ldflags
// "-X github.com/knitli/codeweaver/internal/mgmt.Version=...".
var Version = "dev"

// StatusProvider is implemented by the composition root (internal/root)
// and is the only dependency this package takes on the rest of the
// system, keeping the management surface importable (and testable) without
// pulling in the whole wiring graph.
type StatusProvider interface {
	Healthy(ctx context.Context) error
	LastIndexStats() indexer.Stats
	FailoverStatus() vectorstore.FailoverInfo
	ManagerState() string
	Settings() *config.Config
}

// Server wraps a *http.Server bound to the management mux.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// New builds the management server. addr is "host:port" from
// server.management_host/management_port.
func New(addr string, provider StatusProvider, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth(provider))
	mux.HandleFunc("/status", handleStatus(provider))
	mux.HandleFunc("/metrics", handleMetrics(provider))
	mux.HandleFunc("/version", handleVersion())
	mux.HandleFunc("/settings", handleSettings(provider))
	mux.HandleFunc("/state", handleState(provider))

	return &Server{
		httpServer: &http.Server{Addr: addr, Handler: mux},
		logger:     logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully within 30s
// (spec §6, same shutdown budget the teacher's indexer_start.go gives its
// ConnectRPC server).
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("mgmt: graceful shutdown error", zap.Error(err))
		}
	}()

	s.logger.Info("mgmt: management server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func handleHealth(p StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := p.Healthy(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

func handleStatus(p StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := p.LastIndexStats()
		writeJSON(w, http.StatusOK, map[string]any{
			"state":    p.ManagerState(),
			"failover": p.FailoverStatus(),
			"indexing": stats,
		})
	}
}

func handleMetrics(p StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := p.LastIndexStats()
		writeJSON(w, http.StatusOK, map[string]any{
			"indexed_files_total":  stats.Indexed,
			"failed_files_total":   stats.Failed,
			"skipped_files_total":  stats.Skipped,
			"deferred_files_total": stats.Deferred,
			"chunks_total":         stats.TotalChunks,
			"last_run_duration_ms": stats.Duration.Milliseconds(),
			"failover_active":      p.FailoverStatus().Active == "backup",
		})
	}
}

func handleVersion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": Version})
	}
}

func handleSettings(p StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, p.Settings())
	}
}

func handleState(p StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"state":    p.ManagerState(),
			"failover": p.FailoverStatus(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
