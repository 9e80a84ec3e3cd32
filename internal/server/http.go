package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joblinkhq/linkedin-agent/pkg/session"
)

const httpLogPrefix = "server:http"

// startHealthServer serves liveness and readiness probes. Ready means an
// authenticated session is held; live means the process is up.
func startHealthServer(port int, sessions *session.Manager) func(context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		state := sessions.CheckSession(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !state.Authenticated {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"authenticated": state.Authenticated,
			"mode":          state.Mode,
		})
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error(fmt.Sprintf("%s - health server failed: %v", httpLogPrefix, err))
		}
	}()
	slog.Info(fmt.Sprintf("%s - Health endpoints on port %d", httpLogPrefix, port))

	return func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn(fmt.Sprintf("%s - health server shutdown: %v", httpLogPrefix, err))
		}
	}
}
