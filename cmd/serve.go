package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/visibility-cli/internal/pipeline"
	"github.com/sells-group/visibility-cli/internal/rollup"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start webhook server for execution requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := newServeMux(ctx, env)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newServeMux(ctx context.Context, env *env) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /webhook/execute", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt    string   `json:"prompt"`
			System    string   `json:"system"`
			Models    []string `json:"models"`
			MaxTokens int      `json:"max_tokens"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		if req.Prompt == "" {
			http.Error(w, `{"error":"prompt is required"}`, http.StatusBadRequest)
			return
		}

		targets, err := parseTargets(req.Models)
		if err != nil {
			http.Error(w, `{"error":"unknown model"}`, http.StatusBadRequest)
			return
		}

		// Run the fan-out asynchronously on the server's context; the request
		// context dies as soon as the 202 goes out.
		go func() {
			result, err := env.Pipeline.Run(ctx, pipeline.RunRequest{
				System:    req.System,
				User:      req.Prompt,
				MaxTokens: req.MaxTokens,
				Targets:   targets,
			})
			if err != nil {
				zap.L().Error("webhook execution failed", zap.Error(err))
				return
			}
			zap.L().Info("webhook execution complete",
				zap.String("prompt_id", result.PromptID),
				zap.Int("models", len(result.Outcomes)),
			)
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	})

	mux.HandleFunc("GET /rollups", func(w http.ResponseWriter, r *http.Request) {
		since, err := parseWindow(r.URL.Query().Get("window"))
		if err != nil {
			http.Error(w, `{"error":"invalid window"}`, http.StatusBadRequest)
			return
		}

		entities := env.Catalog.Names()
		if entity := r.URL.Query().Get("entity"); entity != "" {
			entities = []string{entity}
		}

		rollups, err := rollup.NewRecomputer(env.Store).
			RecomputeAll(r.Context(), entities, since)
		if err != nil {
			zap.L().Error("rollup recompute failed", zap.Error(err))
			http.Error(w, `{"error":"rollup recompute failed"}`, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rollups)
	})

	return mux
}

// parseWindow converts a duration query parameter ("24h", "168h") into a
// window start. Empty means all time.
func parseWindow(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return nil, eris.Errorf("invalid window %q", raw)
	}
	since := time.Now().UTC().Add(-d)
	return &since, nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
