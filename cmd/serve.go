package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/review"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the resolution and review HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		mux := buildMux(env)

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
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case model.IsValidation(err):
		status = http.StatusBadRequest
	case model.IsNotFound(err):
		status = http.StatusNotFound
	case model.IsConflict(err):
		status = http.StatusConflict
	case model.IsCompliance(err):
		status = http.StatusForbidden
	case model.IsIntegrity(err):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return f
}

func queryTime(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, model.Validationf("serve: %s must be RFC 3339, got %q", key, raw)
	}
	return ts, nil
}

// buildMux assembles the HTTP API over the wired services.
func buildMux(env *env) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /review/queue", func(w http.ResponseWriter, r *http.Request) {
		t := model.MentionType(r.URL.Query().Get("type"))
		limit := queryInt(r, "limit", 50)
		offset := queryInt(r, "offset", 0)

		res, err := env.Review.Queue(r.Context(), t, limit, offset)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /review/decision", func(w http.ResponseWriter, r *http.Request) {
		var req review.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		res, err := env.Review.SubmitDecision(r.Context(), req, env.Policy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /review/signals", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"signals": env.Review.Signals()})
	})

	mux.HandleFunc("POST /resolve/batch", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MentionIDs    []string `json:"mention_ids"`
			AutoThreshold *float64 `json:"auto_threshold,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if len(req.MentionIDs) == 0 {
			http.Error(w, `{"error":"mention_ids is required"}`, http.StatusBadRequest)
			return
		}

		// A per-request auto-match override still has to respect the
		// threshold ordering against the configured bands.
		policy := env.Policy
		if req.AutoThreshold != nil {
			override, err := model.NewResolutionConfig(policy.Version, *req.AutoThreshold,
				policy.ReviewMinThreshold, policy.AutoRejectThreshold, policy.EdgeThreshold)
			if err != nil {
				writeError(w, err)
				return
			}
			override.Weights = policy.Weights
			policy = override
		}

		res, err := env.Engine.ResolveBatch(r.Context(), req.MentionIDs, policy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /mentions/{id}/candidates", func(w http.ResponseWriter, r *http.Request) {
		minScore := queryFloat(r, "min_score", env.Policy.AutoRejectThreshold)
		limit := queryInt(r, "limit", 10)

		candidates, err := env.Engine.Candidates(r.Context(), r.PathValue("id"), minScore, limit, env.Policy)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"candidates": candidates})
	})

	mux.HandleFunc("POST /mentions/{id}/reset", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Actor string `json:"actor"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		m, err := env.Engine.Reset(r.Context(), r.PathValue("id"), req.Actor)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	})

	mux.HandleFunc("POST /lifecycle/merge", func(w http.ResponseWriter, r *http.Request) {
		var req model.MergeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		res, err := env.Lifecycle.Merge(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /lifecycle/split", func(w http.ResponseWriter, r *http.Request) {
		var req model.SplitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		res, err := env.Lifecycle.Split(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /lifecycle/split/preview", func(w http.ResponseWriter, r *http.Request) {
		var req model.SplitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		res, err := env.Lifecycle.PreviewSplit(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /provenance/{id}", func(w http.ResponseWriter, r *http.Request) {
		entries, err := env.Store.ListProvenanceEntries(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	})

	mux.HandleFunc("GET /provenance/{id}/verify", func(w http.ResponseWriter, r *http.Request) {
		res, err := env.Chain.Verify(r.Context(), r.PathValue("id"))
		if err != nil && !model.IsIntegrity(err) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("GET /metrics/accuracy", func(w http.ResponseWriter, r *http.Request) {
		since, err := queryTime(r, "since")
		if err != nil {
			writeError(w, err)
			return
		}
		rep, err := accuracyReport(r.Context(), env, cfgGroundTruthPath(), since)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	})

	return mux
}

// cfgGroundTruthPath tolerates the nil cfg used by mux tests.
func cfgGroundTruthPath() string {
	if cfg == nil {
		return ""
	}
	return cfg.Resolution.GroundTruthPath
}
