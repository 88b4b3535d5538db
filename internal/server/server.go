// Package server exposes health, metrics and run history in serve mode.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/SirClappington/enqarchive/internal/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Runs is the read side of the run ledger.
type Runs interface {
	Recent(ctx context.Context, limit int) ([]storage.RunRecord, error)
	ForRun(ctx context.Context, runID string) ([]storage.RunRecord, error)
}

// Status is what /healthz reports about the scheduler.
type Status struct {
	running atomic.Bool
	last    atomic.Pointer[LastRun]
}

type LastRun struct {
	RunID      string    `json:"run_id"`
	ExitCode   int       `json:"exit_code"`
	FinishedAt time.Time `json:"finished_at"`
}

func (s *Status) SetRunning(v bool) { s.running.Store(v) }

func (s *Status) Running() bool { return s.running.Load() }

func (s *Status) SetLast(l LastRun) { s.last.Store(&l) }

// Router builds the serve-mode routes. runs may be nil when the ledger is
// disabled.
func Router(status *Status, runs Runs, gatherer prometheus.Gatherer, log *zap.Logger) http.Handler {
	rtr := chi.NewRouter()
	rtr.Use(middleware.RequestID)
	rtr.Use(middleware.Recoverer)

	rtr.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"running":  status.Running(),
			"last_run": status.last.Load(),
		}, log)
	})

	rtr.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	rtr.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
		if runs == nil {
			http.Error(w, "run ledger disabled", http.StatusNotFound)
			return
		}
		limit := defaultLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = min(n, maxLimit)
		}
		recs, err := runs.Recent(r.Context(), limit)
		if err != nil {
			log.Error("list runs", zap.Error(err))
			http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, recs, log)
	})

	rtr.Get("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if runs == nil {
			http.Error(w, "run ledger disabled", http.StatusNotFound)
			return
		}
		recs, err := runs.ForRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			log.Error("get run", zap.Error(err))
			http.Error(w, "ledger unavailable", http.StatusServiceUnavailable)
			return
		}
		if len(recs) == 0 {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, recs, log)
	})

	return rtr
}

func writeJSON(w http.ResponseWriter, code int, v any, log *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("write response", zap.Error(err))
	}
}
