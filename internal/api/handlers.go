package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/wonny/uvscan/internal/contracts"
	"github.com/wonny/uvscan/internal/pipeline"
	"github.com/wonny/uvscan/internal/results"
	"github.com/wonny/uvscan/internal/scheduler"
	"github.com/wonny/uvscan/pkg/logger"
)

// Handler serves scan triggers and batch result reads.
// The most recent batch is kept in memory; the repository (when
// configured) adds history across restarts.
type Handler struct {
	runner *pipeline.Runner
	repo   *results.Repository  // nil when persistence is disabled
	sched  *scheduler.Scheduler // nil when the scheduler is disabled
	logger *logger.Logger

	mu     sync.RWMutex
	latest *contracts.BatchResult
}

// NewHandler creates the API handler
func NewHandler(runner *pipeline.Runner, repo *results.Repository, log *logger.Logger) *Handler {
	return &Handler{
		runner: runner,
		repo:   repo,
		logger: log.WithField("module", "api"),
	}
}

// WithScheduler attaches the scheduler so its jobs can be inspected
// and triggered over the API
func (h *Handler) WithScheduler(s *scheduler.Scheduler) *Handler {
	h.sched = s
	return h
}

type scanRequest struct {
	Symbols []string `json:"symbols"`
}

// Scan triggers a pipeline run over the requested symbols
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Symbols) == 0 {
		writeError(w, http.StatusBadRequest, "symbols must not be empty")
		return
	}

	batch, err := h.runner.Run(r.Context(), req.Symbols)
	if err != nil {
		h.logger.WithError(err).Error("Scan failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.mu.Lock()
	h.latest = batch
	h.mu.Unlock()

	if h.repo != nil {
		if _, err := h.repo.SaveBatch(r.Context(), batch); err != nil {
			h.logger.WithError(err).Warn("Failed to persist batch")
		}
	}

	writeJSON(w, http.StatusOK, batch)
}

// LatestBatch returns the most recent batch result
func (h *Handler) LatestBatch(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	latest := h.latest
	h.mu.RUnlock()

	if latest != nil {
		writeJSON(w, http.StatusOK, latest)
		return
	}

	if h.repo == nil {
		writeError(w, http.StatusNotFound, "no batch has run yet")
		return
	}

	run, err := h.repo.LatestRun(r.Context())
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	rows, err := h.repo.ResultsForRun(r.Context(), run.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run":     run,
		"results": rows,
	})
}

// Symbol returns the latest outcome for one symbol
func (h *Handler) Symbol(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	h.mu.RLock()
	latest := h.latest
	h.mu.RUnlock()

	if latest != nil {
		for _, result := range latest.Eligible {
			if result.Symbol == symbol {
				writeJSON(w, http.StatusOK, result)
				return
			}
		}
		for _, result := range latest.Ineligible {
			if result.Symbol == symbol {
				writeJSON(w, http.StatusOK, result)
				return
			}
		}
	}

	if h.repo != nil {
		history, err := h.repo.HistoryForSymbol(r.Context(), symbol, 1)
		if err == nil && len(history) > 0 {
			writeJSON(w, http.StatusOK, history[0])
			return
		}
	}

	writeError(w, http.StatusNotFound, "symbol not found in any batch")
}

// SchedulerJobs returns the status of every scheduled job
func (h *Handler) SchedulerJobs(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeError(w, http.StatusNotFound, "scheduler is disabled")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.sched.Status(),
	})
}

// SchedulerRun triggers a scheduled job outside its cron schedule
func (h *Handler) SchedulerRun(w http.ResponseWriter, r *http.Request) {
	if h.sched == nil {
		writeError(w, http.StatusNotFound, "scheduler is disabled")
		return
	}

	name := mux.Vars(r)["name"]
	if err := h.sched.RunJob(name); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "triggered",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
