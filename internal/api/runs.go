package api

import (
	"errors"
	"net/http"

	"github.com/dennisdiepolder/cdrstats/internal/storage"
	"github.com/dennisdiepolder/cdrstats/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RunsHandler provides REST endpoints for the stored run history
type RunsHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewRunsHandler creates a new RunsHandler
func NewRunsHandler(store storage.Store, logger zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		store:  store,
		logger: logger.With().Str("component", "runs_handler").Logger(),
	}
}

// ListRuns returns all stored runs, newest first
// GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list runs")
		writeError(w, http.StatusInternalServerError, "failed to retrieve runs")
		return
	}

	if runs == nil {
		runs = []types.RunRecord{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns one run
// GET /api/runs/{runId}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")

	run, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		h.storeError(w, err, runID, "failed to retrieve run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetNumbers returns the per-number counters of a run
// GET /api/runs/{runId}/numbers
func (h *RunsHandler) GetNumbers(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")

	records, err := h.store.GetNumberStats(r.Context(), runID)
	if err != nil {
		h.storeError(w, err, runID, "failed to retrieve number stats")
		return
	}

	if records == nil {
		records = []types.NumberStatsRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetDaily returns the daily histogram of a run
// GET /api/runs/{runId}/daily
func (h *RunsHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")

	records, err := h.store.GetDailyCounts(r.Context(), runID)
	if err != nil {
		h.storeError(w, err, runID, "failed to retrieve daily counts")
		return
	}

	if records == nil {
		records = []types.DailyCountRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// DeleteRun removes a run from the history
// DELETE /api/runs/{runId}
func (h *RunsHandler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")

	if err := h.store.DeleteRun(r.Context(), runID); err != nil {
		h.storeError(w, err, runID, "failed to delete run")
		return
	}

	h.logger.Info().Str("run_id", runID).Msg("run deleted via API")
	w.WriteHeader(http.StatusNoContent)
}

func (h *RunsHandler) storeError(w http.ResponseWriter, err error, runID, msg string) {
	if errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run "+runID+" not found")
		return
	}
	h.logger.Error().Err(err).Str("run_id", runID).Msg(msg)
	writeError(w, http.StatusInternalServerError, msg)
}
