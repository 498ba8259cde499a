package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dennisdiepolder/cdrstats/internal/ingestion"
	"github.com/dennisdiepolder/cdrstats/internal/report"
	"github.com/dennisdiepolder/cdrstats/internal/storage"
	"github.com/dennisdiepolder/cdrstats/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxUploadSize caps multipart uploads of CDR exports
const maxUploadSize = 64 << 20

// Notifier delivers a freshly generated report
type Notifier interface {
	Notify(ctx context.Context, r *report.Report) error
}

// Notifiers fans a report out to several notifiers
type Notifiers []Notifier

// Notify calls every notifier and joins their errors
func (ns Notifiers) Notify(ctx context.Context, r *report.Report) error {
	var errs []error
	for _, n := range ns {
		if err := n.Notify(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type numberResponse struct {
	report.NumberReport
	Redirects []types.RedirectCount `json:"redirects"`
}

// ParamsFunc returns the run parameters for a new report. It is called per
// upload so the wall clock default stays current.
type ParamsFunc func() report.Params

// ReportHandler serves the latest report and accepts new exports
type ReportHandler struct {
	mu       sync.RWMutex
	latest   *report.Report
	params   ParamsFunc
	store    storage.Store
	notifier Notifier
	logger   zerolog.Logger
}

// NewReportHandler creates a new ReportHandler. notifier may be nil.
func NewReportHandler(params ParamsFunc, store storage.Store, notifier Notifier, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		params:   params,
		store:    store,
		notifier: notifier,
		logger:   logger.With().Str("component", "report_handler").Logger(),
	}
}

// SetLatest replaces the report served under /api/report
func (h *ReportHandler) SetLatest(r *report.Report) {
	h.mu.Lock()
	h.latest = r
	h.mu.Unlock()
}

// Latest returns the report served under /api/report, or nil
func (h *ReportHandler) Latest() *report.Report {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Publish stores rep, makes it the latest report and notifies. Only a store
// failure is returned; notifier failures are logged.
func (h *ReportHandler) Publish(ctx context.Context, rep *report.Report) error {
	run, numbers, daily := rep.Records()
	if err := h.store.SaveReport(ctx, run, numbers, daily); err != nil {
		return err
	}

	h.SetLatest(rep)

	if h.notifier != nil {
		if err := h.notifier.Notify(ctx, rep); err != nil {
			h.logger.Warn().Err(err).Str("run_id", rep.RunID).Msg("failed to deliver report")
		}
	}
	return nil
}

// GetReport returns the latest report
// GET /api/report?format=json|text|xlsx
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep := h.Latest()
	if rep == nil {
		writeError(w, http.StatusNotFound, "no report generated yet")
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(report.PlainText(rep)))
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="cdrstats-%s.xlsx"`, rep.RunID))
		if err := report.WriteXLSX(w, rep); err != nil {
			h.logger.Error().Err(err).Str("run_id", rep.RunID).Msg("failed to write workbook")
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown format %q", format))
	}
}

// GetNumber returns the counters of one internal number
// GET /api/report/numbers/{number}
func (h *ReportHandler) GetNumber(w http.ResponseWriter, r *http.Request) {
	rep := h.Latest()
	if rep == nil {
		writeError(w, http.StatusNotFound, "no report generated yet")
		return
	}

	number := chi.URLParam(r, "number")
	n, ok := rep.Number(number)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("number %s not in report", number))
		return
	}

	writeJSON(w, http.StatusOK, numberResponse{NumberReport: n, Redirects: n.Redirects()})
}

// GetDaily returns the gap-free daily histogram
// GET /api/report/daily
func (h *ReportHandler) GetDaily(w http.ResponseWriter, r *http.Request) {
	rep := h.Latest()
	if rep == nil {
		writeError(w, http.StatusNotFound, "no report generated yet")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"earliest": rep.Earliest,
		"latest":   rep.Latest,
		"daily":    rep.Daily,
	})
}

// Upload builds a report from an uploaded export, stores it and makes it the latest
// POST /api/reports (multipart field "file")
func (h *ReportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	src, err := ingestion.NewSource(file, name)
	if err != nil {
		h.logger.Warn().Err(err).Str("file", name).Msg("rejected upload")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer src.Close()

	params := h.params()
	params.Source = name

	rep, err := report.Generate(src, params, h.logger)
	if err != nil {
		var rowErr *ingestion.RowError
		if errors.As(err, &rowErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error": err.Error(),
				"row":   rowErr.Row,
				"value": rowErr.Value,
			})
			return
		}
		h.logger.Error().Err(err).Str("file", name).Msg("failed to generate report")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Publish(r.Context(), rep); err != nil {
		h.logger.Error().Err(err).Str("run_id", rep.RunID).Msg("failed to save run")
		writeError(w, http.StatusInternalServerError, "failed to save run")
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(report.PlainText(rep)))
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}
