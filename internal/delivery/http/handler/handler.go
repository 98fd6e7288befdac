package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/delivery/http/response"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
	"github.com/user/linkchecker-service/internal/usecase"
)

type Handler struct {
	scanner usecase.Scanner
	report  usecase.Report
	log     *zap.Logger
}

func NewHandler(scanner usecase.Scanner, report usecase.Report, log *zap.Logger) *Handler {
	return &Handler{
		scanner: scanner,
		report:  report,
		log:     log,
	}
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReport lists checked links.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, response.NewReportResponse(h.report.Checked(r.Context())))
}

// HandleQueue lists links waiting for a check.
func (h *Handler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, response.NewReportResponse(h.report.Queue(r.Context())))
}

// HandleReportCSV exports checked links as CSV.
func (h *Handler) HandleReportCSV(w http.ResponseWriter, r *http.Request) {
	recs := h.report.Checked(r.Context())

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="link-report.csv"`)
	w.WriteHeader(http.StatusOK)

	if err := response.WriteReportCSV(w, recs); err != nil {
		h.log.Error("Failed to write CSV report", zap.Error(err))
	}
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	s := h.report.Stats(r.Context())
	h.writeJSON(w, http.StatusOK, response.StatsResponse{
		Ok:        s.Ok,
		Broken:    s.Broken,
		Unchecked: s.Unchecked,
		Total:     s.Total(),
	})
}

// HandleFields lists the fields that can be selected for scanning.
func (h *Handler) HandleFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.report.Fields(r.Context())
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, fields)
}

func (h *Handler) HandleStartScan(w http.ResponseWriter, r *http.Request) {
	h.startRun(w, r, h.scanner.StartScan, "Scan started")
}

func (h *Handler) HandleStartCheck(w http.ResponseWriter, r *http.Request) {
	h.startRun(w, r, h.scanner.StartCheck, "Link check started")
}

func (h *Handler) startRun(w http.ResponseWriter, r *http.Request, start func(context.Context) (*entity.ScanRun, error), msg string) {
	run, err := start(r.Context())
	if err != nil {
		h.writeRunError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.StartRunResponse{
		Status:  "success",
		Message: msg,
		RunID:   run.ID,
	})
}

func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.scanner.Run(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		h.writeJSONError(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to get run", zap.String("run_id", id), zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, response.RunResponse{
		ID:         run.ID,
		Kind:       string(run.Kind),
		State:      string(run.State),
		Total:      run.Total,
		Processed:  run.Processed,
		Failed:     run.Failed,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	})
}

func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrRunInProgress):
		h.writeJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, entity.ErrInvalidConfig):
		h.writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.log.Error("Request failed", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error("Failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
