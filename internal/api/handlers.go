package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/xmltable/internal/apperr"
	"github.com/starford/xmltable/internal/runservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *runservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *runservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recent conversion runs, newest first
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum number of runs"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.ListRuns(r.Context(), limit)
	if err != nil {
		slog.Error("list runs failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs, Total: len(runs)})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary		Get a single run
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run ID"
//	@Success		200	{object}	Run
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get run failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// RunFiles handles GET /api/runs/{id}/files.
//
//	@Summary		List the input files of a run
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run ID"
//	@Success		200	{object}	RunFilesResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id}/files [get]
func (h *Handler) RunFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	files, err := h.svc.RunFiles(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("run files failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, RunFilesResponse{RunID: id, Files: files})
}

// Convert handles POST /api/convert.
//
//	@Summary		Run a conversion now
//	@Tags			runs
//	@Produce		json
//	@Success		200	{object}	Run
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/convert [post]
func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Convert(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrConversionRunning) {
			writeJSON(w, http.StatusConflict, errorBody("conversion already running"))
			return
		}
		slog.Error("convert failed", slog.String("error", err.Error()))
		if run != nil {
			writeJSON(w, http.StatusInternalServerError, run)
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Output handles GET /api/output. With format=csv the raw file is served.
//
//	@Summary		Read the current CSV snapshot
//	@Tags			output
//	@Produce		json
//	@Produce		text/csv
//	@Param			limit	query		int		false	"Maximum bytes returned"
//	@Param			format	query		string	false	"Response format"	Enums(json, csv)
//	@Success		200		{object}	Output
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/output [get]
func (h *Handler) Output(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("format") == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		http.ServeFile(w, r, h.svc.OutputPath())
		return
	}

	limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)
	out, err := h.svc.ReadOutput(r.Context(), limit)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("read output failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Columns handles GET /api/columns.
//
//	@Summary		List output columns in order
//	@Tags			output
//	@Produce		json
//	@Success		200	{object}	ColumnsResponse
//	@Security		BearerAuth
//	@Router			/columns [get]
func (h *Handler) Columns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ColumnsResponse{Columns: h.svc.Columns()})
}
