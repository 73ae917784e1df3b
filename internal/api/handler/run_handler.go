package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sms-decline-analysis/internal/config"
	"sms-decline-analysis/internal/logger"
	"sms-decline-analysis/internal/model"
	"sms-decline-analysis/internal/pipeline"
	"sms-decline-analysis/internal/store"
	"sms-decline-analysis/pkg/utils"
)

// cancelWait bounds how long CancelRun waits for a run to stop.
const cancelWait = 10 * time.Second

// RunFunc executes one analysis run.
type RunFunc func(ctx context.Context, runID string, spec model.RunSpec, st pipeline.Store) (*model.Report, []model.ExportResult, error)

// Handler serves the run API
type Handler struct {
	store   *store.Store
	cfg     *config.Config
	outputs *utils.OutputManager
	run     RunFunc

	mu       sync.Mutex
	inflight map[string]*inflightRun
	wg       sync.WaitGroup
}

// inflightRun is a started run; done is closed once its final status is stored.
type inflightRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// CreateRunRequest is the body of POST /runs
type CreateRunRequest struct {
	Input      string            `json:"input,omitempty"` // defaults to the configured input
	Validation *model.Validation `json:"validation,omitempty"`
	Charts     *bool             `json:"charts,omitempty"`
}

// New creates a handler backed by st and cfg.
func New(st *store.Store, cfg *config.Config) *Handler {
	return &Handler{
		store:   st,
		cfg:     cfg,
		outputs: utils.NewOutputManager(cfg.Output.Dir),
		run:      pipeline.Run,
		inflight: make(map[string]*inflightRun),
	}
}

// WithRunner replaces the function executing runs.
func (h *Handler) WithRunner(fn RunFunc) *Handler {
	h.run = fn
	return h
}

// Wait blocks until every started run has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// CancelAll cancels every run still in flight.
func (h *Handler) CancelAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, fl := range h.inflight {
		fl.cancel()
	}
}

// CreateRun starts a new analysis run
// @Summary Create a new run
// @Description Start an analysis run over a delivery report CSV
// @Tags runs
// @Accept json
// @Produce json
// @Param run body CreateRunRequest false "Run options"
// @Success 200 {object} map[string]interface{} "Run created successfully"
// @Failure 400 {object} map[string]interface{} "Invalid request payload"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [post]
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON payload", http.StatusBadRequest)
			return
		}
	}

	// 1. Build and validate the run spec
	spec := h.cfg.RunSpec(req.Input)
	if req.Validation != nil {
		spec.Validation = *req.Validation
	}
	if req.Charts != nil {
		spec.Export.Charts = *req.Charts
	}
	if _, err := os.Stat(spec.Input); err != nil {
		http.Error(w, fmt.Sprintf("Input not readable: %s", spec.Input), http.StatusBadRequest)
		return
	}

	// 2. Generate run ID, register it as in flight and persist
	runID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	fl := &inflightRun{cancel: cancel, done: make(chan struct{})}
	h.mu.Lock()
	h.inflight[runID] = fl
	h.mu.Unlock()

	if err := h.store.SaveRun(runID, spec); err != nil {
		h.mu.Lock()
		delete(h.inflight, runID)
		h.mu.Unlock()
		cancel()
		http.Error(w, "Failed to save run", http.StatusInternalServerError)
		return
	}

	// 3. Start asynchronously; the run applies its own timeout
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			h.mu.Lock()
			delete(h.inflight, runID)
			h.mu.Unlock()
			close(fl.done)
			cancel()
		}()
		if _, _, err := h.run(ctx, runID, spec, h.store); err != nil {
			logger.Log.WithField("run_id", runID).WithError(err).Warn("run failed")
		}
	}()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Run created successfully!",
		"runID":     runID,
		"status":    model.StatusPending,
		"createdAt": time.Now().UTC(),
	})
}

// ListRuns retrieves all runs
// @Summary List all runs
// @Description Get a list of all runs with their current status
// @Tags runs
// @Produce json
// @Success 200 {array} store.RunRecord "List of runs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.store.ListRuns()
	if err != nil {
		http.Error(w, "Failed to fetch runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun retrieves a run with its report when completed
// @Summary Get run
// @Description Retrieve a run's spec, status and, once completed, its report
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run details"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Router /runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r)
	if !ok {
		return
	}

	run, err := h.store.GetRun(runID)
	if err != nil {
		notFoundOr500(w, err, "Run not found")
		return
	}

	resp := map[string]interface{}{"run": run}
	if run.Status == model.StatusCompleted {
		if rep, err := h.store.GetReport(runID); err == nil {
			resp["report"] = rep
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetComparison retrieves the pre/post comparison table
// @Summary Get comparison table
// @Description Retrieve pre vs post decline metrics of a run
// @Tags results
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Comparison rows"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/comparison [get]
func (h *Handler) GetComparison(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r)
	if !ok {
		return
	}

	rows, err := h.store.GetComparison(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve comparison", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":     runID,
		"comparison": rows,
		"count":      len(rows),
	})
}

// GetCoefficients retrieves fitted regression coefficients
// @Summary Get coefficients
// @Description Retrieve regression coefficients of a run, optionally for one model
// @Tags results
// @Produce json
// @Param id path string true "Run ID"
// @Param model query string false "Model name (daily_trend, daily_trend_break, row_level)"
// @Success 200 {object} map[string]interface{} "Coefficients keyed by model"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/coefficients [get]
func (h *Handler) GetCoefficients(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r)
	if !ok {
		return
	}

	coefs, err := h.store.GetCoefficients(runID, r.URL.Query().Get("model"))
	if err != nil {
		http.Error(w, "Failed to retrieve coefficients", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"models": coefs,
	})
}

// GetRunErrors retrieves errors for a run
// @Summary Get run errors
// @Description Retrieve errors recorded while a run executed
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run errors"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/errors [get]
func (h *Handler) GetRunErrors(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r)
	if !ok {
		return
	}

	errs, err := h.store.GetRunErrors(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve errors", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"errors": errs,
		"count":  len(errs),
	})
}

// GetRunProgress retrieves stage progress for a run
// @Summary Get run progress
// @Description Retrieve per-stage status, record counts and durations
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Stage progress"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/progress [get]
func (h *Handler) GetRunProgress(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r)
	if !ok {
		return
	}

	stages, err := h.store.GetStageProgress(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve progress", http.StatusInternalServerError)
		return
	}
	completed := 0
	for _, s := range stages {
		if s.Status == model.StatusCompleted {
			completed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    runID,
		"stages":    stages,
		"completed": completed,
	})
}

// GetRunFiles lists the artifacts of a run
// @Summary List run files
// @Description List output files of a run with download URLs
// @Tags files
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run files"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id}/files [get]
func (h *Handler) GetRunFiles(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r)
	if !ok {
		return
	}

	files, err := h.store.GetOutputFiles(runID)
	if err != nil {
		http.Error(w, "Failed to retrieve files", http.StatusInternalServerError)
		return
	}
	out := make([]map[string]interface{}, 0, len(files))
	for _, f := range files {
		out = append(out, map[string]interface{}{
			"name":         f.Name,
			"type":         f.Type,
			"rows":         f.Rows,
			"size":         f.Size,
			"created_at":   f.CreatedAt,
			"download_url": h.outputs.GetDownloadURL(runID, f.Name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"files":  out,
		"count":  len(out),
	})
}

// DownloadFile serves a file for download
// @Summary Download file
// @Description Download a specific output file of a run
// @Tags files
// @Produce application/octet-stream
// @Param runID path string true "Run ID"
// @Param filename path string true "File name"
// @Success 200 {file} file "File download"
// @Failure 400 {object} map[string]interface{} "Invalid URL format"
// @Failure 404 {object} map[string]interface{} "File not found"
// @Router /download/{runID}/{filename} [get]
func (h *Handler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	// URL format: /api/v1/download/runID/filename
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) != 5 {
		http.Error(w, "Invalid URL format", http.StatusBadRequest)
		return
	}
	runID, fileName := pathParts[3], pathParts[4]

	filePath := h.outputs.GetOutputFilePath(runID, fileName)
	if _, err := os.Stat(filePath); err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", fileName))
	switch h.outputs.GetFileType(fileName) {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
	case "json":
		w.Header().Set("Content-Type", "application/json")
	case "png":
		w.Header().Set("Content-Type", "image/png")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	http.ServeFile(w, r, filePath)
}

// CancelRun cancels a running run
// @Summary Cancel run
// @Description Cancel a pending or running run and report the status it settled in
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run cancelled"
// @Success 202 {object} map[string]interface{} "Cancellation requested, run still stopping"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 409 {object} map[string]interface{} "Run already finished"
// @Router /runs/{id}/cancel [patch]
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r)
	if !ok {
		return
	}

	run, err := h.store.GetRun(runID)
	if err != nil {
		notFoundOr500(w, err, "Run not found")
		return
	}
	if isFinished(run.Status) {
		http.Error(w, fmt.Sprintf("Run is already %s and cannot be cancelled", run.Status), http.StatusConflict)
		return
	}

	h.mu.Lock()
	fl, inFlight := h.inflight[runID]
	h.mu.Unlock()
	if inFlight {
		fl.cancel()
		select {
		case <-fl.done:
		case <-time.After(cancelWait):
		case <-r.Context().Done():
		}
	} else {
		// the run may have finished between the two reads
		current, err := h.store.GetRun(runID)
		if err != nil {
			notFoundOr500(w, err, "Run not found")
			return
		}
		if !isFinished(current.Status) {
			if err := h.store.UpdateRunStatus(runID, model.StatusCancelled); err != nil {
				http.Error(w, "Failed to cancel run", http.StatusInternalServerError)
				return
			}
		}
	}

	current, err := h.store.GetRun(runID)
	if err != nil {
		notFoundOr500(w, err, "Run not found")
		return
	}
	switch current.Status {
	case model.StatusCancelled:
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"message":         "Run cancelled successfully",
			"run_id":          runID,
			"previous_status": run.Status,
			"status":          current.Status,
		})
	case model.StatusCompleted, model.StatusFailed:
		http.Error(w, fmt.Sprintf("Run finished as %s before it could be cancelled", current.Status), http.StatusConflict)
	default:
		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"message":         "Cancellation requested; run is still stopping",
			"run_id":          runID,
			"previous_status": run.Status,
			"status":          current.Status,
		})
	}
}

// DeleteRun deletes a run and its artifacts
// @Summary Delete run
// @Description Delete a run, its stored results and its output files
// @Tags runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} map[string]interface{} "Run deleted"
// @Failure 404 {object} map[string]interface{} "Run not found"
// @Failure 409 {object} map[string]interface{} "Run still in flight"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /runs/{id} [delete]
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDFromPath(w, r)
	if !ok {
		return
	}

	h.mu.Lock()
	_, inFlight := h.inflight[runID]
	h.mu.Unlock()
	if inFlight {
		http.Error(w, "Run is still in flight; cancel it first", http.StatusConflict)
		return
	}

	files, err := h.store.GetOutputFiles(runID)
	if err != nil {
		logger.Log.WithField("run_id", runID).WithError(err).Warn("failed to list run outputs")
	}
	if err := h.store.DeleteRun(runID); err != nil {
		notFoundOr500(w, err, "Run not found")
		return
	}
	if err := h.outputs.RemoveRunOutputs(runID); err != nil {
		logger.Log.WithField("run_id", runID).WithError(err).Warn("failed to remove run outputs")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "Run and all artifacts deleted successfully",
		"run_id":        runID,
		"files_deleted": len(files),
	})
}

func isFinished(status string) bool {
	switch status {
	case model.StatusCompleted, model.StatusFailed, model.StatusCancelled:
		return true
	}
	return false
}

// runIDFromPath extracts the id from /api/v1/runs/{id}[/...]
func runIDFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	pathParts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(pathParts) < 4 || pathParts[3] == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return "", false
	}
	return pathParts[3], true
}

func notFoundOr500(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, msg, http.StatusNotFound)
		return
	}
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
