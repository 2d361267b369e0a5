package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/username/capitolwatch/backend/src/logger"
	"github.com/username/capitolwatch/backend/src/services"
	"github.com/username/capitolwatch/backend/src/sources"
	"github.com/username/capitolwatch/backend/src/utils"
)

type CollectionHandler struct {
	service services.CollectionService
	baseCtx context.Context
}

// NewCollectionHandler returns the collection API. Runs triggered over HTTP
// outlive their request and are cancelled with baseCtx.
func NewCollectionHandler(baseCtx context.Context, service services.CollectionService) *CollectionHandler {
	return &CollectionHandler{service: service, baseCtx: baseCtx}
}

type triggerRequest struct {
	Sources []string `json:"sources"`
}

type triggerResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func (h *CollectionHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		logger.FromContext(r.Context()).Error("Health check failed", "error", err)
		utils.SendJSONError(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	utils.SendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CollectionHandler) HandleTriggerCollection(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())
	if subject, ok := GetSubjectFromContext(r.Context()); ok {
		ctxLogger = ctxLogger.With("subject", subject)
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ctx := logger.ToContext(h.baseCtx, ctxLogger)
	runID, done, err := h.service.StartCollection(ctx, services.RunConfig{Trigger: "api", Sources: req.Sources})
	switch {
	case errors.Is(err, services.ErrRunInProgress):
		utils.SendJSONError(w, "a collection run is already in progress", http.StatusConflict)
		return
	case errors.Is(err, sources.ErrUnknownSource):
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrStoreUnavailable):
		ctxLogger.Error("Collection trigger failed", "error", err)
		utils.SendJSONError(w, "store unavailable", http.StatusServiceUnavailable)
		return
	case err != nil:
		ctxLogger.Error("Collection trigger failed", "error", err)
		utils.SendJSONError(w, "failed to start collection run", http.StatusInternalServerError)
		return
	}

	go func() {
		res := <-done
		if res.Err != nil {
			ctxLogger.Error("Triggered collection run failed", "runID", runID, "error", res.Err)
		}
	}()

	ctxLogger.Info("Collection run triggered", "runID", runID, "sources", req.Sources)
	utils.SendJSON(w, http.StatusAccepted, triggerResponse{RunID: runID, Status: string(services.RunRunning)})
}

func (h *CollectionHandler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			utils.SendJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to list collection runs", "error", err)
		utils.SendJSONError(w, "failed to list collection runs", http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, http.StatusOK, runs)
}

func (h *CollectionHandler) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.LatestSummary(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load latest run", "error", err)
		utils.SendJSONError(w, "failed to load latest run", http.StatusInternalServerError)
		return
	}
	if summary == nil {
		utils.SendJSONError(w, "no collection run recorded yet", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, http.StatusOK, summary)
}
