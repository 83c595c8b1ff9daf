package enrichment

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/taskqueue"
)

type HTTPHandler struct {
	service     *Service
	runner      *taskqueue.Runner
	tasks       *taskqueue.Repository
	maxAttempts int
	maxBody     int64
}

func NewHTTPHandler(service *Service, runner *taskqueue.Runner, tasks *taskqueue.Repository, maxAttempts int, maxBody int64) *HTTPHandler {
	return &HTTPHandler{
		service:     service,
		runner:      runner,
		tasks:       tasks,
		maxAttempts: maxAttempts,
		maxBody:     maxBody,
	}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/process", h.handleProcess).Methods(http.MethodPost)
	router.HandleFunc("/refresh", h.handleRefresh).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	report := h.runner.RunOnce(r.Context(), taskqueue.QueueEnrichment, h.service.Process)
	writeJSON(w, http.StatusOK, report)
}

type refreshRequest struct {
	EntityID string `json:"entity_id"`
}

// handleRefresh enqueues a force-refresh enrichment for an already enriched
// entity. The result is a fresh listing revision, not an in-place edit.
func (h *HTTPHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request body"})
		return
	}
	if _, err := uuid.Parse(req.EntityID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "entity_id must be a UUID"})
		return
	}

	task, err := h.tasks.Enqueue(r.Context(), taskqueue.QueueEnrichment, map[string]interface{}{
		"entity_id":     req.EntityID,
		"force_refresh": true,
	}, h.maxAttempts)
	if err != nil {
		logger.Log.WithError(err).Error("failed to enqueue refresh task")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "internal error"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"success": true, "task_id": task.ID.String()})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
