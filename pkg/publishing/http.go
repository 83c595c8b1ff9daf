package publishing

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
	router.HandleFunc("/tasks", h.handleCreateTask).Methods(http.MethodPost)
}

func (h *HTTPHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	report := h.runner.RunOnce(r.Context(), taskqueue.QueuePublishing, h.service.Process)
	writeJSON(w, http.StatusOK, report)
}

type createTaskRequest struct {
	RecordID string   `json:"record_id"`
	Channels []string `json:"channels,omitempty"`
}

// handleCreateTask seeds a publishing task for an already finalized record,
// for re-announcing outside the normal enrichment handoff.
func (h *HTTPHandler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request body"})
		return
	}
	if _, err := uuid.Parse(req.RecordID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "record_id must be a UUID"})
		return
	}

	payload := map[string]interface{}{"record_id": req.RecordID}
	if len(req.Channels) > 0 {
		payload["channels"] = req.Channels
	}

	task, err := h.tasks.Enqueue(r.Context(), taskqueue.QueuePublishing, payload, h.maxAttempts)
	if err != nil {
		logger.Log.WithError(err).Error("failed to enqueue publishing task")
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
