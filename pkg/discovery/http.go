package discovery

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
	"github.com/roland-id-au/vows-social-sub000/pkg/taskqueue"
)

type HTTPHandler struct {
	service     *Service
	runner      *taskqueue.Runner
	tasks       *taskqueue.Repository
	entities    *Repository
	maxAttempts int
	maxBody     int64
}

func NewHTTPHandler(service *Service, runner *taskqueue.Runner, tasks *taskqueue.Repository, entities *Repository, maxAttempts int, maxBody int64) *HTTPHandler {
	return &HTTPHandler{
		service:     service,
		runner:      runner,
		tasks:       tasks,
		entities:    entities,
		maxAttempts: maxAttempts,
		maxBody:     maxBody,
	}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/process", h.handleProcess).Methods(http.MethodPost)
	router.HandleFunc("/tasks", h.handleCreateTask).Methods(http.MethodPost)
	router.HandleFunc("/entities", h.handleListEntities).Methods(http.MethodGet)
}

// handleProcess claims and runs at most one pending discovery task.
func (h *HTTPHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	report := h.runner.RunOnce(r.Context(), taskqueue.QueueDiscovery, h.service.Process)
	writeJSON(w, http.StatusOK, report)
}

type createTaskRequest struct {
	Query    string `json:"query,omitempty"`
	Location string `json:"location"`
	Category string `json:"category"`
}

// handleCreateTask seeds one pending discovery task.
func (h *HTTPHandler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request body"})
		return
	}
	if req.Query == "" && (req.Location == "" || req.Category == "") {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "query or location+category required"})
		return
	}

	task, err := h.tasks.Enqueue(r.Context(), taskqueue.QueueDiscovery, map[string]interface{}{
		"query":    req.Query,
		"location": req.Location,
		"category": req.Category,
	}, h.maxAttempts)
	if err != nil {
		logger.Log.WithError(err).Error("failed to enqueue discovery task")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "internal error"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{"success": true, "task_id": task.ID.String()})
}

func (h *HTTPHandler) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.entities.List(r.Context(), r.URL.Query().Get("status"), 100)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list discovered entities")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"success": false, "error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "entities": entities})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
