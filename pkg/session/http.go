package session

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/roland-id-au/vows-social-sub000/pkg/common/logger"
)

type HTTPHandler struct {
	manager *Manager
	maxBody int64
}

func NewHTTPHandler(manager *Manager, maxBody int64) *HTTPHandler {
	return &HTTPHandler{manager: manager, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/actions", h.handleAction).Methods(http.MethodPost)
}

type actionRequest struct {
	Action  string `json:"action"`
	Account string `json:"account,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Code    string `json:"code,omitempty"`
}

// handleAction dispatches one session action. Every outcome, including
// domain errors, comes back as a JSON success flag; nothing escapes as a
// bare 500 with no body.
func (h *HTTPHandler) handleAction(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "invalid request body"})
		return
	}

	switch req.Action {
	case "fetch_recent_posts":
		if req.Account == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "account required"})
			return
		}
		limit := req.Limit
		if limit <= 0 || limit > 50 {
			limit = 12
		}
		posts, err := h.manager.FetchRecentPosts(r.Context(), req.Account, limit)
		if err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": posts})

	case "follow":
		if req.Account == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "account required"})
			return
		}
		if err := h.manager.Follow(r.Context(), req.Account); err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})

	case "submit_verification_code":
		if req.Code == "" {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "code required"})
			return
		}
		if err := h.manager.SubmitVerificationCode(r.Context(), req.Code); err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})

	default:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "unknown action"})
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var submission *ChallengeSubmissionError
	switch {
	case errors.Is(err, ErrBusy):
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{"success": false, "error": err.Error()})
	case errors.Is(err, ErrChallengeTimeout), errors.Is(err, ErrAuthFailed):
		writeJSON(w, http.StatusConflict, map[string]interface{}{"success": false, "error": err.Error()})
	case errors.As(err, &submission):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"success": false, "error": err.Error()})
	default:
		logger.Log.WithError(err).Error("Session action failed")
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{"success": false, "error": "session action failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
