package handlers

import (
	"context"
	"net/http"

	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/models"
)

type SessionManager interface {
	Status(ctx context.Context, sessionID string) (models.SessionStatus, error)
	Clear(ctx context.Context, sessionID string) error
}

type SessionHandler struct {
	sessions SessionManager
	log      *logger.Logger
}

func NewSessionHandler(sessions SessionManager, log *logger.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, log: log.With("handler", "session")}
}

func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	status, err := h.sessions.Status(r.Context(), id)
	if err != nil {
		h.log.Error("status failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if status.ChatHistory == nil {
		status.ChatHistory = []models.ChatTurn{}
	}
	if status.ProcessedFiles == nil {
		status.ProcessedFiles = []models.IngestionResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": status})
}

func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.sessions.Clear(r.Context(), id); err != nil {
		h.log.Error("clear failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Database cleared successfully"})
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
