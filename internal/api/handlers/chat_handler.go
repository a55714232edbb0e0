package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/markdave123-py/Prism/internal/core/logger"
)

type Chatter interface {
	Chat(ctx context.Context, sessionID, message string) (string, error)
}

type ChatHandler struct {
	chat Chatter
	log  *logger.Logger
}

func NewChatHandler(chat Chatter, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, log: log.With("handler", "chat")}
}

type ChatRequest struct {
	Message string `json:"message"`
}

// Chat answers one question against the caller's documents. Answer failures
// come back as text with 200; only a bad request is a 4xx.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "No message provided")
		return
	}

	reply, err := h.chat.Chat(r.Context(), id, req.Message)
	if err != nil {
		h.log.Error("chat failed", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error processing chat: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "response": reply})
}
