package handlers

import (
	"encoding/json"
	"net/http"

	middleware "github.com/markdave123-py/Prism/internal/api/middlewares"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

// sessionID pulls the id set by the session middleware; a missing id is a wiring bug.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.SessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "session not found")
	}
	return id, ok
}
