package handlers

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
)

// ErrorResponse is returned when an error occurs.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// writeError responds with a JSON ErrorResponse to clients that asked for JSON
// and plain text otherwise.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if wantsJSON(r) {
		writeJSON(w, status, ErrorResponse{Error: msg})
		return
	}
	http.Error(w, msg, status)
}

// wantsJSON reports whether the client sent or asked for JSON.
func wantsJSON(r *http.Request) bool {
	for _, h := range []string{r.Header.Get("Accept"), r.Header.Get("Content-Type")} {
		if mt, _, err := mime.ParseMediaType(h); err == nil && mt == "application/json" {
			return true
		}
	}
	return false
}
