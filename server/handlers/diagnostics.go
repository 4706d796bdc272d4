package handlers

import (
	"net/http"

	"github.com/nomis52/signup/logging"
)

// DiagnosticsResponse is the JSON response for GET /api/diagnostics.
type DiagnosticsResponse struct {
	Channels []string                      `json:"channels"`
	Entries  map[string][]logging.LogEntry `json:"entries"`
}

// DiagnosticsHandler returns recently captured log entries. The optional
// channel query parameter restricts the response to one channel.
type DiagnosticsHandler struct {
	provider DiagnosticsProvider
}

// NewDiagnosticsHandler creates a new DiagnosticsHandler.
func NewDiagnosticsHandler(provider DiagnosticsProvider) *DiagnosticsHandler {
	return &DiagnosticsHandler{provider: provider}
}

// ServeHTTP implements http.Handler.
func (h *DiagnosticsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := DiagnosticsResponse{Channels: h.provider.Channels()}
	if channel := r.URL.Query().Get("channel"); channel != "" {
		resp.Entries = map[string][]logging.LogEntry{channel: h.provider.Entries(channel)}
	} else {
		resp.Entries = h.provider.All()
	}
	if resp.Channels == nil {
		resp.Channels = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}
