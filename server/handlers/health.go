package handlers

import "net/http"

// HandleHealth is a liveness check that always returns "ok".
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// ReadyHandler reports whether the activity list is showing a catalog rather
// than a load failure.
type ReadyHandler struct {
	page SnapshotProvider
}

// NewReadyHandler creates a new ReadyHandler.
func NewReadyHandler(page SnapshotProvider) *ReadyHandler {
	return &ReadyHandler{page: page}
}

// ServeHTTP implements http.Handler.
func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if failure := h.page.Snapshot().Failure; failure != "" {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(failure))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
