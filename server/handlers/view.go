package handlers

import "net/http"

// ViewHandler returns the page state as JSON.
type ViewHandler struct {
	page SnapshotProvider
}

// NewViewHandler creates a new ViewHandler.
func NewViewHandler(page SnapshotProvider) *ViewHandler {
	return &ViewHandler{page: page}
}

// ServeHTTP implements http.Handler.
func (h *ViewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.page.Snapshot())
}
