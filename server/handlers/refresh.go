package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nomis52/signup/controller"
)

// RefreshHandler reloads the activity catalog on demand.
type RefreshHandler struct {
	logger *slog.Logger
	loader Loader
}

// NewRefreshHandler creates a new RefreshHandler.
func NewRefreshHandler(logger *slog.Logger, loader Loader) *RefreshHandler {
	return &RefreshHandler{
		logger: logger,
		loader: loader,
	}
}

// ServeHTTP implements http.Handler.
func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("refreshing activities")

	err := h.loader.LoadActivities(r.Context())
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, controller.ErrSuperseded):
		// A newer load is rendering; nothing to report.
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, controller.ErrClosed):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	default:
		h.logger.Error("failed to refresh activities", "error", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error: "failed to refresh activities: " + err.Error(),
		})
	}
}
