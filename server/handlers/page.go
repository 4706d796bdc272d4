package handlers

import (
	"bytes"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/nomis52/signup/buildinfo"
	"github.com/nomis52/signup/view"
)

// PageData is passed to the page template.
type PageData struct {
	View      view.PageSnapshot
	CSRFField template.HTML
	Build     buildinfo.Properties
}

// PageHandler renders the sign-up page.
type PageHandler struct {
	logger    *slog.Logger
	tmpl      *template.Template
	page      SnapshotProvider
	csrfField func(*http.Request) template.HTML
}

// NewPageHandler creates a new PageHandler. csrfField returns the hidden input
// carrying the request's CSRF token and may be nil.
func NewPageHandler(logger *slog.Logger, tmpl *template.Template, page SnapshotProvider, csrfField func(*http.Request) template.HTML) *PageHandler {
	return &PageHandler{
		logger:    logger,
		tmpl:      tmpl,
		page:      page,
		csrfField: csrfField,
	}
}

// ServeHTTP implements http.Handler.
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		View:  h.page.Snapshot(),
		Build: buildinfo.Get(),
	}
	if h.csrfField != nil {
		data.CSRFField = h.csrfField(r)
	}

	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, data); err != nil {
		h.logger.Error("failed to render page", "error", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
