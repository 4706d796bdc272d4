package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/nomis52/signup/controller"
	"github.com/nomis52/signup/server/types"
	"github.com/nomis52/signup/view"
)

// Form field names shared by both forms.
const (
	FieldActivity = "activity"
	FieldEmail    = "email"
)

// SubmitHandler handles POSTs of the signup or deregister form. Browsers are
// redirected back to the page; JSON clients get the resulting message.
type SubmitHandler struct {
	logger *slog.Logger
	name   string
	form   view.PageForm
	submit SubmitFunc
}

// NewSubmitHandler creates a handler for the named form.
func NewSubmitHandler(logger *slog.Logger, name string, form view.PageForm, submit SubmitFunc) *SubmitHandler {
	return &SubmitHandler{
		logger: logger,
		name:   name,
		form:   form,
		submit: submit,
	}
}

// ServeHTTP implements http.Handler.
func (h *SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid form: "+err.Error())
		return
	}

	activity := r.PostFormValue(FieldActivity)
	email := r.PostFormValue(FieldEmail)
	if activity == "" || strings.TrimSpace(email) == "" {
		writeError(w, r, http.StatusBadRequest, "activity and email are required")
		return
	}
	if !slices.Contains(h.form.Selector.Names(), activity) {
		writeError(w, r, http.StatusBadRequest, "unknown activity "+activity)
		return
	}

	// The controller fills the shared form once the submission is admitted.
	// The submission completes even if the browser goes away.
	err := h.submit(context.WithoutCancel(r.Context()), activity, email)
	switch {
	case errors.Is(err, controller.ErrSubmissionInProgress):
		writeError(w, r, http.StatusConflict, err.Error())
		return
	case errors.Is(err, controller.ErrClosed):
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		// The outcome is already shown in the form's message area.
		h.logger.Debug("submission failed", "form", h.name, "error", err)
	}

	if wantsJSON(r) {
		state := h.form.Message.State()
		writeJSON(w, http.StatusOK, types.FormResult{
			Form:    h.name,
			Visible: state.Visible,
			Text:    state.Text,
			Kind:    string(state.Kind),
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
