// Package handlers provides HTTP handlers for the sign-up web server.
//
// Each handler is in its own file and implements http.Handler.
// Handlers use interfaces to access server dependencies, avoiding
// circular imports.
package handlers

import (
	"context"

	"github.com/nomis52/signup/logging"
	"github.com/nomis52/signup/server/types"
	"github.com/nomis52/signup/view"
)

// Loader reloads the activity catalog.
type Loader interface {
	LoadActivities(ctx context.Context) error
}

// SubmitFunc submits one form, e.g. ActivityClient.SubmitSignup.
type SubmitFunc func(ctx context.Context, activity, email string) error

// SnapshotProvider provides the current page state.
type SnapshotProvider interface {
	Snapshot() view.PageSnapshot
}

// DiagnosticsProvider provides captured log entries by channel.
type DiagnosticsProvider interface {
	Channels() []string
	Entries(channel string) []logging.LogEntry
	All() map[string][]logging.LogEntry
}

// PropertiesProvider provides metadata about the running server.
type PropertiesProvider interface {
	Properties() types.ServerProperties
}
