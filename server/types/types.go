// Package types provides shared types for the server package and its subpackages.
package types

import (
	"time"

	"github.com/nomis52/signup/buildinfo"
)

// ServerProperties holds metadata about the running server instance.
type ServerProperties struct {
	Build     buildinfo.Properties `json:"build"`
	StartedAt time.Time            `json:"started_at"`
	Hostname  string               `json:"hostname"`
	APIURL    string               `json:"api_url,omitempty"`
	Refresh   string               `json:"refresh_schedule,omitempty"`
	NextRun   *time.Time           `json:"next_refresh,omitempty"`
}

// FormResult is the JSON body returned for form submissions made with Accept: application/json.
type FormResult struct {
	Form    string `json:"form"`
	Visible bool   `json:"visible"`
	Text    string `json:"text,omitempty"`
	Kind    string `json:"kind,omitempty"`
}
