// Package buildinfo provides build-time properties injected via ldflags, e.g.
//
//	go build -ldflags "-X github.com/nomis52/signup/buildinfo.version=v1.2.0"
package buildinfo

import (
	"fmt"
	"runtime"
)

// Properties holds build-time properties injected via ldflags.
type Properties struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	GoVersion string `json:"go_version"`
}

// Package-level variables for ldflags injection (unexported).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Get returns the current build properties.
func Get() Properties {
	return Properties{
		Version:   version,
		BuildTime: buildTime,
		GitCommit: gitCommit,
		GoVersion: runtime.Version(),
	}
}

// String formats the properties for -version output.
func (p Properties) String() string {
	return fmt.Sprintf("%s (commit %s, built %s, %s)", p.Version, p.GitCommit, p.BuildTime, p.GoVersion)
}
