// Package buildinfo exposes version metadata stamped into the mailroom binary.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"runtime/debug"
)

// These vars are set at build time via ldflags:
// -X github.com/otherjamesbrown/mailroom/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/mailroom/pkg/buildinfo.Commit=4f1c2aa
// -X github.com/otherjamesbrown/mailroom/pkg/buildinfo.BuildTime=2025-11-02T09:00:00Z
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info holds build information for the binary.
type Info struct {
	Component string `json:"component"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns build info for the named component.
func Get(component string) Info {
	return Info{
		Component: component,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a human-readable one-liner like "v0.3.0 (4f1c2aa, 2025-11-02T09:00:00Z)".
// When Commit was not stamped it falls back to the VCS revision recorded by the Go toolchain.
func String() string {
	commit := Commit
	if commit == "unknown" {
		if rev := vcsRevision(); rev != "" {
			commit = rev
		}
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, BuildTime)
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}

// Handler returns an HTTP handler that responds with build info JSON.
func Handler(component string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Get(component))
	}
}
