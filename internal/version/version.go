// Package version carries the build metadata stamped into the promoscout
// binary.
//
// The variables are set with ldflags at build time:
//
//	go build -ldflags "-X github.com/jmylchreest/promoscout/internal/version.Version=0.3.0 \
//	    -X github.com/jmylchreest/promoscout/internal/version.Commit=$(git rev-parse --short HEAD)" ./cmd/promoscout
package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables set via ldflags
var (
	// Version is the semantic version (e.g., "0.3.0" or "0.3.0-dev.2+abc123")
	Version = "dev"

	// Commit is the git commit SHA
	Commit = "unknown"

	// Dirty is "true" when the tree had uncommitted changes at build time
	Dirty = "false"

	// BuildDate is the UTC build timestamp in RFC3339 format
	BuildDate = "unknown"
)

// Info is the structured form printed by `promoscout version --json`.
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Dirty     bool   `json:"dirty" yaml:"dirty"`
	BuildDate string `json:"build_date" yaml:"build_date"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the current version information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Dirty:     Dirty == "true",
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns the version with a -dirty suffix when applicable.
func String() string {
	if Dirty == "true" {
		return Version + "-dirty"
	}
	return Version
}

// UserAgentSuffix is appended to outgoing LLM requests so provider dashboards
// can attribute traffic to a build.
func UserAgentSuffix() string {
	return "promoscout/" + String()
}

// Full returns the multi-line banner printed by the version command.
func Full() string {
	info := Get()
	var sb strings.Builder
	fmt.Fprintf(&sb, "promoscout %s\n", String())
	fmt.Fprintf(&sb, "  Commit:     %s\n", info.Commit)
	if info.Dirty {
		sb.WriteString("  Dirty:      yes\n")
	}
	fmt.Fprintf(&sb, "  Built:      %s\n", info.BuildDate)
	fmt.Fprintf(&sb, "  Go version: %s\n", info.GoVersion)
	fmt.Fprintf(&sb, "  OS/Arch:    %s", info.Platform)
	return sb.String()
}
