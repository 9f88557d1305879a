// Package version reports build information for gitlab-ls.
package version

import (
	"fmt"
	"runtime"
)

// Build information. These variables are set at build time via ldflags:
//
//	-X github.com/teranos/gitlab-ls/version.Version=v0.3.0
var (
	// CommitHash is the git commit hash when the binary was built
	CommitHash = "dev"

	// BuildTime is when the binary was built
	BuildTime = "unknown"

	// Version is the semantic version (if tagged)
	Version = "dev"
)

// Info contains version and build information
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current version information
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String returns a human-readable version string
func (i Info) String() string {
	return fmt.Sprintf("gitlab-ls %s (commit %s, built %s, %s %s)", i.Version, i.Short(), i.BuildTime, i.GoVersion, i.Platform)
}

// Short returns the tagged version, or the abbreviated commit for dev builds.
// It is what the server reports as serverInfo.version and in its User-Agent.
func (i Info) Short() string {
	if i.Version != "dev" && i.Version != "" {
		return i.Version
	}
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
