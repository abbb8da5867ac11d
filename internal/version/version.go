// Package version holds icsd's build-time identity, set via ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Build information, overridden at link time with
// -ldflags "-X github.com/icsd/icsd/internal/version.Version=... -X ...CommitHash=... -X ...BuildTime=...".
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info is the JSON-serializable shape returned by the version command.
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the current build's version information.
func Get() Info {
	return Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("icsd %s (commit %s, built %s)", i.Version, i.CommitHash, i.BuildTime)
}
