// Package version reports the build version of gemd.
package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Version and Commit can be set at build time:
//
//	go build -ldflags="-X github.com/muurk/gemd/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/gemd/internal/version.Commit=abc1234"
//
// Unset values are filled from the VCS stamp in the build info, falling
// back to a dev version and "unknown".
var (
	Version = ""
	Commit  = ""
)

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			applyBuildSettings(info.Settings)
		}
	}

	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// applyBuildSettings fills Version and Commit from vcs.* build settings.
func applyBuildSettings(settings []debug.BuildSetting) {
	vcs := make(map[string]string, len(settings))
	for _, s := range settings {
		vcs[s.Key] = s.Value
	}

	if Commit == "" && vcs["vcs.revision"] != "" {
		Commit = vcs["vcs.revision"]
		if len(Commit) > 7 {
			Commit = Commit[:7]
		}
		if vcs["vcs.modified"] == "true" {
			Commit += "-dirty"
		}
	}

	// Build info carries no tags, only the commit time
	if Version == "" && vcs["vcs.time"] != "" {
		if t, err := time.Parse(time.RFC3339, vcs["vcs.time"]); err == nil {
			Version = "dev-" + t.Format("20060102")
		}
	}
}

// Full returns the version string including the commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}
