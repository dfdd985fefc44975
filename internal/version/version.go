// Package version provides application version and build info.
//
//nolint:revive
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

var (
	// Version is the release tag, set with -ldflags "-X .../version.Version=v1.2.3".
	Version = "dev"
	// CommitHash is the git commit; read from VCS build info when not set by ldflags.
	CommitHash = ""
	// BuildTime is the commit or build timestamp.
	BuildTime = ""
)

// BuildInfo is the structured form printed by `contactsync version --format json`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
}

var vcsOnce sync.Once

func readVCS() {
	if CommitHash != "" {
		return
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			CommitHash = setting.Value
		case "vcs.time":
			if BuildTime == "" {
				BuildTime = setting.Value
			}
		}
	}
}

// Get returns the build information.
func Get() BuildInfo {
	vcsOnce.Do(readVCS)
	return BuildInfo{
		Version:   Version,
		Commit:    CommitHash,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// GetInfo returns "<version>" or "<version> (<short commit>)".
func GetInfo() string {
	b := Get()
	if b.Commit == "" {
		return b.Version
	}
	short := b.Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return fmt.Sprintf("%s (%s)", b.Version, short)
}
