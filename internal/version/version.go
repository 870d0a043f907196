// Package version carries build metadata stamped in by -ldflags.
package version

import (
	"runtime"
	"strings"
)

// Name is the program name used in user-facing output.
const Name = "modus"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String is the long form printed by --version.
func String() string {
	return Short() + " (commit=" + Commit + ", date=" + Date + ", go=" + runtime.Version() + ")"
}

// Short is the program name and version.
func Short() string {
	return Name + " " + Version
}

// Matches reports whether a peer's version agrees with this build. Empty or dev builds match anything.
func Matches(peer string) bool {
	peer = strings.TrimSpace(peer)
	if peer == "" || peer == "dev" || Version == "dev" {
		return true
	}
	return strings.TrimPrefix(peer, "v") == strings.TrimPrefix(Version, "v")
}
