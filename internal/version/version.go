package version

import (
	"fmt"
	"runtime"
)

// Version is the notesync release, set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/notesync/internal/version.Version=v0.3.0".
var Version = "dev"

// Build metadata, also injected via ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders a one-line description for `notesync version` and the User-Agent.
func String() string {
	return fmt.Sprintf("notesync %s (commit %s, built %s, %s)", Version, GitCommit, BuildTime, runtime.Version())
}
