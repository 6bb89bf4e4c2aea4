// Package version carries build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String formats the metadata for `mindful version`.
func String() string {
	return fmt.Sprintf("mindful %s (commit=%s, date=%s, go=%s)", Version, Commit, Date, runtime.Version())
}

// UserAgent identifies mindful to recognizer backends.
func UserAgent() string {
	return "mindful/" + Version
}
