// Package version reports build information, set with -ldflags at build
// time and completed from the Go build info.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// BuildVersion is the application version
	BuildVersion = "dev"
	// BuildCommit is the VCS revision
	BuildCommit = ""
	// BuildDate is the VCS commit time
	BuildDate = ""
)

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if BuildCommit == "" {
				BuildCommit = s.Value
			}
		case "vcs.time":
			if BuildDate == "" {
				BuildDate = s.Value
			}
		}
	}
}

// Info returns the build information as labels.
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"go_version": runtime.Version(),
		"commit":     orUnknown(BuildCommit),
		"build_date": orUnknown(BuildDate),
	}
}

// String returns a one-line version description.
func String() string {
	return fmt.Sprintf("osmxray %s (commit %s, built %s, %s)",
		BuildVersion, orUnknown(BuildCommit), orUnknown(BuildDate), runtime.Version())
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
