// Package version reports the nexus build version.
package version

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
)

//go:embed VERSION
var versionContent string

// Commit and Date are set at build time with -ldflags "-X".
var (
	Commit = "unknown"
	Date   = "unknown"
)

// Get returns the current version, with whitespace trimmed.
func Get() string {
	return strings.TrimSpace(versionContent)
}

// String renders the version with build metadata for `nexus version`.
func String() string {
	return fmt.Sprintf("nexus %s (commit %s, built %s, %s %s/%s)",
		Get(), Commit, Date, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
