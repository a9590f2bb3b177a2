// Copyright 2026 Mandatevault Ltd.

// Package version holds the build version information reported by the
// debug endpoints.
package version

// Version describes the current version of the code being run.
type Version struct {
	GitCommit string
	Version   string
}

// VersionInfo describes the currently running server. The fields are
// set at build time via -ldflags.
var VersionInfo = Version{
	GitCommit: "unknown git commit",
	Version:   "unknown version",
}
