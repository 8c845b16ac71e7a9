package version

import "fmt"

var (
	// Version is the semantic version of the binary.
	Version = "0.1.0"
	// GitCommit is populated via -ldflags at build time.
	GitCommit = "dev"
)

// String returns a human-friendly version string.
func String() string {
	return fmt.Sprintf("%s (commit: %s)", Version, GitCommit)
}

// Long returns the version with the commit appended as build metadata.
func Long() string {
	return Version + "+" + GitCommit
}
