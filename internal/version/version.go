// Package version carries build metadata, set with -ldflags "-X".
package version

import "fmt"

var (
	// Version is the release version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for a command's -version output.
func String(cmd string) string {
	return fmt.Sprintf("%s v%s (git SHA: %s, built: %s)", cmd, Version, GitSHA, BuildTime)
}
