package version

import "fmt"

// Set at build time with -ldflags "-X github.com/nzymedefense/nzyme/internal/version.Version=...".
var (
	Version   = "dev"
	GitSHA    = "unknown"
	BuildTime = "unknown"
)

// String formats the build information for -version output.
func String() string {
	return fmt.Sprintf("nzyme-bandits %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}
