package version

// Version is the indexqueue version, set at build time with
// -ldflags "-X github.com/hashicorp-forge/hermes-indexqueue/internal/version.Version=...".
var Version = "0.1.0-dev"

// GitCommit is the commit the binary was built from.
var GitCommit = ""

// String returns the version with the commit when known.
func String() string {
	if GitCommit == "" {
		return Version
	}
	return Version + " (" + GitCommit + ")"
}
