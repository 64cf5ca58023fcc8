// Package version holds build information set at link time:
//
//	go build -ldflags "-X github.com/aristath/riskcore/internal/version.Version=v1.2.0"
package version

var (
	// Version is the release version
	Version = "dev"
	// Commit is the git commit the binary was built from
	Commit = "unknown"
)
