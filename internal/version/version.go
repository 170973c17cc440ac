// Package version holds the EmberKV build identity.
package version

// Version is overridden at build time:
// go build -ldflags "-X github.com/emberkv/emberkv/internal/version.Version=0.3.0"
var Version = "0.3.0-dev"

// BuildTime is overridden at build time:
// go build -ldflags "-X github.com/emberkv/emberkv/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var BuildTime = "unknown"

// String renders the version line printed by `emberkv version`.
func String() string {
	return "emberkv " + Version + " (built " + BuildTime + ")"
}
