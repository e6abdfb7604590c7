// Package version holds the utgen build identity. Release builds set it via:
// go build -ldflags "-X utgen/cli/internal/version.Version=v1.0.0 -X utgen/cli/internal/version.Commit=abc1234"
package version

// Version is the utgen CLI version. Set at build time for releases.
var Version = "dev"

// Commit is the short git commit hash. Set at build time via ldflags.
var Commit = ""

// String returns the version for display (--version, reports).
// Dev builds with Commit set render as "dev (abc1234)".
func String() string {
	if Version != "dev" || Commit == "" {
		return Version
	}
	return Version + " (" + Commit + ")"
}

// UserAgent is sent on outbound HTTP requests to model servers.
func UserAgent() string {
	if Version == "dev" && Commit != "" {
		return "utgen/dev-" + Commit
	}
	return "utgen/" + Version
}
