// Package buildinfo holds build-time metadata injected via -ldflags.
package buildinfo

// Version is the semantic version or tag for this build.
// Inject via: -X github.com/garyellow/messenger-bot-go/internal/buildinfo.Version=...
var Version = ""

// Commit is the git commit SHA for this build.
// Inject via: -X github.com/garyellow/messenger-bot-go/internal/buildinfo.Commit=...
var Commit = ""

// BuildDate is the RFC3339 build timestamp.
// Inject via: -X github.com/garyellow/messenger-bot-go/internal/buildinfo.BuildDate=...
var BuildDate = ""

// Summary renders the build metadata as "version (commit, date)", using
// "dev" and "unknown" for values that were not injected.
func Summary() string {
	version := Version
	if version == "" {
		version = "dev"
	}
	commit := Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	if commit == "" {
		commit = "unknown"
	}
	date := BuildDate
	if date == "" {
		date = "unknown"
	}
	return version + " (" + commit + ", " + date + ")"
}
