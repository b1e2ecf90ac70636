// Package version identifies the wifiportal build.
//
// The same string is shown by the version command, logged when the daemon
// starts, returned by the status server's /healthz, and advertised in the
// portal's mDNS TXT record, so a client can tell which release a device in
// setup mode runs. Release builds set it with ldflags:
//
//	go build -ldflags="-X github.com/muurk/wifiportal/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/wifiportal/internal/version.Commit=abc123"
//
// Other builds derive a dev-YYYYMMDD version and a short commit from the VCS
// stamp in the binary, falling back to the time the process started.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

var (
	// Version is the release tag, or a dev-YYYYMMDD placeholder
	Version = ""
	// Commit is the short git revision, suffixed -dirty for modified trees
	Commit = ""
)

const shortCommitLength = 7

func init() {
	if Version == "" || Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			v, c := fromBuildSettings(info.Settings)
			if Version == "" {
				Version = v
			}
			if Commit == "" {
				Commit = c
			}
		}
	}

	if Version == "" {
		Version = "dev-" + time.Now().Format("20060102-150405")
	}
	if Commit == "" {
		Commit = "unknown"
	}
}

// fromBuildSettings reads the VCS stamp. Either result is empty when the
// binary was built outside a repository.
func fromBuildSettings(settings []debug.BuildSetting) (version, commit string) {
	var revision, modified, stamp string
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value
		case "vcs.time":
			stamp = setting.Value
		}
	}

	if revision != "" {
		commit = revision
		if len(commit) > shortCommitLength {
			commit = commit[:shortCommitLength]
		}
		if modified == "true" {
			commit += "-dirty"
		}
	}

	// Build info carries no tags
	if t, err := time.Parse(time.RFC3339, stamp); err == nil {
		version = "dev-" + t.Format("20060102")
	}
	return version, commit
}

// Full returns the version with its commit
func Full() string {
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// UserAgent is sent by outbound HTTP clients
func UserAgent() string {
	return "wifiportal/" + Version
}

// Info is the build description printed by the version command
type Info struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the current build description
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}
