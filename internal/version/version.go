// Package version reports the wsecho build identity.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/wsecho/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/wsecho/internal/version.Commit=abc1234"
//
// Unset values are filled from the VCS stamp Go embeds in the binary.
var (
	Version = ""
	Commit  = ""
)

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Modified  bool   `json:"modified"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

var (
	once sync.Once
	info Info
)

// Get returns the build info, resolving it on first use.
func Get() Info {
	once.Do(func() {
		info = resolve(Version, Commit, readSettings())
	})
	return info
}

func readSettings() map[string]string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	settings := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		settings[s.Key] = s.Value
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		settings["main.version"] = v
	}
	return settings
}

// resolve merges ldflags values with build settings.
func resolve(version, commit string, settings map[string]string) Info {
	in := Info{
		Version:   version,
		Commit:    commit,
		Modified:  settings["vcs.modified"] == "true",
		BuildTime: settings["vcs.time"],
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if in.Commit == "" {
		in.Commit = settings["vcs.revision"]
		if len(in.Commit) > 7 {
			in.Commit = in.Commit[:7]
		}
	}
	if in.Commit == "" {
		in.Commit = "unknown"
	}

	if in.Version == "" {
		in.Version = settings["main.version"]
	}
	if in.Version == "" {
		in.Version = "dev"
	}
	return in
}

// String returns the short version, e.g. "v0.3.0".
func String() string {
	return Get().Version
}

// Full returns the version with commit and platform.
func Full() string {
	in := Get()
	commit := in.Commit
	if in.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit: %s, %s, %s)", in.Version, commit, in.GoVersion, in.Platform)
}
