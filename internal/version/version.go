// Package version exposes build metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/smazurov/nodeexec/internal/version.Version=v1.2.0 \
//	  -X github.com/smazurov/nodeexec/internal/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Fields left unset fall back to the VCS stamp the go command embeds.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

const unset = "unknown"

// Set at link time.
var (
	Version   = "dev"
	GitCommit = unset
	BuildDate = unset
)

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Info describes the running binary.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	Dirty     bool   `json:"dirty,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the link-time metadata, completed from embedded build info.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if bi, ok := readBuildInfo(); ok {
		info.merge(bi)
	}
	return info
}

// merge fills fields the linker left unset. A module version from
// `go install pkg@version` replaces "dev".
func (i *Info) merge(bi *debug.BuildInfo) {
	if i.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		i.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if i.GitCommit == unset && s.Value != "" {
				i.GitCommit = s.Value[:min(len(s.Value), 7)]
			}
		case "vcs.time":
			if i.BuildDate == unset && s.Value != "" {
				i.BuildDate = s.Value
			}
		case "vcs.modified":
			i.Dirty = s.Value == "true"
		}
	}
}

// String renders a one-line summary for the version command.
func (i Info) String() string {
	commit := i.GitCommit
	if i.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("nodeexec %s (commit %s, built %s, %s %s)", i.Version, commit, i.BuildDate, i.GoVersion, i.Platform)
}
