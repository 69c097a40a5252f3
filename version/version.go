package version

import (
	"runtime/debug"
	"strings"
)

// Set at build time with -ldflags "-X".
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info describes the running reactd build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
	GoVersion string `json:"go_version"`
	Dirty     bool   `json:"dirty,omitempty"`
}

// Get returns the linked values, filling the commit, build time and Go
// version from the embedded build info when they were not linked.
func Get() Info {
	info := Info{Version: Version, Commit: GitCommit, BuildTime: BuildTime}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		}
	}
	if len(info.Commit) > 7 {
		info.Commit = info.Commit[:7]
	}
	return info
}

// Short returns "version", "version-commit" or "version-commit-dirty".
func (i Info) Short() string {
	parts := []string{i.Version}
	if i.Commit != "" {
		parts = append(parts, i.Commit)
		if i.Dirty {
			parts = append(parts, "dirty")
		}
	}
	return strings.Join(parts, "-")
}

// IsRelease reports whether the build carries a linked version and a clean tree.
func (i Info) IsRelease() bool {
	return i.Version != "dev" && !i.Dirty
}

// Short is Get().Short().
func Short() string { return Get().Short() }
