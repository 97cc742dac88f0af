package apiflow

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is sent in the User-Agent header. Release builds override it,
// along with Commit and Built, through -ldflags "-X".
var (
	Version = "0.3.0"
	Commit  = ""
	Built   = ""
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
}

// ReadBuild reports the linker-injected values, falling back to the VCS
// stamp the go command embeds when they were not set.
func ReadBuild() Build {
	b := Build{Version: Version, Commit: Commit, Built: Built, GoVersion: runtime.Version()}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = s.Value
				}
			case "vcs.time":
				if b.Built == "" {
					b.Built = s.Value
				}
			case "vcs.modified":
				b.Modified = s.Value == "true"
			}
		}
	}

	if len(b.Commit) > 12 {
		b.Commit = b.Commit[:12]
	}
	if b.Commit == "" {
		b.Commit = "unknown"
	}
	if b.Built == "" {
		b.Built = "unknown"
	}
	return b
}

func (b Build) String() string {
	commit := b.Commit
	if b.Modified {
		commit += "-dirty"
	}
	return fmt.Sprintf("apiflow %s (%s, %s, %s)", b.Version, commit, b.Built, b.GoVersion)
}
