// Package build describes the running binary. Version is set at link time:
//
//	go build -ldflags "-X github.com/keyapp-labs/flowkit/build.Version=v1.2.0" ./cmd/flowsim
//
// The VCS revision and Go version come from the build info the toolchain embeds.
package build

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Version of the binary, "dev" unless set with -ldflags.
var Version = "dev" //nolint:gochecknoglobals

// Info contains build metadata of the running binary.
type Info struct {
	Version      string            `json:"version"`
	GitCommit    string            `json:"gitCommit,omitempty"`
	GitDate      string            `json:"gitDate,omitempty"`
	Modified     bool              `json:"modified,omitempty"`
	GoVersion    string            `json:"goVersion,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

var current = sync.OnceValue(func() Info { //nolint:gochecknoglobals
	bi, _ := debug.ReadBuildInfo()

	return FromBuildInfo(bi)
})

// Current returns the running binary's Info.
func Current() Info {
	return current()
}

// FromBuildInfo extracts Info from toolchain build info, which may be nil.
func FromBuildInfo(bi *debug.BuildInfo) Info {
	info := Info{Version: Version}
	if bi == nil {
		return info
	}

	info.GoVersion = bi.GoVersion

	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.GitCommit = s.Value
		case "vcs.time":
			info.GitDate = s.Value
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}

	if len(bi.Deps) > 0 {
		info.Dependencies = make(map[string]string, len(bi.Deps))

		for _, dep := range bi.Deps {
			info.Dependencies[dep.Path] = dep.Version
		}
	}

	return info
}

// LogValue logs the fields that identify a build.
func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", i.Version),
		slog.String("commit", i.GitCommit),
		slog.Bool("modified", i.Modified),
		slog.String("go", i.GoVersion),
	)
}
