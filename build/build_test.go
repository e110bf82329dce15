package build

import (
	"log/slog"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBuildInfo(t *testing.T) {
	t.Parallel()

	info := FromBuildInfo(&debug.BuildInfo{
		GoVersion: "go1.25.0",
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-03-01T12:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "GOOS", Value: "linux"},
		},
		Deps: []*debug.Module{{Path: "github.com/alitto/pond/v2", Version: "v2.6.0"}},
	})

	assert.Equal(t, Info{
		Version:      Version,
		GitCommit:    "abc123",
		GitDate:      "2026-03-01T12:00:00Z",
		Modified:     true,
		GoVersion:    "go1.25.0",
		Dependencies: map[string]string{"github.com/alitto/pond/v2": "v2.6.0"},
	}, info)
}

func TestFromNilBuildInfo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Info{Version: Version}, FromBuildInfo(nil))
}

func TestCurrent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Version, Current().Version)
	assert.Equal(t, Current(), Current())
}

func TestLogValue(t *testing.T) {
	t.Parallel()

	v := Info{Version: "v1.0.0", GitCommit: "abc"}.LogValue()
	assert.Equal(t, slog.KindGroup, v.Kind())
	assert.Len(t, v.Group(), 4)
}
