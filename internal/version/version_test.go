package version

import (
	"runtime/debug"
	"testing"
)

func TestApplyBuildSettings(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123abcd"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		{Key: "vcs.modified", Value: "true"},
	}

	t.Run("fills unset fields", func(t *testing.T) {
		info := Info{GitCommit: "unknown", BuildDate: "unknown"}
		applyBuildSettings(&info, settings)
		if info.GitCommit != "0123abcd" || info.BuildDate != "2026-01-02T03:04:05Z" || !info.Modified {
			t.Errorf("got %+v", info)
		}
	})

	t.Run("keeps ldflags values", func(t *testing.T) {
		info := Info{GitCommit: "release", BuildDate: "today"}
		applyBuildSettings(&info, settings)
		if info.GitCommit != "release" || info.BuildDate != "today" {
			t.Errorf("got %+v", info)
		}
	})
}

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.GoVersion == "" || info.Platform == "" {
		t.Errorf("runtime fields missing: %+v", info)
	}
}
