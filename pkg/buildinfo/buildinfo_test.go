package buildinfo

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet_ReturnsCorrectDefaults(t *testing.T) {
	info := Get("mailroom")

	if info.Component != "mailroom" {
		t.Errorf("expected Component='mailroom', got %q", info.Component)
	}
	if info.Version != "dev" {
		t.Errorf("expected Version='dev', got %q", info.Version)
	}
	if info.BuildTime != "unknown" {
		t.Errorf("expected BuildTime='unknown', got %q", info.BuildTime)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("expected GoVersion=%q, got %q", runtime.Version(), info.GoVersion)
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("unexpected Platform %q", info.Platform)
	}
}

func TestString_CustomValues(t *testing.T) {
	origVersion, origCommit, origBuildTime := Version, Commit, BuildTime
	defer func() {
		Version, Commit, BuildTime = origVersion, origCommit, origBuildTime
	}()

	Version = "v0.3.0"
	Commit = "4f1c2aa"
	BuildTime = "2025-11-02T09:00:00Z"

	expected := "v0.3.0 (4f1c2aa, 2025-11-02T09:00:00Z)"
	if got := String(); got != expected {
		t.Errorf("expected String()=%q, got %q", expected, got)
	}
}

func TestString_DefaultFormat(t *testing.T) {
	got := String()
	if !strings.HasPrefix(got, "dev (") || !strings.HasSuffix(got, ", unknown)") {
		t.Errorf("unexpected default String() %q", got)
	}
}
