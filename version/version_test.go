package version

import "testing"

func restore() func() {
	v, c, b := Version, GitCommit, BuildTime
	return func() { Version, GitCommit, BuildTime = v, c, b }
}

func TestGetLinkedValues(t *testing.T) {
	defer restore()()
	Version, GitCommit, BuildTime = "1.2.0", "abcdef0123", "2026-01-15T10:30:00Z"

	info := Get()
	if info.Version != "1.2.0" {
		t.Errorf("expected 1.2.0, got %q", info.Version)
	}
	if info.Commit != "abcdef0" {
		t.Errorf("expected commit truncated to 7, got %q", info.Commit)
	}
	if info.BuildTime != "2026-01-15T10:30:00Z" {
		t.Errorf("unexpected build time %q", info.BuildTime)
	}
}

func TestShort(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "dev"},
		{Info{Version: "1.0.0", Commit: "abc1234"}, "1.0.0-abc1234"},
		{Info{Version: "1.0.0", Commit: "abc1234", Dirty: true}, "1.0.0-abc1234-dirty"},
		{Info{Version: "1.0.0", Dirty: true}, "1.0.0"},
	}
	for _, tt := range tests {
		if got := tt.info.Short(); got != tt.want {
			t.Errorf("Short(%+v) = %q, want %q", tt.info, got, tt.want)
		}
	}
}

func TestIsRelease(t *testing.T) {
	if (Info{Version: "dev"}).IsRelease() {
		t.Error("dev must not be a release")
	}
	if (Info{Version: "1.0.0", Dirty: true}).IsRelease() {
		t.Error("dirty build must not be a release")
	}
	if !(Info{Version: "1.0.0"}).IsRelease() {
		t.Error("expected 1.0.0 to be a release")
	}
}
