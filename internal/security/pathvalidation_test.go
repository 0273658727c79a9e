package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(dir, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"file in dir", filepath.Join(dir, "plot.png"), false},
		{"new subdir", filepath.Join(dir, "a", "b", "plot.png"), false},
		{"dot dot", filepath.Join(dir, "..", "plot.png"), true},
		{"other dir", filepath.Join(outside, "plot.png"), true},
		{"through symlink", filepath.Join(link, "plot.png"), true},
		{"dir itself", dir, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, dir)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateOutputPath(t *testing.T) {
	extra := t.TempDir()
	if err := ValidateOutputPath(filepath.Join(os.TempDir(), "timeline.png")); err != nil {
		t.Errorf("temp dir path rejected: %v", err)
	}
	if err := ValidateOutputPath("timeline.png"); err != nil {
		t.Errorf("relative path rejected: %v", err)
	}
	if err := ValidateOutputPath(filepath.Join(extra, "x.png"), extra); err != nil {
		t.Errorf("extra dir rejected: %v", err)
	}
	if err := ValidateOutputPath("/proc/self/plot.png"); err == nil {
		t.Error("expected /proc path to be rejected")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                  "unknown",
		"bench run 1":       "bench_run_1",
		"../../etc/passwd":  "etc_passwd",
		"a//b":              "a_b",
		"session_2026-03.1": "session_2026-03.1",
		"___":               "unknown",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
