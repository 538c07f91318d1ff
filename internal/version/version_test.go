package version

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		commit      string
		settings    map[string]string
		wantVersion string
		wantCommit  string
		wantDirty   bool
	}{
		{
			name:        "ldflags win",
			version:     "v0.3.0",
			commit:      "abc1234",
			settings:    map[string]string{"vcs.revision": "ffffffffffff"},
			wantVersion: "v0.3.0",
			wantCommit:  "abc1234",
		},
		{
			name:        "vcs stamp",
			settings:    map[string]string{"vcs.revision": "0123456789abcdef", "vcs.modified": "true"},
			wantVersion: "dev",
			wantCommit:  "0123456",
			wantDirty:   true,
		},
		{
			name:        "module version",
			settings:    map[string]string{"main.version": "v1.0.0"},
			wantVersion: "v1.0.0",
			wantCommit:  "unknown",
		},
		{
			name:        "nothing known",
			wantVersion: "dev",
			wantCommit:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolve(tt.version, tt.commit, tt.settings)
			if got.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", got.Version, tt.wantVersion)
			}
			if got.Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", got.Commit, tt.wantCommit)
			}
			if got.Modified != tt.wantDirty {
				t.Errorf("Modified = %v, want %v", got.Modified, tt.wantDirty)
			}
			if got.GoVersion == "" || got.Platform == "" {
				t.Errorf("runtime fields empty: %+v", got)
			}
		})
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, String()+" (commit: ") {
		t.Errorf("Full() = %q, want prefix %q", full, String())
	}
}
