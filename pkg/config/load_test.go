package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		wantFile  string
		wantErr   string
		checkFunc func(t *testing.T, s *Settings)
	}{
		{
			name: "defaults without a settings file",
			checkFunc: func(t *testing.T, s *Settings) {
				if s.Root != "." || s.Watch.Debounce != 100*time.Millisecond {
					t.Errorf("unexpected defaults: %+v", s)
				}
				if s.Telemetry.ServiceName != "plusconf" {
					t.Errorf("telemetry defaults missing")
				}
			},
		},
		{
			name: "yaml overrides defaults",
			files: map[string]string{"/site/plusconf.yaml": `
root: src
ignore: ["drafts/**"]
loader:
  timeout: 2s
watch:
  debounce: 250ms
telemetry:
  logging:
    level: debug
`},
			wantFile: "/site/plusconf.yaml",
			checkFunc: func(t *testing.T, s *Settings) {
				if s.Root != "src" || len(s.Ignore) != 1 || s.Ignore[0] != "drafts/**" {
					t.Errorf("unexpected settings: %+v", s)
				}
				if s.Loader.Timeout != 2*time.Second || s.Watch.Debounce != 250*time.Millisecond {
					t.Errorf("durations not decoded: %+v", s)
				}
				if s.OutDir != "dist" || s.Telemetry.Logging.Format != "console" {
					t.Errorf("defaults must survive a partial file: %+v", s)
				}
				if s.Telemetry.Logging.Level != "debug" {
					t.Errorf("log level = %s", s.Telemetry.Logging.Level)
				}
			},
		},
		{
			name:     "yml extension",
			files:    map[string]string{"/site/plusconf.yml": "out_dir: build\n"},
			wantFile: "/site/plusconf.yml",
			checkFunc: func(t *testing.T, s *Settings) {
				if s.OutDir != "build" {
					t.Errorf("out_dir = %s", s.OutDir)
				}
			},
		},
		{
			name: "cue settings",
			files: map[string]string{"/site/plusconf.cue": `
root: "pages-root"
package_dirs: ["vendor", "node_modules"]
watch: debounce: "50ms"
`},
			wantFile: "/site/plusconf.cue",
			checkFunc: func(t *testing.T, s *Settings) {
				if s.Root != "pages-root" || len(s.PackageDirs) != 2 || s.Watch.Debounce != 50*time.Millisecond {
					t.Errorf("unexpected settings: %+v", s)
				}
			},
		},
		{
			name:     "empty file keeps defaults",
			files:    map[string]string{"/site/plusconf.yaml": ""},
			wantFile: "/site/plusconf.yaml",
			checkFunc: func(t *testing.T, s *Settings) {
				if s.Root != "." {
					t.Errorf("root = %s", s.Root)
				}
			},
		},
		{
			name:    "unknown key",
			files:   map[string]string{"/site/plusconf.yaml": "rooot: src\n"},
			wantErr: "rooot",
		},
		{
			name:    "invalid log level",
			files:   map[string]string{"/site/plusconf.yaml": "telemetry:\n  logging:\n    level: loud\n"},
			wantErr: "oneof",
		},
		{
			name:    "negative debounce",
			files:   map[string]string{"/site/plusconf.yaml": "watch:\n  debounce: -1s\n"},
			wantErr: "Debounce",
		},
		{
			name:    "out dir escaping the root",
			files:   map[string]string{"/site/plusconf.yaml": "out_dir: ../dist\n"},
			wantErr: "OutDir",
		},
		{
			name:    "invalid cue",
			files:   map[string]string{"/site/plusconf.cue": "root: 1 & 2\n"},
			wantErr: "failed to evaluate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for name, content := range tt.files {
				if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			s, file, err := Load(fs, "/site")
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if file != tt.wantFile {
				t.Errorf("file = %q, want %q", file, tt.wantFile)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, s)
			}
		})
	}
}

func TestSettingsPaths(t *testing.T) {
	s := Default()
	s.Root = "src"
	s.PackageDirs = []string{"node_modules", "/opt/shared"}

	if got := s.RootDir("/site"); got != "/site/src" {
		t.Errorf("RootDir() = %s", got)
	}
	pkgs := s.PackagePaths("/site")
	if pkgs[0] != "/site/src/node_modules" || pkgs[1] != "/opt/shared" {
		t.Errorf("PackagePaths() = %v", pkgs)
	}
	if got := s.StorePath("/site"); got != "/site/.plusconf/passes.db" {
		t.Errorf("StorePath() = %s", got)
	}
	s.Store.Path = ""
	if got := s.StorePath("/site"); got != "" {
		t.Errorf("a disabled store has no path, got %s", got)
	}
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/etc/site.yaml", []byte("root: /srv/site\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadFile(fs, "/etc/site.yaml")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if s.RootDir("/etc") != "/srv/site" {
		t.Errorf("RootDir() = %s", s.RootDir("/etc"))
	}

	if _, err := LoadFile(fs, "/etc/missing.yaml"); err == nil {
		t.Error("expected an error for a missing file")
	}
}
