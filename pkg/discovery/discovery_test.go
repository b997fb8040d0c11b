package discovery

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/telemetry"
)

func newFs(t *testing.T, files ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, f := range files {
		if err := afero.WriteFile(fs, f, []byte("default = {}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func paths(files []engine.FilePath) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestDiscoverer_Discover(t *testing.T) {
	fs := newFs(t,
		"/project/+config.star",
		"/project/pages/+config.yaml",
		"/project/pages/about/+Page.cue",
		"/project/pages/about/helpers.star",
		"/project/pages/about/+notes.txt",
		"/project/node_modules/lib/+config.star",
		"/project/.git/+config.star",
		"/project/dist/pages/+config.star",
		"/project/legacy/+config.json",
	)

	tests := []struct {
		name      string
		opts      Options
		ignore    []string
		checkFunc func(*testing.T, []engine.FilePath)
	}{
		{
			name: "default ignores",
			checkFunc: func(t *testing.T, files []engine.FilePath) {
				got := strings.Join(paths(files), ",")
				want := "/+config.star,/dist/pages/+config.star,/legacy/+config.json,/pages/+config.yaml,/pages/about/+Page.cue"
				if got != want {
					t.Errorf("Discover() = %s, want %s", got, want)
				}
				if files[0].Abs != "/project/+config.star" {
					t.Errorf("Abs = %q", files[0].Abs)
				}
			},
		},
		{
			name:   "out dir and custom ignore",
			opts:   Options{OutDir: "dist"},
			ignore: []string{"legacy/**"},
			checkFunc: func(t *testing.T, files []engine.FilePath) {
				got := strings.Join(paths(files), ",")
				want := "/+config.star,/pages/+config.yaml,/pages/about/+Page.cue"
				if got != want {
					t.Errorf("Discover() = %s, want %s", got, want)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(fs, tt.opts)
			files, err := d.Discover(context.Background(), "/project", tt.ignore)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.checkFunc(t, files)
		})
	}
}

func TestDiscoverer_SlowWarning(t *testing.T) {
	fs := newFs(t, "/project/pages/+config.star")
	warner := telemetry.NewWarner(telemetry.Nop(), nil, telemetry.NewOnceSet())
	d := New(fs, Options{Interactive: true, Warner: warner})

	calls := 0
	base := time.Now()
	d.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(3 * time.Second)
	}

	if _, err := d.Discover(context.Background(), "/project", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	warnings := warner.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "took 3s") {
		t.Errorf("warnings = %v", warnings)
	}
}

func TestDiscoverer_Cancelled(t *testing.T) {
	fs := newFs(t, "/project/pages/+config.star")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := New(fs, Options{}).Discover(ctx, "/project", nil); err == nil {
		t.Fatal("expected context error")
	}
}

func TestDiscoverer_ReservedCharacter(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantErr string
	}{
		{name: "plus in directory name", file: "/project/pages/+admin/+Page.star", wantErr: "directory name /pages/+admin/"},
		{name: "plus inside file name", file: "/project/pages/about/+Pa+ge.star", wantErr: "only allowed at the beginning of filenames"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFs(t, "/project/pages/+config.star", tt.file)
			_, err := New(fs, Options{}).Discover(context.Background(), "/project", nil)
			if err == nil || !engine.IsUsage(err) || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want usage error containing %q", err, tt.wantErr)
			}
		})
	}
}
