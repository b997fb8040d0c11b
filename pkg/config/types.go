package config

import (
	"path/filepath"
	"time"

	"github.com/plusconf/plusconf/pkg/telemetry"
)

// FileNames are the settings file names, in lookup order.
var FileNames = []string{"plusconf.yaml", "plusconf.yml", "plusconf.cue"}

// Settings is the content of a plusconf.yaml file.
type Settings struct {
	// Root is the directory scanned for plus files, relative to the
	// settings file.
	Root string `yaml:"root" validate:"required"`

	// OutDir is the build output directory. Discovery skips it.
	OutDir string `yaml:"out_dir" validate:"omitempty,excludes=.."`

	// Ignore are extra glob patterns, relative to Root, skipped by discovery.
	Ignore []string `yaml:"ignore" validate:"dive,required"`

	// PackageDirs are searched, in order, for package imports.
	PackageDirs []string `yaml:"package_dirs" validate:"dive,required"`

	Loader LoaderSettings `yaml:"loader"`
	Watch  WatchSettings  `yaml:"watch"`
	Store  StoreSettings  `yaml:"store"`

	Telemetry telemetry.Config `yaml:"telemetry"`
}

// LoaderSettings configures plus file evaluation.
type LoaderSettings struct {
	// Timeout bounds Starlark execution per file and per function call.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

// WatchSettings configures watch mode.
type WatchSettings struct {
	// Debounce is how long the watcher waits for more changes before reloading.
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// StoreSettings configures the pass history database.
type StoreSettings struct {
	// Path of the SQLite database, relative to the settings file.
	// Empty disables the store.
	Path string `yaml:"path"`

	// Retention is how long recorded passes are kept. Zero keeps them forever.
	Retention time.Duration `yaml:"retention" validate:"gte=0"`
}

// Default returns the settings used when no settings file exists.
func Default() *Settings {
	return &Settings{
		Root:        ".",
		OutDir:      "dist",
		PackageDirs: []string{"node_modules"},
		Loader: LoaderSettings{
			Timeout: 5 * time.Second,
		},
		Watch: WatchSettings{
			Debounce: 100 * time.Millisecond,
		},
		Store: StoreSettings{
			Path:      ".plusconf/passes.db",
			Retention: 7 * 24 * time.Hour,
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// RootDir returns the absolute plus file root for settings read from dir.
func (s *Settings) RootDir(dir string) string {
	return abs(dir, s.Root)
}

// PackagePaths returns the absolute package directories.
func (s *Settings) PackagePaths(dir string) []string {
	out := make([]string, len(s.PackageDirs))
	for i, p := range s.PackageDirs {
		out[i] = abs(s.RootDir(dir), p)
	}
	return out
}

// StorePath returns the absolute database path, or "" if the store is disabled.
func (s *Settings) StorePath(dir string) string {
	if s.Store.Path == "" {
		return ""
	}
	if s.Store.Path == ":memory:" {
		return s.Store.Path
	}
	return abs(dir, s.Store.Path)
}

func abs(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}
