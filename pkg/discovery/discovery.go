// Package discovery finds the plus files of a project.
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/loader"
	"github.com/plusconf/plusconf/pkg/plusfile"
	"github.com/plusconf/plusconf/pkg/telemetry"
)

// DefaultIgnore are always skipped.
var DefaultIgnore = []string{"**/node_modules/**", "**/.git/**"}

// SlowThreshold is the duration after which discovery is reported as slow.
const SlowThreshold = 2 * time.Second

// Pattern matches plus files relative to the project root.
var Pattern = "**/+*.{" + strings.Join(loader.Extensions, ",") + "}"

// Options configures a Discoverer.
type Options struct {
	// OutDir is the build output directory, relative to the root. It is ignored.
	OutDir string

	// Interactive enables the slow discovery warning.
	Interactive bool

	// Warner receives the slow discovery warning.
	Warner *telemetry.Warner

	Logger *telemetry.Logger
}

// Discoverer implements engine.FileDiscoverer over an afero filesystem.
type Discoverer struct {
	fs   afero.Fs
	opts Options
	now  func() time.Time
}

// New creates a discoverer.
func New(fs afero.Fs, opts Options) *Discoverer {
	if opts.Logger == nil {
		opts.Logger = telemetry.Nop()
	}
	return &Discoverer{fs: fs, opts: opts, now: time.Now}
}

// Discover walks root and returns every plus file, sorted by path.
func (d *Discoverer) Discover(ctx context.Context, root string, ignore []string) ([]engine.FilePath, error) {
	start := d.now()
	patterns := d.ignorePatterns(ignore)
	logger := d.opts.Logger.NewComponentLogger("discovery")

	var files []engine.FilePath
	err := afero.Walk(d.fs, root, func(abs string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if info.IsDir() {
			if ignored(patterns, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if ignored(patterns, rel) {
			return nil
		}
		if ok, _ := doublestar.Match(Pattern, rel); !ok {
			return nil
		}
		// '+' is reserved outside the first character of a file name.
		if _, err := plusfile.ConfigName("/" + rel); err != nil {
			return err
		}
		files = append(files, engine.FilePath{Abs: abs, Path: "/" + rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	elapsed := d.now().Sub(start)
	logger.Debugf("found %d plus file(s) in %s", len(files), elapsed)
	if d.opts.Interactive && elapsed > SlowThreshold && d.opts.Warner != nil {
		d.opts.Warner.WarnOnce("slow-discovery",
			"Crawling your plus files took "+elapsed.Round(time.Millisecond).String()+
				": make sure to ignore large directories such as build outputs and dependencies.")
	}
	return files, nil
}

func (d *Discoverer) ignorePatterns(extra []string) []string {
	patterns := append([]string{}, DefaultIgnore...)
	if d.opts.OutDir != "" {
		out := strings.Trim(filepath.ToSlash(d.opts.OutDir), "/")
		patterns = append(patterns, out+"/**")
	}
	return append(patterns, extra...)
}

// ignored matches rel against the patterns. Directories are passed with a
// trailing slash so that "dir/**" patterns prune them.
func ignored(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if strings.HasSuffix(rel, "/") {
			if ok, _ := doublestar.Match(p, strings.TrimSuffix(rel, "/")); ok {
				return true
			}
		}
	}
	return false
}
