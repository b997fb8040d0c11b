package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/plusconf/plusconf/pkg/config"
	"github.com/plusconf/plusconf/pkg/discovery"
	"github.com/plusconf/plusconf/pkg/loader"
	"github.com/plusconf/plusconf/pkg/resolver"
	"github.com/plusconf/plusconf/pkg/stores"
	"github.com/plusconf/plusconf/pkg/telemetry"
)

// project is a loaded settings file with the telemetry built from it.
type project struct {
	fs           afero.Fs
	dir          string
	settingsFile string
	settings     *config.Settings
	root         string
	tel          *telemetry.Telemetry
}

// openProject loads the settings of dir, or of the --config file.
func openProject(fs afero.Fs, flags *globalFlags, dir string, adjust ...func(*config.Settings)) (*project, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	p := &project{fs: fs, dir: dir}
	if flags.configPath != "" {
		file, err := filepath.Abs(flags.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", flags.configPath, err)
		}
		if p.settings, err = config.LoadFile(fs, file); err != nil {
			return nil, err
		}
		p.settingsFile = file
		p.dir = filepath.Dir(file)
	} else if p.settings, p.settingsFile, err = config.Load(fs, dir); err != nil {
		return nil, err
	}
	for _, fn := range adjust {
		fn(p.settings)
	}
	p.root = p.settings.RootDir(p.dir)

	telCfg := p.settings.Telemetry
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		telCfg.Logging.Level = level
	}
	if flags.verbose {
		telCfg.Logging.Level = "debug"
	}
	if p.tel, err = telemetry.NewTelemetry(&telCfg); err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return p, nil
}

func (p *project) newResolver(interactive bool) *resolver.Resolver {
	s := p.settings
	return resolver.New(resolver.Options{
		Root:   p.root,
		Ignore: s.Ignore,
		Discoverer: discovery.New(p.fs, discovery.Options{
			OutDir:      s.OutDir,
			Interactive: interactive,
			Warner:      p.tel.NewWarner(nil),
			Logger:      p.tel.Logger,
		}),
		Loader: loader.New(p.fs, loader.Options{
			Timeout: s.Loader.Timeout,
			Logger:  p.tel.Logger,
			Tracer:  p.tel.Tracer,
			Metrics: p.tel.Metrics,
		}),
		Imports:   loader.NewImports(p.fs, p.root, s.PackagePaths(p.dir)),
		Telemetry: p.tel,
	})
}

// openStore opens and migrates the pass history database. It returns nil
// when the store is disabled.
func (p *project) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	path := p.settings.StorePath(p.dir)
	if path == "" {
		return nil, nil
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func (p *project) close(ctx context.Context) {
	if err := p.tel.Shutdown(ctx); err != nil {
		p.tel.Logger.WithError(err).Debug("telemetry shutdown failed")
	}
}

func dirArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return "."
}
