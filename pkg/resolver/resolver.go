// Package resolver computes the resolved configuration of every page of a
// project from its plus files.
//
// A pass discovers plus files, loads config files (following extends) and
// the value files needed at config time, then resolves the ordered value
// sources of every config at every page-defining location. Final values are
// computed three times: after plain resolution, after effects and after
// computed configs.
package resolver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/plusconf/plusconf/pkg/definitions"
	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/location"
	"github.com/plusconf/plusconf/pkg/plusfile"
	"github.com/plusconf/plusconf/pkg/telemetry"
)

// Options configures a Resolver.
type Options struct {
	// Root is the absolute project root.
	Root string

	// Ignore are extra glob patterns, relative to Root, skipped by discovery.
	Ignore []string

	Discoverer engine.FileDiscoverer
	Loader     engine.ModuleLoader
	Imports    engine.ImportResolver

	// Telemetry defaults to telemetry.NopTelemetry().
	Telemetry *telemetry.Telemetry
}

// Resolver runs resolution passes.
type Resolver struct {
	opts   Options
	tel    *telemetry.Telemetry
	logger *telemetry.Logger
}

// New creates a resolver.
func New(opts Options) *Resolver {
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.NopTelemetry()
	}
	return &Resolver{
		opts:   opts,
		tel:    tel,
		logger: tel.Logger.NewComponentLogger("resolver"),
	}
}

// Resolve runs one full pass with a fresh pass id.
func (r *Resolver) Resolve(ctx context.Context) (*engine.Result, error) {
	return r.ResolvePass(ctx, uuid.NewString())
}

// ResolvePass runs one full pass. All pass-scoped state is created here and
// dropped when the pass returns.
func (r *Resolver) ResolvePass(ctx context.Context, passID string) (result *engine.Result, err error) {
	startedAt := time.Now()
	logger := r.logger.WithPassID(passID)

	ctx, span := r.tel.Tracer.StartPassSpan(logger.WithContext(ctx), passID)
	defer func() { telemetry.EndSpan(span, err) }()

	if pubErr := r.tel.Events.PublishPassStarted(passID); pubErr != nil {
		logger.WithError(pubErr).Debug("failed to publish event")
	}

	p := &pass{
		id:       passID,
		opts:     r.opts,
		logger:   logger,
		warner:   r.tel.NewWarner(logger),
		filesEnv: newEnvTable(),
		loaded:   make(map[string]struct{}),
	}

	result, err = p.run(ctx)
	duration := time.Since(startedAt)
	if err != nil {
		r.tel.Metrics.RecordPass("failed", duration, 0)
		r.tel.Metrics.RecordError(errorClass(err), engine.CodeOf(err))
		if pubErr := r.tel.Events.PublishPassFailed(passID, err.Error()); pubErr != nil {
			logger.WithError(pubErr).Debug("failed to publish event")
		}
		return nil, err
	}

	result.StartedAt = startedAt
	result.Duration = duration
	r.tel.Metrics.RecordPass("success", duration, len(result.Pages))
	if pubErr := r.tel.Events.PublishPassCompleted(passID, len(result.Pages), len(result.Warnings), duration); pubErr != nil {
		logger.WithError(pubErr).Debug("failed to publish event")
	}
	logger.Infof("resolved %d page(s) in %s", len(result.Pages), duration.Round(time.Millisecond))
	return result, nil
}

func errorClass(err error) string {
	switch {
	case engine.IsUsage(err):
		return string(engine.ErrorClassUsage)
	case engine.IsLoad(err):
		return string(engine.ErrorClassLoad)
	default:
		return "other"
	}
}

// locationFiles are the interface files placed at one location.
type locationFiles struct {
	ID    string
	Files []*plusfile.InterfaceFile
}

// pass holds the state of one resolution pass.
type pass struct {
	id     string
	opts   Options
	logger *telemetry.Logger
	warner *telemetry.Warner

	// filesEnv tracks the environments of values imported from each file.
	filesEnv *envTable

	mu     sync.Mutex
	loaded map[string]struct{}

	locations  []string
	byLocation map[string][]*plusfile.InterfaceFile
}

func (p *pass) run(ctx context.Context) (*engine.Result, error) {
	if err := p.loadInterfaceFiles(ctx); err != nil {
		return nil, err
	}

	global, settings, err := p.globalConfigs()
	if err != nil {
		return nil, err
	}

	pages, err := p.resolvePages(ctx)
	if err != nil {
		return nil, err
	}

	if err := p.checkUnknownConfigs(); err != nil {
		return nil, err
	}

	return &engine.Result{
		PassID:         p.id,
		Pages:          pages,
		Global:         global,
		GlobalSettings: settings,
		Warnings:       p.warner.Warnings(),
		Dependencies:   p.dependencies(),
	}, nil
}

// load executes a file and records it as a dependency of the pass.
func (p *pass) load(ctx context.Context, fp engine.FilePath) (engine.Exports, error) {
	exports, err := p.opts.Loader.Load(ctx, fp)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.loaded[fp.Key()] = struct{}{}
	p.mu.Unlock()
	return exports, nil
}

func (p *pass) loadValueFile(ctx context.Context, f *plusfile.InterfaceFile) error {
	exports, err := p.load(ctx, f.FilePath)
	if err != nil {
		return err
	}
	return f.SetValueExports(exports)
}

func (p *pass) dependencies() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	deps := make([]string, 0, len(p.loaded))
	for dep := range p.loaded {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

// loadInterfaceFiles discovers plus files, loads every config file with its
// extends and eagerly loads value files of built-in config-only configs.
func (p *pass) loadInterfaceFiles(ctx context.Context) error {
	files, err := p.opts.Discoverer.Discover(ctx, p.opts.Root, p.opts.Ignore)
	if err != nil {
		return err
	}

	var configPaths []engine.FilePath
	var valueFiles []*plusfile.InterfaceFile
	for _, fp := range files {
		name, err := plusfile.ConfigName(fp.Path)
		if err != nil {
			return err
		}
		switch name {
		case "":
			continue
		case "config":
			configPaths = append(configPaths, fp)
		default:
			valueFiles = append(valueFiles, plusfile.NewValueFile(fp, name))
		}
	}
	sort.Slice(configPaths, func(i, j int) bool { return configPaths[i].Path < configPaths[j].Path })
	sort.Slice(valueFiles, func(i, j int) bool { return valueFiles[i].FilePath.Path < valueFiles[j].FilePath.Path })

	configFiles := make([][]*plusfile.InterfaceFile, len(configPaths))
	g, gctx := errgroup.WithContext(ctx)
	for i, fp := range configPaths {
		g.Go(func() error {
			cf, extends, err := p.loadConfigFile(gctx, fp, nil)
			if err != nil {
				return err
			}
			f, err := plusfile.FromConfigFile(cf, false)
			if err != nil {
				return err
			}
			chain := []*plusfile.InterfaceFile{f}
			for _, ext := range extends {
				ef, err := plusfile.FromConfigFile(ext, true)
				if err != nil {
					return err
				}
				chain = append(chain, ef)
			}
			configFiles[i] = chain
			return nil
		})
	}
	builtin, builtinGlobal := definitions.Builtin(), definitions.BuiltinGlobal()
	for _, vf := range valueFiles {
		if !isBuiltinConfigOnly(vf.ConfigName, builtin, builtinGlobal) {
			continue
		}
		g.Go(func() error {
			return p.loadValueFile(gctx, vf)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.byLocation = make(map[string][]*plusfile.InterfaceFile)
	for i, fp := range configPaths {
		loc := location.ID(fp.Path)
		p.byLocation[loc] = append(p.byLocation[loc], configFiles[i]...)
	}
	for _, vf := range valueFiles {
		loc := location.ID(vf.FilePath.Path)
		p.byLocation[loc] = append(p.byLocation[loc], vf)
	}
	for loc := range p.byLocation {
		p.locations = append(p.locations, loc)
	}
	sort.Strings(p.locations)

	p.logger.Debugf("loaded %d config file(s) and %d value file(s) at %d location(s)",
		len(configPaths), len(valueFiles), len(p.locations))
	return nil
}

func isBuiltinConfigOnly(name string, registries ...*definitions.Registry) bool {
	for _, r := range registries {
		if def, ok := r.Get(name); ok && def.Env == engine.EnvConfigOnly {
			return true
		}
	}
	return false
}

// relevantFiles returns the interface files inherited by loc, grouped by
// location, most specific location first.
func (p *pass) relevantFiles(loc string) []locationFiles {
	var out []locationFiles
	for _, ancestor := range location.Ancestors(p.locations, loc) {
		out = append(out, locationFiles{ID: ancestor, Files: p.byLocation[ancestor]})
	}
	return out
}

// definitionsFor returns the built-in definitions merged with every meta
// config of the relevant files, in traversal order.
func (p *pass) definitionsFor(relevant []locationFiles) (*definitions.Registry, error) {
	defs := definitions.Builtin()
	for _, lf := range relevant {
		for _, f := range lf.Files {
			entry, ok := f.Configs[definitions.ConfigMeta]
			if !ok {
				continue
			}
			engine.Assert(entry.Loaded, "meta of %s is not loaded", f.FilePath.ShowToUser())
			definedAt := "Config meta defined at " + f.FilePath.ShowToUser()
			if err := defs.ApplyMeta(entry.Value, definedAt); err != nil {
				return nil, err
			}
		}
	}
	return defs, nil
}

func isDefiningPage(files []*plusfile.InterfaceFile) bool {
	for _, f := range files {
		for name := range f.Configs {
			if definitions.IsDefiningPage(name) {
				return true
			}
		}
	}
	return false
}

type pageJob struct {
	loc      string
	relevant []locationFiles
	defs     *definitions.Registry
}

func (p *pass) resolvePages(ctx context.Context) ([]*engine.PageConfig, error) {
	var jobs []pageJob
	for _, loc := range p.locations {
		if !isDefiningPage(p.byLocation[loc]) {
			continue
		}
		relevant := p.relevantFiles(loc)
		defs, err := p.definitionsFor(relevant)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, pageJob{loc: loc, relevant: relevant, defs: defs})
	}

	if err := p.loadCustomConfigOnly(ctx, jobs); err != nil {
		return nil, err
	}

	pages := make([]*engine.PageConfig, 0, len(jobs))
	for _, job := range jobs {
		page, err := p.resolvePage(ctx, job)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

// loadCustomConfigOnly loads the value files of custom config-only configs.
// Each file is loaded once even if several pages inherit it.
func (p *pass) loadCustomConfigOnly(ctx context.Context, jobs []pageJob) error {
	seen := make(map[*plusfile.InterfaceFile]struct{})
	var pending []*plusfile.InterfaceFile
	for _, job := range jobs {
		for _, lf := range job.relevant {
			for _, f := range lf.Files {
				if !f.IsValueFile() || definitions.IsGlobalConfig(f.ConfigName) {
					continue
				}
				if err := checkConfigExists(f.ConfigName, job.defs.Names(), f.FilePath.ShowToUser()); err != nil {
					return err
				}
				if job.defs.MustGet(f.ConfigName).Env != engine.EnvConfigOnly || f.IsLoaded() {
					continue
				}
				if _, ok := seen[f]; ok {
					continue
				}
				seen[f] = struct{}{}
				pending = append(pending, f)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range pending {
		g.Go(func() error {
			return p.loadValueFile(gctx, f)
		})
	}
	return g.Wait()
}

func (p *pass) resolvePage(ctx context.Context, job pageJob) (*engine.PageConfig, error) {
	sources := make(engine.ValueSources)
	for _, name := range job.defs.Names() {
		if definitions.IsGlobalConfig(name) {
			continue
		}
		srcs, err := p.resolveSources(name, job.defs.MustGet(name), job.relevant)
		if err != nil {
			return nil, err
		}
		if len(srcs) > 0 {
			sources[name] = srcs
		}
	}

	route, isErrorPage, err := routeFilesystem(job.loc, sources)
	if err != nil {
		return nil, err
	}

	page := &engine.PageConfig{
		LocationID:      job.loc,
		IsErrorPage:     isErrorPage,
		RouteFilesystem: route,
		Sources:         sources,
	}
	if page.Values, err = configValues(sources, job.defs); err != nil {
		return nil, err
	}

	if err := p.applyEffects(ctx, page, job.defs); err != nil {
		return nil, err
	}
	if page.Values, err = configValues(sources, job.defs); err != nil {
		return nil, err
	}

	applyComputed(page, job.defs)
	if page.Values, err = configValues(sources, job.defs); err != nil {
		return nil, err
	}
	return page, nil
}

// checkUnknownConfigs rejects config names that no definition covers.
func (p *pass) checkUnknownConfigs() error {
	for _, loc := range p.locations {
		defs, err := p.definitionsFor(p.relevantFiles(loc))
		if err != nil {
			return err
		}
		known := defs.Names()
		for _, f := range p.byLocation[loc] {
			for _, name := range f.ConfigNames() {
				if err := checkConfigExists(name, known, f.FilePath.ShowToUser()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
