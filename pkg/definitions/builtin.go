package definitions

import (
	"github.com/plusconf/plusconf/pkg/engine"
)

// Names of built-in configs referenced by the resolver.
const (
	ConfigPage                  = "Page"
	ConfigRoute                 = "route"
	ConfigMeta                  = "meta"
	ConfigExtends               = "extends"
	ConfigPrerender             = "prerender"
	ConfigFilesystemRoutingRoot = "filesystemRoutingRoot"
	ConfigOnRenderClient        = "onRenderClient"
	ConfigOnBeforeRender        = "onBeforeRender"
	ConfigOnBeforeRoute         = "onBeforeRoute"
	ConfigOnPrerenderStart      = "onPrerenderStart"
)

// Builtin returns a fresh registry of the per-location built-in configs.
func Builtin() *Registry {
	return NewRegistry(
		builtin(ConfigPage, engine.EnvServerAndClient, withFilePath),
		builtin(ConfigRoute, engine.EnvServerAndClient),
		builtin("guard", engine.EnvServerOnly),
		builtin("iKnowThePerformanceRisksOfAsyncRouteFunctions", engine.EnvServerAndClient),
		builtin(ConfigFilesystemRoutingRoot, engine.EnvConfigOnly),
		builtin("onRenderHtml", engine.EnvServerOnly),
		builtin(ConfigOnRenderClient, engine.EnvClientOnly),
		builtin(ConfigOnBeforeRender, engine.EnvServerOnly),
		builtin("onBeforePrerenderStart", engine.EnvServerOnly),
		builtin("data", engine.EnvServerOnly),
		builtin("passToClient", engine.EnvServerOnly, withCumulative),
		builtin("client", engine.EnvClientOnly, withFilePath),
		builtin("clientRouting", engine.EnvServerAndClient),
		builtin("hydrationCanBeAborted", engine.EnvClientOnly),
		builtin("onHydrationEnd", engine.EnvClientOnly),
		builtin("onPageTransitionStart", engine.EnvClientOnly),
		builtin("onPageTransitionEnd", engine.EnvClientOnly),
		builtin(ConfigPrerender, engine.EnvConfigOnly),
		builtin(ConfigExtends, engine.EnvConfigOnly),
		builtin(ConfigMeta, engine.EnvConfigOnly),
		builtin("isClientSideRenderable", engine.EnvServerAndClient, withComputed(computeIsClientSideRenderable)),
		builtin("onBeforeRenderEnv", engine.EnvClientOnly, withComputed(computeOnBeforeRenderEnv)),
	)
}

// BuiltinGlobal returns a fresh registry of the global built-in configs.
func BuiltinGlobal() *Registry {
	return NewRegistry(
		builtin(ConfigOnPrerenderStart, engine.EnvServerOnly),
		builtin(ConfigOnBeforeRoute, engine.EnvServerAndClient),
		builtin(ConfigPrerender, engine.EnvConfigOnly),
		builtin("extensions", engine.EnvConfigOnly),
		builtin("disableAutoFullBuild", engine.EnvConfigOnly),
		builtin("includeAssetsImportedByServer", engine.EnvConfigOnly),
		builtin("baseAssets", engine.EnvConfigOnly),
		builtin("baseServer", engine.EnvConfigOnly),
		builtin("redirects", engine.EnvConfigOnly),
		builtin("trailingSlash", engine.EnvConfigOnly),
		builtin("disableUrlNormalization", engine.EnvConfigOnly),
	)
}

var globalNames = BuiltinGlobal().Names()

// GlobalNames returns the names of global built-in configs.
func GlobalNames() []string {
	out := make([]string, len(globalNames))
	copy(out, globalNames)
	return out
}

// IsGlobalConfig reports whether name may only be defined at a global location.
// prerender is both a page config and a global config and is never global-only.
func IsGlobalConfig(name string) bool {
	if name == ConfigPrerender {
		return false
	}
	for _, n := range globalNames {
		if n == name {
			return true
		}
	}
	return false
}

// IsDefiningPage reports whether defining name makes a location a page.
func IsDefiningPage(name string) bool {
	return name == ConfigPage || name == ConfigRoute
}

type option func(d *Definition)

func builtin(name string, env engine.Environment, opts ...option) *Definition {
	d := &Definition{Name: name, Env: env, Builtin: true}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func withFilePath(d *Definition)   { d.ValueIsFilePath = true }
func withCumulative(d *Definition) { d.Cumulative = true }

func withComputed(fn ComputeFunc) option {
	return func(d *Definition) { d.Computed = fn }
}

// isConfigSet reports whether the page has a non-null winning source for name.
func isConfigSet(page *engine.PageConfig, name string) bool {
	sources := page.Sources[name]
	if len(sources) == 0 {
		return false
	}
	first := sources[0]
	return !(first.HasValue && first.Value == nil)
}

func computeIsClientSideRenderable(page *engine.PageConfig) (interface{}, bool) {
	if !isConfigSet(page, ConfigOnRenderClient) || !isConfigSet(page, ConfigPage) {
		return false, true
	}
	return page.Sources[ConfigPage][0].Env != engine.EnvServerOnly, true
}

func computeOnBeforeRenderEnv(page *engine.PageConfig) (interface{}, bool) {
	if !isConfigSet(page, ConfigOnBeforeRender) {
		return nil, true
	}
	return string(page.Sources[ConfigOnBeforeRender][0].Env), true
}
