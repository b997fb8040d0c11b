// Package engine provides the core types and interfaces shared by the plusconf resolver.
//
// # Overview
//
// plusconf resolves, for every location of a project tree, the final set of named
// configuration values contributed by plus files ("+config.star", "+Page.yaml", ...)
// placed at many depths. This package holds the data model of a resolution pass:
//
//   - Environment: where a config value may be evaluated
//   - FilePath and DefinedAtFileInfo: provenance of every value
//   - ValueSource: one contribution of a config value at a location
//   - ConfigValue: the final value of a config, with its definition site
//   - PageConfig: the resolved configuration of one page-defining location
//   - Result: the output of one pass (pages, global configs, warnings)
//   - Set: an insertion-ordered set used by cumulative configs
//
// # Collaborators
//
// Discovery, module loading and import resolution are behind interfaces so the
// resolver can be driven by in-memory fixtures:
//
//	type FileDiscoverer interface {
//	    Discover(ctx context.Context, root string, ignore []string) ([]FilePath, error)
//	}
//
//	type ModuleLoader interface {
//	    Load(ctx context.Context, file FilePath) (Exports, error)
//	}
//
// # Errors
//
// Errors are classified with ErrorClass:
//
//   - usage: a user-authoring mistake, reported with a file-qualified message
//   - load: a plus file failed to load
//   - invariant: an internal defect, raised with panic by Assert
//
// Use IsUsage and IsLoad to inspect an error chain.
package engine
