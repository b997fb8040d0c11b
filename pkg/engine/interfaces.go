package engine

import (
	"context"
)

// Exports maps export names of a loaded file to their values.
//
// Values are nil, bool, int64, float64, string, []interface{},
// map[string]interface{}, *Set or Callable.
type Exports map[string]interface{}

// FileDiscoverer enumerates plus files below a project root.
type FileDiscoverer interface {
	// Discover returns every plus file under root, skipping ignored paths.
	// The result order is unspecified.
	Discover(ctx context.Context, root string, ignore []string) ([]FilePath, error)
}

// ModuleLoader executes a plus file and returns its exports.
type ModuleLoader interface {
	// Load returns the exports of the given file. Syntax and evaluation
	// failures are returned as load errors.
	Load(ctx context.Context, file FilePath) (Exports, error)
}

// ImportData is a parsed import reference.
type ImportData struct {
	// ImportPath is the referenced path or package specifier.
	ImportPath string

	// ExportName is the referenced export, "default" when omitted.
	ExportName string

	// ImportString is the original reference string.
	ImportString string
}

// IsRelative reports whether the import path is relative to the importer.
func (d ImportData) IsRelative() bool {
	return len(d.ImportPath) > 0 && d.ImportPath[0] == '.'
}

// ImportResolver recognizes and resolves import references.
type ImportResolver interface {
	// Parse reports whether value denotes an import reference.
	Parse(value string) (ImportData, bool)

	// Resolve locates the referenced file relative to the importer.
	// Abs is empty when the target cannot be found. Path is empty for
	// targets outside the project root.
	Resolve(importer FilePath, data ImportData) FilePath
}

// Callable is a function exported by a plus file.
type Callable interface {
	// Name returns the function name for diagnostics.
	Name() string

	// Call invokes the function with Go arguments.
	Call(ctx context.Context, args ...interface{}) (interface{}, error)
}
