package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Environment describes where and when a config value may be evaluated.
type Environment string

const (
	// EnvClientOnly marks values loaded only in the browser bundle.
	EnvClientOnly Environment = "client-only"

	// EnvServerOnly marks values loaded only on the server.
	EnvServerOnly Environment = "server-only"

	// EnvServerAndClient marks values loaded on both sides.
	EnvServerAndClient Environment = "server-and-client"

	// EnvConfigOnly marks values evaluated while resolving configuration.
	// Their value is always available inline.
	EnvConfigOnly Environment = "config-only"
)

// Environments lists every valid environment in display order.
var Environments = []Environment{EnvClientOnly, EnvServerOnly, EnvServerAndClient, EnvConfigOnly}

// Valid reports whether e is one of the known environments.
func (e Environment) Valid() bool {
	for _, env := range Environments {
		if e == env {
			return true
		}
	}
	return false
}

// FilePath identifies a loadable file.
type FilePath struct {
	// Abs is the path on the underlying filesystem.
	Abs string `json:"-"`

	// Path is the posix path relative to the project root, with a leading slash
	// (e.g. "/pages/+config.star"). Empty for files outside the root.
	Path string `json:"path,omitempty"`

	// ImportPath is the package specifier the file was reached through, if any.
	ImportPath string `json:"import_path,omitempty"`
}

// ShowToUser returns the path printed in diagnostics.
func (f FilePath) ShowToUser() string {
	if f.Path != "" {
		return f.Path
	}
	return f.ImportPath
}

// Key returns the identity used to deduplicate files within a pass.
func (f FilePath) Key() string {
	if f.Abs != "" {
		return f.Abs
	}
	return f.ShowToUser()
}

// DefinedAtFileInfo locates the definition of a value source.
type DefinedAtFileInfo struct {
	FilePath

	// ExportPath is the path to the value inside the file's exports.
	// An empty path means the whole default export.
	ExportPath []string `json:"export_path,omitempty"`

	// ExportName is set for import references (e.g. "default").
	ExportName string `json:"export_name,omitempty"`
}

// DefinedAtFile is the user-facing form of a definition location.
type DefinedAtFile struct {
	File       string   `json:"file"`
	ExportPath []string `json:"export_path,omitempty"`
}

// String formats the location as "file > export > path".
func (d DefinedAtFile) String() string {
	if len(d.ExportPath) == 0 {
		return d.File
	}
	return d.File + " > " + strings.Join(d.ExportPath, " > ")
}

// DefinedAt describes where a resolved value comes from.
// Exactly one of File, IsComputed or IsCumulative applies.
type DefinedAt struct {
	File         *DefinedAtFile  `json:"file,omitempty"`
	IsComputed   bool            `json:"is_computed,omitempty"`
	IsCumulative bool            `json:"is_cumulative,omitempty"`
	Files        []DefinedAtFile `json:"files,omitempty"`
}

// ValueSource is one contribution of a config value at a location.
// Only Env may change after creation.
type ValueSource struct {
	// Value is the inline value. Meaningful only when HasValue is true.
	Value interface{} `json:"-"`

	// HasValue is false for values deferred to runtime import.
	HasValue bool `json:"-"`

	// ValueIsFilePath marks values that are themselves a file reference.
	ValueIsFilePath bool `json:"value_is_file_path,omitempty"`

	// Env is the environment the value lives in.
	Env Environment `json:"env"`

	// IsImported is true when the value is loaded later through an import.
	IsImported bool `json:"is_imported"`

	// IsComputed is true for values derived from the resolved configuration.
	IsComputed bool `json:"is_computed,omitempty"`

	// DefinedAt is nil for computed sources.
	DefinedAt *DefinedAtFileInfo `json:"defined_at,omitempty"`
}

// DefinedAtFile returns the user-facing location of a non-computed source.
func (s *ValueSource) DefinedAtFile() DefinedAtFile {
	Assert(!s.IsComputed && s.DefinedAt != nil, "computed source has no file")
	return DefinedAtFile{
		File:       s.DefinedAt.ShowToUser(),
		ExportPath: s.DefinedAt.ExportPath,
	}
}

// DefinedAtString renders "Config name defined at file > export" for messages.
// sentenceBegin capitalizes the leading word.
func (s *ValueSource) DefinedAtString(configName string, sentenceBegin bool) string {
	prefix := "config"
	if sentenceBegin {
		prefix = "Config"
	}
	if s.IsComputed {
		return fmt.Sprintf("%s %s (computed)", prefix, configName)
	}
	return fmt.Sprintf("%s %s defined at %s", prefix, configName, s.DefinedAtFile())
}

// MarshalJSON includes the inline value only when present.
func (s *ValueSource) MarshalJSON() ([]byte, error) {
	type alias ValueSource
	out := struct {
		*alias
		Value interface{} `json:"value,omitempty"`
	}{alias: (*alias)(s)}
	if s.HasValue {
		out.Value = s.Value
	}
	return json.Marshal(out)
}

// ConfigValue is the final value of a config at a location.
type ConfigValue struct {
	Value     interface{} `json:"value" yaml:"value"`
	DefinedAt DefinedAt   `json:"defined_at" yaml:"defined_at"`
}

// RouteFilesystem is the route derived from a location's directory.
type RouteFilesystem struct {
	RouteString string `json:"route_string" yaml:"route_string"`
	DefinedBy   string `json:"defined_by" yaml:"defined_by"`
}

// ValueSources maps a config name to its sources ordered by priority.
type ValueSources map[string][]*ValueSource

// ConfigValues maps a config name to its final value.
type ConfigValues map[string]ConfigValue

// PageConfig is the resolved configuration of one page-defining location.
type PageConfig struct {
	// LocationID is the directory the page is defined in (e.g. "/pages/about").
	LocationID string `json:"location_id" yaml:"location_id"`

	// IsErrorPage is true for locations under an "_error" directory.
	IsErrorPage bool `json:"is_error_page,omitempty" yaml:"is_error_page,omitempty"`

	// RouteFilesystem is nil for error pages.
	RouteFilesystem *RouteFilesystem `json:"route_filesystem,omitempty" yaml:"route_filesystem,omitempty"`

	// Sources are all value sources ordered by priority.
	Sources ValueSources `json:"sources" yaml:"-"`

	// Values are the final values of every config with an inline value.
	Values ConfigValues `json:"values" yaml:"values"`
}

// GlobalConfig holds the sources of global configs that are imported at runtime.
type GlobalConfig struct {
	Sources ValueSources `json:"sources" yaml:"-"`
}

// Warning is a non-fatal diagnostic recorded during a pass.
type Warning struct {
	Message string `json:"message" yaml:"message"`

	// Key is the deduplication key of once-only warnings.
	Key string `json:"key,omitempty" yaml:"key,omitempty"`
}

// Result is the output of one resolution pass.
type Result struct {
	// PassID uniquely identifies the pass.
	PassID string `json:"pass_id" yaml:"pass_id"`

	// Pages are sorted by location id.
	Pages []*PageConfig `json:"pages" yaml:"pages"`

	// Global holds imported global configs (onBeforeRoute, onPrerenderStart).
	Global GlobalConfig `json:"global" yaml:"global"`

	// GlobalSettings holds inline global configs.
	GlobalSettings map[string]interface{} `json:"global_settings" yaml:"global_settings"`

	// Warnings are every warning emitted by the pass, in emission order.
	Warnings []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	// Dependencies are the files loaded by the pass.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// StartedAt is when the pass began.
	StartedAt time.Time `json:"-" yaml:"-"`

	// Duration is how long the pass took.
	Duration time.Duration `json:"-" yaml:"-"`
}

// EmptyResult returns the degenerate configuration used while the
// configuration is invalid.
func EmptyResult(passID string) *Result {
	return &Result{
		PassID:         passID,
		Pages:          []*PageConfig{},
		Global:         GlobalConfig{Sources: ValueSources{}},
		GlobalSettings: map[string]interface{}{},
	}
}

// Page returns the page config of the given location, or nil.
func (r *Result) Page(locationID string) *PageConfig {
	for _, p := range r.Pages {
		if p.LocationID == locationID {
			return p
		}
	}
	return nil
}
