package definitions

import (
	"github.com/plusconf/plusconf/pkg/engine"
)

// ComputeFunc derives a config value from a page's resolved sources.
// ok=false means the config is left undefined.
type ComputeFunc func(page *engine.PageConfig) (value interface{}, ok bool)

// Definition describes how a config name is resolved.
type Definition struct {
	// Name is the config name.
	Name string `json:"name"`

	// Env is the environment values of this config live in.
	Env engine.Environment `json:"env"`

	// Cumulative merges every source instead of picking a winner.
	Cumulative bool `json:"cumulative,omitempty"`

	// ValueIsFilePath requires the value to be an import of another file.
	ValueIsFilePath bool `json:"value_is_file_path,omitempty"`

	// Effect is called with the winning value and may reassign the
	// environment of other configs. Only legal for config-only configs.
	Effect engine.Callable `json:"-"`

	// Computed derives a default value. Only built-ins are computed.
	Computed ComputeFunc `json:"-"`

	// Builtin is true for definitions shipped with plusconf.
	Builtin bool `json:"builtin,omitempty"`
}

func (d *Definition) clone() *Definition {
	c := *d
	return &c
}

// Registry is an insertion-ordered set of definitions.
type Registry struct {
	names []string
	defs  map[string]*Definition
}

// NewRegistry creates a registry holding the given definitions in order.
func NewRegistry(defs ...*Definition) *Registry {
	r := &Registry{defs: make(map[string]*Definition, len(defs))}
	for _, d := range defs {
		r.Set(d)
	}
	return r
}

// Set adds or replaces a definition. Replacing keeps the original position.
func (r *Registry) Set(d *Definition) {
	if _, ok := r.defs[d.Name]; !ok {
		r.names = append(r.names, d.Name)
	}
	r.defs[d.Name] = d
}

// Get returns the definition of name.
func (r *Registry) Get(name string) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// MustGet returns the definition of name and panics with an invariant
// error if it does not exist.
func (r *Registry) MustGet(name string) *Definition {
	d, ok := r.defs[name]
	engine.Assert(ok, "config definition %q not found", name)
	return d
}

// Has reports whether name is defined.
func (r *Registry) Has(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// Names returns every config name in insertion order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Each calls fn for every definition in insertion order.
func (r *Registry) Each(fn func(d *Definition)) {
	for _, name := range r.names {
		fn(r.defs[name])
	}
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	return len(r.names)
}
