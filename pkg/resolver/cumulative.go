package resolver

import (
	"sort"

	"github.com/plusconf/plusconf/pkg/definitions"
	"github.com/plusconf/plusconf/pkg/engine"
)

// configValues computes the final value of every config with sources.
// Non-cumulative configs take the value of their first source, if inline.
// Cumulative configs merge every source.
func configValues(sources engine.ValueSources, defs *definitions.Registry) (engine.ConfigValues, error) {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make(engine.ConfigValues, len(sources))
	for _, name := range names {
		srcs := sources[name]
		engine.Assert(len(srcs) > 0, "config %s has no sources", name)
		def := defs.MustGet(name)

		if def.Cumulative {
			value, err := mergeCumulative(name, srcs)
			if err != nil {
				return nil, err
			}
			files := make([]engine.DefinedAtFile, len(srcs))
			for i, src := range srcs {
				files[i] = src.DefinedAtFile()
			}
			values[name] = engine.ConfigValue{
				Value:     value,
				DefinedAt: engine.DefinedAt{IsCumulative: true, Files: files},
			}
			continue
		}

		src := srcs[0]
		if !src.HasValue {
			continue
		}
		definedAt := engine.DefinedAt{IsComputed: true}
		if !src.IsComputed {
			file := src.DefinedAtFile()
			definedAt = engine.DefinedAt{File: &file}
		}
		values[name] = engine.ConfigValue{Value: src.Value, DefinedAt: definedAt}
	}
	return values, nil
}

// mergeCumulative concatenates arrays or unions sets, in source order.
// Every source must be an inline value of a config file and all sources
// must agree on the container kind.
func mergeCumulative(name string, sources []*engine.ValueSource) (interface{}, error) {
	var arrays [][]interface{}
	var sets []*engine.Set
	var previous *engine.ValueSource

	for _, src := range sources {
		engine.Assert(!src.IsComputed, "cumulative config %s has a computed source", name)
		definedAt := src.DefinedAtString(name, true)
		file := src.DefinedAt.ShowToUser()

		exportPath := src.DefinedAt.ExportPath
		if !src.HasValue || len(exportPath) == 0 || exportPath[0] != "default" {
			return nil, engine.Usagef("%s is only allowed to be defined in a +config file. (Because the values of %s are cumulative.)",
				definedAt, name).WithCode(engine.ErrCodeCumulativeType).WithFile(file)
		}
		if err := engine.CheckSerializable(src.Value); err != nil {
			return nil, engine.Usagef("%s has a value that cannot be serialized", definedAt).
				WithCode(engine.ErrCodeInvalidValue).
				WithFile(file)
		}

		mixed := func(isSet bool) error {
			if (isSet && len(arrays) == 0) || (!isSet && len(sets) == 0) {
				return nil
			}
			engine.Assert(previous != nil, "cumulative mix without previous source")
			t1, t2 := "an array", "a Set"
			if isSet {
				t1, t2 = t2, t1
			}
			return engine.Usagef("%s sets %s but another %s sets %s which is forbidden: the values must be all arrays or all sets (you cannot mix).",
				definedAt, t1, previous.DefinedAtString(name, false), t2).
				WithCode(engine.ErrCodeCumulativeMix).
				WithFile(file)
		}

		switch v := src.Value.(type) {
		case []interface{}:
			arrays = append(arrays, v)
			if err := mixed(false); err != nil {
				return nil, err
			}
		case *engine.Set:
			sets = append(sets, v)
			if err := mixed(true); err != nil {
				return nil, err
			}
		default:
			return nil, engine.Usagef("%s must be an array or a Set", definedAt).
				WithCode(engine.ErrCodeCumulativeType).
				WithFile(file)
		}
		previous = src
	}

	if len(arrays) > 0 {
		var merged []interface{}
		for _, a := range arrays {
			merged = append(merged, a...)
		}
		if merged == nil {
			merged = []interface{}{}
		}
		return merged, nil
	}
	engine.Assert(len(sets) > 0, "cumulative config %s has no values", name)
	merged := engine.NewSet()
	for _, s := range sets {
		merged.Union(s)
	}
	return merged, nil
}
