package resolver

import (
	"fmt"
	"path"
	"sort"

	"github.com/plusconf/plusconf/pkg/definitions"
	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/location"
)

// globalConfigs checks that global configs are only defined at global
// locations and resolves them. Hooks are kept as sources to import at
// runtime; other globals are returned as settings.
func (p *pass) globalConfigs() (engine.GlobalConfig, map[string]interface{}, error) {
	global := engine.GlobalConfig{Sources: engine.ValueSources{}}
	settings := make(map[string]interface{})

	var globalLocs []string
	for _, loc := range p.locations {
		if location.IsGlobal(loc, p.locations) {
			globalLocs = append(globalLocs, loc)
		}
	}

	if err := p.checkGlobalPlacement(globalLocs); err != nil {
		return global, nil, err
	}

	location.SortMostSpecificFirst(globalLocs)
	relevant := make([]locationFiles, len(globalLocs))
	for i, loc := range globalLocs {
		relevant[i] = locationFiles{ID: loc, Files: p.byLocation[loc]}
	}

	var err error
	definitions.BuiltinGlobal().Each(func(def *definitions.Definition) {
		if err != nil {
			return
		}
		var sources []*engine.ValueSource
		if sources, err = p.resolveSources(def.Name, def, relevant); err != nil || len(sources) == 0 {
			return
		}
		src := sources[0]
		name := def.Name

		switch {
		case name == definitions.ConfigOnBeforeRoute || name == definitions.ConfigOnPrerenderStart:
			global.Sources[name] = []*engine.ValueSource{src}
		case src.IsImported:
			err = engine.Usagef("%s should be defined inline, not as an import", src.DefinedAtString(name, true)).
				WithCode(engine.ErrCodeInvalidValue).
				WithFile(src.DefinedAt.ShowToUser())
		default:
			engine.Assert(src.HasValue && !src.IsComputed, "global config %s has no inline value", name)
			if _, ok := src.Value.(bool); ok && name == definitions.ConfigPrerender {
				return
			}
			file := src.DefinedAt.ShowToUser()
			p.warner.WarnOnce("", fmt.Sprintf(
				"Being able to define config %s in %s is experimental and will likely be removed. Define the config %s in plusconf.yaml instead.",
				name, file, name))
			settings[name] = src.Value
		}
	})
	if err != nil {
		return global, nil, err
	}
	return global, settings, nil
}

func (p *pass) checkGlobalPlacement(globalLocs []string) error {
	isGlobal := make(map[string]bool, len(globalLocs))
	seen := make(map[string]bool)
	var globalDirs []string
	for _, loc := range globalLocs {
		isGlobal[loc] = true
		for _, f := range p.byLocation[loc] {
			if f.FilePath.Path == "" {
				continue
			}
			dir := path.Dir(f.FilePath.Path)
			if !seen[dir] {
				seen[dir] = true
				globalDirs = append(globalDirs, dir)
			}
		}
	}
	sort.Strings(globalDirs)

	for _, loc := range p.locations {
		if isGlobal[loc] {
			continue
		}
		for _, f := range p.byLocation[loc] {
			for _, name := range f.ConfigNames() {
				if !definitions.IsGlobalConfig(name) {
					continue
				}
				hint := fmt.Sprintf("create a global config (e.g. /pages/+config.star) and define %s there instead", name)
				if len(globalDirs) > 0 {
					hint = fmt.Sprintf("define %s in %s instead", name, definitions.JoinEnglish(globalDirs, "or"))
				}
				return engine.Usagef("%s defines the config %s which is global: %s", f.FilePath.ShowToUser(), name, hint).
					WithCode(engine.ErrCodeGlobalPlacement).
					WithFile(f.FilePath.ShowToUser())
			}
		}
	}
	return nil
}
