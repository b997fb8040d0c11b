package resolver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/plusconf/plusconf/pkg/definitions"
	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/plusfile"
)

type envEntry struct {
	configName string
	env        engine.Environment
}

// envTable records, per imported file, the environments of the config values
// taken from it. It lives for one pass.
type envTable struct {
	files map[string][]envEntry
}

func newEnvTable() *envTable {
	return &envTable{files: make(map[string][]envEntry)}
}

// check records that configName, living in env, is imported from the file
// identified by key. Values imported from one file must share one environment.
func (t *envTable) check(key, show string, env engine.Environment, configName string) error {
	entries := append(t.files[key], envEntry{configName: configName, env: env})
	t.files[key] = entries
	for _, e := range entries {
		if e.env == env {
			continue
		}
		msg := strings.Join([]string{
			show + " defines the value of configs living in different environments:",
			fmt.Sprintf("  - config %s which value lives in environment %s", e.configName, e.env),
			fmt.Sprintf("  - config %s which value lives in environment %s", configName, env),
			"Defining config values in the same file is allowed only if they live in the same environment.",
		}, "\n")
		return engine.NewUsageError(msg).
			WithCode(engine.ErrCodeEnvConflict).
			WithFile(show)
	}
	return nil
}

// resolveSources returns the value sources of name, ordered by priority.
// relevant is ordered most specific location first. Within a location the
// order is: the winner among primary value files and placed config files,
// the other files of those two groups (each reported as overridden), value
// files exporting name as a side effect, then extended config files.
func (p *pass) resolveSources(name string, def *definitions.Definition, relevant []locationFiles) ([]*engine.ValueSource, error) {
	var sources []*engine.ValueSource

	for _, lf := range relevant {
		var defining []*plusfile.InterfaceFile
		for _, f := range lf.Files {
			if f.Defines(name) {
				defining = append(defining, f)
			}
		}
		if len(defining) == 0 {
			continue
		}

		visited := make(map[*plusfile.InterfaceFile]bool, len(defining))
		add := func(f *plusfile.InterfaceFile) (*engine.ValueSource, error) {
			engine.Assert(!visited[f], "%s visited twice for config %s", f.FilePath.ShowToUser(), name)
			visited[f] = true
			src, err := p.valueSource(name, f, def)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
			return src, nil
		}

		var valueFiles, configFiles, sideEffects, extensions []*plusfile.InterfaceFile
		for _, f := range defining {
			switch {
			case f.IsValueFile() && f.ConfigName == name:
				valueFiles = append(valueFiles, f)
			case f.IsValueFile():
				sideEffects = append(sideEffects, f)
			case !f.IsExtension:
				configFiles = append(configFiles, f)
			default:
				extensions = append(extensions, f)
			}
		}
		sortDeterministic(valueFiles)
		sortDeterministic(configFiles)

		if userLand := append(valueFiles, configFiles...); len(userLand) > 0 {
			winner, err := add(userLand[0])
			if err != nil {
				return nil, err
			}
			for _, f := range userLand[1:] {
				loser, err := add(f)
				if err != nil {
					return nil, err
				}
				p.warner.Warn(fmt.Sprintf("%s overridden by another %s, remove one of the two",
					loser.DefinedAtString(name, true), winner.DefinedAtString(name, false)))
			}
		}

		// Extensions keep the order they were loaded in.
		for _, group := range [][]*plusfile.InterfaceFile{sideEffects, extensions} {
			for _, f := range group {
				if _, err := add(f); err != nil {
					return nil, err
				}
			}
		}

		for _, f := range defining {
			engine.Assert(visited[f], "%s never visited for config %s", f.FilePath.ShowToUser(), name)
		}
	}

	return sources, nil
}

// sortDeterministic orders user-land files by path length, shorter first.
func sortDeterministic(files []*plusfile.InterfaceFile) {
	for _, f := range files {
		engine.Assert(f.IsUserLand() && f.FilePath.Path != "", "%s is not a user-land file", f.FilePath.ShowToUser())
	}
	sort.SliceStable(files, func(i, j int) bool {
		return len(files[i].FilePath.Path) < len(files[j].FilePath.Path)
	})
}

// valueSource turns the contribution of f to name into a value source.
func (p *pass) valueSource(name string, f *plusfile.InterfaceFile, def *definitions.Definition) (*engine.ValueSource, error) {
	entry, ok := f.Configs[name]
	engine.Assert(ok, "%s doesn't define %s", f.FilePath.ShowToUser(), name)
	env := def.Env

	inConfigFile := &engine.DefinedAtFileInfo{
		FilePath:   f.FilePath,
		ExportPath: []string{"default", name},
	}

	if !f.IsConfigFile {
		if err := p.filesEnv.check(f.FilePath.Key(), f.FilePath.ShowToUser(), env, name); err != nil {
			return nil, err
		}
	}

	if def.ValueIsFilePath {
		src := &engine.ValueSource{
			HasValue:        true,
			ValueIsFilePath: true,
			Env:             env,
			IsImported:      true,
		}
		if f.IsConfigFile {
			imp, err := p.resolveImport(entry.Value, f.FilePath, env, name)
			if err != nil {
				return nil, err
			}
			if imp == nil {
				definedAt := (&engine.ValueSource{DefinedAt: inConfigFile}).DefinedAtString(name, true)
				return nil, engine.Usagef("%s should be an import", definedAt).
					WithCode(engine.ErrCodeInvalidImport).
					WithFile(f.FilePath.ShowToUser())
			}
			src.Value = imp.Path
			if imp.Path == "" {
				src.Value = imp.ImportPath
			}
			src.DefinedAt = imp
		} else {
			src.Value = f.FilePath.Path
			src.DefinedAt = &engine.DefinedAtFileInfo{FilePath: f.FilePath}
		}
		return src, nil
	}

	if f.IsConfigFile {
		var imp *engine.DefinedAtFileInfo
		// extends references were followed when the file was loaded.
		if name != definitions.ConfigExtends {
			var err error
			if imp, err = p.resolveImport(entry.Value, f.FilePath, env, name); err != nil {
				return nil, err
			}
		}
		if imp != nil {
			if env == engine.EnvConfigOnly {
				definedAt := (&engine.ValueSource{DefinedAt: inConfigFile}).DefinedAtString(name, true)
				return nil, engine.Usagef("%s should be defined inline, not as an import: its env is %s", definedAt, env).
					WithCode(engine.ErrCodeInvalidImport).
					WithFile(f.FilePath.ShowToUser())
			}
			return &engine.ValueSource{Env: env, IsImported: true, DefinedAt: imp}, nil
		}
		return &engine.ValueSource{
			Value:     entry.Value,
			HasValue:  true,
			Env:       env,
			DefinedAt: inConfigFile,
		}, nil
	}

	src := &engine.ValueSource{
		Env:        env,
		IsImported: !entry.Loaded,
		DefinedAt:  &engine.DefinedAtFileInfo{FilePath: f.FilePath},
	}
	if name != f.ConfigName {
		src.DefinedAt.ExportPath = []string{name}
	}
	if entry.Loaded {
		src.Value, src.HasValue = entry.Value, true
	} else {
		engine.Assert(env != engine.EnvConfigOnly, "value of config-only %s in %s is not loaded", name, f.FilePath.ShowToUser())
	}
	return src, nil
}

// resolveImport returns the location of the value referenced by an import
// string, or nil if value isn't an import reference.
func (p *pass) resolveImport(value interface{}, importer engine.FilePath, env engine.Environment, name string) (*engine.DefinedAtFileInfo, error) {
	s, ok := value.(string)
	if !ok {
		return nil, nil
	}
	data, ok := p.opts.Imports.Parse(s)
	if !ok {
		return nil, nil
	}
	target := p.opts.Imports.Resolve(importer, data)

	info := &engine.DefinedAtFileInfo{ExportName: data.ExportName}
	if data.ExportName != "default" && data.ExportName != name {
		info.ExportPath = []string{data.ExportName}
	}

	if data.IsRelative() {
		if err := checkImportResolved(target, data, importer); err != nil {
			return nil, err
		}
		if target.Path == "" {
			return nil, engine.Usagef("%s imports from a relative path %s outside of %s which is forbidden: import from a relative path inside %s, or import from a package instead",
				importer.ShowToUser(), data.ImportPath, p.opts.Root, p.opts.Root).
				WithCode(engine.ErrCodeInvalidImport).
				WithFile(importer.ShowToUser())
		}
		info.FilePath = engine.FilePath{Abs: target.Abs, Path: target.Path}
	} else {
		// Package specifiers may be aliases nothing on disk matches.
		info.FilePath = engine.FilePath{Abs: target.Abs, ImportPath: data.ImportPath}
	}

	if err := p.filesEnv.check(info.FilePath.Key(), info.FilePath.ShowToUser(), env, name); err != nil {
		return nil, err
	}
	return info, nil
}
