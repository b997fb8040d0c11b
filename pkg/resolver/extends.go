package resolver

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/plusconf/plusconf/pkg/definitions"
	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/plusfile"
)

// loadConfigFile loads a config file and, recursively, the config files it
// extends. visited is the chain of files leading to fp; it is never mutated.
// The returned extends are ordered: each extended file, then its own extends.
func (p *pass) loadConfigFile(ctx context.Context, fp engine.FilePath, visited []engine.FilePath) (*plusfile.ConfigFile, []*plusfile.ConfigFile, error) {
	if err := checkNoInfiniteLoop(visited, fp); err != nil {
		return nil, nil, err
	}

	exports, err := p.load(ctx, fp)
	if err != nil {
		return nil, nil, err
	}

	stack := make([]engine.FilePath, len(visited), len(visited)+1)
	copy(stack, visited)
	stack = append(stack, fp)

	extends, extendsPaths, err := p.loadExtends(ctx, exports, fp, stack)
	if err != nil {
		return nil, nil, err
	}

	cf := &plusfile.ConfigFile{
		FilePath:         fp,
		Exports:          exports,
		ExtendsFilePaths: extendsPaths,
	}
	return cf, extends, nil
}

func (p *pass) loadExtends(ctx context.Context, exports engine.Exports, fp engine.FilePath, stack []engine.FilePath) ([]*plusfile.ConfigFile, []string, error) {
	imports, err := p.extendsImportData(exports, fp)
	if err != nil {
		return nil, nil, err
	}
	if len(imports) == 0 {
		return nil, nil, nil
	}

	targets := make([]engine.FilePath, len(imports))
	paths := make([]string, len(imports))
	for i, data := range imports {
		target := p.opts.Imports.Resolve(fp, data)
		if err := checkImportResolved(target, data, fp); err != nil {
			return nil, nil, err
		}
		p.checkExtendsImportPath(data, target, fp)
		targets[i] = engine.FilePath{Abs: target.Abs, Path: target.Path, ImportPath: data.ImportPath}
		paths[i] = target.Abs
	}

	loaded := make([][]*plusfile.ConfigFile, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		g.Go(func() error {
			cf, nested, err := p.loadConfigFile(gctx, target, stack)
			if err != nil {
				return err
			}
			loaded[i] = append([]*plusfile.ConfigFile{cf}, nested...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var out []*plusfile.ConfigFile
	for _, chain := range loaded {
		out = append(out, chain...)
	}
	return out, paths, nil
}

func checkNoInfiniteLoop(visited []engine.FilePath, fp engine.FilePath) error {
	for i, v := range visited {
		if v.Key() != fp.Key() {
			continue
		}
		var loop []string
		for _, l := range visited[i:] {
			loop = append(loop, l.ShowToUser())
		}
		loop = append(loop, fp.ShowToUser())
		return engine.Usagef("Infinite extends loop %s", strings.Join(loop, " > ")).
			WithCode(engine.ErrCodeExtendsLoop).
			WithFile(fp.ShowToUser())
	}
	return nil
}

// extendsImportData parses the extends config of a config file: a string or
// a list of strings, each an import reference.
func (p *pass) extendsImportData(exports engine.Exports, fp engine.FilePath) ([]engine.ImportData, error) {
	show := fp.ShowToUser()
	defaults, err := plusfile.ValidateConfigFileExports(exports, show)
	if err != nil {
		return nil, err
	}
	wrongUsage := engine.Usagef("%s sets the config 'extends' to an invalid value", show).
		WithCode(engine.ErrCodeInvalidExtends).
		WithFile(show)

	raw, ok := defaults[definitions.ConfigExtends]
	if !ok {
		return nil, nil
	}

	var list []string
	switch v := raw.(type) {
	case string:
		list = []string{v}
	case []interface{}:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, wrongUsage
			}
			list = append(list, s)
		}
	default:
		return nil, wrongUsage
	}

	out := make([]engine.ImportData, 0, len(list))
	for _, s := range list {
		data, ok := p.opts.Imports.Parse(s)
		if !ok {
			return nil, wrongUsage
		}
		out = append(out, data)
	}
	return out, nil
}

// checkImportResolved fails when an import reference points nowhere.
func checkImportResolved(target engine.FilePath, data engine.ImportData, importer engine.FilePath) error {
	if target.Abs != "" {
		return nil
	}
	intro := fmt.Sprintf("The import %s defined in %s couldn't be resolved: does '%s'",
		data.ImportString, importer.ShowToUser(), data.ImportPath)
	msg := intro + " exist?"
	if data.IsRelative() {
		msg = intro + " point to an existing file?"
	}
	return engine.NewUsageError(msg).
		WithCode(engine.ErrCodeUnresolvedImport).
		WithFile(importer.ShowToUser())
}

func (p *pass) checkExtendsImportPath(data engine.ImportData, target, importer engine.FilePath) {
	if data.IsRelative() {
		p.warner.WarnOnce("", fmt.Sprintf(
			"%s uses extends to inherit from %s which is a user-land file: this is experimental and may be removed at any time.",
			importer.ShowToUser(), data.ImportPath))
		return
	}
	slashed := filepath.ToSlash(target.Abs)
	fileName := path.Base(slashed)
	parts := strings.SplitN(fileName, ".", 2)
	if parts[0] == "+config" {
		return
	}
	correct := "+config"
	if len(parts) == 2 {
		correct += "." + parts[1]
	}
	dir := path.Dir(slashed) + "/"
	p.warner.WarnOnce("", fmt.Sprintf("Rename %s to %s in %s", fileName, correct, dir))
}
