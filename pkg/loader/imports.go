package loader

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/plusconf/plusconf/pkg/engine"
)

// ImportPrefix starts every import reference.
const ImportPrefix = "import:"

// FormatImport builds an import reference string.
func FormatImport(importPath, exportName string) string {
	if exportName == "" || exportName == "default" {
		return ImportPrefix + importPath
	}
	return ImportPrefix + importPath + ":" + exportName
}

// Imports implements engine.ImportResolver. Relative paths resolve against
// the importing file; package specifiers resolve against package directories.
type Imports struct {
	fs          afero.Fs
	root        string
	packageDirs []string
}

// NewImports creates an import resolver for the project rooted at root.
// packageDirs are absolute directories searched for package specifiers.
func NewImports(fs afero.Fs, root string, packageDirs []string) *Imports {
	return &Imports{
		fs:          fs,
		root:        filepath.Clean(root),
		packageDirs: packageDirs,
	}
}

// Parse recognizes "import:<path>" and "import:<path>:<export>".
func (im *Imports) Parse(value string) (engine.ImportData, bool) {
	if !strings.HasPrefix(value, ImportPrefix) {
		return engine.ImportData{}, false
	}
	ref := strings.TrimPrefix(value, ImportPrefix)
	importPath, exportName := ref, "default"
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		importPath, exportName = ref[:i], ref[i+1:]
	}
	if importPath == "" || exportName == "" {
		return engine.ImportData{}, false
	}
	return engine.ImportData{
		ImportPath:   importPath,
		ExportName:   exportName,
		ImportString: value,
	}, true
}

// Resolve locates the file an import reference points to.
func (im *Imports) Resolve(importer engine.FilePath, data engine.ImportData) engine.FilePath {
	if data.IsRelative() {
		target := filepath.Join(filepath.Dir(importer.Abs), filepath.FromSlash(data.ImportPath))
		resolved := engine.FilePath{Path: im.RootRelative(target)}
		if abs, ok := im.probe(target); ok {
			resolved.Abs = abs
			resolved.Path = im.RootRelative(abs)
		}
		return resolved
	}

	resolved := engine.FilePath{ImportPath: data.ImportPath}
	for _, dir := range im.packageDirs {
		if abs, ok := im.probe(filepath.Join(dir, filepath.FromSlash(data.ImportPath))); ok {
			resolved.Abs = abs
			resolved.Path = im.RootRelative(abs)
			break
		}
	}
	return resolved
}

// RootRelative returns the posix path of abs relative to the project root,
// with a leading slash, or "" when abs is outside the root.
func (im *Imports) RootRelative(abs string) string {
	rel, err := filepath.Rel(im.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	if rel == "." {
		return "/"
	}
	return "/" + filepath.ToSlash(rel)
}

// probe finds the file for a target path: the file itself, the file with a
// supported extension, or the +config file of a directory.
func (im *Imports) probe(target string) (string, bool) {
	if info, err := im.fs.Stat(target); err == nil {
		if !info.IsDir() {
			return target, true
		}
		for _, ext := range Extensions {
			candidate := filepath.Join(target, "+config."+ext)
			if im.isFile(candidate) {
				return candidate, true
			}
		}
		return "", false
	}
	for _, ext := range Extensions {
		if candidate := target + "." + ext; im.isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (im *Imports) isFile(p string) bool {
	info, err := im.fs.Stat(p)
	return err == nil && !info.IsDir()
}
