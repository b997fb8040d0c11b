package plusfile

import (
	"path"
	"sort"
	"strings"

	"github.com/plusconf/plusconf/pkg/engine"
)

// ConfigEntry is the value a file contributes for one config name.
type ConfigEntry struct {
	// Value is the raw exported value.
	Value interface{}

	// Loaded is false for value files that were not executed yet.
	Loaded bool
}

// ConfigFile is a loaded +config file before it is placed at a location.
type ConfigFile struct {
	FilePath engine.FilePath

	// Exports are the raw exports of the file.
	Exports engine.Exports

	// ExtendsFilePaths are the files the config file extends, in declaration order.
	ExtendsFilePaths []string
}

// InterfaceFile is a plus file contributing configs at a location.
// It is either a config file (IsConfigFile) or a value file.
type InterfaceFile struct {
	FilePath engine.FilePath

	// Configs maps config names to the file's contribution.
	Configs map[string]*ConfigEntry

	// IsConfigFile distinguishes +config files from value files.
	IsConfigFile bool

	// IsExtension marks config files reached only through extends.
	IsExtension bool

	// ExtendsFilePaths are set for config files.
	ExtendsFilePaths []string

	// ConfigName is the primary config name of a value file.
	ConfigName string
}

// IsValueFile reports whether f is a +<name> value file.
func (f *InterfaceFile) IsValueFile() bool {
	return !f.IsConfigFile
}

// IsUserLand reports whether the file was placed by the user rather than
// reached through extends.
func (f *InterfaceFile) IsUserLand() bool {
	return f.IsValueFile() || !f.IsExtension
}

// Defines reports whether the file contributes name.
func (f *InterfaceFile) Defines(name string) bool {
	_, ok := f.Configs[name]
	return ok
}

// ConfigNames returns the contributed config names in lexical order.
func (f *InterfaceFile) ConfigNames() []string {
	names := make([]string, 0, len(f.Configs))
	for name := range f.Configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsLoaded reports whether the value file was executed.
// It panics if only some entries are loaded.
func (f *InterfaceFile) IsLoaded() bool {
	loaded, total := 0, 0
	for _, e := range f.Configs {
		total++
		if e.Loaded {
			loaded++
		}
	}
	engine.Assert(loaded == 0 || loaded == total, "%s is partially loaded", f.FilePath.ShowToUser())
	return loaded > 0
}

// FromConfigFile converts a loaded config file into an interface file.
func FromConfigFile(cf *ConfigFile, isExtension bool) (*InterfaceFile, error) {
	defaults, err := ValidateConfigFileExports(cf.Exports, cf.FilePath.ShowToUser())
	if err != nil {
		return nil, err
	}
	f := &InterfaceFile{
		FilePath:         cf.FilePath,
		Configs:          make(map[string]*ConfigEntry, len(defaults)),
		IsConfigFile:     true,
		IsExtension:      isExtension,
		ExtendsFilePaths: cf.ExtendsFilePaths,
	}
	for name, value := range defaults {
		f.Configs[name] = &ConfigEntry{Value: value, Loaded: true}
	}
	return f, nil
}

// NewValueFile creates an unloaded value file for the primary config name.
func NewValueFile(fp engine.FilePath, configName string) *InterfaceFile {
	return &InterfaceFile{
		FilePath:   fp,
		Configs:    map[string]*ConfigEntry{configName: {}},
		ConfigName: configName,
	}
}

// SetValueExports fills a value file with its exports. The default export,
// or the export named after the primary config, binds to the primary config.
func (f *InterfaceFile) SetValueExports(exports engine.Exports) error {
	engine.Assert(f.IsValueFile(), "SetValueExports called on config file")
	if err := ValidateValueFileExports(exports, f.FilePath.ShowToUser(), f.ConfigName); err != nil {
		return err
	}
	configs := make(map[string]*ConfigEntry, len(exports))
	for exportName, value := range exports {
		name := exportName
		if exportName == "default" {
			name = f.ConfigName
		}
		configs[name] = &ConfigEntry{Value: value, Loaded: true}
	}
	f.Configs = configs
	return nil
}

// ConfigName derives the config name from a plus file path:
// "/pages/+Page.star" is "Page", "/pages/+config.yaml" is "config".
// It returns "" for files that are not plus files.
func ConfigName(filePath string) (string, error) {
	fileName := path.Base(filePath)
	if err := checkPlusSign(filePath, fileName); err != nil {
		return "", err
	}
	basename := strings.SplitN(fileName, ".", 2)[0]
	if !strings.HasPrefix(basename, "+") {
		return "", nil
	}
	return basename[1:], nil
}

// IsConfigFilePath reports whether filePath is a +config file.
func IsConfigFilePath(filePath string) bool {
	name, err := ConfigName(filePath)
	return err == nil && name == "config"
}

func checkPlusSign(filePath, fileName string) error {
	dirs := strings.Split(path.Dir(filePath), "/")
	for i, dir := range dirs {
		if strings.Contains(dir, "+") {
			dirPath := strings.Join(dirs[:i+1], "/")
			return engine.Usagef("Character '+' is a reserved character: remove '+' from the directory name %s/", dirPath).
				WithCode(engine.ErrCodeReservedCharacter)
		}
	}
	if len(fileName) > 1 && strings.Contains(fileName[1:], "+") {
		return engine.Usagef("Character '+' is only allowed at the beginning of filenames: make sure %s doesn't contain any '+' in its filename other than its first letter", filePath).
			WithCode(engine.ErrCodeReservedCharacter)
	}
	return nil
}
