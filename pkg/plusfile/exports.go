package plusfile

import (
	"github.com/plusconf/plusconf/pkg/engine"
)

// ValidateConfigFileExports checks that a config file only exports a mapping
// named default and returns it.
func ValidateConfigFileExports(exports engine.Exports, filePathToShowToUser string) (map[string]interface{}, error) {
	defaultExport, ok := exports["default"]
	if !ok {
		return nil, engine.Usagef("%s doesn't export default: a config file should export a default mapping", filePathToShowToUser).
			WithCode(engine.ErrCodeInvalidExports)
	}
	for name := range exports {
		if name != "default" {
			return nil, engine.Usagef("%s should only export default, remove the export %s", filePathToShowToUser, name).
				WithCode(engine.ErrCodeInvalidExports)
		}
	}
	defaults, ok := engine.AsMapping(defaultExport)
	if !ok {
		return nil, engine.Usagef("The default export of %s should be an object (it's %s instead)",
			filePathToShowToUser, engine.TypeOf(defaultExport)).WithCode(engine.ErrCodeInvalidExports)
	}
	return defaults, nil
}

// ValidateValueFileExports checks that a value file exports at least one
// value and doesn't export both default and its primary config name.
func ValidateValueFileExports(exports engine.Exports, filePathToShowToUser, configName string) error {
	if len(exports) == 0 {
		return engine.Usagef("%s doesn't export any value, but it should have a default export", filePathToShowToUser).
			WithCode(engine.ErrCodeInvalidExports)
	}
	_, hasDefault := exports["default"]
	_, hasNamed := exports[configName]
	if hasDefault && hasNamed {
		return engine.Usagef("%s exports both default and %s: remove one of the two", filePathToShowToUser, configName).
			WithCode(engine.ErrCodeInvalidExports)
	}
	return nil
}
