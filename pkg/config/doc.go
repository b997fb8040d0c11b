// Package config loads the project settings of plusconf.
//
// Settings live in a plusconf.yaml (or plusconf.yml, or plusconf.cue) file
// at the project root. A missing file yields the defaults. Unknown keys are
// rejected, then the decoded settings are checked with validator struct
// tags. CUE settings are evaluated with the plus-file CUE parser and then
// decoded like YAML, so both formats accept the same keys.
//
// # Example
//
//	fs := afero.NewOsFs()
//	settings, file, err := config.Load(fs, "/srv/site")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if file == "" {
//	    log.Print("no plusconf.yaml, using defaults")
//	}
//	root := settings.RootDir("/srv/site")
package config
