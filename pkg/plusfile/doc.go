// Package plusfile models plus files: the definition files of a project.
//
// A file named "+config.<ext>" is a config file. It exports a default mapping
// of many config names and may extend other config files. Any other
// "+<name>.<ext>" file is a value file for the config <name>; its other
// exports are side-effect configs.
//
// The '+' character is reserved: it may only appear as the first character of
// a file name.
package plusfile
