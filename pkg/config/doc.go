// Package config provides configuration loading and validation for
// Mercator Callisto.
//
// Configuration is read from a YAML file, with defaults applied for
// missing fields and CALLISTO_* environment variables taking precedence
// over the file. The Provider type owns the current snapshot and replaces
// it wholesale on reload; the Watcher triggers reloads when the file
// changes on disk.
package config
