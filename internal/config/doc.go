// Package config loads, normalizes, and validates flacbatch configuration.
//
// Configuration lives in a TOML file (default ~/.config/flacbatch/config.toml,
// falling back to ./flacbatch.toml). Every value has a default so the tool runs
// without a file; command-line flags override whatever Load returns. Path
// fields are expanded (~, relative paths) during normalization so downstream
// packages can treat them as absolute.
package config
