// Package config loads, normalizes, and validates the TOML
// configuration that controls the pipeline: provider credentials,
// scheduler limits, alignment and planning tunables, and paths.
package config
