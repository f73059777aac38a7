// Package config loads, normalizes, and validates ytarchiver configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and layers secrets from an optional .env file
// and the process environment. The Config type centralizes every knob the
// daemon and CLI need, so the state directory, output directory, extraction
// tool, and workflow timings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
