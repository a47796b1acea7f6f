// Package config loads, normalizes, and validates dynwatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DYNWATCH_SESSDATA. The Config type centralizes every knob the daemon and CLI
// need, so the polling cadence, anti-flood cap, and collaborator endpoints are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
