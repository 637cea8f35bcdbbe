// Package config loads, normalizes, and validates quill's TOML configuration.
package config
