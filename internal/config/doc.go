// Package config loads, parses and validates application settings from
// environment variables (SCRY_ prefix) and an optional YAML file.
package config
