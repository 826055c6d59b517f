// Package config loads and validates engine configuration from YAML files.
//
// Config files may reference environment variables with ${VAR} syntax, which
// are expanded before parsing. Optional fields fall back to defaults.
package config
