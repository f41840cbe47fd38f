// Package config loads, validates, and defaults the TOML configuration for
// the clipforge daemon and CLI.
package config
