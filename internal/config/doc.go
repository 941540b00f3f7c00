// Package config loads and validates scribeq configuration from TOML with
// sensible defaults for every setting.
package config
