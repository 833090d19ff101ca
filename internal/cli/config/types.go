// Package config provides configuration management for the dynmacro CLI.
//
// This package extends the shared ProjectConfig from internal/config with
// CLI-specific fields (output, logging) and the layered koanf loader.
package config

import (
	intconfig "github.com/leapstack-labs/dynmacro/internal/config"
)

// SectionConfig is an alias for the shared section configuration.
type SectionConfig = intconfig.SectionConfig

// Config holds all CLI configuration options.
type Config struct {
	intconfig.ProjectConfig `koanf:",squash"`

	// ProjectRoot is the directory relative paths were resolved against.
	ProjectRoot string `koanf:"-"`

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
	LogLevel     string `koanf:"log_level"`
	LogFormat    string `koanf:"log_format"`
}

// Default configuration values - uses shared defaults from internal/config
const (
	DefaultConfigDir  = intconfig.DefaultConfigDir
	DefaultConfigFile = intconfig.DefaultConfigFile
	DefaultHelpersDir = intconfig.DefaultHelpersDir
	DefaultStateFile  = intconfig.DefaultStateFile
	DefaultOutput     = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "auto" // TTY=pretty, non-TTY=text
)
