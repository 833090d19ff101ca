package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

var (
	validOutputs    = []string{"auto", "text", "markdown", "json"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"auto", "pretty", "text", "json"}
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.ProjectConfig.Validate(); err != nil {
		return err
	}
	if err := oneOf("output", c.OutputFormat, validOutputs); err != nil {
		return err
	}
	if err := oneOf("log_level", c.LogLevel, validLogLevels); err != nil {
		return err
	}
	return oneOf("log_format", c.LogFormat, validLogFormats)
}

// ValidateDirectories checks if the config directory exists.
func (c *Config) ValidateDirectories() error {
	if _, err := os.Stat(c.ConfigDir); os.IsNotExist(err) {
		return fmt.Errorf("config directory does not exist: %s\nHint: Create the directory or use --config-dir to specify a different path", c.ConfigDir)
	}
	return nil
}

func oneOf(key, value string, valid []string) error {
	if value == "" || slices.Contains(valid, strings.ToLower(value)) {
		return nil
	}
	return fmt.Errorf("invalid %s %q (want one of %s)", key, value, strings.Join(valid, ", "))
}
