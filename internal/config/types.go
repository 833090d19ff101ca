// Package config provides shared configuration types for dynmacro.
// This package is decoupled from CLI concerns so the engine and tests can
// load a project configuration without cobra or flag handling.
package config

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dynmacro/internal/macro"
	"github.com/leapstack-labs/dynmacro/internal/template"
)

// SectionConfig describes how macro sections are recognised in the sources.
type SectionConfig struct {
	Keyword            string `koanf:"keyword"`             // section prefix, e.g. gcode_macro
	BodyKey            string `koanf:"body_key"`            // key holding the template
	DescriptionKey     string `koanf:"description_key"`     // optional description key
	DefaultDescription string `koanf:"default_description"` // used when the key is absent
}

// ProjectConfig holds the configuration shared by the engine and the CLI.
type ProjectConfig struct {
	// ConfigDir is the base directory for relative source names.
	ConfigDir string `koanf:"config_dir"`
	// Configs are the macro sources in scan order.
	Configs []string `koanf:"configs"`

	Section SectionConfig `koanf:"section"`

	DispatchCommand string `koanf:"dispatch_command"`
	Reload          string `koanf:"reload"`
	MaxDepth        int    `koanf:"max_depth"`
	HelpersDir      string `koanf:"helpers_dir"`
	StatePath       string `koanf:"state_path"`

	// Objects are static host objects exposed through dynamic_host.
	Objects map[string]any `koanf:"objects"`
}

// Validate checks if the configuration is usable.
func (c *ProjectConfig) Validate() error {
	if len(c.Configs) == 0 {
		return fmt.Errorf("configs is required")
	}
	for _, src := range c.Configs {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("configs contains an empty source name")
		}
	}
	if _, err := macro.ParseReloadPolicy(c.Reload); err != nil {
		return err
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative, got %d", c.MaxDepth)
	}
	if c.Section.Keyword != "" && strings.ContainsAny(c.Section.Keyword, " \t") {
		return fmt.Errorf("section.keyword must be a single word: %q", c.Section.Keyword)
	}
	if c.DispatchCommand != "" && !template.IsIdentifier(c.DispatchCommand) {
		return fmt.Errorf("dispatch_command is not a valid command name: %q", c.DispatchCommand)
	}
	return nil
}
