package config

import (
	"github.com/leapstack-labs/dynmacro/internal/macro"
	"github.com/leapstack-labs/dynmacro/internal/scan"
)

// Default configuration values.
const (
	DefaultConfigDir  = "~/printer_data/config"
	DefaultConfigFile = "printer.cfg"
	DefaultHelpersDir = "helpers"
	DefaultStateFile  = ".dynmacro/journal.db"
	DefaultReload     = string(macro.ReloadAlways)
	DefaultMaxDepth   = macro.DefaultMaxDepth
)

// ApplyDefaults fills unset fields with their defaults.
func (c *ProjectConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if c.ConfigDir == "" {
		c.ConfigDir = DefaultConfigDir
	}
	if len(c.Configs) == 0 {
		c.Configs = []string{DefaultConfigFile}
	}
	if c.DispatchCommand == "" {
		c.DispatchCommand = macro.DefaultDispatchCommand
	}
	if c.Reload == "" {
		c.Reload = DefaultReload
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.HelpersDir == "" {
		c.HelpersDir = DefaultHelpersDir
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	c.Section.ApplyDefaults()
}

// ApplyDefaults fills unset section keys with the scanner defaults.
func (s *SectionConfig) ApplyDefaults() {
	if s.Keyword == "" {
		s.Keyword = scan.DefaultKeyword
	}
	if s.BodyKey == "" {
		s.BodyKey = scan.DefaultBodyKey
	}
	if s.DescriptionKey == "" {
		s.DescriptionKey = scan.DefaultDescriptionKey
	}
	if s.DefaultDescription == "" {
		s.DefaultDescription = scan.DefaultDescriptionMissing
	}
}
