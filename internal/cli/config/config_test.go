package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "dynmacro.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func newFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("project-dir", "", "")
	flags.String("config-dir", "", "")
	flags.StringSlice("configs", nil, "")
	flags.String("state", "", "")
	flags.String("helpers-dir", "", "")
	flags.String("reload", "", "")
	flags.Int("max-depth", 0, "")
	flags.StringP("output", "o", "", "")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, "config_dir: macros\n")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, tmpDir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(tmpDir, "macros"), cfg.ConfigDir)
	assert.Equal(t, []string{DefaultConfigFile}, cfg.Configs)
	assert.Equal(t, "gcode_macro", cfg.Section.Keyword)
	assert.Equal(t, "gcode", cfg.Section.BodyKey)
	assert.Equal(t, "No Description", cfg.Section.DefaultDescription)
	assert.Equal(t, "DYNAMIC_MACRO", cfg.DispatchCommand)
	assert.Equal(t, "always", cfg.Reload)
	assert.Equal(t, 32, cfg.MaxDepth)
	assert.Equal(t, filepath.Join(tmpDir, DefaultHelpersDir), cfg.HelpersDir)
	assert.Equal(t, filepath.Join(tmpDir, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, cfgPath, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FileValues(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	cfgPath := writeConfig(t, tmpDir, `config_dir: /srv/printer
configs:
  - printer.cfg
  - macros.yaml
section:
  keyword: dynamic_macro
  body_key: template
dispatch_command: DM
reload: on_change
max_depth: 8
state_path: ":memory:"
objects:
  toolhead:
    homed_axes: xyz
`)

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "/srv/printer", cfg.ConfigDir)
	assert.Equal(t, []string{"printer.cfg", "macros.yaml"}, cfg.Configs)
	assert.Equal(t, "dynamic_macro", cfg.Section.Keyword)
	assert.Equal(t, "template", cfg.Section.BodyKey)
	assert.Equal(t, "description", cfg.Section.DescriptionKey)
	assert.Equal(t, "DM", cfg.DispatchCommand)
	assert.Equal(t, "on_change", cfg.Reload)
	assert.Equal(t, 8, cfg.MaxDepth)
	assert.Equal(t, ":memory:", cfg.StatePath)
	require.Contains(t, cfg.Objects, "toolhead")
	assert.Equal(t, map[string]any{"homed_axes": "xyz"}, cfg.Objects["toolhead"])
}

func TestLoadConfig_Precedence(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		setFlags map[string]string
		check    func(t *testing.T, cfg *Config)
	}{
		{
			name: "file only",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 4, cfg.MaxDepth)
				assert.Equal(t, []string{"from_file.cfg"}, cfg.Configs)
			},
		},
		{
			name: "env overrides file",
			env:  map[string]string{"DYNMACRO_MAX_DEPTH": "6", "DYNMACRO_CONFIGS": "a.cfg, b.cfg"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 6, cfg.MaxDepth)
				assert.Equal(t, []string{"a.cfg", "b.cfg"}, cfg.Configs)
			},
		},
		{
			name: "nested env key",
			env:  map[string]string{"DYNMACRO_SECTION__KEYWORD": "my_macro"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "my_macro", cfg.Section.Keyword)
			},
		},
		{
			name:     "flag overrides env",
			env:      map[string]string{"DYNMACRO_MAX_DEPTH": "6"},
			setFlags: map[string]string{"max-depth": "9", "configs": "x.cfg,y.cfg"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9, cfg.MaxDepth)
				assert.Equal(t, []string{"x.cfg", "y.cfg"}, cfg.Configs)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			cfgPath := writeConfig(t, t.TempDir(), "max_depth: 4\nconfigs: from_file.cfg\n")
			for key, val := range tt.env {
				t.Setenv(key, val)
			}
			flags := newFlags()
			for name, val := range tt.setFlags {
				require.NoError(t, flags.Set(name, val))
			}

			cfg, err := LoadConfig(cfgPath, flags)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_PathFlagsRelativeToCWD(t *testing.T) {
	ResetConfig()
	projectDir := t.TempDir()
	writeConfig(t, projectDir, "state_path: state/journal.db\n")

	cwd, err := os.Getwd()
	require.NoError(t, err)

	flags := newFlags()
	require.NoError(t, flags.Set("project-dir", projectDir))
	require.NoError(t, flags.Set("config-dir", "cfgs"))
	require.NoError(t, flags.Set("state", "other.db"))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, projectDir, cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(cwd, "cfgs"), cfg.ConfigDir)
	assert.Equal(t, filepath.Join(cwd, "other.db"), cfg.StatePath)
	assert.Equal(t, filepath.Join(projectDir, "dynmacro.yaml"), GetConfigFileUsed())
}

func TestLoadConfig_ExpandsEnvInConfigDir(t *testing.T) {
	ResetConfig()
	tmpDir := t.TempDir()
	t.Setenv("PRINTER_HOME", tmpDir)
	cfgPath := writeConfig(t, t.TempDir(), "config_dir: ${PRINTER_HOME}/config\n")

	cfg, err := LoadConfig(cfgPath, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config"), cfg.ConfigDir)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		errSubstr string
	}{
		{name: "bad reload", content: "reload: sometimes\n", errSubstr: "reload policy"},
		{name: "negative depth", content: "max_depth: -1\n", errSubstr: "max_depth"},
		{name: "bad output", content: "output: html\n", errSubstr: "invalid output"},
		{name: "bad keyword", content: "section:\n  keyword: two words\n", errSubstr: "single word"},
		{name: "bad dispatch", content: "dispatch_command: RUN-IT\n", errSubstr: "dispatch_command"},
		{name: "unparsable yaml", content: "configs: [\n", errSubstr: "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			cfgPath := writeConfig(t, t.TempDir(), tt.content)
			_, err := LoadConfig(cfgPath, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestConfig_ValidateDirectories(t *testing.T) {
	cfg := &Config{}
	cfg.ConfigDir = filepath.Join(t.TempDir(), "missing")
	err := cfg.ValidateDirectories()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config directory does not exist")

	cfg.ConfigDir = t.TempDir()
	assert.NoError(t, cfg.ValidateDirectories())
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("DYNMACRO_TEST_VAR", "value")
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"${DYNMACRO_TEST_VAR}/x", "value/x"},
		{"${DYNMACRO_UNSET_VAR}", "${DYNMACRO_UNSET_VAR}"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvVars(tt.in))
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		tty     bool
		wantErr bool
		check   func(t *testing.T, out string)
	}{
		{
			name: "json", level: "info", format: "json",
			check: func(t *testing.T, out string) { assert.Contains(t, out, `"msg":"hello"`) },
		},
		{
			name: "auto without tty is text", level: "debug", format: "auto",
			check: func(t *testing.T, out string) { assert.Contains(t, out, "msg=hello") },
		},
		{
			name: "pretty", level: "info", format: "pretty",
			check: func(t *testing.T, out string) { assert.Contains(t, out, "hello") },
		},
		{
			name: "level filters", level: "error", format: "text",
			check: func(t *testing.T, out string) { assert.Empty(t, out) },
		},
		{name: "bad level", level: "loud", format: "text", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(&buf, tt.level, tt.format, tt.tty)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Info("hello")
			tt.check(t, buf.String())
		})
	}
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger, err := NewLogger(&bytes.Buffer{}, "info", "text", false)
	require.NoError(t, err)
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, GetLogger(ctx))
	assert.Equal(t, loggerKey{}, LoggerKey())
}
