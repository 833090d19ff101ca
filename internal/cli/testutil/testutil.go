// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/leapstack-labs/dynmacro/internal/cli/output"
)

// ProjectConfig is the dynmacro.yaml written by SetupTestProject.
const ProjectConfig = `config_dir: config
configs:
  - printer.cfg
  - extra.cfg
state_path: .dynmacro/journal.db
objects:
  toolhead:
    homed_axes: xyz
`

// PrinterConfig holds the macros written by SetupTestProject.
const PrinterConfig = `[printer]
kinematics: corexy

[gcode_macro greet]
description: Say hi
gcode:
    RESPOND MSG="hi {{ params.get('NAME', 'there') }}"

[gcode_macro axes]
gcode:
    RESPOND MSG="{{ dynamic_host.toolhead['homed_axes'] }}"

[gcode_macro help]
description: Shadowed by the built-in
gcode:
    RESPOND MSG="never"

[gcode_macro broken]
`

// SetupTestProject creates a temporary project with a config file and macros.
// extra.cfg is referenced but deliberately missing.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	configDir := filepath.Join(tmpDir, "config")
	if err := os.MkdirAll(configDir, 0750); err != nil {
		t.Fatalf("failed to create directory %s: %v", configDir, err)
	}

	files := map[string]string{
		filepath.Join(tmpDir, "dynmacro.yaml"):     ProjectConfig,
		filepath.Join(configDir, "printer.cfg"):   PrinterConfig,
		filepath.Join(tmpDir, "helpers", ".keep"): "",
	}
	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			t.Fatalf("failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to create %s: %v", path, err)
		}
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the captured stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the captured stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}
