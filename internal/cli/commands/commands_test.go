package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/dynmacro/internal/cli/output"
	"github.com/leapstack-labs/dynmacro/internal/cli/testutil"
	intconfig "github.com/leapstack-labs/dynmacro/internal/config"
	"github.com/leapstack-labs/dynmacro/internal/engine"
	"github.com/leapstack-labs/dynmacro/internal/scan"
	"github.com/leapstack-labs/dynmacro/internal/state"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		name  string
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{name: "exec", cmd: NewExecCommand(), use: "exec <line>... | -", flags: []string{"keep-going"}},
		{name: "console", cmd: NewConsoleCommand(), use: "console"},
		{name: "list", cmd: NewListCommand(), use: "list"},
		{name: "check", cmd: NewCheckCommand(), use: "check", flags: []string{"watch", "debounce"}},
		{name: "history", cmd: NewHistoryCommand(), use: "history", flags: []string{"limit", "reconciles"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Long, "Long should not be empty")
			assert.NotEmpty(t, tt.cmd.Example, "Example should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func newConsoleContext(t *testing.T) (*CommandContext, *testutil.TestRenderer) {
	t.Helper()
	dir := testutil.SetupTestProject(t)
	tr := testutil.NewTestRenderer(output.ModeText, false)

	eng, err := engine.New(context.Background(), engine.Config{
		ProjectConfig: intconfig.ProjectConfig{
			ConfigDir:  filepath.Join(dir, "config"),
			Configs:    []string{"printer.cfg"},
			HelpersDir: filepath.Join(dir, "helpers"),
			StatePath:  state.MemoryPath,
		},
		Sink: responseSink(tr.Renderer),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return &CommandContext{Engine: eng, Renderer: tr.Renderer}, tr
}

func TestHandleConsoleLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantQuit bool
		wantOut  string
		wantErr  string
	}{
		{name: "blank", line: "   "},
		{name: "macro command", line: "GREET NAME=al", wantOut: "echo: hi al"},
		{name: "dispatch command", line: "DYNAMIC_MACRO MACRO=greet", wantOut: "echo: hi there"},
		{name: "unknown command", line: "NOPE", wantOut: "!! "},
		{name: "help", line: ".help", wantOut: "DYNAMIC_MACRO MACRO=<name>"},
		{name: "macros", line: ".macros", wantOut: "greet"},
		{name: "reload", line: ".reload", wantOut: "macro(s) loaded"},
		{name: "unknown dot command", line: ".bogus", wantErr: "unknown console command"},
		{name: "quit", line: ".quit", wantQuit: true},
		{name: "exit is case-insensitive", line: ".EXIT", wantQuit: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmdCtx, tr := newConsoleContext(t)

			quit := handleConsoleLine(context.Background(), cmdCtx, tt.line)
			assert.Equal(t, tt.wantQuit, quit)
			if tt.wantOut != "" {
				assert.Contains(t, tr.Output(), tt.wantOut)
			}
			if tt.wantErr != "" {
				assert.Contains(t, tr.ErrorOutput(), tt.wantErr)
			}
		})
	}
}

func TestResponseSink(t *testing.T) {
	cmdCtx, tr := newConsoleContext(t)

	handleConsoleLine(context.Background(), cmdCtx, "M117 hello")
	handleConsoleLine(context.Background(), cmdCtx, `RESPOND TYPE=error MSG="bad"`)

	out := tr.Output()
	assert.Contains(t, out, "// hello")
	assert.Contains(t, out, "!! bad")
	assert.NotContains(t, out, "!! !!")
	testutil.AssertNoANSI(t, out)
}

func TestCheckSources(t *testing.T) {
	dir := t.TempDir()
	cfg := `[gcode_macro good]
gcode:
    RESPOND MSG="ok"

[gcode_macro bad]
gcode:
    {* if x *}
    RESPOND MSG="never closed"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "printer.cfg"), []byte(cfg), 0600))

	scanner := scan.New(scan.Config{Sources: []string{"printer.cfg", "missing.cfg"}, BaseDir: dir})
	defs, diags := checkSources(scanner)

	require.Len(t, defs, 2)
	codes := make([]string, len(diags))
	for i, d := range diags {
		codes[i] = d.Code
	}
	assert.ElementsMatch(t, []string{scan.CodeSourceMissing, codeTemplateInvalid}, codes)

	tr := testutil.NewTestRenderer(output.ModeJSON, false)
	err := reportCheck(tr.Renderer, scanner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error(s)")
	assert.Contains(t, tr.Output(), `"template_invalid"`)

	var doc output.CheckOutput
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &doc))
	assert.Equal(t, "gcode_macro", doc.Keyword)
	assert.Equal(t, []string{"good", "bad"}, doc.Macros)

	tr = testutil.NewTestRenderer(output.ModeMarkdown, false)
	require.Error(t, reportCheck(tr.Renderer, scanner))
	assert.Contains(t, tr.Output(), "- **Keyword**: gcode_macro")
}

func TestReadLines(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "script")
	require.NoError(t, err)
	_, err = f.WriteString("GREET\n\nHELP\n")
	require.NoError(t, err)
	_, err = f.Seek(0, 0)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	lines, err := readLines(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"GREET", "", "HELP"}, lines)
}

func TestParamsSuffix(t *testing.T) {
	assert.Equal(t, "", paramsSuffix(""))
	assert.Equal(t, " X=1", paramsSuffix("X=1"))
}
