package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	intconfig "github.com/leapstack-labs/dynmacro/internal/config"
	"github.com/leapstack-labs/dynmacro/internal/host"
	"github.com/leapstack-labs/dynmacro/internal/macro"
	"github.com/leapstack-labs/dynmacro/internal/state"
	"github.com/leapstack-labs/dynmacro/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEngine struct {
	*Engine
	dir       string
	responses []host.Response
}

func newTestEngine(t *testing.T, files map[string]string, mutate func(cfg *Config)) *testEngine {
	t.Helper()
	te := &testEngine{dir: t.TempDir()}
	for name, content := range files {
		path := filepath.Join(te.dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}

	cfg := Config{
		ProjectConfig: intconfig.ProjectConfig{
			ConfigDir:  te.dir,
			Configs:    []string{"printer.cfg"},
			HelpersDir: filepath.Join(te.dir, "helpers"),
			StatePath:  state.MemoryPath,
			Objects: map[string]any{
				"toolhead": map[string]any{"homed_axes": "xyz"},
			},
		},
		Sink:   func(r host.Response) { te.responses = append(te.responses, r) },
		Logger: testutil.NewTestLogger(t),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	eng, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	te.Engine = eng
	return te
}

func (te *testEngine) texts() []string {
	out := make([]string, len(te.responses))
	for i, r := range te.responses {
		out[i] = r.Text
	}
	return out
}

const greetCfg = `[gcode_macro greet]
description: Say hi
gcode:
    RESPOND MSG="hi {{ params.get('NAME', 'there') }}"
`

func TestNew_LoadsMacros(t *testing.T) {
	te := newTestEngine(t, map[string]string{"printer.cfg": greetCfg}, nil)

	m, ok := te.Registry().Lookup("greet")
	require.True(t, ok)
	assert.Equal(t, "Say hi", m.Description)
	assert.True(t, te.Host().Has("GREET"))
	assert.True(t, te.Host().Has("DYNAMIC_MACRO"))
	assert.True(t, te.Host().Has("SET_DYNAMIC_VARIABLE"))
	assert.NotNil(t, te.Journal())
	assert.NotNil(t, te.Scanner())
}

func TestEngine_Execute(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{name: "direct command", line: "GREET NAME=bob", want: []string{"echo: hi bob"}},
		{name: "dispatch", line: "DYNAMIC_MACRO MACRO=greet", want: []string{"echo: hi there"}},
		{name: "dispatch unknown", line: "DYNAMIC_MACRO MACRO=nope", want: []string{"ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEngine(t, map[string]string{"printer.cfg": greetCfg}, nil)
			require.NoError(t, te.Execute(context.Background(), tt.line))
			got := te.texts()
			require.NotEmpty(t, got)
			assert.Equal(t, tt.want, got[:len(tt.want)])
		})
	}
}

func TestEngine_MultiParagraphBody(t *testing.T) {
	cfg := `[gcode_macro steps]
gcode:
    RESPOND MSG="a"
    # skipped comment

    {* if params.get('B', '1') == '1' *}
    RESPOND MSG="b"

    {* endif *}
    RESPOND MSG="c"
`
	te := newTestEngine(t, map[string]string{"printer.cfg": cfg}, nil)

	m, ok := te.Registry().Lookup("steps")
	require.True(t, ok)
	require.NoError(t, m.Err())

	require.NoError(t, te.Execute(context.Background(), "STEPS"))
	assert.Equal(t, []string{"echo: a", "echo: b", "echo: c"}, te.texts())
}

func TestEngine_ReloadPicksUpEdits(t *testing.T) {
	te := newTestEngine(t, map[string]string{"printer.cfg": greetCfg}, nil)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(te.dir, "printer.cfg"), []byte(`[gcode_macro wave]
gcode:
    RESPOND MSG="wave"
`), 0600))
	te.Reload(ctx)

	assert.False(t, te.Host().Has("GREET"))
	assert.True(t, te.Host().Has("WAVE"))
	require.NoError(t, te.Execute(ctx, "WAVE"))
	assert.Equal(t, []string{"echo: wave"}, te.texts())
}

func TestEngine_HelperLibraries(t *testing.T) {
	te := newTestEngine(t, map[string]string{
		"printer.cfg": `[gcode_macro temp]
gcode:
    RESPOND MSG="{{ heat.target(200) }}"
`,
		"helpers/heat.star": "def target(t):\n    return t + 5\n",
	}, nil)

	assert.Equal(t, []string{"heat"}, te.Library().Namespaces())
	require.NoError(t, te.Execute(context.Background(), "TEMP"))
	assert.Equal(t, []string{"echo: 205"}, te.texts())
}

func TestEngine_BrokenHelperIsNotFatal(t *testing.T) {
	te := newTestEngine(t, map[string]string{
		"printer.cfg":     greetCfg,
		"helpers/bad.star": "def broken(:\n",
	}, nil)

	assert.Equal(t, 0, te.Library().Len())
	require.NoError(t, te.Execute(context.Background(), "GREET"))
}

func TestEngine_HostObjects(t *testing.T) {
	te := newTestEngine(t, map[string]string{"printer.cfg": `[gcode_macro axes]
gcode:
    RESPOND MSG="{{ dynamic_host.toolhead['homed_axes'] }} {{ dynamic_host.extruder }}"
`}, nil)

	require.NoError(t, te.Execute(context.Background(), "AXES"))
	assert.Equal(t, []string{"echo: xyz NONE"}, te.texts())
}

func TestEngine_JournalRecordsRuns(t *testing.T) {
	te := newTestEngine(t, map[string]string{"printer.cfg": greetCfg}, nil)
	ctx := context.Background()

	require.NoError(t, te.Execute(ctx, "GREET"))

	runs, err := te.Journal().ListInvocations(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "greet", runs[0].Macro)
	assert.Equal(t, state.StatusSuccess, runs[0].Status)

	reconciles, err := te.Journal().ListReconciles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, reconciles, 1)
	assert.Equal(t, 1, reconciles[0].Macros)
}

func TestEngine_Options(t *testing.T) {
	t.Run("no journal", func(t *testing.T) {
		te := newTestEngine(t, map[string]string{"printer.cfg": greetCfg}, func(cfg *Config) {
			cfg.NoJournal = true
		})
		assert.Nil(t, te.Journal())
		require.NoError(t, te.Execute(context.Background(), "GREET"))
	})

	t.Run("custom dispatch command and keyword", func(t *testing.T) {
		te := newTestEngine(t, map[string]string{"printer.cfg": `[dynamic_macro hello]
gcode:
    RESPOND MSG="hello"
`}, func(cfg *Config) {
			cfg.DispatchCommand = "DM"
			cfg.Section.Keyword = "dynamic_macro"
		})
		assert.False(t, te.Host().Has("DYNAMIC_MACRO"))
		require.NoError(t, te.Execute(context.Background(), "DM MACRO=hello"))
		assert.Equal(t, "echo: hello", te.texts()[0])
	})

	t.Run("journal file is created", func(t *testing.T) {
		var path string
		te := newTestEngine(t, map[string]string{"printer.cfg": greetCfg}, func(cfg *Config) {
			path = filepath.Join(cfg.ConfigDir, "state", "journal.db")
			cfg.StatePath = path
		})
		assert.Equal(t, path, te.Journal().Path())
		assert.FileExists(t, path)
	})

	t.Run("recursion limit", func(t *testing.T) {
		te := newTestEngine(t, map[string]string{"printer.cfg": `[gcode_macro loop]
gcode:
    LOOP
`}, func(cfg *Config) { cfg.MaxDepth = 3 })
		err := te.Execute(context.Background(), "LOOP")
		assert.ErrorIs(t, err, macro.ErrRecursionLimit)
	})
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{name: "bad reload", mutate: func(cfg *Config) { cfg.Reload = "hourly" }},
		{name: "bad state path", mutate: func(cfg *Config) { cfg.StatePath = "/dev/null/journal.db" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{ProjectConfig: intconfig.ProjectConfig{ConfigDir: t.TempDir()}}
			tt.mutate(&cfg)
			_, err := New(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}
