package host

import (
	"context"
	"errors"
	"testing"

	"github.com/leapstack-labs/dynmacro/internal/registry"
	"github.com/leapstack-labs/dynmacro/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	responses []Response
}

func (r *recorder) sink(resp Response) {
	r.responses = append(r.responses, resp)
}

func (r *recorder) texts() []string {
	out := make([]string, len(r.responses))
	for i, resp := range r.responses {
		out[i] = resp.Text
	}
	return out
}

func newTestHost(t *testing.T) (*Host, *recorder) {
	t.Helper()
	rec := &recorder{}
	h := New(Config{
		Sink:    rec.sink,
		Objects: map[string]any{"toolhead": map[string]any{"homed_axes": "xy"}},
		Logger:  testutil.NewTestLogger(t),
	})
	return h, rec
}

func TestDispatcher_RegisterAndRun(t *testing.T) {
	d := NewDispatcher(nil, testutil.NewTestLogger(t))

	var got *Command
	require.NoError(t, d.Register("greet", func(_ context.Context, cmd *Command) error {
		got = cmd
		return nil
	}, "Say hi"))

	assert.True(t, d.Has("GREET"))
	assert.True(t, d.Has("greet"), "names are case-insensitive")
	assert.False(t, d.IsBase("GREET"))

	require.NoError(t, d.Run(context.Background(), "greet NAME=bob"))
	require.NotNil(t, got)
	assert.Equal(t, "GREET", got.Name)
	assert.Equal(t, "bob", got.Get("NAME", ""))

	err := d.Register("GREET", func(context.Context, *Command) error { return nil }, "")
	assert.True(t, errors.Is(err, ErrCommandExists))
}

func TestDispatcher_BaseCommandsAreProtected(t *testing.T) {
	d := NewDispatcher(nil, nil)
	require.NoError(t, d.RegisterBase("HELP", func(context.Context, *Command) error { return nil }, "help"))

	err := d.Register("help", func(context.Context, *Command) error { return nil }, "")
	assert.True(t, errors.Is(err, ErrCommandExists), "live registration cannot shadow a base command")

	d.Unregister("HELP")
	assert.True(t, d.Has("HELP"), "unregister never clears base commands")

	require.NoError(t, d.Register("HELP", nil, ""), "nil handler is an unregister")
	assert.True(t, d.Has("HELP"))
	assert.True(t, d.IsBase("HELP"))
}

func TestDispatcher_UnregisterUnknownIsNoop(t *testing.T) {
	d := NewDispatcher(nil, nil)
	d.Unregister("NEVER")
	assert.Empty(t, d.Commands())
}

func TestDispatcher_Errors(t *testing.T) {
	d := NewDispatcher(nil, nil)
	boom := errors.New("boom")
	require.NoError(t, d.Register("FAIL", func(context.Context, *Command) error { return boom }, ""))

	err := d.Run(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCommand))
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "NOPE", cmdErr.Command)

	err = d.Run(context.Background(), "fail")
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, "FAIL: boom", err.Error())

	assert.Error(t, d.Run(context.Background(), `RESPOND MSG="open`))
	assert.NoError(t, d.Run(context.Background(), "; nothing"))
}

func TestDispatcher_RunScript(t *testing.T) {
	d := NewDispatcher(nil, nil)
	var seen []string
	record := func(_ context.Context, cmd *Command) error {
		seen = append(seen, cmd.Name+" "+cmd.Raw)
		return nil
	}
	require.NoError(t, d.Register("A", record, ""))
	require.NoError(t, d.Register("B", record, ""))

	script := "\n  A X=1\n\n; comment\nB\n   \nA X=2\n"
	require.NoError(t, d.RunScript(context.Background(), script))
	assert.Equal(t, []string{"A X=1", "B ", "A X=2"}, seen)

	seen = nil
	err := d.RunScript(context.Background(), "A\nMISSING\nB")
	require.Error(t, err)
	assert.Equal(t, []string{"A "}, seen, "script stops at the first failure")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	seen = nil
	err = d.RunScript(ctx, "A\nB")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, seen)
}

func TestDispatcher_Commands(t *testing.T) {
	h, _ := newTestHost(t)
	require.NoError(t, h.Register("GREET", func(context.Context, *Command) error { return nil }, "Say hi"))

	var names []string
	for _, c := range h.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"GREET", "HELP", "M117", "RESPOND"}, names)
	assert.Equal(t, []string{"GREET"}, h.LiveCommands())
}

func TestHost_Respond(t *testing.T) {
	tests := []struct {
		line     string
		wantKind ResponseKind
		wantText string
	}{
		{`RESPOND MSG="hi"`, KindRaw, "echo: hi"},
		{`RESPOND TYPE=command MSG="action:pause"`, KindRaw, "// action:pause"},
		{`RESPOND TYPE=error MSG="too hot"`, KindError, "!! too hot"},
		{`RESPOND PREFIX=info: MSG="custom"`, KindRaw, "info: custom"},
		{`RESPOND`, KindRaw, "echo:"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			h, rec := newTestHost(t)
			require.NoError(t, h.Run(context.Background(), tt.line))
			require.Len(t, rec.responses, 1)
			assert.Equal(t, tt.wantKind, rec.responses[0].Kind)
			assert.Equal(t, tt.wantText, rec.responses[0].Text)
		})
	}

	h, _ := newTestHost(t)
	assert.Error(t, h.Run(context.Background(), "RESPOND TYPE=loud MSG=x"))
}

func TestHost_M117(t *testing.T) {
	h, rec := newTestHost(t)

	require.NoError(t, h.Run(context.Background(), "M117 ERROR"))
	assert.Equal(t, "ERROR", h.Display().Message())
	assert.Equal(t, []string{"ERROR"}, rec.texts())

	obj, ok := h.LookupObject(DisplayStatusObject)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"message": "ERROR"}, obj.(*DisplayStatus).Status())

	require.NoError(t, h.Run(context.Background(), "M117"))
	assert.Empty(t, h.Display().Message(), "bare M117 clears the message")
	assert.Len(t, rec.responses, 1, "clearing does not respond")
}

func TestHost_Help(t *testing.T) {
	h, rec := newTestHost(t)
	require.NoError(t, h.Run(context.Background(), "HELP"))
	require.Len(t, rec.responses, 1)
	assert.Equal(t, KindInfo, rec.responses[0].Kind)
	assert.Contains(t, rec.responses[0].Text, "RESPOND")
	assert.Contains(t, rec.responses[0].Text, "Set the display message")
}

func TestHost_Objects(t *testing.T) {
	h, _ := newTestHost(t)

	obj, ok := h.LookupObject("toolhead")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"homed_axes": "xy"}, obj)

	_, err := h.Item("fan")
	assert.ErrorIs(t, err, registry.ErrObjectNotFound)
	assert.Equal(t, []string{"display_status", "toolhead"}, h.Objects().Names())
}

func TestResponseKind_String(t *testing.T) {
	assert.Equal(t, "info", KindInfo.String())
	assert.Equal(t, "error", KindError.String())
	assert.Equal(t, "unknown", ResponseKind(9).String())
}
