package template

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrors_NameTheMacro(t *testing.T) {
	tests := []struct {
		name  string
		input string
		macro string
		want  string
	}{
		{
			name:  "unclosed if",
			input: "G28\n{* if x *}\nG1",
			macro: "PARK",
			want:  "macro PARK line 2 col 1: unbalanced block: 'if' is never closed by 'endif'",
		},
		{
			name:  "stray endfor",
			input: "{* endfor *}",
			macro: "HOME",
			want:  "macro HOME line 1 col 1: unbalanced block: 'endfor' has no open 'for'",
		},
		{
			name:  "unknown statement",
			input: "{* loop x *}",
			macro: "LOOP",
			want:  `macro LOOP line 1 col 1: invalid statement: unknown statement "loop"`,
		},
		{
			name:  "anonymous body",
			input: "{* endif *}",
			want:  "line 1 col 1: unbalanced block: 'endif' has no open 'if'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input, tt.macro)
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())

			var tmplErr Error
			require.True(t, errors.As(err, &tmplErr))
			assert.Equal(t, tt.macro, tmplErr.Position().File)
		})
	}
}

func TestErrors_LexErrorStage(t *testing.T) {
	_, err := NewLexer("G1 X{{ x", "PURGE").Tokenize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "macro PURGE line 1 col ")
	assert.Contains(t, err.Error(), ": syntax error: unclosed expression")
}

func TestErrors_RenderErrorUnwraps(t *testing.T) {
	cause := errors.New("nozzle cold")
	err := WrapRenderError(Position{File: "PRIME", Line: 4, Column: 2}, "expression failed", cause)

	assert.Equal(t, "macro PRIME line 4 col 2: render failed: expression failed: nozzle cold", err.Error())
	assert.ErrorIs(t, err, cause)
}
