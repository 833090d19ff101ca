package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tokenWant struct {
	typ TokenType
	val string
}

func assertTokens(t *testing.T, input string, want []tokenWant) {
	t.Helper()
	tokens, err := NewLexer(input, "greet").Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, len(want), "wrong number of tokens")

	for i, exp := range want {
		assert.Equal(t, exp.typ, tokens[i].Type, "token[%d] type", i)
		if exp.typ != TokenEOF {
			assert.Equal(t, exp.val, tokens[i].Value, "token[%d] value", i)
		}
	}
}

func TestLexer_PlainText(t *testing.T) {
	assertTokens(t, `RESPOND MSG="hi"`, []tokenWant{
		{TokenText, `RESPOND MSG="hi"`},
		{TokenEOF, ""},
	})
}

func TestLexer_Expressions(t *testing.T) {
	assertTokens(t, "G1 X{{ x }} Y{{ y }}", []tokenWant{
		{TokenText, "G1 X"},
		{TokenExpr, "x"},
		{TokenText, " Y"},
		{TokenExpr, "y"},
		{TokenEOF, ""},
	})
}

func TestLexer_Statement(t *testing.T) {
	assertTokens(t, "{* for x in items: *}", []tokenWant{
		{TokenStmt, "for x in items:"},
		{TokenEOF, ""},
	})
}

func TestLexer_Comment(t *testing.T) {
	assertTokens(t, "M117 a{# set display #}b", []tokenWant{
		{TokenText, "M117 a"},
		{TokenComment, "set display"},
		{TokenText, "b"},
		{TokenEOF, ""},
	})
}

func TestLexer_ForLoop(t *testing.T) {
	input := `{* for axis in ["X", "Y"]: *}
G28 {{ axis }}
{* endfor *}
M117 homed`

	expectedTypes := []TokenType{
		TokenStmt, // for
		TokenText, // "\nG28 "
		TokenExpr, // axis
		TokenText, // "\n"
		TokenStmt, // endfor
		TokenText, // "\nM117 homed"
		TokenEOF,
	}

	tokens, err := NewLexer(input, "home").Tokenize()
	require.NoError(t, err)
	require.Len(t, tokens, len(expectedTypes))
	for i, exp := range expectedTypes {
		assert.Equal(t, exp, tokens[i].Type, "token[%d] type", i)
	}
}

func TestLexer_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unclosed expression", "G1 X{{ x"},
		{"unclosed statement", "{* for x in items: G28"},
		{"unclosed comment", "{# never closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLexer(tt.input, "bad").Tokenize()
			require.Error(t, err)

			lexErr, ok := err.(*LexError)
			require.True(t, ok, "expected LexError, got %T", err)
			assert.Equal(t, 1, lexErr.Position().Line)
			assert.Contains(t, lexErr.Error(), "macro bad line 1 col ")
		})
	}
}

func TestLexer_NestedBraces(t *testing.T) {
	assertTokens(t, `{{ {"speed": {"max": 300}}["speed"]["max"] }}`, []tokenWant{
		{TokenExpr, `{"speed": {"max": 300}}["speed"]["max"]`},
		{TokenEOF, ""},
	})
}

func TestLexer_PositionTracking(t *testing.T) {
	tokens, err := NewLexer("G28\nG90\n  {{ z }}", "home").Tokenize()
	require.NoError(t, err)

	exprToken := tokens[1]
	require.Equal(t, TokenExpr, exprToken.Type)
	assert.Equal(t, 3, exprToken.Pos.Line)
	assert.Equal(t, 3, exprToken.Pos.Column)
	assert.Equal(t, "home", exprToken.Pos.File)
}

func TestLexer_WhitespaceHandling(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"{{  x  }}", "x"},
		{"{{x}}", "x"},
		{"{{  x + y  }}", "x + y"},
		{"{*  for x in y:  *}", "for x in y:"},
		{"{#   note   #}", "note"},
		{"{{ }}", ""},
	}

	for _, tt := range tests {
		tokens, err := NewLexer(tt.input, "ws").Tokenize()
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.expected, tokens[0].Value, "input %q", tt.input)
	}
}

func TestLexer_MacroBody(t *testing.T) {
	input := `{# park the head #}
{* set z = params.get("Z", "10") *}
{* if dynamic_host.toolhead != "NONE": *}
G1 Z{{ z }}
{* else: *}
RESPOND TYPE=error MSG="no toolhead"
{* endif *}
{* for i in range(2): *}
M117 {{ i }}
{* endfor *}`

	tokens, err := NewLexer(input, "park").Tokenize()
	require.NoError(t, err)

	counts := make(map[TokenType]int)
	for _, tok := range tokens {
		counts[tok.Type]++
	}

	assert.Equal(t, 2, counts[TokenExpr], "z and i")
	assert.Equal(t, 6, counts[TokenStmt], "set, if, else, endif, for, endfor")
	assert.Equal(t, 1, counts[TokenComment])
	assert.Equal(t, 1, counts[TokenEOF])
}

func TestTokenType_String(t *testing.T) {
	assert.Equal(t, "TEXT", TokenText.String())
	assert.Equal(t, "COMMENT", TokenComment.String())
	assert.Equal(t, "UNKNOWN", TokenType(99).String())
}
