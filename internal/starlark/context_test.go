package starlark

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestExecutionContext_EvalExpr(t *testing.T) {
	params := StringMapToStarlark(map[string]string{"NAME": "bob", "COUNT": "3"})
	ctx := NewExecutionContext(starlark.StringDict{
		"params":    params,
		"rawparams": starlark.String("NAME=bob COUNT=3"),
		"speed":     starlark.MakeInt(50),
	})

	tests := []struct {
		name    string
		expr    string
		want    string
		wantErr bool
	}{
		{name: "simple string", expr: `"hello"`, want: "hello"},
		{name: "param access", expr: `params["NAME"]`, want: "bob"},
		{name: "param get default", expr: `params.get("MISSING", "x")`, want: "x"},
		{name: "raw params", expr: `rawparams`, want: "NAME=bob COUNT=3"},
		{name: "int conversion", expr: `int(params["COUNT"]) * speed`, want: "150"},
		{name: "conditional", expr: `"fast" if speed > 10 else "slow"`, want: "fast"},
		{name: "none renders empty", expr: `None`, want: ""},
		{name: "list renders repr", expr: `[1, 2]`, want: "[1, 2]"},
		{name: "undefined variable", expr: `nope`, wantErr: true},
		{name: "syntax error", expr: `1 +`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ctx.EvalExprString(tt.expr, "greet", 1)
			if tt.wantErr {
				require.Error(t, err)
				var evalErr *EvalError
				assert.True(t, errors.As(err, &evalErr), "expected *EvalError, got %T", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExecutionContext_LocalsShadowGlobals(t *testing.T) {
	ctx := NewExecutionContext(starlark.StringDict{"x": starlark.String("global")})

	got, err := ctx.EvalExprStringWithLocals("x", "t", 1, starlark.StringDict{"x": starlark.String("local")})
	require.NoError(t, err)
	assert.Equal(t, "local", got)

	got, err = ctx.EvalExprString("x", "t", 1)
	require.NoError(t, err)
	assert.Equal(t, "global", got, "locals must not leak into globals")
}

func TestEvalError_Message(t *testing.T) {
	withLine := &EvalError{File: "greet", Line: 3, Expr: "x", Message: "undefined: x"}
	assert.Equal(t, `greet:3: error evaluating "x": undefined: x`, withLine.Error())

	noLine := &EvalError{File: "greet", Expr: "x", Message: "undefined: x"}
	assert.Equal(t, `greet: error evaluating "x": undefined: x`, noLine.Error())
}

func TestContextBuilder_Precedence(t *testing.T) {
	vars := starlark.StringDict{
		"only_var": starlark.String("var"),
		"shared":   starlark.String("var"),
		"params":   starlark.String("var"),
	}
	globals := starlark.StringDict{
		"only_global": starlark.String("global"),
		"shared":      starlark.String("global"),
		"params":      starlark.String("global"),
	}

	// Call order is deliberately reversed; precedence must not depend on it.
	ctx := NewContextBuilder().
		Inject("params", starlark.String("injected")).
		WithGlobals(globals).
		WithVariables(vars).
		Build()

	g := ctx.Globals()
	assert.Equal(t, starlark.String("var"), g["only_var"])
	assert.Equal(t, starlark.String("global"), g["only_global"])
	assert.Equal(t, starlark.String("global"), g["shared"], "engine globals override persistent variables")
	assert.Equal(t, starlark.String("injected"), g["params"], "injected names override everything")
}

func TestContextBuilder_CopiesVariables(t *testing.T) {
	vars := starlark.StringDict{"count": starlark.MakeInt(1)}
	ctx := NewContextBuilder().WithVariables(vars).Build()

	ctx.Globals()["count"] = starlark.MakeInt(2)
	assert.Equal(t, starlark.MakeInt(1), vars["count"], "building must not alias the variable store")
}
