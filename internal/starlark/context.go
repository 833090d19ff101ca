package starlark

import (
	"fmt"
	"log/slog"
	"maps"

	"go.starlark.net/starlark"
)

// Names injected into every macro run.
const (
	HostName      = "dynamic_host"
	ParamsName    = "params"
	RawParamsName = "rawparams"
)

// ExecutionContext holds the globals a template is rendered against.
type ExecutionContext struct {
	globals starlark.StringDict
	logger  *slog.Logger
}

// NewExecutionContext creates a context over a fixed globals dict.
func NewExecutionContext(globals starlark.StringDict) *ExecutionContext {
	if globals == nil {
		globals = make(starlark.StringDict)
	}
	return &ExecutionContext{
		globals: globals,
		logger:  slog.New(slog.DiscardHandler),
	}
}

// Globals returns the combined globals dictionary for Starlark execution.
func (ctx *ExecutionContext) Globals() starlark.StringDict {
	return ctx.globals
}

// EvalExpr evaluates a single Starlark expression and returns the result.
// This is used for {{ expr }} template expressions.
func (ctx *ExecutionContext) EvalExpr(expr string, filename string, line int) (starlark.Value, error) {
	return ctx.EvalExprWithLocals(expr, filename, line, nil)
}

// EvalExprWithLocals evaluates a Starlark expression with additional local
// variables. Locals shadow globals.
func (ctx *ExecutionContext) EvalExprWithLocals(expr string, filename string, line int, locals starlark.StringDict) (starlark.Value, error) {
	thread := newThread(filename, ctx.logger)

	globals := ctx.globals
	if len(locals) > 0 {
		globals = make(starlark.StringDict, len(ctx.globals)+len(locals))
		maps.Copy(globals, ctx.globals)
		maps.Copy(globals, locals)
	}

	result, err := starlark.EvalOptions(fileOptions, thread, filename, expr, globals)
	if err != nil {
		return nil, &EvalError{
			File:    filename,
			Line:    line,
			Expr:    expr,
			Message: err.Error(),
			Cause:   err,
		}
	}

	return result, nil
}

// EvalExprString evaluates a Starlark expression and returns the string result.
func (ctx *ExecutionContext) EvalExprString(expr string, filename string, line int) (string, error) {
	return ctx.EvalExprStringWithLocals(expr, filename, line, nil)
}

// EvalExprStringWithLocals evaluates a Starlark expression with local variables and returns the string result.
func (ctx *ExecutionContext) EvalExprStringWithLocals(expr string, filename string, line int, locals starlark.StringDict) (string, error) {
	result, err := ctx.EvalExprWithLocals(expr, filename, line, locals)
	if err != nil {
		return "", err
	}

	switch v := result.(type) {
	case starlark.String:
		return string(v), nil
	case starlark.NoneType:
		return "", nil
	default:
		return result.String(), nil
	}
}

// EvalError represents an error during Starlark expression evaluation.
type EvalError struct {
	File    string
	Line    int
	Expr    string
	Message string
	Cause   error
}

func (e *EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: error evaluating %q: %s", e.File, e.Line, e.Expr, e.Message)
	}
	return fmt.Sprintf("%s: error evaluating %q: %s", e.File, e.Expr, e.Message)
}

func (e *EvalError) Unwrap() error {
	return e.Cause
}

// ContextBuilder assembles the per-run context from three layers merged in a
// fixed order: persistent variables, then engine globals, then injected names.
// A later layer wins on a name collision regardless of the order the builder
// methods were called in.
type ContextBuilder struct {
	variables starlark.StringDict
	globals   starlark.StringDict
	injected  starlark.StringDict
	logger    *slog.Logger
}

// NewContextBuilder creates an empty builder.
func NewContextBuilder() *ContextBuilder {
	return &ContextBuilder{
		injected: make(starlark.StringDict),
		logger:   slog.New(slog.DiscardHandler),
	}
}

// WithVariables sets the persistent variable layer. The map is copied.
func (b *ContextBuilder) WithVariables(vars starlark.StringDict) *ContextBuilder {
	b.variables = maps.Clone(vars)
	return b
}

// WithGlobals sets the engine globals layer.
func (b *ContextBuilder) WithGlobals(globals starlark.StringDict) *ContextBuilder {
	b.globals = globals
	return b
}

// Inject adds a name to the top layer.
func (b *ContextBuilder) Inject(name string, value starlark.Value) *ContextBuilder {
	b.injected[name] = value
	return b
}

// WithLogger sets the logger used by threads of the built context.
func (b *ContextBuilder) WithLogger(logger *slog.Logger) *ContextBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Build merges the layers into an ExecutionContext.
func (b *ContextBuilder) Build() *ExecutionContext {
	merged := make(starlark.StringDict, len(b.variables)+len(b.globals)+len(b.injected))
	maps.Copy(merged, b.variables)
	maps.Copy(merged, b.globals)
	maps.Copy(merged, b.injected)

	ctx := NewExecutionContext(merged)
	ctx.logger = b.logger
	return ctx
}
