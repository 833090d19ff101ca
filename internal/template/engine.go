package template

import (
	"fmt"
	"log/slog"
	"maps"

	"go.starlark.net/starlark"
)

// Engine compiles macro bodies into templates bound to a fixed set of
// ambient globals (action helpers and helper-library namespaces).
type Engine struct {
	globals starlark.StringDict
	logger  *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithGlobals adds ambient globals. Later options override earlier ones.
func WithGlobals(globals starlark.StringDict) EngineOption {
	return func(e *Engine) {
		maps.Copy(e.globals, globals)
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a template engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		globals: make(starlark.StringDict),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile parses body into a template named name. The returned template
// carries a copy of the engine globals.
func (e *Engine) Compile(name, body string) (*Template, error) {
	tmpl, err := ParseString(body, name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	tmpl.globals = maps.Clone(e.globals)
	e.logger.Debug("compiled template", slog.String("name", name), slog.Int("nodes", len(tmpl.Nodes)))
	return tmpl, nil
}

// Globals returns a copy of the engine globals.
func (e *Engine) Globals() starlark.StringDict {
	return maps.Clone(e.globals)
}
