// Package macro implements the dynamic macro registry and runner.
//
// A Registry rebuilds its macros from the configured sources on every
// reconciliation and keeps one dispatcher command per macro name. A Runner
// renders a macro's template against a freshly layered context and feeds
// the result back through the dispatcher.
//
// Registry and Runner assume serial command processing, as the dispatcher
// does. They are not safe for concurrent use.
package macro

import (
	"maps"

	"github.com/leapstack-labs/dynmacro/internal/scan"
	"github.com/leapstack-labs/dynmacro/internal/template"
	"go.starlark.net/starlark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// PlaceholderName and PlaceholderBody define the fallback macro run when a
// requested name is unknown.
const (
	PlaceholderName = "Placeholder"
	PlaceholderBody = "M117 ERROR"
)

// Compiler turns a macro body into a template.
type Compiler interface {
	Compile(name, body string) (*template.Template, error)
}

// Macro is one compiled macro definition. A Macro lives until the next
// reconciliation replaces it.
type Macro struct {
	Name        string
	Body        string
	Description string
	Source      string

	variables   starlark.StringDict
	template    *template.Template
	compileErr  error
	shadowed    bool
	placeholder bool
}

// NewMacro compiles def. A compile failure does not fail construction; it
// is kept and returned by every run of the macro.
func NewMacro(def scan.Definition, c Compiler) *Macro {
	m := &Macro{
		Name:        def.Name,
		Body:        def.Body,
		Description: def.Description,
		Source:      def.Source,
		variables:   make(starlark.StringDict),
	}
	m.template, m.compileErr = c.Compile(def.Name, def.Body)
	return m
}

func newPlaceholder(c Compiler) *Macro {
	m := NewMacro(scan.Definition{
		Name:        PlaceholderName,
		Body:        PlaceholderBody,
		Description: "Unknown macro",
	}, c)
	m.placeholder = true
	return m
}

// Command returns the dispatcher token for the macro.
func (m *Macro) Command() string {
	return cases.Upper(language.Und).String(m.Name)
}

// Err returns the compile error, if any.
func (m *Macro) Err() error {
	return m.compileErr
}

// Shadowed reports whether registration was skipped because another
// command already owned the token. A shadowed macro is only reachable
// through the dispatch command.
func (m *Macro) Shadowed() bool {
	return m.shadowed
}

// Globals returns the template's ambient globals. They are what the
// dispatch command reports after a run.
func (m *Macro) Globals() starlark.StringDict {
	if m.template == nil {
		return starlark.StringDict{}
	}
	return m.template.Globals()
}

// Variables returns a copy of the persistent variables.
func (m *Macro) Variables() starlark.StringDict {
	return maps.Clone(m.variables)
}

// SetVariable stores a persistent variable. The value is frozen so runs
// cannot mutate it in place.
func (m *Macro) SetVariable(name string, value starlark.Value) {
	value.Freeze()
	m.variables[name] = value
}
