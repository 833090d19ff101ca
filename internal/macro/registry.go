package macro

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/leapstack-labs/dynmacro/internal/host"
	"github.com/leapstack-labs/dynmacro/internal/scan"
	starctx "github.com/leapstack-labs/dynmacro/internal/starlark"
	"github.com/leapstack-labs/dynmacro/internal/template"
)

// Command tokens owned by the registry.
const (
	DefaultDispatchCommand = "DYNAMIC_MACRO"
	SetVariableCommand     = "SET_DYNAMIC_VARIABLE"
)

// ReloadPolicy decides when the dispatch command rebuilds the registry.
type ReloadPolicy string

// Reload policies.
const (
	// ReloadAlways rebuilds on every dispatch.
	ReloadAlways ReloadPolicy = "always"
	// ReloadOnChange rebuilds only when a source file changed.
	ReloadOnChange ReloadPolicy = "on_change"
)

// ParseReloadPolicy validates a policy name. Empty means ReloadAlways.
func ParseReloadPolicy(s string) (ReloadPolicy, error) {
	switch ReloadPolicy(s) {
	case "", ReloadAlways:
		return ReloadAlways, nil
	case ReloadOnChange:
		return ReloadOnChange, nil
	default:
		return "", fmt.Errorf("unknown reload policy %q (expected always or on_change)", s)
	}
}

// Dispatcher is the command table the registry maintains.
type Dispatcher interface {
	RegisterBase(name string, handler host.Handler, desc string) error
	Register(name string, handler host.Handler, desc string) error
	Unregister(name string)
	Has(name string) bool
}

// Scanner yields macro definitions.
type Scanner interface {
	Scan() ([]scan.Definition, []scan.Diagnostic)
	Fingerprint() string
}

// Config configures a Registry.
type Config struct {
	Dispatcher Dispatcher
	Scanner    Scanner
	Compiler   Compiler
	Runner     *Runner
	// DispatchCommand is the generic dispatch token; empty means
	// DefaultDispatchCommand.
	DispatchCommand string
	Reload          ReloadPolicy
	Journal         Journal
	Logger          *slog.Logger
}

// Registry maps macro names to macros and keeps the dispatcher in step.
type Registry struct {
	dispatcher  Dispatcher
	scanner     Scanner
	compiler    Compiler
	runner      *Runner
	command     string
	reload      ReloadPolicy
	journal     Journal
	logger      *slog.Logger
	macros      map[string]*Macro
	placeholder *Macro
	diagnostics []scan.Diagnostic
	fingerprint string
	loaded      bool
}

// NewRegistry creates an empty registry. Call Install to register its
// commands and Reconcile to load macros.
func NewRegistry(cfg Config) *Registry {
	r := &Registry{
		dispatcher: cfg.Dispatcher,
		scanner:    cfg.Scanner,
		compiler:   cfg.Compiler,
		runner:     cfg.Runner,
		command:    cfg.DispatchCommand,
		reload:     cfg.Reload,
		journal:    cfg.Journal,
		logger:     cfg.Logger,
		macros:     make(map[string]*Macro),
	}
	if r.command == "" {
		r.command = DefaultDispatchCommand
	}
	if r.reload == "" {
		r.reload = ReloadAlways
	}
	if r.journal == nil {
		r.journal = nopJournal{}
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	r.placeholder = newPlaceholder(r.compiler)
	return r
}

// Install registers the dispatch and variable commands as base commands so
// reconciliation never clears them.
func (r *Registry) Install() error {
	if err := r.dispatcher.RegisterBase(r.command, r.cmdDispatch, "Run Dynamic Macro"); err != nil {
		return err
	}
	return r.dispatcher.RegisterBase(SetVariableCommand, r.cmdSetVariable, "Set a persistent variable of a dynamic macro")
}

// DispatchCommand returns the generic dispatch token.
func (r *Registry) DispatchCommand() string {
	return r.command
}

// Reconcile drops every macro and its command, rescans the sources and
// registers a fresh macro per definition. It never fails; scan problems
// are logged and kept in Diagnostics.
func (r *Registry) Reconcile(ctx context.Context) {
	start := time.Now()

	var fingerprint string
	if r.reload == ReloadOnChange {
		fingerprint = r.scanner.Fingerprint()
		if r.loaded && fingerprint == r.fingerprint {
			r.logger.Debug("sources unchanged, keeping macros", slog.Int("macros", len(r.macros)))
			r.record(ctx, ReconcileRecord{
				Fingerprint: fingerprint,
				Macros:      len(r.macros),
				Registered:  r.registeredCount(),
				Skipped:     true,
				Duration:    time.Since(start),
			})
			return
		}
	}

	for _, m := range r.Macros() {
		r.Unregister(m)
	}

	defs, diags := r.scanner.Scan()
	for _, def := range defs {
		r.Register(NewMacro(def, r.compiler))
	}
	r.diagnostics = diags
	r.fingerprint = fingerprint
	r.loaded = true

	for _, m := range r.macros {
		if err := m.Err(); err != nil {
			r.logger.Warn("macro does not compile", slog.String("macro", m.Name), slog.Any("error", err))
		}
	}
	r.logger.Debug("reconciled macros",
		slog.Int("macros", len(r.macros)),
		slog.Int("diagnostics", len(diags)),
		slog.Duration("took", time.Since(start)))

	r.record(ctx, ReconcileRecord{
		Fingerprint: fingerprint,
		Macros:      len(r.macros),
		Registered:  r.registeredCount(),
		Diagnostics: diags,
		Duration:    time.Since(start),
	})
}

func (r *Registry) record(ctx context.Context, rec ReconcileRecord) {
	if err := r.journal.RecordReconcile(ctx, rec); err != nil {
		r.logger.Warn("journal reconcile failed", slog.Any("error", err))
	}
}

func (r *Registry) registeredCount() int {
	n := 0
	for _, m := range r.macros {
		if !m.shadowed {
			n++
		}
	}
	return n
}

// Register tracks m and gives it a command unless the token is taken. A
// macro already tracked under the same name is unregistered first, so the
// last definition of a name wins.
func (r *Registry) Register(m *Macro) {
	if prev, ok := r.macros[m.Name]; ok {
		r.Unregister(prev)
	}
	r.macros[m.Name] = m

	token := m.Command()
	if r.dispatcher.Has(token) {
		m.shadowed = true
		r.logger.Debug("command exists, macro reachable through dispatch only",
			slog.String("macro", m.Name), slog.String("command", token))
		return
	}

	handler := func(ctx context.Context, cmd *host.Command) error {
		return r.runner.Run(ctx, m, cmd.Parameters(), cmd.RawParameters())
	}
	if err := r.dispatcher.Register(token, handler, m.Description); err != nil {
		m.shadowed = true
		r.logger.Warn("register command failed", slog.String("command", token), slog.Any("error", err))
	}
}

// Unregister clears the live command for m's token whether or not m is
// tracked, then stops tracking the name.
func (r *Registry) Unregister(m *Macro) {
	r.dispatcher.Unregister(m.Command())
	delete(r.macros, m.Name)
}

// Lookup returns the macro tracked under name. Names are case-sensitive.
func (r *Registry) Lookup(name string) (*Macro, bool) {
	m, ok := r.macros[name]
	return m, ok
}

// Macros returns the tracked macros sorted by name.
func (r *Registry) Macros() []*Macro {
	out := make([]*Macro, 0, len(r.macros))
	for _, m := range r.macros {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Placeholder returns the fallback macro.
func (r *Registry) Placeholder() *Macro {
	return r.placeholder
}

// Diagnostics returns the diagnostics of the last rescan.
func (r *Registry) Diagnostics() []scan.Diagnostic {
	return slices.Clone(r.diagnostics)
}

func (r *Registry) cmdDispatch(ctx context.Context, cmd *host.Command) error {
	r.Reconcile(ctx)

	name := cmd.Get("MACRO", "")
	if name == "" {
		return nil
	}

	m, ok := r.macros[name]
	if !ok {
		r.logger.Debug("unknown macro, running placeholder", slog.String("macro", name))
		m = r.placeholder
	}
	if err := r.runner.Run(ctx, m, cmd.Parameters(), cmd.RawParameters()); err != nil {
		return err
	}

	cmd.RespondInfo("Globals: " + starctx.FormatDict(m.Globals()))
	return nil
}

func (r *Registry) cmdSetVariable(_ context.Context, cmd *host.Command) error {
	name := cmd.Get("MACRO", "")
	variable := cmd.Get("VARIABLE", "")
	literal := cmd.Get("VALUE", "")
	if name == "" || variable == "" {
		return fmt.Errorf("MACRO and VARIABLE are required")
	}
	if !template.IsIdentifier(variable) {
		return fmt.Errorf("invalid variable name %q", variable)
	}

	m, ok := r.macros[name]
	if !ok {
		return fmt.Errorf("unknown macro %q", name)
	}

	value, err := starctx.NewExecutionContext(nil).EvalExpr(literal, SetVariableCommand, 1)
	if err != nil {
		return fmt.Errorf("unable to parse VALUE %q: %w", literal, err)
	}

	m.SetVariable(variable, value)
	r.logger.Debug("set variable",
		slog.String("macro", name), slog.String("variable", variable), slog.String("value", value.String()))
	return nil
}
