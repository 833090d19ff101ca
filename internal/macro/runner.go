package macro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	starctx "github.com/leapstack-labs/dynmacro/internal/starlark"
	"go.starlark.net/starlark"
)

// DefaultMaxDepth bounds nested macro runs.
const DefaultMaxDepth = 32

// ErrRecursionLimit is returned when macro runs nest deeper than the limit.
var ErrRecursionLimit = errors.New("macro recursion limit exceeded")

// ScriptRunner executes rendered command lines.
type ScriptRunner interface {
	RunScript(ctx context.Context, script string) error
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Host backs the dynamic_host proxy injected into every run.
	Host starctx.HostLookup
	// Commands executes the rendered script.
	Commands ScriptRunner
	// MaxDepth bounds nested runs; zero means DefaultMaxDepth.
	MaxDepth int
	Journal  Journal
	Logger   *slog.Logger
}

// Runner executes macros.
type Runner struct {
	host     starctx.HostLookup
	commands ScriptRunner
	maxDepth int
	journal  Journal
	logger   *slog.Logger
}

// NewRunner creates a runner.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{
		host:     cfg.Host,
		commands: cfg.Commands,
		maxDepth: cfg.MaxDepth,
		journal:  cfg.Journal,
		logger:   cfg.Logger,
	}
	if r.maxDepth <= 0 {
		r.maxDepth = DefaultMaxDepth
	}
	if r.journal == nil {
		r.journal = nopJournal{}
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r
}

type depthKey struct{}

// Depth returns the macro nesting depth carried by ctx.
func Depth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

func withDepth(ctx context.Context, depth int) context.Context {
	return context.WithValue(ctx, depthKey{}, depth)
}

// Run renders m against a context built from its persistent variables, the
// template globals and the injected names, then runs the rendered lines.
func (r *Runner) Run(ctx context.Context, m *Macro, params map[string]string, rawParams string) error {
	depth := Depth(ctx) + 1
	if depth > r.maxDepth {
		return fmt.Errorf("%w: %s at depth %d", ErrRecursionLimit, m.Name, depth)
	}

	id, jerr := r.journal.BeginInvocation(ctx, Invocation{
		Macro:       m.Name,
		Command:     m.Command(),
		RawParams:   rawParams,
		Depth:       depth,
		Placeholder: m.placeholder,
	})
	if jerr != nil {
		r.logger.Warn("journal begin failed", slog.String("macro", m.Name), slog.Any("error", jerr))
	}

	err := r.run(withDepth(ctx, depth), m, params, rawParams)

	if id != "" {
		if jerr := r.journal.CompleteInvocation(ctx, id, err); jerr != nil {
			r.logger.Warn("journal complete failed", slog.String("macro", m.Name), slog.Any("error", jerr))
		}
	}
	return err
}

func (r *Runner) run(ctx context.Context, m *Macro, params map[string]string, rawParams string) error {
	if m.compileErr != nil {
		return m.compileErr
	}

	logger := r.logger.With(slog.String("macro", m.Name))
	logger.Debug("running macro", slog.String("params", rawParams), slog.Int("depth", Depth(ctx)))

	execCtx := starctx.NewContextBuilder().
		WithVariables(m.variables).
		WithGlobals(m.template.Globals()).
		Inject(starctx.HostName, starctx.NewHostProxy(r.host, logger)).
		Inject(starctx.ParamsName, starctx.StringMapToStarlark(params)).
		Inject(starctx.RawParamsName, starlark.String(rawParams)).
		WithLogger(logger).
		Build()

	script, err := m.template.Render(execCtx)
	if err != nil {
		return fmt.Errorf("render %s: %w", m.Name, err)
	}

	return r.commands.RunScript(ctx, script)
}
