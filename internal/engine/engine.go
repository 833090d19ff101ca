// Package engine assembles a running dynmacro host: the command dispatcher,
// the macro scanner, the template engine, the registry and the optional
// invocation journal.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"

	intconfig "github.com/leapstack-labs/dynmacro/internal/config"
	"github.com/leapstack-labs/dynmacro/internal/host"
	"github.com/leapstack-labs/dynmacro/internal/macro"
	"github.com/leapstack-labs/dynmacro/internal/scan"
	starctx "github.com/leapstack-labs/dynmacro/internal/starlark"
	"github.com/leapstack-labs/dynmacro/internal/state"
	"github.com/leapstack-labs/dynmacro/internal/template"
)

// Engine owns one host and the macro registry installed on it.
type Engine struct {
	logger   *slog.Logger
	host     *host.Host
	scanner  *scan.Scanner
	registry *macro.Registry
	library  *starctx.Library
	journal  *state.SQLiteStore
}

// Config holds engine configuration.
type Config struct {
	intconfig.ProjectConfig

	// NoJournal disables the invocation journal even if StatePath is set.
	NoJournal bool
	// Sink receives host responses (optional, responses are dropped if nil)
	Sink host.Sink
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine, installs the macro commands and loads the macros
// once. Helper library failures are logged, not fatal.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	reload, err := macro.ParseReloadPolicy(cfg.Reload)
	if err != nil {
		return nil, err
	}

	logger.Debug("initializing engine",
		slog.String("config_dir", cfg.ConfigDir),
		slog.Any("configs", cfg.Configs),
		slog.String("reload", string(reload)))

	e := &Engine{logger: logger}

	if !cfg.NoJournal && cfg.StatePath != "" {
		if e.journal, err = openJournal(cfg.StatePath, logger); err != nil {
			return nil, err
		}
	}

	e.host = host.New(host.Config{
		Sink:    cfg.Sink,
		Objects: cfg.Objects,
		Logger:  logger,
	})

	e.library, err = starctx.LoadLibrary(cfg.HelpersDir, logger)
	if err != nil {
		logger.Warn("failed to load some helper libraries", slog.String("dir", cfg.HelpersDir), slog.Any("error", err))
		if e.library == nil {
			e.library = starctx.NewLibrary()
		}
	}

	globals := maps.Clone(e.library.Globals())
	maps.Copy(globals, starctx.Predeclared(e.host))
	compiler := template.NewEngine(template.WithGlobals(globals), template.WithLogger(logger))

	e.scanner = scan.New(scan.Config{
		Sources:            cfg.Configs,
		BaseDir:            cfg.ConfigDir,
		Keyword:            cfg.Section.Keyword,
		BodyKey:            cfg.Section.BodyKey,
		DescriptionKey:     cfg.Section.DescriptionKey,
		DefaultDescription: cfg.Section.DefaultDescription,
		Logger:             logger,
	})

	var journal macro.Journal
	if e.journal != nil {
		journal = e.journal
	}

	runner := macro.NewRunner(macro.RunnerConfig{
		Host:     e.host,
		Commands: e.host,
		MaxDepth: cfg.MaxDepth,
		Journal:  journal,
		Logger:   logger,
	})

	e.registry = macro.NewRegistry(macro.Config{
		Dispatcher:      e.host,
		Scanner:         e.scanner,
		Compiler:        compiler,
		Runner:          runner,
		DispatchCommand: cfg.DispatchCommand,
		Reload:          reload,
		Journal:         journal,
		Logger:          logger,
	})
	if err := e.registry.Install(); err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("failed to install macro commands: %w", err)
	}

	e.registry.Reconcile(ctx)
	return e, nil
}

func openJournal(path string, logger *slog.Logger) (*state.SQLiteStore, error) {
	if path != state.MemoryPath {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}
	store := state.NewSQLiteStore(logger)
	if err := store.Open(path); err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return store, nil
}

// Execute runs one command line on the host.
func (e *Engine) Execute(ctx context.Context, line string) error {
	return e.host.Run(ctx, line)
}

// Reload reconciles the registry against the sources.
func (e *Engine) Reload(ctx context.Context) {
	e.registry.Reconcile(ctx)
}

// Host returns the command host.
func (e *Engine) Host() *host.Host { return e.host }

// Registry returns the macro registry.
func (e *Engine) Registry() *macro.Registry { return e.registry }

// Scanner returns the macro source scanner.
func (e *Engine) Scanner() *scan.Scanner { return e.scanner }

// Library returns the loaded helper libraries.
func (e *Engine) Library() *starctx.Library { return e.library }

// Journal returns the invocation journal, or nil when disabled.
func (e *Engine) Journal() *state.SQLiteStore { return e.journal }

// Close releases the journal.
func (e *Engine) Close() error {
	if e.journal != nil {
		return e.journal.Close()
	}
	return nil
}
