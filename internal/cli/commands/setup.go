package commands

import (
	"log/slog"
	"strings"

	"github.com/leapstack-labs/dynmacro/internal/cli/config"
	"github.com/leapstack-labs/dynmacro/internal/cli/output"
	"github.com/leapstack-labs/dynmacro/internal/engine"
	"github.com/leapstack-labs/dynmacro/internal/host"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return nil, nil, err
	}

	eng, err := createEngine(cmd, cmdCtx.Cfg, cmdCtx.Logger, responseSink(cmdCtx.Renderer))
	if err != nil {
		return nil, nil, err
	}
	cmdCtx.Engine = eng

	cleanup := func() {
		_ = eng.Close()
	}
	return cmdCtx, cleanup, nil
}

// NewCommandContextWithoutEngine creates a CommandContext without an engine.
// Useful for commands that only scan sources or read the journal.
func NewCommandContextWithoutEngine(cmd *cobra.Command) (*CommandContext, error) {
	cfg, err := getConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}, nil
}

// getConfig returns the current configuration, loading it from the working
// directory when the root command did not.
func getConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg, nil
	}
	return config.LoadConfig("", cmd.Flags())
}

func createEngine(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, sink host.Sink) (*engine.Engine, error) {
	return engine.New(cmd.Context(), engine.Config{
		ProjectConfig: cfg.ProjectConfig,
		Sink:          sink,
		Logger:        logger,
	})
}

// responseSink prints host responses the way a console client shows them.
func responseSink(r *output.Renderer) host.Sink {
	return func(resp host.Response) {
		switch resp.Kind {
		case host.KindError:
			r.Println(r.Render(r.Styles().Error, resp.Text))
		case host.KindInfo:
			for _, line := range strings.Split(resp.Text, "\n") {
				r.Info("// " + line)
			}
		default:
			r.Println(resp.Text)
		}
	}
}
