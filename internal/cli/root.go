// Package cli provides the command-line interface for dynmacro.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/leapstack-labs/dynmacro/internal/cli/commands"
	"github.com/leapstack-labs/dynmacro/internal/cli/config"
	"github.com/leapstack-labs/dynmacro/internal/cli/output"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// rendererKey is used to store renderer in context.
type rendererKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dynmacro",
		Short: "dynmacro - reloadable G-code macros",
		Long: `dynmacro hosts dynamic G-code macros defined in printer config files.

Macros are read from [gcode_macro ...] sections of the configured files,
rendered as templates with Starlark helpers, and run on a command host.
Edits to the files are picked up without a restart: the registry reconciles
on every dispatch, or only when the files changed.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := cfg.LogLevel
			if cfg.Verbose && level == config.DefaultLogLevel {
				level = "debug"
			}
			logger, err := config.NewLogger(cmd.ErrOrStderr(), level, cfg.LogFormat, term.IsTerminal(int(os.Stderr.Fd())))
			if err != nil {
				return err
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = config.WithLogger(ctx, logger)

			// Create and store renderer based on output mode
			renderer := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
			ctx = context.WithValue(ctx, rendererKey{}, renderer)
			cmd.SetContext(ctx)

			if cfg.Verbose {
				if configFile := config.GetConfigFileUsed(); configFile != "" {
					logger.Info("using config file", "path", configFile)
				}
				logger.Info("project root", "path", cfg.ProjectRoot)
			}

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Built with Go and Starlark
`)

	// Global persistent flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./dynmacro.yaml)")
	flags.String("project-dir", "", "Project root (default: directory of dynmacro.yaml)")
	flags.String("config-dir", "", "Directory the macro sources are read from")
	flags.StringSlice("configs", nil, "Macro source files, in scan order")
	flags.String("helpers-dir", "", "Directory of Starlark helper libraries")
	flags.String("state", "", "Path to the invocation journal (:memory: disables it)")
	flags.String("reload", "", "Reload policy (always|on_change)")
	flags.Int("max-depth", 0, "Maximum nested macro depth")
	flags.String("dispatch-command", "", "Name of the dispatch command")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-format", "", "Log format (auto|pretty|text|json)")

	completions := map[string][]string{
		"output":     {"auto", "text", "markdown", "json"},
		"reload":     {"always", "on_change"},
		"log-level":  {"debug", "info", "warn", "error"},
		"log-format": {"auto", "pretty", "text", "json"},
	}
	for name, values := range completions {
		_ = rootCmd.RegisterFlagCompletionFunc(name, func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		})
	}

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewExecCommand())
	rootCmd.AddCommand(commands.NewConsoleCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewCheckCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	return config.GetCurrentConfig()
}

// GetRenderer retrieves the renderer from the command context.
func GetRenderer(ctx context.Context) *output.Renderer {
	if r, ok := ctx.Value(rendererKey{}).(*output.Renderer); ok {
		return r
	}
	// Return default renderer if none in context
	return output.NewRenderer(os.Stdout, os.Stderr, output.ModeAuto)
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for dynmacro.

To load completions:

Bash:
  $ source <(dynmacro completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ dynmacro completion bash > /etc/bash_completion.d/dynmacro
  # macOS:
  $ dynmacro completion bash > $(brew --prefix)/etc/bash_completion.d/dynmacro

Zsh:
  $ dynmacro completion zsh > "${fpath[1]}/_dynmacro"

Fish:
  $ dynmacro completion fish > ~/.config/fish/completions/dynmacro.fish

PowerShell:
  PS> dynmacro completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
