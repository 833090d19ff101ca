package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/dynmacro/internal/state"
	"github.com/spf13/cobra"
)

const consolePrompt = "dynmacro> "

// NewConsoleCommand creates the console command.
func NewConsoleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive command console",
		Long: `Start an interactive console attached to a fresh host with the dynamic
macros loaded. Every line is run as a command line; responses are printed the
way a printer console shows them.

Dot commands:
  .help           Show console help
  .macros         List dynamic macros
  .reload         Reconcile the registry now
  .quit / .exit   Leave the console`,
		Example: `  dynmacro console`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConsole(cmd)
		},
	}
	return cmd
}

func runConsole(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	historyFile := ""
	if cmdCtx.Cfg.StatePath != state.MemoryPath {
		historyFile = filepath.Join(filepath.Dir(cmdCtx.Cfg.StatePath), "console_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          consolePrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newCommandCompleter(cmdCtx),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdin:           io.NopCloser(cmd.InOrStdin()),
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize console: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r := cmdCtx.Renderer
	r.Println(fmt.Sprintf("dynmacro console (%d macros, dispatch: %s)",
		len(cmdCtx.Engine.Registry().Macros()), cmdCtx.Engine.Registry().DispatchCommand()))
	r.Muted("Type .help for console commands, HELP for host commands")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if quit := handleConsoleLine(ctx, cmdCtx, line); quit {
			return nil
		}
	}
}

// handleConsoleLine runs one console line and reports whether the console
// should exit.
func handleConsoleLine(ctx context.Context, cmdCtx *CommandContext, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	r := cmdCtx.Renderer

	if strings.HasPrefix(line, ".") {
		switch strings.ToLower(strings.Fields(line)[0]) {
		case ".quit", ".exit":
			return true
		case ".help":
			printConsoleHelp(cmdCtx)
		case ".macros":
			listText(cmdCtx.Engine.Registry(), r)
		case ".reload":
			cmdCtx.Engine.Reload(ctx)
			r.Success(fmt.Sprintf("%d macro(s) loaded", len(cmdCtx.Engine.Registry().Macros())))
			printDiagnostics(r, cmdCtx.Engine.Registry().Diagnostics())
		default:
			r.Error(fmt.Sprintf("unknown console command: %s (type .help)", line))
		}
		return false
	}

	if err := cmdCtx.Engine.Execute(ctx, line); err != nil {
		r.Println(r.Render(r.Styles().Error, "!! "+err.Error()))
	}
	return false
}

func printConsoleHelp(cmdCtx *CommandContext) {
	cmdCtx.Renderer.Println(`
Console commands:
  .help           Show this help message
  .macros         List dynamic macros
  .reload         Reconcile the registry now
  .quit / .exit   Leave the console

Anything else is run as a command line, e.g.:
  ` + cmdCtx.Engine.Registry().DispatchCommand() + ` MACRO=<name> [PARAM=value ...]
  HELP
`)
}

// newCommandCompleter completes command names from the live host, so macros
// added by a reload show up without restarting the console.
func newCommandCompleter(cmdCtx *CommandContext) *readline.PrefixCompleter {
	names := func(string) []string {
		infos := cmdCtx.Engine.Host().Commands()
		out := make([]string, len(infos))
		for i, info := range infos {
			out[i] = info.Name
		}
		return out
	}
	return readline.NewPrefixCompleter(
		readline.PcItemDynamic(names),
		readline.PcItem(".help"),
		readline.PcItem(".macros"),
		readline.PcItem(".reload"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
