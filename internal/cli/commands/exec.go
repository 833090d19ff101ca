package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// ExecOptions holds options for the exec command.
type ExecOptions struct {
	KeepGoing bool
}

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	opts := &ExecOptions{}

	cmd := &cobra.Command{
		Use:   "exec <line>... | -",
		Short: "Run command lines against a fresh host",
		Long: `Load the macros and run each argument as one command line, in order.
With "-" the lines are read from stdin; blank lines and ";" comments are skipped.

Responses are printed as a console client would show them.`,
		Example: `  # Run a macro through the dispatch command
  dynmacro exec "DYNAMIC_MACRO MACRO=greet NAME=bob"

  # Run a macro by its own command, then list commands
  dynmacro exec GREET HELP

  # Run a script
  dynmacro exec - < script.gcode`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.KeepGoing, "keep-going", "k", false, "Continue with the next line after a failure")

	return cmd
}

func runExec(cmd *cobra.Command, args []string, opts *ExecOptions) error {
	lines := args
	if len(args) == 1 && args[0] == "-" {
		var err error
		if lines, err = readLines(cmd.InOrStdin()); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var errs []error
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := cmdCtx.Engine.Execute(cmd.Context(), line); err != nil {
			cmdCtx.Renderer.Println(cmdCtx.Renderer.Render(cmdCtx.Renderer.Styles().Error, "!! "+err.Error()))
			wrapped := fmt.Errorf("line %d (%s): %w", i+1, strings.TrimSpace(line), err)
			if !opts.KeepGoing {
				return wrapped
			}
			errs = append(errs, wrapped)
		}
	}
	return errors.Join(errs...)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
