package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leapstack-labs/dynmacro/internal/cli/config"
	"github.com/leapstack-labs/dynmacro/internal/cli/output"
	"github.com/leapstack-labs/dynmacro/internal/scan"
	"github.com/leapstack-labs/dynmacro/internal/template"
	"github.com/leapstack-labs/dynmacro/internal/watch"
	"github.com/spf13/cobra"
)

// codeTemplateInvalid marks a macro body that does not compile.
const codeTemplateInvalid = "template_invalid"

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Watch    bool
	Debounce time.Duration
}

// NewCheckCommand creates the check command.
func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Scan macro sources and report problems",
		Long: `Scan every configured source, compile each macro body and report
missing files, malformed sections and template errors.

The command fails when any error is found; warnings (such as a missing source
file) are reported only. With --watch the sources are rescanned whenever one
of them changes, until interrupted. No host is started.`,
		Example: `  # One-off check
  dynmacro check

  # Re-check on every save
  dynmacro check --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Rescan when a source file changes")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "Quiet period before rescanning")

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	cmdCtx, err := NewCommandContextWithoutEngine(cmd)
	if err != nil {
		return err
	}
	scanner := newScanner(cmdCtx.Cfg, cmdCtx.Logger)
	r := cmdCtx.Renderer

	if !opts.Watch {
		return reportCheck(r, scanner)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(watch.Config{
		Files:    scanner.Paths(),
		Debounce: opts.Debounce,
		Logger:   cmdCtx.Logger,
		OnChange: func(_ context.Context, changed []string) error {
			r.Muted(fmt.Sprintf("changed: %s", joinOrDash(changed)))
			if err := reportCheck(r, scanner); err != nil {
				r.Error(err.Error())
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	if err := reportCheck(r, scanner); err != nil {
		r.Error(err.Error())
	}
	r.Muted(fmt.Sprintf("watching %d source(s), press Ctrl+C to stop", len(w.Files())))
	return w.Run(ctx)
}

func newScanner(cfg *config.Config, logger *slog.Logger) *scan.Scanner {
	return scan.New(scan.Config{
		Sources:            cfg.Configs,
		BaseDir:            cfg.ConfigDir,
		Keyword:            cfg.Section.Keyword,
		BodyKey:            cfg.Section.BodyKey,
		DescriptionKey:     cfg.Section.DescriptionKey,
		DefaultDescription: cfg.Section.DefaultDescription,
		Logger:             logger,
	})
}

// checkSources scans and compiles every definition.
func checkSources(scanner *scan.Scanner) ([]scan.Definition, []scan.Diagnostic) {
	defs, diags := scanner.Scan()
	compiler := template.NewEngine()
	for _, def := range defs {
		if _, err := compiler.Compile(def.Name, def.Body); err != nil {
			diags = append(diags, scan.Diagnostic{
				Severity: scan.SeverityError,
				Code:     codeTemplateInvalid,
				Message:  err.Error(),
				Path:     def.Source,
				Section:  def.Section,
				Cause:    err,
			})
		}
	}
	return defs, diags
}

func reportCheck(r *output.Renderer, scanner *scan.Scanner) error {
	defs, diags := checkSources(scanner)

	errCount := 0
	for _, d := range diags {
		if d.Severity == scan.SeverityError {
			errCount++
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		names := make([]string, len(defs))
		for i, d := range defs {
			names[i] = d.Name
		}
		if err := r.JSON(output.CheckOutput{
			Keyword:     scanner.Keyword(),
			Sources:     scanner.Paths(),
			Macros:      names,
			Diagnostics: diagnosticInfos(diags),
		}); err != nil {
			return err
		}
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Check"))
		r.Println("")
		r.Println(output.FormatKeyValue("Keyword", scanner.Keyword()))
		r.Println(output.FormatKeyValue("Sources", joinOrDash(scanner.Paths())))
		r.Println(output.FormatKeyValue("Macros", fmt.Sprintf("%d", len(defs))))
		r.Println(output.FormatKeyValue("Diagnostics", fmt.Sprintf("%d", len(diags))))
		for _, d := range diags {
			r.Println("- " + d.String())
		}
	default:
		r.Header(1, "Check")
		r.Muted(fmt.Sprintf("[%s <name>] sections in %s", scanner.Keyword(), joinOrDash(scanner.Paths())))
		for _, def := range defs {
			r.StatusLine(def.Name, true, "ok", def.Source)
		}
		printDiagnostics(r, diags)
		if len(diags) == 0 {
			r.Success(fmt.Sprintf("%d macro(s), no problems", len(defs)))
		}
	}

	if errCount > 0 {
		return fmt.Errorf("%d error(s) found in macro sources", errCount)
	}
	return nil
}
