package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/dynmacro/internal/cli/output"
	"github.com/leapstack-labs/dynmacro/internal/macro"
	"github.com/leapstack-labs/dynmacro/internal/scan"
	"github.com/spf13/cobra"
)

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all dynamic macros",
		Long: `Reconcile the macro registry and list every macro with its command,
registration state, description and source file.

A macro is "shadowed" when a built-in command already uses its name; it can
still be run through the dispatch command.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # List all macros
  dynmacro list

  # List macros as JSON
  dynmacro list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}

	return cmd
}

func runList(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	reg := cmdCtx.Engine.Registry()
	r := cmdCtx.Renderer

	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(output.ListOutput{
			DispatchCommand: reg.DispatchCommand(),
			Macros:          macroInfos(reg.Macros()),
			Diagnostics:     diagnosticInfos(reg.Diagnostics()),
		})
	case output.ModeMarkdown:
		listMarkdown(reg, r)
	default:
		listText(reg, r)
	}
	return nil
}

func macroState(m *macro.Macro) string {
	switch {
	case m.Err() != nil:
		return "error"
	case m.Shadowed():
		return "shadowed"
	default:
		return "registered"
	}
}

func listText(reg *macro.Registry, r *output.Renderer) {
	macros := reg.Macros()
	r.Header(1, fmt.Sprintf("Macros (%d total)", len(macros)))

	rows := make([][]string, 0, len(macros))
	for _, m := range macros {
		rows = append(rows, []string{m.Name, m.Command(), macroState(m), m.Description, m.Source})
	}
	if len(rows) > 0 {
		r.Table([]string{"Name", "Command", "State", "Description", "Source"}, rows)
	}
	r.Muted(fmt.Sprintf("Run any macro with: %s MACRO=<name>", reg.DispatchCommand()))

	printDiagnostics(r, reg.Diagnostics())
}

func listMarkdown(reg *macro.Registry, r *output.Renderer) {
	macros := reg.Macros()
	r.Println(output.FormatHeader(1, fmt.Sprintf("Macros (%d total)", len(macros))))
	r.Println("")

	for _, m := range macros {
		r.Println(output.FormatHeader(2, m.Name))
		r.Println(output.FormatKeyValue("Command", m.Command()))
		r.Println(output.FormatKeyValue("State", macroState(m)))
		r.Println(output.FormatKeyValue("Description", m.Description))
		r.Println(output.FormatKeyValue("Source", m.Source))
		if err := m.Err(); err != nil {
			r.Println(output.FormatKeyValue("Error", err.Error()))
		}
		r.Println("")
	}

	if diags := reg.Diagnostics(); len(diags) > 0 {
		r.Println(output.FormatHeader(2, "Diagnostics"))
		for _, d := range diags {
			r.Println("- " + d.String())
		}
	}
}

func printDiagnostics(r *output.Renderer, diags []scan.Diagnostic) {
	for _, d := range diags {
		if d.Severity == scan.SeverityError {
			r.Error(d.String())
		} else {
			r.Warning(d.String())
		}
	}
}

func macroInfos(macros []*macro.Macro) []output.MacroInfo {
	out := make([]output.MacroInfo, 0, len(macros))
	for _, m := range macros {
		info := output.MacroInfo{
			Name:        m.Name,
			Command:     m.Command(),
			Description: m.Description,
			Source:      m.Source,
			Registered:  !m.Shadowed(),
			Shadowed:    m.Shadowed(),
		}
		if err := m.Err(); err != nil {
			info.Error = err.Error()
		}
		out = append(out, info)
	}
	return out
}

func diagnosticInfos(diags []scan.Diagnostic) []output.DiagnosticInfo {
	out := make([]output.DiagnosticInfo, 0, len(diags))
	for _, d := range diags {
		out = append(out, output.DiagnosticInfo{
			Severity: string(d.Severity),
			Code:     d.Code,
			Message:  d.Message,
			Path:     d.Path,
			Section:  d.Section,
		})
	}
	return out
}

// macroNames returns the names of macros, sorted by the registry.
func macroNames(macros []*macro.Macro) []string {
	names := make([]string, len(macros))
	for i, m := range macros {
		names[i] = m.Name
	}
	return names
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
