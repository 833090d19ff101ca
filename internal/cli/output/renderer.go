// Package output renders command results for terminals, markdown consumers
// and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto" // text on a terminal, markdown otherwise
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Renderer writes formatted output. Styling is applied only on a terminal.
type Renderer struct {
	out    io.Writer
	err    io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer writing results to out and diagnostics to errw.
func NewRenderer(out, errw io.Writer, mode Mode) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	return &Renderer{
		out:    out,
		err:    errw,
		mode:   Mode(strings.ToLower(string(mode))),
		isTTY:  isTerminal(out),
		styles: DefaultStyles(),
	}
}

// NewRendererWithTTY creates a renderer with explicit terminal detection.
func NewRendererWithTTY(out, errw io.Writer, isTTY bool, mode Mode) *Renderer {
	r := NewRenderer(out, errw, mode)
	r.isTTY = isTTY
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// EffectiveMode resolves ModeAuto against the attached writer.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode != ModeAuto {
		return r.mode
	}
	if r.isTTY {
		return ModeText
	}
	return ModeMarkdown
}

// IsTTY reports whether the output writer is a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Writer returns the output writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter returns the diagnostics writer.
func (r *Renderer) ErrWriter() io.Writer { return r.err }

// Styles returns the style set.
func (r *Renderer) Styles() *Styles { return r.styles }

// Println writes a line to the output.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the output.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a section header.
func (r *Renderer) Header(level int, text string) {
	switch r.EffectiveMode() {
	case ModeMarkdown:
		r.Println(FormatHeader(level, text))
		r.Println()
	case ModeJSON:
		// Headers are presentation only.
	default:
		style := r.styles.Header2
		if level <= 1 {
			style = r.styles.Header1
		}
		r.Println(r.render(style, text))
	}
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Success writes a success message to the output.
func (r *Renderer) Success(msg string) {
	r.Println(r.render(r.styles.Success, "✓ "+msg))
}

// Error writes an error message to the diagnostics writer.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.err, r.render(r.styles.Error, "✗ "+msg))
}

// Warning writes a warning to the diagnostics writer.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.err, r.render(r.styles.Warning, "! "+msg))
}

// Info writes an informational line to the output.
func (r *Renderer) Info(msg string) {
	r.Println(r.render(r.styles.Info, msg))
}

// Muted writes de-emphasised text to the output.
func (r *Renderer) Muted(msg string) {
	r.Println(r.render(r.styles.Muted, msg))
}

// StatusLine writes "name  status  detail" with the status coloured by ok.
func (r *Renderer) StatusLine(name string, ok bool, status, detail string) {
	style := r.styles.StatusSuccess
	if !ok {
		style = r.styles.StatusFailed
	}
	line := fmt.Sprintf("%-24s %s", name, r.render(style, status))
	if detail != "" {
		line += "  " + r.render(r.styles.Muted, detail)
	}
	r.Println(line)
}

// Render applies style when the output is a terminal.
func (r *Renderer) Render(style lipgloss.Style, text string) string {
	return r.render(style, text)
}

func (r *Renderer) render(style lipgloss.Style, text string) string {
	if !r.isTTY {
		return text
	}
	return style.Render(text)
}

// FormatHeader formats a markdown header.
func FormatHeader(level int, text string) string {
	if level < 1 {
		level = 1
	}
	return strings.Repeat("#", level) + " " + text
}

// FormatKeyValue formats a markdown key/value bullet.
func FormatKeyValue(key, value string) string {
	return fmt.Sprintf("- **%s**: %s", key, value)
}
