// Package host implements the in-process command host: a dispatcher that
// owns the command table, the built-in commands and the object registry
// that templates reach through dynamic_host.
//
// The dispatcher assumes serial command processing. It is not safe for
// concurrent use.
package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// ErrUnknownCommand is returned for a command word with no handler.
var ErrUnknownCommand = errors.New("unknown command")

// ErrCommandExists is returned when registering over an existing command.
var ErrCommandExists = errors.New("command already registered")

// Handler runs one command.
type Handler func(ctx context.Context, cmd *Command) error

// CommandError reports the failure of a named command.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ResponseKind classifies a line sent back to the client.
type ResponseKind int

// Response kinds.
const (
	KindInfo  ResponseKind = iota // informational, "// " prefixed on a console
	KindRaw                       // sent as is
	KindError                     // error report, shown highlighted
)

func (k ResponseKind) String() string {
	switch k {
	case KindInfo:
		return "info"
	case KindRaw:
		return "raw"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Response is a line sent back to the client.
type Response struct {
	Kind ResponseKind
	Text string
}

// Sink receives responses.
type Sink func(Response)

// CommandInfo describes a registered command.
type CommandInfo struct {
	Name        string
	Description string
	// Base marks built-in commands that dynamic registration cannot replace.
	Base bool
}

type entry struct {
	handler Handler
	desc    string
}

// Dispatcher routes command lines to handlers. Base commands are the fixed
// built-ins; live commands are registered and cleared at runtime.
type Dispatcher struct {
	base   map[string]entry
	live   map[string]entry
	sink   Sink
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher with no commands.
func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	if sink == nil {
		sink = func(Response) {}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		base:   make(map[string]entry),
		live:   make(map[string]entry),
		sink:   sink,
		logger: logger,
	}
}

// RegisterBase adds a built-in command.
func (d *Dispatcher) RegisterBase(name string, handler Handler, desc string) error {
	name = upper(name)
	if d.Has(name) {
		return fmt.Errorf("%w: %s", ErrCommandExists, name)
	}
	d.base[name] = entry{handler: handler, desc: desc}
	return nil
}

// Register adds a live command. A nil handler clears the name instead.
func (d *Dispatcher) Register(name string, handler Handler, desc string) error {
	name = upper(name)
	if handler == nil {
		d.Unregister(name)
		return nil
	}
	if d.Has(name) {
		return fmt.Errorf("%w: %s", ErrCommandExists, name)
	}
	d.live[name] = entry{handler: handler, desc: desc}
	d.logger.Debug("registered command", slog.String("command", name))
	return nil
}

// Unregister clears a live command. Base commands are never cleared and an
// unknown name is a no-op.
func (d *Dispatcher) Unregister(name string) {
	name = upper(name)
	if _, ok := d.live[name]; ok {
		delete(d.live, name)
		d.logger.Debug("unregistered command", slog.String("command", name))
	}
}

// Has reports whether name is registered in either table.
func (d *Dispatcher) Has(name string) bool {
	name = upper(name)
	_, live := d.live[name]
	_, base := d.base[name]
	return live || base
}

// IsBase reports whether name is a built-in command.
func (d *Dispatcher) IsBase(name string) bool {
	_, ok := d.base[upper(name)]
	return ok
}

// Commands lists every command sorted by name.
func (d *Dispatcher) Commands() []CommandInfo {
	out := make([]CommandInfo, 0, len(d.base)+len(d.live))
	for name, e := range d.base {
		out = append(out, CommandInfo{Name: name, Description: e.desc, Base: true})
	}
	for name, e := range d.live {
		out = append(out, CommandInfo{Name: name, Description: e.desc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LiveCommands lists the names of live commands, sorted.
func (d *Dispatcher) LiveCommands() []string {
	names := make([]string, 0, len(d.live))
	for name := range d.live {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run parses and executes one line. Blank lines and comments do nothing.
func (d *Dispatcher) Run(ctx context.Context, line string) error {
	cmd, err := ParseLine(line)
	if err != nil {
		return err
	}
	if cmd == nil {
		return nil
	}
	return d.Execute(ctx, cmd)
}

// Execute runs a parsed command.
func (d *Dispatcher) Execute(ctx context.Context, cmd *Command) error {
	e, ok := d.live[cmd.Name]
	if !ok {
		e, ok = d.base[cmd.Name]
	}
	if !ok {
		return &CommandError{Command: cmd.Name, Err: ErrUnknownCommand}
	}

	cmd.responder = d
	d.logger.Debug("dispatch", slog.String("command", cmd.Name), slog.String("params", cmd.Raw))

	if err := e.handler(ctx, cmd); err != nil {
		return &CommandError{Command: cmd.Name, Err: err}
	}
	return nil
}

// RunScript runs each line of script in order and stops at the first error
// or when ctx is done.
func (d *Dispatcher) RunScript(ctx context.Context, script string) error {
	for line := range strings.SplitSeq(script, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Run(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// Respond sends a line to the sink.
func (d *Dispatcher) Respond(kind ResponseKind, text string) {
	d.logger.Debug("respond", slog.String("kind", kind.String()), slog.String("text", text))
	d.sink(Response{Kind: kind, Text: text})
}

// RespondInfo sends an informational line.
func (d *Dispatcher) RespondInfo(msg string) {
	d.Respond(KindInfo, msg)
}
