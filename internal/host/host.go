package host

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/leapstack-labs/dynmacro/internal/registry"
)

// DisplayStatusObject is the object name of the display status.
const DisplayStatusObject = "display_status"

// Host bundles the dispatcher with the object registry.
type Host struct {
	*Dispatcher
	objects *registry.ObjectRegistry
	display *DisplayStatus
}

// Config configures a Host.
type Config struct {
	// Sink receives responses; nil drops them.
	Sink Sink
	// Objects are extra host objects keyed by name.
	Objects map[string]any
	Logger  *slog.Logger
}

// New creates a host with the built-in commands and objects registered.
func New(cfg Config) *Host {
	h := &Host{
		Dispatcher: NewDispatcher(cfg.Sink, cfg.Logger),
		objects:    registry.NewObjectRegistry(),
		display:    &DisplayStatus{},
	}

	h.objects.RegisterAll(cfg.Objects)
	h.objects.Register(DisplayStatusObject, h.display)

	builtins := []struct {
		name    string
		handler Handler
		desc    string
	}{
		{"RESPOND", h.cmdRespond, "Echo the message prepended with a prefix"},
		{"M117", h.cmdM117, "Set the display message"},
		{"HELP", h.cmdHelp, "Report the list of available commands"},
	}
	for _, b := range builtins {
		// Fresh dispatcher, names are unique.
		_ = h.RegisterBase(b.name, b.handler, b.desc)
	}

	return h
}

// Objects returns the object registry.
func (h *Host) Objects() *registry.ObjectRegistry {
	return h.objects
}

// Display returns the display status object.
func (h *Host) Display() *DisplayStatus {
	return h.display
}

// LookupObject returns the named host object.
func (h *Host) LookupObject(name string) (any, bool) {
	return h.objects.LookupObject(name)
}

// Item returns the named host object or ErrObjectNotFound.
func (h *Host) Item(key string) (any, error) {
	return h.objects.Item(key)
}

var respondPrefixes = map[string]string{
	"echo":    "echo:",
	"command": "//",
	"error":   "!!",
}

func (h *Host) cmdRespond(_ context.Context, cmd *Command) error {
	typ := strings.ToLower(cmd.Get("TYPE", "echo"))
	prefix, ok := respondPrefixes[typ]
	if !ok {
		return fmt.Errorf("invalid TYPE %q, expected echo, command or error", typ)
	}
	prefix = cmd.Get("PREFIX", prefix)

	text := strings.TrimSpace(prefix + " " + cmd.Get("MSG", ""))
	if typ == "error" {
		h.Respond(KindError, text)
		return nil
	}
	cmd.RespondRaw(text)
	return nil
}

func (h *Host) cmdM117(_ context.Context, cmd *Command) error {
	msg := cmd.RawParameters()
	h.display.SetMessage(msg)
	if msg != "" {
		cmd.RespondInfo(msg)
	}
	return nil
}

func (h *Host) cmdHelp(_ context.Context, cmd *Command) error {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, c := range h.Commands() {
		fmt.Fprintf(&b, "\n%-16s: %s", c.Name, c.Description)
	}
	cmd.RespondInfo(b.String())
	return nil
}

// DisplayStatus holds the message set by M117.
type DisplayStatus struct {
	mu      sync.Mutex
	message string
}

// SetMessage sets the display message; an empty message clears it.
func (d *DisplayStatus) SetMessage(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.message = msg
}

// Message returns the current message.
func (d *DisplayStatus) Message() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.message
}

// Status exposes the display state to templates.
func (d *DisplayStatus) Status() map[string]any {
	return map[string]any{"message": d.Message()}
}
