package starlark

import (
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"
)

// NotFound is what attribute access on the host proxy yields when the host
// has no object under the requested name.
const NotFound = starlark.String("NONE")

// HostLookup is the host capability the proxy forwards to.
type HostLookup interface {
	// LookupObject returns the object registered under name.
	LookupObject(name string) (any, bool)
	// Item returns the value stored under key or an error.
	Item(key string) (any, error)
}

// HostProxy exposes host objects to templates. Every access is forwarded to
// the host at call time; nothing is cached.
//
//	dynamic_host.lookup("toolhead")   # None when absent
//	dynamic_host.toolhead             # "NONE" when absent
//	dynamic_host["configfile"]        # host error propagates
//
// The attribute name "lookup" is reserved for the accessor, so a host object
// registered as "lookup" is only reachable as dynamic_host.lookup("lookup")
// or dynamic_host["lookup"].
type HostProxy struct {
	host   HostLookup
	logger *slog.Logger
}

var (
	_ starlark.HasAttrs = (*HostProxy)(nil)
	_ starlark.Mapping  = (*HostProxy)(nil)
)

// NewHostProxy creates a proxy over host.
func NewHostProxy(host HostLookup, logger *slog.Logger) *HostProxy {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HostProxy{host: host, logger: logger}
}

func (p *HostProxy) String() string        { return "<dynamic_host>" }
func (p *HostProxy) Type() string          { return "host_proxy" }
func (p *HostProxy) Freeze()               {}
func (p *HostProxy) Truth() starlark.Bool  { return starlark.True }
func (p *HostProxy) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: %s", p.Type()) }

// Attr resolves dynamic_host.<name>.
func (p *HostProxy) Attr(name string) (starlark.Value, error) {
	if name == "lookup" {
		return starlark.NewBuiltin("lookup", p.lookupBuiltin), nil
	}

	obj, ok := p.lookup(name)
	if !ok {
		return NotFound, nil
	}
	return HostValue(obj), nil
}

// AttrNames lists the explicit accessor only; host objects are open-ended.
func (p *HostProxy) AttrNames() []string {
	return []string{"lookup"}
}

// Get resolves dynamic_host[key]. Host errors propagate unchanged.
func (p *HostProxy) Get(k starlark.Value) (starlark.Value, bool, error) {
	key, ok := starlark.AsString(k)
	if !ok {
		return nil, false, fmt.Errorf("dynamic_host: key must be string, got %s", k.Type())
	}

	p.logger.Debug("host item", slog.String("key", key))
	v, err := p.host.Item(key)
	if err != nil {
		return nil, false, err
	}
	return HostValue(v), true, nil
}

func (p *HostProxy) lookupBuiltin(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
		return nil, err
	}

	obj, ok := p.lookup(name)
	if !ok {
		return starlark.None, nil
	}
	return HostValue(obj), nil
}

func (p *HostProxy) lookup(name string) (any, bool) {
	obj, ok := p.host.LookupObject(name)
	p.logger.Debug("host lookup", slog.String("name", name), slog.Bool("found", ok))
	return obj, ok && obj != nil
}
