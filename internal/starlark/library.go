package starlark

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"go.starlark.net/starlark"
)

// ReservedNamespaces cannot be used as helper file names because they would
// collide with names every template receives.
var ReservedNamespaces = []string{
	HostName,
	ParamsName,
	RawParamsName,
	"action_respond_info",
	"action_raise_error",
	"action_log",
}

// Module is a helper library loaded from one .star file. Its namespace is
// the file name without extension.
type Module struct {
	Namespace string
	Path      string
	// Exports holds the top-level names not starting with _.
	Exports starlark.StringDict
}

// Library holds helper modules keyed by namespace.
type Library struct {
	modules map[string]*Module
}

// NewLibrary creates an empty library.
func NewLibrary() *Library {
	return &Library{modules: make(map[string]*Module)}
}

// LoadLibrary loads every .star file in dir. A missing dir yields an empty
// library. Load failures of single files are collected; the remaining files
// still load.
func LoadLibrary(dir string, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lib := NewLibrary()
	if dir == "" {
		return lib, nil
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return lib, nil
		}
		return nil, fmt.Errorf("failed to access helpers directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("helpers path is not a directory: %s", dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.star"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan helpers directory: %w", err)
	}

	var errs []error
	for _, file := range files {
		mod, err := loadModule(file, logger)
		if err == nil {
			err = lib.Register(mod)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Debug("loaded helper library", slog.String("namespace", mod.Namespace), slog.Int("exports", len(mod.Exports)))
	}

	return lib, errors.Join(errs...)
}

func loadModule(path string, logger *slog.Logger) (*Module, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: path comes from a glob within the helpers directory
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}

	namespace := strings.TrimSuffix(filepath.Base(path), ".star")
	if err := validateNamespace(namespace); err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}

	thread := newThread("load:"+namespace, logger)
	globals, err := starlark.ExecFileOptions(fileOptions, thread, path, content, Predeclared(nil))
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("starlark execution error: %v", err)}
	}

	exports := make(starlark.StringDict)
	for name, value := range globals {
		if !strings.HasPrefix(name, "_") {
			exports[name] = value
		}
	}
	exports.Freeze()

	return &Module{Namespace: namespace, Path: path, Exports: exports}, nil
}

// Register adds a module. Reserved or duplicate namespaces are rejected.
func (l *Library) Register(mod *Module) error {
	if slices.Contains(ReservedNamespaces, mod.Namespace) {
		return &LoadError{File: mod.Path, Message: fmt.Sprintf("namespace %q is reserved", mod.Namespace)}
	}
	if existing, ok := l.modules[mod.Namespace]; ok {
		return &LoadError{File: mod.Path, Message: fmt.Sprintf("namespace %q already defined by %s", mod.Namespace, existing.Path)}
	}
	l.modules[mod.Namespace] = mod
	return nil
}

// Namespaces returns the sorted namespace names.
func (l *Library) Namespaces() []string {
	names := make([]string, 0, len(l.modules))
	for name := range l.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of modules.
func (l *Library) Len() int {
	return len(l.modules)
}

// Globals exposes each module as a namespace value.
func (l *Library) Globals() starlark.StringDict {
	dict := make(starlark.StringDict, len(l.modules))
	for name, mod := range l.modules {
		dict[name] = &starlarkModule{name: name, exports: mod.Exports}
	}
	return dict
}

// starlarkModule is a namespace value with attribute access to its exports.
type starlarkModule struct {
	name    string
	exports starlark.StringDict
}

var _ starlark.HasAttrs = (*starlarkModule)(nil)

func (m *starlarkModule) String() string        { return fmt.Sprintf("<module %s>", m.name) }
func (m *starlarkModule) Type() string          { return "module" }
func (m *starlarkModule) Freeze()               { m.exports.Freeze() }
func (m *starlarkModule) Truth() starlark.Bool  { return starlark.True }
func (m *starlarkModule) Hash() (uint32, error) { return starlark.String(m.name).Hash() }

func (m *starlarkModule) Attr(name string) (starlark.Value, error) {
	if v, ok := m.exports[name]; ok {
		return v, nil
	}
	return nil, starlark.NoSuchAttrError(fmt.Sprintf("module %s has no attribute %q", m.name, name))
}

func (m *starlarkModule) AttrNames() []string {
	return m.exports.Keys()
}

func validateNamespace(name string) error {
	if name == "" {
		return fmt.Errorf("namespace cannot be empty")
	}
	for i, r := range name {
		letter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		digit := r >= '0' && r <= '9'
		if !letter && (i == 0 || !digit) {
			return fmt.Errorf("namespace %q is not a valid identifier", name)
		}
	}
	return nil
}

// LoadError represents an error loading a helper file.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("helpers/%s: %s", filepath.Base(e.File), e.Message)
}
