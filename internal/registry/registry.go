// Package registry provides the host object registry: the named services
// templates reach through dynamic_host.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrObjectNotFound is returned by Item when no object has the key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectRegistry maps object names to host objects. Objects may be plain
// values (maps, strings, numbers) or implement Status() map[string]any.
type ObjectRegistry struct {
	mu sync.RWMutex

	// byName maps object names to objects: "toolhead" → *Toolhead
	byName map[string]any
}

// NewObjectRegistry creates a new empty registry.
func NewObjectRegistry() *ObjectRegistry {
	return &ObjectRegistry{byName: make(map[string]any)}
}

// Register adds or replaces an object.
func (r *ObjectRegistry) Register(name string, obj any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = obj
}

// RegisterAll adds every entry of objs.
func (r *ObjectRegistry) RegisterAll(objs map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, obj := range objs {
		r.byName[name] = obj
	}
}

// Remove deletes an object. Removing an unknown name is a no-op.
func (r *ObjectRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
}

// LookupObject returns the object registered under name.
func (r *ObjectRegistry) LookupObject(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	obj, ok := r.byName[name]
	return obj, ok
}

// Item is the strict form of LookupObject: a missing key is an error.
func (r *ObjectRegistry) Item(key string) (any, error) {
	obj, ok := r.LookupObject(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrObjectNotFound, key)
	}
	return obj, nil
}

// Names returns the sorted object names.
func (r *ObjectRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered objects.
func (r *ObjectRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
