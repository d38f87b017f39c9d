// Package funcs provides FHIRPath function implementations.
package funcs

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/fhirpath-go/fhirpath/pkg/fhirpath/eval"
)

// FuncDef is an alias for eval.FuncDef.
type FuncDef = eval.FuncDef

// Registry holds registered functions, indexed by name. ByShape filters
// them by the shape the evaluator needs to dispatch them (pure,
// context-aware, lazy, or provider-backed) by scanning that index.
type Registry struct {
	funcs map[string]eval.FuncDef
	mu    sync.RWMutex
}

// globalRegistry is the default function registry.
var globalRegistry = NewRegistry()

// NewRegistry creates a new function registry.
func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]eval.FuncDef),
	}
	return r
}

// Register adds a function to the registry.
func (r *Registry) Register(def eval.FuncDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[def.Name] = def
}

// Get retrieves a function by name.
func (r *Registry) Get(name string) (eval.FuncDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Has checks if a function exists.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// List returns all registered function names in sorted order, so output
// (CLI listings, docs generation) is stable across runs despite map
// iteration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := maps.Keys(r.funcs)
	slices.Sort(names)
	return names
}

// ByShape returns the sorted names of every registered function whose
// FuncDef.Shape equals shape, e.g. to audit which functions are
// ShapeProvider and therefore depend on an injected ModelProvider,
// TerminologyProvider, or Resolver.
func (r *Registry) ByShape(shape eval.FuncShape) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, def := range r.funcs {
		if def.Shape == shape {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Global registry functions

// Register adds a function to the global registry.
func Register(def eval.FuncDef) {
	globalRegistry.Register(def)
}

// Get retrieves a function from the global registry.
func Get(name string) (eval.FuncDef, bool) {
	return globalRegistry.Get(name)
}

// Has checks if a function exists in the global registry.
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// List returns all function names from the global registry.
func List() []string {
	return globalRegistry.List()
}

// ByShape returns the names of globally registered functions matching shape.
func ByShape(shape eval.FuncShape) []string {
	return globalRegistry.ByShape(shape)
}

// GetRegistry returns the global registry.
func GetRegistry() *Registry {
	return globalRegistry
}
