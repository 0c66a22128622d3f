// Package importer holds the named statement formats: the built-in ones
// written in Go and those declared in stmtimport.yaml.
package importer

import (
	"slices"
	"strings"

	"github.com/cleared-dev/stmtimport/internal/model"
	"github.com/cleared-dev/stmtimport/internal/statement"
)

// Importer is a statement importer producing model.Transaction records.
type Importer = statement.Importer[model.Transaction]

// Processor is a line processor producing model.Transaction records.
type Processor = statement.Processor[model.Transaction]

// Registry holds named importers.
type Registry struct {
	importers map[string]*Importer
}

// NewRegistry creates an empty importer registry.
func NewRegistry() *Registry {
	return &Registry{importers: make(map[string]*Importer)}
}

// Register adds an importer. Panics on duplicate name.
func (r *Registry) Register(imp *Importer) {
	key := strings.ToLower(imp.Name())
	if _, ok := r.importers[key]; ok {
		panic("duplicate importer: " + key)
	}
	r.importers[key] = imp
}

// Get returns the importer for name, or nil.
func (r *Registry) Get(name string) *Importer {
	return r.importers[strings.ToLower(name)]
}

// Names returns the registered importer names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.importers))
	for _, imp := range r.importers {
		names = append(names, imp.Name())
	}
	slices.Sort(names)
	return names
}

// DefaultRegistry returns a registry with all built-in importers.
func DefaultRegistry(opts ...statement.Option) *Registry {
	r := NewRegistry()
	r.Register(NewChase(opts...))
	r.Register(NewColumnar(opts...))
	r.Register(NewGeneric(opts...))
	return r
}
