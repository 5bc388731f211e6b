package models

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-models/pkg/activity"
)

// TypeRegistry binds model sources to resource types and answers which
// sources are the most specific candidates for a resource type.
type TypeRegistry struct {
	mu        sync.RWMutex
	hierarchy *TypeHierarchy
	bindings  map[string][]*Source
	emitter   *activity.Emitter
}

// RegistryOption configures a TypeRegistry.
type RegistryOption func(*TypeRegistry)

// WithActivityEmitter publishes registration lifecycle events to emitter.
// Emission is best effort: hook failures never fail a registration.
func WithActivityEmitter(emitter *activity.Emitter) RegistryOption {
	return func(r *TypeRegistry) {
		r.emitter = emitter
	}
}

// NewTypeRegistry constructs an empty registry over hierarchy. A nil
// hierarchy is replaced with an empty one.
func NewTypeRegistry(hierarchy *TypeHierarchy, opts ...RegistryOption) *TypeRegistry {
	if hierarchy == nil {
		hierarchy = NewTypeHierarchy()
	}
	r := &TypeRegistry{
		hierarchy: hierarchy,
		bindings:  make(map[string][]*Source),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Hierarchy returns the type hierarchy the registry walks.
func (r *TypeRegistry) Hierarchy() *TypeHierarchy {
	return r.hierarchy
}

// Register binds source to every resource type in resourceTypes. Binding the
// same source to the same type twice is a no-op.
func (r *TypeRegistry) Register(source *Source, resourceTypes ...string) error {
	if source == nil {
		return ErrSourceRequired
	}
	if len(resourceTypes) == 0 {
		return fmt.Errorf("models: register %s: %w", source, ErrResourceTypeRequired)
	}
	normalized := make([]string, 0, len(resourceTypes))
	for _, resourceType := range resourceTypes {
		resourceType = strings.TrimSpace(resourceType)
		if resourceType == "" {
			return fmt.Errorf("models: register %s: %w", source, ErrResourceTypeRequired)
		}
		if !slices.Contains(normalized, resourceType) {
			normalized = append(normalized, resourceType)
		}
	}

	r.mu.Lock()
	for _, resourceType := range normalized {
		if !slices.Contains(r.bindings[resourceType], source) {
			r.bindings[resourceType] = append(r.bindings[resourceType], source)
		}
	}
	r.mu.Unlock()

	r.emit(activity.BuildModelRegisteredEvent(activity.ModelEventInput{
		ModelName:     source.Name(),
		ResourceTypes: normalized,
	}))
	return nil
}

// Unregister removes every binding of source and reports whether any existed.
func (r *TypeRegistry) Unregister(source *Source) bool {
	if source == nil {
		return false
	}

	var removed []string
	r.mu.Lock()
	for resourceType, sources := range r.bindings {
		idx := slices.Index(sources, source)
		if idx < 0 {
			continue
		}
		remaining := slices.Delete(slices.Clone(sources), idx, idx+1)
		if len(remaining) == 0 {
			delete(r.bindings, resourceType)
		} else {
			r.bindings[resourceType] = remaining
		}
		removed = append(removed, resourceType)
	}
	r.mu.Unlock()

	if len(removed) == 0 {
		return false
	}
	sort.Strings(removed)
	r.emit(activity.BuildModelUnregisteredEvent(activity.ModelEventInput{
		ModelName:     source.Name(),
		ResourceTypes: removed,
	}))
	return true
}

// LookupCandidates walks the ancestor chain of resourceType and returns every
// source bound to the first type that has bindings. Several results signal an
// ambiguity the caller must handle. The result is empty when nothing matches.
func (r *TypeRegistry) LookupCandidates(resourceType string) []LookupResult {
	return r.lookup(resourceType, func(*Source) bool { return true })
}

// LookupNamedCandidates behaves like LookupCandidates but only considers
// sources declaring name.
func (r *TypeRegistry) LookupNamedCandidates(resourceType, name string) []LookupResult {
	return r.lookup(resourceType, func(source *Source) bool { return source.Name() == name })
}

// SyntheticRoot returns the type the hierarchy assigns to untyped resources.
func (r *TypeRegistry) SyntheticRoot() string {
	return r.hierarchy.SyntheticRoot()
}

// AncestorChain exposes the chain the registry walks for resourceType.
func (r *TypeRegistry) AncestorChain(resourceType string) []string {
	return r.hierarchy.Ancestors(resourceType)
}

func (r *TypeRegistry) lookup(resourceType string, accept func(*Source) bool) []LookupResult {
	chain := r.hierarchy.Ancestors(resourceType)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, candidateType := range chain {
		var results []LookupResult
		for _, source := range r.bindings[candidateType] {
			if accept(source) {
				results = append(results, LookupResult{Source: source, ResourceType: candidateType})
			}
		}
		if len(results) > 0 {
			return results
		}
	}
	return []LookupResult{}
}

// Sources returns every registered source once, in first-registration order
// by resource type.
func (r *TypeRegistry) Sources() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.bindings))
	for resourceType := range r.bindings {
		types = append(types, resourceType)
	}
	sort.Strings(types)
	var out []*Source
	for _, resourceType := range types {
		for _, source := range r.bindings[resourceType] {
			if !slices.Contains(out, source) {
				out = append(out, source)
			}
		}
	}
	return out
}

// Types returns the resource types that have at least one binding, sorted.
func (r *TypeRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bindings))
	for resourceType := range r.bindings {
		out = append(out, resourceType)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of (source, resource type) bindings.
func (r *TypeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sources := range r.bindings {
		n += len(sources)
	}
	return n
}

func (r *TypeRegistry) emit(event activity.Event) {
	if !r.emitter.Enabled() {
		return
	}
	_ = r.emitter.Emit(context.Background(), event)
}
