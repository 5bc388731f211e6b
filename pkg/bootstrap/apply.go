package bootstrap

import (
	"errors"
	"fmt"
	"sort"

	models "github.com/goliatone/go-models"
	"github.com/goliatone/go-models/mapping"
)

var (
	ErrRegistryRequired  = errors.New("bootstrap: registry is required")
	ErrUnknownFactory    = errors.New("bootstrap: unknown factory")
	ErrMapperRequired    = errors.New("bootstrap: mapper is required for bindings")
	ErrHierarchyMismatch = errors.New("bootstrap: hierarchy is not the one walked by the registry")
)

// Catalog names the model factories a manifest may refer to.
type Catalog map[string]models.Factory

// Register adds the factory of T under name.
func Register[T any](c Catalog, name string) {
	c[name] = func() any { return new(T) }
}

// Target receives the declarations of a manifest. Hierarchy, when set, must be
// the registry's own hierarchy; Mapper is only needed when models declare
// bindings.
type Target struct {
	Hierarchy *models.TypeHierarchy
	Registry  *models.TypeRegistry
	Catalog   Catalog
	Mapper    *mapping.Mapper
}

// Apply declares the hierarchy and registers every model of manifest on
// target, returning the created sources in manifest order. Apply stops at the
// first error; declarations applied before it are kept.
func Apply(manifest Manifest, target Target) ([]*models.Source, error) {
	if target.Registry == nil {
		return nil, ErrRegistryRequired
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	hierarchy := target.Registry.Hierarchy()
	if target.Hierarchy != nil && target.Hierarchy != hierarchy {
		return nil, ErrHierarchyMismatch
	}

	for _, decl := range manifest.Hierarchy {
		if err := hierarchy.Declare(decl.Type, decl.SuperTypes...); err != nil {
			return nil, fmt.Errorf("bootstrap: declare %s: %w", decl.Type, err)
		}
	}

	sources := make([]*models.Source, 0, len(manifest.Models))
	for _, decl := range manifest.Models {
		source, err := buildSource(decl, target)
		if err != nil {
			return sources, err
		}
		if err := target.Registry.Register(source, decl.Types...); err != nil {
			return sources, fmt.Errorf("bootstrap: register %s: %w", decl.FactoryKey(), err)
		}
		sources = append(sources, source)
	}
	return sources, nil
}

func buildSource(decl ModelDeclaration, target Target) (*models.Source, error) {
	key := decl.FactoryKey()
	factory, ok := target.Catalog[key]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFactory, key)
	}
	source, err := models.NewSource(decl.Name, factory)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %s: %w", key, err)
	}
	if len(decl.Bindings) == 0 {
		return source, nil
	}
	if target.Mapper == nil {
		return nil, fmt.Errorf("%w (%s)", ErrMapperRequired, key)
	}

	fields := make([]string, 0, len(decl.Bindings))
	for field := range decl.Bindings {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if err := target.Mapper.Bind(source, field, decl.Bindings[field]); err != nil {
			return nil, fmt.Errorf("bootstrap: %s: %w", key, err)
		}
	}
	return source, nil
}
