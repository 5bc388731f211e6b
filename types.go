package models

import (
	"fmt"
	"strings"
)

// SyntheticRootType is the resource type assigned to resources that declare no
// type of their own.
const SyntheticRootType = "synthetic:root"

// DefaultGenericBaseTypes lists the resource types whose models are treated as
// fallbacks rather than specific matches.
var DefaultGenericBaseTypes = []string{"nt:unstructured", "nt:base", SyntheticRootType}

// Resource identifies a content item for the duration of one resolution.
type Resource interface {
	Path() string
	ResourceType() string
	SessionID() string
}

// PropertySource is implemented by resources exposing their property values
// to mappers.
type PropertySource interface {
	Properties() map[string]any
}

// ResourceRef is an immutable Resource backed by an in-memory property map.
type ResourceRef struct {
	path         string
	resourceType string
	sessionID    string
	properties   map[string]any
}

// NewResource constructs a ResourceRef. The property map is copied.
func NewResource(sessionID, path, resourceType string, properties map[string]any) *ResourceRef {
	return &ResourceRef{
		path:         path,
		resourceType: resourceType,
		sessionID:    sessionID,
		properties:   copyProperties(properties),
	}
}

func (r *ResourceRef) Path() string         { return r.path }
func (r *ResourceRef) ResourceType() string { return r.resourceType }
func (r *ResourceRef) SessionID() string    { return r.sessionID }

// Properties returns a copy of the resource properties.
func (r *ResourceRef) Properties() map[string]any {
	return copyProperties(r.properties)
}

// WithResourceType returns a copy of r carrying a different resource type, as
// happens when a content item is moved or retyped.
func (r *ResourceRef) WithResourceType(resourceType string) *ResourceRef {
	return &ResourceRef{
		path:         r.path,
		resourceType: resourceType,
		sessionID:    r.sessionID,
		properties:   copyProperties(r.properties),
	}
}

func (r *ResourceRef) String() string {
	return fmt.Sprintf("%s [%s]", r.path, r.resourceType)
}

// Factory creates a blank model instance, typically a pointer to a struct.
type Factory func() any

// Source is an opaque handle to a registered model. Two sources are equal only
// when they are the same handle.
type Source struct {
	name    string
	factory Factory
}

// NewSource wraps factory under an optional model name.
func NewSource(name string, factory Factory) (*Source, error) {
	if factory == nil {
		return nil, fmt.Errorf("models: factory for source %q is nil", name)
	}
	return &Source{name: strings.TrimSpace(name), factory: factory}, nil
}

// SourceFor returns a source whose factory allocates a new T.
func SourceFor[T any](name string) *Source {
	return &Source{
		name:    strings.TrimSpace(name),
		factory: func() any { return new(T) },
	}
}

// Name returns the declared model name, or "" for unnamed models.
func (s *Source) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// New allocates a model instance through the source factory.
func (s *Source) New() any {
	if s == nil || s.factory == nil {
		return nil
	}
	return s.factory()
}

func (s *Source) String() string {
	if s == nil {
		return "<nil>"
	}
	if s.name == "" {
		return "unnamed"
	}
	return s.name
}

// LookupResult is one candidate produced by a registry lookup together with
// the resource type in the hierarchy that caused the match.
type LookupResult struct {
	Source       *Source
	ResourceType string
}

// NewLookupResult validates and builds a LookupResult.
func NewLookupResult(source *Source, resourceType string) (LookupResult, error) {
	if source == nil {
		return LookupResult{}, ErrSourceRequired
	}
	if resourceType == "" {
		return LookupResult{}, ErrResourceTypeRequired
	}
	return LookupResult{Source: source, ResourceType: resourceType}, nil
}

func (r LookupResult) String() string {
	return fmt.Sprintf("%s -> [%s]", r.ResourceType, r.Source)
}

// Mode selects whether models bound to generic base types are honoured.
type Mode uint8

const (
	// ModeExcludingBaseTypes ignores candidates matched at a generic base type.
	ModeExcludingBaseTypes Mode = iota
	// ModeIncludingBaseTypes accepts candidates matched at any type.
	ModeIncludingBaseTypes
)

func (m Mode) String() string {
	switch m {
	case ModeExcludingBaseTypes:
		return "excluding-base-types"
	case ModeIncludingBaseTypes:
		return "including-base-types"
	default:
		return "unknown"
	}
}

// ResolutionKey distinguishes the resolve variants of one resource in the
// cache. An empty Name denotes unnamed resolution.
type ResolutionKey struct {
	Mode Mode
	Name string
}

func (k ResolutionKey) String() string {
	if k.Name == "" {
		return k.Mode.String()
	}
	return k.Mode.String() + ":" + k.Name
}

// keySeparator cannot appear in JCR-style paths or resource type names.
const keySeparator = "\x1f"

// CompositeKey joins the session identity, path and current resource type of
// res with key. Retyping a resource therefore yields a different key.
func CompositeKey(res Resource, key ResolutionKey) string {
	return strings.Join([]string{
		res.SessionID(),
		res.Path(),
		res.ResourceType(),
		key.Mode.String(),
		key.Name,
	}, keySeparator)
}

func copyProperties(origin map[string]any) map[string]any {
	if len(origin) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(origin))
	for key, value := range origin {
		out[key] = value
	}
	return out
}
