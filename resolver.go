package models

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// CandidateLookup is the read side of a registry consulted by the resolver.
type CandidateLookup interface {
	LookupCandidates(resourceType string) []LookupResult
	LookupNamedCandidates(resourceType, name string) []LookupResult
}

// rootedLookup is implemented by registries whose hierarchy assigns a
// synthetic root to untyped resources.
type rootedLookup interface {
	SyntheticRoot() string
}

// Option configures a Resolver.
type Option func(*resolverConfig)

type resolverConfig struct {
	genericBaseTypes map[string]struct{}
	logger           ResolutionLogger
}

func applyOptions(registry CandidateLookup, opts []Option) resolverConfig {
	cfg := resolverConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.genericBaseTypes == nil {
		WithGenericBaseTypes(defaultGenericBaseTypes(registry)...)(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = noopResolutionLogger{}
	}
	return cfg
}

// defaultGenericBaseTypes swaps SyntheticRootType for the registry's own
// synthetic root when it reports one.
func defaultGenericBaseTypes(registry CandidateLookup) []string {
	rooted, ok := registry.(rootedLookup)
	if !ok || rooted.SyntheticRoot() == SyntheticRootType {
		return DefaultGenericBaseTypes
	}
	types := make([]string, 0, len(DefaultGenericBaseTypes))
	for _, resourceType := range DefaultGenericBaseTypes {
		if resourceType == SyntheticRootType {
			resourceType = rooted.SyntheticRoot()
		}
		types = append(types, resourceType)
	}
	return types
}

// WithGenericBaseTypes replaces the resource types treated as generic base
// types. Models bound to them are honoured only when base types are included.
func WithGenericBaseTypes(resourceTypes ...string) Option {
	return func(cfg *resolverConfig) {
		cfg.genericBaseTypes = make(map[string]struct{}, len(resourceTypes))
		for _, resourceType := range resourceTypes {
			if resourceType = strings.TrimSpace(resourceType); resourceType != "" {
				cfg.genericBaseTypes[resourceType] = struct{}{}
			}
		}
	}
}

// Resolver resolves resources to the most specific registered model and
// memoizes every outcome, including the absence of a model.
type Resolver struct {
	registry CandidateLookup
	mapper   Mapper
	cache    CacheStore
	cfg      resolverConfig
	flights  singleflight.Group
}

// NewResolver wires a registry, a mapper and a cache store together.
func NewResolver(registry CandidateLookup, mapper Mapper, cache CacheStore, opts ...Option) (*Resolver, error) {
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if mapper == nil {
		return nil, ErrMapperRequired
	}
	if cache == nil {
		return nil, ErrCacheRequired
	}
	return &Resolver{
		registry: registry,
		mapper:   mapper,
		cache:    cache,
		cfg:      applyOptions(registry, opts),
	}, nil
}

// ResolveMostSpecific resolves res to the model registered for its most
// specific type, ignoring models bound to generic base types. ok is false
// when no model resolves or when the most specific registrations are
// ambiguous.
func (r *Resolver) ResolveMostSpecific(res Resource) (model any, ok bool, err error) {
	if missing(res) {
		return nil, false, ErrResourceRequired
	}
	return r.resolve(res, ResolutionKey{Mode: ModeExcludingBaseTypes})
}

// ResolveMostSpecificNamed resolves res to the most specific model declaring
// name. Name filtering replaces the generic base type exclusion.
func (r *Resolver) ResolveMostSpecificNamed(res Resource, name string) (model any, ok bool, err error) {
	if missing(res) {
		return nil, false, ErrResourceRequired
	}
	if name == "" {
		return nil, false, ErrModelNameRequired
	}
	return r.resolve(res, ResolutionKey{Mode: ModeIncludingBaseTypes, Name: name})
}

// ResolveMostSpecificIncludingBaseTypes resolves res accepting models bound
// to generic base types.
func (r *Resolver) ResolveMostSpecificIncludingBaseTypes(res Resource) (model any, ok bool, err error) {
	if missing(res) {
		return nil, false, ErrResourceRequired
	}
	return r.resolve(res, ResolutionKey{Mode: ModeIncludingBaseTypes})
}

// Resolve dispatches to the variant selected by key.
func (r *Resolver) Resolve(res Resource, key ResolutionKey) (model any, ok bool, err error) {
	switch {
	case key.Name != "":
		return r.ResolveMostSpecificNamed(res, key.Name)
	case key.Mode == ModeIncludingBaseTypes:
		return r.ResolveMostSpecificIncludingBaseTypes(res)
	default:
		return r.ResolveMostSpecific(res)
	}
}

// ResolveAs resolves res with key and asserts the model type. A model of a
// different type is reported as an error, not as a miss.
func ResolveAs[T any](r *Resolver, res Resource, key ResolutionKey) (T, bool, error) {
	var zero T
	model, ok, err := r.Resolve(res, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	typed, match := model.(T)
	if !match {
		return zero, false, fmt.Errorf("models: resolved model for %s is %T, not %T", res.Path(), model, zero)
	}
	return typed, true, nil
}

type resolution struct {
	model   any
	outcome Outcome
}

func (r *Resolver) resolve(res Resource, key ResolutionKey) (any, bool, error) {
	if model, outcome, cached := r.cached(res, key); cached {
		r.logCached(res, key, outcome)
		return model, outcome.Resolved(), nil
	}

	value, err, _ := r.flights.Do(CompositeKey(res, key), func() (any, error) {
		// Another flight may have stored the outcome since the first lookup.
		if model, outcome, cached := r.cached(res, key); cached {
			r.logCached(res, key, outcome)
			return resolution{model: model, outcome: outcome}, nil
		}
		return r.compute(res, key)
	})
	if err != nil {
		return nil, false, err
	}
	result := value.(resolution)
	return result.model, result.outcome.Resolved(), nil
}

func (r *Resolver) cached(res Resource, key ResolutionKey) (any, Outcome, bool) {
	entry := r.cache.Lookup(res, key)
	switch entry.State() {
	case EntryNegative:
		return nil, OutcomeCachedNegative, true
	case EntryPositive:
		model, _ := entry.Model()
		return model, OutcomeCachedPositive, true
	default:
		return nil, "", false
	}
}

func (r *Resolver) logCached(res Resource, key ResolutionKey, outcome Outcome) {
	r.cfg.logger.LogResolution(ResolutionLogEvent{
		Path:         res.Path(),
		ResourceType: res.ResourceType(),
		Key:          key,
		Outcome:      outcome,
	})
}

func (r *Resolver) compute(res Resource, key ResolutionKey) (resolution, error) {
	start := time.Now()
	event := ResolutionLogEvent{
		Path:         res.Path(),
		ResourceType: res.ResourceType(),
		Key:          key,
	}
	defer func() {
		event.Duration = time.Since(start)
		r.cfg.logger.LogResolution(event)
	}()

	candidates := r.candidates(res, key)
	event.Candidates = len(candidates)
	if outcome, ok := r.reject(candidates, key); !ok {
		event.Outcome = outcome
		r.cache.Store(res, key, Negative())
		return resolution{outcome: outcome}, nil
	}

	source := candidates[0].Source
	event.Source = source.String()
	model, err := r.mapper.Map(res, source)
	if err == nil && model == nil {
		err = ErrNilModel
	}
	if err != nil {
		event.Outcome = OutcomeMappingFailed
		event.Err = wrapMappingError(res, source, err)
		return resolution{}, event.Err
	}

	event.Outcome = OutcomeMapped
	r.cache.Store(res, key, Positive(model))
	return resolution{model: model, outcome: OutcomeMapped}, nil
}

func (r *Resolver) candidates(res Resource, key ResolutionKey) []LookupResult {
	if key.Name != "" {
		return r.registry.LookupNamedCandidates(res.ResourceType(), key.Name)
	}
	return r.registry.LookupCandidates(res.ResourceType())
}

// reject applies the ambiguity and generic base type policies. It reports the
// outcome and false when the candidates must not be mapped.
func (r *Resolver) reject(candidates []LookupResult, key ResolutionKey) (Outcome, bool) {
	switch {
	case len(candidates) == 0:
		return OutcomeNoCandidates, false
	case len(candidates) > 1:
		return OutcomeAmbiguous, false
	case key.Mode == ModeExcludingBaseTypes && r.IsGenericBaseType(candidates[0].ResourceType):
		return OutcomeGenericBase, false
	default:
		return "", true
	}
}

// IsGenericBaseType reports whether resourceType is configured as a generic
// base type.
func (r *Resolver) IsGenericBaseType(resourceType string) bool {
	_, ok := r.cfg.genericBaseTypes[resourceType]
	return ok
}

// missing reports nil resources, including typed nil pointers.
func missing(res Resource) bool {
	if res == nil {
		return true
	}
	v := reflect.ValueOf(res)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
