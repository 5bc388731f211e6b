package mapping

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// BindingContext is the data a binding expression is evaluated against.
type BindingContext struct {
	Path         string
	ResourceType string
	Properties   map[string]any
	Now          time.Time
}

func (ctx BindingContext) withDefaults() BindingContext {
	if ctx.Now.IsZero() {
		ctx.Now = time.Now()
	}
	if ctx.Properties == nil {
		ctx.Properties = map[string]any{}
	}
	return ctx
}

// variables returns the evaluation environment: every property is exposed
// by name, alongside the reserved path, resourceType, properties and now
// variables which take precedence over properties of the same name.
func (ctx BindingContext) variables() map[string]any {
	vars := make(map[string]any, len(ctx.Properties)+4)
	for key, value := range ctx.Properties {
		vars[key] = value
	}
	vars["path"] = ctx.Path
	vars["resourceType"] = ctx.ResourceType
	vars["properties"] = ctx.Properties
	vars["now"] = ctx.Now
	return vars
}

func isReserved(name string) bool {
	switch name {
	case "path", "resourceType", "properties", "now":
		return true
	}
	return false
}

// Evaluator evaluates binding expressions.
type Evaluator interface {
	Evaluate(ctx BindingContext, expression string) (any, error)
	Compile(expression string) (CompiledBinding, error)
}

// CompiledBinding is an expression prepared once and evaluated per resource.
type CompiledBinding interface {
	Evaluate(ctx BindingContext) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

type memoryProgramCache struct {
	cache *gocache.Cache
}

// NewProgramCache returns an in-memory ProgramCache. Programs never expire.
func NewProgramCache() ProgramCache {
	return &memoryProgramCache{cache: gocache.New(gocache.NoExpiration, 0)}
}

func (c *memoryProgramCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

func (c *memoryProgramCache) Set(key string, value any) {
	c.cache.Set(key, value, gocache.NoExpiration)
}
