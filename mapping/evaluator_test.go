package mapping

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache, registry *FunctionRegistry) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []ExprEvaluatorOption{}
			if cache != nil {
				opts = append(opts, ExprWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, ExprWithFunctionRegistry(registry))
			}
			return NewExprEvaluator(opts...)
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			opts := []CELEvaluatorOption{}
			if cache != nil {
				opts = append(opts, CELWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, CELWithFunctionRegistry(registry))
			}
			return NewCELEvaluator(opts...)
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache, registry *FunctionRegistry) Evaluator {
			if !JSEvaluatorAvailable() {
				return nil
			}
			opts := []JSEvaluatorOption{}
			if cache != nil {
				opts = append(opts, JSWithProgramCache(cache))
			}
			if registry != nil {
				opts = append(opts, JSWithFunctionRegistry(registry))
			}
			return NewJSEvaluator(opts...)
		},
	},
}

func TestEvaluatorsReadBindingContext(t *testing.T) {
	ctx := BindingContext{
		Path:         "/content/home",
		ResourceType: "app/page",
		Properties:   map[string]any{"title": "Home", "jcr:title": "Home Page"},
	}
	cases := []struct {
		name string
		expr string
		want any
	}{
		{name: "reserved variables", expr: `path + "#" + resourceType`, want: "/content/home#app/page"},
		{name: "property by name", expr: `title`, want: "Home"},
		{name: "property by key", expr: `properties["jcr:title"]`, want: "Home Page"},
	}

	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			for _, cache := range []ProgramCache{nil, NewProgramCache()} {
				evaluator := factory.new(cache, nil)
				if evaluator == nil {
					t.Skipf("%s evaluator not available in this build", factory.name)
				}
				for _, tc := range cases {
					got, err := evaluator.Evaluate(ctx, tc.expr)
					if err != nil {
						t.Fatalf("%s: evaluate %q: %v", tc.name, tc.expr, err)
					}
					if got != tc.want {
						t.Fatalf("%s: expected %v, got %v (%T)", tc.name, tc.want, got, got)
					}
				}
			}
		})
	}
}

func TestEvaluatorsCompiledBindingsAcrossResources(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(NewProgramCache(), nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			compiled, err := evaluator.Compile(`path + ":" + title`)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			for i := 0; i < 3; i++ {
				path := fmt.Sprintf("/content/%d", i)
				title := fmt.Sprintf("T%d", i)
				got, err := compiled.Evaluate(BindingContext{Path: path, Properties: map[string]any{"title": title}})
				if err != nil {
					t.Fatalf("evaluate %d: %v", i, err)
				}
				if got != path+":"+title {
					t.Fatalf("unexpected result %v", got)
				}
			}
		})
	}
}

func TestCustomFunctionsAcrossEvaluators(t *testing.T) {
	registry := NewFunctionRegistry()
	if err := registry.Register("shout", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("shout expects 1 arg")
		}
		s, _ := args[0].(string)
		return strings.ToUpper(s) + "!", nil
	}); err != nil {
		t.Fatalf("register shout: %v", err)
	}

	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, registry)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			got, err := evaluator.Evaluate(BindingContext{Properties: map[string]any{"title": "home"}}, `shout(title)`)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != "HOME!" {
				t.Fatalf("expected HOME!, got %v", got)
			}
		})
	}
}

func TestEvaluatorsRejectEmptyExpressions(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			if _, err := evaluator.Evaluate(BindingContext{}, ""); err == nil {
				t.Fatalf("expected evaluate error")
			}
			if _, err := evaluator.Compile(""); err == nil {
				t.Fatalf("expected compile error")
			}
		})
	}
}

func TestEvaluatorsReportEvaluationErrors(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil, nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			_, err := evaluator.Evaluate(BindingContext{Path: "/content/a"}, `(`)
			if err == nil {
				t.Fatalf("expected syntax error")
			}
			if !strings.HasPrefix(err.Error(), "mapping: ") {
				t.Fatalf("expected mapping error, got %v", err)
			}
		})
	}
}

type countingCache struct {
	mu   sync.Mutex
	sets int
	data map[string]any
}

func (c *countingCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	return value, ok
}

func (c *countingCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = map[string]any{}
	}
	c.sets++
	c.data[key] = value
}

func TestProgramCacheReusesPrograms(t *testing.T) {
	for _, factory := range evaluatorFactories {
		factory := factory
		t.Run(factory.name, func(t *testing.T) {
			cache := &countingCache{}
			evaluator := factory.new(cache, nil)
			if evaluator == nil {
				t.Skipf("%s evaluator not available in this build", factory.name)
			}
			ctx := BindingContext{Properties: map[string]any{"title": "x"}}
			for i := 0; i < 3; i++ {
				if _, err := evaluator.Evaluate(ctx, `title + title`); err != nil {
					t.Fatalf("evaluate: %v", err)
				}
			}
			if cache.sets != 1 {
				t.Fatalf("expected a single compilation, got %d", cache.sets)
			}
		})
	}
}

func TestCELProgramsAreKeyedByDeclaredProperties(t *testing.T) {
	evaluator := NewCELEvaluator(CELWithProgramCache(NewProgramCache()))
	if _, err := evaluator.Evaluate(BindingContext{Properties: map[string]any{"title": "a"}}, `title`); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	got, err := evaluator.Evaluate(BindingContext{Properties: map[string]any{"title": "b", "extra": 1}}, `title`)
	if err != nil {
		t.Fatalf("evaluate with more properties: %v", err)
	}
	if got != "b" {
		t.Fatalf("expected b, got %v", got)
	}
}

func TestCELVariableNamesSkipInvalidIdentifiers(t *testing.T) {
	got := celVariableNames(map[string]any{
		"title":      1,
		"jcr:title":  1,
		"path":       1,
		"in":         1,
		"_hidden":    1,
		"9lives":     1,
		"sling_type": 1,
	})
	want := []string{"_hidden", "sling_type", "title"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestFunctionRegistry(t *testing.T) {
	registry := NewFunctionRegistry()
	noop := func(...any) (any, error) { return "ok", nil }
	if err := registry.Register("Upper", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("upper", noop); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := registry.Register("", noop); err == nil {
		t.Fatalf("expected empty name to fail")
	}
	if err := registry.Register("nil", nil); err == nil {
		t.Fatalf("expected nil function to fail")
	}
	if got, err := registry.Call("UPPER"); err != nil || got != "ok" {
		t.Fatalf("expected case insensitive call, got %v %v", got, err)
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected unknown function to fail")
	}

	clone := registry.Clone()
	if err := clone.Register("lower", noop); err != nil {
		t.Fatalf("register on clone: %v", err)
	}
	if names := registry.Names(); len(names) != 1 || names[0] != "upper" {
		t.Fatalf("clone must not affect original, got %v", names)
	}
	if names := clone.Names(); strings.Join(names, ",") != "lower,upper" {
		t.Fatalf("unexpected clone names %v", names)
	}

	var empty *FunctionRegistry
	if _, err := empty.Call("x"); err == nil {
		t.Fatalf("expected nil registry call to fail")
	}
}
