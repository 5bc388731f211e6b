package mapping

import (
	"errors"
	"time"
)

// DefaultJSTimeout bounds a single binding evaluation in the JS engine.
const DefaultJSTimeout = 250 * time.Millisecond

// ErrJSUnavailable is returned by the JS evaluator of binaries built
// without the js_eval tag.
var ErrJSUnavailable = errors.New("mapping: js evaluator requires the js_eval build tag")

type jsEvaluatorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// JSEvaluatorOption configures the JS evaluator.
type JSEvaluatorOption func(*jsEvaluatorConfig)

// JSWithProgramCache shares compiled scripts across evaluations.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		cfg.cache = cache
	}
}

// JSWithFunctionRegistry exposes custom functions to scripts, both by name
// and through call(name, ...args).
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		if registry != nil {
			cfg.registry = registry.Clone()
		}
	}
}

// JSWithTimeout interrupts bindings running longer than timeout. A zero or
// negative timeout disables the limit.
func JSWithTimeout(timeout time.Duration) JSEvaluatorOption {
	return func(cfg *jsEvaluatorConfig) {
		cfg.timeout = timeout
	}
}

func applyJSEvaluatorOptions(opts []JSEvaluatorOption) jsEvaluatorConfig {
	cfg := jsEvaluatorConfig{timeout: DefaultJSTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
