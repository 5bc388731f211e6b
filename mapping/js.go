//go:build js_eval

package mapping

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	timeout  time.Duration
}

// NewJSEvaluator constructs an Evaluator backed by goja. Every evaluation
// runs in a fresh runtime bounded by the configured timeout.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	cfg := applyJSEvaluatorOptions(opts)
	return &jsEvaluator{
		cache:    cfg.cache,
		registry: cfg.registry,
		timeout:  cfg.timeout,
	}
}

// JSEvaluatorAvailable reports whether the binary was built with goja support.
func JSEvaluatorAvailable() bool {
	return true
}

func (e *jsEvaluator) Evaluate(ctx BindingContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("js", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	if e.cache == nil {
		return e.run(ctx, expression, nil)
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return e.run(ctx, expression, program)
}

func (e *jsEvaluator) Compile(expression string) (CompiledBinding, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("js", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &jsCompiledBinding{
		evaluator:  e,
		expression: expression,
		program:    program,
	}, nil
}

func (e *jsEvaluator) loadOrCompile(expression string) (*goja.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return program, nil
			}
		}
	}
	program, err := goja.Compile("", e.wrapExpression(expression), false)
	if err != nil {
		return nil, wrapEvaluationError("js", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

func (e *jsEvaluator) run(ctx BindingContext, expression string, program *goja.Program) (any, error) {
	vm := goja.New()
	e.injectContext(vm, ctx)
	if e.timeout > 0 {
		timer := time.AfterFunc(e.timeout, func() {
			vm.Interrupt(fmt.Sprintf("binding exceeded %s", e.timeout))
		})
		defer timer.Stop()
	}
	var (
		value goja.Value
		err   error
	)
	if program != nil {
		value, err = vm.RunProgram(program)
	} else {
		value, err = vm.RunString(e.wrapExpression(expression))
	}
	if err != nil {
		return nil, wrapEvaluationError("js", expression, ctx.Path, err)
	}
	return value.Export(), nil
}

func (e *jsEvaluator) injectContext(vm *goja.Runtime, ctx BindingContext) {
	for key, value := range ctx.variables() {
		vm.Set(key, value)
	}
	if e.registry != nil {
		vm.Set("call", func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		})
		for _, name := range e.registry.Names() {
			fn := name
			vm.Set(fn, func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			})
		}
	}
}

func (e *jsEvaluator) wrapExpression(expression string) string {
	return fmt.Sprintf("(function(){ return (%s); })()", expression)
}

type jsCompiledBinding struct {
	evaluator  *jsEvaluator
	expression string
	program    *goja.Program
}

func (b *jsCompiledBinding) Evaluate(ctx BindingContext) (any, error) {
	if b.evaluator == nil {
		return nil, wrapEvaluatorError("js", fmt.Errorf("compiled binding missing evaluator"))
	}
	ctx = ctx.withDefaults()
	return b.evaluator.run(ctx, b.expression, b.program)
}
