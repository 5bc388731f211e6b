package mapping

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

// ExprEvaluatorOption configures an expr evaluator instance.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache wires a ProgramCache into the expr evaluator.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry wires a FunctionRegistry into the expr evaluator.
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

// exprEvaluator executes binding expressions using github.com/expr-lang/expr.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate compiles and runs expression against ctx.
func (e *exprEvaluator) Evaluate(ctx BindingContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	env := e.environment(ctx)
	if e.cache == nil {
		result, err := exprlang.Eval(expression, env)
		if err != nil {
			return nil, wrapEvaluationError("expr", expression, ctx.Path, err)
		}
		return result, nil
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	result, err := exprlang.Run(program, env)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, ctx.Path, err)
	}
	return result, nil
}

// Compile returns a compiled binding that evaluates expression per resource.
func (e *exprEvaluator) Compile(expression string) (CompiledBinding, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("expression must not be empty"))
	}
	program, err := e.loadOrCompile(expression)
	if err != nil {
		return nil, err
	}
	return &exprCompiledBinding{
		evaluator:  e,
		program:    program,
		expression: expression,
	}, nil
}

func (e *exprEvaluator) loadOrCompile(expression string) (*exprvm.Program, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get(expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return program, nil
			}
		}
	}
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registryNames() {
		options = append(options, exprlang.Function(name, e.registryFunction(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapEvaluationError("expr", expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(expression, program)
	}
	return program, nil
}

type exprCompiledBinding struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (b *exprCompiledBinding) Evaluate(ctx BindingContext) (any, error) {
	if b.evaluator == nil {
		return nil, wrapEvaluatorError("expr", fmt.Errorf("compiled binding missing evaluator"))
	}
	ctx = ctx.withDefaults()
	if b.program == nil {
		return b.evaluator.Evaluate(ctx, b.expression)
	}
	result, err := exprlang.Run(b.program, b.evaluator.environment(ctx))
	if err != nil {
		return nil, wrapEvaluationError("expr", b.expression, ctx.Path, err)
	}
	return result, nil
}

func (e *exprEvaluator) environment(ctx BindingContext) map[string]any {
	env := ctx.variables()
	if e.registry != nil {
		env["call"] = func(name string, arguments ...any) (any, error) {
			return e.registry.Call(name, arguments...)
		}
		for _, name := range e.registry.Names() {
			fn := name
			env[fn] = func(arguments ...any) (any, error) {
				return e.registry.Call(fn, arguments...)
			}
		}
	}
	return env
}

func (e *exprEvaluator) registryNames() []string {
	if e == nil || e.registry == nil {
		return nil
	}
	return e.registry.Names()
}

func (e *exprEvaluator) registryFunction(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}
