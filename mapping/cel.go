package mapping

import (
	"fmt"
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures the CEL evaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache wires a ProgramCache into the CEL evaluator.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry wires a FunctionRegistry into the CEL evaluator.
// Registered functions are declared with one to three dynamic arguments.
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry == nil {
			return
		}
		e.registry = registry.Clone()
	}
}

type celProgram struct {
	env     *celgo.Env
	program celgo.Program
}

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Properties whose
// names are not CEL identifiers are reachable through properties["name"].
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx BindingContext, expression string) (any, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	ctx = ctx.withDefaults()
	names := celVariableNames(ctx.Properties)
	program, err := e.loadOrCompile(expression, names)
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.Path, err)
	}
	out, _, err := program.program.Eval(e.activation(ctx, names))
	if err != nil {
		return nil, wrapEvaluationError("cel", expression, ctx.Path, err)
	}
	return out.Value(), nil
}

// Compile defers type checking to the first evaluation: the declared
// variables depend on the properties of the resource.
func (e *celEvaluator) Compile(expression string) (CompiledBinding, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("expression must not be empty"))
	}
	return &celCompiledBinding{
		evaluator:  e,
		expression: expression,
	}, nil
}

func (e *celEvaluator) loadOrCompile(expression string, names []string) (*celProgram, error) {
	key := expression + "\x00" + strings.Join(names, ",")
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			if program, ok := cached.(*celProgram); ok {
				return program, nil
			}
		}
	}

	env, err := e.buildEnv(names)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	bundle := &celProgram{
		env:     env,
		program: prg,
	}
	if e.cache != nil {
		e.cache.Set(key, bundle)
	}
	return bundle, nil
}

func (e *celEvaluator) buildEnv(names []string) (*celgo.Env, error) {
	opts := []celgo.EnvOption{
		celgo.Variable("path", celgo.StringType),
		celgo.Variable("resourceType", celgo.StringType),
		celgo.Variable("properties", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("now", celgo.TimestampType),
	}
	for _, name := range names {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	for _, name := range e.registry.Names() {
		opts = append(opts, e.function(name))
	}
	return celgo.NewEnv(opts...)
}

func (e *celEvaluator) function(name string) celgo.EnvOption {
	call := func(values ...ref.Val) ref.Val {
		args := make([]any, 0, len(values))
		for _, val := range values {
			args = append(args, val.Value())
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
	return celgo.Function(name,
		celgo.Overload(name+"_dyn", []*celgo.Type{celgo.DynType}, celgo.DynType,
			celgo.UnaryBinding(func(arg ref.Val) ref.Val { return call(arg) })),
		celgo.Overload(name+"_dyn_dyn", []*celgo.Type{celgo.DynType, celgo.DynType}, celgo.DynType,
			celgo.BinaryBinding(func(lhs, rhs ref.Val) ref.Val { return call(lhs, rhs) })),
		celgo.Overload(name+"_dyn_dyn_dyn", []*celgo.Type{celgo.DynType, celgo.DynType, celgo.DynType}, celgo.DynType,
			celgo.FunctionBinding(call)),
	)
}

func (e *celEvaluator) activation(ctx BindingContext, names []string) map[string]any {
	activation := map[string]any{
		"path":         ctx.Path,
		"resourceType": ctx.ResourceType,
		"properties":   ctx.Properties,
		"now":          ctx.Now,
	}
	for _, name := range names {
		activation[name] = ctx.Properties[name]
	}
	return activation
}

type celCompiledBinding struct {
	evaluator  *celEvaluator
	expression string
}

func (b *celCompiledBinding) Evaluate(ctx BindingContext) (any, error) {
	if b.evaluator == nil {
		return nil, wrapEvaluatorError("cel", fmt.Errorf("compiled binding missing evaluator"))
	}
	return b.evaluator.Evaluate(ctx, b.expression)
}

// celVariableNames returns the sorted property names that can be declared as
// CEL variables.
func celVariableNames(properties map[string]any) []string {
	names := make([]string, 0, len(properties))
	for name := range properties {
		if isReserved(name) || celReserved[name] || !isIdentifier(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var celReserved = map[string]bool{
	"true": true, "false": true, "null": true, "in": true, "as": true,
	"break": true, "const": true, "continue": true, "else": true, "for": true,
	"function": true, "if": true, "import": true, "let": true, "loop": true,
	"package": true, "namespace": true, "return": true, "var": true,
	"void": true, "while": true,
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
