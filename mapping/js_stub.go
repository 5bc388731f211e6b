//go:build !js_eval

package mapping

// NewJSEvaluator returns an evaluator failing every binding with
// ErrJSUnavailable, so mappers configured for JS report the missing build
// tag when bindings are declared.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	_ = applyJSEvaluatorOptions(opts)
	return unavailableJSEvaluator{}
}

// JSEvaluatorAvailable reports whether the binary was built with goja support.
func JSEvaluatorAvailable() bool {
	return false
}

type unavailableJSEvaluator struct{}

func (unavailableJSEvaluator) Evaluate(BindingContext, string) (any, error) {
	return nil, ErrJSUnavailable
}

func (unavailableJSEvaluator) Compile(string) (CompiledBinding, error) {
	return nil, ErrJSUnavailable
}
