package mapping

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	models "github.com/goliatone/go-models"
	"github.com/goliatone/go-models/internal/hydrate"
)

// AfterMapper is implemented by models that derive state once their fields
// have been filled from a resource.
type AfterMapper interface {
	AfterMapping(res models.Resource) error
}

// Validator is implemented by models that check their own consistency.
type Validator interface {
	Validate() error
}

// PayloadContext identifies the resource and source a payload belongs to.
type PayloadContext = hydrate.Context

// PayloadHook rewrites the property payload before it is decoded.
type PayloadHook func(ctx PayloadContext, payload map[string]any) (map[string]any, error)

// ModelHook inspects or adjusts a decoded model before lifecycle callbacks
// run.
type ModelHook func(ctx PayloadContext, model any) error

// Option configures a Mapper.
type Option func(*mapperConfig)

type mapperConfig struct {
	evaluator Evaluator
	functions *FunctionRegistry
	cache     ProgramCache
	decoder   []hydrate.DecoderOption[any]
	clock     func() time.Time
}

// WithEvaluator replaces the default expr evaluator used for bindings.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *mapperConfig) {
		cfg.evaluator = evaluator
	}
}

// WithFunctionRegistry exposes custom functions to the default evaluator.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *mapperConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for the default evaluator.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *mapperConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}

// WithProgramCache replaces the program cache of the default evaluator.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *mapperConfig) {
		cfg.cache = cache
	}
}

// WithClock sets the clock read once per mapping for the now variable of
// bindings.
func WithClock(clock func() time.Time) Option {
	return func(cfg *mapperConfig) {
		cfg.clock = clock
	}
}

// WithDisallowUnknownFields fails mappings whose payload carries properties
// the model does not declare.
func WithDisallowUnknownFields() Option {
	return func(cfg *mapperConfig) {
		cfg.decoder = append(cfg.decoder, hydrate.WithDisallowUnknownFields[any]())
	}
}

// WithUseNumber decodes numbers into json.Number for untyped fields.
func WithUseNumber() Option {
	return func(cfg *mapperConfig) {
		cfg.decoder = append(cfg.decoder, hydrate.WithUseNumber[any]())
	}
}

// WithPayloadHook runs hook after bindings are applied and before decoding.
func WithPayloadHook(hook PayloadHook) Option {
	return func(cfg *mapperConfig) {
		if hook == nil {
			return
		}
		cfg.decoder = append(cfg.decoder, hydrate.WithPreHook[any](hydrate.PreHook(hook)))
	}
}

// WithModelHook runs hook on every decoded model.
func WithModelHook(hook ModelHook) Option {
	return func(cfg *mapperConfig) {
		if hook == nil {
			return
		}
		cfg.decoder = append(cfg.decoder, hydrate.WithPostHook[any](func(ctx hydrate.Context, target *any) error {
			return hook(ctx, *target)
		}))
	}
}

type binding struct {
	field      string
	expression string
	compiled   CompiledBinding
}

// Mapper implements models.Mapper by decoding resource properties into the
// model a source instantiates. Per-source bindings compute additional fields
// from expressions before decoding.
type Mapper struct {
	mu        sync.RWMutex
	evaluator Evaluator
	bindings  map[*models.Source][]binding
	decoder   *hydrate.Decoder[any]
	clock     func() time.Time
}

var _ models.Mapper = (*Mapper)(nil)

// NewMapper constructs a Mapper. Without WithEvaluator bindings are evaluated
// with expr.
func NewMapper(opts ...Option) *Mapper {
	cfg := mapperConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.evaluator == nil {
		if cfg.cache == nil {
			cfg.cache = NewProgramCache()
		}
		cfg.evaluator = NewExprEvaluator(
			ExprWithProgramCache(cfg.cache),
			ExprWithFunctionRegistry(cfg.functions),
		)
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	return &Mapper{
		evaluator: cfg.evaluator,
		bindings:  make(map[*models.Source][]binding),
		decoder:   hydrate.NewDecoder[any](cfg.decoder...),
		clock:     cfg.clock,
	}
}

// Bind makes field of every model mapped from source the result of
// expression. Binding a field twice replaces the previous expression.
//
// The now variable holds the mapper clock at mapping time. Resolvers cache
// the mapped model for the rest of the session, so later resolutions of the
// same resource observe the first value.
func (m *Mapper) Bind(source *models.Source, field, expression string) error {
	if source == nil {
		return models.ErrSourceRequired
	}
	field = strings.TrimSpace(field)
	if field == "" {
		return ErrFieldRequired
	}
	compiled, err := m.evaluator.Compile(expression)
	if err != nil {
		return fmt.Errorf("mapping: bind %s.%s: %w", source, field, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	next := binding{field: field, expression: expression, compiled: compiled}
	current := m.bindings[source]
	for i := range current {
		if current[i].field == field {
			updated := append([]binding(nil), current...)
			updated[i] = next
			m.bindings[source] = updated
			return nil
		}
	}
	m.bindings[source] = append(current, next)
	return nil
}

// Bindings returns the field to expression bindings of source.
func (m *Mapper) Bindings(source *models.Source) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.bindings[source]))
	for _, b := range m.bindings[source] {
		out[b.field] = b.expression
	}
	return out
}

// Map instantiates the model of source and fills it from res.
func (m *Mapper) Map(res models.Resource, source *models.Source) (any, error) {
	if res == nil {
		return nil, models.ErrResourceRequired
	}
	if source == nil {
		return nil, models.ErrSourceRequired
	}
	model := source.New()
	if model == nil {
		return nil, models.ErrNilModel
	}
	if v := reflect.ValueOf(model); v.Kind() != reflect.Pointer || v.IsNil() {
		return nil, fmt.Errorf("%w, %s returned %T", ErrModelNotPointer, source, model)
	}

	properties := map[string]any{}
	if ps, ok := res.(models.PropertySource); ok {
		properties = ps.Properties()
	}
	payload, err := m.applyBindings(res, source, properties)
	if err != nil {
		return nil, err
	}

	ctx := hydrate.Context{
		Path:         res.Path(),
		ResourceType: res.ResourceType(),
		Source:       source.Name(),
	}
	target := model
	if err := m.decoder.DecodeInto(ctx, payload, &target); err != nil {
		return nil, err
	}

	if after, ok := model.(AfterMapper); ok {
		if err := after.AfterMapping(res); err != nil {
			return nil, fmt.Errorf("mapping: after mapping %s: %w", res.Path(), err)
		}
	}
	if validator, ok := model.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("mapping: validate %s: %w", res.Path(), err)
		}
	}
	return model, nil
}

// applyBindings evaluates every binding against the original properties, so
// bindings never observe each other's results.
func (m *Mapper) applyBindings(res models.Resource, source *models.Source, properties map[string]any) (map[string]any, error) {
	m.mu.RLock()
	bindings := m.bindings[source]
	m.mu.RUnlock()
	if len(bindings) == 0 {
		return properties, nil
	}

	ctx := BindingContext{
		Path:         res.Path(),
		ResourceType: res.ResourceType(),
		Properties:   properties,
		Now:          m.clock(),
	}
	payload := make(map[string]any, len(properties)+len(bindings))
	for key, value := range properties {
		payload[key] = value
	}
	for _, b := range bindings {
		value, err := b.compiled.Evaluate(ctx)
		if err != nil {
			return nil, wrapEvaluationError("", b.expression, res.Path(), err)
		}
		payload[b.field] = value
	}
	return payload, nil
}
