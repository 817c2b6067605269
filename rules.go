package track

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNoEvaluator is returned when a rule is built without an evaluator, for
// instance NewJSEvaluator in a binary built without the js_eval tag.
var ErrNoEvaluator = errors.New("track: evaluator not configured")

// RuleContext is the environment a rule expression sees. Expressions refer
// to its fields as value, property, key, typeName, op, now, args and metadata.
type RuleContext struct {
	Operation string
	Property  string
	Key       string
	TypeName  string
	Value     any
	Now       *time.Time
	Args      map[string]any
	Metadata  map[string]any
}

// Evaluator runs rule expressions.
type Evaluator interface {
	Evaluate(ctx RuleContext, expression string) (any, error)
	Compile(expression string) (CompiledRule, error)
}

// CompiledRule is an expression prepared once and evaluated many times.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache stores compiled expression programs keyed by expression strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

type mapProgramCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewProgramCache returns an unbounded, concurrency-safe ProgramCache.
func NewProgramCache() ProgramCache {
	return &mapProgramCache{programs: map[string]any{}}
}

func (c *mapProgramCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

func (c *mapProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs[key] = value
}

func ruleContextFor(event *PropertyEvent) RuleContext {
	return RuleContext{
		Operation: event.Op,
		Property:  event.Property,
		Key:       event.Key,
		TypeName:  event.TypeName,
		Value:     event.Value,
	}
}

func (c RuleContext) withDefaults() RuleContext {
	if c.Now == nil {
		now := time.Now()
		c.Now = &now
	}
	if c.Args == nil {
		c.Args = map[string]any{}
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	return c
}

func (c RuleContext) timestamp() time.Time {
	if c.Now != nil {
		return *c.Now
	}
	return time.Now()
}

// bindings exposes the context as expression variables.
func (c RuleContext) bindings() map[string]any {
	return map[string]any{
		"value":    c.Value,
		"property": c.Property,
		"key":      c.Key,
		"typeName": c.TypeName,
		"op":       c.Operation,
		"now":      c.timestamp(),
		"args":     c.Args,
		"metadata": c.Metadata,
	}
}

// VetoUnless returns a handler that cancels the operation for a property
// whenever expression does not evaluate to true. Non-boolean results fail
// the property.
//
//	cfg.OnApplyingProperty(track.VetoUnless(eval, `value >= 320`))
func VetoUnless(evaluator Evaluator, expression string, opts ...RuleOption) (PropertyHandler, error) {
	rule, settings, err := compileRule(evaluator, expression, opts)
	if err != nil {
		return nil, err
	}
	return func(event *PropertyEvent) error {
		if !settings.matches(event.Property) {
			return nil
		}
		out, err := rule.Evaluate(settings.context(event))
		if err != nil {
			return wrapEvaluationError(engineName(evaluator), expression, event.Property, err)
		}
		allowed, ok := out.(bool)
		if !ok {
			return wrapEvaluationError(engineName(evaluator), expression, event.Property,
				fmt.Errorf("rule must yield a bool, got %T", out))
		}
		if !allowed {
			event.Cancel = true
		}
		return nil
	}, nil
}

// TransformWith returns a handler replacing the in-flight value with the
// result of expression.
//
//	cfg.OnPersistingProperty(track.TransformWith(eval, `value * 2`, track.ForProperties("Zoom")))
func TransformWith(evaluator Evaluator, expression string, opts ...RuleOption) (PropertyHandler, error) {
	rule, settings, err := compileRule(evaluator, expression, opts)
	if err != nil {
		return nil, err
	}
	return func(event *PropertyEvent) error {
		if !settings.matches(event.Property) {
			return nil
		}
		out, err := rule.Evaluate(settings.context(event))
		if err != nil {
			return wrapEvaluationError(engineName(evaluator), expression, event.Property, err)
		}
		event.Value = out
		return nil
	}, nil
}

// RuleOption narrows or enriches a rule handler.
type RuleOption func(*ruleSettings)

type ruleSettings struct {
	properties map[string]struct{}
	args       map[string]any
	metadata   map[string]any
}

// ForProperties restricts the rule to the named properties.
func ForProperties(names ...string) RuleOption {
	return func(s *ruleSettings) {
		if s.properties == nil {
			s.properties = map[string]struct{}{}
		}
		for _, name := range names {
			s.properties[name] = struct{}{}
		}
	}
}

// WithRuleArgs exposes args to the expression as `args`.
func WithRuleArgs(args map[string]any) RuleOption {
	return func(s *ruleSettings) {
		s.args = args
	}
}

// WithRuleMetadata exposes metadata to the expression as `metadata`.
func WithRuleMetadata(metadata map[string]any) RuleOption {
	return func(s *ruleSettings) {
		s.metadata = metadata
	}
}

func (s ruleSettings) matches(property string) bool {
	if len(s.properties) == 0 {
		return true
	}
	_, ok := s.properties[property]
	return ok
}

func (s ruleSettings) context(event *PropertyEvent) RuleContext {
	ctx := ruleContextFor(event)
	ctx.Args = s.args
	ctx.Metadata = s.metadata
	return ctx.withDefaults()
}

func compileRule(evaluator Evaluator, expression string, opts []RuleOption) (CompiledRule, ruleSettings, error) {
	settings := ruleSettings{}
	if evaluator == nil {
		return nil, settings, ErrNoEvaluator
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	rule, err := evaluator.Compile(expression)
	if err != nil {
		return nil, settings, wrapEvaluationError(engineName(evaluator), expression, "", err)
	}
	return rule, settings, nil
}

func engineName(e Evaluator) string {
	switch e.(type) {
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	case nil:
		return "unknown"
	}
	if jsEvaluatorAvailable() && isJSEvaluator(e) {
		return "js"
	}
	return "custom"
}
