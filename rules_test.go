package track

import (
	"errors"
	"fmt"
	"testing"
)

var evaluatorFactories = []struct {
	name string
	new  func(cache ProgramCache) Evaluator
}{
	{
		name: "expr",
		new: func(cache ProgramCache) Evaluator {
			if cache == nil {
				return NewExprEvaluator()
			}
			return NewExprEvaluator(ExprWithProgramCache(cache))
		},
	},
	{
		name: "cel",
		new: func(cache ProgramCache) Evaluator {
			if cache == nil {
				return NewCELEvaluator()
			}
			return NewCELEvaluator(CELWithProgramCache(cache))
		},
	},
	{
		name: "js",
		new: func(cache ProgramCache) Evaluator {
			if cache == nil {
				return NewJSEvaluator()
			}
			return NewJSEvaluator(JSWithProgramCache(cache))
		},
	},
}

type fakeProgramCache struct {
	entries map[string]any
	hits    int
	misses  int
}

func (c *fakeProgramCache) Get(key string) (any, bool) {
	value, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return value, ok
}

func (c *fakeProgramCache) Set(key string, value any) {
	if c.entries == nil {
		c.entries = map[string]any{}
	}
	c.entries[key] = value
}

func TestVetoUnlessAcrossEvaluators(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil)
			if evaluator == nil {
				t.Skip("evaluator not built in")
			}
			handler, err := VetoUnless(evaluator, "value >= 320")
			if err != nil {
				t.Fatalf("compile: %v", err)
			}

			small := &PropertyEvent{Op: OpApply, Property: "Width", Value: 100}
			if err := handler(small); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if !small.Cancel {
				t.Fatalf("expected small width to be vetoed")
			}

			large := &PropertyEvent{Op: OpApply, Property: "Width", Value: 800}
			if err := handler(large); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if large.Cancel {
				t.Fatalf("expected large width to pass")
			}
		})
	}
}

func TestTransformWithAcrossEvaluators(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil)
			if evaluator == nil {
				t.Skip("evaluator not built in")
			}
			handler, err := TransformWith(evaluator, "value * 2", ForProperties("Zoom"))
			if err != nil {
				t.Fatalf("compile: %v", err)
			}

			zoom := &PropertyEvent{Op: OpPersist, Property: "Zoom", Value: 5}
			if err := handler(zoom); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if fmt.Sprint(zoom.Value) != "10" {
				t.Fatalf("expected doubled value, got %v (%T)", zoom.Value, zoom.Value)
			}

			other := &PropertyEvent{Op: OpPersist, Property: "Width", Value: 5}
			if err := handler(other); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if other.Value != 5 {
				t.Fatalf("expected unrelated property untouched, got %v", other.Value)
			}
		})
	}
}

func TestRuleContextBindings(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			evaluator := factory.new(nil)
			if evaluator == nil {
				t.Skip("evaluator not built in")
			}
			handler, err := VetoUnless(evaluator,
				`op == "apply" && property == "Width" && typeName == "Window" && key == "main" && value >= args.min`,
				WithRuleArgs(map[string]any{"min": 200}),
			)
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			event := &PropertyEvent{Op: OpApply, TypeName: "Window", Key: "main", Property: "Width", Value: 250}
			if err := handler(event); err != nil {
				t.Fatalf("handler: %v", err)
			}
			if event.Cancel {
				t.Fatalf("expected rule to pass with bound context")
			}
		})
	}
}

func TestVetoUnlessRequiresBool(t *testing.T) {
	handler, err := VetoUnless(NewExprEvaluator(), "value + 1")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	err = handler(&PropertyEvent{Property: "Width", Value: 1})
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if evalErr.Engine != "expr" || evalErr.Property != "Width" {
		t.Fatalf("unexpected metadata %+v", evalErr)
	}
}

func TestRuleConstructionErrors(t *testing.T) {
	if _, err := VetoUnless(nil, "true"); !errors.Is(err, ErrNoEvaluator) {
		t.Fatalf("expected ErrNoEvaluator, got %v", err)
	}
	if _, err := TransformWith(NewCELEvaluator(), "value +"); err == nil {
		t.Fatalf("expected compile error")
	} else {
		var evalErr *EvaluationError
		if !errors.As(err, &evalErr) || evalErr.Engine != "cel" {
			t.Fatalf("expected cel EvaluationError, got %v", err)
		}
	}
	if _, err := VetoUnless(NewExprEvaluator(), ""); err == nil {
		t.Fatalf("expected empty expression to fail")
	}
}

func TestEvaluatorProgramCache(t *testing.T) {
	for _, factory := range evaluatorFactories {
		t.Run(factory.name, func(t *testing.T) {
			cache := &fakeProgramCache{}
			evaluator := factory.new(cache)
			if evaluator == nil {
				t.Skip("evaluator not built in")
			}
			for i := 0; i < 3; i++ {
				if _, err := evaluator.Evaluate(RuleContext{Value: 1}, "value == 1"); err != nil {
					t.Fatalf("evaluate %d: %v", i, err)
				}
			}
			if cache.misses != 1 || cache.hits != 2 {
				t.Fatalf("expected 1 miss and 2 hits, got %d/%d", cache.misses, cache.hits)
			}
		})
	}
}

func TestNewProgramCache(t *testing.T) {
	cache := NewProgramCache()
	if _, ok := cache.Get("x"); ok {
		t.Fatalf("expected empty cache")
	}
	cache.Set("x", 1)
	if value, ok := cache.Get("x"); !ok || value != 1 {
		t.Fatalf("expected cached value, got %v %v", value, ok)
	}
}

func TestFunctionRegistryWithEvaluators(t *testing.T) {
	registry, err := NewFunctionRegistry(map[string]Function{
		"clampWidth": func(args ...any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("clampWidth expects 1 arg")
			}
			width, ok := args[0].(int)
			if !ok {
				if w64, ok := args[0].(int64); ok {
					width = int(w64)
				}
			}
			return min(width, 1920), nil
		},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if err := registry.Register("CLAMPWIDTH", func(...any) (any, error) { return nil, nil }); err == nil {
		t.Fatalf("expected duplicate registration to fail regardless of case")
	}

	exprHandler, err := TransformWith(NewExprEvaluator(ExprWithFunctionRegistry(registry)), "clampwidth(value)")
	if err != nil {
		t.Fatalf("expr compile: %v", err)
	}
	event := &PropertyEvent{Property: "Width", Value: 4000}
	if err := exprHandler(event); err != nil {
		t.Fatalf("expr handler: %v", err)
	}
	if fmt.Sprint(event.Value) != "1920" {
		t.Fatalf("expected clamped width, got %v", event.Value)
	}

	celHandler, err := TransformWith(NewCELEvaluator(CELWithFunctionRegistry(registry)), `call("clampWidth", [value])`)
	if err != nil {
		t.Fatalf("cel compile: %v", err)
	}
	event = &PropertyEvent{Property: "Width", Value: 4000}
	if err := celHandler(event); err != nil {
		t.Fatalf("cel handler: %v", err)
	}
	if fmt.Sprint(event.Value) != "1920" {
		t.Fatalf("expected clamped width, got %v", event.Value)
	}

	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected missing function error")
	}
}
