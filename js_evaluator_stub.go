//go:build !js_eval

package track

// JSEvaluatorOption configures the goja evaluator. Options are accepted
// but unused in binaries built without the js_eval tag.
type JSEvaluatorOption func(*jsSettings)

type jsSettings struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// JSWithProgramCache reuses compiled goja programs across rules.
func JSWithProgramCache(cache ProgramCache) JSEvaluatorOption {
	return func(s *jsSettings) { s.cache = cache }
}

// JSWithFunctionRegistry exposes registered functions to JS rules.
func JSWithFunctionRegistry(registry *FunctionRegistry) JSEvaluatorOption {
	return func(s *jsSettings) { s.registry = registry }
}

// NewJSEvaluator is unavailable without the js_eval build tag and returns
// nil; rule constructors report ErrNoEvaluator for it.
func NewJSEvaluator(...JSEvaluatorOption) Evaluator {
	return nil
}

func jsEvaluatorAvailable() bool {
	return false
}

func isJSEvaluator(Evaluator) bool {
	return false
}
