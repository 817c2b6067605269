package track

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no entry exists for a key.
	ErrNotFound = errors.New("track: key not found")
	// ErrPropertyNotFound indicates a property name unknown to the target type.
	ErrPropertyNotFound = errors.New("track: property not found")
	// ErrEventNotFound indicates an event name unknown to the source type.
	ErrEventNotFound = errors.New("track: event not found")
	// ErrDuplicateKeyField indicates more than one `track:"key"` field on a type.
	ErrDuplicateKeyField = errors.New("track: multiple key fields")
	// ErrVetoed marks a property operation cancelled by an interception handler.
	ErrVetoed = errors.New("track: operation vetoed")
	// ErrTargetCollected is returned when the tracked target is no longer reachable.
	ErrTargetCollected = errors.New("track: target collected")
	// ErrInvalidTarget indicates a target that cannot be tracked.
	ErrInvalidTarget = errors.New("track: invalid target")
)

// BindingError reports a property or event that could not be bound on a
// target type. It is returned from configuration-building calls.
type BindingError struct {
	TypeName string
	Kind     string
	Name     string
	Err      error
}

func (e *BindingError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("track: bind %s %q on %s: %v", e.Kind, e.Name, describeType(e.TypeName), e.Err)
}

func (e *BindingError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StoreError wraps a store failure with the operation and key involved.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("track: store %s key=%q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine   string
	Expr     string
	Property string
	Err      error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("track: %s evaluator %s property=%s: %v", e.Engine, describeExpression(e.Expr), e.Property, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func describeType(name string) string {
	if name == "" {
		return "<unnamed type>"
	}
	return name
}

func bindingError(typeName, kind, name string, err error) error {
	return &BindingError{TypeName: typeName, Kind: kind, Name: name, Err: err}
}

func storeError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StoreError
	if errors.As(err, &existing) {
		return err
	}
	return &StoreError{Op: op, Key: key, Err: err}
}

func wrapEvaluationError(engine, expr, property string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Property == "" {
			evalErr.Property = property
		}
		return evalErr
	}

	return &EvaluationError{
		Engine:   engine,
		Expr:     expr,
		Property: property,
		Err:      err,
	}
}
