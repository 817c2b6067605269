package track

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-track/internal/hydrate"
)

// PropertyDescriptor binds a property name to accessor closures resolved
// once against the target's type. Descriptors never hold the target; it is
// handed to the getter and setter on every call.
type PropertyDescriptor struct {
	name         string
	valueType    reflect.Type
	getter       func(target reflect.Value) (any, error)
	setter       func(target reflect.Value, value any) error
	hasDefault   bool
	defaultValue any
}

// Name returns the tracked property name.
func (d *PropertyDescriptor) Name() string {
	return d.name
}

// Type returns the property's Go type, or nil when the target resolves the
// property through PropertyAccessor.
func (d *PropertyDescriptor) Type() reflect.Type {
	return d.valueType
}

// HasDefault reports whether a default value was specified.
func (d *PropertyDescriptor) HasDefault() bool {
	return d.hasDefault
}

// Default returns the default value, if any.
func (d *PropertyDescriptor) Default() any {
	return d.defaultValue
}

// Get reads the property from target.
func (d *PropertyDescriptor) Get(target reflect.Value) (any, error) {
	return d.getter(target)
}

// Set writes value into the property on target.
func (d *PropertyDescriptor) Set(target reflect.Value, value any) error {
	return d.setter(target, value)
}

func (d *PropertyDescriptor) withDefault(value any) (*PropertyDescriptor, error) {
	out := *d
	out.hasDefault = true
	if d.valueType == nil || value == nil {
		out.defaultValue = value
		return &out, nil
	}
	converted, err := hydrate.Into(d.valueType, value)
	if err != nil {
		return nil, fmt.Errorf("track: default for %q: %w", d.name, err)
	}
	out.defaultValue = converted.Interface()
	return &out, nil
}

// resolveProperty builds a descriptor for name against target. It fails with
// ErrPropertyNotFound when the type has no accessor, field or method pair
// matching name.
func resolveProperty(target reflect.Value, name string) (*PropertyDescriptor, error) {
	if accessor, ok := target.Interface().(PropertyAccessor); ok && accessor.HasProperty(name) {
		return accessorDescriptor(name), nil
	}

	targetType := target.Type()
	if targetType.Kind() == reflect.Pointer && targetType.Elem().Kind() == reflect.Struct {
		if field, ok := targetType.Elem().FieldByName(name); ok && field.IsExported() {
			return fieldDescriptor(name, field), nil
		}
	}

	if descriptor, ok := methodDescriptor(targetType, name); ok {
		return descriptor, nil
	}

	return nil, bindingError(typeName(targetType), "property", name, ErrPropertyNotFound)
}

func accessorDescriptor(name string) *PropertyDescriptor {
	return &PropertyDescriptor{
		name: name,
		getter: func(target reflect.Value) (any, error) {
			return target.Interface().(PropertyAccessor).GetProperty(name)
		},
		setter: func(target reflect.Value, value any) error {
			return target.Interface().(PropertyAccessor).SetProperty(name, value)
		},
	}
}

func fieldDescriptor(name string, field reflect.StructField) *PropertyDescriptor {
	index := field.Index
	return &PropertyDescriptor{
		name:      name,
		valueType: field.Type,
		getter: func(target reflect.Value) (any, error) {
			value, err := target.Elem().FieldByIndexErr(index)
			if err != nil {
				return nil, err
			}
			return value.Interface(), nil
		},
		setter: func(target reflect.Value, value any) error {
			dst, err := target.Elem().FieldByIndexErr(index)
			if err != nil {
				return err
			}
			converted, err := hydrate.Into(field.Type, value)
			if err != nil {
				return err
			}
			dst.Set(converted)
			return nil
		},
	}
}

// methodDescriptor binds the Name()/SetName(v) method pair.
func methodDescriptor(targetType reflect.Type, name string) (*PropertyDescriptor, bool) {
	get, ok := targetType.MethodByName(name)
	if !ok || get.Type.NumIn() != 1 || get.Type.NumOut() == 0 || get.Type.NumOut() > 2 {
		return nil, false
	}
	set, ok := targetType.MethodByName("Set" + name)
	if !ok || set.Type.NumIn() != 2 {
		return nil, false
	}
	valueType := get.Type.Out(0)
	setType := set.Type.In(1)
	if !valueType.AssignableTo(setType) {
		return nil, false
	}

	getIndex, setIndex := get.Index, set.Index
	return &PropertyDescriptor{
		name:      name,
		valueType: setType,
		getter: func(target reflect.Value) (any, error) {
			out := target.Method(getIndex).Call(nil)
			if len(out) == 2 {
				if err, _ := out[1].Interface().(error); err != nil {
					return nil, err
				}
			}
			return out[0].Interface(), nil
		},
		setter: func(target reflect.Value, value any) error {
			converted, err := hydrate.Into(setType, value)
			if err != nil {
				return err
			}
			out := target.Method(setIndex).Call([]reflect.Value{converted})
			if len(out) > 0 {
				if err, _ := out[len(out)-1].Interface().(error); err != nil {
					return err
				}
			}
			return nil
		},
	}, true
}
