package track

import (
	"errors"
	"fmt"
	"reflect"
)

type triggerSubscription struct {
	source string
	event  string
	cancel func()
}

// Trigger describes one active persist-trigger subscription.
type Trigger struct {
	Source string
	Event  string
}

var eventPointerType = reflect.TypeOf((*Event)(nil))

// RegisterPersistTrigger persists the target every time eventName fires on
// source (the target when omitted). Firings before the first Apply are
// ignored. The event is resolved, in order, through EventSource, an exported
// *Event field named eventName, or a method On<eventName> accepting a
// handler func of any signature.
//
// Subscriptions stay active until ReleaseTriggers is called.
func (c *Configuration) RegisterPersistTrigger(eventName string, source ...any) (*Configuration, error) {
	var src any
	if len(source) > 0 && source[0] != nil {
		src = source[0]
	} else {
		target, ok := c.target.resolve()
		if !ok {
			return c, ErrTargetCollected
		}
		src = target.Interface()
	}

	handler := func(...any) {
		if !c.appliedOnce.Load() {
			return
		}
		c.persistDetached()
	}

	cancel, err := subscribe(src, eventName, handler)
	if err != nil {
		return c, err
	}
	c.addSubscription(typeName(reflect.TypeOf(src)), eventName, cancel)
	return c, nil
}

// Triggers lists the active trigger subscriptions.
func (c *Configuration) Triggers() []Trigger {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	out := make([]Trigger, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		out = append(out, Trigger{Source: sub.source, Event: sub.event})
	}
	return out
}

// ReleaseTriggers cancels every trigger and persist-request subscription
// owned by the configuration.
func (c *Configuration) ReleaseTriggers() {
	c.subsMu.Lock()
	subs := c.subscriptions
	c.subscriptions = nil
	c.subsMu.Unlock()

	for _, sub := range subs {
		if sub.cancel != nil {
			sub.cancel()
		}
	}
}

func (c *Configuration) addSubscription(source, event string, cancel func()) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	c.subscriptions = append(c.subscriptions, triggerSubscription{source: source, event: event, cancel: cancel})
}

func subscribe(src any, eventName string, handler func(...any)) (func(), error) {
	srcType := reflect.TypeOf(src)
	name := typeName(srcType)

	if es, ok := src.(EventSource); ok {
		cancel, err := es.SubscribeEvent(eventName, handler)
		if err != nil {
			return nil, bindingError(name, "event", eventName, errors.Join(ErrEventNotFound, err))
		}
		return cancel, nil
	}

	value := reflect.ValueOf(src)
	if ev, ok := eventField(value, eventName); ok {
		if ev == nil {
			return nil, bindingError(name, "event", eventName, fmt.Errorf("%w: field is nil", ErrEventNotFound))
		}
		return ev.Subscribe(handler), nil
	}

	if method := value.MethodByName("On" + eventName); method.IsValid() {
		return subscribeMethod(method, name, eventName, handler)
	}

	return nil, bindingError(name, "event", eventName, ErrEventNotFound)
}

func eventField(value reflect.Value, eventName string) (*Event, bool) {
	if value.Kind() != reflect.Pointer || value.IsNil() || value.Elem().Kind() != reflect.Struct {
		return nil, false
	}
	field, ok := value.Elem().Type().FieldByName(eventName)
	if !ok || !field.IsExported() || field.Type != eventPointerType {
		return nil, false
	}
	fv, err := value.Elem().FieldByIndexErr(field.Index)
	if err != nil {
		return nil, true
	}
	return fv.Interface().(*Event), true
}

// subscribeMethod calls an On<Event>(fn F) method with a handler of type F
// built at runtime. The handler ignores its arguments and returns zero
// values. A func() result is kept as the unsubscribe token; an error result
// fails the binding.
func subscribeMethod(method reflect.Value, typeName, eventName string, handler func(...any)) (func(), error) {
	methodType := method.Type()
	if methodType.NumIn() != 1 || methodType.In(0).Kind() != reflect.Func {
		return nil, bindingError(typeName, "event", eventName, fmt.Errorf("%w: On%s must accept a single func", ErrEventNotFound, eventName))
	}

	fnType := methodType.In(0)
	fn := reflect.MakeFunc(fnType, func(args []reflect.Value) []reflect.Value {
		handler()
		out := make([]reflect.Value, fnType.NumOut())
		for i := range out {
			out[i] = reflect.Zero(fnType.Out(i))
		}
		return out
	})

	var cancel func()
	for _, result := range method.Call([]reflect.Value{fn}) {
		switch typed := result.Interface().(type) {
		case func():
			cancel = typed
		case error:
			return nil, bindingError(typeName, "event", eventName, typed)
		}
	}
	if cancel == nil {
		cancel = func() {}
	}
	return cancel, nil
}
