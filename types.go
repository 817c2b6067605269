package track

import (
	"context"
	"reflect"
)

// Store is the key-value backend a Configuration reads from and writes to.
// Values are opaque to the engine; implementations own their encoding.
type Store interface {
	// ContainsKey reports whether an entry exists for key.
	ContainsKey(ctx context.Context, key string) (bool, error)
	// Retrieve returns the value stored under key or ErrNotFound.
	Retrieve(ctx context.Context, key string) (any, error)
	// Persist stores value under key, replacing any previous entry.
	Persist(ctx context.Context, key string, value any) error
	// Remove deletes the entry under key. Missing keys are not an error.
	Remove(ctx context.Context, key string) error
}

// KeyLister is implemented by stores able to enumerate their keys.
type KeyLister interface {
	Keys(ctx context.Context) ([]string, error)
}

// PropertyAccessor lets a target answer property reads and writes itself
// instead of exposing struct fields or getter/setter methods.
type PropertyAccessor interface {
	HasProperty(name string) bool
	GetProperty(name string) (any, error)
	SetProperty(name string, value any) error
}

// TrackingConfigurer is implemented by targets that want a final say over
// their own configuration after the initializer ran.
type TrackingConfigurer interface {
	ConfigureTracking(cfg *Configuration)
}

// PersistRequester is implemented by targets that can ask to be persisted.
// Every Fire on the returned event persists the target.
type PersistRequester interface {
	PersistRequested() *Event
}

// EventSource resolves named events on sources that manage their own
// subscriptions. The returned func cancels the subscription.
type EventSource interface {
	SubscribeEvent(name string, handler func(args ...any)) (func(), error)
}

// Option configures a Configuration.
type Option func(*configurationConfig)

// typeName returns the declared type name used in storage keys, with any
// pointer indirection stripped.
func typeName(t reflect.Type) string {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ""
	}
	return t.Name()
}
