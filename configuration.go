package track

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/goliatone/go-track/pkg/activity"
)

// Configuration binds a set of properties of one target object to entries in
// a Store. It holds the target weakly: once the target is collected, Apply
// and Persist become no-ops.
//
// A Configuration is not safe for concurrent Apply/Persist calls; callers
// serialise access when they share one across goroutines.
type Configuration struct {
	key         string
	properties  map[string]*PropertyDescriptor
	target      targetHandle
	typeName    string
	autoPersist bool
	store       Store
	appliedOnce atomic.Bool

	cfg configurationConfig

	applying   []PropertyHandler
	persisting []PropertyHandler
	applied    []func(*Configuration)
	persisted  []func(*Configuration)

	subsMu        sync.Mutex
	subscriptions []triggerSubscription
}

type configurationConfig struct {
	logger        Logger
	trackerName   string
	activityHooks activity.Hooks
	activityCfg   *activity.Config
	emitter       *activity.Emitter
}

func applyOptions(opts []Option) configurationConfig {
	cfg := configurationConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = SlogLogger(nil)
	}
	activityCfg := activity.Config{Enabled: len(cfg.activityHooks) > 0}
	if cfg.activityCfg != nil {
		activityCfg = *cfg.activityCfg
	}
	cfg.emitter = activity.NewEmitter(cfg.activityHooks, activityCfg)
	return cfg
}

// WithActivityHooks emits tracking.applied, tracking.persisted and
// tracking.cleared activity events to hooks.
func WithActivityHooks(hooks activity.Hooks) Option {
	return func(cfg *configurationConfig) {
		cfg.activityHooks = hooks
	}
}

// WithActivityConfig overrides the activity emitter defaults.
func WithActivityConfig(activityCfg activity.Config) Option {
	return func(cfg *configurationConfig) {
		cfg.activityCfg = &activityCfg
	}
}

// WithTrackerName scopes tag discovery to a tracker identity.
func WithTrackerName(name string) Option {
	return func(cfg *configurationConfig) {
		cfg.trackerName = name
	}
}

type targetHandle interface {
	resolve() (reflect.Value, bool)
}

type weakHandle[T any] struct {
	ptr weak.Pointer[T]
}

func (h weakHandle[T]) resolve() (reflect.Value, bool) {
	p := h.ptr.Value()
	if p == nil {
		return reflect.Value{}, false
	}
	return reflect.ValueOf(p), true
}

// NewConfiguration creates an empty configuration for target backed by
// store. Targets implementing PersistRequester are subscribed immediately.
func NewConfiguration[T any](target *T, store Store, opts ...Option) (*Configuration, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: target is nil", ErrInvalidTarget)
	}
	if store == nil {
		return nil, fmt.Errorf("track: store is required")
	}

	c := &Configuration{
		properties: map[string]*PropertyDescriptor{},
		target:     weakHandle[T]{ptr: weak.Make(target)},
		typeName:   typeName(reflect.TypeOf(target)),
		store:      store,
		cfg:        applyOptions(opts),
	}

	if requester, ok := any(target).(PersistRequester); ok {
		if event := requester.PersistRequested(); event != nil {
			cancel := event.Subscribe(func(...any) { c.persistDetached() })
			c.addSubscription(c.typeName, "PersistRequested", cancel)
		}
	}
	return c, nil
}

// Key returns the identifying key of the target.
func (c *Configuration) Key() string {
	return c.key
}

// IdentifyAs sets the key distinguishing this target from others of the
// same type.
func (c *Configuration) IdentifyAs(key string) *Configuration {
	c.key = key
	return c
}

// TypeName returns the declared type name of the target.
func (c *Configuration) TypeName() string {
	return c.typeName
}

// TrackerName returns the tracker identity the configuration belongs to.
func (c *Configuration) TrackerName() string {
	return c.cfg.trackerName
}

// Store returns the backing store.
func (c *Configuration) Store() Store {
	return c.store
}

// AutoPersistEnabled reports the advisory auto-persist flag.
func (c *Configuration) AutoPersistEnabled() bool {
	return c.autoPersist
}

// SetAutoPersistEnabled sets the advisory auto-persist flag consulted by
// Tracker.PersistAll.
func (c *Configuration) SetAutoPersistEnabled(enabled bool) *Configuration {
	c.autoPersist = enabled
	return c
}

// IsAlive reports whether the target is still reachable.
func (c *Configuration) IsAlive() bool {
	_, ok := c.target.resolve()
	return ok
}

// HasApplied reports whether Apply completed at least once.
func (c *Configuration) HasApplied() bool {
	return c.appliedOnce.Load()
}

// AddProperty tracks name, optionally with a default applied when the store
// has no usable value. It fails with a *BindingError when the target type
// has no such property.
func (c *Configuration) AddProperty(name string, defaultValue ...any) (*Configuration, error) {
	target, ok := c.target.resolve()
	if !ok {
		return c, ErrTargetCollected
	}
	descriptor, err := resolveProperty(target, name)
	if err != nil {
		return c, err
	}
	if len(defaultValue) > 0 {
		descriptor, err = descriptor.withDefault(defaultValue[0])
		if err != nil {
			return c, err
		}
	}
	c.properties[name] = descriptor
	return c, nil
}

// AddProperties tracks every name without defaults. Nothing is added when
// any name fails to bind.
func (c *Configuration) AddProperties(names ...string) (*Configuration, error) {
	target, ok := c.target.resolve()
	if !ok {
		return c, ErrTargetCollected
	}
	resolved := make([]*PropertyDescriptor, 0, len(names))
	for _, name := range names {
		descriptor, err := resolveProperty(target, name)
		if err != nil {
			return c, err
		}
		resolved = append(resolved, descriptor)
	}
	for _, descriptor := range resolved {
		c.properties[descriptor.name] = descriptor
	}
	return c, nil
}

// RemoveProperties stops tracking names. Unknown names are ignored.
func (c *Configuration) RemoveProperties(names ...string) *Configuration {
	for _, name := range names {
		delete(c.properties, name)
	}
	return c
}

// Properties returns the tracked property names in enumeration order.
func (c *Configuration) Properties() []string {
	names := make([]string, 0, len(c.properties))
	for name := range c.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Property returns the descriptor tracked under name.
func (c *Configuration) Property(name string) (*PropertyDescriptor, bool) {
	descriptor, ok := c.properties[name]
	return descriptor, ok
}

// StorageKey returns the store key for property on this configuration.
func (c *Configuration) StorageKey(property string) string {
	return BuildStorageKey(c.typeName, c.key, property)
}

// BuildStorageKey composes the store key for a property:
// typeName + "_" + key + "." + property. Existing persisted state depends on
// this exact format.
func BuildStorageKey(typeName, key, property string) string {
	return typeName + "_" + key + "." + property
}

// OnApplyingProperty registers a handler invoked for every property value
// about to be applied.
func (c *Configuration) OnApplyingProperty(handler PropertyHandler) *Configuration {
	if handler != nil {
		c.applying = append(c.applying, handler)
	}
	return c
}

// OnPersistingProperty registers a handler invoked for every property value
// about to be persisted.
func (c *Configuration) OnPersistingProperty(handler PropertyHandler) *Configuration {
	if handler != nil {
		c.persisting = append(c.persisting, handler)
	}
	return c
}

// OnApplied registers fn to run after every Apply pass.
func (c *Configuration) OnApplied(fn func(*Configuration)) *Configuration {
	if fn != nil {
		c.applied = append(c.applied, fn)
	}
	return c
}

// OnPersisted registers fn to run after every Persist pass.
func (c *Configuration) OnPersisted(fn func(*Configuration)) *Configuration {
	if fn != nil {
		c.persisted = append(c.persisted, fn)
	}
	return c
}

func (c *Configuration) logger() Logger {
	if c.cfg.logger != nil {
		return c.cfg.logger
	}
	return noopLogger{}
}
