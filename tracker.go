package track

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"weak"

	"github.com/goliatone/go-track/pkg/activity"
)

// Tracker owns the configurations of every object tracked against one store.
// It picks an initializer per target type, caches one configuration per
// live target and drops entries whose targets were collected.
type Tracker struct {
	name  string
	store Store
	opts  []Option

	initializers *initializerRegistry

	mu      sync.Mutex
	entries map[any]*Configuration
}

// TrackerOption configures a Tracker.
type TrackerOption func(*trackerConfig)

type trackerConfig struct {
	name          string
	logger        Logger
	activityHooks activity.Hooks
	activityCfg   *activity.Config
	initializer   Initializer
}

// WithName sets the tracker identity used to scope `track:"persist,tracker=..."` hints.
func WithName(name string) TrackerOption {
	return func(cfg *trackerConfig) {
		cfg.name = name
	}
}

// WithTrackerLogger sets the diagnostic logger handed to every configuration.
func WithTrackerLogger(logger Logger) TrackerOption {
	return func(cfg *trackerConfig) {
		cfg.logger = logger
	}
}

// WithTrackerActivity emits activity events for every configuration.
func WithTrackerActivity(hooks activity.Hooks, activityCfg activity.Config) TrackerOption {
	return func(cfg *trackerConfig) {
		cfg.activityHooks = hooks
		cfg.activityCfg = &activityCfg
	}
}

// WithDefaultInitializer replaces TagInitializer as the fallback initializer.
func WithDefaultInitializer(init Initializer) TrackerOption {
	return func(cfg *trackerConfig) {
		cfg.initializer = init
	}
}

// NewTracker creates a tracker persisting into store.
func NewTracker(store Store, opts ...TrackerOption) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("track: store is required")
	}
	cfg := trackerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	configOpts := []Option{WithTrackerName(cfg.name)}
	if cfg.logger != nil {
		configOpts = append(configOpts, WithLogger(cfg.logger))
	}
	if len(cfg.activityHooks) > 0 {
		configOpts = append(configOpts, WithActivityHooks(cfg.activityHooks))
	}
	if cfg.activityCfg != nil {
		configOpts = append(configOpts, WithActivityConfig(*cfg.activityCfg))
	}

	fallback := cfg.initializer
	if fallback == nil {
		fallback = TagInitializer{}
	}

	return &Tracker{
		name:         cfg.name,
		store:        store,
		opts:         configOpts,
		initializers: newInitializerRegistry(fallback),
		entries:      map[any]*Configuration{},
	}, nil
}

// Name returns the tracker identity.
func (t *Tracker) Name() string {
	return t.name
}

// Store returns the backing store.
func (t *Tracker) Store() Store {
	return t.store
}

// RegisterInitializer uses init for targets of type typ. typ may be a
// pointer type, a struct type or an interface type.
func (t *Tracker) RegisterInitializer(typ reflect.Type, init Initializer) {
	t.initializers.register(typ, init)
}

// RegisterInitializerFor uses init for targets of type *T (or implementing
// T when T is an interface).
func RegisterInitializerFor[T any](t *Tracker, init Initializer) {
	t.RegisterInitializer(reflect.TypeOf((*T)(nil)).Elem(), init)
}

// Configure returns the configuration for target, creating and initializing
// it on first use. It does not apply stored state.
func Configure[T any](t *Tracker, target *T) (*Configuration, error) {
	cfg, _, err := configure(t, target)
	return cfg, err
}

// Track configures target and, the first time it is seen, applies its
// stored state.
func Track[T any](t *Tracker, target *T) (*Configuration, error) {
	cfg, created, err := configure(t, target)
	if err != nil {
		return nil, err
	}
	if created {
		cfg.Apply(context.Background())
	}
	return cfg, nil
}

func configure[T any](t *Tracker, target *T) (*Configuration, bool, error) {
	if target == nil {
		return nil, false, fmt.Errorf("%w: target is nil", ErrInvalidTarget)
	}
	handle := weak.Make(target)

	t.mu.Lock()
	t.pruneLocked()
	if cfg, ok := t.entries[handle]; ok {
		t.mu.Unlock()
		return cfg, false, nil
	}
	t.mu.Unlock()

	cfg, err := NewConfiguration(target, t.store, t.opts...)
	if err != nil {
		return nil, false, err
	}
	init := t.initializers.lookup(reflect.TypeOf(target))
	if err := init.Initialize(cfg); err != nil {
		cfg.ReleaseTriggers()
		return nil, false, err
	}
	if configurer, ok := any(target).(TrackingConfigurer); ok {
		configurer.ConfigureTracking(cfg)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if existing, ok := t.entries[handle]; ok {
		cfg.ReleaseTriggers()
		return existing, false, nil
	}
	t.entries[handle] = cfg
	return cfg, true, nil
}

// Forget drops cfg from the tracker and releases its triggers.
func (t *Tracker) Forget(cfg *Configuration) {
	if cfg == nil {
		return
	}
	t.mu.Lock()
	for handle, entry := range t.entries {
		if entry == cfg {
			delete(t.entries, handle)
		}
	}
	t.mu.Unlock()
	cfg.ReleaseTriggers()
}

// Configurations returns the configurations of every live target.
func (t *Tracker) Configurations() []*Configuration {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked()
	out := make([]*Configuration, 0, len(t.entries))
	for _, cfg := range t.entries {
		out = append(out, cfg)
	}
	return out
}

// PersistAll persists every live target whose configuration has
// auto-persist enabled, typically on shutdown.
func (t *Tracker) PersistAll(ctx context.Context) []*Report {
	var reports []*Report
	for _, cfg := range t.Configurations() {
		if !cfg.AutoPersistEnabled() {
			continue
		}
		reports = append(reports, cfg.Persist(ctx))
	}
	return reports
}

// ApplyAll re-applies stored state to every live target.
func (t *Tracker) ApplyAll(ctx context.Context) []*Report {
	var reports []*Report
	for _, cfg := range t.Configurations() {
		reports = append(reports, cfg.Apply(ctx))
	}
	return reports
}

// Close releases the triggers of every configuration and empties the cache.
func (t *Tracker) Close() {
	t.mu.Lock()
	entries := t.entries
	t.entries = map[any]*Configuration{}
	t.mu.Unlock()
	for _, cfg := range entries {
		cfg.ReleaseTriggers()
	}
}

func (t *Tracker) pruneLocked() {
	for handle, cfg := range t.entries {
		if !cfg.IsAlive() {
			cfg.ReleaseTriggers()
			delete(t.entries, handle)
		}
	}
}
