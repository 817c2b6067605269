package track

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"sort"

	"github.com/goliatone/go-track/internal/hydrate"
	"github.com/goliatone/go-track/pkg/activity"
)

const (
	OpApply   = "apply"
	OpPersist = "persist"
	OpClear   = "clear"
)

// PropertyEvent carries one property value through the interception
// handlers. Handlers may replace Value or set Cancel to veto the operation
// for this property only.
type PropertyEvent struct {
	Op       string
	TypeName string
	Property string
	Key      string
	Value    any
	Cancel   bool
}

// PropertyHandler intercepts a property value in flight. Returning an error
// (other than ErrVetoed) counts as a failure for the property; returning
// ErrVetoed is equivalent to setting Cancel.
type PropertyHandler func(*PropertyEvent) error

// Report summarises one Apply, Persist or ClearSavedState pass.
type Report struct {
	Op        string
	Collected bool
	Completed []string
	Defaulted []string
	Vetoed    []string
	Failed    map[string]error
}

func newReport(op string) *Report {
	return &Report{Op: op, Failed: map[string]error{}}
}

// Apply loads stored values into the target. Per-property failures are
// logged, recorded in the returned Report and, when a default is
// configured, replaced by the default. Apply never aborts early.
func (c *Configuration) Apply(ctx context.Context) *Report {
	report := newReport(OpApply)
	target, ok := c.target.resolve()
	if !ok {
		report.Collected = true
		return report
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for _, name := range c.Properties() {
		descriptor := c.properties[name]
		key := c.StorageKey(name)
		err := c.applyProperty(ctx, target, descriptor, key)
		switch {
		case err == nil:
			report.Completed = append(report.Completed, name)
		case errors.Is(err, ErrVetoed):
			report.Vetoed = append(report.Vetoed, name)
			c.diagnose(OpApply, name, key, slog.LevelDebug, err)
		case errors.Is(err, errNoEntry):
			if descriptor.hasDefault {
				c.applyDefault(target, descriptor, key, report)
			}
		default:
			report.Failed[name] = err
			c.diagnose(OpApply, name, key, slog.LevelWarn, err)
			if descriptor.hasDefault {
				c.applyDefault(target, descriptor, key, report)
			}
		}
	}

	for _, fn := range c.applied {
		fn(c)
	}
	c.appliedOnce.Store(true)
	c.emit(ctx, activity.BuildAppliedEvent, report)
	return report
}

var errNoEntry = errors.New("track: no stored entry")

func (c *Configuration) applyProperty(ctx context.Context, target reflect.Value, descriptor *PropertyDescriptor, key string) error {
	found, err := c.store.ContainsKey(ctx, key)
	if err != nil {
		return storeError("contains", key, err)
	}
	if !found {
		return errNoEntry
	}
	value, err := c.store.Retrieve(ctx, key)
	if err != nil {
		return storeError("retrieve", key, err)
	}
	if value, err = decodeStored(descriptor, value); err != nil {
		return err
	}

	event := &PropertyEvent{Op: OpApply, TypeName: c.typeName, Property: descriptor.name, Key: key, Value: value}
	if err := runHandlers(c.applying, event); err != nil {
		return err
	}
	return descriptor.Set(target, event.Value)
}

// decodeStored turns a retrieved value (native, or raw JSON from a
// persistent store) into the property type so handlers see typed values.
// Accessor properties have no static type and get plain decoded values.
func decodeStored(descriptor *PropertyDescriptor, value any) (any, error) {
	typ := descriptor.valueType
	if typ == nil {
		typ = anyType
	}
	converted, err := hydrate.Into(typ, value)
	if err != nil {
		return nil, err
	}
	if !converted.IsValid() {
		return nil, nil
	}
	return converted.Interface(), nil
}

var anyType = reflect.TypeOf((*any)(nil)).Elem()

func (c *Configuration) applyDefault(target reflect.Value, descriptor *PropertyDescriptor, key string, report *Report) {
	if err := descriptor.Set(target, descriptor.defaultValue); err != nil {
		report.Failed[descriptor.name] = err
		c.diagnose(OpApply, descriptor.name, key, slog.LevelWarn, err)
		return
	}
	report.Defaulted = append(report.Defaulted, descriptor.name)
}

// Persist writes the target's current values into the store. A failure for
// one property is logged and never blocks the remaining properties.
func (c *Configuration) Persist(ctx context.Context) *Report {
	report := newReport(OpPersist)
	target, ok := c.target.resolve()
	if !ok {
		report.Collected = true
		return report
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for _, name := range c.Properties() {
		key := c.StorageKey(name)
		err := c.persistProperty(ctx, target, c.properties[name], key)
		switch {
		case err == nil:
			report.Completed = append(report.Completed, name)
		case errors.Is(err, ErrVetoed):
			report.Vetoed = append(report.Vetoed, name)
			c.diagnose(OpPersist, name, key, slog.LevelDebug, err)
		default:
			report.Failed[name] = err
			c.diagnose(OpPersist, name, key, slog.LevelWarn, err)
		}
	}

	for _, fn := range c.persisted {
		fn(c)
	}
	c.emit(ctx, activity.BuildPersistedEvent, report)
	return report
}

func (c *Configuration) persistProperty(ctx context.Context, target reflect.Value, descriptor *PropertyDescriptor, key string) error {
	value, err := descriptor.Get(target)
	if err != nil {
		return err
	}

	event := &PropertyEvent{Op: OpPersist, TypeName: c.typeName, Property: descriptor.name, Key: key, Value: value}
	if err := runHandlers(c.persisting, event); err != nil {
		return err
	}
	return storeError("persist", key, c.store.Persist(ctx, key, event.Value))
}

// ClearSavedState removes every tracked property's entry from the store.
// It does not need the target to be alive.
func (c *Configuration) ClearSavedState(ctx context.Context) *Report {
	report := newReport(OpClear)
	if ctx == nil {
		ctx = context.Background()
	}
	for _, name := range c.Properties() {
		key := c.StorageKey(name)
		if err := c.store.Remove(ctx, key); err != nil {
			err = storeError("remove", key, err)
			report.Failed[name] = err
			c.diagnose(OpClear, name, key, slog.LevelWarn, err)
			continue
		}
		report.Completed = append(report.Completed, name)
	}
	c.emit(ctx, activity.BuildClearedEvent, report)
	return report
}

// persistDetached runs Persist for trigger and persist-request handlers,
// which have no caller context.
func (c *Configuration) persistDetached() {
	c.Persist(context.Background())
}

func runHandlers(handlers []PropertyHandler, event *PropertyEvent) error {
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			return err
		}
	}
	if event.Cancel {
		return ErrVetoed
	}
	return nil
}

func (c *Configuration) diagnose(op, property, key string, level slog.Level, err error) {
	c.logger().LogDiagnostic(Diagnostic{
		Op:       op,
		TypeName: c.typeName,
		Property: property,
		Key:      key,
		Level:    level,
		Err:      err,
	})
}

func (c *Configuration) emit(ctx context.Context, build func(activity.TrackingEventInput) activity.Event, report *Report) {
	if !c.cfg.emitter.Enabled() {
		return
	}
	failed := make([]string, 0, len(report.Failed))
	for name := range report.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	event := build(activity.TrackingEventInput{
		ObjectID:   c.typeName + "_" + c.key,
		TypeName:   c.typeName,
		Key:        c.key,
		Tracker:    c.cfg.trackerName,
		Properties: c.Properties(),
		Completed:  report.Completed,
		Defaulted:  report.Defaulted,
		Vetoed:     report.Vetoed,
		Failed:     failed,
	})
	if err := c.cfg.emitter.Emit(ctx, event); err != nil {
		c.diagnose("activity", "", "", slog.LevelWarn, err)
	}
}
