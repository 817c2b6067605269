package track

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestTagInitializerDiscoversKeyAndDefaults(t *testing.T) {
	store := newMemStore()
	w := newWindow("main")
	cfg, err := NewConfiguration(w, store, WithLogger(NopLogger()))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := (TagInitializer{}).Initialize(cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	if cfg.Key() != "main" {
		t.Fatalf("expected key from tagged field, got %q", cfg.Key())
	}
	if got := cfg.Properties(); !reflect.DeepEqual(got, []string{"Height", "Width"}) {
		t.Fatalf("unexpected properties %v", got)
	}
	width, _ := cfg.Property("Width")
	if !width.HasDefault() || width.Default() != 800 {
		t.Fatalf("expected parsed default 800, got %v", width.Default())
	}

	cfg.Apply(context.Background())
	if w.Width != 800 || w.Height != 600 {
		t.Fatalf("expected defaults applied, got %dx%d", w.Width, w.Height)
	}
}

func TestTagInitializerScopesPropertiesToTracker(t *testing.T) {
	w := newWindow("main")
	cfg, err := NewConfiguration(w, newMemStore(), WithLogger(NopLogger()), WithTrackerName("layout"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := (TagInitializer{}).Initialize(cfg); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !contains(cfg.Properties(), "Visible") {
		t.Fatalf("expected Visible for tracker layout, got %v", cfg.Properties())
	}
}

type duplicateKeys struct {
	A string `track:"key"`
	B string `track:"key"`
}

type badDefault struct {
	Count int `track:"persist" default:"many"`
}

func TestTagInitializerErrors(t *testing.T) {
	dup, err := NewConfiguration(&duplicateKeys{}, newMemStore())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := (TagInitializer{}).Initialize(dup); !errors.Is(err, ErrDuplicateKeyField) {
		t.Fatalf("expected ErrDuplicateKeyField, got %v", err)
	}

	bad, err := NewConfiguration(&badDefault{}, newMemStore())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = (TagInitializer{}).Initialize(bad)
	var bindErr *BindingError
	if !errors.As(err, &bindErr) || bindErr.Name != "Count" {
		t.Fatalf("expected binding error for Count, got %v", err)
	}
}

func TestTagInitializerIsIdempotent(t *testing.T) {
	w := newWindow("main")
	cfg, err := NewConfiguration(w, newMemStore())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := (TagInitializer{}).Initialize(cfg); err != nil {
			t.Fatalf("initialize %d: %v", i, err)
		}
	}
	if got := cfg.Properties(); len(got) != 2 {
		t.Fatalf("expected the same two properties, got %v", got)
	}
}

func TestParseKeyValueTag(t *testing.T) {
	got := parseKeyValueTag(" persist , tracker = layout,,key")
	want := map[string]string{"persist": "", "tracker": "layout", "key": ""}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected flags %v", got)
	}
	if parseKeyValueTag("  ") != nil {
		t.Fatalf("expected nil for blank tag")
	}
}

type named interface{ Name() string }

type labelled struct{ Label string }

func (l *labelled) Name() string { return l.Label }

func marker(name string, hits *[]string) Initializer {
	return InitializerFunc(func(*Configuration) error {
		*hits = append(*hits, name)
		return nil
	})
}

func TestInitializerRegistrySpecificity(t *testing.T) {
	var hits []string
	fallback := marker("fallback", &hits)
	registry := newInitializerRegistry(fallback)
	registry.register(reflect.TypeOf((*named)(nil)).Elem(), marker("iface", &hits))

	lookup := func(v any) {
		_ = registry.lookup(reflect.TypeOf(v)).Initialize(nil)
	}

	lookup(&labelled{})
	lookup(&Window{})

	registry.register(reflect.TypeOf(labelled{}), marker("elem", &hits))
	lookup(&labelled{})

	registry.register(reflect.TypeOf(&labelled{}), marker("exact", &hits))
	lookup(&labelled{})

	want := []string{"iface", "fallback", "elem", "exact"}
	if !reflect.DeepEqual(hits, want) {
		t.Fatalf("expected %v, got %v", want, hits)
	}
}

func TestInitializerRegistryDefaultsToTags(t *testing.T) {
	registry := newInitializerRegistry(nil)
	if _, ok := registry.lookup(reflect.TypeOf(&Window{})).(TagInitializer); !ok {
		t.Fatalf("expected TagInitializer fallback")
	}
	registry.register(nil, TagInitializer{})
	registry.register(reflect.TypeOf(&Window{}), nil)
	if len(registry.exact) != 0 {
		t.Fatalf("expected nil registrations ignored")
	}
}

func TestInitializerFuncNil(t *testing.T) {
	var fn InitializerFunc
	if err := fn.Initialize(nil); err != nil {
		t.Fatalf("expected nil func to succeed, got %v", err)
	}
}
