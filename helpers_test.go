package track

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// memStore is a Store double that counts calls and can fail per key.
type memStore struct {
	mu       sync.Mutex
	values   map[string]any
	failOn   map[string]error
	calls    int
	persists map[string]int
}

func newMemStore() *memStore {
	return &memStore{values: map[string]any{}, failOn: map[string]error{}, persists: map[string]int{}}
}

func (s *memStore) ContainsKey(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	_, ok := s.values[key]
	return ok, nil
}

func (s *memStore) Retrieve(_ context.Context, key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.failOn[key]; err != nil {
		return nil, err
	}
	value, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, nil
}

func (s *memStore) Persist(_ context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.failOn[key]; err != nil {
		return err
	}
	s.values[key] = value
	s.persists[key]++
	return nil
}

func (s *memStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := s.failOn[key]; err != nil {
		return err
	}
	delete(s.values, key)
	return nil
}

func (s *memStore) get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok
}

func (s *memStore) set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *memStore) fail(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[key] = err
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *memStore) persistCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persists[key]
}

var errBackend = errors.New("backend unavailable")

// recordingLogger collects diagnostics.
type recordingLogger struct {
	mu          sync.Mutex
	diagnostics []Diagnostic
}

func (l *recordingLogger) LogDiagnostic(d Diagnostic) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.diagnostics = append(l.diagnostics, d)
}

func (l *recordingLogger) all() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Diagnostic(nil), l.diagnostics...)
}

type Window struct {
	ID      string `track:"key"`
	Title   string
	Width   int  `track:"persist" default:"800"`
	Height  int  `track:"persist" default:"600"`
	Visible bool `track:"persist,tracker=layout"`

	Resized *Event
}

func newWindow(id string) *Window {
	return &Window{ID: id, Title: "window " + id, Resized: NewEvent()}
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
