package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	track "github.com/goliatone/go-track"
	"github.com/goliatone/go-track/internal/hydrate"
)

// FileStore keeps every entry in a single document on disk. The document
// is rewritten on each Persist and Remove through a temp file and rename.
type FileStore struct {
	path  string
	codec Codec
	perm  os.FileMode

	mu      sync.RWMutex
	entries map[string]json.RawMessage
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithCodec overrides the codec derived from the file extension.
func WithCodec(codec Codec) FileOption {
	return func(s *FileStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithFileMode sets the permissions of the written document.
func WithFileMode(perm os.FileMode) FileOption {
	return func(s *FileStore) {
		s.perm = perm
	}
}

// NewFileStore opens the document at path, creating it lazily on first
// write. The codec follows the extension unless WithCodec is given.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{path: path, perm: 0o600, entries: map[string]json.RawMessage{}}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.codec == nil {
		codec, err := CodecForPath(path)
		if err != nil {
			return nil, err
		}
		s.codec = codec
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the document location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.path, err)
	}
	doc, err := s.codec.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("decode %s as %s: %w", s.path, s.codec.Name(), err)
	}
	for key, value := range doc {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("normalize %s: %w", key, err)
		}
		s.entries[key] = raw
	}
	return nil
}

func (s *FileStore) ContainsKey(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[key]
	return ok, nil
}

func (s *FileStore) Retrieve(_ context.Context, key string) (any, error) {
	s.mu.RLock()
	raw, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", track.ErrNotFound, key)
	}
	return jsonRaw(raw), nil
}

func (s *FileStore) Persist(_ context.Context, key string, value any) error {
	raw, err := marshalValue(key, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.entries[key]
	s.entries[key] = raw
	if err := s.flushLocked(); err != nil {
		if existed {
			s.entries[key] = previous
		} else {
			delete(s.entries, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.entries[key]
	if !existed {
		return nil
	}
	delete(s.entries, key)
	if err := s.flushLocked(); err != nil {
		s.entries[key] = previous
		return err
	}
	return nil
}

func (s *FileStore) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close is a no-op; every write is flushed immediately.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) flushLocked() error {
	doc := make(map[string]any, len(s.entries))
	for key, raw := range s.entries {
		value, err := hydrate.DecodeJSON(raw)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		doc[key] = value
	}
	data, err := s.codec.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s as %s: %w", s.path, s.codec.Name(), err)
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, s.perm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}
