package store

import (
	"context"
	"fmt"
	"strings"

	track "github.com/goliatone/go-track"
)

// Kind names a backend.
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
	KindS3     Kind = "s3"
)

// Backend is a Store that can list its keys and be closed.
type Backend interface {
	track.Store
	track.KeyLister
	Close() error
}

// Config selects and configures a backend. Fields not used by the chosen
// Kind are ignored.
type Config struct {
	Kind Kind `toml:"kind"`

	// file and sqlite
	Path string `toml:"path"`
	// file only; defaults to the Path extension
	Format string `toml:"format"`

	// s3
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

// Open builds the backend described by cfg.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch Kind(strings.ToLower(string(cfg.Kind))) {
	case KindMemory, "":
		return NewMemoryStore(), nil
	case KindFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("store: file backend requires a path")
		}
		var opts []FileOption
		if cfg.Format != "" {
			codec, err := CodecFor(cfg.Format)
			if err != nil {
				return nil, err
			}
			opts = append(opts, WithCodec(codec))
		}
		return backendOrNil(NewFileStore(cfg.Path, opts...))
	case KindSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("store: sqlite backend requires a path")
		}
		return backendOrNil(NewSQLiteStore(cfg.Path))
	case KindS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("store: s3 backend requires a bucket")
		}
		return backendOrNil(DialS3(ctx, cfg.Bucket, cfg.Prefix, cfg.Region, cfg.Endpoint))
	default:
		return nil, fmt.Errorf("store: unknown backend kind %q", cfg.Kind)
	}
}

// backendOrNil keeps a failed constructor from yielding a non-nil Backend
// holding a nil pointer.
func backendOrNil[B Backend](backend B, err error) (Backend, error) {
	if err != nil {
		return nil, err
	}
	return backend, nil
}

var (
	_ Backend = (*MemoryStore)(nil)
	_ Backend = (*FileStore)(nil)
	_ Backend = (*SQLiteStore)(nil)
	_ Backend = (*S3Store)(nil)
)
