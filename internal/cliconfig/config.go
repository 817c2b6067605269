// Package cliconfig loads trackctl settings from a TOML file.
package cliconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goliatone/go-track/pkg/store"
)

// DefaultPath is read when --config is not given. A missing default file is
// not an error.
const DefaultPath = "trackctl.toml"

// Config is the on-disk trackctl configuration:
//
//	format = "text"
//
//	[store]
//	kind = "sqlite"
//	path = "state.db"
type Config struct {
	Format string       `toml:"format"`
	Store  store.Config `toml:"store"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{Format: "text", Store: store.Config{Kind: store.KindFile, Path: "tracking.json"}}
}

// Load reads path over Default. When required is false a missing file
// yields the defaults.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return Config{}, fmt.Errorf("load %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}
