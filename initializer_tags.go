package track

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-track/internal/hydrate"
)

const (
	tagTrack   = "track"
	tagDefault = "default"
)

// TagInitializer discovers tracking hints from struct tags:
//
//	ID     string `track:"key"`
//	Width  int    `track:"persist" default:"800"`
//	Height int    `track:"persist,tracker=main"`
//
// `track:"key"` marks the identifying key (at most one per type). Properties
// scoped with tracker=name are only tracked by the tracker of that name.
// Defaults are parsed as YAML into the field type.
type TagInitializer struct{}

// Initialize implements Initializer.
func (TagInitializer) Initialize(cfg *Configuration) error {
	target, ok := cfg.target.resolve()
	if !ok {
		return ErrTargetCollected
	}
	if target.Kind() != reflect.Pointer || target.Elem().Kind() != reflect.Struct {
		return nil
	}

	structType := target.Elem().Type()
	keyField := ""
	for _, field := range reflect.VisibleFields(structType) {
		if !field.IsExported() || field.Anonymous {
			continue
		}
		raw, ok := field.Tag.Lookup(tagTrack)
		if !ok {
			continue
		}
		flags := parseKeyValueTag(raw)

		if _, isKey := flags["key"]; isKey {
			if keyField != "" && keyField != field.Name {
				return fmt.Errorf("%w: %s has %s and %s", ErrDuplicateKeyField, structType.Name(), keyField, field.Name)
			}
			keyField = field.Name
			value, err := target.Elem().FieldByIndexErr(field.Index)
			if err != nil {
				return bindingError(structType.Name(), "property", field.Name, err)
			}
			cfg.IdentifyAs(fmt.Sprint(value.Interface()))
		}

		if _, persist := flags["persist"]; !persist {
			continue
		}
		if scope, scoped := flags["tracker"]; scoped && scope != cfg.TrackerName() {
			continue
		}

		var err error
		if rawDefault, hasDefault := field.Tag.Lookup(tagDefault); hasDefault {
			var value any
			value, err = hydrate.ParseDefault(field.Type, rawDefault)
			if err != nil {
				return bindingError(structType.Name(), "property", field.Name, err)
			}
			_, err = cfg.AddProperty(field.Name, value)
		} else {
			_, err = cfg.AddProperty(field.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func parseKeyValueTag(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	values := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, found := strings.Cut(part, "=")
		if !found {
			key = part
			value = ""
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		values[key] = value
	}
	return values
}
