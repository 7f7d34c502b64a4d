// Package config reads loose map[string]any settings, typically decoded from
// YAML or JSON, through typed accessors that fall back to a default when a
// key is missing or holds the wrong type.
//
//	cfg, err := config.FromFile("eevent.yaml")
//	if err != nil {
//	    return err
//	}
//	lp, err := loop.FromConfig(cfg.Section("loop"))
//
// Duration accepts a time.ParseDuration string ("250ms"), a number of
// seconds (int or float64), or a time.Duration. Int accepts float64 values
// only when they have no fractional part, since YAML and JSON decoders
// produce float64 for plain numbers.
//
// Consumers that own a section reject misspelled keys with Strict.
//
// A Config is read-only after creation and safe for concurrent reads.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrUnknownKey indicates a key outside the set a section accepts.
var ErrUnknownKey = errors.New("unknown config key")

type decoder func(data []byte, out any) error

// decoders maps a lower-case file extension to its decoder.
var decoders = map[string]decoder{
	".yaml": yaml.Unmarshal,
	".yml":  yaml.Unmarshal,
	".json": json.Unmarshal,
}

// Config wraps a map[string]any for typed value extraction.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map. A nil map yields an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// String returns the string at key, or defaultVal.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return defaultVal
}

// Bool returns the bool at key, or defaultVal.
func (c Config) Bool(key string, defaultVal bool) bool {
	if b, ok := c.data[key].(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer at key, or defaultVal.
func (c Config) Int(key string, defaultVal int) int {
	switch val := c.data[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Duration returns the duration at key, or defaultVal.
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	switch val := c.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case time.Duration:
		return val
	case int:
		return time.Duration(val) * time.Second
	case int64:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	}
	return defaultVal
}

// Section returns the nested map at key as a Config. A missing or
// non-map value yields an empty Config, so lookups fall through to
// their defaults.
func (c Config) Section(key string) Config {
	switch val := c.data[key].(type) {
	case map[string]any:
		return New(val)
	case Config:
		return val
	}
	return New(nil)
}

// Has returns true if the key exists.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Raw returns the underlying map. Callers must not modify it.
func (c Config) Raw() map[string]any {
	return c.data
}

// Strict returns an error wrapping ErrUnknownKey that names every key of c
// not listed in known, sorted. It returns nil when all keys are known.
func (c Config) Strict(known ...string) error {
	var unknown []string
	for key := range c.data {
		if !slices.Contains(known, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return fmt.Errorf("%w: %s", ErrUnknownKey, strings.Join(unknown, ", "))
}

// FromFile loads a Config from path. The extension (.yaml, .yml or .json,
// in any case) selects the decoder and is checked before the file is read.
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	dec, ok := decoders[ext]
	if !ok {
		return Config{}, fmt.Errorf("config %s: unsupported extension %q", path, ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	cfg, err := decode(dec, ext[1:], data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// FromYAML parses a YAML document into a Config.
func FromYAML(data []byte) (Config, error) {
	return decode(yaml.Unmarshal, "yaml", data)
}

// FromJSON parses a JSON object into a Config.
func FromJSON(data []byte) (Config, error) {
	return decode(json.Unmarshal, "json", data)
}

func decode(dec decoder, format string, data []byte) (Config, error) {
	var m map[string]any
	if err := dec(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", format, err)
	}
	return New(m), nil
}
