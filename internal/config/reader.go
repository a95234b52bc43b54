package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

// Definition documents a single configuration key. A nil Default marks the
// key as required.
type Definition struct {
	Docs    string
	Default any
}

// Definitions maps configuration key names to their declarations.
type Definitions map[string]Definition

// Source supplies raw configuration values by key.
type Source interface {
	Lookup(key string) (string, bool)
}

// EnvSource reads values from the process environment.
type EnvSource struct{}

// Lookup implements Source.
func (EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapSource reads values from a fixed map.
type MapSource map[string]string

// Lookup implements Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// ChainSource consults each source in order and returns the first hit.
type ChainSource []Source

// Lookup implements Source.
func (c ChainSource) Lookup(key string) (string, bool) {
	for _, src := range c {
		if src == nil {
			continue
		}
		if v, ok := src.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// MissingValueError is returned when a key has neither a source value nor a default.
type MissingValueError struct {
	Key  string
	Docs string
}

func (e *MissingValueError) Error() string {
	if e.Docs == "" {
		return fmt.Sprintf("missing value for configuration key %q", e.Key)
	}
	return fmt.Sprintf("missing value for configuration key %q (%s)", e.Key, e.Docs)
}

// ParseError is returned when a value cannot be coerced to the requested type.
type ParseError struct {
	Key  string
	Kind string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed parsing of config value for %q as %s: %v", e.Key, e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader provides typed access to a declared set of configuration keys.
type Reader struct {
	defs   Definitions
	source Source
}

// NewReader constructs a reader over defs backed by src.
func NewReader(defs Definitions, src Source) *Reader {
	if src == nil {
		src = EnvSource{}
	}
	if defs == nil {
		defs = Definitions{}
	}
	return &Reader{defs: defs, source: src}
}

// Has reports whether the source holds a value for key. Defaults do not count.
func (r *Reader) Has(key string) bool {
	_, ok := r.source.Lookup(key)
	return ok
}

// Get resolves key, preferring the source value over the declared default.
func (r *Reader) Get(key string) (Value, error) {
	def, declared := r.defs[key]
	if !declared {
		return Value{}, fmt.Errorf("unknown configuration key %q", key)
	}
	if raw, ok := r.source.Lookup(key); ok {
		return Value{key: key, raw: raw}, nil
	}
	if def.Default == nil {
		return Value{}, &MissingValueError{Key: key, Docs: def.Docs}
	}
	return Value{key: key, raw: def.Default}, nil
}

// MustGet is like Get but panics on failure. Use it in tests only.
func (r *Reader) MustGet(key string) Value {
	v, err := r.Get(key)
	if err != nil {
		panic(err)
	}
	return v
}

// Describe returns the documentation string for key.
func (r *Reader) Describe(key string) string {
	return r.defs[key].Docs
}

// Keys returns all declared keys in sorted order.
func (r *Reader) Keys() []string {
	keys := make([]string, 0, len(r.defs))
	for k := range r.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate resolves every declared key and returns the first failure.
func (r *Reader) Validate() error {
	for _, key := range r.Keys() {
		if _, err := r.Get(key); err != nil {
			return err
		}
	}
	return nil
}

// Value is a resolved configuration value awaiting coercion.
type Value struct {
	key string
	raw any
}

// Key returns the configuration key the value was read from.
func (v Value) Key() string {
	return v.key
}

// AsString returns the value as a string.
func (v Value) AsString() (string, error) {
	s, err := cast.ToStringE(v.raw)
	if err != nil {
		return "", &ParseError{Key: v.key, Kind: "string", Err: err}
	}
	return s, nil
}

// AsNumber returns the value as a float64.
func (v Value) AsNumber() (float64, error) {
	raw := v.raw
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	n, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, &ParseError{Key: v.key, Kind: "number", Err: err}
	}
	return n, nil
}

// AsInt returns the value as an int.
func (v Value) AsInt() (int, error) {
	raw := v.raw
	if s, ok := raw.(string); ok {
		raw = strings.TrimSpace(s)
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return 0, &ParseError{Key: v.key, Kind: "integer", Err: err}
	}
	return n, nil
}

// AsBoolean returns the value as a bool. Besides the strconv forms it accepts
// yes/no and treats an empty string as false.
func (v Value) AsBoolean() (bool, error) {
	if s, ok := v.raw.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "on":
			return true, nil
		case "no", "off", "":
			return false, nil
		}
	}
	b, err := cast.ToBoolE(v.raw)
	if err != nil {
		return false, &ParseError{Key: v.key, Kind: "boolean", Err: err}
	}
	return b, nil
}

// AsStringArray splits comma-delimited strings and trims each element.
// Empty elements are dropped.
func (v Value) AsStringArray() ([]string, error) {
	if s, ok := v.raw.(string); ok {
		out := []string{}
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
	items, err := cast.ToStringSliceE(v.raw)
	if err != nil {
		return nil, &ParseError{Key: v.key, Kind: "string array", Err: err}
	}
	return items, nil
}
