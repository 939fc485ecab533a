package pretrained

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
)

type configKind uint8

const (
	configNone configKind = iota
	configStructured
	configOpen
)

// Config is a model's optional configuration in one of two representations:
// a structured record (a struct with a fixed field set) or an open mapping
// of string keys to JSON-compatible values. The zero Config means no config.
//
// Whatever the in-memory form, the canonical form is always a
// map[string]any; the stored bytes never encode which representation the
// config came from.
type Config struct {
	kind    configKind
	record  any
	mapping map[string]any
}

// Structured wraps a fixed-schema record, usually a struct pointer. The
// record must marshal to a JSON object; anything else fails at
// normalization with ErrConfigShape.
func Structured(record any) Config {
	return Config{kind: configStructured, record: record}
}

// Open wraps an open mapping. The map is shared, not copied; callers must
// not mutate it afterwards. A nil map is the zero Config.
func Open(m map[string]any) Config {
	if m == nil {
		return Config{}
	}
	return Config{kind: configOpen, mapping: m}
}

// IsZero reports whether no config is attached.
func (c Config) IsZero() bool { return c.kind == configNone }

// Record returns the structured record, or nil when the config is open or
// absent.
func (c Config) Record() any {
	if c.kind != configStructured {
		return nil
	}
	return c.record
}

// Mapping returns the open mapping, or nil when the config is structured or
// absent.
func (c Config) Mapping() map[string]any {
	if c.kind != configOpen {
		return nil
	}
	return c.mapping
}

// Canonical normalizes the config into its mapping form. A zero Config
// yields nil. Open mappings pass through unchanged; structured records are
// converted field by field through their JSON encoding.
func (c Config) Canonical() (map[string]any, error) {
	switch c.kind {
	case configNone:
		return nil, nil
	case configOpen:
		return c.mapping, nil
	}
	if c.record == nil {
		return nil, fmt.Errorf("%w: nil record", ErrConfigShape)
	}
	raw, err := json.Marshal(c.record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigShape, err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return nil, fmt.Errorf("%w: %T does not marshal to an object", ErrConfigShape, c.record)
	}
	return m, nil
}

// encode renders the canonical JSON bytes. Structured records marshal
// directly so the file keeps their field declaration order; open mappings
// marshal with deterministic sorted keys.
func (c Config) encode() ([]byte, error) {
	var v any
	switch c.kind {
	case configStructured:
		if c.record == nil {
			return nil, fmt.Errorf("%w: nil record", ErrConfigShape)
		}
		v = c.record
	case configOpen:
		v = c.mapping
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigShape, err)
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("%w: %T does not marshal to an object", ErrConfigShape, v)
	}
	return append(data, '\n'), nil
}

// WriteConfig writes cfg as pretty-printed JSON to dir/config.json, creating
// dir if needed and overwriting any previous file. A zero config writes
// nothing and leaves an existing config.json untouched.
func WriteConfig(dir string, cfg Config) error {
	if cfg.IsZero() {
		return nil
	}
	data, err := cfg.encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pretrained: create %s: %w", dir, err)
	}
	name := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("pretrained: write %s: %w", name, err)
	}
	return nil
}

// ReadConfig loads the mapping stored in dir/config.json. A missing file is
// not an error: it returns (nil, nil), the no-config state. Malformed JSON
// is surfaced, never swallowed.
func ReadConfig(dir string) (map[string]any, error) {
	return readConfigFile(filepath.Join(dir, ConfigFileName))
}

func readConfigFile(name string) (map[string]any, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pretrained: read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("pretrained: parse %s: %w", name, err)
	}
	if m == nil {
		return nil, fmt.Errorf("pretrained: parse %s: top-level value is not an object", name)
	}
	return m, nil
}

// Materialize constructs a structured record from a canonical mapping.
// target must be a non-nil pointer to a struct. The mapping's key set must
// equal the record's JSON field set; extra and missing keys both fail with
// ErrConfigMismatch, and no partially filled record escapes.
func Materialize(mapping map[string]any, target any) error {
	fields, err := jsonFieldNames(target)
	if err != nil {
		return err
	}
	for key := range mapping {
		if _, ok := fields[key]; !ok {
			return fmt.Errorf("%w: unexpected key %q", ErrConfigMismatch, key)
		}
	}
	for name := range fields {
		if _, ok := mapping[name]; !ok {
			return fmt.Errorf("%w: missing key %q", ErrConfigMismatch, name)
		}
	}
	raw, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("pretrained: encode config: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigMismatch, err)
	}
	return nil
}

// jsonFieldNames collects the JSON names of target's exported fields,
// honouring json tags the way the encoder does.
func jsonFieldNames(target any) (map[string]struct{}, error) {
	v := reflect.ValueOf(target)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("pretrained: materialize target must be a non-nil struct pointer, got %T", target)
	}
	t := v.Elem().Type()
	names := make(map[string]struct{}, t.NumField())
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			if tag == "-" {
				continue
			}
			if base, _, _ := strings.Cut(tag, ","); base != "" {
				name = base
			}
		}
		names[name] = struct{}{}
	}
	return names, nil
}
