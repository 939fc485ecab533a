package pretrained

import "reflect"

// ConfigForm declares how a model type's loader receives a stored config.
type ConfigForm int

const (
	// ConfigNone means the loader takes no config; stored configs are
	// ignored during reconstruction.
	ConfigNone ConfigForm = iota
	// ConfigOpen means the loader receives the canonical mapping as-is.
	ConfigOpen
	// ConfigStructured means the stored mapping is materialized into a
	// fresh record of the declared prototype's type.
	ConfigStructured
)

// Capability is a model type's static declaration of its config handling.
// Reconstruction consults it instead of inspecting constructors at runtime.
type Capability struct {
	Form ConfigForm

	// Prototype names the record type for ConfigStructured: a pointer to a
	// zero value, e.g. &TrainConfig{}. Ignored for the other forms.
	Prototype any
}

// resolve turns a stored mapping into the Config the load hook receives.
// A nil mapping yields the zero Config for every form. A ConfigStructured
// declaration without a usable prototype degrades to the open form rather
// than failing; only a genuine key or type mismatch is an error.
func (c Capability) resolve(mapping map[string]any) (Config, error) {
	if mapping == nil || c.Form == ConfigNone {
		return Config{}, nil
	}
	if c.Form == ConfigStructured && validPrototype(c.Prototype) {
		record := reflect.New(reflect.TypeOf(c.Prototype).Elem()).Interface()
		if err := Materialize(mapping, record); err != nil {
			return Config{}, err
		}
		return Structured(record), nil
	}
	return Open(mapping), nil
}

func validPrototype(p any) bool {
	if p == nil {
		return false
	}
	t := reflect.TypeOf(p)
	return t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct
}
