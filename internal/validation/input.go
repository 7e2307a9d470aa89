package validation

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// ErrInvalidInput is returned when an Input that did not come from
// Schema.Validate is used.
var ErrInvalidInput = errors.New("validation: input was not produced by a schema")

// Input is data proven to satisfy a schema. Its fields are unexported, so the
// only way to obtain a usable Input is a successful Schema.Validate call; a
// zero Input reports Valid() == false and refuses to decode.
type Input struct {
	schema string
	values map[string]any
}

func newInput(schema string, raw map[string]any) *Input {
	values := deepCopy(raw)
	if values == nil {
		values = map[string]any{}
	}
	return &Input{schema: schema, values: values}
}

// Valid reports whether in was produced by a successful validation.
func (in *Input) Valid() bool {
	return in != nil && in.values != nil
}

// Schema names the schema in satisfied.
func (in *Input) Schema() string {
	if in == nil {
		return ""
	}
	return in.schema
}

// Values returns a deep copy of the validated fields.
func (in *Input) Values() map[string]any {
	if !in.Valid() {
		return nil
	}
	return deepCopy(in.values)
}

// Has reports whether key was supplied with a non-null value.
func (in *Input) Has(key string) bool {
	v, ok := in.Get(key)
	return ok && v != nil
}

// Get returns the raw value of key.
func (in *Input) Get(key string) (any, bool) {
	if !in.Valid() {
		return nil, false
	}
	v, ok := in.values[key]
	return v, ok
}

// String returns key as a string, or "" when it is absent or not a string.
func (in *Input) String(key string) string {
	v, _ := in.Get(key)
	s, _ := v.(string)
	return s
}

// Decode copies the validated fields into dst, a pointer to a struct whose
// fields are matched by their `json` tag.
func (in *Input) Decode(dst any) error {
	if !in.Valid() {
		return ErrInvalidInput
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  dst,
		TagName: "json",
	})
	if err != nil {
		return fmt.Errorf("validation: build decoder: %w", err)
	}
	if err := dec.Decode(in.values); err != nil {
		return fmt.Errorf("validation: decode %s input: %w", in.schema, err)
	}
	return nil
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = copyValue(t[i])
		}
		return cp
	}
	return v
}
