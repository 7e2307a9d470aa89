package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/deppfellow/layered-api/internal/errs"
)

// Type is the JSON type a field must carry.
type Type string

const (
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeAny     Type = "any"
)

// Field declares the type and rules of one input field.
//
// Rules is a validator tag list, e.g. "required,email,max=254".
type Field struct {
	Type  Type   `yaml:"type"`
	Rules string `yaml:"rules"`
}

// Required reports whether the field must be present.
func (f Field) Required() bool {
	return slices.Contains(strings.Split(f.Rules, ","), "required")
}

// Schema is a named set of fields. A schema is immutable once built and is
// safe for concurrent use.
type Schema struct {
	Name   string           `yaml:"name"`
	Fields map[string]Field `yaml:"fields"`
}

// validate is shared by every schema. *validator.Validate caches parsed tags
// and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// NewSchema checks every field declaration and returns the schema.
func NewSchema(name string, fields map[string]Field) (*Schema, error) {
	s := &Schema{Name: name, Fields: fields}
	if err := s.check(); err != nil {
		return nil, err
	}
	return s, nil
}

// check rejects unknown types and rule tags the validator cannot parse.
func (s *Schema) check() error {
	if s.Name == "" {
		return errors.New("schema name is required")
	}
	for _, name := range s.fieldNames() {
		f := s.Fields[name]
		zero, ok := zeroValues[f.Type]
		if !ok {
			return fmt.Errorf("schema %s: field %s: unknown type %q", s.Name, name, f.Type)
		}
		if f.Rules == "" {
			continue
		}
		if _, err := runRules(zero, f.Rules); err != nil {
			return fmt.Errorf("schema %s: field %s: %w", s.Name, name, err)
		}
	}
	return nil
}

var zeroValues = map[Type]any{
	TypeString:  "",
	TypeNumber:  float64(0),
	TypeInteger: int64(0),
	TypeBoolean: false,
	TypeObject:  map[string]any{},
	TypeArray:   []any{},
	TypeAny:     "",
}

// Validate checks raw against the schema. Every violation is collected; on
// failure the error is a ValidationError whose details map field -> reason and
// no Input is returned.
func (s *Schema) Validate(raw map[string]any) (*Input, error) {
	details := make(map[string]string)

	for key := range raw {
		if _, ok := s.Fields[key]; !ok {
			details[key] = "is not allowed"
		}
	}

	for _, name := range s.fieldNames() {
		f := s.Fields[name]
		v, present := raw[name]
		if !present || v == nil {
			if f.Required() {
				details[name] = "is required"
			}
			continue
		}
		if !f.Type.matches(v) {
			details[name] = "must be " + f.Type.article()
			continue
		}
		if f.Rules == "" {
			continue
		}
		if msg, err := runRules(v, f.Rules); err != nil {
			details[name] = "is invalid"
		} else if msg != "" {
			details[name] = msg
		}
	}

	if len(details) > 0 {
		return nil, errs.NewValidationError(details)
	}
	return newInput(s.Name, raw), nil
}

func (s *Schema) fieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// runRules applies a rule tag to one value. A non-empty message is a
// validation failure; an error means the rules cannot apply to the value at
// all (unknown tag, or a tag unsupported for the type), which validator
// reports by panicking.
func runRules(v any, rules string) (msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid rules %q: %v", rules, r)
		}
	}()

	verr := validate.Var(v, rules)
	if verr == nil {
		return "", nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(verr, &fieldErrs) && len(fieldErrs) > 0 {
		return reason(fieldErrs[0]), nil
	}
	return "", verr
}

func (t Type) matches(v any) bool {
	switch t {
	case TypeAny:
		return true
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeNumber:
		return isNumber(v)
	case TypeInteger:
		return isInteger(v)
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	case TypeArray:
		rv := reflect.ValueOf(v)
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	}
	return false
}

func (t Type) article() string {
	switch t {
	case TypeInteger, TypeObject, TypeArray:
		return "an " + string(t)
	}
	return "a " + string(t)
}

func isNumber(v any) bool {
	if _, ok := v.(json.Number); ok {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case json.Number:
		_, err := n.Int64()
		return err == nil
	case float64:
		return n == float64(int64(n))
	case float32:
		return n == float32(int64(n))
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
