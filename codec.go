package prefs

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/goliatone/go-prefs/internal/overlay"
)

// Codec serializes one preference set snapshot to its durable textual record
// and back. Decode receives the type's default value and must apply the
// record on top of it, so records missing newly added fields still load.
type Codec[T any] interface {
	Encode(value T) ([]byte, error)
	Decode(data []byte, defaults T) (T, error)
}

// JSONCodec is the default Codec: a pretty, diff-friendly, field-name-keyed
// JSON record. Decoding builds a map intermediate and overlays present
// fields onto a clone of the defaults, one top-level field at a time; a
// field whose value fails to decode is reported and left at its default.
type JSONCodec[T any] struct {
	// Indent overrides the two-space default.
	Indent string
}

func (c JSONCodec[T]) indent() string {
	if c.Indent != "" {
		return c.Indent
	}
	return "  "
}

// Encode renders value as an indented JSON document with a trailing newline.
func (c JSONCodec[T]) Encode(value T) ([]byte, error) {
	data, err := json.MarshalIndent(value, "", c.indent())
	if err != nil {
		return nil, &EncodeError{Err: err}
	}
	return append(data, '\n'), nil
}

// Decode parses data against the field schema of T. It always returns a
// usable value: on an unparseable envelope the defaults come back unchanged,
// on per-field failures only the affected fields stay at their defaults. Any
// returned error is a *DecodeError describing what was skipped.
func (c JSONCodec[T]) Decode(data []byte, defaults T) (T, error) {
	result := overlay.Clone(defaults)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return result, &DecodeError{Err: err}
	}

	rv := reflect.ValueOf(&result).Elem()
	if rv.Kind() != reflect.Struct {
		// Non-struct sets have no field schema to walk; decode whole.
		if err := strictUnmarshal(data, &result); err != nil {
			return overlay.Clone(defaults), &DecodeError{Err: err}
		}
		return result, nil
	}

	var fieldErrs []FieldError
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name := fieldKey(field)
		if name == "" {
			continue
		}
		rawValue, ok := raw[name]
		if !ok {
			continue
		}
		// Prefill with the default so nested structs overlay per leaf.
		target := reflect.New(field.Type)
		target.Elem().Set(overlay.CloneValue(rv.Field(i)))
		if err := json.Unmarshal(rawValue, target.Interface()); err != nil {
			fieldErrs = append(fieldErrs, FieldError{Field: name, Err: err})
			continue
		}
		rv.Field(i).Set(target.Elem())
	}
	if len(fieldErrs) > 0 {
		return result, &DecodeError{Fields: fieldErrs}
	}
	return result, nil
}

func strictUnmarshal(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	return dec.Decode(target)
}

// fieldKey resolves the record key for a struct field: the json tag name
// when present, the field name otherwise. Fields tagged "-" are skipped.
func fieldKey(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}
