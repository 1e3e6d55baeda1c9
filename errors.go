package prefs

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError reports one record field that could not be decoded.
type FieldError struct {
	Field string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// DecodeError reports a malformed or partially unparseable record. Decoding
// is lenient: the codec still returns a usable value with defaults filled in
// for the affected fields, so a DecodeError is informational, never fatal.
type DecodeError struct {
	// Err is set when the record envelope itself failed to parse.
	Err error
	// Fields lists fields whose values failed to decode and were left at
	// their defaults.
	Fields []FieldError
}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("prefs: decode record: %v", e.Err)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		parts = append(parts, fe.Error())
	}
	return fmt.Sprintf("prefs: decode record: %s", strings.Join(parts, "; "))
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	if e.Err != nil {
		return e.Err
	}
	errs := make([]error, 0, len(e.Fields))
	for _, fe := range e.Fields {
		errs = append(errs, fe)
	}
	return errors.Join(errs...)
}

// EncodeError reports a snapshot that could not be serialized. The save that
// produced it is dropped.
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("prefs: encode snapshot: %v", e.Err)
}

func (e *EncodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RuleError reports a guard rule that rejected a loaded record.
type RuleError struct {
	Expr string
	Err  error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("prefs: guard rule %q: %v", e.Expr, e.Err)
	}
	return fmt.Sprintf("prefs: guard rule %q rejected record", e.Expr)
}

func (e *RuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
