package middleware

import (
	"errors"
	"unicode/utf8"
)

// Field limits for request bodies.
const (
	MaxNameLength     = 100
	MaxEmailLength    = 254
	MaxPasswordLength = 128
	MaxMessageLength  = 8000
	MaxTitleLength    = 120
	MaxMealLength     = 2000
	MaxProfileField   = 500
)

// Validation errors.
var (
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrFieldNotUTF8    = errors.New("field is not valid UTF-8")
	ErrFieldControlChr = errors.New("field contains control characters")
)

// FieldError names the offending field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Field is one value to check against a limit.
type Field struct {
	Name  string
	Value string
	Max   int
	// Multiline admits newlines and tabs.
	Multiline bool
}

// ValidateFields checks each field's encoding and length in runes. The
// first failure is returned as a *FieldError.
func ValidateFields(fields ...Field) error {
	for _, f := range fields {
		if err := validateField(f); err != nil {
			return &FieldError{Field: f.Name, Err: err}
		}
	}
	return nil
}

func validateField(f Field) error {
	if !utf8.ValidString(f.Value) {
		return ErrFieldNotUTF8
	}
	if f.Max > 0 && utf8.RuneCountInString(f.Value) > f.Max {
		return ErrFieldTooLong
	}
	for _, r := range f.Value {
		if r == '\n' || r == '\t' || r == '\r' {
			if f.Multiline {
				continue
			}
			return ErrFieldControlChr
		}
		if r < 0x20 || r == 0x7f {
			return ErrFieldControlChr
		}
	}
	return nil
}
