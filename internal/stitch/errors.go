package stitch

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord is matched by every record-level stitching error.
var ErrInvalidRecord = errors.New("invalid flow record")

// MissingFieldError reports a record that lacks one of the session key fields.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("flow record is missing key field %q", e.Field)
}

func (e *MissingFieldError) Is(target error) bool { return target == ErrInvalidRecord }

// FieldTypeError reports a field whose value has the wrong kind for the
// operation applied to it, e.g. a string port or a non-numeric byte counter.
type FieldTypeError struct {
	Field string
	Value interface{}
}

func (e *FieldTypeError) Error() string {
	return fmt.Sprintf("flow record field %q has unsupported value %v (%T)", e.Field, e.Value, e.Value)
}

func (e *FieldTypeError) Is(target error) bool { return target == ErrInvalidRecord }

// ArityMismatchError reports two records of one session carrying sequences
// of different length in the same field.
type ArityMismatchError struct {
	Field    string
	Existing int
	Incoming int
}

func (e *ArityMismatchError) Error() string {
	return fmt.Sprintf("cannot merge field %q: length %d does not match length %d", e.Field, e.Incoming, e.Existing)
}

func (e *ArityMismatchError) Is(target error) bool { return target == ErrInvalidRecord }
