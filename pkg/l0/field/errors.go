package field

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch indicates an accessor doesn't match the type or arity of a field.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownFieldID indicates a frame addresses an id without a registered field.
	ErrUnknownFieldID = errors.New("unknown field id")
	// ErrDuplicateID indicates the wire id is already registered.
	ErrDuplicateID = errors.New("duplicate field id")
	// ErrDuplicateName indicates the name is already registered.
	ErrDuplicateName = errors.New("duplicate field name")
	// ErrPayloadSize indicates a received payload doesn't match the field size.
	ErrPayloadSize = errors.New("payload size mismatch")
	// ErrExpired indicates no value arrived before the request expired.
	ErrExpired = errors.New("request expired")
	// ErrInvalidField indicates a field definition can't be encoded on the wire.
	ErrInvalidField = errors.New("invalid field")
	// ErrNotAttached indicates the field isn't registered to a device.
	ErrNotAttached = errors.New("field not attached to a device")
	// ErrValueRange indicates a value can't be represented by the field type.
	ErrValueRange = errors.New("value out of range")
)

// TypeMismatchError reports an accessor used against the wrong type or arity.
type TypeMismatchError struct {
	Field    string
	Want     ValueType
	WantList bool
	Have     ValueType
	Quantity int
	// Len is the number of elements supplied when it doesn't match Quantity.
	Len int
}

// Error implements error.
func (e *TypeMismatchError) Error() string {
	prefix := "value"
	if e.Field != "" {
		prefix = fmt.Sprintf("field %q", e.Field)
	}
	if e.Want == e.Have && e.Len != e.Quantity {
		return fmt.Sprintf("%s: %d elements given, quantity is %d", prefix, e.Len, e.Quantity)
	}
	want := e.Want.String()
	if e.WantList {
		want += "[]"
	}
	return fmt.Sprintf("%s: can't access %s of %s with quantity %d", prefix, want, e.Have, e.Quantity)
}

// Unwrap returns ErrTypeMismatch.
func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// UnknownFieldIDError reports a frame for an unregistered id.
type UnknownFieldIDError struct {
	ID byte
}

// Error implements error.
func (e *UnknownFieldIDError) Error() string {
	return fmt.Sprintf("no field with id %d", e.ID)
}

// Unwrap returns ErrUnknownFieldID.
func (e *UnknownFieldIDError) Unwrap() error {
	return ErrUnknownFieldID
}

// PayloadSizeError reports a payload with unexpected length.
type PayloadSizeError struct {
	Field    string
	Expected int
	Actual   int
}

// Error implements error.
func (e *PayloadSizeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("payload of %d bytes, expected %d", e.Actual, e.Expected)
	}
	return fmt.Sprintf("field %q: payload of %d bytes, expected %d", e.Field, e.Actual, e.Expected)
}

// Unwrap returns ErrPayloadSize.
func (e *PayloadSizeError) Unwrap() error {
	return ErrPayloadSize
}
