package errors

import (
	stderrors "errors"
	"fmt"
)

// Sentinels carried by DecodeError.
var (
	ErrShortBuffer           = stderrors.New("buffer too short")
	ErrUnknownType           = stderrors.New("unknown data type")
	ErrMalformed             = stderrors.New("malformed constructed type")
	ErrUnresolvedPlaceholder = stderrors.New("unresolved placeholder")
)

// ErrClosed is returned for work abandoned because its layer was destroyed.
var ErrClosed = stderrors.New("layer closed")

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return stderrors.New(text) }

// ProtocolStatusError is a non-zero general status returned by a device.
type ProtocolStatusError struct {
	Service     uint8
	Code        uint8
	Extended    []uint16
	Description string
}

func (e *ProtocolStatusError) Error() string {
	msg := fmt.Sprintf("service 0x%02X: status 0x%02X", e.Service, e.Code)
	if e.Description != "" {
		msg += " (" + e.Description + ")"
	}
	if len(e.Extended) > 0 {
		msg += fmt.Sprintf(" extended %04X", e.Extended)
	}
	return msg
}

// DecodeError reports where decoding stopped and why.
type DecodeError struct {
	Type   string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s at offset %d: %v", e.Type, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConnectionError is a Forward Open or Forward Close failure.
type ConnectionError struct {
	Op     string
	Status *ProtocolStatusError
	Err    error
}

func (e *ConnectionError) Error() string {
	switch {
	case e.Status != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	default:
		return e.Op + " failed"
	}
}

func (e *ConnectionError) Unwrap() error {
	if e.Status != nil {
		return e.Status
	}
	return e.Err
}

// ProgrammingError marks misuse of an API, as opposed to a device or network fault.
type ProgrammingError struct {
	Msg string
}

func (e *ProgrammingError) Error() string { return "programming error: " + e.Msg }
