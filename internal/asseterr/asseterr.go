// Package asseterr defines the wire-level error taxonomy shared by every
// component that can produce a reply to a client: content store, mapping
// store, and transfer pool all report failures through a Code rather than an
// opaque Go error, so that the wire codec has a single, closed set of values
// to encode.
package asseterr

import (
	"errors"
	"fmt"
)

// Code is a wire error code, sent as a single byte in every reply that
// carries a status.
type Code uint8

// The closed set of codes the wire protocol can carry. Values and meanings
// are fixed by the wire format; never renumber them.
const (
	NoError Code = iota
	AssetNotFound
	InvalidByteRange
	AssetTooLarge
	PermissionDenied
	MappingOperationFailed
	FileOperationFailed
)

// descriptor carries the human-facing side of a Code: the rest of the
// system never needs more than a name and a one-line explanation.
type descriptor struct {
	name    string
	message string
}

var descriptors = map[Code]descriptor{
	NoError:                 {"NoError", "success"},
	AssetNotFound:           {"AssetNotFound", "no content file for the requested hash"},
	InvalidByteRange:        {"InvalidByteRange", "range cannot be satisfied against file size"},
	AssetTooLarge:           {"AssetTooLarge", "upload exceeds configured cap"},
	PermissionDenied:        {"PermissionDenied", "sender lacks write capability for a mutating op"},
	MappingOperationFailed:  {"MappingOperationFailed", "validation failed or persistence could not commit"},
	FileOperationFailed:     {"FileOperationFailed", "content store write failed"},
}

// String implements fmt.Stringer, returning the code's registered name, or
// a numeric fallback for an unregistered value.
func (c Code) String() string {
	if d, ok := descriptors[c]; ok {
		return d.name
	}
	return fmt.Sprintf("Code(%d)", uint8(c))
}

// Message returns the one-line description registered for c.
func (c Code) Message() string {
	if d, ok := descriptors[c]; ok {
		return d.message
	}
	return "unknown error"
}

// Valid reports whether c is one of the registered codes.
func (c Code) Valid() bool {
	_, ok := descriptors[c]
	return ok
}

// Error wraps a Code as a Go error, optionally layering a cause produced
// internally (logged, never put on the wire).
type Error struct {
	Code  Code
	Cause error
}

// New builds an *Error for code with no underlying cause.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Wrap builds an *Error for code, recording cause for logging.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// As extracts the Code carried by err, if any was set via this package.
// Unrecognized errors map to MappingOperationFailed, the catch-all for
// "something went wrong that the caller didn't anticipate a code for".
func As(err error) Code {
	if err == nil {
		return NoError
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return MappingOperationFailed
}
