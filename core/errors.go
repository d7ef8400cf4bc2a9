// Package core defines the types shared by the compiler, the state layer and
// the runtime: the execution context handed to contracts and the runtime
// error taxonomy.
package core

import (
	"errors"
	"fmt"

	"github.com/govm-net/sandbox/msgs"
)

// ErrorKind classifies a runtime failure. Every kind aborts the whole
// top-level invocation.
type ErrorKind string

const (
	KindAssertion       ErrorKind = "assertion"
	KindReference       ErrorKind = "reference"
	KindResourceLimit   ErrorKind = "resource-limit"
	KindStampsExhausted ErrorKind = "stamps-exhausted"
	KindArithmetic      ErrorKind = "arithmetic"
	KindResolution      ErrorKind = "resolution"
	KindType            ErrorKind = "type"
	KindValue           ErrorKind = "value"
	KindName            ErrorKind = "name"
	KindAttribute       ErrorKind = "attribute"
	KindIndex           ErrorKind = "index"
	KindKey             ErrorKind = "key"
	KindAuthorization   ErrorKind = "authorization"
	KindInternal        ErrorKind = "internal"
)

// Error is a runtime failure raised while a contract executes.
type Error struct {
	Kind     ErrorKind
	Message  string
	Contract string
	Line     int
}

func (e *Error) Error() string {
	if e.Contract != "" && e.Line > 0 {
		return fmt.Sprintf("%s: %s (%s:%d)", e.Kind, e.Message, e.Contract, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError builds an Error from a catalog message.
func NewError(kind ErrorKind, key msgs.MessageKey, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: msgs.Expand(key, args...),
	}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a runtime Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Locate stamps the position of the failing statement on err if it has none.
func Locate(err error, contract string, line int) error {
	var e *Error
	if errors.As(err, &e) && e.Line == 0 {
		e.Contract = contract
		e.Line = line
	}
	return err
}
