// Package errors provides the structured error type used by bomswap.
//
// Every failure carries a Kind (what went wrong), the Op (the step that was
// running) and, when known, a platform status code. The status code is what
// the command line reports and exits with.
//
//	err := errors.New(errors.KindIO).
//		Op("ReadFile").
//		Path(path).
//		Cause(err).
//		Build()
//
// Errors built here match the package sentinels with errors.Is by kind:
//
//	if errors.Is(err, errors.ErrInvalidCharacterSequence) { ... }
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"syscall"
)

// Kind categorizes the error
type Kind string

const (
	KindIO                       Kind = "io"
	KindInvalidCommandLine       Kind = "invalid_command_line"
	KindInvalidCharacterSequence Kind = "invalid_character_sequence"
	KindAllocation               Kind = "allocation"
	KindUnrecognizedEncoding     Kind = "unrecognized_encoding"
	KindRoundTripMismatch        Kind = "round_trip_mismatch"
)

// Sentinels for errors.Is comparisons. Only the kind is compared.
var (
	ErrIO                       = &Error{Kind: KindIO, Offset: -1}
	ErrInvalidCommandLine       = &Error{Kind: KindInvalidCommandLine, Offset: -1}
	ErrInvalidCharacterSequence = &Error{Kind: KindInvalidCharacterSequence, Offset: -1}
	ErrAllocationFailure        = &Error{Kind: KindAllocation, Offset: -1}
	ErrUnrecognizedEncoding     = &Error{Kind: KindUnrecognizedEncoding, Offset: -1}
	ErrRoundTripMismatch        = &Error{Kind: KindRoundTripMismatch, Offset: -1}
)

// Error is the structured error type used throughout bomswap
type Error struct {
	Cause  error
	Kind   Kind
	Op     string
	Path   string
	Detail string
	Offset int // position of the offending unit or byte, -1 when unknown
	Status uint32
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteByte('[')
		b.WriteString(e.Op)
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Offset >= 0 {
		fmt.Fprintf(&b, " (offset %d)", e.Offset)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(kind Kind) *Builder {
	return &Builder{err: Error{Kind: kind, Offset: -1}}
}

// Op sets the name of the failing step
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Path sets the file the step was working on
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Offset sets the position of the offending input element
func (b *Builder) Offset(off int) *Builder {
	b.err.Offset = off
	return b
}

// Status overrides the platform status code
func (b *Builder) Status(code uint32) *Builder {
	b.err.Status = code
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	err := b.err
	return &err
}

// Convenience constructors for common error patterns

// IO wraps a file system failure for the given step and path.
func IO(op, path string, cause error) *Error {
	return New(KindIO).Op(op).Path(path).Cause(cause).Build()
}

// InvalidSequence reports an input element that has no representation in
// the target encoding.
func InvalidSequence(op string, offset int, detail string, args ...any) *Error {
	return New(KindInvalidCharacterSequence).Op(op).Offset(offset).Detail(detail, args...).Build()
}

// Allocation reports that a conversion buffer could not be obtained.
func Allocation(op string, size int) *Error {
	return New(KindAllocation).Op(op).Detail("cannot allocate %d elements", size).Build()
}

// Status returns the platform status code for err. An explicit status wins,
// then any errno found in the chain, then the default for the error's kind.
// A nil error maps to 0.
func Status(err error) uint32 {
	if err == nil {
		return 0
	}

	var e *Error
	if stderrors.As(err, &e) && e.Status != 0 {
		return e.Status
	}

	var errno syscall.Errno
	if stderrors.As(err, &errno) && errno != 0 {
		return uint32(errno)
	}

	if e != nil {
		return defaultStatus(e.Kind)
	}
	return statusGeneric
}

// OpOf returns the step name attached to err, or "" when there is none.
func OpOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Op
	}
	return ""
}

// KindOf returns the kind of err, or "" for errors not built by this package.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is is a passthrough to the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As is a passthrough to the standard library.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
