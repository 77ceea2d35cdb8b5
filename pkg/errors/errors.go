// Package errors defines the failure taxonomy of the archipelago core.
// Synchronous API calls return these errors directly; asynchronous
// evolution tasks latch them island-side until WaitCheck re-raises
// them. Every error carries a code so callers can match with errors.Is
// without parsing messages, plus optional context fields (island index,
// sizes) attached where the failure was observed.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode classifies the failures the library can report.
type ErrorCode int

const (
	Unknown ErrorCode = iota

	// DimensionMismatch signals a decision or fitness vector whose length
	// disagrees with the problem dimensions.
	DimensionMismatch
	// InvalidOperation signals an operation that is not defined for the
	// receiver's current state (champion of an empty or multi-objective
	// population, for example).
	InvalidOperation
	// OutOfRange signals an index at or past the container size.
	OutOfRange
	// NotFound signals a lookup for an island that is not a member of the
	// archipelago.
	NotFound
	// Overflow signals a container that would exceed its maximum size.
	Overflow
	// UserFailure wraps an opaque error raised by user-supplied code
	// (problem, algorithm or island strategy). It is latched and
	// re-raised, never inspected.
	UserFailure
	// ContractViolation signals an argument that breaks a documented
	// size or state requirement (migrant DB or topology size mismatch).
	ContractViolation
	// Canceled signals a context cancellation observed by the library.
	Canceled
)

// String names the code for logs and messages.
func (c ErrorCode) String() string {
	switch c {
	case DimensionMismatch:
		return "dimension_mismatch"
	case InvalidOperation:
		return "invalid_operation"
	case OutOfRange:
		return "out_of_range"
	case NotFound:
		return "not_found"
	case Overflow:
		return "overflow"
	case UserFailure:
		return "user_failure"
	case ContractViolation:
		return "contract_violation"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Fields carries structured context about a failure.
type Fields map[string]interface{}

// Error is a coded failure with an optional cause and context fields.
// The zero value is not meaningful; build instances through New, Newf,
// Wrap or WithFields.
type Error struct {
	code  ErrorCode
	msg   string
	cause error
	ctx   Fields
}

// Error renders "message: cause (k=v ...)" with the fields in sorted
// order, so repeated failures produce identical strings.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.msg)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	if len(e.ctx) > 0 {
		keys := make([]string, 0, len(e.ctx))
		for k := range e.ctx {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%s=%v", k, e.ctx[k])
		}
		b.WriteByte(')')
	}
	return b.String()
}

// Unwrap exposes the cause to the errors package.
func (e *Error) Unwrap() error { return e.cause }

// Code reports the error's classification.
func (e *Error) Code() ErrorCode { return e.code }

// Is matches by code, so call sites can compare against a sentinel
// built with New(code, ...) regardless of message or fields.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.code == t.code
}

// Fields returns a copy of the error's context fields.
func (e *Error) Fields() Fields {
	out := make(Fields, len(e.ctx))
	for k, v := range e.ctx {
		out[k] = v
	}
	return out
}

// New builds a coded error.
func New(code ErrorCode, message string) error {
	return &Error{code: code, msg: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an existing error, keeping it
// reachable through errors.Unwrap. Wrapping nil returns nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, msg: message, cause: err}
}

// WithFields returns err with the given fields merged in, newer keys
// winning. A foreign error is first adopted under the Unknown code with
// the original kept as the cause.
func WithFields(err error, fields Fields) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if !ok {
		e = &Error{code: Unknown, msg: err.Error(), cause: err}
	}
	merged := make(Fields, len(e.ctx)+len(fields))
	for k, v := range e.ctx {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Error{code: e.code, msg: e.msg, cause: e.cause, ctx: merged}
}

// CodeOf walks err's chain and reports the first coded error found, or
// Unknown when the chain carries none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.code
	}
	return Unknown
}

// CheckContext converts a canceled or expired context into a Canceled
// error naming the interrupted operation (a batch evaluation, an
// evolution task). It returns nil while the context is live.
func CheckContext(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return Wrap(err, Canceled, operation+" interrupted")
	}
	return nil
}
