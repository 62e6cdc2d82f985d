package pkg

import (
	"errors"
	"log/slog"
	"strings"
)

// Kind classifies an [Error].
//
// Syntax and command errors are the two KoiLang error kinds; they are the
// only kinds a runtime routes through its @exception hook. Encoding and
// resource errors describe problems with the input source itself and always
// propagate to the caller.
type Kind int

const (
	KindGeneric  Kind = iota // error
	KindSyntax               // syntax error
	KindCommand              // command error
	KindEncoding             // encoding error
	KindResource             // resource error
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "SyntaxError"
	case KindCommand:
		return "CommandError"
	case KindEncoding:
		return "EncodingError"
	case KindResource:
		return "ResourceError"
	default:
		return "Error"
	}
}

// Error represents an error with a kind and optional structured logging
// attributes. It implements both error and slog.LogValuer interfaces.
//
// Every Error remembers the sentinel it was derived from, so errors.Is
// matches a refined error (via [Error.With] or [Error.Wrap]) against its
// sentinel, and matches any error against the class sentinels [ErrKoiLang],
// [ErrSyntax] and [ErrCommand] by kind.
type Error struct {
	kind  Kind
	base  *Error
	msg   string
	err   error       // Wrapped error (for errors.Unwrap)
	attrs []slog.Attr // Attributes for structured logging
}

// Class sentinels.
var (
	ErrKoiLang = NewError("koilang error")
	ErrSyntax  = NewSyntaxError("syntax error")
	ErrCommand = NewCommandError("command error")
)

func newError(kind Kind, msg string) *Error {
	e := &Error{kind: kind, msg: msg}
	e.base = e

	return e
}

// NewError creates a new generic sentinel Error with a message.
func NewError(msg string) *Error { return newError(KindGeneric, msg) }

// NewSyntaxError creates a new sentinel Error of kind [KindSyntax].
func NewSyntaxError(msg string) *Error { return newError(KindSyntax, msg) }

// NewCommandError creates a new sentinel Error of kind [KindCommand].
func NewCommandError(msg string) *Error { return newError(KindCommand, msg) }

// NewEncodingError creates a new sentinel Error of kind [KindEncoding].
func NewEncodingError(msg string) *Error { return newError(KindEncoding, msg) }

// NewResourceError creates a new sentinel Error of kind [KindResource].
func NewResourceError(msg string) *Error { return newError(KindResource, msg) }

// WrapError wraps a standard error into an Error.
// If err already is (or wraps) an Error, that Error is returned.
func WrapError(err error) *Error {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Annotate attaches attributes to err without hiding it.
// If err is an Error, the result is err.With(attrs...); otherwise err is
// wrapped in a new Error of kind KindOf(err).
func Annotate(err error, attrs ...slog.Attr) *Error {
	if ee, ok := err.(*Error); ok {
		return ee.With(attrs...)
	}

	return &Error{kind: KindOf(err), err: err, attrs: attrs}
}

// AttrOf returns the value of the first attribute with the given key found
// on any Error in err's tree.
func AttrOf(err error, key string) (slog.Value, bool) {
	switch e := err.(type) {
	case nil:
		return slog.Value{}, false
	case *Error:
		if v, ok := e.Attr(key); ok {
			return v, true
		}

		return AttrOf(e.err, key)
	case interface{ Unwrap() []error }:
		for _, x := range e.Unwrap() {
			if v, ok := AttrOf(x, key); ok {
				return v, true
			}
		}

		return slog.Value{}, false
	default:
		return AttrOf(errors.Unwrap(err), key)
	}
}

// KindOf returns the kind of the first Error in err's chain, or
// [KindGeneric] if there is none.
func KindOf(err error) Kind {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee.kind
	}

	return KindGeneric
}

// IsKoiLang reports whether err is a syntax or command error.
func IsKoiLang(err error) bool { return errors.Is(err, ErrKoiLang) }

// Kind returns the kind of the error.
func (e *Error) Kind() Kind { return e.kind }

// Error implements the error interface.
func (e *Error) Error() string {
	// Build error message using the first available format,
	// depending on which fields are set:
	//
	//   1. "<msg>: <err>" // base and wrapped error both set
	//   2. "<msg>"        // wrapped error is nil
	//   3. "<err>"        // base error message is empty
	//   4. ""             // no fields are set
	part := make([]string, 0, 2)

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether the receiver derives from target, or whether target is
// one of the class sentinels matching the receiver's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	switch t {
	case ErrKoiLang:
		return e.kind == KindSyntax || e.kind == KindCommand
	case ErrSyntax:
		return e.kind == KindSyntax
	case ErrCommand:
		return e.kind == KindCommand
	}

	return e.base != nil && e.base == t.base
}

// Attr returns the value of the first attribute with the given key.
func (e *Error) Attr(key string) (slog.Value, bool) {
	for _, a := range e.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}

	return slog.Value{}, false
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+3)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.kind != KindGeneric {
		attrs = append(attrs, slog.String("kind", e.kind.String()))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		kind:  e.kind,
		base:  e.base,
		msg:   e.msg,
		err:   err,
		attrs: e.attrs, // Share attrs
	}
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{
		kind:  e.kind,
		base:  e.base,
		msg:   e.msg,
		err:   e.err,
		attrs: newAttrs,
	}
}
