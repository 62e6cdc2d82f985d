package lexer

import (
	"fmt"
	"log/slog"

	"github.com/ardnew/kola/pkg"
)

// Syntax errors. Each is returned with a "position" attribute.
var (
	ErrUnknownSymbol      = pkg.NewSyntaxError("unknown symbol")
	ErrMissingName        = pkg.NewSyntaxError("missing command name")
	ErrUnterminatedString = pkg.NewSyntaxError("unterminated string")
	ErrInvalidEscape      = pkg.NewSyntaxError("invalid escape sequence")
	ErrInvalidNumber      = pkg.NewSyntaxError("invalid number literal")
	ErrUnbalancedParen    = pkg.NewSyntaxError("unbalanced parenthesis")
	ErrLiteralCall        = pkg.NewSyntaxError("literal followed by argument list")
)

// Source errors.
var (
	ErrEncoding        = pkg.NewEncodingError("invalid encoded input")
	ErrUnknownEncoding = pkg.NewEncodingError("unknown encoding")
	ErrClosed          = pkg.NewResourceError("lexer closed")
	ErrRead            = pkg.NewResourceError("read failed")
)

const positionKey = "position"

// errorAt refines a sentinel with a position and a detail message.
func errorAt(sentinel *pkg.Error, pos Position, format string, args ...any) error {
	return sentinel.
		With(slog.Any(positionKey, pos)).
		Wrap(fmt.Errorf("%s: "+format, append([]any{pos}, args...)...))
}

// ErrorAt refines sentinel with a position and a formatted detail.
func ErrorAt(sentinel *pkg.Error, pos Position, format string, args ...any) error {
	return errorAt(sentinel, pos, format, args...)
}

// WithPosition attaches pos to err unless err already carries a position.
func WithPosition(err error, pos Position) error {
	if err == nil {
		return nil
	}

	if _, ok := PositionOf(err); ok {
		return err
	}

	return pkg.Annotate(err, slog.Any(positionKey, pos))
}

// PositionOf returns the source position attached to err, if any.
func PositionOf(err error) (Position, bool) {
	v, ok := pkg.AttrOf(err, positionKey)
	if !ok {
		return Position{}, false
	}

	pos, ok := v.Any().(Position)

	return pos, ok
}
