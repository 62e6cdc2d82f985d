package parser

import (
	"strings"

	"github.com/ardnew/kola/lexer"
)

// Names of the virtual commands receiving non-command lines.
const (
	TextCommand       = "@text"
	NumberCommand     = lexer.NumberCommand
	AnnotationCommand = "@annotation"
)

// Statement is one assembled command: a name with its positional and
// keyword arguments.
type Statement struct {
	Name    string
	Args    []Value
	Kwargs  Dict
	AliasOf string // canonical name when Name is an alias
	Pos     lexer.Position
}

// Arg returns the i'th positional argument.
func (s *Statement) Arg(i int) (Value, bool) {
	if i < 0 || i >= len(s.Args) {
		return Value{}, false
	}

	return s.Args[i], true
}

// Kwarg returns the keyword argument stored under name.
func (s *Statement) Kwarg(name string) (Value, bool) { return s.Kwargs.Get(name) }

// String renders s as a single KoiLang line using one marker.
func (s *Statement) String() string {
	switch s.Name {
	case TextCommand:
		if v, ok := s.Arg(0); ok {
			if str, ok := v.Str(); ok {
				return str
			}
		}

	case NumberCommand:
		if len(s.Args) == 1 && len(s.Kwargs) == 0 {
			return s.Args[0].String()
		}

	case AnnotationCommand:
		if v, ok := s.Arg(0); ok {
			if str, ok := v.Str(); ok {
				return "##" + str
			}
		}
	}

	var b strings.Builder

	b.WriteByte(lexer.Marker)
	b.WriteString(s.Name)
	writeArgs(&b, s.Args, s.Kwargs)

	return b.String()
}

// FormatArgs renders positional and keyword arguments, each preceded by a
// space.
func FormatArgs(args []Value, kwargs Dict) string {
	var b strings.Builder
	writeArgs(&b, args, kwargs)

	return b.String()
}

func writeArgs(b *strings.Builder, args []Value, kwargs Dict) {
	for _, v := range args {
		b.WriteByte(' ')

		if v.Kind() == KindList || v.Kind() == KindDict {
			b.WriteString(Quote(v.String()))

			continue
		}

		b.WriteString(v.String())
	}

	for _, f := range kwargs {
		b.WriteByte(' ')
		b.WriteString(f.Name)
		b.WriteByte('(')
		b.WriteString(f.Value.String())
		b.WriteByte(')')
	}
}
