package lexer

import (
	"fmt"
	"log/slog"
	"strconv"
)

// Kind identifies the syntactic category of a [Token].
type Kind int

const (
	EOF        Kind = iota // end of stream
	Command                // command head
	Text                   // text block
	Number                 // bare number line
	Annotation             // annotation line
	Ident                  // bareword argument
	String                 // quoted string
	Bytes                  // byte string
	Int                    // integer literal
	Float                  // floating point literal
	LParen                 // (
	RParen                 // )
	Comma                  // ,
	Colon                  // :
	End                    // end of command
)

var kindName = [...]string{
	EOF:        "EOF",
	Command:    "CMD",
	Text:       "TEXT",
	Number:     "NUMBER",
	Annotation: "ANNOTATION",
	Ident:      "IDENT",
	String:     "STRING",
	Bytes:      "BYTES",
	Int:        "INT",
	Float:      "FLOAT",
	LParen:     "LPAREN",
	RParen:     "RPAREN",
	Comma:      "COMMA",
	Colon:      "COLON",
	End:        "END",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindName) {
		return kindName[k]
	}

	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Literal reports whether tokens of kind k carry an argument value.
func (k Kind) Literal() bool {
	switch k {
	case Ident, String, Bytes, Int, Float:
		return true
	default:
		return false
	}
}

// Position identifies a location in a source.
// Line and Column are 1-based; Column counts runes.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	file := p.File
	if file == "" {
		file = "<input>"
	}

	return file + ":" + strconv.Itoa(p.Line) + ":" + strconv.Itoa(p.Column)
}

// LogValue implements [slog.LogValuer].
func (p Position) LogValue() slog.Value { return slog.StringValue(p.String()) }

// Token is a single lexical element.
//
// Text holds the command name, bareword, text block or annotation content,
// and the raw source of every other literal. Value holds the decoded
// literal: string for Ident, String, Text and Annotation; []byte for Bytes;
// int64 for Int; float64 for Float; and int64 or float64 for Number.
// Depth is the marker count of a Command or Annotation line.
type Token struct {
	Kind  Kind
	Text  string
	Value any
	Depth int
	Pos   Position
}

func (t Token) String() string {
	switch t.Kind {
	case EOF, End, LParen, RParen, Comma, Colon:
		return t.Kind.String()
	case Bytes:
		return fmt.Sprintf("%s(b%q)", t.Kind, t.Value)
	case Int, Float, Number:
		return fmt.Sprintf("%s(%v)", t.Kind, t.Value)
	default:
		return fmt.Sprintf("%s(%q)", t.Kind, t.Text)
	}
}
