package lexer

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NumberCommand is the command name emitted for a command line whose head
// is a numeric literal. The number itself becomes the first argument.
const NumberCommand = "@number"

// scanner tokenizes the remainder of a command line.
type scanner struct {
	l       *Lexer
	ln      *logicalLine
	i       int
	depth   int
	lastEnd int // index just past the last emitted token
	toks    []Token
}

func newScanner(l *Lexer, ln *logicalLine, at int) *scanner {
	return &scanner{l: l, ln: ln, i: at, lastEnd: -1}
}

func (s *scanner) eol() bool { return s.i >= len(s.ln.src) }

func (s *scanner) peek() rune { return s.peekAt(0) }

func (s *scanner) peekAt(n int) rune {
	if s.i+n >= len(s.ln.src) {
		return 0
	}

	return s.ln.src[s.i+n]
}

func (s *scanner) position() Position {
	if s.i < len(s.ln.pos) {
		return s.ln.pos[s.i]
	}

	return s.ln.end
}

func (s *scanner) emit(kind Kind, text string, value any, pos Position) {
	s.toks = append(s.toks, Token{Kind: kind, Text: text, Value: value, Pos: pos})
	s.lastEnd = s.i
}

func (s *scanner) skipSpace() {
	for !s.eol() {
		switch s.peek() {
		case ' ', '\t', '\n', '\r', '\f', '\v':
			s.i++
		default:
			return
		}
	}
}

// more appends the next logical line to an unfinished command.
func (s *scanner) more() error {
	next, err := s.l.readLogical()
	if errors.Is(err, io.EOF) {
		s.l.eof = true

		return errorAt(ErrUnbalancedParen, s.ln.end, "unclosed '('")
	}

	if err != nil {
		return err
	}

	s.ln.src = append(s.ln.src, '\n')
	s.ln.pos = append(s.ln.pos, s.ln.end)
	s.ln.src = append(s.ln.src, next.src...)
	s.ln.pos = append(s.ln.pos, next.pos...)
	s.ln.end = next.end

	return nil
}

// command scans a command head and its arguments.
func (s *scanner) command(depth int) ([]Token, error) {
	pos := s.position()

	switch r := s.peek(); {
	case isIdentStart(r):
		name := s.ident()
		s.emit(Command, name, name, pos)

	case s.numberStart():
		s.toks = append(s.toks, Token{Kind: Command, Text: NumberCommand, Value: NumberCommand, Pos: pos})

	case s.eol():
		return nil, errorAt(ErrMissingName, pos, "expected command name")

	default:
		return nil, errorAt(ErrMissingName, pos, "expected command name, found %q", r)
	}

	s.toks[0].Depth = depth

	return s.arguments()
}

// arguments scans whitespace-separated arguments up to the end of the
// logical line, reading further lines while a parenthesis is open.
func (s *scanner) arguments() ([]Token, error) {
	for {
		s.skipSpace()

		if s.eol() {
			if s.depth == 0 {
				break
			}

			if err := s.more(); err != nil {
				return nil, err
			}

			continue
		}

		pos := s.position()
		r := s.peek()

		var err error

		switch {
		case r == '(':
			err = s.open(pos)

		case r == ')':
			if s.depth == 0 {
				return nil, errorAt(ErrUnbalancedParen, pos, "unexpected ')'")
			}

			s.i++
			s.depth--
			s.emit(RParen, ")", nil, pos)

		case r == ',' || r == ':':
			if s.depth == 0 {
				return nil, errorAt(ErrUnknownSymbol, pos, "%q outside argument list", r)
			}

			s.i++

			if r == ',' {
				s.emit(Comma, ",", nil, pos)
			} else {
				s.emit(Colon, ":", nil, pos)
			}

		case r == '"' || r == '\'':
			err = s.str(pos)

		case (r == 'b' || r == 'B') && (s.peekAt(1) == '"' || s.peekAt(1) == '\''):
			err = s.bytes(pos)

		case s.numberStart():
			err = s.number(pos)

		case isIdentStart(r):
			w := s.ident()
			s.emit(Ident, w, w, pos)

		default:
			err = errorAt(ErrUnknownSymbol, pos, "%q", r)
		}

		if err != nil {
			return nil, err
		}
	}

	s.emit(End, "", nil, s.ln.end)

	return s.toks, nil
}

// open scans '(' which must directly follow a bareword.
func (s *scanner) open(pos Position) error {
	if n := len(s.toks); n > 0 && s.lastEnd == s.i {
		switch prev := s.toks[n-1]; {
		case prev.Kind == Ident:
			s.i++
			s.depth++
			s.emit(LParen, "(", nil, pos)

			return nil

		case prev.Kind.Literal():
			return errorAt(ErrLiteralCall, pos, "%s", prev.Text)
		}
	}

	return errorAt(ErrUnknownSymbol, pos, "unexpected '('")
}

func (s *scanner) ident() string {
	start := s.i
	for !s.eol() && isIdentPart(s.peek()) {
		s.i++
	}

	return string(s.ln.src[start:s.i])
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return isIdentStart(r) || unicode.IsDigit(r) }

func (s *scanner) numberStart() bool {
	return isNumberStart(s.ln.src, s.i)
}

func isNumberStart(src []rune, i int) bool {
	at := func(n int) rune {
		if i+n < len(src) {
			return src[i+n]
		}

		return 0
	}

	r := at(0)
	if r == '+' || r == '-' {
		i++
		r = at(0)
	}

	return isDigit(r) || (r == '.' && isDigit(at(1)))
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (s *scanner) number(pos Position) error {
	start := s.i

	end, ok := scanNumber(s.ln.src, s.i)
	s.i = end

	if !ok || (!s.eol() && (isIdentPart(s.peek()) || s.peek() == '.')) {
		for !s.eol() && (isIdentPart(s.peek()) || s.peek() == '.') {
			s.i++
		}

		return errorAt(ErrInvalidNumber, pos, "%q", string(s.ln.src[start:s.i]))
	}

	text := string(s.ln.src[start:end])

	v, err := convertNumber(text)
	if err != nil {
		return errorAt(ErrInvalidNumber, pos, "%q: %v", text, err)
	}

	if _, isFloat := v.(float64); isFloat {
		s.emit(Float, text, v, pos)
	} else {
		s.emit(Int, text, v, pos)
	}

	return nil
}

// scanNumber returns the index just past a numeric literal starting at i.
// ok is false when the literal is malformed (e.g. a bare base prefix or an
// exponent without digits).
func scanNumber(src []rune, i int) (end int, ok bool) {
	at := func(j int) rune {
		if j < len(src) {
			return src[j]
		}

		return 0
	}

	if r := at(i); r == '+' || r == '-' {
		i++
	}

	if at(i) == '0' {
		var valid func(rune) bool

		switch at(i + 1) {
		case 'x', 'X':
			valid = func(r rune) bool {
				return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
			}
		case 'b', 'B':
			valid = func(r rune) bool { return r == '0' || r == '1' }
		case 'o', 'O':
			valid = func(r rune) bool { return r >= '0' && r <= '7' }
		}

		if valid != nil {
			i += 2
			start := i

			for valid(at(i)) {
				i++
			}

			return i, i > start
		}
	}

	digits := 0
	for isDigit(at(i)) {
		i++
		digits++
	}

	if at(i) == '.' {
		i++

		for isDigit(at(i)) {
			i++
			digits++
		}
	}

	if digits == 0 {
		return i, false
	}

	if r := at(i); r == 'e' || r == 'E' {
		i++

		if r := at(i); r == '+' || r == '-' {
			i++
		}

		exp := 0
		for isDigit(at(i)) {
			i++
			exp++
		}

		if exp == 0 {
			return i, false
		}
	}

	return i, true
}

// convertNumber converts a literal accepted by scanNumber to int64 or
// float64.
func convertNumber(text string) (any, error) {
	body := strings.TrimLeft(text, "+-")
	sign := text[:len(text)-len(body)]

	if len(body) > 1 && body[0] == '0' {
		base := 0

		switch body[1] {
		case 'x', 'X':
			base = 16
		case 'b', 'B':
			base = 2
		case 'o', 'O':
			base = 8
		}

		if base != 0 {
			return strconv.ParseInt(sign+body[2:], base, 64)
		}
	}

	if strings.ContainsAny(body, ".eE") {
		return strconv.ParseFloat(text, 64)
	}

	return strconv.ParseInt(text, 10, 64)
}

// parseNumber reports whether s is exactly one numeric literal.
func parseNumber(s string) (any, bool) {
	src := []rune(s)
	if !isNumberStart(src, 0) {
		return nil, false
	}

	end, ok := scanNumber(src, 0)
	if !ok || end != len(src) {
		return nil, false
	}

	v, err := convertNumber(s)
	if err != nil {
		return nil, false
	}

	return v, true
}

func (s *scanner) str(pos Position) error {
	start := s.i

	var b strings.Builder

	err := s.quoted(pos, func(r rune, _ bool) { b.WriteRune(r) })
	if err != nil {
		return err
	}

	s.emit(String, string(s.ln.src[start:s.i]), b.String(), pos)

	return nil
}

func (s *scanner) bytes(pos Position) error {
	start := s.i
	s.i++ // b prefix

	var b []byte

	err := s.quoted(pos, func(r rune, raw bool) {
		if raw {
			b = append(b, byte(r))
		} else {
			b = utf8.AppendRune(b, r)
		}
	})
	if err != nil {
		return err
	}

	if b == nil {
		b = []byte{}
	}

	s.emit(Bytes, string(s.ln.src[start:s.i]), b, pos)

	return nil
}

// quoted scans a quoted body starting at the opening quote and calls put
// for every decoded character. raw marks a \xHH escape.
func (s *scanner) quoted(pos Position, put func(r rune, raw bool)) error {
	quote := s.peek()
	s.i++

	for {
		if s.eol() || s.peek() == '\n' {
			return errorAt(ErrUnterminatedString, pos, "missing closing %c", quote)
		}

		r := s.peek()
		s.i++

		switch r {
		case quote:
			return nil

		case '\\':
			esc, raw, err := s.escape()
			if err != nil {
				return err
			}

			put(esc, raw)

		default:
			put(r, false)
		}
	}
}

var simpleEscape = map[rune]rune{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'0':  0,
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'v':  '\v',
	'\\': '\\',
	'"':  '"',
	'\'': '\'',
}

// escape decodes the escape sequence following a backslash.
func (s *scanner) escape() (r rune, raw bool, err error) {
	pos := s.position()
	if s.eol() {
		return 0, false, errorAt(ErrInvalidEscape, pos, "trailing backslash")
	}

	c := s.peek()
	s.i++

	if v, ok := simpleEscape[c]; ok {
		return v, false, nil
	}

	width := map[rune]int{'x': 2, 'u': 4, 'U': 8}[c]
	if width == 0 {
		return 0, false, errorAt(ErrInvalidEscape, pos, `\%c`, c)
	}

	if s.i+width > len(s.ln.src) {
		return 0, false, errorAt(ErrInvalidEscape, pos, `\%c: too short`, c)
	}

	hex := string(s.ln.src[s.i : s.i+width])

	n, perr := strconv.ParseUint(hex, 16, 32)
	if perr != nil || (c != 'x' && !utf8.ValidRune(rune(n))) {
		return 0, false, errorAt(ErrInvalidEscape, pos, `\%c%s`, c, hex)
	}

	s.i += width

	return rune(n), c == 'x', nil
}
