package lexer

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"unicode"

	"github.com/ardnew/kola/log"
)

// Marker is the character that introduces command and annotation lines.
const Marker = '#'

// DefaultThreshold is the default number of markers introducing a command.
const DefaultThreshold = 1

// State selects how the first logical line of a source is read.
type State int

const (
	StateLine    State = iota // regular document
	StateCommand              // one command written without markers
	StateArgs                 // a bare argument list
)

// Config is the live, reconfigurable state of a [Lexer].
// Changes made with [Lexer.Configure] take effect on the next line.
type Config struct {
	// Encoding names the source encoding (IANA or WHATWG name).
	Encoding string
	// Threshold is the number of markers that introduces a command line.
	// One more introduces an annotation; fewer is text.
	Threshold int
	// NoLStrip preserves leading indentation of text lines.
	NoLStrip bool
	// Disabled stops iteration.
	Disabled bool
}

// Option configures a [Lexer].
type Option func(*Lexer)

// WithEncoding sets the source encoding.
func WithEncoding(name string) Option {
	return func(l *Lexer) { l.cfg.Encoding = name }
}

// WithThreshold sets the command threshold. Values below 1 are ignored.
func WithThreshold(n int) Option {
	return func(l *Lexer) {
		if n >= 1 {
			l.cfg.Threshold = n
		}
	}
}

// WithNoLStrip controls whether leading indentation of text is preserved.
func WithNoLStrip(keep bool) Option {
	return func(l *Lexer) { l.cfg.NoLStrip = keep }
}

// WithDisabled stops (or resumes) iteration.
func WithDisabled(disabled bool) Option {
	return func(l *Lexer) { l.cfg.Disabled = disabled }
}

// WithFilename sets the file name reported in token positions.
func WithFilename(name string) Option {
	return func(l *Lexer) { l.file = name }
}

// WithStart sets the state used for the first logical line.
func WithStart(s State) Option {
	return func(l *Lexer) { l.start = s }
}

// WithLogger sets the structured logger for trace-level debugging.
// If not provided, the logger is zero-valued and all logging is a no-op.
func WithLogger(logger log.Logger) Option {
	return func(l *Lexer) { l.logger = logger }
}

// Lexer converts a line-oriented KoiLang source into tokens.
//
// Tokens are produced lazily; at most one logical line of tokens is held
// at a time. A malformed line yields an error from [Lexer.Next], and the
// following call resumes at the next line.
type Lexer struct {
	cfg    Config
	start  State
	file   string
	logger log.Logger

	src    io.Reader
	rd     *bufio.Reader
	dec    decoder
	line   int          // physical lines consumed
	peeked *logicalLine // line read ahead while accumulating text
	queue  []Token      // pending tokens of the current line
	errs   []error      // errors deferred behind a finished text block
	eof    bool

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// New returns a Lexer reading from r.
// If r implements [io.Closer], [Lexer.Close] closes it.
func New(r io.Reader, opts ...Option) *Lexer {
	l := &Lexer{
		cfg: Config{
			Encoding:  DefaultEncoding,
			Threshold: DefaultThreshold,
		},
		src: r,
		rd:  bufio.NewReader(r),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// NewString returns a Lexer reading from s.
func NewString(s string, opts ...Option) *Lexer {
	return New(strings.NewReader(s), append([]Option{WithFilename("<string>")}, opts...)...)
}

// NewBytes returns a Lexer reading raw (possibly non-UTF-8) bytes.
func NewBytes(b []byte, opts ...Option) *Lexer {
	return New(bytes.NewReader(b), append([]Option{WithFilename("<bytes>")}, opts...)...)
}

// Open returns a Lexer reading the named file.
// The file is closed by [Lexer.Close].
func Open(path string, opts ...Option) (*Lexer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrRead.With(slog.String("path", path)).Wrap(err)
	}

	return New(f, append([]Option{WithFilename(path)}, opts...)...), nil
}

// Config returns a copy of the current configuration.
func (l *Lexer) Config() Config { return l.cfg }

// Configure applies options to a live lexer.
// Tokens already produced for the current line are not affected.
func (l *Lexer) Configure(opts ...Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
}

// Filename returns the file name reported in positions.
func (l *Lexer) Filename() string { return l.file }

// Position returns the position just after the last consumed line.
func (l *Lexer) Position() Position {
	return Position{File: l.file, Line: l.line + 1, Column: 1}
}

// Closed reports whether Close has been called.
func (l *Lexer) Closed() bool { return l.closed.Load() }

// Close releases the underlying source. Subsequent calls to [Lexer.Next]
// fail with [ErrClosed]. Close is idempotent.
func (l *Lexer) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)

		if c, ok := l.src.(io.Closer); ok {
			l.closeErr = c.Close()
		}
	})

	return l.closeErr
}

// Next returns the next token. At end of stream it returns a token of
// kind [EOF] and a nil error, repeatedly.
func (l *Lexer) Next() (Token, error) {
	if l.closed.Load() {
		return Token{}, ErrClosed
	}

	if len(l.queue) > 0 {
		tok := l.queue[0]
		l.queue = l.queue[1:]

		return tok, nil
	}

	if len(l.errs) > 0 {
		err := l.errs[0]
		l.errs = l.errs[1:]

		return Token{}, err
	}

	for {
		if l.cfg.Disabled || (l.eof && l.peeked == nil) {
			return Token{Kind: EOF, Pos: l.Position()}, nil
		}

		ln, err := l.readLogical()
		if errors.Is(err, io.EOF) {
			l.eof = true

			continue
		}

		if err != nil {
			return Token{}, l.recover(err)
		}

		toks, err := l.lexLine(ln)
		if err != nil {
			return Token{}, l.recover(err)
		}

		if len(toks) == 0 {
			continue
		}

		l.queue = toks[1:]

		return toks[0], nil
	}
}

// All returns an iterator over the remaining tokens, excluding EOF.
// Errors are yielded in place; iteration continues after a recoverable
// error and stops once the lexer is closed.
func (l *Lexer) All() iter.Seq2[Token, error] {
	return func(yield func(Token, error) bool) {
		for {
			tok, err := l.Next()
			if err != nil {
				if !yield(tok, err) || errors.Is(err, ErrClosed) {
					return
				}

				continue
			}

			if tok.Kind == EOF {
				return
			}

			if !yield(tok, nil) {
				return
			}
		}
	}
}

// recover discards any partial line state and returns err unchanged.
func (l *Lexer) recover(err error) error {
	l.queue = nil

	if pos, ok := PositionOf(err); ok {
		l.logger.Trace("lexer recovered",
			slog.Any("position", pos),
			slog.Any("error", err))
	}

	return err
}

// lexLine tokenizes one logical line according to the current state.
func (l *Lexer) lexLine(ln *logicalLine) ([]Token, error) {
	start := l.start
	l.start = StateLine

	switch start {
	case StateCommand:
		s := newScanner(l, ln, ln.skipSpace(0))

		return s.command(l.cfg.Threshold)

	case StateArgs:
		s := newScanner(l, ln, ln.skipSpace(0))

		return s.arguments()
	}

	at := ln.skipSpace(0)
	if at == len(ln.src) {
		return nil, nil // blank
	}

	k := ln.markers(at)

	switch {
	case k == l.cfg.Threshold:
		s := newScanner(l, ln, ln.skipSpace(at+k))

		return s.command(k)

	case k > l.cfg.Threshold:
		return []Token{l.annotation(ln, at, k)}, nil

	default:
		return l.text(ln)
	}
}

func (l *Lexer) annotation(ln *logicalLine, at, k int) Token {
	body := strings.TrimFunc(
		string(ln.src[at+l.cfg.Threshold+1:]),
		unicode.IsSpace,
	)

	return Token{
		Kind:  Annotation,
		Text:  body,
		Value: body,
		Depth: k,
		Pos:   ln.pos[at],
	}
}

// text accumulates consecutive text lines starting with first into one
// block. The block ends at a blank line, a command or annotation line, or
// the end of the stream.
func (l *Lexer) text(first *logicalLine) ([]Token, error) {
	lines := []string{l.textOf(first)}

	for {
		ln, err := l.readLogical()
		if errors.Is(err, io.EOF) {
			l.eof = true

			break
		}

		if err != nil {
			l.errs = append(l.errs, err)

			break
		}

		at := ln.skipSpace(0)
		if at == len(ln.src) {
			break
		}

		if ln.markers(at) >= l.cfg.Threshold {
			l.peeked = ln

			break
		}

		lines = append(lines, l.textOf(ln))
	}

	block := strings.Join(lines, "\n")
	pos := first.pos[0]

	if v, ok := parseNumber(strings.TrimSpace(block)); ok {
		return []Token{{Kind: Number, Text: block, Value: v, Pos: pos}}, nil
	}

	return []Token{{Kind: Text, Text: block, Value: block, Pos: pos}}, nil
}

func (l *Lexer) textOf(ln *logicalLine) string {
	s := string(ln.src)
	if !l.cfg.NoLStrip {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
	}

	return strings.TrimRightFunc(s, unicode.IsSpace)
}

// logicalLine is one or more physical lines joined by continuation.
// pos[i] is the position of src[i].
type logicalLine struct {
	src []rune
	pos []Position
	end Position
}

func (ln *logicalLine) skipSpace(i int) int {
	for i < len(ln.src) && (ln.src[i] == ' ' || ln.src[i] == '\t' ||
		ln.src[i] == '\f' || ln.src[i] == '\v' || ln.src[i] == '\r') {
		i++
	}

	return i
}

func (ln *logicalLine) markers(i int) int {
	k := 0
	for i+k < len(ln.src) && ln.src[i+k] == Marker {
		k++
	}

	return k
}

func (ln *logicalLine) append(s string, line int) {
	col := 1
	for _, r := range s {
		ln.src = append(ln.src, r)
		ln.pos = append(ln.pos, Position{Line: line, Column: col})
		col++
	}

	ln.end = Position{Line: line, Column: col}
}

// readLogical returns the next logical line, splicing physical lines
// that end in a backslash.
func (l *Lexer) readLogical() (*logicalLine, error) {
	if l.peeked != nil {
		ln := l.peeked
		l.peeked = nil

		return ln, nil
	}

	s, err := l.readPhysical()
	if err != nil {
		return nil, err
	}

	ln := &logicalLine{}
	ln.append(s, l.line)

	for strings.HasSuffix(s, `\`) {
		ln.src = ln.src[:len(ln.src)-1]
		ln.pos = ln.pos[:len(ln.pos)-1]

		s, err = l.readPhysical()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, err
		}

		ln.append(s, l.line)
	}

	for i := range ln.pos {
		ln.pos[i].File = l.file
	}

	ln.end.File = l.file

	return ln, nil
}

// readPhysical reads and decodes one physical line without its terminator.
func (l *Lexer) readPhysical() (string, error) {
	raw, err := l.rd.ReadBytes('\n')
	if len(raw) == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			return "", io.EOF
		}

		if l.closed.Load() {
			return "", ErrClosed
		}

		return "", ErrRead.Wrap(err)
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return "", ErrRead.Wrap(err)
	}

	l.line++
	raw = bytes.TrimSuffix(raw, []byte{'\n'})
	raw = bytes.TrimSuffix(raw, []byte{'\r'})

	if l.dec.name != l.cfg.Encoding {
		dec, err := lookupEncoding(l.cfg.Encoding)
		if err != nil {
			return "", err
		}

		l.dec = dec
	}

	return l.dec.decode(raw, l.line == 1, Position{File: l.file, Line: l.line, Column: 1})
}
