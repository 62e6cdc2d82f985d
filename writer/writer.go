package writer

import (
	"io"
	"strings"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/pkg"
)

// ErrWrite reports a failure of the underlying writer.
var ErrWrite = pkg.NewResourceError("write failed")

// DefaultIndent is the text written once per indentation level.
const DefaultIndent = "    "

// Option configures a [Writer].
type Option func(*Writer)

// WithThreshold sets the number of markers written before commands.
func WithThreshold(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.threshold = n
		}
	}
}

// WithIndent sets the text written once per indentation level.
func WithIndent(s string) Option {
	return func(w *Writer) { w.indent = s }
}

// Writer writes statements as KoiLang lines.
//
// The first write error is sticky: later writes do nothing and return it.
type Writer struct {
	out       io.Writer
	threshold int
	indent    string
	level     int
	text      bool // last line belongs to a text block
	err       error
}

// New returns a Writer writing to w.
func New(w io.Writer, opts ...Option) *Writer {
	wr := &Writer{out: w, threshold: lexer.DefaultThreshold, indent: DefaultIndent}

	for _, opt := range opts {
		if opt != nil {
			opt(wr)
		}
	}

	return wr
}

// Threshold returns the number of markers written before commands.
func (w *Writer) Threshold() int { return w.threshold }

// Level returns the current indentation level.
func (w *Writer) Level() int { return w.level }

// Indent increases the indentation level.
func (w *Writer) Indent() { w.level++ }

// SetLevel sets the indentation level. Negative levels are treated as zero.
func (w *Writer) SetLevel(n int) { w.level = max(n, 0) }

// Dedent decreases the indentation level. It stops at zero.
func (w *Writer) Dedent() {
	if w.level > 0 {
		w.level--
	}
}

// Err returns the first write error.
func (w *Writer) Err() error { return w.err }

func (w *Writer) line(s string) error {
	if w.err != nil {
		return w.err
	}

	var b strings.Builder

	if s != "" {
		b.WriteString(strings.Repeat(w.indent, w.level))
		b.WriteString(s)
	}

	b.WriteByte('\n')

	if _, err := io.WriteString(w.out, b.String()); err != nil {
		w.err = ErrWrite.Wrap(err)
	}

	return w.err
}

func (w *Writer) markers(n int) string {
	return strings.Repeat(string(lexer.Marker), n)
}

// Command writes a command line.
func (w *Writer) Command(name string, args []parser.Value, kwargs parser.Dict) error {
	w.text = false

	return w.line(w.markers(w.threshold) + name + parser.FormatArgs(args, kwargs))
}

// Number writes a numeric command: the number takes the place of the
// command name.
func (w *Writer) Number(n parser.Value, args []parser.Value, kwargs parser.Dict) error {
	w.text = false

	return w.line(w.markers(w.threshold) + n.String() + parser.FormatArgs(args, kwargs))
}

// Annotation writes an annotation line.
func (w *Writer) Annotation(s string) error {
	w.text = false

	return w.line(w.markers(w.threshold+1) + " " + s)
}

// Text writes a text block, one indented line per line of s. Consecutive
// blocks are separated by a blank line.
func (w *Writer) Text(s string) error {
	if w.text {
		if err := w.line(""); err != nil {
			return err
		}
	}

	w.text = true

	for l := range strings.SplitSeq(s, "\n") {
		if err := w.line(l); err != nil {
			return err
		}
	}

	return nil
}

// Newline writes an empty line.
func (w *Writer) Newline() error {
	w.text = false

	return w.line("")
}

// Statement writes st using the form matching its command name.
func (w *Writer) Statement(st *parser.Statement) error {
	switch st.Name {
	case parser.TextCommand:
		if s, ok := argString(st); ok {
			return w.Text(s)
		}

	case parser.AnnotationCommand:
		if s, ok := argString(st); ok {
			return w.Annotation(s)
		}

	case parser.NumberCommand:
		if len(st.Args) > 0 {
			return w.Number(st.Args[0], st.Args[1:], st.Kwargs)
		}
	}

	return w.Command(st.Name, st.Args, st.Kwargs)
}

func argString(st *parser.Statement) (string, bool) {
	v, ok := st.Arg(0)
	if !ok || len(st.Args) != 1 {
		return "", false
	}

	return v.Str()
}
