package writer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/parser"
)

func TestWriter_Forms(t *testing.T) {
	var b strings.Builder

	w := New(&b, WithThreshold(2), WithIndent("  "))

	_ = w.Command("cmd", []parser.Value{parser.StringValue("a b"), parser.IntValue(1)},
		parser.Dict{{Name: "k", Value: parser.FloatValue(2)}})
	w.Indent()
	_ = w.Text("first\nsecond")
	_ = w.Text("third")
	_ = w.Annotation("note")
	_ = w.Number(parser.IntValue(3), nil, nil)
	w.Dedent()
	w.Dedent()
	_ = w.Newline()

	if err := w.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := strings.Join([]string{
		`##cmd "a b" 1 k(2.0)`,
		`  first`,
		`  second`,
		``,
		`  third`,
		`  ### note`,
		`  ##3`,
		``,
		``,
	}, "\n")
	if diff := cmp.Diff(want, b.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	if w.Level() != 0 {
		t.Errorf("level = %d, want 0", w.Level())
	}
}

type failWriter struct{ n int }

func (f *failWriter) Write(p []byte) (int, error) {
	if f.n == 0 {
		return 0, errors.New("disk full")
	}

	f.n--

	return len(p), nil
}

func TestWriter_StickyError(t *testing.T) {
	w := New(&failWriter{n: 1})

	if err := w.Command("ok", nil, nil); err != nil {
		t.Fatalf("first write failed: %v", err)
	}

	err := w.Command("fail", nil, nil)
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("error = %v, want %v", err, ErrWrite)
	}

	if err := w.Text("later"); !errors.Is(err, ErrWrite) {
		t.Errorf("later write error = %v, want %v", err, ErrWrite)
	}
}

// statements parses src without dispatching anything.
func statements(t *testing.T, src string) []*parser.Statement {
	t.Helper()

	p := parser.New(lexer.NewString(src), parser.Table{})

	var out []*parser.Statement

	for {
		st, err := p.Next(context.Background())
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.Fatalf("parse: %v", err)
			}

			return out
		}

		out = append(out, st)
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	src := `#scene "The Beginning" id(1) mood(calm, bright)
Text line one
text line two

Another block
## an annotation
42
#2 fast
#bytes b"\x00\xff" weight(1.5)
`

	want := statements(t, src)

	var b strings.Builder

	w := New(&b)
	for _, st := range want {
		if err := w.Statement(st); err != nil {
			t.Fatalf("Statement: %v", err)
		}
	}

	got := statements(t, b.String())

	opts := cmpopts.IgnoreFields(parser.Statement{}, "Pos")
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s\noutput:\n%s", diff, b.String())
	}
}
