package debug

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/kola/klvm"
	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/parser"
)

func TestCommands(t *testing.T) {
	var out bytes.Buffer

	d := &Commands{Out: &out}

	src := "#cmd a 1 k(v)\ntext here\n#bad \"open\n#last\n"
	if err := d.Run(context.Background(), lexer.NewString(src)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), out.String())
	}

	want := []string{
		"## [DEBUG] command cmd with args [a, 1] kwds {k: v}",
		`## [DEBUG] command @text with args ["text here"] kwds {}`,
		"## [ERROR] ",
		"## [DEBUG] command last with args [] kwds {}",
	}

	for i, w := range want {
		if !strings.HasPrefix(lines[i], w) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], w)
		}
	}

	if !strings.Contains(lines[2], "unterminated string") {
		t.Errorf("error line = %q", lines[2])
	}
}

func traceLang(ran *bool) *klvm.Class {
	env := klvm.NewEnv("E").
		Entry("in", nil).
		Exit("out", nil)

	return klvm.NewLang("L").
		Command("hi", func(context.Context, *klvm.Call) (any, error) {
			*ran = true

			return nil, nil
		}).
		Env(env)
}

func TestTracer(t *testing.T) {
	var (
		out bytes.Buffer
		ran bool
	)

	rt, err := klvm.New(traceLang(&ran), klvm.WithHandlers(&Tracer{Out: &out}))
	if err != nil {
		t.Fatal(err)
	}

	if err := rt.ParseString(context.Background(), "#hi\n#in\n#out\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := strings.Join([]string{
		"## [DEBUG] Run command: @start (L)",
		"## [DEBUG] Run command: hi (L)",
		"## [DEBUG] Run command: in (E)",
		"## [DEBUG] Push env: E",
		"## [DEBUG] Pop env: E",
		"## [DEBUG] Run command: out (E)",
		"## [DEBUG] Run command: @end (L)",
	}, "\n") + "\n"

	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}

	if !ran {
		t.Errorf("command did not run")
	}
}

func TestTracer_DryAndDisabled(t *testing.T) {
	var (
		out bytes.Buffer
		ran bool
		on  bool
	)

	tr := &Tracer{Out: &out, Dry: true, Enabled: func() bool { return on }}

	rt, err := klvm.New(traceLang(&ran), klvm.WithHandlers(tr))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	if _, err := rt.ParseCommand(ctx, "hi"); err != nil || !ran {
		t.Fatalf("disabled tracer: ran = %v, err = %v", ran, err)
	}

	if out.Len() != 0 {
		t.Errorf("disabled tracer printed %q", out.String())
	}

	on, ran = true, false

	if _, err := rt.ParseCommand(ctx, "hi"); err != nil || ran {
		t.Errorf("dry tracer: ran = %v, err = %v", ran, err)
	}
}

func TestDumpTokens(t *testing.T) {
	src := "#cmd x 1\nsome text\n#bad \"open\n"

	tests := []struct {
		format Format
		decode func([]byte, any) error
	}{
		{FormatJSON, json.Unmarshal},
		{FormatYAML, func(b []byte, v any) error { return yaml.Unmarshal(b, v) }},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			var out bytes.Buffer

			err := DumpTokens(context.Background(), &out, lexer.NewString(src),
				Options{Format: tt.format, Indent: 2})
			if !errors.Is(err, lexer.ErrUnterminatedString) {
				t.Errorf("error = %v, want the syntax error", err)
			}

			var recs []TokenRecord
			if err := tt.decode(out.Bytes(), &recs); err != nil {
				t.Fatalf("decode: %v\n%s", err, out.String())
			}

			var kinds []string
			for _, r := range recs {
				kinds = append(kinds, r.Kind)
			}

			want := []string{"CMD", "IDENT", "INT", "END", "TEXT", "ERROR"}
			if diff := cmp.Diff(want, kinds); diff != "" {
				t.Errorf("kinds mismatch (-want +got):\n%s", diff)
			}

			if recs[4].Text != "some text" {
				t.Errorf("text = %q", recs[4].Text)
			}
		})
	}
}

func TestDumpTokens_Text(t *testing.T) {
	var out bytes.Buffer

	err := DumpTokens(context.Background(), &out, lexer.NewString("#cmd\n"), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q, want 2 lines", out.String())
	}

	if !strings.HasSuffix(lines[0], "\tCMD(\"cmd\")") || !strings.HasSuffix(lines[1], "\tEND") {
		t.Errorf("output = %q", lines)
	}
}

func TestDumpStatements(t *testing.T) {
	src := "#title \"A Story\" part(1)\nOnce upon a time.\n## note\n#bad \"open\n#end\n"

	var out bytes.Buffer

	p := parser.New(lexer.NewString(src), parser.Table{})

	err := DumpStatements(context.Background(), &out, p, Options{})
	if !errors.Is(err, lexer.ErrUnterminatedString) {
		t.Errorf("error = %v, want the syntax error", err)
	}

	lines := strings.Split(out.String(), "\n")
	want := []string{
		`#title "A Story" part(1)`,
		"Once upon a time.",
		"## note",
	}

	if diff := cmp.Diff(want, lines[:3]); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}

	if !strings.HasPrefix(lines[3], "## [ERROR] ") || lines[4] != "#end" {
		t.Errorf("output tail = %q", lines[3:])
	}

	out.Reset()

	p = parser.New(lexer.NewString(src), parser.Table{})
	_ = DumpStatements(context.Background(), &out, p, Options{Format: FormatJSON})

	var recs []StatementRecord
	if err := json.Unmarshal(out.Bytes(), &recs); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(recs) != 5 || recs[0].Name != "title" || recs[0].Kwargs["part"] != float64(1) {
		t.Errorf("records = %+v", recs)
	}
}

func TestParseFormat(t *testing.T) {
	for name := range Formats() {
		f, err := ParseFormat(strings.ToUpper(name))
		if err != nil || f.String() != name {
			t.Errorf("ParseFormat(%q) = %v, %v", name, f, err)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, ErrFormat) {
		t.Errorf("error = %v, want ErrFormat", err)
	}
}
