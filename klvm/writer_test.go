package klvm

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/kola/writer"
)

func storyLang() *Class {
	scene := NewEnv("Scene").
		Entry("scene", nil, Args(1, 1)).
		Exit("end_scene", nil).
		Command("line", nil, WithWriter(func(w *writer.Writer, c *Call) error {
			s, err := c.String(0)
			if err != nil {
				return err
			}

			return w.Text("> " + s)
		}))

	return NewLang("Story").
		Command("title", nil).
		Text(nil).
		Env(scene)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer

	rt, err := NewWriter(storyLang(), &buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	src := `#title "A Story" part(1)
Once upon a time.
#scene intro
    #line hello
    Text in a scene.
#end_scene
`

	if err := rt.ParseString(context.Background(), src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `#title "A Story" part(1)
Once upon a time.
#scene intro
    > hello

    Text in a scene.
#end_scene
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	src := strings.Join([]string{
		`#title "A Story" part(1)`,
		`Once upon a time.`,
		`#scene intro`,
		`    Text in a scene.`,
		`#end_scene`,
		``,
	}, "\n")

	var first, second bytes.Buffer

	for _, buf := range []*bytes.Buffer{&first, &second} {
		rt, err := NewWriter(storyLang(), buf)
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}

		if err := rt.ParseString(context.Background(), src); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		src = buf.String()
	}

	if diff := cmp.Diff(first.String(), second.String()); diff != "" {
		t.Errorf("writer output is not stable (-first +second):\n%s", diff)
	}
}

func TestWriter_ExitThroughAutoPop(t *testing.T) {
	beat := NewEnv("Beat").Entry("beat", nil)
	scene := NewEnv("Scene").
		Entry("scene", nil).
		Exit("end_scene", nil).
		Env(beat)
	lang := NewLang("Story").Command("title", nil).Env(scene)

	var buf bytes.Buffer

	rt, err := NewWriter(lang, &buf)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	src := "#scene intro\n#beat 1\n#title inner\n#end_scene\n#title outer\n"
	if err := rt.ParseString(context.Background(), src); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := `#scene intro
    #beat 1
        #title inner
#end_scene
#title outer
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}
