package klvm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/pkg"
)

func ret(v any) Func {
	return func(context.Context, *Call) (any, error) { return v, nil }
}

func intArg(_ context.Context, c *Call) (any, error) {
	n, err := c.Int(0)

	return int(n), err
}

func mustNew(t *testing.T, lang *Class, opts ...Option) *Runtime {
	t.Helper()

	rt, err := New(lang, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return rt
}

func results(t *testing.T, rt *Runtime, src string) ([]any, error) {
	t.Helper()

	var out []any

	lex := lexer.NewString(src, rt.LexerOptions()...)
	for v, err := range rt.Results(context.Background(), lex) {
		if err != nil {
			return out, err
		}

		out = append(out, v)
	}

	return out, nil
}

func numberLang() *Class {
	sub := NewEnv("SubEnv").
		Entry("enter", ret(5)).
		Exit("exit", ret(6))

	num := NewEnv("NumberEnv").
		Entry(parser.NumberCommand, intArg).
		Text(func(_ context.Context, c *Call) (any, error) {
			s, err := c.String(0)

			return "text: " + s, err
		}).
		Env(sub)

	return NewLang("NumberLang").
		Command("version", intArg).
		Env(num)
}

func TestRuntime_NestedEnvironments(t *testing.T) {
	rt := mustNew(t, numberLang())

	got, err := results(t, rt, `
#version 100
#1
    Hello world!
#2
    ???

    #enter
    #exit
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []any{100, 1, "text: Hello world!", 2, "text: ???", 5, 6}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	if rt.Top() != rt.Root() {
		t.Errorf("top = %s, want root", rt.Top())
	}
}

func TestRuntime_AutoPopDepth(t *testing.T) {
	rt := mustNew(t, numberLang())
	ctx := context.Background()

	var depths []int

	lex := lexer.NewString("#1\n#2\n#3\n", rt.LexerOptions()...)
	for _, err := range rt.Results(ctx, lex) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		depths = append(depths, rt.Depth())
	}

	if diff := cmp.Diff([]int{1, 1, 1}, depths); diff != "" {
		t.Errorf("depths mismatch (-want +got):\n%s", diff)
	}

	if rt.Depth() != 0 {
		t.Errorf("depth after parse = %d, want 0", rt.Depth())
	}
}

func TestRuntime_UnmatchedAutoPop(t *testing.T) {
	rt := mustNew(t, numberLang())

	// @number resolves in NumberEnv, below the SubEnv on top, which has an
	// exit command and so cannot be left implicitly.
	got, err := results(t, rt, "#1\n#enter\n#2\n")
	if !errors.Is(err, ErrUnmatchedEnv) {
		t.Fatalf("error = %v, want %v", err, ErrUnmatchedEnv)
	}

	if !errors.Is(err, pkg.ErrCommand) {
		t.Errorf("error %v is not a command error", err)
	}

	if diff := cmp.Diff([]any{1, 5}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	if pos, ok := lexer.PositionOf(err); !ok || pos.Line != 3 {
		t.Errorf("position = %v, %v; want line 3", pos, ok)
	}
}

func TestRuntime_Steps(t *testing.T) {
	var kwargs parser.Dict

	step2 := NewEnv("Step2").
		Entry("step_2", func(_ context.Context, c *Call) (any, error) {
			kwargs = c.Kwargs

			return "step_2", nil
		}, Args(0, 0, "key1", "key2")).
		Command("step_3", ret("step_3")).
		Exit("step_4", ret("step_4"))

	lang := NewLang("KolaTest").
		Command("step_1", func(_ context.Context, c *Call) (any, error) {
			if c.Scope != nil || c.Class != nil {
				return nil, errors.New("static command received a receiver")
			}

			return "step_1", nil
		}, Static()).
		Env(step2)

	rt := mustNew(t, lang)

	got, err := results(t, rt, `
#step_1
#step_2 key1(hello, "world") key2(2)
#step_3
#step_4
#step_3
`)
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("error = %v, want %v", err, ErrUnknownCommand)
	}

	want := []any{"step_1", "step_2", "step_3", "step_4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	wantKw := parser.Dict{
		{Name: "key1", Value: parser.ListValue(parser.StringValue("hello"), parser.StringValue("world"))},
		{Name: "key2", Value: parser.IntValue(2)},
	}
	if diff := cmp.Diff(wantKw, kwargs); diff != "" {
		t.Errorf("kwargs mismatch (-want +got):\n%s", diff)
	}
}

func TestRuntime_Params(t *testing.T) {
	lang := NewLang("L").
		Command("one", ret("one"), Args(1, 1)).
		Command("kw", ret("kw"), Args(0, 0, "a")).
		Command("many", ret("many"), WithParams(Params{Min: 1, Variadic: true, Any: true}))

	tests := []struct {
		src  string
		want error
	}{
		{src: "#one x", want: nil},
		{src: "#one", want: ErrArity},
		{src: "#one x y", want: ErrArity},
		{src: "#kw a(1)", want: nil},
		{src: "#kw b(1)", want: ErrKeyword},
		{src: "#many 1 2 3 z(1)", want: nil},
		{src: "#many", want: ErrArity},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			rt := mustNew(t, lang)

			err := rt.ParseString(context.Background(), tt.src)
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRuntime_StartEnd(t *testing.T) {
	var got []string

	record := func(s string) Func {
		return func(context.Context, *Call) (any, error) {
			got = append(got, s)

			return nil, nil
		}
	}

	lang := NewLang("L").
		Override(StartCommand, record("start")).
		Override(EndCommand, record("end")).
		Command("nested", func(ctx context.Context, c *Call) (any, error) {
			got = append(got, "nested")

			return nil, c.Runtime.ParseString(ctx, "#leaf")
		}).
		Command("leaf", record("leaf"))

	rt := mustNew(t, lang)
	ctx := context.Background()

	if err := rt.ParseString(ctx, "#nested\n#leaf\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := rt.ParseString(ctx, "#leaf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"start", "nested", "leaf", "leaf", "end", "start", "leaf", "end"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRuntime_EndOnError(t *testing.T) {
	ended := 0

	lang := NewLang("L").Override(EndCommand, func(context.Context, *Call) (any, error) {
		ended++

		return nil, nil
	})

	rt := mustNew(t, lang)

	err := rt.ParseString(context.Background(), "#missing")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("error = %v, want %v", err, ErrUnknownCommand)
	}

	if ended != 1 {
		t.Errorf("@end ran %d times, want 1", ended)
	}
}

func TestRuntime_EnvEndRunsRootEnd(t *testing.T) {
	var got []string

	env := NewEnv("Auto").Entry("auto", ret(nil))
	lang := NewLang("L").
		Override(EndCommand, func(_ context.Context, c *Call) (any, error) {
			got = append(got, "end:"+c.Runtime.Top().Name())

			return nil, nil
		}).
		Env(env)

	rt := mustNew(t, lang)

	if err := rt.ParseString(context.Background(), "#auto\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"end:L"}, got); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestRuntime_Exception(t *testing.T) {
	var faults []Fault

	lang := NewLang("L").
		Override(ExceptionCommand, func(_ context.Context, c *Call) (any, error) {
			faults = append(faults, FaultOf(c))

			return true, nil
		}).
		Command("ok", ret("ok"))

	rt := mustNew(t, lang)

	got, err := results(t, rt, "#missing\n#ok KoiLang-\n#ok\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]any{"ok"}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	if len(faults) != 2 {
		t.Fatalf("got %d faults, want 2", len(faults))
	}

	tests := []struct {
		kind pkg.Kind
		err  error
		line int
	}{
		{kind: pkg.KindCommand, err: ErrUnknownCommand, line: 1},
		{kind: pkg.KindSyntax, err: lexer.ErrUnknownSymbol, line: 2},
	}

	for i, tt := range tests {
		f := faults[i]

		if f.Kind != tt.kind || !errors.Is(f.Err, tt.err) || f.Pos.Line != tt.line {
			t.Errorf("fault %d = {%v %v %v}, want {%v %v line %d}",
				i, f.Kind, f.Err, f.Pos, tt.kind, tt.err, tt.line)
		}
	}
}

func TestRuntime_EnvException(t *testing.T) {
	var got []string

	env := NewEnv("Quiet").
		Entry("quiet", ret(nil)).
		Exit("loud", ret(nil)).
		Override(ExceptionCommand, func(context.Context, *Call) (any, error) {
			got = append(got, "quiet")

			return true, nil
		})

	lang := NewLang("L").Env(env)
	rt := mustNew(t, lang)

	err := rt.ParseString(context.Background(), "#quiet\n#missing\n#loud\n#missing\n")
	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("error = %v, want %v", err, ErrUnknownCommand)
	}

	if diff := cmp.Diff([]string{"quiet"}, got); diff != "" {
		t.Errorf("handlers mismatch (-want +got):\n%s", diff)
	}
}

func TestRuntime_EnvExceptionFallsThrough(t *testing.T) {
	var got []string

	env := NewEnv("Plain").Entry("plain", ret(nil)).Exit("leave", ret(nil))
	lang := NewLang("L").
		Override(ExceptionCommand, func(_ context.Context, c *Call) (any, error) {
			got = append(got, c.Scope.Name()+" in "+c.Runtime.Top().Name())

			return true, nil
		}).
		Env(env)

	rt := mustNew(t, lang)

	if err := rt.ParseString(context.Background(), "#plain\n#missing\n#leave\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"L in Plain"}, got); diff != "" {
		t.Errorf("handlers mismatch (-want +got):\n%s", diff)
	}
}

func TestRuntime_ResultsStop(t *testing.T) {
	ended := 0

	lang := NewLang("L").
		Override(EndCommand, func(context.Context, *Call) (any, error) {
			ended++

			return nil, nil
		}).
		Command("n", intArg)

	rt := mustNew(t, lang)

	var got []any

	lex := lexer.NewString("#n 1\n#n 2\n#n 3\n", rt.LexerOptions()...)
	for v, err := range rt.Results(context.Background(), lex) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got = append(got, v)

		break
	}

	if diff := cmp.Diff([]any{1}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	if ended != 1 {
		t.Errorf("@end ran %d times, want 1", ended)
	}
}

func TestRuntime_ResultsPanic(t *testing.T) {
	var starts, ends int

	lang := NewLang("L").
		Override(StartCommand, func(context.Context, *Call) (any, error) {
			starts++

			return nil, nil
		}).
		Override(EndCommand, func(context.Context, *Call) (any, error) {
			ends++

			return nil, nil
		}).
		Command("boom", func(context.Context, *Call) (any, error) {
			panic("boom")
		}).
		Command("ok", ret(nil))

	rt := mustNew(t, lang)
	ctx := context.Background()

	tests := []struct {
		name string
		src  string
		stop func(v any)
	}{
		{name: "command", src: "#boom\n", stop: func(any) {}},
		{name: "consumer", src: "#ok\n#ok\n", stop: func(any) { panic("consumer") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			starts, ends = 0, 0

			func() {
				defer func() { _ = recover() }()

				lex := lexer.NewString(tt.src, rt.LexerOptions()...)
				for v := range rt.Results(ctx, lex) {
					tt.stop(v)
				}
			}()

			if starts != 1 || ends != 1 {
				t.Fatalf("after panic: starts=%d ends=%d, want 1 each", starts, ends)
			}

			if err := rt.ParseString(ctx, "#ok\n"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if starts != 2 || ends != 2 {
				t.Errorf("after parse: starts=%d ends=%d, want 2 each", starts, ends)
			}
		})
	}
}

func TestRuntime_ParseFile(t *testing.T) {
	var got []string

	lang := NewLang("L").Text(func(_ context.Context, c *Call) (any, error) {
		s, err := c.String(0)
		got = append(got, s)

		return nil, err
	})

	rt := mustNew(t, lang)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "story.kola")
	if err := os.WriteFile(path, []byte("once upon a time\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := rt.ParseFile(ctx, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"once upon a time"}, got); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}

	err := rt.ParseFile(ctx, filepath.Join(t.TempDir(), "missing.kola"))
	if !errors.Is(err, lexer.ErrRead) {
		t.Errorf("error = %v, want %v", err, lexer.ErrRead)
	}
}

func TestRuntime_ParseCommand(t *testing.T) {
	lang := NewLang("L").
		Command("add", func(_ context.Context, c *Call) (any, error) {
			a, err := c.Int(0)
			if err != nil {
				return nil, err
			}

			b, err := c.Int(1)

			return int(a + b), err
		})

	rt := mustNew(t, lang)

	v, err := rt.ParseCommand(context.Background(), "add 1 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v != 3 {
		t.Errorf("result = %v, want 3", v)
	}

	args, kwargs, err := rt.ParseArgs(`1 "two" k(v)`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantArgs := []parser.Value{parser.IntValue(1), parser.StringValue("two")}
	if diff := cmp.Diff(wantArgs, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}

	wantKw := parser.Dict{{Name: "k", Value: parser.StringValue("v")}}
	if diff := cmp.Diff(wantKw, kwargs); diff != "" {
		t.Errorf("kwargs mismatch (-want +got):\n%s", diff)
	}
}

func TestRuntime_CallAndAliases(t *testing.T) {
	lang := NewLang("L").
		Command("greet", func(_ context.Context, c *Call) (any, error) {
			s, err := c.String(0)

			return c.Name + " " + s, err
		}, Alias("hi", "hello")).
		Command("whoami", func(_ context.Context, c *Call) (any, error) {
			return c.Class.Name(), nil
		}, ClassMethod())

	rt := mustNew(t, lang)
	ctx := context.Background()

	v, err := rt.Call(ctx, "hi", []parser.Value{parser.StringValue("there")}, nil)
	if err != nil || v != "hi there" {
		t.Errorf("Call(hi) = %v, %v; want \"hi there\"", v, err)
	}

	v, err = rt.Call(ctx, "whoami", nil, nil)
	if err != nil || v != "L" {
		t.Errorf("Call(whoami) = %v, %v; want L", v, err)
	}

	if _, err := rt.Call(ctx, "bye", nil, nil); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("Call(bye) error = %v, want %v", err, ErrUnknownCommand)
	}
}

func TestRuntime_State(t *testing.T) {
	type counter struct{ n int }

	env := NewEnv("Count").
		State(func() any { return &counter{} }).
		Entry("count", ret(nil)).
		Command("tick", func(_ context.Context, c *Call) (any, error) {
			s, _ := StateOf[*counter](c.Scope)
			s.n++

			return s.n, nil
		})

	rt := mustNew(t, NewLang("L").Env(env))

	got, err := results(t, rt, "#count\n#tick\n#tick\n#count\n#tick\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]any{nil, 1, 2, nil, 1}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestRuntime_PushPop(t *testing.T) {
	var got []string

	hook := func(tag string) Hook {
		return func(_ context.Context, s *Scope, top *Scope) error {
			got = append(got, tag+":"+s.Name()+"/"+top.Name())

			return nil
		}
	}

	inner := NewEnv("Inner").Entry("inner", ret(nil)).
		SetUp(hook("up")).TearDown(hook("down"))
	outer := NewEnv("Outer").Entry("outer", ret(nil)).Exit("done", ret(nil)).
		SetUp(hook("up")).TearDown(hook("down")).
		Env(inner)

	rt := mustNew(t, NewLang("L").Env(outer))
	ctx := context.Background()

	if _, err := rt.PopPrepare(ctx, nil); !errors.Is(err, ErrPopRoot) {
		t.Errorf("pop root error = %v, want %v", err, ErrPopRoot)
	}

	s, err := rt.PushPrepare(ctx, outer)
	if err != nil {
		t.Fatalf("PushPrepare: %v", err)
	}

	if rt.Top() != rt.Root() {
		t.Errorf("prepared scope is active before PushApply")
	}

	rt.PushApply(ctx, s)

	if _, err := rt.Call(ctx, "inner", nil, nil); err != nil {
		t.Fatalf("inner: %v", err)
	}

	if _, err := rt.Call(ctx, "done", nil, nil); err != nil {
		t.Fatalf("done: %v", err)
	}

	if rt.Top() != rt.Root() {
		t.Errorf("top = %s, want root", rt.Top())
	}

	want := []string{
		"up:Outer/L",
		"up:Inner/Outer",
		"down:Inner/L",
		"down:Outer/L",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("hooks mismatch (-want +got):\n%s", diff)
	}

	if _, err := rt.PushPrepare(ctx, NewLang("X")); !errors.Is(err, ErrNotEnv) {
		t.Errorf("PushPrepare(lang) error = %v, want %v", err, ErrNotEnv)
	}
}

func TestRuntime_PushPopKeepsResolution(t *testing.T) {
	type resolution struct {
		scope *Scope
		cmd   *Command
	}

	snapshot := func(s *Scope) map[string]resolution {
		m := make(map[string]resolution)

		for _, n := range s.Names() {
			owner, cmd, _ := s.Lookup(n)
			m[n] = resolution{owner, cmd}
		}

		return m
	}

	same := func(t *testing.T, want, got map[string]resolution) {
		t.Helper()

		if len(want) != len(got) {
			t.Fatalf("resolved %d names, want %d", len(got), len(want))
		}

		for n, w := range want {
			if g, ok := got[n]; !ok || g != w {
				t.Errorf("%s resolves to %v/%p, want %v/%p", n, g.scope, g.cmd, w.scope, w.cmd)
			}
		}
	}

	inner := NewEnv("Inner").Entry("inner", ret(nil)).Command("x", ret(nil))
	outer := NewEnv("Outer").
		Entry("outer", ret(nil)).
		Exit("done", ret(nil)).
		Command("x", ret(nil)).
		Env(inner)

	rt := mustNew(t, NewLang("L").Command("x", ret(nil)).Env(outer))
	ctx := context.Background()

	t.Run("push and pop", func(t *testing.T) {
		before := snapshot(rt.Top())

		s, err := rt.PushPrepare(ctx, outer)
		if err != nil {
			t.Fatalf("PushPrepare: %v", err)
		}

		rt.PushApply(ctx, s)

		p, err := rt.PopPrepare(ctx, nil)
		if err != nil {
			t.Fatalf("PopPrepare: %v", err)
		}

		if err := rt.PopApply(ctx, p); err != nil {
			t.Fatalf("PopApply: %v", err)
		}

		same(t, before, snapshot(rt.Top()))
	})

	t.Run("exit through auto-pop", func(t *testing.T) {
		before := snapshot(rt.Top())

		if _, err := rt.Call(ctx, "outer", nil, nil); err != nil {
			t.Fatalf("outer: %v", err)
		}

		inOuter := snapshot(rt.Top())

		if _, err := rt.Call(ctx, "inner", nil, nil); err != nil {
			t.Fatalf("inner: %v", err)
		}

		if _, err := rt.Call(ctx, "done", nil, nil); err != nil {
			t.Fatalf("done: %v", err)
		}

		same(t, before, snapshot(rt.Top()))

		if _, err := rt.Call(ctx, "outer", nil, nil); err != nil {
			t.Fatalf("outer: %v", err)
		}

		// A re-entered environment is a new scope with the same commands.
		for n, r := range snapshot(rt.Top()) {
			if w := inOuter[n]; w.cmd != r.cmd || w.scope.Name() != r.scope.Name() {
				t.Errorf("%s resolves to %v/%p, want %v/%p", n, r.scope, r.cmd, w.scope, w.cmd)
			}
		}
	})
}

func TestRuntime_FailedEntry(t *testing.T) {
	downs := 0

	env := NewEnv("E").
		Entry("enter", func(context.Context, *Call) (any, error) {
			return nil, ErrArgument
		}).
		TearDown(func(context.Context, *Scope, *Scope) error {
			downs++

			return nil
		})

	rt := mustNew(t, NewLang("L").Env(env))

	if _, err := rt.Call(context.Background(), "enter", nil, nil); !errors.Is(err, ErrArgument) {
		t.Errorf("error = %v, want %v", err, ErrArgument)
	}

	if rt.Top() != rt.Root() {
		t.Errorf("top = %s, want root", rt.Top())
	}

	if downs != 1 {
		t.Errorf("tear down ran %d times, want 1", downs)
	}
}

func TestRuntime_InitialEnv(t *testing.T) {
	env := NewEnv("Body").
		Entry("body", ret(nil)).
		Text(func(_ context.Context, c *Call) (any, error) {
			return c.Scope.Name(), nil
		})

	rt := mustNew(t, NewLang("L").Env(env), WithInitialEnv(env))

	got, err := results(t, rt, "plain text\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]any{"Body"}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	if rt.Top() != rt.Root() {
		t.Errorf("top = %s, want root", rt.Top())
	}
}

func TestRuntime_Threshold(t *testing.T) {
	lang := NewLang("L").
		WithThreshold(2).
		Command("cmd", ret("cmd")).
		Annotation(func(_ context.Context, c *Call) (any, error) {
			s, err := c.String(0)

			return "note:" + s, err
		}).
		Text(func(_ context.Context, c *Call) (any, error) {
			s, err := c.String(0)

			return "text:" + s, err
		})

	rt := mustNew(t, lang)

	got, err := results(t, rt, "##cmd\n### note\n#text\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []any{"cmd", "note:note", "text:#text"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	child := NewLang("Child").Extends(NewSet("Mixin"), lang)
	if n := child.Threshold(); n != 2 {
		t.Errorf("inherited threshold = %d, want 2", n)
	}

	bad := NewEnv("Bad").Entry("bad", ret(nil)).Extends(lang)
	if err := bad.Build(); !errors.Is(err, ErrParent) {
		t.Errorf("Build error = %v, want %v", err, ErrParent)
	}
}
