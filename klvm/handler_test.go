package klvm

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func tagHandler(priority int, tag string, got *[]string) *HandlerFunc {
	return NewHandler(priority, func(ctx context.Context, c *Call, next Next) (any, error) {
		*got = append(*got, tag)

		return next(ctx, c)
	})
}

func priorities(rt *Runtime) []int {
	var ps []int
	for _, h := range rt.Handlers() {
		ps = append(ps, h.Priority())
	}

	return ps
}

func TestHandler_Order(t *testing.T) {
	var got []string

	lang := NewLang("L").Command("cmd", func(context.Context, *Call) (any, error) {
		got = append(got, "body")

		return nil, nil
	})

	rt := mustNew(t, lang,
		WithHandlers(tagHandler(7, "7a", &got)),
		WithHandlers(tagHandler(7, "7b", &got), tagHandler(1, "1", &got)),
	)

	if diff := cmp.Diff([]int{20, 10, 7, 7, 5, 1, 0}, priorities(rt)); diff != "" {
		t.Errorf("priorities mismatch (-want +got):\n%s", diff)
	}

	if _, err := rt.Call(context.Background(), "cmd", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"7b", "7a", "1", "body"}, got); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestHandler_Veto(t *testing.T) {
	ran := false

	lang := NewLang("L").Command("cmd", func(context.Context, *Call) (any, error) {
		ran = true

		return nil, nil
	})

	veto := NewHandler(7, func(context.Context, *Call, Next) (any, error) {
		return "vetoed", nil
	})

	rt := mustNew(t, lang, WithHandlers(veto))

	v, err := rt.Call(context.Background(), "cmd", nil, nil)
	if err != nil || v != "vetoed" {
		t.Errorf("Call = %v, %v; want vetoed", v, err)
	}

	if ran {
		t.Errorf("command body ran despite the veto")
	}
}

func TestHandler_Result(t *testing.T) {
	var seen any

	observer := NewHandler(-1, func(_ context.Context, c *Call, _ Next) (any, error) {
		seen = c.Result

		return nil, nil
	})

	rt := mustNew(t, NewLang("L").Command("cmd", ret(42)), WithHandlers(observer))

	v, err := rt.Call(context.Background(), "cmd", nil, nil)
	if err != nil || v != 42 {
		t.Errorf("Call = %v, %v; want 42", v, err)
	}

	if seen != 42 {
		t.Errorf("observer saw %v, want 42", seen)
	}
}

func TestHandler_Skip(t *testing.T) {
	ran := false

	lang := NewLang("L").
		Command("cmd", func(context.Context, *Call) (any, error) {
			ran = true

			return nil, nil
		}).
		Command("always", ret("ran"), Data(OptionSkip, false))

	rt := mustNew(t, lang, WithOption(OptionSkip, true))
	ctx := context.Background()

	if _, err := rt.Call(ctx, "cmd", nil, nil); err != nil || ran {
		t.Errorf("skipped command ran (err=%v)", err)
	}

	if v, err := rt.Call(ctx, "always", nil, nil); err != nil || v != "ran" {
		t.Errorf("Call(always) = %v, %v; want ran", v, err)
	}
}

func TestHandler_Remove(t *testing.T) {
	rt := mustNew(t, NewLang("L"))

	n := rt.AddHandler(NewHandler(3, func(ctx context.Context, c *Call, next Next) (any, error) {
		return next(ctx, c)
	}))

	if err := rt.RemoveHandler(n); err != nil {
		t.Fatalf("RemoveHandler: %v", err)
	}

	if err := rt.RemoveHandler(n); !errors.Is(err, ErrHandlerNotFound) {
		t.Errorf("second RemoveHandler error = %v, want %v", err, ErrHandlerNotFound)
	}

	var last error
	for len(rt.Handlers()) > 0 && last == nil {
		rt.mu.Lock()
		first := rt.chain[0]
		rt.mu.Unlock()

		last = rt.RemoveHandler(first)
	}

	if !errors.Is(last, ErrEmptyChain) || len(rt.Handlers()) != 1 {
		t.Errorf("removing the last handler: %v with %d left", last, len(rt.Handlers()))
	}
}

func TestHandler_EnvScoped(t *testing.T) {
	var got []string

	env := NewEnv("Loud").
		Entry("loud", ret(nil)).
		Exit("quiet", ret(nil)).
		WithHandler(func(s *Scope) Handler {
			return tagHandler(15, "in "+s.Name(), &got)
		})

	lang := NewLang("L").Command("say", ret(nil)).Env(env)
	rt := mustNew(t, lang)

	if err := rt.ParseString(context.Background(), "#say\n#loud\n#say\n#quiet\n#say\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// installed before the entry body runs, removed after the exit body
	want := []string{"in Loud", "in Loud", "in Loud"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}

	if n := len(rt.Handlers()); n != 4 {
		t.Errorf("%d handlers after exit, want 4", n)
	}
}

type hooks struct {
	got []string
}

func (*hooks) Priority() int { return 1 }

func (*hooks) Handle(ctx context.Context, c *Call, next Next) (any, error) {
	return next(ctx, c)
}

func (h *hooks) Pushed(_ context.Context, s *Scope) { h.got = append(h.got, "push "+s.Name()) }

func (h *hooks) Popping(_ context.Context, s *Scope) { h.got = append(h.got, "pop "+s.Name()) }

func TestHandler_Hooks(t *testing.T) {
	h := &hooks{}
	rt := mustNew(t, numberLang(), WithHandlers(h))

	if err := rt.ParseString(context.Background(), "#1\n#2\n#enter\n#exit\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		"push NumberEnv",
		"pop NumberEnv", "push NumberEnv",
		"push SubEnv",
		"pop SubEnv",
		"pop NumberEnv",
	}
	if diff := cmp.Diff(want, h.got); diff != "" {
		t.Errorf("hooks mismatch (-want +got):\n%s", diff)
	}
}
