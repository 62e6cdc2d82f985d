package klvm

import (
	"context"
	"errors"
	"testing"
)

// maskChain returns a runtime with L <- EnvA <- EnvB active, where EnvB is
// auto-pop.
func maskChain(t *testing.T) *Runtime {
	t.Helper()

	envB := NewEnv("EnvB").Entry("b", ret(nil))
	envA := NewEnv("EnvA").Entry("a", ret(nil)).Exit("end_a", ret(nil)).Env(envB)
	rt := mustNew(t, NewLang("L").Env(envA))

	for _, name := range []string{"a", "b"} {
		if _, err := rt.Call(context.Background(), name, nil, nil); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}

	return rt
}

func TestMask_Match(t *testing.T) {
	rt := maskChain(t)

	tests := []struct {
		mask string
		want bool
	}{
		{mask: "", want: true},
		{mask: "EnvA", want: true},
		{mask: "EnvB", want: true},
		{mask: "L", want: false},
		{mask: "+EnvA", want: false},
		{mask: "+EnvB", want: true},
		{mask: "*L", want: true},
		{mask: "!EnvB", want: false},
		{mask: "!EnvC", want: true},
		{mask: "EnvC EnvA", want: true},
		{mask: "EnvC +EnvA", want: false},
		{mask: "EnvA !EnvB", want: false},
		{mask: "*L !+EnvA", want: true},
		{mask: "+$top", want: true},
		{mask: "$base", want: false},
		{mask: "*$base", want: true},
		{mask: "*__init__", want: true},
		{mask: "$1", want: true},
		{mask: "+$1", want: false},
		{mask: "*$9", want: false},
		{mask: "*$cur", want: true},
		{mask: "$?", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.mask, func(t *testing.T) {
			m, err := ParseMask(tt.mask)
			if err != nil {
				t.Fatalf("ParseMask: %v", err)
			}

			if got := m.Match(rt.Top(), nil); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMask_Current(t *testing.T) {
	rt := maskChain(t)

	m, err := ParseMask("$cur")
	if err != nil {
		t.Fatal(err)
	}

	if !m.Match(rt.Top(), rt.Top().Back()) {
		t.Errorf("$cur does not match the receiver EnvA")
	}

	if m.Match(rt.Top(), rt.Root()) {
		t.Errorf("$cur matches the unreachable root")
	}
}

// Positive terms are ORed and negated terms are ANDed, independently of
// their order.
func TestMask_Precedence(t *testing.T) {
	rt := maskChain(t)

	terms := []string{"EnvA", "EnvC", "!EnvC", "!EnvD", "+EnvB", "*L"}

	for i := range terms {
		for j := range terms {
			a, _ := ParseMask(terms[i], terms[j])
			b, _ := ParseMask(terms[j], terms[i])

			if a.Match(rt.Top(), nil) != b.Match(rt.Top(), nil) {
				t.Errorf("%q and %q disagree with swapped order", a, b)
			}
		}
	}

	neg, _ := ParseMask("EnvA EnvB !EnvB")
	if neg.Match(rt.Top(), nil) {
		t.Errorf("a matching negated term did not veto positive matches")
	}
}

func TestParseMask_Errors(t *testing.T) {
	for _, s := range []string{"!", "+", "$foo", "$-1", "*$"} {
		t.Run(s, func(t *testing.T) {
			if _, err := ParseMask(s); !errors.Is(err, ErrBadMask) {
				t.Errorf("ParseMask(%q) error = %v, want %v", s, err, ErrBadMask)
			}
		})
	}
}

func TestEnsureEnv(t *testing.T) {
	envB := NewEnv("EnvB").Entry("b", ret(nil))
	envA := NewEnv("EnvA").Entry("a", ret(nil)).Exit("end_a", ret(nil)).Env(envB)
	lang := NewLang("L").
		Command("only_a", ret("ok"), Envs("+EnvA")).
		Command("in_a", ret("ok"), Envs("EnvA")).
		Env(envA)

	rt := mustNew(t, lang)

	got, err := results(t, rt, "#a\n#only_a\n#in_a\n#b\n#in_a\n#only_a\n")
	if !errors.Is(err, ErrUnmatchedEnv) {
		t.Fatalf("error = %v, want %v", err, ErrUnmatchedEnv)
	}

	if want := 5; len(got) != want {
		t.Errorf("got %d results before the failure, want %d", len(got), want)
	}

	bad := NewLang("Bad").Command("x", ret(nil), Envs("$nope"))
	if err := bad.Build(); !errors.Is(err, ErrBadMask) {
		t.Errorf("Build error = %v, want %v", err, ErrBadMask)
	}
}
