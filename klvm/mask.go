package klvm

import (
	"log/slog"
	"strconv"
	"strings"
)

type maskMode int

const (
	maskAny     maskMode = iota // any reachable environment
	maskExact                   // the top environment only
	maskAnyFull                 // any environment in the chain
)

type maskTerm struct {
	mode  maskMode
	neg   bool
	name  string // class name, or a variable when ref is set
	ref   bool
	index int // $N, -1 otherwise
}

// Mask is a parsed environment requirement.
//
// Each term is an environment name optionally prefixed with '+' (must be
// the top environment), '*' (may be anywhere in the chain) and/or '!'
// (must not match). Without a prefix a term matches any environment
// reachable from the top through auto-pop environments. Names may be the
// variables $top, $cur, $current, $?, $base, __init__ or $N.
//
// A mask holds when no negated term matches and, if there are positive
// terms, at least one of them does.
type Mask struct {
	terms []maskTerm
	src   []string
}

// ParseMask parses whitespace-separated mask terms.
func ParseMask(specs ...string) (Mask, error) {
	var m Mask

	for _, spec := range specs {
		for _, word := range strings.Fields(spec) {
			t, err := parseTerm(word)
			if err != nil {
				return Mask{}, err
			}

			m.terms = append(m.terms, t)
			m.src = append(m.src, word)
		}
	}

	return m, nil
}

func parseTerm(word string) (maskTerm, error) {
	t := maskTerm{index: -1}
	s := word

prefix:
	for len(s) > 0 {
		switch s[0] {
		case '!':
			t.neg = true
		case '+':
			t.mode = maskExact
		case '*':
			t.mode = maskAnyFull
		default:
			break prefix
		}

		s = s[1:]
	}

	bad := func(reason string) (maskTerm, error) {
		return maskTerm{}, ErrBadMask.With(
			slog.String("term", word),
			slog.String("reason", reason),
		)
	}

	switch {
	case s == "":
		return bad("missing name")
	case s == "__init__":
		t.ref, t.name = true, "$base"
	case strings.HasPrefix(s, "$"):
		t.ref, t.name = true, s

		switch s {
		case "$top", "$cur", "$current", "$?", "$base":
		default:
			n, err := strconv.Atoi(s[1:])
			if err != nil || n < 0 {
				return bad("unknown variable")
			}

			t.index = n
		}
	}

	if !t.ref {
		t.name = s
	}

	return t, nil
}

// Empty reports whether the mask has no terms.
func (m Mask) Empty() bool { return len(m.terms) == 0 }

// String returns the mask terms as written.
func (m Mask) String() string { return strings.Join(m.src, " ") }

// chainView is the environment chain a mask is evaluated against.
type chainView struct {
	reachable []*Scope // top through the first non-auto-pop scope
	contains  []*Scope // top through the root
	current   *Scope   // receiver of the call
}

func viewOf(top, current *Scope) chainView {
	var v chainView

	for s := top; s != nil; s = s.back {
		v.contains = append(v.contains, s)
	}

	for _, s := range v.contains {
		v.reachable = append(v.reachable, s)

		if !s.AutoPop() {
			break
		}
	}

	v.current = current
	if v.current == nil {
		v.current = v.contains[len(v.contains)-1]
	}

	return v
}

func (v chainView) resolve(t maskTerm) (string, bool) {
	if !t.ref {
		return t.name, true
	}

	var s *Scope

	switch {
	case t.index >= 0:
		if t.index >= len(v.contains) {
			return "", false
		}

		s = v.contains[t.index]
	case t.name == "$top":
		s = v.contains[0]
	case t.name == "$base":
		s = v.contains[len(v.contains)-1]
	default:
		s = v.current
	}

	return s.Name(), true
}

func (v chainView) match(t maskTerm) bool {
	name, ok := v.resolve(t)
	if !ok {
		return false
	}

	var set []*Scope

	switch t.mode {
	case maskExact:
		set = v.reachable[:1]
	case maskAnyFull:
		set = v.contains
	default:
		set = v.reachable
	}

	for _, s := range set {
		if s.Name() == name {
			return true
		}
	}

	return false
}

// Match evaluates the mask with top as the active scope and current as the
// receiver of the call. A nil current is the root.
func (m Mask) Match(top, current *Scope) bool {
	if len(m.terms) == 0 {
		return true
	}

	v := viewOf(top, current)
	pos, hit := false, false

	for _, t := range m.terms {
		ok := v.match(t)
		if t.neg {
			if ok {
				return false
			}

			continue
		}

		pos = true
		hit = hit || ok
	}

	return !pos || hit
}
