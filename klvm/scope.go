package klvm

import (
	"context"
	"errors"
	"log/slog"
)

// Scope is one active instance of a language or environment class.
//
// Scopes form a chain from the top of the runtime down to the root. A
// scope refers to the scope below it but does not own it.
type Scope struct {
	rt       *Runtime
	back     *Scope
	class    *Class
	handlers []*Node

	// State is the value returned by the class's state factory.
	State any
}

func newScope(rt *Runtime, back *Scope, class *Class) *Scope {
	s := &Scope{rt: rt, back: back, class: class}

	if class.newState != nil {
		s.State = class.newState()
	}

	return s
}

// Name returns the class name of s.
func (s *Scope) Name() string { return s.class.name }

// Class returns the class of s.
func (s *Scope) Class() *Class { return s.class }

// Back returns the scope below s, or nil for the root.
func (s *Scope) Back() *Scope { return s.back }

// Runtime returns the runtime owning s.
func (s *Scope) Runtime() *Runtime { return s.rt }

// IsRoot reports whether s is the language scope of its runtime.
func (s *Scope) IsRoot() bool { return s.back == nil }

// AutoPop reports whether s is an environment without exit commands.
func (s *Scope) AutoPop() bool { return s.back != nil && s.class.autoPop }

// Depth returns the number of scopes below s.
func (s *Scope) Depth() int {
	n := 0
	for b := s.back; b != nil; b = b.back {
		n++
	}

	return n
}

// Command returns the command registered under name in s itself.
func (s *Scope) Command(name string) (*Command, bool) {
	cmd, ok := s.class.set[name]

	return cmd, ok
}

// Lookup resolves name from s outward and returns the owning scope.
func (s *Scope) Lookup(name string) (*Scope, *Command, bool) {
	for cur := s; cur != nil; cur = cur.back {
		if cmd, ok := cur.class.set[name]; ok {
			return cur, cmd, true
		}
	}

	return nil, nil, false
}

// Names returns the names resolvable from s, nearest scope first, without
// duplicates.
func (s *Scope) Names() []string {
	var (
		names []string
		seen  = make(map[string]bool)
	)

	for cur := s; cur != nil; cur = cur.back {
		for _, n := range cur.class.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}

	return names
}

// StateOf returns the state of s as a T.
func StateOf[T any](s *Scope) (T, bool) {
	if s == nil {
		var zero T

		return zero, false
	}

	v, ok := s.State.(T)

	return v, ok
}

func (s *Scope) String() string { return s.class.name }

func (s *Scope) setUp(ctx context.Context, top *Scope) error {
	for _, h := range s.class.hooks(true) {
		if err := h(ctx, s, top); err != nil {
			return err
		}
	}

	for _, f := range s.class.handlerFactories() {
		if h := f(s); h != nil {
			s.handlers = append(s.handlers, s.rt.AddHandler(h))
		}
	}

	return nil
}

func (s *Scope) tearDown(ctx context.Context, top *Scope) error {
	var errs []error

	for _, n := range s.handlers {
		errs = append(errs, s.rt.RemoveHandler(n))
	}

	s.handlers = nil

	for _, h := range s.class.hooks(false) {
		errs = append(errs, h(ctx, s, top))
	}

	err := errors.Join(errs...)
	if err != nil {
		s.rt.logger.Debug("tear down failed",
			slog.String("env", s.Name()),
			slog.Any("error", err))
	}

	return err
}
