package klvm

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/parser"
)

type classKind int

const (
	kindSet classKind = iota
	kindLang
	kindEnv
)

// Hook runs when a scope of a class is pushed or popped. top is the scope
// that is active outside the hooked scope.
type Hook func(ctx context.Context, s *Scope, top *Scope) error

// HandlerFactory creates a handler installed for the lifetime of a scope.
type HandlerFactory func(s *Scope) Handler

type override struct {
	name string
	fn   Func
}

// Class declares a language, an environment or a reusable command set.
//
// A Class is assembled with its builder methods and compiled on first use;
// it must not be modified afterwards. Compilation errors, such as two
// commands sharing a name, are reported by [Class.Build] and by [New].
type Class struct {
	name      string
	kind      classKind
	base      *Class
	parents   []*Class
	commands  []*Command
	entryDecl []*Command
	envs      []*Class
	overrides []override
	state     func() any
	setUp     []Hook
	tearDown  []Hook
	factories []HandlerFactory
	threshold int
	encoding  string
	errs      []error

	once     sync.Once
	err      error
	chain    []*Class
	set      map[string]*Command
	entries  []*Command
	exits    []*Command
	autoPop  bool
	newState func() any
}

// NewLang returns an empty language class. Its scope is the root of every
// runtime created from it.
func NewLang(name string) *Class {
	return &Class{name: name, kind: kindLang, base: baseLang}
}

// NewEnv returns an empty environment class. Register it with
// [Class.Env] on the class whose scope may enter it.
func NewEnv(name string) *Class {
	return &Class{name: name, kind: kindEnv, base: baseEnv}
}

// NewSet returns a command set to be mixed into other classes with
// [Class.Extends].
func NewSet(name string) *Class {
	return &Class{name: name, kind: kindSet}
}

func (c *Class) declare(name string, fn Func, r role, opts []CommandOption) *Command {
	cmd := &Command{name: name, fn: fn, role: r, owner: c}

	for _, opt := range opts {
		if opt != nil {
			opt(cmd)
		}
	}

	if cmd.err != nil {
		c.errs = append(c.errs, cmd.err)
	}

	return cmd
}

// Command declares a command.
func (c *Class) Command(name string, fn Func, opts ...CommandOption) *Class {
	c.commands = append(c.commands, c.declare(name, fn, rolePlain, opts))

	return c
}

// Text declares the handler of text lines.
func (c *Class) Text(fn Func, opts ...CommandOption) *Class {
	return c.Command(parser.TextCommand, fn, opts...)
}

// Number declares the handler of number lines and numeric commands.
func (c *Class) Number(fn Func, opts ...CommandOption) *Class {
	return c.Command(parser.NumberCommand, fn, opts...)
}

// Annotation declares the handler of annotation lines.
func (c *Class) Annotation(fn Func, opts ...CommandOption) *Class {
	return c.Command(parser.AnnotationCommand, fn, opts...)
}

// Entry declares a command that enters the environment c. The command is
// available in the scope of every class that registers c with [Class.Env]
// and runs bound to the new scope.
func (c *Class) Entry(name string, fn Func, opts ...CommandOption) *Class {
	if c.kind != kindEnv {
		c.errs = append(c.errs, ErrNotEnv.With(slog.String("class", c.name), slog.String("entry", name)))

		return c
	}

	cmd := c.declare(name, fn, roleEntry, opts)
	cmd.env = c
	c.entryDecl = append(c.entryDecl, cmd)

	return c
}

// Exit declares a command that leaves the environment c. An environment
// without exit commands is auto-pop: it is left implicitly when an
// enclosing environment exits or the outermost block ends, and its entry
// commands leave it and enter a fresh scope.
func (c *Class) Exit(name string, fn Func, opts ...CommandOption) *Class {
	if c.kind != kindEnv {
		c.errs = append(c.errs, ErrNotEnv.With(slog.String("class", c.name), slog.String("exit", name)))

		return c
	}

	cmd := c.declare(name, fn, roleExit, opts)
	cmd.env = c
	c.commands = append(c.commands, cmd)

	return c
}

// Env registers environments that may be entered from scopes of c.
func (c *Class) Env(envs ...*Class) *Class {
	for _, e := range envs {
		if e == nil || e.kind != kindEnv {
			name := "<nil>"
			if e != nil {
				name = e.name
			}

			c.errs = append(c.errs, ErrNotEnv.With(slog.String("class", name)))

			continue
		}

		c.envs = append(c.envs, e)
	}

	return c
}

// Override replaces the body of an inherited virtual command. The
// command's other properties are kept.
func (c *Class) Override(name string, fn Func) *Class {
	c.overrides = append(c.overrides, override{name: name, fn: fn})

	return c
}

// Extends mixes the commands and hooks of parents into c. Commands of
// later parents, and of c itself, win over earlier ones.
func (c *Class) Extends(parents ...*Class) *Class {
	for _, p := range parents {
		if p == nil || (p.kind != kindSet && p.kind != c.kind) {
			c.errs = append(c.errs, ErrParent.With(slog.String("class", c.name)))

			continue
		}

		c.parents = append(c.parents, p)
	}

	return c
}

// State sets the factory of the per-scope state.
func (c *Class) State(fn func() any) *Class {
	c.state = fn

	return c
}

// SetUp adds a hook run when a scope of c is prepared.
func (c *Class) SetUp(h Hook) *Class {
	c.setUp = append(c.setUp, h)

	return c
}

// TearDown adds a hook run when a scope of c is popped.
func (c *Class) TearDown(h Hook) *Class {
	c.tearDown = append(c.tearDown, h)

	return c
}

// WithHandler adds a handler to the runtime's chain for as long as a scope
// of c is active.
func (c *Class) WithHandler(fn HandlerFactory) *Class {
	c.factories = append(c.factories, fn)

	return c
}

// WithThreshold sets the number of markers that introduce a command.
func (c *Class) WithThreshold(n int) *Class {
	c.threshold = n

	return c
}

// WithEncoding sets the encoding of sources parsed by runtimes of c.
func (c *Class) WithEncoding(name string) *Class {
	if !lexer.ValidEncoding(name) {
		c.errs = append(c.errs, lexer.ErrUnknownEncoding.With(slog.String("encoding", name)))

		return c
	}

	c.encoding = name

	return c
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// IsEnv reports whether c is an environment class.
func (c *Class) IsEnv() bool { return c.kind == kindEnv }

// IsLang reports whether c is a language class.
func (c *Class) IsLang() bool { return c.kind == kindLang }

// AutoPop reports whether c is an environment without exit commands.
func (c *Class) AutoPop() bool {
	_ = c.Build()

	return c.autoPop
}

// Threshold returns the command threshold, inherited from parents when
// unset.
func (c *Class) Threshold() int {
	_ = c.Build()

	return c.threshold
}

// Encoding returns the source encoding, inherited from parents when unset.
func (c *Class) Encoding() string {
	_ = c.Build()

	return c.encoding
}

// Is reports whether c is other or extends it.
func (c *Class) Is(other *Class) bool {
	if c == other {
		return true
	}

	_ = c.Build()

	return slices.Contains(c.chain, other)
}

// Lookup returns the command registered under name in scopes of c.
func (c *Class) Lookup(name string) (*Command, bool) {
	if err := c.Build(); err != nil {
		return nil, false
	}

	cmd, ok := c.set[name]

	return cmd, ok
}

// Names returns the sorted names available in scopes of c.
func (c *Class) Names() []string {
	if err := c.Build(); err != nil {
		return nil
	}

	names := make([]string, 0, len(c.set))
	for n := range c.set {
		names = append(names, n)
	}

	slices.Sort(names)

	return names
}

// Entries returns the entry commands of an environment class.
func (c *Class) Entries() []*Command {
	_ = c.Build()

	return slices.Clone(c.entries)
}

// Exits returns the exit commands of an environment class.
func (c *Class) Exits() []*Command {
	_ = c.Build()

	return slices.Clone(c.exits)
}

// Build compiles c. It is called implicitly on first use and returns the
// same error on every call.
func (c *Class) Build() error {
	c.once.Do(func() { c.err = c.compile() })

	return c.err
}

func (c *Class) String() string { return c.name }

func linearize(c *Class) []*Class {
	var (
		out   []*Class
		seen  = make(map[*Class]bool)
		visit func(*Class)
	)

	visit = func(k *Class) {
		if seen[k] {
			return
		}

		seen[k] = true

		if k.base != nil {
			visit(k.base)
		}

		for _, p := range k.parents {
			visit(p)
		}

		out = append(out, k)
	}

	visit(c)

	return out
}

func (c *Class) compile() error {
	c.chain = linearize(c)
	c.set = make(map[string]*Command)

	var (
		errs     []error
		virtuals = make(map[string]*Command)
	)

	for _, k := range c.chain {
		errs = append(errs, k.errs...)

		own := make(map[string]*Command)
		add := func(cmd *Command) {
			for _, n := range cmd.names() {
				if _, dup := own[n]; dup {
					errs = append(errs, ErrDuplicateCommand.With(
						slog.String("class", k.name),
						slog.String("command", n),
					))

					continue
				}

				own[n] = cmd
			}
		}

		for _, cmd := range k.commands {
			if cmd.virtual {
				virtuals[cmd.name] = cmd
			}

			if !cmd.suppressed {
				add(cmd)
			}
		}

		for _, e := range k.envs {
			if err := e.Build(); err != nil {
				errs = append(errs, err)

				continue
			}

			if len(e.entries) == 0 {
				errs = append(errs, ErrNoEntry.With(slog.String("class", e.name)))

				continue
			}

			for _, cmd := range e.entries {
				add(cmd)
			}
		}

		for _, o := range k.overrides {
			v, ok := virtuals[o.name]
			if !ok {
				errs = append(errs, ErrNotVirtual.With(
					slog.String("class", k.name),
					slog.String("command", o.name),
				))

				continue
			}

			cmd := v.clone()
			cmd.fn = o.fn
			cmd.owner = k
			cmd.suppressed = false
			virtuals[o.name] = cmd

			add(cmd)
		}

		for n, cmd := range own {
			c.set[n] = cmd
		}
	}

	c.threshold, c.encoding = lexer.DefaultThreshold, lexer.DefaultEncoding

	for _, k := range slices.Backward(c.chain) {
		if k.threshold > 0 {
			c.threshold = k.threshold

			break
		}
	}

	for _, k := range slices.Backward(c.chain) {
		if k.encoding != "" {
			c.encoding = k.encoding

			break
		}
	}

	for _, k := range slices.Backward(c.chain) {
		if k.state != nil {
			c.newState = k.state

			break
		}
	}

	if c.kind == kindEnv {
		c.compileEnv()
	}

	return errors.Join(errs...)
}

func (c *Class) compileEnv() {
	index := make(map[string]int)

	for _, k := range c.chain {
		for _, cmd := range k.entryDecl {
			if k != c {
				cmd = cmd.clone()
				cmd.env = c
			}

			if i, ok := index[cmd.name]; ok {
				c.entries[i] = cmd

				continue
			}

			index[cmd.name] = len(c.entries)
			c.entries = append(c.entries, cmd)
		}
	}

	for _, cmd := range c.set {
		if cmd.role == roleExit && !slices.Contains(c.exits, cmd) {
			c.exits = append(c.exits, cmd)
		}
	}

	slices.SortFunc(c.exits, func(a, b *Command) int {
		return strings.Compare(a.name, b.name)
	})

	c.autoPop = len(c.exits) == 0
	if !c.autoPop {
		return
	}

	for _, e := range c.entries {
		cmd := e.clone()
		cmd.role = roleAutoPop
		cmd.env = c

		for _, n := range cmd.names() {
			c.set[n] = cmd
		}
	}
}

func (c *Class) hooks(setUp bool) []Hook {
	var hs []Hook

	for _, k := range c.chain {
		if setUp {
			hs = append(hs, k.setUp...)
		} else {
			hs = append(hs, k.tearDown...)
		}
	}

	if !setUp {
		slices.Reverse(hs)
	}

	return hs
}

func (c *Class) handlerFactories() []HandlerFactory {
	var fs []HandlerFactory

	for _, k := range c.chain {
		fs = append(fs, k.factories...)
	}

	return fs
}
