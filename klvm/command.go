package klvm

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strconv"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/parser"
)

// Func is the body of a command.
type Func func(ctx context.Context, c *Call) (any, error)

// MethodKind selects the receiver passed to a command body.
type MethodKind int

const (
	// MethodInstance binds the call to the scope that owns the command.
	MethodInstance MethodKind = iota
	// MethodClass binds the call to the declaring class only.
	MethodClass
	// MethodStatic binds nothing.
	MethodStatic
)

func (k MethodKind) String() string {
	switch k {
	case MethodClass:
		return "class"
	case MethodStatic:
		return "static"
	default:
		return "instance"
	}
}

type role int

const (
	rolePlain role = iota
	roleEntry
	roleExit
	roleAutoPop
)

// Option keys understood by the built-in handlers.
const (
	OptionSkip   = "skip"
	OptionEnvs   = "envs"
	OptionWriter = "writer_func"
)

// Params describes the arguments a command accepts.
// A command without Params accepts anything.
type Params struct {
	Min      int      // minimum positional arguments
	Max      int      // maximum positional arguments, ignored if Variadic
	Variadic bool     // accept any number of positional arguments >= Min
	Keywords []string // accepted keyword names
	Any      bool     // accept any keyword name
}

// Check reports whether args and kwargs satisfy p.
func (p *Params) Check(name string, args []parser.Value, kwargs parser.Dict) error {
	if p == nil {
		return nil
	}

	n := len(args)
	if n < p.Min || (!p.Variadic && n > p.Max) {
		want := strconv.Itoa(p.Min)

		switch {
		case p.Variadic:
			want += " or more"
		case p.Max != p.Min:
			want += " to " + strconv.Itoa(p.Max)
		}

		return ErrArity.With(
			slog.String("command", name),
			slog.Int("got", n),
			slog.String("want", want),
		)
	}

	if p.Any {
		return nil
	}

	for _, f := range kwargs {
		if !slices.Contains(p.Keywords, f.Name) {
			return ErrKeyword.With(
				slog.String("command", name),
				slog.String("keyword", f.Name),
			)
		}
	}

	return nil
}

// Command is a registered callable with its dispatch metadata.
type Command struct {
	name       string
	aliases    []string
	kind       MethodKind
	envs       Mask
	suppressed bool
	virtual    bool
	data       map[string]any
	params     *Params
	fn         Func

	role  role
	env   *Class // environment entered or exited
	owner *Class // declaring class
	err   error  // deferred option error
}

// Name returns the command name.
func (c *Command) Name() string { return c.name }

// Aliases returns the alternative names of the command.
func (c *Command) Aliases() []string { return slices.Clone(c.aliases) }

// Kind returns the receiver kind of the command body.
func (c *Command) Kind() MethodKind { return c.kind }

// Envs returns the environment mask required by the command.
func (c *Command) Envs() Mask { return c.envs }

// Suppressed reports whether the command is hidden from its own class.
func (c *Command) Suppressed() bool { return c.suppressed }

// Virtual reports whether subclasses may override the command by name.
func (c *Command) Virtual() bool { return c.virtual }

// Params returns the declared parameter signature, or nil.
func (c *Command) Params() *Params { return c.params }

// Data returns the value stored under key in the command's extra data.
func (c *Command) Data(key string) (any, bool) {
	v, ok := c.data[key]

	return v, ok
}

// Owner returns the class that declared the command.
func (c *Command) Owner() *Class { return c.owner }

// Env returns the environment class entered or exited by the command.
func (c *Command) Env() *Class { return c.env }

// IsEntry reports whether the command enters an environment.
func (c *Command) IsEntry() bool { return c.role == roleEntry || c.role == roleAutoPop }

// IsExit reports whether the command exits an environment.
func (c *Command) IsExit() bool { return c.role == roleExit }

func (c *Command) names() []string { return append([]string{c.name}, c.aliases...) }

func (c *Command) clone() *Command {
	d := *c
	d.aliases = slices.Clone(c.aliases)
	d.data = maps.Clone(c.data)

	return &d
}

// CommandOption configures a [Command].
type CommandOption func(*Command)

// Alias registers alternative names.
func Alias(names ...string) CommandOption {
	return func(c *Command) { c.aliases = append(c.aliases, names...) }
}

// Suppressed hides the command from its own class's command set.
func Suppressed() CommandOption {
	return func(c *Command) { c.suppressed = true }
}

// Virtual allows subclasses to replace the body with [Class.Override].
func Virtual() CommandOption {
	return func(c *Command) { c.virtual = true }
}

// Static binds no receiver to the command body.
func Static() CommandOption {
	return func(c *Command) { c.kind = MethodStatic }
}

// ClassMethod binds only the declaring class to the command body.
func ClassMethod() CommandOption {
	return func(c *Command) { c.kind = MethodClass }
}

// Envs requires the environment chain to satisfy the given masks.
func Envs(masks ...string) CommandOption {
	return func(c *Command) {
		m, err := ParseMask(masks...)
		if err != nil {
			c.err = err

			return
		}

		c.envs = m
	}
}

// Data stores an arbitrary value in the command's extra data. Handlers
// receive it in [Call.Options].
func Data(key string, value any) CommandOption {
	return func(c *Command) {
		if c.data == nil {
			c.data = make(map[string]any)
		}

		c.data[key] = value
	}
}

// WithWriter sets the function used by writer runtimes to serialize the
// command.
func WithWriter(fn WriterFunc) CommandOption { return Data(OptionWriter, fn) }

// WithParams declares the accepted arguments.
func WithParams(p Params) CommandOption {
	return func(c *Command) { c.params = &p }
}

// Args declares a fixed range of positional arguments and the accepted
// keyword names.
func Args(min, max int, keywords ...string) CommandOption {
	return WithParams(Params{Min: min, Max: max, Keywords: keywords})
}

// Call is one dispatched command invocation as seen by handlers and by the
// command body.
type Call struct {
	Command *Command
	Name    string // name used at the call site
	Args    []parser.Value
	Kwargs  parser.Dict
	Options map[string]any
	Pos     lexer.Position

	// Scope is the receiver of instance commands; nil otherwise.
	Scope *Scope
	// Class is the declaring class for class commands and the receiver's
	// class for instance commands.
	Class *Class
	// Runtime dispatched the call.
	Runtime *Runtime
	// Result holds the value returned by the command body once the
	// terminal handler has run.
	Result any
}

// Arg returns the i'th positional argument or the zero Value.
func (c *Call) Arg(i int) parser.Value {
	v, _ := c.argOK(i)

	return v
}

func (c *Call) argOK(i int) (parser.Value, bool) {
	if i < 0 || i >= len(c.Args) {
		return parser.Value{}, false
	}

	return c.Args[i], true
}

// Kwarg returns the keyword argument stored under name.
func (c *Call) Kwarg(name string) (parser.Value, bool) { return c.Kwargs.Get(name) }

// String returns the i'th argument as a string. Numbers are formatted.
func (c *Call) String(i int) (string, error) {
	v, ok := c.argOK(i)
	if !ok {
		return "", c.argError(i, "missing")
	}

	switch v.Kind() {
	case parser.KindString:
		s, _ := v.Str()

		return s, nil
	case parser.KindInt, parser.KindFloat:
		return v.String(), nil
	default:
		return "", c.argError(i, "expected string, got "+v.Kind().String())
	}
}

// Int returns the i'th argument as an integer.
func (c *Call) Int(i int) (int64, error) {
	v, ok := c.argOK(i)
	if !ok {
		return 0, c.argError(i, "missing")
	}

	if n, ok := v.Int(); ok {
		return n, nil
	}

	if s, ok := v.Str(); ok {
		if n, err := strconv.ParseInt(s, 0, 64); err == nil {
			return n, nil
		}
	}

	return 0, c.argError(i, "expected int, got "+v.Kind().String())
}

// Float returns the i'th argument as a float.
func (c *Call) Float(i int) (float64, error) {
	v, ok := c.argOK(i)
	if !ok {
		return 0, c.argError(i, "missing")
	}

	if f, ok := v.Float(); ok {
		return f, nil
	}

	return 0, c.argError(i, "expected float, got "+v.Kind().String())
}

func (c *Call) argError(i int, msg string) error {
	return ErrArgument.With(
		slog.String("command", c.Name),
		slog.Int("index", i),
		slog.String("reason", msg),
	)
}

// Option returns the handler option stored under key.
func (c *Call) Option(key string) (any, bool) {
	v, ok := c.Options[key]

	return v, ok
}

// Flag reports whether the handler option key holds a true value.
func (c *Call) Flag(key string) bool {
	v, ok := c.Options[key]
	if !ok {
		return false
	}

	return parser.ValueOf(v).Truthy()
}
