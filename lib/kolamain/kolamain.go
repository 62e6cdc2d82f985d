package kolamain

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ardnew/kola/klvm"
	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/lib/debug"
	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/pkg"
)

// Name is the class name of the language.
const Name = "KolaMain"

// Version bounds accepted by the version command. Any other version ends
// the run with exit status 2.
const (
	MinVersion = 100
	MaxVersion = 120
)

// Errors returned by commands of the language.
var (
	// ErrExit is returned by the exit command. Its "code" attribute holds
	// the requested exit status.
	ErrExit   = pkg.NewError("exit")
	ErrRaised = pkg.NewCommandError("raised")
	ErrLoad   = pkg.NewCommandError("load failed")
	ErrFile   = pkg.NewCommandError("file operation failed")
	ErrEval   = pkg.NewCommandError("evaluation failed")
	ErrPragma = pkg.NewCommandError("invalid pragma")
)

// ExitCode returns the status carried by an [ErrExit] error.
func ExitCode(err error) (int, bool) {
	v, ok := pkg.AttrOf(err, "code")
	if !ok || v.Kind() != slog.KindInt64 {
		return 0, false
	}

	return int(v.Int64()), true
}

// Option configures the language.
type Option func(*config)

type config struct {
	out       io.Writer
	errOut    io.Writer
	path      []string
	keepGoing bool
}

// WithOutput sets the writer receiving printed text.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithErrorOutput sets the writer receiving reports of suppressed errors.
func WithErrorOutput(w io.Writer) Option {
	return func(c *config) { c.errOut = w }
}

// WithPath sets the directories searched by the load command.
func WithPath(dirs ...string) Option {
	return func(c *config) { c.path = append(c.path, dirs...) }
}

// WithKeepGoing reports syntax and command errors to the error output and
// continues with the next statement instead of stopping.
func WithKeepGoing(keep bool) Option {
	return func(c *config) { c.keepGoing = keep }
}

// Lang returns a new language class.
func Lang(opts ...Option) *klvm.Class {
	cfg := config{out: os.Stdout, errOut: os.Stderr}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	l := &lang{cfg: cfg}

	file := klvm.NewEnv("File").
		Entry("open", l.open, klvm.Args(1, 2, "encoding")).
		Exit("close", l.close, klvm.Args(0, 0)).
		Text(l.write).
		TearDown(closeFile)

	return klvm.NewLang(Name).
		State(func() any { return newState(cfg.path) }).
		Override(klvm.StartCommand, l.start).
		Override(klvm.ExceptionCommand, l.exception).
		Command("version", l.version, klvm.Args(0, 1)).
		Command("license", l.license, klvm.Args(0, 0)).
		Command("raises", l.raises, klvm.Alias("raise"),
			klvm.WithParams(klvm.Params{Variadic: true})).
		Command("echo", l.echo, klvm.WithParams(klvm.Params{Variadic: true})).
		Command("get", l.get, klvm.Args(1, 1)).
		Command("set", l.set, klvm.Alias("export"),
			klvm.WithParams(klvm.Params{Any: true})).
		Command("eval", l.eval, klvm.Args(1, 1, "as")).
		Command("pragma", l.pragma, klvm.Args(0, 0, "debug")).
		Command("mkdir", l.mkdir, klvm.Args(1, 2, "mode")).
		Command("remove", l.remove, klvm.Args(1, 1)).
		Command("load", l.load, klvm.Args(1, 2, "type", "encoding")).
		Command("path", l.path, klvm.WithParams(klvm.Params{Variadic: true})).
		Command("reset", l.reset, klvm.Args(0, 0)).
		Command("exit", l.exit, klvm.Args(0, 1)).
		Text(l.text).
		Env(file).
		WithHandler(func(s *klvm.Scope) klvm.Handler { return &substitute{root: s} }).
		WithHandler(func(s *klvm.Scope) klvm.Handler {
			return &debug.Tracer{Out: cfg.out, Enabled: debugging(s)}
		})
}

// New returns a runtime of a new language class.
func New(opts []Option, rtOpts ...klvm.Option) (*klvm.Runtime, error) {
	return klvm.New(Lang(opts...), rtOpts...)
}

type lang struct{ cfg config }

func (l *lang) print(format string, args ...any) error {
	_, err := fmt.Fprintf(l.cfg.out, format, args...)

	return err
}

func stateOf(c *klvm.Call) *State {
	st, _ := klvm.StateOf[*State](c.Runtime.Root())

	return st
}

func (l *lang) start(_ context.Context, c *klvm.Call) (any, error) {
	if st := stateOf(c); st != nil {
		st.reset()
	}

	return nil, nil
}

func (l *lang) exception(_ context.Context, c *klvm.Call) (any, error) {
	if !l.cfg.keepGoing {
		return false, nil
	}

	f := klvm.FaultOf(c)

	var b strings.Builder

	b.WriteString(f.Kind.String())

	if f.Pos.Line > 0 {
		b.WriteString(" at " + f.Pos.String())
	}

	if f.Err != nil {
		b.WriteString(": " + f.Err.Error())
	}

	_, _ = fmt.Fprintln(l.cfg.errOut, b.String())

	return true, nil
}

func (l *lang) version(_ context.Context, c *klvm.Call) (any, error) {
	if len(c.Args) == 0 {
		return pkg.Version(), l.print("%s\n", pkg.Version())
	}

	n, err := c.Int(0)
	if err != nil {
		return nil, err
	}

	if n < MinVersion || n > MaxVersion {
		err := l.print("version %d is not supported by runner %s\n", n, pkg.Version())
		if err != nil {
			return nil, err
		}

		return nil, ErrExit.With(slog.Int64("code", 2), slog.Int64("version", n))
	}

	return n, nil
}

func (l *lang) license(context.Context, *klvm.Call) (any, error) {
	return nil, l.print("%s\n", pkg.License)
}

func (l *lang) raises(_ context.Context, c *klvm.Call) (any, error) {
	if len(c.Args) == 0 {
		return nil, ErrRaised
	}

	return nil, ErrRaised.With(slog.String("message", join(c.Args)))
}

func (l *lang) echo(_ context.Context, c *klvm.Call) (any, error) {
	s := join(c.Args)

	return s, l.print("%s\n", s)
}

func (l *lang) get(_ context.Context, c *klvm.Call) (any, error) {
	key, err := c.String(0)
	if err != nil {
		return nil, err
	}

	v := Var(c.Runtime, key)

	return v, l.print("%s\n", Display(v))
}

func (l *lang) set(_ context.Context, c *klvm.Call) (any, error) {
	st := stateOf(c)

	for name, v := range c.Kwargs.All() {
		st.Vars[name] = v.Any()
	}

	return nil, nil
}

func (l *lang) pragma(_ context.Context, c *klvm.Call) (any, error) {
	v, ok := c.Kwarg("debug")
	if !ok {
		return nil, nil
	}

	switch s, _ := v.Str(); s {
	case "on":
		stateOf(c).Debug = true
	case "off":
		stateOf(c).Debug = false
	default:
		return nil, ErrPragma.With(slog.String("debug", v.String()))
	}

	return nil, nil
}

func (l *lang) reset(ctx context.Context, c *klvm.Call) (any, error) {
	rt := c.Runtime

	for !rt.Top().IsRoot() {
		s, err := rt.PopPrepare(ctx, nil)
		if err != nil {
			return nil, err
		}

		if err := rt.PopApply(ctx, s); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func (l *lang) exit(_ context.Context, c *klvm.Call) (any, error) {
	var code int64

	if len(c.Args) > 0 {
		n, err := c.Int(0)
		if err != nil {
			return nil, err
		}

		code = n
	}

	return nil, ErrExit.With(slog.Int64("code", code))
}

func (l *lang) text(_ context.Context, c *klvm.Call) (any, error) {
	s, err := c.String(0)
	if err != nil {
		return nil, err
	}

	return s, l.print("::%s\n", s)
}

// join renders arguments separated by spaces, strings without quotes.
func join(args []parser.Value) string {
	part := make([]string, len(args))
	for i, v := range args {
		part[i] = Display(v.Any())
	}

	return strings.Join(part, " ")
}

// Display renders a variable value the way #get prints it.
func Display(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case parser.Value:
		return Display(x.Any())
	case lexer.Position:
		return x.String()
	default:
		return parser.ValueOf(v).String()
	}
}
