package klvm

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"
	"maps"
	"sync"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/log"
	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/pkg"
)

// Option configures a [Runtime].
type Option func(*Runtime)

// WithLogger sets the logger used for trace and debug messages.
func WithLogger(logger log.Logger) Option {
	return func(rt *Runtime) { rt.logger = logger }
}

// WithHandlers adds handlers to the runtime's chain.
func WithHandlers(hs ...Handler) Option {
	return func(rt *Runtime) {
		for _, h := range hs {
			if h != nil {
				rt.chain, _ = rt.chain.insert(h)
			}
		}
	}
}

// WithInitialEnv pushes an environment of class env when the first
// block starts with the root on top.
func WithInitialEnv(env *Class) Option {
	return func(rt *Runtime) { rt.initial = env }
}

// WithOption sets a handler option passed with every call.
func WithOption(key string, value any) Option {
	return func(rt *Runtime) { rt.options[key] = value }
}

// WithThreshold overrides the command threshold of the language class.
func WithThreshold(n int) Option {
	return func(rt *Runtime) {
		if n > 0 {
			rt.threshold = n
		}
	}
}

// WithEncoding overrides the source encoding of the language class.
func WithEncoding(name string) Option {
	return func(rt *Runtime) {
		if name != "" {
			rt.encoding = name
		}
	}
}

// Runtime dispatches commands against a stack of scopes rooted at a
// language scope.
//
// A Runtime is safe to inspect from other goroutines, but commands must be
// executed from one goroutine at a time.
type Runtime struct {
	mu    sync.Mutex
	class *Class
	root  *Scope
	top   *Scope
	chain chain
	depth int

	logger    log.Logger
	initial   *Class
	options   map[string]any
	threshold int
	encoding  string
}

// New returns a runtime of the language class lang.
func New(lang *Class, opts ...Option) (*Runtime, error) {
	if err := lang.Build(); err != nil {
		return nil, err
	}

	if lang.kind != kindLang {
		return nil, ErrNotLang.With(slog.String("class", lang.name))
	}

	rt := &Runtime{
		class:     lang,
		logger:    log.Default(),
		options:   make(map[string]any),
		threshold: lang.threshold,
		encoding:  lang.encoding,
	}

	for _, h := range []Handler{Trace{}, Skip{}, EnsureEnv{}, Caller{}} {
		rt.chain, _ = rt.chain.insert(h)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(rt)
		}
	}

	if rt.initial != nil {
		if err := rt.initial.Build(); err != nil {
			return nil, err
		}

		if !rt.initial.IsEnv() {
			return nil, ErrNotEnv.With(slog.String("class", rt.initial.name))
		}
	}

	if !lexer.ValidEncoding(rt.encoding) {
		return nil, lexer.ErrUnknownEncoding.With(slog.String("encoding", rt.encoding))
	}

	rt.root = newScope(rt, nil, lang)
	rt.top = rt.root

	if err := rt.root.setUp(context.Background(), nil); err != nil {
		return nil, err
	}

	return rt, nil
}

// Class returns the language class.
func (rt *Runtime) Class() *Class { return rt.class }

// Root returns the language scope.
func (rt *Runtime) Root() *Scope { return rt.root }

// Top returns the active scope.
func (rt *Runtime) Top() *Scope {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	return rt.top
}

// Depth returns the number of environments above the root.
func (rt *Runtime) Depth() int { return rt.Top().Depth() }

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() log.Logger { return rt.logger }

// Threshold returns the command threshold used for sources.
func (rt *Runtime) Threshold() int { return rt.threshold }

// Encoding returns the encoding used for sources.
func (rt *Runtime) Encoding() string { return rt.encoding }

// LexerOptions returns the options that configure a lexer for rt.
func (rt *Runtime) LexerOptions() []lexer.Option {
	return []lexer.Option{
		lexer.WithThreshold(rt.threshold),
		lexer.WithEncoding(rt.encoding),
		lexer.WithLogger(rt.logger),
	}
}

// AddHandler installs h in the chain.
func (rt *Runtime) AddHandler(h Handler) *Node {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var n *Node

	rt.chain, n = rt.chain.insert(h)

	rt.logger.Trace("add handler",
		slog.Int("priority", h.Priority()),
		slog.Int("handlers", len(rt.chain)))

	return n
}

// RemoveHandler removes an installed handler. The last handler cannot be
// removed.
func (rt *Runtime) RemoveHandler(n *Node) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	ch, err := rt.chain.remove(n)
	if err != nil {
		return err
	}

	rt.chain = ch

	return nil
}

// Handlers returns the installed handlers from the highest priority down.
func (rt *Runtime) Handlers() []Handler {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	hs := make([]Handler, len(rt.chain))
	for i, n := range rt.chain {
		hs[i] = n.h
	}

	return hs
}

func (rt *Runtime) snapshot() chain {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	return rt.chain
}

// PushPrepare creates a scope of env on top of the active scope and runs
// its set-up hooks. The scope is not active until [Runtime.PushApply].
func (rt *Runtime) PushPrepare(ctx context.Context, env *Class) (*Scope, error) {
	if err := env.Build(); err != nil {
		return nil, err
	}

	if !env.IsEnv() {
		return nil, ErrNotEnv.With(slog.String("class", env.name))
	}

	top := rt.Top()
	s := newScope(rt, top, env)

	if err := s.setUp(ctx, top); err != nil {
		_ = s.tearDown(ctx, top)

		return nil, err
	}

	return s, nil
}

// PushApply makes a prepared scope active.
func (rt *Runtime) PushApply(ctx context.Context, s *Scope) {
	rt.mu.Lock()
	rt.top = s
	ch := rt.chain
	rt.mu.Unlock()

	rt.logger.TraceContext(ctx, "push",
		slog.String("env", s.Name()),
		slog.Int("depth", s.Depth()))

	for _, n := range ch {
		if h, ok := n.h.(PushHook); ok {
			h.Pushed(ctx, s)
		}
	}
}

// PopPrepare locates the scope to pop. With a nil env it is the active
// scope; otherwise it is the nearest scope of env, skipping auto-pop
// scopes of other classes.
func (rt *Runtime) PopPrepare(ctx context.Context, env *Class) (*Scope, error) {
	rt.mu.Lock()
	top, ch := rt.top, rt.chain
	rt.mu.Unlock()

	for _, n := range ch {
		if h, ok := n.h.(PopHook); ok {
			h.Popping(ctx, top)
		}
	}

	if top == rt.root {
		return nil, ErrPopRoot
	}

	if env == nil {
		return top, nil
	}

	s := top
	for s.AutoPop() && !s.class.Is(env) {
		s = s.back
	}

	if s.IsRoot() || !s.class.Is(env) {
		return nil, ErrUnmatchedEnv.With(
			slog.String("env", env.name),
			slog.String("top", top.Name()),
		)
	}

	return s, nil
}

// PopApply makes the scope below s active and tears down every scope from
// the former top down to s.
func (rt *Runtime) PopApply(ctx context.Context, s *Scope) error {
	rt.mu.Lock()
	old := rt.top
	rt.top = s.back
	rt.mu.Unlock()

	var errs []error

	for cur := old; cur != nil; cur = cur.back {
		errs = append(errs, cur.tearDown(ctx, s.back))

		if cur == s {
			break
		}
	}

	rt.logger.TraceContext(ctx, "pop",
		slog.String("env", s.Name()),
		slog.String("top", s.back.Name()))

	return errors.Join(errs...)
}

type bound struct {
	rt    *Runtime
	scope *Scope
	cmd   *Command
}

func (b bound) Invoke(ctx context.Context, st *parser.Statement) (any, error) {
	if st.Name != b.cmd.name {
		st.AliasOf = b.cmd.name
	}

	return b.rt.dispatch(ctx, b.scope, b.cmd, st.Name, st.Args, st.Kwargs, st.Pos)
}

// Resolve returns the command registered under name, searching from the
// active scope outward.
func (rt *Runtime) Resolve(name string) (parser.Callable, error) {
	s, cmd, ok := rt.Top().Lookup(name)
	if !ok {
		return nil, ErrUnknownCommand.With(slog.String("command", name))
	}

	return bound{rt: rt, scope: s, cmd: cmd}, nil
}

// Call resolves and dispatches a command.
func (rt *Runtime) Call(
	ctx context.Context,
	name string,
	args []parser.Value,
	kwargs parser.Dict,
) (any, error) {
	s, cmd, ok := rt.Top().Lookup(name)
	if !ok {
		return nil, ErrUnknownCommand.With(slog.String("command", name))
	}

	return rt.dispatch(ctx, s, cmd, name, args, kwargs, lexer.Position{})
}

func (rt *Runtime) dispatch(
	ctx context.Context,
	s *Scope,
	cmd *Command,
	name string,
	args []parser.Value,
	kwargs parser.Dict,
	pos lexer.Position,
) (any, error) {
	switch cmd.role {
	case roleExit:
		p, err := rt.PopPrepare(ctx, cmd.env)
		if err != nil {
			return nil, err
		}

		ret, err := rt.call(ctx, s, cmd, name, args, kwargs, pos)
		if err != nil {
			return ret, err
		}

		return ret, rt.PopApply(ctx, p)

	case roleAutoPop:
		p, err := rt.PopPrepare(ctx, cmd.env)
		if err != nil {
			return nil, err
		}

		if err := rt.PopApply(ctx, p); err != nil {
			return nil, err
		}

		fallthrough

	case roleEntry:
		env, err := rt.PushPrepare(ctx, cmd.env)
		if err != nil {
			return nil, err
		}

		ret, err := rt.call(ctx, env, cmd, name, args, kwargs, pos)
		if err != nil {
			_ = env.tearDown(ctx, rt.Top())

			return ret, err
		}

		rt.PushApply(ctx, env)

		return ret, nil

	default:
		return rt.call(ctx, s, cmd, name, args, kwargs, pos)
	}
}

func (rt *Runtime) call(
	ctx context.Context,
	s *Scope,
	cmd *Command,
	name string,
	args []parser.Value,
	kwargs parser.Dict,
	pos lexer.Position,
) (any, error) {
	opts := maps.Clone(rt.options)
	maps.Copy(opts, cmd.data)

	if !cmd.envs.Empty() {
		opts[OptionEnvs] = cmd.envs
	}

	c := &Call{
		Command: cmd,
		Name:    name,
		Args:    args,
		Kwargs:  kwargs,
		Options: opts,
		Pos:     pos,
		Scope:   s,
		Class:   s.class,
		Runtime: rt,
	}

	return rt.snapshot().run(ctx, c)
}

func (rt *Runtime) virtual(ctx context.Context, name string, args ...parser.Value) (any, error) {
	s, cmd, ok := rt.Top().Lookup(name)
	if !ok {
		return nil, nil
	}

	return rt.call(ctx, s, cmd, name, args, nil, lexer.Position{})
}

// ExecBlock runs fn inside a block. The outermost block calls @start
// before fn and @end after it, on every exit path.
func (rt *Runtime) ExecBlock(ctx context.Context, fn func(context.Context) error) (err error) {
	if err := rt.enter(ctx); err != nil {
		return err
	}

	defer func() {
		if lerr := rt.leave(ctx); lerr != nil {
			err = errors.Join(err, lerr)
		}
	}()

	return fn(ctx)
}

func (rt *Runtime) enter(ctx context.Context) error {
	rt.mu.Lock()
	rt.depth++
	first := rt.depth == 1
	rt.mu.Unlock()

	if !first {
		return nil
	}

	fail := func(err error) error {
		rt.mu.Lock()
		rt.depth--
		rt.mu.Unlock()

		return err
	}

	if _, err := rt.virtual(ctx, StartCommand); err != nil {
		return fail(err)
	}

	if rt.initial != nil && rt.Top() == rt.root {
		s, err := rt.PushPrepare(ctx, rt.initial)
		if err != nil {
			return fail(err)
		}

		rt.PushApply(ctx, s)
	}

	return nil
}

func (rt *Runtime) leave(ctx context.Context) error {
	rt.mu.Lock()
	rt.depth--
	last := rt.depth == 0
	rt.mu.Unlock()

	if !last {
		return nil
	}

	_, err := rt.virtual(ctx, EndCommand)

	return err
}

// exception passes a KoiLang error to @exception and reports whether the
// handler suppressed it.
func (rt *Runtime) exception(ctx context.Context, err error) (bool, error) {
	ret, herr := rt.virtual(ctx, ExceptionCommand, faultArgs(err)...)
	if herr != nil {
		return false, errors.Join(err, herr)
	}

	if !parser.ValueOf(ret).Truthy() {
		return false, err
	}

	rt.logger.DebugContext(ctx, "suppressed", slog.Any("error", err))

	return true, nil
}

func (rt *Runtime) parser(lex *lexer.Lexer) *parser.Parser {
	return parser.New(lex, rt, parser.WithLogger(rt.logger))
}

// Parse executes every statement read by lex in one block.
//
// Syntax and command errors are passed to @exception; when it returns a
// true value the error is dropped and parsing resumes with the next
// statement. Any other error ends parsing and is returned after @end.
func (rt *Runtime) Parse(ctx context.Context, lex *lexer.Lexer) error {
	return rt.ExecBlock(ctx, func(ctx context.Context) error {
		p := rt.parser(lex)

		for {
			err := p.Exec(ctx)
			if err == nil || !pkg.IsKoiLang(err) {
				return err
			}

			if ok, err := rt.exception(ctx, err); !ok {
				return err
			}
		}
	})
}

// Results executes the statements read by lex in one block and yields the
// result of each. The block ends when the source is exhausted, an error
// is yielded, or the consumer stops.
func (rt *Runtime) Results(ctx context.Context, lex *lexer.Lexer) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		if err := rt.enter(ctx); err != nil {
			yield(nil, err)

			return
		}

		p := rt.parser(lex)
		more, done := true, false

		// A panic in a command or in the consumer still ends the block,
		// without yielding.
		defer func() {
			if err := rt.leave(ctx); err != nil && more && done {
				yield(nil, err)
			}
		}()

		for more {
			v, err := p.ExecOnce(ctx)
			if errors.Is(err, io.EOF) {
				break
			}

			if err != nil && pkg.IsKoiLang(err) {
				var ok bool

				if ok, err = rt.exception(ctx, err); ok {
					continue
				}
			}

			more = yield(v, err) && err == nil
		}

		done = true
	}
}

// ParseString executes the statements of s.
func (rt *Runtime) ParseString(ctx context.Context, s string) error {
	return rt.Parse(ctx, lexer.NewString(s, rt.LexerOptions()...))
}

// ParseReader executes the statements read from r.
func (rt *Runtime) ParseReader(ctx context.Context, r io.Reader, name string) error {
	opts := append(rt.LexerOptions(), lexer.WithFilename(name))

	return rt.Parse(ctx, lexer.New(r, opts...))
}

// ParseFile executes the statements of the named file and closes it.
func (rt *Runtime) ParseFile(ctx context.Context, path string) (err error) {
	lex, err := lexer.Open(path, rt.LexerOptions()...)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := lex.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	return rt.Parse(ctx, lex)
}

// ParseCommand executes one command written without leading markers and
// returns its result.
func (rt *Runtime) ParseCommand(ctx context.Context, s string) (any, error) {
	opts := append(rt.LexerOptions(), lexer.WithStart(lexer.StateCommand))
	lex := lexer.NewString(s, opts...)

	var last any

	for v, err := range rt.Results(ctx, lex) {
		if err != nil {
			return last, err
		}

		last = v
	}

	return last, nil
}

// ParseArgs parses a bare argument list.
func (rt *Runtime) ParseArgs(s string) ([]parser.Value, parser.Dict, error) {
	opts := append(rt.LexerOptions(), lexer.WithStart(lexer.StateArgs))

	return rt.parser(lexer.NewString(s, opts...)).ParseArgs()
}
