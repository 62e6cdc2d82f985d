package klvm

import (
	"context"
	"log/slog"
	"slices"

	"github.com/ardnew/kola/log"
	"github.com/ardnew/kola/parser"
)

// Priorities of the built-in handlers. Handlers run from the highest
// priority down.
const (
	PriorityTrace     = 20
	PrioritySkip      = 10
	PriorityEnsureEnv = 5
	PriorityWriter    = 3
	PriorityCaller    = 0
)

// Next passes a call to the rest of the chain.
type Next func(ctx context.Context, c *Call) (any, error)

// Handler intercepts command calls. A handler that returns without
// calling next vetoes every handler below it.
type Handler interface {
	Priority() int
	Handle(ctx context.Context, c *Call, next Next) (any, error)
}

// PushHook is implemented by handlers that track scope pushes.
type PushHook interface {
	Pushed(ctx context.Context, s *Scope)
}

// PopHook is implemented by handlers that track scope pops. It runs before
// the scope to pop is located.
type PopHook interface {
	Popping(ctx context.Context, s *Scope)
}

// Node is a handler's place in a chain.
type Node struct{ h Handler }

// Handler returns the installed handler.
func (n *Node) Handler() Handler { return n.h }

type chain []*Node

// insert places h before the first node of lower or equal priority.
func (ch chain) insert(h Handler) (chain, *Node) {
	n := &Node{h: h}

	i := slices.IndexFunc(ch, func(m *Node) bool {
		return m.h.Priority() <= h.Priority()
	})
	if i < 0 {
		i = len(ch)
	}

	return slices.Insert(slices.Clone(ch), i, n), n
}

func (ch chain) remove(n *Node) (chain, error) {
	i := slices.Index(ch, n)
	if i < 0 {
		return ch, ErrHandlerNotFound
	}

	if len(ch) == 1 {
		return ch, ErrEmptyChain
	}

	return slices.Delete(slices.Clone(ch), i, i+1), nil
}

func (ch chain) run(ctx context.Context, c *Call) (any, error) {
	if len(ch) == 0 {
		return nil, nil
	}

	return ch[0].h.Handle(ctx, c, ch[1:].run)
}

// HandlerFunc adapts a function to a [Handler].
type HandlerFunc struct {
	P  int
	Fn func(ctx context.Context, c *Call, next Next) (any, error)
}

// NewHandler returns a handler running fn at the given priority.
func NewHandler(priority int, fn func(ctx context.Context, c *Call, next Next) (any, error)) *HandlerFunc {
	return &HandlerFunc{P: priority, Fn: fn}
}

func (h *HandlerFunc) Priority() int { return h.P }

func (h *HandlerFunc) Handle(ctx context.Context, c *Call, next Next) (any, error) {
	return h.Fn(ctx, c, next)
}

// Caller checks a call against the command's parameters and runs its
// body. Handlers of negative priority run afterwards and may inspect
// [Call.Result].
type Caller struct{}

func (Caller) Priority() int { return PriorityCaller }

func (Caller) Handle(ctx context.Context, c *Call, next Next) (any, error) {
	cmd := c.Command

	if err := cmd.params.Check(c.Name, c.Args, c.Kwargs); err != nil {
		return nil, err
	}

	if cmd.fn == nil {
		return nil, nil
	}

	b := *c

	switch cmd.kind {
	case MethodStatic:
		b.Scope, b.Class = nil, nil
	case MethodClass:
		b.Scope, b.Class = nil, cmd.owner
	}

	ret, err := cmd.fn(ctx, &b)
	if err != nil {
		return ret, err
	}

	c.Result = ret

	if _, err := next(ctx, c); err != nil {
		return ret, err
	}

	return ret, nil
}

// EnsureEnv rejects calls whose command mask does not hold.
type EnsureEnv struct{}

func (EnsureEnv) Priority() int { return PriorityEnsureEnv }

func (EnsureEnv) Handle(ctx context.Context, c *Call, next Next) (any, error) {
	m := c.Command.envs

	if v, ok := c.Options[OptionEnvs].(Mask); ok {
		m = v
	}

	if top := c.Runtime.Top(); !m.Match(top, c.Scope) {
		return nil, ErrUnmatchedEnv.With(
			slog.String("command", c.Name),
			slog.String("envs", m.String()),
			slog.String("top", top.Name()),
		)
	}

	return next(ctx, c)
}

// Skip drops calls whose options set [OptionSkip].
type Skip struct{}

func (Skip) Priority() int { return PrioritySkip }

func (Skip) Handle(ctx context.Context, c *Call, next Next) (any, error) {
	if c.Flag(OptionSkip) {
		return nil, nil
	}

	return next(ctx, c)
}

// Trace logs every call at trace level and every failure at debug level.
type Trace struct{}

func (Trace) Priority() int { return PriorityTrace }

func (Trace) Handle(ctx context.Context, c *Call, next Next) (any, error) {
	logger := c.Runtime.logger

	if logger.Enabled(ctx, log.LevelTrace) {
		logger.TraceContext(ctx, "call",
			slog.String("command", c.Name),
			slog.String("args", parser.FormatArgs(c.Args, c.Kwargs)),
			slog.String("scope", c.Runtime.Top().Name()),
			slog.Any("position", c.Pos))
	}

	ret, err := next(ctx, c)
	if err != nil {
		logger.DebugContext(ctx, "call failed",
			slog.String("command", c.Name),
			slog.Any("error", err))
	}

	return ret, err
}
