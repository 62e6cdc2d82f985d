package klvm

import (
	"context"
	"io"
	"strings"

	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/writer"
)

// WriterFunc serializes a call in a writer runtime. Attach one to a
// command with [WithWriter].
type WriterFunc func(w *writer.Writer, c *Call) error

// WriterHandler serializes calls instead of running them. Virtual commands
// other than @text, @number and @annotation pass through to the rest of
// the chain.
//
// Indentation follows the push and pop hooks: a pushed scope indents its
// body one level, and a pop returns to the level of the scope below.
type WriterHandler struct {
	W *writer.Writer

	level int
}

func (*WriterHandler) Priority() int { return PriorityWriter }

// Pushed implements [PushHook].
func (h *WriterHandler) Pushed(_ context.Context, s *Scope) { h.level = s.Depth() }

// Popping implements [PopHook]. An exit command has already lowered the
// level to the scope it leaves, which may lie below s.
func (h *WriterHandler) Popping(_ context.Context, s *Scope) {
	h.level = max(min(h.level, s.Depth()-1), 0)
}

func (h *WriterHandler) Handle(ctx context.Context, c *Call, next Next) (any, error) {
	cmd := c.Command

	switch name := cmd.name; {
	case name == parser.TextCommand,
		name == parser.NumberCommand,
		name == parser.AnnotationCommand:
	case strings.HasPrefix(name, "@"):
		return next(ctx, c)
	}

	if err := cmd.params.Check(c.Name, c.Args, c.Kwargs); err != nil {
		return nil, err
	}

	// Entry commands are written before their scope is pushed and exit
	// commands at the level below the scope they leave.
	if cmd.IsExit() && c.Scope != nil {
		h.level = c.Scope.Depth() - 1
	}

	h.W.SetLevel(h.level)

	if fn, ok := c.Options[OptionWriter].(WriterFunc); ok {
		return nil, fn(h.W, c)
	}

	return nil, h.W.Statement(&parser.Statement{
		Name:   c.Name,
		Args:   c.Args,
		Kwargs: c.Kwargs,
	})
}

// NewWriter returns a runtime of lang that writes every command it
// dispatches to w as KoiLang instead of running it. Environments are
// still entered and left, and indent their body.
func NewWriter(lang *Class, w io.Writer, opts ...Option) (*Runtime, error) {
	rt, err := New(lang, opts...)
	if err != nil {
		return nil, err
	}

	rt.AddHandler(&WriterHandler{
		W:     writer.New(w, writer.WithThreshold(rt.Threshold())),
		level: rt.Top().Depth(),
	})

	return rt, nil
}
