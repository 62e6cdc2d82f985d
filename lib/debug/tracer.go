package debug

import (
	"context"
	"fmt"
	"io"

	"github.com/ardnew/kola/klvm"
)

// PriorityTracer runs the tracer after the trace logger and before every
// other built-in handler.
const PriorityTracer = 15

// Tracer is a handler that prints every call and environment change of a
// runtime.
type Tracer struct {
	Out io.Writer
	// Enabled reports whether to print. A nil Enabled always prints.
	Enabled func() bool
	// Dry stops calls after printing them.
	Dry bool
}

func (t *Tracer) on() bool { return t.Enabled == nil || t.Enabled() }

// Priority implements [klvm.Handler].
func (*Tracer) Priority() int { return PriorityTracer }

// Handle implements [klvm.Handler]. Calls of @exception are not printed.
func (t *Tracer) Handle(ctx context.Context, c *klvm.Call, next klvm.Next) (any, error) {
	if c.Name == klvm.ExceptionCommand || !t.on() {
		return next(ctx, c)
	}

	_, _ = fmt.Fprintf(t.Out, "## [DEBUG] Run command: %s (%s)\n", c.Name, c.Class.Name())

	if t.Dry {
		return nil, nil
	}

	return next(ctx, c)
}

// Pushed implements [klvm.PushHook].
func (t *Tracer) Pushed(_ context.Context, s *klvm.Scope) {
	if t.on() {
		_, _ = fmt.Fprintf(t.Out, "## [DEBUG] Push env: %s\n", s.Name())
	}
}

// Popping implements [klvm.PopHook].
func (t *Tracer) Popping(_ context.Context, s *klvm.Scope) {
	if t.on() {
		_, _ = fmt.Fprintf(t.Out, "## [DEBUG] Pop env: %s\n", s.Name())
	}
}
