package klvm

import (
	"context"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/pkg"
)

// Virtual command names.
const (
	StartCommand     = "@start"
	EndCommand       = "@end"
	ExceptionCommand = "@exception"
)

// baseLang is the implicit parent of every language class.
var baseLang = func() *Class {
	c := &Class{name: "KoiLang", kind: kindLang}

	c.Command(StartCommand, nil, Virtual())
	c.Command(EndCommand, endRoot, Virtual())
	c.Command(ExceptionCommand, nil, Virtual())

	return c
}()

// baseEnv is the implicit parent of every environment class.
var baseEnv = func() *Class {
	c := &Class{name: "Environment", kind: kindEnv}

	c.Command(EndCommand, endEnv, Virtual())
	// Hidden: lookups fall through to the scope below.
	c.Command(ExceptionCommand, nil, Virtual(), Suppressed())

	return c
}()

// endRoot leaves every auto-pop environment on top of the root.
func endRoot(ctx context.Context, c *Call) (any, error) {
	rt := c.Runtime

	for top := rt.Top(); top.AutoPop(); top = rt.Top() {
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

// endEnv leaves the receiving environment if it is auto-pop, then runs the
// root's finalizer.
func endEnv(ctx context.Context, c *Call) (any, error) {
	rt := c.Runtime

	if s := c.Scope; s != nil && s.AutoPop() && s == rt.Top() {
		p, err := rt.PopPrepare(ctx, s.class)
		if err != nil {
			return nil, err
		}

		if err := rt.PopApply(ctx, p); err != nil {
			return nil, err
		}
	}

	cmd, ok := rt.root.class.Lookup(EndCommand)
	if !ok {
		return nil, nil
	}

	return rt.call(ctx, rt.root, cmd, EndCommand, nil, nil, c.Pos)
}

// Fault describes an error passed to @exception.
type Fault struct {
	Kind pkg.Kind
	Err  error
	Pos  lexer.Position
}

// FaultOf unpacks the arguments of an @exception call.
func FaultOf(c *Call) Fault {
	var f Fault

	if v, ok := c.Arg(1).Object(); ok {
		f.Err, _ = v.(error)
	}

	if v, ok := c.Arg(2).Object(); ok {
		f.Pos, _ = v.(lexer.Position)
	}

	f.Kind = pkg.KindOf(f.Err)

	return f
}

func faultArgs(err error) []parser.Value {
	pos, _ := lexer.PositionOf(err)

	return []parser.Value{
		parser.StringValue(pkg.KindOf(err).String()),
		parser.ObjectValue(err),
		parser.ObjectValue(pos),
	}
}
