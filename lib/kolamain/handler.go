package kolamain

import (
	"context"
	"regexp"

	"github.com/ardnew/kola/klvm"
	"github.com/ardnew/kola/parser"
)

// PrioritySubstitute runs variable substitution right before the command
// body.
const PrioritySubstitute = 1

var varPattern = regexp.MustCompile(`\$(?:\{([A-Za-z_]\w*)\}|([A-Za-z_]\w*))`)

// Substitute replaces $name and ${name} in s with the variables of rt.
// Unset variables expand to the empty string.
func Substitute(rt *klvm.Runtime, s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		sub := varPattern.FindStringSubmatch(m)

		name := sub[1]
		if name == "" {
			name = sub[2]
		}

		return Display(Var(rt, name))
	})
}

// substitute expands variable references in the string arguments of every
// call before the command body runs.
type substitute struct{ root *klvm.Scope }

func (*substitute) Priority() int { return PrioritySubstitute }

func (h *substitute) Handle(ctx context.Context, c *klvm.Call, next klvm.Next) (any, error) {
	rt := h.root.Runtime()

	args := make([]parser.Value, len(c.Args))
	for i, v := range c.Args {
		args[i] = expand(rt, v)
	}

	var kwargs parser.Dict
	for name, v := range c.Kwargs.All() {
		kwargs = kwargs.With(name, expand(rt, v))
	}

	sub := *c
	sub.Args, sub.Kwargs = args, kwargs

	ret, err := next(ctx, &sub)
	c.Result = sub.Result

	return ret, err
}

func expand(rt *klvm.Runtime, v parser.Value) parser.Value {
	switch v.Kind() {
	case parser.KindString:
		s, _ := v.Str()

		return parser.StringValue(Substitute(rt, s))
	case parser.KindList:
		items, _ := v.List()

		out := make([]parser.Value, len(items))
		for i, e := range items {
			out[i] = expand(rt, e)
		}

		return parser.ListValue(out...)
	case parser.KindDict:
		d, _ := v.Dict()

		var out parser.Dict
		for name, e := range d.All() {
			out = out.With(name, expand(rt, e))
		}

		return parser.DictValue(out)
	default:
		return v
	}
}

func debugging(root *klvm.Scope) func() bool {
	return func() bool {
		st, ok := klvm.StateOf[*State](root)

		return ok && st.Debug
	}
}
