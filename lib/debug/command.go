package debug

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/pkg"
)

// Commands resolves every command name to a stub that prints the call.
type Commands struct {
	Out io.Writer
}

// Resolve implements [parser.Resolver]. It never fails.
func (d *Commands) Resolve(name string) (parser.Callable, error) {
	return parser.Func(func(_ context.Context, st *parser.Statement) (any, error) {
		_, err := fmt.Fprintf(d.Out, "## [DEBUG] command %s with args %s kwds %s\n",
			name, formatArgs(st.Args), formatKwargs(st.Kwargs))

		return nil, err
	}), nil
}

// Run prints every statement read by lex. Syntax errors are printed and
// skipped; other errors are returned.
func (d *Commands) Run(ctx context.Context, lex *lexer.Lexer) error {
	p := parser.New(lex, d)

	for {
		err := p.Exec(ctx)
		if err == nil || !pkg.IsKoiLang(err) {
			return err
		}

		if _, err := fmt.Fprintf(d.Out, "## [ERROR] %s\n", err); err != nil {
			return err
		}
	}
}

func formatArgs(args []parser.Value) string {
	part := make([]string, len(args))
	for i, v := range args {
		part[i] = v.String()
	}

	return "[" + strings.Join(part, ", ") + "]"
}

func formatKwargs(kwargs parser.Dict) string {
	part := make([]string, 0, len(kwargs))
	for name, v := range kwargs.All() {
		part = append(part, name+": "+v.String())
	}

	return "{" + strings.Join(part, ", ") + "}"
}
