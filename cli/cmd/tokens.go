package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/lib/debug"
)

// Dump holds the output flags of the tokens and fmt commands.
type Dump struct {
	Format debug.Format `default:"text" help:"Output format: text, json or yaml." short:"f"`
	Indent int          `default:"2"    help:"Indent width for JSON and YAML output; 0 for compact."`

	Source string `arg:"" default:"-" help:"Source input file or '-' for default stdin." name:"source"`
}

func (d Dump) options() debug.Options {
	return debug.Options{Format: d.Format, Indent: d.Indent}
}

// open returns a lexer over the source named by d.
func (d Dump) open(l Lexing) (*lexer.Lexer, error) {
	src := Source{Name: stdinName}
	if d.Source != stdinSource {
		src = Source{Name: d.Source, Path: d.Source}
	}

	rc, err := src.Open()
	if err != nil {
		return nil, ErrSource.With(slog.String("source", src.Name)).Wrap(err)
	}

	return lexer.New(rc, append(l.lexerOptions(), lexer.WithFilename(src.Name))...), nil
}

// Tokens prints the token stream of a source.
type Tokens struct {
	Lexing `embed:""`
	Dump   `embed:""`
}

// Run executes the tokens command.
func (t *Tokens) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if err := t.Lexing.validate(); err != nil {
		return err
	}

	lex, err := t.Dump.open(t.Lexing)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, lex.Close()) }()

	out, _ := outputFrom(ctx)

	return debug.DumpTokens(ctx, out, lex, t.Dump.options())
}
