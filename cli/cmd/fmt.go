package cmd

import (
	"context"
	"errors"

	"github.com/ardnew/kola/lib/debug"
	"github.com/ardnew/kola/parser"
)

// Fmt parses the statements of a source without running them and prints
// them as normalized KoiLang, JSON or YAML.
type Fmt struct {
	Lexing `embed:""`
	Dump   `embed:""`
}

// Run executes the fmt command.
func (f *Fmt) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if err := f.Lexing.validate(); err != nil {
		return err
	}

	lex, err := f.Dump.open(f.Lexing)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, lex.Close()) }()

	out, _ := outputFrom(ctx)

	return debug.DumpStatements(ctx, out, parser.New(lex, parser.Table{}), f.Dump.options())
}
