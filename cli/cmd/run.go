package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ardnew/kola/klvm"
	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/lib/debug"
	"github.com/ardnew/kola/lib/kolamain"
	"github.com/ardnew/kola/log"
)

// Debuggers selectable with --debug.
const (
	debugCommand = "command"
	debugTrace   = "trace"
)

// inputName is the file name of the -i source in error positions.
const inputName = "<input>"

// Run executes KoiLang sources with the default language.
type Run struct {
	Lexing `embed:""`

	Input     string   `help:"Run TEXT instead of the sources."                                   placeholder:"TEXT" short:"i"`
	KeepGoing bool     `help:"Report errors and continue with the next statement."                                   short:"k"`
	Path      []string `help:"Directories searched by the load command."                          placeholder:"DIR"  type:"path"`
	Debug     string   `enum:",command,trace" default:"" help:"Print commands instead of running them (command) or trace every call (trace)."`

	Sources []string `arg:"" help:"Source files or directories, or '-' for stdin. Without sources, runs stdin or starts a REPL on a terminal." name:"source" optional:""`
}

// Run executes the run command.
func (r *Run) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if err := r.Lexing.validate(); err != nil {
		return err
	}

	srcs, err := r.sources()
	if err != nil {
		return err
	}

	if srcs == nil && r.Input == "" {
		repl := Repl{Lexing: r.Lexing, Path: r.Path}

		return repl.Run(ctx)
	}

	if r.Debug == debugCommand {
		return r.debugCommands(ctx, srcs)
	}

	out, errOut := outputFrom(ctx)

	rtOpts := append(r.Lexing.runtimeOptions(), klvm.WithLogger(log.Default()))
	if r.Debug == debugTrace {
		rtOpts = append(rtOpts, klvm.WithHandlers(&debug.Tracer{Out: errOut}))
	}

	rt, err := kolamain.New([]kolamain.Option{
		kolamain.WithOutput(out),
		kolamain.WithErrorOutput(errOut),
		kolamain.WithPath(r.Path...),
		kolamain.WithKeepGoing(r.KeepGoing),
	}, rtOpts...)
	if err != nil {
		return err
	}

	if r.Input != "" {
		opts := append(rt.LexerOptions(), lexer.WithFilename(inputName))

		return rt.Parse(ctx, lexer.NewString(r.Input, opts...))
	}

	for _, src := range srcs {
		log.DebugContext(ctx, "run source", slog.String("source", src.Name))

		if err := runSource(ctx, rt, src); err != nil {
			return err
		}
	}

	return nil
}

// sources resolves the positional sources. It returns nil when stdin
// should be replaced by a REPL.
func (r *Run) sources() ([]Source, error) {
	if r.Input != "" {
		return nil, nil
	}

	if len(r.Sources) > 0 {
		srcs, err := Sources(r.Sources)
		if err != nil {
			return nil, err
		}

		if len(srcs) == 0 {
			return nil, ErrNoSource
		}

		return srcs, nil
	}

	if fd := os.Stdin.Fd(); isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return nil, nil
	}

	return []Source{{Name: stdinName}}, nil
}

func runSource(ctx context.Context, rt *klvm.Runtime, src Source) (err error) {
	rc, err := src.Open()
	if err != nil {
		return ErrSource.With(slog.String("source", src.Name)).Wrap(err)
	}

	defer func() { err = errors.Join(err, rc.Close()) }()

	opts := append(rt.LexerOptions(), lexer.WithFilename(src.Name))

	return rt.Parse(ctx, lexer.New(rc, opts...))
}

// debugCommands prints the commands of every source instead of running
// them.
func (r *Run) debugCommands(ctx context.Context, srcs []Source) error {
	out, _ := outputFrom(ctx)

	d := &debug.Commands{Out: out}

	lex := func(rd io.Reader, name string) *lexer.Lexer {
		return lexer.New(rd, append(r.Lexing.lexerOptions(), lexer.WithFilename(name))...)
	}

	if r.Input != "" {
		return d.Run(ctx, lex(strings.NewReader(r.Input), inputName))
	}

	for _, src := range srcs {
		rc, err := src.Open()
		if err != nil {
			return ErrSource.With(slog.String("source", src.Name)).Wrap(err)
		}

		err = d.Run(ctx, lex(rc, src.Name))

		if cerr := rc.Close(); err == nil {
			err = cerr
		}

		if err != nil {
			return err
		}
	}

	return nil
}
