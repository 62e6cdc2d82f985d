package cmd

import (
	"log/slog"

	"github.com/ardnew/kola/klvm"
	"github.com/ardnew/kola/lexer"
)

// Lexing holds the flags shared by commands that read KoiLang sources.
type Lexing struct {
	Encoding  string `help:"Source encoding (default utf-8)."             placeholder:"NAME"`
	Threshold int    `help:"Number of markers that introduce a command." default:"0"      placeholder:"N"`
}

// validate reports an unknown encoding before any source is read.
func (l Lexing) validate() error {
	if l.Encoding != "" && !lexer.ValidEncoding(l.Encoding) {
		return lexer.ErrUnknownEncoding.With(slog.String("encoding", l.Encoding))
	}

	return nil
}

// lexerOptions returns the lexer options selected by the flags, for
// commands that lex without a runtime.
func (l Lexing) lexerOptions() []lexer.Option {
	opts := []lexer.Option{lexer.WithThreshold(l.Threshold)}

	if l.Encoding != "" {
		opts = append(opts, lexer.WithEncoding(l.Encoding))
	}

	return opts
}

// runtimeOptions returns the runtime options selected by the flags.
func (l Lexing) runtimeOptions() []klvm.Option {
	return []klvm.Option{
		klvm.WithThreshold(l.Threshold),
		klvm.WithEncoding(l.Encoding),
	}
}
