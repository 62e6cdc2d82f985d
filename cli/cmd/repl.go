package cmd

import (
	"bytes"
	"context"
	"path/filepath"

	"github.com/ardnew/kola/cli/cmd/repl"
	"github.com/ardnew/kola/klvm"
	"github.com/ardnew/kola/lib/kolamain"
	"github.com/ardnew/kola/log"
	"github.com/ardnew/kola/pkg"
)

// Repl starts an interactive session with the default language.
type Repl struct {
	Lexing `embed:""`

	Path      []string `help:"Directories searched by the load command." placeholder:"DIR" type:"path"`
	NoHistory bool     `help:"Do not load or save the input history."`
}

// Run executes the repl command.
func (r *Repl) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	if err := r.Lexing.validate(); err != nil {
		return err
	}

	var out bytes.Buffer

	rt, err := kolamain.New([]kolamain.Option{
		kolamain.WithOutput(&out),
		kolamain.WithErrorOutput(&out),
		kolamain.WithPath(r.Path...),
		kolamain.WithKeepGoing(true),
	}, append(r.Lexing.runtimeOptions(), klvm.WithLogger(log.Default()))...)
	if err != nil {
		return err
	}

	session := repl.Session{
		Runtime: rt,
		Output:  &out,
		Logger:  log.Default(),
	}

	if !r.NoHistory {
		session.History = filepath.Join(cacheDirFrom(ctx), repl.HistoryFile)
	}

	return session.Run(ctx)
}

// cacheDirFrom returns the cache directory defined in the kong variables,
// or the default cache directory.
func cacheDirFrom(ctx context.Context) string {
	if ktx := kongContextFrom(ctx); ktx != nil {
		if dir, ok := ktx.Model.Vars()[CacheIdentifier]; ok && dir != "" {
			return dir
		}
	}

	return pkg.CacheDir()
}
