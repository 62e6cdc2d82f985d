package kolamain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/ardnew/mung"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/ardnew/kola/klvm"
	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/pkg"
)

// builtins are the names available to eval besides the variables.
var builtins = map[string]any{
	"env":      os.Getenv,
	"joinpath": filepath.Join,
	"cwd": func() string {
		d, _ := os.Getwd()

		return d
	},
}

func (l *lang) eval(_ context.Context, c *klvm.Call) (any, error) {
	src, err := c.String(0)
	if err != nil {
		return nil, err
	}

	st := stateOf(c)

	program, ok := st.programs[src]
	if !ok {
		program, err = expr.Compile(src, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, ErrEval.With(slog.String("expr", src)).Wrap(err)
		}

		st.programs[src] = program
	}

	env := maps.Clone(builtins)
	maps.Copy(env, st.Vars)

	out, err := vm.Run(program, env)
	if err != nil {
		return nil, ErrEval.With(slog.String("expr", src)).Wrap(err)
	}

	if v, ok := c.Kwarg("as"); ok {
		name, _ := v.Str()
		st.Vars[name] = out

		return out, nil
	}

	return out, l.print("%s\n", Display(out))
}

// mkdir creates a directory. The mode is written in octal digits, as in
// "mkdir tmp 755".
func (l *lang) mkdir(_ context.Context, c *klvm.Call) (any, error) {
	dir, err := c.String(0)
	if err != nil {
		return nil, err
	}

	mode := os.FileMode(0o777)

	v, ok := c.Kwarg("mode")
	if !ok && len(c.Args) > 1 {
		v, ok = c.Arg(1), true
	}

	if ok {
		n, isInt := v.Int()
		if !isInt {
			return nil, ErrFile.With(slog.String("mode", v.String()))
		}

		m, err := strconv.ParseUint(strconv.FormatInt(n, 10), 8, 32)
		if err != nil {
			return nil, ErrFile.With(slog.Int64("mode", n)).Wrap(err)
		}

		mode = os.FileMode(m)
	}

	if err := os.Mkdir(dir, mode); err != nil {
		return nil, ErrFile.With(slog.String("op", "mkdir")).Wrap(err)
	}

	return dir, nil
}

func (l *lang) remove(_ context.Context, c *klvm.Call) (any, error) {
	path, err := c.String(0)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(path); err != nil {
		return nil, ErrFile.With(slog.String("op", "remove")).Wrap(err)
	}

	return path, nil
}

// path prepends directories to the load path and returns the result.
func (l *lang) path(_ context.Context, c *klvm.Call) (any, error) {
	st := stateOf(c)

	if len(c.Args) > 0 {
		dirs := make([]string, len(c.Args))
		for i := range c.Args {
			d, err := c.String(i)
			if err != nil {
				return nil, err
			}

			dirs[i] = d
		}

		st.search = mung.Make(
			mung.WithSubjectItems(st.search),
			mung.WithDelim(string(os.PathListSeparator)),
			mung.WithPrefixItems(dirs...),
		).String()

		return st.Path(), nil
	}

	for _, d := range st.Path() {
		if err := l.print("%s\n", d); err != nil {
			return nil, err
		}
	}

	return st.Path(), nil
}

func (l *lang) load(ctx context.Context, c *klvm.Call) (any, error) {
	name, err := c.String(0)
	if err != nil {
		return nil, err
	}

	typ := "kola"
	if len(c.Args) > 1 {
		if typ, err = c.String(1); err != nil {
			return nil, err
		}
	} else if v, ok := c.Kwarg("type"); ok {
		typ, _ = v.Str()
	}

	if typ != "kola" {
		return nil, ErrLoad.With(slog.String("type", typ))
	}

	st := stateOf(c)

	path, err := st.find(name)
	if err != nil {
		return nil, err
	}

	if slices.Contains(st.loading, path) {
		return nil, ErrLoad.With(slog.String("cycle", path))
	}

	opts := c.Runtime.LexerOptions()
	if v, ok := c.Kwarg("encoding"); ok {
		enc, _ := v.Str()
		opts = append(opts, lexer.WithEncoding(enc))
	}

	lex, err := lexer.Open(path, opts...)
	if err != nil {
		return nil, err
	}

	st.loading = append(st.loading, path)

	defer func() { st.loading = st.loading[:len(st.loading)-1] }()

	err = c.Runtime.Parse(ctx, lex)
	if cerr := lex.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		return nil, pkg.Annotate(err, slog.String("file", path))
	}

	return path, nil
}

// find resolves name relative to the working directory, the directory of
// the file being loaded, then the load path.
func (st *State) find(name string) (string, error) {
	dirs := []string{""}

	if n := len(st.loading); n > 0 {
		dirs = append(dirs, filepath.Dir(st.loading[n-1]))
	}

	if !filepath.IsAbs(name) {
		dirs = append(dirs, st.Path()...)
	}

	for _, d := range dirs {
		p := name
		if d != "" && !filepath.IsAbs(name) {
			p = filepath.Join(d, name)
		}

		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs, nil
			}

			return p, nil
		}
	}

	return "", ErrLoad.With(slog.String("file", name)).Wrap(os.ErrNotExist)
}

// openFile is the state of a File environment.
type openFile struct {
	f *os.File
	w io.Writer
}

func (l *lang) open(_ context.Context, c *klvm.Call) (any, error) {
	path, err := c.String(0)
	if err != nil {
		return nil, err
	}

	mode := "w"
	if len(c.Args) > 1 {
		if mode, err = c.String(1); err != nil {
			return nil, err
		}
	}

	flag := os.O_WRONLY | os.O_CREATE

	switch mode {
	case "w":
		flag |= os.O_TRUNC
	case "a":
		flag |= os.O_APPEND
	case "x":
		flag |= os.O_EXCL
	default:
		return nil, ErrFile.With(slog.String("mode", mode))
	}

	f, err := os.OpenFile(path, flag, 0o666)
	if err != nil {
		return nil, ErrFile.With(slog.String("op", "open")).Wrap(err)
	}

	w := io.Writer(f)

	if v, ok := c.Kwarg("encoding"); ok {
		name, _ := v.Str()

		enc, err := lexer.LookupEncoding(name)
		if err != nil {
			_ = f.Close()

			return nil, err
		}

		if enc != nil {
			w = enc.NewEncoder().Writer(f)
		}
	}

	c.Scope.State = &openFile{f: f, w: w}

	return path, nil
}

func (l *lang) write(_ context.Context, c *klvm.Call) (any, error) {
	s, err := c.String(0)
	if err != nil {
		return nil, err
	}

	of, ok := klvm.StateOf[*openFile](c.Scope)
	if !ok || of.f == nil {
		return nil, ErrFile.With(slog.String("op", "write"))
	}

	if _, err := io.WriteString(of.w, s+"\n"); err != nil {
		return nil, ErrFile.With(slog.String("op", "write")).Wrap(err)
	}

	return s, nil
}

func (l *lang) close(ctx context.Context, c *klvm.Call) (any, error) {
	return nil, closeFile(ctx, c.Scope, nil)
}

func closeFile(_ context.Context, s *klvm.Scope, _ *klvm.Scope) error {
	of, ok := klvm.StateOf[*openFile](s)
	if !ok || of.f == nil {
		return nil
	}

	var errs []error

	if wc, ok := of.w.(io.Closer); ok && of.w != io.Writer(of.f) {
		errs = append(errs, wc.Close())
	}

	err := errors.Join(append(errs, of.f.Close())...)
	of.f = nil

	if err != nil {
		return ErrFile.With(slog.String("op", "close")).Wrap(err)
	}

	return nil
}
