package parser

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/log"
	"github.com/ardnew/kola/pkg"
)

// Errors returned while assembling statements.
var (
	ErrUnexpectedToken = pkg.NewSyntaxError("unexpected token")
	ErrMixedItems      = pkg.NewSyntaxError("mixed named and unnamed items")
	ErrDuplicateKey    = pkg.NewSyntaxError("duplicate keyword")
	ErrUnknownCommand  = pkg.NewCommandError("unknown command")
)

// Callable is a resolved command.
type Callable interface {
	Invoke(ctx context.Context, st *Statement) (any, error)
}

// Func adapts a function to [Callable].
type Func func(ctx context.Context, st *Statement) (any, error)

// Invoke calls f.
func (f Func) Invoke(ctx context.Context, st *Statement) (any, error) { return f(ctx, st) }

// Resolver maps command names to callables.
type Resolver interface {
	Resolve(name string) (Callable, error)
}

// Table is a static [Resolver].
type Table map[string]Callable

// Resolve returns the callable registered under name.
func (t Table) Resolve(name string) (Callable, error) {
	if c, ok := t[name]; ok {
		return c, nil
	}

	return nil, ErrUnknownCommand.
		With(slog.String("command", name)).
		Wrap(errors.New(name))
}

// Option configures a [Parser].
type Option func(*Parser)

// WithLogger sets the structured logger for trace-level debugging.
func WithLogger(logger log.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// Parser assembles statements from a token stream and dispatches them.
type Parser struct {
	lex      *lexer.Lexer
	resolver Resolver
	logger   log.Logger
	ahead    *lexer.Token
	last     lexer.Kind
}

// New returns a Parser reading lex and resolving commands with r.
func New(lex *lexer.Lexer, r Resolver, opts ...Option) *Parser {
	p := &Parser{lex: lex, resolver: r, last: lexer.End}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p
}

// Lexer returns the underlying lexer.
func (p *Parser) Lexer() *lexer.Lexer { return p.lex }

// Exec runs statements until the end of the stream or the first error.
func (p *Parser) Exec(ctx context.Context) error {
	for {
		_, err := p.ExecOnce(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}
	}
}

// ExecOnce assembles and dispatches exactly one statement and returns its
// result. It returns [io.EOF] at the end of the stream.
func (p *Parser) ExecOnce(ctx context.Context) (any, error) {
	st, err := p.Next(ctx)
	if err != nil {
		return nil, err
	}

	return p.Invoke(ctx, st)
}

// All returns an iterator over statement results. Iteration stops after
// the end of the stream or after yielding an error; calling All again
// resumes with the next statement.
func (p *Parser) All(ctx context.Context) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for {
			v, err := p.ExecOnce(ctx)
			if errors.Is(err, io.EOF) {
				return
			}

			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

// Invoke resolves and calls st.
func (p *Parser) Invoke(ctx context.Context, st *Statement) (any, error) {
	c, err := p.resolver.Resolve(st.Name)
	if err != nil {
		return nil, lexer.WithPosition(err, st.Pos)
	}

	v, err := c.Invoke(ctx, st)
	if err != nil {
		return nil, lexer.WithPosition(err, st.Pos)
	}

	return v, nil
}

// Next assembles the next statement without dispatching it.
// It returns [io.EOF] at the end of the stream.
func (p *Parser) Next(ctx context.Context) (*Statement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tok, err := p.next()
	if err != nil {
		return nil, err
	}

	switch tok.Kind {
	case lexer.EOF:
		return nil, io.EOF

	case lexer.Text:
		return &Statement{
			Name: TextCommand,
			Args: []Value{StringValue(tok.Text)},
			Pos:  tok.Pos,
		}, nil

	case lexer.Number:
		return &Statement{
			Name: NumberCommand,
			Args: []Value{ValueOf(tok.Value)},
			Pos:  tok.Pos,
		}, nil

	case lexer.Annotation:
		return &Statement{
			Name: AnnotationCommand,
			Args: []Value{StringValue(tok.Text)},
			Pos:  tok.Pos,
		}, nil

	case lexer.Command:
		st := &Statement{Name: tok.Text, Pos: tok.Pos}

		if err := p.arguments(st); err != nil {
			p.skipLine()

			return nil, err
		}

		p.logger.Trace("statement",
			slog.String("command", st.Name),
			slog.Any("position", st.Pos))

		return st, nil

	default:
		p.skipLine()

		return nil, unexpected(tok)
	}
}

// ParseArgs assembles one bare argument list, as produced by a lexer
// started in [lexer.StateArgs].
func (p *Parser) ParseArgs() ([]Value, Dict, error) {
	var st Statement

	if err := p.arguments(&st); err != nil {
		p.skipLine()

		return nil, nil, err
	}

	return st.Args, st.Kwargs, nil
}

func (p *Parser) next() (lexer.Token, error) {
	if p.ahead != nil {
		tok := *p.ahead
		p.ahead = nil
		p.last = tok.Kind

		return tok, nil
	}

	tok, err := p.lex.Next()
	if err != nil {
		p.last = lexer.End // the lexer already dropped the line

		return tok, err
	}

	p.last = tok.Kind

	return tok, nil
}

func (p *Parser) peek() (lexer.Token, error) {
	if p.ahead == nil {
		last := p.last

		tok, err := p.next()
		if err != nil {
			return tok, err
		}

		p.ahead = &tok
		p.last = last
	}

	return *p.ahead, nil
}

// skipLine discards the remaining tokens of the current command.
func (p *Parser) skipLine() {
	for p.last != lexer.End && p.last != lexer.EOF {
		if _, err := p.next(); err != nil {
			return
		}
	}
}

func unexpected(tok lexer.Token) error {
	return lexer.ErrorAt(ErrUnexpectedToken, tok.Pos, "%s", tok)
}

// arguments reads positional and keyword arguments up to End.
func (p *Parser) arguments(st *Statement) error {
	for {
		tok, err := p.next()
		if err != nil {
			return err
		}

		switch {
		case tok.Kind == lexer.End || tok.Kind == lexer.EOF:
			return nil

		case tok.Kind == lexer.Ident:
			ahead, err := p.peek()
			if err != nil {
				return err
			}

			if ahead.Kind != lexer.LParen {
				st.Args = append(st.Args, literal(tok))

				continue
			}

			_, _ = p.next()

			body, err := p.body()
			if err != nil {
				return err
			}

			if st.Kwargs.Has(tok.Text) {
				return lexer.ErrorAt(ErrDuplicateKey, tok.Pos, "%s", tok.Text)
			}

			st.Kwargs = st.Kwargs.With(tok.Text, body)

		case tok.Kind.Literal():
			st.Args = append(st.Args, literal(tok))

		default:
			return unexpected(tok)
		}
	}
}

type item struct {
	name  string
	value Value
	pos   lexer.Position
}

// body reads a parenthesized body after its opening parenthesis.
func (p *Parser) body() (Value, error) {
	var items []item

	for {
		tok, err := p.next()
		if err != nil {
			return Value{}, err
		}

		if tok.Kind == lexer.RParen {
			break
		}

		it, err := p.item(tok)
		if err != nil {
			return Value{}, err
		}

		items = append(items, it)

		sep, err := p.next()
		if err != nil {
			return Value{}, err
		}

		if sep.Kind == lexer.RParen {
			break
		}

		if sep.Kind != lexer.Comma {
			return Value{}, unexpected(sep)
		}
	}

	return collect(items)
}

// item reads one body item starting at tok.
func (p *Parser) item(tok lexer.Token) (item, error) {
	if tok.Kind == lexer.Ident {
		ahead, err := p.peek()
		if err != nil {
			return item{}, err
		}

		if ahead.Kind == lexer.Colon {
			_, _ = p.next()

			vt, err := p.next()
			if err != nil {
				return item{}, err
			}

			v, err := p.value(vt)
			if err != nil {
				return item{}, err
			}

			return item{name: tok.Text, value: v, pos: tok.Pos}, nil
		}
	}

	v, err := p.value(tok)
	if err != nil {
		return item{}, err
	}

	return item{value: v, pos: tok.Pos}, nil
}

// value reads a literal or a nested keyword form.
func (p *Parser) value(tok lexer.Token) (Value, error) {
	if tok.Kind == lexer.Ident {
		ahead, err := p.peek()
		if err != nil {
			return Value{}, err
		}

		if ahead.Kind == lexer.LParen {
			_, _ = p.next()

			inner, err := p.body()
			if err != nil {
				return Value{}, err
			}

			return DictValue(Dict{{Name: tok.Text, Value: inner}}), nil
		}
	}

	if !tok.Kind.Literal() {
		return Value{}, unexpected(tok)
	}

	return literal(tok), nil
}

// collect folds body items into a value: a dict when every item is named,
// the single item itself, or a list.
func collect(items []item) (Value, error) {
	if len(items) == 0 {
		return ListValue(), nil
	}

	named := items[0].name != ""

	for _, it := range items[1:] {
		if (it.name != "") != named {
			return Value{}, lexer.ErrorAt(ErrMixedItems, it.pos, "%s", it.value)
		}
	}

	if named {
		var d Dict

		for _, it := range items {
			if d.Has(it.name) {
				return Value{}, lexer.ErrorAt(ErrDuplicateKey, it.pos, "%s", it.name)
			}

			d = d.With(it.name, it.value)
		}

		return DictValue(d), nil
	}

	if len(items) == 1 {
		return items[0].value, nil
	}

	values := make([]Value, len(items))
	for i, it := range items {
		values[i] = it.value
	}

	return ListValue(values...), nil
}

func literal(tok lexer.Token) Value {
	switch v := tok.Value.(type) {
	case string:
		return StringValue(v)
	case []byte:
		return BytesValue(v)
	case int64:
		return IntValue(v)
	case float64:
		return FloatValue(v)
	default:
		return StringValue(tok.Text)
	}
}
