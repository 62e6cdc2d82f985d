package debug

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/pkg"
	"github.com/ardnew/kola/writer"
)

// Options configures a dump.
type Options struct {
	Format Format
	Indent int // JSON and YAML indent width; 0 selects the compact form
}

// TokenRecord is the encoded form of a token or of a lexing error.
type TokenRecord struct {
	Kind     string `json:"kind"            yaml:"kind"`
	Text     string `json:"text,omitempty"  yaml:"text,omitempty"`
	Value    any    `json:"value,omitempty" yaml:"value,omitempty"`
	Depth    int    `json:"depth,omitempty" yaml:"depth,omitempty"`
	Position string `json:"pos"             yaml:"pos"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// StatementRecord is the encoded form of a statement or of a parse error.
type StatementRecord struct {
	Name     string         `json:"name,omitempty"   yaml:"name,omitempty"`
	Args     []any          `json:"args,omitempty"   yaml:"args,omitempty"`
	Kwargs   map[string]any `json:"kwargs,omitempty" yaml:"kwargs,omitempty"`
	Position string         `json:"pos"              yaml:"pos"`
	Error    string         `json:"error,omitempty"  yaml:"error,omitempty"`
}

func errorPosition(err error) string {
	if pos, ok := lexer.PositionOf(err); ok {
		return pos.String()
	}

	return ""
}

func tokenRecord(tok lexer.Token) TokenRecord {
	r := TokenRecord{
		Kind:     tok.Kind.String(),
		Text:     tok.Text,
		Depth:    tok.Depth,
		Position: tok.Pos.String(),
	}

	if tok.Kind.Literal() || tok.Kind == lexer.Number {
		r.Value = tok.Value

		if b, ok := tok.Value.([]byte); ok {
			r.Value = string(b)
		}
	}

	return r
}

// DumpTokens writes the tokens read by lex to w. Syntax errors are
// recorded in place and lexing continues; other errors stop the dump.
func DumpTokens(ctx context.Context, w io.Writer, lex *lexer.Lexer, o Options) error {
	var (
		recs []TokenRecord
		errs []error
	)

	for tok, err := range lex.All() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var r TokenRecord

		switch {
		case err == nil:
			r = tokenRecord(tok)
		case pkg.IsKoiLang(err):
			r = TokenRecord{Kind: "ERROR", Position: errorPosition(err), Error: err.Error()}
			errs = append(errs, err)
		default:
			return err
		}

		if o.Format != FormatText {
			recs = append(recs, r)

			continue
		}

		if err := writeToken(w, r, tok); err != nil {
			return err
		}
	}

	if o.Format != FormatText {
		if recs == nil {
			recs = []TokenRecord{}
		}

		if err := encode(ctx, w, recs, o.Format, o.Indent); err != nil {
			return err
		}
	}

	return errors.Join(errs...)
}

func writeToken(w io.Writer, r TokenRecord, tok lexer.Token) error {
	var err error

	if r.Error != "" {
		_, err = fmt.Fprintf(w, "## [ERROR] %s\n", r.Error)
	} else {
		_, err = fmt.Fprintf(w, "%s\t%s\n", r.Position, tok)
	}

	return err
}

func statementRecord(st *parser.Statement) StatementRecord {
	r := StatementRecord{Name: st.Name, Position: st.Pos.String()}

	for _, v := range st.Args {
		r.Args = append(r.Args, plain(v))
	}

	if len(st.Kwargs) > 0 {
		r.Kwargs = make(map[string]any, len(st.Kwargs))
		for name, v := range st.Kwargs.All() {
			r.Kwargs[name] = plain(v)
		}
	}

	return r
}

// plain converts a value to a form JSON and YAML encoders accept.
func plain(v parser.Value) any {
	switch v.Kind() {
	case parser.KindBytes:
		b, _ := v.Bytes()

		return string(b)
	case parser.KindList:
		items, _ := v.List()

		out := make([]any, len(items))
		for i, e := range items {
			out[i] = plain(e)
		}

		return out
	case parser.KindDict:
		d, _ := v.Dict()

		out := make(map[string]any, len(d))
		for name, e := range d.All() {
			out[name] = plain(e)
		}

		return out
	default:
		return v.Any()
	}
}

// DumpStatements writes the statements assembled by p to w without
// dispatching them. In text form the statements are written back as
// normalized KoiLang and syntax errors become annotations. Syntax errors
// are recorded in place; other errors stop the dump.
func DumpStatements(ctx context.Context, w io.Writer, p *parser.Parser, o Options) error {
	var (
		recs []StatementRecord
		errs []error
	)

	wr := writer.New(w, writer.WithThreshold(p.Lexer().Config().Threshold))

	for {
		st, err := p.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}

		var r StatementRecord

		switch {
		case err == nil:
			r = statementRecord(st)
		case pkg.IsKoiLang(err):
			r = StatementRecord{Position: errorPosition(err), Error: err.Error()}
			errs = append(errs, err)
		default:
			return err
		}

		if o.Format != FormatText {
			recs = append(recs, r)

			continue
		}

		if err == nil {
			err = wr.Statement(st)
		} else {
			err = wr.Annotation("[ERROR] " + r.Error)
		}

		if err != nil {
			return err
		}
	}

	if o.Format != FormatText {
		if recs == nil {
			recs = []StatementRecord{}
		}

		if err := encode(ctx, w, recs, o.Format, o.Indent); err != nil {
			return err
		}
	}

	return errors.Join(errs...)
}
