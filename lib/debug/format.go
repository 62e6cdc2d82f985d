package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/ardnew/kola/pkg"
)

// Format selects the encoding of a dump.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatYAML
)

// ErrFormat is returned for an unknown format name.
var ErrFormat = pkg.NewError("unknown format")

var formatName = [...]string{
	FormatText: "text",
	FormatJSON: "json",
	FormatYAML: "yaml",
}

func (f Format) String() string {
	if f >= 0 && int(f) < len(formatName) {
		return formatName[f]
	}

	return "unknown"
}

// Formats returns the names of all formats.
func Formats() iter.Seq[string] { return slices.Values(formatName[:]) }

// ParseFormat returns the format named s.
func ParseFormat(s string) (Format, error) {
	for i, name := range formatName {
		if strings.EqualFold(s, name) {
			return Format(i), nil
		}
	}

	return FormatText, ErrFormat.Wrap(fmt.Errorf("%q", s))
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}

	*f = v

	return nil
}

// encode writes v as JSON or YAML. A zero indent selects the compact form.
func encode(ctx context.Context, w io.Writer, v any, f Format, indent int) error {
	var (
		data []byte
		err  error
	)

	switch f {
	case FormatJSON:
		if indent > 0 {
			data, err = json.MarshalIndent(v, "", strings.Repeat(" ", indent))
		} else {
			data, err = json.Marshal(v)
		}

		if err == nil {
			data = append(data, '\n')
		}

	case FormatYAML:
		var opts []yaml.EncodeOption
		if indent > 0 {
			opts = append(opts, yaml.Indent(indent))
		} else {
			opts = append(opts, yaml.Flow(true))
		}

		data, err = yaml.MarshalContext(ctx, v, opts...)

	default:
		return ErrFormat.Wrap(fmt.Errorf("%s", f))
	}

	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}
