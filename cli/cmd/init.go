package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/kola/log"
	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/pkg"
	"github.com/ardnew/kola/profile"
	"github.com/ardnew/kola/writer"
)

// Init generates a default configuration file with current flag values.
//
// Each flag becomes a keyword of the command named by its group prefix:
// --log-level is written as "#log level(info)". Flags without a prefix are
// written as keywords of "#kola".
type Init struct {
	Force bool `help:"Overwrite existing configuration file" short:"f"`
}

// Run executes the init command.
func (i *Init) Run(ctx context.Context) (err error) {
	ctx, cancel := context.WithCancelCause(ctx)

	defer func(err *error) { cancel(*err) }(&err)

	ktx := kongContextFrom(ctx)
	if ktx == nil {
		panic("internal error: kong context undefined")
	}

	confPath, ok := ktx.Model.Vars()[ConfigIdentifier]
	if !ok {
		panic("internal error: config namespace undefined")
	}

	// Check if file exists and force not set
	_, err = os.Stat(confPath)
	if err == nil && !i.Force {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			With(slog.Bool("exists", true)).
			Wrap(ErrFileExists.Wrap(os.ErrExist))
	}

	file, err := os.Create(confPath)
	if err != nil {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			Wrap(err)
	}
	defer file.Close()

	if err := writeConfig(writer.New(file), ktx); err != nil {
		return ErrWriteConfig.
			With(slog.String("file", confPath)).
			Wrap(err)
	}

	log.DebugContext(
		ctx,
		"initialized configuration file",
		slog.String("path", confPath),
	)

	return nil
}

// configGroup is one command of the configuration file.
type configGroup struct {
	name   string
	kwargs parser.Dict
}

// writeConfig writes the set flag values of ktx as KoiLang commands.
func writeConfig(w *writer.Writer, ktx *kong.Context) error {
	var groups []*configGroup

	prefixIgnore := []string{"help", ConfigIdentifier, profile.Tag}

	for _, flag := range ktx.Model.Flags {
		if flag.Hidden || slices.ContainsFunc(prefixIgnore, func(s string) bool {
			return strings.HasPrefix(flag.Name, s)
		}) {
			continue
		}

		val, ok := flagValue(ktx.FlagValue(flag))
		if !ok {
			continue
		}

		group, key, found := strings.Cut(flag.Name, "-")
		if !found {
			group, key = pkg.Name, flag.Name
		}

		idx := slices.IndexFunc(groups, func(g *configGroup) bool { return g.name == group })
		if idx < 0 {
			groups = append(groups, &configGroup{name: group})
			idx = len(groups) - 1
		}

		g := groups[idx]
		g.kwargs = g.kwargs.With(strings.ReplaceAll(key, "-", "_"), val)
	}

	if err := w.Annotation(pkg.Name + " " + ConfigIdentifier); err != nil {
		return err
	}

	for _, g := range groups {
		if err := w.Command(g.name, nil, g.kwargs); err != nil {
			return err
		}
	}

	return w.Err()
}

// flagValue converts a flag value to a KoiLang value. Empty values are
// omitted.
func flagValue(v any) (parser.Value, bool) {
	switch x := v.(type) {
	case nil:
		return parser.Value{}, false

	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return parser.ValueOf(x), true

	case string:
		return parser.StringValue(x), x != ""

	case []string:
		items := make([]parser.Value, len(x))
		for i, s := range x {
			items[i] = parser.StringValue(s)
		}

		return parser.ListValue(items...), len(x) > 0

	default:
		s := fmt.Sprint(x)

		return parser.StringValue(s), s != ""
	}
}
