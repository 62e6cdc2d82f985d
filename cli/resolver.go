package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"

	"github.com/ardnew/kola/lexer"
	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/pkg"
)

// ErrConfig is returned when a configuration file cannot be loaded.
var ErrConfig = pkg.NewResourceError("load configuration")

// loadKoiLang is a [kong.ConfigurationLoader] that reads configuration
// files written in KoiLang.
//
// It can be used with [kong.Configuration] like this:
//
//	kong.Configuration(loadKoiLang, "/path/to/config.kola")
//
// Each command names a flag group and each of its keywords a flag of that
// group. Underscores in keywords stand for hyphens. Keywords of the
// command "kola" name flags without a group:
//
//	#log level(debug) format(text) time_layout(Kitchen)
//	#pprof mode(cpu)
//
// This configuration will be applied to Kong flags:
//
//	--log-level=debug --log-format=text --log-time-layout=Kitchen
//	--pprof-mode=cpu
//
// Text and annotations are ignored. Command-line flags override config
// file values.
func loadKoiLang(r io.Reader) (kong.Resolver, error) {
	cfg := config{}

	p := parser.New(lexer.New(r, lexer.WithFilename(nameOf(r))), collector{cfg})

	if err := p.Exec(context.Background()); err != nil {
		return nil, ErrConfig.Wrap(err)
	}

	return cfg, nil
}

// loadYAML is a [kong.ConfigurationLoader] that reads YAML configuration
// files. Nested mappings name flag groups:
//
//	log:
//	  level: debug
//	  time_layout: Kitchen
func loadYAML(r io.Reader) (kong.Resolver, error) {
	var doc map[string]any

	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return config{}, nil
		}

		return nil, ErrConfig.With(slog.String("file", nameOf(r))).Wrap(err)
	}

	cfg := config{}
	cfg.flatten("", doc)

	return cfg, nil
}

// loaderFor returns the loader of a configuration file by extension.
func loaderFor(path string) kong.ConfigurationLoader {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return loadYAML
	default:
		return loadKoiLang
	}
}

func nameOf(r io.Reader) string {
	if f, ok := r.(interface{ Name() string }); ok {
		return f.Name()
	}

	return "<config>"
}

// configFile is a flag naming an additional configuration file. The file
// is loaded before flags are resolved, taking precedence over the default
// configuration files.
type configFile string

// BeforeResolve adds the resolver of the named file.
func (configFile) BeforeResolve(ktx *kong.Context, trace *kong.Path) error {
	path, _ := ktx.FlagValue(trace.Flag).(configFile)
	if path == "" {
		return nil
	}

	name := kong.ExpandPath(string(path))

	f, err := os.Open(name)
	if err != nil {
		return ErrConfig.With(slog.String("file", name)).Wrap(err)
	}
	defer f.Close()

	resolver, err := loaderFor(name)(f)
	if err != nil {
		return err
	}

	ktx.AddResolver(resolver)

	return nil
}

// config implements [kong.Resolver]. It maps flag names to their values
// as strings.
type config map[string]string

// Validate implements [kong.Resolver].
func (config) Validate(*kong.Application) error { return nil }

// Resolve implements [kong.Resolver].
func (c config) Resolve(
	_ *kong.Context,
	_ *kong.Path,
	flag *kong.Flag,
) (any, error) {
	if value, ok := c[flag.Name]; ok {
		return value, nil
	}

	// Not found - return nil to let Kong use defaults
	return nil, nil
}

// collector implements [parser.Resolver] by recording the keywords of
// every command in a config.
type collector struct{ cfg config }

// Resolve implements [parser.Resolver]. Every command is accepted.
func (c collector) Resolve(name string) (parser.Callable, error) {
	return parser.Func(func(_ context.Context, st *parser.Statement) (any, error) {
		switch name {
		case parser.TextCommand, parser.AnnotationCommand, parser.NumberCommand:
			return nil, nil
		}

		for key, v := range st.Kwargs.All() {
			c.cfg[flagName(name, key)] = configValue(v)
		}

		return nil, nil
	}), nil
}

func (c config) flatten(prefix string, m map[string]any) {
	for key, v := range m {
		name := flagName(prefix, key)
		if prefix == "" {
			name = flagName(pkg.Name, key)
		}

		if sub, ok := v.(map[string]any); ok {
			c.flatten(name, sub)

			continue
		}

		c[name] = configValue(parser.ValueOf(v))
	}
}

// flagName joins a group and a key into a flag name.
func flagName(group, key string) string {
	key = strings.ReplaceAll(key, "_", "-")
	if group == pkg.Name {
		return key
	}

	return group + "-" + key
}

// configValue formats v the way Kong parses flag values. Lists become
// comma-separated values.
func configValue(v parser.Value) string {
	switch v.Kind() {
	case parser.KindString:
		s, _ := v.Str()

		return s

	case parser.KindBool:
		b, _ := v.Bool()

		return strconv.FormatBool(b)

	case parser.KindInt:
		n, _ := v.Int()

		return strconv.FormatInt(n, 10)

	case parser.KindFloat:
		f, _ := v.Float()

		return parser.FormatFloat(f)

	case parser.KindList:
		items, _ := v.List()

		s := make([]string, len(items))
		for i, item := range items {
			s[i] = configValue(item)
		}

		return strings.Join(s, ",")

	default:
		return fmt.Sprint(v.Any())
	}
}
