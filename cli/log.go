package cli

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ardnew/kola/log"
)

// logFormat configures the logger format as a side effect of parsing via
// encoding.TextUnmarshaler, early enough to affect errors reported while
// the remaining flags are parsed.
type logFormat string

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *logFormat) UnmarshalText(text []byte) error {
	*f = logFormat(text)
	log.Config(log.WithFormat(log.ParseFormat(string(*f))))

	return nil
}

// logLevel configures the logger level as a side effect of parsing via
// encoding.TextUnmarshaler.
type logLevel string

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *logLevel) UnmarshalText(text []byte) error {
	*l = logLevel(text)
	log.Config(log.WithLevel(log.ParseLevel(string(*l))))

	return nil
}

type logConfig struct {
	Level      logLevel  `default:"${logLevelDefault}"  enum:"${logLevelEnum}"  help:"Set log level."`
	Format     logFormat `default:"${logFormatDefault}" enum:"${logFormatEnum}" help:"Set log format."`
	TimeLayout string    `default:"RFC3339"                                     help:"Set timestamp format."`
	Callsite   bool      `default:"false"                                       help:"Include the source location of each record." negatable:""`
	Pretty     bool      `default:"true"                                        help:"Enable colorized pretty printing."           negatable:""`
}

func (*logConfig) vars() kong.Vars {
	return kong.Vars{
		"logLevelEnum":     strings.Join(slices.Collect(log.Levels()), ","),
		"logLevelDefault":  log.DefaultLevel.String(),
		"logFormatEnum":    strings.Join(slices.Collect(log.Formats()), ","),
		"logFormatDefault": log.DefaultFormat.String(),
	}
}

func (*logConfig) group() kong.Group {
	var group kong.Group

	group.Key = "log"
	group.Title = "Logging options"

	return group
}

// start applies the parsed configuration to the default logger.
func (f *logConfig) start(ctx context.Context) {
	log.Config(
		log.WithLevel(log.ParseLevel(string(f.Level))),
		log.WithFormat(log.ParseFormat(string(f.Format))),
		log.WithTimeLayout(f.TimeLayout),
		log.WithCallsite(f.Callsite),
		log.WithPretty(f.Pretty),
	)

	log.DebugContext(ctx, "logger initialized",
		slog.String("level", string(f.Level)),
		slog.String("format", string(f.Format)),
		slog.String("time", f.TimeLayout),
		slog.Bool("callsite", f.Callsite),
		slog.Bool("pretty", f.Pretty),
	)
}

// scan performs an early pass over command-line arguments to extract and
// apply logger configuration before Kong begins parsing, so the logger is
// configured regardless of flag position. Boolean flags never reach
// encoding.TextUnmarshaler, so they are only applied here and in start.
func (f *logConfig) scan(args []string) {
	toggles := map[string]struct {
		field *bool
		apply func(bool) log.Option
	}{
		"callsite": {&f.Callsite, log.WithCallsite},
		"pretty":   {&f.Pretty, log.WithPretty},
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		negated := strings.HasPrefix(arg, "--no-log-")

		var rest string

		switch {
		case negated:
			rest = strings.TrimPrefix(arg, "--no-log-")
		case strings.HasPrefix(arg, "--log-"):
			rest = strings.TrimPrefix(arg, "--log-")
		default:
			continue
		}

		name, value, assigned := strings.Cut(rest, "=")

		if t, ok := toggles[name]; ok {
			on := true

			// Boolean flag: only parse value if explicitly assigned with =
			if assigned {
				v, err := strconv.ParseBool(value)
				if err != nil {
					continue
				}

				on = v
			}

			if negated {
				on = !on
			}

			*t.field = on
			log.Config(t.apply(on))

			continue
		}

		if negated {
			continue
		}

		// Non-boolean flag: consume next arg as value if not assigned
		if !assigned && i+1 < len(args) && args[i+1] != "" && args[i+1][0] != '-' {
			value = args[i+1]
			i++
		}

		switch name {
		case "level":
			_ = f.Level.UnmarshalText([]byte(value))
		case "format":
			_ = f.Format.UnmarshalText([]byte(value))
		}
	}
}
