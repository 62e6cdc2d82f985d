package cli

import (
	"context"
	"log/slog"

	"github.com/alecthomas/kong"

	"github.com/ardnew/kola/cli/cmd"
	"github.com/ardnew/kola/lib/kolamain"
	"github.com/ardnew/kola/log"
	"github.com/ardnew/kola/pkg"
)

// CLI is the top-level command-line interface for kola.
type CLI struct {
	Log   logConfig   `embed:"" group:"log"   prefix:"log-"`
	Pprof pprofConfig `embed:"" group:"pprof" prefix:"pprof-"`

	Config configFile `help:"Load an additional configuration file (.kola, .yaml)." placeholder:"FILE"`

	Run     cmd.Run     `cmd:"" default:"withargs" help:"Run KoiLang sources"`
	Tokens  cmd.Tokens  `cmd:""                    help:"Print the tokens of a source"`
	Fmt     cmd.Fmt     `cmd:""                    help:"Print the statements of a source without running them"`
	Repl    cmd.Repl    `cmd:""                    help:"Start an interactive session"`
	Init    cmd.Init    `cmd:""                    help:"Initialize configuration file"`
	Version cmd.Version `cmd:""                    help:"Print version"`
}

// Run executes the kola CLI with the given context and arguments.
// The exit function is called with the appropriate exit code upon completion,
// including the status requested by a KoiLang exit command.
func Run(
	ctx context.Context,
	exit func(code int),
	args ...string,
) error {
	var cli CLI

	err := mkdirAllRequired()
	if err != nil {
		return err
	}

	configFilePath := configPath(baseConfig + extKoiLang)

	vars := kong.Vars{
		cmd.ConfigIdentifier: configFilePath,
		cmd.CacheIdentifier:  pkg.CacheDir(),
	}.
		CloneWith(cli.Log.vars()).
		CloneWith(cli.Pprof.vars())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Pre-scan for logger flags to ensure early configuration regardless of
	// flag position.
	cli.Log.scan(args)

	// Parse command line
	parser, err := kong.New(&cli,
		kong.Name(pkg.Name),
		kong.Description(pkg.Description),
		kong.UsageOnError(),
		kong.Exit(exit),
		kong.ExplicitGroups(
			[]kong.Group{cli.Log.group(), cli.Pprof.group()},
		),
		kong.BindSingletonProvider(func() context.Context {
			return ctx
		}),
		kong.ConfigureHelp(
			kong.HelpOptions{
				Compact:             true,
				Summary:             true,
				Tree:                true,
				FlagsLast:           false,
				NoAppSummary:        false,
				NoExpandSubcommands: true,
			}),
		kong.Configuration(loadYAML, configPath(baseConfig+extYAML)),
		kong.Configuration(loadKoiLang, configFilePath),
		vars,
	)
	if err != nil {
		return err
	}

	ktx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	// Stuff additional context values for use by commands
	ctx = cmd.WithContext(ctx, ktx)

	// Finalize logger configuration with all parsed values including
	// TimeLayout and Callsite which don't use TextUnmarshaler.
	cli.Log.start(ctx)

	// [pprofConfig.start] is no-op unless built with tag pprof and enabled.
	stop := cli.Pprof.start(ctx)

	// Execute the selected command
	err = ktx.Run(ctx, &cli)

	stop()

	if code, ok := kolamain.ExitCode(err); ok {
		log.DebugContext(ctx, "exit", slog.Int("code", code))
		exit(code)

		return nil
	}

	return err
}
