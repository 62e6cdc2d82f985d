// Package cli contains the command line interface for kola.
//
// # Usage
//
//	kola [flags] [run] [SOURCE...]
//	kola tokens [--format=json] [SOURCE]
//	kola fmt [--format=yaml] [SOURCE]
//	kola repl
//	kola init [--force]
//	kola version
//
// Without a command, kola runs the given sources with the default
// language. Without sources, it reads stdin, or starts a REPL when stdin
// is a terminal. A KoiLang #exit command ends the process with the
// requested status.
//
// # Configuration
//
// Flag defaults are read from config.yaml and config.kola in the
// configuration directory, and from the file named by --config. The
// KoiLang form names each flag group with a command:
//
//	#log level(debug) format(text)
//	#pprof mode(cpu)
//
// The init command writes the current values in this form.
//
// # Logging Options
//
//   - --log-level: Set minimum log level (trace, debug, info, warn, error)
//   - --log-format: Set log output format (text, json)
//   - --log-time-layout: Set timestamp format (RFC3339, Kitchen, etc.)
//   - --log-callsite: Include the source location of each record
//   - --[no-]log-pretty: Colorize text output
//
// # Profiling Options
//
// Profiling is only available when built with the pprof build tag:
//
//	go build -tags pprof -o kola .
//
// Then --pprof-mode selects a profile (allocs, block, clock, cpu,
// goroutine, heap, mem, mutex, thread, trace) and --pprof-dir its output
// directory.
package cli
