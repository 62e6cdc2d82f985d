// Package cmd implements the kola subcommands: run, tokens, fmt, repl,
// init and version.
//
// Commands read their sources from files, directories or stdin (see
// [Sources]) and write to the output stored in the context by
// [WithOutput], stdout by default.
package cmd

var (
	// CacheIdentifier is the kong variable identifier containing the path to
	// the runtime cache directory.
	CacheIdentifier = "cache"

	// ConfigIdentifier is the kong variable identifier containing the path
	// of the KoiLang configuration file.
	ConfigIdentifier = "config"
)
