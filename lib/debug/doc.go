// Package debug provides tools for inspecting KoiLang sources and runtimes.
//
// [Commands] resolves every command name to a stub that prints the call
// instead of running it. [Tracer] is a handler that prints every call and
// environment change of a runtime. [DumpTokens] and [DumpStatements] write
// the tokens or statements of a source as text, JSON or YAML.
package debug
