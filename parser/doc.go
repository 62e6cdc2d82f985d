// Package parser assembles lexer tokens into statements and dispatches
// them to callables looked up through a [Resolver].
//
// A command line becomes a [Statement] with positional arguments and
// keyword arguments. A keyword body whose items are all named becomes a
// [Dict]; a body with a single unnamed item becomes that item; any other
// body becomes a list. Text, number and annotation lines become statements
// named [TextCommand], [NumberCommand] and [AnnotationCommand].
package parser
