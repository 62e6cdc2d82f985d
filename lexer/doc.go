// Package lexer converts KoiLang source text into tokens.
//
// KoiLang is line oriented. A line starting with exactly Threshold markers
// ('#') is a command:
//
//	#character Alice age(16) pos(x: 0, y: 0)
//
// A line with more markers is an annotation, and any other line is text.
// Consecutive text lines form one block; a block holding a single numeric
// literal is reported as a [Number] token instead.
//
// Command arguments are barewords, quoted strings, byte strings (b"..."),
// numeric literals (decimal, 0x, 0b, 0o, fractions, exponents) and
// keyword forms name(...) whose body is a list of values or of key: value
// pairs. An unclosed parenthesis continues onto the next line, and a
// backslash at the end of any line splices the following line onto it.
//
// Errors never stop the stream: the offending line is discarded, the error
// is returned from [Lexer.Next], and the next call resumes on the
// following line.
package lexer
