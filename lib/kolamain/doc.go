// Package kolamain implements the default KoiLang language run by the kola
// command line.
//
// The language prints text lines, keeps a set of variables and offers a
// handful of file system commands:
//
//	#set name("world") greeting(hello)
//	$greeting, ${name}!
//	#eval "1 + 2 * 3"
//	#open "out.txt"
//	    written to out.txt
//	#close
//	#load "other.kola"
//
// Every string argument, text line included, has $name and ${name}
// references replaced by the value of the variable. A few names are
// reserved:
//
//	__name__        name of the language
//	__top__         name of the active environment
//	__dir__         commands reachable from the active environment
//	__stack_info__  active environments, innermost first
//
// Variables are cleared whenever a new top-level block starts.
package kolamain
