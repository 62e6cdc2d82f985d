// Package klvm is the command dispatch runtime of KoiLang.
//
// A language is a [Class] of commands. Environments are classes entered
// by entry commands and left by exit commands; while active, an
// environment's commands shadow those of the scopes below it. An
// environment without exit commands is auto-pop: it is left implicitly
// when an enclosing environment exits or the outermost block ends, and its
// own entry commands leave it and enter a fresh scope.
//
//	story := klvm.NewEnv("Story").
//		Entry("begin", begin).
//		Exit("end", end).
//		Text(line)
//
//	lang := klvm.NewLang("Demo").
//		Command("title", title, klvm.Args(1, 1)).
//		Env(story)
//
//	rt, err := klvm.New(lang)
//	if err != nil {
//		return err
//	}
//
//	err = rt.ParseFile(ctx, "demo.kola")
//
// Every call passes through a chain of [Handler] values ordered by
// priority. The built-in chain traces calls, honors the skip option,
// enforces environment masks (see [Mask]) and finally runs the command
// body. A writer runtime ([NewWriter]) serializes calls instead.
//
// The virtual commands @start and @end run when the outermost parse block
// begins and ends. Syntax and command errors raised while parsing are
// passed to @exception, which suppresses them by returning a true value.
package klvm
