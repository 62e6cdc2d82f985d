package klvm

import (
	"github.com/ardnew/kola/parser"
	"github.com/ardnew/kola/pkg"
)

// Dispatch errors. All are command errors routed through @exception.
var (
	ErrUnknownCommand = parser.ErrUnknownCommand
	ErrUnmatchedEnv   = pkg.NewCommandError("unmatched environment")
	ErrPopRoot        = pkg.NewCommandError("cannot pop the root environment")
	ErrArity          = pkg.NewCommandError("wrong number of arguments")
	ErrKeyword        = pkg.NewCommandError("unexpected keyword argument")
	ErrArgument       = pkg.NewCommandError("invalid argument")
)

// Class construction and handler chain errors.
var (
	ErrDuplicateCommand = pkg.NewError("duplicate command")
	ErrNotVirtual       = pkg.NewError("not a virtual command")
	ErrNotEnv           = pkg.NewError("not an environment class")
	ErrNotLang          = pkg.NewError("not a language class")
	ErrParent           = pkg.NewError("incompatible parent class")
	ErrNoEntry          = pkg.NewError("environment has no entry command")
	ErrBadMask          = pkg.NewError("invalid environment mask")
	ErrEmptyChain       = pkg.NewError("cannot remove the last handler")
	ErrHandlerNotFound  = pkg.NewError("handler not in chain")
)
