package repl

import "errors"

// Sentinel errors.
var (
	ErrNoRuntime    = errors.New("no runtime")
	ErrEditDeclined = errors.New("decline edit")
)
