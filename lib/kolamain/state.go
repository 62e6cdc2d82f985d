package kolamain

import (
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/expr-lang/expr/vm"

	"github.com/ardnew/kola/klvm"
)

// State is the root scope state of a runtime.
type State struct {
	// Vars holds the variables assigned with set and eval.
	Vars map[string]any
	// Debug enables tracing of commands and environment changes.
	Debug bool

	path     []string // initial load path
	search   string   // load path, joined with os.PathListSeparator
	loading  []string // files being loaded, outermost first
	programs map[string]*vm.Program
}

func newState(path []string) *State {
	st := &State{path: slices.Clone(path)}
	st.reset()

	return st
}

func (st *State) reset() {
	st.Vars = make(map[string]any)
	st.Debug = false
	st.search = strings.Join(st.path, string(os.PathListSeparator))
	st.loading = nil

	if st.programs == nil {
		st.programs = make(map[string]*vm.Program)
	}
}

// Path returns the directories searched by the load command.
func (st *State) Path() []string {
	if st.search == "" {
		return nil
	}

	return strings.Split(st.search, string(os.PathListSeparator))
}

// Var returns the value of the variable key in rt, or nil.
func Var(rt *klvm.Runtime, key string) any {
	switch key {
	case "__name__":
		return rt.Class().Name()
	case "__top__":
		return rt.Top().Name()
	case "__dir__":
		return strings.Join(rt.Top().Names(), ", ")
	case "__stack_info__":
		return stackInfo(rt.Top())
	}

	st, ok := klvm.StateOf[*State](rt.Root())
	if !ok {
		return nil
	}

	return st.Vars[key]
}

// Vars returns a copy of the variables of rt.
func Vars(rt *klvm.Runtime) map[string]any {
	st, ok := klvm.StateOf[*State](rt.Root())
	if !ok {
		return nil
	}

	return maps.Clone(st.Vars)
}

func stackInfo(top *klvm.Scope) string {
	var names []string

	for s := top; !s.IsRoot(); s = s.Back() {
		names = append(names, s.Name())
	}

	return strings.Join(append(names, "__init__"), " -> ")
}

var reserved = []string{"__dir__", "__name__", "__stack_info__", "__top__"}

// Names returns every name [Var] resolves in rt, sorted.
func Names(rt *klvm.Runtime) []string {
	names := append(slices.Collect(maps.Keys(Vars(rt))), reserved...)
	slices.Sort(names)

	return names
}
