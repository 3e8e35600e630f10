package ir

import (
	"sort"

	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
)

// Module owns every Function of one compilation unit. Value and block IDs
// are scoped to their Function: the module hands each function an
// independent allocator, so functions can be optimized on separate worker
// goroutines without sharing any mutable state and without their ID
// sequences interleaving (interleaved IDs would leak scheduling order
// into the output).
type Module struct {
	// Name is the contract/module name.
	Name string

	// Funcs lists all functions in declaration order.
	Funcs []*Func

	funcByName map[string]*Func
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:       name,
		funcByName: make(map[string]*Func),
	}
}

// NewFunc creates and registers a function with the given signature.
// The entry block is created eagerly with one parameter per argument.
func (m *Module) NewFunc(name string, effect Effect, params []types.Type, ret types.Type, pos source.Pos) *Func {
	f := &Func{
		Name:       name,
		Effect:     effect,
		ParamTypes: params,
		ReturnType: ret,
		Module:     m,
		Pos:        pos,
	}
	f.Entry = f.NewBlock(BlockPlain)
	for _, t := range params {
		f.NewParam(f.Entry, t)
	}
	m.Funcs = append(m.Funcs, f)
	m.funcByName[name] = f
	return f
}

// FuncNamed returns the function with the given name, or nil.
func (m *Module) FuncNamed(name string) *Func {
	return m.funcByName[name]
}

// SortedFuncNames returns all function names in lexical order. Used where
// a deterministic iteration order over functions is needed independent of
// declaration order.
func (m *Module) SortedFuncNames() []string {
	names := make([]string, 0, len(m.Funcs))
	for _, f := range m.Funcs {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
