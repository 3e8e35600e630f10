package passes

import (
	"github.com/covenant-lang/covenant/pkg/ir"
)

// defaultInlineBudget is the largest callee, in IR values, worth copying
// into a caller.
const defaultInlineBudget = 48

// maxInlineRounds bounds transitive inlining per caller. The call graph
// restricted to inlinable callees is acyclic, so inlining terminates on
// its own; the cap just keeps pathological chains from exploding a
// single function.
const maxInlineRounds = 8

// inliner replaces small same-module calls with the callee's body. Any
// function on a call-graph cycle, self-recursion included, is never
// inlined; everything else is fair game when it fits the budget. Call
// sites are processed in block and instruction order, so the result is
// deterministic.
type inliner struct {
	mod     *ir.Module
	budget  int
	inCycle map[string]bool
}

func newInliner(mod *ir.Module, budget int) *inliner {
	if budget <= 0 {
		budget = defaultInlineBudget
	}
	return &inliner{
		mod:     mod,
		budget:  budget,
		inCycle: findCycles(mod),
	}
}

// findCycles marks every function on a call-graph cycle using Tarjan's
// strongly-connected-components algorithm. Members of a component larger
// than one, and self-callers, are cyclic.
func findCycles(mod *ir.Module) map[string]bool {
	callees := make(map[string][]string)
	selfCall := make(map[string]bool)
	for _, f := range mod.Funcs {
		seen := make(map[string]bool)
		for _, b := range f.Blocks {
			for _, v := range b.Values {
				if v.Op != ir.OpCall {
					continue
				}
				name, _ := v.Aux.(string)
				if name == f.Name {
					selfCall[f.Name] = true
				}
				if !seen[name] {
					seen[name] = true
					callees[f.Name] = append(callees[f.Name], name)
				}
			}
		}
	}

	index := make(map[string]int)
	low := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string
	next := 0
	cyclic := make(map[string]bool)

	var strongconnect func(name string)
	strongconnect = func(name string) {
		index[name] = next
		low[name] = next
		next++
		stack = append(stack, name)
		onStack[name] = true

		for _, c := range callees[name] {
			if _, seen := index[c]; !seen {
				strongconnect(c)
				if low[c] < low[name] {
					low[name] = low[c]
				}
			} else if onStack[c] && index[c] < low[name] {
				low[name] = index[c]
			}
		}

		if low[name] == index[name] {
			var scc []string
			for {
				n := len(stack) - 1
				m := stack[n]
				stack = stack[:n]
				onStack[m] = false
				scc = append(scc, m)
				if m == name {
					break
				}
			}
			if len(scc) > 1 {
				for _, m := range scc {
					cyclic[m] = true
				}
			}
		}
	}

	for _, f := range mod.Funcs {
		if _, seen := index[f.Name]; !seen {
			strongconnect(f.Name)
		}
	}
	for name := range selfCall {
		cyclic[name] = true
	}
	return cyclic
}

// run inlines eligible call sites in f until none remain or the round
// cap is hit.
func (inl *inliner) run(f *ir.Func) (bool, error) {
	changed := false
	for round := 0; round < maxInlineRounds; round++ {
		site, callee := inl.findSite(f)
		if site == nil {
			break
		}
		if err := inl.inlineCall(f, site, callee); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

func (inl *inliner) findSite(f *ir.Func) (*ir.Value, *ir.Func) {
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			if v.Op != ir.OpCall {
				continue
			}
			name, _ := v.Aux.(string)
			g := inl.mod.FuncNamed(name)
			if g == nil || g == f || inl.inCycle[name] {
				continue
			}
			if g.NumValues() > inl.budget {
				continue
			}
			return v, g
		}
	}
	return nil, nil
}

// inlineCall splices a copy of g into f at call site v. The caller's
// block is split at the call; the callee's entry parameters bind to the
// call arguments, its return blocks jump to the continuation, and the
// return value arrives through a fresh continuation-block parameter.
func (inl *inliner) inlineCall(f *ir.Func, v *ir.Value, g *ir.Func) error {
	b := v.Block
	callIdx := -1
	for i, x := range b.Values {
		if x == v {
			callIdx = i
			break
		}
	}
	if callIdx < 0 {
		return ir.ICE(f.Name, "inline", "call site v%d not found in its block", v.ID)
	}
	callArgs := append([]*ir.Value(nil), v.Args...)

	// Split: contB inherits everything after the call, terminator included.
	contB := f.NewBlock(ir.BlockPlain)
	contB.Kind = b.Kind
	contB.Controls = b.Controls
	contB.Succs = b.Succs
	for _, e := range b.Succs {
		for i, p := range e.Block.Preds {
			if p == b {
				e.Block.Preds[i] = contB
			}
		}
	}
	contB.Values = append(contB.Values, b.Values[callIdx+1:]...)
	for _, x := range contB.Values {
		x.Block = contB
	}
	b.Values = b.Values[:callIdx+1]
	b.Kind = ir.BlockPlain
	b.Controls = nil
	b.Succs = nil

	if g.ReturnType != nil {
		rp := f.NewParam(contB, g.ReturnType)
		rp.Pos = v.Pos
		f.ReplaceUses(v, rp)
	}
	if v.Uses != 0 {
		return ir.ICE(f.Name, "inline", "call result v%d still used after rebinding", v.ID)
	}
	f.RemoveValue(v)

	// First pass: clone block and value shells, building the maps.
	blockMap := make(map[*ir.Block]*ir.Block, len(g.Blocks))
	valueMap := make([]*ir.Value, g.ValueID())
	for _, gb := range g.Blocks {
		kind := gb.Kind
		if kind == ir.BlockReturn {
			kind = ir.BlockPlain
		}
		nb := f.NewBlock(kind)
		blockMap[gb] = nb
		for i, p := range gb.Params {
			if gb == g.Entry {
				valueMap[p.ID] = callArgs[i]
				continue
			}
			np := f.NewParam(nb, p.Type)
			np.Pos = p.Pos
			valueMap[p.ID] = np
		}
		for _, gv := range gb.Values {
			dst := nb
			if gv.Op == ir.OpAlloc {
				// Slots live in the entry block so the promotion passes
				// find them after inlining.
				dst = f.Entry
			}
			nv := f.NewValue(dst, gv.Op, gv.Type)
			nv.AuxInt = gv.AuxInt
			nv.Aux = gv.Aux
			nv.Pos = gv.Pos
			valueMap[gv.ID] = nv
		}
	}

	// Second pass: wire arguments, controls, and edges.
	for _, gb := range g.Blocks {
		nb := blockMap[gb]
		for _, gv := range gb.Values {
			nv := valueMap[gv.ID]
			for _, a := range gv.Args {
				nv.AddArg(valueMap[a.ID])
			}
		}
		switch gb.Kind {
		case ir.BlockReturn:
			if g.ReturnType != nil {
				nb.AddEdgeTo(contB, valueMap[gb.Controls[0].ID])
			} else {
				nb.AddEdgeTo(contB)
			}
		default:
			for _, c := range gb.Controls {
				if c != nil {
					nb.SetControl(valueMap[c.ID])
				}
			}
			for _, e := range gb.Succs {
				args := make([]*ir.Value, len(e.Args))
				for i, a := range e.Args {
					args[i] = valueMap[a.ID]
				}
				nb.AddEdgeTo(blockMap[e.Block], args...)
			}
		}
	}

	b.AddEdgeTo(blockMap[g.Entry])
	return nil
}
