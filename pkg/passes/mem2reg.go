package passes

import (
	"github.com/covenant-lang/covenant/pkg/analysis"
	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/types"
)

func init() {
	register(&Pass{
		Name:        "mem2reg",
		Requires:    []string{analysis.Dominance, analysis.Escape},
		Invalidates: analysis.All,
		Run:         mem2reg,
	})
}

// mem2reg promotes non-escaping stack slots to SSA values. It runs in two
// stages: scalar replacement splits aggregate slots accessed only through
// constant-offset field pointers into per-offset scalar slots, then the
// standard promotion rewrites scalar slots into block parameters using the
// iterated dominance frontier.
func mem2reg(c *analysis.Cache) (bool, error) {
	changed := sroa(c)
	if changed {
		// Splitting created new allocs; escape classification is stale.
		c.Invalidate(analysis.Escape, analysis.DefUse)
	}
	promoted, err := promote(c)
	return changed || promoted, err
}

// fieldAccess is one scalar load or store reaching an aggregate slot
// through a chain of constant-offset field pointers.
type fieldAccess struct {
	leaf   *ir.Value // OpLoad or OpStore
	offset int64     // absolute byte offset from the slot base
	typ    types.Type
}

// sroa splits eligible aggregate slots. A slot is eligible when it does
// not escape and every transitive use is a constant-offset OpFieldPtr
// terminating in a scalar OpLoad or OpStore, with at most one scalar type
// per offset.
func sroa(c *analysis.Cache) bool {
	f := c.Func()
	changed := false

	var allocs []*ir.Value
	for _, v := range f.Entry.Values {
		if v.Op == ir.OpAlloc {
			if pt, ok := v.Type.(*types.Pointer); ok && types.IsAggregate(pt.Elem) {
				allocs = append(allocs, v)
			}
		}
	}

	for _, a := range allocs {
		if c.Escapes(a) {
			continue
		}
		accesses, ptrs, ok := collectAccesses(c, a, 0)
		if !ok {
			continue
		}
		typeAt := make(map[int64]types.Type)
		conflict := false
		for _, acc := range accesses {
			if prev, seen := typeAt[acc.offset]; seen {
				if !types.Identical(prev, acc.typ) {
					conflict = true
					break
				}
			} else {
				typeAt[acc.offset] = acc.typ
			}
		}
		if conflict {
			continue
		}

		slotAt := make(map[int64]*ir.Value)
		name, _ := a.Aux.(string)
		for _, acc := range accesses {
			slot, seen := slotAt[acc.offset]
			if !seen {
				slot = f.NewValueFront(f.Entry, ir.OpAlloc, &types.Pointer{Elem: acc.typ})
				slot.Aux = name
				slot.Pos = a.Pos
				slotAt[acc.offset] = slot
			}
			acc.leaf.ReplaceArg(0, slot)
		}
		// The field-pointer chain is now unused; release it leaf-first.
		for i := len(ptrs) - 1; i >= 0; i-- {
			if ptrs[i].Uses == 0 {
				f.RemoveValue(ptrs[i])
			}
		}
		if a.Uses == 0 {
			f.RemoveValue(a)
		}
		changed = true
	}
	return changed
}

// collectAccesses walks the use tree of ptr, accumulating scalar leaf
// accesses at absolute offsets and the intermediate field pointers. It
// reports ok=false on any use that blocks splitting: a dynamic index, a
// whole-aggregate load or store, or an unexpected consumer.
func collectAccesses(c *analysis.Cache, ptr *ir.Value, base int64) ([]fieldAccess, []*ir.Value, bool) {
	var accs []fieldAccess
	var ptrs []*ir.Value
	for _, u := range c.Users(ptr) {
		switch u.Op {
		case ir.OpLoad:
			if types.IsAggregate(u.Type) {
				return nil, nil, false
			}
			accs = append(accs, fieldAccess{leaf: u, offset: base, typ: u.Type})
		case ir.OpStore:
			if u.Args[0] != ptr || types.IsAggregate(u.Args[1].Type) {
				return nil, nil, false
			}
			accs = append(accs, fieldAccess{leaf: u, offset: base, typ: u.Args[1].Type})
		case ir.OpFieldPtr:
			sub, subPtrs, ok := collectAccesses(c, u, base+u.AuxInt)
			if !ok {
				return nil, nil, false
			}
			accs = append(accs, sub...)
			ptrs = append(ptrs, u)
			ptrs = append(ptrs, subPtrs...)
		default:
			return nil, nil, false
		}
	}
	return accs, ptrs, true
}

// promote rewrites scalar slots into SSA form. All eligible slots are
// promoted in one batch so each merge block gains its parameters in a
// single deterministic order.
func promote(c *analysis.Cache) (bool, error) {
	f := c.Func()

	// The rename walk visits only the dominator tree, so a user sitting in
	// an unreachable block would never be rewritten. Those blocks belong
	// to dce; skip their slots here.
	reachable := make([]bool, f.BlockID())
	for _, b := range ir.ReversePostOrder(f) {
		reachable[b.ID] = true
	}

	var allocs []*ir.Value
	for _, v := range f.Entry.Values {
		if v.Op != ir.OpAlloc {
			continue
		}
		pt, ok := v.Type.(*types.Pointer)
		if !ok || !types.IsScalar(pt.Elem) || c.Escapes(v) {
			continue
		}
		if promotable(c, v, reachable) {
			allocs = append(allocs, v)
		}
	}
	if len(allocs) == 0 {
		return false, nil
	}

	c.EnsureDom()
	df := c.DomFrontier()

	allocIdx := make(map[*ir.Value]int, len(allocs))
	for i, a := range allocs {
		allocIdx[a] = i
	}

	// phiOf[b.ID] lists, in insertion order, the promoted slots that get a
	// block parameter at b, paired with the parameter value.
	type phi struct {
		idx   int
		param *ir.Value
	}
	phiOf := make([][]phi, f.BlockID())

	for i, a := range allocs {
		elem := a.Type.(*types.Pointer).Elem

		// Blocks containing a store to this slot seed the worklist.
		defBlocks := make(map[*ir.Block]bool)
		for _, u := range c.Users(a) {
			if u.Op == ir.OpStore && u.Args[0] == a {
				defBlocks[u.Block] = true
			}
		}
		work := make([]*ir.Block, 0, len(defBlocks))
		for _, b := range f.Blocks { // slice order keeps this deterministic
			if defBlocks[b] {
				work = append(work, b)
			}
		}

		placed := make(map[*ir.Block]bool)
		for len(work) > 0 {
			b := work[0]
			work = work[1:]
			for _, d := range df[b.ID] {
				if placed[d] {
					continue
				}
				placed[d] = true
				p := f.NewParam(d, elem)
				p.Pos = a.Pos
				phiOf[d.ID] = append(phiOf[d.ID], phi{idx: i, param: p})
				if !defBlocks[d] {
					defBlocks[d] = true
					work = append(work, d)
				}
			}
		}
	}

	// Rename along the dominator tree. endVals[b.ID][i] is the reaching
	// value of slot i at the end of b.
	endVals := make([][]*ir.Value, f.BlockID())
	zeros := make(map[string]*ir.Value)
	zeroOf := func(t types.Type) *ir.Value {
		key := t.String()
		if z, ok := zeros[key]; ok {
			return z
		}
		z := zeroValue(f, t)
		zeros[key] = z
		return z
	}

	var walk func(b *ir.Block, vals []*ir.Value)
	walk = func(b *ir.Block, vals []*ir.Value) {
		cur := make([]*ir.Value, len(allocs))
		copy(cur, vals)
		for _, ph := range phiOf[b.ID] {
			cur[ph.idx] = ph.param
		}

		var dead []*ir.Value
		for _, v := range b.Values {
			switch v.Op {
			case ir.OpLoad:
				i, ok := allocIdx[v.Args[0]]
				if !ok {
					continue
				}
				rv := cur[i]
				if rv == nil {
					rv = zeroOf(v.Type)
				}
				f.ReplaceUses(v, rv)
				dead = append(dead, v)
			case ir.OpStore:
				i, ok := allocIdx[v.Args[0]]
				if !ok {
					continue
				}
				cur[i] = v.Args[1]
				dead = append(dead, v)
			}
		}
		for _, v := range dead {
			f.RemoveValue(v)
		}
		endVals[b.ID] = cur

		for _, d := range b.Dominees {
			walk(d, cur)
		}
	}
	walk(f.Entry, make([]*ir.Value, len(allocs)))

	// Feed each new block parameter through the incoming edges, in the
	// same order the parameters were appended.
	for _, b := range f.Blocks {
		for ei := range b.Succs {
			s := b.Succs[ei].Block
			for _, ph := range phiOf[s.ID] {
				v := (*ir.Value)(nil)
				if endVals[b.ID] != nil {
					v = endVals[b.ID][ph.idx]
				}
				if v == nil {
					v = zeroOf(ph.param.Type)
				}
				v.Uses++
				b.Succs[ei].Args = append(b.Succs[ei].Args, v)
			}
		}
	}

	for _, a := range allocs {
		if a.Uses != 0 {
			return false, ir.ICE(f.Name, "mem2reg", "promoted slot v%d still has %d uses", a.ID, a.Uses)
		}
		f.RemoveValue(a)
	}
	return true, nil
}

// promotable reports whether every use of the slot is a whole-slot scalar
// load or a store of a scalar through it, all in reachable blocks.
func promotable(c *analysis.Cache, a *ir.Value, reachable []bool) bool {
	for _, u := range c.Users(a) {
		if !reachable[u.Block.ID] {
			return false
		}
		switch u.Op {
		case ir.OpLoad:
			// ok
		case ir.OpStore:
			if u.Args[0] != a {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// zeroValue materializes the zero of t at the front of the entry block,
// covering reads of never-written slots.
func zeroValue(f *ir.Func, t types.Type) *ir.Value {
	if b, ok := t.(*types.Basic); ok {
		switch b.Kind() {
		case types.Bool:
			return f.NewValueFront(f.Entry, ir.OpConstBool, t)
		case types.U256, types.Address:
			v := f.NewValueFront(f.Entry, ir.OpConstWord, t)
			v.Aux = types.Word{}
			return v
		}
	}
	return f.NewValueFront(f.Entry, ir.OpConst, t)
}
