package analysis

import (
	"sort"

	"github.com/covenant-lang/covenant/pkg/ir"
)

// LiveOut returns the IDs of values live at the end of b, sorted, for
// the register allocator's interval construction. Edge arguments count
// as uses in the predecessor; block parameters count as definitions in
// their own block.
func (c *Cache) LiveOut(b *ir.Block) []ir.ID {
	c.ensureLiveness()
	return c.liveOut[b.ID]
}

func (c *Cache) ensureLiveness() {
	if c.liveOut != nil {
		return
	}
	f := c.fn
	nblocks := int(f.BlockID())

	// Per-block upward-exposed uses and definitions.
	uses := make([]map[ir.ID]bool, nblocks)
	defs := make([]map[ir.ID]bool, nblocks)
	for _, b := range f.Blocks {
		u := make(map[ir.ID]bool)
		d := make(map[ir.ID]bool)
		for _, p := range b.Params {
			d[p.ID] = true
		}
		for _, v := range b.Values {
			for _, a := range v.Args {
				if !d[a.ID] {
					u[a.ID] = true
				}
			}
			d[v.ID] = true
		}
		for _, ctl := range b.Controls {
			if ctl != nil && !d[ctl.ID] {
				u[ctl.ID] = true
			}
		}
		for _, e := range b.Succs {
			for _, a := range e.Args {
				if a != nil && !d[a.ID] {
					u[a.ID] = true
				}
			}
		}
		uses[b.ID] = u
		defs[b.ID] = d
	}

	liveIn := make([]map[ir.ID]bool, nblocks)
	liveOutSet := make([]map[ir.ID]bool, nblocks)
	for _, b := range f.Blocks {
		liveIn[b.ID] = make(map[ir.ID]bool)
		liveOutSet[b.ID] = make(map[ir.ID]bool)
	}

	rpo := ir.ReversePostOrder(f)
	changed := true
	for changed {
		changed = false
		for i := len(rpo) - 1; i >= 0; i-- {
			b := rpo[i]
			out := liveOutSet[b.ID]
			for _, e := range b.Succs {
				for id := range liveIn[e.Block.ID] {
					if !out[id] {
						out[id] = true
						changed = true
					}
				}
			}
			in := liveIn[b.ID]
			for id := range out {
				if !defs[b.ID][id] && !in[id] {
					in[id] = true
					changed = true
				}
			}
			for id := range uses[b.ID] {
				if !in[id] {
					in[id] = true
					changed = true
				}
			}
		}
	}

	c.liveOut = make([][]ir.ID, nblocks)
	for _, b := range f.Blocks {
		ids := make([]ir.ID, 0, len(liveOutSet[b.ID]))
		for id := range liveOutSet[b.ID] {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		c.liveOut[b.ID] = ids
	}
}
