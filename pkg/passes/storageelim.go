package passes

import (
	"github.com/covenant-lang/covenant/pkg/analysis"
	"github.com/covenant-lang/covenant/pkg/ir"
)

func init() {
	register(&Pass{
		Name:        "storageelim",
		Invalidates: []string{analysis.DefUse, analysis.Liveness},
		Run:         storageelim,
	})
}

// storageelim removes redundant storage traffic within a block. A second
// read of a key with no intervening clobber reuses the first result; a
// read after a write to the same key forwards the written value; a write
// of the value the key is already known to hold is dropped.
//
// Key identity is value identity. Constant keys are deduplicated by cse,
// so repeated references to the same field share one key value. Distinct
// key values may still alias each other, so a write to one key clobbers
// every remembered fact but its own, and any call clobbers everything:
// callees write state, and an external call may re-enter the contract.
func storageelim(c *analysis.Cache) (bool, error) {
	f := c.Func()
	changed := false

	for _, b := range f.Blocks {
		avail := make(map[*ir.Value]*ir.Value)
		var dead []*ir.Value

		for _, v := range b.Values {
			switch {
			case v.Op == ir.OpSLoad:
				key := v.Args[0]
				if known, ok := avail[key]; ok {
					f.ReplaceUses(v, known)
					dead = append(dead, v)
					changed = true
					continue
				}
				avail[key] = v

			case v.Op == ir.OpSStore:
				key, val := v.Args[0], v.Args[1]
				if known, ok := avail[key]; ok && known == val {
					dead = append(dead, v)
					changed = true
					continue
				}
				for k := range avail {
					if k != key {
						delete(avail, k)
					}
				}
				avail[key] = val

			case v.Op.IsCall():
				avail = make(map[*ir.Value]*ir.Value)
			}
		}
		for _, v := range dead {
			f.RemoveValue(v)
		}
	}
	return changed, nil
}
