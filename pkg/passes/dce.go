package passes

import (
	"github.com/covenant-lang/covenant/pkg/analysis"
	"github.com/covenant-lang/covenant/pkg/ir"
)

func init() {
	register(&Pass{
		Name:        "dce",
		Invalidates: analysis.All,
		Run:         dce,
	})
}

// dce removes unreachable blocks and unused values. A value is removable
// when nothing uses it and dropping it loses no effect: stores, storage
// writes, and calls always stay. Storage reads carry no effect of their
// own and go away when unused.
func dce(c *analysis.Cache) (bool, error) {
	f := c.Func()
	changed := removeUnreachable(f)

	for {
		any := false
		for _, b := range f.Blocks {
			for i := len(b.Values) - 1; i >= 0; i-- {
				v := b.Values[i]
				if v.Uses == 0 && removable(v) {
					f.RemoveValue(v)
					any = true
				}
			}
		}
		if !any {
			break
		}
		changed = true
	}
	return changed, nil
}

func removable(v *ir.Value) bool {
	return !v.Op.IsVoid() && !v.Op.IsCall()
}

// removeUnreachable deletes blocks no path from the entry reaches,
// releasing every use their values and terminators hold.
func removeUnreachable(f *ir.Func) bool {
	reachable := make([]bool, f.BlockID())
	for _, b := range ir.ReversePostOrder(f) {
		reachable[b.ID] = true
	}

	any := false
	for _, b := range f.Blocks {
		if reachable[b.ID] {
			continue
		}
		any = true
		for i := len(b.Succs) - 1; i >= 0; i-- {
			b.RemoveEdge(i)
		}
		for _, ctl := range b.Controls {
			if ctl != nil {
				ctl.Uses--
			}
		}
		b.Controls = nil
		for _, v := range b.Values {
			for _, a := range v.Args {
				a.Uses--
			}
			v.Args = nil
		}
		b.Values = nil
		b.Params = nil
		b.Kind = ir.BlockInvalid
	}
	if !any {
		return false
	}

	kept := f.Blocks[:0]
	for _, b := range f.Blocks {
		if reachable[b.ID] {
			kept = append(kept, b)
		}
	}
	f.Blocks = kept
	return true
}
