package passes

import (
	"fmt"
	"strings"

	"github.com/covenant-lang/covenant/pkg/analysis"
	"github.com/covenant-lang/covenant/pkg/ir"
)

func init() {
	register(&Pass{
		Name:        "cse",
		Requires:    []string{analysis.Dominance},
		Invalidates: []string{analysis.DefUse, analysis.Escape, analysis.Liveness},
		Run:         cse,
	})
}

// cse deduplicates pure values scoped by the dominator tree: a value is
// replaced by an earlier identical value whenever the earlier one
// dominates it. Commutative operands are compared in canonical order.
// Memory and storage reads are never touched; only pure computation is.
func cse(c *analysis.Cache) (bool, error) {
	f := c.Func()
	c.EnsureDom()

	changed := false
	table := make(map[string]*ir.Value)

	var walk func(b *ir.Block)
	walk = func(b *ir.Block) {
		var added []string
		var dead []*ir.Value
		for _, v := range b.Values {
			if !v.Op.IsPure() || v.Op == ir.OpCopy {
				continue
			}
			k := cseKey(v)
			if w, ok := table[k]; ok {
				f.ReplaceUses(v, w)
				dead = append(dead, v)
				changed = true
				continue
			}
			table[k] = v
			added = append(added, k)
		}
		for _, v := range dead {
			f.RemoveValue(v)
		}

		for _, d := range b.Dominees {
			walk(d)
		}
		for _, k := range added {
			delete(table, k)
		}
	}
	walk(f.Entry)
	return changed, nil
}

// cseKey builds the value-numbering key: op, type, auxes, and operand IDs
// with commutative operands sorted.
func cseKey(v *ir.Value) string {
	ids := make([]int32, len(v.Args))
	for i, a := range v.Args {
		ids[i] = int32(a.ID)
	}
	if v.Op.Info().Commutative && len(ids) == 2 && ids[0] > ids[1] {
		ids[0], ids[1] = ids[1], ids[0]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d|%s|%d|%v|", v.Op, typeKey(v), v.AuxInt, v.Aux)
	for _, id := range ids {
		fmt.Fprintf(&sb, "v%d,", id)
	}
	return sb.String()
}

func typeKey(v *ir.Value) string {
	if v.Type == nil {
		return "void"
	}
	return v.Type.String()
}
