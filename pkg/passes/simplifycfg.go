package passes

import (
	"github.com/covenant-lang/covenant/pkg/analysis"
	"github.com/covenant-lang/covenant/pkg/ir"
)

func init() {
	register(&Pass{
		Name:        "simplifycfg",
		Invalidates: analysis.All,
		Run:         simplifycfg,
	})
}

// simplifycfg cleans up control flow: copies are propagated, branches on
// constants become jumps, straight-line block pairs are merged, and
// empty forwarding blocks are cut out. The rewrites feed each other
// (cutting a forwarder can expose a same-target branch, folding that can
// expose a mergeable pair), so the sequence repeats until nothing fires
// and one run leaves nothing for a second. Each firing removes a value,
// an edge, or a block, so the loop terminates. Unreachable blocks left
// behind by branch folding are dce's job.
func simplifycfg(c *analysis.Cache) (bool, error) {
	f := c.Func()
	changed := false
	for {
		round := false
		if propagateCopies(f) {
			round = true
		}
		if foldBranches(f) {
			round = true
		}
		if mergeBlocks(f) {
			round = true
		}
		if cutForwarders(f) {
			round = true
		}
		if !round {
			return changed, nil
		}
		changed = true
	}
}

func propagateCopies(f *ir.Func) bool {
	changed := false
	for _, b := range f.Blocks {
		var dead []*ir.Value
		for _, v := range b.Values {
			if v.Op == ir.OpCopy {
				f.ReplaceUses(v, v.Args[0])
				dead = append(dead, v)
				changed = true
			}
		}
		for _, v := range dead {
			f.RemoveValue(v)
		}
	}
	return changed
}

func foldBranches(f *ir.Func) bool {
	changed := false
	for _, b := range f.Blocks {
		if b.Kind != ir.BlockIf {
			continue
		}
		ctl := b.Controls[0]

		if b.Succs[0].Block == b.Succs[1].Block && sameArgs(b.Succs[0].Args, b.Succs[1].Args) {
			b.RemoveEdge(1)
			b.Kind = ir.BlockPlain
			b.SetControl(nil)
			changed = true
			continue
		}

		if ctl.Op != ir.OpConstBool {
			continue
		}
		if ctl.AuxInt != 0 {
			b.RemoveEdge(1)
		} else {
			b.RemoveEdge(0)
		}
		b.Kind = ir.BlockPlain
		b.SetControl(nil)
		changed = true
	}
	return changed
}

func sameArgs(a, b []*ir.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// mergeBlocks folds a block into its unique plain predecessor. The
// successor's parameters are substituted by the edge arguments, so the
// merged block needs no parameter plumbing.
func mergeBlocks(f *ir.Func) bool {
	changed := false
	// Snapshot: merging removes blocks from f.Blocks mid-iteration.
	for _, b := range append([]*ir.Block(nil), f.Blocks...) {
		for b.Kind == ir.BlockPlain && len(b.Succs) == 1 {
			s := b.Succs[0].Block
			if s == b || s == f.Entry || len(s.Preds) != 1 {
				break
			}

			args := b.Succs[0].Args
			for i, p := range s.Params {
				f.ReplaceUses(p, args[i])
			}
			b.RemoveEdge(0)

			for _, v := range s.Values {
				v.Block = b
			}
			b.Values = append(b.Values, s.Values...)
			b.Kind = s.Kind
			b.Controls = s.Controls
			b.Succs = s.Succs
			for _, e := range s.Succs {
				for i, p := range e.Block.Preds {
					if p == s {
						e.Block.Preds[i] = b
					}
				}
			}
			s.Values = nil
			s.Params = nil
			s.Controls = nil
			s.Succs = nil
			s.Preds = nil
			s.Kind = ir.BlockInvalid
			removeBlock(f, s)
			changed = true
		}
	}
	return changed
}

// cutForwarders removes empty plain blocks that only forward control.
func cutForwarders(f *ir.Func) bool {
	changed := false
	for _, b := range append([]*ir.Block(nil), f.Blocks...) {
		if b == f.Entry || b.Kind != ir.BlockPlain {
			continue
		}
		if len(b.Values) != 0 || len(b.Params) != 0 || len(b.Succs) != 1 {
			continue
		}
		s := b.Succs[0].Block
		if s == b || len(b.Preds) == 0 {
			continue
		}
		fwdArgs := b.Succs[0].Args

		preds := append([]*ir.Block(nil), b.Preds...)
		for _, p := range preds {
			for i := range p.Succs {
				if p.Succs[i].Block != b {
					continue
				}
				args := append([]*ir.Value(nil), fwdArgs...)
				for _, a := range args {
					a.Uses++
				}
				p.Succs[i].Block = s
				p.Succs[i].Args = args
				s.Preds = append(s.Preds, p)
			}
		}
		b.Preds = nil
		b.RemoveEdge(0)
		b.Kind = ir.BlockInvalid
		removeBlock(f, b)
		changed = true
	}
	return changed
}

func removeBlock(f *ir.Func, b *ir.Block) {
	for i, x := range f.Blocks {
		if x == b {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return
		}
	}
}
