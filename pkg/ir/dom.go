package ir

// ReversePostOrder returns f's reachable blocks in reverse post-order
// starting at the entry. The walk is over Succs slices only, so the
// result is a deterministic function of the CFG.
func ReversePostOrder(f *Func) []*Block {
	visited := make([]bool, f.BlockID())
	order := make([]*Block, 0, len(f.Blocks))

	var dfs func(b *Block)
	dfs = func(b *Block) {
		if visited[b.ID] {
			return
		}
		visited[b.ID] = true
		for _, e := range b.Succs {
			dfs(e.Block)
		}
		order = append(order, b)
	}
	dfs(f.Entry)

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// ComputeDom computes the immediate-dominator tree using Cooper, Harvey,
// and Kennedy's "A Simple, Fast Dominance Algorithm". It populates
// Block.Idom and Block.Dominees for reachable blocks; unreachable blocks
// get a nil Idom.
func ComputeDom(f *Func) {
	rpo := ReversePostOrder(f)
	if len(rpo) == 0 {
		return
	}

	rpoNum := make([]int, f.BlockID())
	for i := range rpoNum {
		rpoNum[i] = -1
	}
	for i, b := range rpo {
		rpoNum[b.ID] = i
	}

	intersect := func(b1, b2 *Block) *Block {
		for b1 != b2 {
			for rpoNum[b1.ID] > rpoNum[b2.ID] {
				b1 = b1.Idom
			}
			for rpoNum[b2.ID] > rpoNum[b1.ID] {
				b2 = b2.Idom
			}
		}
		return b1
	}

	entry := rpo[0]
	for _, b := range f.Blocks {
		b.Idom = nil
		b.Dominees = nil
	}
	entry.Idom = entry // sentinel during iteration

	changed := true
	for changed {
		changed = false
		for _, b := range rpo[1:] {
			var idom *Block
			for _, p := range b.Preds {
				if rpoNum[p.ID] >= 0 && p.Idom != nil {
					if idom == nil {
						idom = p
					} else {
						idom = intersect(p, idom)
					}
				}
			}
			if idom != nil && b.Idom != idom {
				b.Idom = idom
				changed = true
			}
		}
	}

	entry.Idom = nil
	for _, b := range rpo {
		if b.Idom != nil {
			b.Idom.Dominees = append(b.Idom.Dominees, b)
		}
	}
}

// Dominates reports whether a dominates b, following Idom links.
// ComputeDom must have run since the last CFG edit.
func Dominates(a, b *Block) bool {
	for b != nil {
		if b == a {
			return true
		}
		b = b.Idom
	}
	return false
}

// ComputeDomFrontier returns the dominance frontier of every block, as a
// slice indexed by block ID. ComputeDom must have run first.
func ComputeDomFrontier(f *Func) [][]*Block {
	df := make([][]*Block, f.BlockID())
	for _, b := range f.Blocks {
		if len(b.Preds) < 2 {
			continue
		}
		for _, p := range b.Preds {
			for runner := p; runner != nil && runner != b.Idom; runner = runner.Idom {
				if !containsBlock(df[runner.ID], b) {
					df[runner.ID] = append(df[runner.ID], b)
				}
			}
		}
	}
	return df
}

func containsBlock(bs []*Block, b *Block) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}
	return false
}
