package ir

import (
	"testing"

	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
)

func newTestFunc(params []types.Type, ret types.Type) *Func {
	return NewModule("test").NewFunc("f", EffectPure, params, ret, source.Pos{})
}

// diamond builds entry -> (left | right) -> merge.
func diamond() (f *Func, left, right, merge *Block) {
	boolT := types.MakeBasic(types.Bool)
	u64 := types.MakeBasic(types.U64)
	f = newTestFunc([]types.Type{boolT, u64}, u64)

	left = f.NewBlock(BlockPlain)
	right = f.NewBlock(BlockPlain)
	merge = f.NewBlock(BlockReturn)

	f.Entry.Kind = BlockIf
	f.Entry.SetControl(f.Entry.Params[0])
	f.Entry.AddEdgeTo(left)
	f.Entry.AddEdgeTo(right)

	p := f.NewParam(merge, u64)
	x := f.Entry.Params[1]
	left.AddEdgeTo(merge, x)
	right.AddEdgeTo(merge, x)
	merge.SetControl(p)
	return f, left, right, merge
}

func TestReversePostOrder(t *testing.T) {
	f, _, _, merge := diamond()
	order := ReversePostOrder(f)
	if len(order) != 4 {
		t.Fatalf("len(order) = %d, want 4", len(order))
	}
	if order[0] != f.Entry {
		t.Errorf("order[0] = %s, want entry", order[0])
	}
	if order[3] != merge {
		t.Errorf("order[3] = %s, want merge", order[3])
	}
}

func TestDominatorsDiamond(t *testing.T) {
	f, left, right, merge := diamond()
	ComputeDom(f)

	for _, b := range []*Block{left, right, merge} {
		if b.Idom != f.Entry {
			t.Errorf("idom(%s) = %s, want entry", b, b.Idom)
		}
	}
	if !Dominates(f.Entry, merge) {
		t.Errorf("Dominates(entry, merge) = false, want true")
	}
	if Dominates(left, merge) {
		t.Errorf("Dominates(left, merge) = true, want false")
	}
}

func TestDomFrontierDiamond(t *testing.T) {
	f, left, right, merge := diamond()
	ComputeDom(f)
	df := ComputeDomFrontier(f)

	for _, b := range []*Block{left, right} {
		if len(df[b.ID]) != 1 || df[b.ID][0] != merge {
			t.Errorf("frontier(%s) = %v, want [%s]", b, df[b.ID], merge)
		}
	}
	if len(df[f.Entry.ID]) != 0 {
		t.Errorf("frontier(entry) = %v, want empty", df[f.Entry.ID])
	}
}

func TestDomLoop(t *testing.T) {
	boolT := types.MakeBasic(types.Bool)
	f := newTestFunc([]types.Type{boolT}, nil)

	head := f.NewBlock(BlockIf)
	body := f.NewBlock(BlockPlain)
	exit := f.NewBlock(BlockReturn)

	f.Entry.AddEdgeTo(head)
	head.SetControl(f.Entry.Params[0])
	head.AddEdgeTo(body)
	head.AddEdgeTo(exit)
	body.AddEdgeTo(head)

	ComputeDom(f)
	if head.Idom != f.Entry {
		t.Errorf("idom(head) = %s, want entry", head.Idom)
	}
	if body.Idom != head || exit.Idom != head {
		t.Errorf("idom(body) = %s, idom(exit) = %s, want head for both", body.Idom, exit.Idom)
	}
	if !Dominates(head, body) {
		t.Errorf("Dominates(head, body) = false, want true")
	}
}
