package passes

import (
	"testing"

	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/types"
)

func TestCSEDeduplicates(t *testing.T) {
	f := newFunc([]types.Type{u64T, u64T}, u64T)
	b := f.Entry
	x, y := b.Params[0], b.Params[1]
	a1 := f.NewValue(b, ir.OpAdd, u64T, x, y)
	a2 := f.NewValue(b, ir.OpAdd, u64T, y, x) // commutative twin
	mul := f.NewValue(b, ir.OpMul, u64T, a1, a2)
	b.Kind = ir.BlockReturn
	b.SetControl(mul)

	if !runPass(t, "cse", f) {
		t.Fatal("cse reported no change")
	}
	if mul.Args[0] != a1 || mul.Args[1] != a1 {
		t.Errorf("mul args = %s, %s, want both %s", mul.Args[0], mul.Args[1], a1)
	}
	if countOp(f, ir.OpAdd) != 1 {
		t.Errorf("adds remaining = %d, want 1", countOp(f, ir.OpAdd))
	}
}

func TestCSERespectsDominance(t *testing.T) {
	// Identical computations on two sides of a branch must both survive:
	// neither dominates the other.
	f := newFunc([]types.Type{boolT, u64T}, u64T)
	left := f.NewBlock(ir.BlockPlain)
	right := f.NewBlock(ir.BlockPlain)
	merge := f.NewBlock(ir.BlockReturn)

	f.Entry.Kind = ir.BlockIf
	f.Entry.SetControl(f.Entry.Params[0])
	f.Entry.AddEdgeTo(left)
	f.Entry.AddEdgeTo(right)

	x := f.Entry.Params[1]
	l := f.NewValue(left, ir.OpAdd, u64T, x, x)
	r := f.NewValue(right, ir.OpAdd, u64T, x, x)
	p := f.NewParam(merge, u64T)
	left.AddEdgeTo(merge, l)
	right.AddEdgeTo(merge, r)
	merge.SetControl(p)

	if runPass(t, "cse", f) {
		t.Error("cse changed the function; sibling blocks must not share values")
	}
	if countOp(f, ir.OpAdd) != 2 {
		t.Errorf("adds remaining = %d, want 2", countOp(f, ir.OpAdd))
	}
}

func TestCSELeavesStorageReadsAlone(t *testing.T) {
	f := newFunc(nil, u256T)
	b := f.Entry
	key := f.NewValue(b, ir.OpConstWord, u256T)
	s1 := f.NewValue(b, ir.OpSLoad, u256T, key)
	s2 := f.NewValue(b, ir.OpSLoad, u256T, key)
	sum := f.NewValue(b, ir.OpAdd, u256T, s1, s2)
	b.Kind = ir.BlockReturn
	b.SetControl(sum)

	runPass(t, "cse", f)
	if countOp(f, ir.OpSLoad) != 2 {
		t.Errorf("storage reads remaining = %d, want 2 (cse must not touch them)", countOp(f, ir.OpSLoad))
	}
}
