package ir

import (
	"strings"
	"testing"

	"github.com/covenant-lang/covenant/pkg/types"
)

func TestVerifyValidFunction(t *testing.T) {
	f, _, _, _ := diamond()
	if err := Verify(f, "test"); err != nil {
		t.Fatalf("Verify() = %v, want nil", err)
	}
	if err := VerifyDominance(f, "test"); err != nil {
		t.Fatalf("VerifyDominance() = %v, want nil", err)
	}
}

func TestVerifyEdgeArgMismatch(t *testing.T) {
	u64 := types.MakeBasic(types.U64)
	f := newTestFunc([]types.Type{u64}, u64)

	next := f.NewBlock(BlockReturn)
	p := f.NewParam(next, u64)
	next.SetControl(p)
	f.Entry.AddEdgeTo(next) // missing the argument for next's param

	err := Verify(f, "test")
	if err == nil {
		t.Fatal("Verify() = nil, want edge argument mismatch")
	}
	if !strings.Contains(err.Error(), "carries 0 args") {
		t.Errorf("Verify() = %v, want edge arg count complaint", err)
	}
}

func TestVerifyBadBranchCondition(t *testing.T) {
	u64 := types.MakeBasic(types.U64)
	f := newTestFunc([]types.Type{u64}, nil)

	a := f.NewBlock(BlockReturn)
	b := f.NewBlock(BlockReturn)
	f.Entry.Kind = BlockIf
	f.Entry.SetControl(f.Entry.Params[0]) // u64, not bool
	f.Entry.AddEdgeTo(a)
	f.Entry.AddEdgeTo(b)

	err := Verify(f, "test")
	if err == nil {
		t.Fatal("Verify() = nil, want condition type error")
	}
	if !strings.Contains(err.Error(), "want bool") {
		t.Errorf("Verify() = %v, want branch condition complaint", err)
	}
}

func TestVerifyDominanceViolation(t *testing.T) {
	boolT := types.MakeBasic(types.Bool)
	u64 := types.MakeBasic(types.U64)
	f := newTestFunc([]types.Type{boolT}, u64)

	left := f.NewBlock(BlockPlain)
	right := f.NewBlock(BlockReturn)
	merge := f.NewBlock(BlockReturn)

	f.Entry.Kind = BlockIf
	f.Entry.SetControl(f.Entry.Params[0])
	f.Entry.AddEdgeTo(left)
	f.Entry.AddEdgeTo(right)
	left.AddEdgeTo(merge)

	x := f.NewValue(left, OpConst, u64)
	x.AuxInt = 1
	merge.SetControl(x)
	right.SetControl(x) // x does not dominate right

	if err := Verify(f, "test"); err != nil {
		t.Fatalf("Verify() = %v, want nil (structure is fine)", err)
	}
	err := VerifyDominance(f, "test")
	if err == nil {
		t.Fatal("VerifyDominance() = nil, want dominance violation")
	}
	if !strings.Contains(err.Error(), "not dominated") {
		t.Errorf("VerifyDominance() = %v, want dominance complaint", err)
	}
}

func TestReplaceUsesUpdatesCounts(t *testing.T) {
	u64 := types.MakeBasic(types.U64)
	f := newTestFunc([]types.Type{u64, u64}, u64)
	a, b := f.Entry.Params[0], f.Entry.Params[1]

	sum := f.NewValue(f.Entry, OpAdd, u64, a, a)
	f.Entry.Kind = BlockReturn
	f.Entry.SetControl(sum)

	f.ReplaceUses(a, b)
	if a.Uses != 0 {
		t.Errorf("a.Uses = %d, want 0", a.Uses)
	}
	if b.Uses != 2 {
		t.Errorf("b.Uses = %d, want 2", b.Uses)
	}
	if sum.Args[0] != b || sum.Args[1] != b {
		t.Errorf("sum args = %v, %v, want both replaced", sum.Args[0], sum.Args[1])
	}
}
