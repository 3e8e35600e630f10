package passes

import (
	"testing"

	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/types"
)

func TestSimplifyCFGFoldsConstantBranch(t *testing.T) {
	f := newFunc(nil, u64T)
	b := f.Entry
	cond := f.NewValue(b, ir.OpConstBool, boolT)
	cond.AuxInt = 1
	c1 := constOf(f, b, u64T, 1)

	taken := f.NewBlock(ir.BlockReturn)
	skipped := f.NewBlock(ir.BlockReturn)
	skipped.SetControl(constOf(f, skipped, u64T, 2))
	taken.SetControl(c1)

	b.Kind = ir.BlockIf
	b.SetControl(cond)
	b.AddEdgeTo(taken)
	b.AddEdgeTo(skipped)

	if !runPass(t, "simplifycfg", f) {
		t.Fatal("simplifycfg reported no change")
	}
	// The branch folds to a jump and the taken block merges in.
	if f.Entry.Kind != ir.BlockReturn {
		t.Fatalf("entry kind = %s, want ret", f.Entry.Kind)
	}
	if f.Entry.Controls[0] != c1 {
		t.Errorf("return control = %s, want the taken constant", f.Entry.Controls[0])
	}

	// The untaken side is unreachable now; dce finishes the cleanup.
	runPass(t, "dce", f)
	if len(f.Blocks) != 1 {
		t.Errorf("len(Blocks) = %d, want 1", len(f.Blocks))
	}
}

func TestSimplifyCFGCutsForwarder(t *testing.T) {
	f := newFunc(nil, u64T)
	c1 := constOf(f, f.Entry, u64T, 1)

	fwd := f.NewBlock(ir.BlockPlain)
	dst := f.NewBlock(ir.BlockReturn)
	p := f.NewParam(dst, u64T)
	dst.SetControl(p)

	// Give dst a second predecessor so merging cannot fire; only the
	// forwarder cut applies.
	other := f.NewBlock(ir.BlockPlain)
	c2 := constOf(f, f.Entry, u64T, 2)

	f.Entry.Kind = ir.BlockIf
	cond := f.NewValue(f.Entry, ir.OpEq, boolT, c1, c2)
	f.Entry.SetControl(cond)
	f.Entry.AddEdgeTo(fwd)
	f.Entry.AddEdgeTo(other)
	fwd.AddEdgeTo(dst, c1)
	other.AddEdgeTo(dst, c2)

	if !runPass(t, "simplifycfg", f) {
		t.Fatal("simplifycfg reported no change")
	}
	// Both empty forwarders are gone; the entry branches straight to dst.
	if len(f.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(f.Blocks))
	}
	if f.Entry.Succs[0].Block != dst || f.Entry.Succs[1].Block != dst {
		t.Errorf("entry successors = %s, %s, want dst twice", f.Entry.Succs[0].Block, f.Entry.Succs[1].Block)
	}
	if f.Entry.Succs[0].Args[0] != c1 || f.Entry.Succs[1].Args[0] != c2 {
		t.Errorf("edge args = %s, %s, want the forwarded constants", f.Entry.Succs[0].Args[0], f.Entry.Succs[1].Args[0])
	}
}

func TestSimplifyCFGSameTargetBranch(t *testing.T) {
	f := newFunc([]types.Type{boolT}, u64T)
	b := f.Entry
	c1 := constOf(f, b, u64T, 1)

	dst := f.NewBlock(ir.BlockReturn)
	p := f.NewParam(dst, u64T)
	dst.SetControl(p)

	b.Kind = ir.BlockIf
	b.SetControl(b.Params[0])
	b.AddEdgeTo(dst, c1)
	b.AddEdgeTo(dst, c1)

	if !runPass(t, "simplifycfg", f) {
		t.Fatal("simplifycfg reported no change")
	}
	// Both edges agree, so the branch is pointless; everything collapses
	// into a single return block.
	if f.Entry.Kind != ir.BlockReturn {
		t.Errorf("entry kind = %s, want ret", f.Entry.Kind)
	}
	if f.Entry.Controls[0] != c1 {
		t.Errorf("return control = %s, want the edge constant", f.Entry.Controls[0])
	}
}

func TestSimplifyCFGIdempotent(t *testing.T) {
	// A branch whose two arms are empty forwarders into one return block.
	// Cutting the forwarders exposes a same-target branch, folding that
	// exposes a mergeable pair; one run must chase the chain to the end.
	f := newFunc([]types.Type{boolT}, u64T)
	c1 := constOf(f, f.Entry, u64T, 1)

	left := f.NewBlock(ir.BlockPlain)
	right := f.NewBlock(ir.BlockPlain)
	dst := f.NewBlock(ir.BlockReturn)
	dst.SetControl(c1)

	f.Entry.Kind = ir.BlockIf
	f.Entry.SetControl(f.Entry.Params[0])
	f.Entry.AddEdgeTo(left)
	f.Entry.AddEdgeTo(right)
	left.AddEdgeTo(dst)
	right.AddEdgeTo(dst)

	if !runPass(t, "simplifycfg", f) {
		t.Fatal("simplifycfg reported no change")
	}
	after := ir.Sprint(f)
	if runPass(t, "simplifycfg", f) {
		t.Error("second simplifycfg run still changed the IR")
	}
	if got := ir.Sprint(f); got != after {
		t.Errorf("second run altered the function:\n--- first\n%s\n--- second\n%s", after, got)
	}
}
