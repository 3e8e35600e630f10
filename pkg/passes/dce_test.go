package passes

import (
	"testing"

	"github.com/covenant-lang/covenant/pkg/ir"
)

func TestDCERemovesUnusedValues(t *testing.T) {
	f := newFunc(nil, u64T)
	b := f.Entry
	live := constOf(f, b, u64T, 1)
	dead := f.NewValue(b, ir.OpAdd, u64T, constOf(f, b, u64T, 2), constOf(f, b, u64T, 3))
	_ = dead
	b.Kind = ir.BlockReturn
	b.SetControl(live)

	if !runPass(t, "dce", f) {
		t.Fatal("dce reported no change")
	}
	// The dead add and its two operands all go; only the returned const stays.
	if n := f.NumValues(); n != 1 {
		t.Errorf("NumValues() = %d, want 1", n)
	}
	if b.Values[0] != live {
		t.Errorf("surviving value = %s, want the returned const", b.Values[0])
	}
}

func TestDCEKeepsEffects(t *testing.T) {
	f := newFunc(nil, nil)
	b := f.Entry
	key := f.NewValue(b, ir.OpConstWord, u256T)
	val := constOf(f, b, u256T, 9)
	f.NewValue(b, ir.OpSStore, nil, key, val)
	call := f.NewValue(b, ir.OpCall, u64T)
	call.Aux = "g"
	b.Kind = ir.BlockReturn
	b.SetControl(nil)

	runPass(t, "dce", f)
	if countOp(f, ir.OpSStore) != 1 {
		t.Error("dce removed a storage write")
	}
	if countOp(f, ir.OpCall) != 1 {
		t.Error("dce removed a call with an unused result")
	}
}

func TestDCERemovesUnreachableBlocks(t *testing.T) {
	f := newFunc(nil, u64T)
	ret := constOf(f, f.Entry, u64T, 1)
	f.Entry.Kind = ir.BlockReturn
	f.Entry.SetControl(ret)

	orphan := f.NewBlock(ir.BlockReturn)
	orphan.SetControl(constOf(f, orphan, u64T, 2))

	if !runPass(t, "dce", f) {
		t.Fatal("dce reported no change")
	}
	if len(f.Blocks) != 1 {
		t.Errorf("len(Blocks) = %d, want 1", len(f.Blocks))
	}
}

func TestDCEIdempotent(t *testing.T) {
	f := newFunc(nil, u64T)
	b := f.Entry
	x := constOf(f, b, u64T, 4)
	dead := f.NewValue(b, ir.OpAdd, u64T, x, x)
	_ = dead
	orphan := f.NewBlock(ir.BlockReturn)
	orphan.SetControl(constOf(f, orphan, u64T, 9))
	b.Kind = ir.BlockReturn
	b.SetControl(x)

	if !runPass(t, "dce", f) {
		t.Fatal("dce reported no change")
	}
	after := ir.Sprint(f)
	if runPass(t, "dce", f) {
		t.Error("second dce run still changed the IR")
	}
	if got := ir.Sprint(f); got != after {
		t.Errorf("second run altered the function:\n--- first\n%s\n--- second\n%s", after, got)
	}
}
