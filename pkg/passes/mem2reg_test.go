package passes

import (
	"testing"

	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/types"
)

func TestMem2RegStraightLine(t *testing.T) {
	f := newFunc([]types.Type{u64T}, u64T)
	b := f.Entry
	x := b.Params[0]
	slot := f.NewValue(b, ir.OpAlloc, &types.Pointer{Elem: u64T})
	slot.Aux = "tmp"
	f.NewValue(b, ir.OpStore, nil, slot, x)
	ld := f.NewValue(b, ir.OpLoad, u64T, slot)
	b.Kind = ir.BlockReturn
	b.SetControl(ld)

	if !runPass(t, "mem2reg", f) {
		t.Fatal("mem2reg reported no change")
	}
	if countOp(f, ir.OpAlloc)+countOp(f, ir.OpLoad)+countOp(f, ir.OpStore) != 0 {
		t.Error("memory traffic survived promotion")
	}
	if b.Controls[0] != x {
		t.Errorf("return control = %s, want the parameter", b.Controls[0])
	}
}

func TestMem2RegMergeGetsParam(t *testing.T) {
	f := newFunc([]types.Type{boolT}, u64T)
	b := f.Entry
	slot := f.NewValue(b, ir.OpAlloc, &types.Pointer{Elem: u64T})
	slot.Aux = "v"
	c1 := constOf(f, b, u64T, 1)
	c2 := constOf(f, b, u64T, 2)

	left := f.NewBlock(ir.BlockPlain)
	right := f.NewBlock(ir.BlockPlain)
	merge := f.NewBlock(ir.BlockReturn)

	b.Kind = ir.BlockIf
	b.SetControl(b.Params[0])
	b.AddEdgeTo(left)
	b.AddEdgeTo(right)
	f.NewValue(left, ir.OpStore, nil, slot, c1)
	f.NewValue(right, ir.OpStore, nil, slot, c2)
	left.AddEdgeTo(merge)
	right.AddEdgeTo(merge)
	ld := f.NewValue(merge, ir.OpLoad, u64T, slot)
	merge.SetControl(ld)

	if !runPass(t, "mem2reg", f) {
		t.Fatal("mem2reg reported no change")
	}
	if len(merge.Params) != 1 {
		t.Fatalf("merge params = %d, want 1", len(merge.Params))
	}
	if merge.Controls[0] != merge.Params[0] {
		t.Errorf("return control = %s, want the merge parameter", merge.Controls[0])
	}
	if left.Succs[0].Args[0] != c1 || right.Succs[0].Args[0] != c2 {
		t.Errorf("edge args = %s, %s, want the stored constants", left.Succs[0].Args[0], right.Succs[0].Args[0])
	}
	if countOp(f, ir.OpAlloc) != 0 {
		t.Error("slot survived promotion")
	}
}

func TestMem2RegUninitializedReadsZero(t *testing.T) {
	f := newFunc(nil, u64T)
	b := f.Entry
	slot := f.NewValue(b, ir.OpAlloc, &types.Pointer{Elem: u64T})
	slot.Aux = "u"
	ld := f.NewValue(b, ir.OpLoad, u64T, slot)
	b.Kind = ir.BlockReturn
	b.SetControl(ld)

	runPass(t, "mem2reg", f)
	ctl := b.Controls[0]
	if ctl.Op != ir.OpConst || ctl.AuxInt != 0 {
		t.Errorf("uninitialized read = %s [%d], want Const [0]", ctl.Op, ctl.AuxInt)
	}
}

func TestMem2RegSplitsAggregates(t *testing.T) {
	pair := &types.Struct{Name: "Pair", Fields: []types.Field{
		{Name: "a", Type: u64T},
		{Name: "b", Type: u64T},
	}}
	f := newFunc([]types.Type{u64T, u64T}, u64T)
	b := f.Entry
	x, y := b.Params[0], b.Params[1]

	slot := f.NewValue(b, ir.OpAlloc, &types.Pointer{Elem: pair})
	slot.Aux = "p"
	pa := f.NewValue(b, ir.OpFieldPtr, &types.Pointer{Elem: u64T}, slot)
	pa.AuxInt = 0
	pb := f.NewValue(b, ir.OpFieldPtr, &types.Pointer{Elem: u64T}, slot)
	pb.AuxInt = int64(pair.FieldOffset(1))
	f.NewValue(b, ir.OpStore, nil, pa, x)
	f.NewValue(b, ir.OpStore, nil, pb, y)
	la := f.NewValue(b, ir.OpLoad, u64T, pa)
	lb := f.NewValue(b, ir.OpLoad, u64T, pb)
	sum := f.NewValue(b, ir.OpAdd, u64T, la, lb)
	b.Kind = ir.BlockReturn
	b.SetControl(sum)

	if !runPass(t, "mem2reg", f) {
		t.Fatal("mem2reg reported no change")
	}
	if countOp(f, ir.OpAlloc)+countOp(f, ir.OpFieldPtr)+countOp(f, ir.OpLoad) != 0 {
		t.Error("aggregate slot was not fully scalarized and promoted")
	}
	if sum.Args[0] != x || sum.Args[1] != y {
		t.Errorf("sum args = %s, %s, want the parameters", sum.Args[0], sum.Args[1])
	}
}

func TestMem2RegSkipsEscapingSlot(t *testing.T) {
	f := newFunc(nil, nil)
	b := f.Entry
	slot := f.NewValue(b, ir.OpAlloc, &types.Pointer{Elem: u64T})
	slot.Aux = "e"
	call := f.NewValue(b, ir.OpCall, nil, slot) // address escapes into the callee
	call.Aux = "g"
	b.Kind = ir.BlockReturn
	b.SetControl(nil)

	if runPass(t, "mem2reg", f) {
		t.Error("mem2reg changed a function whose only slot escapes")
	}
	if countOp(f, ir.OpAlloc) != 1 {
		t.Error("escaping slot was removed")
	}
}
