package passes

import (
	"testing"

	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
)

// callerAndDouble builds double(x) = x + x and caller(x) = double(x) + 1.
func callerAndDouble() (*ir.Module, *ir.Func) {
	mod := ir.NewModule("test")

	double := mod.NewFunc("double", ir.EffectPure, []types.Type{u64T}, u64T, source.Pos{})
	db := double.Entry
	sum := double.NewValue(db, ir.OpAdd, u64T, db.Params[0], db.Params[0])
	db.Kind = ir.BlockReturn
	db.SetControl(sum)

	caller := mod.NewFunc("caller", ir.EffectPure, []types.Type{u64T}, u64T, source.Pos{})
	cb := caller.Entry
	call := caller.NewValue(cb, ir.OpCall, u64T, cb.Params[0])
	call.Aux = "double"
	one := caller.NewValue(cb, ir.OpConst, u64T)
	one.AuxInt = 1
	res := caller.NewValue(cb, ir.OpAdd, u64T, call, one)
	cb.Kind = ir.BlockReturn
	cb.SetControl(res)

	return mod, caller
}

func TestInlineReplacesCall(t *testing.T) {
	mod, caller := callerAndDouble()
	inl := newInliner(mod, 0)

	changed, err := inl.run(caller)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !changed {
		t.Fatal("inliner reported no change")
	}
	if err := ir.VerifyDominance(caller, "inline"); err != nil {
		t.Fatalf("after inline: %v", err)
	}
	if countOp(caller, ir.OpCall) != 0 {
		t.Errorf("calls remaining = %d, want 0", countOp(caller, ir.OpCall))
	}
	// The callee body arrived: the caller now computes x + x itself.
	if countOp(caller, ir.OpAdd) != 2 {
		t.Errorf("adds in caller = %d, want 2", countOp(caller, ir.OpAdd))
	}
	// The callee is untouched.
	if mod.FuncNamed("double").NumValues() != 2 {
		t.Errorf("callee NumValues() = %d, want 2", mod.FuncNamed("double").NumValues())
	}
}

func TestInlineSkipsRecursion(t *testing.T) {
	mod := ir.NewModule("test")
	rec := mod.NewFunc("rec", ir.EffectPure, []types.Type{u64T}, u64T, source.Pos{})
	b := rec.Entry
	call := rec.NewValue(b, ir.OpCall, u64T, b.Params[0])
	call.Aux = "rec"
	b.Kind = ir.BlockReturn
	b.SetControl(call)

	inl := newInliner(mod, 0)
	changed, err := inl.run(rec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if changed {
		t.Error("inliner changed a self-recursive function")
	}
	if countOp(rec, ir.OpCall) != 1 {
		t.Errorf("calls remaining = %d, want 1", countOp(rec, ir.OpCall))
	}
}

func TestInlineSkipsMutualRecursion(t *testing.T) {
	mod := ir.NewModule("test")
	mkCallTo := func(name, callee string) *ir.Func {
		f := mod.NewFunc(name, ir.EffectPure, []types.Type{u64T}, u64T, source.Pos{})
		b := f.Entry
		call := f.NewValue(b, ir.OpCall, u64T, b.Params[0])
		call.Aux = callee
		b.Kind = ir.BlockReturn
		b.SetControl(call)
		return f
	}
	even := mkCallTo("even", "odd")
	mkCallTo("odd", "even")

	inl := newInliner(mod, 0)
	if inl.inCycle["even"] != true || inl.inCycle["odd"] != true {
		t.Fatalf("inCycle = %v, want both members marked", inl.inCycle)
	}
	changed, err := inl.run(even)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if changed {
		t.Error("inliner changed a mutually-recursive function")
	}
}

func TestInlineRespectsBudget(t *testing.T) {
	mod, caller := callerAndDouble()
	inl := newInliner(mod, 1) // smaller than any callee

	changed, err := inl.run(caller)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if changed {
		t.Error("inliner copied a callee over budget")
	}
	if countOp(caller, ir.OpCall) != 1 {
		t.Errorf("calls remaining = %d, want 1", countOp(caller, ir.OpCall))
	}
}

func TestInlineVoidCallee(t *testing.T) {
	mod := ir.NewModule("test")

	poke := mod.NewFunc("poke", ir.EffectWrites, nil, nil, source.Pos{})
	pb := poke.Entry
	key := poke.NewValue(pb, ir.OpConstWord, u256T)
	key.Aux = types.WordFromUint64(1)
	val := poke.NewValue(pb, ir.OpConstWord, u256T)
	val.Aux = types.WordFromUint64(2)
	poke.NewValue(pb, ir.OpSStore, nil, key, val)
	pb.Kind = ir.BlockReturn
	pb.SetControl(nil)

	caller := mod.NewFunc("caller", ir.EffectWrites, nil, nil, source.Pos{})
	cb := caller.Entry
	call := caller.NewValue(cb, ir.OpCall, nil)
	call.Aux = "poke"
	cb.Kind = ir.BlockReturn
	cb.SetControl(nil)

	inl := newInliner(mod, 0)
	changed, err := inl.run(caller)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !changed {
		t.Fatal("inliner reported no change")
	}
	if err := ir.VerifyDominance(caller, "inline"); err != nil {
		t.Fatalf("after inline: %v", err)
	}
	if countOp(caller, ir.OpCall) != 0 || countOp(caller, ir.OpSStore) != 1 {
		t.Errorf("caller has %d calls and %d stores, want 0 and 1",
			countOp(caller, ir.OpCall), countOp(caller, ir.OpSStore))
	}
}

func TestInlineHoistsSlotsToEntry(t *testing.T) {
	mod := ir.NewModule("test")

	stash := mod.NewFunc("stash", ir.EffectPure, []types.Type{u64T}, u64T, source.Pos{})
	sb := stash.Entry
	slot := stash.NewValueFront(sb, ir.OpAlloc, &types.Pointer{Elem: u64T})
	stash.NewValue(sb, ir.OpStore, nil, slot, sb.Params[0])
	ld := stash.NewValue(sb, ir.OpLoad, u64T, slot)
	sb.Kind = ir.BlockReturn
	sb.SetControl(ld)

	caller := mod.NewFunc("caller", ir.EffectPure, []types.Type{u64T}, u64T, source.Pos{})
	cb := caller.Entry
	call := caller.NewValue(cb, ir.OpCall, u64T, cb.Params[0])
	call.Aux = "stash"
	cb.Kind = ir.BlockReturn
	cb.SetControl(call)

	inl := newInliner(mod, 0)
	changed, err := inl.run(caller)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !changed {
		t.Fatal("inliner reported no change")
	}
	if err := ir.VerifyDominance(caller, "inline"); err != nil {
		t.Fatalf("after inline: %v", err)
	}

	// The copied slot must land in the entry block, where the promotion
	// passes look for slots.
	allocs := 0
	for _, b := range caller.Blocks {
		for _, v := range b.Values {
			if v.Op == ir.OpAlloc {
				allocs++
				if b != caller.Entry {
					t.Errorf("slot v%d cloned into %s, want the entry block", v.ID, b)
				}
			}
		}
	}
	if allocs != 1 {
		t.Fatalf("allocs in caller = %d, want 1", allocs)
	}

	if !runPass(t, "mem2reg", caller) {
		t.Fatal("mem2reg reported no change on the inlined slot")
	}
	if countOp(caller, ir.OpAlloc) != 0 {
		t.Errorf("allocs after promotion = %d, want 0", countOp(caller, ir.OpAlloc))
	}
}
