package analysis

import (
	"testing"

	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
)

var (
	u64T  = types.MakeBasic(types.U64)
	boolT = types.MakeBasic(types.Bool)
)

func newFunc(params []types.Type, ret types.Type) *ir.Func {
	mod := ir.NewModule("test")
	return mod.NewFunc("f", ir.EffectPure, params, ret, source.Pos{})
}

func TestUsersOrder(t *testing.T) {
	f := newFunc([]types.Type{u64T}, u64T)
	b := f.Entry
	x := b.Params[0]
	a1 := f.NewValue(b, ir.OpAdd, u64T, x, x)
	a2 := f.NewValue(b, ir.OpMul, u64T, a1, x)
	b.Kind = ir.BlockReturn
	b.SetControl(a2)

	c := NewCache(f)
	users := c.Users(x)
	if len(users) != 2 || users[0] != a1 || users[1] != a2 {
		t.Errorf("Users(x) = %v, want [add, mul]", users)
	}
	// Terminator uses are counted in Uses, not listed by Users.
	if len(c.Users(a2)) != 0 {
		t.Errorf("Users(a2) = %v, want none", c.Users(a2))
	}
	if a2.Uses != 1 {
		t.Errorf("a2.Uses = %d, want 1", a2.Uses)
	}
}

func TestEscapeLocalOnlyAlloc(t *testing.T) {
	f := newFunc(nil, u64T)
	b := f.Entry
	slot := f.NewValue(b, ir.OpAlloc, &types.Pointer{Elem: u64T})
	k := f.NewValue(b, ir.OpConst, u64T)
	k.AuxInt = 7
	f.NewValue(b, ir.OpStore, nil, slot, k)
	ld := f.NewValue(b, ir.OpLoad, u64T, slot)
	b.Kind = ir.BlockReturn
	b.SetControl(ld)

	if NewCache(f).Escapes(slot) {
		t.Error("load/store-only slot reported as escaping")
	}
}

func TestEscapeCallArgument(t *testing.T) {
	f := newFunc(nil, nil)
	b := f.Entry
	slot := f.NewValue(b, ir.OpAlloc, &types.Pointer{Elem: u64T})
	call := f.NewValue(b, ir.OpCall, nil, slot)
	call.Aux = "consume"
	b.Kind = ir.BlockReturn

	if !NewCache(f).Escapes(slot) {
		t.Error("slot passed to a call reported as non-escaping")
	}
}

func TestEscapeThroughDerivedPointer(t *testing.T) {
	pair := &types.Struct{Name: "Pair", Fields: []types.Field{
		{Name: "a", Type: u64T},
		{Name: "b", Type: u64T},
	}}
	f := newFunc(nil, nil)
	b := f.Entry
	obj := f.NewValue(b, ir.OpAlloc, &types.Pointer{Elem: pair})
	fld := f.NewValue(b, ir.OpFieldPtr, &types.Pointer{Elem: u64T}, obj)
	fld.AuxInt = int64(pair.FieldOffset(1))
	dest := f.NewValue(b, ir.OpAlloc, &types.Pointer{Elem: &types.Pointer{Elem: u64T}})
	// Storing the derived pointer as a value condemns the whole object.
	f.NewValue(b, ir.OpStore, nil, dest, fld)
	b.Kind = ir.BlockReturn

	c := NewCache(f)
	if !c.Escapes(obj) {
		t.Error("object with a stored interior pointer reported as non-escaping")
	}
	if c.Escapes(dest) {
		t.Error("store destination reported as escaping")
	}
}

func TestLiveOutAcrossBranch(t *testing.T) {
	f := newFunc([]types.Type{boolT, u64T}, u64T)
	entry := f.Entry
	left := f.NewBlock(ir.BlockPlain)
	right := f.NewBlock(ir.BlockPlain)
	merge := f.NewBlock(ir.BlockReturn)
	p := f.NewParam(merge, u64T)

	x := entry.Params[1]
	dbl := f.NewValue(entry, ir.OpAdd, u64T, x, x)
	entry.Kind = ir.BlockIf
	entry.SetControl(entry.Params[0])
	entry.AddEdgeTo(left)
	entry.AddEdgeTo(right)
	left.AddEdgeTo(merge, dbl)
	right.AddEdgeTo(merge, x)
	merge.SetControl(p)

	c := NewCache(f)
	out := c.LiveOut(entry)
	if !containsID(out, dbl.ID) {
		t.Errorf("LiveOut(entry) = %v, missing the add used on the left edge", out)
	}
	if !containsID(out, x.ID) {
		t.Errorf("LiveOut(entry) = %v, missing the param used on the right edge", out)
	}
	if len(c.LiveOut(merge)) != 0 {
		t.Errorf("LiveOut(merge) = %v, want empty", c.LiveOut(merge))
	}
}

func containsID(ids []ir.ID, id ir.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func TestInvalidateRecomputes(t *testing.T) {
	f := newFunc([]types.Type{u64T}, u64T)
	b := f.Entry
	x := b.Params[0]
	a1 := f.NewValue(b, ir.OpAdd, u64T, x, x)
	b.Kind = ir.BlockReturn
	b.SetControl(a1)

	c := NewCache(f)
	if n := len(c.Users(x)); n != 1 {
		t.Fatalf("Users(x) = %d entries, want 1", n)
	}

	f.NewValue(b, ir.OpMul, u64T, x, x)
	c.Invalidate(DefUse)
	if n := len(c.Users(x)); n != 2 {
		t.Errorf("Users(x) after invalidation = %d entries, want 2", n)
	}
}
