package passes

import (
	"testing"

	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/types"
)

func storageKey(f *ir.Func, b *ir.Block, n uint64) *ir.Value {
	k := f.NewValue(b, ir.OpConstWord, u256T)
	k.Aux = types.WordFromUint64(n)
	return k
}

func TestStorageElimDedupsReads(t *testing.T) {
	f := newFunc(nil, u256T)
	b := f.Entry
	key := storageKey(f, b, 1)
	s1 := f.NewValue(b, ir.OpSLoad, u256T, key)
	s2 := f.NewValue(b, ir.OpSLoad, u256T, key)
	sum := f.NewValue(b, ir.OpAdd, u256T, s1, s2)
	b.Kind = ir.BlockReturn
	b.SetControl(sum)

	if !runPass(t, "storageelim", f) {
		t.Fatal("storageelim reported no change")
	}
	if countOp(f, ir.OpSLoad) != 1 {
		t.Errorf("storage reads = %d, want 1", countOp(f, ir.OpSLoad))
	}
	if sum.Args[1] != s1 {
		t.Errorf("sum.Args[1] = %s, want the first read", sum.Args[1])
	}
}

func TestStorageElimForwardsWrittenValue(t *testing.T) {
	f := newFunc([]types.Type{u64T}, nil)
	b := f.Entry
	key := storageKey(f, b, 1)
	val := f.NewValue(b, ir.OpConstWord, u256T)
	val.Aux = types.WordFromUint64(7)
	f.NewValue(b, ir.OpSStore, nil, key, val)
	ld := f.NewValue(b, ir.OpSLoad, u256T, key)
	f.NewValue(b, ir.OpSStore, nil, storageKey(f, b, 2), ld)
	b.Kind = ir.BlockReturn
	b.SetControl(nil)

	if !runPass(t, "storageelim", f) {
		t.Fatal("storageelim reported no change")
	}
	if countOp(f, ir.OpSLoad) != 0 {
		t.Error("read after write to the same key survived")
	}
}

func TestStorageElimCallClobbers(t *testing.T) {
	f := newFunc(nil, u256T)
	b := f.Entry
	key := storageKey(f, b, 1)
	s1 := f.NewValue(b, ir.OpSLoad, u256T, key)
	call := f.NewValue(b, ir.OpCall, nil)
	call.Aux = "mutator"
	s2 := f.NewValue(b, ir.OpSLoad, u256T, key)
	sum := f.NewValue(b, ir.OpAdd, u256T, s1, s2)
	b.Kind = ir.BlockReturn
	b.SetControl(sum)

	if runPass(t, "storageelim", f) {
		t.Error("storageelim changed the function across a call")
	}
	if countOp(f, ir.OpSLoad) != 2 {
		t.Errorf("storage reads = %d, want 2 (calls clobber)", countOp(f, ir.OpSLoad))
	}
}

func TestStorageElimDropsRedundantWrite(t *testing.T) {
	f := newFunc(nil, nil)
	b := f.Entry
	key := storageKey(f, b, 1)
	val := f.NewValue(b, ir.OpConstWord, u256T)
	val.Aux = types.WordFromUint64(3)
	f.NewValue(b, ir.OpSStore, nil, key, val)
	f.NewValue(b, ir.OpSStore, nil, key, val) // same key, same value
	b.Kind = ir.BlockReturn
	b.SetControl(nil)

	if !runPass(t, "storageelim", f) {
		t.Fatal("storageelim reported no change")
	}
	if countOp(f, ir.OpSStore) != 1 {
		t.Errorf("storage writes = %d, want 1", countOp(f, ir.OpSStore))
	}
}

func TestStorageElimDistinctKeysClobber(t *testing.T) {
	// A write to another key may alias; a remembered read must die.
	f := newFunc([]types.Type{u256T}, u256T)
	b := f.Entry
	keyA := storageKey(f, b, 1)
	s1 := f.NewValue(b, ir.OpSLoad, u256T, keyA)
	f.NewValue(b, ir.OpSStore, nil, b.Params[0], s1) // dynamic key
	s2 := f.NewValue(b, ir.OpSLoad, u256T, keyA)
	sum := f.NewValue(b, ir.OpAdd, u256T, s1, s2)
	b.Kind = ir.BlockReturn
	b.SetControl(sum)

	if runPass(t, "storageelim", f) {
		t.Error("storageelim changed the function across an aliasing write")
	}
	if countOp(f, ir.OpSLoad) != 2 {
		t.Errorf("storage reads = %d, want 2", countOp(f, ir.OpSLoad))
	}
}
