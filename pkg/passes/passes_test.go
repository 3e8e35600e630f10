package passes

import (
	"testing"

	"github.com/covenant-lang/covenant/pkg/analysis"
	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
)

var (
	u64T  = types.MakeBasic(types.U64)
	u8T   = types.MakeBasic(types.U8)
	boolT = types.MakeBasic(types.Bool)
	u256T = types.MakeBasic(types.U256)
)

func newFunc(params []types.Type, ret types.Type) *ir.Func {
	return ir.NewModule("test").NewFunc("f", ir.EffectPure, params, ret, source.Pos{})
}

func constOf(f *ir.Func, b *ir.Block, t types.Type, n int64) *ir.Value {
	v := f.NewValue(b, ir.OpConst, t)
	v.AuxInt = n
	return v
}

// runPass runs a registered pass once and verifies the result.
func runPass(t *testing.T, name string, f *ir.Func) bool {
	t.Helper()
	p, ok := Lookup(name)
	if !ok {
		t.Fatalf("Lookup(%q) = false, pass not registered", name)
	}
	changed, err := p.Run(analysis.NewCache(f))
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	if err := ir.VerifyDominance(f, name); err != nil {
		t.Fatalf("after %s: %v", name, err)
	}
	return changed
}

func countOp(f *ir.Func, op ir.Op) int {
	n := 0
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			if v.Op == op {
				n++
			}
		}
	}
	return n
}

func TestRegistryNames(t *testing.T) {
	names := Names()
	want := []string{"constfold", "cse", "dce", "inline", "mem2reg", "simplifycfg", "storageelim"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], n)
		}
	}
}

func TestNewManagerRejectsUnknownPass(t *testing.T) {
	_, err := NewManager(Config{OptLevel: 2, Disable: []string{"loopunroll"}})
	if err == nil {
		t.Fatal("NewManager() = nil error, want unknown-pass error")
	}
}
