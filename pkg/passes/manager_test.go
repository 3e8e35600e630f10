package passes

import (
	"testing"

	"github.com/covenant-lang/covenant/pkg/ir"
)

func TestManagerFullPipeline(t *testing.T) {
	mod, caller := callerAndDouble()

	mgr, err := NewManager(Config{OptLevel: DefaultOptLevel, Verify: true})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	stats, err := mgr.RunModule(mod, 1)
	if err != nil {
		t.Fatalf("RunModule: %v", err)
	}

	if countOp(caller, ir.OpCall) != 0 {
		t.Errorf("calls remaining in caller = %d, want 0", countOp(caller, ir.OpCall))
	}
	for _, f := range mod.Funcs {
		if err := ir.VerifyDominance(f, "pipeline"); err != nil {
			t.Errorf("%s: %v", f.Name, err)
		}
	}
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}
	for _, st := range stats {
		if st.ValuesAfter == 0 {
			t.Errorf("%s: ValuesAfter = 0", st.Func)
		}
	}
}

func TestManagerDeterministicAcrossWorkers(t *testing.T) {
	modA, _ := callerAndDouble()
	modB, _ := callerAndDouble()

	mgrA, err := NewManager(Config{OptLevel: DefaultOptLevel})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	mgrB, _ := NewManager(Config{OptLevel: DefaultOptLevel})

	if _, err := mgrA.RunModule(modA, 1); err != nil {
		t.Fatalf("RunModule(workers=1): %v", err)
	}
	if _, err := mgrB.RunModule(modB, 8); err != nil {
		t.Fatalf("RunModule(workers=8): %v", err)
	}

	for i := range modA.Funcs {
		a := ir.Sprint(modA.Funcs[i])
		b := ir.Sprint(modB.Funcs[i])
		if a != b {
			t.Errorf("%s differs across worker counts:\n--- workers=1\n%s\n--- workers=8\n%s",
				modA.Funcs[i].Name, a, b)
		}
	}
}

func TestManagerOptLevelZeroIsIdentity(t *testing.T) {
	mod, caller := callerAndDouble()
	before := ir.Sprint(caller)

	mgr, err := NewManager(Config{OptLevel: 0})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := mgr.RunModule(mod, 1); err != nil {
		t.Fatalf("RunModule: %v", err)
	}
	if after := ir.Sprint(caller); after != before {
		t.Errorf("-O0 changed the IR:\n--- before\n%s\n--- after\n%s", before, after)
	}
}

func TestManagerDisableInline(t *testing.T) {
	mod, caller := callerAndDouble()

	mgr, err := NewManager(Config{OptLevel: DefaultOptLevel, Disable: []string{"inline"}})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := mgr.RunModule(mod, 1); err != nil {
		t.Fatalf("RunModule: %v", err)
	}
	if countOp(caller, ir.OpCall) != 1 {
		t.Errorf("calls remaining = %d, want 1 with inlining disabled", countOp(caller, ir.OpCall))
	}
}
