package decl

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
)

func sampleContract() *Contract {
	u64 := TypeExpr{Kind: TypeU64}
	return &Contract{
		Name: "vault",
		Types: []TypeDef{{
			Name: "Pair",
			Type: TypeExpr{
				Kind: TypeStruct,
				Name: "Pair",
				Fields: []FieldExpr{
					{Name: "a", Type: u64},
					{Name: "b", Type: u64},
				},
			},
		}},
		State: []StateField{
			{Name: "total", Type: u64, Pos: source.Pos{Line: 2, Column: 3}},
			{Namespace: []string{"owner"}, Name: "addr", Type: TypeExpr{Kind: TypeAddress}},
		},
		Funcs: []*FuncDecl{{
			Name:     "deposit",
			Exported: true,
			Effect:   EffectWrites,
			Params:   []Param{{Name: "amount", Type: u64}},
			Body: []*Stmt{{
				Kind:   StmtAssign,
				Target: &Expr{Kind: ExprStateRef, Type: &u64, Path: []string{"total"}},
				Value: &Expr{
					Kind:  ExprBinary,
					Type:  &u64,
					BinOp: BinAdd,
					X:     &Expr{Kind: ExprStateRef, Type: &u64, Path: []string{"total"}},
					Y:     &Expr{Kind: ExprVar, Type: &u64, Name: "amount"},
				},
				Pos: source.Pos{Line: 7, Column: 5},
			}},
		}},
	}
}

func TestContractWireRoundTrip(t *testing.T) {
	c := sampleContract()
	data, err := MarshalContract(c)
	if err != nil {
		t.Fatalf("MarshalContract: %v", err)
	}
	got, err := UnmarshalContract(data)
	if err != nil {
		t.Fatalf("UnmarshalContract: %v", err)
	}
	if !reflect.DeepEqual(got, c) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, c)
	}
}

func TestMarshalContractCanonical(t *testing.T) {
	a, err := MarshalContract(sampleContract())
	if err != nil {
		t.Fatalf("MarshalContract: %v", err)
	}
	b, _ := MarshalContract(sampleContract())
	if !bytes.Equal(a, b) {
		t.Error("identical trees encoded differently")
	}
}

func TestUnmarshalContractRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalContract([]byte{0xFF, 0x00, 0x12}); err == nil {
		t.Error("UnmarshalContract() = nil error, want failure")
	}
}

func TestResolveNamedType(t *testing.T) {
	r := NewResolver(sampleContract())

	got, err := r.Resolve(TypeExpr{Kind: TypeNamed, Name: "Pair"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	st, ok := got.(*types.Struct)
	if !ok {
		t.Fatalf("Resolve(Pair) = %T, want *types.Struct", got)
	}
	if len(st.Fields) != 2 || st.Fields[0].Name != "a" {
		t.Errorf("Pair fields = %+v", st.Fields)
	}

	// Repeated references share one resolved value.
	again, _ := r.Resolve(TypeExpr{Kind: TypeNamed, Name: "Pair"})
	if again != got {
		t.Error("repeated Resolve of a named type returned a distinct value")
	}
}

func TestResolveRejectsUnknownName(t *testing.T) {
	r := NewResolver(&Contract{Name: "empty"})
	if _, err := r.Resolve(TypeExpr{Kind: TypeNamed, Name: "Missing"}); err == nil {
		t.Error("Resolve(Missing) = nil error, want failure")
	}
}

func TestResolveComposite(t *testing.T) {
	r := NewResolver(&Contract{Name: "m"})
	got, err := r.Resolve(TypeExpr{
		Kind: TypeMap,
		Elems: []TypeExpr{
			{Kind: TypeAddress},
			{Kind: TypeU256},
		},
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	m, ok := got.(*types.Map)
	if !ok {
		t.Fatalf("Resolve(map) = %T, want *types.Map", got)
	}
	if m.Key != types.MakeBasic(types.Address) || m.Value != types.MakeBasic(types.U256) {
		t.Errorf("map = %v", m)
	}
}
