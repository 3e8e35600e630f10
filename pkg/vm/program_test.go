package vm

import (
	"reflect"
	"testing"

	"github.com/covenant-lang/covenant/pkg/types"
)

func sampleProgram() *Program {
	p := NewProgram("token")
	p.AddConstant(types.WordFromUint64(1000))
	p.AddConstant(types.WordFromUint64(7))

	p.Funcs = append(p.Funcs, &FuncCode{
		Name:       "transfer",
		Flags:      FuncFlagExported | FuncFlagResult,
		ParamCount: 2,
		FrameWords: 4,
		Code: []Instr{
			{Op: OpLoadK, A: 7, Imm: 0},
			{Op: OpAdd, A: 7, B: 1, C: 2},
			{Op: OpMov, A: 1, B: 7},
			{Op: OpRet, A: 1},
		},
		SourceMap: []SourceLocation{
			{Instr: 0, Line: 10, Column: 5},
			{Instr: 2, Line: 12, Column: 9},
		},
	})
	p.Funcs = append(p.Funcs, &FuncCode{
		Name:       "init",
		ParamCount: 0,
		FrameWords: 1,
		Code: []Instr{
			{Op: OpLoadI, A: 0, Imm: 42},
			{Op: OpRet},
		},
	})
	return p
}

func TestProgramRoundTrip(t *testing.T) {
	p := sampleProgram()
	data, err := p.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	q, err := Deserialize(data)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if q.Contract != p.Contract || q.Version != p.Version {
		t.Errorf("header = (%q, %d), want (%q, %d)", q.Contract, q.Version, p.Contract, p.Version)
	}
	if !reflect.DeepEqual(q.Pool, p.Pool) {
		t.Errorf("pool mismatch: %v vs %v", q.Pool, p.Pool)
	}
	if len(q.Funcs) != len(p.Funcs) {
		t.Fatalf("len(Funcs) = %d, want %d", len(q.Funcs), len(p.Funcs))
	}
	for i := range p.Funcs {
		if !reflect.DeepEqual(q.Funcs[i], p.Funcs[i]) {
			t.Errorf("func %d mismatch:\ngot  %+v\nwant %+v", i, q.Funcs[i], p.Funcs[i])
		}
	}
}

func TestSerializeDeterministic(t *testing.T) {
	a, err := sampleProgram().Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	b, _ := sampleProgram().Serialize()
	if string(a) != string(b) {
		t.Error("identical programs serialized differently")
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	good, _ := sampleProgram().Serialize()

	cases := map[string][]byte{
		"empty":     nil,
		"short":     good[:3],
		"bad magic": append([]byte("XXXX"), good[4:]...),
		"truncated": good[:len(good)-5],
	}
	for name, data := range cases {
		if _, err := Deserialize(data); err == nil {
			t.Errorf("%s: Deserialize() = nil error, want failure", name)
		}
	}

	future := append([]byte(nil), good...)
	future[4], future[5] = 0xFF, 0xFF
	if _, err := Deserialize(future); err == nil {
		t.Error("future version: Deserialize() = nil error, want failure")
	}
}

func TestAddConstantDedup(t *testing.T) {
	p := NewProgram("c")
	w := types.WordFromUint64(5)
	i := p.AddConstant(w)
	j := p.AddConstant(w)
	if i != j {
		t.Errorf("AddConstant returned %d then %d for the same word", i, j)
	}
	if len(p.Pool) != 1 {
		t.Errorf("len(Pool) = %d, want 1", len(p.Pool))
	}
}

func TestSourceMapLookup(t *testing.T) {
	fc := &FuncCode{SourceMap: []SourceLocation{
		{Instr: 0, Line: 3, Column: 1},
		{Instr: 5, Line: 8, Column: 2},
	}}
	cases := []struct {
		instr uint32
		line  uint32
	}{
		{0, 3}, {4, 3}, {5, 8}, {100, 8},
	}
	for _, c := range cases {
		if line, _ := fc.Location(c.instr); line != c.line {
			t.Errorf("Location(%d) line = %d, want %d", c.instr, line, c.line)
		}
	}
	empty := &FuncCode{}
	if line, col := empty.Location(0); line != 0 || col != 0 {
		t.Errorf("Location on empty map = (%d, %d), want (0, 0)", line, col)
	}
}

func TestInstrEncodeDecode(t *testing.T) {
	in := Instr{Op: OpJz, A: 1, B: 9, C: 0, Imm: 0xDEADBEEF}
	buf := in.Encode(nil)
	if len(buf) != InstrSize {
		t.Fatalf("encoded size = %d, want %d", len(buf), InstrSize)
	}
	out, err := DecodeInstr(buf)
	if err != nil {
		t.Fatalf("DecodeInstr: %v", err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	if _, err := DecodeInstr(buf[:7]); err == nil {
		t.Error("DecodeInstr on short input = nil error, want failure")
	}
}

func FuzzDeserialize(f *testing.F) {
	good, _ := sampleProgram().Serialize()
	f.Add(good)
	f.Add([]byte("CVBC"))
	f.Fuzz(func(t *testing.T, data []byte) {
		p, err := Deserialize(data)
		if err != nil {
			return
		}
		out, err := p.Serialize()
		if err != nil {
			t.Fatalf("Serialize after Deserialize: %v", err)
		}
		if _, err := Deserialize(out); err != nil {
			t.Fatalf("reserialized program does not decode: %v", err)
		}
	})
}
