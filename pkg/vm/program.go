package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/covenant-lang/covenant/pkg/types"
)

// ProgramVersion is the current program format version. Increment when
// making incompatible changes to the format.
const ProgramVersion uint16 = 1

// Magic bytes for program files: "CVBC" (Covenant ByteCode).
var ProgramMagic = []byte{'C', 'V', 'B', 'C'}

// FuncFlags carries per-function properties.
type FuncFlags uint8

const (
	// FuncFlagExported marks a contract entry point.
	FuncFlagExported FuncFlags = 1 << 0

	// FuncFlagResult marks a function returning a value in r1.
	FuncFlagResult FuncFlags = 1 << 1
)

// SourceLocation maps an instruction index to a source position.
type SourceLocation struct {
	Instr  uint32 // instruction index within the function
	Line   uint32 // source line (1-based)
	Column uint16 // source column (1-based)
}

// FuncCode is one compiled function.
type FuncCode struct {
	Name       string
	Flags      FuncFlags
	ParamCount uint8
	FrameWords uint16 // frame memory size in words, spills included
	Code       []Instr

	// SourceMap is sorted by instruction index; lookups take the nearest
	// entry at or before the index.
	SourceMap []SourceLocation
}

// Exported reports whether the function is a contract entry point.
func (fc *FuncCode) Exported() bool { return fc.Flags&FuncFlagExported != 0 }

// HasResult reports whether the function returns a value.
func (fc *FuncCode) HasResult() bool { return fc.Flags&FuncFlagResult != 0 }

// Location returns the source position of the instruction at index i, or
// zeroes when no mapping covers it.
func (fc *FuncCode) Location(i uint32) (line uint32, column uint16) {
	for j := len(fc.SourceMap) - 1; j >= 0; j-- {
		if fc.SourceMap[j].Instr <= i {
			return fc.SourceMap[j].Line, fc.SourceMap[j].Column
		}
	}
	return 0, 0
}

// Program is one compiled contract: its functions, shared constant pool,
// and enough metadata to dispatch exported entry points.
type Program struct {
	Version  uint16
	Contract string
	Funcs    []*FuncCode
	Pool     []types.Word
}

// NewProgram returns an empty program with the current version.
func NewProgram(contract string) *Program {
	return &Program{Version: ProgramVersion, Contract: contract}
}

// AddConstant adds a word to the pool and returns its index, reusing an
// existing entry when the value is already present.
func (p *Program) AddConstant(w types.Word) uint32 {
	for i, x := range p.Pool {
		if x == w {
			return uint32(i)
		}
	}
	p.Pool = append(p.Pool, w)
	return uint32(len(p.Pool) - 1)
}

// FuncIndex returns the index of the named function, or -1.
func (p *Program) FuncIndex(name string) int {
	for i, fc := range p.Funcs {
		if fc.Name == name {
			return i
		}
	}
	return -1
}

// Serialize encodes the program to bytes.
// Format:
//
//	[magic:4] [version:2]
//	[contract_len:2] [contract:...]
//	[pool_count:4] [words:32 each]
//	[func_count:2] [funcs:...]
//
// Each function:
//
//	[name_len:2] [name:...] [flags:1] [param_count:1] [frame_words:2]
//	[code_count:4] [instrs:8 each]
//	[map_count:4] [entries:10 each]
func (p *Program) Serialize() ([]byte, error) {
	size := 8 + len(p.Pool)*types.WordSize
	for _, fc := range p.Funcs {
		size += 12 + len(fc.Name) + len(fc.Code)*InstrSize + len(fc.SourceMap)*10
	}
	buf := make([]byte, 0, size)

	buf = append(buf, ProgramMagic...)
	buf = binary.BigEndian.AppendUint16(buf, p.Version)

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.Contract)))
	buf = append(buf, p.Contract...)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(p.Pool)))
	for _, w := range p.Pool {
		buf = append(buf, w[:]...)
	}

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.Funcs)))
	for _, fc := range p.Funcs {
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(fc.Name)))
		buf = append(buf, fc.Name...)
		buf = append(buf, byte(fc.Flags), fc.ParamCount)
		buf = binary.BigEndian.AppendUint16(buf, fc.FrameWords)

		buf = binary.BigEndian.AppendUint32(buf, uint32(len(fc.Code)))
		for _, in := range fc.Code {
			buf = in.Encode(buf)
		}

		buf = binary.BigEndian.AppendUint32(buf, uint32(len(fc.SourceMap)))
		for _, loc := range fc.SourceMap {
			buf = binary.BigEndian.AppendUint32(buf, loc.Instr)
			buf = binary.BigEndian.AppendUint32(buf, loc.Line)
			buf = binary.BigEndian.AppendUint16(buf, loc.Column)
		}
	}
	return buf, nil
}

// Deserialize decodes a program from bytes.
func Deserialize(data []byte) (*Program, error) {
	if len(data) < 6 {
		return nil, fmt.Errorf("vm: program too short: %d bytes", len(data))
	}
	if string(data[0:4]) != string(ProgramMagic) {
		return nil, fmt.Errorf("vm: invalid program magic %q", data[0:4])
	}
	p := &Program{Version: binary.BigEndian.Uint16(data[4:6])}
	if p.Version > ProgramVersion {
		return nil, fmt.Errorf("vm: program version %d is newer than supported version %d", p.Version, ProgramVersion)
	}
	pos := 6

	name, pos, err := readString16(data, pos)
	if err != nil {
		return nil, fmt.Errorf("vm: reading contract name: %w", err)
	}
	p.Contract = name

	if pos+4 > len(data) {
		return nil, fmt.Errorf("vm: unexpected end reading pool count")
	}
	poolCount := binary.BigEndian.Uint32(data[pos:])
	pos += 4
	if pos+int(poolCount)*types.WordSize > len(data) {
		return nil, fmt.Errorf("vm: unexpected end reading constant pool")
	}
	if poolCount > 0 {
		p.Pool = make([]types.Word, poolCount)
	}
	for i := range p.Pool {
		copy(p.Pool[i][:], data[pos:pos+types.WordSize])
		pos += types.WordSize
	}

	if pos+2 > len(data) {
		return nil, fmt.Errorf("vm: unexpected end reading function count")
	}
	funcCount := binary.BigEndian.Uint16(data[pos:])
	pos += 2

	p.Funcs = make([]*FuncCode, funcCount)
	for i := range p.Funcs {
		fc := &FuncCode{}
		fc.Name, pos, err = readString16(data, pos)
		if err != nil {
			return nil, fmt.Errorf("vm: reading function %d name: %w", i, err)
		}
		if pos+4 > len(data) {
			return nil, fmt.Errorf("vm: unexpected end reading function %q header", fc.Name)
		}
		fc.Flags = FuncFlags(data[pos])
		fc.ParamCount = data[pos+1]
		fc.FrameWords = binary.BigEndian.Uint16(data[pos+2:])
		pos += 4

		if pos+4 > len(data) {
			return nil, fmt.Errorf("vm: unexpected end reading function %q code length", fc.Name)
		}
		codeCount := binary.BigEndian.Uint32(data[pos:])
		pos += 4
		if pos+int(codeCount)*InstrSize > len(data) {
			return nil, fmt.Errorf("vm: unexpected end reading function %q code", fc.Name)
		}
		if codeCount > 0 {
			fc.Code = make([]Instr, codeCount)
		}
		for j := range fc.Code {
			fc.Code[j], _ = DecodeInstr(data[pos:])
			pos += InstrSize
		}

		if pos+4 > len(data) {
			return nil, fmt.Errorf("vm: unexpected end reading function %q source map", fc.Name)
		}
		mapCount := binary.BigEndian.Uint32(data[pos:])
		pos += 4
		if pos+int(mapCount)*10 > len(data) {
			return nil, fmt.Errorf("vm: unexpected end reading function %q source map entries", fc.Name)
		}
		if mapCount > 0 {
			fc.SourceMap = make([]SourceLocation, mapCount)
		}
		for j := range fc.SourceMap {
			fc.SourceMap[j].Instr = binary.BigEndian.Uint32(data[pos:])
			fc.SourceMap[j].Line = binary.BigEndian.Uint32(data[pos+4:])
			fc.SourceMap[j].Column = binary.BigEndian.Uint16(data[pos+8:])
			pos += 10
		}
		p.Funcs[i] = fc
	}
	return p, nil
}

func readString16(data []byte, pos int) (string, int, error) {
	if pos+2 > len(data) {
		return "", pos, fmt.Errorf("unexpected end reading string length")
	}
	n := int(binary.BigEndian.Uint16(data[pos:]))
	pos += 2
	if pos+n > len(data) {
		return "", pos, fmt.Errorf("unexpected end reading string")
	}
	return string(data[pos : pos+n]), pos + n, nil
}
