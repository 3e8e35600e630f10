package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders the whole program as text, one function per
// section. The output is stable and intended for debugging and golden
// tests.
func Disassemble(p *Program) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; contract %s (format v%d)\n", p.Contract, p.Version)
	fmt.Fprintf(&sb, "; pool: %d words\n", len(p.Pool))
	for _, fc := range p.Funcs {
		sb.WriteByte('\n')
		DisassembleFunc(&sb, p, fc)
	}
	return sb.String()
}

// DisassembleFunc renders one function.
func DisassembleFunc(sb *strings.Builder, p *Program, fc *FuncCode) {
	tags := ""
	if fc.Exported() {
		tags += " exported"
	}
	if fc.HasResult() {
		tags += " result"
	}
	fmt.Fprintf(sb, "func %s: params=%d frame=%d%s\n", fc.Name, fc.ParamCount, fc.FrameWords, tags)
	for i, in := range fc.Code {
		fmt.Fprintf(sb, "%4d  %s\n", i, formatInstr(p, in))
	}
}

func formatInstr(p *Program, in Instr) string {
	switch in.Op {
	case OpNop, OpAbort:
		return in.Op.String()
	case OpMov, OpNeg, OpNot, OpEqz:
		return fmt.Sprintf("%-6s r%d, r%d", in.Op, in.A, in.B)
	case OpLoadK:
		k := "?"
		if int(in.Imm) < len(p.Pool) {
			k = p.Pool[in.Imm].Hex()
		}
		return fmt.Sprintf("%-6s r%d, pool[%d] ; %s", in.Op, in.A, in.Imm, k)
	case OpLoadI:
		return fmt.Sprintf("%-6s r%d, %d", in.Op, in.A, in.Imm)
	case OpAddI:
		return fmt.Sprintf("%-6s r%d, r%d, %d", in.Op, in.A, in.B, in.Imm)
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor, OpShl, OpShr,
		OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpHash2:
		return fmt.Sprintf("%-6s r%d, r%d, r%d", in.Op, in.A, in.B, in.C)
	case OpLds:
		return fmt.Sprintf("%-6s r%d, frame[%d]", in.Op, in.A, in.Imm)
	case OpSts:
		return fmt.Sprintf("%-6s frame[%d], r%d", in.Op, in.Imm, in.A)
	case OpLdw:
		return fmt.Sprintf("%-6s r%d, frame[r%d]", in.Op, in.A, in.B)
	case OpStw:
		return fmt.Sprintf("%-6s frame[r%d], r%d", in.Op, in.B, in.A)
	case OpSload:
		return fmt.Sprintf("%-6s r%d, storage[r%d]", in.Op, in.A, in.B)
	case OpSstore:
		return fmt.Sprintf("%-6s storage[r%d], r%d", in.Op, in.A, in.B)
	case OpJmp:
		return fmt.Sprintf("%-6s %d", in.Op, in.Imm)
	case OpJz:
		return fmt.Sprintf("%-6s r%d, %d", in.Op, in.B, in.Imm)
	case OpCall:
		name := "?"
		if int(in.Imm) < len(p.Funcs) {
			name = p.Funcs[in.Imm].Name
		}
		return fmt.Sprintf("%-6s %s, argc=%d", in.Op, name, in.A)
	case OpEcall:
		return fmt.Sprintf("%-6s r%d, selector=pool[%d], argc=%d", in.Op, in.B, in.Imm, in.A)
	case OpRet:
		if in.A != 0 {
			return "RET    r1"
		}
		return "RET"
	}
	return fmt.Sprintf("%-6s a=%d b=%d c=%d imm=%d", in.Op, in.A, in.B, in.C, in.Imm)
}
