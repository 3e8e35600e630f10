// Package vm defines the instruction set and program container of the
// Covenant virtual machine: a deterministic register machine with
// 256-bit registers, per-frame register files, and word-addressed
// persistent storage.
package vm

import (
	"encoding/binary"
	"fmt"
)

// NumRegs is the number of general registers per call frame. Registers
// are 256-bit words. The calling convention passes arguments in
// r1..r6 and returns the result in r1; r0 is a scratch register.
const NumRegs = 16

// MaxCallArgs is the number of argument registers.
const MaxCallArgs = 6

// InstrSize is the fixed encoded size of one instruction in bytes:
// opcode, three register operands, and a 32-bit immediate.
const InstrSize = 8

// Opcode identifies a VM instruction. Opcodes are grouped into ranges
// by category.
type Opcode byte

const (
	// ========================================================================
	// Moves and constants (0x00-0x0F)
	// ========================================================================

	OpNop   Opcode = 0x00 // No operation
	OpMov   Opcode = 0x01 // rA <- rB
	OpLoadK Opcode = 0x02 // rA <- pool[imm]
	OpLoadI Opcode = 0x03 // rA <- imm (zero-extended)

	// ========================================================================
	// Arithmetic (0x10-0x1F), unsigned, wrapping at 256 bits.
	// Division and modulo by zero yield zero.
	// ========================================================================

	OpAdd  Opcode = 0x10 // rA <- rB + rC
	OpSub  Opcode = 0x11 // rA <- rB - rC
	OpMul  Opcode = 0x12 // rA <- rB * rC
	OpDiv  Opcode = 0x13 // rA <- rB / rC
	OpMod  Opcode = 0x14 // rA <- rB % rC
	OpNeg  Opcode = 0x15 // rA <- -rB
	OpAddI Opcode = 0x16 // rA <- rB + imm

	// ========================================================================
	// Bitwise (0x20-0x2F)
	// ========================================================================

	OpAnd Opcode = 0x20 // rA <- rB & rC
	OpOr  Opcode = 0x21 // rA <- rB | rC
	OpXor Opcode = 0x22 // rA <- rB ^ rC
	OpNot Opcode = 0x23 // rA <- ^rB
	OpShl Opcode = 0x24 // rA <- rB << rC
	OpShr Opcode = 0x25 // rA <- rB >> rC

	// ========================================================================
	// Comparison (0x30-0x3F), result is 0 or 1
	// ========================================================================

	OpEq  Opcode = 0x30 // rA <- rB == rC
	OpNe  Opcode = 0x31 // rA <- rB != rC
	OpLt  Opcode = 0x32 // rA <- rB < rC
	OpLe  Opcode = 0x33 // rA <- rB <= rC
	OpGt  Opcode = 0x34 // rA <- rB > rC
	OpGe  Opcode = 0x35 // rA <- rB >= rC
	OpEqz Opcode = 0x36 // rA <- rB == 0 (boolean not)

	// ========================================================================
	// Frame memory (0x40-0x4F). The frame is an array of words; pointer
	// values are word indexes into it.
	// ========================================================================

	OpLds Opcode = 0x40 // rA <- frame[imm]
	OpSts Opcode = 0x41 // frame[imm] <- rA
	OpLdw Opcode = 0x42 // rA <- frame[rB]
	OpStw Opcode = 0x43 // frame[rB] <- rA

	// ========================================================================
	// Persistent storage (0x50-0x5F)
	// ========================================================================

	OpSload  Opcode = 0x50 // rA <- storage[rB]
	OpSstore Opcode = 0x51 // storage[rA] <- rB
	OpHash2  Opcode = 0x52 // rA <- keccak256(rB || rC)

	// ========================================================================
	// Control flow (0x60-0x6F). Jump targets are absolute instruction
	// indexes within the function.
	// ========================================================================

	OpJmp   Opcode = 0x60 // pc <- imm
	OpJz    Opcode = 0x61 // if rB == 0: pc <- imm
	OpCall  Opcode = 0x62 // call funcs[imm]; A = argc; args in r1..rA
	OpEcall Opcode = 0x63 // external call; A = argc, rB = target, imm = selector in pool
	OpRet   Opcode = 0x64 // return; A = 1 if r1 carries a result
	OpAbort Opcode = 0x65 // revert the transaction
)

var opcodeNames = map[Opcode]string{
	OpNop:    "NOP",
	OpMov:    "MOV",
	OpLoadK:  "LOADK",
	OpLoadI:  "LOADI",
	OpAdd:    "ADD",
	OpSub:    "SUB",
	OpMul:    "MUL",
	OpDiv:    "DIV",
	OpMod:    "MOD",
	OpNeg:    "NEG",
	OpAddI:   "ADDI",
	OpAnd:    "AND",
	OpOr:     "OR",
	OpXor:    "XOR",
	OpNot:    "NOT",
	OpShl:    "SHL",
	OpShr:    "SHR",
	OpEq:     "EQ",
	OpNe:     "NE",
	OpLt:     "LT",
	OpLe:     "LE",
	OpGt:     "GT",
	OpGe:     "GE",
	OpEqz:    "EQZ",
	OpLds:    "LDS",
	OpSts:    "STS",
	OpLdw:    "LDW",
	OpStw:    "STW",
	OpSload:  "SLOAD",
	OpSstore: "SSTORE",
	OpHash2:  "HASH2",
	OpJmp:    "JMP",
	OpJz:     "JZ",
	OpCall:   "CALL",
	OpEcall:  "ECALL",
	OpRet:    "RET",
	OpAbort:  "ABORT",
}

// String returns a human-readable name for the opcode.
func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%02X)", byte(op))
}

// Instr is one decoded instruction.
type Instr struct {
	Op      Opcode
	A, B, C uint8
	Imm     uint32
}

// Encode appends the instruction's fixed 8-byte encoding to buf.
func (in Instr) Encode(buf []byte) []byte {
	buf = append(buf, byte(in.Op), in.A, in.B, in.C)
	return binary.BigEndian.AppendUint32(buf, in.Imm)
}

// DecodeInstr decodes one instruction from the front of data.
func DecodeInstr(data []byte) (Instr, error) {
	if len(data) < InstrSize {
		return Instr{}, fmt.Errorf("vm: truncated instruction: %d bytes", len(data))
	}
	return Instr{
		Op:  Opcode(data[0]),
		A:   data[1],
		B:   data[2],
		C:   data[3],
		Imm: binary.BigEndian.Uint32(data[4:8]),
	}, nil
}
