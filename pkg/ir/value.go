package ir

import (
	"fmt"

	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
)

// ID uniquely identifies a Value or Block within a Function. IDs are
// handed out in construction order, which makes them a stable,
// deterministic sort key for every worklist in the pipeline.
type ID int32

// Value is a single SSA computation: defined exactly once, by one
// instruction or one block parameter, and never mutated after creation.
type Value struct {
	// ID is unique within the containing Function.
	ID ID

	// Op is the operation this value computes.
	Op Op

	// Type is the result type. Nil for void ops (Store, SStore, Zero).
	Type types.Type

	// Args are the operand values.
	Args []*Value

	// Block is the basic block containing this value.
	Block *Block

	// AuxInt holds small auxiliary data: constant value, parameter index,
	// field index, byte size.
	AuxInt int64

	// Aux holds larger auxiliary data: local name (Alloc), callee name
	// (Call), constant or selector word (ConstWord, ExtCall).
	Aux interface{}

	// Uses counts references from other values and block terminators.
	Uses int32

	// Pos is the originating source position.
	Pos source.Pos
}

// String returns the short name of the value, e.g. "v12".
func (v *Value) String() string {
	if v == nil {
		return "v?"
	}
	return fmt.Sprintf("v%d", v.ID)
}

// LongString returns the value with op, type, aux, and operands.
func (v *Value) LongString() string {
	s := fmt.Sprintf("v%d = %s", v.ID, v.Op)
	if v.Type != nil {
		s += fmt.Sprintf(" <%s>", v.Type)
	}
	switch v.Op {
	case OpConst, OpConstBool, OpParam, OpFieldPtr, OpZero:
		s += fmt.Sprintf(" [%d]", v.AuxInt)
	}
	if v.Aux != nil {
		s += fmt.Sprintf(" {%v}", v.Aux)
	}
	for _, a := range v.Args {
		s += " " + a.String()
	}
	return s
}

// AddArg appends an operand and bumps its use count.
func (v *Value) AddArg(arg *Value) {
	v.Args = append(v.Args, arg)
	arg.Uses++
}

// SetArgs replaces the operand list, adjusting use counts.
func (v *Value) SetArgs(args []*Value) {
	for _, old := range v.Args {
		old.Uses--
	}
	v.Args = args
	for _, a := range args {
		a.Uses++
	}
}

// ReplaceArg swaps the operand at index i, adjusting use counts.
func (v *Value) ReplaceArg(i int, repl *Value) {
	v.Args[i].Uses--
	v.Args[i] = repl
	repl.Uses++
}

// IsPure reports whether this value's op has no side effects.
func (v *Value) IsPure() bool { return v.Op.IsPure() }

// ConstWord returns the value of a constant as a full word. Valid only
// for constant ops.
func (v *Value) ConstWord() types.Word {
	switch v.Op {
	case OpConst, OpConstBool:
		return types.WordFromUint64(uint64(v.AuxInt))
	case OpConstWord:
		return v.Aux.(types.Word)
	}
	panic(fmt.Sprintf("ConstWord on non-constant %s", v.LongString()))
}
