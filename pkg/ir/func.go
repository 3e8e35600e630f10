package ir

import (
	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
)

// Effect is a function's declared purity/effect tag. The front end
// enforces it; the middle end uses it for reordering safety.
type Effect int

const (
	EffectPure   Effect = iota // touches no contract state
	EffectReads                // reads contract state
	EffectWrites               // reads and writes contract state
)

var effectNames = [...]string{
	EffectPure:   "pure",
	EffectReads:  "reads",
	EffectWrites: "writes",
}

func (e Effect) String() string {
	if int(e) < len(effectNames) {
		return effectNames[e]
	}
	return "effect?"
}

// Func is one SSA function: an entry block plus the rest of the CFG.
// Entry-block parameters are the function's arguments.
type Func struct {
	// Name is the declared function name, unique within the module.
	Name string

	// Effect is the declared purity tag.
	Effect Effect

	// Exported functions are contract entry points; the backend flags
	// them in the program header so the VM can dispatch calldata to them.
	Exported bool

	// ParamTypes and ReturnType describe the signature. ReturnType is
	// nil for void functions.
	ParamTypes []types.Type
	ReturnType types.Type

	// Blocks lists all blocks; Blocks[0] is always Entry.
	Blocks []*Block

	// Entry is the designated entry block.
	Entry *Block

	// Module is the owning module.
	Module *Module

	// Pos is the declaration's source position.
	Pos source.Pos

	nextValueID ID
	nextBlockID ID
}

// NewBlock appends a fresh block of the given kind.
func (f *Func) NewBlock(kind BlockKind) *Block {
	b := &Block{
		ID:   f.nextBlockID,
		Kind: kind,
		Func: f,
	}
	f.nextBlockID++
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewValue creates a value at the end of block b.
func (f *Func) NewValue(b *Block, op Op, typ types.Type, args ...*Value) *Value {
	v := f.newValue(b, op, typ, args...)
	b.Values = append(b.Values, v)
	return v
}

// NewValueFront creates a value at the front of block b. Used by passes
// that introduce definitions which must precede the existing body.
func (f *Func) NewValueFront(b *Block, op Op, typ types.Type, args ...*Value) *Value {
	v := f.newValue(b, op, typ, args...)
	b.Values = append([]*Value{v}, b.Values...)
	return v
}

// NewParam appends a block parameter of the given type to b.
func (f *Func) NewParam(b *Block, typ types.Type) *Value {
	v := f.newValue(b, OpParam, typ)
	v.AuxInt = int64(len(b.Params))
	b.Params = append(b.Params, v)
	return v
}

func (f *Func) newValue(b *Block, op Op, typ types.Type, args ...*Value) *Value {
	v := &Value{
		ID:    f.nextValueID,
		Op:    op,
		Type:  typ,
		Block: b,
	}
	f.nextValueID++
	for _, a := range args {
		v.AddArg(a)
	}
	return v
}

// NumValues returns the total number of values, block parameters included.
func (f *Func) NumValues() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Params) + len(b.Values)
	}
	return n
}

// ValueID returns the high-water mark of allocated value IDs. Slices
// indexed by value ID should be sized by this.
func (f *Func) ValueID() ID { return f.nextValueID }

// BlockID returns the high-water mark of allocated block IDs.
func (f *Func) BlockID() ID { return f.nextBlockID }

// ReplaceUses rewrites every use of old to new across the function:
// operand lists, terminator controls, and edge arguments.
func (f *Func) ReplaceUses(old, new *Value) {
	if old == new {
		return
	}
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			for i, a := range v.Args {
				if a == old {
					v.ReplaceArg(i, new)
				}
			}
		}
		for i, c := range b.Controls {
			if c == old {
				old.Uses--
				new.Uses++
				b.Controls[i] = new
			}
		}
		for ei := range b.Succs {
			for ai, a := range b.Succs[ei].Args {
				if a == old {
					old.Uses--
					new.Uses++
					b.Succs[ei].Args[ai] = new
				}
			}
		}
	}
}

// RemoveValue deletes v from its block, releasing operand uses. The
// caller must ensure v itself is unused.
func (f *Func) RemoveValue(v *Value) {
	b := v.Block
	for i, x := range b.Values {
		if x == v {
			for _, a := range v.Args {
				a.Uses--
			}
			b.Values = append(b.Values[:i], b.Values[i+1:]...)
			return
		}
	}
}
