// Package ir implements the SSA intermediate representation of the
// Covenant middle end: modules, functions, basic blocks with typed block
// parameters, and uniquely-defined values.
package ir

// Op identifies the operation a Value computes.
type Op int

const (
	OpInvalid Op = iota

	// Constants
	OpConst     // integer constant; AuxInt = value, Type gives width
	OpConstBool // boolean constant; AuxInt = 0 or 1
	OpConstWord // full-width 256-bit constant; Aux = Word

	// Block parameter. AuxInt = parameter index within the block.
	// Entry-block parameters are the function arguments.
	OpParam

	// Arithmetic. All unsigned, wrapping at the type width.
	// Division and modulo by zero yield zero (VM-defined), so both are
	// pure and safe to fold, eliminate, and deduplicate.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	// Bitwise
	OpAnd
	OpOr
	OpXor
	OpBitNot
	OpShl
	OpShr

	// Comparison (unsigned). Result is bool.
	OpEq
	OpNeq
	OpLt
	OpLeq
	OpGt
	OpGeq

	// Boolean
	OpNot

	// Memory. Aggregates are built memory-backed; mem2reg promotes the
	// non-escaping ones to scalar values afterwards.
	OpAlloc    // stack slot; Type = *types.Pointer; Aux = local name
	OpLoad     // Args[0] = address
	OpStore    // Args[0] = address, Args[1] = value; void
	OpZero     // zero-fill; Args[0] = address, AuxInt = byte size; void
	OpFieldPtr // Args[0] = aggregate address; AuxInt = byte offset
	OpIndexPtr // Args[0] = array address, Args[1] = index

	// Persistent storage. Keys are full 256-bit words produced either by
	// the layout assigner (constant) or by OpSlotHash for collection
	// elements.
	OpSLoad    // Args[0] = key; reads contract state
	OpSStore   // Args[0] = key, Args[1] = value; writes contract state; void
	OpSlotHash // Args[0] = base key, Args[1] = element key; pure derivation

	// Calls. OpCall targets a function in the same module (Aux = callee
	// name). OpExtCall is a cross-contract call (Args[0] = address,
	// Args[1:] = arguments; Aux = selector name); it may re-enter this
	// contract, so it invalidates every cached storage read.
	OpCall
	OpExtCall

	// Value copy (identity). Introduced by passes, cleaned up by copy
	// propagation in CFG simplification.
	OpCopy

	opCount // sentinel
)

// OpInfo holds static metadata about an operation.
type OpInfo struct {
	Name string

	// Pure ops have no side effect and no dependence on mutable state:
	// they may be folded, deduplicated, and removed when unused.
	Pure bool

	// Void ops produce no result value.
	Void bool

	// Commutative ops may have their operands reordered during
	// canonicalization.
	Commutative bool

	// StorageRead / StorageWrite mark persistent-state access. Calls are
	// marked as both: any callee may read or write state, and an external
	// call may re-enter.
	StorageRead  bool
	StorageWrite bool
}

var opInfoTable = [opCount]OpInfo{
	OpInvalid: {Name: "Invalid"},

	OpConst:     {Name: "Const", Pure: true},
	OpConstBool: {Name: "ConstBool", Pure: true},
	OpConstWord: {Name: "ConstWord", Pure: true},

	OpParam: {Name: "Param", Pure: true},

	OpAdd: {Name: "Add", Pure: true, Commutative: true},
	OpSub: {Name: "Sub", Pure: true},
	OpMul: {Name: "Mul", Pure: true, Commutative: true},
	OpDiv: {Name: "Div", Pure: true},
	OpMod: {Name: "Mod", Pure: true},
	OpNeg: {Name: "Neg", Pure: true},

	OpAnd:    {Name: "And", Pure: true, Commutative: true},
	OpOr:     {Name: "Or", Pure: true, Commutative: true},
	OpXor:    {Name: "Xor", Pure: true, Commutative: true},
	OpBitNot: {Name: "BitNot", Pure: true},
	OpShl:    {Name: "Shl", Pure: true},
	OpShr:    {Name: "Shr", Pure: true},

	OpEq:  {Name: "Eq", Pure: true, Commutative: true},
	OpNeq: {Name: "Neq", Pure: true, Commutative: true},
	OpLt:  {Name: "Lt", Pure: true},
	OpLeq: {Name: "Leq", Pure: true},
	OpGt:  {Name: "Gt", Pure: true},
	OpGeq: {Name: "Geq", Pure: true},

	OpNot: {Name: "Not", Pure: true},

	OpAlloc:    {Name: "Alloc"},
	OpLoad:     {Name: "Load"},
	OpStore:    {Name: "Store", Void: true},
	OpZero:     {Name: "Zero", Void: true},
	OpFieldPtr: {Name: "FieldPtr", Pure: true},
	OpIndexPtr: {Name: "IndexPtr", Pure: true},

	OpSLoad:    {Name: "SLoad", StorageRead: true},
	OpSStore:   {Name: "SStore", Void: true, StorageWrite: true},
	OpSlotHash: {Name: "SlotHash", Pure: true},

	OpCall:    {Name: "Call", StorageRead: true, StorageWrite: true},
	OpExtCall: {Name: "ExtCall", StorageRead: true, StorageWrite: true},

	OpCopy: {Name: "Copy", Pure: true},
}

// String returns the op's name.
func (o Op) String() string {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o].Name
	}
	return "Op?"
}

// Info returns the op's static metadata.
func (o Op) Info() OpInfo {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o]
	}
	return OpInfo{Name: "Op?"}
}

// IsPure reports whether the op is free of side effects.
func (o Op) IsPure() bool { return o.Info().Pure }

// IsVoid reports whether the op produces no value.
func (o Op) IsVoid() bool { return o.Info().Void }

// IsConst reports whether the op is a compile-time constant.
func (o Op) IsConst() bool {
	return o == OpConst || o == OpConstBool || o == OpConstWord
}

// IsCall reports whether the op transfers control to another function.
func (o Op) IsCall() bool { return o == OpCall || o == OpExtCall }
