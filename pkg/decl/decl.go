// Package decl defines the typed declaration tree the front end hands to
// the middle end: one contract module with persistent state fields and
// fully type-checked, monomorphized function bodies.
//
// Nodes are flat tagged structs rather than interface hierarchies so the
// tree survives CBOR serialization unchanged; the build orchestrator ships
// trees across process boundaries in canonical CBOR.
package decl

import (
	"github.com/covenant-lang/covenant/pkg/source"
)

// Contract is one compilation unit.
type Contract struct {
	Name string `cbor:"1,keyasint"`

	// Types lists named struct/enum definitions referenced by TypeExpr
	// nodes of kind TypeNamed.
	Types []TypeDef `cbor:"2,keyasint"`

	// State lists the declared persistent fields in declaration order.
	State []StateField `cbor:"3,keyasint"`

	// Funcs lists function declarations in declaration order.
	Funcs []*FuncDecl `cbor:"4,keyasint"`
}

// TypeDef is a named type definition.
type TypeDef struct {
	Name string   `cbor:"1,keyasint"`
	Type TypeExpr `cbor:"2,keyasint"`
}

// StateField is one declared persistent-state field. Namespace is the
// chain of enclosing state groups; Override, when non-empty, pins the
// field to an exact storage key (64 hex digits).
type StateField struct {
	Namespace []string   `cbor:"1,keyasint"`
	Name      string     `cbor:"2,keyasint"`
	Type      TypeExpr   `cbor:"3,keyasint"`
	Override  string     `cbor:"4,keyasint,omitempty"`
	Pos       source.Pos `cbor:"5,keyasint"`
}

// Effect mirrors ir.Effect at the declaration level.
type Effect int

const (
	EffectPure Effect = iota
	EffectReads
	EffectWrites
)

// FuncDecl is one fully-checked function.
type FuncDecl struct {
	Name     string     `cbor:"1,keyasint"`
	Exported bool       `cbor:"2,keyasint"`
	Effect   Effect     `cbor:"3,keyasint"`
	Params   []Param    `cbor:"4,keyasint"`
	Return   *TypeExpr  `cbor:"5,keyasint,omitempty"`
	Body     []*Stmt    `cbor:"6,keyasint"`
	Pos      source.Pos `cbor:"7,keyasint"`
}

// Param is one function parameter.
type Param struct {
	Name string   `cbor:"1,keyasint"`
	Type TypeExpr `cbor:"2,keyasint"`
}

// TypeKind tags a TypeExpr.
type TypeKind int

const (
	TypeInvalid TypeKind = iota
	TypeBool
	TypeU8
	TypeU64
	TypeU128
	TypeU256
	TypeAddress
	TypeStruct
	TypeEnum
	TypeTuple
	TypeArray
	TypeMap
	TypeSeq
	TypeNamed
)

// TypeExpr is a structural type expression. The front end guarantees
// every TypeExpr reaching the middle end is fully resolved; a dangling
// TypeNamed is an internal compiler error at build time.
type TypeExpr struct {
	Kind     TypeKind      `cbor:"1,keyasint"`
	Name     string        `cbor:"2,keyasint,omitempty"` // TypeNamed, TypeStruct, TypeEnum
	Elems    []TypeExpr    `cbor:"3,keyasint,omitempty"` // TypeTuple, TypeArray (1), TypeMap (2), TypeSeq (1)
	Fields   []FieldExpr   `cbor:"4,keyasint,omitempty"` // TypeStruct
	Variants []VariantExpr `cbor:"5,keyasint,omitempty"` // TypeEnum
	Len      int           `cbor:"6,keyasint,omitempty"` // TypeArray
}

// FieldExpr is one struct field in a TypeExpr.
type FieldExpr struct {
	Name string   `cbor:"1,keyasint"`
	Type TypeExpr `cbor:"2,keyasint"`
}

// VariantExpr is one enum variant in a TypeExpr.
type VariantExpr struct {
	Name    string     `cbor:"1,keyasint"`
	Payload []TypeExpr `cbor:"2,keyasint,omitempty"`
}

// StmtKind tags a Stmt.
type StmtKind int

const (
	StmtInvalid StmtKind = iota
	StmtLet              // let Name = Init
	StmtAssign           // Target = Value (Target is a place expression)
	StmtExpr             // bare expression, evaluated for effect
	StmtIf               // if Cond { Then } else { Else }
	StmtWhile            // while Cond { Then }
	StmtReturn           // return Value (Value nil for void)
	StmtAbort            // revert the transaction
	StmtBreak
	StmtContinue
)

// Stmt is one statement node.
type Stmt struct {
	Kind   StmtKind   `cbor:"1,keyasint"`
	Name   string     `cbor:"2,keyasint,omitempty"` // StmtLet
	Target *Expr      `cbor:"3,keyasint,omitempty"` // StmtAssign
	Value  *Expr      `cbor:"4,keyasint,omitempty"` // Let init, Assign value, Expr, Return
	Cond   *Expr      `cbor:"5,keyasint,omitempty"` // StmtIf, StmtWhile
	Then   []*Stmt    `cbor:"6,keyasint,omitempty"`
	Else   []*Stmt    `cbor:"7,keyasint,omitempty"`
	Pos    source.Pos `cbor:"8,keyasint"`
}

// ExprKind tags an Expr.
type ExprKind int

const (
	ExprInvalid ExprKind = iota
	ExprIntLit          // Value holds the literal; wider literals use ExprWordLit
	ExprBoolLit         // Value is 0 or 1
	ExprWordLit         // Word holds a full 256-bit literal (64 hex digits)
	ExprVar             // local variable or parameter reference; Name
	ExprBinary          // X BinOp Y
	ExprUnary           // UnOp X
	ExprField           // X.Name (struct field or tuple element by Index)
	ExprIndex           // X[Y] (fixed array)
	ExprCall            // Name(Args...) same-module call
	ExprExtCall         // external contract call; X = address, Name = selector
	ExprStructLit       // struct literal; Args in field order
	ExprTupleLit        // tuple literal
	ExprArrayLit        // fixed-array literal
	ExprEnumLit         // enum constructor; Name = variant, Args = payload
	ExprMatch           // match X { arms }
	ExprIfElse          // if Cond then X else Y, as an expression
	ExprStateRef        // persistent field reference; Path names the field
	ExprStateIndex      // collection element; X = ExprStateRef/StateIndex, Y = key
)

// BinOp enumerates binary operators. Values are frozen in the wire
// format; append only.
type BinOp int

const (
	BinInvalid BinOp = iota
	BinAdd
	BinSub
	BinMul
	BinDiv
	BinMod
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinEq
	BinNeq
	BinLt
	BinLeq
	BinGt
	BinGeq
	BinLogicalAnd
	BinLogicalOr
)

// UnOp enumerates unary operators.
type UnOp int

const (
	UnInvalid UnOp = iota
	UnNeg
	UnNot
	UnBitNot
)

// MatchArm is one arm of a match expression. Binds names the payload
// bindings introduced for the arm's body.
type MatchArm struct {
	Variant string     `cbor:"1,keyasint"`
	Binds   []string   `cbor:"2,keyasint,omitempty"`
	Body    *Expr      `cbor:"3,keyasint"`
	Pos     source.Pos `cbor:"4,keyasint"`
}

// Expr is one expression node. Type is the front end's resolved type for
// the whole expression and is mandatory on every node.
type Expr struct {
	Kind  ExprKind   `cbor:"1,keyasint"`
	Type  *TypeExpr  `cbor:"2,keyasint"`
	Value uint64     `cbor:"3,keyasint,omitempty"`  // ExprIntLit, ExprBoolLit
	Word  string     `cbor:"4,keyasint,omitempty"`  // ExprWordLit: 64 hex digits
	Name  string     `cbor:"5,keyasint,omitempty"`  // var, field, call, variant
	Index int        `cbor:"6,keyasint,omitempty"`  // tuple element, field index
	BinOp BinOp      `cbor:"7,keyasint,omitempty"`  // ExprBinary
	UnOp  UnOp       `cbor:"8,keyasint,omitempty"`  // ExprUnary
	X     *Expr      `cbor:"9,keyasint,omitempty"`  // operands
	Y     *Expr      `cbor:"10,keyasint,omitempty"` //
	Cond  *Expr      `cbor:"11,keyasint,omitempty"` // ExprIfElse
	Args  []*Expr    `cbor:"12,keyasint,omitempty"` // calls, literals
	Arms  []MatchArm `cbor:"13,keyasint,omitempty"` // ExprMatch
	Path  []string   `cbor:"14,keyasint,omitempty"` // ExprStateRef: namespace chain + name
	Pos   source.Pos `cbor:"15,keyasint"`
}
