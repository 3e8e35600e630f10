package passes

import (
	"math/big"

	"github.com/covenant-lang/covenant/pkg/analysis"
	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/types"
)

func init() {
	register(&Pass{
		Name:        "constfold",
		Invalidates: []string{analysis.DefUse, analysis.Liveness},
		Run:         constfold,
	})
}

// constfold evaluates pure operations over constant operands and applies
// a small set of algebraic identities. Arithmetic wraps at the operand
// type's width; division and modulo by zero fold to zero, matching the
// VM. Folded values keep their IDs, so the rewrite is deterministic.
func constfold(c *analysis.Cache) (bool, error) {
	f := c.Func()
	changed := false
	for _, b := range ir.ReversePostOrder(f) {
		for _, v := range b.Values {
			if foldValue(f, v) {
				changed = true
			}
		}
	}
	return changed, nil
}

func foldValue(f *ir.Func, v *ir.Value) bool {
	switch v.Op {
	case ir.OpNot:
		if v.Args[0].Op == ir.OpConstBool {
			setConstBool(v, v.Args[0].AuxInt == 0)
			return true
		}
		return false
	case ir.OpNeg:
		if x, ok := constOperand(v.Args[0]); ok {
			return setConstInt(v, new(big.Int).Neg(x))
		}
		return false
	case ir.OpBitNot:
		if x, ok := constOperand(v.Args[0]); ok {
			return setConstInt(v, new(big.Int).Not(x))
		}
		return false
	}

	if len(v.Args) != 2 {
		return false
	}
	x, xok := constOperand(v.Args[0])
	y, yok := constOperand(v.Args[1])

	if xok && yok {
		if r, ok := foldBinary(v.Op, x, y); ok {
			return setConstInt(v, r)
		}
		if r, ok := foldCompare(v.Op, x, y); ok {
			setConstBool(v, r)
			return true
		}
		return false
	}

	// Algebraic identities with one constant operand.
	return foldIdentity(f, v, x, xok, y, yok)
}

// constOperand extracts the integer value of a constant operand.
func constOperand(v *ir.Value) (*big.Int, bool) {
	switch v.Op {
	case ir.OpConst, ir.OpConstBool:
		return new(big.Int).SetUint64(uint64(v.AuxInt)), true
	case ir.OpConstWord:
		w, ok := v.Aux.(types.Word)
		if !ok {
			return nil, false
		}
		return new(big.Int).SetBytes(w[:]), true
	}
	return nil, false
}

func foldBinary(op ir.Op, x, y *big.Int) (*big.Int, bool) {
	r := new(big.Int)
	switch op {
	case ir.OpAdd:
		r.Add(x, y)
	case ir.OpSub:
		r.Sub(x, y)
	case ir.OpMul:
		r.Mul(x, y)
	case ir.OpDiv:
		if y.Sign() == 0 {
			return r, true // VM-defined: x / 0 == 0
		}
		r.Div(x, y)
	case ir.OpMod:
		if y.Sign() == 0 {
			return r, true
		}
		r.Mod(x, y)
	case ir.OpAnd:
		r.And(x, y)
	case ir.OpOr:
		r.Or(x, y)
	case ir.OpXor:
		r.Xor(x, y)
	case ir.OpShl:
		if !y.IsUint64() || y.Uint64() > 256 {
			return r, true // shifted out entirely
		}
		r.Lsh(x, uint(y.Uint64()))
	case ir.OpShr:
		if !y.IsUint64() || y.Uint64() > 256 {
			return r, true
		}
		r.Rsh(x, uint(y.Uint64()))
	default:
		return nil, false
	}
	return r, true
}

func foldCompare(op ir.Op, x, y *big.Int) (bool, bool) {
	cmp := x.Cmp(y)
	switch op {
	case ir.OpEq:
		return cmp == 0, true
	case ir.OpNeq:
		return cmp != 0, true
	case ir.OpLt:
		return cmp < 0, true
	case ir.OpLeq:
		return cmp <= 0, true
	case ir.OpGt:
		return cmp > 0, true
	case ir.OpGeq:
		return cmp >= 0, true
	}
	return false, false
}

// foldIdentity rewrites x+0, x*1, x*0 and friends. Replacements reuse the
// surviving operand directly rather than going through OpCopy.
func foldIdentity(f *ir.Func, v *ir.Value, x *big.Int, xok bool, y *big.Int, yok bool) bool {
	replaceWith := func(w *ir.Value) bool {
		// A value already stripped of uses by an earlier identity fold is
		// dce's to collect; reporting a change for it again would keep the
		// fixed-point group spinning when dce is disabled.
		if v.Uses == 0 {
			return false
		}
		f.ReplaceUses(v, w)
		return true
	}
	zeroResult := func() bool { return setConstInt(v, new(big.Int)) }

	if yok {
		zero := y.Sign() == 0
		one := y.Cmp(bigOne) == 0
		switch v.Op {
		case ir.OpAdd, ir.OpSub, ir.OpOr, ir.OpXor, ir.OpShl, ir.OpShr:
			if zero {
				return replaceWith(v.Args[0])
			}
		case ir.OpMul:
			if zero {
				return zeroResult()
			}
			if one {
				return replaceWith(v.Args[0])
			}
		case ir.OpDiv:
			if zero {
				return zeroResult() // VM-defined
			}
			if one {
				return replaceWith(v.Args[0])
			}
		case ir.OpMod:
			if zero || one {
				return zeroResult()
			}
		case ir.OpAnd:
			if zero {
				return zeroResult()
			}
		}
	}
	if xok {
		zero := x.Sign() == 0
		switch v.Op {
		case ir.OpAdd, ir.OpOr, ir.OpXor:
			if zero {
				return replaceWith(v.Args[1])
			}
		case ir.OpMul, ir.OpAnd, ir.OpDiv, ir.OpMod, ir.OpShl, ir.OpShr:
			if zero {
				return zeroResult()
			}
		}
	}
	return false
}

var bigOne = big.NewInt(1)

// setConstInt rewrites v in place into a constant of its own type,
// wrapping the result at the type's width. Values too wide for AuxInt
// become OpConstWord.
func setConstInt(v *ir.Value, r *big.Int) bool {
	bits := uint(v.Type.Size() * 8)
	if bits == 0 || bits > 256 {
		return false
	}
	r = new(big.Int).And(r, mask(bits))

	clearArgs(v)
	if bits <= 64 {
		v.Op = ir.OpConst
		v.AuxInt = int64(r.Uint64())
		v.Aux = nil
		return true
	}
	var w types.Word
	r.FillBytes(w[:])
	v.Op = ir.OpConstWord
	v.AuxInt = 0
	v.Aux = w
	return true
}

func setConstBool(v *ir.Value, b bool) {
	clearArgs(v)
	v.Op = ir.OpConstBool
	v.Aux = nil
	v.AuxInt = 0
	if b {
		v.AuxInt = 1
	}
}

func clearArgs(v *ir.Value) {
	for _, a := range v.Args {
		a.Uses--
	}
	v.Args = nil
}

func mask(bits uint) *big.Int {
	m := new(big.Int).Lsh(bigOne, bits)
	return m.Sub(m, bigOne)
}
