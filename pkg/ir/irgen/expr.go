package irgen

import (
	"encoding/hex"
	"strings"

	"github.com/covenant-lang/covenant/pkg/decl"
	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
)

// placeKind distinguishes assignable locations.
type placeKind int

const (
	placeMem  placeKind = iota // a stack address
	placeSlot                  // a storage key
)

// place is an assignable location: a memory address or a storage key.
type place struct {
	kind placeKind
	addr *ir.Value // placeMem
	key  *ir.Value // placeSlot: 256-bit key value
	typ  types.Type
}

var binOpTable = map[decl.BinOp]ir.Op{
	decl.BinAdd: ir.OpAdd,
	decl.BinSub: ir.OpSub,
	decl.BinMul: ir.OpMul,
	decl.BinDiv: ir.OpDiv,
	decl.BinMod: ir.OpMod,
	decl.BinAnd: ir.OpAnd,
	decl.BinOr:  ir.OpOr,
	decl.BinXor: ir.OpXor,
	decl.BinShl: ir.OpShl,
	decl.BinShr: ir.OpShr,
	decl.BinEq:  ir.OpEq,
	decl.BinNeq: ir.OpNeq,
	decl.BinLt:  ir.OpLt,
	decl.BinLeq: ir.OpLeq,
	decl.BinGt:  ir.OpGt,
	decl.BinGeq: ir.OpGeq,
}

// expr lowers e to a scalar SSA value. Aggregate-typed expressions go
// through exprAddr/exprInto instead.
func (fb *funcBuilder) expr(e *decl.Expr) (*ir.Value, error) {
	t, err := fb.exprType(e)
	if err != nil {
		return nil, err
	}

	switch e.Kind {
	case decl.ExprIntLit:
		v := fb.emit(ir.OpConst, t, e.Pos)
		v.AuxInt = int64(e.Value)
		return v, nil

	case decl.ExprBoolLit:
		v := fb.emit(ir.OpConstBool, t, e.Pos)
		v.AuxInt = int64(e.Value)
		return v, nil

	case decl.ExprWordLit:
		w, err := parseWordLit(e.Word)
		if err != nil {
			return nil, ir.ICE(fb.f.Name, "irgen", "bad word literal at %s: %v", e.Pos, err)
		}
		v := fb.emit(ir.OpConstWord, t, e.Pos)
		v.Aux = w
		return v, nil

	case decl.ExprVar:
		slot, ok := fb.lookup(e.Name)
		if !ok {
			return nil, ir.ICE(fb.f.Name, "irgen", "unresolved variable %q at %s", e.Name, e.Pos)
		}
		return fb.emit(ir.OpLoad, t, e.Pos, slot), nil

	case decl.ExprBinary:
		return fb.exprBinary(e, t)

	case decl.ExprUnary:
		x, err := fb.expr(e.X)
		if err != nil {
			return nil, err
		}
		var op ir.Op
		switch e.UnOp {
		case decl.UnNeg:
			op = ir.OpNeg
		case decl.UnNot:
			op = ir.OpNot
		case decl.UnBitNot:
			op = ir.OpBitNot
		default:
			return nil, ir.ICE(fb.f.Name, "irgen", "invalid unary op %d at %s", e.UnOp, e.Pos)
		}
		return fb.emit(op, t, e.Pos, x), nil

	case decl.ExprField, decl.ExprIndex, decl.ExprStateRef, decl.ExprStateIndex:
		pl, err := fb.place(e)
		if err != nil {
			return nil, err
		}
		return fb.loadPlace(pl, t, e.Pos)

	case decl.ExprCall:
		args := make([]*ir.Value, 0, len(e.Args))
		for _, a := range e.Args {
			av, err := fb.expr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, av)
		}
		sig, ok := fb.b.sigs[e.Name]
		if !ok {
			return nil, ir.ICE(fb.f.Name, "irgen", "call to unknown function %q at %s", e.Name, e.Pos)
		}
		v := fb.emit(ir.OpCall, sig.ret, e.Pos, args...)
		v.Aux = e.Name
		return v, nil

	case decl.ExprExtCall:
		target, err := fb.expr(e.X)
		if err != nil {
			return nil, err
		}
		args := []*ir.Value{target}
		for _, a := range e.Args {
			av, err := fb.expr(a)
			if err != nil {
				return nil, err
			}
			args = append(args, av)
		}
		v := fb.emit(ir.OpExtCall, t, e.Pos, args...)
		v.Aux = e.Name // selector
		return v, nil

	case decl.ExprIfElse:
		return fb.exprIfElse(e, t)

	case decl.ExprMatch:
		return fb.exprMatch(e, t)

	case decl.ExprStructLit, decl.ExprTupleLit, decl.ExprArrayLit, decl.ExprEnumLit:
		// A scalar context never holds an aggregate literal; the front
		// end routes these through let/assign, which use exprInto.
		addr, err := fb.exprAddr(e)
		if err != nil {
			return nil, err
		}
		if types.IsAggregate(t) {
			return nil, ir.ICE(fb.f.Name, "irgen", "aggregate literal in scalar context at %s", e.Pos)
		}
		return fb.emit(ir.OpLoad, t, e.Pos, addr), nil
	}
	return nil, ir.ICE(fb.f.Name, "irgen", "invalid expression kind %d at %s", e.Kind, e.Pos)
}

// exprBinary lowers a binary expression. Logical && and || short-circuit
// through explicit control flow with a merge-block parameter.
func (fb *funcBuilder) exprBinary(e *decl.Expr, t types.Type) (*ir.Value, error) {
	if e.BinOp == decl.BinLogicalAnd || e.BinOp == decl.BinLogicalOr {
		x, err := fb.expr(e.X)
		if err != nil {
			return nil, err
		}
		rhs := fb.f.NewBlock(ir.BlockPlain)
		merge := fb.f.NewBlock(ir.BlockPlain)
		result := fb.f.NewParam(merge, t)
		result.Pos = e.Pos

		fb.cur.Kind = ir.BlockIf
		fb.cur.SetControl(x)
		if e.BinOp == decl.BinLogicalAnd {
			fb.cur.AddEdgeTo(rhs)      // true: evaluate rhs
			fb.cur.AddEdgeTo(merge, x) // false: result is x (false)
		} else {
			fb.cur.AddEdgeTo(merge, x) // true: result is x (true)
			fb.cur.AddEdgeTo(rhs)      // false: evaluate rhs
		}

		fb.cur = rhs
		y, err := fb.expr(e.Y)
		if err != nil {
			return nil, err
		}
		fb.cur.Kind = ir.BlockPlain
		fb.cur.AddEdgeTo(merge, y)

		fb.cur = merge
		return result, nil
	}

	op, ok := binOpTable[e.BinOp]
	if !ok {
		return nil, ir.ICE(fb.f.Name, "irgen", "invalid binary op %d at %s", e.BinOp, e.Pos)
	}
	x, err := fb.expr(e.X)
	if err != nil {
		return nil, err
	}
	y, err := fb.expr(e.Y)
	if err != nil {
		return nil, err
	}
	return fb.emit(op, t, e.Pos, x, y), nil
}

// exprIfElse lowers a conditional expression; both arms feed one merge
// block parameter.
func (fb *funcBuilder) exprIfElse(e *decl.Expr, t types.Type) (*ir.Value, error) {
	cond, err := fb.expr(e.Cond)
	if err != nil {
		return nil, err
	}
	thenB := fb.f.NewBlock(ir.BlockPlain)
	elseB := fb.f.NewBlock(ir.BlockPlain)
	merge := fb.f.NewBlock(ir.BlockPlain)
	result := fb.f.NewParam(merge, t)
	result.Pos = e.Pos

	fb.cur.Kind = ir.BlockIf
	fb.cur.SetControl(cond)
	fb.cur.AddEdgeTo(thenB)
	fb.cur.AddEdgeTo(elseB)

	fb.cur = thenB
	x, err := fb.expr(e.X)
	if err != nil {
		return nil, err
	}
	fb.cur.Kind = ir.BlockPlain
	fb.cur.AddEdgeTo(merge, x)

	fb.cur = elseB
	y, err := fb.expr(e.Y)
	if err != nil {
		return nil, err
	}
	fb.cur.Kind = ir.BlockPlain
	fb.cur.AddEdgeTo(merge, y)

	fb.cur = merge
	return result, nil
}

// exprMatch lowers a match over an enum scrutinee to a chain of tag
// tests. The final arm is taken without a test: the front end proved the
// match exhaustive. Arm results meet at one merge-block parameter.
func (fb *funcBuilder) exprMatch(e *decl.Expr, t types.Type) (*ir.Value, error) {
	st, err := fb.exprType(e.X)
	if err != nil {
		return nil, err
	}
	en, ok := st.(*types.Enum)
	if !ok {
		return nil, ir.ICE(fb.f.Name, "irgen", "match scrutinee at %s has non-enum type %s", e.Pos, st)
	}
	scrut, err := fb.exprAddr(e.X)
	if err != nil {
		return nil, err
	}
	tagPtr := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: types.MakeBasic(types.U64)}, e.Pos, scrut)
	tagPtr.AuxInt = 0
	tag := fb.emit(ir.OpLoad, types.MakeBasic(types.U64), e.Pos, tagPtr)

	merge := fb.f.NewBlock(ir.BlockPlain)
	result := fb.f.NewParam(merge, t)
	result.Pos = e.Pos

	for i, arm := range e.Arms {
		vi := en.VariantIndex(arm.Variant)
		if vi < 0 {
			return nil, ir.ICE(fb.f.Name, "irgen", "match arm names unknown variant %q at %s", arm.Variant, arm.Pos)
		}

		armB := fb.f.NewBlock(ir.BlockPlain)
		last := i == len(e.Arms)-1
		var nextB *ir.Block
		if last {
			fb.cur.Kind = ir.BlockPlain
			fb.cur.AddEdgeTo(armB)
		} else {
			nextB = fb.f.NewBlock(ir.BlockPlain)
			want := fb.emit(ir.OpConst, types.MakeBasic(types.U64), arm.Pos)
			want.AuxInt = int64(vi)
			cond := fb.emit(ir.OpEq, types.MakeBasic(types.Bool), arm.Pos, tag, want)
			fb.cur.Kind = ir.BlockIf
			fb.cur.SetControl(cond)
			fb.cur.AddEdgeTo(armB)
			fb.cur.AddEdgeTo(nextB)
		}

		fb.cur = armB
		fb.pushScope()
		if err := fb.bindPayload(scrut, en, vi, arm); err != nil {
			return nil, err
		}
		av, err := fb.expr(arm.Body)
		if err != nil {
			return nil, err
		}
		fb.popScope()
		fb.cur.Kind = ir.BlockPlain
		fb.cur.AddEdgeTo(merge, av)

		fb.cur = nextB // nil after the last arm
	}

	fb.cur = merge
	return result, nil
}

// bindPayload introduces the arm's payload bindings: each bound name gets
// a stack slot initialized from the corresponding payload position.
func (fb *funcBuilder) bindPayload(scrut *ir.Value, en *types.Enum, vi int, arm decl.MatchArm) error {
	payload := en.Variants[vi].Payload
	if len(arm.Binds) > len(payload) {
		return ir.ICE(fb.f.Name, "irgen", "match arm %q binds %d names, variant has %d payload slots",
			arm.Variant, len(arm.Binds), len(payload))
	}
	off := types.WordSize // payload starts after the tag word
	for j, name := range arm.Binds {
		pt := payload[j]
		ptr := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: pt}, arm.Pos, scrut)
		ptr.AuxInt = int64(off)
		slot := fb.alloc(pt, name, arm.Pos)
		if types.IsAggregate(pt) {
			if err := fb.copyAggregate(slot, ptr, pt, arm.Pos); err != nil {
				return err
			}
		} else {
			v := fb.emit(ir.OpLoad, pt, arm.Pos, ptr)
			fb.emitStore(slot, v, arm.Pos)
		}
		fb.declare(name, slot)
		off += types.Footprint(pt)
	}
	return nil
}

// exprAddr lowers e to the address of memory holding its value,
// materializing literals into fresh stack slots.
func (fb *funcBuilder) exprAddr(e *decl.Expr) (*ir.Value, error) {
	t, err := fb.exprType(e)
	if err != nil {
		return nil, err
	}

	switch e.Kind {
	case decl.ExprVar:
		slot, ok := fb.lookup(e.Name)
		if !ok {
			return nil, ir.ICE(fb.f.Name, "irgen", "unresolved variable %q at %s", e.Name, e.Pos)
		}
		return slot, nil

	case decl.ExprField, decl.ExprIndex:
		pl, err := fb.place(e)
		if err != nil {
			return nil, err
		}
		if pl.kind != placeMem {
			return nil, ir.Errorf(e.Pos, "cannot take the address of a storage location")
		}
		return pl.addr, nil

	case decl.ExprStructLit, decl.ExprTupleLit, decl.ExprArrayLit, decl.ExprEnumLit:
		tmp := fb.alloc(t, "", e.Pos)
		if err := fb.exprInto(tmp, e); err != nil {
			return nil, err
		}
		return tmp, nil
	}

	// Any other expression: evaluate and spill.
	tmp := fb.alloc(t, "", e.Pos)
	if types.IsAggregate(t) {
		if err := fb.exprInto(tmp, e); err != nil {
			return nil, err
		}
		return tmp, nil
	}
	v, err := fb.expr(e)
	if err != nil {
		return nil, err
	}
	fb.emitStore(tmp, v, e.Pos)
	return tmp, nil
}

// exprInto evaluates e into the memory at addr.
func (fb *funcBuilder) exprInto(addr *ir.Value, e *decl.Expr) error {
	t, err := fb.exprType(e)
	if err != nil {
		return err
	}

	switch e.Kind {
	case decl.ExprStructLit:
		st, ok := t.(*types.Struct)
		if !ok {
			return ir.ICE(fb.f.Name, "irgen", "struct literal with type %s at %s", t, e.Pos)
		}
		if len(e.Args) != len(st.Fields) {
			return ir.ICE(fb.f.Name, "irgen", "struct literal has %d values, type has %d fields", len(e.Args), len(st.Fields))
		}
		for i, fe := range e.Args {
			ft := st.Fields[i].Type
			ptr := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: ft}, e.Pos, addr)
			ptr.AuxInt = int64(st.FieldOffset(i))
			if err := fb.storeOrRecurse(ptr, ft, fe); err != nil {
				return err
			}
		}
		return nil

	case decl.ExprTupleLit:
		tu, ok := t.(*types.Tuple)
		if !ok {
			return ir.ICE(fb.f.Name, "irgen", "tuple literal with type %s at %s", t, e.Pos)
		}
		for i, fe := range e.Args {
			et := tu.Elems[i]
			ptr := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: et}, e.Pos, addr)
			ptr.AuxInt = int64(tu.ElemOffset(i))
			if err := fb.storeOrRecurse(ptr, et, fe); err != nil {
				return err
			}
		}
		return nil

	case decl.ExprArrayLit:
		ar, ok := t.(*types.Array)
		if !ok {
			return ir.ICE(fb.f.Name, "irgen", "array literal with type %s at %s", t, e.Pos)
		}
		for i, fe := range e.Args {
			ptr := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: ar.Elem}, e.Pos, addr)
			ptr.AuxInt = int64(i * types.Footprint(ar.Elem))
			if err := fb.storeOrRecurse(ptr, ar.Elem, fe); err != nil {
				return err
			}
		}
		return nil

	case decl.ExprEnumLit:
		en, ok := t.(*types.Enum)
		if !ok {
			return ir.ICE(fb.f.Name, "irgen", "enum literal with type %s at %s", t, e.Pos)
		}
		vi := en.VariantIndex(e.Name)
		if vi < 0 {
			return ir.ICE(fb.f.Name, "irgen", "enum literal names unknown variant %q at %s", e.Name, e.Pos)
		}
		zero := fb.emit(ir.OpZero, nil, e.Pos, addr)
		zero.AuxInt = int64(t.Size())
		tagPtr := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: types.MakeBasic(types.U64)}, e.Pos, addr)
		tagPtr.AuxInt = 0
		tag := fb.emit(ir.OpConst, types.MakeBasic(types.U64), e.Pos)
		tag.AuxInt = int64(vi)
		fb.emitStore(tagPtr, tag, e.Pos)
		off := types.WordSize
		for j, pe := range e.Args {
			pt := en.Variants[vi].Payload[j]
			ptr := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: pt}, e.Pos, addr)
			ptr.AuxInt = int64(off)
			if err := fb.storeOrRecurse(ptr, pt, pe); err != nil {
				return err
			}
			off += types.Footprint(pt)
		}
		return nil
	}

	// Non-literal aggregate source: copy from its address.
	if types.IsAggregate(t) {
		src, err := fb.exprAddr(e)
		if err != nil {
			return err
		}
		return fb.copyAggregate(addr, src, t, e.Pos)
	}
	v, err := fb.expr(e)
	if err != nil {
		return err
	}
	fb.emitStore(addr, v, e.Pos)
	return nil
}

func (fb *funcBuilder) storeOrRecurse(ptr *ir.Value, t types.Type, e *decl.Expr) error {
	if types.IsAggregate(t) {
		return fb.exprInto(ptr, e)
	}
	v, err := fb.expr(e)
	if err != nil {
		return err
	}
	fb.emitStore(ptr, v, e.Pos)
	return nil
}

// copyAggregate copies an aggregate field-by-field. Scalar leaves become
// load/store pairs mem2reg can see through.
func (fb *funcBuilder) copyAggregate(dst, src *ir.Value, t types.Type, pos source.Pos) error {
	switch at := t.(type) {
	case *types.Struct:
		for i, f := range at.Fields {
			off := int64(at.FieldOffset(i))
			sp := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: f.Type}, pos, src)
			sp.AuxInt = off
			dp := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: f.Type}, pos, dst)
			dp.AuxInt = off
			if err := fb.copyLeaf(dp, sp, f.Type, pos); err != nil {
				return err
			}
		}
	case *types.Tuple:
		for i, et := range at.Elems {
			off := int64(at.ElemOffset(i))
			sp := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: et}, pos, src)
			sp.AuxInt = off
			dp := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: et}, pos, dst)
			dp.AuxInt = off
			if err := fb.copyLeaf(dp, sp, et, pos); err != nil {
				return err
			}
		}
	case *types.Array:
		for i := 0; i < at.Len; i++ {
			off := int64(i * types.Footprint(at.Elem))
			sp := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: at.Elem}, pos, src)
			sp.AuxInt = off
			dp := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: at.Elem}, pos, dst)
			dp.AuxInt = off
			if err := fb.copyLeaf(dp, sp, at.Elem, pos); err != nil {
				return err
			}
		}
	case *types.Enum:
		// Enums copy word-wise: tag plus opaque payload.
		words := at.Words()
		for i := 0; i < words; i++ {
			off := int64(i * types.WordSize)
			wt := types.MakeBasic(types.U256)
			sp := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: wt}, pos, src)
			sp.AuxInt = off
			dp := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: wt}, pos, dst)
			dp.AuxInt = off
			v := fb.emit(ir.OpLoad, wt, pos, sp)
			fb.emitStore(dp, v, pos)
		}
	default:
		return ir.ICE(fb.f.Name, "irgen", "copyAggregate on %s", t)
	}
	return nil
}

func (fb *funcBuilder) copyLeaf(dst, src *ir.Value, t types.Type, pos source.Pos) error {
	if types.IsAggregate(t) {
		return fb.copyAggregate(dst, src, t, pos)
	}
	v := fb.emit(ir.OpLoad, t, pos, src)
	fb.emitStore(dst, v, pos)
	return nil
}

// place resolves an assignable expression to a memory address or a
// storage key.
func (fb *funcBuilder) place(e *decl.Expr) (place, error) {
	t, err := fb.exprType(e)
	if err != nil {
		return place{}, err
	}

	switch e.Kind {
	case decl.ExprVar:
		slot, ok := fb.lookup(e.Name)
		if !ok {
			return place{}, ir.ICE(fb.f.Name, "irgen", "unresolved variable %q at %s", e.Name, e.Pos)
		}
		return place{kind: placeMem, addr: slot, typ: t}, nil

	case decl.ExprField:
		base, err := fb.place(e.X)
		if err != nil {
			return place{}, err
		}
		bt, err := fb.exprType(e.X)
		if err != nil {
			return place{}, err
		}
		off, ft, err := fb.fieldOffset(bt, e)
		if err != nil {
			return place{}, err
		}
		switch base.kind {
		case placeMem:
			ptr := fb.emit(ir.OpFieldPtr, &types.Pointer{Elem: ft}, e.Pos, base.addr)
			ptr.AuxInt = int64(off)
			return place{kind: placeMem, addr: ptr, typ: ft}, nil
		case placeSlot:
			// A field of a storage aggregate lives a whole-word distance
			// from the base key.
			wordOff := off / types.WordSize
			inc := fb.constWord(types.WordFromUint64(uint64(wordOff)), e.Pos)
			key := fb.emit(ir.OpAdd, types.MakeBasic(types.U256), e.Pos, base.key, inc)
			return place{kind: placeSlot, key: key, typ: ft}, nil
		}

	case decl.ExprIndex:
		base, err := fb.place(e.X)
		if err != nil {
			return place{}, err
		}
		idx, err := fb.expr(e.Y)
		if err != nil {
			return place{}, err
		}
		bt, err := fb.exprType(e.X)
		if err != nil {
			return place{}, err
		}
		ar, ok := bt.(*types.Array)
		if !ok {
			return place{}, ir.ICE(fb.f.Name, "irgen", "index into non-array type %s at %s", bt, e.Pos)
		}
		if base.kind != placeMem {
			return place{}, ir.Errorf(e.Pos, "indexing a storage array by dynamic index is not supported; use a map")
		}
		ptr := fb.emit(ir.OpIndexPtr, &types.Pointer{Elem: ar.Elem}, e.Pos, base.addr, idx)
		return place{kind: placeMem, addr: ptr, typ: ar.Elem}, nil

	case decl.ExprStateRef:
		entry, err := fb.stateField(e.Path, e.Pos)
		if err != nil {
			return place{}, err
		}
		key := fb.constWord(entry.Slot.Key, e.Pos)
		return place{kind: placeSlot, key: key, typ: entry.Type}, nil

	case decl.ExprStateIndex:
		base, err := fb.place(e.X)
		if err != nil {
			return place{}, err
		}
		if base.kind != placeSlot {
			return place{}, ir.ICE(fb.f.Name, "irgen", "state index into non-storage base at %s", e.Pos)
		}
		elemKey, err := fb.expr(e.Y)
		if err != nil {
			return place{}, err
		}
		var vt types.Type
		switch ct := base.typ.(type) {
		case *types.Map:
			vt = ct.Value
		case *types.Sequence:
			vt = ct.Elem
		default:
			return place{}, ir.ICE(fb.f.Name, "irgen", "state index into non-collection type %s at %s", base.typ, e.Pos)
		}
		key := fb.emit(ir.OpSlotHash, types.MakeBasic(types.U256), e.Pos, base.key, elemKey)
		return place{kind: placeSlot, key: key, typ: vt}, nil
	}

	return place{}, ir.ICE(fb.f.Name, "irgen", "expression at %s is not assignable", e.Pos)
}

// loadPlace reads a scalar from a resolved place.
func (fb *funcBuilder) loadPlace(pl place, t types.Type, pos source.Pos) (*ir.Value, error) {
	if types.IsAggregate(t) {
		return nil, ir.ICE(fb.f.Name, "irgen", "aggregate load in scalar context at %s", pos)
	}
	switch pl.kind {
	case placeMem:
		return fb.emit(ir.OpLoad, t, pos, pl.addr), nil
	case placeSlot:
		return fb.emit(ir.OpSLoad, t, pos, pl.key), nil
	}
	return nil, ir.ICE(fb.f.Name, "irgen", "invalid place at %s", pos)
}

// fieldOffset computes the byte offset and type of a field access on bt.
func (fb *funcBuilder) fieldOffset(bt types.Type, e *decl.Expr) (int, types.Type, error) {
	switch at := bt.(type) {
	case *types.Struct:
		i := at.FieldIndex(e.Name)
		if i < 0 {
			return 0, nil, ir.ICE(fb.f.Name, "irgen", "unknown field %q on %s at %s", e.Name, bt, e.Pos)
		}
		return at.FieldOffset(i), at.Fields[i].Type, nil
	case *types.Tuple:
		if e.Index < 0 || e.Index >= len(at.Elems) {
			return 0, nil, ir.ICE(fb.f.Name, "irgen", "tuple index %d out of range at %s", e.Index, e.Pos)
		}
		return at.ElemOffset(e.Index), at.Elems[e.Index], nil
	}
	return 0, nil, ir.ICE(fb.f.Name, "irgen", "field access on non-aggregate type %s at %s", bt, e.Pos)
}

func parseWordLit(s string) (types.Word, error) {
	var w types.Word
	t := strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(t)
	if err != nil {
		return w, err
	}
	if len(b) > types.WordSize {
		return w, errTooWide
	}
	copy(w[types.WordSize-len(b):], b)
	return w, nil
}

var errTooWide = errWide{}

type errWide struct{}

func (errWide) Error() string { return "literal wider than 256 bits" }
