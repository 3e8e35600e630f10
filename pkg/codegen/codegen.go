// Package codegen lowers optimized SSA IR to Covenant VM bytecode:
// linear-scan register allocation over a reverse-post-order block layout,
// frame assignment for spills and memory-backed locals, and a two-pass
// emission that patches branch targets once block offsets are known.
package codegen

import (
	"golang.org/x/crypto/sha3"

	"github.com/covenant-lang/covenant/pkg/analysis"
	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/types"
	"github.com/covenant-lang/covenant/pkg/vm"
)

// Generate compiles every function of mod into a program. Functions keep
// their module order, so call sites can be resolved to stable indexes.
func Generate(mod *ir.Module) (*vm.Program, error) {
	prog := vm.NewProgram(mod.Name)
	fnIndex := make(map[string]int, len(mod.Funcs))
	for i, f := range mod.Funcs {
		fnIndex[f.Name] = i
	}
	for _, f := range mod.Funcs {
		fc, err := genFunc(prog, f, fnIndex)
		if err != nil {
			return nil, err
		}
		prog.Funcs = append(prog.Funcs, fc)
	}
	return prog, nil
}

func genFunc(prog *vm.Program, f *ir.Func, fnIndex map[string]int) (*vm.FuncCode, error) {
	if len(f.ParamTypes) > vm.MaxCallArgs {
		return nil, ir.ICE(f.Name, "codegen", "%d parameters exceed the calling convention limit of %d",
			len(f.ParamTypes), vm.MaxCallArgs)
	}
	splitCriticalEdges(f)

	cache := analysis.NewCache(f)
	order := ir.ReversePostOrder(f)
	a := assign(cache, order, prog)

	g := &gen{
		f:       f,
		prog:    prog,
		fnIndex: fnIndex,
		a:       a,
		blockAt: make(map[ir.ID]uint32),
	}
	if err := g.run(order); err != nil {
		return nil, err
	}

	fc := &vm.FuncCode{
		Name:       f.Name,
		ParamCount: uint8(len(f.ParamTypes)),
		FrameWords: uint16(a.frameWords),
		Code:       g.code,
		SourceMap:  g.srcmap,
	}
	if f.Exported {
		fc.Flags |= vm.FuncFlagExported
	}
	if f.ReturnType != nil {
		fc.Flags |= vm.FuncFlagResult
	}
	return fc, nil
}

// splitCriticalEdges inserts a forwarding block on every edge that both
// leaves a multi-successor block and carries block-parameter arguments,
// so the edge's moves get a place of their own.
func splitCriticalEdges(f *ir.Func) {
	for _, b := range append([]*ir.Block(nil), f.Blocks...) {
		if len(b.Succs) < 2 {
			continue
		}
		for i := range b.Succs {
			e := b.Succs[i]
			if len(e.Args) == 0 {
				continue
			}
			mid := f.NewBlock(ir.BlockPlain)

			// Which Preds entry of the target belongs to this edge: the
			// n'th occurrence of b, counting earlier same-target edges.
			n := 0
			for j := 0; j < i; j++ {
				if b.Succs[j].Block == e.Block {
					n++
				}
			}
			for j, p := range e.Block.Preds {
				if p == b {
					if n == 0 {
						e.Block.Preds[j] = mid
						break
					}
					n--
				}
			}

			mid.Preds = append(mid.Preds, b)
			mid.Succs = append(mid.Succs, ir.Edge{Block: e.Block, Args: e.Args})
			b.Succs[i] = ir.Edge{Block: mid}
		}
	}
}

type patch struct {
	idx    int   // instruction index holding the placeholder
	target ir.ID // destination block
}

type gen struct {
	f       *ir.Func
	prog    *vm.Program
	fnIndex map[string]int
	a       *alloc
	code    []vm.Instr
	patches []patch
	blockAt map[ir.ID]uint32
	srcmap  []vm.SourceLocation
	curLine uint32
	curCol  uint16
}

func (g *gen) emit(in vm.Instr) {
	g.code = append(g.code, in)
}

// setPos records a source-map entry when the position changes.
func (g *gen) setPos(pos source.Pos) {
	if !pos.IsValid() || (pos.Line == g.curLine && pos.Column == g.curCol) {
		return
	}
	g.curLine, g.curCol = pos.Line, pos.Column
	g.srcmap = append(g.srcmap, vm.SourceLocation{
		Instr:  uint32(len(g.code)),
		Line:   pos.Line,
		Column: pos.Column,
	})
}

// operand materializes v into a register, using scratch for spilled or
// rematerialized values.
func (g *gen) operand(v *ir.Value, scratch uint8) (uint8, error) {
	l := g.a.of(v)
	switch l.kind {
	case locReg:
		return uint8(l.n), nil
	case locImm:
		g.emit(vm.Instr{Op: vm.OpLoadI, A: scratch, Imm: l.n})
		return scratch, nil
	case locPool:
		g.emit(vm.Instr{Op: vm.OpLoadK, A: scratch, Imm: l.n})
		return scratch, nil
	case locSlot:
		g.emit(vm.Instr{Op: vm.OpLds, A: scratch, Imm: l.n})
		return scratch, nil
	}
	return 0, ir.ICE(g.f.Name, "codegen", "value v%d has no location", v.ID)
}

// loadInto materializes v directly into register dst.
func (g *gen) loadInto(dst uint8, v *ir.Value) error {
	l := g.a.of(v)
	switch l.kind {
	case locReg:
		if uint8(l.n) != dst {
			g.emit(vm.Instr{Op: vm.OpMov, A: dst, B: uint8(l.n)})
		}
	case locImm:
		g.emit(vm.Instr{Op: vm.OpLoadI, A: dst, Imm: l.n})
	case locPool:
		g.emit(vm.Instr{Op: vm.OpLoadK, A: dst, Imm: l.n})
	case locSlot:
		g.emit(vm.Instr{Op: vm.OpLds, A: dst, Imm: l.n})
	default:
		return ir.ICE(g.f.Name, "codegen", "value v%d has no location", v.ID)
	}
	return nil
}

// destReg returns the register a result is computed into; spilled
// results compute into scratchA and flush writes them out.
func (g *gen) destReg(v *ir.Value) uint8 {
	l := g.a.of(v)
	if l.kind == locReg {
		return uint8(l.n)
	}
	return scratchA
}

// flush stores a freshly computed result held in r to its home.
func (g *gen) flush(v *ir.Value, r uint8) {
	l := g.a.of(v)
	if l.kind == locSlot {
		g.emit(vm.Instr{Op: vm.OpSts, A: r, Imm: l.n})
	}
}

func (g *gen) run(order []*ir.Block) error {
	if err := g.prologue(); err != nil {
		return err
	}
	for bi, b := range order {
		g.blockAt[b.ID] = uint32(len(g.code))
		for _, v := range b.Values {
			if err := g.genValue(v); err != nil {
				return err
			}
		}
		var next *ir.Block
		if bi+1 < len(order) {
			next = order[bi+1]
		}
		if err := g.terminator(b, next); err != nil {
			return err
		}
	}
	for _, p := range g.patches {
		at, ok := g.blockAt[p.target]
		if !ok {
			return ir.ICE(g.f.Name, "codegen", "branch to unplaced block b%d", p.target)
		}
		g.code[p.idx].Imm = at
	}
	return nil
}

// prologue moves the arguments out of the staging registers into their
// allocated homes.
func (g *gen) prologue() error {
	for i, p := range g.f.Entry.Params {
		l := g.a.of(p)
		src := uint8(1 + i)
		switch l.kind {
		case locReg:
			g.emit(vm.Instr{Op: vm.OpMov, A: uint8(l.n), B: src})
		case locSlot:
			g.emit(vm.Instr{Op: vm.OpSts, A: src, Imm: l.n})
		case locNone:
			// unused parameter
		default:
			return ir.ICE(g.f.Name, "codegen", "parameter %d has location kind %d", i, l.kind)
		}
	}
	return nil
}

var simpleBinary = map[ir.Op]vm.Opcode{
	ir.OpAdd:      vm.OpAdd,
	ir.OpSub:      vm.OpSub,
	ir.OpMul:      vm.OpMul,
	ir.OpDiv:      vm.OpDiv,
	ir.OpMod:      vm.OpMod,
	ir.OpAnd:      vm.OpAnd,
	ir.OpOr:       vm.OpOr,
	ir.OpXor:      vm.OpXor,
	ir.OpShl:      vm.OpShl,
	ir.OpShr:      vm.OpShr,
	ir.OpEq:       vm.OpEq,
	ir.OpNeq:      vm.OpNe,
	ir.OpLt:       vm.OpLt,
	ir.OpLeq:      vm.OpLe,
	ir.OpGt:       vm.OpGt,
	ir.OpGeq:      vm.OpGe,
	ir.OpSlotHash: vm.OpHash2,
}

var simpleUnary = map[ir.Op]vm.Opcode{
	ir.OpNeg:    vm.OpNeg,
	ir.OpBitNot: vm.OpNot,
	ir.OpNot:    vm.OpEqz,
}

func (g *gen) genValue(v *ir.Value) error {
	g.setPos(v.Pos)

	if op, ok := simpleBinary[v.Op]; ok {
		x, err := g.operand(v.Args[0], scratchA)
		if err != nil {
			return err
		}
		y, err := g.operand(v.Args[1], scratchB)
		if err != nil {
			return err
		}
		d := g.destReg(v)
		g.emit(vm.Instr{Op: op, A: d, B: x, C: y})
		g.flush(v, d)
		return nil
	}
	if op, ok := simpleUnary[v.Op]; ok {
		x, err := g.operand(v.Args[0], scratchA)
		if err != nil {
			return err
		}
		d := g.destReg(v)
		g.emit(vm.Instr{Op: op, A: d, B: x})
		g.flush(v, d)
		return nil
	}

	switch v.Op {
	case ir.OpConst, ir.OpConstBool, ir.OpConstWord, ir.OpAlloc:
		// Rematerialized at each use; nothing to emit here.
		return nil

	case ir.OpCopy:
		x, err := g.operand(v.Args[0], scratchA)
		if err != nil {
			return err
		}
		d := g.destReg(v)
		if d != x {
			g.emit(vm.Instr{Op: vm.OpMov, A: d, B: x})
		}
		g.flush(v, d)
		return nil

	case ir.OpFieldPtr:
		if g.a.of(v).kind == locImm {
			return nil // folded into a frame constant
		}
		base, err := g.operand(v.Args[0], scratchA)
		if err != nil {
			return err
		}
		d := g.destReg(v)
		g.emit(vm.Instr{Op: vm.OpAddI, A: d, B: base, Imm: uint32(v.AuxInt) / types.WordSize})
		g.flush(v, d)
		return nil

	case ir.OpIndexPtr:
		elemWords := types.Footprint(v.Type.(*types.Pointer).Elem) / types.WordSize
		idx, err := g.operand(v.Args[1], scratchA)
		if err != nil {
			return err
		}
		g.emit(vm.Instr{Op: vm.OpLoadI, A: scratchB, Imm: uint32(elemWords)})
		g.emit(vm.Instr{Op: vm.OpMul, A: scratchB, B: idx, C: scratchB})
		base, err := g.operand(v.Args[0], scratchA)
		if err != nil {
			return err
		}
		d := g.destReg(v)
		g.emit(vm.Instr{Op: vm.OpAdd, A: d, B: base, C: scratchB})
		g.flush(v, d)
		return nil

	case ir.OpLoad:
		l := g.a.of(v.Args[0])
		d := g.destReg(v)
		if l.kind == locImm {
			g.emit(vm.Instr{Op: vm.OpLds, A: d, Imm: l.n})
		} else {
			ptr, err := g.operand(v.Args[0], scratchB)
			if err != nil {
				return err
			}
			g.emit(vm.Instr{Op: vm.OpLdw, A: d, B: ptr})
		}
		g.flush(v, d)
		return nil

	case ir.OpStore:
		val, err := g.operand(v.Args[1], scratchA)
		if err != nil {
			return err
		}
		l := g.a.of(v.Args[0])
		if l.kind == locImm {
			g.emit(vm.Instr{Op: vm.OpSts, A: val, Imm: l.n})
			return nil
		}
		ptr, err := g.operand(v.Args[0], scratchB)
		if err != nil {
			return err
		}
		g.emit(vm.Instr{Op: vm.OpStw, A: val, B: ptr})
		return nil

	case ir.OpZero:
		return g.genZero(v)

	case ir.OpSLoad:
		key, err := g.operand(v.Args[0], scratchB)
		if err != nil {
			return err
		}
		d := g.destReg(v)
		g.emit(vm.Instr{Op: vm.OpSload, A: d, B: key})
		g.flush(v, d)
		return nil

	case ir.OpSStore:
		key, err := g.operand(v.Args[0], scratchA)
		if err != nil {
			return err
		}
		val, err := g.operand(v.Args[1], scratchB)
		if err != nil {
			return err
		}
		g.emit(vm.Instr{Op: vm.OpSstore, A: key, B: val})
		return nil

	case ir.OpCall:
		return g.genCall(v)

	case ir.OpExtCall:
		return g.genExtCall(v)
	}
	return ir.ICE(g.f.Name, "codegen", "cannot lower op %s", v.Op)
}

// genZero clears an aggregate's frame words.
func (g *gen) genZero(v *ir.Value) error {
	words := uint32(v.AuxInt) / types.WordSize
	g.emit(vm.Instr{Op: vm.OpLoadI, A: scratchA, Imm: 0})
	l := g.a.of(v.Args[0])
	if l.kind == locImm {
		for i := uint32(0); i < words; i++ {
			g.emit(vm.Instr{Op: vm.OpSts, A: scratchA, Imm: l.n + i})
		}
		return nil
	}
	ptr, err := g.operand(v.Args[0], scratchB)
	if err != nil {
		return err
	}
	if ptr != scratchB {
		g.emit(vm.Instr{Op: vm.OpMov, A: scratchB, B: ptr})
	}
	for i := uint32(0); i < words; i++ {
		g.emit(vm.Instr{Op: vm.OpStw, A: scratchA, B: scratchB})
		if i+1 < words {
			g.emit(vm.Instr{Op: vm.OpAddI, A: scratchB, B: scratchB, Imm: 1})
		}
	}
	return nil
}

func (g *gen) genCall(v *ir.Value) error {
	name, _ := v.Aux.(string)
	idx, ok := g.fnIndex[name]
	if !ok {
		return ir.ICE(g.f.Name, "codegen", "call to unknown function %q", name)
	}
	if len(v.Args) > vm.MaxCallArgs {
		return ir.ICE(g.f.Name, "codegen", "call to %q passes %d arguments, max is %d", name, len(v.Args), vm.MaxCallArgs)
	}
	for i, arg := range v.Args {
		if err := g.loadInto(uint8(1+i), arg); err != nil {
			return err
		}
	}
	g.emit(vm.Instr{Op: vm.OpCall, A: uint8(len(v.Args)), Imm: uint32(idx)})
	if v.Type != nil && g.a.of(v).kind != locNone {
		d := g.destReg(v)
		if d != 1 {
			g.emit(vm.Instr{Op: vm.OpMov, A: d, B: 1})
		}
		g.flush(v, d)
	}
	return nil
}

func (g *gen) genExtCall(v *ir.Value) error {
	sel, _ := v.Aux.(string)
	args := v.Args[1:]
	if len(args) > vm.MaxCallArgs {
		return ir.ICE(g.f.Name, "codegen", "external call passes %d arguments, max is %d", len(args), vm.MaxCallArgs)
	}
	for i, arg := range args {
		if err := g.loadInto(uint8(1+i), arg); err != nil {
			return err
		}
	}
	if err := g.loadInto(scratchA, v.Args[0]); err != nil {
		return err
	}
	g.emit(vm.Instr{
		Op:  vm.OpEcall,
		A:   uint8(len(args)),
		B:   scratchA,
		Imm: g.prog.AddConstant(selectorWord(sel)),
	})
	if v.Type != nil && g.a.of(v).kind != locNone {
		d := g.destReg(v)
		if d != 1 {
			g.emit(vm.Instr{Op: vm.OpMov, A: d, B: 1})
		}
		g.flush(v, d)
	}
	return nil
}

// selectorWord derives the wire selector for an external method name.
func selectorWord(name string) types.Word {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	var w types.Word
	copy(w[:], h.Sum(nil))
	return w
}

func (g *gen) terminator(b *ir.Block, next *ir.Block) error {
	switch b.Kind {
	case ir.BlockPlain:
		if len(b.Succs) != 1 {
			return ir.ICE(g.f.Name, "codegen", "plain block b%d has %d successors", b.ID, len(b.Succs))
		}
		e := b.Succs[0]
		if err := g.edgeMoves(e); err != nil {
			return err
		}
		g.jump(e.Block, next)
		return nil

	case ir.BlockIf:
		// Critical edges were split, so neither edge carries arguments.
		cond, err := g.operand(b.Controls[0], scratchA)
		if err != nil {
			return err
		}
		g.patches = append(g.patches, patch{idx: len(g.code), target: b.Succs[1].Block.ID})
		g.emit(vm.Instr{Op: vm.OpJz, B: cond})
		g.jump(b.Succs[0].Block, next)
		return nil

	case ir.BlockReturn:
		hasResult := len(b.Controls) > 0 && b.Controls[0] != nil
		if hasResult {
			if err := g.loadInto(1, b.Controls[0]); err != nil {
				return err
			}
			g.emit(vm.Instr{Op: vm.OpRet, A: 1})
		} else {
			g.emit(vm.Instr{Op: vm.OpRet})
		}
		return nil

	case ir.BlockAbort:
		g.emit(vm.Instr{Op: vm.OpAbort})
		return nil
	}
	return ir.ICE(g.f.Name, "codegen", "block b%d has kind %s", b.ID, b.Kind)
}

// jump emits an unconditional branch to target, elided when the target
// is laid out immediately after.
func (g *gen) jump(target, next *ir.Block) {
	if target == next {
		return
	}
	g.patches = append(g.patches, patch{idx: len(g.code), target: target.ID})
	g.emit(vm.Instr{Op: vm.OpJmp})
}
