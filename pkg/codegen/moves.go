package codegen

import (
	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/vm"
)

// Block-parameter moves. Edges carry arguments in parallel: every source
// is read before any destination is written, so a naive sequential copy
// would corrupt swaps. The resolver emits moves whose destination no
// remaining move still reads, and breaks register cycles through the
// frame's reserved shuffle word.

type move struct {
	dst, src loc
}

// edgeMoves copies the edge's arguments into the successor's parameter
// locations.
func (g *gen) edgeMoves(e ir.Edge) error {
	if len(e.Args) == 0 {
		return nil
	}
	pending := make([]move, 0, len(e.Args))
	for i, arg := range e.Args {
		dst := g.a.of(e.Block.Params[i])
		if dst.kind == locNone {
			continue // unused parameter
		}
		src := g.a.of(arg)
		if src == dst {
			continue
		}
		pending = append(pending, move{dst: dst, src: src})
	}

	for len(pending) > 0 {
		progressed := false
		for i := 0; i < len(pending); {
			if blocks(pending, i) {
				i++
				continue
			}
			if err := g.emitMove(pending[i]); err != nil {
				return err
			}
			pending = append(pending[:i], pending[i+1:]...)
			progressed = true
		}
		if progressed {
			continue
		}

		// Every pending destination is still read: a cycle. Park one
		// source in the shuffle word and redirect its reader there.
		m := pending[0]
		r, err := g.locToReg(m.src, scratchA)
		if err != nil {
			return err
		}
		g.emit(vm.Instr{Op: vm.OpSts, A: r, Imm: g.a.tempSlot})
		pending[0].src = loc{kind: locSlot, n: g.a.tempSlot}
	}
	return nil
}

// blocks reports whether the i'th pending move's destination is still a
// source of some other pending move.
func blocks(pending []move, i int) bool {
	d := pending[i].dst
	if d.kind != locReg && d.kind != locSlot {
		return false
	}
	for j, m := range pending {
		if j != i && m.src == d {
			return true
		}
	}
	return false
}

// emitMove copies one location to another.
func (g *gen) emitMove(m move) error {
	if m.dst.kind == locReg {
		return g.regMove(uint8(m.dst.n), m.src)
	}
	if m.dst.kind != locSlot {
		return ir.ICE(g.f.Name, "codegen", "move into location kind %d", m.dst.kind)
	}
	r, err := g.locToReg(m.src, scratchA)
	if err != nil {
		return err
	}
	g.emit(vm.Instr{Op: vm.OpSts, A: r, Imm: m.dst.n})
	return nil
}

// regMove materializes src into register dst.
func (g *gen) regMove(dst uint8, src loc) error {
	switch src.kind {
	case locReg:
		if uint8(src.n) != dst {
			g.emit(vm.Instr{Op: vm.OpMov, A: dst, B: uint8(src.n)})
		}
	case locImm:
		g.emit(vm.Instr{Op: vm.OpLoadI, A: dst, Imm: src.n})
	case locPool:
		g.emit(vm.Instr{Op: vm.OpLoadK, A: dst, Imm: src.n})
	case locSlot:
		g.emit(vm.Instr{Op: vm.OpLds, A: dst, Imm: src.n})
	default:
		return ir.ICE(g.f.Name, "codegen", "move from location kind %d", src.kind)
	}
	return nil
}

// locToReg returns a register holding src, borrowing scratch when src is
// not already register-resident.
func (g *gen) locToReg(src loc, scratch uint8) (uint8, error) {
	if src.kind == locReg {
		return uint8(src.n), nil
	}
	if err := g.regMove(scratch, src); err != nil {
		return 0, err
	}
	return scratch, nil
}
