package codegen

import (
	"math"
	"sort"

	"github.com/covenant-lang/covenant/pkg/analysis"
	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/types"
	"github.com/covenant-lang/covenant/pkg/vm"
)

// Register assignment. Registers r1..r6 stage call arguments and the
// return value, r0 and r1 serve as scratch at individual instructions,
// and r7..r15 are allocatable. Constants and frame pointers are never
// allocated a register; they rematerialize at each use.
const (
	scratchA     = 0
	scratchB     = 1
	firstAllocReg = 7
	lastAllocReg  = vm.NumRegs - 1
)

// locKind says how a value is materialized.
type locKind int8

const (
	locNone locKind = iota // void or unused
	locReg                 // lives in a register
	locSlot                // spilled to a frame word
	locImm                 // rematerialized with LOADI
	locPool                // rematerialized with LOADK
)

// loc is a value's assigned location.
type loc struct {
	kind locKind
	n    uint32 // register, frame word, immediate, or pool index
}

type interval struct {
	v          *ir.Value
	start, end int
}

// alloc holds the full register assignment for one function.
type alloc struct {
	locs       []loc  // by value ID
	allocBase  []int32 // by value ID: frame word of each remaining OpAlloc, -1 otherwise
	frameWords int     // alloc regions + spill slots + one shuffle temp
	tempSlot   uint32  // frame word reserved for breaking move cycles
}

func (a *alloc) of(v *ir.Value) loc { return a.locs[v.ID] }

// assign computes locations for every value in f given the linear block
// order. The result is a pure function of the IR, so identical input
// produces identical code.
func assign(c *analysis.Cache, order []*ir.Block, prog *vm.Program) *alloc {
	f := c.Func()
	a := &alloc{
		locs:      make([]loc, f.ValueID()),
		allocBase: make([]int32, f.ValueID()),
	}
	for i := range a.allocBase {
		a.allocBase[i] = -1
	}

	// Frame regions for allocs that survived mem2reg.
	frame := 0
	for _, b := range order {
		for _, v := range b.Values {
			if v.Op != ir.OpAlloc {
				continue
			}
			a.allocBase[v.ID] = int32(frame)
			a.locs[v.ID] = loc{kind: locImm, n: uint32(frame)}
			frame += types.Footprint(v.Type.(*types.Pointer).Elem) / types.WordSize
		}
	}

	// Rematerializable values.
	for _, b := range order {
		for _, v := range b.Values {
			switch v.Op {
			case ir.OpConst, ir.OpConstBool:
				if uint64(v.AuxInt) <= math.MaxUint32 {
					a.locs[v.ID] = loc{kind: locImm, n: uint32(v.AuxInt)}
				} else {
					var w types.Word
					for i := 0; i < 8; i++ {
						w[types.WordSize-1-i] = byte(uint64(v.AuxInt) >> (8 * i))
					}
					a.locs[v.ID] = loc{kind: locPool, n: prog.AddConstant(w)}
				}
			case ir.OpConstWord:
				w, _ := v.Aux.(types.Word)
				a.locs[v.ID] = loc{kind: locPool, n: prog.AddConstant(w)}
			case ir.OpFieldPtr:
				base := a.locs[v.Args[0].ID]
				if base.kind == locImm {
					a.locs[v.ID] = loc{kind: locImm, n: base.n + uint32(v.AuxInt)/types.WordSize}
				}
			}
		}
	}

	ivs := buildIntervals(c, order, a)
	spills := scan(ivs, a, uint32(frame))

	a.frameWords = frame + spills
	a.tempSlot = uint32(a.frameWords)
	a.frameWords++
	return a
}

// buildIntervals numbers program points in linear order and computes one
// live interval per register-demanding value.
func buildIntervals(c *analysis.Cache, order []*ir.Block, a *alloc) []*interval {
	f := c.Func()
	startPos := make([]int, f.BlockID())
	endPos := make([]int, f.BlockID())

	pos := 0
	for _, b := range order {
		startPos[b.ID] = pos
		pos++ // block entry point, where params are defined
		pos += len(b.Values)
		endPos[b.ID] = pos // terminator point, where edge args are read
		pos++
	}

	ivs := make([]*interval, f.ValueID())
	needsReg := func(v *ir.Value) bool {
		if v == nil || v.Op.IsVoid() {
			return false
		}
		return a.locs[v.ID].kind == locNone
	}
	def := func(v *ir.Value, p int) {
		if !needsReg(v) {
			return
		}
		ivs[v.ID] = &interval{v: v, start: p, end: p}
	}
	use := func(v *ir.Value, p int) {
		if v == nil || !needsReg(v) {
			return
		}
		iv := ivs[v.ID]
		if iv != nil && p > iv.end {
			iv.end = p
		}
	}

	for _, b := range order {
		p := startPos[b.ID]
		for _, prm := range b.Params {
			def(prm, p)
		}
		p++
		for _, v := range b.Values {
			for _, arg := range v.Args {
				use(arg, p)
			}
			def(v, p)
			p++
		}
		for _, ctl := range b.Controls {
			use(ctl, p)
		}
		for _, e := range b.Succs {
			for _, arg := range e.Args {
				use(arg, p)
			}
		}
	}

	// A value live out of a block stays live to the block's end point;
	// this covers loop-carried lifetimes the use positions alone miss.
	for _, b := range order {
		for _, id := range c.LiveOut(b) {
			if iv := ivs[id]; iv != nil && endPos[b.ID] > iv.end {
				iv.end = endPos[b.ID]
			}
		}
	}

	// Block parameters are written at each predecessor's end by the edge
	// moves, so their intervals must cover those points too.
	for _, b := range order {
		for _, prm := range b.Params {
			iv := ivs[prm.ID]
			if iv == nil {
				continue
			}
			for _, p := range b.Preds {
				pe := endPos[p.ID]
				if pe < iv.start {
					iv.start = pe
				}
				if pe > iv.end {
					iv.end = pe
				}
			}
		}
	}

	out := make([]*interval, 0, len(ivs))
	for _, iv := range ivs {
		if iv != nil {
			out = append(out, iv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].v.ID < out[j].v.ID
	})
	return out
}

// scan is the linear-scan allocation over sorted intervals. Spill slots
// start at frame word slotBase; the spill count is returned.
func scan(ivs []*interval, a *alloc, slotBase uint32) int {
	type active struct {
		iv  *interval
		reg uint32
	}
	var actives []active
	freeRegs := make([]uint32, 0, lastAllocReg-firstAllocReg+1)
	for r := firstAllocReg; r <= lastAllocReg; r++ {
		freeRegs = append(freeRegs, uint32(r))
	}
	spills := 0
	nextSpill := func() uint32 {
		s := slotBase + uint32(spills)
		spills++
		return s
	}

	for _, iv := range ivs {
		// Expire finished intervals.
		kept := actives[:0]
		for _, ac := range actives {
			if ac.iv.end < iv.start {
				freeRegs = append(freeRegs, ac.reg)
			} else {
				kept = append(kept, ac)
			}
		}
		actives = kept
		sort.Slice(freeRegs, func(i, j int) bool { return freeRegs[i] < freeRegs[j] })

		if len(freeRegs) > 0 {
			r := freeRegs[0]
			freeRegs = freeRegs[1:]
			a.locs[iv.v.ID] = loc{kind: locReg, n: r}
			actives = append(actives, active{iv: iv, reg: r})
			continue
		}

		// No register free: spill whichever of the candidates ends last.
		victim := -1
		for i, ac := range actives {
			if victim < 0 || ac.iv.end > actives[victim].iv.end {
				victim = i
			}
		}
		if victim >= 0 && actives[victim].iv.end > iv.end {
			ac := actives[victim]
			a.locs[ac.iv.v.ID] = loc{kind: locSlot, n: nextSpill()}
			a.locs[iv.v.ID] = loc{kind: locReg, n: ac.reg}
			actives[victim] = active{iv: iv, reg: ac.reg}
		} else {
			a.locs[iv.v.ID] = loc{kind: locSlot, n: nextSpill()}
		}
	}
	return spills
}
