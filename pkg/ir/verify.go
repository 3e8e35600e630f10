package ir

import (
	"fmt"
	"strings"

	"github.com/covenant-lang/covenant/pkg/types"
)

// Verify checks the structural integrity of f: one terminator per block,
// consistent CFG edges, edge arguments matching block parameters, and
// operand type consistency. A failure is an internal compiler error (a
// bug in whatever produced or last transformed f), never a user
// diagnostic. The pass argument names the suspect pass for context.
func Verify(f *Func, pass string) error {
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if f.Entry == nil || len(f.Blocks) == 0 {
		return ICE(f.Name, pass, "function has no entry block")
	}
	if f.Blocks[0] != f.Entry {
		add("Blocks[0] is not the entry block")
	}
	if len(f.Entry.Preds) != 0 {
		add("entry %s has %d predecessors, want 0", f.Entry, len(f.Entry.Preds))
	}
	if len(f.Entry.Params) != len(f.ParamTypes) {
		add("entry has %d params, signature has %d", len(f.Entry.Params), len(f.ParamTypes))
	}

	blockSet := make(map[*Block]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		blockSet[b] = true
	}
	valueSet := make(map[*Value]bool)
	for _, b := range f.Blocks {
		for _, p := range b.Params {
			valueSet[p] = true
		}
		for _, v := range b.Values {
			valueSet[v] = true
		}
	}

	for _, b := range f.Blocks {
		if b.Func != f {
			add("%s: Func pointer mismatch", b)
		}

		for i, p := range b.Params {
			if p.Op != OpParam {
				add("%s: param %d is %s, want Param", b, i, p.Op)
			}
			if p.Block != b {
				add("%s: param %s belongs to %s", b, p, p.Block)
			}
			if p.Type == nil {
				add("%s: param %s has nil type", b, p)
			}
		}

		for _, v := range b.Values {
			if v.Block != b {
				add("%s: %s has Block pointer %s", b, v, v.Block)
			}
			if v.Op == OpParam {
				add("%s: %s is a Param inside the value list", b, v)
			}
			if !v.Op.IsVoid() && v.Type == nil && !v.Op.IsCall() {
				add("%s: %s (%s) has nil type", b, v, v.Op)
			}
			if v.Op.IsVoid() && v.Type != nil {
				add("%s: void %s (%s) has a type", b, v, v.Op)
			}
			for i, a := range v.Args {
				if a == nil {
					add("%s: %s arg[%d] is nil", b, v, i)
				} else if !valueSet[a] {
					add("%s: %s arg[%d] (%s) not in function", b, v, i, a)
				}
			}
			if err := checkOperandTypes(b, v, add); err != nil {
				return err
			}
		}

		switch b.Kind {
		case BlockPlain:
			if len(b.Succs) != 1 {
				add("%s: jump block has %d succs, want 1", b, len(b.Succs))
			}
			if len(b.Controls) != 0 {
				add("%s: jump block has %d controls, want 0", b, len(b.Controls))
			}
		case BlockIf:
			if len(b.Succs) != 2 {
				add("%s: if block has %d succs, want 2", b, len(b.Succs))
			}
			if len(b.Controls) != 1 {
				add("%s: if block has %d controls, want 1", b, len(b.Controls))
			} else if c := b.Controls[0]; c != nil && c.Type != nil && !types.Identical(c.Type, types.MakeBasic(types.Bool)) {
				add("%s: branch condition %s has type %s, want bool", b, c, c.Type)
			}
		case BlockReturn:
			if len(b.Succs) != 0 {
				add("%s: return block has %d succs, want 0", b, len(b.Succs))
			}
		case BlockAbort:
			if len(b.Succs) != 0 {
				add("%s: abort block has %d succs, want 0", b, len(b.Succs))
			}
		default:
			add("%s: invalid block kind", b)
		}

		for i, c := range b.Controls {
			if c == nil {
				if b.Kind != BlockReturn {
					add("%s: control[%d] is nil", b, i)
				}
				continue
			}
			if !valueSet[c] {
				add("%s: control[%d] (%s) not in function", b, i, c)
			}
		}

		for ei, e := range b.Succs {
			if !blockSet[e.Block] {
				add("%s: successor %s not in function", b, e.Block)
				continue
			}
			if e.Block.PredIndex(b) < 0 {
				add("%s: successor %s missing back-edge", b, e.Block)
			}
			if len(e.Args) != len(e.Block.Params) {
				add("%s: edge %d to %s carries %d args, target has %d params",
					b, ei, e.Block, len(e.Args), len(e.Block.Params))
				continue
			}
			for ai, a := range e.Args {
				if a == nil {
					add("%s: edge %d arg[%d] is nil", b, ei, ai)
					continue
				}
				if !valueSet[a] {
					add("%s: edge %d arg[%d] (%s) not in function", b, ei, ai, a)
				}
				p := e.Block.Params[ai]
				if a.Type != nil && p.Type != nil && !types.Identical(a.Type, p.Type) {
					add("%s: edge %d arg[%d] (%s) has type %s, param wants %s",
						b, ei, ai, a, a.Type, p.Type)
				}
			}
		}
		for _, p := range b.Preds {
			if !blockSet[p] {
				add("%s: predecessor %s not in function", b, p)
			} else if p.SuccIndex(b) < 0 {
				add("%s: predecessor %s missing forward edge", b, p)
			}
		}
	}

	return combine(f, pass, errs)
}

// checkOperandTypes validates per-op operand shapes that do not require
// dominance information.
func checkOperandTypes(b *Block, v *Value, add func(string, ...interface{})) error {
	argc := -1
	switch v.Op {
	case OpConst, OpConstBool, OpConstWord:
		argc = 0
	case OpNeg, OpBitNot, OpNot, OpLoad, OpFieldPtr, OpCopy:
		argc = 1
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpAnd, OpOr, OpXor, OpShl, OpShr,
		OpEq, OpNeq, OpLt, OpLeq, OpGt, OpGeq,
		OpStore, OpIndexPtr, OpSStore, OpSlotHash:
		argc = 2
	case OpSLoad:
		argc = 1
	case OpAlloc:
		argc = 0
	}
	if argc >= 0 && len(v.Args) != argc {
		add("%s: %s (%s) has %d args, want %d", b, v, v.Op, len(v.Args), argc)
		return nil
	}
	switch v.Op {
	case OpLoad, OpStore, OpFieldPtr, OpIndexPtr:
		if len(v.Args) > 0 && v.Args[0] != nil && v.Args[0].Type != nil {
			if _, ok := v.Args[0].Type.(*types.Pointer); !ok {
				add("%s: %s (%s) address operand has type %s, want pointer",
					b, v, v.Op, v.Args[0].Type)
			}
		}
	case OpAlloc:
		if v.Type != nil {
			if _, ok := v.Type.(*types.Pointer); !ok {
				add("%s: %s Alloc has type %s, want pointer", b, v, v.Type)
			}
		}
	}
	return nil
}

// VerifyDominance runs Verify and then checks the SSA property: every
// use is dominated by its definition. It recomputes the dominator tree,
// so it is safe to call after any CFG edit.
func VerifyDominance(f *Func, pass string) error {
	if err := Verify(f, pass); err != nil {
		return err
	}
	ComputeDom(f)

	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	reachable := make([]bool, f.BlockID())
	for _, b := range ReversePostOrder(f) {
		reachable[b.ID] = true
	}

	// Index of each value within its block for same-block ordering.
	valIdx := make(map[*Value]int)
	for _, b := range f.Blocks {
		for i, v := range b.Values {
			valIdx[v] = i
		}
	}

	// defDominatesUse checks that def's block strictly reaches the use
	// point. Block params dominate everything in their own block.
	defDominatesUse := func(def *Value, useBlock *Block, useIdx int) bool {
		db := def.Block
		if db == useBlock {
			if def.Op == OpParam {
				return true
			}
			return valIdx[def] < useIdx
		}
		return Dominates(db, useBlock)
	}

	for _, b := range f.Blocks {
		if !reachable[b.ID] {
			continue
		}
		for i, v := range b.Values {
			for ai, a := range v.Args {
				if a != nil && !defDominatesUse(a, b, i) {
					add("%s: %s arg[%d] (%s) not dominated by its definition in %s",
						b, v, ai, a, a.Block)
				}
			}
		}
		for ci, c := range b.Controls {
			if c != nil && !defDominatesUse(c, b, len(b.Values)) {
				add("%s: control[%d] (%s) not dominated by its definition in %s",
					b, ci, c, c.Block)
			}
		}
		// Edge arguments are evaluated at the end of the predecessor.
		for ei, e := range b.Succs {
			for ai, a := range e.Args {
				if a != nil && !defDominatesUse(a, b, len(b.Values)) {
					add("%s: edge %d arg[%d] (%s) not dominated by its definition in %s",
						b, ei, ai, a, a.Block)
				}
			}
		}
	}

	return combine(f, pass, errs)
}

func combine(f *Func, pass string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return ICE(f.Name, pass, "SSA verification failed:\n  %s", strings.Join(errs, "\n  "))
}
