package analysis

import "github.com/covenant-lang/covenant/pkg/ir"

// Escapes reports whether the address produced by alloc (an OpAlloc)
// leaves the function: stored as a value, passed to a call, returned,
// written to storage, or bound to a block parameter. The classification
// is object-granular and field-insensitive — a single escaping interior
// pointer condemns the whole allocation — which is sound but imprecise.
// Only non-escaping allocations may be promoted by mem2reg.
func (c *Cache) Escapes(alloc *ir.Value) bool {
	c.ensureEscape()
	return c.escaped[alloc]
}

func (c *Cache) ensureEscape() {
	if c.escapeOK {
		return
	}
	c.escaped = make(map[*ir.Value]bool)

	// derived[id] points at the root alloc for every pointer derived from
	// it via FieldPtr/IndexPtr/Copy chains.
	derived := make([]*ir.Value, c.fn.ValueID())
	root := func(v *ir.Value) *ir.Value {
		if v == nil || int(v.ID) >= len(derived) {
			return nil
		}
		return derived[v.ID]
	}

	// Values were created in ID order within each block, and FieldPtr/
	// IndexPtr operands are dominated by their base, so one forward sweep
	// in block order resolves every derivation chain.
	for _, b := range c.fn.Blocks {
		for _, v := range b.Values {
			switch v.Op {
			case ir.OpAlloc:
				derived[v.ID] = v
			case ir.OpFieldPtr, ir.OpIndexPtr, ir.OpCopy:
				if len(v.Args) > 0 {
					derived[v.ID] = root(v.Args[0])
				}
			}
		}
	}

	mark := func(v *ir.Value) {
		if r := root(v); r != nil {
			c.escaped[r] = true
		}
	}

	for _, b := range c.fn.Blocks {
		for _, v := range b.Values {
			switch v.Op {
			case ir.OpLoad, ir.OpZero:
				// Address operand only; no escape.
			case ir.OpStore:
				// Storing *through* the pointer is fine; storing the
				// pointer itself is an escape.
				mark(v.Args[1])
			case ir.OpFieldPtr, ir.OpIndexPtr, ir.OpCopy:
				// Derivation handled above. IndexPtr's index operand
				// could in principle be a pointer-typed value; treat it
				// as escaping to stay sound.
				if v.Op == ir.OpIndexPtr {
					mark(v.Args[1])
				}
			case ir.OpSStore:
				mark(v.Args[1])
			default:
				for _, a := range v.Args {
					mark(a)
				}
			}
		}
		for _, ctl := range b.Controls {
			mark(ctl)
		}
		for _, e := range b.Succs {
			for _, a := range e.Args {
				mark(a)
			}
		}
	}
	c.escapeOK = true
}
