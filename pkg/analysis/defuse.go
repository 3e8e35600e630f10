package analysis

import "github.com/covenant-lang/covenant/pkg/ir"

// Users returns the values consuming v as an operand, in deterministic
// block-order/instruction-order. A consumer appears once even when it
// uses v in several operand positions. Terminator and edge-argument uses
// are not included; passes that care about those consult Uses counts,
// which cover every reference.
func (c *Cache) Users(v *ir.Value) []*ir.Value {
	c.ensureDefUse()
	if int(v.ID) >= len(c.users) {
		return nil
	}
	return c.users[v.ID]
}

func (c *Cache) ensureDefUse() {
	if c.defUseOK {
		return
	}
	c.users = make([][]*ir.Value, c.fn.ValueID())
	for _, b := range c.fn.Blocks {
		for _, v := range b.Values {
			for _, a := range v.Args {
				// One sweep appends a consumer's operands back to back,
				// so checking the tail collapses repeated operands.
				if us := c.users[a.ID]; len(us) > 0 && us[len(us)-1] == v {
					continue
				}
				c.users[a.ID] = append(c.users[a.ID], v)
			}
		}
	}
	c.defUseOK = true
}
