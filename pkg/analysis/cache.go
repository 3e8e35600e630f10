// Package analysis provides cached per-function queries over the SSA IR:
// dominance, def-use chains, escape classification, and liveness. The
// pass manager owns one Cache per function and drops analyses a pass
// declares invalidated; dropped analyses recompute lazily on next query.
package analysis

import "github.com/covenant-lang/covenant/pkg/ir"

// Analysis names, used by passes to declare what they invalidate.
const (
	Dominance = "dominance"
	DefUse    = "defuse"
	Escape    = "escape"
	Liveness  = "liveness"
)

// All lists every named analysis.
var All = []string{Dominance, DefUse, Escape, Liveness}

// Cache holds the currently-valid analyses for one function.
type Cache struct {
	fn *ir.Func

	domValid bool
	frontier [][]*ir.Block

	users     [][]*ir.Value
	defUseOK  bool
	escaped   map[*ir.Value]bool
	escapeOK  bool
	liveOut   [][]ir.ID
	liveOrder []*ir.Block
}

// NewCache returns an empty cache for f.
func NewCache(f *ir.Func) *Cache {
	return &Cache{fn: f}
}

// Func returns the function this cache serves.
func (c *Cache) Func() *ir.Func { return c.fn }

// Invalidate drops the named analyses. Unknown names are ignored here;
// the pass manager validates pass declarations up front.
func (c *Cache) Invalidate(names ...string) {
	for _, n := range names {
		switch n {
		case Dominance:
			c.domValid = false
			c.frontier = nil
		case DefUse:
			c.defUseOK = false
			c.users = nil
		case Escape:
			c.escapeOK = false
			c.escaped = nil
		case Liveness:
			c.liveOut = nil
			c.liveOrder = nil
		}
	}
}

// InvalidateAll drops every cached analysis.
func (c *Cache) InvalidateAll() {
	c.Invalidate(All...)
}

// EnsureDom recomputes the dominator tree if a CFG edit invalidated it.
func (c *Cache) EnsureDom() {
	if !c.domValid {
		ir.ComputeDom(c.fn)
		c.domValid = true
	}
}

// DomFrontier returns the dominance frontier, indexed by block ID.
func (c *Cache) DomFrontier() [][]*ir.Block {
	c.EnsureDom()
	if c.frontier == nil {
		c.frontier = ir.ComputeDomFrontier(c.fn)
	}
	return c.frontier
}
