package ir

import "fmt"

// BlockKind describes how a basic block terminates. Every block ends in
// exactly one terminator, encoded by its kind plus controls/successors.
type BlockKind int

const (
	BlockInvalid BlockKind = iota
	BlockPlain             // unconditional branch to Succs[0]
	BlockIf                // if Controls[0] then Succs[0] else Succs[1]
	BlockReturn            // return; Controls[0] = result (nil for void)
	BlockAbort             // revert the transaction; no successors
)

var blockKindNames = [...]string{
	BlockInvalid: "invalid",
	BlockPlain:   "jump",
	BlockIf:      "if",
	BlockReturn:  "ret",
	BlockAbort:   "abort",
}

func (k BlockKind) String() string {
	if int(k) < len(blockKindNames) {
		return blockKindNames[k]
	}
	return "unknown"
}

// Edge is one CFG edge from a block to a successor. Args carries the
// values bound to the successor's block parameters along this edge; this
// is how control-flow merges are represented without mutable variables.
type Edge struct {
	Block *Block
	Args  []*Value
}

// Block is a basic block: an ordered list of values ending in one
// terminator, plus typed parameters that receive per-edge arguments from
// predecessors.
type Block struct {
	// ID is unique within the containing Function.
	ID ID

	// Kind describes the terminator.
	Kind BlockKind

	// Params are the block parameters, each an OpParam value defined by
	// this block. Entry-block params are the function arguments.
	Params []*Value

	// Controls holds the terminator operands: the branch condition for
	// BlockIf, the result for BlockReturn (nil for void).
	Controls []*Value

	// Succs lists outgoing edges in terminator order.
	Succs []Edge

	// Preds lists predecessor blocks. The edge arguments live on the
	// predecessor's Succs entry.
	Preds []*Block

	// Values is the ordered instruction list, excluding Params.
	Values []*Value

	// Func is the containing function.
	Func *Func

	// Idom and Dominees are populated by the analysis layer and owned by
	// its cache; passes must not rely on them being current.
	Idom     *Block
	Dominees []*Block
}

// String returns the short name of the block, e.g. "b3".
func (b *Block) String() string {
	if b == nil {
		return "b?"
	}
	return fmt.Sprintf("b%d", b.ID)
}

// AddEdgeTo adds an unconditional-style edge from b to succ with the
// given block-parameter arguments, keeping Preds in sync.
func (b *Block) AddEdgeTo(succ *Block, args ...*Value) {
	for _, a := range args {
		a.Uses++
	}
	b.Succs = append(b.Succs, Edge{Block: succ, Args: args})
	succ.Preds = append(succ.Preds, b)
}

// SetControl installs v as the single terminator control.
func (b *Block) SetControl(v *Value) {
	for _, c := range b.Controls {
		if c != nil {
			c.Uses--
		}
	}
	if v != nil {
		v.Uses++
		b.Controls = []*Value{v}
	} else {
		b.Controls = nil
	}
}

// PredIndex returns the index of pred in b.Preds, or -1.
func (b *Block) PredIndex(pred *Block) int {
	for i, p := range b.Preds {
		if p == pred {
			return i
		}
	}
	return -1
}

// SuccIndex returns the index of succ in b.Succs, or -1. When a block
// branches to the same target on both edges the first index is returned.
func (b *Block) SuccIndex(succ *Block) int {
	for i, e := range b.Succs {
		if e.Block == succ {
			return i
		}
	}
	return -1
}

// removePred deletes the pred at index i, dropping the matching edge
// arguments held by the predecessor is the caller's job.
func (b *Block) removePred(i int) {
	b.Preds = append(b.Preds[:i], b.Preds[i+1:]...)
}

// RemoveEdge deletes the CFG edge from b to its i'th successor,
// releasing the edge arguments' uses and the matching Preds entry.
func (b *Block) RemoveEdge(i int) {
	e := b.Succs[i]
	for _, a := range e.Args {
		if a != nil {
			a.Uses--
		}
	}
	// Find which Preds entry of the successor corresponds to this edge:
	// the n'th occurrence of b among preds, where n counts earlier edges
	// from b to the same successor.
	n := 0
	for j := 0; j < i; j++ {
		if b.Succs[j].Block == e.Block {
			n++
		}
	}
	for j, p := range e.Block.Preds {
		if p == b {
			if n == 0 {
				e.Block.removePred(j)
				break
			}
			n--
		}
	}
	b.Succs = append(b.Succs[:i], b.Succs[i+1:]...)
}
