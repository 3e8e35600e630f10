// Package irgen lowers the typed declaration tree into SSA IR.
//
// The builder is deliberately naive about data flow: every local lives in
// a stack slot (OpAlloc) accessed by loads and stores, and aggregates are
// flat memory. mem2reg promotes the non-escaping ones to scalar SSA
// values afterwards; keeping the builder dumb keeps it correct.
//
// Control flow is explicit: if/else and loops become blocks and branches,
// and every merge point carries its result through a block parameter.
package irgen

import (
	"github.com/covenant-lang/covenant/pkg/decl"
	"github.com/covenant-lang/covenant/pkg/ir"
	"github.com/covenant-lang/covenant/pkg/source"
	"github.com/covenant-lang/covenant/pkg/storage"
	"github.com/covenant-lang/covenant/pkg/types"
	"github.com/covenant-lang/covenant/pkg/vm"
)

// Builder lowers one contract's functions. The storage layout must be
// fully assigned before any function referencing state is lowered.
type Builder struct {
	contract *decl.Contract
	resolver *decl.Resolver
	layout   *storage.Layout
	mod      *ir.Module

	// sigs caches resolved signatures for call lowering.
	sigs map[string]*signature
}

type signature struct {
	params []types.Type
	ret    types.Type
	effect ir.Effect
}

// NewBuilder prepares a builder for the given contract and completed
// storage layout.
func NewBuilder(c *decl.Contract, layout *storage.Layout) *Builder {
	return &Builder{
		contract: c,
		resolver: decl.NewResolver(c),
		layout:   layout,
		sigs:     make(map[string]*signature),
	}
}

// BuildModule lowers every function and returns the populated module.
// Type-resolution failures are internal compiler errors: the front end
// guarantees a fully-resolved tree.
func (b *Builder) BuildModule() (*ir.Module, error) {
	b.mod = ir.NewModule(b.contract.Name)

	var diags ir.DiagnosticList

	// Register all signatures first so calls can be lowered in one pass
	// regardless of declaration order.
	for _, fd := range b.contract.Funcs {
		sig, err := b.resolveSignature(fd)
		if err != nil {
			if !diags.Add(err) {
				return nil, err
			}
			continue
		}
		b.sigs[fd.Name] = sig
		f := b.mod.NewFunc(fd.Name, sig.effect, sig.params, sig.ret, fd.Pos)
		f.Exported = fd.Exported
	}
	if len(diags) > 0 {
		// A missing signature would cascade into spurious errors in every
		// caller, so stop before lowering bodies.
		return nil, diags
	}

	for _, fd := range b.contract.Funcs {
		if err := b.buildFunc(fd); err != nil {
			if !diags.Add(err) {
				return nil, err
			}
		}
	}
	if len(diags) > 0 {
		return nil, diags
	}
	return b.mod, nil
}

func (b *Builder) resolveSignature(fd *decl.FuncDecl) (*signature, error) {
	sig := &signature{effect: ir.Effect(fd.Effect)}
	if len(fd.Params) > vm.MaxCallArgs {
		return nil, ir.Errorf(fd.Pos, "function %s: %d parameters exceed the calling convention limit of %d",
			fd.Name, len(fd.Params), vm.MaxCallArgs)
	}
	for _, p := range fd.Params {
		t, err := b.resolver.Resolve(p.Type)
		if err != nil {
			return nil, ir.ICE(fd.Name, "irgen", "parameter %s: %v", p.Name, err)
		}
		if !types.IsScalar(t) {
			return nil, ir.Errorf(fd.Pos, "function %s: aggregate parameter %s is not supported; pass fields individually", fd.Name, p.Name)
		}
		sig.params = append(sig.params, t)
	}
	if fd.Return != nil {
		t, err := b.resolver.Resolve(*fd.Return)
		if err != nil {
			return nil, ir.ICE(fd.Name, "irgen", "return type: %v", err)
		}
		if !types.IsScalar(t) {
			return nil, ir.Errorf(fd.Pos, "function %s: aggregate return type is not supported", fd.Name)
		}
		sig.ret = t
	}
	return sig, nil
}

// funcBuilder carries per-function lowering state.
type funcBuilder struct {
	b    *Builder
	f    *ir.Func
	fd   *decl.FuncDecl
	cur  *ir.Block // nil once the current path has terminated
	vars []scope
	loop []loopFrame
}

type scope map[string]*ir.Value // name -> stack slot (OpAlloc)

type loopFrame struct {
	head *ir.Block // continue target
	exit *ir.Block // break target
}

func (b *Builder) buildFunc(fd *decl.FuncDecl) error {
	f := b.mod.FuncNamed(fd.Name)
	fb := &funcBuilder{b: b, f: f, fd: fd, cur: f.Entry}
	fb.pushScope()

	// Spill every parameter into a stack slot so assignments to
	// parameters work like any other local; mem2reg undoes this.
	for i, p := range fd.Params {
		pv := f.Entry.Params[i]
		slot := fb.alloc(pv.Type, p.Name, fd.Pos)
		fb.emitStore(slot, pv, fd.Pos)
		fb.declare(p.Name, slot)
	}

	if err := fb.stmts(fd.Body); err != nil {
		return err
	}

	if fb.cur != nil {
		if f.ReturnType != nil {
			// The front end proved every path returns; a live fallthrough
			// in a value-returning function means it handed us a broken tree.
			return ir.ICE(f.Name, "irgen", "fallthrough at end of value-returning function")
		}
		fb.cur.Kind = ir.BlockReturn
		fb.cur = nil
	}
	return nil
}

func (fb *funcBuilder) pushScope()  { fb.vars = append(fb.vars, make(scope)) }
func (fb *funcBuilder) popScope()   { fb.vars = fb.vars[:len(fb.vars)-1] }
func (fb *funcBuilder) declare(name string, slot *ir.Value) {
	fb.vars[len(fb.vars)-1][name] = slot
}

func (fb *funcBuilder) lookup(name string) (*ir.Value, bool) {
	for i := len(fb.vars) - 1; i >= 0; i-- {
		if v, ok := fb.vars[i][name]; ok {
			return v, true
		}
	}
	return nil, false
}

// alloc creates a stack slot for a value of type t in the entry block, so
// every slot dominates all its uses.
func (fb *funcBuilder) alloc(t types.Type, name string, pos source.Pos) *ir.Value {
	v := fb.f.NewValueFront(fb.f.Entry, ir.OpAlloc, &types.Pointer{Elem: t})
	v.Aux = name
	v.Pos = pos
	return v
}

func (fb *funcBuilder) emit(op ir.Op, t types.Type, pos source.Pos, args ...*ir.Value) *ir.Value {
	v := fb.f.NewValue(fb.cur, op, t, args...)
	v.Pos = pos
	return v
}

func (fb *funcBuilder) emitStore(addr, val *ir.Value, pos source.Pos) {
	fb.emit(ir.OpStore, nil, pos, addr, val)
}

// stmts lowers a statement list. Statements after a terminator are
// unreachable; the front end warns about them, the builder just stops.
func (fb *funcBuilder) stmts(list []*decl.Stmt) error {
	for _, s := range list {
		if fb.cur == nil {
			return nil
		}
		if err := fb.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (fb *funcBuilder) stmt(s *decl.Stmt) error {
	switch s.Kind {
	case decl.StmtLet:
		return fb.stmtLet(s)
	case decl.StmtAssign:
		return fb.stmtAssign(s)
	case decl.StmtExpr:
		_, err := fb.expr(s.Value)
		return err
	case decl.StmtIf:
		return fb.stmtIf(s)
	case decl.StmtWhile:
		return fb.stmtWhile(s)
	case decl.StmtReturn:
		return fb.stmtReturn(s)
	case decl.StmtAbort:
		fb.cur.Kind = ir.BlockAbort
		fb.cur = nil
		return nil
	case decl.StmtBreak:
		if len(fb.loop) == 0 {
			return ir.ICE(fb.f.Name, "irgen", "break outside loop at %s", s.Pos)
		}
		fb.cur.Kind = ir.BlockPlain
		fb.cur.AddEdgeTo(fb.loop[len(fb.loop)-1].exit)
		fb.cur = nil
		return nil
	case decl.StmtContinue:
		if len(fb.loop) == 0 {
			return ir.ICE(fb.f.Name, "irgen", "continue outside loop at %s", s.Pos)
		}
		fb.cur.Kind = ir.BlockPlain
		fb.cur.AddEdgeTo(fb.loop[len(fb.loop)-1].head)
		fb.cur = nil
		return nil
	}
	return ir.ICE(fb.f.Name, "irgen", "invalid statement kind %d at %s", s.Kind, s.Pos)
}

func (fb *funcBuilder) stmtLet(s *decl.Stmt) error {
	t, err := fb.exprType(s.Value)
	if err != nil {
		return err
	}
	slot := fb.alloc(t, s.Name, s.Pos)
	fb.declare(s.Name, slot)
	if types.IsAggregate(t) {
		return fb.exprInto(slot, s.Value)
	}
	v, err := fb.expr(s.Value)
	if err != nil {
		return err
	}
	fb.emitStore(slot, v, s.Pos)
	return nil
}

func (fb *funcBuilder) stmtAssign(s *decl.Stmt) error {
	pl, err := fb.place(s.Target)
	if err != nil {
		return err
	}
	if types.IsAggregate(pl.typ) {
		if pl.kind != placeMem {
			return ir.Errorf(s.Pos, "cannot assign a whole aggregate to storage; assign fields individually")
		}
		return fb.exprInto(pl.addr, s.Value)
	}
	v, err := fb.expr(s.Value)
	if err != nil {
		return err
	}
	switch pl.kind {
	case placeMem:
		fb.emitStore(pl.addr, v, s.Pos)
	case placeSlot:
		fb.emit(ir.OpSStore, nil, s.Pos, pl.key, v)
	}
	return nil
}

func (fb *funcBuilder) stmtIf(s *decl.Stmt) error {
	cond, err := fb.expr(s.Cond)
	if err != nil {
		return err
	}
	thenB := fb.f.NewBlock(ir.BlockPlain)
	elseB := fb.f.NewBlock(ir.BlockPlain)

	fb.cur.Kind = ir.BlockIf
	fb.cur.SetControl(cond)
	fb.cur.AddEdgeTo(thenB)
	fb.cur.AddEdgeTo(elseB)

	var merge *ir.Block

	fb.cur = thenB
	fb.pushScope()
	if err := fb.stmts(s.Then); err != nil {
		return err
	}
	fb.popScope()
	if fb.cur != nil {
		if merge == nil {
			merge = fb.f.NewBlock(ir.BlockPlain)
		}
		fb.cur.Kind = ir.BlockPlain
		fb.cur.AddEdgeTo(merge)
	}

	fb.cur = elseB
	fb.pushScope()
	if err := fb.stmts(s.Else); err != nil {
		return err
	}
	fb.popScope()
	if fb.cur != nil {
		if merge == nil {
			merge = fb.f.NewBlock(ir.BlockPlain)
		}
		fb.cur.Kind = ir.BlockPlain
		fb.cur.AddEdgeTo(merge)
	}

	fb.cur = merge // nil when both arms terminated
	return nil
}

func (fb *funcBuilder) stmtWhile(s *decl.Stmt) error {
	head := fb.f.NewBlock(ir.BlockPlain)
	body := fb.f.NewBlock(ir.BlockPlain)
	exit := fb.f.NewBlock(ir.BlockPlain)

	fb.cur.Kind = ir.BlockPlain
	fb.cur.AddEdgeTo(head)

	fb.cur = head
	cond, err := fb.expr(s.Cond)
	if err != nil {
		return err
	}
	fb.cur.Kind = ir.BlockIf
	fb.cur.SetControl(cond)
	fb.cur.AddEdgeTo(body)
	fb.cur.AddEdgeTo(exit)

	fb.cur = body
	fb.loop = append(fb.loop, loopFrame{head: head, exit: exit})
	fb.pushScope()
	if err := fb.stmts(s.Then); err != nil {
		return err
	}
	fb.popScope()
	fb.loop = fb.loop[:len(fb.loop)-1]
	if fb.cur != nil {
		fb.cur.Kind = ir.BlockPlain
		fb.cur.AddEdgeTo(head) // back edge
	}

	fb.cur = exit
	return nil
}

func (fb *funcBuilder) stmtReturn(s *decl.Stmt) error {
	if s.Value == nil {
		fb.cur.Kind = ir.BlockReturn
		fb.cur = nil
		return nil
	}
	v, err := fb.expr(s.Value)
	if err != nil {
		return err
	}
	fb.cur.Kind = ir.BlockReturn
	fb.cur.SetControl(v)
	fb.cur = nil
	return nil
}

// exprType resolves the front end's type annotation on e.
func (fb *funcBuilder) exprType(e *decl.Expr) (types.Type, error) {
	if e.Type == nil {
		return nil, ir.ICE(fb.f.Name, "irgen", "expression at %s has no resolved type", e.Pos)
	}
	t, err := fb.b.resolver.Resolve(*e.Type)
	if err != nil {
		return nil, ir.ICE(fb.f.Name, "irgen", "expression at %s: %v", e.Pos, err)
	}
	return t, nil
}

// stateField resolves a state-reference path against the storage layout.
func (fb *funcBuilder) stateField(path []string, pos source.Pos) (storage.Entry, error) {
	if len(path) == 0 {
		return storage.Entry{}, ir.ICE(fb.f.Name, "irgen", "empty state path at %s", pos)
	}
	fp := storage.FieldPath{Namespace: path[:len(path)-1], Name: path[len(path)-1]}
	entry, ok := fb.b.layout.Lookup(fp)
	if !ok {
		return storage.Entry{}, ir.ICE(fb.f.Name, "irgen", "state field %s not in layout", fp)
	}
	return entry, nil
}

func (fb *funcBuilder) constWord(w types.Word, pos source.Pos) *ir.Value {
	v := fb.emit(ir.OpConstWord, types.MakeBasic(types.U256), pos)
	v.Aux = w
	return v
}
