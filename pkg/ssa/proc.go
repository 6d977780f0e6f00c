package ssa

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/checker"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

// Procedure is a lowered procedure. Foreign and runtime procedures have no
// blocks.
type Procedure struct {
	Module *Module
	Name   string
	Entity *types.Entity
	Sig    *types.Proc
	Node   *ast.Node
	Body   *ast.Node
	Tags   ast.ProcTag
	Scope  types.ScopeID
	Params []*Param
	Blocks []*Block

	curr    *Block
	scope   types.ScopeID
	locals  map[*types.Entity]Value
	targets *targetList
	defers  []deferFrame
}

func newProcedure(m *Module, pb *checker.ProcBody) *Procedure {
	p := &Procedure{
		Module: m,
		Name:   pb.Name,
		Entity: pb.Entity,
		Sig:    pb.Type,
		Node:   pb.Lit,
		Body:   pb.Body,
		Tags:   pb.Tags,
		Scope:  pb.Scope,
	}
	if pb.Lit != nil {
		if lit, ok := pb.Lit.Data.(ast.ProcLitNode); ok && lit.LinkName != "" {
			p.Name = lit.LinkName
		}
	}
	if pb.Type != nil && pb.Type.Params != nil {
		for i, v := range pb.Type.Params.Vars {
			p.Params = append(p.Params, &Param{Entity: v, Parent: p, Index: i})
		}
	}
	return p
}

// IsForeign reports whether the body of p lives outside the module.
func (p *Procedure) IsForeign() bool { return p.Body == nil }

func (p *Procedure) info() *checker.Info { return p.Module.Info }

func (p *Procedure) build() {
	p.locals = make(map[*types.Entity]Value)
	p.scope = p.Scope

	p.curr = p.addBlock("entry", p.Body)
	for _, prm := range p.Params {
		e := prm.Entity
		if e.Name == "" || e.Name == "_" {
			continue
		}
		local := p.emitLocal(e, e.Type, false)
		p.emitStore(local, prm)
		p.locals[e] = local
	}

	body, _ := p.Body.Data.(ast.BlockStmtNode)
	p.defers = []deferFrame{{scope: p.scope}}
	p.buildStmtList(body.Stmts)
	p.emitDefers(0)
	p.defers = nil

	if p.curr != nil {
		if p.Sig.ResultCount() == 0 {
			p.emitRet(nil)
		} else {
			p.emitUnreachable()
		}
	}
}

// number assigns block IDs and result registers in layout order.
func (p *Procedure) number() {
	reg := 0
	for i, b := range p.Blocks {
		b.ID = i
		for _, in := range b.Instrs {
			in.ID = -1
			if in.HasResult() {
				in.ID = reg
				reg++
			}
		}
	}
}

func (p *Procedure) newBlock(label string, node *ast.Node) *Block {
	scope := p.scope
	if node != nil {
		if s, ok := p.info().Scopes[node]; ok {
			scope = s
		}
	}
	return &Block{ID: -1, Label: label, Node: node, Scope: scope, Parent: p}
}

func (p *Procedure) appendBlock(b *Block) {
	b.ID = len(p.Blocks)
	p.Blocks = append(p.Blocks, b)
}

func (p *Procedure) addBlock(label string, node *ast.Node) *Block {
	b := p.newBlock(label, node)
	p.appendBlock(b)
	return b
}

// emit appends i to the current block. Without a current block the code is
// unreachable and i is dropped.
func (p *Procedure) emit(i *Instr) *Instr {
	i.ID = -1
	if p.curr == nil {
		return i
	}
	i.Block = p.curr
	p.curr.Instrs = append(p.curr.Instrs, i)
	return i
}

func (p *Procedure) emitLocal(e *types.Entity, t types.Type, zero bool) *Instr {
	return p.emit(&Instr{Kind: InstrLocal, Entity: e, Typ: types.NewPointer(t), ZeroInit: zero})
}

// emitStore converts val to the type addr points at.
func (p *Procedure) emitStore(addr, val Value) {
	val = p.emitConv(val, types.Deref(addr.Type()))
	p.emit(&Instr{Kind: InstrStore, Addr: addr, Val: val})
}

func (p *Procedure) emitLoad(addr Value) Value {
	return p.emit(&Instr{Kind: InstrLoad, Addr: addr, Typ: types.Deref(addr.Type())})
}

func intConst(i int64) *Constant {
	return &Constant{Typ: types.Typ[types.Int], Value: exact.MakeInt64(i)}
}

func index32(i int) *Constant {
	return &Constant{Typ: types.Typ[types.I32], Value: exact.MakeInt64(int64(i))}
}

// emitStructGEP addresses field i of the aggregate addr points at.
func (p *Procedure) emitStructGEP(addr Value, i int, elem types.Type) Value {
	return p.emit(&Instr{
		Kind:     InstrGetElementPtr,
		Addr:     addr,
		Elem:     elem,
		Indices:  []Value{index32(0), index32(i)},
		InBounds: true,
		Typ:      types.NewPointer(elem),
	})
}

// emitArrayGEP addresses element idx of the array addr points at.
func (p *Procedure) emitArrayGEP(addr, idx Value, elem types.Type) Value {
	return p.emit(&Instr{
		Kind:     InstrGetElementPtr,
		Addr:     addr,
		Elem:     elem,
		Indices:  []Value{index32(0), idx},
		InBounds: true,
		Typ:      types.NewPointer(elem),
	})
}

// emitPtrOffset steps ptr by offset elements.
func (p *Procedure) emitPtrOffset(ptr, offset Value) Value {
	elem := types.Deref(ptr.Type())
	if types.IsRawptr(ptr.Type()) {
		elem = types.Typ[types.U8]
	}
	return p.emit(&Instr{
		Kind:    InstrGetElementPtr,
		Addr:    ptr,
		Elem:    elem,
		Indices: []Value{p.emitConv(offset, types.Typ[types.Int])},
		Typ:     ptr.Type(),
	})
}

func (p *Procedure) emitBinary(op token.Type, x, y Value, t types.Type) Value {
	return p.emit(&Instr{Kind: InstrBinaryOp, Op: op, X: x, Y: y, Typ: t})
}

func (p *Procedure) emitCall(callee Value, args []Value, result types.Type) Value {
	return p.emit(&Instr{Kind: InstrCall, Callee: callee, Args: args, Typ: result})
}

func (p *Procedure) emitJump(b *Block) {
	p.emit(&Instr{Kind: InstrBr, True: b})
	p.curr = nil
}

func (p *Procedure) emitIf(cond Value, t, f *Block) {
	cond = p.emitConv(cond, types.Typ[types.Bool])
	p.emit(&Instr{Kind: InstrBr, Cond: cond, True: t, False: f})
	p.curr = nil
}

func (p *Procedure) emitRet(v Value) {
	p.emit(&Instr{Kind: InstrRet, Val: v})
	p.curr = nil
}

func (p *Procedure) emitUnreachable() {
	p.emit(&Instr{Kind: InstrUnreachable})
	p.curr = nil
}

// emitSliceValue builds a string or slice header of type t in a temporary.
func (p *Procedure) emitSliceValue(t types.Type, data, length, capacity Value) Value {
	tmp := p.emitLocal(nil, t, false)
	p.emitStore(p.emitStructGEP(tmp, 0, types.FieldType(t, 0)), data)
	p.emitStore(p.emitStructGEP(tmp, 1, types.Typ[types.Int]), length)
	if !types.IsString(t) {
		p.emitStore(p.emitStructGEP(tmp, 2, types.Typ[types.Int]), capacity)
	}
	return p.emitLoad(tmp)
}

// unpackTuple spills a multi-valued result and reads back each element.
func (p *Procedure) unpackTuple(v Value, t *types.Tuple) []Value {
	tmp := p.emitLocal(nil, t, false)
	p.emitStore(tmp, v)
	vals := make([]Value, t.Len())
	for i := range vals {
		vals[i] = p.emitLoad(p.emitStructGEP(tmp, i, t.At(i)))
	}
	return vals
}

// emitConv converts v to t. Constants are retyped in place.
func (p *Procedure) emitConv(v Value, to types.Type) Value {
	if v == nil || to == nil {
		return v
	}
	from := v.Type()
	if from == nil || types.Identical(from, to) {
		return v
	}
	if c, ok := v.(*Constant); ok && !types.IsAny(to) {
		return &Constant{Typ: to, Value: convertConstant(c.Value, to)}
	}

	fc, tc := types.Core(from), types.Core(to)
	sizes := p.Module.Sizes
	var kind ConvKind
	switch {
	case isIntLike(fc) && isIntLike(tc):
		fs, ts := sizes.SizeOf(fc), sizes.SizeOf(tc)
		switch {
		case fs == ts:
			kind = ConvBitCast
		case ts < fs:
			kind = ConvTrunc
		case types.IsUnsigned(fc) || types.IsBoolean(fc):
			kind = ConvZExt
		default:
			kind = ConvSExt
		}
	case isIntLike(fc) && types.IsFloat(tc):
		kind = ConvSIToFP
		if types.IsUnsigned(fc) {
			kind = ConvUIToFP
		}
	case types.IsFloat(fc) && isIntLike(tc):
		kind = ConvFPToSI
		if types.IsUnsigned(tc) {
			kind = ConvFPToUI
		}
	case types.IsFloat(fc) && types.IsFloat(tc):
		fs, ts := sizes.SizeOf(fc), sizes.SizeOf(tc)
		switch {
		case fs < ts:
			kind = ConvFPExt
		case fs > ts:
			kind = ConvFPTrunc
		default:
			kind = ConvBitCast
		}
	case isPtrLike(fc) && isPtrLike(tc):
		kind = ConvBitCast
	case isPtrLike(fc) && isIntLike(tc):
		kind = ConvPtrToInt
	case isIntLike(fc) && isPtrLike(tc):
		kind = ConvIntToPtr
	case types.Identical(fc, tc) || types.IsUntypedNil(from):
		kind = ConvBitCast
	default:
		fatalf(token.Token{}, "cannot convert `%s` to `%s`", from, to)
	}
	return p.emit(&Instr{Kind: InstrConvert, Conv: kind, Val: v, Typ: to})
}

func isIntLike(t types.Type) bool {
	return types.IsInteger(t) || types.IsBoolean(t)
}

func isPtrLike(t types.Type) bool {
	return types.IsPointer(t) || types.IsProc(t)
}
