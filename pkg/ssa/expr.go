package ssa

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/checker"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

func (p *Procedure) typeOf(n *ast.Node) types.Type {
	t := p.info().TypeOf(n)
	if t != nil && types.IsUntyped(t) {
		t = types.Default(t)
	}
	return t
}

// buildExprAs builds n and converts the result to t.
func (p *Procedure) buildExprAs(n *ast.Node, t types.Type) Value {
	return p.emitConv(p.buildExpr(n), t)
}

func (p *Procedure) buildExpr(n *ast.Node) Value {
	tv, ok := p.info().Types[n]
	if !ok {
		fatalf(n.Tok, "expression `%s` has no type", ast.ExprString(n))
	}
	t := tv.Type
	if t != nil && types.IsUntyped(t) {
		t = types.Default(t)
	}
	if tv.Mode == checker.ModeConstant {
		return p.constant(t, tv.Value)
	}

	switch d := n.Data.(type) {
	case ast.ParenExprNode:
		return p.buildExpr(d.Expr)

	case ast.IdentNode:
		return p.buildIdent(n)

	case ast.ImplicitNode:
		return p.emitLoad(p.Module.contextGlobal())

	case ast.ProcLitNode:
		if lit, ok := p.Module.procLits[n]; ok {
			return lit
		}
		fatalf(n.Tok, "procedure literal was never checked")

	case ast.CompoundLitNode:
		return p.emitLoad(p.buildCompoundLit(n, t))

	case ast.UnaryExprNode:
		return p.buildUnary(d, t)

	case ast.DerefExprNode:
		return p.emitLoad(p.buildExpr(d.Expr))

	case ast.BinaryExprNode:
		switch {
		case d.Op == token.AndAnd || d.Op == token.OrOr:
			return p.buildLogical(n, t)
		case d.Op.IsComparison():
			ot := p.operandType(d.Left, d.Right)
			x := p.buildExprAs(d.Left, ot)
			y := p.buildExprAs(d.Right, ot)
			return p.emitBinary(d.Op, x, y, t)
		}
		x := p.buildExpr(d.Left)
		y := p.buildExpr(d.Right)
		return p.emitArith(n.Tok, d.Op, x, y, t)

	case ast.TernaryExprNode:
		res := p.emitLocal(nil, t, false)
		then := p.addBlock("ternary.then", n)
		els := p.newBlock("ternary.else", n)
		done := p.newBlock("ternary.done", n)
		p.buildCond(d.Cond, then, els)

		p.curr = then
		p.emitStore(res, p.buildExprAs(d.X, t))
		p.emitJump(done)

		p.appendBlock(els)
		p.curr = els
		p.emitStore(res, p.buildExprAs(d.Y, t))
		p.emitJump(done)

		p.appendBlock(done)
		p.curr = done
		return p.emitLoad(res)

	case ast.SelectorExprNode:
		if _, ok := p.info().Selections[n]; ok {
			return p.emitLoad(p.buildSelectorAddr(n, d))
		}
		e := p.info().Uses[ast.Unparen(d.Selector)]
		return p.entityValue(n, e)

	case ast.IndexExprNode:
		return p.emitLoad(p.buildIndexAddr(n, d))

	case ast.SliceExprNode:
		return p.buildSlice(d, t)

	case ast.CallExprNode:
		return p.buildCall(n, d, tv.Type)

	case ast.TypeAssertionNode:
		fatalf(n.Tok, "type assertions are not supported")
	}

	fatalf(n.Tok, "unexpected expression `%s`", ast.ExprString(n))
	return nil
}

// constant materializes a checked constant of type t.
func (p *Procedure) constant(t types.Type, v exact.Value) Value {
	switch v.Kind() {
	case exact.String:
		g := p.Module.stringGlobal(v.Str())
		return p.emitConv(p.emitLoad(g), t)
	case exact.Compound:
		return p.emitLoad(p.buildCompoundLit(v.Node(), t))
	}
	return &Constant{Typ: t, Value: convertConstant(v, t)}
}

func (p *Procedure) buildIdent(n *ast.Node) Value {
	return p.entityValue(n, p.info().ObjectOf(n))
}

func (p *Procedure) entityValue(n *ast.Node, e *types.Entity) Value {
	if e == nil {
		fatalf(n.Tok, "unresolved identifier `%s`", ast.ExprString(n))
	}
	switch e.Kind {
	case types.EntityProcedure:
		if v, ok := p.Module.values[e]; ok {
			return v
		}
		fatalf(n.Tok, "procedure `%s` was never checked", e.Name)
	case types.EntityNil:
		return &Constant{Typ: p.typeOf(n)}
	case types.EntityVariable:
		return p.emitLoad(p.varAddr(n, e))
	}
	fatalf(n.Tok, "`%s` is not a value", e.Name)
	return nil
}

// operandType is the type both sides of a comparison are converted to.
func (p *Procedure) operandType(x, y *ast.Node) types.Type {
	if t := p.info().TypeOf(x); t != nil && !types.IsUntyped(t) {
		return t
	}
	if t := p.info().TypeOf(y); t != nil && !types.IsUntyped(t) {
		return t
	}
	return p.typeOf(x)
}

func zeroValue(t types.Type) exact.Value {
	switch {
	case types.IsFloat(t):
		return exact.MakeFloat(0)
	case types.IsBoolean(t):
		return exact.MakeBool(false)
	}
	return exact.MakeInt64(0)
}

func (p *Procedure) buildUnary(d ast.UnaryExprNode, t types.Type) Value {
	switch d.Op {
	case token.And:
		return p.buildAddr(d.Expr)
	case token.Plus:
		return p.buildExprAs(d.Expr, t)
	case token.Minus:
		x := p.buildExprAs(d.Expr, t)
		return p.emitBinary(token.Minus, &Constant{Typ: t, Value: zeroValue(t)}, x, t)
	case token.Xor:
		x := p.buildExprAs(d.Expr, t)
		return p.emitBinary(token.Xor, x, &Constant{Typ: t, Value: exact.MakeInt64(-1)}, t)
	case token.Not:
		x := p.buildExprAs(d.Expr, t)
		return p.emitBinary(token.Xor, x, &Constant{Typ: t, Value: exact.MakeBool(true)}, t)
	}
	fatalf(d.Expr.Tok, "unknown unary operator `%s`", d.Op)
	return nil
}

// emitArith emits x op y of result type t, including pointer offsets.
func (p *Procedure) emitArith(pos token.Token, op token.Type, x, y Value, t types.Type) Value {
	if types.IsVector(t) {
		fatalf(pos, "vector arithmetic is not supported")
	}
	xt, yt := x.Type(), y.Type()
	switch {
	case types.IsPointer(xt) && !types.IsPointer(yt):
		off := p.emitConv(y, types.Typ[types.Int])
		if op == token.Minus {
			off = p.emitBinary(token.Minus, intConst(0), off, types.Typ[types.Int])
		}
		return p.emitPtrOffset(x, off)
	case types.IsPointer(yt) && !types.IsPointer(xt) && op == token.Plus:
		return p.emitPtrOffset(y, x)
	}

	x = p.emitConv(x, t)
	y = p.emitConv(y, t)
	if op == token.AndNot {
		y = p.emitBinary(token.Xor, y, &Constant{Typ: t, Value: exact.MakeInt64(-1)}, t)
		op = token.And
	}
	return p.emitBinary(op, x, y, t)
}

// buildLogical materializes a short-circuit expression as a boolean.
func (p *Procedure) buildLogical(n *ast.Node, t types.Type) Value {
	res := p.emitLocal(nil, t, false)
	yes := p.addBlock("logical.true", n)
	no := p.newBlock("logical.false", n)
	done := p.newBlock("logical.done", n)
	p.buildCond(n, yes, no)

	p.curr = yes
	p.emitStore(res, &Constant{Typ: t, Value: exact.MakeBool(true)})
	p.emitJump(done)

	p.appendBlock(no)
	p.curr = no
	p.emitStore(res, &Constant{Typ: t, Value: exact.MakeBool(false)})
	p.emitJump(done)

	p.appendBlock(done)
	p.curr = done
	return p.emitLoad(res)
}

// buildCond branches to t when n holds and to f otherwise. `&&` and `||`
// become extra blocks instead of values.
func (p *Procedure) buildCond(n *ast.Node, t, f *Block) {
	switch d := ast.Unparen(n).Data.(type) {
	case ast.UnaryExprNode:
		if d.Op == token.Not {
			p.buildCond(d.Expr, f, t)
			return
		}
	case ast.BinaryExprNode:
		switch d.Op {
		case token.AndAnd:
			rhs := p.addBlock("cmp.and", n)
			p.buildCond(d.Left, rhs, f)
			p.curr = rhs
			p.buildCond(d.Right, t, f)
			return
		case token.OrOr:
			rhs := p.addBlock("cmp.or", n)
			p.buildCond(d.Left, t, rhs)
			p.curr = rhs
			p.buildCond(d.Right, t, f)
			return
		}
	}
	p.emitIf(p.buildExpr(n), t, f)
}

// buildAddr returns the address of the storage n denotes. Values without
// storage are spilled to a temporary.
func (p *Procedure) buildAddr(n *ast.Node) Value {
	if tv, ok := p.info().Types[n]; !ok || tv.Mode != checker.ModeConstant {
		switch d := n.Data.(type) {
		case ast.ParenExprNode:
			return p.buildAddr(d.Expr)
		case ast.IdentNode:
			if e := p.info().ObjectOf(n); e != nil && e.Kind == types.EntityVariable {
				return p.varAddr(n, e)
			}
		case ast.SelectorExprNode:
			if _, ok := p.info().Selections[n]; ok {
				return p.buildSelectorAddr(n, d)
			}
			if e := p.info().Uses[ast.Unparen(d.Selector)]; e != nil && e.Kind == types.EntityVariable {
				return p.varAddr(n, e)
			}
		case ast.IndexExprNode:
			return p.buildIndexAddr(n, d)
		case ast.DerefExprNode:
			return p.buildExpr(d.Expr)
		case ast.CompoundLitNode:
			return p.buildCompoundLit(n, p.typeOf(n))
		}
	}

	v := p.buildExpr(n)
	tmp := p.emitLocal(nil, v.Type(), false)
	p.emitStore(tmp, v)
	return tmp
}

func (p *Procedure) varAddr(n *ast.Node, e *types.Entity) Value {
	if uv, ok := p.info().UsingVars[e]; ok {
		return p.emitSelection(p.varAddr(n, uv.Parent), uv.Parent.Type, uv.Selection)
	}
	if v, ok := p.locals[e]; ok {
		return v
	}
	if v, ok := p.Module.values[e].(*Global); ok {
		return v
	}
	fatalf(n.Tok, "no storage for `%s`", e.Name)
	return nil
}

// emitSelection follows sel from addr, which points at a value of type t.
// Pointers met along the path are loaded through.
func (p *Procedure) emitSelection(addr Value, t types.Type, sel types.Selection) Value {
	for _, i := range sel.Index {
		if types.IsPointer(t) {
			addr = p.emitLoad(addr)
			t = types.Deref(t)
		}
		ft := types.FieldType(t, i)
		if ft == nil {
			fatalf(token.Token{}, "`%s` has no field %d", t, i)
		}
		addr = p.emitStructGEP(addr, i, ft)
		t = ft
	}
	return addr
}

// baseAddr returns the address of the value x denotes, loading through x
// when it is a pointer.
func (p *Procedure) baseAddr(x *ast.Node) (Value, types.Type) {
	t := p.typeOf(x)
	if types.IsPointer(t) && !types.IsRawptr(t) {
		return p.buildExpr(x), types.Deref(t)
	}
	return p.buildAddr(x), t
}

func (p *Procedure) buildSelectorAddr(n *ast.Node, d ast.SelectorExprNode) Value {
	sel := p.info().Selections[n]
	base, t := p.baseAddr(d.Expr)
	return p.emitSelection(base, t, sel)
}

func (p *Procedure) buildIndexAddr(n *ast.Node, d ast.IndexExprNode) Value {
	if types.IsMap(types.Deref(p.typeOf(d.Expr))) {
		fatalf(n.Tok, "map indexing is not supported")
	}
	base, t := p.baseAddr(d.Expr)
	if sel, ok := p.info().Selections[n]; ok {
		base = p.emitSelection(base, t, sel)
		t = sel.Entity.Type
		if types.IsPointer(t) {
			base = p.emitLoad(base)
			t = types.Deref(t)
		}
	}

	idx := p.buildExprAs(d.Index, types.Typ[types.Int])
	switch b := types.Base(t).(type) {
	case *types.Array:
		return p.emitArrayGEP(base, idx, b.Elem)
	case *types.Vector:
		return p.emitArrayGEP(base, idx, b.Elem)
	case *types.Slice, *types.DynamicArray, *types.Basic:
		data := p.emitLoad(p.emitStructGEP(base, 0, types.FieldType(t, 0)))
		return p.emitPtrOffset(data, idx)
	}
	fatalf(n.Tok, "cannot index `%s`", t)
	return nil
}

// buildSlice lowers x[low:high:max] into a new header.
func (p *Procedure) buildSlice(d ast.SliceExprNode, t types.Type) Value {
	base, bt := p.baseAddr(d.Expr)

	var data, length, capacity Value
	switch b := types.Base(bt).(type) {
	case *types.Array:
		data = p.emitArrayGEP(base, intConst(0), b.Elem)
		length = intConst(b.Count)
		capacity = length
	case *types.Slice, *types.DynamicArray:
		data = p.emitLoad(p.emitStructGEP(base, 0, types.FieldType(bt, 0)))
		length = p.emitLoad(p.emitStructGEP(base, 1, types.Typ[types.Int]))
		capacity = p.emitLoad(p.emitStructGEP(base, 2, types.Typ[types.Int]))
	default:
		if !types.IsString(bt) {
			fatalf(d.Expr.Tok, "cannot slice `%s`", bt)
		}
		data = p.emitLoad(p.emitStructGEP(base, 0, types.FieldType(bt, 0)))
		length = p.emitLoad(p.emitStructGEP(base, 1, types.Typ[types.Int]))
		capacity = length
	}

	intType := types.Typ[types.Int]
	low := Value(intConst(0))
	if d.Low != nil {
		low = p.buildExprAs(d.Low, intType)
	}
	// Explicit bounds after `..` include the element they name.
	closed := d.Interval0.Type == token.Dots
	bound := func(x *ast.Node, def Value) Value {
		if x == nil {
			return def
		}
		v := p.buildExprAs(x, intType)
		if closed {
			v = p.emitBinary(token.Plus, v, intConst(1), intType)
		}
		return v
	}
	high := bound(d.High, length)
	limit := bound(d.Max, capacity)

	newLen := p.emitBinary(token.Minus, high, low, intType)
	newCap := p.emitBinary(token.Minus, limit, low, intType)
	return p.emitSliceValue(t, p.emitPtrOffset(data, low), newLen, newCap)
}

// buildCompoundLit fills a fresh local of type t from the literal n and
// returns its address.
func (p *Procedure) buildCompoundLit(n *ast.Node, t types.Type) Value {
	d := n.Data.(ast.CompoundLitNode)
	v := p.emitLocal(nil, t, true)
	if len(d.Elems) == 0 {
		return v
	}

	switch b := types.Base(t).(type) {
	case *types.Record:
		if d.Elems[0].Type == ast.FieldValue {
			for _, elem := range d.Elems {
				fv := elem.Data.(ast.FieldValueNode)
				sel := types.LookupField(t, ast.IdentName(fv.Field), false)
				i := sel.Index[0]
				p.emitStore(p.emitStructGEP(v, i, b.Fields[i].Type), p.buildExpr(fv.Value))
			}
			break
		}
		for i, elem := range d.Elems {
			f := b.FieldsInSrcOrder[i]
			p.emitStore(p.emitStructGEP(v, f.FieldIndex, f.Type), p.buildExpr(elem))
		}

	case *types.Array:
		for i, elem := range d.Elems {
			p.emitStore(p.emitArrayGEP(v, intConst(int64(i)), b.Elem), p.buildExpr(elem))
		}

	case *types.Vector:
		if len(d.Elems) == 1 && b.Count > 1 {
			x := p.buildExprAs(d.Elems[0], b.Elem)
			for i := int64(0); i < b.Count; i++ {
				p.emitStore(p.emitArrayGEP(v, intConst(i), b.Elem), x)
			}
			break
		}
		for i, elem := range d.Elems {
			p.emitStore(p.emitArrayGEP(v, intConst(int64(i)), b.Elem), p.buildExpr(elem))
		}

	case *types.Slice:
		count := int64(len(d.Elems))
		backing := p.emitLocal(nil, types.NewArray(b.Elem, count), true)
		for i, elem := range d.Elems {
			p.emitStore(p.emitArrayGEP(backing, intConst(int64(i)), b.Elem), p.buildExpr(elem))
		}
		hdr := p.emitSliceValue(t, p.emitArrayGEP(backing, intConst(0), b.Elem), intConst(count), intConst(count))
		p.emitStore(v, hdr)

	default:
		fatalf(n.Tok, "compound literals of type `%s` are not supported", t)
	}
	return v
}
