package ssa

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/checker"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

// calleeEntity returns the entity a call target names directly, if any.
func (p *Procedure) calleeEntity(proc *ast.Node) *types.Entity {
	switch d := proc.Data.(type) {
	case ast.IdentNode:
		return p.info().Uses[proc]
	case ast.SelectorExprNode:
		if _, ok := p.info().Selections[proc]; !ok {
			return p.info().Uses[ast.Unparen(d.Selector)]
		}
	}
	return nil
}

func (p *Procedure) buildCall(n *ast.Node, d ast.CallExprNode, t types.Type) Value {
	proc := ast.Unparen(d.Proc)
	if tv, ok := p.info().Types[proc]; ok && tv.Mode == checker.ModeType {
		return p.buildExprAs(d.Args[0], t)
	}

	var callee Value
	if e := p.calleeEntity(proc); e != nil {
		switch e.Kind {
		case types.EntityBuiltin:
			return p.buildBuiltin(n, d, e, t)
		case types.EntityProcedure:
			callee = p.entityValue(proc, e)
		}
	}
	if callee == nil {
		callee = p.buildExpr(proc)
	}
	sig, ok := types.Base(callee.Type()).(*types.Proc)
	if !ok {
		fatalf(n.Tok, "cannot call `%s`", callee.Type())
	}

	args := p.buildArgs(d, sig)
	var result types.Type
	switch sig.ResultCount() {
	case 0:
	case 1:
		result = sig.Results.At(0)
	default:
		result = sig.Results
	}
	return p.emitCall(callee, args, result)
}

// buildArgs evaluates the arguments of a call left to right, unpacking a
// multi-valued argument and packing trailing variadic arguments into a
// slice.
func (p *Procedure) buildArgs(d ast.CallExprNode, sig *types.Proc) []Value {
	var vals []Value
	for _, a := range d.Args {
		v := p.buildExpr(a)
		if tup, ok := v.Type().(*types.Tuple); ok {
			vals = append(vals, p.unpackTuple(v, tup)...)
			continue
		}
		vals = append(vals, v)
	}

	n := sig.ParamCount()
	if sig.Variadic && d.Ellipsis.Type != token.Dots && len(vals) >= n-1 {
		st := sig.Params.At(n - 1)
		vals = append(vals[:n-1:n-1], p.packVariadic(vals[n-1:], st))
	}
	for i := range vals {
		if i < n {
			vals[i] = p.emitConv(vals[i], sig.Params.At(i))
		}
	}
	return vals
}

func (p *Procedure) packVariadic(extra []Value, st types.Type) Value {
	if len(extra) == 0 {
		return &Constant{Typ: st}
	}
	elem := types.Base(st).(*types.Slice).Elem
	count := int64(len(extra))
	arr := p.emitLocal(nil, types.NewArray(elem, count), false)
	for i, v := range extra {
		p.emitStore(p.emitArrayGEP(arr, intConst(int64(i)), elem), v)
	}
	return p.emitSliceValue(st, p.emitArrayGEP(arr, intConst(0), elem), intConst(count), intConst(count))
}

func (p *Procedure) buildBuiltin(n *ast.Node, d ast.CallExprNode, e *types.Entity, t types.Type) Value {
	intType := types.Typ[types.Int]
	switch checker.BuiltinID(e.Builtin) {
	case checker.BuiltinLen, checker.BuiltinCap:
		base, at := p.baseAddr(d.Args[0])
		switch b := types.Base(at).(type) {
		case *types.Array:
			return intConst(b.Count)
		case *types.Vector:
			return intConst(b.Count)
		case *types.Slice, *types.DynamicArray:
			field := 1
			if checker.BuiltinID(e.Builtin) == checker.BuiltinCap {
				field = 2
			}
			return p.emitLoad(p.emitStructGEP(base, field, intType))
		}
		if types.IsString(at) {
			return p.emitLoad(p.emitStructGEP(base, 1, intType))
		}
		fatalf(n.Tok, "`%s` of `%s` is not supported", e.Name, at)

	case checker.BuiltinPanic:
		msg := p.buildExprAs(d.Args[0], types.Typ[types.String])
		p.emitPanic(msg)
		return nil

	case checker.BuiltinAssert:
		cond := p.buildExprAs(d.Args[0], types.Typ[types.Bool])
		fail := p.addBlock("assert.fail", n)
		done := p.newBlock("assert.done", n)
		p.emitIf(cond, done, fail)
		p.curr = fail
		p.emitPanic(p.constant(types.Typ[types.String], exact.MakeString("Runtime assertion: "+ast.ExprString(d.Args[0]))))
		p.appendBlock(done)
		p.curr = done
		return &Constant{Typ: types.Typ[types.Bool], Value: exact.MakeBool(true)}

	case checker.BuiltinMin, checker.BuiltinMax:
		x := p.buildExprAs(d.Args[0], t)
		y := p.buildExprAs(d.Args[1], t)
		op := token.Lt
		if checker.BuiltinID(e.Builtin) == checker.BuiltinMax {
			op = token.Gt
		}
		return p.emitSelect(n, p.emitBinary(op, x, y, types.Typ[types.Bool]), x, y, t)

	case checker.BuiltinClamp:
		x := p.buildExprAs(d.Args[0], t)
		lo := p.buildExprAs(d.Args[1], t)
		hi := p.buildExprAs(d.Args[2], t)
		x = p.emitSelect(n, p.emitBinary(token.Lt, x, lo, types.Typ[types.Bool]), lo, x, t)
		return p.emitSelect(n, p.emitBinary(token.Gt, x, hi, types.Typ[types.Bool]), hi, x, t)

	case checker.BuiltinAbs:
		x := p.buildExprAs(d.Args[0], t)
		zero := &Constant{Typ: t, Value: zeroValue(t)}
		neg := p.emitBinary(token.Minus, zero, x, t)
		return p.emitSelect(n, p.emitBinary(token.Lt, x, zero, types.Typ[types.Bool]), neg, x, t)

	case checker.BuiltinTransmute:
		v := p.buildExpr(d.Args[1])
		tmp := p.emitLocal(nil, v.Type(), false)
		p.emitStore(tmp, v)
		ptr := p.emit(&Instr{Kind: InstrConvert, Conv: ConvBitCast, Val: tmp, Typ: types.NewPointer(t)})
		return p.emitLoad(ptr)

	case checker.BuiltinSlicePtr:
		ptr := p.buildExpr(d.Args[0])
		count := p.buildExprAs(d.Args[1], intType)
		return p.emitSliceValue(t, ptr, count, count)
	}

	fatalf(n.Tok, "builtin `%s` is not supported", e.Name)
	return nil
}

// emitPanic calls the runtime panic handler, which does not return.
func (p *Procedure) emitPanic(msg Value) {
	rt := p.Module.runtimeProc(RuntimePanic, types.Typ[types.String])
	p.emitCall(rt, []Value{msg}, nil)
	p.emitUnreachable()
}

// emitSelect yields a when cond holds and b otherwise.
func (p *Procedure) emitSelect(n *ast.Node, cond, a, b Value, t types.Type) Value {
	res := p.emitLocal(nil, t, false)
	then := p.addBlock("select.then", n)
	els := p.newBlock("select.else", n)
	done := p.newBlock("select.done", n)
	p.emitIf(cond, then, els)

	p.curr = then
	p.emitStore(res, a)
	p.emitJump(done)

	p.appendBlock(els)
	p.curr = els
	p.emitStore(res, b)
	p.emitJump(done)

	p.appendBlock(done)
	p.curr = done
	return p.emitLoad(res)
}
