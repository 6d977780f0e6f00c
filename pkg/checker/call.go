package checker

import (
	"slices"

	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

// unpackArguments checks rhs and flattens tuple results into one operand
// per value. With allowOk, a lone map index or type assertion assigned to
// two targets yields its value and a boolean.
func (c *Checker) unpackArguments(lhsCount int, rhs []*ast.Node, allowOk bool) ([]Operand, bool) {
	operands := make([]Operand, 0, len(rhs))
	optionalOk := false

	for _, n := range rhs {
		var o Operand
		c.checkMultiExpr(&o, n)
		if o.Mode == ModeInvalid {
			operands = append(operands, o)
			continue
		}

		if tup, ok := o.Type.(*types.Tuple); ok && o.Mode != ModeType {
			for _, v := range tup.Vars {
				operands = append(operands, Operand{Mode: ModeValue, Type: v.Type, Expr: o.Expr})
			}
			continue
		}

		if allowOk && lhsCount == 2 && len(rhs) == 1 && (o.Mode == ModeMapIndex || o.Mode == ModeOptionalOk) {
			tup := types.NewTuple(types.NewParam("", o.Type), types.NewParam("", types.Typ[types.Bool]))
			c.recordTypeAndValue(o.Expr, o.Mode, tup, o.Value)
			o.Mode = ModeValue
			operands = append(operands, o, Operand{Mode: ModeValue, Type: types.Typ[types.Bool], Expr: o.Expr})
			optionalOk = true
			continue
		}

		operands = append(operands, o)
	}
	return operands, optionalOk
}

// callArguments matches operands against the parameters of pt. It returns
// the summed assignability score, or ok=false when the call does not fit.
// With showErrors every mismatch is diagnosed and untyped arguments are
// committed to their parameter types.
func (c *Checker) callArguments(call *ast.Node, d ast.CallExprNode, pt *types.Proc, operands []Operand, showErrors bool) (score int64, ok bool) {
	expand := d.Ellipsis.Type == token.Dots
	paramCount := pt.ParamCount()
	variadic := pt.Variadic

	if expand && !variadic {
		if showErrors {
			c.errorAt(d.Ellipsis, "Cannot use `..` in call to a non-variadic procedure: `%s`", exprString(d.Proc))
		}
		return 0, false
	}

	fixed := paramCount
	if variadic {
		fixed--
	}
	if len(operands) < fixed || (!variadic && len(operands) > paramCount) || (expand && len(operands) != paramCount) {
		if showErrors {
			if expand && len(operands) > paramCount {
				c.errorf(operands[len(operands)-1].Expr, "`..` in a variadic procedure can only have one variadic argument at the end")
			} else {
				err := "Too few"
				if len(operands) > paramCount {
					err = "Too many"
				}
				c.errorf(call, "%s arguments for `%s`, expected %d arguments", err, exprString(d.Proc), fixed)
			}
		}
		return 0, false
	}

	ok = true
	match := func(o *Operand, t types.Type) {
		if o.Mode == ModeInvalid {
			ok = false
			return
		}
		if showErrors {
			c.checkAssignment(o, t, "argument")
			if o.Mode == ModeInvalid {
				ok = false
			}
			return
		}
		fits, s := c.assignableScore(o, t)
		if !fits {
			ok = false
			return
		}
		score += s
	}

	for i := 0; i < fixed; i++ {
		match(&operands[i], pt.Params.At(i))
	}
	if variadic {
		last := pt.Params.At(paramCount - 1)
		if expand {
			match(&operands[paramCount-1], last)
		} else {
			elem := last.(*types.Slice).Elem
			for i := fixed; i < len(operands); i++ {
				match(&operands[i], elem)
			}
		}
	}
	return score, ok
}

type overloadCandidate struct {
	entity *types.Entity
	score  int64
}

// resolveOverload picks the best scoring candidate for a call. Ties are
// ambiguous and no fitting candidate is an error.
func (c *Checker) resolveOverload(call *ast.Node, d ast.CallExprNode, procs []*types.Entity, operands []Operand) *types.Entity {
	var valid []overloadCandidate
	for _, p := range procs {
		c.checkEntityDecl(p)
		pt, isProc := types.Base(p.Type).(*types.Proc)
		if !isProc || types.IsInvalid(p.Type) {
			continue
		}
		args := slices.Clone(operands)
		if score, ok := c.callArguments(call, d, pt, args, false); ok {
			valid = append(valid, overloadCandidate{entity: p, score: score})
		}
	}

	slices.SortStableFunc(valid, func(a, b overloadCandidate) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return 0
	})
	for i := 1; i < len(valid); i++ {
		if valid[i].score != valid[0].score {
			valid = valid[:i]
			break
		}
	}

	name := exprString(d.Proc)
	switch len(valid) {
	case 0:
		c.errorf(d.Proc, "No overloads for `%s` that match with the given arguments", name)
		return nil
	case 1:
		return valid[0].entity
	}

	c.errorf(d.Proc, "Ambiguous procedure call `%s`, could be:", name)
	for _, v := range valid {
		c.diag.Notef("\t%s :: %s at %s", name, v.entity.Type, v.entity.Token.Pos())
	}
	return nil
}

// procNameNode is the node whose use records which procedure was called.
func procNameNode(n *ast.Node) *ast.Node {
	n = ast.Unparen(n)
	if sel, ok := n.Data.(ast.SelectorExprNode); ok {
		return ast.Unparen(sel.Selector)
	}
	return n
}

func (c *Checker) checkCallArguments(o *Operand, call *ast.Node, d ast.CallExprNode) *types.Proc {
	operands, _ := c.unpackArguments(-1, d.Args, false)

	if o.Mode == ModeOverload {
		e := c.resolveOverload(call, d, o.Overloads, operands)
		if e == nil {
			o.invalidate()
			return nil
		}
		c.recordUse(procNameNode(d.Proc), e)
		c.recordTypeAndValue(d.Proc, ModeValue, e.Type, o.Value)
		o.Mode = ModeValue
		o.Type = e.Type
	}

	pt := types.Base(o.Type).(*types.Proc)
	if _, ok := c.callArguments(call, d, pt, operands, true); !ok {
		o.invalidate()
		return nil
	}
	return pt
}

func (c *Checker) checkConversion(o *Operand, call *ast.Node, d ast.CallExprNode) {
	t := o.Type
	switch {
	case len(d.Args) == 0:
		c.errorf(call, "Missing argument in convertion to `%s`", t)
		o.invalidate()
		return
	case len(d.Args) > 1:
		c.errorf(d.Args[1], "Too many arguments in convertion to `%s`", t)
		o.invalidate()
		return
	}
	c.checkExpr(o, d.Args[0])
	if o.Mode == ModeInvalid {
		return
	}
	c.checkCast(o, t)
}

func (c *Checker) checkCallExpr(o *Operand, call *ast.Node, d ast.CallExprNode) exprKind {
	c.checkExprOrType(o, d.Proc)

	if o.Mode == ModeInvalid {
		for _, arg := range d.Args {
			var a Operand
			c.checkExpr(&a, arg)
		}
		o.Expr = call
		return exprStmt
	}

	switch o.Mode {
	case ModeType:
		c.checkConversion(o, call, d)
		o.Expr = call
		return exprExpr
	case ModeBuiltin:
		id := o.Builtin
		if !c.checkBuiltin(o, call, d, id) {
			o.invalidate()
		}
		o.Expr = call
		return builtinProcs[id].kind
	}

	if o.Mode != ModeOverload && !types.IsProc(o.Type) {
		c.errorf(call, "Cannot call a non-procedure: `%s` of type `%s`", exprString(d.Proc), o.Type)
		o.invalidate()
		o.Expr = call
		return exprStmt
	}

	pt := c.checkCallArguments(o, call, d)
	o.Expr = call
	if pt == nil {
		return exprStmt
	}

	switch pt.ResultCount() {
	case 0:
		o.Mode = ModeNoValue
	case 1:
		o.Mode = ModeValue
		o.Type = pt.Results.At(0)
	default:
		o.Mode = ModeValue
		o.Type = pt.Results
	}
	return exprStmt
}
