package checker

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

// elemBase is the type an operator is checked against: the element type of
// a vector, otherwise the type itself.
func elemBase(t types.Type) types.Type {
	if v, ok := types.Base(t).(*types.Vector); ok {
		return types.Base(v.Elem)
	}
	return types.Base(t)
}

func (c *Checker) checkUnaryOp(o *Operand, op token.Type) bool {
	t := o.Type
	if t == nil {
		c.errorf(o.Expr, "Expression has no value `%s`", exprString(o.Expr))
		return false
	}
	t = elemBase(t)

	switch op {
	case token.Plus, token.Minus:
		if !types.IsNumeric(t) {
			c.errorf(o.Expr, "Operator `%s` is not allowed with `%s`", op, exprString(o.Expr))
			return false
		}
	case token.Xor:
		if !types.IsInteger(t) && !types.IsBoolean(t) {
			c.errorf(o.Expr, "Operator `%s` is only allowed with integers or booleans", op)
			return false
		}
	case token.Not:
		if !types.IsBoolean(t) {
			c.errorf(o.Expr, "Operator `%s` is only allowed on boolean expression", op)
			return false
		}
	default:
		c.errorf(o.Expr, "Unknown operator `%s`", op)
		return false
	}
	return true
}

// isVectorComponent reports x[i] or x.e where x is a vector; neither has an
// address of its own.
func (c *Checker) isVectorComponent(n *ast.Node) bool {
	switch d := ast.Unparen(n).Data.(type) {
	case ast.IndexExprNode:
		return types.IsVector(types.Deref(c.Info.TypeOf(d.Expr)))
	case ast.SelectorExprNode:
		return types.IsVector(types.Deref(c.Info.TypeOf(d.Expr)))
	}
	return false
}

func (c *Checker) checkUnaryExpr(o *Operand, op token.Type, n *ast.Node) {
	if op == token.And {
		if o.Mode == ModeType {
			o.Type = types.NewPointer(o.Type)
			return
		}
		if o.Mode != ModeVariable || c.isVectorComponent(o.Expr) {
			c.errorf(n, "Cannot take the pointer address of `%s`", exprString(o.Expr))
			o.invalidate()
			return
		}
		o.Mode = ModeValue
		o.Type = types.NewPointer(o.Type)
		return
	}

	if !c.checkUnaryOp(o, op) {
		o.invalidate()
		return
	}

	if o.Mode == ModeConstant && !types.IsVector(o.Type) {
		t := types.Core(o.Type)
		if !types.IsConstantType(t) {
			c.errorf(n, "Invalid type, `%s`, for constant unary expression `%s`", o.Type, exprString(n))
			o.invalidate()
			return
		}
		precision := 0
		if types.IsUnsigned(t) {
			precision = int(8 * c.sizes.SizeOf(t))
		}
		o.Value = exact.UnaryOp(op, o.Value, precision, types.IsUnsigned(t))
		if types.IsTyped(t) {
			o.Expr = n
			c.checkIsExpressible(o, o.Type)
		}
		return
	}

	o.Mode = ModeValue
}

func (c *Checker) checkBinaryOp(o *Operand, op token.Type) bool {
	t := elemBase(o.Type)
	if bop := token.BinaryOf(op); bop != token.Invalid {
		op = bop
	}

	switch op {
	case token.Minus:
		if !types.IsNumeric(t) && !types.IsPointer(t) {
			c.errorf(o.Expr, "Operator `%s` is only allowed with numeric or pointer expressions", op)
			return false
		}
		if types.IsPointer(t) {
			if types.IsRawptr(t) {
				c.errorf(o.Expr, "Invalid pointer type for pointer arithmetic: `%s`", o.Type)
				return false
			}
			o.Type = types.Typ[types.Int]
		}
	case token.Plus, token.Star, token.Slash:
		if !types.IsNumeric(t) && !(op == token.Plus && types.IsString(t)) {
			c.errorf(o.Expr, "Operator `%s` is only allowed with numeric expressions", op)
			return false
		}
	case token.And, token.Or, token.Xor:
		if !types.IsInteger(t) && !types.IsBoolean(t) {
			c.errorf(o.Expr, "Operator `%s` is only allowed with integers or booleans", op)
			return false
		}
	case token.Rem, token.RemRem, token.AndNot:
		if !types.IsInteger(t) {
			c.errorf(o.Expr, "Operator `%s` is only allowed with integers", op)
			return false
		}
	case token.AndAnd, token.OrOr:
		if !types.IsBoolean(t) {
			c.errorf(o.Expr, "Operator `%s` is only allowed with boolean expressions", op)
			return false
		}
	default:
		c.errorf(o.Expr, "Unknown operator `%s`", op)
		return false
	}
	return true
}

func isOperandNil(o *Operand) bool {
	return o.Mode == ModeValue && types.IsUntypedNil(o.Type)
}

func (c *Checker) checkComparison(x, y *Operand, op token.Type) {
	if x.Mode == ModeType && y.Mode == ModeType {
		same := types.Identical(x.Type, y.Type)
		if op == token.Neq {
			same = !same
		}
		x.Mode = ModeConstant
		x.Type = types.Typ[types.UntypedBool]
		x.Value = exact.MakeBool(same)
		return
	}

	var err string
	defined := false
	if c.assignable(x, y.Type) || c.assignable(y, x.Type) {
		t := x.Type
		if isOperandNil(y) {
			t = y.Type
		}
		switch op {
		case token.EqEq, token.Neq:
			defined = types.IsComparable(t) || (isOperandNil(x) && types.HasNil(y.Type)) || (isOperandNil(y) && types.HasNil(x.Type))
		default:
			defined = types.IsOrdered(t)
		}
		if !defined {
			err = "operator `" + op.String() + "` not defined for type `" + t.String() + "`"
		}
	} else {
		err = "mismatched types `" + x.Type.String() + "` and `" + y.Type.String() + "`"
	}

	if err != "" {
		c.errorf(x.Expr, "Cannot compare expression, %s", err)
		x.invalidate()
		x.Type = types.Typ[types.UntypedBool]
		return
	}

	if x.Mode == ModeConstant && y.Mode == ModeConstant {
		x.Value = exact.MakeBool(exact.Compare(op, x.Value, y.Value))
	} else {
		x.Mode = ModeValue
		c.updateExprType(x.Expr, types.Default(x.Type), true)
		c.updateExprType(y.Expr, types.Default(y.Type), true)
	}

	if v, ok := types.Base(y.Type).(*types.Vector); ok {
		x.Type = types.NewVector(types.Typ[types.Bool], v.Count)
	} else {
		x.Type = types.Typ[types.UntypedBool]
	}
}

func (c *Checker) checkShift(x, y *Operand, n *ast.Node, op token.Type) {
	if x.Mode == ModeConstant {
		x.Value = exact.ToInteger(x.Value)
	}
	xIsUntypedInt := types.IsUntyped(x.Type) && x.Mode == ModeConstant && x.Value.Kind() == exact.Integer
	if !types.IsInteger(x.Type) && !xIsUntypedInt {
		c.errorf(y.Expr, "Shifted operand `%s` must be an integer", exprString(x.Expr))
		x.invalidate()
		return
	}

	switch {
	case types.IsUnsigned(y.Type):
	case types.IsUntyped(y.Type):
		c.convertToTyped(y, types.Typ[types.UntypedInteger])
		if y.Mode == ModeInvalid {
			x.invalidate()
			return
		}
	default:
		c.errorf(y.Expr, "Shift amount `%s` must be an unsigned integer", exprString(y.Expr))
		x.invalidate()
		return
	}

	if x.Mode == ModeConstant {
		if y.Mode == ModeConstant {
			yv := exact.ToInteger(y.Value)
			if yv.Kind() != exact.Integer {
				c.errorf(y.Expr, "Shift amount `%s` must be an unsigned integer", exprString(y.Expr))
				x.invalidate()
				return
			}
			if amount, ok := yv.Int64(); !ok || amount > 128 {
				c.errorf(y.Expr, "Shift amount too large: `%s`", exprString(y.Expr))
				x.invalidate()
				return
			}
			if yv.Sign() < 0 {
				c.errorf(y.Expr, "Shift amount cannot be negative: `%s`", exprString(y.Expr))
				x.invalidate()
				return
			}
			if !types.IsInteger(x.Type) {
				x.Type = types.Typ[types.UntypedInteger]
			}
			x.Value = exact.BinaryOp(op, x.Value, yv)
			if types.IsTyped(x.Type) {
				x.Expr = n
				c.checkIsExpressible(x, x.Type)
			}
			return
		}

		if types.IsUntyped(x.Type) {
			if u, ok := c.untyped[x.Expr]; ok {
				u.isLhs = true
			}
			x.Mode = ModeValue
			return
		}
	}

	if y.Mode == ModeConstant && y.Value.Sign() < 0 {
		c.errorf(y.Expr, "Shift amount cannot be negative: `%s`", exprString(y.Expr))
	}
	if !types.IsInteger(x.Type) {
		c.errorf(y.Expr, "Shift operand `%s` must be an integer", exprString(y.Expr))
		x.invalidate()
		return
	}
	x.Mode = ModeValue
}

// checkPointerArithmetic checks ptr +/- offset. The operand order has
// already been normalized so the pointer is on the left.
func (c *Checker) checkPointerArithmetic(o *Operand, ptr, offset *Operand, op token.Type, n *ast.Node) {
	o.Mode = ModeValue
	o.Type = ptr.Type
	o.Expr = n

	if types.IsRawptr(ptr.Type) {
		c.errorf(n, "Invalid pointer type for pointer arithmetic: `%s`", ptr.Type)
		o.invalidate()
		return
	}
	elem := types.Deref(ptr.Type)
	size := c.sizes.SizeOf(elem)
	if size <= 0 {
		c.errorf(n, "Size of pointer's element type `%s` is zero and cannot be used for pointer arithmetic", elem)
		o.invalidate()
		return
	}

	if ptr.Mode == ModeConstant && offset.Mode == ModeConstant {
		off, _ := exact.ToInteger(offset.Value).Int64()
		p := ptr.Value.Pointer()
		if op == token.Minus {
			p -= size * off
		} else {
			p += size * off
		}
		o.Mode = ModeConstant
		o.Value = exact.MakePointer(p)
	}
}

// checkVectorBroadcast reports a vector x paired with a scalar y of its
// element type.
func (c *Checker) checkVectorBroadcast(op token.Type, x, y *Operand) bool {
	if types.IsVector(x.Type) && !types.IsVector(y.Type) {
		if c.assignable(y, x.Type) {
			return c.checkBinaryOp(x, op)
		}
	}
	return false
}

func (c *Checker) checkBinaryExpr(o *Operand, n *ast.Node, d ast.BinaryExprNode) {
	var y Operand
	x := o
	op := d.Op

	if op == token.EqEq || op == token.Neq {
		c.checkExprOrType(x, d.Left)
		c.checkExprOrType(&y, d.Right)
		xType, yType := x.Mode == ModeType, y.Mode == ModeType
		if xType != yType {
			if xType {
				c.errorf(x.Expr, "`%s` is not an expression but a type", exprString(x.Expr))
			} else {
				c.errorf(y.Expr, "`%s` is not an expression but a type", exprString(y.Expr))
			}
			x.invalidate()
			return
		}
	} else {
		c.checkExpr(x, d.Left)
		c.checkExpr(&y, d.Right)
	}
	if x.Mode == ModeInvalid {
		return
	}
	if y.Mode == ModeInvalid {
		x.invalidate()
		x.Expr = y.Expr
		return
	}

	if op.IsShift() {
		c.checkShift(x, &y, n, op)
		return
	}

	if op == token.Plus || op == token.Minus {
		switch {
		case types.IsPointer(x.Type) && types.IsInteger(y.Type):
			ptr := *x
			c.checkPointerArithmetic(o, &ptr, &y, op, n)
			return
		case types.IsPointer(y.Type) && types.IsInteger(x.Type):
			if op == token.Minus {
				c.errorf(n, "Invalid pointer arithmetic, did you mean `%s %s %s`?", exprString(d.Right), op, exprString(d.Left))
				x.invalidate()
				return
			}
			offset := *x
			c.checkPointerArithmetic(o, &y, &offset, op, n)
			return
		}
	}

	c.convertToTyped(x, y.Type)
	if x.Mode == ModeInvalid {
		return
	}
	c.convertToTyped(&y, x.Type)
	if y.Mode == ModeInvalid {
		x.invalidate()
		return
	}

	if op.IsComparison() {
		c.checkComparison(x, &y, op)
		return
	}

	if c.checkVectorBroadcast(op, x, &y) {
		x.Mode = ModeValue
		return
	}
	if c.checkVectorBroadcast(op, &y, x) {
		*x = y
		x.Mode = ModeValue
		return
	}

	if !types.Identical(x.Type, y.Type) {
		if !types.IsInvalid(x.Type) && !types.IsInvalid(y.Type) {
			c.errorf(x.Expr, "Mismatched types in binary expression `%s` : `%s` vs `%s`", exprString(n), x.Type, y.Type)
		}
		x.invalidate()
		return
	}

	ptrElemSize := int64(0)
	if types.IsPointer(x.Type) && !types.IsRawptr(x.Type) {
		ptrElemSize = c.sizes.SizeOf(types.Deref(x.Type))
	}
	if !c.checkBinaryOp(x, op) {
		x.invalidate()
		return
	}

	switch op {
	case token.Plus:
		if types.IsString(x.Type) && (x.Mode != ModeConstant || y.Mode != ModeConstant) {
			c.errorf(n, "String concatenation is only allowed with constant strings")
			x.invalidate()
			return
		}
	case token.Slash, token.Rem, token.RemRem:
		if (x.Mode == ModeConstant || types.IsInteger(x.Type)) && y.Mode == ModeConstant {
			if y.Value.Kind() == exact.Integer && y.Value.IsZero() {
				c.errorf(y.Expr, "Division by zero not allowed")
				x.invalidate()
				return
			}
		}
	}

	if x.Mode == ModeConstant && y.Mode == ModeConstant {
		if x.Value.Kind() == exact.Pointer && y.Value.Kind() == exact.Pointer {
			diff := x.Value.Pointer() - y.Value.Pointer()
			if ptrElemSize > 0 {
				diff /= ptrElemSize
			}
			x.Value = exact.MakeInt64(diff)
			x.Expr = n
			return
		}

		t := types.Core(x.Type)
		if !types.IsConstantType(t) {
			c.errorf(n, "Invalid type, `%s`, for constant binary expression `%s`", x.Type, exprString(n))
			x.invalidate()
			return
		}
		x.Value = exact.BinaryOp(op, x.Value, y.Value)
		if !x.Value.IsValid() {
			c.errorf(n, "Invalid constant binary expression `%s`", exprString(n))
			x.invalidate()
			return
		}
		if types.IsTyped(t) {
			x.Expr = n
			c.checkIsExpressible(x, x.Type)
		}
		return
	}

	x.Mode = ModeValue
}
