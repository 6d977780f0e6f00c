package checker

import (
	"math/big"

	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/types"
)

// distance measures how far o is from being a value of type t: 0 is an
// exact match, larger values are increasingly implicit conversions and -1
// means o does not convert at all. Overload resolution ranks candidates by
// it.
func (c *Checker) distance(o *Operand, t types.Type) int64 {
	if o.Mode == ModeInvalid || types.IsInvalid(t) {
		return 0
	}
	if o.Mode == ModeBuiltin {
		return -1
	}

	s := o.Type
	if types.Identical(s, t) {
		return 0
	}
	src, dst := types.Base(s), types.Base(t)

	if types.IsUntypedNil(src) {
		if types.HasNil(dst) {
			return 1
		}
		return -1
	}
	if types.IsUntyped(src) {
		if types.IsAny(dst) {
			c.addTypeInfoType(s)
			return 10
		}
		if _, ok := dst.(*types.Basic); ok {
			if o.Mode == ModeConstant {
				if _, ok := c.representable(o.Value, dst); !ok {
					return -1
				}
				if types.IsTyped(dst) {
					switch src.(*types.Basic).Kind {
					case types.UntypedInteger:
						if types.IsInteger(dst) {
							return 1
						}
					case types.UntypedFloat:
						if types.IsFloat(dst) {
							return 1
						}
					case types.UntypedComplex:
						if types.IsComplex(dst) {
							return 1
						}
					}
				}
				return 2
			}
			if types.IsBasicKind(src, types.UntypedBool) {
				if !types.IsBoolean(dst) {
					return -1
				}
				if types.IsTyped(t) {
					return 2
				}
				return 1
			}
		}
	}

	if types.Identical(dst, src) && (!types.IsNamed(dst) || !types.IsNamed(src)) {
		return 1
	}
	if types.IsSubtypeOf(s, t) {
		return 4
	}
	if types.Identical(t, types.Typ[types.Rawptr]) && types.IsPointer(src) {
		return 5
	}

	switch d := dst.(type) {
	case *types.Record:
		if d.Kind == types.RecordUnion {
			for _, v := range d.Variants {
				if v.Name != "" && types.Identical(v.Type, s) {
					return 1
				}
			}
		}
	case *types.Proc:
		if types.Identical(src, dst) {
			return 3
		}
	case *types.Vector:
		if n := c.distance(o, d.Elem); n >= 0 {
			return n + 5
		}
	}

	if types.IsAny(dst) {
		c.addTypeInfoType(s)
		return 10
	}
	return -1
}

// assignableScore reports whether o can be assigned to t and, if so, a
// score that is higher the more direct the conversion.
func (c *Checker) assignableScore(o *Operand, t types.Type) (bool, int64) {
	d := c.distance(o, t)
	if d < 0 {
		return false, 0
	}
	score := 1000000 - d*d
	if score < 0 {
		score = 0
	}
	return true, score
}

func (c *Checker) assignable(o *Operand, t types.Type) bool {
	ok, _ := c.assignableScore(o, t)
	return ok
}

// checkAssignment commits o to t, converting untyped values. A nil t means
// the value picks its own default type. ctxName names the construct in
// diagnostics.
func (c *Checker) checkAssignment(o *Operand, t types.Type, ctxName string) {
	c.checkNotTuple(o)
	if o.Mode == ModeInvalid {
		return
	}

	if types.IsUntyped(o.Type) {
		target := t
		if t == nil || types.IsAny(t) {
			if t == nil && types.IsUntypedNil(o.Type) {
				c.errorf(o.Expr, "Use of untyped nil in %s", ctxName)
				o.invalidate()
				return
			}
			target = types.Default(o.Type)
			if t != nil {
				c.addTypeInfoType(t)
			}
			c.addTypeInfoType(target)
		}
		if target == nil || !types.IsVector(target) {
			c.convertToTyped(o, target)
			if o.Mode == ModeInvalid {
				return
			}
		}
	}

	if t == nil {
		return
	}
	if !c.assignable(o, t) {
		if o.Mode == ModeBuiltin {
			c.errorf(o.Expr, "Cannot assign builtin procedure `%s` in %s", exprString(o.Expr), ctxName)
		} else {
			c.errorf(o.Expr, "Cannot assign value `%s` of type `%s` to `%s` in %s", exprString(o.Expr), o.Type, t, ctxName)
		}
		o.invalidate()
	}
}

func (c *Checker) checkNotTuple(o *Operand) {
	if o.Mode != ModeValue {
		return
	}
	if tup, ok := o.Type.(*types.Tuple); ok {
		c.errorf(o.Expr, "%d-valued tuple found where single value expected", tup.Len())
		o.invalidate()
	}
}

var bigOne = big.NewInt(1)

// representable reports whether constant v fits in type t, returning the
// value converted to t's representation.
func (c *Checker) representable(v exact.Value, t types.Type) (exact.Value, bool) {
	if !v.IsValid() {
		return v, true
	}
	t = types.Core(t)

	switch {
	case types.IsBoolean(t):
		return v, v.Kind() == exact.Bool
	case types.IsString(t):
		return v, v.Kind() == exact.String
	case types.IsInteger(t):
		iv := exact.ToInteger(v)
		if iv.Kind() != exact.Integer {
			return v, false
		}
		if types.IsUntyped(t) {
			return iv, true
		}
		bits := uint(8 * c.sizes.SizeOf(t))
		if bits > 128 {
			bits = 128
		}
		i := iv.BigInt()
		if types.IsUnsigned(t) {
			max := new(big.Int).Sub(new(big.Int).Lsh(bigOne, bits), bigOne)
			return iv, i.Sign() >= 0 && i.Cmp(max) <= 0
		}
		max := new(big.Int).Lsh(bigOne, bits-1)
		min := new(big.Int).Neg(max)
		max.Sub(max, bigOne)
		return iv, i.Cmp(min) >= 0 && i.Cmp(max) <= 0
	case types.IsFloat(t):
		fv := exact.ToFloat(v)
		return fv, fv.Kind() == exact.Float
	case types.IsComplex(t):
		cv := exact.ToComplex(v)
		return cv, cv.Kind() == exact.Complex
	case types.IsPointer(t):
		return v, v.Kind() == exact.Pointer
	}
	return v, false
}

// checkIsExpressible invalidates a constant operand that does not fit t.
func (c *Checker) checkIsExpressible(o *Operand, t types.Type) {
	v, ok := c.representable(o.Value, t)
	if ok {
		o.Value = v
		return
	}
	a := exprString(o.Expr)
	switch {
	case types.IsNumeric(o.Type) && types.IsNumeric(t):
		if !types.IsInteger(o.Type) && types.IsInteger(t) {
			c.errorf(o.Expr, "`%s` truncated to `%s`", a, t)
		} else {
			c.errorf(o.Expr, "`%s = %s` overflows `%s`", a, o.Value, t)
		}
	default:
		c.errorf(o.Expr, "Cannot convert `%s` to `%s`", a, t)
	}
	o.invalidate()
}

// updateExprType propagates the type an untyped expression finally took
// down to its untyped operands. With final unset an untyped t only narrows
// the pending record.
func (c *Checker) updateExprType(n *ast.Node, t types.Type, final bool) {
	old, ok := c.untyped[n]
	if !ok {
		return
	}

	switch d := n.Data.(type) {
	case ast.UnaryExprNode:
		if !old.value.IsValid() {
			c.updateExprType(d.Expr, t, final)
		}
	case ast.BinaryExprNode:
		if !old.value.IsValid() {
			switch {
			case d.Op.IsComparison():
			case d.Op.IsShift():
				c.updateExprType(d.Left, t, final)
			default:
				c.updateExprType(d.Left, t, final)
				c.updateExprType(d.Right, t, final)
			}
		}
	case ast.ParenExprNode:
		c.updateExprType(d.Expr, t, final)
	}

	if !final && types.IsUntyped(t) {
		old.typ = types.Base(t)
		return
	}

	delete(c.untyped, n)
	if old.isLhs && !types.IsInteger(t) {
		c.errorf(n, "Shifted operand %s must be an integer, got %s", exprString(n), t)
		return
	}
	c.recordTypeAndValue(n, old.mode, t, old.value)
}

func (c *Checker) updateExprValue(n *ast.Node, v exact.Value) {
	if u, ok := c.untyped[n]; ok {
		u.value = v
	}
}

func (c *Checker) convertUntypedError(o *Operand, t types.Type) {
	extra := ""
	if o.Mode == ModeConstant && o.Value.Kind() == exact.Integer && o.Value.IsZero() && exprString(o.Expr) != "nil" {
		extra = " - Did you want `nil`?"
	}
	c.errorf(o.Expr, "Cannot convert `%s` to `%s`%s", exprString(o.Expr), t, extra)
	o.invalidate()
}

// convertToTyped commits an untyped operand to target, diagnosing values
// that do not convert.
func (c *Checker) convertToTyped(o *Operand, target types.Type) {
	if o.Mode == ModeInvalid || o.Mode == ModeType || types.IsTyped(o.Type) || types.IsInvalid(target) {
		return
	}

	if types.IsUntyped(target) {
		x, y := o.Type.(*types.Basic).Kind, types.Base(target).(*types.Basic).Kind
		if types.IsNumeric(o.Type) && types.IsNumeric(target) {
			if x < y {
				o.Type = target
				c.updateExprType(o.Expr, target, false)
			}
		} else if x != y {
			c.convertUntypedError(o, target)
		}
		return
	}

	switch t := types.Core(target).(type) {
	case *types.Basic:
		if o.Mode == ModeConstant {
			c.checkIsExpressible(o, t)
			if o.Mode == ModeInvalid {
				return
			}
			c.updateExprValue(o.Expr, o.Value)
			break
		}
		switch o.Type.(*types.Basic).Kind {
		case types.UntypedBool:
			if !types.IsBoolean(target) {
				c.convertUntypedError(o, target)
				return
			}
		case types.UntypedInteger, types.UntypedFloat, types.UntypedComplex, types.UntypedRune:
			if !types.IsNumeric(target) {
				c.convertUntypedError(o, target)
				return
			}
		case types.UntypedNil:
			if !types.HasNil(target) {
				c.convertUntypedError(o, target)
				return
			}
		}

	case *types.Vector:
		if !c.assignable(o, t.Elem) {
			c.convertUntypedError(o, target)
			return
		}
		o.Mode = ModeValue

	default:
		if !types.IsUntypedNil(o.Type) || !types.HasNil(target) {
			c.convertUntypedError(o, target)
			return
		}
	}

	o.Type = target
	c.updateExprType(o.Expr, target, true)
}

