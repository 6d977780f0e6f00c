package checker

import (
	"github.com/xplshn/odinc/pkg/types"
)

func (c *Checker) castable(o *Operand, to types.Type) bool {
	if c.assignable(o, to) {
		return true
	}

	src, dst := types.Core(o.Type), types.Core(to)
	if types.Identical(src, dst) {
		return true
	}

	switch d := dst.(type) {
	case *types.Array:
		if s, ok := src.(*types.Array); ok && types.Identical(d.Elem, s.Elem) {
			return d.Count == s.Count
		}
	case *types.Slice:
		if s, ok := src.(*types.Slice); ok {
			return types.Identical(d.Elem, s.Elem)
		}
	}

	if types.IsBoolean(src) || types.IsInteger(src) {
		if types.IsBoolean(dst) || types.IsInteger(dst) {
			return true
		}
	}
	if types.IsInteger(src) || types.IsFloat(src) {
		if types.IsInteger(dst) || types.IsFloat(dst) {
			return true
		}
	}
	if types.IsComplex(src) && types.IsComplex(dst) {
		return true
	}

	if types.IsPointer(src) && types.IsPointer(dst) {
		if types.IsUnionPointer(src) {
			c.errorf(o.Expr, "Cannot cast from a union pointer `%s` to `%s`, try using `union_cast` or cast to a `rawptr`", o.Type, to)
			return false
		}
		return true
	}

	switch {
	case types.IsInteger(src) && types.IsRawptr(dst), types.IsRawptr(src) && types.IsInteger(dst):
		return true
	case types.IsU8Slice(src) && types.IsString(dst), types.IsString(src) && types.IsU8Slice(dst):
		return true
	case types.IsProc(src) && types.IsProc(dst):
		return true
	case types.IsProc(src) && types.IsRawptr(dst), types.IsRawptr(src) && types.IsProc(dst):
		return true
	}
	return false
}

// checkCast converts o to type to, as in `to(o)`.
func (c *Checker) checkCast(o *Operand, to types.Type) {
	isConst := o.Mode == ModeConstant
	ok := false

	bt := types.Base(to)
	if isConst && types.IsConstantType(bt) {
		if _, basic := bt.(*types.Basic); basic {
			if v, fits := c.representable(o.Value, bt); fits {
				o.Value = v
				ok = true
			} else if types.IsPointer(to) && c.castable(o, to) {
				ok = true
			}
		}
	} else if c.castable(o, to) {
		switch {
		case o.Mode != ModeConstant:
			o.Mode = ModeValue
		case types.IsSlice(to) && types.IsString(o.Type):
			o.Mode = ModeValue
		case !types.IsVector(o.Type) && types.IsVector(to):
			o.Mode = ModeValue
		}
		ok = true
	}

	if !ok {
		c.errorf(o.Expr, "Cannot cast `%s` as `%s` from `%s`", exprString(o.Expr), to, o.Type)
		o.invalidate()
		return
	}

	if types.IsUntyped(o.Type) {
		final := to
		if isConst && !types.IsConstantType(to) {
			final = types.Default(o.Type)
		}
		c.updateExprType(o.Expr, final, true)
	}
	o.Type = to
}

// checkTransmute reinterprets the bits of o as type to. Sizes must match.
func (c *Checker) checkTransmute(o *Operand, to types.Type) {
	if o.Mode == ModeConstant {
		c.errorf(o.Expr, "Cannot transmute a constant expression: `%s`", exprString(o.Expr))
		o.invalidate()
		return
	}
	if types.IsUntyped(o.Type) {
		c.errorf(o.Expr, "Cannot transmute untyped expression: `%s`", exprString(o.Expr))
		o.invalidate()
		return
	}
	srcz, dstz := c.sizes.SizeOf(o.Type), c.sizes.SizeOf(to)
	if srcz != dstz {
		c.errorf(o.Expr, "Cannot transmute `%s` to `%s`, %d vs %d bytes", exprString(o.Expr), to, srcz, dstz)
		o.invalidate()
		return
	}
	o.Mode = ModeValue
	o.Type = to
}
