package checker

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

// checkIndexValue checks an index expression against an optional constant
// bound max (negative when unknown). It returns the constant index, or -1
// when the index is not constant, and whether the index is acceptable. A
// closed range rejects max itself.
func (c *Checker) checkIndexValue(closed bool, n *ast.Node, max int64) (int64, bool) {
	var o Operand
	c.checkExpr(&o, n)
	if o.Mode == ModeInvalid {
		return 0, false
	}
	c.convertToTyped(&o, types.Typ[types.Int])
	if o.Mode == ModeInvalid {
		return 0, false
	}
	if !types.IsInteger(o.Type) {
		c.errorf(n, "Index `%s` must be an integer", exprString(n))
		return 0, false
	}

	if o.Mode == ModeConstant && !c.ctx.noBoundsCheck {
		i, _ := exact.ToInteger(o.Value).Int64()
		if i < 0 {
			c.errorf(n, "Index `%s` cannot be a negative value", exprString(n))
			return 0, false
		}
		if max >= 0 {
			out := i > max
			if closed {
				out = i >= max
			}
			if out {
				c.errorf(n, "Index `%s` is out of bounds range 0..<%d", exprString(n), max)
				return i, false
			}
		}
		return i, true
	}
	return -1, true
}

func setModeWithIndirection(o *Operand, indirect bool) {
	if o.Mode == ModeImmutable {
		return
	}
	if indirect {
		o.Mode = ModeVariable
	} else if o.Mode != ModeVariable && o.Mode != ModeConstant {
		o.Mode = ModeValue
	}
}

// setIndexData turns o into the element it indexes. max receives the
// static length when one is known.
func setIndexData(o *Operand, t types.Type, indirect bool) (max int64, ok bool) {
	max = -1
	switch b := types.Base(types.Deref(t)).(type) {
	case *types.Basic:
		if types.IsString(b) {
			if o.Mode == ModeConstant {
				max = int64(len(o.Value.Str()))
			}
			setModeWithIndirection(o, indirect)
			o.Type = types.Typ[types.U8]
			return max, true
		}
	case *types.Array:
		setModeWithIndirection(o, indirect)
		o.Type = b.Elem
		return b.Count, true
	case *types.Vector:
		setModeWithIndirection(o, indirect)
		o.Type = b.Elem
		return b.Count, true
	case *types.Slice:
		o.Type = b.Elem
		if o.Mode != ModeImmutable {
			o.Mode = ModeVariable
		}
		return max, true
	case *types.DynamicArray:
		o.Type = b.Elem
		setModeWithIndirection(o, indirect)
		return max, true
	}
	return max, false
}

func (c *Checker) checkIndexExpr(o *Operand, n *ast.Node, d ast.IndexExprNode) {
	c.checkExpr(o, d.Expr)
	if o.Mode == ModeInvalid {
		return
	}

	t := types.Base(types.Deref(o.Type))
	isPtr := types.IsPointer(o.Type)
	isConst := o.Mode == ModeConstant

	if m, ok := t.(*types.Map); ok {
		var key Operand
		c.checkExprWithHint(&key, d.Index, m.Key)
		c.checkAssignment(&key, m.Key, "map index")
		if key.Mode == ModeInvalid {
			o.invalidate()
			return
		}
		o.Mode = ModeMapIndex
		o.Type = m.Value
		return
	}

	max, valid := setIndexData(o, t, isPtr)
	if isConst {
		valid = false
	}
	if !valid && (types.IsStruct(t) || types.IsRawUnion(t)) {
		if sel := types.FindUsingIndexField(t); sel.Found() {
			max, valid = setIndexData(o, sel.Entity.Type, isPtr || sel.Indirect || types.IsPointer(sel.Entity.Type))
			if valid {
				c.recordSelection(n, sel)
			}
		}
	}

	if !valid {
		if isConst {
			c.errorf(d.Expr, "Cannot index a constant `%s`", exprString(d.Expr))
		} else {
			c.errorf(d.Expr, "Cannot index `%s`", exprString(d.Expr))
		}
		o.invalidate()
		return
	}
	if d.Index == nil {
		c.errorf(d.Expr, "Missing index for `%s`", exprString(d.Expr))
		o.invalidate()
		return
	}

	c.checkIndexValue(true, d.Index, max)
}

func (c *Checker) checkSliceExpr(o *Operand, n *ast.Node, d ast.SliceExprNode) {
	c.checkExpr(o, d.Expr)
	if o.Mode == ModeInvalid {
		return
	}

	valid := false
	max := int64(-1)
	switch b := types.Base(types.Deref(o.Type)).(type) {
	case *types.Basic:
		if types.IsString(b) {
			if d.Index3 {
				c.errorf(n, "3-index slice on a string in not needed")
				o.invalidate()
				return
			}
			valid = true
			if o.Mode == ModeConstant {
				max = int64(len(o.Value.Str()))
			}
			o.Type = types.Typ[types.String]
		}
	case *types.Array:
		valid = true
		max = b.Count
		if o.Mode != ModeVariable && !types.IsPointer(o.Type) {
			c.errorf(n, "Cannot slice array `%s`, value is not addressable", exprString(n))
			o.invalidate()
			return
		}
		o.Type = types.NewSlice(b.Elem)
	case *types.Slice:
		valid = true
		o.Type = b
	case *types.DynamicArray:
		valid = true
		o.Type = types.NewSlice(b.Elem)
	}

	if !valid {
		c.errorf(d.Expr, "Cannot slice `%s`", exprString(d.Expr))
		o.invalidate()
		return
	}
	if o.Mode != ModeImmutable {
		o.Mode = ModeValue
	}

	if d.Low == nil && d.High != nil {
		c.errorAt(d.Interval0, "1st index is required if a 2nd index is specified")
	}
	if d.Index3 && (d.High == nil || d.Max == nil) {
		c.errorf(n, "2nd and 3rd indices are required in a 3-index slice")
		o.invalidate()
		return
	}
	if d.Index3 && d.Interval0.Type != d.Interval1.Type {
		c.errorf(n, "The interval separators for in a 3-index slice must be the same")
		o.invalidate()
		return
	}

	closed := d.Interval0.Type == token.Dots
	var indices [3]int64
	for i, idx := range []*ast.Node{d.Low, d.High, d.Max} {
		v := max
		if idx != nil {
			if j, ok := c.checkIndexValue(closed, idx, max); ok {
				v = j
			}
		} else if i == 0 {
			v = 0
		}
		indices[i] = v
	}

	for i, a := range indices {
		for _, b := range indices[i+1:] {
			if a > b && b >= 0 {
				c.errorf(n, "Invalid slice indices: [%d > %d]", a, b)
			}
		}
	}
}
