package checker

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/types"
)

// inferredArrayCount reports whether n is `[..]T`.
func inferredArrayCount(n *ast.Node) (ast.ArrayTypeNode, bool) {
	if n == nil {
		return ast.ArrayTypeNode{}, false
	}
	at, ok := n.Data.(ast.ArrayTypeNode)
	return at, ok && at.Count != nil && at.Count.Type == ast.Ellipsis
}

// canBeConstant reports whether a field of type t may appear in a
// constant literal.
func canBeConstant(t types.Type) bool {
	return !types.IsAny(t) && !types.IsUnion(t) && !types.IsRawUnion(t)
}

func (c *Checker) checkCompoundLit(o *Operand, n *ast.Node, d ast.CompoundLitNode, hint types.Type) {
	t := hint
	var inferred *types.Array
	if d.Type != nil {
		if at, ok := inferredArrayCount(d.Type); ok {
			inferred = types.NewArray(c.checkType(at.Elem), -1)
			t = inferred
		} else {
			t = c.checkType(d.Type)
		}
	}
	if t == nil {
		c.errorf(n, "Missing type in compound literal")
		return
	}

	constant := true
	switch b := types.Base(t).(type) {
	case *types.Record:
		if b.Kind == types.RecordRawUnion {
			if len(d.Elems) != 0 {
				c.errorf(n, "Illegal compound literal type `%s`", t)
			}
			break
		}
		if b.Kind == types.RecordUnion {
			constant = false
		}
		if len(d.Elems) > 0 {
			constant = c.checkRecordLit(n, d, t, b) && constant
		}

	case *types.Slice:
		constant = c.checkElemLit(n, d, b.Elem, -1, "slice literal") && constant
	case *types.Array:
		constant = c.checkElemLit(n, d, b.Elem, b.Count, "array literal") && constant
	case *types.Vector:
		constant = c.checkElemLit(n, d, b.Elem, b.Count, "vector literal") && constant
		count := int64(len(d.Elems))
		if b.Count > 1 && count >= 2 && count <= b.Count-1 {
			c.errorf(d.Elems[0], "Expected either 1 (broadcast) or %d elements in vector literal, got %d", b.Count, count)
		}
	case *types.DynamicArray:
		c.checkElemLit(n, d, b.Elem, -1, "dynamic array literal")
		constant = false

	case *types.Basic:
		if !types.IsAny(b) {
			if len(d.Elems) != 0 {
				c.errorf(n, "Illegal compound literal")
			}
			break
		}
		if len(d.Elems) > 0 {
			c.checkAnyLit(d)
			constant = false
		}

	case *types.Map:
		if len(d.Elems) > 0 {
			c.checkMapLit(d, b)
			constant = false
		}

	default:
		c.errorf(n, "Invalid compound literal type `%s`", t)
		return
	}

	if inferred != nil {
		inferred.Count = int64(len(d.Elems))
		c.recordTypeAndValue(d.Type, ModeType, inferred, exact.Value{})
	}

	if constant {
		o.Mode = ModeConstant
		o.Value = exact.MakeCompound(n)
	} else {
		o.Mode = ModeValue
	}
	o.Type = t
}

// checkRecordLit checks the elements of a struct or union literal against
// the fields of r. Positional elements follow declaration order.
func (c *Checker) checkRecordLit(n *ast.Node, d ast.CompoundLitNode, t types.Type, r *types.Record) bool {
	constant := true
	commit := func(value *ast.Node, field *types.Entity) {
		var eo Operand
		c.checkExprWithHint(&eo, value, field.Type)
		if !canBeConstant(field.Type) || eo.Mode != ModeConstant {
			constant = false
		}
		c.checkAssignment(&eo, field.Type, "structure literal")
	}

	if d.Elems[0].Type == ast.FieldValue {
		visited := make([]bool, len(r.Fields))
		for _, elem := range d.Elems {
			fv, ok := elem.Data.(ast.FieldValueNode)
			if !ok {
				c.errorf(elem, "Mixture of `field = value` and value elements in a structure literal is not allowed")
				continue
			}
			if fv.Field.Type != ast.Ident {
				c.errorf(elem, "Invalid field name `%s` in structure literal", exprString(fv.Field))
				continue
			}
			name := ast.IdentName(fv.Field)

			sel := types.LookupField(t, name, false)
			if !sel.Found() || sel.Entity.Is(types.FlagTypeField) {
				c.errorf(elem, "Unknown field `%s` in structure literal", name)
				continue
			}
			if !c.fieldExported(sel.Entity) {
				c.errorf(elem, "Cannot assign to an unexported field `%s` in structure literal", name)
				continue
			}
			if len(sel.Index) > 1 {
				c.errorf(elem, "Cannot assign to an anonymous field `%s` in a structure literal (at the moment)", name)
				continue
			}

			index := sel.Index[0]
			field := r.Fields[index]
			c.recordUse(fv.Field, field)
			if visited[index] {
				c.errorf(elem, "Duplicate field `%s` in structure literal", name)
				continue
			}
			visited[index] = true
			commit(fv.Value, field)
		}
		return constant
	}

	fieldCount := len(r.FieldsInSrcOrder)
	allBlank := true
	for _, f := range r.FieldsInSrcOrder {
		if f.Name != "_" {
			allBlank = false
			break
		}
	}

	for i, elem := range d.Elems {
		if elem.Type == ast.FieldValue {
			c.errorf(elem, "Mixture of `field = value` and value elements in a structure literal is not allowed")
			continue
		}
		if i >= fieldCount {
			c.errorf(elem, "Too many values in structure literal, expected %d", fieldCount)
			break
		}
		field := r.FieldsInSrcOrder[i]
		if !allBlank && field.Name == "_" {
			continue
		}
		if !c.fieldExported(field) {
			c.errorf(elem, "Implicit assignment to an unexported field `%s` in `%s` literal", field.Name, t)
			continue
		}
		commit(elem, field)
	}
	if len(d.Elems) < fieldCount {
		c.errorf(n, "Too few values in structure literal, expected %d, got %d", fieldCount, len(d.Elems))
	}
	return constant
}

// checkElemLit checks positional elements of an array-like literal. max is
// the static element count, or negative when unbounded.
func (c *Checker) checkElemLit(n *ast.Node, d ast.CompoundLitNode, elem types.Type, max int64, ctxName string) bool {
	constant := !types.IsAny(elem)
	for i, e := range d.Elems {
		if e == nil {
			c.errorf(n, "Invalid literal element")
			continue
		}
		if e.Type == ast.FieldValue {
			c.errorf(e, "`field = value` is only allowed in struct literals")
			continue
		}
		if max >= 0 && int64(i) >= max {
			c.errorf(e, "Index %d is out of bounds (>= %d) for %s", i, max, ctxName)
		}

		var eo Operand
		c.checkExprWithHint(&eo, e, elem)
		c.checkAssignment(&eo, elem, ctxName)
		if eo.Mode != ModeConstant {
			constant = false
		}
	}
	return constant
}

func (c *Checker) checkAnyLit(d ast.CompoundLitNode) {
	fieldTypes := [2]types.Type{types.Typ[types.Rawptr], types.NewPointer(types.TypeInfo)}
	anyType := types.Typ[types.Any]

	if d.Elems[0].Type == ast.FieldValue {
		var visited [2]bool
		for _, elem := range d.Elems {
			fv, ok := elem.Data.(ast.FieldValueNode)
			if !ok {
				c.errorf(elem, "Mixture of `field = value` and value elements in a `any` literal is not allowed")
				continue
			}
			if fv.Field.Type != ast.Ident {
				c.errorf(elem, "Invalid field name `%s` in `any` literal", exprString(fv.Field))
				continue
			}
			name := ast.IdentName(fv.Field)
			sel := types.LookupField(anyType, name, false)
			if !sel.Found() {
				c.errorf(elem, "Unknown field `%s` in `any` literal", name)
				continue
			}
			index := sel.Index[0]
			if visited[index] {
				c.errorf(elem, "Duplicate field `%s` in `any` literal", name)
				continue
			}
			visited[index] = true
			var eo Operand
			c.checkExpr(&eo, fv.Value)
			c.checkAssignment(&eo, fieldTypes[index], "`any` literal")
		}
		return
	}

	for i, elem := range d.Elems {
		if elem.Type == ast.FieldValue {
			c.errorf(elem, "Mixture of `field = value` and value elements in a `any` literal is not allowed")
			continue
		}
		var eo Operand
		c.checkExpr(&eo, elem)
		if i >= len(fieldTypes) {
			c.errorf(elem, "Too many values in `any` literal, expected %d", len(fieldTypes))
			break
		}
		c.checkAssignment(&eo, fieldTypes[i], "`any` literal")
	}
	if len(d.Elems) < len(fieldTypes) {
		c.errorf(d.Elems[0], "Too few values in `any` literal, expected %d, got %d", len(fieldTypes), len(d.Elems))
	}
}

func (c *Checker) checkMapLit(d ast.CompoundLitNode, m *types.Map) {
	for _, elem := range d.Elems {
		fv, ok := elem.Data.(ast.FieldValueNode)
		if !ok {
			c.errorf(elem, "Only `field = value` elements are allowed in a map literal")
			continue
		}
		var key Operand
		c.checkExprWithHint(&key, fv.Field, m.Key)
		c.checkAssignment(&key, m.Key, "map literal")
		if key.Mode == ModeInvalid {
			continue
		}
		var value Operand
		c.checkExprWithHint(&value, fv.Value, m.Value)
		c.checkAssignment(&value, m.Value, "map literal")
	}
}
