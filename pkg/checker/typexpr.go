package checker

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

func (c *Checker) checkType(n *ast.Node) types.Type { return c.checkTypeExtra(n, nil) }

// checkTypeExtra evaluates a type expression. named, when set, is the type
// being declared by n; records publish themselves through it before their
// fields are checked so they may refer to themselves through pointers.
func (c *Checker) checkTypeExtra(n *ast.Node, named *types.Named) types.Type {
	t, ok := c.typeExprInternal(n, named)
	if !ok {
		c.errorf(n, "`%s` is not a type", exprString(n))
		t = types.Typ[types.Invalid]
	}
	if t == nil {
		t = types.Typ[types.Invalid]
	}

	if nt, isNamed := t.(*types.Named); isNamed && nt.Base == nil {
		c.errorf(n, "Invalid type definition of %s", nt)
		nt.Base = types.Typ[types.Invalid]
	}

	if types.IsTyped(t) {
		c.recordTypeAndValue(n, ModeType, t, exact.Value{})
	} else {
		c.errorf(n, "Invalid type definition of %s", t)
		t = types.Typ[types.Invalid]
	}
	if named != nil && named.Base == nil {
		named.Base = types.Base(t)
	}
	return t
}

func setBase(named *types.Named, t types.Type) {
	if named != nil {
		named.Base = t
	}
}

func (c *Checker) typeExprInternal(n *ast.Node, named *types.Named) (types.Type, bool) {
	if n == nil {
		return types.Typ[types.Invalid], true
	}

	switch d := n.Data.(type) {
	case ast.IdentNode:
		var o Operand
		c.checkIdent(&o, n, named, nil, false)
		switch o.Mode {
		case ModeInvalid:
		case ModeType:
			return o.Type, true
		case ModeNoValue:
			c.errorf(n, "`%s` used as a type", exprString(n))
		default:
			c.errorf(n, "`%s` used as a type when not a type", exprString(n))
		}
		return types.Typ[types.Invalid], true

	case ast.SelectorExprNode:
		var o Operand
		c.checkSelector(&o, n, d, nil)
		switch o.Mode {
		case ModeInvalid:
		case ModeType:
			return o.Type, true
		case ModeNoValue:
			c.errorf(n, "`%s` used as a type", exprString(n))
		default:
			c.errorf(n, "`%s` is not a type", exprString(n))
		}
		return types.Typ[types.Invalid], true

	case ast.ParenExprNode:
		return c.checkTypeExtra(d.Expr, named), true

	case ast.UnaryExprNode:
		if d.Op == token.Caret {
			return types.NewPointer(c.checkType(d.Expr)), true
		}

	case ast.HelperTypeNode:
		return c.checkType(d.Type), true

	case ast.PointerTypeNode:
		return types.NewPointer(c.checkType(d.Type)), true

	case ast.ArrayTypeNode:
		if d.Count == nil {
			return types.NewSlice(c.checkType(d.Elem)), true
		}
		elem := c.checkType(d.Elem)
		count := c.checkArrayOrMapCount(d.Count, false)
		if count < 0 {
			c.errorf(d.Count, ".. can only be used in conjuction with compound literals")
			count = 0
		}
		return types.NewArray(elem, count), true

	case ast.DynamicArrayTypeNode:
		return types.NewDynamicArray(c.checkType(d.Elem)), true

	case ast.VectorTypeNode:
		elem := c.checkType(d.Elem)
		be := types.Base(elem)
		count := c.checkArrayOrMapCount(d.Count, false)
		if types.IsVector(be) || (!types.IsBoolean(be) && !types.IsNumeric(be)) {
			c.errorf(d.Elem, "Vector element type must be numerical or a boolean, got `%s`", elem)
		}
		if count <= 0 {
			c.errorf(n, "Vector count must be positive, got %d", count)
			count = 1
		}
		return types.NewVector(elem, count), true

	case ast.StructTypeNode:
		r := &types.Record{Kind: types.RecordStruct, Node: n}
		setBase(named, r)
		r.Scope = c.openScope(n, types.ScopeRecord)
		c.checkStructType(r, n, d)
		c.closeScope()
		return r, true

	case ast.UnionTypeNode:
		r := &types.Record{Kind: types.RecordUnion, Node: n}
		setBase(named, r)
		r.Scope = c.openScope(n, types.ScopeRecord)
		c.checkUnionType(r, n, d)
		c.closeScope()
		return r, true

	case ast.RawUnionTypeNode:
		r := &types.Record{Kind: types.RecordRawUnion, Node: n}
		setBase(named, r)
		r.Scope = c.openScope(n, types.ScopeRecord)
		c.checkRawUnionType(r, n, d)
		c.closeScope()
		return r, true

	case ast.EnumTypeNode:
		et := &types.Enum{Node: n}
		setBase(named, et)
		c.openScope(n, types.ScopeRecord)
		c.checkEnumType(et, named, n, d)
		c.closeScope()
		return et, true

	case ast.ProcTypeNode:
		pt := &types.Proc{Node: n}
		setBase(named, pt)
		c.openScope(n, types.ScopeProc)
		c.checkProcType(pt, n)
		c.closeScope()
		return pt, true

	case ast.MapTypeNode:
		return c.checkMapType(n, d), true

	case ast.CallExprNode:
		var o Operand
		c.checkExprOrType(&o, n)
		if o.Mode == ModeType {
			return o.Type, true
		}
	}

	return types.Typ[types.Invalid], false
}

// checkArrayOrMapCount evaluates the constant count of [N]T or a fixed map.
// A `..` count yields -1.
func (c *Checker) checkArrayOrMapCount(n *ast.Node, isMap bool) int64 {
	if n == nil {
		return 0
	}
	if n.Type == ast.Ellipsis {
		return -1
	}
	kind := "Array"
	if isMap {
		kind = "Fixed map"
	}

	var o Operand
	c.checkExpr(&o, n)
	if o.Mode != ModeConstant {
		if o.Mode != ModeInvalid {
			c.errorf(n, "%s count must be a constant", kind)
		}
		return 0
	}
	if types.IsUntyped(o.Type) || types.IsInteger(o.Type) {
		if iv := exact.ToInteger(o.Value); iv.Kind() == exact.Integer {
			count, ok := iv.Int64()
			switch {
			case isMap && ok && count > 0:
				return count
			case !isMap && ok && count >= 0:
				return count
			case isMap:
				c.errorf(n, "Invalid fixed map count")
			default:
				c.errorf(n, "Invalid array count")
			}
			return 0
		}
	}
	c.errorf(n, "%s count must be an integer", kind)
	return 0
}

func isValidMapKey(t types.Type) bool {
	t = types.Core(t)
	if types.IsUntyped(t) || types.IsBoolean(t) {
		return false
	}
	return types.IsInteger(t) || types.IsFloat(t) || types.IsString(t) || types.IsPointer(t)
}

func (c *Checker) checkMapType(n *ast.Node, d ast.MapTypeNode) types.Type {
	count := c.checkArrayOrMapCount(d.Count, true)
	key := c.checkType(d.Key)
	value := c.checkType(d.Value)

	if !isValidMapKey(key) && !types.IsInvalid(key) {
		if types.IsBoolean(key) {
			c.errorf(n, "A boolean cannot be used as a key for a map")
		} else {
			c.errorf(n, "Invalid type of a key for a map, got `%s`", key)
		}
	}
	if count > 0 {
		c.errorf(n, "Fixed map types are not yet implemented")
		count = 0
	}
	return types.NewMap(key, value, count)
}

// checkProcType fills pt from a ProcType node. Parameters are declared in
// the current scope, which the caller opens.
func (c *Checker) checkProcType(pt *types.Proc, n *ast.Node) {
	d, ok := n.Data.(ast.ProcTypeNode)
	if !ok {
		c.errorf(n, "Expected a procedure type, got `%s`", exprString(n))
		return
	}
	pt.Scope = c.ctx.scope
	pt.Params, pt.Variadic = c.checkParams(d.Params)
	pt.Results = c.checkResults(d.Results)
	pt.CC = d.CC
	types.SetAbiTypes(c.cfg.ABI, c.sizes, pt)
}

func (c *Checker) checkParams(fields []*ast.Node) (*types.Tuple, bool) {
	if len(fields) == 0 {
		return nil, false
	}

	var vars []*types.Entity
	variadic := false
	for i, fn := range fields {
		f, ok := fn.Data.(ast.FieldNode)
		if !ok {
			c.errorf(fn, "Invalid AST: expected a parameter field")
			continue
		}
		if f.Type == nil {
			continue
		}

		typeExpr := f.Type
		ellipsis := f.Flags&ast.FieldEllipsis != 0
		if typeExpr.Type == ast.Ellipsis {
			typeExpr = typeExpr.Data.(ast.EllipsisNode).Expr
			ellipsis = true
		}
		if ellipsis {
			if i+1 == len(fields) {
				variadic = true
			} else {
				c.errorf(fn, "Invalid AST: Invalid variadic parameter")
			}
		}

		t := c.checkType(typeExpr)
		noAlias := f.Flags&ast.FieldNoAlias != 0
		if noAlias && !types.IsPointer(t) {
			c.errorf(fn, "`no_alias` can only be applied to fields of pointer type")
			noAlias = false
		}

		for _, name := range f.Names {
			if name.Type != ast.Ident {
				c.errorf(name, "Expected an identifier as the parameter name")
				continue
			}
			p := types.NewParam(ast.IdentName(name), t)
			if f.Flags&ast.FieldUsing != 0 {
				p.Flags |= types.FlagUsing
			}
			if f.Flags&ast.FieldImmutable != 0 {
				p.Flags |= types.FlagImmutable
			}
			if noAlias {
				p.Flags |= types.FlagNoAlias
			}
			c.declare(name, p)
			vars = append(vars, p)
		}
	}

	if variadic && len(vars) > 0 {
		end := vars[len(vars)-1]
		end.Type = types.NewSlice(end.Type)
		end.Flags |= types.FlagEllipsis
	}
	return types.NewTuple(vars...), variadic
}

func (c *Checker) checkResults(fields []*ast.Node) *types.Tuple {
	if len(fields) == 0 {
		return nil
	}

	var vars []*types.Entity
	for _, fn := range fields {
		f, ok := fn.Data.(ast.FieldNode)
		if !ok {
			c.errorf(fn, "Invalid AST: expected a result field")
			continue
		}
		t := c.checkType(f.Type)
		if len(f.Names) == 0 {
			vars = append(vars, types.NewParam("", t).WithToken(f.Type.Tok))
			continue
		}
		for _, name := range f.Names {
			r := types.NewParam("", t).WithToken(f.Type.Tok)
			if name.Type != ast.Ident {
				c.errorf(name, "Expected an identifer for as the field name")
			} else {
				r.Name = ast.IdentName(name)
				r.Token = name.Tok
			}
			vars = append(vars, r)
		}
	}

	for i, x := range vars {
		if x.Name == "" || x.Name == "_" {
			continue
		}
		for _, y := range vars[i+1:] {
			if y.Name == x.Name {
				c.errorAt(y.Token, "Duplicate return value name `%s`", y.Name)
			}
		}
	}
	return types.NewTuple(vars...)
}
