package checker

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/types"
)

// fileScopeOf walks up from s to the file scope that contains it.
func (c *Checker) fileScopeOf(s types.ScopeID) types.ScopeID {
	for s != types.NoScope {
		sc := c.Scopes.Get(s)
		if sc.Kind == types.ScopeFile {
			return s
		}
		s = sc.Parent
	}
	return types.NoScope
}

// fieldExported reports whether field may be named from the current file.
// Fields starting with `_` are private to the file declaring them.
func (c *Checker) fieldExported(field *types.Entity) bool {
	if field == nil || field.Kind != types.EntityVariable || field.Scope == types.NoScope {
		return true
	}
	fs := c.fileScopeOf(field.Scope)
	if fs == types.NoScope {
		return true
	}
	return field.IsExported() || fs == c.ctx.fileScope
}

// checkImportSelector resolves pkg.name. It reports handled=false when the
// left side is not an import.
func (c *Checker) checkImportSelector(o *Operand, n *ast.Node, d ast.SelectorExprNode, hint types.Type) (e *types.Entity, handled bool) {
	if d.Expr.Type != ast.Ident || ast.Unparen(d.Selector).Type != ast.Ident {
		return nil, false
	}
	pkgName := ast.IdentName(d.Expr)
	imp := c.lookup(pkgName)
	if imp == nil || imp.Kind != types.EntityImportName {
		return nil, false
	}
	c.recordUse(d.Expr, imp)

	selector := ast.Unparen(d.Selector)
	name := ast.IdentName(selector)
	scope := c.Scopes.Get(imp.ImportScope)

	var candidates []*types.Entity
	for _, e := range scope.Elements(name) {
		if !scope.Implicit[e] {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		if len(scope.Elements(name)) > 0 {
			c.errorf(d.Expr, "`%s` is not exported by `%s`", name, pkgName)
		} else {
			c.errorf(d.Expr, "`%s` is not declared by `%s`", name, pkgName)
		}
		return nil, true
	}
	entity := candidates[0]
	if !entity.IsExported() || entity.Kind == types.EntityImportName {
		c.errorf(d.Expr, "`%s` is not exported by `%s`", name, pkgName)
		return nil, true
	}

	for _, p := range candidates {
		c.checkEntityDecl(p)
	}
	if len(candidates) > 1 {
		var picked *types.Entity
		if hint != nil {
			for _, p := range candidates {
				if types.IsInvalid(p.Type) {
					continue
				}
				po := Operand{Mode: ModeValue, Type: types.Base(p.Type), Expr: n}
				if c.assignable(&po, hint) {
					picked = p
					break
				}
			}
		}
		if picked == nil {
			o.Mode = ModeOverload
			o.Type = types.Typ[types.Invalid]
			o.Overloads = candidates
			return candidates[0], true
		}
		entity = picked
	}

	c.recordUse(selector, entity)
	c.setEntityOperand(o, entity, types.Selection{}, false)
	return entity, true
}

func (c *Checker) setEntityOperand(o *Operand, e *types.Entity, sel types.Selection, fromValue bool) {
	switch e.Kind {
	case types.EntityConstant:
		o.Mode = ModeConstant
		o.Value = e.Value
	case types.EntityVariable:
		switch {
		case e.Is(types.FlagImmutable) || o.Mode == ModeImmutable:
			o.Mode = ModeImmutable
		case sel.Indirect || !fromValue:
			o.Mode = ModeVariable
		default:
			o.Mode = ModeValue
		}
	case types.EntityTypeName, types.EntityTypeAlias:
		o.Mode = ModeType
	case types.EntityProcedure, types.EntityNil:
		o.Mode = ModeValue
	case types.EntityBuiltin:
		o.Mode = ModeBuiltin
		o.Builtin = BuiltinID(e.Builtin)
	default:
		o.Mode = ModeInvalid
	}
	o.Type = e.Type
	if o.Type == nil {
		o.invalidate()
	}
}

func (c *Checker) checkSelector(o *Operand, n *ast.Node, d ast.SelectorExprNode, hint types.Type) *types.Entity {
	*o = invalidOperand(n)
	selector := ast.Unparen(d.Selector)
	if selector == nil {
		return nil
	}
	if selector.Type != ast.Ident && selector.Type != ast.BasicLit {
		c.errorf(selector, "Illegal selector kind: `%s`", exprString(selector))
		return nil
	}

	if e, handled := c.checkImportSelector(o, n, d, hint); handled {
		o.Expr = n
		return e
	}

	var exprEntity *types.Entity
	if d.Expr.Type == ast.Ident {
		exprEntity = c.lookup(ast.IdentName(d.Expr))
	}

	c.checkExprBase(o, d.Expr, nil)
	if o.Mode == ModeInvalid {
		o.Expr = n
		return nil
	}
	if o.Mode == ModeOverload || o.Mode == ModeBuiltin || o.Mode == ModeNoValue {
		c.errorf(d.Expr, "`%s` has no fields", exprString(d.Expr))
		o.invalidate()
		o.Expr = n
		return nil
	}

	var sel types.Selection
	if selector.Type == ast.Ident {
		name := ast.IdentName(selector)

		if name == "count" && o.Mode == ModeConstant && types.IsUntyped(o.Type) && o.Value.Kind() == exact.String {
			o.Value = exact.MakeInt64(int64(len(o.Value.Str())))
			o.Type = types.Typ[types.UntypedInteger]
			o.Expr = n
			return nil
		}

		sel = types.LookupField(o.Type, name, o.Mode == ModeType)
		if sel.Found() && o.Mode != ModeType && !c.fieldExported(sel.Entity) {
			c.errorf(d.Expr, "`%s` is an unexported field", name)
			o.invalidate()
			o.Expr = n
			return nil
		}
		if sel.Found() && sel.Entity.Is(types.FlagTypeField) && sel.Entity.Name == "names" {
			c.addTypeInfoType(o.Type)
		}
	} else {
		var ok bool
		if sel, ok = c.indexSelector(o, d.Expr, selector); !ok {
			o.invalidate()
			o.Expr = n
			return nil
		}
	}

	if !sel.Found() {
		c.errorf(d.Expr, "`%s` of type `%s` has no field `%s`", exprString(d.Expr), o.Type, exprString(selector))
		o.invalidate()
		o.Expr = n
		return nil
	}
	entity := sel.Entity

	if exprEntity != nil && exprEntity.Kind == types.EntityConstant && entity.Kind != types.EntityConstant {
		c.errorf(d.Expr, "Cannot access non-constant field `%s` from `%s`", exprString(selector), exprString(d.Expr))
		o.invalidate()
		o.Expr = n
		return nil
	}

	c.recordUse(selector, entity)
	if entity.Kind == types.EntityVariable {
		c.recordSelection(n, sel)
	}
	c.setEntityOperand(o, entity, sel, o.Mode == ModeValue)
	o.Expr = n
	return entity
}

// indexSelector resolves x.0 style selectors on structs and tuples.
func (c *Checker) indexSelector(o *Operand, expr, selector *ast.Node) (types.Selection, bool) {
	bt := types.Base(o.Type)
	var count int
	switch b := bt.(type) {
	case *types.Record:
		if b.Kind != types.RecordStruct {
			c.errorf(expr, "Indexed based selectors may only be used on structs or tuples")
			return types.Selection{}, false
		}
		count = len(b.FieldsInSrcOrder)
	case *types.Tuple:
		count = b.Len()
	default:
		c.errorf(expr, "Indexed based selectors may only be used on structs or tuples")
		return types.Selection{}, false
	}

	var io Operand
	c.checkExpr(&io, selector)
	if io.Mode != ModeConstant || !types.IsInteger(io.Type) {
		c.errorf(expr, "Indexed based selectors must be a constant integer")
		return types.Selection{}, false
	}
	index, _ := io.Value.Int64()
	if index < 0 {
		c.errorf(selector, "Index %d cannot be a negative value", index)
		return types.Selection{}, false
	}
	if index >= int64(count) {
		c.errorf(selector, "Index %d is out of bounds range 0..<%d", index, count)
		return types.Selection{}, false
	}

	switch b := bt.(type) {
	case *types.Record:
		f := b.FieldsInSrcOrder[index]
		return types.Selection{Entity: f, Index: []int{f.FieldIndex}}, true
	case *types.Tuple:
		return types.Selection{Entity: b.Vars[index], Index: []int{int(index)}}, true
	}
	return types.Selection{}, false
}
