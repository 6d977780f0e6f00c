package checker

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

func newNamesField() *types.Entity {
	e := types.NewField("names", types.NewSlice(types.Typ[types.String]), false, 0)
	e.Flags |= types.FlagImmutable | types.FlagTypeField
	return e
}

// insertField puts a field or enum constant into the current record scope.
// Duplicates are diagnosed by the callers in their own terms.
func (c *Checker) insertField(ident *ast.Node, e *types.Entity) {
	if ident != nil {
		e.Ident = ident
		e.Token = ident.Tok
		c.Info.Defs[ident] = e
	}
	c.Scopes.Insert(c.ctx.scope, e)
}

// populateUsing exposes the fields of a `using` field's record in the
// current record scope, recursing through nested `using` fields.
func (c *Checker) populateUsing(t types.Type, seen map[string]*types.Entity) {
	r, ok := types.Base(types.Deref(t)).(*types.Record)
	if !ok {
		return
	}
	for _, f := range r.Fields {
		if prev, dup := seen[f.Name]; dup {
			c.errorAt(prev.Token, "`%s` is already declared`", f.Name)
			continue
		}
		seen[f.Name] = f
		c.Scopes.InsertImplicit(c.ctx.scope, f)
		if f.Is(types.FlagUsing) {
			c.populateUsing(f.Type, seen)
		}
	}
}

// checkFields checks record field declarations, returning them in source
// order with FieldSrcIndex set.
func (c *Checker) checkFields(decls []*ast.Node, self *types.Record) []*types.Entity {
	var fields []*types.Entity
	seen := make(map[string]*types.Entity)
	var usingIndex *types.Entity

	for _, decl := range decls {
		f, ok := decl.Data.(ast.FieldNode)
		if !ok {
			continue
		}

		t := c.checkType(f.Type)
		if self != nil && types.Base(t) == types.Type(self) {
			c.errorf(f.Type, "Invalid recursive type `%s`, a record cannot contain itself", exprString(f.Type))
			t = types.Typ[types.Invalid]
		}
		using := f.Flags&ast.FieldUsing != 0
		if using && len(f.Names) > 1 {
			c.errorf(f.Names[0], "Cannot apply `using` to more than one of the same type")
			using = false
		}

		var last *types.Entity
		for _, name := range f.Names {
			if name.Type != ast.Ident {
				c.errorf(name, "Expected an identifier as the field name")
				continue
			}
			id := ast.IdentName(name)
			e := types.NewField(id, t, using, len(fields))
			e.Ident, e.Token = name, name.Tok
			if f.Flags&ast.FieldImmutable != 0 {
				e.Flags |= types.FlagImmutable
			}

			switch {
			case id == "_":
				fields = append(fields, e)
			case id == "__tag":
				c.errorf(name, "`__tag` is a reserved identifier for fields")
			default:
				if prev, dup := seen[id]; dup {
					c.errorf(name, "`%s` is already declared in this type", id)
					c.diag.Notef("previously declared at %s", prev.Token.Pos())
					break
				}
				seen[id] = e
				fields = append(fields, e)
				c.insertField(name, e)
				last = e
			}
		}

		if !using || last == nil {
			continue
		}
		bt := types.Base(types.Deref(t))
		if !types.IsStruct(bt) && !types.IsRawUnion(bt) {
			name := ast.IdentName(f.Names[0])
			if !types.IsIndexable(bt) {
				c.errorf(f.Names[0], "`using` on a field `%s` must be a `struct` or `raw_union`", name)
				continue
			}
			if usingIndex != nil {
				last.Flags &^= types.FlagUsing
				c.errorf(f.Names[0], "Previous `using` for an index expression `%s`", usingIndex.Name)
			} else {
				usingIndex = last
			}
		}
		c.populateUsing(t, seen)
	}
	return fields
}

func (c *Checker) checkStructType(r *types.Record, n *ast.Node, d ast.StructTypeNode) {
	r.Packed, r.Ordered = d.Packed, d.Ordered
	r.FieldsInSrcOrder = c.checkFields(d.Fields, r)
	r.Names = newNamesField()
	types.ReorderFields(r, c.sizes)

	if d.Align != nil {
		c.checkStructAlign(r, d)
	}
}

func (c *Checker) checkStructAlign(r *types.Record, d ast.StructTypeNode) {
	if d.Packed {
		c.errorf(d.Align, "`#align` cannot be applied with `#packed`")
		return
	}

	var o Operand
	c.checkExpr(&o, d.Align)
	if o.Mode != ModeConstant {
		if o.Mode != ModeInvalid {
			c.errorf(d.Align, "#align must be a constant")
		}
		return
	}
	if types.IsUntyped(o.Type) || types.IsInteger(o.Type) {
		if o.Value.Kind() == exact.Integer {
			align, _ := o.Value.Int64()
			if !types.IsPow2(align) {
				c.errorf(d.Align, "#align must be a power of 2, got %d", align)
				return
			}
			custom := min(align, c.cfg.MaxAlign)
			if custom < align {
				c.warnf(config.WarnAlignClamp, d.Align, "Custom alignment has been clamped to %d from %d", custom, align)
			}
			r.CustomAlign = custom
			return
		}
	}
	c.errorf(d.Align, "#align must be an integer")
}

func (c *Checker) checkUnionType(r *types.Record, n *ast.Node, d ast.UnionTypeNode) {
	r.Ordered = true
	r.Variants = []*types.Entity{types.NewTypeName("", types.Typ[types.Invalid])}
	r.FieldsInSrcOrder = c.checkFields(d.Fields, r)
	types.ReorderFields(r, c.sizes)
	r.Tag = types.NewField("__tag", types.Typ[types.Int], false, -1)

	seen := make(map[string]bool)
	for _, f := range r.Fields {
		seen[f.Name] = true
	}

	for _, vn := range d.Variants {
		v, ok := vn.Data.(ast.UnionFieldNode)
		if !ok {
			continue
		}
		name := ast.IdentName(v.Name)

		vr := &types.Record{Kind: types.RecordStruct, Ordered: true, Node: vn}
		vr.Scope = c.openScope(vn, types.ScopeRecord)
		list := make([]*ast.Node, 0, len(d.Fields)+len(v.Fields))
		list = append(list, d.Fields...)
		list = append(list, v.Fields...)
		vr.FieldsInSrcOrder = c.checkFields(list, r)
		vr.Names = newNamesField()
		types.ReorderFields(vr, c.sizes)
		c.closeScope()

		e := types.NewTypeName(name, nil)
		e.Type = types.NewNamed(name, vr, e)
		c.insertField(v.Name, e)

		if name == "_" {
			c.errorf(v.Name, "`_` cannot be used a union subtype")
			continue
		}
		if seen[name] {
			c.errorf(v.Name, "`%s` is already declared in this union", name)
			continue
		}
		seen[name] = true
		r.Variants = append(r.Variants, e)
		c.recordUse(v.Name, e)
	}
}

func (c *Checker) checkRawUnionType(r *types.Record, n *ast.Node, d ast.RawUnionTypeNode) {
	r.FieldsInSrcOrder = c.checkFields(d.Fields, r)
	r.Ordered = true
	types.ReorderFields(r, c.sizes)
	r.Names = newNamesField()
}

var enumReserved = map[string]bool{
	"count":     true,
	"min_value": true,
	"max_value": true,
	"names":     true,
	"__tag":     true,
}

func (c *Checker) checkEnumType(et *types.Enum, named *types.Named, n *ast.Node, d ast.EnumTypeNode) {
	base := types.Type(types.Typ[types.Int])
	if d.Base != nil {
		base = c.checkType(d.Base)
	}
	if types.IsEnum(base) {
		c.errorf(n, "Base type for enumeration cannot be another enumeration")
		et.Base = types.Typ[types.Int]
		return
	}
	if !types.IsInteger(base) && !types.IsFloat(base) {
		c.errorf(n, "Base type for enumeration must be numeric")
		et.Base = types.Typ[types.Int]
		return
	}
	et.Base = base

	constType := types.Type(et)
	if named != nil {
		constType = named
	}

	seen := make(map[string]bool)
	iota := exact.MakeInt64(-1)
	var minValue, maxValue exact.Value

	for _, field := range d.Fields {
		var ident, init *ast.Node
		switch fd := field.Data.(type) {
		case ast.FieldValueNode:
			if fd.Field == nil || fd.Field.Type != ast.Ident {
				c.errorf(field, "An enum field's name must be an identifier")
				continue
			}
			ident, init = fd.Field, fd.Value
		case ast.IdentNode:
			ident = field
		default:
			c.errorf(field, "An enum field's name must be an identifier")
			continue
		}
		name := ast.IdentName(ident)

		next := exact.BinaryOp(token.Plus, iota, exact.MakeInt64(1))
		if init != nil {
			var o Operand
			c.checkExpr(&o, init)
			if o.Mode != ModeConstant && o.Mode != ModeInvalid {
				c.errorf(init, "Enumeration value must be a constant")
				o.invalidate()
			}
			if o.Mode != ModeInvalid {
				c.checkAssignment(&o, constType, "enumeration")
			}
			if o.Mode != ModeInvalid {
				next = o.Value
			}
		}
		iota = next

		if name == "_" || enumReserved[name] {
			c.errorf(field, "`%s` is a reserved identifier for enumerations", name)
			continue
		}
		if seen[name] {
			c.errorf(ident, "`%s` is already declared in this enumeration", name)
			continue
		}
		seen[name] = true

		if !minValue.IsValid() || exact.Compare(token.Lt, iota, minValue) {
			minValue = iota
		}
		if !maxValue.IsValid() || exact.Compare(token.Gt, iota, maxValue) {
			maxValue = iota
		}

		e := types.NewConstant(name, constType, iota)
		e.Flags |= types.FlagVisited
		c.insertField(ident, e)
		c.recordUse(field, e)
		et.Fields = append(et.Fields, e)
	}

	if !minValue.IsValid() {
		minValue, maxValue = exact.MakeInt64(0), exact.MakeInt64(0)
	}
	et.Count = types.NewConstant("count", types.Typ[types.Int], exact.MakeInt64(int64(len(et.Fields))))
	et.MinValue = types.NewConstant("min_value", constType, minValue)
	et.MaxValue = types.NewConstant("max_value", constType, maxValue)
	et.Names = newNamesField()
}
