package checker

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
	"github.com/xplshn/odinc/pkg/util"
)

// checkExprBase checks n and records its annotation. Untyped results stay
// pending until the context commits them to a type.
func (c *Checker) checkExprBase(o *Operand, n *ast.Node, hint types.Type) exprKind {
	kind := c.checkExprInternal(o, n, hint)

	var t types.Type
	var v exact.Value
	switch o.Mode {
	case ModeInvalid:
		t = types.Typ[types.Invalid]
	case ModeNoValue:
	default:
		t = o.Type
		if o.Mode == ModeConstant {
			v = o.Value
		}
	}
	if t != nil && types.IsUntyped(t) {
		c.recordUntyped(n, false, o.Mode, t, v)
	} else {
		c.recordTypeAndValue(n, o.Mode, t, v)
	}
	return kind
}

// checkMultiExpr checks an expression that may yield a tuple.
func (c *Checker) checkMultiExpr(o *Operand, n *ast.Node) {
	c.checkExprBase(o, n, nil)
	switch o.Mode {
	case ModeType:
		c.errorf(n, "`%s` is not an expression", exprString(n))
	case ModeNoValue:
		c.errorf(n, "`%s` used as value", exprString(n))
	case ModeOverload:
		c.errorf(n, "Cannot determine which overload of `%s` is meant", exprString(n))
	default:
		return
	}
	o.invalidate()
}

func (c *Checker) checkExpr(o *Operand, n *ast.Node) {
	c.checkMultiExpr(o, n)
	c.checkNotTuple(o)
}

func (c *Checker) checkExprOrType(o *Operand, n *ast.Node) {
	c.checkExprBase(o, n, nil)
	c.checkNotTuple(o)
	if o.Mode == ModeNoValue {
		c.errorf(n, "`%s` used as value", exprString(n))
		o.invalidate()
	}
}

func (c *Checker) checkExprWithHint(o *Operand, n *ast.Node, hint types.Type) {
	c.checkExprBase(o, n, hint)
	switch o.Mode {
	case ModeNoValue:
		c.errorf(n, "`%s` used as a value", exprString(n))
	case ModeType:
		c.errorf(n, "`%s` is not an expression", exprString(n))
	case ModeBuiltin:
		c.errorf(n, "`%s` must be called", exprString(n))
	case ModeOverload:
		c.errorf(n, "Cannot determine which overload of `%s` is meant", exprString(n))
	default:
		return
	}
	o.invalidate()
}

func (c *Checker) checkExprInternal(o *Operand, n *ast.Node, hint types.Type) exprKind {
	*o = invalidOperand(n)

	switch d := n.Data.(type) {
	case ast.BadExprNode:

	case ast.IdentNode:
		c.checkIdent(o, n, nil, hint, false)

	case ast.ImplicitNode:
		c.checkImplicit(o, n, d)

	case ast.BasicLitNode:
		o.Mode = ModeConstant
		o.Value = exact.FromLiteral(d.Kind, d.Value)
		switch d.Kind {
		case token.Integer:
			o.Type = types.Typ[types.UntypedInteger]
		case token.Float:
			o.Type = types.Typ[types.UntypedFloat]
		case token.String:
			o.Type = types.Typ[types.UntypedString]
		case token.Rune:
			o.Type = types.Typ[types.UntypedRune]
		case token.Imag:
			o.Type = types.Typ[types.UntypedComplex]
		default:
			util.Fatalf(n.Tok, "unknown literal kind %s", d.Kind)
		}
		if !o.Value.IsValid() {
			c.errorf(n, "Invalid literal `%s`", d.Value)
			o.invalidate()
		}

	case ast.BasicDirectiveNode:
		c.checkDirective(o, n, d)

	case ast.ProcLitNode:
		c.checkProcLit(o, n, d)

	case ast.CompoundLitNode:
		c.checkCompoundLit(o, n, d, hint)

	case ast.TernaryExprNode:
		c.checkTernary(o, n, d, hint)

	case ast.ParenExprNode:
		kind := c.checkExprBase(o, d.Expr, hint)
		o.Expr = n
		return kind

	case ast.UnaryExprNode:
		if d.Op == token.Caret {
			c.checkExprOrType(o, d.Expr)
			if o.Mode == ModeType {
				o.Type = types.NewPointer(o.Type)
				o.Expr = n
				return exprExpr
			}
			if o.Mode != ModeInvalid {
				c.errorf(n, "`^` may only prefix a type, got `%s`", exprString(d.Expr))
			}
			o.invalidate()
			break
		}
		c.checkExprBase(o, d.Expr, hint)
		if o.Mode == ModeInvalid {
			break
		}
		if o.Mode == ModeNoValue || o.Mode == ModeOverload || o.Mode == ModeBuiltin {
			c.errorf(d.Expr, "`%s` used as value", exprString(d.Expr))
			o.invalidate()
			break
		}
		c.checkUnaryExpr(o, d.Op, n)

	case ast.BinaryExprNode:
		c.checkBinaryExpr(o, n, d)

	case ast.SelectorExprNode:
		c.checkSelector(o, n, d, hint)

	case ast.TypeAssertionNode:
		c.checkTypeAssertion(o, n, d)

	case ast.IndexExprNode:
		c.checkIndexExpr(o, n, d)

	case ast.SliceExprNode:
		c.checkSliceExpr(o, n, d)

	case ast.CallExprNode:
		kind := c.checkCallExpr(o, n, d)
		o.Expr = n
		return kind

	case ast.DerefExprNode:
		c.checkExprOrType(o, d.Expr)
		if o.Mode == ModeInvalid {
			break
		}
		if p, ok := types.Base(o.Type).(*types.Pointer); ok && o.Mode != ModeType {
			if o.Mode != ModeImmutable {
				o.Mode = ModeVariable
			}
			o.Type = p.Elem
		} else {
			c.errorf(n, "Cannot dereference `%s`", exprString(d.Expr))
			o.invalidate()
		}

	case ast.EllipsisNode:
		c.errorf(n, "Invalid use of `..`")
	case ast.FieldValueNode:
		c.errorf(n, "`field = value` is only allowed within compound literals")

	case ast.HelperTypeNode, ast.PointerTypeNode, ast.ArrayTypeNode, ast.DynamicArrayTypeNode,
		ast.VectorTypeNode, ast.MapTypeNode, ast.ProcTypeNode, ast.StructTypeNode,
		ast.UnionTypeNode, ast.RawUnionTypeNode, ast.EnumTypeNode:
		o.Mode = ModeType
		o.Type = c.checkType(n)
		if types.IsInvalid(o.Type) {
			o.invalidate()
		}

	default:
		util.Fatalf(n.Tok, "unexpected node kind %d in expression", n.Type)
	}

	o.Expr = n
	return exprExpr
}

// checkIdent resolves an identifier. named is the type being declared when
// the identifier is a type definition's whole right-hand side; hint
// disambiguates overloaded procedures.
func (c *Checker) checkIdent(o *Operand, n *ast.Node, named *types.Named, hint types.Type, allowImport bool) *types.Entity {
	*o = invalidOperand(n)
	name := ast.IdentName(n)

	scope, e := c.Scopes.Lookup(c.ctx.scope, name)
	if e == nil {
		if name == "_" {
			c.errorf(n, "`_` cannot be used as a value type")
		} else {
			c.errorf(n, "Undeclared name: %s", name)
		}
		if named != nil {
			named.Base = types.Typ[types.Invalid]
		}
		return nil
	}

	if e.Kind == types.EntityVariable || e.Kind == types.EntityLabel {
		if !c.Scopes.Get(e.Scope).IsGlobal() && c.Scopes.EnclosingProc(e.Scope) != c.Scopes.EnclosingProc(c.ctx.scope) {
			c.errorf(n, "Nested procedures do not capture its parent's variables: %s", name)
			return nil
		}
	}

	if e.Kind == types.EntityProcedure {
		if procs := scope.Elements(name); len(procs) > 1 {
			for _, p := range procs {
				c.checkEntityDecl(p)
			}
			var picked *types.Entity
			if hint != nil {
				for _, p := range procs {
					po := Operand{Mode: ModeValue, Type: types.Base(p.Type), Expr: n}
					if c.assignable(&po, hint) {
						picked = p
						break
					}
				}
			}
			if picked == nil {
				o.Mode = ModeOverload
				o.Overloads = procs
				return nil
			}
			e = picked
		}
	}

	c.recordUse(n, e)
	c.checkEntityDecl(e)
	t := e.Type

	switch e.Kind {
	case types.EntityConstant:
		if types.IsInvalid(t) || !e.Value.IsValid() {
			return e
		}
		o.Value = e.Value
		o.Mode = ModeConstant
	case types.EntityVariable:
		if types.IsInvalid(t) {
			return e
		}
		o.Mode = ModeVariable
		if e.Is(types.FlagImmutable) {
			o.Mode = ModeImmutable
		}
	case types.EntityTypeName, types.EntityTypeAlias:
		if t == nil || types.IsInvalid(t) {
			return e
		}
		o.Mode = ModeType
	case types.EntityProcedure:
		if t == nil {
			return e
		}
		o.Mode = ModeValue
	case types.EntityBuiltin:
		o.Builtin = BuiltinID(e.Builtin)
		o.Mode = ModeBuiltin
		t = types.Typ[types.Invalid]
	case types.EntityImportName:
		if !allowImport {
			c.errorf(n, "Use of import `%s` not in selector", name)
		}
		return e
	case types.EntityLibraryName:
		c.errorf(n, "Use of library `%s` not in #foreign tag", name)
		return e
	case types.EntityLabel:
		o.Mode = ModeNoValue
	case types.EntityNil:
		o.Mode = ModeValue
	default:
		util.Fatalf(n.Tok, "unknown entity kind %s for `%s`", e.Kind, name)
	}

	o.Type = t
	return e
}

func (c *Checker) checkImplicit(o *Operand, n *ast.Node, d ast.ImplicitNode) {
	if d.Name != "context" {
		c.errorf(n, "Illegal implicit name `%s`", d.Name)
		return
	}
	if c.ctx.procScope == types.NoScope {
		c.errorf(n, "`context` is only allowed within procedures")
		return
	}
	if !c.cfg.IsFeatureEnabled(config.FeatContext) {
		c.errorf(n, "`context` is disabled for this build")
		return
	}
	o.Mode = ModeValue
	o.Type = types.Context
}

func (c *Checker) checkDirective(o *Operand, n *ast.Node, d ast.BasicDirectiveNode) {
	o.Mode = ModeConstant
	switch d.Name {
	case "file":
		path := ""
		if c.ctx.file != nil {
			path = c.ctx.file.Path
		}
		o.Type = types.Typ[types.UntypedString]
		o.Value = exact.MakeString(path)
	case "line":
		o.Type = types.Typ[types.UntypedInteger]
		o.Value = exact.MakeInt64(int64(n.Tok.Line))
	case "procedure":
		o.Type = types.Typ[types.UntypedString]
		if c.ctx.procScope == types.NoScope {
			c.errorf(n, "#procedure may only be used within procedures")
			o.Value = exact.MakeString("")
		} else {
			o.Value = exact.MakeString(c.ctx.procName)
		}
	default:
		c.errorf(n, "Unknown directive `#%s`", d.Name)
		o.invalidate()
	}
}

func (c *Checker) checkProcLit(o *Operand, n *ast.Node, d ast.ProcLitNode) {
	if pb, ok := c.Info.ProcLits[n]; ok {
		o.Mode, o.Type = ModeValue, pb.Type
		return
	}
	if d.Tags != 0 {
		c.errorf(n, "A procedure literal cannot have tags")
		d.Tags = 0
	}

	pt := &types.Proc{Node: n}
	scope := c.openScope(n, types.ScopeProc)
	c.checkProcType(pt, d.Type)
	c.closeScope()

	if d.Body == nil {
		c.errorf(n, "Invalid procedure literal `%s`", exprString(n))
		return
	}

	pb := &ProcBody{Name: c.procLitName(), Type: pt, Lit: n, Body: d.Body, Scope: scope, file: c.ctx.file, fileScope: c.ctx.fileScope}
	c.Info.ProcLits[n] = pb
	c.Info.Procs = append(c.Info.Procs, pb)
	c.procQueue = append(c.procQueue, pb)

	o.Mode, o.Type = ModeValue, pt
}

func (c *Checker) checkTernary(o *Operand, n *ast.Node, d ast.TernaryExprNode, hint types.Type) {
	var cond Operand
	c.checkExpr(&cond, d.Cond)
	if cond.Mode != ModeInvalid && !types.IsBoolean(cond.Type) {
		c.errorf(d.Cond, "Non-boolean condition in if expression")
	}
	c.convertToTyped(&cond, types.Typ[types.Bool])

	var x, y Operand
	c.checkExprWithHint(&x, d.X, hint)
	if d.Y == nil {
		c.errorf(n, "A ternary expression must have an else clause")
		return
	}
	c.checkExprWithHint(&y, d.Y, hint)
	if x.Mode == ModeInvalid || y.Mode == ModeInvalid || cond.Mode == ModeInvalid {
		return
	}

	c.convertToTyped(&x, y.Type)
	if x.Mode == ModeInvalid {
		return
	}
	c.convertToTyped(&y, x.Type)
	if y.Mode == ModeInvalid {
		return
	}
	if !types.Identical(x.Type, y.Type) {
		c.errorf(n, "Mismatched types in ternary expression, %s vs %s", x.Type, y.Type)
		return
	}

	o.Type = x.Type
	o.Mode = ModeValue
	if cond.Mode == ModeConstant && x.Mode == ModeConstant && y.Mode == ModeConstant {
		o.Mode = ModeConstant
		if cond.Value.Bool() {
			o.Value = x.Value
		} else {
			o.Value = y.Value
		}
	}
}

func (c *Checker) checkTypeAssertion(o *Operand, n *ast.Node, d ast.TypeAssertionNode) {
	c.checkExpr(o, d.Expr)
	if o.Mode == ModeInvalid {
		return
	}
	if o.Mode == ModeConstant {
		c.errorf(d.Expr, "A type assertion cannot be applied to a constant expression: `%s`", exprString(d.Expr))
		o.invalidate()
		return
	}
	if types.IsUntyped(o.Type) {
		c.errorf(d.Expr, "A type assertion cannot be applied to an untyped expression: `%s`", exprString(d.Expr))
		o.invalidate()
		return
	}

	t := c.checkType(d.Type)
	if types.IsInvalid(t) {
		o.invalidate()
		return
	}
	src, dst := o.Type, t
	srcPtr, dstPtr := types.IsPointer(src), types.IsPointer(dst)
	if srcPtr != dstPtr {
		c.errorf(n, "Invalid type assertion types: `%s` and `%s`", o.Type, t)
		o.invalidate()
		return
	}
	if srcPtr {
		src, dst = types.Deref(src), types.Deref(dst)
	}

	switch {
	case types.IsUnion(src):
		if !types.UnionHasVariant(src, dst) {
			c.errorf(n, "Cannot type assert `%s` to `%s`", exprString(d.Expr), t)
			o.invalidate()
			return
		}
	case types.IsAny(src):
	default:
		c.errorf(n, "Type assertions can only operate on unions")
		o.invalidate()
		return
	}

	c.addTypeInfoType(o.Type)
	c.addTypeInfoType(t)
	o.Mode = ModeOptionalOk
	o.Type = t
}
