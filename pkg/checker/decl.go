package checker

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/types"
)

type declState int

const (
	declUnresolved declState = iota
	declResolving
	declDone
)

// declInfo is what the checker remembers about a declaration between
// collecting its names and resolving its type.
type declInfo struct {
	ctx       context // Where the declaration appeared
	entities  []*types.Entity
	typeExpr  *ast.Node
	initExpr  *ast.Node
	initExprs []*ast.Node
	procLit   *ast.Node
	state     declState
}

type pendingImport struct {
	file  *ast.File
	scope types.ScopeID
	node  *ast.Node
}

func (c *Checker) collectFiles(files []*ast.File) {
	for _, f := range files {
		s := c.Scopes.New(c.universe, types.ScopeFile, nil)
		s.FileIndex = f.Index
		c.files[f.Path] = s.ID
		c.fileList = append(c.fileList, f)
	}
	for _, f := range files {
		c.ctx = context{scope: c.files[f.Path], fileScope: c.files[f.Path], file: f, procScope: types.NoScope}
		for _, d := range f.Decls {
			c.collectDecl(d, true)
		}
	}
	c.ctx = context{scope: c.universe, fileScope: types.NoScope, procScope: types.NoScope}
}

// collectDecl declares the names of one declaration in the current scope
// without resolving anything.
func (c *Checker) collectDecl(n *ast.Node, global bool) {
	switch d := n.Data.(type) {
	case ast.ValueDeclNode:
		if d.Mutable {
			if global {
				c.collectGlobalVars(n, d)
			}
			return
		}
		c.collectConstDecl(n, d)

	case ast.ImportDeclNode:
		if !global {
			c.errorf(n, "#import is only allowed at file scope")
			return
		}
		c.imports = append(c.imports, pendingImport{file: c.ctx.file, scope: c.ctx.scope, node: n})

	case ast.ForeignLibraryNode:
		if !global {
			c.errorf(n, "#foreign_library is only allowed at file scope")
			return
		}
		name := importBaseName(d.Path)
		if d.Name != nil {
			name = ast.IdentName(d.Name)
		}
		e := types.NewLibraryName(name, d.Path).WithToken(n.Tok)
		c.declare(d.Name, e)

	default:
		if global {
			c.errorf(n, "Only declarations are allowed at file scope")
		}
	}
}

func (c *Checker) collectConstDecl(n *ast.Node, d ast.ValueDeclNode) {
	if len(d.Values) < len(d.Names) && d.Type == nil {
		c.errorf(n, "Missing expression for `%s`", ast.IdentName(d.Names[len(d.Values)]))
	} else if len(d.Values) > len(d.Names) {
		c.errorf(d.Values[len(d.Names)], "Extra initial expression")
	}

	for i, name := range d.Names {
		if name.Type != ast.Ident {
			c.errorf(name, "A declaration's name must be an identifier")
			continue
		}
		var init *ast.Node
		if i < len(d.Values) {
			init = ast.Unparen(d.Values[i])
		}
		di := &declInfo{ctx: c.ctx}
		var e *types.Entity
		switch {
		case init != nil && init.IsType():
			e = types.NewTypeName(ast.IdentName(name), nil)
			e.Type = types.NewNamed(e.Name, nil, e)
			di.typeExpr = init
		case init != nil && init.Type == ast.ProcLit:
			e = types.NewProcedure(ast.IdentName(name), nil)
			di.procLit = init
		default:
			e = types.NewConstant(ast.IdentName(name), nil, exact.Value{})
			di.typeExpr, di.initExpr = d.Type, init
		}
		di.entities = []*types.Entity{e}
		c.declare(name, e)
		c.decls[e] = di
		c.order = append(c.order, e)
	}
}

func (c *Checker) collectGlobalVars(n *ast.Node, d ast.ValueDeclNode) {
	di := &declInfo{ctx: c.ctx, typeExpr: d.Type, initExprs: d.Values}
	gv := &GlobalVar{Values: d.Values}
	for _, name := range d.Names {
		if name.Type != ast.Ident {
			c.errorf(name, "A declaration's name must be an identifier")
			continue
		}
		e := types.NewVariable(ast.IdentName(name), nil)
		c.declare(name, e)
		di.entities = append(di.entities, e)
		c.decls[e] = di
		c.order = append(c.order, e)
	}
	gv.Entities = di.entities
	c.Info.Globals = append(c.Info.Globals, gv)
}

func importBaseName(p string) string {
	base := path.Base(filepath.ToSlash(p))
	return strings.TrimSuffix(base, path.Ext(base))
}

// resolveImport finds the file scope an import path names, first relative
// to the importing file and then as given.
func (c *Checker) resolveImport(from *ast.File, p string) (types.ScopeID, bool) {
	candidates := []string{filepath.Join(filepath.Dir(from.Path), p), filepath.Clean(p), p}
	for _, cand := range candidates {
		if id, ok := c.files[cand]; ok {
			return id, true
		}
	}
	return types.NoScope, false
}

func (c *Checker) collectImports() {
	for _, imp := range c.imports {
		d := imp.node.Data.(ast.ImportDeclNode)
		target, ok := c.resolveImport(imp.file, d.Path)
		if !ok {
			c.errorf(imp.node, "Cannot find import `%s`", d.Path)
			continue
		}
		if target == imp.scope {
			c.errorf(imp.node, "A file cannot import itself")
			continue
		}
		c.cfg.Infof("%s imports %s", imp.file.Path, d.Path)

		if d.IsDot {
			ts := c.Scopes.Get(target)
			for _, name := range ts.Names() {
				for _, e := range ts.Elements(name) {
					if !e.IsExported() || ts.Implicit[e] {
						continue
					}
					if prev := c.Scopes.InsertImplicit(imp.scope, e); prev != nil {
						c.errorf(imp.node, "Multiple declarations of `%s` in this file through the import of `%s`", name, d.Path)
					}
				}
			}
			continue
		}

		name := importBaseName(d.Path)
		if d.Name != nil {
			name = ast.IdentName(d.Name)
		}
		e := types.NewImportName(name, d.Path, target).WithToken(imp.node.Tok)
		saved := c.ctx.scope
		c.ctx.scope = imp.scope
		c.declare(d.Name, e)
		c.ctx.scope = saved
	}
}

// checkEntityDecl resolves a collected declaration, recursing into whatever
// it depends on. Entities without a pending declaration are already done.
func (c *Checker) checkEntityDecl(e *types.Entity) {
	d := c.decls[e]
	if d == nil || d.state == declDone {
		return
	}
	if d.state == declResolving {
		if n, ok := e.Type.(*types.Named); ok && e.Kind == types.EntityTypeName && n.Base != nil {
			return
		}
		c.errorAt(e.Token, "Illegal declaration cycle of `%s`", e.Name)
		if n, ok := e.Type.(*types.Named); ok {
			n.Base = types.Typ[types.Invalid]
		} else {
			e.Type = types.Typ[types.Invalid]
		}
		return
	}

	d.state = declResolving
	saved := c.ctx
	c.ctx = d.ctx
	c.ctx.decl = d

	switch e.Kind {
	case types.EntityConstant, types.EntityTypeAlias:
		c.constDecl(e, d.typeExpr, d.initExpr)
	case types.EntityTypeName:
		c.typeDecl(e, d.typeExpr)
	case types.EntityVariable:
		c.varDecl(d)
	case types.EntityProcedure:
		c.procDecl(e, d)
	}

	c.ctx = saved
	d.state = declDone
}

func (c *Checker) constDecl(e *types.Entity, typeExpr, init *ast.Node) {
	if typeExpr != nil {
		t := c.checkType(typeExpr)
		if !types.IsConstantType(t) {
			if !types.IsInvalid(t) {
				c.errorf(typeExpr, "Invalid constant type `%s`", t)
			}
			e.Type = types.Typ[types.Invalid]
			return
		}
		e.Type = t
	}
	if init == nil {
		if e.Type == nil {
			e.Type = types.Typ[types.Invalid]
		}
		return
	}

	var o Operand
	c.checkExprOrType(&o, init)
	switch o.Mode {
	case ModeInvalid:
		e.Type = types.Typ[types.Invalid]
		return
	case ModeType:
		if typeExpr != nil {
			c.errorf(init, "Cannot declare a type alias with an explicit type")
		}
		e.Kind = types.EntityTypeAlias
		e.Type = o.Type
		return
	case ModeConstant:
	default:
		c.errorf(init, "`%s` is not a constant", exprString(init))
		e.Type = types.Typ[types.Invalid]
		return
	}

	if o.Value.Kind() != exact.Compound && !types.IsConstantType(o.Type) {
		c.errorf(init, "Invalid constant type `%s`", o.Type)
		e.Type = types.Typ[types.Invalid]
		return
	}
	if e.Type == nil {
		e.Type = o.Type
	}
	c.checkAssignment(&o, e.Type, "constant declaration")
	if o.Mode == ModeInvalid {
		return
	}
	e.Value = o.Value
}

func (c *Checker) typeDecl(e *types.Entity, typeExpr *ast.Node) {
	n := e.Type.(*types.Named)
	bt := c.checkTypeExtra(typeExpr, n)
	n.Base = types.Base(bt)
	if n.Base == types.Type(n) {
		n.Base = types.Typ[types.Invalid]
	}
}

func (c *Checker) varDecl(d *declInfo) {
	var t types.Type
	if d.typeExpr != nil {
		t = c.checkType(d.typeExpr)
	}
	for _, e := range d.entities {
		e.Type = t
	}
	if len(d.initExprs) == 0 {
		if t == nil {
			for _, e := range d.entities {
				e.Type = types.Typ[types.Invalid]
			}
		}
		return
	}

	operands := c.initVariables(d.entities, d.initExprs, "variable declaration")
	if c.ctx.procScope != types.NoScope {
		return
	}
	for _, o := range operands {
		if o.Mode != ModeInvalid && o.Mode != ModeConstant {
			c.errorf(o.Expr, "Global variable initializer `%s` must be a constant expression", exprString(o.Expr))
		}
	}
}

// initVariables assigns the unpacked right-hand sides to freshly declared
// variables, inferring untyped ones from their value.
func (c *Checker) initVariables(lhs []*types.Entity, rhs []*ast.Node, ctxName string) []Operand {
	operands, _ := c.unpackArguments(len(lhs), rhs, true)
	for i, e := range lhs {
		if i >= len(operands) {
			break
		}
		c.initVariable(e, &operands[i], ctxName)
	}
	if len(operands) != len(lhs) {
		c.errorf(rhs[0], "Assignment count mismatch `%d` = `%d`", len(lhs), len(operands))
		for _, e := range lhs {
			if e.Type == nil {
				e.Type = types.Typ[types.Invalid]
			}
		}
	}
	return operands
}

func (c *Checker) initVariable(e *types.Entity, o *Operand, ctxName string) {
	if o.Mode == ModeInvalid || types.IsInvalid(o.Type) {
		if e.Type == nil {
			e.Type = types.Typ[types.Invalid]
		}
		return
	}
	if o.Mode == ModeType {
		c.errorf(o.Expr, "`%s` is not an expression but a type", exprString(o.Expr))
		if e.Type == nil {
			e.Type = types.Typ[types.Invalid]
		}
		return
	}
	if e.Type == nil {
		t := o.Type
		if types.IsUntyped(t) {
			if types.IsUntypedNil(t) {
				c.errorf(o.Expr, "Use of untyped nil in %s", ctxName)
				e.Type = types.Typ[types.Invalid]
				return
			}
			t = types.Default(t)
		}
		e.Type = t
	}
	c.checkAssignment(o, e.Type, ctxName)
}

func (c *Checker) procDecl(e *types.Entity, d *declInfo) {
	lit := d.procLit.Data.(ast.ProcLitNode)
	pt := &types.Proc{Node: d.procLit}
	e.Type = pt

	scope := c.openScope(d.procLit, types.ScopeProc)
	c.checkProcType(pt, lit.Type)
	c.closeScope()

	name := e.Name
	if c.ctx.procScope != types.NoScope {
		name = c.ctx.procName + "." + e.Name
	}
	c.checkProcTags(d.procLit, lit, e.Name)
	if lit.LinkName != "" {
		name = lit.LinkName
	}

	if e.Name == "main" && c.Scopes.Get(e.Scope).Kind == types.ScopeFile {
		if pt.ParamCount() != 0 || pt.ResultCount() != 0 {
			c.errorAt(e.Token, "Procedure type of `main` was expected to be `proc()`, got %s", pt)
		}
	}

	pb := &ProcBody{Entity: e, Name: name, Type: pt, Lit: d.procLit, Body: lit.Body, Scope: scope, Tags: lit.Tags, file: c.ctx.file, fileScope: c.ctx.fileScope}
	c.Info.Procs = append(c.Info.Procs, pb)
	if lit.Body != nil {
		c.procQueue = append(c.procQueue, pb)
	}
}

func (c *Checker) checkProcTags(n *ast.Node, lit ast.ProcLitNode, name string) {
	tags := lit.Tags
	if tags&ast.ProcInline != 0 && tags&ast.ProcNoInline != 0 {
		c.errorf(n, "You cannot apply both `inline` and `no_inline` to a procedure")
	}
	if tags&ast.ProcBoundsCheck != 0 && tags&ast.ProcNoBoundsCheck != 0 {
		c.errorf(n, "You cannot apply both `bounds_check` and `no_bounds_check` to a procedure")
	}
	if tags&ast.ProcForeign != 0 {
		if lit.Body != nil {
			c.errorf(n, "A procedure tagged as `#foreign` cannot have a body")
		}
		if tags&ast.ProcLinkName != 0 {
			c.errorf(n, "You cannot apply both `link_name` and `foreign` to a procedure")
		}
	} else if lit.Body == nil {
		c.errorf(n, "Procedure `%s` has no body", name)
	}
}

// checkOverloads reports overload sets in scope whose members cannot be
// told apart by their signature.
func (c *Checker) checkOverloads(id types.ScopeID) {
	s := c.Scopes.Get(id)
	for _, name := range s.Names() {
		procs := s.Elements(name)
		if len(procs) < 2 {
			continue
		}
		for i, p := range procs {
			if s.Implicit[p] || p.Kind != types.EntityProcedure {
				continue
			}
			for _, q := range procs[:i] {
				if s.Implicit[q] || q.Kind != types.EntityProcedure {
					continue
				}
				if types.Identical(p.Type, q.Type) {
					c.errorAt(p.Token, "Overloaded procedure `%s` has the same type as another procedure in this scope", name)
					break
				}
			}
		}
	}
}

// procLitName names a procedure literal after the procedure it appears in.
func (c *Checker) procLitName() string {
	c.anonCount++
	parent := c.ctx.procName
	if parent == "" {
		parent = "__global"
	}
	return fmt.Sprintf("%s.anon%d", parent, c.anonCount)
}

func (c *Checker) checkProcBody(pb *ProcBody) {
	saved := c.ctx
	c.ctx = context{
		scope:         pb.Scope,
		fileScope:     pb.fileScope,
		file:          pb.file,
		proc:          pb.Type,
		procName:      pb.Name,
		procScope:     pb.Scope,
		noBoundsCheck: pb.Tags&ast.ProcNoBoundsCheck != 0 || !c.cfg.IsFeatureEnabled(config.FeatBoundsCheck),
	}
	c.Scopes.Open(pb.Scope)
	c.Info.Scopes[pb.Body] = pb.Scope

	if pb.Type.Params != nil {
		for _, p := range pb.Type.Params.Vars {
			if p.Is(types.FlagUsing) {
				c.usingParam(p)
			}
		}
	}

	body := pb.Body.Data.(ast.BlockStmtNode)
	if body.NoBoundsCheck {
		c.ctx.noBoundsCheck = true
	}
	c.checkStmtList(body.Stmts)

	if pb.Type.ResultCount() > 0 && !c.isTerminating(pb.Body) {
		c.errorAt(endToken(pb.Body), "Missing return statement at the end of the procedure")
	}
	c.reportUnused(pb.Scope)

	c.Scopes.Close(pb.Scope)
	c.ctx = saved
}

// usingParam brings the fields of a `using` parameter into the procedure
// scope as names that stand for field selections.
func (c *Checker) usingParam(p *types.Entity) {
	r, ok := types.Base(types.Deref(p.Type)).(*types.Record)
	if !ok || r.Kind == types.RecordUnion {
		c.errorAt(p.Token, "`using` can only be applied to variables of type struct or raw_union")
		return
	}
	for _, f := range r.Fields {
		if f.Name == "_" {
			continue
		}
		v := types.NewVariable(f.Name, f.Type).WithToken(p.Token)
		v.Flags |= types.FlagImplicit | types.FlagUsed
		if prev := c.Scopes.Insert(c.ctx.scope, v); prev != nil {
			c.errorAt(p.Token, "Namespace collision while `using` `%s` of: %s", p.Name, f.Name)
			continue
		}
		c.Info.UsingVars[v] = UsingVar{Parent: p, Selection: types.LookupField(p.Type, f.Name, false)}
	}
}

// reportUnused warns about local variables that are never read.
func (c *Checker) reportUnused(id types.ScopeID) {
	s := c.Scopes.Get(id)
	for _, name := range s.Names() {
		for _, e := range s.Elements(name) {
			if e.Kind == types.EntityVariable && !e.Is(types.FlagUsed|types.FlagParam|types.FlagField) && e.Ident != nil {
				c.diag.Warnf(config.WarnExtra, e.Token, "Unused variable `%s`", e.Name)
			}
		}
	}
	for _, child := range s.Children {
		if c.Scopes.Get(child).Kind == types.ScopeBlock {
			c.reportUnused(child)
		}
	}
}

// localConstDecls collects and immediately resolves `::` declarations
// inside a procedure body.
func (c *Checker) localConstDecls(n *ast.Node) {
	first := len(c.order)
	c.collectDecl(n, false)
	local := c.order[first:]
	c.order = c.order[:first]
	for _, e := range local {
		c.checkEntityDecl(e)
	}
	c.checkOverloads(c.ctx.scope)
}

// localVarDecl checks `x: T = v` and `x := v` inside a procedure. The names
// become visible only after the right-hand side has been checked.
func (c *Checker) localVarDecl(n *ast.Node, d ast.ValueDeclNode) {
	entities := make([]*types.Entity, 0, len(d.Names))
	for _, name := range d.Names {
		if name.Type != ast.Ident {
			c.errorf(name, "A declaration's name must be an identifier")
			entities = append(entities, types.NewVariable("_", types.Typ[types.Invalid]))
			continue
		}
		e := types.NewVariable(ast.IdentName(name), nil)
		e.Ident, e.Token = name, name.Tok
		c.Info.Defs[name] = e
		entities = append(entities, e)
	}

	var t types.Type
	if d.Type != nil {
		t = c.checkType(d.Type)
		for _, e := range entities {
			e.Type = t
		}
	}
	if len(d.Values) > 0 {
		c.initVariables(entities, d.Values, "variable declaration")
	} else if t == nil {
		c.errorf(n, "Missing type or initial expression")
	}

	for i, e := range entities {
		if e.Type == nil {
			e.Type = types.Typ[types.Invalid]
		}
		if e.Name != "_" {
			if s, prev := c.Scopes.Lookup(c.scope().Parent, e.Name); prev != nil && s != nil && !s.IsGlobal() {
				c.warnf(config.WarnPedantic, d.Names[i], "Declaration of `%s` shadows a declaration in an outer scope", e.Name)
			}
		}
		c.declare(d.Names[i], e)
	}
}
