// Package checker resolves names, infers and validates types, folds
// constants and elaborates record layouts. Its output is the Info tables
// the SSA builder walks.
package checker

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
	"github.com/xplshn/odinc/pkg/util"
)

// TypeAndValue is the annotation recorded for every checked expression.
type TypeAndValue struct {
	Mode  Mode
	Type  types.Type
	Value exact.Value
}

// ProcBody is a procedure whose body has been checked.
type ProcBody struct {
	Entity *types.Entity // nil for procedure literals
	Name   string
	Type   *types.Proc
	Lit    *ast.Node // The ProcLit node
	Body   *ast.Node // nil for foreign procedures
	Scope  types.ScopeID
	Tags   ast.ProcTag

	file      *ast.File
	fileScope types.ScopeID
}

// GlobalVar is one file-level variable declaration.
type GlobalVar struct {
	Entities []*types.Entity
	Values   []*ast.Node
}

// UsingVar maps a name introduced by a `using` parameter back to the field
// it stands for.
type UsingVar struct {
	Parent    *types.Entity
	Selection types.Selection
}

// Info holds everything the checker learned, keyed by AST node identity.
type Info struct {
	Types      map[*ast.Node]TypeAndValue
	Defs       map[*ast.Node]*types.Entity
	Uses       map[*ast.Node]*types.Entity
	Selections map[*ast.Node]types.Selection
	Scopes     map[*ast.Node]types.ScopeID
	UsingVars  map[*types.Entity]UsingVar

	Procs         []*ProcBody
	ProcLits      map[*ast.Node]*ProcBody
	Globals       []*GlobalVar
	TypeInfoTypes []types.Type
}

func newInfo() *Info {
	return &Info{
		Types:      make(map[*ast.Node]TypeAndValue),
		Defs:       make(map[*ast.Node]*types.Entity),
		Uses:       make(map[*ast.Node]*types.Entity),
		Selections: make(map[*ast.Node]types.Selection),
		Scopes:     make(map[*ast.Node]types.ScopeID),
		UsingVars:  make(map[*types.Entity]UsingVar),
		ProcLits:   make(map[*ast.Node]*ProcBody),
	}
}

// TypeOf returns the recorded type of n, or nil.
func (info *Info) TypeOf(n *ast.Node) types.Type {
	if tv, ok := info.Types[n]; ok {
		return tv.Type
	}
	return nil
}

// ObjectOf returns the entity n declares or refers to.
func (info *Info) ObjectOf(n *ast.Node) *types.Entity {
	if e := info.Defs[n]; e != nil {
		return e
	}
	return info.Uses[n]
}

// context is the mutable checking state threaded through the whole walk.
type context struct {
	scope         types.ScopeID
	fileScope     types.ScopeID
	file          *ast.File
	decl          *declInfo
	proc          *types.Proc   // Signature of the procedure being checked
	procName      string
	procScope     types.ScopeID // Scope of the procedure being checked
	inDefer       bool
	loopDepth     int
	noBoundsCheck bool
}

type untypedExpr struct {
	isLhs bool
	mode  Mode
	typ   types.Type
	value exact.Value
}

type Checker struct {
	cfg    *config.Config
	diag   *util.Diagnostics
	sizes  types.Sizes
	Scopes *types.ScopeTable
	Info   *Info

	universe  types.ScopeID
	files     map[string]types.ScopeID
	fileList  []*ast.File
	imports   []pendingImport
	ctx       context
	decls     map[*types.Entity]*declInfo
	order     []*types.Entity // Package-level entities in declaration order
	procQueue []*ProcBody
	untyped   map[*ast.Node]*untypedExpr
	building  map[*types.Record]bool // Records whose fields are being checked
	typeInfo  map[types.Type]bool
	anonCount int
}

func New(cfg *config.Config, diag *util.Diagnostics) *Checker {
	c := &Checker{
		cfg:      cfg,
		diag:     diag,
		sizes:    cfg.Sizes(),
		Scopes:   types.NewScopeTable(),
		Info:     newInfo(),
		files:    make(map[string]types.ScopeID),
		decls:    make(map[*types.Entity]*declInfo),
		untyped:  make(map[*ast.Node]*untypedExpr),
		building: make(map[*types.Record]bool),
		typeInfo: make(map[types.Type]bool),
	}
	c.universe = c.newUniverse()
	c.ctx = context{scope: c.universe, fileScope: types.NoScope, procScope: types.NoScope}
	return c
}

func (c *Checker) Sizes() types.Sizes { return c.sizes }

// CheckFiles checks a whole program. Diagnostics go to the collector the
// checker was created with; the returned tables are complete only when no
// error was reported.
func (c *Checker) CheckFiles(files []*ast.File) *Info {
	c.collectFiles(files)
	c.collectImports()

	for _, e := range c.order {
		c.checkEntityDecl(e)
	}
	for _, f := range c.fileList {
		c.checkOverloads(c.files[f.Path])
	}

	for i := 0; i < len(c.procQueue); i++ {
		c.checkProcBody(c.procQueue[i])
	}

	c.flushUntyped()
	return c.Info
}

func (c *Checker) errorf(n *ast.Node, format string, args ...interface{}) {
	var tok token.Token
	if n != nil {
		tok = n.Tok
	}
	c.diag.Errorf(tok, format, args...)
}

func (c *Checker) errorAt(tok token.Token, format string, args ...interface{}) {
	c.diag.Errorf(tok, format, args...)
}

func (c *Checker) warnf(w config.Warning, n *ast.Node, format string, args ...interface{}) {
	c.diag.Warnf(w, n.Tok, format, args...)
}

func exprString(n *ast.Node) string { return ast.ExprString(n) }

func (c *Checker) openScope(n *ast.Node, kind types.ScopeKind) types.ScopeID {
	s := c.Scopes.New(c.ctx.scope, kind, n)
	if n != nil {
		c.Info.Scopes[n] = s.ID
	}
	c.ctx.scope = s.ID
	return s.ID
}

func (c *Checker) closeScope() {
	s := c.Scopes.Get(c.ctx.scope)
	c.Scopes.Close(s.ID)
	c.ctx.scope = s.Parent
}

func (c *Checker) scope() *types.Scope { return c.Scopes.Get(c.ctx.scope) }

func (c *Checker) lookup(name string) *types.Entity {
	_, e := c.Scopes.Lookup(c.ctx.scope, name)
	return e
}

// declare inserts e into the current scope, reporting redeclarations.
func (c *Checker) declare(ident *ast.Node, e *types.Entity) bool {
	if ident != nil {
		e.Ident = ident
		e.Token = ident.Tok
		c.Info.Defs[ident] = e
	}
	if prev := c.Scopes.Insert(c.ctx.scope, e); prev != nil {
		c.errorAt(e.Token, "Redeclaration of `%s` in this scope", e.Name)
		if prev.Token.Line > 0 {
			c.diag.Notef("previous declaration at %s", prev.Token.Pos())
		}
		return false
	}
	return true
}

func (c *Checker) recordTypeAndValue(n *ast.Node, mode Mode, t types.Type, v exact.Value) {
	if n == nil || mode == ModeInvalid {
		return
	}
	if mode == ModeConstant && !v.IsValid() {
		return
	}
	c.Info.Types[n] = TypeAndValue{Mode: mode, Type: t, Value: v}
}

func (c *Checker) recordUntyped(n *ast.Node, isLhs bool, mode Mode, t types.Type, v exact.Value) {
	c.untyped[n] = &untypedExpr{isLhs: isLhs, mode: mode, typ: t, value: v}
}

func (c *Checker) recordUse(n *ast.Node, e *types.Entity) {
	if n == nil || e == nil {
		return
	}
	c.Info.Uses[n] = e
	e.Flags |= types.FlagUsed
}

func (c *Checker) recordSelection(n *ast.Node, sel types.Selection) {
	c.Info.Selections[n] = sel
}

// flushUntyped records every untyped expression that was never committed
// to a type.
func (c *Checker) flushUntyped() {
	for n, u := range c.untyped {
		c.recordTypeAndValue(n, u.mode, u.typ, u.value)
	}
	c.untyped = make(map[*ast.Node]*untypedExpr)
}

// addTypeInfoType registers t and the types it is built from as needing
// runtime type metadata.
func (c *Checker) addTypeInfoType(t types.Type) {
	if t == nil || types.IsInvalid(t) || types.IsUntyped(t) || c.typeInfo[t] {
		return
	}
	for _, prev := range c.Info.TypeInfoTypes {
		if types.Identical(prev, t) {
			return
		}
	}
	c.typeInfo[t] = true
	c.Info.TypeInfoTypes = append(c.Info.TypeInfoTypes, t)

	switch b := types.Base(t).(type) {
	case *types.Pointer:
		c.addTypeInfoType(b.Elem)
	case *types.Array:
		c.addTypeInfoType(b.Elem)
	case *types.Slice:
		c.addTypeInfoType(b.Elem)
	case *types.DynamicArray:
		c.addTypeInfoType(b.Elem)
	case *types.Vector:
		c.addTypeInfoType(b.Elem)
	case *types.Map:
		c.addTypeInfoType(b.Key)
		c.addTypeInfoType(b.Value)
		c.addTypeInfoType(b.Generated)
	case *types.Enum:
		c.addTypeInfoType(b.Base)
	case *types.Record:
		for _, f := range b.Fields {
			c.addTypeInfoType(f.Type)
		}
		for _, v := range b.Variants {
			if v.Name != "" {
				c.addTypeInfoType(v.Type)
			}
		}
	case *types.Tuple:
		for _, v := range b.Vars {
			c.addTypeInfoType(v.Type)
		}
	case *types.Proc:
		if b.Params != nil {
			c.addTypeInfoType(b.Params)
		}
		if b.Results != nil {
			c.addTypeInfoType(b.Results)
		}
	}
	if types.IsString(t) || types.IsAny(t) {
		c.addTypeInfoType(types.Typ[types.Rawptr])
	}
}
