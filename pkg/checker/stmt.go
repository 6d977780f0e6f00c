package checker

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

func (c *Checker) checkStmtList(stmts []*ast.Node) {
	terminated := false
	warned := false
	for _, s := range stmts {
		if s.Type == ast.EmptyStmt {
			continue
		}
		if terminated && !warned {
			c.warnf(config.WarnUnreachableCode, s, "Unreachable code")
			warned = true
		}
		c.checkStmt(s)
		if isTerminatingStmt(s, c.Info) {
			terminated = true
		}
	}
}

func (c *Checker) checkStmt(n *ast.Node) {
	switch d := n.Data.(type) {
	case ast.EmptyStmtNode:

	case ast.ExprStmtNode:
		c.checkExprStmt(d)

	case ast.AssignStmtNode:
		if d.Op == token.Eq {
			c.checkAssignStmt(n, d)
		} else {
			c.checkOpAssignStmt(n, d)
		}

	case ast.IncDecStmtNode:
		var o Operand
		c.checkExpr(&o, d.Expr)
		if o.Mode == ModeInvalid {
			return
		}
		if !types.IsNumeric(o.Type) || types.IsVector(o.Type) {
			c.errorf(n, "Non numeric type `%s` for `%s`", o.Type, d.Op)
			return
		}
		c.checkAddressable(&o, d.Expr)

	case ast.BlockStmtNode:
		c.openScope(n, types.ScopeBlock)
		saved := c.ctx.noBoundsCheck
		if d.NoBoundsCheck {
			c.ctx.noBoundsCheck = true
		}
		c.checkStmtList(d.Stmts)
		c.ctx.noBoundsCheck = saved
		c.closeScope()

	case ast.IfStmtNode:
		c.openScope(n, types.ScopeBlock)
		if d.Init != nil {
			c.checkStmt(d.Init)
		}
		c.checkCond(d.Cond, "if")
		c.checkStmt(d.Body)
		if d.Else != nil {
			switch d.Else.Type {
			case ast.IfStmt, ast.BlockStmt:
				c.checkStmt(d.Else)
			default:
				c.errorf(d.Else, "Invalid `else` statement in `if` statement")
			}
		}
		c.closeScope()

	case ast.ForStmtNode:
		c.openScope(n, types.ScopeBlock)
		if d.Init != nil {
			c.checkStmt(d.Init)
		}
		if d.Cond != nil {
			c.checkCond(d.Cond, "for")
		}
		if d.Post != nil {
			if d.Post.Type == ast.ValueDecl {
				c.errorf(d.Post, "`for` statement post statement cannot be a declaration")
			} else {
				c.checkStmt(d.Post)
			}
		}
		c.ctx.loopDepth++
		c.checkStmt(d.Body)
		c.ctx.loopDepth--
		c.closeScope()

	case ast.ReturnStmtNode:
		c.checkReturnStmt(n, d)

	case ast.BranchStmtNode:
		switch d.Kind {
		case token.Break, token.Continue:
			if c.ctx.loopDepth == 0 {
				c.errorf(n, "`%s` only allowed in loops", d.Kind)
			}
		case token.Fallthrough:
			c.errorf(n, "`fallthrough` statement in illegal position")
		default:
			c.errorf(n, "Invalid AST: branch statement `%s`", d.Kind)
		}

	case ast.DeferStmtNode:
		if d.Stmt == nil {
			c.errorf(n, "Invalid AST: empty defer statement")
			return
		}
		if d.Stmt.Type == ast.DeferStmt {
			c.errorf(n, "You cannot defer a defer statement")
			return
		}
		saved := c.ctx
		c.ctx.inDefer = true
		c.ctx.loopDepth = 0
		c.checkStmt(d.Stmt)
		c.ctx.inDefer, c.ctx.loopDepth = saved.inDefer, saved.loopDepth

	case ast.ValueDeclNode:
		if d.Mutable {
			c.localVarDecl(n, d)
		} else {
			c.localConstDecls(n)
		}

	case ast.ImportDeclNode, ast.ForeignLibraryNode:
		c.collectDecl(n, false)

	default:
		c.errorf(n, "Invalid statement `%s`", exprString(n))
	}
}

func (c *Checker) checkExprStmt(d ast.ExprStmtNode) {
	var o Operand
	kind := c.checkExprBase(&o, d.Expr, nil)
	switch o.Mode {
	case ModeInvalid, ModeNoValue:
		return
	case ModeType:
		c.errorf(d.Expr, "`%s` is not an expression", exprString(d.Expr))
		return
	case ModeBuiltin, ModeOverload:
		c.errorf(d.Expr, "`%s` must be called", exprString(d.Expr))
		return
	}
	if kind == exprStmt || ast.Unparen(d.Expr).Type == ast.CallExpr {
		return
	}
	c.errorf(d.Expr, "Expression `%s` is not used", exprString(d.Expr))
}

func (c *Checker) checkCond(n *ast.Node, stmt string) {
	var o Operand
	c.checkExpr(&o, n)
	if o.Mode == ModeInvalid {
		return
	}
	if !types.IsBoolean(o.Type) {
		c.errorf(n, "Non-boolean condition in `%s` statement", stmt)
		return
	}
	c.convertToTyped(&o, types.Typ[types.Bool])
}

// checkAddressable reports lhs when o does not denote assignable storage.
func (c *Checker) checkAddressable(o *Operand, lhs *ast.Node) bool {
	switch o.Mode {
	case ModeInvalid:
		return false
	case ModeVariable, ModeMapIndex:
		return true
	case ModeImmutable:
		c.errorf(lhs, "Cannot assign to an immutable: `%s`", exprString(lhs))
	default:
		c.errorf(lhs, "Cannot assign to `%s`", exprString(lhs))
	}
	return false
}

// checkAssignVariable assigns rhs to the storage denoted by lhs. Writing a
// variable does not count as using it.
func (c *Checker) checkAssignVariable(rhs *Operand, lhs *ast.Node) {
	if rhs.Mode == ModeInvalid {
		return
	}
	if ast.IsBlank(ast.Unparen(lhs)) {
		c.checkAssignment(rhs, nil, "assignment to `_` identifier")
		return
	}

	var target *types.Entity
	used := false
	if id := ast.Unparen(lhs); id.Type == ast.Ident {
		if target = c.lookup(ast.IdentName(id)); target != nil {
			used = target.Is(types.FlagUsed)
		}
	}

	var lo Operand
	c.checkExpr(&lo, lhs)
	if target != nil && !used {
		target.Flags &^= types.FlagUsed
	}
	if !c.checkAddressable(&lo, lhs) {
		return
	}
	c.checkAssignment(rhs, lo.Type, "assignment")
}

func (c *Checker) checkAssignStmt(n *ast.Node, d ast.AssignStmtNode) {
	if len(d.Lhs) == 0 {
		c.errorf(n, "Missing lhs in assignment statement")
		return
	}
	operands, _ := c.unpackArguments(len(d.Lhs), d.Rhs, true)
	if len(operands) != len(d.Lhs) {
		c.errorf(n, "Assignment count mismatch `%d` = `%d`", len(d.Lhs), len(operands))
		return
	}
	for i, lhs := range d.Lhs {
		c.checkAssignVariable(&operands[i], lhs)
	}
}

// checkOpAssignStmt checks `x op= y` as `x = x op y`.
func (c *Checker) checkOpAssignStmt(n *ast.Node, d ast.AssignStmtNode) {
	if len(d.Lhs) != 1 || len(d.Rhs) != 1 {
		c.errorf(n, "Assignment operation `%s` requires single-valued expressions", d.Op)
		return
	}
	op := token.BinaryOf(d.Op)
	if op == token.Invalid {
		c.errorf(n, "Unknown assignment operator `%s`", d.Op)
		return
	}
	be := ast.BinaryExprNode{Op: op, Left: d.Lhs[0], Right: d.Rhs[0]}
	bin := &ast.Node{Type: ast.BinaryExpr, Tok: n.Tok, Parent: n, Data: be}

	var o Operand
	c.checkBinaryExpr(&o, bin, be)
	if o.Mode == ModeInvalid {
		return
	}
	o.Expr = d.Rhs[0]
	c.checkAssignVariable(&o, d.Lhs[0])
}

func (c *Checker) checkReturnStmt(n *ast.Node, d ast.ReturnStmtNode) {
	if c.ctx.inDefer {
		c.errorf(n, "You cannot `return` within a defer statement")
		return
	}
	if c.ctx.proc == nil {
		c.errorf(n, "Return statement outside of a procedure")
		return
	}

	results := c.ctx.proc.Results
	want := results.Len()
	if len(d.Results) == 0 {
		if want > 0 {
			c.errorf(n, "Expected %d return values, got 0", want)
		}
		return
	}
	if want == 0 {
		c.errorf(d.Results[0], "Expected no return values, got %d", len(d.Results))
		return
	}

	operands, _ := c.unpackArguments(want, d.Results, false)
	if len(operands) != want {
		c.errorf(n, "Expected %d return values, got %d", want, len(operands))
		return
	}
	for i := range operands {
		c.checkAssignment(&operands[i], results.At(i), "return statement")
	}
}

// isTerminatingStmt reports whether control cannot fall off the end of n.
func isTerminatingStmt(n *ast.Node, info *Info) bool {
	if n == nil {
		return false
	}
	switch d := n.Data.(type) {
	case ast.ReturnStmtNode:
		return true
	case ast.BranchStmtNode:
		return d.Kind == token.Break || d.Kind == token.Continue
	case ast.BlockStmtNode:
		for i := len(d.Stmts) - 1; i >= 0; i-- {
			if d.Stmts[i].Type != ast.EmptyStmt {
				return isTerminatingStmt(d.Stmts[i], info)
			}
		}
	case ast.IfStmtNode:
		return d.Else != nil && isTerminatingStmt(d.Body, info) && isTerminatingStmt(d.Else, info)
	case ast.ForStmtNode:
		return d.Cond == nil && !hasBreak(d.Body)
	case ast.ExprStmtNode:
		if call, ok := ast.Unparen(d.Expr).Data.(ast.CallExprNode); ok {
			e := info.Uses[ast.Unparen(call.Proc)]
			return e != nil && e.Kind == types.EntityBuiltin && BuiltinID(e.Builtin) == BuiltinPanic
		}
	}
	return false
}

func (c *Checker) isTerminating(n *ast.Node) bool { return isTerminatingStmt(n, c.Info) }

// hasBreak reports a `break` that leaves the loop whose body is n.
func hasBreak(n *ast.Node) bool {
	if n == nil {
		return false
	}
	switch d := n.Data.(type) {
	case ast.BranchStmtNode:
		return d.Kind == token.Break
	case ast.BlockStmtNode:
		for _, s := range d.Stmts {
			if hasBreak(s) {
				return true
			}
		}
	case ast.IfStmtNode:
		return hasBreak(d.Body) || hasBreak(d.Else)
	}
	return false
}

// endToken is the token diagnostics about the end of a block point at.
func endToken(n *ast.Node) token.Token {
	if b, ok := n.Data.(ast.BlockStmtNode); ok && len(b.Stmts) > 0 {
		return b.Stmts[len(b.Stmts)-1].Tok
	}
	return n.Tok
}
