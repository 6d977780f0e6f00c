package ssa

import (
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

// targetList is the stack of blocks `break`, `continue` and `fallthrough`
// jump to.
type targetList struct {
	prev       *targetList
	breakTo    *Block
	continueTo *Block
	fallTo     *Block
	depth      int // Defer frames open outside the loop
}

// deferFrame holds the statements deferred in one block, in registration
// order.
type deferFrame struct {
	scope types.ScopeID
	stmts []*ast.Node
}

func (p *Procedure) pushTargets(brk, cont, fall *Block) {
	p.targets = &targetList{prev: p.targets, breakTo: brk, continueTo: cont, fallTo: fall, depth: len(p.defers)}
}

func (p *Procedure) popTargets() { p.targets = p.targets.prev }

// enterScope switches to the scope the checker opened for n.
func (p *Procedure) enterScope(n *ast.Node) types.ScopeID {
	saved := p.scope
	if s, ok := p.info().Scopes[n]; ok {
		p.scope = s
	}
	return saved
}

// emitDefers builds the deferred statements of every frame from the
// innermost down to depth, each frame in reverse order.
func (p *Procedure) emitDefers(depth int) {
	for i := len(p.defers) - 1; i >= depth; i-- {
		stmts := p.defers[i].stmts
		for j := len(stmts) - 1; j >= 0; j-- {
			p.buildStmt(stmts[j])
		}
	}
}

func (p *Procedure) buildStmtList(stmts []*ast.Node) {
	for _, s := range stmts {
		p.buildStmt(s)
	}
}

// buildStmt lowers n into the current block. Statements after control has
// left the block are dropped.
func (p *Procedure) buildStmt(n *ast.Node) {
	if n == nil || p.curr == nil {
		return
	}

	switch d := n.Data.(type) {
	case ast.EmptyStmtNode:

	case ast.ExprStmtNode:
		p.buildExpr(d.Expr)

	case ast.AssignStmtNode:
		if d.Op == token.Eq {
			p.buildAssign(d)
		} else {
			p.buildOpAssign(n, d)
		}

	case ast.IncDecStmtNode:
		addr := p.buildAddr(d.Expr)
		t := types.Deref(addr.Type())
		one := &Constant{Typ: t, Value: convertConstant(exact.MakeInt64(1), t)}
		if types.IsPointer(t) {
			one = intConst(1)
		}
		op := token.Plus
		if d.Op == token.Dec {
			op = token.Minus
		}
		p.emitStore(addr, p.emitArith(n.Tok, op, p.emitLoad(addr), one, t))

	case ast.BlockStmtNode:
		saved := p.enterScope(n)
		p.defers = append(p.defers, deferFrame{scope: p.scope})
		p.buildStmtList(d.Stmts)
		p.emitDefers(len(p.defers) - 1)
		p.defers = p.defers[:len(p.defers)-1]
		p.scope = saved

	case ast.IfStmtNode:
		saved := p.enterScope(n)
		p.buildIf(n, d)
		p.scope = saved

	case ast.ForStmtNode:
		saved := p.enterScope(n)
		p.buildFor(n, d)
		p.scope = saved

	case ast.ReturnStmtNode:
		p.buildReturn(d)

	case ast.BranchStmtNode:
		var target *Block
		t := p.targets
		for ; t != nil && target == nil; t = t.prev {
			switch d.Kind {
			case token.Break:
				target = t.breakTo
			case token.Continue:
				target = t.continueTo
			case token.Fallthrough:
				target = t.fallTo
			}
			if target != nil {
				p.emitDefers(t.depth)
			}
		}
		if target == nil {
			fatalf(n.Tok, "`%s` has no target block", d.Kind)
		}
		p.emitJump(target)

	case ast.DeferStmtNode:
		top := &p.defers[len(p.defers)-1]
		top.stmts = append(top.stmts, d.Stmt)

	case ast.ValueDeclNode:
		if d.Mutable {
			p.buildVarDecl(d)
		}

	case ast.ImportDeclNode, ast.ForeignLibraryNode:

	default:
		fatalf(n.Tok, "unexpected statement `%s`", ast.ExprString(n))
	}
}

func (p *Procedure) buildIf(n *ast.Node, d ast.IfStmtNode) {
	if d.Init != nil {
		p.buildStmt(d.Init)
	}
	then := p.addBlock("if.then", n)
	done := p.newBlock("if.done", n)
	els := done
	if d.Else != nil {
		els = p.newBlock("if.else", d.Else)
	}
	p.buildCond(d.Cond, then, els)

	p.curr = then
	p.buildStmt(d.Body)
	p.emitJump(done)

	if d.Else != nil {
		p.appendBlock(els)
		p.curr = els
		p.buildStmt(d.Else)
		p.emitJump(done)
	}

	p.appendBlock(done)
	p.curr = done
}

func (p *Procedure) buildFor(n *ast.Node, d ast.ForStmtNode) {
	if d.Init != nil {
		p.buildStmt(d.Init)
	}
	body := p.addBlock("for.body", n)
	done := p.newBlock("for.done", n)
	loop := body
	if d.Cond != nil {
		loop = p.newBlock("for.loop", n)
	}
	cont := loop
	if d.Post != nil {
		cont = p.newBlock("for.post", n)
	}

	p.emitJump(loop)
	if loop != body {
		p.appendBlock(loop)
		p.curr = loop
		p.buildCond(d.Cond, body, done)
	}

	p.curr = body
	p.pushTargets(done, cont, nil)
	p.buildStmt(d.Body)
	p.popTargets()
	p.emitJump(cont)

	if d.Post != nil {
		p.appendBlock(cont)
		p.curr = cont
		p.buildStmt(d.Post)
		p.emitJump(loop)
	}

	p.appendBlock(done)
	p.curr = done
}

// buildValues evaluates exprs left to right, unpacking multi-valued calls.
func (p *Procedure) buildValues(exprs []*ast.Node) []Value {
	var vals []Value
	for _, x := range exprs {
		v := p.buildExpr(x)
		if tup, ok := v.Type().(*types.Tuple); ok {
			vals = append(vals, p.unpackTuple(v, tup)...)
			continue
		}
		vals = append(vals, v)
	}
	return vals
}

func (p *Procedure) buildVarDecl(d ast.ValueDeclNode) {
	locals := make([]Value, len(d.Names))
	for i, name := range d.Names {
		e := p.info().Defs[name]
		if e == nil || e.Name == "_" {
			continue
		}
		local := p.emitLocal(e, e.Type, len(d.Values) == 0)
		p.locals[e] = local
		locals[i] = local
	}

	vals := p.buildValues(d.Values)
	for i, local := range locals {
		if local != nil && i < len(vals) {
			p.emitStore(local, vals[i])
		}
	}
}

func (p *Procedure) buildAssign(d ast.AssignStmtNode) {
	addrs := make([]Value, len(d.Lhs))
	for i, lhs := range d.Lhs {
		if !ast.IsBlank(ast.Unparen(lhs)) {
			addrs[i] = p.buildAddr(lhs)
		}
	}
	vals := p.buildValues(d.Rhs)
	for i, addr := range addrs {
		if addr != nil && i < len(vals) {
			p.emitStore(addr, vals[i])
		}
	}
}

// buildOpAssign lowers `x op= y` as `x = x op y` with x evaluated once.
func (p *Procedure) buildOpAssign(n *ast.Node, d ast.AssignStmtNode) {
	addr := p.buildAddr(d.Lhs[0])
	t := types.Deref(addr.Type())
	x := p.emitLoad(addr)
	y := p.buildExpr(d.Rhs[0])
	p.emitStore(addr, p.emitArith(n.Tok, token.BinaryOf(d.Op), x, y, t))
}

func (p *Procedure) buildReturn(d ast.ReturnStmtNode) {
	results := p.Sig.Results
	var v Value
	switch results.Len() {
	case 0:
	case 1:
		v = p.buildExprAs(d.Results[0], results.At(0))
	default:
		vals := p.buildValues(d.Results)
		tmp := p.emitLocal(nil, results, false)
		for i, val := range vals {
			p.emitStore(p.emitStructGEP(tmp, i, results.At(i)), val)
		}
		v = p.emitLoad(tmp)
	}
	p.emitDefers(0)
	p.emitRet(v)
}
