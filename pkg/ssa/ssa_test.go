package ssa

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/checker"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/util"
)

var tok = token.New(token.Ident, "")

func ident(name string) *ast.Node { return ast.NewIdent(token.New(token.Ident, name), name) }

func names(ns ...string) []*ast.Node {
	var out []*ast.Node
	for _, n := range ns {
		out = append(out, ident(n))
	}
	return out
}

func intLit(v string) *ast.Node {
	return ast.NewBasicLit(token.New(token.Integer, v), token.Integer, v)
}

func strLit(v string) *ast.Node {
	q := fmt.Sprintf("%q", v)
	return ast.NewBasicLit(token.New(token.String, q), token.String, q)
}

func block(stmts ...*ast.Node) *ast.Node { return ast.NewBlockStmt(tok, stmts) }

func procDecl(name string, params []*ast.Node, result string, body ...*ast.Node) *ast.Node {
	var results []*ast.Node
	if result != "" {
		results = []*ast.Node{ast.NewField(tok, nil, ident(result), 0)}
	}
	lit := ast.NewProcLit(tok, ast.NewProcType(tok, params, results, ast.CCOdin), block(body...), 0)
	return ast.NewValueDecl(tok, names(name), nil, []*ast.Node{lit}, false)
}

func param(name, typ string) *ast.Node { return ast.NewField(tok, names(name), ident(typ), 0) }

func define(name string, value *ast.Node) *ast.Node {
	return ast.NewValueDecl(tok, names(name), nil, []*ast.Node{value}, true)
}

func assign(lhs *ast.Node, rhs *ast.Node) *ast.Node {
	return ast.NewAssignStmt(tok, token.Eq, []*ast.Node{lhs}, []*ast.Node{rhs})
}

func binary(op token.Type, x, y *ast.Node) *ast.Node { return ast.NewBinaryExpr(tok, op, x, y) }

func callStmt(proc string, args ...*ast.Node) *ast.Node {
	return ast.NewExprStmt(tok, ast.NewCallExpr(tok, ident(proc), args))
}

func deferCall(proc string, args ...*ast.Node) *ast.Node {
	return ast.NewDeferStmt(tok, callStmt(proc, args...))
}

func brk() *ast.Node { return ast.NewBranchStmt(tok, token.Break) }

// sink is a procedure the tests call to observe evaluation order.
func sink() *ast.Node { return procDecl("f", []*ast.Node{param("x", "int")}, "") }

func build(t *testing.T, decls ...*ast.Node) *Module {
	t.Helper()
	cfg := config.NewConfig()
	diag := util.NewDiagnostics(cfg)
	info := checker.New(cfg, diag).CheckFiles([]*ast.File{{Path: "main.odin", Decls: decls}})
	if errs := diag.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected check errors: %v", errs)
	}
	m := NewModule(info, cfg.Sizes())
	m.Build()
	return m
}

func proc(t *testing.T, m *Module, name string) *Procedure {
	t.Helper()
	p := m.Proc(name)
	if p == nil {
		t.Fatalf("procedure %q not built", name)
	}
	return p
}

func labels(p *Procedure) []string {
	var out []string
	for _, b := range p.Blocks {
		out = append(out, b.Label)
	}
	return out
}

// calledWith lists the constant first argument of every call to callee in
// block order.
func calledWith(p *Procedure, callee string) []string {
	var out []string
	for _, b := range p.Blocks {
		for _, in := range b.Instrs {
			if in.Kind != InstrCall || in.Callee.String() != "@"+callee {
				continue
			}
			out = append(out, in.Args[0].String())
		}
	}
	return out
}

func TestDumpStraightLine(t *testing.T) {
	m := build(t, procDecl("main", nil, "",
		define("x", intLit("1")),
		assign(ident("x"), binary(token.Plus, ident("x"), intLit("2"))),
	))
	want := strings.Join([]string{
		"proc @main() {",
		"entry.0:",
		"\t%0 = local x int",
		"\tstore int 1, %0",
		"\t%1 = load int %0",
		"\t%2 = add int %1, 2",
		"\tstore int %2, %0",
		"\tret",
		"}",
		"",
	}, "\n")
	if diff := cmp.Diff(want, proc(t, m, "main").Dump()); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
}

func TestParamsAreSpilled(t *testing.T) {
	m := build(t, procDecl("inc", []*ast.Node{param("x", "int")}, "int",
		ast.NewReturnStmt(tok, []*ast.Node{binary(token.Plus, ident("x"), intLit("1"))}),
	))
	var kinds []InstrKind
	for _, in := range proc(t, m, "inc").Blocks[0].Instrs {
		kinds = append(kinds, in.Kind)
	}
	want := []InstrKind{InstrLocal, InstrStore, InstrLoad, InstrBinaryOp, InstrRet}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("entry block mismatch (-want +got):\n%s", diff)
	}
}

func TestBlockLayout(t *testing.T) {
	tests := []struct {
		name string
		body []*ast.Node
		want []string
	}{
		{
			"if else",
			[]*ast.Node{
				define("x", intLit("1")),
				ast.NewIfStmt(tok, nil, binary(token.Gt, ident("x"), intLit("0")),
					block(assign(ident("x"), intLit("2"))),
					block(assign(ident("x"), intLit("3")))),
			},
			[]string{"entry", "if.then", "if.else", "if.done"},
		},
		{
			"short circuit",
			[]*ast.Node{
				define("a", ident("true")),
				define("b", ident("false")),
				ast.NewIfStmt(tok, nil, binary(token.AndAnd, ident("a"), ident("b")), block(), nil),
			},
			[]string{"entry", "if.then", "cmp.and", "if.done"},
		},
		{
			"for with break",
			[]*ast.Node{
				ast.NewForStmt(tok,
					define("i", intLit("0")),
					binary(token.Lt, ident("i"), intLit("10")),
					ast.NewAssignStmt(tok, token.PlusEq, names("i"), []*ast.Node{intLit("1")}),
					block(ast.NewIfStmt(tok, nil, binary(token.EqEq, ident("i"), intLit("5")), block(brk()), nil))),
			},
			[]string{"entry", "for.body", "for.loop", "if.then", "if.done", "for.post", "for.done"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := build(t, procDecl("main", nil, "", tt.body...))
			if diff := cmp.Diff(tt.want, labels(proc(t, m, "main"))); diff != "" {
				t.Errorf("blocks mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBreakTargetsLoopExit(t *testing.T) {
	loop := ast.NewForStmt(tok, nil, nil, nil, block(
		ast.NewIfStmt(tok, nil, ident("true"), block(brk()), nil),
	))
	m := build(t, procDecl("main", nil, "", loop))
	p := proc(t, m, "main")
	for _, b := range p.Blocks {
		if b.Label != "if.then" {
			continue
		}
		last := b.Instrs[len(b.Instrs)-1]
		if last.Kind != InstrBr || last.Cond != nil || last.True.Label != "for.done" {
			t.Fatalf("break lowered to %q, want a jump to for.done", last.Text())
		}
		return
	}
	t.Fatal("no if.then block")
}

func TestDeferOrder(t *testing.T) {
	one, two, three := intLit("1"), intLit("2"), intLit("3")
	tests := []struct {
		name string
		body []*ast.Node
		want []string
	}{
		{"reverse registration order", []*ast.Node{
			deferCall("f", one), deferCall("f", two), callStmt("f", three),
		}, []string{"3", "2", "1"}},
		{"block exit runs its own defers", []*ast.Node{
			block(deferCall("f", intLit("1"))), callStmt("f", intLit("2")),
		}, []string{"1", "2"}},
		{"return runs every frame innermost first", []*ast.Node{
			deferCall("f", intLit("1")),
			block(deferCall("f", intLit("2")), ast.NewReturnStmt(tok, nil)),
		}, []string{"2", "1"}},
		{"break runs the loop body defers once", []*ast.Node{
			ast.NewForStmt(tok, nil, nil, nil, block(deferCall("f", intLit("1")), brk())),
			callStmt("f", intLit("2")),
		}, []string{"1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := build(t, sink(), procDecl("main", nil, "", tt.body...))
			if diff := cmp.Diff(tt.want, calledWith(proc(t, m, "main"), "f")); diff != "" {
				t.Errorf("call order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRegistersSkipEffects(t *testing.T) {
	m := build(t, procDecl("main", nil, "",
		define("x", intLit("1")),
		ast.NewIfStmt(tok, nil, binary(token.Gt, ident("x"), intLit("0")), block(assign(ident("x"), intLit("2"))), nil),
	))
	next := 0
	for _, b := range proc(t, m, "main").Blocks {
		for _, in := range b.Instrs {
			switch {
			case in.HasResult():
				if in.ID != next {
					t.Errorf("%s numbered %d, want %d", in.Text(), in.ID, next)
				}
				next++
			case in.ID != -1:
				t.Errorf("%s has register %d", in.Text(), in.ID)
			}
		}
	}
}

func TestStringConstantsAreShared(t *testing.T) {
	m := build(t, procDecl("main", nil, "",
		define("a", strLit("hi")),
		define("b", strLit("hi")),
		define("c", strLit("yo")),
	))
	var got []string
	for _, g := range m.Globals {
		if g.Generated {
			got = append(got, g.Label+"="+g.Init.String())
		}
	}
	want := []string{`.str0="hi"`, `.str1="yo"`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("string globals mismatch (-want +got):\n%s", diff)
	}
}

func TestMissingResultEndsUnreachable(t *testing.T) {
	m := build(t, procDecl("spin", nil, "int", ast.NewForStmt(tok, nil, nil, nil, block())))
	p := proc(t, m, "spin")
	last := p.Blocks[len(p.Blocks)-1]
	if last.Label != "for.done" || !last.Terminated() || last.Instrs[len(last.Instrs)-1].Kind != InstrUnreachable {
		t.Errorf("last block:\n%s", p.Dump())
	}
}

func TestPanicCallsRuntime(t *testing.T) {
	m := build(t, procDecl("main", nil, "",
		callStmt("panic", strLit("boom")),
		define("x", intLit("1")),
	))
	p := proc(t, m, "main")
	entry := p.Blocks[0]
	var kinds []InstrKind
	for _, in := range entry.Instrs {
		kinds = append(kinds, in.Kind)
	}
	want := []InstrKind{InstrLoad, InstrCall, InstrUnreachable}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}
	if rt := m.Proc(RuntimePanic); rt == nil || !rt.IsForeign() {
		t.Errorf("runtime panic procedure not declared")
	}
}

func TestMapIndexIsFatal(t *testing.T) {
	mapType := ast.NewMapType(tok, nil, ident("string"), ident("int"))
	index := ast.NewIndexExpr(tok, ident("m"), strLit("k"))
	cfg := config.NewConfig()
	diag := util.NewDiagnostics(cfg)
	info := checker.New(cfg, diag).CheckFiles([]*ast.File{{Path: "main.odin", Decls: []*ast.Node{
		procDecl("main", nil, "",
			ast.NewValueDecl(tok, names("m"), mapType, nil, true),
			define("v", index),
		),
	}}})
	if errs := diag.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected check errors: %v", errs)
	}

	defer func() {
		r := recover()
		if r == nil || !strings.Contains(fmt.Sprint(r), "map indexing is not supported") {
			t.Errorf("recovered %v, want a map indexing internal error", r)
		}
	}()
	NewModule(info, cfg.Sizes()).Build()
}

func TestNestedBranchTargets(t *testing.T) {
	post := ast.NewAssignStmt(tok, token.PlusEq, names("i"), []*ast.Node{intLit("1")})
	inner := ast.NewForStmt(tok,
		define("i", intLit("0")),
		binary(token.Lt, ident("i"), intLit("3")),
		post,
		block(ast.NewIfStmt(tok, nil, ident("true"), block(brk()), block(ast.NewBranchStmt(tok, token.Continue)))),
	)
	outer := ast.NewForStmt(tok, nil, nil, nil, block(inner, brk()))
	p := proc(t, build(t, procDecl("main", nil, "", outer)), "main")

	var got []string
	for _, b := range p.Blocks {
		if b.Label != "if.then" && b.Label != "if.else" {
			continue
		}
		last := b.Instrs[len(b.Instrs)-1]
		if last.Kind != InstrBr || last.Cond != nil {
			t.Fatalf("%s ends with %q, want a jump", b.Label, last.Text())
		}
		loop := "outer"
		if last.True.Node == inner {
			loop = "inner"
		}
		got = append(got, b.Label+" -> "+loop+" "+last.True.Label)
	}
	want := []string{"if.then -> inner for.done", "if.else -> inner for.post"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("branch targets mismatch (-want +got):\n%s", diff)
	}
}

// fieldStores lists `index=value` for every store through a struct field
// address in p.
func fieldStores(p *Procedure) []string {
	var out []string
	for _, b := range p.Blocks {
		for _, in := range b.Instrs {
			if in.Kind != InstrStore {
				continue
			}
			gep, ok := in.Addr.(*Instr)
			if !ok || gep.Kind != InstrGetElementPtr || len(gep.Indices) != 2 {
				continue
			}
			out = append(out, gep.Indices[1].String()+"="+in.Val.String())
		}
	}
	return out
}

func TestPositionalStructLiteral(t *testing.T) {
	fields := []*ast.Node{param("a", "u8"), param("b", "u16"), param("c", "i64")}
	st := ast.NewValueDecl(tok, names("S"), nil, []*ast.Node{ast.NewStructType(tok, fields, false, false, nil)}, false)
	lit := ast.NewCompoundLit(tok, ident("S"), []*ast.Node{intLit("1"), intLit("2"), intLit("3")})
	m := build(t, st, procDecl("main", nil, "", define("s", lit)))

	// Layout order is c, b, a.
	want := []string{"2=1", "1=2", "0=3"}
	if diff := cmp.Diff(want, fieldStores(proc(t, m, "main"))); diff != "" {
		t.Errorf("field stores mismatch (-want +got):\n%s", diff)
	}
}

func TestSliceBoundsLowering(t *testing.T) {
	tests := []struct {
		name    string
		sep     token.Type
		wantLen string
	}{
		{"closed range includes the high index", token.Dots, "add int 4, 1"},
		{"half-open range excludes it", token.HalfOpen, "4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := ast.NewSliceExpr(tok, ident("a"), intLit("1"), intLit("4"), nil)
			d := n.Data.(ast.SliceExprNode)
			d.Interval0 = token.New(tt.sep, tt.sep.String())
			n.Data = d
			arr := ast.NewArrayType(tok, intLit("8"), ident("int"))
			m := build(t, procDecl("main", nil, "",
				ast.NewValueDecl(tok, names("a"), arr, nil, true),
				define("s", n),
			))

			// The first subtraction computes the new length as high - low.
			for _, b := range proc(t, m, "main").Blocks {
				for _, in := range b.Instrs {
					if in.Kind != InstrBinaryOp || in.Op != token.Minus {
						continue
					}
					high := in.X.String()
					if x, ok := in.X.(*Instr); ok {
						high = strings.SplitN(x.Text(), " = ", 2)[1]
					}
					if high != tt.wantLen || in.Y.String() != "1" {
						t.Errorf("length computed as (%s) - %s, want (%s) - 1", high, in.Y, tt.wantLen)
					}
					return
				}
			}
			t.Fatal("no length subtraction")
		})
	}
}
