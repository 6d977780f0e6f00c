package codegen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/checker"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/ssa"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/util"
)

var tok = token.New(token.Ident, "")

func ident(name string) *ast.Node { return ast.NewIdent(token.New(token.Ident, name), name) }

func intLit(v string) *ast.Node {
	return ast.NewBasicLit(token.New(token.Integer, v), token.Integer, v)
}

func strLit(v string) *ast.Node {
	q := `"` + v + `"`
	return ast.NewBasicLit(token.New(token.String, q), token.String, q)
}

func procDecl(name, result string, body ...*ast.Node) *ast.Node {
	var results []*ast.Node
	if result != "" {
		results = []*ast.Node{ast.NewField(tok, nil, ident(result), 0)}
	}
	lit := ast.NewProcLit(tok, ast.NewProcType(tok, nil, results, ast.CCOdin), ast.NewBlockStmt(tok, body), 0)
	return ast.NewValueDecl(tok, []*ast.Node{ident(name)}, nil, []*ast.Node{lit}, false)
}

func varDecl(name, typ string, value *ast.Node) *ast.Node {
	var t *ast.Node
	if typ != "" {
		t = ident(typ)
	}
	var values []*ast.Node
	if value != nil {
		values = []*ast.Node{value}
	}
	return ast.NewValueDecl(tok, []*ast.Node{ident(name)}, t, values, true)
}

func assign(name string, value *ast.Node) *ast.Node {
	return ast.NewAssignStmt(tok, token.Eq, []*ast.Node{ident(name)}, []*ast.Node{value})
}

func binary(op token.Type, x, y *ast.Node) *ast.Node { return ast.NewBinaryExpr(tok, op, x, y) }

func lower(t *testing.T, decls ...*ast.Node) (string, error) {
	t.Helper()
	cfg := config.NewConfig()
	diag := util.NewDiagnostics(cfg)
	info := checker.New(cfg, diag).CheckFiles([]*ast.File{{Path: "main.odin", Decls: decls}})
	if errs := diag.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected check errors: %v", errs)
	}
	m := ssa.NewModule(info, cfg.Sizes())
	m.Build()
	return (&qbeBackend{}).GenerateIR(m, cfg)
}

func mustLower(t *testing.T, decls ...*ast.Node) string {
	t.Helper()
	il, err := lower(t, decls...)
	if err != nil {
		t.Fatalf("GenerateIR: %v", err)
	}
	return il
}

func TestStraightLineProcedure(t *testing.T) {
	il := mustLower(t, procDecl("main", "",
		varDecl("x", "", intLit("1")),
		assign("x", binary(token.Plus, ident("x"), intLit("2"))),
	))
	want := strings.Join([]string{
		"export function $main() {",
		"@start",
		"\t%t0 =l alloc8 8",
		"@entry.0",
		"\tstorel 1, %t0",
		"\t%t1 =l loadl %t0",
		"\t%t2 =l add %t1, 2",
		"\tstorel %t2, %t0",
		"\tret",
		"}",
		"",
	}, "\n")
	if diff := cmp.Diff(want, il); diff != "" {
		t.Errorf("IL mismatch (-want +got):\n%s", diff)
	}
}

func TestLowering(t *testing.T) {
	point := ast.NewStructType(tok, []*ast.Node{
		ast.NewField(tok, []*ast.Node{ident("x"), ident("y")}, ident("f64"), 0),
	}, false, false, nil)

	tests := []struct {
		name  string
		decls []*ast.Node
		want  []string
	}{
		{
			"string constants become data",
			[]*ast.Node{procDecl("main", "", varDecl("s", "", strLit("hi")))},
			[]string{
				"data $.str0.bytes = { b \"hi\", b 0 }",
				"data $.str0 = align 8 { l $.str0.bytes, l 2 }",
				"\t%t1 =l alloc8 16",
				"\tblit $.str0, %t1, 16",
				"\tblit %t1, %t0, 16",
			},
		},
		{
			"narrow arithmetic is re-extended",
			[]*ast.Node{procDecl("main", "",
				varDecl("x", "u8", intLit("200")),
				assign("x", binary(token.Plus, ident("x"), intLit("100"))),
			)},
			[]string{
				"\t%t1 =w loadub %t0",
				"\t%.1 =w add %t1, 100",
				"\t%t2 =w extub %.1",
				"\tstoreb %t2, %t0",
			},
		},
		{
			"globals",
			[]*ast.Node{
				varDecl("counter", "i32", intLit("7")),
				varDecl("ratio", "f64", nil),
			},
			[]string{
				"export data $counter = align 4 { w 7 }",
				"export data $ratio = align 8 { z 8 }",
			},
		},
		{
			"records are passed as aggregates",
			[]*ast.Node{
				ast.NewValueDecl(tok, []*ast.Node{ident("Point")}, nil, []*ast.Node{point}, false),
				procDecl("origin", "Point", varDecl("p", "Point", nil), ast.NewReturnStmt(tok, []*ast.Node{ident("p")})),
			},
			[]string{
				"type :t0 = align 8 { d, d }",
				"export function :t0 $origin() {",
				"\tcall $memset(l %t0, w 0, l 16)",
				"\tret %t1",
			},
		},
		{
			"panic calls the runtime",
			[]*ast.Node{procDecl("main", "", ast.NewExprStmt(tok, ast.NewCallExpr(tok, ident("panic"), []*ast.Node{strLit("boom")})))},
			[]string{
				"type :t0 = align 8 { l, l }",
				"\tcall $" + ssa.RuntimePanic + "(:t0 %t0)",
				"\thlt",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			il := mustLower(t, tt.decls...)
			for _, line := range tt.want {
				if !strings.Contains(il, line+"\n") {
					t.Errorf("missing %q in:\n%s", line, il)
				}
			}
		})
	}
}

func TestFlooredModulo(t *testing.T) {
	il := mustLower(t, procDecl("main", "",
		varDecl("a", "", intLit("7")),
		varDecl("b", "", binary(token.RemRem, ident("a"), intLit("3"))),
	))
	if got := strings.Count(il, " rem "); got != 2 {
		t.Errorf("got %d rem instructions, want 2:\n%s", got, il)
	}
}

func TestUnsupportedOperator(t *testing.T) {
	_, err := lower(t, procDecl("main", "",
		varDecl("a", "", strLit("x")),
		varDecl("b", "", binary(token.EqEq, ident("a"), strLit("y"))),
	))
	if err == nil || !strings.Contains(err.Error(), "operator `==` on `string` is not supported") {
		t.Fatalf("got error %v", err)
	}
	if !strings.Contains(err.Error(), "in `main`") {
		t.Errorf("error %q does not name the procedure", err)
	}
}

func TestByteItems(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "b 0"},
		{"hi", `b "hi", b 0`},
		{"a\"b\n", `b "a", b 34, b "b", b 10, b 0`},
	}
	for _, tt := range tests {
		if got := byteItems(tt.in); got != tt.want {
			t.Errorf("byteItems(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
