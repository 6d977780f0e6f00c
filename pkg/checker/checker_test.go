package checker

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
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

func floatLit(v string) *ast.Node {
	return ast.NewBasicLit(token.New(token.Float, v), token.Float, v)
}

func strLit(v string) *ast.Node {
	return ast.NewBasicLit(token.New(token.String, v), token.String, v)
}

func param(name, typ string) *ast.Node {
	return ast.NewField(tok, names(name), ident(typ), 0)
}

func result(typ string) *ast.Node { return ast.NewField(tok, nil, ident(typ), 0) }

func block(stmts ...*ast.Node) *ast.Node { return ast.NewBlockStmt(tok, stmts) }

func procLit(params, results []*ast.Node, body ...*ast.Node) *ast.Node {
	return ast.NewProcLit(tok, ast.NewProcType(tok, params, results, ast.CCOdin), block(body...), 0)
}

// constDecl builds `name :: value`.
func constDecl(name *ast.Node, value *ast.Node) *ast.Node {
	return ast.NewValueDecl(tok, []*ast.Node{name}, nil, []*ast.Node{value}, false)
}

// define builds `name := value`.
func define(name string, value *ast.Node) *ast.Node {
	return ast.NewValueDecl(tok, names(name), nil, []*ast.Node{value}, true)
}

func assign(lhs []*ast.Node, rhs ...*ast.Node) *ast.Node {
	return ast.NewAssignStmt(tok, token.Eq, lhs, rhs)
}

func binary(op token.Type, x, y *ast.Node) *ast.Node { return ast.NewBinaryExpr(tok, op, x, y) }

func call(proc *ast.Node, args ...*ast.Node) *ast.Node { return ast.NewCallExpr(tok, proc, args) }

func exprStmtNode(x *ast.Node) *ast.Node { return ast.NewExprStmt(tok, x) }

func mainDecl(body ...*ast.Node) *ast.Node { return constDecl(ident("main"), procLit(nil, nil, body...)) }

func checkDecls(t *testing.T, decls ...*ast.Node) (*Info, *util.Diagnostics) {
	t.Helper()
	cfg := config.NewConfig()
	diag := util.NewDiagnostics(cfg)
	c := New(cfg, diag)
	info := c.CheckFiles([]*ast.File{{Path: "main.odin", Decls: decls}})
	return info, diag
}

func containsMsg(msgs []string, want string) bool {
	for _, m := range msgs {
		if strings.Contains(m, want) {
			return true
		}
	}
	return false
}

func TestStatementDiagnostics(t *testing.T) {
	tests := []struct {
		name string
		body func() []*ast.Node
		want string // Empty when the body must check cleanly
	}{
		{"break outside loop", func() []*ast.Node {
			return []*ast.Node{ast.NewBranchStmt(tok, token.Break)}
		}, "`break` only allowed in loops"},
		{"break inside loop", func() []*ast.Node {
			return []*ast.Node{ast.NewForStmt(tok, nil, nil, nil, block(ast.NewBranchStmt(tok, token.Break)))}
		}, ""},
		{"fallthrough", func() []*ast.Node {
			return []*ast.Node{ast.NewBranchStmt(tok, token.Fallthrough)}
		}, "`fallthrough` statement in illegal position"},
		{"integer division by zero", func() []*ast.Node {
			return []*ast.Node{
				define("x", intLit("1")),
				assign(names("_"), binary(token.Slash, ident("x"), intLit("0"))),
			}
		}, "Division by zero not allowed"},
		{"float division by zero", func() []*ast.Node {
			return []*ast.Node{
				define("x", floatLit("1.0")),
				assign(names("_"), binary(token.Slash, ident("x"), intLit("0"))),
			}
		}, ""},
		{"unused expression", func() []*ast.Node {
			return []*ast.Node{
				define("x", intLit("1")),
				exprStmtNode(binary(token.Plus, ident("x"), intLit("1"))),
			}
		}, "is not used"},
		{"assign to constant", func() []*ast.Node {
			return []*ast.Node{
				constDecl(ident("N"), intLit("1")),
				assign(names("N"), intLit("2")),
			}
		}, "Cannot assign to `N`"},
		{"assignment count mismatch", func() []*ast.Node {
			return []*ast.Node{
				define("x", intLit("1")),
				define("y", intLit("2")),
				assign(names("x", "y"), intLit("3")),
			}
		}, "Assignment count mismatch `2` = `1`"},
		{"non-boolean condition", func() []*ast.Node {
			return []*ast.Node{
				define("x", intLit("1")),
				ast.NewIfStmt(tok, nil, ident("x"), block(), nil),
			}
		}, "Non-boolean condition in `if` statement"},
		{"return inside defer", func() []*ast.Node {
			return []*ast.Node{ast.NewDeferStmt(tok, ast.NewReturnStmt(tok, nil))}
		}, "You cannot `return` within a defer statement"},
		{"nested defer", func() []*ast.Node {
			inner := ast.NewDeferStmt(tok, exprStmtNode(call(ident("main"))))
			return []*ast.Node{ast.NewDeferStmt(tok, inner)}
		}, "You cannot defer a defer statement"},
		{"swapped slice indices", func() []*ast.Node {
			arr := ast.NewArrayType(tok, intLit("4"), ident("int"))
			return []*ast.Node{
				ast.NewValueDecl(tok, names("a"), arr, nil, true),
				assign(names("_"), ast.NewSliceExpr(tok, ident("a"), intLit("3"), intLit("1"), nil)),
			}
		}, "Invalid slice indices: [3 > 1]"},
		{"op-assign string variable", func() []*ast.Node {
			return []*ast.Node{
				define("s", strLit("\"a\"")),
				ast.NewAssignStmt(tok, token.PlusEq, names("s"), []*ast.Node{strLit("\"b\"")}),
			}
		}, "String concatenation is only allowed with constant strings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diag := checkDecls(t, mainDecl(tt.body()...))
			errs := diag.Errors()
			if tt.want == "" {
				if len(errs) != 0 {
					t.Fatalf("unexpected errors: %v", errs)
				}
				return
			}
			if !containsMsg(errs, tt.want) {
				t.Errorf("errors %q do not mention %q", errs, tt.want)
			}
		})
	}
}

func TestMissingReturn(t *testing.T) {
	ret := func(v string) *ast.Node { return ast.NewReturnStmt(tok, []*ast.Node{intLit(v)}) }
	tests := []struct {
		name    string
		body    func() []*ast.Node
		missing bool
	}{
		{"empty", func() []*ast.Node { return nil }, true},
		{"return", func() []*ast.Node { return []*ast.Node{ret("1")} }, false},
		{"if without else", func() []*ast.Node {
			return []*ast.Node{ast.NewIfStmt(tok, nil, ident("true"), block(ret("1")), nil)}
		}, true},
		{"if with else", func() []*ast.Node {
			return []*ast.Node{ast.NewIfStmt(tok, nil, ident("true"), block(ret("1")), block(ret("2")))}
		}, false},
		{"infinite loop", func() []*ast.Node {
			return []*ast.Node{ast.NewForStmt(tok, nil, nil, nil, block())}
		}, false},
		{"loop with break", func() []*ast.Node {
			return []*ast.Node{ast.NewForStmt(tok, nil, nil, nil, block(ast.NewBranchStmt(tok, token.Break)))}
		}, true},
		{"panic", func() []*ast.Node {
			return []*ast.Node{exprStmtNode(call(ident("panic"), strLit("\"unreachable\"")))}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := constDecl(ident("g"), procLit(nil, []*ast.Node{result("int")}, tt.body()...))
			_, diag := checkDecls(t, g)
			got := containsMsg(diag.Errors(), "Missing return statement")
			if got != tt.missing {
				t.Errorf("missing return reported = %v, want %v (errors: %v)", got, tt.missing, diag.Errors())
			}
		})
	}
}

func TestUnreachableCodeWarnsOnce(t *testing.T) {
	_, diag := checkDecls(t, mainDecl(
		ast.NewReturnStmt(tok, nil),
		exprStmtNode(call(ident("main"))),
		exprStmtNode(call(ident("main"))),
	))
	var unreachable []string
	for _, w := range diag.Warnings() {
		if w == "Unreachable code" {
			unreachable = append(unreachable, w)
		}
	}
	if diff := cmp.Diff([]string{"Unreachable code"}, unreachable); diff != "" {
		t.Errorf("unreachable warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestOverloadResolution(t *testing.T) {
	t.Run("exact integer wins", func(t *testing.T) {
		fInt, fFloat := ident("f"), ident("f")
		callee := ident("f")
		info, diag := checkDecls(t,
			constDecl(fInt, procLit([]*ast.Node{param("x", "int")}, nil)),
			constDecl(fFloat, procLit([]*ast.Node{param("x", "f64")}, nil)),
			mainDecl(exprStmtNode(call(callee, intLit("1")))),
		)
		if errs := diag.Errors(); len(errs) != 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if got, want := info.Uses[callee], info.Defs[fInt]; got != want {
			t.Errorf("call resolved to %v, want %v", got, want)
		}
	})

	t.Run("ambiguous", func(t *testing.T) {
		_, diag := checkDecls(t,
			constDecl(ident("f"), procLit([]*ast.Node{param("x", "i32")}, nil)),
			constDecl(ident("f"), procLit([]*ast.Node{param("x", "i64")}, nil)),
			mainDecl(exprStmtNode(call(ident("f"), intLit("1")))),
		)
		if !containsMsg(diag.Errors(), "Ambiguous procedure call `f`") {
			t.Errorf("expected an ambiguity error, got %v", diag.Errors())
		}
	})

	t.Run("no match", func(t *testing.T) {
		_, diag := checkDecls(t,
			constDecl(ident("f"), procLit([]*ast.Node{param("x", "int")}, nil)),
			constDecl(ident("f"), procLit([]*ast.Node{param("x", "i32")}, nil)),
			mainDecl(exprStmtNode(call(ident("f"), strLit("\"s\"")))),
		)
		if !containsMsg(diag.Errors(), "No overloads for `f`") {
			t.Errorf("expected a no-match error, got %v", diag.Errors())
		}
	})

	t.Run("identical signatures", func(t *testing.T) {
		_, diag := checkDecls(t,
			constDecl(ident("f"), procLit([]*ast.Node{param("x", "int")}, nil)),
			constDecl(ident("f"), procLit([]*ast.Node{param("x", "int")}, nil)),
		)
		if !containsMsg(diag.Errors(), "has the same type as another procedure") {
			t.Errorf("expected a duplicate overload error, got %v", diag.Errors())
		}
	})
}

func TestConstantFolding(t *testing.T) {
	n := ident("N")
	info, diag := checkDecls(t, constDecl(n, binary(token.Plus, intLit("2"), binary(token.Star, intLit("3"), intLit("4")))))
	if errs := diag.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	e := info.Defs[n]
	if e == nil || e.Kind != types.EntityConstant {
		t.Fatalf("N is not a constant: %v", e)
	}
	if v, ok := e.Value.Int64(); !ok || v != 14 {
		t.Errorf("N = %v, want 14", e.Value)
	}
}

func TestMapIndexOkForm(t *testing.T) {
	index := ast.NewIndexExpr(tok, ident("m"), strLit("\"k\""))
	mapType := ast.NewMapType(tok, nil, ident("string"), ident("int"))
	info, diag := checkDecls(t, mainDecl(
		ast.NewValueDecl(tok, names("m"), mapType, nil, true),
		ast.NewValueDecl(tok, names("v", "ok"), nil, []*ast.Node{index}, true),
	))
	if errs := diag.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	tup, ok := info.TypeOf(index).(*types.Tuple)
	if !ok || tup.Len() != 2 {
		t.Fatalf("m[k] recorded as %v, want a (value, bool) tuple", info.TypeOf(index))
	}
	if !types.IsBoolean(tup.At(1)) {
		t.Errorf("second result is %v, want bool", tup.At(1))
	}
}

func TestEnumValues(t *testing.T) {
	a, b, c := ident("A"), ast.NewFieldValue(tok, ident("B"), intLit("10")), ident("C")
	info, diag := checkDecls(t, constDecl(ident("E"), ast.NewEnumType(tok, nil, []*ast.Node{a, b, c})))
	if errs := diag.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	var got []int64
	for _, f := range []*ast.Node{a, b, c} {
		e := info.Uses[f]
		if e == nil {
			t.Fatalf("no entity recorded for %s", exprString(f))
		}
		v, _ := e.Value.Int64()
		got = append(got, v)
	}
	if diff := cmp.Diff([]int64{0, 10, 11}, got); diff != "" {
		t.Errorf("enum values mismatch (-want +got):\n%s", diff)
	}
}

func TestEnumReservedNames(t *testing.T) {
	for _, name := range []string{"count", "min_value", "max_value", "names", "_"} {
		t.Run(name, func(t *testing.T) {
			enum := ast.NewEnumType(tok, nil, []*ast.Node{ident("A"), ident(name)})
			_, diag := checkDecls(t, constDecl(ident("E"), enum))
			want := "`" + name + "` is a reserved identifier for enumerations"
			if !containsMsg(diag.Errors(), want) {
				t.Errorf("errors %q do not mention %q", diag.Errors(), want)
			}
		})
	}
}

func TestStructFieldsAreReordered(t *testing.T) {
	s := ident("S")
	st := ast.NewStructType(tok, []*ast.Node{param("a", "u8"), param("b", "u16"), param("c", "i64")}, false, false, nil)
	info, diag := checkDecls(t, constDecl(s, st))
	if errs := diag.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	r, ok := types.Base(info.Defs[s].Type).(*types.Record)
	if !ok {
		t.Fatalf("S is %v, want a struct", info.Defs[s].Type)
	}
	fieldNames := func(fs []*types.Entity) []string {
		var out []string
		for _, f := range fs {
			out = append(out, f.Name)
		}
		return out
	}
	if diff := cmp.Diff([]string{"c", "b", "a"}, fieldNames(r.Fields)); diff != "" {
		t.Errorf("layout order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, fieldNames(r.FieldsInSrcOrder)); diff != "" {
		t.Errorf("source order mismatch (-want +got):\n%s", diff)
	}
}

func TestExpressionDiagnostics(t *testing.T) {
	neg := func(v string) *ast.Node { return ast.NewUnaryExpr(tok, token.Minus, intLit(v)) }
	typedVar := func(typ string, v *ast.Node) *ast.Node {
		return ast.NewValueDecl(tok, names("x"), ident(typ), []*ast.Node{v}, true)
	}
	tests := []struct {
		name string
		body func() []*ast.Node
		want string // Empty when the body must check cleanly
	}{
		{"integer modulo by zero", func() []*ast.Node {
			return []*ast.Node{
				define("x", intLit("7")),
				assign(names("_"), binary(token.Rem, ident("x"), intLit("0"))),
			}
		}, "Division by zero not allowed"},
		{"i8 max", func() []*ast.Node { return []*ast.Node{typedVar("i8", intLit("127"))} }, ""},
		{"i8 max plus one", func() []*ast.Node { return []*ast.Node{typedVar("i8", intLit("128"))} }, "overflows `i8`"},
		{"i8 min", func() []*ast.Node { return []*ast.Node{typedVar("i8", neg("128"))} }, ""},
		{"i8 min minus one", func() []*ast.Node { return []*ast.Node{typedVar("i8", neg("129"))} }, "overflows `i8`"},
		{"u8 negative", func() []*ast.Node { return []*ast.Node{typedVar("u8", neg("1"))} }, "overflows `u8`"},
		{"u8 max", func() []*ast.Node { return []*ast.Node{typedVar("u8", intLit("255"))} }, ""},
		{"u8 max plus one", func() []*ast.Node { return []*ast.Node{typedVar("u8", intLit("256"))} }, "overflows `u8`"},
		{"float truncated to integer", func() []*ast.Node { return []*ast.Node{typedVar("int", floatLit("1.5"))} }, "truncated to `int`"},
		{"shift amount too large", func() []*ast.Node {
			return []*ast.Node{constDecl(ident("N"), binary(token.Shl, intLit("1"), intLit("200")))}
		}, "Shift amount too large"},
		{"nested procedure uses parent variable", func() []*ast.Node {
			return []*ast.Node{
				define("x", intLit("1")),
				constDecl(ident("g"), procLit(nil, nil, assign(names("_"), ident("x")))),
			}
		}, "Nested procedures do not capture its parent's variables: x"},
		{"nested procedure uses parent constant", func() []*ast.Node {
			return []*ast.Node{
				constDecl(ident("K"), intLit("1")),
				constDecl(ident("g"), procLit(nil, nil, assign(names("_"), ident("K")))),
			}
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diag := checkDecls(t, mainDecl(tt.body()...))
			errs := diag.Errors()
			if tt.want == "" {
				if len(errs) != 0 {
					t.Fatalf("unexpected errors: %v", errs)
				}
				return
			}
			if !containsMsg(errs, tt.want) {
				t.Errorf("errors %q do not mention %q", errs, tt.want)
			}
		})
	}
}

// sliceOf builds `a[low sep high]` with sep either `..` or `..<`.
func sliceOf(sep token.Type, low, high string) *ast.Node {
	n := ast.NewSliceExpr(tok, ident("a"), intLit(low), intLit(high), nil)
	d := n.Data.(ast.SliceExprNode)
	d.Interval0 = token.New(sep, sep.String())
	n.Data = d
	return n
}

func TestSliceBounds(t *testing.T) {
	tests := []struct {
		name  string
		slice *ast.Node
		want  string // Empty when the slice is in bounds
	}{
		{"closed last element", sliceOf(token.Dots, "0", "7"), ""},
		{"closed past the end", sliceOf(token.Dots, "0", "8"), "Index `8` is out of bounds range 0..<8"},
		{"half-open full length", sliceOf(token.HalfOpen, "0", "8"), ""},
		{"half-open past the end", sliceOf(token.HalfOpen, "0", "9"), "Index `9` is out of bounds range 0..<8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arr := ast.NewArrayType(tok, intLit("8"), ident("int"))
			_, diag := checkDecls(t, mainDecl(
				ast.NewValueDecl(tok, names("a"), arr, nil, true),
				define("s", tt.slice),
			))
			errs := diag.Errors()
			if tt.want == "" {
				if len(errs) != 0 {
					t.Fatalf("unexpected errors: %v", errs)
				}
				return
			}
			if !containsMsg(errs, tt.want) {
				t.Errorf("errors %q do not mention %q", errs, tt.want)
			}
		})
	}
}

func TestStringCountFolding(t *testing.T) {
	t.Run("untyped constant folds", func(t *testing.T) {
		n := ident("N")
		info, diag := checkDecls(t,
			constDecl(ident("S"), strLit(`"ab"`)),
			constDecl(n, ast.NewSelectorExpr(tok, ident("S"), ident("count"))),
		)
		if errs := diag.Errors(); len(errs) != 0 {
			t.Fatalf("unexpected errors: %v", errs)
		}
		if v, ok := info.Defs[n].Value.Int64(); !ok || v != 2 {
			t.Errorf("N = %v, want 2", info.Defs[n].Value)
		}
	})

	t.Run("typed constant does not fold", func(t *testing.T) {
		_, diag := checkDecls(t,
			ast.NewValueDecl(tok, names("S"), ident("string"), []*ast.Node{strLit(`"ab"`)}, false),
			constDecl(ident("N"), ast.NewSelectorExpr(tok, ident("S"), ident("count"))),
		)
		if !containsMsg(diag.Errors(), "Cannot access non-constant field `count` from `S`") {
			t.Errorf("expected a non-constant field error, got %v", diag.Errors())
		}
	})
}

func TestReserveNeedsAddressableContainer(t *testing.T) {
	dyn := func() *ast.Node { return ast.NewDynamicArrayType(tok, ident("int")) }
	getter := func() *ast.Node {
		return constDecl(ident("get"), procLit(nil, []*ast.Node{ast.NewField(tok, nil, dyn(), 0)},
			ast.NewValueDecl(tok, names("r"), dyn(), nil, true),
			ast.NewReturnStmt(tok, names("r")),
		))
	}
	tests := []struct {
		name string
		recv func() *ast.Node
		want string
	}{
		{"variable", func() *ast.Node { return ident("d") }, ""},
		{"pointer", func() *ast.Node { return ast.NewUnaryExpr(tok, token.And, ident("d")) }, ""},
		{"call result", func() *ast.Node { return call(ident("get")) }, "`reserve` can only operate on addressable values"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diag := checkDecls(t, getter(), mainDecl(
				ast.NewValueDecl(tok, names("d"), dyn(), nil, true),
				exprStmtNode(call(ident("reserve"), tt.recv(), intLit("16"))),
			))
			errs := diag.Errors()
			if tt.want == "" {
				if len(errs) != 0 {
					t.Fatalf("unexpected errors: %v", errs)
				}
				return
			}
			if !containsMsg(errs, tt.want) {
				t.Errorf("errors %q do not mention %q", errs, tt.want)
			}
		})
	}
}
