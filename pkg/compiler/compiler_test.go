package compiler

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/ssa"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/util"
)

var tok = token.New(token.Ident, "")

func ident(name string) *ast.Node { return ast.NewIdent(token.New(token.Ident, name), name) }

func mainFile(body ...*ast.Node) []*ast.File {
	lit := ast.NewProcLit(tok, ast.NewProcType(tok, nil, nil, ast.CCOdin), ast.NewBlockStmt(tok, body), 0)
	decl := ast.NewValueDecl(tok, []*ast.Node{ident("main")}, nil, []*ast.Node{lit}, false)
	return []*ast.File{{Path: "main.odin", Decls: []*ast.Node{decl}}}
}

func define(name string, value *ast.Node) *ast.Node {
	return ast.NewValueDecl(tok, []*ast.Node{ident(name)}, nil, []*ast.Node{value}, true)
}

type fakeBackend struct {
	got *ssa.Module
}

func (f *fakeBackend) Generate(m *ssa.Module, cfg *config.Config) (*bytes.Buffer, error) {
	f.got = m
	return bytes.NewBufferString("asm"), nil
}

func newCompiler() (*Compiler, *fakeBackend) {
	cfg := config.NewConfig()
	c := New(cfg, util.NewDiagnostics(cfg))
	fb := &fakeBackend{}
	c.Backend = fb
	return c, fb
}

func sectionLabels(t *Timings) []string {
	var out []string
	for _, s := range t.Sections {
		out = append(out, s.Label)
	}
	return out
}

func TestCompileRunsEveryPhase(t *testing.T) {
	c, fb := newCompiler()
	one := ast.NewBasicLit(token.New(token.Integer, "1"), token.Integer, "1")
	res, err := c.Compile(mainFile(define("x", one)))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if fb.got != res.Module || res.Module.Proc("main") == nil {
		t.Errorf("backend did not receive the built module")
	}
	if res.Asm.String() != "asm" {
		t.Errorf("asm = %q", res.Asm.String())
	}
	if diff := cmp.Diff([]string{"check", "ssa", "codegen"}, sectionLabels(c.Timings)); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorGateStopsBeforeLowering(t *testing.T) {
	c, fb := newCompiler()
	res, err := c.Compile(mainFile(define("x", ident("undeclared"))))
	if errors.Cause(err) != ErrCheckFailed {
		t.Fatalf("got error %v, want ErrCheckFailed", err)
	}
	if !strings.Contains(err.Error(), "1 error(s)") {
		t.Errorf("error %q does not carry the error count", err)
	}
	if res.Module != nil || fb.got != nil {
		t.Errorf("lowering ran after checking failed")
	}
	if diff := cmp.Diff([]string{"check"}, sectionLabels(c.Timings)); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
}

func TestInternalErrorsAreReturned(t *testing.T) {
	c, _ := newCompiler()
	mapType := ast.NewMapType(tok, nil, ident("string"), ident("int"))
	key := ast.NewBasicLit(token.New(token.String, `"k"`), token.String, `"k"`)
	files := mainFile(
		ast.NewValueDecl(tok, []*ast.Node{ident("m")}, mapType, nil, true),
		define("v", ast.NewIndexExpr(tok, ident("m"), key)),
	)
	_, err := c.Compile(files)
	if err == nil || !strings.Contains(err.Error(), "map indexing is not supported") {
		t.Fatalf("got error %v", err)
	}
}

func TestTimingsPrint(t *testing.T) {
	base := time.Unix(0, 0)
	calls := 0
	clock := func() time.Time {
		now := base.Add(time.Duration(calls) * time.Millisecond)
		calls++
		return now
	}
	tm := &Timings{now: clock}
	tm.Total = Section{Label: "Total Time", Start: clock()}
	tm.StartSection("check")
	tm.StartSection("ssa")
	tm.Record(0, 1234, "instructions")
	tm.StartSection("codegen")
	tm.Record(2048, 0, "")

	var sb strings.Builder
	tm.Print(&sb)
	want := strings.Join([]string{
		"Total Time - 7.000 ms",
		"check      - 1.000 ms",
		"ssa        - 1.000 ms (1,234 instructions)",
		"codegen    - 1.000 ms (2.0 kB)",
		"",
	}, "\n")
	if diff := cmp.Diff(want, sb.String()); diff != "" {
		t.Errorf("timings mismatch (-want +got):\n%s", diff)
	}
}
