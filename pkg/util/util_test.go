package util

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/token"
)

func TestDiagnosticsGate(t *testing.T) {
	cfg := config.NewConfig()
	d := NewDiagnostics(cfg)
	tok := token.New(token.Ident, "x").At(0, 2, 5)

	d.Warnf(config.WarnAlignClamp, tok, "clamped")
	if d.ErrorCount() != 0 {
		t.Fatalf("warnings must not trip the error gate")
	}
	d.Errorf(tok, "Undeclared name: %s", "x")
	d.Errorf(tok, "second")

	if got := d.ErrorCount(); got != 2 {
		t.Errorf("ErrorCount() = %d, want 2", got)
	}
	if diff := cmp.Diff([]string{"Undeclared name: x", "second"}, d.Errors()); diff != "" {
		t.Errorf("Errors() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"clamped"}, d.Warnings()); diff != "" {
		t.Errorf("Warnings() mismatch (-want +got):\n%s", diff)
	}
}

func TestDisabledWarningDropped(t *testing.T) {
	cfg := config.NewConfig()
	cfg.ApplyFlags([]string{"-Wno-align-clamp"})
	d := NewDiagnostics(cfg)
	d.Warnf(config.WarnAlignClamp, token.Token{}, "clamped")
	if len(d.List()) != 0 {
		t.Errorf("disabled warning was recorded: %v", d.List())
	}
}

func TestPrintWithCaretAndNotes(t *testing.T) {
	d := NewDiagnostics(config.NewConfig())
	d.SetSourceFiles([]SourceFileRecord{{Name: "main.odin", Content: []rune("x := 1\ny := z\n")}})
	tok := token.Token{Type: token.Ident, Value: "z", FileIndex: 0, Line: 2, Column: 6, Len: 1}
	d.Errorf(tok, "Undeclared name: z")
	d.Notef("f :: proc(x: int) at main.odin(1:1)")

	var buf bytes.Buffer
	d.Print(&buf)
	want := strings.Join([]string{
		"main.odin:2:6: error: Undeclared name: z",
		"  y := z",
		"       ^",
		"  f :: proc(x: int) at main.odin(1:1)",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("Print mismatch (-want +got):\n%s", diff)
	}
}

func TestFatalfPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("Fatalf did not panic")
		}
		if err, ok := r.(error); !ok || !strings.Contains(err.Error(), "internal compiler error") {
			t.Errorf("unexpected panic value %v", r)
		}
	}()
	Fatalf(token.Token{}, "unreachable")
}
