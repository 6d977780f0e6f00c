// Package compiler drives a compilation from checked files to assembly.
package compiler

import (
	"bytes"
	"runtime"

	"github.com/pkg/errors"
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/checker"
	"github.com/xplshn/odinc/pkg/codegen"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/ssa"
	"github.com/xplshn/odinc/pkg/util"
)

// ErrCheckFailed is returned when checking reported errors. Code is never
// generated in that case.
var ErrCheckFailed = errors.New("checking failed")

type Compiler struct {
	Config  *config.Config
	Diag    *util.Diagnostics
	Backend codegen.Backend
	Timings *Timings
}

// Result holds what each phase produced.
type Result struct {
	Info   *checker.Info
	Module *ssa.Module
	Asm    *bytes.Buffer
}

// New returns a compiler for cfg, targeting the host when no QBE target was
// chosen.
func New(cfg *config.Config, diag *util.Diagnostics) *Compiler {
	if cfg.QbeTarget == "" {
		cfg.SetTarget(runtime.GOOS, runtime.GOARCH, "")
	}
	return &Compiler{
		Config:  cfg,
		Diag:    diag,
		Backend: codegen.NewQBEBackend(),
		Timings: NewTimings("Total Time"),
	}
}

// Check type checks files and applies the error gate.
func (c *Compiler) Check(files []*ast.File) (info *checker.Info, err error) {
	defer recoverInternal(&err)
	c.Timings.StartSection("check")
	info = checker.New(c.Config, c.Diag).CheckFiles(files)
	c.Config.Infof("checked %d file(s): %d error(s), %d warning(s)", len(files), c.Diag.ErrorCount(), c.Diag.WarningCount())
	if n := c.Diag.ErrorCount(); n != 0 {
		return info, errors.Wrapf(ErrCheckFailed, "%d error(s)", n)
	}
	return info, nil
}

// Lower builds the SSA module for a checked program.
func (c *Compiler) Lower(info *checker.Info) (m *ssa.Module, err error) {
	defer recoverInternal(&err)
	c.Timings.StartSection("ssa")
	m = ssa.NewModule(info, c.Config.Sizes())
	m.Build()

	var instrs int64
	for _, p := range m.Procs {
		for _, b := range p.Blocks {
			instrs += int64(len(b.Instrs))
		}
	}
	c.Timings.Record(0, instrs, "instructions")
	c.Config.Infof("built %d procedure(s), %d global(s)", len(m.Procs), len(m.Globals))
	return m, nil
}

// Compile runs every phase over files. The result holds the output of each
// phase that completed.
func (c *Compiler) Compile(files []*ast.File) (*Result, error) {
	res := &Result{}
	defer func() {
		if c.Config.Verbose && c.Config.Log != nil {
			c.Timings.Print(c.Config.Log)
		}
	}()

	var err error
	if res.Info, err = c.Check(files); err != nil {
		return res, err
	}
	if res.Module, err = c.Lower(res.Info); err != nil {
		return res, err
	}

	c.Timings.StartSection("codegen")
	res.Asm, err = c.Backend.Generate(res.Module, c.Config)
	if err != nil {
		return res, errors.Wrap(err, "code generation failed")
	}
	c.Timings.Record(int64(res.Asm.Len()), 0, "")
	return res, nil
}

// Compile checks, lowers and assembles files with a fresh compiler.
func Compile(files []*ast.File, cfg *config.Config) (*Result, *util.Diagnostics, error) {
	diag := util.NewDiagnostics(cfg)
	res, err := New(cfg, diag).Compile(files)
	return res, diag, err
}

// recoverInternal turns an internal compiler error raised by util.Fatalf
// into a returned error. Runtime faults keep panicking.
func recoverInternal(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok {
		if _, isRuntime := e.(runtime.Error); !isRuntime {
			*err = e
			return
		}
	}
	panic(r)
}
