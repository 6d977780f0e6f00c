package ssa

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/checker"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
	"github.com/xplshn/odinc/pkg/util"
)

// Runtime procedures the builder calls into.
const (
	RuntimePanic = "__odin_panic"
)

// Module is the lowered form of a whole program.
type Module struct {
	Info    *checker.Info
	Sizes   types.Sizes
	Globals []*Global
	Procs   []*Procedure

	values   map[*types.Entity]Value
	procLits map[*ast.Node]*Procedure
	runtime  map[string]*Procedure
	strings  map[uint64][]*Global
	strCount int
	context  *Global
}

func NewModule(info *checker.Info, sizes types.Sizes) *Module {
	return &Module{
		Info:     info,
		Sizes:    sizes,
		values:   make(map[*types.Entity]Value),
		procLits: make(map[*ast.Node]*Procedure),
		runtime:  make(map[string]*Procedure),
		strings:  make(map[uint64][]*Global),
	}
}

// Build lowers every global and procedure the checker produced. The
// checker must have finished without errors.
func (m *Module) Build() {
	for _, gv := range m.Info.Globals {
		for i, e := range gv.Entities {
			g := &Global{Entity: e, Label: e.Name, Elem: e.Type}
			if i < len(gv.Values) {
				g.Init = m.globalInit(gv.Values[i], e)
			}
			m.Globals = append(m.Globals, g)
			m.values[e] = g
		}
	}

	for _, pb := range m.Info.Procs {
		p := newProcedure(m, pb)
		m.Procs = append(m.Procs, p)
		if pb.Entity != nil {
			m.values[pb.Entity] = p
		} else if pb.Lit != nil {
			m.procLits[pb.Lit] = p
		}
	}

	// Runtime procedures are appended while building, so iterate by index.
	for i := 0; i < len(m.Procs); i++ {
		p := m.Procs[i]
		if p.Body != nil {
			p.build()
		}
		p.number()
	}
}

func (m *Module) globalInit(n *ast.Node, e *types.Entity) Value {
	tv, ok := m.Info.Types[n]
	if !ok || tv.Mode != checker.ModeConstant {
		fatalf(n.Tok, "global `%s` has a non-constant initializer", e.Name)
	}
	return &Constant{Typ: e.Type, Value: convertConstant(tv.Value, e.Type)}
}

// Lookup returns the global or procedure declared by e.
func (m *Module) Lookup(e *types.Entity) Value { return m.values[e] }

// Proc returns the procedure called name, or nil.
func (m *Module) Proc(name string) *Procedure {
	for _, p := range m.Procs {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// stringGlobal returns the synthesized global holding s, creating it on
// first use.
func (m *Module) stringGlobal(s string) *Global {
	h := xxhash.Sum64String(s)
	for _, g := range m.strings[h] {
		if g.Init.(*Constant).Value.Str() == s {
			return g
		}
	}
	str := types.Typ[types.String]
	g := &Global{
		Label:     fmt.Sprintf(".str%d", m.strCount),
		Elem:      str,
		Init:      &Constant{Typ: str, Value: exact.MakeString(s)},
		Generated: true,
	}
	m.strCount++
	m.strings[h] = append(m.strings[h], g)
	m.Globals = append(m.Globals, g)
	return g
}

// contextGlobal holds the implicit `context` value.
func (m *Module) contextGlobal() *Global {
	if m.context == nil {
		m.context = &Global{Label: "__context", Elem: types.Context, Generated: true}
		m.Globals = append(m.Globals, m.context)
	}
	return m.context
}

// runtimeProc declares an external procedure provided by the runtime.
func (m *Module) runtimeProc(name string, params ...types.Type) *Procedure {
	if p, ok := m.runtime[name]; ok {
		return p
	}
	vars := make([]*types.Entity, len(params))
	for i, t := range params {
		vars[i] = types.NewParam(fmt.Sprintf("p%d", i), t)
	}
	sig := &types.Proc{Params: types.NewTuple(vars...), Results: types.NewTuple(), CC: ast.CCC}
	p := &Procedure{Module: m, Name: name, Sig: sig, Tags: ast.ProcForeign}
	for i, v := range vars {
		p.Params = append(p.Params, &Param{Entity: v, Parent: p, Index: i})
	}
	m.runtime[name] = p
	m.Procs = append(m.Procs, p)
	return p
}

// convertConstant adjusts an untyped constant to the representation t
// expects.
func convertConstant(v exact.Value, t types.Type) exact.Value {
	switch {
	case !v.IsValid():
		return v
	case types.IsFloat(t):
		return exact.ToFloat(v)
	case types.IsComplex(t):
		return exact.ToComplex(v)
	case types.IsInteger(t):
		if v.Kind() == exact.Float {
			return exact.ToInteger(v)
		}
	}
	return v
}

func fatalf(tok token.Token, format string, args ...interface{}) {
	util.Fatalf(tok, "ssa: "+format, args...)
}
