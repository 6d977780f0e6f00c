package ssa

import (
	"fmt"
	"io"
	"strings"
)

// String renders the whole module as text.
func (m *Module) String() string {
	var sb strings.Builder
	m.WriteTo(&sb)
	return sb.String()
}

func (m *Module) WriteTo(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	for _, g := range m.Globals {
		fmt.Fprintf(cw, "global %s %s", g, g.Elem)
		if g.Init != nil {
			fmt.Fprintf(cw, " = %s", g.Init)
		}
		fmt.Fprintln(cw)
	}
	for _, p := range m.Procs {
		fmt.Fprintln(cw)
		p.write(cw)
	}
	return cw.n, cw.err
}

// Dump renders a single procedure.
func (p *Procedure) Dump() string {
	var sb strings.Builder
	p.write(&sb)
	return sb.String()
}

func (p *Procedure) write(w io.Writer) {
	var params []string
	for _, prm := range p.Params {
		params = append(params, fmt.Sprintf("%s: %s", prm, prm.Entity.Type))
	}
	sig := fmt.Sprintf("proc %s(%s)", p, strings.Join(params, ", "))
	if p.Sig != nil && p.Sig.ResultCount() > 0 {
		sig += " -> " + p.Sig.Results.String()
	}
	if p.IsForeign() {
		fmt.Fprintf(w, "foreign %s\n", sig)
		return
	}

	fmt.Fprintf(w, "%s {\n", sig)
	for _, b := range p.Blocks {
		fmt.Fprintf(w, "%s:\n", b)
		for _, in := range b.Instrs {
			fmt.Fprintf(w, "\t%s\n", in.Text())
		}
	}
	fmt.Fprintln(w, "}")
}

type countWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countWriter) Write(b []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(b)
	c.n += int64(n)
	c.err = err
	return n, err
}
