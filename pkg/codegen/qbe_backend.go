package codegen

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/pkg/errors"
	"github.com/xplshn/odinc/pkg/config"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/ssa"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

type qbeBackend struct {
	cfg      *config.Config
	sizes    types.Sizes
	typedefs *strings.Builder
	data     *strings.Builder
	out      *strings.Builder
	aggTypes map[string]string
	zeroSize int64

	proc   *ssa.Procedure
	allocs []string
	body   *strings.Builder
	tmps   int
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// lowerError carries a lowering failure out of the generator.
type lowerError struct{ err error }

func (b *qbeBackend) failf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if b.proc != nil {
		msg = fmt.Sprintf("in `%s`: %s", b.proc.Name, msg)
	}
	panic(lowerError{errors.New("qbe: " + msg)})
}

// GenerateIR lowers m to QBE intermediate language.
func (b *qbeBackend) GenerateIR(m *ssa.Module, cfg *config.Config) (il string, err error) {
	*b = qbeBackend{
		cfg:      cfg,
		sizes:    m.Sizes,
		typedefs: &strings.Builder{},
		data:     &strings.Builder{},
		out:      &strings.Builder{},
		aggTypes: make(map[string]string),
	}
	defer func() {
		if r := recover(); r != nil {
			le, ok := r.(lowerError)
			if !ok {
				panic(r)
			}
			il, err = "", le.err
		}
	}()

	for _, g := range m.Globals {
		b.genGlobal(g)
	}
	for _, p := range m.Procs {
		if !p.IsForeign() {
			b.genProc(p)
		}
	}
	b.proc = nil
	if b.zeroSize > 0 {
		fmt.Fprintf(b.data, "data $.zero = align 16 { z %d }\n", b.zeroSize)
	}

	var sb strings.Builder
	for _, section := range []*strings.Builder{b.typedefs, b.data} {
		if section.Len() > 0 {
			sb.WriteString(section.String())
			sb.WriteString("\n")
		}
	}
	sb.WriteString(strings.TrimPrefix(b.out.String(), "\n"))
	return sb.String(), nil
}

func (b *qbeBackend) genGlobal(g *ssa.Global) {
	r := b.repr(g.Elem)
	linkage := "export "
	if g.Generated {
		linkage = ""
	}

	var items string
	c, _ := g.Init.(*ssa.Constant)
	switch {
	case c == nil || !c.Value.IsValid():
		items = fmt.Sprintf("z %d", max(r.size, 1))
	case c.Value.Kind() == exact.String:
		items = b.stringData(g.Label, c.Value.Str())
	case r.agg:
		b.failf("cannot lower the initializer of global `%s` of type `%s`", g.Label, g.Elem)
	default:
		items = r.memSuffix() + " " + b.constant(c, r)
	}
	fmt.Fprintf(b.data, "%sdata $%s = align %d { %s }\n", linkage, g.Label, r.align, items)
}

// stringData emits the bytes of s and returns the data items of a string
// header pointing at them.
func (b *qbeBackend) stringData(label, s string) string {
	fmt.Fprintf(b.data, "data $%s.bytes = { %s }\n", label, byteItems(s))
	w := b.cfg.WordType
	return fmt.Sprintf("%s $%s.bytes, %s %d", w, label, w, len(s))
}

// byteItems spells s as NUL-terminated data items. Only plain printable
// ASCII goes inside quotes.
func byteItems(s string) string {
	var items []string
	var run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			items = append(items, `b "`+run.String()+`"`)
			run.Reset()
		}
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c < 0x7f && c != '"' && c != '\\' {
			run.WriteByte(c)
			continue
		}
		flush()
		items = append(items, fmt.Sprintf("b %d", c))
	}
	flush()
	return strings.Join(append(items, "b 0"), ", ")
}

func (b *qbeBackend) constant(c *ssa.Constant, r repr) string {
	v := c.Value
	if r.agg {
		if v.IsValid() {
			b.failf("constant %s of type `%s` has no scalar form", c, c.Typ)
		}
		b.zeroSize = max(b.zeroSize, r.size)
		return "$.zero"
	}

	switch v.Kind() {
	case exact.Invalid:
		if r.float {
			return r.class + "_0"
		}
		return "0"
	case exact.Bool:
		if v.Bool() {
			return "1"
		}
		return "0"
	case exact.Float:
		return r.class + "_" + strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case exact.Integer:
		if r.float {
			f, _ := new(big.Float).SetInt(v.BigInt()).Float64()
			return r.class + "_" + strconv.FormatFloat(f, 'g', -1, 64)
		}
		if i, ok := v.Int64(); ok {
			return strconv.FormatInt(i, 10)
		}
		return strconv.FormatInt(int64(v.BigInt().Uint64()), 10)
	case exact.Pointer:
		return strconv.FormatInt(v.Pointer(), 10)
	}
	b.failf("constant %s of type `%s` has no scalar form", c, c.Typ)
	return ""
}

func (b *qbeBackend) operand(v ssa.Value) string {
	switch v := v.(type) {
	case *ssa.Constant:
		return b.constant(v, b.repr(v.Typ))
	case *ssa.Global:
		return "$" + v.Label
	case *ssa.Procedure:
		return "$" + v.Name
	case *ssa.Param:
		return fmt.Sprintf("%%p%d", v.Index)
	case *ssa.Instr:
		return fmt.Sprintf("%%t%d", v.ID)
	}
	b.failf("cannot lower operand %s", v)
	return ""
}

// abiClass is the type a value of t is passed and returned as.
func (b *qbeBackend) abiClass(t types.Type) string {
	if r := b.repr(t); !r.agg {
		return r.class
	}
	return b.abiType(t)
}

func resultType(sig *types.Proc) types.Type {
	switch sig.ResultCount() {
	case 0:
		return nil
	case 1:
		return sig.Results.At(0)
	}
	return sig.Results
}

func (b *qbeBackend) genProc(p *ssa.Procedure) {
	b.proc, b.allocs, b.tmps = p, nil, 0
	b.body = &strings.Builder{}

	var params []string
	for _, prm := range p.Params {
		params = append(params, b.abiClass(prm.Type())+" "+b.operand(prm))
	}
	ret := ""
	if rt := resultType(p.Sig); rt != nil {
		ret = " " + b.abiClass(rt)
	}

	for _, blk := range p.Blocks {
		fmt.Fprintf(b.body, "@%s\n", blk)
		for _, in := range blk.Instrs {
			b.genInstr(in)
		}
	}

	linkage := "export "
	if p.Entity == nil {
		linkage = ""
	}
	fmt.Fprintf(b.out, "\n%sfunction%s $%s(%s) {\n@start\n", linkage, ret, p.Name, strings.Join(params, ", "))
	for _, a := range b.allocs {
		fmt.Fprintf(b.out, "\t%s\n", a)
	}
	b.out.WriteString(b.body.String())
	b.out.WriteString("}\n")
}

func (b *qbeBackend) emitf(format string, args ...interface{}) {
	b.body.WriteString("\t")
	fmt.Fprintf(b.body, format, args...)
	b.body.WriteString("\n")
}

func (b *qbeBackend) newTemp() string {
	b.tmps++
	return fmt.Sprintf("%%.%d", b.tmps)
}

// alloc reserves stack memory for dst in the start block.
func (b *qbeBackend) alloc(dst string, r repr) {
	b.allocs = append(b.allocs, fmt.Sprintf("%s =%s %s %d", dst, b.cfg.WordType, allocOp(r.align), max(r.size, 1)))
}

func (b *qbeBackend) zero(addr string, r repr) {
	switch {
	case r.agg:
		w := b.cfg.WordType
		b.emitf("call $memset(%s %s, w 0, %s %d)", w, addr, w, r.size)
	case r.float:
		b.emitf("store%s %s_0, %s", r.class, r.class, addr)
	default:
		b.emitf("store%s 0, %s", r.memSuffix(), addr)
	}
}

func isZero(v ssa.Value) bool {
	c, ok := v.(*ssa.Constant)
	return ok && !c.Value.IsValid()
}

func (b *qbeBackend) genInstr(in *ssa.Instr) {
	switch in.Kind {
	case ssa.InstrLocal:
		r := b.repr(types.Deref(in.Typ))
		dst := b.operand(in)
		b.alloc(dst, r)
		if in.ZeroInit {
			b.zero(dst, r)
		}

	case ssa.InstrStore:
		r := b.repr(types.Deref(in.Addr.Type()))
		addr := b.operand(in.Addr)
		switch {
		case r.agg && isZero(in.Val):
			b.zero(addr, r)
		case r.agg:
			b.emitf("blit %s, %s, %d", b.operand(in.Val), addr, r.size)
		default:
			b.emitf("store%s %s, %s", r.memSuffix(), b.operand(in.Val), addr)
		}

	case ssa.InstrLoad:
		r := b.repr(in.Typ)
		dst := b.operand(in)
		if r.agg {
			b.alloc(dst, r)
			b.emitf("blit %s, %s, %d", b.operand(in.Addr), dst, r.size)
			return
		}
		b.emitf("%s =%s %s %s", dst, r.class, r.loadOp(), b.operand(in.Addr))

	case ssa.InstrGetElementPtr:
		b.genGEP(in)

	case ssa.InstrConvert:
		b.genConvert(in)

	case ssa.InstrBr:
		if in.Cond == nil {
			b.emitf("jmp @%s", in.True)
			return
		}
		b.emitf("jnz %s, @%s, @%s", b.operand(in.Cond), in.True, in.False)

	case ssa.InstrRet:
		if in.Val == nil {
			b.emitf("ret")
			return
		}
		b.emitf("ret %s", b.operand(in.Val))

	case ssa.InstrUnreachable:
		b.emitf("hlt")

	case ssa.InstrBinaryOp:
		b.genBinary(in)

	case ssa.InstrCall:
		var args []string
		for _, a := range in.Args {
			args = append(args, b.abiClass(a.Type())+" "+b.operand(a))
		}
		call := fmt.Sprintf("call %s(%s)", b.operand(in.Callee), strings.Join(args, ", "))
		if in.Typ == nil {
			b.emitf("%s", call)
			return
		}
		b.emitf("%s =%s %s", b.operand(in), b.abiClass(in.Typ), call)

	default:
		b.failf("unknown instruction %s", in.Text())
	}
}

// genGEP lowers address arithmetic to byte offsets from the base address.
func (b *qbeBackend) genGEP(in *ssa.Instr) {
	w := b.cfg.WordType
	dst, base := b.operand(in), b.operand(in.Addr)

	var idx ssa.Value
	var stride int64
	container := types.Deref(in.Addr.Type())
	switch len(in.Indices) {
	case 1:
		idx = in.Indices[0]
		stride = types.AlignTo(b.sizes.SizeOf(in.Elem), b.sizes.AlignOf(in.Elem))
	case 2:
		idx = in.Indices[1]
		stride = b.fieldOffset(container, 1)
		if !types.IsArray(container) && !types.IsVector(container) {
			c, ok := idx.(*ssa.Constant)
			if !ok {
				b.failf("field index %s is not constant", idx)
			}
			i64, _ := c.Value.Int64()
			i, err := safecast.Convert[int](i64)
			if err != nil {
				b.failf("field index %d: %v", i64, err)
			}
			b.offset(dst, base, b.fieldOffset(container, i))
			return
		}
	default:
		b.failf("malformed address computation %s", in.Text())
	}

	if c, ok := idx.(*ssa.Constant); ok {
		i, _ := c.Value.Int64()
		b.offset(dst, base, i*stride)
		return
	}
	scaled := b.newTemp()
	b.emitf("%s =%s mul %s, %d", scaled, w, b.wordOperand(idx), stride)
	b.emitf("%s =%s add %s, %s", dst, w, base, scaled)
}

func (b *qbeBackend) offset(dst, base string, off int64) {
	if off == 0 {
		b.emitf("%s =%s copy %s", dst, b.cfg.WordType, base)
		return
	}
	b.emitf("%s =%s add %s, %d", dst, b.cfg.WordType, base, off)
}

// wordOperand widens a 32-bit integer operand on 64-bit targets.
func (b *qbeBackend) wordOperand(v ssa.Value) string {
	s := b.operand(v)
	r := b.repr(v.Type())
	if _, ok := v.(*ssa.Constant); ok || b.cfg.WordType != "l" || r.class != "w" {
		return s
	}
	t := b.newTemp()
	op := "extuw"
	if r.signed {
		op = "extsw"
	}
	b.emitf("%s =l %s %s", t, op, s)
	return t
}

// resizeOp returns the operation moving an integer of representation from
// into to. Sub-word results are kept extended to 32 bits.
func resizeOp(from, to repr) string {
	switch {
	case to.size < 4:
		sign, width := "u", "b"
		if to.signed {
			sign = "s"
		}
		if to.size == 2 {
			width = "h"
		}
		return "ext" + sign + width
	case to.class == "l" && from.class == "w":
		if from.signed {
			return "extsw"
		}
		return "extuw"
	}
	return "copy"
}

func (b *qbeBackend) genConvert(in *ssa.Instr) {
	from, to := b.repr(in.Val.Type()), b.repr(in.Typ)
	dst, v := b.operand(in), b.operand(in.Val)

	var op string
	switch in.Conv {
	case ssa.ConvZExt, ssa.ConvSExt, ssa.ConvTrunc, ssa.ConvPtrToInt, ssa.ConvIntToPtr:
		op = resizeOp(from, to)
	case ssa.ConvFPExt:
		op = "exts"
	case ssa.ConvFPTrunc:
		op = "truncd"
	case ssa.ConvFPToSI:
		op = from.class + "tosi"
	case ssa.ConvFPToUI:
		op = from.class + "toui"
	case ssa.ConvSIToFP:
		op = "s" + from.class + "tof"
	case ssa.ConvUIToFP:
		op = "u" + from.class + "tof"
	case ssa.ConvBitCast:
		switch {
		case from.agg != to.agg:
			b.failf("cannot reinterpret `%s` as `%s`", in.Val.Type(), in.Typ)
		case from.float != to.float && !from.agg:
			op = "cast"
		case from.agg:
			op = "copy"
		default:
			op = resizeOp(from, to)
		}
	default:
		b.failf("unknown conversion %s", in.Text())
	}

	if (in.Conv == ssa.ConvFPToSI || in.Conv == ssa.ConvFPToUI) && to.size < 4 {
		t := b.newTemp()
		b.emitf("%s =w %s %s", t, op, v)
		op, v = resizeOp(repr{class: "w", size: 4}, to), t
	}
	b.emitf("%s =%s %s %s", dst, to.class, op, v)
}

var arithOps = map[token.Type]string{
	token.Plus:  "add",
	token.Minus: "sub",
	token.Star:  "mul",
	token.And:   "and",
	token.Or:    "or",
	token.Xor:   "xor",
	token.Shl:   "shl",
}

// compareOp returns the QBE comparison for op on operands of
// representation r.
func compareOp(op token.Type, r repr) (string, bool) {
	var base string
	switch op {
	case token.EqEq:
		return "ceq" + r.class, true
	case token.Neq:
		return "cne" + r.class, true
	case token.Lt:
		base = "lt"
	case token.Gt:
		base = "gt"
	case token.Lte:
		base = "le"
	case token.Gte:
		base = "ge"
	default:
		return "", false
	}
	switch {
	case r.float:
		return "c" + base + r.class, true
	case r.signed:
		return "cs" + base + r.class, true
	}
	return "cu" + base + r.class, true
}

func (b *qbeBackend) genBinary(in *ssa.Instr) {
	xr := b.repr(in.X.Type())
	if xr.agg {
		b.failf("operator `%s` on `%s` is not supported", in.Op, in.X.Type())
	}
	dst, x, y := b.operand(in), b.operand(in.X), b.operand(in.Y)
	if cmp, ok := compareOp(in.Op, xr); ok {
		b.emitf("%s =w %s %s, %s", dst, cmp, x, y)
		return
	}

	r := b.repr(in.Typ)
	res := dst
	narrow := !r.float && r.size < 4
	if narrow {
		res = b.newTemp()
	}

	switch op, ok := arithOps[in.Op]; {
	case ok:
		b.emitf("%s =%s %s %s, %s", res, r.class, op, x, y)
	case in.Op == token.Slash:
		op = "div"
		if !r.float && !r.signed {
			op = "udiv"
		}
		b.emitf("%s =%s %s %s, %s", res, r.class, op, x, y)
	case in.Op == token.Shr:
		op = "sar"
		if !r.signed {
			op = "shr"
		}
		b.emitf("%s =%s %s %s, %s", res, r.class, op, x, y)
	case r.float && (in.Op == token.Rem || in.Op == token.RemRem):
		b.failf("floating-point remainder is not supported")
	case in.Op == token.Rem || (in.Op == token.RemRem && !r.signed):
		op = "rem"
		if !r.signed {
			op = "urem"
		}
		b.emitf("%s =%s %s %s, %s", res, r.class, op, x, y)
	case in.Op == token.RemRem:
		// Floored modulo: ((x % y) + y) % y.
		t1, t2 := b.newTemp(), b.newTemp()
		b.emitf("%s =%s rem %s, %s", t1, r.class, x, y)
		b.emitf("%s =%s add %s, %s", t2, r.class, t1, y)
		b.emitf("%s =%s rem %s, %s", res, r.class, t2, y)
	default:
		b.failf("unknown operator `%s`", in.Op)
	}

	if narrow {
		b.emitf("%s =w %s %s", dst, resizeOp(repr{class: "w", size: 4}, r), res)
	}
}
