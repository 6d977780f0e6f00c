// Package exact implements the compile-time constant values of the checker:
// booleans, strings, 128-bit integers, floats, complex numbers, pointers and
// references to constant compound literals.
package exact

import (
	"fmt"
	"math"
	"math/big"
	"math/cmplx"
	"strconv"
	"strings"

	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/token"
	"modernc.org/mathutil"
)

type Kind int

const (
	Invalid Kind = iota
	Bool
	String
	Integer
	Float
	Complex
	Pointer
	Compound
)

func (k Kind) String() string {
	switch k {
	case Bool: return "bool"
	case String: return "string"
	case Integer: return "integer"
	case Float: return "float"
	case Complex: return "complex"
	case Pointer: return "pointer"
	case Compound: return "compound"
	}
	return "invalid"
}

// Value is an immutable constant. The kind selects the valid payload.
type Value struct {
	kind Kind
	b    bool
	s    string
	i    mathutil.Int128
	f    float64
	c    complex128
	p    int64
	node *ast.Node
}

var (
	two128    = new(big.Int).Lsh(big.NewInt(1), 128)
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

func MakeBool(b bool) Value          { return Value{kind: Bool, b: b} }
func MakeString(s string) Value      { return Value{kind: String, s: s} }
func MakeFloat(f float64) Value      { return Value{kind: Float, f: f} }
func MakeComplex(c complex128) Value { return Value{kind: Complex, c: c} }
func MakePointer(p int64) Value      { return Value{kind: Pointer, p: p} }
func MakeCompound(n *ast.Node) Value { return Value{kind: Compound, node: n} }

func MakeInt64(i int64) Value {
	return MakeBigInt(big.NewInt(i))
}

func MakeUint64(u uint64) Value { return MakeBigInt(new(big.Int).SetUint64(u)) }

// MakeBigInt wraps b to 128 bits, two's complement.
func MakeBigInt(b *big.Int) Value {
	w := new(big.Int).Set(b)
	if w.Sign() < 0 || w.Cmp(maxInt128) > 0 {
		w.Mod(w, two128)
		if w.Cmp(maxInt128) > 0 {
			w.Sub(w, two128)
		}
	}
	i, err := new(mathutil.Int128).SetBigInt(w)
	if err != nil {
		return Value{}
	}
	return Value{kind: Integer, i: i}
}

func (v Value) Kind() Kind         { return v.kind }
func (v Value) IsValid() bool      { return v.kind != Invalid }
func (v Value) Bool() bool         { return v.b }
func (v Value) Str() string        { return v.s }
func (v Value) Float64() float64   { return v.f }
func (v Value) Complex() complex128 { return v.c }
func (v Value) Pointer() int64     { return v.p }
func (v Value) Node() *ast.Node    { return v.node }
func (v Value) Int128() mathutil.Int128 { return v.i }
func (v Value) BigInt() *big.Int   { return v.i.BigInt() }

// Int64 returns the integer payload and whether it fits in an int64.
func (v Value) Int64() (int64, bool) {
	if v.kind != Integer {
		return 0, false
	}
	b := v.BigInt()
	return b.Int64(), b.IsInt64()
}

// Sign returns -1, 0 or +1 for numeric values.
func (v Value) Sign() int {
	switch v.kind {
	case Integer:
		return v.BigInt().Sign()
	case Float:
		switch {
		case v.f < 0: return -1
		case v.f > 0: return 1
		}
	case Pointer:
		switch {
		case v.p < 0: return -1
		case v.p > 0: return 1
		}
	}
	return 0
}

// IsZero reports whether a numeric value equals zero.
func (v Value) IsZero() bool {
	switch v.kind {
	case Integer: return v.BigInt().Sign() == 0
	case Float: return v.f == 0
	case Complex: return v.c == 0
	case Pointer: return v.p == 0
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case Bool:
		return strconv.FormatBool(v.b)
	case String:
		return strconv.Quote(v.s)
	case Integer:
		return v.BigInt().String()
	case Float:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Complex:
		return fmt.Sprintf("%gi", v.c)
	case Pointer:
		return fmt.Sprintf("0x%x", v.p)
	case Compound:
		return ast.ExprString(v.node)
	}
	return "invalid"
}

// FromLiteral parses the text of a basic literal token.
func FromLiteral(kind token.Type, lit string) Value {
	switch kind {
	case token.Integer:
		b, ok := new(big.Int).SetString(strings.ReplaceAll(lit, "_", ""), 0)
		if !ok {
			return Value{}
		}
		return MakeBigInt(b)
	case token.Float:
		f, err := strconv.ParseFloat(strings.ReplaceAll(lit, "_", ""), 64)
		if err != nil {
			return Value{}
		}
		return MakeFloat(f)
	case token.Imag:
		s := strings.TrimSuffix(strings.ReplaceAll(lit, "_", ""), "i")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}
		}
		return MakeComplex(complex(0, f))
	case token.Rune:
		r, _, tail, err := strconv.UnquoteChar(strings.TrimSuffix(strings.TrimPrefix(lit, "'"), "'"), '\'')
		if err != nil || tail != "" {
			return Value{}
		}
		return MakeInt64(int64(r))
	case token.String:
		if s, err := strconv.Unquote(lit); err == nil {
			return MakeString(s)
		}
		return MakeString(lit)
	}
	return Value{}
}

// ToInteger converts v to an integer value or returns Invalid.
func ToInteger(v Value) Value {
	switch v.kind {
	case Integer:
		return v
	case Float:
		if math.IsInf(v.f, 0) || math.IsNaN(v.f) || v.f != math.Trunc(v.f) {
			return Value{}
		}
		b, _ := big.NewFloat(v.f).Int(nil)
		return MakeBigInt(b)
	case Complex:
		if imag(v.c) != 0 {
			return Value{}
		}
		return ToInteger(MakeFloat(real(v.c)))
	case Pointer:
		return MakeInt64(v.p)
	}
	return Value{}
}

// ToFloat converts v to a float value or returns Invalid.
func ToFloat(v Value) Value {
	switch v.kind {
	case Integer:
		f, _ := new(big.Float).SetInt(v.BigInt()).Float64()
		return MakeFloat(f)
	case Float:
		return v
	case Complex:
		if imag(v.c) != 0 {
			return Value{}
		}
		return MakeFloat(real(v.c))
	}
	return Value{}
}

// ToComplex converts v to a complex value or returns Invalid.
func ToComplex(v Value) Value {
	switch v.kind {
	case Integer, Float:
		f := ToFloat(v)
		return MakeComplex(complex(f.f, 0))
	case Complex:
		return v
	}
	return Value{}
}

func Real(v Value) Value {
	switch v.kind {
	case Integer, Float:
		return v
	case Complex:
		return MakeFloat(real(v.c))
	}
	return Value{}
}

func Imag(v Value) Value {
	switch v.kind {
	case Integer, Float:
		return MakeInt64(0)
	case Complex:
		return MakeFloat(imag(v.c))
	}
	return Value{}
}

// Abs returns |v|; the magnitude for complex values.
func Abs(v Value) Value {
	switch v.kind {
	case Integer:
		return MakeBigInt(new(big.Int).Abs(v.BigInt()))
	case Float:
		return MakeFloat(math.Abs(v.f))
	case Complex:
		return MakeFloat(cmplx.Abs(v.c))
	}
	return Value{}
}

// Match promotes the lower-ranked of two numeric values so both share a kind.
func Match(x, y Value) (Value, Value) {
	if x.kind == y.kind {
		return x, y
	}
	switch x.kind {
	case Integer:
		switch y.kind {
		case Float: return ToFloat(x), y
		case Complex: return ToComplex(x), y
		}
	case Float:
		switch y.kind {
		case Integer: return x, ToFloat(y)
		case Complex: return ToComplex(x), y
		}
	case Complex:
		switch y.kind {
		case Integer, Float: return x, ToComplex(y)
		}
	}
	return x, y
}

// UnaryOp applies op to v. precision is the bit size of the operand's type,
// 0 for untyped; unsigned selects the mask applied to `~`.
func UnaryOp(op token.Type, v Value, precision int, unsigned bool) Value {
	switch op {
	case token.Plus:
		switch v.kind {
		case Integer, Float, Complex: return v
		}
	case token.Minus:
		switch v.kind {
		case Integer: return MakeBigInt(new(big.Int).Neg(v.BigInt()))
		case Float: return MakeFloat(-v.f)
		case Complex: return MakeComplex(-v.c)
		}
	case token.Xor:
		if v.kind != Integer {
			break
		}
		r := new(big.Int).Not(v.BigInt())
		if unsigned && precision > 0 {
			mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(precision)), big.NewInt(1))
			r.And(r, mask)
		}
		return MakeBigInt(r)
	case token.Not:
		if v.kind == Bool {
			return MakeBool(!v.b)
		}
	}
	return Value{}
}

// BinaryOp folds x op y. Integer division truncates; `%%` is the floored modulo.
func BinaryOp(op token.Type, x, y Value) Value {
	x, y = Match(x, y)
	if x.kind != y.kind {
		return Value{}
	}
	switch x.kind {
	case Bool:
		switch op {
		case token.AndAnd: return MakeBool(x.b && y.b)
		case token.OrOr: return MakeBool(x.b || y.b)
		case token.And: return MakeBool(x.b && y.b)
		case token.Or: return MakeBool(x.b || y.b)
		}
	case Integer:
		a, b := x.BigInt(), y.BigInt()
		r := new(big.Int)
		switch op {
		case token.Plus: r.Add(a, b)
		case token.Minus: r.Sub(a, b)
		case token.Star: r.Mul(a, b)
		case token.Slash:
			if b.Sign() == 0 {
				return Value{}
			}
			r.Quo(a, b)
		case token.Rem:
			if b.Sign() == 0 {
				return Value{}
			}
			r.Rem(a, b)
		case token.RemRem:
			if b.Sign() == 0 {
				return Value{}
			}
			r.Rem(a, b)
			if r.Sign() != 0 && r.Sign() != b.Sign() {
				r.Add(r, b)
			}
		case token.And: r.And(a, b)
		case token.Or: r.Or(a, b)
		case token.Xor: r.Xor(a, b)
		case token.AndNot: r.AndNot(a, b)
		case token.Shl:
			if b.Sign() < 0 || b.Cmp(big.NewInt(128)) > 0 {
				return Value{}
			}
			r.Lsh(a, uint(b.Uint64()))
		case token.Shr:
			if b.Sign() < 0 || b.Cmp(big.NewInt(128)) > 0 {
				return Value{}
			}
			r.Rsh(a, uint(b.Uint64()))
		default:
			return Value{}
		}
		return MakeBigInt(r)
	case Float:
		switch op {
		case token.Plus: return MakeFloat(x.f + y.f)
		case token.Minus: return MakeFloat(x.f - y.f)
		case token.Star: return MakeFloat(x.f * y.f)
		case token.Slash: return MakeFloat(x.f / y.f)
		}
	case Complex:
		switch op {
		case token.Plus: return MakeComplex(x.c + y.c)
		case token.Minus: return MakeComplex(x.c - y.c)
		case token.Star: return MakeComplex(x.c * y.c)
		case token.Slash: return MakeComplex(x.c / y.c)
		}
	case String:
		if op == token.Plus {
			return MakeString(x.s + y.s)
		}
	case Pointer:
		switch op {
		case token.Plus: return MakePointer(x.p + y.p)
		case token.Minus: return MakePointer(x.p - y.p)
		}
	}
	return Value{}
}

func cmpOrdered(op token.Type, c int) bool {
	switch op {
	case token.EqEq: return c == 0
	case token.Neq: return c != 0
	case token.Lt: return c < 0
	case token.Lte: return c <= 0
	case token.Gt: return c > 0
	case token.Gte: return c >= 0
	}
	return false
}

// Compare evaluates the comparison x op y.
func Compare(op token.Type, x, y Value) bool {
	x, y = Match(x, y)
	if x.kind != y.kind {
		return false
	}
	switch x.kind {
	case Bool:
		switch op {
		case token.EqEq: return x.b == y.b
		case token.Neq: return x.b != y.b
		}
	case String:
		return cmpOrdered(op, strings.Compare(x.s, y.s))
	case Integer:
		return cmpOrdered(op, x.BigInt().Cmp(y.BigInt()))
	case Float:
		switch op {
		case token.EqEq: return x.f == y.f
		case token.Neq: return x.f != y.f
		case token.Lt: return x.f < y.f
		case token.Lte: return x.f <= y.f
		case token.Gt: return x.f > y.f
		case token.Gte: return x.f >= y.f
		}
	case Complex:
		switch op {
		case token.EqEq: return x.c == y.c
		case token.Neq: return x.c != y.c
		}
	case Pointer:
		switch {
		case x.p < y.p: return cmpOrdered(op, -1)
		case x.p > y.p: return cmpOrdered(op, 1)
		}
		return cmpOrdered(op, 0)
	}
	return false
}
