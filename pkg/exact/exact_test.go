package exact

import (
	"math/big"
	"testing"

	"github.com/xplshn/odinc/pkg/token"
)

func TestFromLiteral(t *testing.T) {
	tests := []struct {
		kind token.Type
		lit  string
		want string
	}{
		{token.Integer, "42", "42"},
		{token.Integer, "0x_ff", "255"},
		{token.Integer, "0b1010", "10"},
		{token.Integer, "1_000_000", "1000000"},
		{token.Float, "2.5", "2.5"},
		{token.Rune, "'a'", "97"},
		{token.Rune, `'\n'`, "10"},
		{token.String, `"hi\n"`, `"hi\n"`},
	}
	for _, tt := range tests {
		t.Run(tt.lit, func(t *testing.T) {
			if got := FromLiteral(tt.kind, tt.lit).String(); got != tt.want {
				t.Errorf("FromLiteral(%q) = %s, want %s", tt.lit, got, tt.want)
			}
		})
	}
}

func TestIntegerArithmetic(t *testing.T) {
	seven, two, minusSeven := MakeInt64(7), MakeInt64(2), MakeInt64(-7)
	tests := []struct {
		name string
		got  Value
		want int64
	}{
		{"add", BinaryOp(token.Plus, seven, two), 9},
		{"quo truncates", BinaryOp(token.Slash, seven, two), 3},
		{"rem", BinaryOp(token.Rem, minusSeven, two), -1},
		{"floored mod", BinaryOp(token.RemRem, minusSeven, two), 1},
		{"and not", BinaryOp(token.AndNot, MakeInt64(0xf), MakeInt64(0x3)), 0xc},
		{"shl", BinaryOp(token.Shl, MakeInt64(1), MakeInt64(10)), 1024},
		{"shr", BinaryOp(token.Shr, MakeInt64(-8), MakeInt64(1)), -4},
		{"neg", UnaryOp(token.Minus, seven, 0, false), -7},
		{"not u8", UnaryOp(token.Xor, MakeInt64(0), 8, true), 255},
		{"not signed", UnaryOp(token.Xor, MakeInt64(0), 32, false), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.got.Int64()
			if !ok || got != tt.want {
				t.Errorf("got %v, want %d", tt.got, tt.want)
			}
		})
	}
}

func TestDivisionByZeroIsInvalid(t *testing.T) {
	if v := BinaryOp(token.Slash, MakeInt64(1), MakeInt64(0)); v.IsValid() {
		t.Errorf("integer division by zero folded to %v", v)
	}
}

func TestWrapTo128Bits(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	v := BinaryOp(token.Plus, MakeBigInt(max), MakeInt64(1))
	want := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	if v.BigInt().Cmp(want) != 0 {
		t.Errorf("max+1 = %s, want %s", v.BigInt(), want)
	}
}

func TestMatchAndCompare(t *testing.T) {
	x, y := Match(MakeInt64(3), MakeFloat(2.5))
	if x.Kind() != Float || y.Kind() != Float {
		t.Fatalf("Match kinds = %v, %v", x.Kind(), y.Kind())
	}
	if !Compare(token.Gt, MakeInt64(3), MakeFloat(2.5)) {
		t.Error("3 > 2.5 should hold")
	}
	if !Compare(token.Lt, MakeString("a"), MakeString("b")) {
		t.Error(`"a" < "b" should hold`)
	}
	if Compare(token.EqEq, MakeBool(true), MakeBool(false)) {
		t.Error("true == false should not hold")
	}
}

func TestConversions(t *testing.T) {
	if v := ToInteger(MakeFloat(2.5)); v.IsValid() {
		t.Errorf("ToInteger(2.5) = %v, want invalid", v)
	}
	if v, _ := ToInteger(MakeFloat(4)).Int64(); v != 4 {
		t.Errorf("ToInteger(4.0) = %d", v)
	}
	if v := ToFloat(MakeComplex(complex(1, 1))); v.IsValid() {
		t.Errorf("ToFloat(1+1i) = %v, want invalid", v)
	}
	if v := Abs(MakeComplex(complex(3, 4))); v.Float64() != 5 {
		t.Errorf("Abs(3+4i) = %v", v)
	}
}
