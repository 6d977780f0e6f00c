package token

import "fmt"

type Type int

const (
	EOF Type = iota
	Invalid
	Comment

	// Literals
	Ident
	Integer
	Float
	Imag
	Rune
	String

	// Operators
	Eq
	Not
	Hash
	Caret
	Question
	Plus
	Minus
	Star
	Slash
	Rem
	RemRem
	And
	Or
	Xor
	AndNot
	Shl
	Shr
	AndAnd
	OrOr

	PlusEq
	MinusEq
	StarEq
	SlashEq
	RemEq
	RemRemEq
	AndEq
	OrEq
	XorEq
	AndNotEq
	ShlEq
	ShrEq

	Inc
	Dec

	EqEq
	Neq
	Lt
	Gt
	Lte
	Gte

	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Colon
	Semi
	Dot
	Comma
	Dots
	HalfOpen

	// Keywords
	When
	If
	Else
	For
	Return
	Break
	Continue
	Fallthrough
	Defer
	Using
	Proc
	Struct
	Union
	RawUnion
	Enum
	Map
	Vector
	Dynamic
	Cast
	Transmute
	Context
)

var KeywordMap = map[string]Type{
	"when":        When,
	"if":          If,
	"else":        Else,
	"for":         For,
	"return":      Return,
	"break":       Break,
	"continue":    Continue,
	"fallthrough": Fallthrough,
	"defer":       Defer,
	"using":       Using,
	"proc":        Proc,
	"struct":      Struct,
	"union":       Union,
	"raw_union":   RawUnion,
	"enum":        Enum,
	"map":         Map,
	"vector":      Vector,
	"dynamic":     Dynamic,
	"cast":        Cast,
	"transmute":   Transmute,
	"context":     Context,
}

var operatorStrings = map[Type]string{
	Eq: "=", Not: "!", Hash: "#", Caret: "^", Question: "?",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Rem: "%", RemRem: "%%",
	And: "&", Or: "|", Xor: "~", AndNot: "&~", Shl: "<<", Shr: ">>",
	AndAnd: "&&", OrOr: "||",
	PlusEq: "+=", MinusEq: "-=", StarEq: "*=", SlashEq: "/=", RemEq: "%=", RemRemEq: "%%=",
	AndEq: "&=", OrEq: "|=", XorEq: "~=", AndNotEq: "&~=", ShlEq: "<<=", ShrEq: ">>=",
	Inc: "++", Dec: "--",
	EqEq: "==", Neq: "!=", Lt: "<", Gt: ">", Lte: "<=", Gte: ">=",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Colon: ":", Semi: ";", Dot: ".", Comma: ",", Dots: "..", HalfOpen: "..<",
}

// Reverse mapping from Type to the keyword string
var TypeStrings = make(map[Type]string)

func init() {
	for str, typ := range KeywordMap {
		TypeStrings[typ] = str
	}
	for typ, str := range operatorStrings {
		TypeStrings[typ] = str
	}
}

func (t Type) String() string {
	if s, ok := TypeStrings[t]; ok {
		return s
	}
	switch t {
	case EOF: return "EOF"
	case Ident: return "identifier"
	case Integer: return "integer"
	case Float: return "float"
	case Imag: return "imaginary"
	case Rune: return "rune"
	case String: return "string"
	}
	return fmt.Sprintf("token(%d)", int(t))
}

// IsAssignOp reports whether t is one of the `op=` assignment operators.
func (t Type) IsAssignOp() bool { return t >= PlusEq && t <= ShrEq }

// IsComparison reports whether t is an equality or ordering operator.
func (t Type) IsComparison() bool { return t >= EqEq && t <= Gte }

// IsShift reports whether t is a shift operator.
func (t Type) IsShift() bool { return t == Shl || t == Shr }

// BinaryOf maps an `op=` operator to the binary operator it applies.
func BinaryOf(t Type) Type {
	switch t {
	case PlusEq: return Plus
	case MinusEq: return Minus
	case StarEq: return Star
	case SlashEq: return Slash
	case RemEq: return Rem
	case RemRemEq: return RemRem
	case AndEq: return And
	case OrEq: return Or
	case XorEq: return Xor
	case AndNotEq: return AndNot
	case ShlEq: return Shl
	case ShrEq: return Shr
	}
	return Invalid
}

type Token struct {
	Type      Type
	Value     string
	FileIndex int
	Line      int
	Column    int
	Len       int
}

// New builds a token at line 0, which diagnostics render without a source excerpt.
func New(typ Type, value string) Token {
	return Token{Type: typ, Value: value, Len: len(value)}
}

// At returns a copy of the token positioned at line:col of file.
func (t Token) At(file, line, col int) Token {
	t.FileIndex, t.Line, t.Column = file, line, col
	return t
}

func (t Token) Pos() string { return fmt.Sprintf("%d:%d", t.Line, t.Column) }
