// Package ssa lowers checked procedures into a control-flow graph of basic
// blocks and instructions. Locals and globals are addresses; their contents
// are read with Load and written with Store.
package ssa

import (
	"fmt"
	"strings"

	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
	"github.com/xplshn/odinc/pkg/types"
)

// Value is anything an instruction can use as an operand.
type Value interface {
	Type() types.Type
	String() string
}

// Constant is a compile-time value. A Constant without a valid Value is the
// zero value of its type.
type Constant struct {
	Typ   types.Type
	Value exact.Value
}

// TypeName is a type used as an operand.
type TypeName struct {
	Entity *types.Entity
}

// Global is module-level storage. As a value it is the address of that
// storage.
type Global struct {
	Entity    *types.Entity // nil for synthesized globals
	Label     string
	Elem      types.Type
	Init      Value // nil for zero initialization
	Generated bool
}

// Param is an incoming argument of a procedure.
type Param struct {
	Entity *types.Entity
	Parent *Procedure
	Index  int
}

type InstrKind int

const (
	InstrLocal InstrKind = iota
	InstrStore
	InstrLoad
	InstrGetElementPtr
	InstrConvert
	InstrBr
	InstrRet
	InstrUnreachable
	InstrBinaryOp
	InstrCall
)

var instrNames = [...]string{
	InstrLocal:         "local",
	InstrStore:         "store",
	InstrLoad:          "load",
	InstrGetElementPtr: "getelementptr",
	InstrConvert:       "convert",
	InstrBr:            "br",
	InstrRet:           "ret",
	InstrUnreachable:   "unreachable",
	InstrBinaryOp:      "binop",
	InstrCall:          "call",
}

func (k InstrKind) String() string { return instrNames[k] }

type ConvKind int

const (
	ConvInvalid ConvKind = iota
	ConvZExt
	ConvSExt
	ConvTrunc
	ConvFPExt
	ConvFPTrunc
	ConvFPToUI
	ConvFPToSI
	ConvUIToFP
	ConvSIToFP
	ConvPtrToInt
	ConvIntToPtr
	ConvBitCast
)

var convNames = [...]string{
	ConvInvalid:  "invalid",
	ConvZExt:     "zext",
	ConvSExt:     "sext",
	ConvTrunc:    "trunc",
	ConvFPExt:    "fpext",
	ConvFPTrunc:  "fptrunc",
	ConvFPToUI:   "fptoui",
	ConvFPToSI:   "fptosi",
	ConvUIToFP:   "uitofp",
	ConvSIToFP:   "sitofp",
	ConvPtrToInt: "ptrtoint",
	ConvIntToPtr: "inttoptr",
	ConvBitCast:  "bitcast",
}

func (k ConvKind) String() string { return convNames[k] }

// Instr is a single operation. Only the fields of its Kind are set:
//
//	Local          Entity (nil for temporaries), ZeroInit; Typ points at the slot
//	Store          Addr, Val
//	Load           Addr
//	GetElementPtr  Addr, Elem, Indices, InBounds
//	Convert        Conv, Val
//	Br             Cond (nil for a jump), True, False
//	Ret            Val (nil without a result)
//	BinaryOp       Op, X, Y
//	Call           Callee, Args
type Instr struct {
	Kind  InstrKind
	ID    int // Register number; -1 without a result
	Block *Block
	Typ   types.Type
	Pos   token.Token

	Entity   *types.Entity
	ZeroInit bool

	Addr Value
	Val  Value

	Elem     types.Type
	Indices  []Value
	InBounds bool

	Conv ConvKind

	Cond        Value
	True, False *Block

	Op   token.Type
	X, Y Value

	Callee Value
	Args   []Value
}

// HasResult reports whether i defines a register.
func (i *Instr) HasResult() bool {
	switch i.Kind {
	case InstrStore, InstrBr, InstrRet, InstrUnreachable:
		return false
	case InstrCall:
		return i.Typ != nil
	}
	return true
}

func (i *Instr) IsTerminator() bool {
	switch i.Kind {
	case InstrBr, InstrRet, InstrUnreachable:
		return true
	}
	return false
}

// Block is a basic block. Its instructions run in order and the last one is
// a terminator once the procedure is complete.
type Block struct {
	ID     int
	Label  string
	Node   *ast.Node
	Scope  types.ScopeID
	Parent *Procedure
	Instrs []*Instr
}

func (b *Block) Terminated() bool {
	return len(b.Instrs) > 0 && b.Instrs[len(b.Instrs)-1].IsTerminator()
}

func (c *Constant) Type() types.Type { return c.Typ }
func (t *TypeName) Type() types.Type { return t.Entity.Type }
func (g *Global) Type() types.Type   { return types.NewPointer(g.Elem) }
func (p *Param) Type() types.Type    { return p.Entity.Type }
func (p *Procedure) Type() types.Type {
	if p.Sig == nil {
		return nil
	}
	return p.Sig
}
func (b *Block) Type() types.Type { return nil }
func (i *Instr) Type() types.Type { return i.Typ }

func (c *Constant) String() string {
	if !c.Value.IsValid() {
		if types.HasNil(c.Typ) {
			return "nil"
		}
		return "zeroinit"
	}
	if c.Value.Kind() == exact.String {
		return fmt.Sprintf("%q", c.Value.Str())
	}
	return c.Value.String()
}
func (t *TypeName) String() string  { return t.Entity.Name }
func (g *Global) String() string    { return "@" + g.Label }
func (p *Param) String() string     { return "%" + p.Entity.Name }
func (p *Procedure) String() string { return "@" + p.Name }
func (b *Block) String() string     { return fmt.Sprintf("%s.%d", b.Label, b.ID) }

func (i *Instr) String() string {
	if i.ID < 0 {
		return "%?"
	}
	return fmt.Sprintf("%%%d", i.ID)
}

// Text renders the instruction the way it appears in a dump.
func (i *Instr) Text() string {
	var sb strings.Builder
	if i.HasResult() {
		fmt.Fprintf(&sb, "%s = ", i)
	}
	switch i.Kind {
	case InstrLocal:
		name := "$tmp"
		if i.Entity != nil {
			name = i.Entity.Name
		}
		fmt.Fprintf(&sb, "local %s %s", name, types.Deref(i.Typ))
	case InstrStore:
		fmt.Fprintf(&sb, "store %s %s, %s", typeName(i.Val.Type()), i.Val, i.Addr)
	case InstrLoad:
		fmt.Fprintf(&sb, "load %s %s", typeName(i.Typ), i.Addr)
	case InstrGetElementPtr:
		sb.WriteString("getelementptr ")
		if i.InBounds {
			sb.WriteString("inbounds ")
		}
		fmt.Fprintf(&sb, "%s %s", typeName(i.Elem), i.Addr)
		for _, idx := range i.Indices {
			fmt.Fprintf(&sb, ", %s", idx)
		}
	case InstrConvert:
		fmt.Fprintf(&sb, "%s %s %s to %s", i.Conv, typeName(i.Val.Type()), i.Val, typeName(i.Typ))
	case InstrBr:
		if i.Cond == nil {
			fmt.Fprintf(&sb, "br %s", i.True)
		} else {
			fmt.Fprintf(&sb, "br %s, %s, %s", i.Cond, i.True, i.False)
		}
	case InstrRet:
		sb.WriteString("ret")
		if i.Val != nil {
			fmt.Fprintf(&sb, " %s %s", typeName(i.Val.Type()), i.Val)
		}
	case InstrUnreachable:
		sb.WriteString("unreachable")
	case InstrBinaryOp:
		fmt.Fprintf(&sb, "%s %s %s, %s", opName(i.Op), typeName(i.X.Type()), i.X, i.Y)
	case InstrCall:
		fmt.Fprintf(&sb, "call %s(", i.Callee)
		for n, a := range i.Args {
			if n > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s %s", typeName(a.Type()), a)
		}
		sb.WriteString(")")
	}
	return sb.String()
}

func typeName(t types.Type) string {
	if t == nil {
		return "void"
	}
	return t.String()
}

var opNames = map[token.Type]string{
	token.Plus:   "add",
	token.Minus:  "sub",
	token.Star:   "mul",
	token.Slash:  "quo",
	token.Rem:    "rem",
	token.RemRem: "mod",
	token.And:    "and",
	token.Or:     "or",
	token.Xor:    "xor",
	token.Shl:    "shl",
	token.Shr:    "shr",
	token.EqEq:   "eq",
	token.Neq:    "ne",
	token.Lt:     "lt",
	token.Gt:     "gt",
	token.Lte:    "le",
	token.Gte:    "ge",
}

func opName(op token.Type) string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return op.String()
}
