package checker

import (
	"fmt"

	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/types"
)

// Mode classifies what a checked expression denotes.
type Mode int

const (
	ModeInvalid    Mode = iota
	ModeNoValue         // A call without results
	ModeConstant        // A compile-time value
	ModeVariable        // An addressable storage location
	ModeValue           // A computed value
	ModeImmutable       // A location that cannot be assigned
	ModeType            // A type expression
	ModeBuiltin         // A builtin procedure name; must be called
	ModeOverload        // An unresolved overload set
	ModeMapIndex        // m[k], optionally with an ok result
	ModeOptionalOk      // A type assertion, optionally with an ok result
)

var modeNames = [...]string{
	ModeInvalid:    "invalid",
	ModeNoValue:    "no value",
	ModeConstant:   "constant",
	ModeVariable:   "variable",
	ModeValue:      "value",
	ModeImmutable:  "immutable",
	ModeType:       "type",
	ModeBuiltin:    "builtin",
	ModeOverload:   "overload",
	ModeMapIndex:   "map index",
	ModeOptionalOk: "optional ok",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Operand is the result of checking one expression.
type Operand struct {
	Mode      Mode
	Type      types.Type
	Value     exact.Value
	Expr      *ast.Node
	Builtin   BuiltinID
	Overloads []*types.Entity
}

func invalidOperand(expr *ast.Node) Operand {
	return Operand{Mode: ModeInvalid, Type: types.Typ[types.Invalid], Expr: expr}
}

func (o *Operand) invalidate() { o.Mode = ModeInvalid }

// isValue reports the modes that can be read as a runtime value.
func (o *Operand) isValue() bool {
	switch o.Mode {
	case ModeValue, ModeVariable, ModeImmutable, ModeConstant, ModeMapIndex, ModeOptionalOk:
		return true
	}
	return false
}

func (o *Operand) String() string {
	expr := ast.ExprString(o.Expr)
	switch o.Mode {
	case ModeInvalid:
		return expr + " (invalid operand)"
	case ModeNoValue:
		return expr + " (no value)"
	case ModeType:
		return expr + " (type)"
	case ModeConstant:
		return fmt.Sprintf("%s (constant %s of type %s)", expr, o.Value, o.Type)
	}
	return fmt.Sprintf("%s (%s of type %s)", expr, o.Mode, o.Type)
}
