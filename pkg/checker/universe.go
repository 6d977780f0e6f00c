package checker

import (
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/types"
)

type BuiltinID int

const (
	BuiltinInvalid BuiltinID = iota

	BuiltinLen
	BuiltinCap
	BuiltinNew
	BuiltinMake
	BuiltinFree
	BuiltinReserve
	BuiltinClear
	BuiltinAppend
	BuiltinDelete
	BuiltinSizeOf
	BuiltinSizeOfVal
	BuiltinAlignOf
	BuiltinAlignOfVal
	BuiltinOffsetOf
	BuiltinOffsetOfVal
	BuiltinTypeOfVal
	BuiltinTypeInfo
	BuiltinTypeInfoOfVal
	BuiltinCompileAssert
	BuiltinAssert
	BuiltinPanic
	BuiltinCopy
	BuiltinSwizzle
	BuiltinComplex
	BuiltinReal
	BuiltinImag
	BuiltinConj
	BuiltinSlicePtr
	BuiltinSliceToBytes
	BuiltinMin
	BuiltinMax
	BuiltinAbs
	BuiltinClamp
	BuiltinTransmute

	BuiltinCount
)

// exprKind tells the statement checker whether a call is usable on its own.
type exprKind int

const (
	exprExpr exprKind = iota
	exprStmt
)

type builtinProc struct {
	name     string
	argCount int
	variadic bool
	kind     exprKind
}

var builtinProcs = [BuiltinCount]builtinProc{
	BuiltinInvalid: {"", 0, false, exprStmt},

	BuiltinLen:     {"len", 1, false, exprExpr},
	BuiltinCap:     {"cap", 1, false, exprExpr},
	BuiltinNew:     {"new", 1, false, exprExpr},
	BuiltinMake:    {"make", 1, true, exprExpr},
	BuiltinFree:    {"free", 1, false, exprStmt},
	BuiltinReserve: {"reserve", 2, false, exprStmt},
	BuiltinClear:   {"clear", 1, false, exprStmt},
	BuiltinAppend:  {"append", 1, true, exprExpr},
	BuiltinDelete:  {"delete", 2, false, exprStmt},

	BuiltinSizeOf:        {"size_of", 1, false, exprExpr},
	BuiltinSizeOfVal:     {"size_of_val", 1, false, exprExpr},
	BuiltinAlignOf:       {"align_of", 1, false, exprExpr},
	BuiltinAlignOfVal:    {"align_of_val", 1, false, exprExpr},
	BuiltinOffsetOf:      {"offset_of", 2, false, exprExpr},
	BuiltinOffsetOfVal:   {"offset_of_val", 1, false, exprExpr},
	BuiltinTypeOfVal:     {"type_of_val", 1, false, exprExpr},
	BuiltinTypeInfo:      {"type_info", 1, false, exprExpr},
	BuiltinTypeInfoOfVal: {"type_info_of_val", 1, false, exprExpr},

	BuiltinCompileAssert: {"compile_assert", 1, false, exprExpr},
	BuiltinAssert:        {"assert", 1, false, exprExpr},
	BuiltinPanic:         {"panic", 1, false, exprStmt},

	BuiltinCopy:         {"copy", 2, false, exprExpr},
	BuiltinSwizzle:      {"swizzle", 1, true, exprExpr},
	BuiltinComplex:      {"complex", 2, false, exprExpr},
	BuiltinReal:         {"real", 1, false, exprExpr},
	BuiltinImag:         {"imag", 1, false, exprExpr},
	BuiltinConj:         {"conj", 1, false, exprExpr},
	BuiltinSlicePtr:     {"slice_ptr", 2, true, exprExpr},
	BuiltinSliceToBytes: {"slice_to_bytes", 1, false, exprExpr},

	BuiltinMin:       {"min", 2, false, exprExpr},
	BuiltinMax:       {"max", 2, false, exprExpr},
	BuiltinAbs:       {"abs", 1, false, exprExpr},
	BuiltinClamp:     {"clamp", 3, false, exprExpr},
	BuiltinTransmute: {"transmute", 2, false, exprExpr},
}

func (id BuiltinID) String() string {
	if id > BuiltinInvalid && id < BuiltinCount {
		return builtinProcs[id].name
	}
	return "invalid builtin"
}

// newUniverse declares the predeclared types, constants and builtins.
func (c *Checker) newUniverse() types.ScopeID {
	s := c.Scopes.New(types.NoScope, types.ScopeUniverse, nil)

	for _, b := range types.Typ {
		if b.Kind == types.Invalid || b.Flags&types.BasicUntyped != 0 {
			continue
		}
		c.Scopes.Insert(s.ID, types.NewTypeName(b.Name, b))
	}
	c.Scopes.Insert(s.ID, types.NewTypeName("byte", types.Byte))
	c.Scopes.Insert(s.ID, types.NewTypeName("rune", types.Rune))

	c.Scopes.Insert(s.ID, types.NewConstant("true", types.Typ[types.UntypedBool], exact.MakeBool(true)))
	c.Scopes.Insert(s.ID, types.NewConstant("false", types.Typ[types.UntypedBool], exact.MakeBool(false)))
	c.Scopes.Insert(s.ID, types.NewNil())

	for id := BuiltinInvalid + 1; id < BuiltinCount; id++ {
		c.Scopes.Insert(s.ID, types.NewBuiltin(builtinProcs[id].name, int(id)))
	}
	return s.ID
}
