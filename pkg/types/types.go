// Package types defines the type representation shared by the checker, the
// SSA builder and the backend: types, entities, the scope arena, layout and
// ABI classification.
package types

import (
	"github.com/xplshn/odinc/pkg/ast"
)

// Type is the closed set of type variants. Only this package implements it.
type Type interface {
	aType()
	String() string
}

type BasicKind int

const (
	Invalid BasicKind = iota

	Bool
	I8
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	I128
	U128
	F32
	F64
	Complex64
	Complex128
	Int
	Uint
	Rawptr
	String
	Any

	UntypedBool
	UntypedInteger
	UntypedFloat
	UntypedComplex
	UntypedString
	UntypedRune
	UntypedNil

	BasicCount
)

type BasicFlag uint

const (
	BasicBoolean BasicFlag = 1 << iota
	BasicInteger
	BasicUnsigned
	BasicFloat
	BasicComplex
	BasicPointer
	BasicString
	BasicRune
	BasicUntyped

	BasicOrdered      = BasicInteger | BasicFloat | BasicString | BasicPointer | BasicRune
	BasicNumeric      = BasicInteger | BasicFloat | BasicComplex
	BasicConstantType = BasicBoolean | BasicNumeric | BasicPointer | BasicString | BasicRune
)

// Basic is a predeclared primitive. Size is in bytes; -1 means one word,
// -2 two words.
type Basic struct {
	Kind  BasicKind
	Flags BasicFlag
	Size  int64
	Name  string
}

// Named wraps a base type with the entity that declared it. Base is nil
// until the declaration has been resolved.
type Named struct {
	Name   string
	Base   Type
	Entity *Entity
}

type Pointer struct{ Elem Type }

type Array struct {
	Elem  Type
	Count int64 // -1 until inferred from a `[..]T` literal
}

type Slice struct{ Elem Type }

type DynamicArray struct{ Elem Type }

type Vector struct {
	Elem  Type
	Count int64
}

// Map keeps the synthesized records used for its runtime layout next to the
// key and value types.
type Map struct {
	Key, Value   Type
	Count        int64
	Entry        Type   // struct {hash: u128, next: int, key: K, value: V}
	Generated    Type   // struct {hashes: [dynamic]int, entries: [dynamic]Entry}
	LookupResult *Tuple // (value: V, ok: bool)
}

type RecordKind int

const (
	RecordStruct RecordKind = iota
	RecordUnion
	RecordRawUnion
)

// Record is a struct, a tagged union or a raw union.
type Record struct {
	Kind             RecordKind
	Fields           []*Entity // Layout order
	FieldsInSrcOrder []*Entity
	Packed           bool
	Ordered          bool
	CustomAlign      int64
	Variants         []*Entity // Unions only; Variants[0] is the empty variant
	Tag              *Entity
	Names            *Entity
	Node             *ast.Node
	Scope            ScopeID

	offsets    []int64
	offsetsSet bool
}

// Enum holds constant fields of a numeric base type plus the synthesized
// count/min_value/max_value/names members.
type Enum struct {
	Base     Type
	Fields   []*Entity
	Count    *Entity
	MinValue *Entity
	MaxValue *Entity
	Names    *Entity
	Node     *ast.Node
}

// Tuple is an ordered list of variables used for parameters, results and
// multi-valued expressions.
type Tuple struct{ Vars []*Entity }

type Proc struct {
	Params          *Tuple
	Results         *Tuple
	Variadic        bool
	CC              ast.CallingConvention
	AbiParams       []Type
	AbiResult       *Tuple
	ReturnByPointer bool
	Scope           ScopeID
	Node            *ast.Node
}

func (*Basic) aType()        {}
func (*Named) aType()        {}
func (*Pointer) aType()      {}
func (*Array) aType()        {}
func (*Slice) aType()        {}
func (*DynamicArray) aType() {}
func (*Vector) aType()       {}
func (*Map) aType()          {}
func (*Record) aType()       {}
func (*Enum) aType()         {}
func (*Tuple) aType()        {}
func (*Proc) aType()         {}

var Typ = [BasicCount]*Basic{
	Invalid: {Invalid, 0, 0, "invalid type"},

	Bool:       {Bool, BasicBoolean, 1, "bool"},
	I8:         {I8, BasicInteger, 1, "i8"},
	U8:         {U8, BasicInteger | BasicUnsigned, 1, "u8"},
	I16:        {I16, BasicInteger, 2, "i16"},
	U16:        {U16, BasicInteger | BasicUnsigned, 2, "u16"},
	I32:        {I32, BasicInteger, 4, "i32"},
	U32:        {U32, BasicInteger | BasicUnsigned, 4, "u32"},
	I64:        {I64, BasicInteger, 8, "i64"},
	U64:        {U64, BasicInteger | BasicUnsigned, 8, "u64"},
	I128:       {I128, BasicInteger, 16, "i128"},
	U128:       {U128, BasicInteger | BasicUnsigned, 16, "u128"},
	F32:        {F32, BasicFloat, 4, "f32"},
	F64:        {F64, BasicFloat, 8, "f64"},
	Complex64:  {Complex64, BasicComplex, 8, "complex64"},
	Complex128: {Complex128, BasicComplex, 16, "complex128"},
	Int:        {Int, BasicInteger, -1, "int"},
	Uint:       {Uint, BasicInteger | BasicUnsigned, -1, "uint"},
	Rawptr:     {Rawptr, BasicPointer, -1, "rawptr"},
	String:     {String, BasicString, -2, "string"},
	Any:        {Any, 0, -2, "any"},

	UntypedBool:    {UntypedBool, BasicBoolean | BasicUntyped, 0, "untyped bool"},
	UntypedInteger: {UntypedInteger, BasicInteger | BasicUntyped, 0, "untyped integer"},
	UntypedFloat:   {UntypedFloat, BasicFloat | BasicUntyped, 0, "untyped float"},
	UntypedComplex: {UntypedComplex, BasicComplex | BasicUntyped, 0, "untyped complex"},
	UntypedString:  {UntypedString, BasicString | BasicUntyped, 0, "untyped string"},
	UntypedRune:    {UntypedRune, BasicInteger | BasicRune | BasicUntyped, 0, "untyped rune"},
	UntypedNil:     {UntypedNil, BasicUntyped, 0, "untyped nil"},
}

// Byte and Rune are the predeclared aliases of u8 and i32.
var (
	Byte = &Basic{U8, BasicInteger | BasicUnsigned, 1, "byte"}
	Rune = &Basic{I32, BasicInteger | BasicRune, 4, "rune"}
)

func NewPointer(elem Type) *Pointer         { return &Pointer{Elem: elem} }
func NewArray(elem Type, count int64) *Array { return &Array{Elem: elem, Count: count} }
func NewSlice(elem Type) *Slice             { return &Slice{Elem: elem} }
func NewDynamicArray(elem Type) *DynamicArray {
	return &DynamicArray{Elem: elem}
}
func NewVector(elem Type, count int64) *Vector { return &Vector{Elem: elem, Count: count} }
func NewTuple(vars ...*Entity) *Tuple         { return &Tuple{Vars: vars} }

func NewNamed(name string, base Type, e *Entity) *Named {
	return &Named{Name: name, Base: base, Entity: e}
}

// NewStruct builds an ordered struct whose fields are already laid out.
func NewStruct(fields ...*Entity) *Record {
	for i, f := range fields {
		f.FieldIndex, f.FieldSrcIndex = i, i
	}
	return &Record{Kind: RecordStruct, Fields: fields, FieldsInSrcOrder: fields, Ordered: true, Scope: NoScope}
}

func (t *Tuple) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Vars)
}

// At returns the type of the i'th variable.
func (t *Tuple) At(i int) Type { return t.Vars[i].Type }

func (p *Proc) ParamCount() int  { return p.Params.Len() }
func (p *Proc) ResultCount() int { return p.Results.Len() }

// NewMap synthesizes the backing records of map[key]value.
func NewMap(key, value Type, count int64) *Map {
	m := &Map{Key: key, Value: value, Count: count}
	entry := NewStruct(
		NewField("hash", Typ[U128], false, 0),
		NewField("next", Typ[Int], false, 1),
		NewField("key", key, false, 2),
		NewField("value", value, false, 3),
	)
	m.Entry = NewNamed("MapEntry", entry, nil)
	m.Generated = NewStruct(
		NewField("hashes", NewDynamicArray(Typ[Int]), false, 0),
		NewField("entries", NewDynamicArray(m.Entry), false, 1),
	)
	m.LookupResult = NewTuple(NewParam("", value), NewParam("", Typ[Bool]))
	return m
}

// TypeInfo is the runtime type metadata record produced by `type_info`.
var TypeInfo = NewNamed("Type_Info", NewStruct(
	NewField("kind", Typ[Int], false, 0),
	NewField("size", Typ[Int], false, 1),
	NewField("align", Typ[Int], false, 2),
	NewField("name", Typ[String], false, 3),
), nil)

// Context is the type of the implicit `context` value.
var Context = NewNamed("Context", NewStruct(
	NewField("thread_id", Typ[Int], false, 0),
	NewField("allocator", Typ[Rawptr], false, 1),
	NewField("user_data", Typ[Rawptr], false, 2),
	NewField("user_index", Typ[Int], false, 3),
), nil)
