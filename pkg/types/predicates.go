package types

// Base strips Named wrappers. An unresolved Named yields the invalid type.
func Base(t Type) Type {
	for {
		n, ok := t.(*Named)
		if !ok {
			return t
		}
		if n.Base == nil {
			return Typ[Invalid]
		}
		t = n.Base
	}
}

// Core is Base with enumerations replaced by their backing type.
func Core(t Type) Type {
	t = Base(t)
	if e, ok := t.(*Enum); ok {
		return Base(e.Base)
	}
	return t
}

// Deref returns the element type of a pointer, or t itself.
func Deref(t Type) Type {
	if p, ok := Base(t).(*Pointer); ok {
		return p.Elem
	}
	return t
}

func basicFlags(t Type) BasicFlag {
	if b, ok := Core(t).(*Basic); ok {
		return b.Flags
	}
	return 0
}

func IsBasicKind(t Type, k BasicKind) bool {
	b, ok := Base(t).(*Basic)
	return ok && b.Kind == k
}

func IsInvalid(t Type) bool   { return t == nil || IsBasicKind(t, Invalid) }
func IsUntyped(t Type) bool   { return basicFlags(t)&BasicUntyped != 0 }
func IsTyped(t Type) bool     { return !IsUntyped(t) }
func IsBoolean(t Type) bool   { return basicFlags(t)&BasicBoolean != 0 }
func IsInteger(t Type) bool   { return basicFlags(t)&BasicInteger != 0 }
func IsUnsigned(t Type) bool  { return basicFlags(t)&BasicUnsigned != 0 }
func IsFloat(t Type) bool     { return basicFlags(t)&BasicFloat != 0 }
func IsComplex(t Type) bool   { return basicFlags(t)&BasicComplex != 0 }
func IsString(t Type) bool    { return basicFlags(t)&BasicString != 0 }
func IsRune(t Type) bool      { return basicFlags(t)&BasicRune != 0 }
func IsRawptr(t Type) bool    { return IsBasicKind(t, Rawptr) }
func IsAny(t Type) bool       { return IsBasicKind(t, Any) }
func IsUntypedNil(t Type) bool { return IsBasicKind(t, UntypedNil) }

func IsConstantType(t Type) bool { return basicFlags(t)&BasicConstantType != 0 }

func IsNumeric(t Type) bool {
	if basicFlags(t)&BasicNumeric != 0 {
		return true
	}
	if v, ok := Base(t).(*Vector); ok {
		return IsNumeric(v.Elem)
	}
	return false
}

func IsOrdered(t Type) bool {
	if v, ok := Base(t).(*Vector); ok {
		return IsOrdered(v.Elem)
	}
	return basicFlags(t)&BasicOrdered != 0
}

func IsPointer(t Type) bool {
	if _, ok := Base(t).(*Pointer); ok {
		return true
	}
	return IsRawptr(t)
}

func IsNamed(t Type) bool {
	if _, ok := t.(*Named); ok {
		return true
	}
	_, ok := t.(*Basic)
	return ok
}

func IsArray(t Type) bool        { _, ok := Base(t).(*Array); return ok }
func IsSlice(t Type) bool        { _, ok := Base(t).(*Slice); return ok }
func IsDynamicArray(t Type) bool { _, ok := Base(t).(*DynamicArray); return ok }
func IsVector(t Type) bool       { _, ok := Base(t).(*Vector); return ok }
func IsMap(t Type) bool          { _, ok := Base(t).(*Map); return ok }
func IsEnum(t Type) bool         { _, ok := Base(t).(*Enum); return ok }
func IsTuple(t Type) bool        { _, ok := Base(t).(*Tuple); return ok }
func IsProc(t Type) bool         { _, ok := Base(t).(*Proc); return ok }

func IsRecordKind(t Type, k RecordKind) bool {
	r, ok := Base(t).(*Record)
	return ok && r.Kind == k
}

func IsStruct(t Type) bool   { return IsRecordKind(t, RecordStruct) }
func IsUnion(t Type) bool    { return IsRecordKind(t, RecordUnion) }
func IsRawUnion(t Type) bool { return IsRecordKind(t, RecordRawUnion) }

// IsU8Slice reports []u8, the type a string converts to and from.
func IsU8Slice(t Type) bool {
	s, ok := Base(t).(*Slice)
	return ok && IsBasicKind(s.Elem, U8)
}

// IsIndexable reports the types that accept x[i].
func IsIndexable(t Type) bool {
	switch Base(t).(type) {
	case *Array, *Slice, *Vector, *DynamicArray, *Map:
		return true
	}
	return IsString(t)
}

// ElemType returns the element of a container type, or nil.
func ElemType(t Type) Type {
	switch b := Base(t).(type) {
	case *Array:
		return b.Elem
	case *Slice:
		return b.Elem
	case *DynamicArray:
		return b.Elem
	case *Vector:
		return b.Elem
	case *Pointer:
		return b.Elem
	}
	return nil
}

func IsComparable(t Type) bool {
	switch b := Base(t).(type) {
	case *Basic:
		return b.Kind != UntypedNil && b.Kind != Any
	case *Pointer, *Enum, *Proc:
		return true
	case *Vector:
		return IsComparable(b.Elem)
	}
	return false
}

// HasNil reports whether the untyped nil converts to t.
func HasNil(t Type) bool {
	switch b := Base(t).(type) {
	case *Basic:
		return b.Kind == Rawptr || b.Kind == Any || b.Kind == UntypedNil
	case *Pointer, *Slice, *DynamicArray, *Map, *Proc:
		return true
	}
	return false
}

// Identical reports structural identity. Named types are identical only to
// themselves.
func Identical(x, y Type) bool {
	if x == y {
		return true
	}
	if x == nil || y == nil {
		return false
	}
	switch x := x.(type) {
	case *Basic:
		y, ok := y.(*Basic)
		return ok && x.Kind == y.Kind
	case *Named:
		return false
	case *Pointer:
		y, ok := y.(*Pointer)
		return ok && Identical(x.Elem, y.Elem)
	case *Array:
		y, ok := y.(*Array)
		return ok && x.Count == y.Count && Identical(x.Elem, y.Elem)
	case *Slice:
		y, ok := y.(*Slice)
		return ok && Identical(x.Elem, y.Elem)
	case *DynamicArray:
		y, ok := y.(*DynamicArray)
		return ok && Identical(x.Elem, y.Elem)
	case *Vector:
		y, ok := y.(*Vector)
		return ok && x.Count == y.Count && Identical(x.Elem, y.Elem)
	case *Map:
		y, ok := y.(*Map)
		return ok && x.Count == y.Count && Identical(x.Key, y.Key) && Identical(x.Value, y.Value)
	case *Record:
		y, ok := y.(*Record)
		if !ok || x.Kind != y.Kind || x.Packed != y.Packed || x.Ordered != y.Ordered || x.CustomAlign != y.CustomAlign {
			return false
		}
		if x.Kind == RecordUnion {
			return identicalEntities(x.Variants, y.Variants) && identicalEntities(x.Fields, y.Fields)
		}
		return identicalEntities(x.FieldsInSrcOrder, y.FieldsInSrcOrder)
	case *Enum:
		// Every enum declaration introduces a distinct type.
		return false
	case *Tuple:
		y, ok := y.(*Tuple)
		return ok && identicalEntities(x.Vars, y.Vars)
	case *Proc:
		y, ok := y.(*Proc)
		return ok && x.CC == y.CC && x.Variadic == y.Variadic &&
			Identical(tupleOrEmpty(x.Params), tupleOrEmpty(y.Params)) &&
			Identical(tupleOrEmpty(x.Results), tupleOrEmpty(y.Results))
	}
	return false
}

var emptyTuple = &Tuple{}

func tupleOrEmpty(t *Tuple) *Tuple {
	if t == nil {
		return emptyTuple
	}
	return t
}

func identicalEntities(xs, ys []*Entity) bool {
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if xs[i].Name != ys[i].Name || xs[i].Is(FlagUsing) != ys[i].Is(FlagUsing) {
			return false
		}
		if !Identical(xs[i].Type, ys[i].Type) {
			return false
		}
	}
	return true
}

// Default commits an untyped type to the type a constant of it takes when
// nothing else constrains it.
func Default(t Type) Type {
	b, ok := t.(*Basic)
	if !ok {
		return t
	}
	switch b.Kind {
	case UntypedBool:
		return Typ[Bool]
	case UntypedInteger:
		return Typ[Int]
	case UntypedRune:
		return Rune
	case UntypedFloat:
		return Typ[F64]
	case UntypedComplex:
		return Typ[Complex128]
	case UntypedString:
		return Typ[String]
	}
	return t
}

// IsUnionPointer reports a pointer to a union. Plain pointer casts refuse
// to produce or consume one.
func IsUnionPointer(t Type) bool {
	p, ok := Base(t).(*Pointer)
	return ok && IsUnion(p.Elem)
}

// UnionHasVariant reports whether v names one of u's variants.
func UnionHasVariant(u, v Type) bool {
	r, ok := Base(u).(*Record)
	if !ok || r.Kind != RecordUnion {
		return false
	}
	for _, f := range r.Variants {
		if f.Name == "" {
			continue
		}
		if Identical(f.Type, v) {
			return true
		}
	}
	return false
}
