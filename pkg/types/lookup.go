package types

// Selection is the result of a field lookup. Index holds the layout index
// at each step of a path through `using` fields; Indirect is set when the
// path passes through a pointer.
type Selection struct {
	Entity   *Entity
	Index    []int
	Indirect bool
}

func (s Selection) Found() bool { return s.Entity != nil }

func pseudoField(name string, t Type, index int) *Entity {
	f := NewField(name, t, false, index)
	f.Flags |= FlagTypeField
	return f
}

func pseudoFields(t Type) []*Entity {
	switch b := Base(t).(type) {
	case *Basic:
		switch b.Kind {
		case String:
			return []*Entity{pseudoField("data", NewPointer(Typ[U8]), 0), pseudoField("count", Typ[Int], 1)}
		case Any:
			return []*Entity{pseudoField("data", Typ[Rawptr], 0), pseudoField("type_info", NewPointer(TypeInfo), 1)}
		}
	case *Slice:
		return []*Entity{
			pseudoField("data", NewPointer(b.Elem), 0),
			pseudoField("count", Typ[Int], 1),
			pseudoField("capacity", Typ[Int], 2),
		}
	case *DynamicArray:
		return []*Entity{
			pseudoField("data", NewPointer(b.Elem), 0),
			pseudoField("count", Typ[Int], 1),
			pseudoField("capacity", Typ[Int], 2),
			pseudoField("allocator", Typ[Rawptr], 3),
		}
	}
	return nil
}

var vectorElemNames = [...]string{"x", "y", "z", "w"}

// LookupField finds name in t. When isType is set, t was named as a type
// and only type-level members (union variants, enum fields and the
// synthesized enum/record members) are visible.
func LookupField(t Type, name string, isType bool) Selection {
	if name == "_" || name == "" || t == nil {
		return Selection{}
	}
	indirect := false
	if p, ok := Base(t).(*Pointer); ok && !isType {
		t, indirect = p.Elem, true
	}

	if isType {
		return lookupTypeMember(t, name)
	}

	for _, f := range pseudoFields(t) {
		if f.Name == name {
			return Selection{Entity: f, Index: []int{f.FieldIndex}, Indirect: indirect}
		}
	}

	switch b := Base(t).(type) {
	case *Vector:
		for i, n := range vectorElemNames {
			if n == name && int64(i) < b.Count {
				e := NewField(name, b.Elem, false, i)
				e.Flags |= FlagVectorElem
				return Selection{Entity: e, Index: []int{i}, Indirect: indirect}
			}
		}
	case *Record:
		sel := lookupRecordField(b, name)
		sel.Indirect = sel.Indirect || indirect
		return sel
	}
	return Selection{}
}

func lookupTypeMember(t Type, name string) Selection {
	switch b := Base(t).(type) {
	case *Record:
		if b.Kind == RecordUnion {
			for i, v := range b.Variants {
				if v.Name == name {
					return Selection{Entity: v, Index: []int{i}}
				}
			}
		}
		if name == "names" && b.Names != nil {
			return Selection{Entity: b.Names}
		}
	case *Enum:
		for i, f := range b.Fields {
			if f.Name == name {
				return Selection{Entity: f, Index: []int{i}}
			}
		}
		for _, e := range []*Entity{b.Count, b.MinValue, b.MaxValue, b.Names} {
			if e != nil && e.Name == name {
				return Selection{Entity: e}
			}
		}
	}
	return Selection{}
}

func lookupRecordField(r *Record, name string) Selection {
	for i, f := range r.Fields {
		if f.Name == name {
			return Selection{Entity: f, Index: []int{i}}
		}
	}
	for i, f := range r.Fields {
		if !f.Is(FlagUsing) {
			continue
		}
		ft, indirect := f.Type, false
		if p, ok := Base(ft).(*Pointer); ok {
			ft, indirect = p.Elem, true
		}
		sub, ok := Base(ft).(*Record)
		if !ok {
			continue
		}
		if sel := lookupRecordField(sub, name); sel.Found() {
			sel.Index = append([]int{i}, sel.Index...)
			sel.Indirect = sel.Indirect || indirect
			return sel
		}
	}
	return Selection{}
}

// FindUsingIndexField returns the path to the single `using` field of t that
// can be indexed, following nested `using` records.
func FindUsingIndexField(t Type) Selection {
	r, ok := Base(Deref(t)).(*Record)
	if !ok || r.Kind == RecordUnion {
		return Selection{}
	}
	for i, f := range r.Fields {
		if !f.Is(FlagUsing) {
			continue
		}
		if IsIndexable(f.Type) {
			return Selection{Entity: f, Index: []int{i}}
		}
		if sel := FindUsingIndexField(f.Type); sel.Found() {
			sel.Index = append([]int{i}, sel.Index...)
			sel.Indirect = sel.Indirect || IsPointer(f.Type)
			return sel
		}
	}
	return Selection{}
}

// IsSubtypeOf reports whether target is reachable from src through a chain
// of `using` fields. A pointer source also reaches the pointee of a pointer
// target.
func IsSubtypeOf(src, target Type) bool {
	srcIsPtr := false
	if p, ok := Base(src).(*Pointer); ok {
		src, srcIsPtr = p.Elem, true
	}
	r, ok := Base(src).(*Record)
	if !ok || (r.Kind != RecordStruct && r.Kind != RecordUnion) {
		return false
	}
	for _, f := range r.Fields {
		if f.Kind != EntityVariable || !f.Is(FlagUsing) {
			continue
		}
		if Identical(f.Type, target) {
			return true
		}
		if srcIsPtr && IsPointer(target) && Identical(f.Type, Deref(target)) {
			return true
		}
		if IsSubtypeOf(f.Type, target) {
			return true
		}
	}
	return false
}

// FieldType returns the type of the field at layout index i of t. Strings,
// slices, dynamic arrays and `any` expose their header fields.
func FieldType(t Type, i int) Type {
	switch b := Base(t).(type) {
	case *Record:
		if i < len(b.Fields) {
			return b.Fields[i].Type
		}
	case *Tuple:
		if i < b.Len() {
			return b.At(i)
		}
	case *Vector:
		return b.Elem
	case *Array:
		return b.Elem
	}
	if fs := pseudoFields(t); i < len(fs) {
		return fs[i].Type
	}
	return nil
}
