package types

import (
	"cmp"
	"slices"

	"modernc.org/mathutil"
)

// Sizes describes the target's word size and maximum alignment. Every phase
// computes layout through the same value.
type Sizes struct {
	WordSize int64
	MaxAlign int64
}

func AlignTo(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// NextPow2 returns the smallest power of two not below n.
func NextPow2(n int64) int64 {
	if n <= 1 {
		return 1
	}
	return 1 << mathutil.BitLenUint64(uint64(n-1))
}

func IsPow2(n int64) bool { return n > 0 && n&(n-1) == 0 }

type layout struct {
	Sizes
	path map[*Record]bool // Records whose size is being computed
}

func (s Sizes) layout() *layout { return &layout{Sizes: s, path: make(map[*Record]bool)} }

func (s Sizes) SizeOf(t Type) int64  { return s.layout().sizeOf(t) }
func (s Sizes) AlignOf(t Type) int64 { return s.layout().alignOf(t) }

// Offsets returns the byte offset of each field of r in layout order.
func (s Sizes) Offsets(r *Record) []int64 {
	if !r.offsetsSet {
		r.offsets = s.layout().offsets(r)
		r.offsetsSet = true
	}
	return r.offsets
}

// OffsetOf returns the offset of the field at layout index i of t.
func (s Sizes) OffsetOf(t Type, i int) int64 {
	switch b := Base(t).(type) {
	case *Record:
		if i < 0 || i >= len(b.Fields) {
			return 0
		}
		return s.Offsets(b)[i]
	case *Tuple:
		return s.tupleOffsets(b)[i]
	}
	return 0
}

// OffsetOfSelection sums the offsets along a field path found by LookupField.
func (s Sizes) OffsetOfSelection(t Type, sel Selection) int64 {
	var off int64
	for _, i := range sel.Index {
		t = Deref(t)
		r, ok := Base(t).(*Record)
		if !ok || i >= len(r.Fields) {
			break
		}
		off += s.OffsetOf(r, i)
		t = r.Fields[i].Type
	}
	return off
}

func (s Sizes) tupleOffsets(t *Tuple) []int64 {
	l := s.layout()
	offs := make([]int64, t.Len())
	var cur int64
	for i, v := range t.Vars {
		cur = AlignTo(cur, l.alignOf(v.Type))
		offs[i] = cur
		cur += l.sizeOf(v.Type)
	}
	return offs
}

func (l *layout) basicSize(b *Basic) int64 {
	switch {
	case b.Size == -1:
		return l.WordSize
	case b.Size == -2:
		return 2 * l.WordSize
	case b.Flags&BasicUntyped != 0:
		if d := Default(b); d != Type(b) {
			return l.sizeOf(d)
		}
		return 0
	}
	return b.Size
}

func (l *layout) alignOf(t Type) int64 {
	return mathutil.ClampInt64(l.rawAlignOf(t), 1, l.MaxAlign)
}

func (l *layout) rawAlignOf(t Type) int64 {
	switch b := Base(t).(type) {
	case *Basic:
		switch b.Kind {
		case String, Any:
			return l.WordSize
		case Complex64, Complex128:
			return l.basicSize(b) / 2
		}
		return l.basicSize(b)
	case *Pointer, *Proc, *Slice, *DynamicArray, *Map:
		return l.WordSize
	case *Array:
		return l.alignOf(b.Elem)
	case *Vector:
		return NextPow2(l.sizeOf(b))
	case *Enum:
		return l.alignOf(b.Base)
	case *Tuple:
		var max int64 = 1
		for _, v := range b.Vars {
			max = mathutil.MaxInt64(max, l.alignOf(v.Type))
		}
		return max
	case *Record:
		if b.CustomAlign > 0 {
			return b.CustomAlign
		}
		if b.Packed && b.Kind == RecordStruct {
			return 1
		}
		if l.path[b] {
			return 1
		}
		l.path[b] = true
		defer delete(l.path, b)
		var max int64 = 1
		if b.Kind == RecordUnion {
			max = l.WordSize
			for _, v := range b.Variants {
				if v.Type != nil {
					max = mathutil.MaxInt64(max, l.alignOf(v.Type))
				}
			}
		}
		for _, f := range b.Fields {
			max = mathutil.MaxInt64(max, l.alignOf(f.Type))
		}
		return max
	}
	return 1
}

func (l *layout) sizeOf(t Type) int64 {
	switch b := Base(t).(type) {
	case *Basic:
		return l.basicSize(b)
	case *Pointer, *Proc:
		return l.WordSize
	case *Slice:
		return 3 * l.WordSize
	case *DynamicArray:
		return 4 * l.WordSize
	case *Map:
		return l.sizeOf(b.Generated)
	case *Enum:
		return l.sizeOf(b.Base)
	case *Array:
		if b.Count <= 0 {
			return 0
		}
		size := l.sizeOf(b.Elem)
		return AlignTo(size, l.alignOf(b.Elem))*(b.Count-1) + size
	case *Vector:
		if b.Count <= 0 {
			return 0
		}
		return b.Count * l.sizeOf(b.Elem)
	case *Tuple:
		var cur, max int64 = 0, 1
		for _, v := range b.Vars {
			a := l.alignOf(v.Type)
			max = mathutil.MaxInt64(max, a)
			cur = AlignTo(cur, a) + l.sizeOf(v.Type)
		}
		return AlignTo(cur, max)
	case *Record:
		return l.recordSize(b)
	}
	return 0
}

func (l *layout) recordSize(r *Record) int64 {
	if l.path[r] {
		return 0
	}
	align := l.alignOf(r)
	l.path[r] = true
	defer delete(l.path, r)

	switch r.Kind {
	case RecordStruct:
		n := len(r.Fields)
		if n == 0 {
			return 0
		}
		offs := l.offsets(r)
		return AlignTo(offs[n-1]+l.sizeOf(r.Fields[n-1].Type), align)
	case RecordUnion:
		var payload int64
		if n := len(r.Fields); n > 0 {
			offs := l.offsets(r)
			payload = offs[n-1] + l.sizeOf(r.Fields[n-1].Type)
		}
		for _, v := range r.Variants {
			if v.Type != nil {
				payload = mathutil.MaxInt64(payload, l.sizeOf(v.Type))
			}
		}
		return AlignTo(AlignTo(payload, l.WordSize)+l.WordSize, align)
	case RecordRawUnion:
		var max int64
		for _, f := range r.Fields {
			max = mathutil.MaxInt64(max, l.sizeOf(f.Type))
		}
		return AlignTo(max, align)
	}
	return 0
}

func (l *layout) offsets(r *Record) []int64 {
	offs := make([]int64, len(r.Fields))
	if r.Kind == RecordRawUnion {
		return offs
	}
	var cur int64
	for i, f := range r.Fields {
		if !r.Packed {
			cur = AlignTo(cur, l.alignOf(f.Type))
		}
		offs[i] = cur
		cur += l.sizeOf(f.Type)
	}
	return offs
}

// ReorderFields sorts r's layout order by using-ness, alignment and size,
// all descending, with declaration order breaking ties. Packed and ordered
// records keep declaration order. Field indices are renumbered to the new
// positions and cached offsets are dropped.
func ReorderFields(r *Record, s Sizes) {
	r.offsetsSet = false
	fields := slices.Clone(r.FieldsInSrcOrder)
	if !r.Packed && !r.Ordered {
		l := s.layout()
		slices.SortStableFunc(fields, func(x, y *Entity) int {
			if xu, yu := x.Is(FlagUsing), y.Is(FlagUsing); xu != yu {
				if xu {
					return -1
				}
				return 1
			}
			if c := cmp.Compare(l.alignOf(y.Type), l.alignOf(x.Type)); c != 0 {
				return c
			}
			if c := cmp.Compare(l.sizeOf(y.Type), l.sizeOf(x.Type)); c != 0 {
				return c
			}
			return cmp.Compare(x.FieldSrcIndex, y.FieldSrcIndex)
		})
	}
	for i, f := range fields {
		f.FieldIndex = i
	}
	r.Fields = fields
}
