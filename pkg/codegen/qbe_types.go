package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xplshn/odinc/pkg/types"
)

// repr describes how values of a type live in QBE. Aggregates are always
// handled through the address of their memory, so their class is the word
// class.
type repr struct {
	class  string
	size   int64
	align  int64
	agg    bool
	float  bool
	signed bool
}

func (b *qbeBackend) repr(t types.Type) repr {
	r := repr{size: b.sizes.SizeOf(t), align: b.sizes.AlignOf(t)}
	c := types.Core(t)
	switch {
	case types.IsFloat(c):
		r.float = true
		r.class = "d"
		if r.size == 4 {
			r.class = "s"
		}
	case (types.IsInteger(c) || types.IsBoolean(c)) && r.size <= 8:
		r.signed = !types.IsUnsigned(c) && !types.IsBoolean(c)
		r.class = "w"
		if r.size == 8 {
			r.class = "l"
		}
	case types.IsPointer(c) || types.IsProc(c) || types.IsUntypedNil(c):
		r.class = b.cfg.WordType
	default:
		r.agg = true
		r.class = b.cfg.WordType
	}
	return r
}

// memSuffix is the width letter used by stores and data items.
func (r repr) memSuffix() string {
	switch {
	case r.float:
		return r.class
	case r.size == 1:
		return "b"
	case r.size == 2:
		return "h"
	case r.size == 4:
		return "w"
	}
	return "l"
}

func (r repr) loadOp() string {
	sign := "u"
	if r.signed {
		sign = "s"
	}
	switch {
	case r.float:
		return "load" + r.class
	case r.size == 1:
		return "load" + sign + "b"
	case r.size == 2:
		return "load" + sign + "h"
	case r.size == 4:
		return "loadw"
	}
	return "loadl"
}

func allocOp(align int64) string {
	switch {
	case align <= 4:
		return "alloc4"
	case align <= 8:
		return "alloc8"
	}
	return "alloc16"
}

// abiType returns the name of the QBE aggregate type describing t, defining
// it on first use.
func (b *qbeBackend) abiType(t types.Type) string {
	key := t.String()
	if name, ok := b.aggTypes[key]; ok {
		return name
	}
	name := fmt.Sprintf(":t%d", len(b.aggTypes))
	b.aggTypes[key] = name

	r := b.repr(t)
	items := b.layoutItems(t)
	if items == nil {
		fmt.Fprintf(b.typedefs, "type %s = align %d { b %d }\n", name, r.align, r.size)
		return name
	}
	fmt.Fprintf(b.typedefs, "type %s = align %d { %s }\n", name, r.align, strings.Join(items, ", "))
	return name
}

type scalarItem struct {
	off    int64
	suffix string
	size   int64
}

// layoutItems flattens t into QBE field items with explicit padding. Unions
// have no flat layout and yield nil.
func (b *qbeBackend) layoutItems(t types.Type) []string {
	var flat []scalarItem
	if !b.flatten(t, 0, &flat) {
		return nil
	}
	sort.SliceStable(flat, func(i, j int) bool { return flat[i].off < flat[j].off })

	var items []string
	var cur int64
	for _, it := range flat {
		if it.off < cur {
			return nil
		}
		if it.off > cur {
			items = append(items, fmt.Sprintf("b %d", it.off-cur))
		}
		items = append(items, it.suffix)
		cur = it.off + it.size
	}
	if size := b.sizes.SizeOf(t); size > cur {
		items = append(items, fmt.Sprintf("b %d", size-cur))
	}
	return items
}

func (b *qbeBackend) flatten(t types.Type, off int64, out *[]scalarItem) bool {
	if r := b.repr(t); !r.agg {
		*out = append(*out, scalarItem{off: off, suffix: r.memSuffix(), size: r.size})
		return true
	}
	switch u := types.Base(t).(type) {
	case *types.Record:
		if u.Kind != types.RecordStruct {
			return false
		}
		for i, f := range u.Fields {
			if !b.flatten(f.Type, off+b.sizes.OffsetOf(u, i), out) {
				return false
			}
		}
		return true
	case *types.Tuple:
		for i := 0; i < u.Len(); i++ {
			if !b.flatten(u.At(i), off+b.sizes.OffsetOf(u, i), out) {
				return false
			}
		}
		return true
	case *types.Array:
		stride := types.AlignTo(b.sizes.SizeOf(u.Elem), b.sizes.AlignOf(u.Elem))
		for i := int64(0); i < u.Count; i++ {
			if !b.flatten(u.Elem, off+i*stride, out) {
				return false
			}
		}
		return true
	case *types.Vector:
		stride := b.sizes.SizeOf(u.Elem)
		for i := int64(0); i < u.Count; i++ {
			if !b.flatten(u.Elem, off+i*stride, out) {
				return false
			}
		}
		return true
	}
	if fields := headerFields(t); fields > 0 {
		for i := 0; i < fields; i++ {
			*out = append(*out, scalarItem{off: off + int64(i)*b.sizes.WordSize, suffix: b.cfg.WordType, size: b.sizes.WordSize})
		}
		return true
	}
	return false
}

// headerFields is the number of word-sized fields in the header of strings,
// `any`, slices and dynamic arrays.
func headerFields(t types.Type) int {
	switch types.Base(t).(type) {
	case *types.Slice:
		return 3
	case *types.DynamicArray:
		return 4
	}
	if types.IsString(t) || types.IsAny(t) {
		return 2
	}
	return 0
}

// fieldOffset is the byte offset of field i of an aggregate of type t.
func (b *qbeBackend) fieldOffset(t types.Type, i int) int64 {
	switch u := types.Base(t).(type) {
	case *types.Record, *types.Tuple:
		return b.sizes.OffsetOf(u, i)
	case *types.Array:
		return int64(i) * types.AlignTo(b.sizes.SizeOf(u.Elem), b.sizes.AlignOf(u.Elem))
	case *types.Vector:
		return int64(i) * b.sizes.SizeOf(u.Elem)
	}
	return int64(i) * b.sizes.WordSize
}
