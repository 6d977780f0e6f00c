package types

import (
	"fmt"
	"strings"

	"github.com/xplshn/odinc/pkg/ast"
)

func (t *Basic) String() string { return t.Name }

func (t *Named) String() string { return t.Name }

func (t *Pointer) String() string      { return "^" + typeString(t.Elem) }
func (t *Array) String() string        { return fmt.Sprintf("[%d]%s", t.Count, typeString(t.Elem)) }
func (t *Slice) String() string        { return "[]" + typeString(t.Elem) }
func (t *DynamicArray) String() string { return "[dynamic]" + typeString(t.Elem) }
func (t *Vector) String() string       { return fmt.Sprintf("[vector %d]%s", t.Count, typeString(t.Elem)) }

func (t *Map) String() string {
	if t.Count > 0 {
		return fmt.Sprintf("map[%d, %s]%s", t.Count, typeString(t.Key), typeString(t.Value))
	}
	return fmt.Sprintf("map[%s]%s", typeString(t.Key), typeString(t.Value))
}

func typeString(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func writeFields(sb *strings.Builder, fields []*Entity, sep string) {
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(sep)
		}
		if f.Is(FlagUsing) {
			sb.WriteString("using ")
		}
		if f.Name != "" {
			sb.WriteString(f.Name)
			sb.WriteString(": ")
		}
		sb.WriteString(typeString(f.Type))
	}
}

func (t *Record) String() string {
	var sb strings.Builder
	switch t.Kind {
	case RecordStruct:
		sb.WriteString("struct")
		if t.Packed {
			sb.WriteString(" #packed")
		}
		if t.Ordered {
			sb.WriteString(" #ordered")
		}
		if t.CustomAlign > 0 {
			fmt.Fprintf(&sb, " #align %d", t.CustomAlign)
		}
	case RecordUnion:
		sb.WriteString("union")
	case RecordRawUnion:
		sb.WriteString("raw_union")
	}
	sb.WriteString(" {")
	writeFields(&sb, t.FieldsInSrcOrder, ", ")
	if t.Kind == RecordUnion {
		for _, v := range t.Variants {
			if v.Name == "" {
				continue
			}
			if sb.Len() > len("union {") {
				sb.WriteString(", ")
			}
			sb.WriteString(v.Name)
			sb.WriteString("{...}")
		}
	}
	sb.WriteString("}")
	return sb.String()
}

func (t *Enum) String() string {
	var sb strings.Builder
	sb.WriteString("enum ")
	sb.WriteString(typeString(t.Base))
	sb.WriteString(" {")
	for i, f := range t.Fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
	}
	sb.WriteString("}")
	return sb.String()
}

func (t *Tuple) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	if t != nil {
		writeFields(&sb, t.Vars, ", ")
	}
	sb.WriteString(")")
	return sb.String()
}

func (t *Proc) String() string {
	var sb strings.Builder
	sb.WriteString("proc")
	switch t.CC {
	case ast.CCC:
		sb.WriteString(` "c"`)
	case ast.CCStd:
		sb.WriteString(` "std"`)
	case ast.CCFast:
		sb.WriteString(` "fast"`)
	}
	sb.WriteString("(")
	if t.Params != nil {
		for i, p := range t.Params.Vars {
			if i > 0 {
				sb.WriteString(", ")
			}
			if p.Name != "" {
				sb.WriteString(p.Name)
				sb.WriteString(": ")
			}
			if t.Variadic && i == len(t.Params.Vars)-1 {
				if s, ok := p.Type.(*Slice); ok {
					sb.WriteString("..")
					sb.WriteString(typeString(s.Elem))
					continue
				}
			}
			sb.WriteString(typeString(p.Type))
		}
	}
	sb.WriteString(")")
	switch t.ResultCount() {
	case 0:
	case 1:
		if t.Results.Vars[0].Name == "" {
			sb.WriteString(" -> ")
			sb.WriteString(typeString(t.Results.At(0)))
			break
		}
		fallthrough
	default:
		sb.WriteString(" -> ")
		sb.WriteString(t.Results.String())
	}
	return sb.String()
}
