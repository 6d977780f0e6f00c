package ast

import (
	"strings"

	"github.com/xplshn/odinc/pkg/token"
)

// ExprString renders an expression back to source form. Expressions built
// only from identifiers, literals, operators, selectors, indexing and calls
// re-parse to the same shape.
func ExprString(n *Node) string {
	var sb strings.Builder
	writeExpr(&sb, n)
	return sb.String()
}

func writeList(sb *strings.Builder, list []*Node) {
	for i, n := range list {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeExpr(sb, n)
	}
}

func writeExpr(sb *strings.Builder, n *Node) {
	if n == nil {
		return
	}
	switch d := n.Data.(type) {
	case IdentNode:
		sb.WriteString(d.Name)
	case ImplicitNode:
		sb.WriteString(d.Name)
	case BasicLitNode:
		sb.WriteString(d.Value)
	case BasicDirectiveNode:
		sb.WriteString("#" + d.Name)
	case ProcLitNode:
		writeExpr(sb, d.Type)
	case CompoundLitNode:
		writeExpr(sb, d.Type)
		sb.WriteString("{")
		writeList(sb, d.Elems)
		sb.WriteString("}")
	case UnaryExprNode:
		sb.WriteString(d.Op.String())
		writeExpr(sb, d.Expr)
	case DerefExprNode:
		writeExpr(sb, d.Expr)
		sb.WriteString("^")
	case BinaryExprNode:
		writeExpr(sb, d.Left)
		sb.WriteString(" " + d.Op.String() + " ")
		writeExpr(sb, d.Right)
	case ParenExprNode:
		sb.WriteString("(")
		writeExpr(sb, d.Expr)
		sb.WriteString(")")
	case TernaryExprNode:
		writeExpr(sb, d.Cond)
		sb.WriteString(" ? ")
		writeExpr(sb, d.X)
		sb.WriteString(" : ")
		writeExpr(sb, d.Y)
	case SelectorExprNode:
		writeExpr(sb, d.Expr)
		sb.WriteString(".")
		writeExpr(sb, d.Selector)
	case TypeAssertionNode:
		writeExpr(sb, d.Expr)
		sb.WriteString(".(")
		writeExpr(sb, d.Type)
		sb.WriteString(")")
	case IndexExprNode:
		writeExpr(sb, d.Expr)
		sb.WriteString("[")
		writeExpr(sb, d.Index)
		sb.WriteString("]")
	case SliceExprNode:
		writeExpr(sb, d.Expr)
		sb.WriteString("[")
		writeExpr(sb, d.Low)
		sb.WriteString(intervalString(d.Interval0))
		writeExpr(sb, d.High)
		if d.Index3 {
			sb.WriteString(intervalString(d.Interval1))
			writeExpr(sb, d.Max)
		}
		sb.WriteString("]")
	case EllipsisNode:
		sb.WriteString("..")
		writeExpr(sb, d.Expr)
	case FieldValueNode:
		writeExpr(sb, d.Field)
		sb.WriteString(" = ")
		writeExpr(sb, d.Value)
	case CallExprNode:
		writeExpr(sb, d.Proc)
		sb.WriteString("(")
		writeList(sb, d.Args)
		if d.Ellipsis.Value != "" {
			sb.WriteString("..")
		}
		sb.WriteString(")")

	case HelperTypeNode:
		sb.WriteString("#type ")
		writeExpr(sb, d.Type)
	case PointerTypeNode:
		sb.WriteString("^")
		writeExpr(sb, d.Type)
	case ArrayTypeNode:
		sb.WriteString("[")
		if d.Count != nil && d.Count.Type == Ellipsis {
			sb.WriteString("..")
		} else {
			writeExpr(sb, d.Count)
		}
		sb.WriteString("]")
		writeExpr(sb, d.Elem)
	case DynamicArrayTypeNode:
		sb.WriteString("[dynamic]")
		writeExpr(sb, d.Elem)
	case VectorTypeNode:
		sb.WriteString("[vector ")
		writeExpr(sb, d.Count)
		sb.WriteString("]")
		writeExpr(sb, d.Elem)
	case MapTypeNode:
		sb.WriteString("map[")
		if d.Count != nil {
			writeExpr(sb, d.Count)
			sb.WriteString(", ")
		}
		writeExpr(sb, d.Key)
		sb.WriteString("]")
		writeExpr(sb, d.Value)
	case FieldNode:
		if d.Flags&FieldUsing != 0 {
			sb.WriteString("using ")
		}
		if d.Flags&FieldImmutable != 0 {
			sb.WriteString("immutable ")
		}
		if d.Flags&FieldNoAlias != 0 {
			sb.WriteString("no_alias ")
		}
		writeList(sb, d.Names)
		if len(d.Names) > 0 {
			sb.WriteString(": ")
		}
		if d.Flags&FieldEllipsis != 0 {
			sb.WriteString("..")
		}
		writeExpr(sb, d.Type)
	case UnionFieldNode:
		writeExpr(sb, d.Name)
		sb.WriteString("{")
		writeList(sb, d.Fields)
		sb.WriteString("}")
	case ProcTypeNode:
		sb.WriteString("proc(")
		writeList(sb, d.Params)
		sb.WriteString(")")
		if len(d.Results) > 0 {
			sb.WriteString(" -> ")
			if len(d.Results) > 1 {
				sb.WriteString("(")
			}
			writeList(sb, d.Results)
			if len(d.Results) > 1 {
				sb.WriteString(")")
			}
		}
	case StructTypeNode:
		sb.WriteString("struct ")
		if d.Packed {
			sb.WriteString("#packed ")
		}
		if d.Ordered {
			sb.WriteString("#ordered ")
		}
		sb.WriteString("{")
		writeList(sb, d.Fields)
		sb.WriteString("}")
	case UnionTypeNode:
		sb.WriteString("union {")
		writeList(sb, d.Fields)
		if len(d.Fields) > 0 && len(d.Variants) > 0 {
			sb.WriteString(", ")
		}
		writeList(sb, d.Variants)
		sb.WriteString("}")
	case RawUnionTypeNode:
		sb.WriteString("raw_union {")
		writeList(sb, d.Fields)
		sb.WriteString("}")
	case EnumTypeNode:
		sb.WriteString("enum ")
		if d.Base != nil {
			writeExpr(sb, d.Base)
			sb.WriteString(" ")
		}
		sb.WriteString("{")
		writeList(sb, d.Fields)
		sb.WriteString("}")
	default:
		sb.WriteString("(BadExpr)")
	}
}

func intervalString(tok token.Token) string {
	if tok.Value != "" {
		return tok.Value
	}
	return ".."
}
