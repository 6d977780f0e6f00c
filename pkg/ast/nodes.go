package ast

import "github.com/xplshn/odinc/pkg/token"

// --- Node Constructors ---

func newNode(tok token.Token, nodeType NodeType, data Data, children ...*Node) *Node {
	node := &Node{Type: nodeType, Tok: tok, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func adopt(parent *Node, lists ...[]*Node) *Node {
	for _, list := range lists {
		for _, n := range list {
			if n != nil {
				n.Parent = parent
			}
		}
	}
	return parent
}

func NewBadExpr(tok token.Token) *Node { return newNode(tok, BadExpr, BadExprNode{}) }
func NewIdent(tok token.Token, name string) *Node {
	return newNode(tok, Ident, IdentNode{Name: name})
}
func NewImplicit(tok token.Token, name string) *Node {
	return newNode(tok, Implicit, ImplicitNode{Name: name})
}
func NewBasicLit(tok token.Token, kind token.Type, value string) *Node {
	return newNode(tok, BasicLit, BasicLitNode{Kind: kind, Value: value})
}
func NewBasicDirective(tok token.Token, name string) *Node {
	return newNode(tok, BasicDirective, BasicDirectiveNode{Name: name})
}
func NewProcLit(tok token.Token, typ, body *Node, tags ProcTag) *Node {
	return newNode(tok, ProcLit, ProcLitNode{Type: typ, Body: body, Tags: tags}, typ, body)
}
func NewCompoundLit(tok token.Token, typ *Node, elems []*Node) *Node {
	return adopt(newNode(tok, CompoundLit, CompoundLitNode{Type: typ, Elems: elems}, typ), elems)
}
func NewEllipsis(tok token.Token, expr *Node) *Node {
	return newNode(tok, Ellipsis, EllipsisNode{Expr: expr}, expr)
}
func NewFieldValue(tok token.Token, field, value *Node) *Node {
	return newNode(tok, FieldValue, FieldValueNode{Field: field, Value: value}, field, value)
}
func NewUnaryExpr(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, UnaryExpr, UnaryExprNode{Op: op, Expr: expr}, expr)
}
func NewDerefExpr(tok token.Token, expr *Node) *Node {
	return newNode(tok, DerefExpr, DerefExprNode{Expr: expr}, expr)
}
func NewBinaryExpr(tok token.Token, op token.Type, left, right *Node) *Node {
	return newNode(tok, BinaryExpr, BinaryExprNode{Op: op, Left: left, Right: right}, left, right)
}
func NewParenExpr(tok token.Token, expr *Node) *Node {
	return newNode(tok, ParenExpr, ParenExprNode{Expr: expr}, expr)
}
func NewTernaryExpr(tok token.Token, cond, x, y *Node) *Node {
	return newNode(tok, TernaryExpr, TernaryExprNode{Cond: cond, X: x, Y: y}, cond, x, y)
}
func NewSelectorExpr(tok token.Token, expr, selector *Node) *Node {
	return newNode(tok, SelectorExpr, SelectorExprNode{Expr: expr, Selector: selector}, expr, selector)
}
func NewTypeAssertion(tok token.Token, expr, typ *Node) *Node {
	return newNode(tok, TypeAssertion, TypeAssertionNode{Expr: expr, Type: typ}, expr, typ)
}
func NewIndexExpr(tok token.Token, expr, index *Node) *Node {
	return newNode(tok, IndexExpr, IndexExprNode{Expr: expr, Index: index}, expr, index)
}

// NewSliceExpr builds a[lo..hi] when max is nil, a[lo..hi..max] otherwise.
// Both interval separators default to `..`.
func NewSliceExpr(tok token.Token, expr, low, high, max *Node) *Node {
	sep := token.New(token.Dots, "..")
	d := SliceExprNode{Expr: expr, Low: low, High: high, Max: max, Index3: max != nil, Interval0: sep, Interval1: sep}
	return newNode(tok, SliceExpr, d, expr, low, high, max)
}
func NewCallExpr(tok token.Token, proc *Node, args []*Node) *Node {
	return adopt(newNode(tok, CallExpr, CallExprNode{Proc: proc, Args: args}, proc), args)
}

// NewVariadicCall builds `proc(args..)`, expanding the last argument.
func NewVariadicCall(tok token.Token, proc *Node, args []*Node) *Node {
	n := NewCallExpr(tok, proc, args)
	d := n.Data.(CallExprNode)
	d.Ellipsis = token.New(token.Dots, "..")
	n.Data = d
	return n
}

func NewHelperType(tok token.Token, typ *Node) *Node {
	return newNode(tok, HelperType, HelperTypeNode{Type: typ}, typ)
}
func NewPointerType(tok token.Token, typ *Node) *Node {
	return newNode(tok, PointerType, PointerTypeNode{Type: typ}, typ)
}
func NewArrayType(tok token.Token, count, elem *Node) *Node {
	return newNode(tok, ArrayType, ArrayTypeNode{Count: count, Elem: elem}, count, elem)
}
func NewDynamicArrayType(tok token.Token, elem *Node) *Node {
	return newNode(tok, DynamicArrayType, DynamicArrayTypeNode{Elem: elem}, elem)
}
func NewVectorType(tok token.Token, count, elem *Node) *Node {
	return newNode(tok, VectorType, VectorTypeNode{Count: count, Elem: elem}, count, elem)
}
func NewMapType(tok token.Token, count, key, value *Node) *Node {
	return newNode(tok, MapType, MapTypeNode{Count: count, Key: key, Value: value}, count, key, value)
}
func NewProcType(tok token.Token, params, results []*Node, cc CallingConvention) *Node {
	return adopt(newNode(tok, ProcType, ProcTypeNode{Params: params, Results: results, CC: cc}), params, results)
}
func NewStructType(tok token.Token, fields []*Node, packed, ordered bool, align *Node) *Node {
	d := StructTypeNode{Fields: fields, Packed: packed, Ordered: ordered, Align: align}
	return adopt(newNode(tok, StructType, d, align), fields)
}
func NewUnionType(tok token.Token, fields, variants []*Node) *Node {
	return adopt(newNode(tok, UnionType, UnionTypeNode{Fields: fields, Variants: variants}), fields, variants)
}
func NewRawUnionType(tok token.Token, fields []*Node) *Node {
	return adopt(newNode(tok, RawUnionType, RawUnionTypeNode{Fields: fields}), fields)
}
func NewEnumType(tok token.Token, base *Node, fields []*Node) *Node {
	return adopt(newNode(tok, EnumType, EnumTypeNode{Base: base, Fields: fields}, base), fields)
}
func NewField(tok token.Token, names []*Node, typ *Node, flags FieldFlag) *Node {
	return adopt(newNode(tok, Field, FieldNode{Names: names, Type: typ, Flags: flags}, typ), names)
}
func NewUnionField(tok token.Token, name *Node, fields []*Node) *Node {
	return adopt(newNode(tok, UnionField, UnionFieldNode{Name: name, Fields: fields}, name), fields)
}

func NewEmptyStmt(tok token.Token) *Node { return newNode(tok, EmptyStmt, EmptyStmtNode{}) }
func NewExprStmt(tok token.Token, expr *Node) *Node {
	return newNode(tok, ExprStmt, ExprStmtNode{Expr: expr}, expr)
}
func NewAssignStmt(tok token.Token, op token.Type, lhs, rhs []*Node) *Node {
	return adopt(newNode(tok, AssignStmt, AssignStmtNode{Op: op, Lhs: lhs, Rhs: rhs}), lhs, rhs)
}
func NewIncDecStmt(tok token.Token, op token.Type, expr *Node) *Node {
	return newNode(tok, IncDecStmt, IncDecStmtNode{Op: op, Expr: expr}, expr)
}
func NewBlockStmt(tok token.Token, stmts []*Node) *Node {
	return adopt(newNode(tok, BlockStmt, BlockStmtNode{Stmts: stmts}), stmts)
}
func NewIfStmt(tok token.Token, init, cond, body, els *Node) *Node {
	return newNode(tok, IfStmt, IfStmtNode{Init: init, Cond: cond, Body: body, Else: els}, init, cond, body, els)
}
func NewForStmt(tok token.Token, init, cond, post, body *Node) *Node {
	return newNode(tok, ForStmt, ForStmtNode{Init: init, Cond: cond, Post: post, Body: body}, init, cond, post, body)
}
func NewReturnStmt(tok token.Token, results []*Node) *Node {
	return adopt(newNode(tok, ReturnStmt, ReturnStmtNode{Results: results}), results)
}
func NewBranchStmt(tok token.Token, kind token.Type) *Node {
	return newNode(tok, BranchStmt, BranchStmtNode{Kind: kind})
}
func NewDeferStmt(tok token.Token, stmt *Node) *Node {
	return newNode(tok, DeferStmt, DeferStmtNode{Stmt: stmt}, stmt)
}

func NewValueDecl(tok token.Token, names []*Node, typ *Node, values []*Node, mutable bool) *Node {
	d := ValueDeclNode{Names: names, Type: typ, Values: values, Mutable: mutable}
	return adopt(newNode(tok, ValueDecl, d, typ), names, values)
}
func NewImportDecl(tok token.Token, path string, name *Node, isDot bool) *Node {
	return newNode(tok, ImportDecl, ImportDeclNode{Path: path, Name: name, IsDot: isDot}, name)
}
func NewForeignLibrary(tok token.Token, path string, name *Node) *Node {
	return newNode(tok, ForeignLibrary, ForeignLibraryNode{Path: path, Name: name}, name)
}
