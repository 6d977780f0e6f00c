// Package ast defines the types used to represent the Abstract Syntax Tree (AST)
package ast

import (
	"github.com/xplshn/odinc/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	BadExpr NodeType = iota
	Ident
	Implicit
	BasicLit
	BasicDirective
	ProcLit
	CompoundLit
	Ellipsis
	FieldValue
	UnaryExpr
	DerefExpr
	BinaryExpr
	ParenExpr
	TernaryExpr
	SelectorExpr
	TypeAssertion
	IndexExpr
	SliceExpr
	CallExpr

	// Types
	HelperType
	PointerType
	ArrayType
	DynamicArrayType
	VectorType
	MapType
	ProcType
	StructType
	UnionType
	RawUnionType
	EnumType
	Field
	UnionField

	// Statements
	EmptyStmt
	ExprStmt
	AssignStmt
	IncDecStmt
	BlockStmt
	IfStmt
	ForStmt
	ReturnStmt
	BranchStmt
	DeferStmt

	// Declarations
	ValueDecl
	ImportDecl
	ForeignLibrary
)

// Node represents a node in the Abstract Syntax Tree. A node's address is its
// identity: the checker keys every annotation table on *Node.
type Node struct {
	Type   NodeType
	Tok    token.Token
	Parent *Node
	Data   Data
}

// Data is the closed set of node payloads. Only this package implements it.
type Data interface{ isData() }

type FieldFlag uint8

const (
	FieldUsing FieldFlag = 1 << iota
	FieldImmutable
	FieldNoAlias
	FieldEllipsis
)

type ProcTag uint16

const (
	ProcInline ProcTag = 1 << iota
	ProcNoInline
	ProcForeign
	ProcLinkName
	ProcBoundsCheck
	ProcNoBoundsCheck
)

type CallingConvention int

const (
	CCOdin CallingConvention = iota
	CCC
	CCStd
	CCFast
)

// --- Node Data Structs ---
type BadExprNode struct{}
type IdentNode struct{ Name string }
type ImplicitNode struct{ Name string }
type BasicLitNode struct{ Kind token.Type; Value string }
type BasicDirectiveNode struct{ Name string }
type ProcLitNode struct{ Type, Body *Node; Tags ProcTag; LinkName string }
type CompoundLitNode struct{ Type *Node; Elems []*Node }
type EllipsisNode struct{ Expr *Node }
type FieldValueNode struct{ Field, Value *Node }
type UnaryExprNode struct{ Op token.Type; Expr *Node }
type DerefExprNode struct{ Expr *Node }
type BinaryExprNode struct{ Op token.Type; Left, Right *Node }
type ParenExprNode struct{ Expr *Node }
type TernaryExprNode struct{ Cond, X, Y *Node }
type SelectorExprNode struct{ Expr, Selector *Node }
type TypeAssertionNode struct{ Expr, Type *Node }
type IndexExprNode struct{ Expr, Index *Node }
type SliceExprNode struct {
	Expr           *Node
	Low, High, Max *Node
	Index3         bool
	Interval0      token.Token
	Interval1      token.Token
}
type CallExprNode struct {
	Proc     *Node
	Args     []*Node
	Ellipsis token.Token // Type is token.Dots when the last argument is expanded
}

type HelperTypeNode struct{ Type *Node }
type PointerTypeNode struct{ Type *Node }
type ArrayTypeNode struct{ Count, Elem *Node } // Count nil means a slice, an Ellipsis means an inferred count
type DynamicArrayTypeNode struct{ Elem *Node }
type VectorTypeNode struct{ Count, Elem *Node }
type MapTypeNode struct{ Count, Key, Value *Node }
type ProcTypeNode struct {
	Params, Results []*Node
	CC              CallingConvention
}
type StructTypeNode struct {
	Fields          []*Node
	Packed, Ordered bool
	Align           *Node
}
type UnionTypeNode struct{ Fields, Variants []*Node }
type RawUnionTypeNode struct{ Fields []*Node }
type EnumTypeNode struct{ Base *Node; Fields []*Node }
type FieldNode struct {
	Names []*Node
	Type  *Node
	Flags FieldFlag
}
type UnionFieldNode struct{ Name *Node; Fields []*Node }

type EmptyStmtNode struct{}
type ExprStmtNode struct{ Expr *Node }
type AssignStmtNode struct{ Op token.Type; Lhs, Rhs []*Node }
type IncDecStmtNode struct{ Op token.Type; Expr *Node }
type BlockStmtNode struct {
	Stmts         []*Node
	NoBoundsCheck bool
}
type IfStmtNode struct{ Init, Cond, Body, Else *Node }
type ForStmtNode struct{ Init, Cond, Post, Body *Node }
type ReturnStmtNode struct{ Results []*Node }
type BranchStmtNode struct{ Kind token.Type }
type DeferStmtNode struct{ Stmt *Node }

// ValueDeclNode covers `x: T = v`, `x := v` (Mutable) and `X :: v`.
type ValueDeclNode struct {
	Names   []*Node
	Type    *Node
	Values  []*Node
	Mutable bool
}
type ImportDeclNode struct {
	Path  string
	Name  *Node // nil imports under the file's base name
	IsDot bool  // `#import . "path"` re-exports into the importing file
}
type ForeignLibraryNode struct{ Path string; Name *Node }

func (BadExprNode) isData()          {}
func (IdentNode) isData()            {}
func (ImplicitNode) isData()         {}
func (BasicLitNode) isData()         {}
func (BasicDirectiveNode) isData()   {}
func (ProcLitNode) isData()          {}
func (CompoundLitNode) isData()      {}
func (EllipsisNode) isData()         {}
func (FieldValueNode) isData()       {}
func (UnaryExprNode) isData()        {}
func (DerefExprNode) isData()        {}
func (BinaryExprNode) isData()       {}
func (ParenExprNode) isData()        {}
func (TernaryExprNode) isData()      {}
func (SelectorExprNode) isData()     {}
func (TypeAssertionNode) isData()    {}
func (IndexExprNode) isData()        {}
func (SliceExprNode) isData()        {}
func (CallExprNode) isData()         {}
func (HelperTypeNode) isData()       {}
func (PointerTypeNode) isData()      {}
func (ArrayTypeNode) isData()        {}
func (DynamicArrayTypeNode) isData() {}
func (VectorTypeNode) isData()       {}
func (MapTypeNode) isData()          {}
func (ProcTypeNode) isData()         {}
func (StructTypeNode) isData()       {}
func (UnionTypeNode) isData()        {}
func (RawUnionTypeNode) isData()     {}
func (EnumTypeNode) isData()         {}
func (FieldNode) isData()            {}
func (UnionFieldNode) isData()       {}
func (EmptyStmtNode) isData()        {}
func (ExprStmtNode) isData()         {}
func (AssignStmtNode) isData()       {}
func (IncDecStmtNode) isData()       {}
func (BlockStmtNode) isData()        {}
func (IfStmtNode) isData()           {}
func (ForStmtNode) isData()          {}
func (ReturnStmtNode) isData()       {}
func (BranchStmtNode) isData()       {}
func (DeferStmtNode) isData()        {}
func (ValueDeclNode) isData()        {}
func (ImportDeclNode) isData()       {}
func (ForeignLibraryNode) isData()   {}

// File is one parsed source file handed over by the parser.
type File struct {
	Path  string
	Index int // Matches token.Token.FileIndex
	Decls []*Node
}

// IsExpr reports whether n is an expression or type expression node.
func (n *Node) IsExpr() bool { return n != nil && n.Type <= UnionField }

// IsStmt reports whether n is a statement or declaration node.
func (n *Node) IsStmt() bool { return n != nil && n.Type >= EmptyStmt }

// IsType reports whether n is syntactically a type expression.
func (n *Node) IsType() bool { return n != nil && n.Type >= HelperType && n.Type <= EnumType }

// Unparen strips any number of enclosing parentheses.
func Unparen(n *Node) *Node {
	for n != nil && n.Type == ParenExpr {
		n = n.Data.(ParenExprNode).Expr
	}
	return n
}

// IdentName returns the identifier's name, or "" when n is not an identifier.
func IdentName(n *Node) string {
	if n == nil || n.Type != Ident {
		return ""
	}
	return n.Data.(IdentNode).Name
}

// IsBlank reports whether n is the blank identifier `_`.
func IsBlank(n *Node) bool { return IdentName(n) == "_" }
