package types

import (
	"strings"

	"github.com/xplshn/odinc/pkg/ast"
	"github.com/xplshn/odinc/pkg/exact"
	"github.com/xplshn/odinc/pkg/token"
)

type EntityKind int

const (
	EntityInvalid EntityKind = iota
	EntityConstant
	EntityVariable
	EntityTypeName
	EntityTypeAlias
	EntityProcedure
	EntityBuiltin
	EntityImportName
	EntityLibraryName
	EntityLabel
	EntityNil
)

func (k EntityKind) String() string {
	switch k {
	case EntityConstant: return "constant"
	case EntityVariable: return "variable"
	case EntityTypeName: return "type name"
	case EntityTypeAlias: return "type alias"
	case EntityProcedure: return "procedure"
	case EntityBuiltin: return "builtin"
	case EntityImportName: return "import name"
	case EntityLibraryName: return "library name"
	case EntityLabel: return "label"
	case EntityNil: return "nil"
	}
	return "invalid"
}

type EntityFlag uint

const (
	FlagUsed EntityFlag = 1 << iota
	FlagVisited
	FlagUsing
	FlagField
	FlagParam
	FlagEllipsis
	FlagNoAlias
	FlagTypeField
	FlagVectorElem
	FlagImplicit
	FlagImmutable
)

// Entity is a declared name. Entities live for the whole compilation; the
// checker only attaches resolved types, values and usage flags.
type Entity struct {
	Kind  EntityKind
	Flags EntityFlag
	Name  string
	Token token.Token
	Scope ScopeID
	Type  Type
	Ident *ast.Node // Declaring identifier, nil for synthesized entities
	Order int       // Declaration order, used to break overload ties

	Value exact.Value // Constants

	FieldIndex    int // Layout position for fields
	FieldSrcIndex int // Declaration position for fields

	Builtin int // Builtin procedure id

	ImportScope ScopeID // ImportName
	Path        string  // ImportName and LibraryName
}

func newEntity(kind EntityKind, name string, typ Type) *Entity {
	return &Entity{Kind: kind, Name: name, Token: token.New(token.Ident, name), Type: typ, Scope: NoScope, ImportScope: NoScope}
}

func NewConstant(name string, typ Type, v exact.Value) *Entity {
	e := newEntity(EntityConstant, name, typ)
	e.Value = v
	return e
}

func NewVariable(name string, typ Type) *Entity { return newEntity(EntityVariable, name, typ) }

func NewParam(name string, typ Type) *Entity {
	e := newEntity(EntityVariable, name, typ)
	e.Flags |= FlagParam
	return e
}

func NewField(name string, typ Type, using bool, index int) *Entity {
	e := newEntity(EntityVariable, name, typ)
	e.Flags |= FlagField
	if using {
		e.Flags |= FlagUsing
	}
	e.FieldIndex, e.FieldSrcIndex = index, index
	return e
}

func NewTypeName(name string, typ Type) *Entity  { return newEntity(EntityTypeName, name, typ) }
func NewTypeAlias(name string, typ Type) *Entity { return newEntity(EntityTypeAlias, name, typ) }
func NewProcedure(name string, typ Type) *Entity { return newEntity(EntityProcedure, name, typ) }

func NewBuiltin(name string, id int) *Entity {
	e := newEntity(EntityBuiltin, name, Typ[Invalid])
	e.Builtin = id
	return e
}

func NewImportName(name, path string, scope ScopeID) *Entity {
	e := newEntity(EntityImportName, name, Typ[Invalid])
	e.Path, e.ImportScope = path, scope
	return e
}

func NewLibraryName(name, path string) *Entity {
	e := newEntity(EntityLibraryName, name, Typ[Invalid])
	e.Path = path
	return e
}

func NewNil() *Entity { return newEntity(EntityNil, "nil", Typ[UntypedNil]) }

// WithToken positions the entity at its declaring token.
func (e *Entity) WithToken(tok token.Token) *Entity {
	e.Token = tok
	return e
}

func (e *Entity) Is(f EntityFlag) bool { return e.Flags&f != 0 }

// IsExported reports whether the name is visible outside its file.
func IsExported(name string) bool { return name != "" && !strings.HasPrefix(name, "_") }

func (e *Entity) IsExported() bool { return IsExported(e.Name) }

func (e *Entity) String() string {
	if e.Type == nil {
		return e.Name
	}
	return e.Name + ": " + e.Type.String()
}
