package types

import "github.com/xplshn/odinc/pkg/ast"

// ScopeID indexes a scope in its ScopeTable. Parent links are IDs, so the
// table alone owns every scope.
type ScopeID int32

const NoScope ScopeID = -1

type ScopeKind int

const (
	ScopeBlock ScopeKind = iota
	ScopeUniverse
	ScopeFile
	ScopeProc
	ScopeRecord
)

type Scope struct {
	ID        ScopeID
	Parent    ScopeID
	Kind      ScopeKind
	Node      *ast.Node
	FileIndex int
	Children  []ScopeID
	Closed    bool
	Implicit  map[*Entity]bool // Entities re-exported into a file by a `.` import

	elements map[string][]*Entity
	names    []string
}

// IsGlobal reports whether entities of this scope outlive any procedure.
func (s *Scope) IsGlobal() bool { return s.Kind == ScopeUniverse || s.Kind == ScopeFile }

// Elements returns the entities declared under name in this scope only.
func (s *Scope) Elements(name string) []*Entity { return s.elements[name] }

// Names returns the declared names in insertion order.
func (s *Scope) Names() []string { return s.names }

type ScopeTable struct {
	scopes []*Scope
}

func NewScopeTable() *ScopeTable { return &ScopeTable{} }

func (t *ScopeTable) New(parent ScopeID, kind ScopeKind, node *ast.Node) *Scope {
	s := &Scope{ID: ScopeID(len(t.scopes)), Parent: parent, Kind: kind, Node: node, FileIndex: -1, Implicit: make(map[*Entity]bool), elements: make(map[string][]*Entity)}
	if parent != NoScope {
		p := t.Get(parent)
		p.Children = append(p.Children, s.ID)
		s.FileIndex = p.FileIndex
	}
	t.scopes = append(t.scopes, s)
	return s
}

func (t *ScopeTable) Get(id ScopeID) *Scope {
	if id < 0 || int(id) >= len(t.scopes) {
		return nil
	}
	return t.scopes[id]
}

func (t *ScopeTable) Len() int { return len(t.scopes) }

// Insert declares e in scope id and returns a previously declared entity
// the new one conflicts with. Procedures may share a name to form an
// overload set.
func (t *ScopeTable) Insert(id ScopeID, e *Entity) *Entity {
	return t.insert(id, e, true)
}

// InsertImplicit makes e visible in scope id without moving it there. It
// is how a `.` import re-exports another file's entities.
func (t *ScopeTable) InsertImplicit(id ScopeID, e *Entity) *Entity {
	if prev := t.insert(id, e, false); prev != nil {
		return prev
	}
	t.Get(id).Implicit[e] = true
	return nil
}

func (t *ScopeTable) insert(id ScopeID, e *Entity, owned bool) *Entity {
	s := t.Get(id)
	if e.Name == "_" || e.Name == "" {
		if owned {
			e.Scope = id
		}
		return nil
	}
	if prev := s.elements[e.Name]; len(prev) > 0 {
		if e.Kind != EntityProcedure {
			return prev[0]
		}
		for _, p := range prev {
			if p.Kind != EntityProcedure {
				return p
			}
		}
	} else {
		s.names = append(s.names, e.Name)
	}
	if owned {
		e.Scope = id
		e.Order = len(s.elements[e.Name])
	}
	s.elements[e.Name] = append(s.elements[e.Name], e)
	return nil
}

// Lookup walks outward from scope id. A closed starting scope resolves
// nothing; enclosing scopes are searched whatever their state.
func (t *ScopeTable) Lookup(id ScopeID, name string) (*Scope, *Entity) {
	if s := t.Get(id); s == nil || s.Closed {
		return nil, nil
	}
	for s := t.Get(id); s != nil; s = t.Get(s.Parent) {
		if es := s.elements[name]; len(es) > 0 {
			return s, es[0]
		}
	}
	return nil, nil
}

// OverloadCount is the number of entities declared under name in the scope
// that declares it nearest to id.
func (t *ScopeTable) OverloadCount(id ScopeID, name string) int {
	s, _ := t.Lookup(id, name)
	if s == nil {
		return 0
	}
	return len(s.elements[name])
}

func (t *ScopeTable) Close(id ScopeID) {
	if s := t.Get(id); s != nil {
		s.Closed = true
	}
}

// Open makes a closed scope resolvable again, for procedure bodies that are
// checked after their signature.
func (t *ScopeTable) Open(id ScopeID) {
	if s := t.Get(id); s != nil {
		s.Closed = false
	}
}

// EnclosingProc returns the nearest procedure scope around id, or NoScope
// when id is not inside a procedure body.
func (t *ScopeTable) EnclosingProc(id ScopeID) ScopeID {
	for s := t.Get(id); s != nil; s = t.Get(s.Parent) {
		switch s.Kind {
		case ScopeProc:
			return s.ID
		case ScopeFile, ScopeUniverse:
			return NoScope
		}
	}
	return NoScope
}

// IsAncestor reports whether outer encloses inner (or is inner).
func (t *ScopeTable) IsAncestor(outer, inner ScopeID) bool {
	for s := t.Get(inner); s != nil; s = t.Get(s.Parent) {
		if s.ID == outer {
			return true
		}
	}
	return false
}
