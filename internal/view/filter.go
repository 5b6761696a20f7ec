package view

import (
	"slices"

	"codescape/internal/domain"
)

// TypeSet is the set of enabled node types. The empty set enables every type.
type TypeSet map[domain.NodeType]bool

// NewTypeSet builds a set from types, ignoring invalid ones
func NewTypeSet(types ...domain.NodeType) TypeSet {
	s := make(TypeSet, len(types))
	for _, t := range types {
		if t.Valid() {
			s[t] = true
		}
	}
	return s
}

// Allows reports whether nodes of type t pass the filter
func (s TypeSet) Allows(t domain.NodeType) bool {
	return len(s) == 0 || s[t]
}

// Toggle adds t when absent and removes it when present
func (s TypeSet) Toggle(t domain.NodeType) {
	if !t.Valid() {
		return
	}
	if s[t] {
		delete(s, t)
		return
	}
	s[t] = true
}

// List returns the enabled types in canonical order
func (s TypeSet) List() []domain.NodeType {
	out := make([]domain.NodeType, 0, len(s))
	for _, t := range domain.AllNodeTypes {
		if s[t] {
			out = append(out, t)
		}
	}
	return out
}

// Clone copies the set
func (s TypeSet) Clone() TypeSet {
	out := make(TypeSet, len(s))
	for t := range s {
		out[t] = true
	}
	return out
}

// Equal reports whether both sets enable the same types
func (s TypeSet) Equal(o TypeSet) bool {
	return slices.Equal(s.List(), o.List())
}

// Filtered is the projection of a graph through a TypeSet
type Filtered struct {
	Nodes []domain.Node
	Edges []domain.Edge
	// Visible holds the ids of Nodes
	Visible map[string]bool
}

// Filter keeps nodes whose type is enabled and edges whose both endpoints
// survive
func Filter(g *domain.Graph, enabled TypeSet) Filtered {
	f := Filtered{Visible: map[string]bool{}}
	if g == nil {
		return f
	}
	for _, n := range g.Nodes {
		if enabled.Allows(n.Type) {
			f.Nodes = append(f.Nodes, n)
			f.Visible[n.ID] = true
		}
	}
	for _, e := range g.Edges {
		if f.Visible[e.Source] && f.Visible[e.Target] {
			f.Edges = append(f.Edges, e)
		}
	}
	return f
}
