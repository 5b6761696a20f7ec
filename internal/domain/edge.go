package domain

import (
	"crypto/sha256"
	"fmt"
	"math"
)

// EdgeType represents the kind of relationship between two code entities
type EdgeType string

const (
	EdgeTypeCall       EdgeType = "call"
	EdgeTypeDataflow   EdgeType = "dataflow"
	EdgeTypeReference  EdgeType = "reference"
	EdgeTypeDependency EdgeType = "dependency"
	EdgeTypeDefault    EdgeType = "default"
)

// Valid reports whether t is one of the known edge types
func (t EdgeType) Valid() bool {
	switch t {
	case EdgeTypeCall, EdgeTypeDataflow, EdgeTypeReference, EdgeTypeDependency, EdgeTypeDefault:
		return true
	}
	return false
}

const (
	// DefaultStrength is the strength of an edge that does not specify one
	DefaultStrength = 1.0
	// ReferenceStrength is the strength of vulnerability reference edges
	ReferenceStrength = 1.2
)

// Edge represents a directed relationship between two nodes
type Edge struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	Type     EdgeType `json:"type"`
	Strength float64  `json:"strength"`
}

// NewEdge creates a new edge. An unknown type becomes EdgeTypeDefault and a
// negative strength is clamped to zero. An empty id is generated from the
// endpoints.
func NewEdge(id, source, target string, edgeType EdgeType, strength float64) *Edge {
	if !edgeType.Valid() {
		edgeType = EdgeTypeDefault
	}
	edge := &Edge{
		ID:       id,
		Source:   source,
		Target:   target,
		Type:     edgeType,
		Strength: ClampStrength(strength),
	}
	if edge.ID == "" {
		edge.ID = edge.GenerateID()
	}
	return edge
}

// ClampStrength returns strength, or zero if it is negative, NaN or infinite
func ClampStrength(strength float64) float64 {
	if !(strength >= 0) || math.IsInf(strength, 1) {
		return 0
	}
	return strength
}

// GenerateID creates a deterministic ID for the edge based on its endpoints.
// Direction is significant: A->B and B->A get different ids.
func (e *Edge) GenerateID() string {
	key := fmt.Sprintf("%s->%s-%s", e.Source, e.Target, e.Type)
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash[:8])
}

// IsSelfLoop reports whether both endpoints are the same node
func (e *Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

// Touches reports whether the edge has id as either endpoint
func (e *Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}
