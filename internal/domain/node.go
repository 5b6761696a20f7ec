package domain

import "math"

// NodeType represents the kind of code entity a node stands for
type NodeType string

const (
	NodeTypeFunction      NodeType = "function"
	NodeTypeVariable      NodeType = "variable"
	NodeTypeModule        NodeType = "module"
	NodeTypeVulnerability NodeType = "vulnerability"
	NodeTypeCall          NodeType = "call"
)

// AllNodeTypes lists every node type in filter display order
var AllNodeTypes = []NodeType{
	NodeTypeFunction,
	NodeTypeVariable,
	NodeTypeVulnerability,
	NodeTypeModule,
	NodeTypeCall,
}

// Valid reports whether t is one of the known node types
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeFunction, NodeTypeVariable, NodeTypeModule, NodeTypeVulnerability, NodeTypeCall:
		return true
	}
	return false
}

// MinNodeSize is the smallest size a node may have
const MinNodeSize = 0.01

// Default sizes per node kind
const (
	SizeChild         = 0.8
	SizeVariable      = 0.7
	SizeModule        = 1.2
	SizeVulnerability = 1.1
)

// Node represents a code entity in the graph
type Node struct {
	ID       string         `json:"id"`
	Type     NodeType       `json:"node_type"`
	Label    string         `json:"label"`
	Position Vec3           `json:"position"`
	Size     float64        `json:"size"`
	Parent   string         `json:"parent,omitempty"` // function a call child was seeded from
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewNode creates a new node with initialized metadata. A non-positive size is
// clamped to MinNodeSize.
func NewNode(id string, nodeType NodeType, size float64) *Node {
	return &Node{
		ID:       id,
		Type:     nodeType,
		Label:    id,
		Size:     ClampSize(size),
		Metadata: make(map[string]any),
	}
}

// ClampSize returns size, or MinNodeSize if size is not a positive finite
// number
func ClampSize(size float64) float64 {
	if !(size > 0) || math.IsInf(size, 1) {
		return MinNodeSize
	}
	return size
}

// SetMetadata sets a metadata value
func (n *Node) SetMetadata(key string, value any) {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.Metadata[key] = value
}

// GetMetadata gets a metadata value
func (n *Node) GetMetadata(key string) (any, bool) {
	if n.Metadata == nil {
		return nil, false
	}
	val, ok := n.Metadata[key]
	return val, ok
}

// GetMetadataString gets a metadata value as a string
func (n *Node) GetMetadataString(key string) string {
	val, ok := n.GetMetadata(key)
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}
