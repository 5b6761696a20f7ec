// Package codec reads analysis payloads and writes layout snapshots.
package codec

import (
	"fmt"
	"io"
	"sort"

	"codescape/internal/domain"
)

// Importer parses an analysis payload from some wire format
type Importer interface {
	Parse(r io.Reader) (*domain.Payload, error)
	Format() string
}

// Exporter writes a layout snapshot in some format
type Exporter interface {
	Export(snap *Snapshot, w io.Writer) error
	Format() string
}

// Snapshot is the exported state of one graph generation
type Snapshot struct {
	Session     string         `json:"session" yaml:"session"`
	Fingerprint string         `json:"fingerprint" yaml:"fingerprint"`
	Converged   bool           `json:"converged" yaml:"converged"`
	Alpha       float64        `json:"alpha" yaml:"alpha"`
	Nodes       []SnapshotNode `json:"nodes" yaml:"nodes"`
	Edges       []SnapshotEdge `json:"edges" yaml:"edges"`
}

// SnapshotNode is a node with its current position
type SnapshotNode struct {
	ID       string          `json:"id" yaml:"id"`
	Type     domain.NodeType `json:"node_type" yaml:"node_type"`
	Label    string          `json:"label,omitempty" yaml:"label,omitempty"`
	Size     float64         `json:"size" yaml:"size"`
	X        float64         `json:"x" yaml:"x"`
	Y        float64         `json:"y" yaml:"y"`
	Z        float64         `json:"z" yaml:"z"`
	Fixed    bool            `json:"fixed,omitempty" yaml:"fixed,omitempty"`
	Metadata map[string]any  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// SnapshotEdge is an edge as exported
type SnapshotEdge struct {
	ID       string          `json:"id" yaml:"id"`
	Source   string          `json:"source" yaml:"source"`
	Target   string          `json:"target" yaml:"target"`
	Type     domain.EdgeType `json:"type" yaml:"type"`
	Strength float64         `json:"strength" yaml:"strength"`
}

// NewSnapshot combines a graph with positions and the set of fixed nodes.
// Nodes without a position keep their seeded one.
func NewSnapshot(g *domain.Graph, positions map[string]domain.Vec3, fixed map[string]bool) *Snapshot {
	snap := &Snapshot{}
	if g == nil {
		return snap
	}
	snap.Fingerprint = g.Fingerprint
	snap.Nodes = make([]SnapshotNode, 0, len(g.Nodes))
	snap.Edges = make([]SnapshotEdge, 0, len(g.Edges))

	for _, n := range g.Nodes {
		pos, ok := positions[n.ID]
		if !ok {
			pos = n.Position
		}
		snap.Nodes = append(snap.Nodes, SnapshotNode{
			ID:       n.ID,
			Type:     n.Type,
			Label:    n.Label,
			Size:     n.Size,
			X:        pos.X,
			Y:        pos.Y,
			Z:        pos.Z,
			Fixed:    fixed[n.ID],
			Metadata: n.Metadata,
		})
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })

	for _, e := range g.Edges {
		snap.Edges = append(snap.Edges, SnapshotEdge{
			ID:       e.ID,
			Source:   e.Source,
			Target:   e.Target,
			Type:     e.Type,
			Strength: e.Strength,
		})
	}
	return snap
}

// ExporterFor returns the exporter for a format name
func ExporterFor(format string) (Exporter, error) {
	switch format {
	case "json":
		return NewJSONCodec(), nil
	case "yaml", "yml":
		return NewYAMLCodec(), nil
	}
	return nil, fmt.Errorf("unsupported export format: %s", format)
}

// ImporterFor returns the payload importer for a file extension or format
// name, defaulting to JSON
func ImporterFor(format string) Importer {
	switch format {
	case "yaml", "yml", ".yaml", ".yml":
		return NewYAMLCodec()
	}
	return NewJSONCodec()
}
