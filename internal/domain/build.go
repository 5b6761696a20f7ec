package domain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	// SeedExtent is the edge length of the cube unhinted nodes are placed in
	SeedExtent = 50.0
	// ChildSeedExtent is the edge length of the cube around a parent that
	// its children are placed in
	ChildSeedExtent = 10.0
)

// reserved entry keys that are not copied into node metadata
var reservedKeys = map[string]bool{
	"id":       true,
	"x":        true,
	"y":        true,
	"z":        true,
	"children": true,
	"nodeType": true,
}

// BuildReport counts what Build skipped. None of these are errors: the
// graph is always usable.
type BuildReport struct {
	SkippedSections []string `json:"skipped_sections,omitempty"`
	SkippedEntries  int      `json:"skipped_entries"`
	DuplicateIDs    int      `json:"duplicate_ids"`
	DroppedEdges    int      `json:"dropped_edges"`
}

// Clean reports whether nothing was skipped
func (r BuildReport) Clean() bool {
	return len(r.SkippedSections) == 0 && r.SkippedEntries == 0 && r.DuplicateIDs == 0 && r.DroppedEdges == 0
}

// BuildOption configures Build
type BuildOption func(*builder)

// WithRand sets the random source used for initial placement
func WithRand(r *rand.Rand) BuildOption {
	return func(b *builder) {
		if r != nil {
			b.rand = r
		}
	}
}

type builder struct {
	rand   *rand.Rand
	nodes  []Node
	edges  []Edge
	index  map[string]int
	report BuildReport
}

// Build normalizes a payload into a Graph. Sections are processed in a fixed
// order (functions, variables, modules, vulnerabilities, dataflow) so that a
// vulnerability can only reference a node declared before it and a dataflow
// edge can reference any node.
func Build(p *Payload, opts ...BuildOption) (*Graph, BuildReport) {
	seed := uint64(time.Now().UnixNano())
	b := &builder{
		rand:  rand.New(rand.NewPCG(seed, seed>>1|1)),
		index: make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}

	if p == nil {
		p = &Payload{}
	}
	b.report.SkippedSections = append(b.report.SkippedSections, p.Malformed...)
	b.report.SkippedEntries += p.NonObjects

	b.functions(p.Functions)
	b.variables(p.Variables)
	b.modules(p.Modules)
	b.vulnerabilities(p.Vulnerabilities)
	b.dataflow(p.Dataflow)

	g, _, _ := NewGraph(b.nodes, b.edges)
	g.Fingerprint = p.Fingerprint
	return g, b.report
}

func (b *builder) functions(entries []Entry) {
	for _, e := range entries {
		id, ok := e.String("id")
		if !ok {
			b.report.SkippedEntries++
			continue
		}

		children := e.Entries("children")
		size := float64(len(children))
		if size == 0 {
			size = 1
		}

		fn := b.node(e, id, NodeTypeFunction, size, b.seed(e, nil))
		if !b.add(fn) {
			continue
		}

		for _, child := range children {
			cid, ok := child.String("id")
			if !ok {
				b.report.SkippedEntries++
				continue
			}
			ctype := NodeTypeCall
			if t, ok := child.String("nodeType"); ok && NodeType(t).Valid() {
				ctype = NodeType(t)
			}
			parent := fn.Position
			cn := b.node(child, cid, ctype, SizeChild, b.seed(child, &parent))
			cn.Parent = id
			b.add(cn)

			b.link(fmt.Sprintf("%s_%s", id, cid), id, cid, EdgeTypeCall, DefaultStrength)
		}
	}
}

func (b *builder) variables(entries []Entry) {
	for _, e := range entries {
		id, ok := e.String("id")
		if !ok {
			b.report.SkippedEntries++
			continue
		}
		b.add(b.node(e, id, NodeTypeVariable, SizeVariable, b.seed(e, nil)))
	}
}

func (b *builder) modules(names []any) {
	for i, raw := range names {
		name, ok := raw.(string)
		if !ok {
			b.report.SkippedEntries++
			continue
		}
		id := fmt.Sprintf("module_%d", i)
		n := NewNode(id, NodeTypeModule, SizeModule)
		n.Label = name
		n.Position = b.seed(nil, nil)
		n.SetMetadata("name", name)
		b.add(*n)
	}
}

func (b *builder) vulnerabilities(entries []Entry) {
	for _, e := range entries {
		id, ok := e.String("id")
		if !ok {
			b.report.SkippedEntries++
			continue
		}
		if !b.add(b.node(e, id, NodeTypeVulnerability, SizeVulnerability, b.seed(e, nil))) {
			continue
		}
		if ref, ok := e.String("node_id"); ok {
			b.link(fmt.Sprintf("%s_%s", id, ref), id, ref, EdgeTypeReference, ReferenceStrength)
		}
	}
}

func (b *builder) dataflow(entries []Entry) {
	for i, e := range entries {
		from, okFrom := e.String("from")
		if !okFrom {
			from, okFrom = e.String("source")
		}
		to, okTo := e.String("to")
		if !okTo {
			to, okTo = e.String("target")
		}
		if !okFrom || !okTo {
			b.report.SkippedEntries++
			continue
		}
		b.link(fmt.Sprintf("dataflow_%d", i), from, to, EdgeTypeDataflow, DefaultStrength)
	}
}

// node builds a node from a payload entry, carrying unreserved keys over as metadata
func (b *builder) node(e Entry, id string, nodeType NodeType, size float64, pos Vec3) Node {
	n := NewNode(id, nodeType, size)
	n.Position = pos
	if name, ok := e.String("name"); ok {
		n.Label = name
	}
	for k, v := range e {
		if reservedKeys[k] {
			continue
		}
		// non-finite numbers cannot be encoded as JSON
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			continue
		}
		n.SetMetadata(k, v)
	}
	return *n
}

// seed returns the spatial hint of an entry, filling missing axes randomly:
// around the parent when there is one, otherwise inside the seed cube.
func (b *builder) seed(e Entry, parent *Vec3) Vec3 {
	center, extent := Vec3{}, SeedExtent
	if parent != nil {
		center, extent = *parent, ChildSeedExtent
	}
	axis := func(key string, c float64) float64 {
		if e != nil {
			if v, ok := e.Float(key); ok {
				return v
			}
		}
		return c + (b.rand.Float64()-0.5)*extent
	}
	return Vec3{
		X: axis("x", center.X),
		Y: axis("y", center.Y),
		Z: axis("z", center.Z),
	}
}

func (b *builder) add(n Node) bool {
	if _, dup := b.index[n.ID]; dup {
		b.report.DuplicateIDs++
		return false
	}
	b.index[n.ID] = len(b.nodes)
	b.nodes = append(b.nodes, n)
	return true
}

// link records an edge if both endpoints are already known
func (b *builder) link(id, source, target string, edgeType EdgeType, strength float64) {
	_, okS := b.index[source]
	_, okT := b.index[target]
	if !okS || !okT {
		b.report.DroppedEdges++
		return
	}
	b.edges = append(b.edges, *NewEdge(id, source, target, edgeType, strength))
}
