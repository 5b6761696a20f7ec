// Package visual maps edges to the per-frame geometry the presentation layer
// draws for them.
package visual

import (
	"math"
	"time"

	"codescape/internal/domain"
)

// Kind names a link variant
type Kind string

const (
	KindLine      Kind = "line"
	KindArrow     Kind = "arrow"
	KindParticles Kind = "particles"
)

const (
	// ArrowPosition is the fraction along the edge where the arrow head sits
	ArrowPosition = 0.7
	// ParticleSpeed is measured in edge lengths per second
	ParticleSpeed = 0.5
	// MinParticles per stream
	MinParticles = 2
	// ParticlesPerStrength scales stream density with edge strength
	ParticlesPerStrength = 5

	baseOpacity      = 0.5
	highlightOpacity = 0.9
)

// Palette colours edges by type
var Palette = map[domain.EdgeType]string{
	domain.EdgeTypeCall:       "#8e44ad",
	domain.EdgeTypeDataflow:   "#3498db",
	domain.EdgeTypeDependency: "#f39c12",
	domain.EdgeTypeReference:  "#1abc9c",
	domain.EdgeTypeDefault:    "#95a5a6",
}

// Color returns the palette entry for t, falling back to the default colour
func Color(t domain.EdgeType) string {
	if c, ok := Palette[t]; ok {
		return c
	}
	return Palette[domain.EdgeTypeDefault]
}

// Arrowhead is a cone placed along an edge, pointing at the target
type Arrowhead struct {
	Position  domain.Vec3 `json:"position"`
	Direction domain.Vec3 `json:"direction"`
	Radius    float64     `json:"radius"`
	Height    float64     `json:"height"`
}

// Geometry is what one link looks like in one frame
type Geometry struct {
	EdgeID      string        `json:"edge_id"`
	Kind        Kind          `json:"kind"`
	Color       string        `json:"color"`
	Opacity     float64       `json:"opacity"`
	Source      domain.Vec3   `json:"source"`
	Target      domain.Vec3   `json:"target"`
	Arrow       *Arrowhead    `json:"arrow,omitempty"`
	Particles   []domain.Vec3 `json:"particles,omitempty"`
	Highlighted bool          `json:"highlighted,omitempty"`
}

// Highlight marks the geometry as part of the highlight set
func (g *Geometry) Highlight(on bool) {
	g.Highlighted = on
	g.Opacity = baseOpacity
	if on {
		g.Opacity = highlightOpacity
	}
}

// Link is the visual form of one edge. The set of implementations is closed:
// Line, Arrow and ParticleStream.
type Link interface {
	Edge() domain.Edge
	Kind() Kind
	// Update computes the geometry for endpoints src and dst after elapsed
	// time since the stream started
	Update(src, dst domain.Vec3, elapsed time.Duration) Geometry
	link()
}

// For picks the variant for an edge type
func For(e domain.Edge) Link {
	switch e.Type {
	case domain.EdgeTypeCall, domain.EdgeTypeReference:
		return &Arrow{edge: e}
	case domain.EdgeTypeDataflow:
		return NewParticleStream(e)
	default:
		return &Line{edge: e}
	}
}

func base(e domain.Edge, kind Kind, src, dst domain.Vec3) Geometry {
	return Geometry{
		EdgeID:  e.ID,
		Kind:    kind,
		Color:   Color(e.Type),
		Opacity: baseOpacity,
		Source:  src,
		Target:  dst,
	}
}

// Line is a plain segment
type Line struct {
	edge domain.Edge
}

func (l *Line) Edge() domain.Edge { return l.edge }
func (l *Line) Kind() Kind { return KindLine }
func (l *Line) link() {}

func (l *Line) Update(src, dst domain.Vec3, _ time.Duration) Geometry {
	return base(l.edge, KindLine, src, dst)
}

// Arrow is a segment with a cone at ArrowPosition
type Arrow struct {
	edge domain.Edge
}

func (a *Arrow) Edge() domain.Edge { return a.edge }
func (a *Arrow) Kind() Kind { return KindArrow }
func (a *Arrow) link() {}

func (a *Arrow) Update(src, dst domain.Vec3, _ time.Duration) Geometry {
	g := base(a.edge, KindArrow, src, dst)
	g.Arrow = &Arrowhead{
		Position:  src.Lerp(dst, ArrowPosition),
		Direction: unit(dst.Sub(src)),
		Radius:    0.2 * a.edge.Strength,
		Height:    0.5 * a.edge.Strength,
	}
	return g
}

// ParticleStream is a segment with particles flowing from source to target
type ParticleStream struct {
	edge  domain.Edge
	count int
}

// NewParticleStream sizes the stream by edge strength
func NewParticleStream(e domain.Edge) *ParticleStream {
	n := int(math.Floor(ParticlesPerStrength * e.Strength))
	return &ParticleStream{edge: e, count: max(MinParticles, n)}
}

func (p *ParticleStream) Edge() domain.Edge { return p.edge }
func (p *ParticleStream) Kind() Kind { return KindParticles }
func (p *ParticleStream) link() {}

// Count returns the number of particles in the stream
func (p *ParticleStream) Count() int { return p.count }

func (p *ParticleStream) Update(src, dst domain.Vec3, elapsed time.Duration) Geometry {
	g := base(p.edge, KindParticles, src, dst)
	travelled := elapsed.Seconds() * ParticleSpeed
	g.Particles = make([]domain.Vec3, p.count)
	for i := range g.Particles {
		_, progress := math.Modf(travelled + float64(i)/float64(p.count))
		g.Particles[i] = src.Lerp(dst, progress)
	}
	return g
}

func unit(v domain.Vec3) domain.Vec3 {
	l := v.Len()
	if l == 0 {
		return domain.Vec3{}
	}
	return v.Scale(1 / l)
}
