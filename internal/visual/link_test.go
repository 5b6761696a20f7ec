package visual

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescape/internal/domain"
)

func edgeOf(t domain.EdgeType, strength float64) domain.Edge {
	return *domain.NewEdge("e", "a", "b", t, strength)
}

func TestFor(t *testing.T) {
	tests := []struct {
		edgeType domain.EdgeType
		want     Kind
	}{
		{domain.EdgeTypeCall, KindArrow},
		{domain.EdgeTypeReference, KindArrow},
		{domain.EdgeTypeDataflow, KindParticles},
		{domain.EdgeTypeDependency, KindLine},
		{domain.EdgeTypeDefault, KindLine},
	}
	for _, tt := range tests {
		t.Run(string(tt.edgeType), func(t *testing.T) {
			l := For(edgeOf(tt.edgeType, 1))
			assert.Equal(t, tt.want, l.Kind())
			assert.Equal(t, Color(tt.edgeType), l.Update(domain.Vec3{}, domain.Vec3{X: 1}, 0).Color)
		})
	}
}

func TestColor(t *testing.T) {
	assert.Equal(t, "#8e44ad", Color(domain.EdgeTypeCall))
	assert.Equal(t, "#95a5a6", Color("unknown"))
}

func TestArrow(t *testing.T) {
	g := For(edgeOf(domain.EdgeTypeCall, 1)).Update(domain.Vec3{}, domain.Vec3{X: 10}, 0)
	require.NotNil(t, g.Arrow)
	assert.InDelta(t, 7.0, g.Arrow.Position.X, 1e-9)
	assert.Equal(t, domain.Vec3{X: 1}, g.Arrow.Direction)

	// coincident endpoints give a zero direction rather than NaN
	g = For(edgeOf(domain.EdgeTypeCall, 1)).Update(domain.Vec3{X: 1}, domain.Vec3{X: 1}, 0)
	assert.Equal(t, domain.Vec3{}, g.Arrow.Direction)
}

func TestParticleStream(t *testing.T) {
	t.Run("count follows strength", func(t *testing.T) {
		assert.Equal(t, 2, NewParticleStream(edgeOf(domain.EdgeTypeDataflow, 0.1)).Count())
		assert.Equal(t, 5, NewParticleStream(edgeOf(domain.EdgeTypeDataflow, 1)).Count())
		assert.Equal(t, 7, NewParticleStream(edgeOf(domain.EdgeTypeDataflow, 1.5)).Count())
	})

	t.Run("particles travel half an edge per second", func(t *testing.T) {
		s := NewParticleStream(edgeOf(domain.EdgeTypeDataflow, 0.2))
		src, dst := domain.Vec3{}, domain.Vec3{X: 100}

		g := s.Update(src, dst, 0)
		require.Len(t, g.Particles, 2)
		assert.InDelta(t, 0.0, g.Particles[0].X, 1e-9)
		assert.InDelta(t, 50.0, g.Particles[1].X, 1e-9)

		g = s.Update(src, dst, time.Second)
		assert.InDelta(t, 50.0, g.Particles[0].X, 1e-9)
		assert.InDelta(t, 0.0, g.Particles[1].X, 1e-9, "wraps back to the source")
	})
}

func TestGeometryHighlight(t *testing.T) {
	g := For(edgeOf(domain.EdgeTypeDependency, 1)).Update(domain.Vec3{}, domain.Vec3{Y: 1}, 0)
	assert.Equal(t, baseOpacity, g.Opacity)
	g.Highlight(true)
	assert.Equal(t, highlightOpacity, g.Opacity)
	assert.True(t, g.Highlighted)
}
