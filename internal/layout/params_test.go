package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescape/internal/domain"
)

func TestParams_DefaultsNeedNoClamp(t *testing.T) {
	p, adj := DefaultParams().Clamp()
	assert.Empty(t, adj)
	assert.Equal(t, DefaultParams(), p)
}

func TestParams_Clamp(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Params)
		check func(*testing.T, Params)
		field string
	}{
		{
			name:  "dimensions above range",
			mod:   func(p *Params) { p.Dimensions = 7 },
			check: func(t *testing.T, p Params) { assert.Equal(t, 3, p.Dimensions) },
			field: "dimensions",
		},
		{
			name:  "dimensions below range",
			mod:   func(p *Params) { p.Dimensions = 0 },
			check: func(t *testing.T, p Params) { assert.Equal(t, 2, p.Dimensions) },
			field: "dimensions",
		},
		{
			name:  "negative link distance",
			mod:   func(p *Params) { p.LinkDistance = -5 },
			check: func(t *testing.T, p Params) { assert.Zero(t, p.LinkDistance) },
			field: "link_distance",
		},
		{
			name:  "collide strength above one",
			mod:   func(p *Params) { p.CollideStrength = 2 },
			check: func(t *testing.T, p Params) { assert.Equal(t, 1.0, p.CollideStrength) },
			field: "collide_strength",
		},
		{
			name:  "NaN velocity decay falls back to default",
			mod:   func(p *Params) { p.VelocityDecay = math.NaN() },
			check: func(t *testing.T, p Params) { assert.Equal(t, 0.3, p.VelocityDecay) },
			field: "velocity_decay",
		},
		{
			name:  "zero alpha min",
			mod:   func(p *Params) { p.AlphaMin = 0 },
			check: func(t *testing.T, p Params) { assert.Greater(t, p.AlphaMin, 0.0) },
			field: "alpha_min",
		},
		{
			name:  "negative collide iterations",
			mod:   func(p *Params) { p.CollideIterations = -3 },
			check: func(t *testing.T, p Params) { assert.Zero(t, p.CollideIterations) },
			field: "collide_iterations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mod(&p)
			got, adj := p.Clamp()
			tt.check(t, got)
			require.Len(t, adj, 1)
			assert.Equal(t, tt.field, adj[0].Field)
			assert.NotEmpty(t, adj[0].String())
		})
	}
}

func TestNew_ClampsParams(t *testing.T) {
	p := DefaultParams()
	p.Dimensions = 9
	e := New(&domain.Graph{}, p)
	assert.Equal(t, 3, e.Params().Dimensions)
}

func TestOctree_Aggregates(t *testing.T) {
	nodes := []particle{
		{id: "a", pos: domain.Vec3{X: -10}, charge: -100},
		{id: "b", pos: domain.Vec3{X: 10}, charge: -100},
		{id: "c", pos: domain.Vec3{X: 10}, charge: -50},
	}
	tree := buildOctree(nodes, 2)
	require.NotNil(t, tree.root)

	assert.Equal(t, -250.0, tree.root.charge)
	assert.InDelta(t, 2.0, tree.root.mass.X, 1e-9)
	assert.True(t, tree.root.internal)

	// coincident points share a leaf
	leaf := tree.root.children[tree.octant(tree.root, nodes[1].pos)]
	require.NotNil(t, leaf)
	assert.False(t, leaf.internal)
	assert.ElementsMatch(t, []int{1, 2}, leaf.points)
}
