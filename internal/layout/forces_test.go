package layout

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescape/internal/domain"
)

// pairwiseCollide is the all-pairs reference for one collide pass
func pairwiseCollide(e *Engine) {
	for i := range e.nodes {
		pi := e.nodes[i].pos.Add(e.nodes[i].vel)
		for j := i + 1; j < len(e.nodes); j++ {
			e.collide(i, j, pi)
		}
	}
}

func TestCollide_TreeMatchesAllPairs(t *testing.T) {
	for _, dims := range []int{2, 3} {
		t.Run(fmt.Sprintf("%dd", dims), func(t *testing.T) {
			var spots []spot
			for i := range 15 {
				for j := range 15 {
					p := domain.Vec3{X: float64(i) * 100, Y: float64(j) * 100, Z: float64((i+j)%3) * 40}
					spots = append(spots, spot{fmt.Sprintf("n%d_%d", i, j), p})
					if (i*15+j)%7 == 0 {
						// a disjoint overlapping partner
						spots = append(spots, spot{fmt.Sprintf("m%d_%d", i, j), p.Add(domain.Vec3{X: 4, Y: -3, Z: 2})})
					}
				}
			}
			params := DefaultParams()
			params.Dimensions = dims
			params.CollideIterations = 1

			tree := New(graphOf(t, spots), params)
			ref := New(graphOf(t, spots), params)
			tree.applyCollide()
			pairwiseCollide(ref)

			moved := 0
			for i := range tree.nodes {
				require.Equal(t, ref.nodes[i].id, tree.nodes[i].id)
				assert.Equal(t, ref.nodes[i].vel, tree.nodes[i].vel, tree.nodes[i].id)
				if tree.nodes[i].vel != (domain.Vec3{}) {
					moved++
				}
			}
			assert.Equal(t, 2*33, moved, "every overlapping pair is separated")
		})
	}
}

func TestCollide_LargeGraphStaysFinite(t *testing.T) {
	var spots []spot
	for i := range 2000 {
		a := float64(i) * 0.1
		spots = append(spots, spot{fmt.Sprintf("n%04d", i), domain.Vec3{X: math.Cos(a) * a, Y: math.Sin(a) * a, Z: float64(i%5) - 2}})
	}
	e := New(graphOf(t, spots), DefaultParams())
	e.Run(5)
	for _, s := range e.Snapshot() {
		require.True(t, s.Position.Finite(), s.ID)
	}
}
