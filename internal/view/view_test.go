package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codescape/internal/domain"
)

func sampleGraph(t *testing.T) *domain.Graph {
	t.Helper()
	nodes := []domain.Node{
		*domain.NewNode("A", domain.NodeTypeFunction, 1),
		*domain.NewNode("B", domain.NodeTypeFunction, 1),
		*domain.NewNode("C", domain.NodeTypeVariable, 0.7),
		*domain.NewNode("V", domain.NodeTypeVulnerability, 1.1),
	}
	edges := []domain.Edge{
		*domain.NewEdge("ab", "A", "B", domain.EdgeTypeCall, 1),
		*domain.NewEdge("bc", "B", "C", domain.EdgeTypeDataflow, 1),
		*domain.NewEdge("va", "V", "A", domain.EdgeTypeReference, 1.2),
	}
	g, _, _ := domain.NewGraph(nodes, edges)
	return g
}

func TestHighlight(t *testing.T) {
	edges := []domain.Edge{
		*domain.NewEdge("ab", "A", "B", domain.EdgeTypeCall, 1),
		*domain.NewEdge("bc", "B", "C", domain.EdgeTypeCall, 1),
	}

	tests := []struct {
		name  string
		focus string
		want  []string
	}{
		{"middle of chain", "B", []string{"A", "B", "C"}},
		{"chain head", "A", []string{"A", "B"}},
		{"chain tail", "C", []string{"B", "C"}},
		{"unconnected", "Z", []string{"Z"}},
		{"no focus", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HighlightList(Highlight(edges, tt.focus)))
		})
	}
}

func TestHighlight_SelfLoop(t *testing.T) {
	edges := []domain.Edge{*domain.NewEdge("aa", "A", "A", domain.EdgeTypeCall, 1)}
	assert.Equal(t, []string{"A"}, HighlightList(Highlight(edges, "A")))
}

func TestSelection(t *testing.T) {
	var s Selection
	s.Hovered = "A"
	assert.Equal(t, "A", s.Focus())

	s.Click("B")
	assert.Equal(t, "B", s.Focus(), "selection wins over hover")

	s.Click("B")
	assert.Empty(t, s.Selected, "clicking the selected node clears it")
	assert.Equal(t, "A", s.Focus())

	s.Click("C")
	s.Click("B")
	assert.Equal(t, "B", s.Selected)
}

func TestFilter(t *testing.T) {
	g := sampleGraph(t)

	t.Run("empty set enables everything", func(t *testing.T) {
		all := Filter(g, NewTypeSet(domain.AllNodeTypes...))
		empty := Filter(g, TypeSet{})
		assert.Equal(t, all.Nodes, empty.Nodes)
		assert.Equal(t, all.Edges, empty.Edges)
		assert.Len(t, empty.Nodes, 4)
		assert.Len(t, empty.Edges, 3)
	})

	t.Run("edges need both endpoints", func(t *testing.T) {
		f := Filter(g, NewTypeSet(domain.NodeTypeFunction))
		require.Len(t, f.Nodes, 2)
		require.Len(t, f.Edges, 1)
		assert.Equal(t, "ab", f.Edges[0].ID)
		assert.True(t, f.Visible["A"])
		assert.False(t, f.Visible["C"])
	})

	t.Run("nil graph", func(t *testing.T) {
		f := Filter(nil, TypeSet{})
		assert.Empty(t, f.Nodes)
	})
}

func TestTypeSet(t *testing.T) {
	s := NewTypeSet(domain.NodeTypeFunction, "bogus")
	assert.Equal(t, []domain.NodeType{domain.NodeTypeFunction}, s.List())

	s.Toggle(domain.NodeTypeVariable)
	assert.True(t, s.Allows(domain.NodeTypeVariable))
	assert.False(t, s.Allows(domain.NodeTypeModule))

	s.Toggle(domain.NodeTypeVariable)
	s.Toggle(domain.NodeTypeFunction)
	assert.Empty(t, s)
	assert.True(t, s.Allows(domain.NodeTypeModule), "empty set allows all")

	s.Toggle("bogus")
	assert.Empty(t, s)

	c := NewTypeSet(domain.NodeTypeCall)
	clone := c.Clone()
	clone.Toggle(domain.NodeTypeModule)
	assert.False(t, c.Equal(clone))
	assert.True(t, c.Equal(NewTypeSet(domain.NodeTypeCall)))
}
