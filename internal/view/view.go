// Package view derives what the presentation layer shows: the highlight set
// around the focused node and the type-filtered subgraph.
package view

import (
	"slices"

	"codescape/internal/domain"
)

// Selection tracks the hovered and selected nodes
type Selection struct {
	Hovered  string `json:"hovered,omitempty"`
	Selected string `json:"selected,omitempty"`
}

// Focus is the selected node if there is one, else the hovered node
func (s Selection) Focus() string {
	if s.Selected != "" {
		return s.Selected
	}
	return s.Hovered
}

// Click toggles selection: clicking the selected node clears it
func (s *Selection) Click(id string) {
	if s.Selected == id {
		s.Selected = ""
		return
	}
	s.Selected = id
}

// Highlight returns focus plus every node sharing an edge with it, in either
// direction. An empty focus highlights nothing.
func Highlight(edges []domain.Edge, focus string) map[string]bool {
	if focus == "" {
		return map[string]bool{}
	}
	set := map[string]bool{focus: true}
	for _, e := range edges {
		switch focus {
		case e.Source:
			set[e.Target] = true
		case e.Target:
			set[e.Source] = true
		}
	}
	return set
}

// HighlightList returns the highlight set sorted
func HighlightList(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}
