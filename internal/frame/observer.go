package frame

import (
	"codescape/internal/camera"
	"codescape/internal/domain"
	"codescape/internal/visual"
)

// Observer receives the coordinator's per-frame output. Every method is
// called on the frame goroutine; implementations must not block and must not
// call Stop.
type Observer interface {
	// PositionsUpdated receives the positions of visible nodes
	PositionsUpdated(positions map[string]domain.Vec3)
	// EdgesUpdated receives the geometry of visible edges
	EdgesUpdated(links []visual.Geometry)
	// Converged fires once each time the layout cools to rest
	Converged()
	SelectionChanged(focus string, highlight []string)
	FilterChanged(enabled []domain.NodeType)
	CameraMoved(vp camera.Viewpoint)
}

// PinObserver is implemented by observers that persist pins
type PinObserver interface {
	PinChanged(nodeID string, pos domain.Vec3, pinned bool)
}

// NopObserver ignores everything
type NopObserver struct{}

func (NopObserver) PositionsUpdated(map[string]domain.Vec3) {}
func (NopObserver) EdgesUpdated([]visual.Geometry)          {}
func (NopObserver) Converged()                              {}
func (NopObserver) SelectionChanged(string, []string)       {}
func (NopObserver) FilterChanged([]domain.NodeType)         {}
func (NopObserver) CameraMoved(camera.Viewpoint)            {}
