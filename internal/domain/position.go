package domain

import "math"

// Vec3 is a point or direction in layout space. 2-D layouts keep Z at zero.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Finite reports whether every component is a finite number
func (v Vec3) Finite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Add returns v+o
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns v-o
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Scale returns v*s
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Len returns the euclidean length of v
func (v Vec3) Len() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Lerp interpolates between v and o; t=0 yields v, t=1 yields o
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return Vec3{
		v.X + (o.X-v.X)*t,
		v.Y + (o.Y-v.Y)*t,
		v.Z + (o.Z-v.Z)*t,
	}
}

// NodePosition represents the position and pinning state of a node in the visualization
type NodePosition struct {
	NodeID string  `json:"node_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Pinned bool    `json:"pinned"`
}

// NewNodePosition creates a new, unpinned node position
func NewNodePosition(nodeID string, p Vec3) *NodePosition {
	return &NodePosition{
		NodeID: nodeID,
		X:      p.X,
		Y:      p.Y,
		Z:      p.Z,
		Pinned: false,
	}
}

// Vec returns the position as a vector
func (p NodePosition) Vec() Vec3 {
	return Vec3{p.X, p.Y, p.Z}
}
