package layout

import (
	"math"

	"codescape/internal/domain"
)

// maxTreeDepth stops subdivision; deeper points share a leaf
const maxTreeDepth = 24

// cell is one node of the tree. Leaves hold point indices, internal cells
// hold up to 8 children (4 in 2-D).
type cell struct {
	center   domain.Vec3
	half     float64
	children [8]*cell
	points   []int
	internal bool

	// aggregated over the subtree
	charge float64
	mass   domain.Vec3 // |charge|-weighted centroid
	radius float64     // largest particle radius
}

// octree partitions particle positions for the many-body and collide forces
type octree struct {
	dims int
	pos  []domain.Vec3
	root *cell
}

// buildOctree indexes current positions and aggregates charge
func buildOctree(nodes []particle, dims int) *octree {
	pos := make([]domain.Vec3, len(nodes))
	for i := range nodes {
		pos[i] = nodes[i].pos
	}
	t := newOctree(pos, dims)
	if t.root != nil {
		t.accumulate(t.root, nodes)
	}
	return t
}

// buildCollideTree indexes predicted positions (pos+vel) and aggregates the
// largest radius per cell
func buildCollideTree(nodes []particle, dims int) *octree {
	pos := make([]domain.Vec3, len(nodes))
	for i := range nodes {
		pos[i] = nodes[i].pos.Add(nodes[i].vel)
		if dims == 2 {
			pos[i].Z = 0
		}
	}
	t := newOctree(pos, dims)
	if t.root != nil {
		t.maxRadius(t.root, nodes)
	}
	return t
}

func newOctree(pos []domain.Vec3, dims int) *octree {
	t := &octree{dims: dims, pos: pos}
	if len(pos) == 0 {
		return t
	}

	lo, hi := pos[0], pos[0]
	for _, p := range pos[1:] {
		lo = domain.Vec3{X: math.Min(lo.X, p.X), Y: math.Min(lo.Y, p.Y), Z: math.Min(lo.Z, p.Z)}
		hi = domain.Vec3{X: math.Max(hi.X, p.X), Y: math.Max(hi.Y, p.Y), Z: math.Max(hi.Z, p.Z)}
	}
	span := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	if dims == 3 {
		span = math.Max(span, hi.Z-lo.Z)
	}
	half := span/2 + 1
	center := lo.Add(hi).Scale(0.5)
	if dims == 2 {
		center.Z = 0
	}

	t.root = &cell{center: center, half: half}
	for i := range pos {
		t.insert(t.root, i, 0)
	}
	return t
}

func (t *octree) octant(c *cell, p domain.Vec3) int {
	i := 0
	if p.X >= c.center.X {
		i |= 1
	}
	if p.Y >= c.center.Y {
		i |= 2
	}
	if t.dims == 3 && p.Z >= c.center.Z {
		i |= 4
	}
	return i
}

func (t *octree) child(c *cell, octant int) *cell {
	if c.children[octant] != nil {
		return c.children[octant]
	}
	h := c.half / 2
	off := domain.Vec3{X: -h, Y: -h, Z: -h}
	if octant&1 != 0 {
		off.X = h
	}
	if octant&2 != 0 {
		off.Y = h
	}
	if octant&4 != 0 {
		off.Z = h
	}
	if t.dims == 2 {
		off.Z = 0
	}
	c.children[octant] = &cell{center: c.center.Add(off), half: h}
	return c.children[octant]
}

func (t *octree) insert(c *cell, i, depth int) {
	for c.internal {
		c = t.child(c, t.octant(c, t.pos[i]))
		depth++
	}

	if len(c.points) == 0 || depth >= maxTreeDepth || t.pos[c.points[0]] == t.pos[i] {
		c.points = append(c.points, i)
		return
	}

	// split the leaf and push both the old points and the new one down
	old := c.points
	c.points = nil
	c.internal = true
	for _, j := range old {
		t.insert(c, j, depth)
	}
	t.insert(c, i, depth)
}

func (t *octree) maxRadius(c *cell, nodes []particle) float64 {
	r := 0.0
	if c.internal {
		for _, ch := range c.children {
			if ch != nil {
				r = math.Max(r, t.maxRadius(ch, nodes))
			}
		}
	} else {
		for _, j := range c.points {
			r = math.Max(r, nodes[j].radius)
		}
	}
	c.radius = r
	return r
}

func (t *octree) accumulate(c *cell, nodes []particle) {
	var charge, weight float64
	var mass domain.Vec3

	if c.internal {
		for _, ch := range c.children {
			if ch == nil {
				continue
			}
			t.accumulate(ch, nodes)
			w := math.Abs(ch.charge)
			charge += ch.charge
			weight += w
			mass = mass.Add(ch.mass.Scale(w))
		}
	} else {
		for _, j := range c.points {
			w := math.Abs(nodes[j].charge)
			charge += nodes[j].charge
			weight += w
			mass = mass.Add(nodes[j].pos.Scale(w))
		}
	}

	c.charge = charge
	if weight > 0 {
		c.mass = mass.Scale(1 / weight)
	} else {
		c.mass = c.center
	}
}
