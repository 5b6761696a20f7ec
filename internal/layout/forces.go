package layout

import (
	"math"

	"codescape/internal/domain"
)

// distanceMin2 softens the many-body force for nearly coincident nodes
const distanceMin2 = 1.0

// jiggleValue returns a tiny non-zero offset used to separate coincident points
func (e *Engine) jiggleValue() float64 {
	return (e.jiggle.Float64() - 0.5) * 1e-6
}

// unjam replaces zero components of d with jiggle and returns the new |d|^2
func (e *Engine) unjam(d *domain.Vec3, l float64) float64 {
	if d.X == 0 {
		d.X = e.jiggleValue()
		l += d.X * d.X
	}
	if d.Y == 0 {
		d.Y = e.jiggleValue()
		l += d.Y * d.Y
	}
	if e.params.Dimensions == 3 && d.Z == 0 {
		d.Z = e.jiggleValue()
		l += d.Z * d.Z
	}
	return l
}

func dot(v domain.Vec3) float64 {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z
}

// applyLinks pulls each edge's endpoints towards its rest length, using
// positions predicted from current velocity. The less connected endpoint
// moves more.
func (e *Engine) applyLinks() {
	for _, sp := range e.springs {
		s, t := &e.nodes[sp.source], &e.nodes[sp.target]
		d := t.pos.Add(t.vel).Sub(s.pos).Sub(s.vel)
		if e.params.Dimensions == 2 {
			d.Z = 0
		}
		l := math.Sqrt(e.unjam(&d, dot(d)))
		k := (l - sp.distance) / l * e.alpha * sp.strength
		d = d.Scale(k)
		t.vel = t.vel.Sub(d.Scale(sp.bias))
		s.vel = s.vel.Add(d.Scale(1 - sp.bias))
	}
}

// applyManyBody applies charge between all node pairs closer than
// distance_max, approximating far cells by their centre of charge.
func (e *Engine) applyManyBody() {
	if len(e.nodes) < 2 || e.params.NodeStrength == 0 {
		return
	}
	tree := buildOctree(e.nodes, e.params.Dimensions)
	theta2 := e.params.Theta * e.params.Theta
	max2 := e.params.DistanceMax * e.params.DistanceMax
	for i := range e.nodes {
		e.visitCharge(tree.root, i, theta2, max2)
	}
}

func (e *Engine) visitCharge(c *cell, i int, theta2, max2 float64) {
	if c == nil || c.charge == 0 {
		return
	}
	n := &e.nodes[i]

	d := c.mass.Sub(n.pos)
	l := dot(d)
	w := 2 * c.half

	if theta2 > 0 && w*w/theta2 < l {
		if l < max2 {
			l = e.unjam(&d, l)
			if l < distanceMin2 {
				l = math.Sqrt(distanceMin2 * l)
			}
			n.vel = n.vel.Add(d.Scale(c.charge * e.alpha / l))
		}
		return
	}

	if c.internal {
		for _, ch := range c.children {
			e.visitCharge(ch, i, theta2, max2)
		}
		return
	}

	for _, j := range c.points {
		if j == i {
			continue
		}
		d := e.nodes[j].pos.Sub(n.pos)
		l := dot(d)
		if l >= max2 {
			continue
		}
		l = e.unjam(&d, l)
		if l < distanceMin2 {
			l = math.Sqrt(distanceMin2 * l)
		}
		n.vel = n.vel.Add(d.Scale(e.nodes[j].charge * e.alpha / l))
	}
}

// applyCenter translates free nodes so the centroid of the whole graph
// moves towards the origin.
func (e *Engine) applyCenter() {
	if len(e.nodes) == 0 || e.params.CenterStrength == 0 {
		return
	}
	var sum domain.Vec3
	for _, n := range e.nodes {
		sum = sum.Add(n.pos)
	}
	shift := sum.Scale(-e.params.CenterStrength * e.alpha / float64(len(e.nodes)))
	if shift == (domain.Vec3{}) {
		return
	}
	for i := range e.nodes {
		if e.nodes[i].fixed {
			continue
		}
		e.nodes[i].pos = e.nodes[i].pos.Add(shift)
	}
}

// applyCollide pushes overlapping node pairs apart, weighting the push by
// the other node's radius. Each pass indexes predicted positions and only
// visits cells within reach of the node's radius plus the cell's largest one.
func (e *Engine) applyCollide() {
	if e.params.CollideStrength == 0 || e.params.CollideRadius == 0 || len(e.nodes) < 2 {
		return
	}
	for range e.params.CollideIterations {
		tree := buildCollideTree(e.nodes, e.params.Dimensions)
		for i := range e.nodes {
			e.visitCollide(tree.root, i, tree.pos[i])
		}
	}
}

func (e *Engine) visitCollide(c *cell, i int, pi domain.Vec3) {
	if c == nil {
		return
	}
	reach := c.half + e.nodes[i].radius + c.radius
	if math.Abs(pi.X-c.center.X) > reach || math.Abs(pi.Y-c.center.Y) > reach {
		return
	}
	if e.params.Dimensions == 3 && math.Abs(pi.Z-c.center.Z) > reach {
		return
	}

	if c.internal {
		for _, ch := range c.children {
			e.visitCollide(ch, i, pi)
		}
		return
	}
	for _, j := range c.points {
		if j > i {
			e.collide(i, j, pi)
		}
	}
}

// collide separates i (predicted at pi) from j if they overlap
func (e *Engine) collide(i, j int, pi domain.Vec3) {
	a, b := &e.nodes[i], &e.nodes[j]
	r := a.radius + b.radius
	d := pi.Sub(b.pos.Add(b.vel))
	if e.params.Dimensions == 2 {
		d.Z = 0
	}
	l := dot(d)
	if l >= r*r {
		return
	}
	l = math.Sqrt(e.unjam(&d, l))
	k := (r - l) / l * e.params.CollideStrength * e.alpha
	d = d.Scale(k)
	ri2, rj2 := a.radius*a.radius, b.radius*b.radius
	share := 0.5
	if ri2+rj2 > 0 {
		share = rj2 / (ri2 + rj2)
	}
	a.vel = a.vel.Add(d.Scale(share))
	b.vel = b.vel.Sub(d.Scale(1 - share))
}

// applyAxis pulls depth towards zero
func (e *Engine) applyAxis() {
	if e.params.Gravity == 0 {
		return
	}
	k := e.params.Gravity * e.alpha
	for i := range e.nodes {
		n := &e.nodes[i]
		n.vel.Z -= n.pos.Z * k
	}
}
