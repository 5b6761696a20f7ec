// Package layout runs the force-directed simulation that places graph nodes.
//
// The engine follows the usual velocity Verlet scheme: each tick cools alpha,
// lets every force add to node velocities, then integrates positions with
// velocity decay. Fixed nodes still push on their neighbours but are never
// moved by the engine.
package layout

import (
	"math"
	"math/rand/v2"
	"sort"

	"codescape/internal/domain"
)

// particle is the engine's per-node state
type particle struct {
	id     string
	pos    domain.Vec3
	vel    domain.Vec3
	radius float64
	charge float64
	fixed  bool
}

// spring is a resolved edge; self-loops and dangling edges never get here
type spring struct {
	source, target int
	distance       float64
	strength       float64
	bias           float64
}

// NodeState is one entry of a Snapshot
type NodeState struct {
	ID       string      `json:"id"`
	Position domain.Vec3 `json:"position"`
	Fixed    bool        `json:"fixed"`
}

// Engine is a force simulation over one graph. It is not safe for concurrent
// use; the frame coordinator owns it.
type Engine struct {
	params  Params
	nodes   []particle
	index   map[string]int
	springs []spring

	alpha       float64
	alphaTarget float64
	ticks       int

	jiggle *rand.Rand
}

// New creates an engine seeded from the graph's node positions. Params are
// clamped; use Params.Clamp first to learn what was adjusted.
func New(g *domain.Graph, params Params) *Engine {
	params, _ = params.Clamp()
	e := &Engine{
		params: params,
		index:  make(map[string]int),
		alpha:  1,
		jiggle: rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)),
	}
	if g == nil {
		return e
	}

	e.nodes = make([]particle, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, dup := e.index[n.ID]; dup {
			continue
		}
		pos := finite(n.Position)
		if params.Dimensions == 2 {
			pos.Z = 0
		}
		size := domain.ClampSize(n.Size)
		e.index[n.ID] = len(e.nodes)
		e.nodes = append(e.nodes, particle{
			id:     n.ID,
			pos:    pos,
			radius: size * params.CollideRadius,
			charge: params.NodeStrength * size,
		})
	}

	degree := make([]int, len(e.nodes))
	for _, edge := range g.Edges {
		s, okS := e.index[edge.Source]
		t, okT := e.index[edge.Target]
		if !okS || !okT || s == t {
			continue
		}
		strength := domain.ClampStrength(edge.Strength)
		e.springs = append(e.springs, spring{
			source:   s,
			target:   t,
			distance: params.LinkDistance * strength,
			strength: params.LinkStrength * strength,
		})
		degree[s]++
		degree[t]++
	}
	for i := range e.springs {
		sp := &e.springs[i]
		sp.bias = float64(degree[sp.source]) / float64(degree[sp.source]+degree[sp.target])
	}
	return e
}

// Params returns the clamped parameters in effect
func (e *Engine) Params() Params { return e.params }

// Len returns the number of simulated nodes
func (e *Engine) Len() int { return len(e.nodes) }

// Alpha returns the current temperature
func (e *Engine) Alpha() float64 { return e.alpha }

// AlphaTarget returns the temperature alpha decays towards
func (e *Engine) AlphaTarget() float64 { return e.alphaTarget }

// Ticks returns the number of ticks applied so far
func (e *Engine) Ticks() int { return e.ticks }

// Converged reports whether alpha fell below alpha_min. An empty engine is
// always converged.
func (e *Engine) Converged() bool {
	return len(e.nodes) == 0 || e.alpha < e.params.AlphaMin
}

// Reheat raises alpha to at least a. It never lowers it.
func (e *Engine) Reheat(a float64) {
	if a > 1 {
		a = 1
	}
	if a > e.alpha {
		e.alpha = a
	}
}

// SetAlphaTarget sets the temperature alpha decays towards. A target above
// alpha_min keeps the simulation running, which is what dragging relies on.
func (e *Engine) SetAlphaTarget(t float64) {
	e.alphaTarget = max(0, min(t, 1))
}

// Restart resumes a converged simulation at alpha_min so that alpha can climb
// towards a raised target
func (e *Engine) Restart() {
	e.Reheat(e.params.AlphaMin)
}

// Tick advances the simulation by one step. It returns false without doing
// anything once converged.
func (e *Engine) Tick() bool {
	if e.Converged() {
		return false
	}

	e.alpha += (e.alphaTarget - e.alpha) * e.params.AlphaDecay

	e.applyLinks()
	e.applyManyBody()
	e.applyCenter()
	e.applyCollide()
	if e.params.Dimensions == 3 {
		e.applyAxis()
	}

	keep := 1 - e.params.VelocityDecay
	for i := range e.nodes {
		n := &e.nodes[i]
		if n.fixed {
			n.vel = domain.Vec3{}
			continue
		}
		n.vel = n.vel.Scale(keep)
		n.pos = n.pos.Add(n.vel)
		if e.params.Dimensions == 2 {
			n.pos.Z, n.vel.Z = 0, 0
		}
	}

	e.ticks++
	return true
}

// Run applies up to n ticks, stopping early on convergence. It returns the
// number of ticks applied.
func (e *Engine) Run(n int) int {
	done := 0
	for done < n && e.Tick() {
		done++
	}
	return done
}

// Fix pins a node at pos. Unknown ids and non-finite positions are ignored.
func (e *Engine) Fix(id string, pos domain.Vec3) bool {
	i, ok := e.index[id]
	if !ok || !pos.Finite() {
		return false
	}
	if e.params.Dimensions == 2 {
		pos.Z = 0
	}
	e.nodes[i].fixed = true
	e.nodes[i].pos = pos
	e.nodes[i].vel = domain.Vec3{}
	return true
}

// finite zeroes the components of p that are NaN or infinite
func finite(p domain.Vec3) domain.Vec3 {
	clean := func(c float64) float64 {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return 0
		}
		return c
	}
	return domain.Vec3{X: clean(p.X), Y: clean(p.Y), Z: clean(p.Z)}
}

// FixInPlace pins a node where it currently is
func (e *Engine) FixInPlace(id string) bool {
	i, ok := e.index[id]
	if !ok {
		return false
	}
	return e.Fix(id, e.nodes[i].pos)
}

// Move relocates a fixed node. Free nodes are left alone.
func (e *Engine) Move(id string, pos domain.Vec3) bool {
	i, ok := e.index[id]
	if !ok || !e.nodes[i].fixed {
		return false
	}
	return e.Fix(id, pos)
}

// Unfix releases a node back to the simulation
func (e *Engine) Unfix(id string) bool {
	i, ok := e.index[id]
	if !ok {
		return false
	}
	e.nodes[i].fixed = false
	return true
}

// IsFixed reports whether id is pinned
func (e *Engine) IsFixed(id string) bool {
	i, ok := e.index[id]
	return ok && e.nodes[i].fixed
}

// Position returns a node's current position
func (e *Engine) Position(id string) (domain.Vec3, bool) {
	i, ok := e.index[id]
	if !ok {
		return domain.Vec3{}, false
	}
	return e.nodes[i].pos, true
}

// Positions returns every node position keyed by id
func (e *Engine) Positions() map[string]domain.Vec3 {
	out := make(map[string]domain.Vec3, len(e.nodes))
	for _, n := range e.nodes {
		out[n.id] = n.pos
	}
	return out
}

// Snapshot returns node states sorted by id
func (e *Engine) Snapshot() []NodeState {
	out := make([]NodeState, 0, len(e.nodes))
	for _, n := range e.nodes {
		out = append(out, NodeState{ID: n.id, Position: n.pos, Fixed: n.fixed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
