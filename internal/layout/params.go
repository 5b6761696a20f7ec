package layout

import (
	"fmt"
	"math"
)

// Params configures the force simulation. The zero value is not useful; start
// from DefaultParams.
type Params struct {
	// Dimensions is 2 or 3. The 3-D layout adds an axis force pulling Z to 0.
	Dimensions int `yaml:"dimensions" toml:"dimensions" json:"dimensions"`

	// NodeStrength is the many-body coefficient per unit of node size.
	// Negative values repel.
	NodeStrength float64 `yaml:"node_strength" toml:"node_strength" json:"node_strength"`
	// DistanceMax bounds the many-body interaction range.
	DistanceMax float64 `yaml:"distance_max" toml:"distance_max" json:"distance_max"`
	// Theta is the Barnes-Hut opening threshold. Zero disables approximation.
	Theta float64 `yaml:"theta" toml:"theta" json:"theta"`

	// LinkDistance is the rest length of an edge of strength 1.
	LinkDistance float64 `yaml:"link_distance" toml:"link_distance" json:"link_distance"`
	// LinkStrength is the spring coefficient of an edge of strength 1.
	LinkStrength float64 `yaml:"link_strength" toml:"link_strength" json:"link_strength"`

	// CollideRadius multiplies node size into a collision radius.
	CollideRadius     float64 `yaml:"collide_radius" toml:"collide_radius" json:"collide_radius"`
	CollideStrength   float64 `yaml:"collide_strength" toml:"collide_strength" json:"collide_strength"`
	CollideIterations int     `yaml:"collide_iterations" toml:"collide_iterations" json:"collide_iterations"`

	CenterStrength float64 `yaml:"center_strength" toml:"center_strength" json:"center_strength"`
	// Gravity is the strength of the depth-axis centering force (3-D only).
	Gravity float64 `yaml:"gravity" toml:"gravity" json:"gravity"`

	AlphaDecay    float64 `yaml:"alpha_decay" toml:"alpha_decay" json:"alpha_decay"`
	AlphaMin      float64 `yaml:"alpha_min" toml:"alpha_min" json:"alpha_min"`
	VelocityDecay float64 `yaml:"velocity_decay" toml:"velocity_decay" json:"velocity_decay"`

	// Seed feeds the jiggle source that separates coincident nodes.
	Seed uint64 `yaml:"seed" toml:"seed" json:"seed"`
}

// DefaultParams returns the stock simulation settings
func DefaultParams() Params {
	return Params{
		Dimensions:        3,
		NodeStrength:      -100,
		DistanceMax:       500,
		Theta:             0.9,
		LinkDistance:      80,
		LinkStrength:      0.7,
		CollideRadius:     10,
		CollideStrength:   0.7,
		CollideIterations: 2,
		CenterStrength:    1,
		Gravity:           0.05,
		AlphaDecay:        0.1,
		AlphaMin:          0.001,
		VelocityDecay:     0.3,
		Seed:              1,
	}
}

// Adjustment records one parameter that Clamp moved back into its domain
type Adjustment struct {
	Field string
	From  float64
	To    float64
}

func (a Adjustment) String() string {
	return fmt.Sprintf("%s: %g -> %g", a.Field, a.From, a.To)
}

const (
	minAlphaMin      = 1e-9
	minDistanceMax   = 1
	maxCollidePasses = 16
)

// Clamp moves every out-of-domain value to the nearest valid one. NaN is
// replaced by the default. It never fails.
func (p Params) Clamp() (Params, []Adjustment) {
	def := DefaultParams()
	var adj []Adjustment

	fix := func(field string, v *float64, lo, hi, fallback float64) {
		from := *v
		switch {
		case math.IsNaN(*v):
			*v = fallback
		case *v < lo:
			*v = lo
		case *v > hi:
			*v = hi
		default:
			return
		}
		adj = append(adj, Adjustment{Field: field, From: from, To: *v})
	}
	inf := math.Inf(1)

	if p.Dimensions != 2 && p.Dimensions != 3 {
		to := 3
		if p.Dimensions < 3 {
			to = 2
		}
		adj = append(adj, Adjustment{Field: "dimensions", From: float64(p.Dimensions), To: float64(to)})
		p.Dimensions = to
	}
	if p.CollideIterations < 0 || p.CollideIterations > maxCollidePasses {
		from := p.CollideIterations
		p.CollideIterations = max(0, min(p.CollideIterations, maxCollidePasses))
		adj = append(adj, Adjustment{Field: "collide_iterations", From: float64(from), To: float64(p.CollideIterations)})
	}

	fix("node_strength", &p.NodeStrength, -inf, inf, def.NodeStrength)
	fix("distance_max", &p.DistanceMax, minDistanceMax, inf, def.DistanceMax)
	fix("theta", &p.Theta, 0, inf, def.Theta)
	fix("link_distance", &p.LinkDistance, 0, inf, def.LinkDistance)
	fix("link_strength", &p.LinkStrength, 0, inf, def.LinkStrength)
	fix("collide_radius", &p.CollideRadius, 0, inf, def.CollideRadius)
	fix("collide_strength", &p.CollideStrength, 0, 1, def.CollideStrength)
	fix("center_strength", &p.CenterStrength, 0, 1, def.CenterStrength)
	fix("gravity", &p.Gravity, 0, 1, def.Gravity)
	fix("alpha_decay", &p.AlphaDecay, 0, 1, def.AlphaDecay)
	fix("alpha_min", &p.AlphaMin, minAlphaMin, 1, def.AlphaMin)
	fix("velocity_decay", &p.VelocityDecay, 0, 1, def.VelocityDecay)

	return p, adj
}
