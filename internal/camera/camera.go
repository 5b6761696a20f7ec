// Package camera animates the viewpoint towards a focused node.
package camera

import (
	"math"
	"time"

	"codescape/internal/domain"
)

// State of the controller
type State int

const (
	Idle State = iota
	Animating
)

func (s State) String() string {
	if s == Animating {
		return "animating"
	}
	return "idle"
}

const (
	// DefaultFocusDistance is the per-axis offset from the focused node
	DefaultFocusDistance = 10.0
	// DefaultDuration of a focus transition
	DefaultDuration = 1500 * time.Millisecond
)

// Viewpoint is where the camera is and what it looks at
type Viewpoint struct {
	Position domain.Vec3 `json:"position"`
	Target   domain.Vec3 `json:"target"`
}

// Home is the initial viewpoint
var Home = Viewpoint{Position: domain.Vec3{Z: 50}}

// Options configures a Controller. Zero values take the defaults.
type Options struct {
	FocusDistance float64
	Duration      time.Duration
}

// Controller moves the viewpoint with a cubic ease-in-out. It is driven by
// Advance and is not safe for concurrent use.
type Controller struct {
	opts    Options
	state   State
	current Viewpoint
	from    Viewpoint
	to      Viewpoint
	elapsed time.Duration
}

// New creates an idle controller at Home
func New(opts Options) *Controller {
	if opts.FocusDistance <= 0 {
		opts.FocusDistance = DefaultFocusDistance
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	return &Controller{opts: opts, current: Home}
}

// State returns the controller state
func (c *Controller) State() State { return c.state }

// Viewpoint returns the current viewpoint
func (c *Controller) Viewpoint() Viewpoint { return c.current }

// Destination returns where the running transition ends; when idle it is the
// current viewpoint
func (c *Controller) Destination() Viewpoint {
	if c.state == Animating {
		return c.to
	}
	return c.current
}

// Focus starts a transition that ends looking at target from target+(d,d,d).
// A transition already in flight is replaced, starting from where it got to.
func (c *Controller) Focus(target domain.Vec3) {
	d := c.opts.FocusDistance
	c.from = c.current
	c.to = Viewpoint{
		Position: target.Add(domain.Vec3{X: d, Y: d, Z: d}),
		Target:   target,
	}
	c.elapsed = 0
	c.state = Animating
}

// Advance moves the transition forward by dt. It reports whether the
// viewpoint changed.
func (c *Controller) Advance(dt time.Duration) bool {
	if c.state != Animating {
		return false
	}
	if dt < 0 {
		dt = 0
	}
	c.elapsed += dt

	t := float64(c.elapsed) / float64(c.opts.Duration)
	if t >= 1 {
		c.current = c.to
		c.state = Idle
		return true
	}

	k := EaseInOutCubic(t)
	c.current = Viewpoint{
		Position: c.from.Position.Lerp(c.to.Position, k),
		Target:   c.from.Target.Lerp(c.to.Target, k),
	}
	return true
}

// EaseInOutCubic maps t in [0,1] onto a cubic ease-in-out curve
func EaseInOutCubic(t float64) float64 {
	t = math.Max(0, math.Min(1, t))
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}
