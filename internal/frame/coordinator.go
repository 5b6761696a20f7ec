// Package frame drives the layout engine frame by frame and keeps the
// presentation layer in sync with it.
//
// A Coordinator owns one graph generation. Interactions may be submitted from
// any goroutine; they are queued and applied at the next frame boundary, so a
// tick never observes a half-applied interaction. Frames run on a single
// goroutine started by Start, or are driven directly through Frame.
package frame

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"codescape/internal/camera"
	"codescape/internal/domain"
	"codescape/internal/layout"
	"codescape/internal/metrics"
	"codescape/internal/view"
	"codescape/internal/visual"
)

var (
	// ErrStopped is returned once the coordinator has been stopped
	ErrStopped = errors.New("frame coordinator stopped")
	// ErrQueueFull is returned when interactions arrive faster than frames
	ErrQueueFull = errors.New("interaction queue full")
)

const (
	DefaultFrameRate = 60
	DefaultQueueSize = 1024

	// DragAlphaTarget holds the layout warm while a node is dragged
	DragAlphaTarget = 0.3
	// ReheatAlpha is the temperature a filter change or unpin restarts at
	ReheatAlpha = 0.3
)

// Options configures a Coordinator
type Options struct {
	FrameRate    int
	QueueSize    int
	PrewarmTicks int
	Camera       camera.Options
	EnabledTypes []domain.NodeType
	// Pins are applied before the first frame; unknown ids are ignored
	Pins   map[string]domain.Vec3
	Logger *slog.Logger
}

// State is a copy of the coordinator's view state, safe to read from any
// goroutine
type State struct {
	Positions map[string]domain.Vec3 `json:"positions"`
	Fixed     map[string]bool        `json:"fixed"`
	Pinned    []string               `json:"pinned"`
	Selection view.Selection         `json:"selection"`
	Highlight []string               `json:"highlight"`
	Enabled   []domain.NodeType      `json:"enabled"`
	Camera    camera.Viewpoint       `json:"camera"`
	Alpha     float64                `json:"alpha"`
	Converged bool                   `json:"converged"`
	Ticks     int                    `json:"ticks"`
}

// Coordinator runs the frame loop for one graph generation
type Coordinator struct {
	graph    *domain.Graph
	observer Observer
	logger   *slog.Logger
	interval time.Duration
	maxQueue int

	// mu guards the queue and the run lifecycle
	mu       sync.Mutex
	queue    []Interaction
	run      uint64
	cancel   context.CancelFunc
	done     chan struct{}
	stopped  bool
	released chan struct{}

	// frameMu serializes frames; everything below it belongs to the frame
	frameMu   sync.Mutex
	engine    *layout.Engine
	links     []visual.Link
	camera    *camera.Controller
	selection view.Selection
	enabled   view.TypeSet
	visible   view.Filtered
	highlight map[string]bool
	pinned    map[string]bool
	dragging  map[string]bool
	fired     bool
	sampled   bool
	last      time.Time
	started   time.Time

	stateMu sync.RWMutex
	state   State

	panics atomic.Int64
}

// New creates a coordinator over g. The observer may be nil.
func New(g *domain.Graph, params layout.Params, observer Observer, opts Options) *Coordinator {
	if g == nil {
		g, _, _ = domain.NewGraph(nil, nil)
	}
	if observer == nil {
		observer = NopObserver{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = DefaultFrameRate
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}

	c := &Coordinator{
		graph:    g,
		observer: observer,
		logger:   logger.With("component", "frame", "fingerprint", shortFingerprint(g.Fingerprint)),
		interval: time.Second / time.Duration(opts.FrameRate),
		maxQueue: opts.QueueSize,
		released: make(chan struct{}),
		engine:   layout.New(g, params),
		camera:   camera.New(opts.Camera),
		enabled:  view.NewTypeSet(opts.EnabledTypes...),
		pinned:   make(map[string]bool),
		dragging: make(map[string]bool),
	}

	c.links = make([]visual.Link, len(g.Edges))
	for i, e := range g.Edges {
		c.links[i] = visual.For(e)
	}
	c.visible = view.Filter(g, c.enabled)
	c.highlight = map[string]bool{}

	for id, pos := range opts.Pins {
		if c.engine.Fix(id, pos) {
			c.pinned[id] = true
		}
	}
	if opts.PrewarmTicks > 0 {
		n := c.engine.Run(opts.PrewarmTicks)
		c.logger.Debug("prewarmed layout", "ticks", n, "alpha", c.engine.Alpha())
	}

	c.publish()
	return c
}

// Graph returns the generation this coordinator runs
func (c *Coordinator) Graph() *domain.Graph { return c.graph }

// Panics returns the number of recovered observer panics
func (c *Coordinator) Panics() int64 { return c.panics.Load() }

// Start launches the frame loop. It is a no-op while the loop is running and
// fails once the coordinator has been stopped.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	c.run++
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx, c.run, c.done)

	c.logger.Info("frame loop started", "nodes", len(c.graph.Nodes), "edges", len(c.graph.Edges))
	return nil
}

func (c *Coordinator) loop(ctx context.Context, token uint64, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		if c.run == token && c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.frame(token, now)
		}
	}
}

// Stop halts the frame loop, waits for it to exit and releases the
// simulation. It is idempotent and safe to call before Start. No observer
// callback runs after Stop returns. Stop must not be called from an observer
// callback.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		<-c.released
		return
	}
	c.stopped = true
	c.run++
	cancel, done := c.cancel, c.done
	c.cancel = nil
	c.queue = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	// wait out a directly driven frame, then drop the simulation
	c.frameMu.Lock()
	c.engine = nil
	c.links = nil
	c.frameMu.Unlock()

	close(c.released)
	c.logger.Info("frame loop stopped")
}

// Stopped reports whether Stop has been called
func (c *Coordinator) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

// Submit queues an interaction for the next frame
func (c *Coordinator) Submit(it Interaction) error {
	if err := it.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		metrics.InteractionsDropped.WithLabelValues("stopped").Inc()
		return ErrStopped
	}
	if len(c.queue) >= c.maxQueue {
		metrics.InteractionsDropped.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
	c.queue = append(c.queue, it)
	return nil
}

// Frame runs one frame at time now. It reports whether the frame ran; after
// Stop it does nothing.
func (c *Coordinator) Frame(now time.Time) bool {
	c.mu.Lock()
	token := c.run
	c.mu.Unlock()
	return c.frame(token, now)
}

func (c *Coordinator) frame(token uint64, now time.Time) bool {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()

	c.mu.Lock()
	if c.stopped || token != c.run || c.engine == nil {
		c.mu.Unlock()
		return false
	}
	pending := c.queue
	c.queue = nil
	c.mu.Unlock()

	var elapsed time.Duration
	if c.last.IsZero() {
		c.started = now
	} else {
		elapsed = now.Sub(c.last)
	}
	c.last = now

	dirty := c.applyAll(pending)

	ticked := false
	if !c.engine.Converged() {
		c.fired = false
		start := time.Now()
		ticked = c.engine.Tick()
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
	metrics.Alpha.Set(c.engine.Alpha())

	// the first frame always samples, even when prewarm already converged
	if ticked || dirty || !c.sampled {
		c.sampled = true
		metrics.FramesTotal.WithLabelValues("ticked").Inc()
		positions := c.visiblePositions()
		c.notify("positions_updated", func() { c.observer.PositionsUpdated(positions) })
		links := c.geometry(positions, now.Sub(c.started))
		c.notify("edges_updated", func() { c.observer.EdgesUpdated(links) })
	} else {
		metrics.FramesTotal.WithLabelValues("idle").Inc()
	}

	if c.engine.Converged() && !c.fired {
		c.fired = true
		metrics.Convergences.Inc()
		c.logger.Debug("layout converged", "ticks", c.engine.Ticks())
		c.notify("converged", c.observer.Converged)
	}

	moved := c.camera.Advance(elapsed)
	if moved {
		vp := c.camera.Viewpoint()
		c.notify("camera_moved", func() { c.observer.CameraMoved(vp) })
	}

	if ticked || dirty || moved {
		c.publish()
	}
	return true
}

// applyAll applies queued interactions in order and fires selection and
// filter callbacks. It reports whether anything visible changed.
func (c *Coordinator) applyAll(pending []Interaction) bool {
	if len(pending) == 0 {
		return false
	}

	prevFocus := c.selection.Focus()
	prevSelected := c.selection.Selected
	prevEnabled := c.enabled.Clone()
	dirty := false

	for _, it := range pending {
		if c.apply(it) {
			dirty = true
			metrics.Interactions.WithLabelValues(string(it.Kind)).Inc()
		}
	}

	if !c.enabled.Equal(prevEnabled) {
		c.visible = view.Filter(c.graph, c.enabled)
		c.engine.Reheat(ReheatAlpha)
		enabled := c.enabled.List()
		c.notify("filter_changed", func() { c.observer.FilterChanged(enabled) })
		dirty = true
	}

	focus := c.selection.Focus()
	if focus != prevFocus {
		c.highlight = view.Highlight(c.graph.Edges, focus)
		list := view.HighlightList(c.highlight)
		c.notify("selection_changed", func() { c.observer.SelectionChanged(focus, list) })
		dirty = true
	}
	if sel := c.selection.Selected; sel != "" && sel != prevSelected {
		if pos, ok := c.engine.Position(sel); ok {
			c.camera.Focus(pos)
		}
	}

	return dirty
}

// apply mutates frame state for one interaction. Events naming unknown nodes
// are ignored.
func (c *Coordinator) apply(it Interaction) bool {
	if it.NodeID != "" && !c.graph.Has(it.NodeID) {
		c.logger.Debug("ignoring interaction for unknown node", "kind", it.Kind, "node", it.NodeID)
		return false
	}

	switch it.Kind {
	case Hover:
		c.selection.Hovered = it.NodeID
	case Unhover:
		c.selection.Hovered = ""
	case Click:
		c.selection.Click(it.NodeID)
	case ClearSelection:
		c.selection.Selected = ""
	case ToggleType:
		c.enabled.Toggle(it.NodeType)
	case SetEnabledTypes:
		c.enabled = view.NewTypeSet(it.Types...)

	case DragStart:
		if it.Position != nil {
			c.engine.Fix(it.NodeID, *it.Position)
		} else {
			c.engine.FixInPlace(it.NodeID)
		}
		c.dragging[it.NodeID] = true
		c.engine.SetAlphaTarget(DragAlphaTarget)
		c.engine.Restart()
	case DragMove:
		if !c.dragging[it.NodeID] {
			return false
		}
		c.engine.Move(it.NodeID, *it.Position)
	case DragEnd:
		if !c.dragging[it.NodeID] {
			return false
		}
		delete(c.dragging, it.NodeID)
		if c.pinned[it.NodeID] {
			c.pinChanged(it.NodeID, true)
		} else {
			c.engine.Unfix(it.NodeID)
		}
		if len(c.dragging) == 0 {
			c.engine.SetAlphaTarget(0)
		}

	case Pin:
		if it.Position != nil {
			c.engine.Fix(it.NodeID, *it.Position)
		} else {
			c.engine.FixInPlace(it.NodeID)
		}
		c.pinned[it.NodeID] = true
		c.pinChanged(it.NodeID, true)
	case Unpin:
		if !c.pinned[it.NodeID] {
			return false
		}
		delete(c.pinned, it.NodeID)
		if !c.dragging[it.NodeID] {
			c.engine.Unfix(it.NodeID)
			c.engine.Reheat(ReheatAlpha)
		}
		c.pinChanged(it.NodeID, false)
	default:
		return false
	}
	return true
}

func (c *Coordinator) pinChanged(id string, pinned bool) {
	po, ok := c.observer.(PinObserver)
	if !ok {
		return
	}
	pos, _ := c.engine.Position(id)
	c.notify("pin_changed", func() { po.PinChanged(id, pos, pinned) })
}

func (c *Coordinator) visiblePositions() map[string]domain.Vec3 {
	out := make(map[string]domain.Vec3, len(c.visible.Nodes))
	for _, n := range c.visible.Nodes {
		if pos, ok := c.engine.Position(n.ID); ok {
			out[n.ID] = pos
		}
	}
	return out
}

func (c *Coordinator) geometry(positions map[string]domain.Vec3, elapsed time.Duration) []visual.Geometry {
	out := make([]visual.Geometry, 0, len(c.visible.Edges))
	for i, e := range c.graph.Edges {
		src, okS := positions[e.Source]
		dst, okT := positions[e.Target]
		if !okS || !okT {
			continue
		}
		g := c.links[i].Update(src, dst, elapsed)
		g.Highlight(c.highlight[e.Source] && c.highlight[e.Target])
		out = append(out, g)
	}
	return out
}

// notify runs one observer callback, recovering a panic so the loop survives
func (c *Coordinator) notify(callback string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.panics.Add(1)
			metrics.ObserverPanics.WithLabelValues(callback).Inc()
			c.logger.Error("observer callback panicked", "callback", callback, "panic", r)
		}
	}()
	fn()
}

// publish copies frame state for readers on other goroutines
func (c *Coordinator) publish() {
	fixed := make(map[string]bool)
	for _, s := range c.engine.Snapshot() {
		if s.Fixed {
			fixed[s.ID] = true
		}
	}
	pinned := make([]string, 0, len(c.pinned))
	for id := range c.pinned {
		pinned = append(pinned, id)
	}

	st := State{
		Positions: c.engine.Positions(),
		Fixed:     fixed,
		Pinned:    pinned,
		Selection: c.selection,
		Highlight: view.HighlightList(c.highlight),
		Enabled:   c.enabled.List(),
		Camera:    c.camera.Viewpoint(),
		Alpha:     c.engine.Alpha(),
		Converged: c.engine.Converged(),
		Ticks:     c.engine.Ticks(),
	}

	c.stateMu.Lock()
	c.state = st
	c.stateMu.Unlock()
}

// State returns the view state as of the last frame that changed it
func (c *Coordinator) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Visible returns the filtered view as of the last filter change
func (c *Coordinator) Visible() view.Filtered {
	c.frameMu.Lock()
	defer c.frameMu.Unlock()
	return c.visible
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
