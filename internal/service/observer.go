package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"codescape/internal/camera"
	"codescape/internal/domain"
	"codescape/internal/frame"
	"codescape/internal/repository"
	"codescape/internal/visual"
)

const pinWriteTimeout = 2 * time.Second

var _ frame.PinObserver = (*sessionObserver)(nil)

// PositionsEvent is the payload of positions_updated and layout_converged
type PositionsEvent struct {
	Generation string                 `json:"generation"`
	Positions  map[string]domain.Vec3 `json:"positions"`
}

// EdgesEvent is the payload of edges_updated
type EdgesEvent struct {
	Generation string            `json:"generation"`
	Edges      []visual.Geometry `json:"edges"`
}

// SelectionEvent is the payload of selection_changed
type SelectionEvent struct {
	Focus     string   `json:"focus"`
	Highlight []string `json:"highlight"`
}

// PinEvent is the payload of pin_changed
type PinEvent struct {
	NodeID   string      `json:"node_id"`
	Position domain.Vec3 `json:"position"`
	Pinned   bool        `json:"pinned"`
}

// sessionObserver turns coordinator callbacks into bus events. It runs on
// the frame goroutine of one generation.
type sessionObserver struct {
	bus        *EventBus
	logger     *slog.Logger
	pins       repository.PinStore
	generation string
	scope      string

	limiter   *rate.Limiter
	sendEdges bool
	latest    map[string]domain.Vec3
}

func newSessionObserver(bus *EventBus, logger *slog.Logger, pins repository.PinStore, generation, scope string, perSecond float64, burst int) *sessionObserver {
	return &sessionObserver{
		bus:        bus,
		logger:     logger,
		pins:       pins,
		generation: generation,
		scope:      scope,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (o *sessionObserver) PositionsUpdated(positions map[string]domain.Vec3) {
	o.latest = positions
	o.sendEdges = o.limiter.Allow()
	if !o.sendEdges {
		return
	}
	o.bus.Publish(Event{
		Type:    EventPositionsUpdated,
		Payload: PositionsEvent{Generation: o.generation, Positions: positions},
	})
}

// EdgesUpdated follows the throttling decision of the preceding
// PositionsUpdated
func (o *sessionObserver) EdgesUpdated(links []visual.Geometry) {
	if !o.sendEdges {
		return
	}
	o.bus.Publish(Event{
		Type:    EventEdgesUpdated,
		Payload: EdgesEvent{Generation: o.generation, Edges: links},
	})
}

func (o *sessionObserver) Converged() {
	o.bus.Publish(Event{
		Type:    EventLayoutConverged,
		Payload: PositionsEvent{Generation: o.generation, Positions: o.latest},
	})
}

func (o *sessionObserver) SelectionChanged(focus string, highlight []string) {
	o.bus.Publish(Event{
		Type:    EventSelectionChanged,
		Payload: SelectionEvent{Focus: focus, Highlight: highlight},
	})
}

func (o *sessionObserver) FilterChanged(enabled []domain.NodeType) {
	o.bus.Publish(Event{
		Type:    EventFilterChanged,
		Payload: map[string]any{"enabled_types": enabled},
	})
}

func (o *sessionObserver) CameraMoved(vp camera.Viewpoint) {
	o.bus.Publish(Event{Type: EventCameraMoved, Payload: vp})
}

func (o *sessionObserver) PinChanged(nodeID string, pos domain.Vec3, pinned bool) {
	if o.pins != nil {
		ctx, cancel := context.WithTimeout(context.Background(), pinWriteTimeout)
		defer cancel()

		var err error
		if pinned {
			err = o.pins.SavePin(ctx, o.scope, nodeID, pos)
		} else {
			_, err = o.pins.DeletePin(ctx, o.scope, nodeID)
		}
		if err != nil {
			o.logger.Warn("failed to persist pin", "node", nodeID, "pinned", pinned, "error", err)
		}
	}

	o.bus.Publish(Event{
		Type:    EventPinChanged,
		Payload: PinEvent{NodeID: nodeID, Position: pos, Pinned: pinned},
	})
}
