package frame

import (
	"errors"
	"fmt"

	"codescape/internal/domain"
)

// Kind names an interaction
type Kind string

const (
	Hover           Kind = "hover"
	Unhover         Kind = "unhover"
	Click           Kind = "click"
	ClearSelection  Kind = "clear_selection"
	ToggleType      Kind = "toggle_type"
	SetEnabledTypes Kind = "set_enabled_types"
	DragStart       Kind = "drag_start"
	DragMove        Kind = "drag_move"
	DragEnd         Kind = "drag_end"
	Pin             Kind = "pin"
	Unpin           Kind = "unpin"
)

// ErrInvalidInteraction is wrapped by Interaction.Validate
var ErrInvalidInteraction = errors.New("invalid interaction")

// Interaction is one user input event from the presentation layer
type Interaction struct {
	Kind     Kind              `json:"kind"`
	NodeID   string            `json:"node_id,omitempty"`
	NodeType domain.NodeType   `json:"node_type,omitempty"`
	Types    []domain.NodeType `json:"types,omitempty"`
	Position *domain.Vec3      `json:"position,omitempty"`
}

// Validate checks that the fields the kind needs are present. Unknown node
// ids are not an error here; the coordinator ignores them.
func (i Interaction) Validate() error {
	switch i.Kind {
	case Unhover, ClearSelection:
		return nil
	case Hover, Click, DragStart, DragEnd, Pin, Unpin:
		if i.NodeID == "" {
			return fmt.Errorf("%w: %s requires node_id", ErrInvalidInteraction, i.Kind)
		}
	case DragMove:
		if i.NodeID == "" || i.Position == nil {
			return fmt.Errorf("%w: %s requires node_id and position", ErrInvalidInteraction, i.Kind)
		}
	case ToggleType:
		if !i.NodeType.Valid() {
			return fmt.Errorf("%w: unknown node type %q", ErrInvalidInteraction, i.NodeType)
		}
	case SetEnabledTypes:
		for _, t := range i.Types {
			if !t.Valid() {
				return fmt.Errorf("%w: unknown node type %q", ErrInvalidInteraction, t)
			}
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidInteraction, i.Kind)
	}
	if i.Position != nil && !i.Position.Finite() {
		return fmt.Errorf("%w: position must be finite", ErrInvalidInteraction)
	}
	return nil
}
