package repository

import (
	"context"
	"time"

	"codescape/internal/domain"
)

// PinStore persists user-pinned node positions
type PinStore interface {
	// Pins returns every pinned position in scope keyed by node id
	Pins(ctx context.Context, scope string) (map[string]domain.Vec3, error)
	// SavePin creates or moves a pin
	SavePin(ctx context.Context, scope, nodeID string, pos domain.Vec3) error
	// DeletePin removes a pin and reports whether one existed
	DeletePin(ctx context.Context, scope, nodeID string) (bool, error)
	// ClearPins removes every pin in scope and returns how many were removed
	ClearPins(ctx context.Context, scope string) (int, error)
}

// Generation records one graph load
type Generation struct {
	ID          int64              `json:"id"`
	Scope       string             `json:"scope"`
	Source      string             `json:"source"`
	Fingerprint string             `json:"fingerprint"`
	Nodes       int                `json:"nodes"`
	Edges       int                `json:"edges"`
	Report      domain.BuildReport `json:"report"`
	LoadedAt    time.Time          `json:"loaded_at"`
}

// GenerationLog keeps the history of graph loads
type GenerationLog interface {
	RecordGeneration(ctx context.Context, gen *Generation) error
	Generations(ctx context.Context, limit int) ([]Generation, error)
}

// Repository is everything the session service persists
type Repository interface {
	PinStore
	GenerationLog

	// Close releases resources
	Close() error
}
