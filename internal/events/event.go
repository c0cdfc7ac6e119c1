// Package events publishes cell occupancy changes to a message broker so
// reporting and billing consumers can follow them without polling the
// database.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeCellAssigned = "cell.assigned"
	TypeCellReleased = "cell.released"
)

// OccupancyEvent describes one committed assign or release.
type OccupancyEvent struct {
	Type               string    `json:"type"`
	CellID             int64     `json:"cell_id"`
	RackID             int64     `json:"rack_id"`
	Position           string    `json:"position"`
	OccupantID         *int64    `json:"occupant_id"`
	PreviousOccupantID *int64    `json:"previous_occupant_id"`
	ActorID            int64     `json:"actor_id"`
	Version            int64     `json:"version"`
	OccurredAt         time.Time `json:"occurred_at"`
}

// Publisher delivers occupancy events.
type Publisher interface {
	Publish(ctx context.Context, event OccupancyEvent) error
	Close() error
}

// NopPublisher drops every event. It is used when events are disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OccupancyEvent) error { return nil }
func (NopPublisher) Close() error                                  { return nil }
