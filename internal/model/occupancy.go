package model

import (
	"time"
)

// OccupancyRecord is one interval of a cell being held by a professor.
// A nil ReleasedAt marks the open record of the current occupant; closed
// records are history and are never modified again.
type OccupancyRecord struct {
	ID         int64      `gorm:"primaryKey"`
	CellID     int64      `gorm:"not null;index"`
	OccupantID int64      `gorm:"not null;index"`
	ActorID    int64      `gorm:"not null"`
	AssignedOn time.Time  `gorm:"type:date;not null;index"` // Billing date
	AssignedAt time.Time  `gorm:"not null"`
	ReleasedAt *time.Time `gorm:"index"`
	UnitCost   int        `gorm:"not null"`
}

// Open reports whether the record belongs to the current occupant.
func (r OccupancyRecord) Open() bool {
	return r.ReleasedAt == nil
}
