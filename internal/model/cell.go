package model

import "time"

// Cell is one allocatable position inside a rack grid.
//
// Version starts at 1 and is bumped on every occupant change; it is the
// optimistic-lock token callers echo back on assign and release.
type Cell struct {
	ID         int64  `gorm:"primaryKey"`
	RackID     int64  `gorm:"not null;uniqueIndex:idx_cells_rack_position,priority:1"`
	RowIndex   int    `gorm:"not null;uniqueIndex:idx_cells_rack_position,priority:2"`
	ColIndex   int    `gorm:"not null;uniqueIndex:idx_cells_rack_position,priority:3"`
	Position   string `gorm:"size:4;not null"`
	OccupantID *int64 `gorm:"index"`
	Version    int64  `gorm:"not null;default:1"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Occupied reports whether a professor currently holds the cell.
func (c Cell) Occupied() bool {
	return c.OccupantID != nil
}
