package model

import "time"

// Rack is a named rectangular grid of cells.
type Rack struct {
	ID           int64     `gorm:"primaryKey"`
	Name         string    `gorm:"uniqueIndex;size:100;not null"`
	Rows         int       `gorm:"not null"`
	Columns      int       `gorm:"not null"`
	DisplayOrder int       `gorm:"not null;default:0;index"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`

	// Associations
	Cells []Cell `gorm:"foreignKey:RackID;constraint:OnDelete:CASCADE"`
}
