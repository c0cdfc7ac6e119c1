package model

import "time"

// Professor is the party that occupies and pays for cells.
type Professor struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"uniqueIndex;size:100;not null"`
	StudentName string `gorm:"size:100"`
	Contact     string `gorm:"size:50"`
	ColorCode   string `gorm:"size:7;not null;default:'#3B82F6'"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
