package store

import "time"

// OpenRecordParams describes a new occupancy interval.
type OpenRecordParams struct {
	CellID      int64
	OccupantID  int64
	ActorID     int64
	BillingDate time.Time
	AssignedAt  time.Time
	UnitCost    int
}

// RackUpdate carries the optional non-structural rack fields.
type RackUpdate struct {
	Name         *string
	DisplayOrder *int
}

// ProfessorUpdate carries the professor fields a PUT may change.
type ProfessorUpdate struct {
	Name        *string
	StudentName *string
	Contact     *string
	ColorCode   *string
}

// RackWithUsage is a rack plus its occupied-cell count.
type RackWithUsage struct {
	ID            int64
	Name          string
	Rows          int
	Columns       int
	DisplayOrder  int
	OccupiedCells int64
}

// ProfessorWithUsage is a professor plus the number of cells it occupies.
type ProfessorWithUsage struct {
	ID            int64
	Name          string
	StudentName   string
	Contact       string
	ColorCode     string
	OccupiedCells int64
}
