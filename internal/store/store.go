package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"cagerack-backend/internal/model"
)

// CellStore owns cell rows and the compare-and-set path for occupant state.
type CellStore interface {
	GetCell(ctx context.Context, id int64) (*model.Cell, error)
	ListCells(ctx context.Context, rackID int64) ([]model.Cell, error)
	CreateGrid(ctx context.Context, rackID int64, rows, columns int) ([]model.Cell, error)
	CompareAndSetOccupant(ctx context.Context, id, expectedVersion int64, occupantID *int64) (*model.Cell, error)
	OccupiedCellsOutside(ctx context.Context, rackID int64, rows, columns int) ([]model.Cell, error)
	DeleteCellsOutside(ctx context.Context, rackID int64, rows, columns int) (int64, error)
	CountOccupied(ctx context.Context, rackID int64) (int64, error)
}

// Ledger is the append-only occupancy history.
type Ledger interface {
	OpenRecord(ctx context.Context, p OpenRecordParams) (*model.OccupancyRecord, error)
	CloseOpenRecord(ctx context.Context, cellID int64, releasedAt time.Time) (*model.OccupancyRecord, error)
	OpenRecordFor(ctx context.Context, cellID int64) (*model.OccupancyRecord, error)
	RecordsInRange(ctx context.Context, start, end time.Time) ([]model.OccupancyRecord, error)
}

// RackRegistry stores rack metadata.
type RackRegistry interface {
	GetRack(ctx context.Context, id int64) (*model.Rack, error)
	LockRack(ctx context.Context, id int64) (*model.Rack, error)
	ListRacks(ctx context.Context) ([]RackWithUsage, error)
	CreateRack(ctx context.Context, rack *model.Rack) error
	UpdateRack(ctx context.Context, id int64, u RackUpdate) error
	UpdateRackDimensions(ctx context.Context, id int64, rows, columns int) error
	DeleteRack(ctx context.Context, id int64) error
	RackNameTaken(ctx context.Context, name string, exceptID int64) (bool, error)
}

// ProfessorRegistry stores the parties that occupy cells.
type ProfessorRegistry interface {
	ProfessorExists(ctx context.Context, id int64) (bool, error)
	ProfessorName(ctx context.Context, id int64) (string, error)
	GetProfessor(ctx context.Context, id int64) (*model.Professor, error)
	ListProfessors(ctx context.Context) ([]ProfessorWithUsage, error)
	ProfessorOccupiedCells(ctx context.Context, id int64) (int64, error)
	CreateProfessor(ctx context.Context, p *model.Professor) error
	UpdateProfessor(ctx context.Context, id int64, u ProfessorUpdate) (*model.Professor, error)
	DeleteProfessor(ctx context.Context, id int64) error
}

// Store defines the interface for all database operations.
type Store interface {
	CellStore
	Ledger
	RackRegistry
	ProfessorRegistry

	// Transaction runs fn against a Store bound to one database
	// transaction. Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	// DB exposes the underlying handle for read-only glue such as the
	// subscription handlers and the notification workers.
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// Transaction nests as a savepoint when s is already transactional.
func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
