// Package allocation assigns cells to professors and releases them again.
//
// Every mutation runs the optimistic version check, the occupant update and
// the ledger write inside one store transaction, so a failure at any step
// leaves the cell and its history exactly as they were.
package allocation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cagerack-backend/internal/clock"
	"cagerack-backend/internal/events"
	"cagerack-backend/internal/model"
	"cagerack-backend/internal/notification"
	"cagerack-backend/internal/store"
)

var (
	// ErrUnknownOccupant is returned when the professor does not exist.
	ErrUnknownOccupant = errors.New("professor not found")

	// ErrNoOpAssignment is returned when the cell already belongs to the professor.
	ErrNoOpAssignment = errors.New("cell is already assigned to this professor")

	// ErrNotOccupied is returned when releasing a free cell.
	ErrNotOccupied = errors.New("cell is not occupied")
)

// Dispatcher queues "cell freed" notifications.
type Dispatcher interface {
	Dispatch(job notification.FreedCell)
}

// AssignRequest asks for a cell to be given to a professor.
type AssignRequest struct {
	CellID          int64
	OccupantID      int64
	ActorID         int64
	ExpectedVersion int64
}

// ReleaseRequest asks for a cell to be freed.
type ReleaseRequest struct {
	CellID          int64
	ActorID         int64
	ExpectedVersion int64
}

// Result is the outcome of a successful assign or release.
type Result struct {
	Cell               *model.Cell
	Record             *model.OccupancyRecord
	PreviousOccupantID *int64
	Message            string
}

// Service implements the per-cell FREE/OCCUPIED state machine.
type Service struct {
	store     store.Store
	clock     clock.Clock
	unitCost  int
	publisher events.Publisher
	notifier  Dispatcher
	log       *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher sends occupancy events after each committed change.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithNotifier queues availability pushes after each committed release.
func WithNotifier(d Dispatcher) Option {
	return func(s *Service) { s.notifier = d }
}

// NewService creates an allocation service. unitCost is copied onto every
// new occupancy record.
func NewService(st store.Store, clk clock.Clock, unitCost int, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:     st,
		clock:     clk,
		unitCost:  unitCost,
		publisher: events.NopPublisher{},
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assign gives the cell to req.OccupantID. A cell held by someone else is
// handed over directly: the previous holder's record is closed and a new
// one opened in the same transaction.
func (s *Service) Assign(ctx context.Context, req AssignRequest) (*Result, error) {
	var res Result

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		cell, err := loadAtVersion(ctx, tx, req.CellID, req.ExpectedVersion)
		if err != nil {
			return err
		}

		exists, err := tx.ProfessorExists(ctx, req.OccupantID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("professor %d: %w", req.OccupantID, ErrUnknownOccupant)
		}

		if cell.OccupantID != nil && *cell.OccupantID == req.OccupantID {
			return fmt.Errorf("cell %s: %w", cell.Position, ErrNoOpAssignment)
		}
		res.PreviousOccupantID = cell.OccupantID

		occupant := req.OccupantID
		updated, err := tx.CompareAndSetOccupant(ctx, cell.ID, req.ExpectedVersion, &occupant)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		if res.PreviousOccupantID != nil {
			if _, err := tx.CloseOpenRecord(ctx, cell.ID, now); err != nil {
				return err
			}
		}

		record, err := tx.OpenRecord(ctx, store.OpenRecordParams{
			CellID:      cell.ID,
			OccupantID:  occupant,
			ActorID:     req.ActorID,
			BillingDate: s.clock.Today(),
			AssignedAt:  now,
			UnitCost:    s.unitCost,
		})
		if err != nil {
			return err
		}

		name, err := tx.ProfessorName(ctx, occupant)
		if err != nil {
			return err
		}

		res.Cell = updated
		res.Record = record
		res.Message = fmt.Sprintf("Cell %s assigned to %s", updated.Position, name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("cell assigned",
		zap.Int64("cell_id", res.Cell.ID),
		zap.Int64("rack_id", res.Cell.RackID),
		zap.Int64("occupant_id", req.OccupantID),
		zap.Int64("version", res.Cell.Version),
		zap.Int64("actor_id", req.ActorID),
	)
	s.publish(ctx, events.TypeCellAssigned, req.ActorID, &res)
	return &res, nil
}

// Release frees an occupied cell and closes its open occupancy record.
func (s *Service) Release(ctx context.Context, req ReleaseRequest) (*Result, error) {
	var res Result

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		cell, err := loadAtVersion(ctx, tx, req.CellID, req.ExpectedVersion)
		if err != nil {
			return err
		}
		if !cell.Occupied() {
			return fmt.Errorf("cell %s: %w", cell.Position, ErrNotOccupied)
		}
		res.PreviousOccupantID = cell.OccupantID

		updated, err := tx.CompareAndSetOccupant(ctx, cell.ID, req.ExpectedVersion, nil)
		if err != nil {
			return err
		}

		record, err := tx.CloseOpenRecord(ctx, cell.ID, s.clock.Now())
		if err != nil {
			return err
		}

		name, err := tx.ProfessorName(ctx, *res.PreviousOccupantID)
		if err != nil {
			return err
		}

		res.Cell = updated
		res.Record = record
		res.Message = fmt.Sprintf("Cell %s released (was assigned to %s)", updated.Position, name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("cell released",
		zap.Int64("cell_id", res.Cell.ID),
		zap.Int64("rack_id", res.Cell.RackID),
		zap.Int64("previous_occupant_id", *res.PreviousOccupantID),
		zap.Int64("version", res.Cell.Version),
		zap.Int64("actor_id", req.ActorID),
	)
	s.publish(ctx, events.TypeCellReleased, req.ActorID, &res)
	if s.notifier != nil {
		s.notifier.Dispatch(notification.FreedCell{
			RackID:   res.Cell.RackID,
			CellID:   res.Cell.ID,
			Position: res.Cell.Position,
		})
	}
	return &res, nil
}

// loadAtVersion fetches the cell and rejects a stale expected version
// before any write is attempted.
func loadAtVersion(ctx context.Context, tx store.Store, cellID, expected int64) (*model.Cell, error) {
	cell, err := tx.GetCell(ctx, cellID)
	if err != nil {
		return nil, err
	}
	if cell.Version != expected {
		return nil, fmt.Errorf("cell %s has version %d, expected %d: %w",
			cell.Position, cell.Version, expected, store.ErrVersionConflict)
	}
	return cell, nil
}

func (s *Service) publish(ctx context.Context, typ string, actorID int64, res *Result) {
	evt := events.OccupancyEvent{
		Type:               typ,
		CellID:             res.Cell.ID,
		RackID:             res.Cell.RackID,
		Position:           res.Cell.Position,
		OccupantID:         res.Cell.OccupantID,
		PreviousOccupantID: res.PreviousOccupantID,
		ActorID:            actorID,
		Version:            res.Cell.Version,
		OccurredAt:         s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.log.Warn("publishing occupancy event failed",
			zap.String("type", typ), zap.Int64("cell_id", res.Cell.ID), zap.Error(err))
	}
}
