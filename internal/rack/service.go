// Package rack manages rack metadata and the shape of each rack's grid.
package rack

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"cagerack-backend/internal/grid"
	"cagerack-backend/internal/model"
	"cagerack-backend/internal/store"
)

var (
	// ErrDuplicateName is returned when another rack already uses the name.
	ErrDuplicateName = errors.New("a rack with the same name already exists")

	// ErrRackOccupied is returned when deleting a rack that still has occupied cells.
	ErrRackOccupied = errors.New("rack still has occupied cells")
)

// ShrinkBlockedError is returned when a resize would remove occupied cells.
// Rows holds the removed row labels and Columns the removed column numbers
// that still contain an occupant.
type ShrinkBlockedError struct {
	Rows      []string
	Columns   []int
	Positions []string
}

func (e *ShrinkBlockedError) Error() string {
	var parts []string
	if len(e.Rows) > 0 {
		parts = append(parts, "rows "+strings.Join(e.Rows, ", "))
	}
	if len(e.Columns) > 0 {
		cols := make([]string, len(e.Columns))
		for i, c := range e.Columns {
			cols[i] = strconv.Itoa(c)
		}
		parts = append(parts, "columns "+strings.Join(cols, ", "))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("cannot shrink rack: occupied cells would be removed (%s)", strings.Join(e.Positions, ", "))
	}
	return fmt.Sprintf("cannot shrink rack: %s still have occupied cells (%s)",
		strings.Join(parts, " and "), strings.Join(e.Positions, ", "))
}

// CreateRackParams describes a new rack.
type CreateRackParams struct {
	Name         string
	Rows         int
	Columns      int
	DisplayOrder int
}

// UpdateRackParams carries optional changes; nil fields are left alone.
type UpdateRackParams struct {
	Name         *string
	DisplayOrder *int
	Rows         *int
	Columns      *int
}

// RackSummary is a rack as shown in listings.
type RackSummary struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Rows          int    `json:"rows"`
	Columns       int    `json:"columns"`
	DisplayOrder  int    `json:"display_order"`
	TotalCells    int    `json:"total_cells"`
	OccupiedCells int64  `json:"occupied_cells"`
}

// Service implements rack lifecycle and grid resizing.
type Service struct {
	store store.Store
	log   *zap.Logger
}

// NewService creates a rack service.
func NewService(st store.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, log: log}
}

// Create stores a rack and materializes its grid in one transaction.
func (s *Service) Create(ctx context.Context, p CreateRackParams) (*model.Rack, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, errors.New("rack name is required")
	}
	if err := grid.ValidateDimensions(p.Rows, p.Columns); err != nil {
		return nil, err
	}

	r := &model.Rack{Name: name, Rows: p.Rows, Columns: p.Columns, DisplayOrder: p.DisplayOrder}
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := checkName(ctx, tx, name, 0); err != nil {
			return err
		}
		if err := tx.CreateRack(ctx, r); err != nil {
			return err
		}
		_, err := tx.CreateGrid(ctx, r.ID, r.Rows, r.Columns)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("rack created",
		zap.Int64("rack_id", r.ID), zap.String("name", r.Name),
		zap.Int("rows", r.Rows), zap.Int("columns", r.Columns))
	return r, nil
}

// Update renames, reorders and resizes a rack in one transaction.
func (s *Service) Update(ctx context.Context, id int64, p UpdateRackParams) (*model.Rack, error) {
	var out *model.Rack
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		u := store.RackUpdate{DisplayOrder: p.DisplayOrder}
		if p.Name != nil {
			name := strings.TrimSpace(*p.Name)
			if name == "" {
				return errors.New("rack name is required")
			}
			if err := checkName(ctx, tx, name, id); err != nil {
				return err
			}
			u.Name = &name
		}
		if u.Name != nil || u.DisplayOrder != nil {
			if err := tx.UpdateRack(ctx, id, u); err != nil {
				return err
			}
		}

		var err error
		if p.Rows != nil || p.Columns != nil {
			out, err = s.resize(ctx, tx, id, p.Rows, p.Columns)
		} else {
			out, err = tx.GetRack(ctx, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Resize changes a rack's dimensions; a nil dimension keeps its current
// value. Growth always succeeds. Shrinking fails with *ShrinkBlockedError
// when a removed row or column still holds an occupied cell, and then
// nothing is changed. Surviving cells keep their ids, positions, versions
// and occupants.
func (s *Service) Resize(ctx context.Context, rackID int64, newRows, newColumns *int) (*model.Rack, error) {
	var out *model.Rack
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		var err error
		out, err = s.resize(ctx, tx, rackID, newRows, newColumns)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) resize(ctx context.Context, tx store.Store, rackID int64, newRows, newColumns *int) (*model.Rack, error) {
	if err := grid.ValidateDimensions(valueOr(newRows, 1), valueOr(newColumns, 1)); err != nil {
		return nil, err
	}

	r, err := tx.LockRack(ctx, rackID)
	if err != nil {
		return nil, err
	}
	rows, columns := r.Rows, r.Columns
	if newRows != nil {
		rows = *newRows
	}
	if newColumns != nil {
		columns = *newColumns
	}
	if err := grid.ValidateDimensions(rows, columns); err != nil {
		return nil, err
	}
	if rows == r.Rows && columns == r.Columns {
		return r, nil
	}

	if rows < r.Rows || columns < r.Columns {
		occupied, err := tx.OccupiedCellsOutside(ctx, rackID, rows, columns)
		if err != nil {
			return nil, err
		}
		if len(occupied) > 0 {
			return nil, shrinkBlocked(occupied, rows, columns)
		}
	}

	deleted, err := tx.DeleteCellsOutside(ctx, rackID, rows, columns)
	if err != nil {
		var occ *store.OccupiedCellsError
		if errors.As(err, &occ) {
			return nil, &ShrinkBlockedError{Positions: occ.Positions}
		}
		return nil, err
	}

	before, err := tx.ListCells(ctx, rackID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.CreateGrid(ctx, rackID, rows, columns); err != nil {
		return nil, err
	}
	if err := tx.UpdateRackDimensions(ctx, rackID, rows, columns); err != nil {
		return nil, err
	}

	s.log.Info("rack resized",
		zap.Int64("rack_id", rackID),
		zap.Int("from_rows", r.Rows), zap.Int("from_columns", r.Columns),
		zap.Int("rows", rows), zap.Int("columns", columns),
		zap.Int64("cells_removed", deleted),
		zap.Int("cells_added", rows*columns-len(before)),
	)

	r.Rows, r.Columns = rows, columns
	return r, nil
}

// shrinkBlocked reports which removed rows and columns hold the occupied cells.
func shrinkBlocked(occupied []model.Cell, rows, columns int) *ShrinkBlockedError {
	e := &ShrinkBlockedError{}
	seenRow := map[int]bool{}
	seenCol := map[int]bool{}
	for _, c := range occupied {
		e.Positions = append(e.Positions, c.Position)
		if c.RowIndex >= rows && !seenRow[c.RowIndex] {
			seenRow[c.RowIndex] = true
			e.Rows = append(e.Rows, grid.RowLabel(c.RowIndex))
		}
		if c.ColIndex >= columns && !seenCol[c.ColIndex] {
			seenCol[c.ColIndex] = true
			e.Columns = append(e.Columns, c.ColIndex+1)
		}
	}
	return e
}

// MaterializeGrid creates any missing cells for the rack's current
// dimensions and returns the grid in row-major order. It holds the rack
// lock resize takes, so it never recreates cells a concurrent shrink removed.
func (s *Service) MaterializeGrid(ctx context.Context, rackID int64) ([]model.Cell, error) {
	var cells []model.Cell
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		r, err := tx.LockRack(ctx, rackID)
		if err != nil {
			return err
		}
		cells, err = tx.CreateGrid(ctx, r.ID, r.Rows, r.Columns)
		return err
	})
	if err != nil {
		return nil, err
	}
	return cells, nil
}

// Delete removes an empty rack and its cells. Occupancy history is kept.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if _, err := tx.LockRack(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountOccupied(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("rack %d has %d occupied cells: %w", id, n, ErrRackOccupied)
		}
		return tx.DeleteRack(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("rack deleted", zap.Int64("rack_id", id))
	return nil
}

// List returns every rack in display order.
func (s *Service) List(ctx context.Context) ([]RackSummary, error) {
	racks, err := s.store.ListRacks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RackSummary, 0, len(racks))
	for _, r := range racks {
		out = append(out, RackSummary{
			ID:            r.ID,
			Name:          r.Name,
			Rows:          r.Rows,
			Columns:       r.Columns,
			DisplayOrder:  r.DisplayOrder,
			TotalCells:    r.Rows * r.Columns,
			OccupiedCells: r.OccupiedCells,
		})
	}
	return out, nil
}

func valueOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func checkName(ctx context.Context, tx store.Store, name string, exceptID int64) error {
	taken, err := tx.RackNameTaken(ctx, name, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%q: %w", name, ErrDuplicateName)
	}
	return nil
}
