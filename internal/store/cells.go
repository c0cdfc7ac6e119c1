package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cagerack-backend/internal/grid"
	"cagerack-backend/internal/model"
)

const outsideGrid = "rack_id = ? AND (row_index >= ? OR col_index >= ?)"

// GetCell loads one cell by id.
func (s *gormStore) GetCell(ctx context.Context, id int64) (*model.Cell, error) {
	var cell model.Cell
	if err := s.db.WithContext(ctx).First(&cell, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cell %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load cell %d: %w", id, err)
	}
	return &cell, nil
}

// ListCells returns a rack's cells in row-major order.
func (s *gormStore) ListCells(ctx context.Context, rackID int64) ([]model.Cell, error) {
	var cells []model.Cell
	if err := s.db.WithContext(ctx).
		Where("rack_id = ?", rackID).
		Order("row_index, col_index").
		Find(&cells).Error; err != nil {
		return nil, fmt.Errorf("failed to list cells for rack %d: %w", rackID, err)
	}
	return cells, nil
}

// CreateGrid inserts whichever cells of the rows x columns grid are
// missing and returns the whole grid. Existing cells are left untouched, so
// calling it again, or concurrently, is harmless.
func (s *gormStore) CreateGrid(ctx context.Context, rackID int64, rows, columns int) ([]model.Cell, error) {
	if err := grid.ValidateDimensions(rows, columns); err != nil {
		return nil, err
	}

	existing, err := s.ListCells(ctx, rackID)
	if err != nil {
		return nil, err
	}
	present := make(map[[2]int]struct{}, len(existing))
	for _, c := range existing {
		present[[2]int{c.RowIndex, c.ColIndex}] = struct{}{}
	}

	var missing []model.Cell
	for r := 0; r < rows; r++ {
		for c := 0; c < columns; c++ {
			if _, ok := present[[2]int{r, c}]; ok {
				continue
			}
			missing = append(missing, model.Cell{
				RackID:   rackID,
				RowIndex: r,
				ColIndex: c,
				Position: grid.MustPosition(r, c),
				Version:  1,
			})
		}
	}

	if len(missing) > 0 {
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rack_id"}, {Name: "row_index"}, {Name: "col_index"}},
			DoNothing: true,
		}).CreateInBatches(&missing, 100).Error; err != nil {
			return nil, fmt.Errorf("failed to create cells for rack %d: %w", rackID, err)
		}
	}

	var cells []model.Cell
	if err := s.db.WithContext(ctx).
		Where("rack_id = ? AND row_index < ? AND col_index < ?", rackID, rows, columns).
		Order("row_index, col_index").
		Find(&cells).Error; err != nil {
		return nil, fmt.Errorf("failed to reload cells for rack %d: %w", rackID, err)
	}
	return cells, nil
}

// CompareAndSetOccupant sets the occupant (nil releases) and bumps the
// version, but only if the stored version still equals expectedVersion.
// The check and the write are one UPDATE statement.
func (s *gormStore) CompareAndSetOccupant(ctx context.Context, id, expectedVersion int64, occupantID *int64) (*model.Cell, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Cell{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"occupant_id": occupantID,
			"version":     gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update occupant of cell %d: %w", id, res.Error)
	}

	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.Cell{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check cell %d: %w", id, err)
		}
		if count == 0 {
			return nil, fmt.Errorf("cell %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("cell %d at version %d: %w", id, expectedVersion, ErrVersionConflict)
	}

	return s.GetCell(ctx, id)
}

// OccupiedCellsOutside lists occupied cells that fall outside a
// rows x columns grid.
func (s *gormStore) OccupiedCellsOutside(ctx context.Context, rackID int64, rows, columns int) ([]model.Cell, error) {
	var cells []model.Cell
	if err := s.db.WithContext(ctx).
		Where(outsideGrid+" AND occupant_id IS NOT NULL", rackID, rows, columns).
		Order("row_index, col_index").
		Find(&cells).Error; err != nil {
		return nil, fmt.Errorf("failed to find occupied cells for rack %d: %w", rackID, err)
	}
	return cells, nil
}

// DeleteCellsOutside removes every cell outside a rows x columns grid. The
// occupancy check and the delete share one transaction with the doomed rows
// locked, so an assignment cannot slip in between them.
func (s *gormStore) DeleteCellsOutside(ctx context.Context, rackID int64, rows, columns int) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doomed []model.Cell
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(outsideGrid, rackID, rows, columns).
			Order("row_index, col_index").
			Find(&doomed).Error; err != nil {
			return fmt.Errorf("failed to lock cells for rack %d: %w", rackID, err)
		}
		if len(doomed) == 0 {
			return nil
		}

		ids := make([]int64, 0, len(doomed))
		var occupied []string
		for _, c := range doomed {
			ids = append(ids, c.ID)
			if c.Occupied() {
				occupied = append(occupied, c.Position)
			}
		}
		if len(occupied) > 0 {
			return &OccupiedCellsError{Positions: occupied}
		}

		res := tx.Where("id IN ? AND occupant_id IS NULL", ids).Delete(&model.Cell{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete cells for rack %d: %w", rackID, res.Error)
		}
		if res.RowsAffected != int64(len(ids)) {
			return fmt.Errorf("rack %d: deleted %d of %d cells: %w", rackID, res.RowsAffected, len(ids), ErrOccupiedCell)
		}
		deleted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// CountOccupied returns how many cells of the rack have an occupant.
func (s *gormStore) CountOccupied(ctx context.Context, rackID int64) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&model.Cell{}).
		Where("rack_id = ? AND occupant_id IS NOT NULL", rackID).
		Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count occupied cells for rack %d: %w", rackID, err)
	}
	return n, nil
}
