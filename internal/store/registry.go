package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cagerack-backend/internal/model"
)

// --- Racks ---

func (s *gormStore) GetRack(ctx context.Context, id int64) (*model.Rack, error) {
	var rack model.Rack
	if err := s.db.WithContext(ctx).First(&rack, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("rack %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load rack %d: %w", id, err)
	}
	return &rack, nil
}

// LockRack loads the rack with a row lock held until the surrounding
// transaction ends, serializing structural changes to one rack.
func (s *gormStore) LockRack(ctx context.Context, id int64) (*model.Rack, error) {
	var rack model.Rack
	if err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&rack, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("rack %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to lock rack %d: %w", id, err)
	}
	return &rack, nil
}

// ListRacks returns racks in display order with occupied-cell counts.
func (s *gormStore) ListRacks(ctx context.Context) ([]RackWithUsage, error) {
	var racks []model.Rack
	if err := s.db.WithContext(ctx).Order("display_order, id").Find(&racks).Error; err != nil {
		return nil, fmt.Errorf("failed to list racks: %w", err)
	}

	type aggRow struct {
		RackID   int64
		Occupied int64
	}
	var aggs []aggRow
	if err := s.db.WithContext(ctx).
		Model(&model.Cell{}).
		Select("rack_id as rack_id, COUNT(*) as occupied").
		Where("occupant_id IS NOT NULL").
		Group("rack_id").
		Scan(&aggs).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate occupied cells: %w", err)
	}
	aggMap := make(map[int64]int64, len(aggs))
	for _, a := range aggs {
		aggMap[a.RackID] = a.Occupied
	}

	out := make([]RackWithUsage, 0, len(racks))
	for _, r := range racks {
		out = append(out, RackWithUsage{
			ID:            r.ID,
			Name:          r.Name,
			Rows:          r.Rows,
			Columns:       r.Columns,
			DisplayOrder:  r.DisplayOrder,
			OccupiedCells: aggMap[r.ID],
		})
	}
	return out, nil
}

func (s *gormStore) CreateRack(ctx context.Context, rack *model.Rack) error {
	if err := s.db.WithContext(ctx).Create(rack).Error; err != nil {
		return fmt.Errorf("failed to create rack %q: %w", rack.Name, err)
	}
	return nil
}

func (s *gormStore) UpdateRack(ctx context.Context, id int64, u RackUpdate) error {
	updates := map[string]any{}
	if u.Name != nil {
		updates["name"] = *u.Name
	}
	if u.DisplayOrder != nil {
		updates["display_order"] = *u.DisplayOrder
	}
	if len(updates) == 0 {
		return nil
	}
	return s.updateRackColumns(ctx, id, updates)
}

func (s *gormStore) UpdateRackDimensions(ctx context.Context, id int64, rows, columns int) error {
	return s.updateRackColumns(ctx, id, map[string]any{"rows": rows, "columns": columns})
}

func (s *gormStore) updateRackColumns(ctx context.Context, id int64, updates map[string]any) error {
	res := s.db.WithContext(ctx).Model(&model.Rack{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update rack %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("rack %d: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteRack removes the rack and its cells. Occupancy records are kept.
func (s *gormStore) DeleteRack(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rack_id = ?", id).Delete(&model.Cell{}).Error; err != nil {
			return fmt.Errorf("failed to delete cells of rack %d: %w", id, err)
		}
		if err := tx.Exec("DELETE FROM subscription_rack_mapping WHERE rack_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete subscriptions of rack %d: %w", id, err)
		}
		res := tx.Delete(&model.Rack{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete rack %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("rack %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func (s *gormStore) RackNameTaken(ctx context.Context, name string, exceptID int64) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).
		Model(&model.Rack{}).
		Where("name = ? AND id <> ?", name, exceptID).
		Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check rack name: %w", err)
	}
	return n > 0, nil
}

// --- Professors ---

func (s *gormStore) ProfessorExists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Professor{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to check professor %d: %w", id, err)
	}
	return n > 0, nil
}

func (s *gormStore) ProfessorName(ctx context.Context, id int64) (string, error) {
	p, err := s.GetProfessor(ctx, id)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

func (s *gormStore) GetProfessor(ctx context.Context, id int64) (*model.Professor, error) {
	var p model.Professor
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("professor %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load professor %d: %w", id, err)
	}
	return &p, nil
}

// ListProfessors returns professors by name with their occupied-cell counts.
func (s *gormStore) ListProfessors(ctx context.Context) ([]ProfessorWithUsage, error) {
	var professors []model.Professor
	if err := s.db.WithContext(ctx).Order("name").Find(&professors).Error; err != nil {
		return nil, fmt.Errorf("failed to list professors: %w", err)
	}

	type aggRow struct {
		OccupantID int64
		Occupied   int64
	}
	var aggs []aggRow
	if err := s.db.WithContext(ctx).
		Model(&model.Cell{}).
		Select("occupant_id as occupant_id, COUNT(*) as occupied").
		Where("occupant_id IS NOT NULL").
		Group("occupant_id").
		Scan(&aggs).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate professor usage: %w", err)
	}
	aggMap := make(map[int64]int64, len(aggs))
	for _, a := range aggs {
		aggMap[a.OccupantID] = a.Occupied
	}

	out := make([]ProfessorWithUsage, 0, len(professors))
	for _, p := range professors {
		out = append(out, ProfessorWithUsage{
			ID:            p.ID,
			Name:          p.Name,
			StudentName:   p.StudentName,
			Contact:       p.Contact,
			ColorCode:     p.ColorCode,
			OccupiedCells: aggMap[p.ID],
		})
	}
	return out, nil
}

func (s *gormStore) CreateProfessor(ctx context.Context, p *model.Professor) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Professor{}).Where("name = ?", p.Name).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check professor name: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%q: %w", p.Name, ErrProfessorNameTaken)
		}
		if err := tx.Create(p).Error; err != nil {
			return fmt.Errorf("failed to create professor %q: %w", p.Name, err)
		}
		return nil
	})
}

// ProfessorOccupiedCells counts the cells currently held by the professor.
func (s *gormStore) ProfessorOccupiedCells(ctx context.Context, id int64) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.Cell{}).Where("occupant_id = ?", id).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count cells of professor %d: %w", id, err)
	}
	return n, nil
}

// UpdateProfessor applies the non-nil fields of u. A new name must not
// belong to another professor.
func (s *gormStore) UpdateProfessor(ctx context.Context, id int64, u ProfessorUpdate) (*model.Professor, error) {
	var p model.Professor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("professor %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("failed to load professor %d: %w", id, err)
		}

		updates := map[string]any{}
		if u.Name != nil && *u.Name != p.Name {
			var n int64
			if err := tx.Model(&model.Professor{}).Where("name = ? AND id <> ?", *u.Name, id).Count(&n).Error; err != nil {
				return fmt.Errorf("failed to check professor name: %w", err)
			}
			if n > 0 {
				return fmt.Errorf("%q: %w", *u.Name, ErrProfessorNameTaken)
			}
			updates["name"] = *u.Name
		}
		if u.StudentName != nil {
			updates["student_name"] = *u.StudentName
		}
		if u.Contact != nil {
			updates["contact"] = *u.Contact
		}
		if u.ColorCode != nil {
			updates["color_code"] = *u.ColorCode
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&p).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update professor %d: %w", id, err)
		}
		return tx.First(&p, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProfessor refuses while the professor occupies any cell.
func (s *gormStore) DeleteProfessor(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Cell{}).Where("occupant_id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check cells of professor %d: %w", id, err)
		}
		if n > 0 {
			return fmt.Errorf("professor %d occupies %d cells: %w", id, n, ErrProfessorInUse)
		}
		res := tx.Delete(&model.Professor{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete professor %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("professor %d: %w", id, ErrNotFound)
		}
		return nil
	})
}
