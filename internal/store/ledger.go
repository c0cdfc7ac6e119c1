package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"cagerack-backend/internal/model"
)

// OpenRecord starts a new occupancy interval for a cell. A cell may have at
// most one open interval; the partial unique index created by db.Migrate
// backs this check under concurrency.
func (s *gormStore) OpenRecord(ctx context.Context, p OpenRecordParams) (*model.OccupancyRecord, error) {
	open, err := s.OpenRecordFor(ctx, p.CellID)
	if err != nil && !errors.Is(err, ErrNoOpenRecord) {
		return nil, err
	}
	if open != nil {
		return nil, fmt.Errorf("cell %d (record %d): %w", p.CellID, open.ID, ErrAlreadyOpen)
	}

	record := model.OccupancyRecord{
		CellID:     p.CellID,
		OccupantID: p.OccupantID,
		ActorID:    p.ActorID,
		AssignedOn: p.BillingDate,
		AssignedAt: p.AssignedAt,
		UnitCost:   p.UnitCost,
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to open occupancy record for cell %d: %w", p.CellID, err)
	}
	return &record, nil
}

// CloseOpenRecord stamps the cell's open record with releasedAt.
func (s *gormStore) CloseOpenRecord(ctx context.Context, cellID int64, releasedAt time.Time) (*model.OccupancyRecord, error) {
	open, err := s.OpenRecordFor(ctx, cellID)
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).
		Model(&model.OccupancyRecord{}).
		Where("id = ? AND released_at IS NULL", open.ID).
		Update("released_at", releasedAt)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to close occupancy record %d: %w", open.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("cell %d: %w", cellID, ErrNoOpenRecord)
	}

	open.ReleasedAt = &releasedAt
	return open, nil
}

// OpenRecordFor returns the cell's open record or ErrNoOpenRecord.
func (s *gormStore) OpenRecordFor(ctx context.Context, cellID int64) (*model.OccupancyRecord, error) {
	var record model.OccupancyRecord
	err := s.db.WithContext(ctx).
		Where("cell_id = ? AND released_at IS NULL", cellID).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("cell %d: %w", cellID, ErrNoOpenRecord)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load open record for cell %d: %w", cellID, err)
	}
	return &record, nil
}

// RecordsInRange returns records billed between start and end inclusive.
// Both bounds are billing dates as produced by clock.DateOf.
func (s *gormStore) RecordsInRange(ctx context.Context, start, end time.Time) ([]model.OccupancyRecord, error) {
	var records []model.OccupancyRecord
	if err := s.db.WithContext(ctx).
		Where("assigned_on >= ? AND assigned_on <= ?", start, end).
		Order("assigned_on, id").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list occupancy records: %w", err)
	}
	return records, nil
}
