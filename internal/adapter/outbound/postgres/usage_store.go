package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/genrelay/server/internal/model"
	"github.com/genrelay/server/internal/port/outbound"
)

// usageStore implements outbound.UsageStorePort on the usage_records table.
type usageStore struct {
	db *gorm.DB
}

// NewUsageStore creates a new usage store backed by PostgreSQL.
func NewUsageStore(db *gorm.DB) outbound.UsageStorePort {
	return &usageStore{db: db}
}

func (s *usageStore) Get(ctx context.Context, subjectID string) (*model.UsageRecord, error) {
	var record model.UsageRecord
	err := s.db.WithContext(ctx).First(&record, "subject_id = ?", subjectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *usageStore) Set(ctx context.Context, record *model.UsageRecord) error {
	r := *record
	r.UpdatedAt = time.Now()
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subject_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"period_key", "count", "updated_at"}),
		}).
		Create(&r).Error
}

// CompareAndSwap relies on row-level atomicity: the conditional UPDATE only
// matches while the stored period and count equal old.
func (s *usageStore) CompareAndSwap(ctx context.Context, subjectID string, old, next *model.UsageRecord) (bool, error) {
	now := time.Now()

	if old == nil {
		r := model.UsageRecord{
			SubjectID: subjectID,
			PeriodKey: next.PeriodKey,
			Count:     next.Count,
			UpdatedAt: now,
		}
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&r)
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected == 1, nil
	}

	res := s.db.WithContext(ctx).
		Model(&model.UsageRecord{}).
		Where("subject_id = ? AND period_key = ? AND count = ?", subjectID, old.PeriodKey, old.Count).
		Updates(map[string]interface{}{
			"period_key": next.PeriodKey,
			"count":      next.Count,
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
