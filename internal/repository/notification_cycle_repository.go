package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yproz/spp-monitor/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationCycleRepository struct {
	db *gorm.DB
}

func NewNotificationCycleRepository(db *gorm.DB) *NotificationCycleRepository {
	return &NotificationCycleRepository{db: db}
}

// Claim records the (client, account, job) tuple as notified. The unique
// index on job_id makes the insert the at-most-once decision point: the
// first caller gets true, every replay of the same completion event false.
func (r *NotificationCycleRepository) Claim(ctx context.Context, cycle models.NotificationCycle) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoNothing: true,
		}).
		Create(&cycle)
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim notification cycle: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// LastNotifiedJob returns the most recently notified job id for a client's
// account, or empty when no summary went out yet.
func (r *NotificationCycleRepository) LastNotifiedJob(ctx context.Context, clientID string, accountID int64) (string, error) {
	var cycle models.NotificationCycle
	result := r.db.WithContext(ctx).
		Where("client_id = ? AND account_id = ?", clientID, accountID).
		Order("notified_at DESC").
		First(&cycle)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to query notification cycles: %w", result.Error)
	}
	return cycle.JobID, nil
}
