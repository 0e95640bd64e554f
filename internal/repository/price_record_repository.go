package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/yproz/spp-monitor/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PriceRecordRepository struct {
	db *gorm.DB
}

func NewPriceRecordRepository(db *gorm.DB) *PriceRecordRepository {
	return &PriceRecordRepository{db: db}
}

// BulkInsert writes price records under the (client_id, job_id, product_code)
// key. Conflicting rows are skipped, not rewritten, so re-ingesting the same
// payload after a partial failure is safe.
func (r *PriceRecordRepository) BulkInsert(ctx context.Context, records []models.PriceRecord) error {
	if len(records) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "job_id"}, {Name: "product_code"}},
			DoNothing: true,
		}).
		Create(&records)
	if result.Error != nil {
		return fmt.Errorf("failed to insert price records: %w", result.Error)
	}
	return nil
}

// ListByJob retrieves all records written for one job
func (r *PriceRecordRepository) ListByJob(ctx context.Context, jobID string) ([]models.PriceRecord, error) {
	var records []models.PriceRecord
	result := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("product_code ASC").
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list records: %w", result.Error)
	}
	return records, nil
}

// LatestSnapshots returns up to n snapshots for an account, newest first.
// A snapshot is the record set of one job, timestamped by its observation time.
func (r *PriceRecordRepository) LatestSnapshots(ctx context.Context, accountID int64, n int) ([]models.Snapshot, error) {
	type jobRow struct {
		JobID      string
		ObservedAt time.Time
	}
	var jobRows []jobRow
	result := r.db.WithContext(ctx).Model(&models.PriceRecord{}).
		Select("job_id, MAX(observed_at) AS observed_at").
		Where("account_id = ?", accountID).
		Group("job_id").
		Order("observed_at DESC").
		Limit(n).
		Scan(&jobRows)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", result.Error)
	}

	snapshots := make([]models.Snapshot, 0, len(jobRows))
	for _, row := range jobRows {
		records, err := r.ListByJob(ctx, row.JobID)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, models.Snapshot{
			JobID:       row.JobID,
			AccountID:   accountID,
			CompletedAt: row.ObservedAt,
			Records:     records,
		})
	}
	return snapshots, nil
}

// ListForDate returns the latest observation per (account, product) for a
// client within one calendar day. Backs the "report for date D" command.
func (r *PriceRecordRepository) ListForDate(ctx context.Context, clientID string, day time.Time) ([]models.PriceRecord, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var records []models.PriceRecord
	result := r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT ON (account_id, product_code) *
		FROM price_records
		WHERE client_id = ? AND observed_at >= ? AND observed_at < ?
		ORDER BY account_id, product_code, observed_at DESC
	`, clientID, start, end).Scan(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list records for date: %w", result.Error)
	}
	return records, nil
}
