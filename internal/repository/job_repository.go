package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yproz/spp-monitor/internal/models"
	"gorm.io/gorm"
)

// ErrActiveJobExists signals that the account already has a non-terminal job.
// The partial unique index on collection_jobs(account_id) raises it; callers
// resolve it by returning the existing job instead of creating a duplicate.
var ErrActiveJobExists = errors.New("account already has an active job")

var ErrJobNotFound = errors.New("job not found")

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create persists a new job in submitted state. The active-job invariant is
// enforced by the store, not in memory, so a concurrent submission from
// another worker instance still yields exactly one row.
func (r *JobRepository) Create(ctx context.Context, job models.CollectionJob) error {
	result := r.db.WithContext(ctx).Create(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrActiveJobExists
		}
		return fmt.Errorf("failed to create job: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a job by engine id
func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*models.CollectionJob, error) {
	var job models.CollectionJob
	result := r.db.WithContext(ctx).First(&job, "id = ?", jobID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", result.Error)
	}
	return &job, nil
}

// GetActiveByAccount retrieves the account's non-terminal job, if any.
func (r *JobRepository) GetActiveByAccount(ctx context.Context, accountID int64) (*models.CollectionJob, error) {
	var job models.CollectionJob
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND status IN ?", accountID,
			[]models.JobStatus{models.JobStatusSubmitted, models.JobStatusPolling}).
		First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query active job: %w", result.Error)
	}
	return &job, nil
}

// ListActive retrieves all jobs awaiting a provider status transition.
func (r *JobRepository) ListActive(ctx context.Context) ([]models.CollectionJob, error) {
	var jobs []models.CollectionJob
	result := r.db.WithContext(ctx).
		Where("status IN ?", []models.JobStatus{models.JobStatusSubmitted, models.JobStatusPolling}).
		Order("created_at ASC").
		Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query active jobs: %w", result.Error)
	}
	return jobs, nil
}

// ListCompletedUningested retrieves completed jobs whose payload has not been
// ingested yet, bounded by the retry limit. Completion and ingestion are
// decoupled so a transient ingestion error does not lose a finished job.
func (r *JobRepository) ListCompletedUningested(ctx context.Context, maxAttempts int) ([]models.CollectionJob, error) {
	var jobs []models.CollectionJob
	result := r.db.WithContext(ctx).
		Where("status = ? AND ingested = FALSE AND ingest_attempts < ?",
			models.JobStatusCompleted, maxAttempts).
		Order("completed_at ASC").
		Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to query uningested jobs: %w", result.Error)
	}
	return jobs, nil
}

// UpdateStatus updates the job status and error message
func (r *JobRepository) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus, lastError *string) error {
	updates := map[string]interface{}{
		"status":     status,
		"last_error": lastError,
		"updated_at": time.Now(),
	}

	result := r.db.WithContext(ctx).Model(&models.CollectionJob{}).
		Where("id = ?", jobID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update job status: %w", result.Error)
	}
	return nil
}

// MarkCompleted records completion time and the report location.
func (r *JobRepository) MarkCompleted(ctx context.Context, jobID string, resultURL string, completedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.CollectionJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"result_url":   resultURL,
			"completed_at": completedAt,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark job completed: %w", result.Error)
	}
	return nil
}

// MarkIngested flags the job's payload as durably written.
func (r *JobRepository) MarkIngested(ctx context.Context, jobID string) error {
	result := r.db.WithContext(ctx).Model(&models.CollectionJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"ingested":   true,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark job ingested: %w", result.Error)
	}
	return nil
}

// IncrementIngestAttempts increments the ingestion retry counter
func (r *JobRepository) IncrementIngestAttempts(ctx context.Context, jobID string) error {
	result := r.db.WithContext(ctx).Model(&models.CollectionJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"ingest_attempts": gorm.Expr("ingest_attempts + 1"),
			"updated_at":      time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment ingest attempts: %w", result.Error)
	}
	return nil
}

// TimeOutStale force-transitions jobs non-terminal for longer than the cutoff,
// freeing their accounts for resubmission.
func (r *JobRepository) TimeOutStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.CollectionJob{}).
		Where("status IN ? AND created_at < ?",
			[]models.JobStatus{models.JobStatusSubmitted, models.JobStatusPolling}, cutoff).
		Updates(map[string]interface{}{
			"status":     models.JobStatusTimedOut,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to time out stale jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
