package models

import "time"

type JobStatus string

const (
	JobStatusSubmitted JobStatus = "submitted" // accepted by the provider, not yet seen running
	JobStatusPolling   JobStatus = "polling"   // provider reports the task still running
	JobStatusCompleted JobStatus = "completed" // provider finished; payload fetched
	JobStatusFailed    JobStatus = "failed"    // provider error or ingestion gave up
	JobStatusTimedOut  JobStatus = "timed_out" // non-terminal for longer than the configured timeout
)

// CollectionJob represents one outstanding request to the price data provider
// for one account. At most one job per account may be in a non-terminal state;
// the partial unique index on account_id enforces this at the store level.
type CollectionJob struct {
	ID             string     `gorm:"column:id;primaryKey"`
	ClientID       string     `gorm:"column:client_id;index"`
	AccountID      int64      `gorm:"column:account_id"`
	ExternalTaskID string     `gorm:"column:external_task_id;uniqueIndex"`
	Status         JobStatus  `gorm:"column:status;index"`
	ResultURL      *string    `gorm:"column:result_url"`
	Ingested       bool       `gorm:"column:ingested"`
	IngestAttempts int        `gorm:"column:ingest_attempts"`
	LastError      *string    `gorm:"column:last_error"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
}

// TableName specifies the table name for GORM
func (CollectionJob) TableName() string {
	return "collection_jobs"
}

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusTimedOut
}

// Active reports whether the job still occupies its account's submission slot.
func (s JobStatus) Active() bool {
	return s == JobStatusSubmitted || s == JobStatusPolling
}
