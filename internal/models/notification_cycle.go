package models

import "time"

// NotificationCycle marks a completed job as already notified for a client.
// Inserting the row is the at-most-once claim: a conflicting insert means a
// summary for this job id went out before and must not be sent again.
type NotificationCycle struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ClientID   string    `gorm:"column:client_id;index"`
	AccountID  int64     `gorm:"column:account_id"`
	JobID      string    `gorm:"column:job_id;uniqueIndex"`
	NotifiedAt time.Time `gorm:"column:notified_at"`
}

// TableName specifies the table name for GORM
func (NotificationCycle) TableName() string {
	return "notification_cycles"
}
