package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is one product's observed prices from one completed job.
// Records are immutable once written; the (client_id, job_id, product_code)
// key makes re-ingestion of the same payload a no-op.
type PriceRecord struct {
	ID              int64            `gorm:"column:id;primaryKey;autoIncrement"`
	ClientID        string           `gorm:"column:client_id"`
	JobID           string           `gorm:"column:job_id"`
	AccountID       int64            `gorm:"column:account_id;index"`
	ProductCode     string           `gorm:"column:product_code"`
	ProductName     string           `gorm:"column:product_name"`
	ShelfPrice      decimal.Decimal  `gorm:"column:shelf_price;type:numeric"`
	ShowcasePrice   decimal.Decimal  `gorm:"column:showcase_price;type:numeric"`
	DiscountPercent *decimal.Decimal `gorm:"column:discount_percent;type:numeric"` // nil when undefined (shelf price <= 0)
	Unmatched       bool             `gorm:"column:unmatched"`
	ObservedAt      time.Time        `gorm:"column:observed_at;index"`
}

// TableName specifies the table name for GORM
func (PriceRecord) TableName() string {
	return "price_records"
}

// ComputeDiscountPercent returns (shelf - showcase) / shelf * 100.
// The second return value is false when the shelf price is not positive,
// in which case the discount is undefined and must not enter diff counts.
func ComputeDiscountPercent(shelf, showcase decimal.Decimal) (decimal.Decimal, bool) {
	if shelf.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, false
	}
	return shelf.Sub(showcase).Div(shelf).Mul(decimal.NewFromInt(100)), true
}

// Snapshot is the set of price records produced by one completed job for one
// account, timestamped by the job's completion.
type Snapshot struct {
	JobID       string
	AccountID   int64
	CompletedAt time.Time
	Records     []PriceRecord
}
