package models

import "time"

// Product is a tracked catalog entry, unique per (account, product code).
// Products are bulk-imported by an external collaborator and read-only here.
type Product struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ClientID    string    `gorm:"column:client_id;index"`
	AccountID   int64     `gorm:"column:account_id;index"`
	ProductCode string    `gorm:"column:product_code"`
	ProductName string    `gorm:"column:product_name"`
	ProductLink *string   `gorm:"column:product_link"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Product) TableName() string {
	return "products"
}
