package models

import "time"

// Account identifies one (client, marketplace, marketplace-account) triple
// together with the credentials and payload field mapping used for collection.
// Accounts are reference data: created and edited by the management
// collaborator, never mutated during a collection cycle.
type Account struct {
	ID                 int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ClientID           string    `gorm:"column:client_id;index"`
	Market             string    `gorm:"column:market"`     // ozon / wb
	AccountID          string    `gorm:"column:account_id"` // marketplace account label, e.g. "fm"
	APIKey             string    `gorm:"column:api_key"`
	Region             string    `gorm:"column:region"`
	ShelfPriceField    string    `gorm:"column:shelf_price_field"`    // payload offer field holding the shelf price
	ShowcasePriceField string    `gorm:"column:showcase_price_field"` // payload offer field holding the showcase price
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Account) TableName() string {
	return "accounts"
}

// Default payload offer fields used when an account carries no explicit mapping.
const (
	DefaultShelfPriceField    = "Price"
	DefaultShowcasePriceField = "PromoPrice"
)

// ShelfField returns the configured shelf price field or the default.
func (a *Account) ShelfField() string {
	if a.ShelfPriceField != "" {
		return a.ShelfPriceField
	}
	return DefaultShelfPriceField
}

// ShowcaseField returns the configured showcase price field or the default.
func (a *Account) ShowcaseField() string {
	if a.ShowcasePriceField != "" {
		return a.ShowcasePriceField
	}
	return DefaultShowcasePriceField
}
