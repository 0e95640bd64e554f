package models

import "time"

// Client represents a customer whose marketplace prices are monitored.
// Clients without a parser API key are skipped by collection.
type Client struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Name         string    `gorm:"column:name"`
	GroupChatID  int64     `gorm:"column:group_chat_id"`
	ParserAPIKey *string   `gorm:"column:parser_api_key"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (Client) TableName() string {
	return "clients"
}
