package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yproz/spp-monitor/internal/models"
	"gorm.io/gorm"
)

var ErrClientNotFound = errors.New("client not found")

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// GetByID retrieves a client by ID
func (r *ClientRepository) GetByID(ctx context.Context, clientID string) (*models.Client, error) {
	var client models.Client
	result := r.db.WithContext(ctx).First(&client, "id = ?", clientID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", result.Error)
	}
	return &client, nil
}

// ListCollectable retrieves all clients holding a provider API key.
// Clients without one cannot place orders and are skipped by collection.
func (r *ClientRepository) ListCollectable(ctx context.Context) ([]models.Client, error) {
	var clients []models.Client
	result := r.db.WithContext(ctx).
		Where("parser_api_key IS NOT NULL").
		Order("id ASC").
		Find(&clients)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list clients: %w", result.Error)
	}
	return clients, nil
}
