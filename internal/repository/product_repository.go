package repository

import (
	"context"
	"fmt"

	"github.com/yproz/spp-monitor/internal/models"
	"gorm.io/gorm"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ListByAccount retrieves all tracked products for an account
func (r *ProductRepository) ListByAccount(ctx context.Context, accountID int64) ([]models.Product, error) {
	var products []models.Product
	result := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("product_code ASC").
		Find(&products)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list products: %w", result.Error)
	}
	return products, nil
}

// CodesByAccount returns the set of known product codes for an account.
// Payload rows outside this set are recorded as unmatched.
func (r *ProductRepository) CodesByAccount(ctx context.Context, accountID int64) (map[string]bool, error) {
	var codes []string
	result := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("account_id = ?", accountID).
		Pluck("product_code", &codes)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list product codes: %w", result.Error)
	}

	set := make(map[string]bool, len(codes))
	for _, code := range codes {
		set[code] = true
	}
	return set, nil
}
