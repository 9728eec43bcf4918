package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mercato-labs/mercato-backend/pkg/db/models"
)

// ProductDTO is the read model returned by product endpoints.
type ProductDTO struct {
	ID            uuid.UUID `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   *string   `json:"description,omitempty"`
	Category      *string   `json:"category,omitempty"`
	ImageURL      *string   `json:"image_url,omitempty"`
	Price         string    `json:"price"`
	StockQuantity int       `json:"stock_quantity"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProductListResult wraps a page of products plus the next cursor.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	SKU           string
	Name          string
	Description   *string
	Category      *string
	ImageURL      *string
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name          *string
	Description   *string
	Category      *string
	ImageURL      *string
	Price         *decimal.Decimal
	StockQuantity *int
	IsActive      *bool
}

func toDTO(p models.Product) ProductDTO {
	return ProductDTO{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		Description:   p.Description,
		Category:      p.Category,
		ImageURL:      p.ImageURL,
		Price:         p.Price.StringFixed(2),
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}
