package product

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercato-labs/mercato-backend/pkg/db/models"
)

func setupProductTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  category TEXT,
  image_url TEXT,
  price NUMERIC NOT NULL,
  stock_quantity INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(ddl).Error)

	return db
}

func mustCreateTestProduct(t *testing.T, db *gorm.DB, stock int) *models.Product {
	t.Helper()
	row := &models.Product{
		ID:            uuid.New(),
		SKU:           fmt.Sprintf("SKU-%s", uuid.NewString()),
		Name:          "Test Product",
		Price:         decimal.NewFromFloat(19.99),
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}
