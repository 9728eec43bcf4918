package orders

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercato-labs/mercato-backend/pkg/db/models"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	products := `
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
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  total_amount NUMERIC NOT NULL,
  shipping_address TEXT NOT NULL,
  billing_address TEXT NOT NULL,
  phone TEXT NOT NULL,
  notes TEXT,
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  delivered_at DATETIME,
  cancelled_at DATETIME,
  deleted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  subtotal NUMERIC NOT NULL,
  created_at DATETIME
);`
	for _, ddl := range []string{products, orders, orderItems} {
		require.NoError(t, db.Exec(ddl).Error)
	}

	return db
}

func mustCreateTestProduct(t *testing.T, db *gorm.DB, stock int, price float64) *models.Product {
	t.Helper()
	row := &models.Product{
		ID:            uuid.New(),
		SKU:           fmt.Sprintf("SKU-%s", uuid.NewString()),
		Name:          "Test Product",
		Price:         decimal.NewFromFloat(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

type testOrderOpts struct {
	UserID        uuid.UUID
	Status        enums.OrderStatus
	PaymentStatus enums.PaymentStatus
	CreatedAt     time.Time
	Deleted       bool
	Items         []models.OrderItem
}

func mustCreateTestOrder(t *testing.T, db *gorm.DB, opts testOrderOpts) *models.Order {
	t.Helper()

	if opts.UserID == uuid.Nil {
		opts.UserID = uuid.New()
	}
	if opts.Status == "" {
		opts.Status = enums.OrderStatusPending
	}
	if opts.PaymentStatus == "" {
		opts.PaymentStatus = enums.PaymentStatusPending
	}
	if opts.CreatedAt.IsZero() {
		opts.CreatedAt = time.Now()
	}

	total := decimal.Zero
	for i := range opts.Items {
		if opts.Items[i].ID == uuid.Nil {
			opts.Items[i].ID = uuid.New()
		}
		total = total.Add(opts.Items[i].Subtotal)
	}

	row := &models.Order{
		ID:              uuid.New(),
		UserID:          opts.UserID,
		Status:          opts.Status,
		TotalAmount:     total,
		ShippingAddress: "1 Test Street",
		BillingAddress:  "1 Test Street",
		Phone:           "+34600000000",
		PaymentMethod:   enums.PaymentMethodCard,
		PaymentStatus:   opts.PaymentStatus,
		Deleted:         opts.Deleted,
		Items:           opts.Items,
		CreatedAt:       opts.CreatedAt,
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

func testItem(product *models.Product, qty int) models.OrderItem {
	return models.OrderItem{
		ID:          uuid.New(),
		ProductID:   product.ID,
		ProductName: product.Name,
		Quantity:    qty,
		UnitPrice:   product.Price,
		Subtotal:    product.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func productStock(t *testing.T, db *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var row models.Product
	require.NoError(t, db.First(&row, "id = ?", productID).Error)
	return row.StockQuantity
}
