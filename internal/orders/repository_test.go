package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mercato-labs/mercato-backend/pkg/db/models"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
	"github.com/mercato-labs/mercato-backend/pkg/pagination"
)

func TestCreateOrderPersistsItems(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := mustCreateTestProduct(t, db, 10, 19.99)
	order := &models.Order{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		Status:          enums.OrderStatusPending,
		TotalAmount:     product.Price,
		ShippingAddress: "1 Test Street",
		BillingAddress:  "1 Test Street",
		Phone:           "+34600000000",
		PaymentMethod:   enums.PaymentMethodCard,
		PaymentStatus:   enums.PaymentStatusPending,
		Items:           []models.OrderItem{testItem(product, 1)},
	}

	created, err := repo.CreateOrder(ctx, order)
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, created.ID, false)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, product.ID, found.Items[0].ProductID)
	assert.Equal(t, created.ID, found.Items[0].OrderID)
	assert.Equal(t, product.Name, found.Items[0].ProductName)
}

func TestFindByIDExcludesDeleted(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := mustCreateTestOrder(t, db, testOrderOpts{Deleted: true})

	_, err := repo.FindByID(ctx, order.ID, false)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	found, err := repo.FindByID(ctx, order.ID, true)
	require.NoError(t, err)
	assert.True(t, found.Deleted)
}

func TestListByUserPaginates(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	userID := uuid.New()
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		mustCreateTestOrder(t, db, testOrderOpts{
			UserID:    userID,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	mustCreateTestOrder(t, db, testOrderOpts{UserID: uuid.New(), CreatedAt: base})

	page1, next, err := repo.ListByUser(ctx, userID, pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotEmpty(t, next)

	page2, next2, err := repo.ListByUser(ctx, userID, pagination.Params{Limit: 2, Cursor: next}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Empty(t, next2)

	// Newest first across the pages, never another user's order.
	assert.True(t, page1[0].CreatedAt.After(page1[1].CreatedAt))
	for _, order := range append(page1, page2...) {
		assert.Equal(t, userID, order.UserID)
	}
}

func TestListAllFilters(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	shipped := mustCreateTestOrder(t, db, testOrderOpts{Status: enums.OrderStatusShipped})
	mustCreateTestOrder(t, db, testOrderOpts{Status: enums.OrderStatusPending})
	paid := mustCreateTestOrder(t, db, testOrderOpts{PaymentStatus: enums.PaymentStatusPaid})
	mustCreateTestOrder(t, db, testOrderOpts{CreatedAt: old})
	mustCreateTestOrder(t, db, testOrderOpts{Deleted: true})

	statusFilter := enums.OrderStatusShipped
	rows, _, err := repo.ListAll(ctx, pagination.Params{}, ListFilters{Status: &statusFilter})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, shipped.ID, rows[0].ID)

	paymentFilter := enums.PaymentStatusPaid
	rows, _, err = repo.ListAll(ctx, pagination.Params{}, ListFilters{PaymentStatus: &paymentFilter})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, paid.ID, rows[0].ID)

	from := time.Now().Add(-24 * time.Hour)
	rows, _, err = repo.ListAll(ctx, pagination.Params{}, ListFilters{DateFrom: &from})
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	to := time.Now().Add(-24 * time.Hour)
	rows, _, err = repo.ListAll(ctx, pagination.Params{}, ListFilters{DateTo: &to})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, old.Unix(), rows[0].CreatedAt.Unix())
}

func TestUpdateOrderMissingRow(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	err := repo.UpdateOrder(context.Background(), uuid.New(), map[string]any{"status": enums.OrderStatusConfirmed})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestFindPendingBefore(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	product := mustCreateTestProduct(t, db, 10, 9.50)
	cutoff := time.Now().Add(-24 * time.Hour)

	stale := mustCreateTestOrder(t, db, testOrderOpts{
		CreatedAt: cutoff.Add(-time.Hour),
		Items:     []models.OrderItem{testItem(product, 2)},
	})
	mustCreateTestOrder(t, db, testOrderOpts{CreatedAt: time.Now()})
	mustCreateTestOrder(t, db, testOrderOpts{
		Status:    enums.OrderStatusConfirmed,
		CreatedAt: cutoff.Add(-time.Hour),
	})
	mustCreateTestOrder(t, db, testOrderOpts{
		CreatedAt: cutoff.Add(-time.Hour),
		Deleted:   true,
	})

	rows, err := repo.FindPendingBefore(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, stale.ID, rows[0].ID)
	require.Len(t, rows[0].Items, 1)
	assert.Equal(t, 2, rows[0].Items[0].Quantity)
}
