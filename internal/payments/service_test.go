package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/mercato-labs/mercato-backend/internal/orders"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercato-labs/mercato-backend/pkg/errors"
)

type stubOrdersReader struct {
	order *orders.OrderDTO
	err   error
}

func (s *stubOrdersReader) Get(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*orders.OrderDTO, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

type stubStripeClient struct {
	lastIntentParams *stripe.PaymentIntentParams
	lastRefundParams *stripe.RefundParams
	intentErr        error
}

func (s *stubStripeClient) CreateIntent(ctx context.Context, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.lastIntentParams = params
	if s.intentErr != nil {
		return nil, s.intentErr
	}
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}, nil
}

func (s *stubStripeClient) RefundIntent(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	s.lastRefundParams = params
	return &stripe.Refund{ID: "re_123"}, nil
}

func payableOrder() *orders.OrderDTO {
	return &orders.OrderDTO{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Status:        enums.OrderStatusPending,
		TotalAmount:   "44.99",
		PaymentMethod: enums.PaymentMethodCard,
		PaymentStatus: enums.PaymentStatusPending,
	}
}

func TestCreateIntentBuildsStripeParams(t *testing.T) {
	order := payableOrder()
	reader := &stubOrdersReader{order: order}
	client := &stubStripeClient{}
	svc, err := NewService(reader, client)
	require.NoError(t, err)

	actor := orders.Actor{UserID: order.UserID, Role: enums.UserRoleCustomer}
	dto, err := svc.CreateIntent(context.Background(), actor, order.ID)
	require.NoError(t, err)

	assert.Equal(t, "pi_123", dto.IntentID)
	assert.Equal(t, "pi_123_secret", dto.ClientSecret)
	assert.Equal(t, "44.99", dto.Amount)
	assert.Equal(t, "usd", dto.Currency)

	params := client.lastIntentParams
	require.NotNil(t, params)
	assert.Equal(t, int64(4499), *params.Amount)
	assert.Equal(t, "usd", *params.Currency)
	assert.Equal(t, order.ID.String(), params.Metadata[OrderMetadataKey])
}

func TestCreateIntentRejectsNonCardOrders(t *testing.T) {
	order := payableOrder()
	order.PaymentMethod = enums.PaymentMethodCashOnDelivery
	svc, err := NewService(&stubOrdersReader{order: order}, &stubStripeClient{})
	require.NoError(t, err)

	_, err = svc.CreateIntent(context.Background(), orders.Actor{UserID: order.UserID, Role: enums.UserRoleCustomer}, order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestCreateIntentRejectsSettledPayment(t *testing.T) {
	order := payableOrder()
	order.PaymentStatus = enums.PaymentStatusPaid
	svc, err := NewService(&stubOrdersReader{order: order}, &stubStripeClient{})
	require.NoError(t, err)

	_, err = svc.CreateIntent(context.Background(), orders.Actor{UserID: order.UserID, Role: enums.UserRoleCustomer}, order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCreateIntentRejectsCancelledOrder(t *testing.T) {
	order := payableOrder()
	order.Status = enums.OrderStatusCancelled
	svc, err := NewService(&stubOrdersReader{order: order}, &stubStripeClient{})
	require.NoError(t, err)

	_, err = svc.CreateIntent(context.Background(), orders.Actor{UserID: order.UserID, Role: enums.UserRoleCustomer}, order.ID)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCreateIntentPropagatesOrderLookupError(t *testing.T) {
	lookupErr := pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	svc, err := NewService(&stubOrdersReader{err: lookupErr}, &stubStripeClient{})
	require.NoError(t, err)

	_, err = svc.CreateIntent(context.Background(), orders.Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}, uuid.New())
	assert.ErrorIs(t, err, lookupErr)
}
