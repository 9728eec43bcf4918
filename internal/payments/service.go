package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/mercato-labs/mercato-backend/internal/orders"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercato-labs/mercato-backend/pkg/errors"
)

// OrderMetadataKey is the payment intent metadata key that carries the order id.
const OrderMetadataKey = "order_id"

const intentCurrency = "usd"

// IntentDTO carries what a client needs to complete a card payment.
type IntentDTO struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
}

type ordersReader interface {
	Get(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*orders.OrderDTO, error)
}

// Service creates payment intents for card orders.
type Service interface {
	CreateIntent(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*IntentDTO, error)
}

type service struct {
	orders ordersReader
	stripe StripePaymentClient
}

// NewService builds a payment service with the provided dependencies.
func NewService(ordersSvc ordersReader, stripeClient StripePaymentClient) (Service, error) {
	if ordersSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &service{orders: ordersSvc, stripe: stripeClient}, nil
}

func (s *service) CreateIntent(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*IntentDTO, error) {
	order, err := s.orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodCard {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not payable by card")
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order payment already settled").
			WithDetails(map[string]any{"current": order.PaymentStatus})
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled").
			WithDetails(map[string]any{"current": order.Status})
	}

	amount, err := decimal.NewFromString(order.TotalAmount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse order total")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount.Shift(2).IntPart()),
		Currency: stripe.String(intentCurrency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(OrderMetadataKey, order.ID.String())

	intent, err := s.stripe.CreateIntent(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	return &IntentDTO{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       order.TotalAmount,
		Currency:     intentCurrency,
	}, nil
}
