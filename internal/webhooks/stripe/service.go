package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/mercato-labs/mercato-backend/internal/orders"
	"github.com/mercato-labs/mercato-backend/internal/payments"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercato-labs/mercato-backend/pkg/errors"
	"github.com/mercato-labs/mercato-backend/pkg/logger"
	"github.com/mercato-labs/mercato-backend/pkg/metrics"
)

const webhookSource = "stripe"

type ordersEngine interface {
	Get(ctx context.Context, actor orders.Actor, orderID uuid.UUID) (*orders.OrderDTO, error)
	UpdatePaymentStatus(ctx context.Context, actor orders.Actor, orderID uuid.UUID, next enums.PaymentStatus, source string) (*orders.OrderDTO, error)
}

type refunder interface {
	RefundIntent(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error)
}

// ServiceParams bundles the dependencies for the Stripe webhook service.
type ServiceParams struct {
	Orders   ordersEngine
	Refunder refunder
	Metrics  *metrics.OrderMetrics
	Logger   *logger.Logger
}

// Service reconciles Stripe payment intent events with order payment state.
type Service struct {
	orders   ordersEngine
	refunder refunder
	metrics  *metrics.OrderMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders engine required")
	}
	if params.Refunder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refunder required")
	}
	return &Service{
		orders:   params.Orders,
		refunder: params.Refunder,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// systemActor is the identity webhook reconciliation acts under.
var systemActor = orders.Actor{Role: enums.UserRoleAdmin}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		return s.handleIntent(ctx, event, enums.PaymentStatusPaid)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return s.handleIntent(ctx, event, enums.PaymentStatusFailed)
	default:
		s.metrics.IncWebhookEvent("ignored")
		return nil
	}
}

func (s *Service) handleIntent(ctx context.Context, event *stripe.Event, next enums.PaymentStatus) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
	}

	raw, ok := intent.Metadata[payments.OrderMetadataKey]
	if !ok || raw == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id metadata missing")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse order id metadata")
	}

	order, err := s.orders.Get(ctx, systemActor, orderID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// Intents for unknown orders are acknowledged so Stripe stops
			// redelivering; there is nothing to reconcile.
			s.warn(ctx, "stripe event for unknown order "+orderID.String())
			s.metrics.IncWebhookEvent("unknown_order")
			return nil
		}
		return err
	}

	if next == enums.PaymentStatusPaid && order.Status == enums.OrderStatusCancelled {
		// The charge settled after the order was cancelled. Return the money
		// instead of marking a cancelled order paid.
		if _, err := s.refunder.RefundIntent(ctx, &stripe.RefundParams{
			PaymentIntent: stripe.String(intent.ID),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund cancelled order")
		}
		s.metrics.IncWebhookEvent("refunded_after_cancel")
		return nil
	}

	if _, err := s.orders.UpdatePaymentStatus(ctx, systemActor, orderID, next, webhookSource); err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeStateConflict {
			// Redeliveries and out-of-order events land here once the payment
			// already settled.
			s.metrics.IncWebhookEvent("conflict_ignored")
			return nil
		}
		return err
	}

	s.metrics.IncWebhookEvent(string(next))
	return nil
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
