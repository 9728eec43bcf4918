package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercato-labs/mercato-backend/pkg/db/models"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercato-labs/mercato-backend/pkg/errors"
	"github.com/mercato-labs/mercato-backend/pkg/logger"
	"github.com/mercato-labs/mercato-backend/pkg/outbox/idempotency"
	"github.com/mercato-labs/mercato-backend/pkg/outbox/payloads"
	"github.com/mercato-labs/mercato-backend/pkg/outbox/registry"
)

const mailerConsumer = "order-mailer"

type userReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Notifier turns resolved outbox events into customer emails. Delivery is
// at-least-once from the dispatcher's perspective; the idempotency guard
// collapses redeliveries after a crash between send and mark.
type Notifier struct {
	users       userReader
	mailer      Mailer
	idempotency *idempotency.Manager
	logg        *logger.Logger
}

// NewNotifier wires the email pipeline dependencies.
func NewNotifier(users userReader, mailer Mailer, guard *idempotency.Manager, logg *logger.Logger) (*Notifier, error) {
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user reader required")
	}
	if mailer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mailer required")
	}
	if guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "idempotency manager required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Notifier{
		users:       users,
		mailer:      mailer,
		idempotency: guard,
		logg:        logg,
	}, nil
}

// Dispatch renders and sends the email for one outbox row. A nil return acks
// the row; a NonRetryableError parks it; anything else schedules a retry.
func (n *Notifier) Dispatch(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	recipient, msg, err := n.render(ctx, event, resolved)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	eventID, err := uuid.Parse(resolved.Envelope.EventID)
	if err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("invalid event id %q: %w", resolved.Envelope.EventID, err))
	}

	logCtx := n.logg.WithFields(ctx, map[string]any{
		"event_id":   resolved.Envelope.EventID,
		"event_type": event.EventType,
		"recipient":  recipient,
	})

	already, err := n.idempotency.CheckAndMarkProcessed(ctx, mailerConsumer, eventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if already {
		n.logg.Info(logCtx, "email already sent for event")
		return nil
	}

	msg.To = recipient
	if err := n.mailer.Send(ctx, *msg); err != nil {
		_ = n.idempotency.Delete(ctx, mailerConsumer, eventID)
		return fmt.Errorf("send %s email: %w", event.EventType, err)
	}
	n.logg.Info(logCtx, "notification email sent")
	return nil
}

// render returns the recipient address and message for the event, or a nil
// message when the event type produces no email.
func (n *Notifier) render(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) (string, *Message, error) {
	switch payload := resolved.Payload.(type) {
	case *payloads.OrderCreatedEvent:
		user, err := n.recipient(ctx, payload.UserID)
		if err != nil {
			return "", nil, err
		}
		return user.Email, orderCreatedMessage(user, payload), nil
	case *payloads.OrderStatusChangedEvent:
		user, err := n.recipient(ctx, payload.UserID)
		if err != nil {
			return "", nil, err
		}
		return user.Email, orderStatusMessage(user, payload), nil
	case *payloads.OrderCancelledEvent:
		user, err := n.recipient(ctx, payload.UserID)
		if err != nil {
			return "", nil, err
		}
		return user.Email, orderCancelledMessage(user, payload), nil
	case *payloads.OrderDeliveredEvent:
		user, err := n.recipient(ctx, payload.UserID)
		if err != nil {
			return "", nil, err
		}
		return user.Email, orderDeliveredMessage(user, payload), nil
	case *payloads.OrderExpiredEvent:
		user, err := n.recipient(ctx, payload.UserID)
		if err != nil {
			return "", nil, err
		}
		return user.Email, orderExpiredMessage(user, payload), nil
	case *payloads.PaymentStatusEvent:
		// The generic status-changed row duplicates a more specific payment
		// event, so only the specific ones produce mail.
		if event.EventType == enums.EventPaymentStatusChanged {
			return "", nil, nil
		}
		user, err := n.recipient(ctx, payload.UserID)
		if err != nil {
			return "", nil, err
		}
		return user.Email, paymentMessage(user, event.EventType, payload), nil
	case *payloads.UserRegisteredEvent:
		return payload.Email, welcomeMessage(payload), nil
	default:
		return "", nil, nil
	}
}

func (n *Notifier) recipient(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, registry.NewNonRetryableError(fmt.Errorf("event missing user id"))
	}
	user, err := n.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, registry.NewNonRetryableError(fmt.Errorf("recipient %s not found", userID))
		}
		return nil, fmt.Errorf("load recipient %s: %w", userID, err)
	}
	return user, nil
}

func orderCreatedMessage(user *models.User, payload *payloads.OrderCreatedEvent) *Message {
	return &Message{
		Subject: fmt.Sprintf("Order %s received", shortID(payload.OrderID)),
		Body: fmt.Sprintf(
			"Hi %s,\n\nWe received your order %s (%d items, $%s). We will let you know as soon as it is confirmed.\n\nThanks for shopping with us.",
			user.FirstName, payload.OrderID, payload.ItemCount, payload.TotalAmount),
	}
}

func orderStatusMessage(user *models.User, payload *payloads.OrderStatusChangedEvent) *Message {
	return &Message{
		Subject: fmt.Sprintf("Order %s is now %s", shortID(payload.OrderID), payload.To),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour order %s moved from %s to %s.",
			user.FirstName, payload.OrderID, payload.From, payload.To),
	}
}

func orderCancelledMessage(user *models.User, payload *payloads.OrderCancelledEvent) *Message {
	body := fmt.Sprintf(
		"Hi %s,\n\nYour order %s has been cancelled and the reserved items were returned to stock.",
		user.FirstName, payload.OrderID)
	if payload.Refunded {
		body += "\nYour payment will be refunded to the original payment method."
	}
	return &Message{
		Subject: fmt.Sprintf("Order %s cancelled", shortID(payload.OrderID)),
		Body:    body,
	}
}

func orderDeliveredMessage(user *models.User, payload *payloads.OrderDeliveredEvent) *Message {
	return &Message{
		Subject: fmt.Sprintf("Order %s delivered", shortID(payload.OrderID)),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour order %s was delivered on %s. Enjoy!",
			user.FirstName, payload.OrderID, payload.DeliveredAt.Format("Jan 2, 2006")),
	}
}

func orderExpiredMessage(user *models.User, payload *payloads.OrderExpiredEvent) *Message {
	return &Message{
		Subject: fmt.Sprintf("Order %s expired", shortID(payload.OrderID)),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour order %s was not paid in time and has been cancelled. The items are back in stock if you would like to order again.",
			user.FirstName, payload.OrderID),
	}
}

func paymentMessage(user *models.User, eventType enums.OutboxEventType, payload *payloads.PaymentStatusEvent) *Message {
	switch eventType {
	case enums.EventPaymentSucceeded:
		return &Message{
			Subject: fmt.Sprintf("Payment received for order %s", shortID(payload.OrderID)),
			Body: fmt.Sprintf(
				"Hi %s,\n\nWe received your payment for order %s. You will get another email when it ships.",
				user.FirstName, payload.OrderID),
		}
	case enums.EventPaymentFailed:
		return &Message{
			Subject: fmt.Sprintf("Payment failed for order %s", shortID(payload.OrderID)),
			Body: fmt.Sprintf(
				"Hi %s,\n\nYour payment for order %s did not go through. Please try again or use a different payment method.",
				user.FirstName, payload.OrderID),
		}
	case enums.EventPaymentRefunded:
		return &Message{
			Subject: fmt.Sprintf("Refund issued for order %s", shortID(payload.OrderID)),
			Body: fmt.Sprintf(
				"Hi %s,\n\nYour payment for order %s has been refunded. Depending on your bank it can take a few days to show up.",
				user.FirstName, payload.OrderID),
		}
	default:
		return nil
	}
}

func welcomeMessage(payload *payloads.UserRegisteredEvent) *Message {
	return &Message{
		Subject: "Welcome to Mercato",
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour account is ready. Happy shopping!",
			payload.FirstName),
	}
}

func shortID(id uuid.UUID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
