package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercato-labs/mercato-backend/pkg/enums"
)

// OrderCreatedEvent signals a freshly placed order with stock reserved.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	TotalAmount string    `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
}

// OrderStatusChangedEvent is emitted on every lifecycle transition.
type OrderStatusChangedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	UserID  uuid.UUID         `json:"user_id"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
}

// OrderCancelledEvent is emitted when a pre-processing order is cancelled
// and its reserved stock has been returned.
type OrderCancelledEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	UserID        uuid.UUID `json:"user_id"`
	CancelledAt   time.Time `json:"cancelled_at"`
	StockRestored bool      `json:"stock_restored"`
	Refunded      bool      `json:"refunded"`
}

// OrderDeliveredEvent marks the terminal happy-path state.
type OrderDeliveredEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// OrderExpiredEvent describes a pending order swept by the expiry job.
type OrderExpiredEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// PaymentStatusEvent reports a payment lattice transition.
type PaymentStatusEvent struct {
	OrderID uuid.UUID           `json:"order_id"`
	UserID  uuid.UUID           `json:"user_id"`
	From    enums.PaymentStatus `json:"from"`
	To      enums.PaymentStatus `json:"to"`
	Source  string              `json:"source,omitempty"`
}

// StockRestoredEvent is emitted per product when a cancellation returns units.
type StockRestoredEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Quantity  int       `json:"quantity"`
}

// UserRegisteredEvent triggers the welcome notification.
type UserRegisteredEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
}
