package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/mercato-labs/mercato-backend/pkg/db/models"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
)

// Actor identifies who is invoking an order operation. Handlers fill it from
// the authenticated request; workers fill it from the job identity.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// CreateOrderItemInput is one requested line at checkout.
type CreateOrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput captures everything needed to place an order.
type CreateOrderInput struct {
	UserID          uuid.UUID
	Items           []CreateOrderItemInput
	ShippingAddress string
	BillingAddress  *string
	Phone           string
	Notes           *string
	PaymentMethod   enums.PaymentMethod
}

// UpdateStatusInput carries a status change plus the optional fulfillment
// details recorded alongside it. DeliveredAt only applies when the target
// status is DELIVERED; Notes replaces the order notes when set.
type UpdateStatusInput struct {
	Next        enums.OrderStatus
	DeliveredAt *time.Time
	Notes       *string
}

// OrderItemDTO is the immutable line snapshot returned to clients.
type OrderItemDTO struct {
	ID          uuid.UUID `json:"id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Subtotal    string    `json:"subtotal"`
}

// OrderDTO is the read model returned by order endpoints.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	Status          enums.OrderStatus   `json:"status"`
	TotalAmount     string              `json:"total_amount"`
	ShippingAddress string              `json:"shipping_address"`
	BillingAddress  string              `json:"billing_address"`
	Phone           string              `json:"phone"`
	Notes           *string             `json:"notes,omitempty"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	Items           []OrderItemDTO      `json:"items"`
	CreatedAt       time.Time           `json:"created_at"`
}

// ListFilters narrows order listings.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// OrderList wraps a page of orders plus the next cursor.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func toItemDTO(item models.OrderItem) OrderItemDTO {
	return OrderItemDTO{
		ID:          item.ID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice.StringFixed(2),
		Subtotal:    item.Subtotal.StringFixed(2),
	}
}

func toDTO(order models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, toItemDTO(item))
	}
	return OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		Status:          order.Status,
		TotalAmount:     order.TotalAmount.StringFixed(2),
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		Phone:           order.Phone,
		Notes:           order.Notes,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}
