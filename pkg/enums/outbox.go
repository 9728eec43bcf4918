package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregatePayment OutboxAggregateType = "payment"
	AggregateProduct OutboxAggregateType = "product"
	AggregateUser    OutboxAggregateType = "user"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
	AggregateProduct,
	AggregateUser,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxDLQErrorReason classifies why an outbox row was dead-lettered.
type OutboxDLQErrorReason string

const (
	DLQReasonDecodeFailed  OutboxDLQErrorReason = "decode_failed"
	DLQReasonHandlerFailed OutboxDLQErrorReason = "handler_failed"
	DLQReasonMaxAttempts   OutboxDLQErrorReason = "max_attempts_exceeded"
)

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated         OutboxEventType = "order_created"
	EventOrderStatusChanged   OutboxEventType = "order_status_changed"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
	EventOrderDelivered       OutboxEventType = "order_delivered"
	EventOrderExpired         OutboxEventType = "order_expired"
	EventPaymentStatusChanged OutboxEventType = "payment_status_changed"
	EventPaymentSucceeded     OutboxEventType = "payment_succeeded"
	EventPaymentFailed        OutboxEventType = "payment_failed"
	EventPaymentRefunded      OutboxEventType = "payment_refunded"
	EventStockRestored        OutboxEventType = "stock_restored"
	EventUserRegistered       OutboxEventType = "user_registered"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventOrderCancelled,
	EventOrderDelivered,
	EventOrderExpired,
	EventPaymentStatusChanged,
	EventPaymentSucceeded,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventStockRestored,
	EventUserRegistered,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
