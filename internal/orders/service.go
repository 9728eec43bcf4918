package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	product "github.com/mercato-labs/mercato-backend/internal/products"
	"github.com/mercato-labs/mercato-backend/pkg/config"
	"github.com/mercato-labs/mercato-backend/pkg/db/models"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercato-labs/mercato-backend/pkg/errors"
	"github.com/mercato-labs/mercato-backend/pkg/metrics"
	"github.com/mercato-labs/mercato-backend/pkg/outbox"
	"github.com/mercato-labs/mercato-backend/pkg/outbox/payloads"
	"github.com/mercato-labs/mercato-backend/pkg/pagination"
)

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, actor Actor, input CreateOrderInput) (*OrderDTO, error)
	Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	ListForUser(ctx context.Context, actor Actor, params pagination.Params, filters ListFilters) (*OrderList, error)
	ListAll(ctx context.Context, actor Actor, params pagination.Params, filters ListFilters) (*OrderList, error)
	UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error)
	Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	Delete(ctx context.Context, actor Actor, orderID uuid.UUID) error
	UpdatePaymentStatus(ctx context.Context, actor Actor, orderID uuid.UUID, next enums.PaymentStatus, source string) (*OrderDTO, error)
	ExpirePending(ctx context.Context, cutoff time.Time, batch int) (int, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	stock   StockKeeper
	metrics *metrics.OrderMetrics
	cfg     config.OrdersConfig
}

// NewService builds an order service with the required dependencies. Metrics
// may be nil outside of a running server.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, stock StockKeeper, orderMetrics *metrics.OrderMetrics, cfg config.OrdersConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock keeper required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  publisher,
		stock:   stock,
		metrics: orderMetrics,
		cfg:     cfg,
	}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input CreateOrderInput) (*OrderDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}
	if maxItems := s.cfg.MaxItemsPerOrder; maxItems > 0 && len(input.Items) > maxItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many items").
			WithDetails(map[string]any{"max_items": maxItems})
	}
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		if maxQty := s.cfg.MaxQuantityPerItem; maxQty > 0 && item.Quantity > maxQty {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity too large").
				WithDetails(map[string]any{"max_quantity": maxQty})
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate product in items").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		seen[item.ProductID] = struct{}{}
	}

	billing := strings.TrimSpace(input.ShippingAddress)
	if input.BillingAddress != nil && strings.TrimSpace(*input.BillingAddress) != "" {
		billing = strings.TrimSpace(*input.BillingAddress)
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		items := make([]models.OrderItem, 0, len(input.Items))
		total := decimal.Zero
		for _, line := range input.Items {
			prod, err := s.stock.Load(ctx, tx, line.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
						WithDetails(map[string]any{"product_id": line.ProductID})
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if !prod.IsActive {
				return pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
					WithDetails(map[string]any{"product_id": prod.ID})
			}
			ok, err := s.stock.Reserve(ctx, tx, prod.ID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
			}
			if !ok {
				s.metrics.IncInsufficientStock()
				return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
					WithDetails(map[string]any{
						"product_id":   prod.ID,
						"product_name": prod.Name,
						"available":    prod.StockQuantity,
					})
			}
			subtotal := prod.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, models.OrderItem{
				ID:          uuid.New(),
				ProductID:   prod.ID,
				ProductName: prod.Name,
				Quantity:    line.Quantity,
				UnitPrice:   prod.Price,
				Subtotal:    subtotal,
			})
			total = total.Add(subtotal)
		}

		order := &models.Order{
			ID:              uuid.New(),
			UserID:          input.UserID,
			Status:          enums.OrderStatusPending,
			TotalAmount:     total,
			ShippingAddress: strings.TrimSpace(input.ShippingAddress),
			BillingAddress:  billing,
			Phone:           strings.TrimSpace(input.Phone),
			Notes:           input.Notes,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   enums.PaymentStatusPending,
			Items:           items,
		}
		row, err := s.repo.WithTx(tx).CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		created = row

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   row.ID,
			Version:       1,
			Actor:         buildActor(actor),
			Data: payloads.OrderCreatedEvent{
				OrderID:     row.ID,
				UserID:      row.UserID,
				TotalAmount: row.TotalAmount.StringFixed(2),
				ItemCount:   len(row.Items),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCreated(created.PaymentMethod.String())
	dto := toDTO(*created)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !actor.Role.IsElevated() && order.UserID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
	}
	dto := toDTO(*order)
	return &dto, nil
}

func (s *service) ListForUser(ctx context.Context, actor Actor, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	rows, next, err := s.repo.ListByUser(ctx, actor.UserID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return buildList(rows, next), nil
}

func (s *service) ListAll(ctx context.Context, actor Actor, params pagination.Params, filters ListFilters) (*OrderList, error) {
	if !actor.Role.IsElevated() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order management requires an elevated role")
	}
	rows, next, err := s.repo.ListAll(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return buildList(rows, next), nil
}

func (s *service) UpdateStatus(ctx context.Context, actor Actor, orderID uuid.UUID, input UpdateStatusInput) (*OrderDTO, error) {
	if !actor.Role.IsElevated() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order management requires an elevated role")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	next := input.Next
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if next == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation goes through the cancel operation")
	}
	if input.DeliveredAt != nil && next != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery date only applies to the delivered status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == next {
			// Same status is a no-op for events, but a notes update still lands.
			if input.Notes != nil {
				if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"notes": *input.Notes}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order notes")
				}
				order.Notes = input.Notes
			}
			updated = order
			return nil
		}
		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetails(map[string]any{"current": order.Status, "attempted": next})
		}

		from := order.Status
		updates := map[string]any{"status": next}
		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}
		deliveredAt := time.Now()
		if input.DeliveredAt != nil {
			deliveredAt = *input.DeliveredAt
		}
		paymentForced := false
		if next == enums.OrderStatusDelivered {
			updates["delivered_at"] = deliveredAt
			// Delivery implies the order was settled.
			if order.PaymentStatus != enums.PaymentStatusPaid {
				updates["payment_status"] = enums.PaymentStatusPaid
				paymentForced = true
			}
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		previousPayment := order.PaymentStatus
		order.Status = next
		if input.Notes != nil {
			order.Notes = input.Notes
		}
		if next == enums.OrderStatusDelivered {
			order.DeliveredAt = &deliveredAt
			order.PaymentStatus = enums.PaymentStatusPaid
		}
		updated = order

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(actor),
			Data: payloads.OrderStatusChangedEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				From:    from,
				To:      next,
			},
		}); err != nil {
			return err
		}
		if paymentForced {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentStatusChanged,
				AggregateType: enums.AggregatePayment,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         buildActor(actor),
				Data: payloads.PaymentStatusEvent{
					OrderID: order.ID,
					UserID:  order.UserID,
					From:    previousPayment,
					To:      enums.PaymentStatusPaid,
					Source:  "delivery",
				},
			}); err != nil {
				return err
			}
		}
		if next == enums.OrderStatusDelivered {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderDelivered,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         buildActor(actor),
				Data: payloads.OrderDeliveredEvent{
					OrderID:     order.ID,
					UserID:      order.UserID,
					DeliveredAt: deliveredAt,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(next.String())
	dto := toDTO(*updated)
	return &dto, nil
}

func (s *service) Cancel(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if actor.UserID == uuid.Nil && !actor.Role.IsElevated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !actor.Role.IsElevated() && order.UserID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to user")
		}
		if !order.Status.IsCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetails(map[string]any{"current": order.Status, "attempted": enums.OrderStatusCancelled})
		}

		for _, item := range order.Items {
			if err := s.stock.Restore(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventStockRestored,
				AggregateType: enums.AggregateProduct,
				AggregateID:   item.ProductID,
				Version:       1,
				Actor:         buildActor(actor),
				Data: payloads.StockRestoredEvent{
					ProductID: item.ProductID,
					OrderID:   order.ID,
					Quantity:  item.Quantity,
				},
			}); err != nil {
				return err
			}
		}

		now := time.Now()
		refunded := order.PaymentStatus == enums.PaymentStatusPaid
		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}
		if refunded {
			updates["payment_status"] = enums.PaymentStatusRefunded
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		previousPayment := order.PaymentStatus
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		if refunded {
			order.PaymentStatus = enums.PaymentStatusRefunded
		}
		updated = order

		if refunded {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentRefunded,
				AggregateType: enums.AggregatePayment,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         buildActor(actor),
				Data: payloads.PaymentStatusEvent{
					OrderID: order.ID,
					UserID:  order.UserID,
					From:    previousPayment,
					To:      enums.PaymentStatusRefunded,
					Source:  "cancellation",
				},
			}); err != nil {
				return err
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(actor),
			Data: payloads.OrderCancelledEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				CancelledAt:   now,
				StockRestored: true,
				Refunded:      refunded,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(enums.OrderStatusCancelled.String())
	dto := toDTO(*updated)
	return &dto, nil
}

// Delete marks an order deleted without touching stock. Cancellation is the
// only path that returns reserved units.
func (s *service) Delete(ctx context.Context, actor Actor, orderID uuid.UUID) error {
	if actor.Role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order deletion requires the admin role")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"deleted": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		return nil
	})
}

func (s *service) UpdatePaymentStatus(ctx context.Context, actor Actor, orderID uuid.UUID, next enums.PaymentStatus, source string) (*OrderDTO, error) {
	if !actor.Role.IsElevated() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment updates require an elevated role")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID, false)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PaymentStatus == next {
			updated = order
			return nil
		}
		if !order.PaymentStatus.CanTransitionTo(next) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment transition not allowed").
				WithDetails(map[string]any{"current": order.PaymentStatus, "attempted": next})
		}

		from := order.PaymentStatus
		updates := map[string]any{"payment_status": next}
		confirm := next == enums.PaymentStatusPaid && order.Status == enums.OrderStatusPending
		if confirm {
			updates["status"] = enums.OrderStatusConfirmed
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}

		order.PaymentStatus = next
		if confirm {
			order.Status = enums.OrderStatusConfirmed
		}
		updated = order

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     paymentEventType(next),
			AggregateType: enums.AggregatePayment,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         buildActor(actor),
			Data: payloads.PaymentStatusEvent{
				OrderID: order.ID,
				UserID:  order.UserID,
				From:    from,
				To:      next,
				Source:  source,
			},
		}); err != nil {
			return err
		}
		if confirm {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Actor:         buildActor(actor),
				Data: payloads.OrderStatusChangedEvent{
					OrderID: order.ID,
					UserID:  order.UserID,
					From:    enums.OrderStatusPending,
					To:      enums.OrderStatusConfirmed,
				},
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	dto := toDTO(*updated)
	return &dto, nil
}

// ExpirePending cancels pending orders older than the cutoff and returns how
// many were expired. Each order is swept in its own transaction so one bad row
// cannot stall the batch.
func (s *service) ExpirePending(ctx context.Context, cutoff time.Time, batch int) (int, error) {
	if batch <= 0 {
		batch = s.cfg.ExpirySweepBatch
	}
	stale, err := s.repo.FindPendingBefore(ctx, cutoff, batch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stale orders")
	}

	expired := 0
	for _, order := range stale {
		order := order
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			current, err := repo.FindByID(ctx, order.ID, false)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			// Another actor may have advanced the order since the scan.
			if current.Status != enums.OrderStatusPending {
				return nil
			}

			for _, item := range current.Items {
				if err := s.stock.Restore(ctx, tx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			now := time.Now()
			if err := repo.UpdateOrder(ctx, current.ID, map[string]any{
				"status":       enums.OrderStatusCancelled,
				"cancelled_at": now,
			}); err != nil {
				return err
			}
			expired++
			return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderExpired,
				AggregateType: enums.AggregateOrder,
				AggregateID:   current.ID,
				Version:       1,
				Data: payloads.OrderExpiredEvent{
					OrderID:   current.ID,
					UserID:    current.UserID,
					ExpiredAt: now,
				},
			})
		})
		if err != nil {
			return expired, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire order")
		}
		s.metrics.IncTransition(enums.OrderStatusCancelled.String())
	}
	return expired, nil
}

func buildList(rows []models.Order, next string) *OrderList {
	list := &OrderList{
		Orders:     make([]OrderDTO, 0, len(rows)),
		NextCursor: next,
	}
	for _, row := range rows {
		list.Orders = append(list.Orders, toDTO(row))
	}
	return list
}

func buildActor(actor Actor) *outbox.ActorRef {
	if actor.UserID == uuid.Nil && actor.Role == "" {
		return nil
	}
	return &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role.String()}
}

func paymentEventType(status enums.PaymentStatus) enums.OutboxEventType {
	switch status {
	case enums.PaymentStatusPaid:
		return enums.EventPaymentSucceeded
	case enums.PaymentStatusFailed:
		return enums.EventPaymentFailed
	case enums.PaymentStatusRefunded:
		return enums.EventPaymentRefunded
	default:
		return enums.EventPaymentStatusChanged
	}
}

type stockKeeper struct {
	products *product.Repository
}

// NewStockKeeper adapts the product repository to the StockKeeper interface.
func NewStockKeeper(products *product.Repository) StockKeeper {
	return &stockKeeper{products: products}
}

func (k *stockKeeper) Load(ctx context.Context, tx *gorm.DB, productID uuid.UUID) (*models.Product, error) {
	repo := k.products
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	return repo.FindByID(ctx, productID)
}

func (k *stockKeeper) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) (bool, error) {
	return k.products.ReserveStock(ctx, tx, productID, qty)
}

func (k *stockKeeper) Restore(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	return k.products.RestoreStock(ctx, tx, productID, qty)
}
