package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mercato-labs/mercato-backend/api/middleware"
	internalorders "github.com/mercato-labs/mercato-backend/internal/orders"
	"github.com/mercato-labs/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercato-labs/mercato-backend/pkg/errors"
	"github.com/mercato-labs/mercato-backend/pkg/pagination"
)

type stubAdminOrderService struct {
	statusOrder   uuid.UUID
	statusInput   internalorders.UpdateStatusInput
	paymentNext   enums.PaymentStatus
	paymentSource string
	deleted       uuid.UUID
	dto           *internalorders.OrderDTO
	list          *internalorders.OrderList
	err           error
}

func (s *stubAdminOrderService) Create(ctx context.Context, actor internalorders.Actor, input internalorders.CreateOrderInput) (*internalorders.OrderDTO, error) {
	return s.dto, s.err
}

func (s *stubAdminOrderService) Get(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	return s.dto, s.err
}

func (s *stubAdminOrderService) ListForUser(ctx context.Context, actor internalorders.Actor, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
	return s.list, s.err
}

func (s *stubAdminOrderService) ListAll(ctx context.Context, actor internalorders.Actor, params pagination.Params, filters internalorders.ListFilters) (*internalorders.OrderList, error) {
	return s.list, s.err
}

func (s *stubAdminOrderService) UpdateStatus(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, input internalorders.UpdateStatusInput) (*internalorders.OrderDTO, error) {
	s.statusOrder = orderID
	s.statusInput = input
	return s.dto, s.err
}

func (s *stubAdminOrderService) Cancel(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) (*internalorders.OrderDTO, error) {
	return s.dto, s.err
}

func (s *stubAdminOrderService) Delete(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID) error {
	s.deleted = orderID
	return s.err
}

func (s *stubAdminOrderService) UpdatePaymentStatus(ctx context.Context, actor internalorders.Actor, orderID uuid.UUID, next enums.PaymentStatus, source string) (*internalorders.OrderDTO, error) {
	s.paymentNext = next
	s.paymentSource = source
	return s.dto, s.err
}

func (s *stubAdminOrderService) ExpirePending(ctx context.Context, cutoff time.Time, batch int) (int, error) {
	return 0, s.err
}

func adminContext(ctx context.Context) context.Context {
	ctx = middleware.WithUserID(ctx, uuid.NewString())
	return middleware.WithRole(ctx, string(enums.UserRoleAdmin))
}

func withOrderIDParam(req *http.Request, id string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("orderId", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func adminOrderDTO() *internalorders.OrderDTO {
	return &internalorders.OrderDTO{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Status:        enums.OrderStatusConfirmed,
		TotalAmount:   "45.00",
		PaymentMethod: enums.PaymentMethodCard,
		PaymentStatus: enums.PaymentStatusPaid,
	}
}

func TestAdminListOrders(t *testing.T) {
	stub := &stubAdminOrderService{list: &internalorders.OrderList{Orders: []internalorders.OrderDTO{*adminOrderDTO()}}}
	handler := AdminListOrders(stub, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/orders?status=confirmed", nil)
	req = req.WithContext(adminContext(req.Context()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data internalorders.OrderList `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Orders) != 1 {
		t.Fatalf("expected one order got %d", len(envelope.Data.Orders))
	}
}

func TestAdminUpdateOrderStatus(t *testing.T) {
	dto := adminOrderDTO()
	dto.Status = enums.OrderStatusProcessing
	stub := &stubAdminOrderService{dto: dto}
	handler := AdminUpdateOrderStatus(stub, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/v1/orders/"+dto.ID.String()+"/status", bytes.NewReader([]byte(`{"status":"processing"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = withOrderIDParam(req, dto.ID.String())
	req = req.WithContext(adminContext(req.Context()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if stub.statusOrder != dto.ID {
		t.Fatalf("expected status update on %s got %s", dto.ID, stub.statusOrder)
	}
	if stub.statusInput.Next != enums.OrderStatusProcessing {
		t.Fatalf("expected processing got %s", stub.statusInput.Next)
	}
	if stub.statusInput.DeliveredAt != nil || stub.statusInput.Notes != nil {
		t.Fatal("optional fields should stay nil when omitted")
	}
}

func TestAdminUpdateOrderStatusForwardsDeliveryDateAndNotes(t *testing.T) {
	dto := adminOrderDTO()
	dto.Status = enums.OrderStatusDelivered
	stub := &stubAdminOrderService{dto: dto}
	handler := AdminUpdateOrderStatus(stub, nil)

	body := []byte(`{"status":"delivered","delivery_date":"2026-08-12T14:30:00Z","notes":"left with the concierge"}`)
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/v1/orders/"+dto.ID.String()+"/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = withOrderIDParam(req, dto.ID.String())
	req = req.WithContext(adminContext(req.Context()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if stub.statusInput.Next != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered got %s", stub.statusInput.Next)
	}
	if stub.statusInput.DeliveredAt == nil {
		t.Fatal("expected delivery date to be forwarded")
	}
	want := time.Date(2026, 8, 12, 14, 30, 0, 0, time.UTC)
	if !stub.statusInput.DeliveredAt.Equal(want) {
		t.Fatalf("expected %s got %s", want, stub.statusInput.DeliveredAt)
	}
	if stub.statusInput.Notes == nil || *stub.statusInput.Notes != "left with the concierge" {
		t.Fatalf("expected notes to be forwarded, got %v", stub.statusInput.Notes)
	}
}

func TestAdminUpdateOrderStatusRejectsUnknown(t *testing.T) {
	stub := &stubAdminOrderService{}
	handler := AdminUpdateOrderStatus(stub, nil)

	orderID := uuid.NewString()
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/v1/orders/"+orderID+"/status", bytes.NewReader([]byte(`{"status":"teleported"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = withOrderIDParam(req, orderID)
	req = req.WithContext(adminContext(req.Context()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if stub.statusOrder != uuid.Nil {
		t.Fatal("service should not be invoked for unknown status")
	}
}

func TestAdminUpdatePaymentStatusUsesAdminSource(t *testing.T) {
	dto := adminOrderDTO()
	stub := &stubAdminOrderService{dto: dto}
	handler := AdminUpdatePaymentStatus(stub, nil)

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/v1/orders/"+dto.ID.String()+"/payment", bytes.NewReader([]byte(`{"payment_status":"refunded"}`)))
	req.Header.Set("Content-Type", "application/json")
	req = withOrderIDParam(req, dto.ID.String())
	req = req.WithContext(adminContext(req.Context()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if stub.paymentNext != enums.PaymentStatusRefunded {
		t.Fatalf("expected refunded got %s", stub.paymentNext)
	}
	if stub.paymentSource != paymentSourceAdmin {
		t.Fatalf("expected admin source got %s", stub.paymentSource)
	}
}

func TestAdminDeleteOrderPropagatesConflict(t *testing.T) {
	stub := &stubAdminOrderService{err: pkgerrors.New(pkgerrors.CodeStateConflict, "order already shipped")}
	handler := AdminDeleteOrder(stub, nil)

	orderID := uuid.NewString()
	req := httptest.NewRequest(http.MethodDelete, "/api/admin/v1/orders/"+orderID, nil)
	req = withOrderIDParam(req, orderID)
	req = req.WithContext(adminContext(req.Context()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}
