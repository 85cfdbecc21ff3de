package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/platform/auth"
	"github.com/hanko-field/commerce/internal/services"
)

func TestOrderHandlersListScopesToCaller(t *testing.T) {
	service := &stubOrderService{
		listFunc: func(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			if filter.UserID != "user-1" {
				t.Fatalf("expected list scoped to caller, got %q", filter.UserID)
			}
			if len(filter.Status) != 2 || filter.Status[1] != domain.OrderStatusPaidInFull {
				t.Fatalf("unexpected status filter %v", filter.Status)
			}
			if filter.Pagination.PageSize != 5 {
				t.Fatalf("unexpected page size %d", filter.Pagination.PageSize)
			}
			return domain.CursorPage[services.Order]{Items: []services.Order{sampleOrder("user-1")}, NextPageToken: "next"}, nil
		},
	}

	target := "/orders?status=Deposit%20Paid,Paid%20in%20Full&pageSize=5&user_id=someone-else"
	rr := serve("/orders", NewOrderHandlers(service, nil).Routes, &auth.Identity{UID: "user-1"}, http.MethodGet, target, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.NextPageToken != "next" {
		t.Fatalf("unexpected list %+v", resp)
	}
	if resp.Items[0].Currency != "USD" || resp.Items[0].RemainingPaymentAmount != 9000 {
		t.Fatalf("unexpected order payload %+v", resp.Items[0])
	}
}

func TestOrderHandlersGetHidesForeignOrders(t *testing.T) {
	service := &stubOrderService{
		getFunc: func(_ context.Context, orderID string) (services.Order, error) {
			return sampleOrder("owner"), nil
		},
	}
	handler := NewOrderHandlers(service, nil)

	rr := serve("/orders", handler.Routes, &auth.Identity{UID: "intruder"}, http.MethodGet, "/orders/ord_1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign order, got %d", rr.Code)
	}

	rr = serve("/orders", handler.Routes, &auth.Identity{UID: "owner"}, http.MethodGet, "/orders/ord_1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected owner to read order, got %d", rr.Code)
	}

	rr = serve("/orders", handler.Routes, &auth.Identity{UID: "ops", Roles: []string{auth.RoleStaff}}, http.MethodGet, "/orders/ord_1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected staff to read order, got %d", rr.Code)
	}
}

func TestOrderHandlersListDetails(t *testing.T) {
	service := &stubOrderService{
		getFunc: func(context.Context, string) (services.Order, error) {
			return sampleOrder("user-1"), nil
		},
		detailsFunc: func(_ context.Context, orderID string) ([]services.OrderDetail, error) {
			return []services.OrderDetail{
				{ID: "det_1", OrderID: orderID, ProductID: "prod-1", ProductName: "Oak Chair", Quantity: 2, UnitPrice: 5000, TotalPrice: 10000, Status: domain.OrderDetailStatusPreparing},
			}, nil
		},
	}
	rr := serve("/orders", NewOrderHandlers(service, nil).Routes, &auth.Identity{UID: "user-1"}, http.MethodGet, "/orders/ord_1/details", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp orderDetailsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Status != "Preparing" || resp.Items[0].TotalPrice != 10000 {
		t.Fatalf("unexpected details %+v", resp.Items)
	}
}

func TestOrderHandlersCancelReportsCascadeWarning(t *testing.T) {
	service := &stubOrderService{
		cancelFunc: func(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			if cmd.ActorID != "user-1" || cmd.ActorIsStaff {
				t.Fatalf("unexpected actor %+v", cmd)
			}
			if cmd.Reason != "changed my mind" {
				t.Fatalf("unexpected reason %q", cmd.Reason)
			}
			order := sampleOrder("user-1")
			order.Status = domain.OrderStatusCancelled
			order.RefundStatus = domain.RefundStatusDepositLost
			return order, fmt.Errorf("%w: restore stock: unavailable", services.ErrOrderCascadeFailed)
		},
	}

	rr := serve("/orders", NewOrderHandlers(service, nil).Routes, &auth.Identity{UID: "user-1"}, http.MethodPost, "/orders/ord_1/cancel", `{"reason":"changed my mind"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Warning != cascadeWarning {
		t.Fatalf("expected cascade warning, got %q", resp.Warning)
	}
	if resp.Order.Status != "Cancelled" || resp.Order.RefundStatus != "Deposit Lost" {
		t.Fatalf("unexpected order %+v", resp.Order)
	}
}

func TestOrderHandlersCancelWithoutBody(t *testing.T) {
	service := &stubOrderService{
		cancelFunc: func(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidState
		},
	}
	rr := serve("/orders", NewOrderHandlers(service, nil).Routes, &auth.Identity{UID: "user-1"}, http.MethodPost, "/orders/ord_1/cancel", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestOrderHandlersRemainingPayment(t *testing.T) {
	checkout := &stubCheckoutService{
		remainingFunc: func(_ context.Context, cmd services.RemainingPaymentCommand) (payments.CheckoutSession, error) {
			if cmd.OrderID != "ord_1" || cmd.UserID != "user-1" || cmd.Locale != "fr" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return payments.CheckoutSession{ID: "cs_rem", Provider: "stripe", RedirectURL: "https://pay", Amount: 9000, Currency: "usd"}, nil
		},
		confirmRemainingFunc: func(_ context.Context, cmd services.ConfirmRemainingPaymentCommand) (services.Order, error) {
			if cmd.PaymentID != "cs_rem" || cmd.ActorIsStaff {
				t.Fatalf("unexpected confirm %+v", cmd)
			}
			order := sampleOrder(cmd.UserID)
			order.Status = domain.OrderStatusPaidInFull
			order.RemainingPaymentAmount = 0
			return order, nil
		},
	}
	handler := NewOrderHandlers(&stubOrderService{}, checkout)
	identity := &auth.Identity{UID: "user-1", Locale: "fr"}

	rr := serve("/orders", handler.Routes, identity, http.MethodPost, "/orders/ord_1/remaining-payment", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var session checkoutSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if session.Session.SessionID != "cs_rem" || session.Session.Amount != 9000 {
		t.Fatalf("unexpected session %+v", session.Session)
	}

	rr = serve("/orders", handler.Routes, identity, http.MethodPost, "/orders/ord_1/remaining-payment/confirm", `{"payment_id":"cs_rem"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Order.Status != "Paid in Full" || resp.Order.RemainingPaymentAmount != 0 {
		t.Fatalf("unexpected order %+v", resp.Order)
	}
}

func TestOrderHandlersReceiptUpload(t *testing.T) {
	checkout := &stubCheckoutService{
		receiptFunc: func(_ context.Context, cmd services.ReceiptUploadCommand) (services.ReceiptUpload, error) {
			if cmd.FileName != "receipt.pdf" || cmd.ContentType != "application/pdf" {
				t.Fatalf("unexpected command %+v", cmd)
			}
			return services.ReceiptUpload{
				URL:        "https://storage.example.com/signed",
				Method:     http.MethodPut,
				Headers:    map[string]string{"Content-Type": "application/pdf"},
				ObjectPath: "receipts/ord_1/receipt.pdf",
				ExpiresAt:  handlerNow,
			}, nil
		},
	}
	body := `{"file_name":"receipt.pdf","content_type":"application/pdf"}`
	rr := serve("/orders", NewOrderHandlers(&stubOrderService{}, checkout).Routes, &auth.Identity{UID: "user-1"}, http.MethodPost, "/orders/ord_1/receipt", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp receiptUploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ObjectPath != "receipts/ord_1/receipt.pdf" || resp.Method != http.MethodPut {
		t.Fatalf("unexpected upload %+v", resp)
	}
}
