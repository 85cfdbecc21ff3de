package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/auth"
	"github.com/hanko-field/commerce/internal/services"
)

func sampleReturn(userID string) services.ReturnRequest {
	return services.ReturnRequest{
		ID:                   "ret_1",
		OrderID:              "ord_1",
		UserID:               userID,
		Items:                []services.ReturnItem{{OrderDetailID: "det_1", ProductID: "prod-1", ProductName: "Oak Chair", Quantity: 2, UnitPrice: 5000}},
		ReplacementProductID: "prod-2",
		TotalQuantity:        2,
		Status:               domain.ReturnStatusPendingManufacturer,
		CreatedAt:            handlerNow,
		UpdatedAt:            handlerNow,
	}
}

func TestReturnHandlersCreate(t *testing.T) {
	service := &stubReturnService{
		createFunc: func(_ context.Context, cmd services.CreateReturnCommand) (services.ReturnRequest, error) {
			if cmd.UserID != "user-1" || cmd.OrderID != "ord_1" || len(cmd.OrderDetailIDs) != 1 {
				t.Fatalf("unexpected command %+v", cmd)
			}
			if cmd.ActorIsStaff {
				t.Fatalf("customer must not be treated as staff")
			}
			return sampleReturn(cmd.UserID), nil
		},
	}
	body := `{"order_id":"ord_1","order_detail_ids":["det_1"],"replacement_product_id":"prod-2","reason":"scratched"}`

	rr := serve("/returns", NewReturnHandlers(service).Routes, &auth.Identity{UID: "user-1"}, http.MethodPost, "/returns", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp returnResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Return.Status != "Pending Manufacturer" || resp.Return.TotalQuantity != 2 {
		t.Fatalf("unexpected return %+v", resp.Return)
	}
}

func TestReturnHandlersCreateRejectsIncompleteOrder(t *testing.T) {
	service := &stubReturnService{
		createFunc: func(context.Context, services.CreateReturnCommand) (services.ReturnRequest, error) {
			return services.ReturnRequest{}, services.ErrReturnOrderNotCompleted
		},
	}
	body := `{"order_id":"ord_1","order_detail_ids":["det_1"],"replacement_product_id":"prod-2"}`
	rr := serve("/returns", NewReturnHandlers(service).Routes, &auth.Identity{UID: "user-1"}, http.MethodPost, "/returns", body)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestReturnHandlersCreateValidation(t *testing.T) {
	rr := serve("/returns", NewReturnHandlers(&stubReturnService{}).Routes, &auth.Identity{UID: "user-1"}, http.MethodPost, "/returns", `{"order_id":"ord_1"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestReturnHandlersListAndGet(t *testing.T) {
	service := &stubReturnService{
		listFunc: func(_ context.Context, filter services.ReturnListFilter) (domain.CursorPage[services.ReturnRequest], error) {
			if filter.UserID != "user-1" || filter.OrderID != "ord_1" {
				t.Fatalf("unexpected filter %+v", filter)
			}
			if len(filter.Status) != 1 || filter.Status[0] != domain.ReturnStatusCompleted {
				t.Fatalf("unexpected status filter %v", filter.Status)
			}
			return domain.CursorPage[services.ReturnRequest]{Items: []services.ReturnRequest{sampleReturn("user-1")}}, nil
		},
		getFunc: func(context.Context, string) (services.ReturnRequest, error) {
			return sampleReturn("someone-else"), nil
		},
	}
	handler := NewReturnHandlers(service)

	rr := serve("/returns", handler.Routes, &auth.Identity{UID: "user-1"}, http.MethodGet, "/returns?order_id=ord_1&status=Completed", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var list returnListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("unexpected items %+v", list.Items)
	}

	rr = serve("/returns", handler.Routes, &auth.Identity{UID: "user-1"}, http.MethodGet, "/returns/ret_1", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected foreign return to be hidden, got %d", rr.Code)
	}
}
