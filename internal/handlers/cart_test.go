package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/hanko-field/commerce/internal/platform/auth"
	"github.com/hanko-field/commerce/internal/services"
)

func TestCartHandlersGetCart(t *testing.T) {
	service := &stubCartService{
		getFunc: func(_ context.Context, userID string) (services.Cart, error) {
			if userID != "user-7" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return services.Cart{
				UserID:   "user-7",
				Currency: "usd",
				Items: []services.CartItem{
					{ProductID: "prod-1", Name: "Oak Chair", UnitPrice: 1200, Quantity: 2},
					{ProductID: "prod-2", Name: "Lamp", UnitPrice: 300, Quantity: 1},
				},
				UpdatedAt: handlerNow,
			}, nil
		},
	}

	rr := serve("/cart", NewCartHandlers(service).Routes, &auth.Identity{UID: "user-7"}, http.MethodGet, "/cart", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Cart.Currency != "USD" {
		t.Fatalf("expected upper-cased currency, got %q", resp.Cart.Currency)
	}
	if resp.Cart.Subtotal != 2700 || resp.Cart.ItemCount != 3 {
		t.Fatalf("unexpected totals %+v", resp.Cart)
	}
	if resp.Cart.Items[0].LineTotal != 2400 {
		t.Fatalf("unexpected line total %d", resp.Cart.Items[0].LineTotal)
	}
}

func TestCartHandlersRequireIdentity(t *testing.T) {
	rr := serve("/cart", NewCartHandlers(&stubCartService{}).Routes, nil, http.MethodGet, "/cart", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCartHandlersServiceUnavailable(t *testing.T) {
	rr := serve("/cart", NewCartHandlers(nil).Routes, &auth.Identity{UID: "user-7"}, http.MethodGet, "/cart", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestCartHandlersAddItemDefaultsQuantity(t *testing.T) {
	var captured services.CartItemCommand
	service := &stubCartService{
		addFunc: func(_ context.Context, cmd services.CartItemCommand) (services.Cart, error) {
			captured = cmd
			return services.Cart{UserID: cmd.UserID, Items: []services.CartItem{{ProductID: cmd.ProductID, Quantity: cmd.Quantity}}}, nil
		},
	}

	rr := serve("/cart", NewCartHandlers(service).Routes, &auth.Identity{UID: "user-7"}, http.MethodPost, "/cart/items", `{"product_id":" prod-9 "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-7" || captured.ProductID != "prod-9" || captured.Quantity != 1 {
		t.Fatalf("unexpected command %+v", captured)
	}
}

func TestCartHandlersAddItemValidation(t *testing.T) {
	handler := NewCartHandlers(&stubCartService{})
	identity := &auth.Identity{UID: "user-7"}

	cases := []struct {
		name string
		body string
	}{
		{name: "missing product", body: `{"quantity":2}`},
		{name: "unknown field", body: `{"product_id":"p","colour":"red"}`},
		{name: "empty body", body: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve("/cart", handler.Routes, identity, http.MethodPost, "/cart/items", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestCartHandlersMapsServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: fmt.Errorf("add: %w", services.ErrCartInsufficientStock), status: http.StatusConflict, code: "insufficient_stock"},
		{err: services.ErrCartProductUnavailable, status: http.StatusUnprocessableEntity, code: "product_unavailable"},
		{err: services.ErrCartProductNotFound, status: http.StatusNotFound, code: "not_found"},
		{err: services.ErrCartCurrencyMismatch, status: http.StatusConflict, code: "currency_mismatch"},
	}
	for _, tc := range cases {
		service := &stubCartService{
			updateFunc: func(context.Context, services.CartItemCommand) (services.Cart, error) {
				return services.Cart{}, tc.err
			},
		}
		rr := serve("/cart", NewCartHandlers(service).Routes, &auth.Identity{UID: "user-7"}, http.MethodPatch, "/cart/items/prod-1", `{"quantity":4}`)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["error"] != tc.code {
			t.Fatalf("%v: expected code %s, got %v", tc.err, tc.code, body["error"])
		}
	}
}

func TestCartHandlersRemoveAndClear(t *testing.T) {
	var removed, cleared string
	service := &stubCartService{
		removeFunc: func(_ context.Context, userID, productID string) (services.Cart, error) {
			removed = userID + "/" + productID
			return services.Cart{UserID: userID}, nil
		},
		clearFunc: func(_ context.Context, userID string) error {
			cleared = userID
			return nil
		},
	}
	handler := NewCartHandlers(service)
	identity := &auth.Identity{UID: "user-7"}

	rr := serve("/cart", handler.Routes, identity, http.MethodDelete, "/cart/items/prod-1", "")
	if rr.Code != http.StatusOK || removed != "user-7/prod-1" {
		t.Fatalf("unexpected remove result %d %q", rr.Code, removed)
	}
	rr = serve("/cart", handler.Routes, identity, http.MethodDelete, "/cart", "")
	if rr.Code != http.StatusNoContent || cleared != "user-7" {
		t.Fatalf("unexpected clear result %d %q", rr.Code, cleared)
	}
}
