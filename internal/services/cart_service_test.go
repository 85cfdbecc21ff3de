package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/commerce/internal/domain"
)

func newTestCartService(t *testing.T, carts *memCartRepo) (CartService, *memProductRepo) {
	t.Helper()
	products := newMemProductRepo(
		domain.Product{ID: "prod_mug", Name: "Mug", SKU: "MUG-1", Price: 1250, Currency: "usd", Stock: 5, Active: true},
		domain.Product{ID: "prod_tee", Name: "Tee", Price: 3300, Currency: "USD", Stock: 1, Active: true},
		domain.Product{ID: "prod_yen", Name: "Fan", Price: 900, Currency: "JPY", Stock: 10, Active: true},
		domain.Product{ID: "prod_old", Name: "Retired", Price: 100, Currency: "USD", Stock: 10, Active: false},
	)
	svc, err := NewCartService(CartServiceDeps{Carts: carts, Products: products, Clock: fixedClock})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	return svc, products
}

func TestCartServiceAddItemMergesLines(t *testing.T) {
	carts := newMemCartRepo()
	svc, _ := newTestCartService(t, carts)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, CartItemCommand{UserID: "user_1", ProductID: "prod_mug", Quantity: 2})
	require.NoError(t, err)
	cart, err := svc.AddItem(ctx, CartItemCommand{UserID: "user_1", ProductID: "prod_mug", Quantity: 1})
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	require.Equal(t, 3, cart.Items[0].Quantity)
	require.Equal(t, "MUG-1", cart.Items[0].SKU)
	require.Equal(t, "USD", cart.Currency)
	require.Equal(t, int64(3750), cart.Subtotal())
	require.Equal(t, testNow, carts.carts["user_1"].UpdatedAt)

	_, err = svc.AddItem(ctx, CartItemCommand{UserID: "user_1", ProductID: "prod_mug", Quantity: 3})
	require.ErrorIs(t, err, ErrCartInsufficientStock)
	require.Equal(t, 3, carts.carts["user_1"].Items[0].Quantity)
}

func TestCartServiceRejectsUnavailableProducts(t *testing.T) {
	svc, _ := newTestCartService(t, newMemCartRepo())
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CartItemCommand
		want error
	}{
		{name: "missing product", cmd: CartItemCommand{UserID: "user_1", ProductID: "prod_nope", Quantity: 1}, want: ErrCartProductNotFound},
		{name: "inactive product", cmd: CartItemCommand{UserID: "user_1", ProductID: "prod_old", Quantity: 1}, want: ErrCartProductUnavailable},
		{name: "zero quantity", cmd: CartItemCommand{UserID: "user_1", ProductID: "prod_mug"}, want: ErrCartInvalidInput},
		{name: "too many", cmd: CartItemCommand{UserID: "user_1", ProductID: "prod_mug", Quantity: 100}, want: ErrCartInvalidInput},
		{name: "no user", cmd: CartItemCommand{ProductID: "prod_mug", Quantity: 1}, want: ErrCartInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddItem(ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCartServiceCurrencyMismatch(t *testing.T) {
	svc, _ := newTestCartService(t, newMemCartRepo())
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, CartItemCommand{UserID: "user_1", ProductID: "prod_mug", Quantity: 1}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := svc.AddItem(ctx, CartItemCommand{UserID: "user_1", ProductID: "prod_yen", Quantity: 1}); !errors.Is(err, ErrCartCurrencyMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}
	cart, err := svc.RemoveItem(ctx, "user_1", "prod_mug")
	if err != nil {
		t.Fatalf("RemoveItem: %v", err)
	}
	if cart.Currency != "" || len(cart.Items) != 0 {
		t.Fatalf("expected empty cart to drop its currency, got %+v", cart)
	}
	cart, err = svc.AddItem(ctx, CartItemCommand{UserID: "user_1", ProductID: "prod_yen", Quantity: 1})
	if err != nil {
		t.Fatalf("AddItem after emptying: %v", err)
	}
	if cart.Currency != "JPY" {
		t.Fatalf("expected JPY cart, got %s", cart.Currency)
	}
}

func TestCartServiceUpdateQuantity(t *testing.T) {
	carts := newMemCartRepo(domain.Cart{
		UserID:   "user_1",
		Currency: "USD",
		Items: []domain.CartItem{
			{ProductID: "prod_mug", UnitPrice: 1000, Quantity: 1},
			{ProductID: "prod_tee", UnitPrice: 3300, Quantity: 1},
		},
	})
	svc, _ := newTestCartService(t, carts)
	ctx := context.Background()

	cart, err := svc.UpdateItemQuantity(ctx, CartItemCommand{UserID: "user_1", ProductID: "prod_mug", Quantity: 4})
	if err != nil {
		t.Fatalf("UpdateItemQuantity: %v", err)
	}
	if cart.Items[0].Quantity != 4 || cart.Items[0].UnitPrice != 1250 {
		t.Fatalf("expected refreshed line, got %+v", cart.Items[0])
	}
	cart, err = svc.UpdateItemQuantity(ctx, CartItemCommand{UserID: "user_1", ProductID: "prod_tee", Quantity: 0})
	if err != nil {
		t.Fatalf("UpdateItemQuantity(0): %v", err)
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected zero quantity to remove the line, got %d lines", len(cart.Items))
	}
	if _, err := svc.UpdateItemQuantity(ctx, CartItemCommand{UserID: "user_1", ProductID: "prod_yen", Quantity: 1}); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input for unknown line, got %v", err)
	}
}

func TestCartServiceRemoveProductsAndClear(t *testing.T) {
	carts := newMemCartRepo(domain.Cart{
		UserID: "user_1",
		Items: []domain.CartItem{
			{ProductID: "prod_mug", Quantity: 1},
			{ProductID: "prod_tee", Quantity: 1},
			{ProductID: "prod_yen", Quantity: 1},
		},
	})
	svc, _ := newTestCartService(t, carts)
	ctx := context.Background()

	if err := svc.RemoveProducts(ctx, "user_1", []string{"prod_mug", "prod_yen"}); err != nil {
		t.Fatalf("RemoveProducts: %v", err)
	}
	if items := carts.carts["user_1"].Items; len(items) != 1 || items[0].ProductID != "prod_tee" {
		t.Fatalf("unexpected remaining items %+v", items)
	}
	if err := svc.Clear(ctx, "user_1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := svc.Clear(ctx, "user_1"); err != nil {
		t.Fatalf("Clear on missing cart should succeed: %v", err)
	}
	cart, err := svc.GetCart(ctx, "user_1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(cart.Items) != 0 || cart.UserID != "user_1" {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
}

func TestCartServicePurgeStale(t *testing.T) {
	carts := newMemCartRepo(
		domain.Cart{UserID: "user_old", UpdatedAt: testNow.Add(-10 * 24 * time.Hour)},
		domain.Cart{UserID: "user_older", UpdatedAt: testNow.Add(-40 * 24 * time.Hour)},
		domain.Cart{UserID: "user_fresh", UpdatedAt: testNow.Add(-time.Hour)},
	)
	svc, _ := newTestCartService(t, carts)

	purged, err := svc.PurgeStale(context.Background(), 7*24*time.Hour, 0)
	if err != nil {
		t.Fatalf("PurgeStale: %v", err)
	}
	if purged != 2 {
		t.Fatalf("expected 2 purged, got %d", purged)
	}
	if _, ok := carts.carts["user_fresh"]; !ok {
		t.Fatalf("fresh cart must survive")
	}
	if _, err := svc.PurgeStale(context.Background(), 0, 10); !errors.Is(err, ErrCartInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
