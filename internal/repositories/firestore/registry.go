package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

// Registry wires every Firestore repository around a shared provider.
type Registry struct {
	provider *pfirestore.Provider
	uow      *pfirestore.UnitOfWork
	health   repositories.HealthRepository

	orders    *OrderRepository
	details   *OrderDetailRepository
	deposits  *DepositSettingRepository
	returns   *ReturnRequestRepository
	products  *ProductRepository
	carts     *CartRepository
	wishlists *WishlistRepository
	checkouts *CheckoutSessionRepository
	counters  *CounterRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry constructs all repositories. health may be nil when readiness probes are not needed.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository, txOpts ...pfirestore.TxOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}
	reg := &Registry{provider: provider, uow: pfirestore.NewUnitOfWork(provider, txOpts...), health: health}

	var err error
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}
	if reg.details, err = NewOrderDetailRepository(provider); err != nil {
		return nil, fmt.Errorf("order details: %w", err)
	}
	if reg.deposits, err = NewDepositSettingRepository(provider); err != nil {
		return nil, fmt.Errorf("deposit settings: %w", err)
	}
	if reg.returns, err = NewReturnRequestRepository(provider); err != nil {
		return nil, fmt.Errorf("returns: %w", err)
	}
	if reg.products, err = NewProductRepository(provider, txOpts...); err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}
	if reg.carts, err = NewCartRepository(provider); err != nil {
		return nil, fmt.Errorf("carts: %w", err)
	}
	if reg.wishlists, err = NewWishlistRepository(provider); err != nil {
		return nil, fmt.Errorf("wishlists: %w", err)
	}
	if reg.checkouts, err = NewCheckoutSessionRepository(provider); err != nil {
		return nil, fmt.Errorf("checkout sessions: %w", err)
	}
	if reg.counters, err = NewCounterRepository(provider); err != nil {
		return nil, fmt.Errorf("counters: %w", err)
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Orders() repositories.OrderRepository             { return r.orders }
func (r *Registry) OrderDetails() repositories.OrderDetailRepository { return r.details }
func (r *Registry) DepositSettings() repositories.DepositSettingRepository {
	return r.deposits
}
func (r *Registry) Returns() repositories.ReturnRequestRepository { return r.returns }
func (r *Registry) Products() repositories.ProductRepository      { return r.products }
func (r *Registry) Carts() repositories.CartRepository            { return r.carts }
func (r *Registry) Wishlists() repositories.WishlistRepository    { return r.wishlists }
func (r *Registry) CheckoutSessions() repositories.CheckoutSessionRepository {
	return r.checkouts
}
func (r *Registry) Counters() repositories.CounterRepository { return r.counters }
func (r *Registry) Health() repositories.HealthRepository    { return r.health }

// RunInTx runs fn inside a Firestore transaction shared by every repository in the registry.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.uow.RunInTx(ctx, fn)
}
