package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/hanko-field/commerce/internal/platform/config"
	"github.com/hanko-field/commerce/internal/platform/observability"
	"github.com/hanko-field/commerce/internal/repositories"
	"github.com/hanko-field/commerce/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Inventory services.InventoryService
	Deposits  services.DepositService
	Carts     services.CartService
	Wishlists services.WishlistService
	Orders    services.OrderService
	Returns   services.ReturnService
	Checkout  services.CheckoutService
}

// Infrastructure carries the outbound adapters built by the caller. Nil fields disable the
// corresponding behaviour: no Payments means no checkout service, no Events means no fan-out.
type Infrastructure struct {
	Payments services.PaymentGateway
	Receipts services.ReceiptSigner
	Events   services.EventPublisher
	Mailer   services.OrderMailer
	Meter    metric.Meter
	Logger   *zap.Logger
	Clock    func() time.Time
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring passes the Firestore
// registry, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, infra Infrastructure) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, infra)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, infra Infrastructure) (Services, error) {
	var svc Services

	clock := infra.Clock
	if clock == nil {
		clock = time.Now
	}
	base := infra.Logger
	if base == nil {
		base = zap.NewNop()
	}
	eventLogger := func(name string) observability.EventLogger {
		return observability.NewEventLogger(base.Named(name))
	}

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Products: reg.Products(),
		Clock:    clock,
		Meter:    infra.Meter,
		Logger:   eventLogger("inventory"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventorySvc

	depositSvc, err := services.NewDepositService(services.DepositServiceDeps{
		Settings:       reg.DepositSettings(),
		UnitOfWork:     reg,
		DefaultPercent: cfg.Deposit.DefaultPercent,
		Clock:          clock,
		Logger:         eventLogger("deposits"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build deposit service: %w", err)
	}
	svc.Deposits = depositSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Carts:      reg.Carts(),
		Products:   reg.Products(),
		UnitOfWork: reg,
		Clock:      clock,
		Logger:     eventLogger("carts"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Carts = cartSvc

	wishlistSvc, err := services.NewWishlistService(services.WishlistServiceDeps{
		Wishlists:  reg.Wishlists(),
		Products:   reg.Products(),
		Carts:      cartSvc,
		UnitOfWork: reg,
		Clock:      clock,
		Logger:     eventLogger("wishlists"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build wishlist service: %w", err)
	}
	svc.Wishlists = wishlistSvc

	orderDeps := services.OrderServiceDeps{
		Orders:     reg.Orders(),
		Details:    reg.OrderDetails(),
		Counters:   reg.Counters(),
		Inventory:  inventorySvc,
		Deposits:   depositSvc,
		Carts:      cartSvc,
		UnitOfWork: reg,
		Events:     infra.Events,
		Mailer:     infra.Mailer,
		Clock:      clock,
		Logger:     eventLogger("orders"),
	}
	if infra.Payments != nil {
		orderDeps.Refunds = infra.Payments
	}
	orderSvc, err := services.NewOrderService(orderDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	returnSvc, err := services.NewReturnService(services.ReturnServiceDeps{
		Returns:    reg.Returns(),
		Orders:     reg.Orders(),
		Details:    reg.OrderDetails(),
		Inventory:  inventorySvc,
		UnitOfWork: reg,
		Events:     infra.Events,
		Clock:      clock,
		Logger:     eventLogger("returns"),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build return service: %w", err)
	}
	svc.Returns = returnSvc

	if infra.Payments != nil {
		checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
			Sessions:   reg.CheckoutSessions(),
			Carts:      cartSvc,
			Orders:     orderSvc,
			Deposits:   depositSvc,
			Payments:   infra.Payments,
			Receipts:   infra.Receipts,
			SuccessURL: cfg.Checkout.SuccessURL,
			CancelURL:  cfg.Checkout.CancelURL,
			Clock:      clock,
			Logger:     eventLogger("checkout"),
		})
		if err != nil {
			return Services{}, fmt.Errorf("build checkout service: %w", err)
		}
		svc.Checkout = checkoutSvc
	}

	return svc, nil
}
