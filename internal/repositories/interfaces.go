package repositories

import (
	"context"
	"time"

	domain "github.com/hanko-field/commerce/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	OrderDetails() OrderDetailRepository
	DepositSettings() DepositSettingRepository
	Returns() ReturnRequestRepository
	Products() ProductRepository
	Carts() CartRepository
	Wishlists() WishlistRepository
	CheckoutSessions() CheckoutSessionRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order headers.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// OrderDetailRepository persists order line snapshots.
type OrderDetailRepository interface {
	InsertMany(ctx context.Context, details []domain.OrderDetail) error
	ListByOrder(ctx context.Context, orderID string) ([]domain.OrderDetail, error)
	UpdateStatus(ctx context.Context, detailIDs []string, status domain.OrderDetailStatus, at time.Time) error
}

// DepositSettingRepository persists deposit tiers.
type DepositSettingRepository interface {
	Insert(ctx context.Context, setting domain.DepositSetting) error
	Update(ctx context.Context, setting domain.DepositSetting) error
	FindByID(ctx context.Context, settingID string) (domain.DepositSetting, error)
	List(ctx context.Context, includeDeleted bool) ([]domain.DepositSetting, error)
}

// ReturnRequestRepository persists exchange requests.
type ReturnRequestRepository interface {
	Insert(ctx context.Context, request domain.ReturnRequest) error
	Update(ctx context.Context, request domain.ReturnRequest) error
	FindByID(ctx context.Context, returnID string) (domain.ReturnRequest, error)
	List(ctx context.Context, filter ReturnListFilter) (domain.CursorPage[domain.ReturnRequest], error)
}

// ProductRepository owns product stock. Stock mutations are conditional and all-or-nothing.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindMany(ctx context.Context, productIDs []string) ([]domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) error
	DecrementStock(ctx context.Context, changes []domain.StockChange, at time.Time) ([]domain.Product, error)
	IncrementStock(ctx context.Context, changes []domain.StockChange, at time.Time) ([]domain.Product, error)
	SetStock(ctx context.Context, productID string, stock int, at time.Time) (domain.Product, error)
}

// CartRepository persists one cart document per user.
type CartRepository interface {
	Get(ctx context.Context, userID string) (domain.Cart, error)
	Save(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, userID string) error
	ListStale(ctx context.Context, before time.Time, limit int) ([]string, error)
}

// WishlistRepository persists one wishlist document per user.
type WishlistRepository interface {
	Get(ctx context.Context, userID string) (domain.Wishlist, error)
	Save(ctx context.Context, wishlist domain.Wishlist) error
}

// CheckoutSessionRepository persists pending deposit checkouts.
type CheckoutSessionRepository interface {
	Insert(ctx context.Context, session domain.CheckoutSession) error
	Update(ctx context.Context, session domain.CheckoutSession) error
	FindByID(ctx context.Context, sessionID string) (domain.CheckoutSession, error)
	FindByProviderSession(ctx context.Context, provider string, providerSessionID string) (domain.CheckoutSession, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

// OrderListFilter narrows order listings. Empty fields match everything.
type OrderListFilter struct {
	UserID     string
	Status     []domain.OrderStatus
	Approval   []domain.ApprovalStatus
	Pagination domain.Pagination
}

// ReturnListFilter narrows return listings.
type ReturnListFilter struct {
	UserID     string
	OrderID    string
	Status     []domain.ReturnStatus
	Pagination domain.Pagination
}

// CounterConfig customises counter behaviour.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
