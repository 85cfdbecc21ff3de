package services

import (
	"context"
	"time"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination      = domain.Pagination
	Order           = domain.Order
	OrderDetail     = domain.OrderDetail
	DepositSetting  = domain.DepositSetting
	ReturnRequest   = domain.ReturnRequest
	ReturnItem      = domain.ReturnItem
	Product         = domain.Product
	StockChange     = domain.StockChange
	Cart            = domain.Cart
	CartItem        = domain.CartItem
	Wishlist        = domain.Wishlist
	WishlistItem    = domain.WishlistItem
	CheckoutSession = domain.CheckoutSession
	Contact         = domain.Contact
	PaymentRecord   = domain.PaymentRecord

	OrderListFilter  = repositories.OrderListFilter
	ReturnListFilter = repositories.ReturnListFilter
)

// OrderService drives the order state machine and its order detail cascade.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	ListOrderDetails(ctx context.Context, orderID string) ([]OrderDetail, error)
	UpdateApproval(ctx context.Context, cmd UpdateApprovalCommand) (Order, error)
	RejectOrder(ctx context.Context, cmd RejectOrderCommand) (Order, error)
	UpdatePaymentInfo(ctx context.Context, cmd UpdatePaymentInfoCommand) (Order, error)
	MarkCompleted(ctx context.Context, cmd OrderActionCommand) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	AttachReceipt(ctx context.Context, orderID string, objectPath string) (Order, error)
}

// DepositService resolves deposit percentages and manages deposit tiers.
type DepositService interface {
	ResolvePercent(ctx context.Context, total int64) (float64, error)
	ListSettings(ctx context.Context, includeDeleted bool) ([]DepositSetting, error)
	GetSetting(ctx context.Context, settingID string) (DepositSetting, error)
	CreateSetting(ctx context.Context, cmd DepositSettingCommand) (DepositSetting, error)
	UpdateSetting(ctx context.Context, cmd DepositSettingCommand) (DepositSetting, error)
	DeleteSetting(ctx context.Context, settingID string, actorID string) error
}

// ReturnService manages exchange requests for completed orders.
type ReturnService interface {
	CreateReturn(ctx context.Context, cmd CreateReturnCommand) (ReturnRequest, error)
	CompleteReturn(ctx context.Context, cmd ReturnActionCommand) (ReturnRequest, error)
	CancelReturn(ctx context.Context, cmd ReturnActionCommand) (ReturnRequest, error)
	GetReturn(ctx context.Context, returnID string) (ReturnRequest, error)
	ListReturns(ctx context.Context, filter ReturnListFilter) (domain.CursorPage[ReturnRequest], error)
}

// CartService manages per-user carts.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd CartItemCommand) (Cart, error)
	UpdateItemQuantity(ctx context.Context, cmd CartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, userID string, productID string) (Cart, error)
	Clear(ctx context.Context, userID string) error
	RemoveProducts(ctx context.Context, userID string, productIDs []string) error
	PurgeStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// WishlistService manages saved products.
type WishlistService interface {
	GetWishlist(ctx context.Context, userID string) (Wishlist, error)
	AddItem(ctx context.Context, userID string, productID string) (Wishlist, error)
	RemoveItem(ctx context.Context, userID string, productID string) (Wishlist, error)
	MoveToCart(ctx context.Context, userID string, productID string) (Cart, error)
}

// InventoryService mutates product stock with conditional, all-or-nothing updates.
type InventoryService interface {
	Decrement(ctx context.Context, changes []StockChange) ([]Product, error)
	Increment(ctx context.Context, changes []StockChange) ([]Product, error)
	SetStock(ctx context.Context, cmd SetStockCommand) (Product, error)
	GetProduct(ctx context.Context, productID string) (Product, error)
}

// CheckoutService runs deposit and remaining-balance payments through the PSPs.
type CheckoutService interface {
	CreateDepositSession(ctx context.Context, cmd CreateDepositSessionCommand) (CheckoutSession, error)
	ConfirmDeposit(ctx context.Context, cmd ConfirmDepositCommand) (Order, error)
	HandleStripeEvent(ctx context.Context, event StripeEvent) error
	CreateRemainingPaymentSession(ctx context.Context, cmd RemainingPaymentCommand) (payments.CheckoutSession, error)
	ConfirmRemainingPayment(ctx context.Context, cmd ConfirmRemainingPaymentCommand) (Order, error)
	CreateReceiptUploadURL(ctx context.Context, cmd ReceiptUploadCommand) (ReceiptUpload, error)
}

// Event is a notification fanned out to websocket clients and the event bus.
type Event struct {
	Name       string
	UserID     string
	OccurredAt time.Time
	Data       map[string]any
}

// EventPublisher delivers events best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// OrderMail asks the mail worker to notify the customer about an order change.
type OrderMail struct {
	Kind  string
	Order Order
}

// OrderMailer queues customer emails.
type OrderMailer interface {
	SendOrderMail(ctx context.Context, mail OrderMail) error
}

// Commands ------------------------------------------------------------------

// CreateOrderCommand carries a paid deposit checkout into an order.
type CreateOrderCommand struct {
	OrderID        string
	UserID         string
	Items          []CartItem
	Contact        Contact
	Currency       string
	PaymentMethod  domain.PaymentMethod
	DepositPercent float64
	DepositPayment *PaymentRecord
	Note           string
}

type OrderActionCommand struct {
	OrderID string
	ActorID string
}

type UpdateApprovalCommand struct {
	OrderID  string
	Approval domain.ApprovalStatus
	Reason   string
	ActorID  string
}

type RejectOrderCommand struct {
	OrderID string
	Reason  string
	ActorID string
}

type UpdatePaymentInfoCommand struct {
	OrderID string
	Payment PaymentRecord
	ActorID string
}

// CancelOrderCommand cancels an order. Customers may only cancel their own orders.
type CancelOrderCommand struct {
	OrderID      string
	Reason       string
	ActorID      string
	ActorIsStaff bool
}

type DepositSettingCommand struct {
	ID       string
	MinTotal int64
	MaxTotal int64
	Percent  float64
	Active   bool
	ActorID  string
}

type CreateReturnCommand struct {
	UserID               string
	OrderID              string
	OrderDetailIDs       []string
	ReplacementProductID string
	Reason               string
	ActorIsStaff         bool
}

type ReturnActionCommand struct {
	ReturnID string
	ActorID  string
}

type CartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

type SetStockCommand struct {
	ProductID string
	Stock     int
	ActorID   string
}

type CreateDepositSessionCommand struct {
	UserID            string
	Contact           Contact
	Note              string
	PreferredProvider string
	Locale            string
	SuccessURL        string
	CancelURL         string
}

type ConfirmDepositCommand struct {
	UserID     string
	CheckoutID string
	PaymentID  string
}

// StripeEvent is the subset of a verified Stripe webhook event the checkout flow consumes.
type StripeEvent struct {
	ID              string
	Type            string
	SessionID       string
	PaymentIntentID string
	PaymentStatus   string
	Metadata        map[string]string
}

type RemainingPaymentCommand struct {
	OrderID    string
	UserID     string
	Locale     string
	SuccessURL string
	CancelURL  string
}

type ConfirmRemainingPaymentCommand struct {
	OrderID      string
	UserID       string
	PaymentID    string
	ActorIsStaff bool
}

type ReceiptUploadCommand struct {
	OrderID     string
	UserID      string
	FileName    string
	ContentType string
}

// ReceiptUpload is a signed PUT URL for a bank-transfer receipt.
type ReceiptUpload struct {
	URL        string
	Method     string
	Headers    map[string]string
	ObjectPath string
	ExpiresAt  time.Time
}
