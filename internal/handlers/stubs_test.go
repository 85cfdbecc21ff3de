package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/platform/auth"
	"github.com/hanko-field/commerce/internal/services"
)

var handlerNow = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

// serve mounts routes under prefix and runs a request carrying identity (nil for anonymous).
func serve(prefix string, routes func(chi.Router), identity *auth.Identity, method, target, body string) *httptest.ResponseRecorder {
	router := chi.NewRouter()
	if prefix == "" {
		routes(router)
	} else {
		router.Route(prefix, routes)
	}

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func sampleOrder(userID string) services.Order {
	return services.Order{
		ID:                     "ord_1",
		OrderNumber:            "A-1001",
		UserID:                 userID,
		Contact:                services.Contact{Name: "Kei", Email: "kei@example.com"},
		Currency:               "usd",
		TotalAmount:            10000,
		DepositPercent:         10,
		DepositAmount:          1000,
		RemainingPaymentAmount: 9000,
		PaymentMethod:          domain.PaymentMethodStripe,
		Status:                 domain.OrderStatusDepositPaid,
		ApprovalStatus:         domain.ApprovalStatusPending,
		RefundStatus:           domain.RefundStatusNone,
		CreatedAt:              handlerNow,
		UpdatedAt:              handlerNow,
	}
}

type stubOrderService struct {
	createFunc   func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	getFunc      func(ctx context.Context, orderID string) (services.Order, error)
	listFunc     func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	detailsFunc  func(ctx context.Context, orderID string) ([]services.OrderDetail, error)
	approvalFunc func(ctx context.Context, cmd services.UpdateApprovalCommand) (services.Order, error)
	rejectFunc   func(ctx context.Context, cmd services.RejectOrderCommand) (services.Order, error)
	paymentFunc  func(ctx context.Context, cmd services.UpdatePaymentInfoCommand) (services.Order, error)
	completeFunc func(ctx context.Context, cmd services.OrderActionCommand) (services.Order, error)
	cancelFunc   func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
	receiptFunc  func(ctx context.Context, orderID string, objectPath string) (services.Order, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, orderID)
	}
	return services.Order{}, services.ErrOrderNotFound
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) ListOrderDetails(ctx context.Context, orderID string) ([]services.OrderDetail, error) {
	if s.detailsFunc != nil {
		return s.detailsFunc(ctx, orderID)
	}
	return nil, nil
}

func (s *stubOrderService) UpdateApproval(ctx context.Context, cmd services.UpdateApprovalCommand) (services.Order, error) {
	if s.approvalFunc != nil {
		return s.approvalFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) RejectOrder(ctx context.Context, cmd services.RejectOrderCommand) (services.Order, error) {
	if s.rejectFunc != nil {
		return s.rejectFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) UpdatePaymentInfo(ctx context.Context, cmd services.UpdatePaymentInfoCommand) (services.Order, error) {
	if s.paymentFunc != nil {
		return s.paymentFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) MarkCompleted(ctx context.Context, cmd services.OrderActionCommand) (services.Order, error) {
	if s.completeFunc != nil {
		return s.completeFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFunc != nil {
		return s.cancelFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubOrderService) AttachReceipt(ctx context.Context, orderID string, objectPath string) (services.Order, error) {
	if s.receiptFunc != nil {
		return s.receiptFunc(ctx, orderID, objectPath)
	}
	return services.Order{}, nil
}

type stubCheckoutService struct {
	depositFunc          func(ctx context.Context, cmd services.CreateDepositSessionCommand) (services.CheckoutSession, error)
	confirmFunc          func(ctx context.Context, cmd services.ConfirmDepositCommand) (services.Order, error)
	stripeEventFunc      func(ctx context.Context, event services.StripeEvent) error
	remainingFunc        func(ctx context.Context, cmd services.RemainingPaymentCommand) (payments.CheckoutSession, error)
	confirmRemainingFunc func(ctx context.Context, cmd services.ConfirmRemainingPaymentCommand) (services.Order, error)
	receiptFunc          func(ctx context.Context, cmd services.ReceiptUploadCommand) (services.ReceiptUpload, error)
}

func (s *stubCheckoutService) CreateDepositSession(ctx context.Context, cmd services.CreateDepositSessionCommand) (services.CheckoutSession, error) {
	if s.depositFunc != nil {
		return s.depositFunc(ctx, cmd)
	}
	return services.CheckoutSession{}, nil
}

func (s *stubCheckoutService) ConfirmDeposit(ctx context.Context, cmd services.ConfirmDepositCommand) (services.Order, error) {
	if s.confirmFunc != nil {
		return s.confirmFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubCheckoutService) HandleStripeEvent(ctx context.Context, event services.StripeEvent) error {
	if s.stripeEventFunc != nil {
		return s.stripeEventFunc(ctx, event)
	}
	return nil
}

func (s *stubCheckoutService) CreateRemainingPaymentSession(ctx context.Context, cmd services.RemainingPaymentCommand) (payments.CheckoutSession, error) {
	if s.remainingFunc != nil {
		return s.remainingFunc(ctx, cmd)
	}
	return payments.CheckoutSession{}, nil
}

func (s *stubCheckoutService) ConfirmRemainingPayment(ctx context.Context, cmd services.ConfirmRemainingPaymentCommand) (services.Order, error) {
	if s.confirmRemainingFunc != nil {
		return s.confirmRemainingFunc(ctx, cmd)
	}
	return services.Order{}, nil
}

func (s *stubCheckoutService) CreateReceiptUploadURL(ctx context.Context, cmd services.ReceiptUploadCommand) (services.ReceiptUpload, error) {
	if s.receiptFunc != nil {
		return s.receiptFunc(ctx, cmd)
	}
	return services.ReceiptUpload{}, nil
}

type stubCartService struct {
	getFunc    func(ctx context.Context, userID string) (services.Cart, error)
	addFunc    func(ctx context.Context, cmd services.CartItemCommand) (services.Cart, error)
	updateFunc func(ctx context.Context, cmd services.CartItemCommand) (services.Cart, error)
	removeFunc func(ctx context.Context, userID, productID string) (services.Cart, error)
	clearFunc  func(ctx context.Context, userID string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.Cart, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return services.Cart{UserID: userID}, nil
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.CartItemCommand) (services.Cart, error) {
	if s.addFunc != nil {
		return s.addFunc(ctx, cmd)
	}
	return services.Cart{}, nil
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, cmd services.CartItemCommand) (services.Cart, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.Cart{}, nil
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID string, productID string) (services.Cart, error) {
	if s.removeFunc != nil {
		return s.removeFunc(ctx, userID, productID)
	}
	return services.Cart{}, nil
}

func (s *stubCartService) Clear(ctx context.Context, userID string) error {
	if s.clearFunc != nil {
		return s.clearFunc(ctx, userID)
	}
	return nil
}

func (s *stubCartService) RemoveProducts(context.Context, string, []string) error {
	return nil
}

func (s *stubCartService) PurgeStale(context.Context, time.Duration, int) (int, error) {
	return 0, nil
}

type stubWishlistService struct {
	getFunc    func(ctx context.Context, userID string) (services.Wishlist, error)
	addFunc    func(ctx context.Context, userID, productID string) (services.Wishlist, error)
	removeFunc func(ctx context.Context, userID, productID string) (services.Wishlist, error)
	moveFunc   func(ctx context.Context, userID, productID string) (services.Cart, error)
}

func (s *stubWishlistService) GetWishlist(ctx context.Context, userID string) (services.Wishlist, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, userID)
	}
	return services.Wishlist{UserID: userID}, nil
}

func (s *stubWishlistService) AddItem(ctx context.Context, userID string, productID string) (services.Wishlist, error) {
	if s.addFunc != nil {
		return s.addFunc(ctx, userID, productID)
	}
	return services.Wishlist{}, nil
}

func (s *stubWishlistService) RemoveItem(ctx context.Context, userID string, productID string) (services.Wishlist, error) {
	if s.removeFunc != nil {
		return s.removeFunc(ctx, userID, productID)
	}
	return services.Wishlist{}, nil
}

func (s *stubWishlistService) MoveToCart(ctx context.Context, userID string, productID string) (services.Cart, error) {
	if s.moveFunc != nil {
		return s.moveFunc(ctx, userID, productID)
	}
	return services.Cart{}, nil
}

type stubReturnService struct {
	createFunc   func(ctx context.Context, cmd services.CreateReturnCommand) (services.ReturnRequest, error)
	completeFunc func(ctx context.Context, cmd services.ReturnActionCommand) (services.ReturnRequest, error)
	cancelFunc   func(ctx context.Context, cmd services.ReturnActionCommand) (services.ReturnRequest, error)
	getFunc      func(ctx context.Context, returnID string) (services.ReturnRequest, error)
	listFunc     func(ctx context.Context, filter services.ReturnListFilter) (domain.CursorPage[services.ReturnRequest], error)
}

func (s *stubReturnService) CreateReturn(ctx context.Context, cmd services.CreateReturnCommand) (services.ReturnRequest, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.ReturnRequest{}, nil
}

func (s *stubReturnService) CompleteReturn(ctx context.Context, cmd services.ReturnActionCommand) (services.ReturnRequest, error) {
	if s.completeFunc != nil {
		return s.completeFunc(ctx, cmd)
	}
	return services.ReturnRequest{}, nil
}

func (s *stubReturnService) CancelReturn(ctx context.Context, cmd services.ReturnActionCommand) (services.ReturnRequest, error) {
	if s.cancelFunc != nil {
		return s.cancelFunc(ctx, cmd)
	}
	return services.ReturnRequest{}, nil
}

func (s *stubReturnService) GetReturn(ctx context.Context, returnID string) (services.ReturnRequest, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, returnID)
	}
	return services.ReturnRequest{}, services.ErrReturnNotFound
}

func (s *stubReturnService) ListReturns(ctx context.Context, filter services.ReturnListFilter) (domain.CursorPage[services.ReturnRequest], error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, filter)
	}
	return domain.CursorPage[services.ReturnRequest]{}, nil
}

type stubDepositService struct {
	resolveFunc func(ctx context.Context, total int64) (float64, error)
	listFunc    func(ctx context.Context, includeDeleted bool) ([]services.DepositSetting, error)
	createFunc  func(ctx context.Context, cmd services.DepositSettingCommand) (services.DepositSetting, error)
	updateFunc  func(ctx context.Context, cmd services.DepositSettingCommand) (services.DepositSetting, error)
	deleteFunc  func(ctx context.Context, settingID, actorID string) error
}

func (s *stubDepositService) ResolvePercent(ctx context.Context, total int64) (float64, error) {
	if s.resolveFunc != nil {
		return s.resolveFunc(ctx, total)
	}
	return 10, nil
}

func (s *stubDepositService) ListSettings(ctx context.Context, includeDeleted bool) ([]services.DepositSetting, error) {
	if s.listFunc != nil {
		return s.listFunc(ctx, includeDeleted)
	}
	return nil, nil
}

func (s *stubDepositService) GetSetting(context.Context, string) (services.DepositSetting, error) {
	return services.DepositSetting{}, services.ErrDepositNotFound
}

func (s *stubDepositService) CreateSetting(ctx context.Context, cmd services.DepositSettingCommand) (services.DepositSetting, error) {
	if s.createFunc != nil {
		return s.createFunc(ctx, cmd)
	}
	return services.DepositSetting{}, nil
}

func (s *stubDepositService) UpdateSetting(ctx context.Context, cmd services.DepositSettingCommand) (services.DepositSetting, error) {
	if s.updateFunc != nil {
		return s.updateFunc(ctx, cmd)
	}
	return services.DepositSetting{}, nil
}

func (s *stubDepositService) DeleteSetting(ctx context.Context, settingID string, actorID string) error {
	if s.deleteFunc != nil {
		return s.deleteFunc(ctx, settingID, actorID)
	}
	return nil
}

type stubInventoryService struct {
	setStockFunc func(ctx context.Context, cmd services.SetStockCommand) (services.Product, error)
	getFunc      func(ctx context.Context, productID string) (services.Product, error)
}

func (s *stubInventoryService) Decrement(context.Context, []services.StockChange) ([]services.Product, error) {
	return nil, nil
}

func (s *stubInventoryService) Increment(context.Context, []services.StockChange) ([]services.Product, error) {
	return nil, nil
}

func (s *stubInventoryService) SetStock(ctx context.Context, cmd services.SetStockCommand) (services.Product, error) {
	if s.setStockFunc != nil {
		return s.setStockFunc(ctx, cmd)
	}
	return services.Product{}, nil
}

func (s *stubInventoryService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	if s.getFunc != nil {
		return s.getFunc(ctx, productID)
	}
	return services.Product{}, services.ErrInventoryNotFound
}
