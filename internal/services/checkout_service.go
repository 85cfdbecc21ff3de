package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/language"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/platform/storage"
	"github.com/hanko-field/commerce/internal/platform/textutil"
	"github.com/hanko-field/commerce/internal/repositories"
)

const (
	checkoutIDPrefix = "chk_"

	checkoutKindDeposit   = "deposit"
	checkoutKindRemaining = "remaining"

	stripeEventSessionCompleted    = "checkout.session.completed"
	stripeEventAsyncPaymentSuccess = "checkout.session.async_payment_succeeded"
)

var (
	// ErrCheckoutInvalidInput signals malformed checkout commands.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutEmptyCart indicates there is nothing to pay for.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutNotFound indicates the checkout record or order does not exist.
	ErrCheckoutNotFound = errors.New("checkout: not found")
	// ErrCheckoutForbidden indicates the caller does not own the checkout or order.
	ErrCheckoutForbidden = errors.New("checkout: forbidden")
	// ErrCheckoutExpired indicates the checkout can no longer be confirmed.
	ErrCheckoutExpired = errors.New("checkout: expired")
	// ErrCheckoutPaymentIncomplete indicates the provider has not collected the amount due.
	ErrCheckoutPaymentIncomplete = errors.New("checkout: payment not completed")
	// ErrCheckoutInvalidState indicates the order cannot take the requested payment.
	ErrCheckoutInvalidState = errors.New("checkout: invalid order state")
	// ErrCheckoutOutOfStock indicates stock ran out between payment and order creation.
	ErrCheckoutOutOfStock = errors.New("checkout: items are out of stock")
	// ErrCheckoutProvider wraps payment provider failures.
	ErrCheckoutProvider = errors.New("checkout: payment provider error")
)

// PaymentGateway is the subset of payments.Manager the checkout flow relies on.
type PaymentGateway interface {
	Resolve(paymentCtx payments.PaymentContext) (string, error)
	CreateCheckoutSession(ctx context.Context, paymentCtx payments.PaymentContext, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error)
	Confirm(ctx context.Context, paymentCtx payments.PaymentContext, req payments.ConfirmRequest) (payments.PaymentDetails, error)
	Refund(ctx context.Context, paymentCtx payments.PaymentContext, req payments.RefundRequest) (payments.PaymentDetails, error)
}

// ReceiptSigner issues signed upload URLs for receipt objects.
type ReceiptSigner interface {
	UploadURL(ctx context.Context, objectPath, contentType string) (storage.SignedURL, error)
}

// CheckoutServiceDeps bundles collaborators required to construct the checkout service.
type CheckoutServiceDeps struct {
	Sessions    repositories.CheckoutSessionRepository
	Carts       CartService
	Orders      OrderService
	Deposits    DepositService
	Payments    PaymentGateway
	Receipts    ReceiptSigner
	SuccessURL  string
	CancelURL   string
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type checkoutService struct {
	sessions   repositories.CheckoutSessionRepository
	carts      CartService
	orders     OrderService
	deposits   DepositService
	payments   PaymentGateway
	receipts   ReceiptSigner
	successURL string
	cancelURL  string
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewCheckoutService constructs the checkout service.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("checkout service: checkout session repository is required")
	case deps.Carts == nil:
		return nil, errors.New("checkout service: cart service is required")
	case deps.Orders == nil:
		return nil, errors.New("checkout service: order service is required")
	case deps.Deposits == nil:
		return nil, errors.New("checkout service: deposit service is required")
	case deps.Payments == nil:
		return nil, errors.New("checkout service: payment gateway is required")
	}
	svc := &checkoutService{
		sessions:   deps.Sessions,
		carts:      deps.Carts,
		orders:     deps.Orders,
		deposits:   deps.Deposits,
		payments:   deps.Payments,
		receipts:   deps.Receipts,
		successURL: strings.TrimSpace(deps.SuccessURL),
		cancelURL:  strings.TrimSpace(deps.CancelURL),
		clock:      deps.Clock,
		newID:      deps.IDGenerator,
		logger:     deps.Logger,
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.newID == nil {
		svc.newID = func() string { return ulid.Make().String() }
	}
	if svc.logger == nil {
		svc.logger = noopLogger
	}
	return svc, nil
}

func (s *checkoutService) CreateDepositSession(ctx context.Context, cmd CreateDepositSessionCommand) (CheckoutSession, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}
	contact, err := normalizeContact(cmd.Contact)
	if err != nil {
		return CheckoutSession{}, err
	}
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return CheckoutSession{}, err
	}
	if len(cart.Items) == 0 {
		return CheckoutSession{}, ErrCheckoutEmptyCart
	}

	total := cart.Subtotal()
	percent, err := s.deposits.ResolvePercent(ctx, total)
	if err != nil {
		return CheckoutSession{}, err
	}
	deposit, _ := ComputeDeposit(total, percent)
	if deposit <= 0 {
		return CheckoutSession{}, fmt.Errorf("%w: deposit for total %d is zero", ErrCheckoutInvalidInput, total)
	}

	paymentCtx := payments.PaymentContext{PreferredProvider: cmd.PreferredProvider, Currency: cart.Currency}
	provider, err := s.payments.Resolve(paymentCtx)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}
	paymentCtx.PreferredProvider = provider

	now := s.clock().UTC()
	checkoutID := checkoutIDPrefix + s.newID()
	successURL, cancelURL, err := s.returnURLs(cmd.SuccessURL, cmd.CancelURL, "checkout_id", checkoutID)
	if err != nil {
		return CheckoutSession{}, err
	}

	lines := make([]payments.CheckoutLineItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, payments.CheckoutLineItem{Name: item.Name, SKU: item.SKU, Quantity: int64(item.Quantity), Amount: item.UnitPrice})
	}
	session, err := s.payments.CreateCheckoutSession(ctx, paymentCtx, payments.CheckoutSessionRequest{
		Amount:         deposit,
		Currency:       cart.Currency,
		Description:    fmt.Sprintf("Deposit (%s%%)", formatPercent(percent)),
		CustomerEmail:  contact.Email,
		ReferenceID:    checkoutID,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		Locale:         NormalizeLocale(cmd.Locale),
		IdempotencyKey: checkoutID,
		Items:          lines,
		Metadata: map[string]string{
			"kind":        checkoutKindDeposit,
			"checkout_id": checkoutID,
			"user_id":     userID,
		},
	})
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutProvider, err)
	}

	record := CheckoutSession{
		ID:                checkoutID,
		UserID:            userID,
		Provider:          session.Provider,
		ProviderSessionID: session.ID,
		IntentID:          session.IntentID,
		RedirectURL:       session.RedirectURL,
		Currency:          cart.Currency,
		TotalAmount:       total,
		DepositPercent:    percent,
		DepositAmount:     deposit,
		Items:             append([]CartItem(nil), cart.Items...),
		Contact:           contact,
		Note:              textutil.PlainText(cmd.Note, maxOrderNoteLength),
		Status:            domain.CheckoutStatusOpen,
		CreatedAt:         now,
		ExpiresAt:         session.ExpiresAt,
	}
	if err := s.sessions.Insert(ctx, record); err != nil {
		return CheckoutSession{}, mapRepoError(err, ErrCheckoutNotFound, ErrCheckoutInvalidInput, "checkout")
	}
	s.logger(ctx, "checkout.deposit.created", map[string]any{
		"checkoutId": checkoutID,
		"provider":   record.Provider,
		"total":      total,
		"deposit":    deposit,
	})
	return record, nil
}

// ConfirmDeposit turns a paid deposit checkout into an order. Confirming the same checkout again
// returns the order created the first time.
func (s *checkoutService) ConfirmDeposit(ctx context.Context, cmd ConfirmDepositCommand) (Order, error) {
	checkoutID := strings.TrimSpace(cmd.CheckoutID)
	if checkoutID == "" {
		return Order{}, fmt.Errorf("%w: checkout id is required", ErrCheckoutInvalidInput)
	}
	record, err := s.sessions.FindByID(ctx, checkoutID)
	if err != nil {
		return Order{}, mapRepoError(err, ErrCheckoutNotFound, ErrCheckoutInvalidInput, "checkout")
	}
	if userID := strings.TrimSpace(cmd.UserID); userID != "" && record.UserID != userID {
		return Order{}, fmt.Errorf("%w: checkout %s", ErrCheckoutForbidden, checkoutID)
	}
	if paymentID := strings.TrimSpace(cmd.PaymentID); paymentID != "" && paymentID != record.ProviderSessionID {
		return Order{}, fmt.Errorf("%w: payment %s does not belong to checkout %s", ErrCheckoutInvalidInput, paymentID, checkoutID)
	}
	switch record.Status {
	case domain.CheckoutStatusCompleted:
		if record.OrderID != "" {
			return s.orders.GetOrder(ctx, record.OrderID)
		}
	case domain.CheckoutStatusExpired:
		return Order{}, fmt.Errorf("%w: checkout %s", ErrCheckoutExpired, checkoutID)
	}

	paymentCtx := payments.PaymentContext{PreferredProvider: record.Provider, Currency: record.Currency}
	details, err := s.payments.Confirm(ctx, paymentCtx, payments.ConfirmRequest{
		SessionID:      record.ProviderSessionID,
		IdempotencyKey: "confirm-" + checkoutID,
	})
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutProvider, err)
	}
	if err := verifyCollected(details, record.DepositAmount, record.Currency); err != nil {
		if details.Status == payments.StatusFailed {
			s.expire(ctx, record, "payment_failed")
		}
		return Order{}, err
	}

	now := s.clock().UTC()
	orderID := orderIDPrefix + strings.TrimPrefix(record.ID, checkoutIDPrefix)
	order, err := s.orders.CreateOrder(ctx, CreateOrderCommand{
		OrderID:        orderID,
		UserID:         record.UserID,
		Items:          record.Items,
		Contact:        record.Contact,
		Currency:       record.Currency,
		PaymentMethod:  domain.PaymentMethod(record.Provider),
		DepositPercent: record.DepositPercent,
		Note:           record.Note,
		DepositPayment: &PaymentRecord{
			Provider:  record.Provider,
			SessionID: record.ProviderSessionID,
			IntentID:  details.IntentID,
			Amount:    details.Amount,
			PaidAt:    now,
		},
	})
	switch {
	case errors.Is(err, ErrOrderConflict):
		existing, getErr := s.orders.GetOrder(ctx, orderID)
		if getErr != nil {
			return Order{}, err
		}
		order = existing
	case errors.Is(err, ErrOrderInsufficientStock):
		s.refundUnfulfilled(ctx, record, details)
		s.expire(ctx, record, "out_of_stock")
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutOutOfStock, err)
	case err != nil:
		return Order{}, err
	}

	record.Status = domain.CheckoutStatusCompleted
	record.OrderID = order.ID
	record.IntentID = details.IntentID
	if err := s.sessions.Update(ctx, record); err != nil {
		s.logger(ctx, "checkout.deposit.persist_failed", map[string]any{"checkoutId": record.ID, "orderId": order.ID, "error": err.Error()})
	}
	s.logger(ctx, "checkout.deposit.confirmed", map[string]any{"checkoutId": record.ID, "orderId": order.ID})
	return order, nil
}

// HandleStripeEvent confirms deposits and remaining payments from verified webhook events.
// Unrelated or unpaid events are ignored.
func (s *checkoutService) HandleStripeEvent(ctx context.Context, event StripeEvent) error {
	if event.Type != stripeEventSessionCompleted && event.Type != stripeEventAsyncPaymentSuccess {
		return nil
	}
	if event.PaymentStatus != "" && event.PaymentStatus != "paid" {
		s.logger(ctx, "checkout.webhook.unpaid", map[string]any{"eventId": event.ID, "sessionId": event.SessionID, "paymentStatus": event.PaymentStatus})
		return nil
	}

	switch event.Metadata["kind"] {
	case checkoutKindDeposit:
		checkoutID := strings.TrimSpace(event.Metadata["checkout_id"])
		if checkoutID == "" {
			record, err := s.sessions.FindByProviderSession(ctx, payments.ProviderStripe, event.SessionID)
			if err != nil {
				return mapRepoError(err, ErrCheckoutNotFound, ErrCheckoutInvalidInput, "checkout")
			}
			checkoutID = record.ID
		}
		_, err := s.ConfirmDeposit(ctx, ConfirmDepositCommand{CheckoutID: checkoutID, PaymentID: event.SessionID})
		return err
	case checkoutKindRemaining:
		_, err := s.ConfirmRemainingPayment(ctx, ConfirmRemainingPaymentCommand{
			OrderID:      event.Metadata["order_id"],
			PaymentID:    event.SessionID,
			ActorIsStaff: true,
		})
		if errors.Is(err, ErrOrderCascadeFailed) {
			return nil
		}
		return err
	default:
		s.logger(ctx, "checkout.webhook.ignored", map[string]any{"eventId": event.ID, "sessionId": event.SessionID})
		return nil
	}
}

func (s *checkoutService) CreateRemainingPaymentSession(ctx context.Context, cmd RemainingPaymentCommand) (payments.CheckoutSession, error) {
	order, err := s.ownedOrder(ctx, cmd.OrderID, cmd.UserID, false)
	if err != nil {
		return payments.CheckoutSession{}, err
	}
	if order.Status != domain.OrderStatusDepositPaid || order.ApprovalStatus != domain.ApprovalStatusApproved {
		return payments.CheckoutSession{}, fmt.Errorf("%w: order %s is %s/%s", ErrCheckoutInvalidState, order.ID, order.Status, order.ApprovalStatus)
	}
	if order.RemainingPaymentAmount <= 0 {
		return payments.CheckoutSession{}, fmt.Errorf("%w: nothing left to pay on %s", ErrCheckoutInvalidState, order.ID)
	}
	successURL, cancelURL, err := s.returnURLs(cmd.SuccessURL, cmd.CancelURL, "order_id", order.ID)
	if err != nil {
		return payments.CheckoutSession{}, err
	}

	paymentCtx := payments.PaymentContext{PreferredProvider: string(order.PaymentMethod), Currency: order.Currency}
	session, err := s.payments.CreateCheckoutSession(ctx, paymentCtx, payments.CheckoutSessionRequest{
		Amount:         order.RemainingPaymentAmount,
		Currency:       order.Currency,
		Description:    "Remaining balance for " + order.OrderNumber,
		CustomerEmail:  order.Contact.Email,
		ReferenceID:    order.ID,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		Locale:         NormalizeLocale(cmd.Locale),
		IdempotencyKey: "remaining-" + order.ID + "-" + s.newID(),
		Metadata: map[string]string{
			"kind":     checkoutKindRemaining,
			"order_id": order.ID,
			"user_id":  order.UserID,
		},
	})
	if err != nil {
		return payments.CheckoutSession{}, fmt.Errorf("%w: %v", ErrCheckoutProvider, err)
	}
	s.logger(ctx, "checkout.remaining.created", map[string]any{"orderId": order.ID, "sessionId": session.ID, "amount": order.RemainingPaymentAmount})
	return session, nil
}

func (s *checkoutService) ConfirmRemainingPayment(ctx context.Context, cmd ConfirmRemainingPaymentCommand) (Order, error) {
	paymentID := strings.TrimSpace(cmd.PaymentID)
	if paymentID == "" {
		return Order{}, fmt.Errorf("%w: payment id is required", ErrCheckoutInvalidInput)
	}
	order, err := s.ownedOrder(ctx, cmd.OrderID, cmd.UserID, cmd.ActorIsStaff)
	if err != nil {
		return Order{}, err
	}
	if order.RemainingPayment != nil && order.RemainingPayment.SessionID == paymentID {
		return order, nil
	}
	if order.DepositPayment != nil && order.DepositPayment.SessionID == paymentID {
		return Order{}, fmt.Errorf("%w: payment %s settled the deposit", ErrCheckoutInvalidInput, paymentID)
	}

	paymentCtx := payments.PaymentContext{PreferredProvider: string(order.PaymentMethod), Currency: order.Currency}
	details, err := s.payments.Confirm(ctx, paymentCtx, payments.ConfirmRequest{SessionID: paymentID, IdempotencyKey: "confirm-" + paymentID})
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutProvider, err)
	}
	if details.Metadata["kind"] != checkoutKindRemaining || details.Metadata["order_id"] != order.ID {
		return Order{}, fmt.Errorf("%w: payment %s is not a balance payment for order %s", ErrCheckoutInvalidInput, paymentID, order.ID)
	}
	if err := verifyCollected(details, order.RemainingPaymentAmount, order.Currency); err != nil {
		return Order{}, err
	}

	return s.orders.UpdatePaymentInfo(ctx, UpdatePaymentInfoCommand{
		OrderID: order.ID,
		ActorID: strings.TrimSpace(cmd.UserID),
		Payment: PaymentRecord{
			Provider:  string(order.PaymentMethod),
			SessionID: paymentID,
			IntentID:  details.IntentID,
			Amount:    details.Amount,
			PaidAt:    s.clock().UTC(),
		},
	})
}

func (s *checkoutService) CreateReceiptUploadURL(ctx context.Context, cmd ReceiptUploadCommand) (ReceiptUpload, error) {
	if s.receipts == nil {
		return ReceiptUpload{}, fmt.Errorf("%w: receipt uploads are not configured", ErrCheckoutInvalidState)
	}
	order, err := s.ownedOrder(ctx, cmd.OrderID, cmd.UserID, false)
	if err != nil {
		return ReceiptUpload{}, err
	}
	if order.Status != domain.OrderStatusDepositPaid && order.Status != domain.OrderStatusPaidInFull {
		return ReceiptUpload{}, fmt.Errorf("%w: order %s is %s", ErrCheckoutInvalidState, order.ID, order.Status)
	}

	objectPath := storage.ReceiptPath(order.ID, cmd.FileName, s.clock())
	signed, err := s.receipts.UploadURL(ctx, objectPath, cmd.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrContentTypeDenied) {
			return ReceiptUpload{}, fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
		}
		return ReceiptUpload{}, err
	}
	if _, err := s.orders.AttachReceipt(ctx, order.ID, signed.ObjectPath); err != nil {
		return ReceiptUpload{}, err
	}
	return ReceiptUpload{
		URL:        signed.URL,
		Method:     signed.Method,
		Headers:    signed.Headers,
		ObjectPath: signed.ObjectPath,
		ExpiresAt:  signed.ExpiresAt,
	}, nil
}

func (s *checkoutService) ownedOrder(ctx context.Context, orderID, userID string, staff bool) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrCheckoutInvalidInput)
	}
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !staff && order.UserID != strings.TrimSpace(userID) {
		return Order{}, fmt.Errorf("%w: order %s", ErrCheckoutForbidden, orderID)
	}
	return order, nil
}

// refundUnfulfilled returns a collected deposit when the order could not be created.
func (s *checkoutService) refundUnfulfilled(ctx context.Context, record CheckoutSession, details payments.PaymentDetails) {
	if details.IntentID == "" {
		s.logger(ctx, "checkout.refund.skipped", map[string]any{"checkoutId": record.ID, "reason": "missing intent"})
		return
	}
	amount := details.Amount
	_, err := s.payments.Refund(ctx, payments.PaymentContext{PreferredProvider: record.Provider, Currency: record.Currency}, payments.RefundRequest{
		IntentID:       details.IntentID,
		Amount:         &amount,
		Currency:       record.Currency,
		Reason:         payments.RefundReasonRequestedByCustomer,
		IdempotencyKey: "refund-" + record.ID,
		Metadata:       map[string]string{"checkout_id": record.ID},
	})
	if err != nil {
		s.logger(ctx, "checkout.refund.failed", map[string]any{"checkoutId": record.ID, "error": err.Error()})
		return
	}
	s.logger(ctx, "checkout.refund.issued", map[string]any{"checkoutId": record.ID, "amount": amount})
}

func (s *checkoutService) expire(ctx context.Context, record CheckoutSession, reason string) {
	record.Status = domain.CheckoutStatusExpired
	if err := s.sessions.Update(ctx, record); err != nil {
		s.logger(ctx, "checkout.expire.failed", map[string]any{"checkoutId": record.ID, "error": err.Error()})
		return
	}
	s.logger(ctx, "checkout.expired", map[string]any{"checkoutId": record.ID, "reason": reason})
}

// returnURLs resolves the PSP redirect targets and tags them with key=value.
func (s *checkoutService) returnURLs(success, cancel, key, value string) (string, string, error) {
	success = firstNonEmpty(success, s.successURL)
	cancel = firstNonEmpty(cancel, s.cancelURL, success)
	if success == "" {
		return "", "", fmt.Errorf("%w: success url is required", ErrCheckoutInvalidInput)
	}
	tagged := make([]string, 0, 2)
	for _, raw := range []string{success, cancel} {
		parsed, err := url.Parse(raw)
		if err != nil || !parsed.IsAbs() {
			return "", "", fmt.Errorf("%w: invalid return url %q", ErrCheckoutInvalidInput, raw)
		}
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		tagged = append(tagged, parsed.String())
	}
	return tagged[0], tagged[1], nil
}

func verifyCollected(details payments.PaymentDetails, amount int64, currency string) error {
	if !details.Succeeded(amount) {
		return fmt.Errorf("%w: status=%s collected=%d due=%d", ErrCheckoutPaymentIncomplete, details.Status, details.Amount, amount)
	}
	if details.Currency != "" && !strings.EqualFold(details.Currency, currency) {
		return fmt.Errorf("%w: collected %s, expected %s", ErrCheckoutPaymentIncomplete, details.Currency, currency)
	}
	return nil
}

func normalizeContact(contact Contact) (Contact, error) {
	contact.Name = textutil.PlainText(contact.Name, 200)
	contact.Phone = strings.TrimSpace(contact.Phone)
	contact.Email = strings.TrimSpace(contact.Email)
	if contact.Name == "" {
		return Contact{}, fmt.Errorf("%w: contact name is required", ErrCheckoutInvalidInput)
	}
	addr, err := mail.ParseAddress(contact.Email)
	if err != nil {
		return Contact{}, fmt.Errorf("%w: contact email is invalid", ErrCheckoutInvalidInput)
	}
	contact.Email = addr.Address
	contact.Address.Country = strings.ToUpper(strings.TrimSpace(contact.Address.Country))
	return contact, nil
}

var (
	checkoutLocales = []language.Tag{
		language.English,
		language.Japanese,
		language.French,
		language.German,
		language.Spanish,
		language.Italian,
		language.Dutch,
		language.Portuguese,
		language.Chinese,
		language.Korean,
	}
	checkoutLocaleMatcher = language.NewMatcher(checkoutLocales)
)

// NormalizeLocale maps an Accept-Language style value to a base language both PSPs accept,
// or "" when nothing matches.
func NormalizeLocale(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(strings.ReplaceAll(raw, "_", "-"))
	if err != nil || len(tags) == 0 {
		return ""
	}
	_, index, confidence := checkoutLocaleMatcher.Match(tags...)
	if confidence == language.No {
		return ""
	}
	base, _ := checkoutLocales[index].Base()
	return base.String()
}

func formatPercent(percent float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", percent), "0"), ".")
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
