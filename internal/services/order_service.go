package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/platform/textutil"
	"github.com/hanko-field/commerce/internal/repositories"
)

// Event names delivered to websocket clients and the event bus.
const (
	EventNewOrder             = "new-order"
	EventOrderStatusChanged   = "order-status-changed"
	EventReturnRequestCreated = "return-request-created"
	EventReturnRequestUpdated = "return-request-updated"
)

// Customer mail kinds.
const (
	MailOrderCreated   = "order_created"
	MailOrderApproved  = "order_approved"
	MailOrderRejected  = "order_rejected"
	MailOrderPaid      = "order_paid"
	MailOrderCompleted = "order_completed"
	MailOrderCancelled = "order_cancelled"
)

const (
	orderIDPrefix       = "ord_"
	orderDetailIDPrefix = "odt_"
	maxOrderNoteLength  = 1000
	maxReasonLength     = 500
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates the transition is not allowed from the current state.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates concurrent updates or duplicate identifiers.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderForbidden indicates the caller does not own the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderInsufficientStock indicates at least one line could not be reserved.
	ErrOrderInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderCascadeFailed indicates the order was updated but its lines or stock were not.
	ErrOrderCascadeFailed = errors.New("order: detail cascade failed")
)

// DepositRefunder refunds captured deposits through the payment provider.
type DepositRefunder interface {
	Refund(ctx context.Context, paymentCtx payments.PaymentContext, req payments.RefundRequest) (payments.PaymentDetails, error)
}

// CartCleaner removes purchased products from a customer's cart.
type CartCleaner interface {
	RemoveProducts(ctx context.Context, userID string, productIDs []string) error
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Details     repositories.OrderDetailRepository
	Counters    repositories.CounterRepository
	Inventory   InventoryService
	Deposits    DepositService
	Carts       CartCleaner
	Refunds     DepositRefunder
	UnitOfWork  repositories.UnitOfWork
	Events      EventPublisher
	Mailer      OrderMailer
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	details    repositories.OrderDetailRepository
	counters   repositories.CounterRepository
	inventory  InventoryService
	deposits   DepositService
	carts      CartCleaner
	refunds    DepositRefunder
	unitOfWork repositories.UnitOfWork
	events     EventPublisher
	mailer     OrderMailer
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Details == nil {
		return nil, errors.New("order service: order detail repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &orderService{
		orders:     deps.Orders,
		details:    deps.Details,
		counters:   deps.Counters,
		inventory:  deps.Inventory,
		deposits:   deps.Deposits,
		carts:      deps.Carts,
		refunds:    deps.Refunds,
		unitOfWork: unit,
		events:     deps.Events,
		mailer:     deps.Mailer,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		return Order{}, fmt.Errorf("%w: currency is required", ErrOrderInvalidInput)
	}
	switch cmd.PaymentMethod {
	case domain.PaymentMethodStripe, domain.PaymentMethodPayPal:
	default:
		return Order{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}

	var total int64
	changes := make([]StockChange, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return Order{}, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
		}
		if item.Quantity <= 0 {
			return Order{}, fmt.Errorf("%w: quantity for %s must be > 0", ErrOrderInvalidInput, productID)
		}
		if item.UnitPrice < 0 {
			return Order{}, fmt.Errorf("%w: unit price for %s must be >= 0", ErrOrderInvalidInput, productID)
		}
		total += item.UnitPrice * int64(item.Quantity)
		changes = append(changes, StockChange{ProductID: productID, Quantity: item.Quantity})
	}
	if total <= 0 {
		return Order{}, fmt.Errorf("%w: order total must be > 0", ErrOrderInvalidInput)
	}

	percent := cmd.DepositPercent
	if !ValidDepositPercent(percent) {
		resolved, err := s.resolvePercent(ctx, total)
		if err != nil {
			return Order{}, err
		}
		percent = resolved
	}
	deposit, remaining := ComputeDeposit(total, percent)

	now := s.clock()
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		orderID = orderIDPrefix + s.newID()
	}
	// The counter runs its own transaction and must not join the order transaction below.
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:                     orderID,
		OrderNumber:            number,
		UserID:                 userID,
		Contact:                cmd.Contact,
		Currency:               currency,
		TotalAmount:            total,
		DepositPercent:         percent,
		DepositAmount:          deposit,
		RemainingPaymentAmount: remaining,
		PaymentMethod:          cmd.PaymentMethod,
		Status:                 domain.OrderStatusDepositPaid,
		ApprovalStatus:         domain.ApprovalStatusPending,
		RefundStatus:           domain.RefundStatusNone,
		Note:                   textutil.PlainText(cmd.Note, maxOrderNoteLength),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if cmd.DepositPayment != nil {
		payment := *cmd.DepositPayment
		if payment.PaidAt.IsZero() {
			payment.PaidAt = now
		}
		order.DepositPayment = &payment
	}

	details := make([]OrderDetail, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		details = append(details, OrderDetail{
			ID:           orderDetailIDPrefix + s.newID(),
			OrderID:      orderID,
			ProductID:    strings.TrimSpace(item.ProductID),
			ProductName:  item.Name,
			ProductSKU:   item.SKU,
			ProductImage: item.Image,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			TotalPrice:   item.UnitPrice * int64(item.Quantity),
			Status:       domain.OrderDetailStatusPending,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}

	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.inventory.Decrement(txCtx, changes); err != nil {
			return err
		}
		if err := s.orders.Insert(txCtx, order); err != nil {
			return err
		}
		return s.details.InsertMany(txCtx, details)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInventoryInsufficientStock):
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInsufficientStock, err)
		case errors.Is(err, ErrInventoryNotFound), errors.Is(err, ErrInventoryInvalidInput):
			return Order{}, fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
		case errors.Is(err, ErrInventoryConflict):
			return Order{}, fmt.Errorf("%w: %v", ErrOrderConflict, err)
		}
		return Order{}, s.mapRepositoryError(err)
	}

	if s.carts != nil {
		productIDs := make([]string, 0, len(changes))
		for _, change := range changes {
			productIDs = append(productIDs, change.ProductID)
		}
		if err := s.carts.RemoveProducts(ctx, userID, productIDs); err != nil {
			s.logger(ctx, "order.cart.cleanup.failed", map[string]any{"orderId": orderID, "error": err.Error()})
		}
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"total":       order.TotalAmount,
		"deposit":     order.DepositAmount,
		"percent":     order.DepositPercent,
	})
	s.publish(ctx, EventNewOrder, order, nil)
	s.sendMail(ctx, MailOrderCreated, order)
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ListOrderDetails(ctx context.Context, orderID string) ([]OrderDetail, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	details, err := s.details.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return details, nil
}

func (s *orderService) UpdateApproval(ctx context.Context, cmd UpdateApprovalCommand) (Order, error) {
	switch cmd.Approval {
	case domain.ApprovalStatusRejected:
		return s.RejectOrder(ctx, RejectOrderCommand{OrderID: cmd.OrderID, Reason: cmd.Reason, ActorID: cmd.ActorID})
	case domain.ApprovalStatusApproved:
	default:
		return Order{}, fmt.Errorf("%w: unsupported approval status %q", ErrOrderInvalidInput, cmd.Approval)
	}
	return s.transition(ctx, cmd.OrderID, cmd.ActorID, orderTransition{
		name: "approve",
		mail: MailOrderApproved,
		guard: func(o Order) error {
			if o.ApprovalStatus != domain.ApprovalStatusPending || o.Status.IsTerminal() {
				return invalidTransition(o, "approve")
			}
			return nil
		},
		apply: func(o *Order, now time.Time) {
			o.ApprovalStatus = domain.ApprovalStatusApproved
			o.ApprovedAt = &now
		},
		detailStatus: domain.OrderDetailStatusPreparing,
	})
}

func (s *orderService) RejectOrder(ctx context.Context, cmd RejectOrderCommand) (Order, error) {
	reason := textutil.PlainText(cmd.Reason, maxReasonLength)
	return s.transition(ctx, cmd.OrderID, cmd.ActorID, orderTransition{
		name: "reject",
		mail: MailOrderRejected,
		guard: func(o Order) error {
			allowed := o.ApprovalStatus == domain.ApprovalStatusPending || o.ApprovalStatus == domain.ApprovalStatusApproved
			if !allowed || o.Status.IsTerminal() {
				return invalidTransition(o, "reject")
			}
			return nil
		},
		apply: func(o *Order, now time.Time) {
			applyEarlyTermination(o, now)
			o.ApprovalStatus = domain.ApprovalStatusRejected
			o.RejectReason = reason
		},
		detailStatus: domain.OrderDetailStatusCancelled,
		restoreStock: true,
	})
}

func (s *orderService) UpdatePaymentInfo(ctx context.Context, cmd UpdatePaymentInfoCommand) (Order, error) {
	payment := cmd.Payment
	payment.Provider = strings.TrimSpace(payment.Provider)
	if payment.Provider == "" {
		return Order{}, fmt.Errorf("%w: payment provider is required", ErrOrderInvalidInput)
	}
	if payment.Amount < 0 {
		return Order{}, fmt.Errorf("%w: payment amount must be >= 0", ErrOrderInvalidInput)
	}
	return s.transition(ctx, cmd.OrderID, cmd.ActorID, orderTransition{
		name: "payment",
		mail: MailOrderPaid,
		guard: func(o Order) error {
			if o.Status != domain.OrderStatusDepositPaid || o.ApprovalStatus != domain.ApprovalStatusApproved {
				return invalidTransition(o, "record remaining payment")
			}
			return nil
		},
		apply: func(o *Order, now time.Time) {
			if payment.PaidAt.IsZero() {
				payment.PaidAt = now
			}
			if payment.Amount == 0 {
				payment.Amount = o.RemainingPaymentAmount
			}
			o.Status = domain.OrderStatusPaidInFull
			o.RemainingPayment = &payment
			o.PaidInFullAt = &now
		},
		detailStatus: domain.OrderDetailStatusPreparing,
	})
}

func (s *orderService) MarkCompleted(ctx context.Context, cmd OrderActionCommand) (Order, error) {
	return s.transition(ctx, cmd.OrderID, cmd.ActorID, orderTransition{
		name: "complete",
		mail: MailOrderCompleted,
		guard: func(o Order) error {
			if o.Status != domain.OrderStatusPaidInFull {
				return invalidTransition(o, "complete")
			}
			return nil
		},
		apply: func(o *Order, now time.Time) {
			o.Status = domain.OrderStatusCompleted
			o.CompletedAt = &now
		},
		detailStatus: domain.OrderDetailStatusDelivered,
	})
}

func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	reason := textutil.PlainText(cmd.Reason, maxReasonLength)
	return s.transition(ctx, cmd.OrderID, cmd.ActorID, orderTransition{
		name: "cancel",
		mail: MailOrderCancelled,
		authorize: func(o Order) error {
			if !cmd.ActorIsStaff && o.UserID != strings.TrimSpace(cmd.ActorID) {
				return fmt.Errorf("%w: order %s", ErrOrderForbidden, o.ID)
			}
			return nil
		},
		guard: func(o Order) error {
			if o.Status.IsTerminal() {
				return invalidTransition(o, "cancel")
			}
			return nil
		},
		apply: func(o *Order, now time.Time) {
			applyEarlyTermination(o, now)
			o.CancelReason = reason
		},
		detailStatus: domain.OrderDetailStatusCancelled,
		restoreStock: true,
	})
}

func (s *orderService) AttachReceipt(ctx context.Context, orderID string, objectPath string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	objectPath = strings.TrimSpace(objectPath)
	if orderID == "" || objectPath == "" {
		return Order{}, fmt.Errorf("%w: order id and object path are required", ErrOrderInvalidInput)
	}
	var order Order
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		current.ReceiptPath = objectPath
		current.UpdatedAt = s.clock()
		order = current
		return s.orders.Update(txCtx, current)
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

type orderTransition struct {
	name         string
	mail         string
	authorize    func(Order) error
	guard        func(Order) error
	apply        func(*Order, time.Time)
	detailStatus domain.OrderDetailStatus
	restoreStock bool
}

// transition updates the order atomically, then cascades line statuses and stock as separate
// writes. A cascade failure is logged and returned without rolling back the order.
func (s *orderService) transition(ctx context.Context, orderID string, actorID string, t orderTransition) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var (
		order    Order
		previous Order
		details  []OrderDetail
	)
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if t.authorize != nil {
			if err := t.authorize(current); err != nil {
				return err
			}
		}
		if err := t.guard(current); err != nil {
			return err
		}
		lines, err := s.details.ListByOrder(txCtx, orderID)
		if err != nil {
			return err
		}
		previous = current
		now := s.clock()
		t.apply(&current, now)
		current.UpdatedAt = now
		if err := s.orders.Update(txCtx, current); err != nil {
			return err
		}
		order, details = current, lines
		return nil
	})
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	cascadeErr := s.cascade(ctx, order, details, t)

	if order.RefundStatus == domain.RefundStatusDepositRefunded && previous.RefundStatus != domain.RefundStatusDepositRefunded {
		s.refundDeposit(ctx, &order)
	}

	s.logger(ctx, "order.transition", map[string]any{
		"orderId":        order.ID,
		"transition":     t.name,
		"previousStatus": string(previous.Status),
		"status":         string(order.Status),
		"approval":       string(order.ApprovalStatus),
		"refund":         string(order.RefundStatus),
		"actorId":        actorID,
	})
	s.publish(ctx, EventOrderStatusChanged, order, map[string]any{
		"previous_status":   string(previous.Status),
		"previous_approval": string(previous.ApprovalStatus),
		"transition":        t.name,
	})
	s.sendMail(ctx, t.mail, order)

	if cascadeErr != nil {
		return order, fmt.Errorf("%w: %v", ErrOrderCascadeFailed, cascadeErr)
	}
	return order, nil
}

func (s *orderService) cascade(ctx context.Context, order Order, details []OrderDetail, t orderTransition) error {
	now := order.UpdatedAt
	ids := make([]string, 0, len(details))
	restock := make([]StockChange, 0, len(details))
	for _, detail := range details {
		if isSettledDetail(detail.Status) {
			continue
		}
		if t.restoreStock && detail.Quantity > 0 {
			restock = append(restock, StockChange{ProductID: detail.ProductID, Quantity: detail.Quantity})
		}
		if detail.Status != t.detailStatus {
			ids = append(ids, detail.ID)
		}
	}

	var errs []error
	if err := s.details.UpdateStatus(ctx, ids, t.detailStatus, now); err != nil {
		s.logger(ctx, "order.cascade.details.failed", map[string]any{"orderId": order.ID, "status": string(t.detailStatus), "error": err.Error()})
		errs = append(errs, err)
	}
	if len(restock) > 0 {
		if _, err := s.inventory.Increment(ctx, restock); err != nil {
			s.logger(ctx, "order.cascade.restock.failed", map[string]any{"orderId": order.ID, "error": err.Error()})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// refundDeposit is best-effort: failures are recorded on the order and logged.
func (s *orderService) refundDeposit(ctx context.Context, order *Order) {
	if order.DepositAmount <= 0 || order.DepositPayment == nil {
		return
	}
	record := &domain.RefundRecord{
		Provider: order.DepositPayment.Provider,
		IntentID: order.DepositPayment.IntentID,
		Amount:   order.DepositAmount,
	}
	if s.refunds == nil {
		record.Error = "refund provider not configured"
	} else {
		amount := order.DepositAmount
		result, err := s.refunds.Refund(ctx, payments.PaymentContext{
			PreferredProvider: order.DepositPayment.Provider,
			Currency:          order.Currency,
		}, payments.RefundRequest{
			IntentID:       order.DepositPayment.IntentID,
			Amount:         &amount,
			Reason:         payments.RefundReasonRequestedByCustomer,
			IdempotencyKey: "refund-" + order.ID,
			Metadata:       map[string]string{"order_id": order.ID},
		})
		if err != nil {
			record.Error = err.Error()
		} else {
			refundedAt := s.clock()
			record.RefundID = result.RefundID
			record.RefundedAt = &refundedAt
		}
	}
	order.Refund = record
	if record.Error != "" {
		s.logger(ctx, "order.refund.failed", map[string]any{"orderId": order.ID, "error": record.Error})
	}

	// The transition has committed; re-read so writes made since then survive.
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, order.ID)
		if err != nil {
			return err
		}
		current.Refund = record
		current.UpdatedAt = s.clock()
		if err := s.orders.Update(txCtx, current); err != nil {
			return err
		}
		*order = current
		return nil
	})
	if err != nil {
		s.logger(ctx, "order.refund.persist_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
	}
}

func (s *orderService) resolvePercent(ctx context.Context, total int64) (float64, error) {
	if s.deposits == nil {
		return DefaultDepositPercent, nil
	}
	percent, err := s.deposits.ResolvePercent(ctx, total)
	if err != nil {
		return 0, fmt.Errorf("order: resolve deposit percent: %w", err)
	}
	if !ValidDepositPercent(percent) {
		return 0, fmt.Errorf("%w: deposit percent %v for total %d", ErrOrderInvalidInput, percent, total)
	}
	return percent, nil
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, fmt.Sprintf("orders:%04d", now.Year()), 1)
	if err != nil {
		return "", fmt.Errorf("order: allocate order number: %w", err)
	}
	return fmt.Sprintf("ORD-%04d-%06d", now.Year(), seq), nil
}

func (s *orderService) mapRepositoryError(err error) error {
	return mapRepoError(err, ErrOrderNotFound, ErrOrderConflict, "order")
}

func (s *orderService) publish(ctx context.Context, name string, order Order, extra map[string]any) {
	if s.events == nil {
		return
	}
	data := map[string]any{
		"order_id":        order.ID,
		"order_number":    order.OrderNumber,
		"user_id":         order.UserID,
		"status":          string(order.Status),
		"approval_status": string(order.ApprovalStatus),
		"refund_status":   string(order.RefundStatus),
		"total_amount":    order.TotalAmount,
		"currency":        order.Currency,
	}
	for k, v := range extra {
		data[k] = v
	}
	event := Event{Name: name, UserID: order.UserID, OccurredAt: order.UpdatedAt, Data: data}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{"event": name, "orderId": order.ID, "error": err.Error()})
	}
}

func (s *orderService) sendMail(ctx context.Context, kind string, order Order) {
	if s.mailer == nil || kind == "" {
		return
	}
	if err := s.mailer.SendOrderMail(ctx, OrderMail{Kind: kind, Order: order}); err != nil {
		s.logger(ctx, "order.mail.failed", map[string]any{"kind": kind, "orderId": order.ID, "error": err.Error()})
	}
}

// applyEarlyTermination derives the refund outcome from the approval state: a deposit is refunded
// before approval and forfeited after it.
func applyEarlyTermination(o *Order, now time.Time) {
	if o.ApprovalStatus == domain.ApprovalStatusApproved {
		o.RefundStatus = domain.RefundStatusDepositLost
		o.Status = domain.OrderStatusCancelled
	} else {
		o.RefundStatus = domain.RefundStatusDepositRefunded
		o.Status = domain.OrderStatusRefunded
	}
	o.CancelledAt = &now
}

var settledDetailStatuses = []domain.OrderDetailStatus{
	domain.OrderDetailStatusCancelled,
	domain.OrderDetailStatusReturned,
}

func isSettledDetail(status domain.OrderDetailStatus) bool {
	return slices.Contains(settledDetailStatuses, status)
}

func invalidTransition(o Order, action string) error {
	return fmt.Errorf("%w: cannot %s order %s (status=%s, approval=%s)", ErrOrderInvalidState, action, o.ID, o.Status, o.ApprovalStatus)
}
