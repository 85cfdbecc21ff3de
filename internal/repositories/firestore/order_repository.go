package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/commerce/internal/domain"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository persists order headers in the orders collection.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{base: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection)}, nil
}

// Insert creates the order document, failing when the id is taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	return r.base.Create(ctx, order.ID, newOrderDocument(order))
}

// Update overwrites the stored order. Callers load the order before mutating it.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order repository: order id is required")
	}
	return r.base.Set(ctx, order.ID, newOrderDocument(order))
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns orders newest first.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	window, err := newPageWindow(filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if statuses := statusStrings(filter.Status); len(statuses) > 0 {
			q = q.Where("status", "in", statuses)
		}
		if approvals := statusStrings(filter.Approval); len(approvals) > 0 {
			q = q.Where("approvalStatus", "in", approvals)
		}
		return window.apply(q)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	return collectPage(window, docs,
		func(d orderDocument) time.Time { return d.CreatedAt },
		func(id string, d orderDocument) domain.Order { return d.toDomain(id) },
	), nil
}

type addressDocument struct {
	Line1      string `firestore:"line1,omitempty"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city,omitempty"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country,omitempty"`
}

type contactDocument struct {
	Name    string          `firestore:"name"`
	Email   string          `firestore:"email"`
	Phone   string          `firestore:"phone,omitempty"`
	Address addressDocument `firestore:"address"`
}

type paymentDocument struct {
	Provider  string    `firestore:"provider"`
	SessionID string    `firestore:"sessionId,omitempty"`
	IntentID  string    `firestore:"intentId,omitempty"`
	Amount    int64     `firestore:"amount"`
	PaidAt    time.Time `firestore:"paidAt"`
}

type refundDocument struct {
	Provider   string     `firestore:"provider"`
	IntentID   string     `firestore:"intentId,omitempty"`
	RefundID   string     `firestore:"refundId,omitempty"`
	Amount     int64      `firestore:"amount"`
	RefundedAt *time.Time `firestore:"refundedAt,omitempty"`
	Error      string     `firestore:"error,omitempty"`
}

type orderDocument struct {
	OrderNumber            string           `firestore:"orderNumber"`
	UserID                 string           `firestore:"userId"`
	Contact                contactDocument  `firestore:"contact"`
	Currency               string           `firestore:"currency"`
	TotalAmount            int64            `firestore:"totalAmount"`
	DepositPercent         float64          `firestore:"depositPercent"`
	DepositAmount          int64            `firestore:"depositAmount"`
	RemainingPaymentAmount int64            `firestore:"remainingPaymentAmount"`
	PaymentMethod          string           `firestore:"paymentMethod"`
	Status                 string           `firestore:"status"`
	ApprovalStatus         string           `firestore:"approvalStatus"`
	RefundStatus           string           `firestore:"refundStatus"`
	DepositPayment         *paymentDocument `firestore:"depositPayment,omitempty"`
	RemainingPayment       *paymentDocument `firestore:"remainingPayment,omitempty"`
	Refund                 *refundDocument  `firestore:"refund,omitempty"`
	ReceiptPath            string           `firestore:"receiptPath,omitempty"`
	Note                   string           `firestore:"note,omitempty"`
	CancelReason           string           `firestore:"cancelReason,omitempty"`
	RejectReason           string           `firestore:"rejectReason,omitempty"`
	CreatedAt              time.Time        `firestore:"createdAt"`
	UpdatedAt              time.Time        `firestore:"updatedAt"`
	ApprovedAt             *time.Time       `firestore:"approvedAt,omitempty"`
	PaidInFullAt           *time.Time       `firestore:"paidInFullAt,omitempty"`
	CompletedAt            *time.Time       `firestore:"completedAt,omitempty"`
	CancelledAt            *time.Time       `firestore:"cancelledAt,omitempty"`
}

func newContactDocument(c domain.Contact) contactDocument {
	return contactDocument{
		Name:  c.Name,
		Email: c.Email,
		Phone: c.Phone,
		Address: addressDocument{
			Line1:      c.Address.Line1,
			Line2:      c.Address.Line2,
			City:       c.Address.City,
			State:      c.Address.State,
			PostalCode: c.Address.PostalCode,
			Country:    c.Address.Country,
		},
	}
}

func (d contactDocument) toDomain() domain.Contact {
	return domain.Contact{
		Name:  d.Name,
		Email: d.Email,
		Phone: d.Phone,
		Address: domain.Address{
			Line1:      d.Address.Line1,
			Line2:      d.Address.Line2,
			City:       d.Address.City,
			State:      d.Address.State,
			PostalCode: d.Address.PostalCode,
			Country:    d.Address.Country,
		},
	}
}

func newPaymentDocument(p *domain.PaymentRecord) *paymentDocument {
	if p == nil {
		return nil
	}
	return &paymentDocument{Provider: p.Provider, SessionID: p.SessionID, IntentID: p.IntentID, Amount: p.Amount, PaidAt: p.PaidAt.UTC()}
}

func (d *paymentDocument) toDomain() *domain.PaymentRecord {
	if d == nil {
		return nil
	}
	return &domain.PaymentRecord{Provider: d.Provider, SessionID: d.SessionID, IntentID: d.IntentID, Amount: d.Amount, PaidAt: d.PaidAt}
}

func newOrderDocument(o domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:            o.OrderNumber,
		UserID:                 o.UserID,
		Contact:                newContactDocument(o.Contact),
		Currency:               o.Currency,
		TotalAmount:            o.TotalAmount,
		DepositPercent:         o.DepositPercent,
		DepositAmount:          o.DepositAmount,
		RemainingPaymentAmount: o.RemainingPaymentAmount,
		PaymentMethod:          string(o.PaymentMethod),
		Status:                 string(o.Status),
		ApprovalStatus:         string(o.ApprovalStatus),
		RefundStatus:           string(o.RefundStatus),
		DepositPayment:         newPaymentDocument(o.DepositPayment),
		RemainingPayment:       newPaymentDocument(o.RemainingPayment),
		ReceiptPath:            o.ReceiptPath,
		Note:                   o.Note,
		CancelReason:           o.CancelReason,
		RejectReason:           o.RejectReason,
		CreatedAt:              o.CreatedAt.UTC(),
		UpdatedAt:              o.UpdatedAt.UTC(),
		ApprovedAt:             utcPtr(o.ApprovedAt),
		PaidInFullAt:           utcPtr(o.PaidInFullAt),
		CompletedAt:            utcPtr(o.CompletedAt),
		CancelledAt:            utcPtr(o.CancelledAt),
	}
	if o.Refund != nil {
		doc.Refund = &refundDocument{
			Provider:   o.Refund.Provider,
			IntentID:   o.Refund.IntentID,
			RefundID:   o.Refund.RefundID,
			Amount:     o.Refund.Amount,
			RefundedAt: utcPtr(o.Refund.RefundedAt),
			Error:      o.Refund.Error,
		}
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	order := domain.Order{
		ID:                     id,
		OrderNumber:            d.OrderNumber,
		UserID:                 d.UserID,
		Contact:                d.Contact.toDomain(),
		Currency:               d.Currency,
		TotalAmount:            d.TotalAmount,
		DepositPercent:         d.DepositPercent,
		DepositAmount:          d.DepositAmount,
		RemainingPaymentAmount: d.RemainingPaymentAmount,
		PaymentMethod:          domain.PaymentMethod(d.PaymentMethod),
		Status:                 domain.OrderStatus(d.Status),
		ApprovalStatus:         domain.ApprovalStatus(d.ApprovalStatus),
		RefundStatus:           domain.RefundStatus(d.RefundStatus),
		DepositPayment:         d.DepositPayment.toDomain(),
		RemainingPayment:       d.RemainingPayment.toDomain(),
		ReceiptPath:            d.ReceiptPath,
		Note:                   d.Note,
		CancelReason:           d.CancelReason,
		RejectReason:           d.RejectReason,
		CreatedAt:              d.CreatedAt,
		UpdatedAt:              d.UpdatedAt,
		ApprovedAt:             d.ApprovedAt,
		PaidInFullAt:           d.PaidInFullAt,
		CompletedAt:            d.CompletedAt,
		CancelledAt:            d.CancelledAt,
	}
	if d.Refund != nil {
		order.Refund = &domain.RefundRecord{
			Provider:   d.Refund.Provider,
			IntentID:   d.Refund.IntentID,
			RefundID:   d.Refund.RefundID,
			Amount:     d.Refund.Amount,
			RefundedAt: d.Refund.RefundedAt,
			Error:      d.Refund.Error,
		}
	}
	return order
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}
