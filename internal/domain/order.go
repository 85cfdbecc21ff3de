package domain

import "time"

// OrderStatus enumerates the payment/fulfilment lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending     OrderStatus = "Pending"
	OrderStatusDepositPaid OrderStatus = "Deposit Paid"
	OrderStatusPaidInFull  OrderStatus = "Paid in Full"
	OrderStatusCancelled   OrderStatus = "Cancelled"
	OrderStatusRefunded    OrderStatus = "Refunded"
	OrderStatusCompleted   OrderStatus = "Completed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCancelled, OrderStatusRefunded, OrderStatusCompleted:
		return true
	}
	return false
}

// ApprovalStatus tracks the staff review of an order, independent of payment status.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "Pending Approval"
	ApprovalStatusApproved ApprovalStatus = "Approved"
	ApprovalStatusRejected ApprovalStatus = "Rejected"
)

// RefundStatus records what happened to the deposit when an order ends early.
type RefundStatus string

const (
	RefundStatusNone            RefundStatus = "None"
	RefundStatusDepositLost     RefundStatus = "Deposit Lost"
	RefundStatusDepositRefunded RefundStatus = "Deposit Refunded"
)

// PaymentMethod identifies the PSP used for the order.
type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "stripe"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

// PaymentRecord captures a captured PSP payment.
type PaymentRecord struct {
	Provider  string
	SessionID string
	IntentID  string
	Amount    int64
	PaidAt    time.Time
}

// RefundRecord captures the outcome of a deposit refund attempt.
type RefundRecord struct {
	Provider   string
	IntentID   string
	RefundID   string
	Amount     int64
	RefundedAt *time.Time
	Error      string
}

// Order is the aggregate root for a customer purchase.
type Order struct {
	ID                     string
	OrderNumber            string
	UserID                 string
	Contact                Contact
	Currency               string
	TotalAmount            int64
	DepositPercent         float64
	DepositAmount          int64
	RemainingPaymentAmount int64
	PaymentMethod          PaymentMethod
	Status                 OrderStatus
	ApprovalStatus         ApprovalStatus
	RefundStatus           RefundStatus
	DepositPayment         *PaymentRecord
	RemainingPayment       *PaymentRecord
	Refund                 *RefundRecord
	ReceiptPath            string
	Note                   string
	CancelReason           string
	RejectReason           string
	CreatedAt              time.Time
	UpdatedAt              time.Time
	ApprovedAt             *time.Time
	PaidInFullAt           *time.Time
	CompletedAt            *time.Time
	CancelledAt            *time.Time
}

// OrderDetailStatus tracks a single order line.
type OrderDetailStatus string

const (
	OrderDetailStatusPending   OrderDetailStatus = "Pending"
	OrderDetailStatusPreparing OrderDetailStatus = "Preparing"
	OrderDetailStatusDelivered OrderDetailStatus = "Delivered"
	OrderDetailStatusReturned  OrderDetailStatus = "Returned"
	OrderDetailStatusCancelled OrderDetailStatus = "Cancelled"
)

// OrderDetail snapshots one purchased product line.
type OrderDetail struct {
	ID           string
	OrderID      string
	ProductID    string
	ProductName  string
	ProductSKU   string
	ProductImage string
	Quantity     int
	UnitPrice    int64
	TotalPrice   int64
	Status       OrderDetailStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
