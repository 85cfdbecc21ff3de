package domain

import "time"

// ReturnStatus enumerates the exchange workflow states.
type ReturnStatus string

const (
	ReturnStatusPendingManufacturer ReturnStatus = "Pending Manufacturer"
	ReturnStatusCompleted           ReturnStatus = "Completed"
	ReturnStatusCancelled           ReturnStatus = "Cancelled"
)

// ReturnItem snapshots a returned order line.
type ReturnItem struct {
	OrderDetailID string
	ProductID     string
	ProductName   string
	Quantity      int
	UnitPrice     int64
}

// ReturnRequest represents an exchange of delivered goods for a replacement product.
type ReturnRequest struct {
	ID                   string
	OrderID              string
	UserID               string
	Items                []ReturnItem
	ReplacementProductID string
	TotalQuantity        int
	Reason               string
	Status               ReturnStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
	CompletedAt          *time.Time
	CancelledAt          *time.Time
}
