package domain

import "time"

// CheckoutStatus tracks a pending deposit checkout.
type CheckoutStatus string

const (
	CheckoutStatusOpen      CheckoutStatus = "open"
	CheckoutStatusCompleted CheckoutStatus = "completed"
	CheckoutStatusExpired   CheckoutStatus = "expired"
)

// CheckoutSession records the provider session opened for a deposit payment.
type CheckoutSession struct {
	ID                string
	UserID            string
	Provider          string
	ProviderSessionID string
	IntentID          string
	RedirectURL       string
	Currency          string
	TotalAmount       int64
	DepositPercent    float64
	DepositAmount     int64
	Items             []CartItem
	Contact           Contact
	Note              string
	Status            CheckoutStatus
	OrderID           string
	CreatedAt         time.Time
	ExpiresAt         time.Time
}
