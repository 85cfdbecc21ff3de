package domain

import "time"

// Product is the stock owning catalogue entry.
type Product struct {
	ID        string
	Name      string
	SKU       string
	Price     int64
	Currency  string
	Image     string
	Stock     int
	Active    bool
	UpdatedAt time.Time
}

// StockChange describes a quantity delta for one product.
type StockChange struct {
	ProductID string
	Quantity  int
}
