package domain

import "time"

// CartItem is a product line with a price snapshot.
type CartItem struct {
	ProductID string
	Name      string
	SKU       string
	Image     string
	UnitPrice int64
	Quantity  int
}

// Cart holds the items a customer intends to buy.
type Cart struct {
	UserID    string
	Items     []CartItem
	Currency  string
	UpdatedAt time.Time
}

// Subtotal sums the line totals.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// ItemCount returns the total quantity across lines.
func (c Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// WishlistItem is a saved product.
type WishlistItem struct {
	ProductID string
	Name      string
	Image     string
	UnitPrice int64
	AddedAt   time.Time
}

// Wishlist holds saved products per user.
type Wishlist struct {
	UserID    string
	Items     []WishlistItem
	UpdatedAt time.Time
}
