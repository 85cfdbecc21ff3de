package handlers

import (
	"strings"

	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/services"
)

type addressPayload struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type contactPayload struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Phone   string         `json:"phone,omitempty"`
	Address addressPayload `json:"address"`
}

func (c contactPayload) toContact() services.Contact {
	contact := services.Contact{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
	contact.Address.Line1 = strings.TrimSpace(c.Address.Line1)
	contact.Address.Line2 = strings.TrimSpace(c.Address.Line2)
	contact.Address.City = strings.TrimSpace(c.Address.City)
	contact.Address.State = strings.TrimSpace(c.Address.State)
	contact.Address.PostalCode = strings.TrimSpace(c.Address.PostalCode)
	contact.Address.Country = strings.ToUpper(strings.TrimSpace(c.Address.Country))
	return contact
}

func buildContactPayload(c services.Contact) contactPayload {
	return contactPayload{
		Name:  c.Name,
		Email: c.Email,
		Phone: c.Phone,
		Address: addressPayload{
			Line1:      c.Address.Line1,
			Line2:      c.Address.Line2,
			City:       c.Address.City,
			State:      c.Address.State,
			PostalCode: c.Address.PostalCode,
			Country:    c.Address.Country,
		},
	}
}

type paymentPayload struct {
	Provider  string `json:"provider"`
	SessionID string `json:"session_id,omitempty"`
	IntentID  string `json:"intent_id,omitempty"`
	Amount    int64  `json:"amount"`
	PaidAt    string `json:"paid_at,omitempty"`
}

func buildPaymentPayload(p *services.PaymentRecord) *paymentPayload {
	if p == nil {
		return nil
	}
	return &paymentPayload{
		Provider:  p.Provider,
		SessionID: p.SessionID,
		IntentID:  p.IntentID,
		Amount:    p.Amount,
		PaidAt:    formatTime(p.PaidAt),
	}
}

type refundPayload struct {
	Provider   string `json:"provider"`
	RefundID   string `json:"refund_id,omitempty"`
	Amount     int64  `json:"amount"`
	RefundedAt string `json:"refunded_at,omitempty"`
	Error      string `json:"error,omitempty"`
}

type orderPayload struct {
	ID                     string          `json:"id"`
	OrderNumber            string          `json:"order_number"`
	UserID                 string          `json:"user_id"`
	Contact                contactPayload  `json:"contact"`
	Currency               string          `json:"currency"`
	TotalAmount            int64           `json:"total_amount"`
	DepositPercent         float64         `json:"deposit_percent"`
	DepositAmount          int64           `json:"deposit_amount"`
	RemainingPaymentAmount int64           `json:"remaining_payment_amount"`
	PaymentMethod          string          `json:"payment_method"`
	Status                 string          `json:"status"`
	ApprovalStatus         string          `json:"approval_status"`
	RefundStatus           string          `json:"refund_status"`
	DepositPayment         *paymentPayload `json:"deposit_payment,omitempty"`
	RemainingPayment       *paymentPayload `json:"remaining_payment,omitempty"`
	Refund                 *refundPayload  `json:"refund,omitempty"`
	ReceiptPath            string          `json:"receipt_path,omitempty"`
	Note                   string          `json:"note,omitempty"`
	CancelReason           string          `json:"cancel_reason,omitempty"`
	RejectReason           string          `json:"reject_reason,omitempty"`
	CreatedAt              string          `json:"created_at"`
	UpdatedAt              string          `json:"updated_at"`
	ApprovedAt             string          `json:"approved_at,omitempty"`
	PaidInFullAt           string          `json:"paid_in_full_at,omitempty"`
	CompletedAt            string          `json:"completed_at,omitempty"`
	CancelledAt            string          `json:"cancelled_at,omitempty"`
}

func buildOrderPayload(o services.Order) orderPayload {
	payload := orderPayload{
		ID:                     o.ID,
		OrderNumber:            o.OrderNumber,
		UserID:                 o.UserID,
		Contact:                buildContactPayload(o.Contact),
		Currency:               strings.ToUpper(o.Currency),
		TotalAmount:            o.TotalAmount,
		DepositPercent:         o.DepositPercent,
		DepositAmount:          o.DepositAmount,
		RemainingPaymentAmount: o.RemainingPaymentAmount,
		PaymentMethod:          string(o.PaymentMethod),
		Status:                 string(o.Status),
		ApprovalStatus:         string(o.ApprovalStatus),
		RefundStatus:           string(o.RefundStatus),
		DepositPayment:         buildPaymentPayload(o.DepositPayment),
		RemainingPayment:       buildPaymentPayload(o.RemainingPayment),
		ReceiptPath:            o.ReceiptPath,
		Note:                   o.Note,
		CancelReason:           o.CancelReason,
		RejectReason:           o.RejectReason,
		CreatedAt:              formatTime(o.CreatedAt),
		UpdatedAt:              formatTime(o.UpdatedAt),
		ApprovedAt:             formatTimePtr(o.ApprovedAt),
		PaidInFullAt:           formatTimePtr(o.PaidInFullAt),
		CompletedAt:            formatTimePtr(o.CompletedAt),
		CancelledAt:            formatTimePtr(o.CancelledAt),
	}
	if o.Refund != nil {
		payload.Refund = &refundPayload{
			Provider:   o.Refund.Provider,
			RefundID:   o.Refund.RefundID,
			Amount:     o.Refund.Amount,
			RefundedAt: formatTimePtr(o.Refund.RefundedAt),
			Error:      o.Refund.Error,
		}
	}
	return payload
}

type orderDetailPayload struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductSKU   string `json:"product_sku,omitempty"`
	ProductImage string `json:"product_image,omitempty"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
	TotalPrice   int64  `json:"total_price"`
	Status       string `json:"status"`
	UpdatedAt    string `json:"updated_at"`
}

func buildOrderDetailPayloads(details []services.OrderDetail) []orderDetailPayload {
	items := make([]orderDetailPayload, 0, len(details))
	for _, d := range details {
		items = append(items, orderDetailPayload{
			ID:           d.ID,
			ProductID:    d.ProductID,
			ProductName:  d.ProductName,
			ProductSKU:   d.ProductSKU,
			ProductImage: d.ProductImage,
			Quantity:     d.Quantity,
			UnitPrice:    d.UnitPrice,
			TotalPrice:   d.TotalPrice,
			Status:       string(d.Status),
			UpdatedAt:    formatTime(d.UpdatedAt),
		})
	}
	return items
}

type orderResponse struct {
	Order   orderPayload `json:"order"`
	Warning string       `json:"warning,omitempty"`
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type cartItemPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SKU       string `json:"sku,omitempty"`
	Image     string `json:"image,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

type cartPayload struct {
	Items     []cartItemPayload `json:"items"`
	Currency  string            `json:"currency,omitempty"`
	Subtotal  int64             `json:"subtotal"`
	ItemCount int               `json:"item_count"`
	UpdatedAt string            `json:"updated_at,omitempty"`
}

func buildCartPayload(c services.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			LineTotal: item.UnitPrice * int64(item.Quantity),
		})
	}
	return cartPayload{
		Items:     items,
		Currency:  strings.ToUpper(c.Currency),
		Subtotal:  c.Subtotal(),
		ItemCount: c.ItemCount(),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
}

type wishlistItemPayload struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	UnitPrice int64  `json:"unit_price"`
	AddedAt   string `json:"added_at"`
}

type wishlistPayload struct {
	Items     []wishlistItemPayload `json:"items"`
	UpdatedAt string                `json:"updated_at,omitempty"`
}

func buildWishlistPayload(wl services.Wishlist) wishlistPayload {
	items := make([]wishlistItemPayload, 0, len(wl.Items))
	for _, item := range wl.Items {
		items = append(items, wishlistItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			AddedAt:   formatTime(item.AddedAt),
		})
	}
	return wishlistPayload{Items: items, UpdatedAt: formatTime(wl.UpdatedAt)}
}

type returnItemPayload struct {
	OrderDetailID string `json:"order_detail_id"`
	ProductID     string `json:"product_id"`
	ProductName   string `json:"product_name"`
	Quantity      int    `json:"quantity"`
	UnitPrice     int64  `json:"unit_price"`
}

type returnPayload struct {
	ID                   string              `json:"id"`
	OrderID              string              `json:"order_id"`
	UserID               string              `json:"user_id"`
	Items                []returnItemPayload `json:"items"`
	ReplacementProductID string              `json:"replacement_product_id"`
	TotalQuantity        int                 `json:"total_quantity"`
	Reason               string              `json:"reason,omitempty"`
	Status               string              `json:"status"`
	CreatedAt            string              `json:"created_at"`
	UpdatedAt            string              `json:"updated_at"`
	CompletedAt          string              `json:"completed_at,omitempty"`
	CancelledAt          string              `json:"cancelled_at,omitempty"`
}

func buildReturnPayload(r services.ReturnRequest) returnPayload {
	items := make([]returnItemPayload, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, returnItemPayload{
			OrderDetailID: item.OrderDetailID,
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
		})
	}
	return returnPayload{
		ID:                   r.ID,
		OrderID:              r.OrderID,
		UserID:               r.UserID,
		Items:                items,
		ReplacementProductID: r.ReplacementProductID,
		TotalQuantity:        r.TotalQuantity,
		Reason:               r.Reason,
		Status:               string(r.Status),
		CreatedAt:            formatTime(r.CreatedAt),
		UpdatedAt:            formatTime(r.UpdatedAt),
		CompletedAt:          formatTimePtr(r.CompletedAt),
		CancelledAt:          formatTimePtr(r.CancelledAt),
	}
}

type productPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SKU       string `json:"sku,omitempty"`
	Price     int64  `json:"price"`
	Currency  string `json:"currency"`
	Image     string `json:"image,omitempty"`
	Stock     int    `json:"stock"`
	Active    bool   `json:"active"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func buildProductPayload(p services.Product) productPayload {
	return productPayload{
		ID:        p.ID,
		Name:      p.Name,
		SKU:       p.SKU,
		Price:     p.Price,
		Currency:  strings.ToUpper(p.Currency),
		Image:     p.Image,
		Stock:     p.Stock,
		Active:    p.Active,
		UpdatedAt: formatTime(p.UpdatedAt),
	}
}

type depositSettingPayload struct {
	ID        string  `json:"id"`
	MinTotal  int64   `json:"min_total"`
	MaxTotal  int64   `json:"max_total"`
	Percent   float64 `json:"percent"`
	Active    bool    `json:"active"`
	Deleted   bool    `json:"deleted,omitempty"`
	UpdatedAt string  `json:"updated_at,omitempty"`
	UpdatedBy string  `json:"updated_by,omitempty"`
}

func buildDepositSettingPayload(s services.DepositSetting) depositSettingPayload {
	return depositSettingPayload{
		ID:        s.ID,
		MinTotal:  s.MinTotal,
		MaxTotal:  s.MaxTotal,
		Percent:   s.Percent,
		Active:    s.Active,
		Deleted:   s.Deleted,
		UpdatedAt: formatTime(s.UpdatedAt),
		UpdatedBy: s.UpdatedBy,
	}
}

type checkoutSessionPayload struct {
	CheckoutID     string  `json:"checkout_id,omitempty"`
	Provider       string  `json:"provider"`
	SessionID      string  `json:"session_id"`
	RedirectURL    string  `json:"redirect_url"`
	Currency       string  `json:"currency"`
	Amount         int64   `json:"amount"`
	TotalAmount    int64   `json:"total_amount,omitempty"`
	DepositPercent float64 `json:"deposit_percent,omitempty"`
	ExpiresAt      string  `json:"expires_at,omitempty"`
}

func buildDepositCheckoutPayload(s services.CheckoutSession) checkoutSessionPayload {
	return checkoutSessionPayload{
		CheckoutID:     s.ID,
		Provider:       s.Provider,
		SessionID:      s.ProviderSessionID,
		RedirectURL:    s.RedirectURL,
		Currency:       strings.ToUpper(s.Currency),
		Amount:         s.DepositAmount,
		TotalAmount:    s.TotalAmount,
		DepositPercent: s.DepositPercent,
		ExpiresAt:      formatTime(s.ExpiresAt),
	}
}

func buildProviderSessionPayload(s payments.CheckoutSession) checkoutSessionPayload {
	return checkoutSessionPayload{
		Provider:    s.Provider,
		SessionID:   s.ID,
		RedirectURL: s.RedirectURL,
		Currency:    strings.ToUpper(s.Currency),
		Amount:      s.Amount,
		ExpiresAt:   formatTime(s.ExpiresAt),
	}
}
