package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/services"
)

const (
	maxCheckoutBodySize  = 8 * 1024
	checkoutSessionLimit = 10
	checkoutLimitWindow  = time.Minute
)

// CheckoutHandlers opens and confirms deposit checkouts.
type CheckoutHandlers struct {
	checkout services.CheckoutService
	limiter  rateLimiter
}

// CheckoutOption customises CheckoutHandlers.
type CheckoutOption func(*CheckoutHandlers)

// WithCheckoutRateLimit caps session creation per user within window.
func WithCheckoutRateLimit(limit int, window time.Duration, clock func() time.Time) CheckoutOption {
	return func(h *CheckoutHandlers) {
		h.limiter = newWindowLimiter(limit, window, clock)
	}
}

// NewCheckoutHandlers constructs the checkout handlers.
func NewCheckoutHandlers(checkout services.CheckoutService, opts ...CheckoutOption) *CheckoutHandlers {
	h := &CheckoutHandlers{
		checkout: checkout,
		limiter:  newWindowLimiter(checkoutSessionLimit, checkoutLimitWindow, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type depositSessionRequest struct {
	Contact    contactPayload `json:"contact"`
	Note       string         `json:"note"`
	Provider   string         `json:"provider"`
	Locale     string         `json:"locale"`
	SuccessURL string         `json:"success_url"`
	CancelURL  string         `json:"cancel_url"`
}

type confirmDepositRequest struct {
	CheckoutID string `json:"checkout_id"`
	PaymentID  string `json:"payment_id"`
}

type checkoutSessionResponse struct {
	Session checkoutSessionPayload `json:"session"`
}

// Routes wires the /checkout endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/deposit", h.createDepositSession)
	r.Post("/confirm", h.confirmDeposit)
}

func (h *CheckoutHandlers) createDepositSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		serviceUnavailable(ctx, w, "checkout")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.limiter != nil {
		if allowed, wait := h.limiter.Take(identity.UID); !allowed {
			w.Header().Set("Retry-After", retryAfterSeconds(wait))
			httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout attempts; retry later", http.StatusTooManyRequests))
			return
		}
	}

	var req depositSessionRequest
	if !decodeBody(w, r, &req, maxCheckoutBodySize, false) {
		return
	}
	contact := req.Contact.toContact()
	if contact.Email == "" {
		contact.Email = strings.TrimSpace(identity.Email)
	}
	if contact.Name == "" {
		contact.Name = strings.TrimSpace(identity.Name)
	}
	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = identity.Locale
	}

	session, err := h.checkout.CreateDepositSession(ctx, services.CreateDepositSessionCommand{
		UserID:            identity.UID,
		Contact:           contact,
		Note:              req.Note,
		PreferredProvider: strings.ToLower(strings.TrimSpace(req.Provider)),
		Locale:            locale,
		SuccessURL:        strings.TrimSpace(req.SuccessURL),
		CancelURL:         strings.TrimSpace(req.CancelURL),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, checkoutSessionResponse{Session: buildDepositCheckoutPayload(session)})
}

func (h *CheckoutHandlers) confirmDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		serviceUnavailable(ctx, w, "checkout")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req confirmDepositRequest
	if !decodeBody(w, r, &req, maxCheckoutBodySize, false) {
		return
	}
	if strings.TrimSpace(req.CheckoutID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "checkout_id is required", http.StatusBadRequest))
		return
	}
	order, err := h.checkout.ConfirmDeposit(ctx, services.ConfirmDepositCommand{
		UserID:     identity.UID,
		CheckoutID: strings.TrimSpace(req.CheckoutID),
		PaymentID:  strings.TrimSpace(req.PaymentID),
	})
	writeOrderResult(w, r, http.StatusOK, order, err)
}
