package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/platform/observability"
	"github.com/hanko-field/commerce/internal/services"
)

const maxWebhookBodySize = 256 * 1024

// StripeEventVerifier authenticates a Stripe webhook payload.
type StripeEventVerifier interface {
	Verify(payload []byte, signature string) (payments.WebhookEvent, error)
}

// WebhookHandlers receives PSP callbacks.
type WebhookHandlers struct {
	stripe   StripeEventVerifier
	checkout services.CheckoutService
}

// NewWebhookHandlers constructs webhook handlers.
func NewWebhookHandlers(stripe StripeEventVerifier, checkout services.CheckoutService) *WebhookHandlers {
	return &WebhookHandlers{stripe: stripe, checkout: checkout}
}

// Routes registers /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripeWebhook)
}

func (h *WebhookHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.stripe == nil || h.checkout == nil {
		serviceUnavailable(ctx, w, "webhook")
		return
	}
	payload, err := readLimitedBody(r, maxWebhookBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	event, err := h.stripe.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payments.ErrInvalidWebhookSignature) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "webhook payload could not be decoded", http.StatusBadRequest))
		return
	}

	logger := observability.FromContext(ctx).With(zap.String("eventId", event.ID), zap.String("eventType", event.Type))
	err = h.checkout.HandleStripeEvent(ctx, services.StripeEvent{
		ID:              event.ID,
		Type:            event.Type,
		SessionID:       event.SessionID,
		PaymentIntentID: event.PaymentIntentID,
		PaymentStatus:   event.PaymentStatus,
		Metadata:        event.Metadata,
	})
	switch {
	case err == nil:
	case isPermanentWebhookError(err):
		// Stripe retries non-2xx responses; these outcomes will not change on retry.
		logger.Warn("stripe webhook not applied", zap.Error(err))
	default:
		logger.Error("stripe webhook failed", zap.Error(err))
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}

func isPermanentWebhookError(err error) bool {
	for _, target := range []error{
		services.ErrCheckoutNotFound,
		services.ErrCheckoutInvalidInput,
		services.ErrCheckoutInvalidState,
		services.ErrCheckoutExpired,
		services.ErrCheckoutOutOfStock,
		services.ErrCheckoutPaymentIncomplete,
		services.ErrCheckoutForbidden,
		services.ErrOrderNotFound,
		services.ErrOrderInvalidState,
		services.ErrOrderInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return errors.Is(err, context.Canceled)
}
