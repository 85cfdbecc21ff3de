package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/services"
)

type fakeStripeVerifier struct {
	event payments.WebhookEvent
	err   error
	got   string
}

func (f *fakeStripeVerifier) Verify(payload []byte, signature string) (payments.WebhookEvent, error) {
	f.got = signature
	if f.err != nil {
		return payments.WebhookEvent{}, f.err
	}
	return f.event, nil
}

func postStripeWebhook(h *WebhookHandlers) *httptest.ResponseRecorder {
	return serve("/webhooks", h.Routes, nil, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`)
}

func TestWebhookHandlersStripeSuccess(t *testing.T) {
	verifier := &fakeStripeVerifier{event: payments.WebhookEvent{
		ID:            "evt_1",
		Type:          "checkout.session.completed",
		SessionID:     "cs_1",
		PaymentStatus: "paid",
		Metadata:      map[string]string{"checkout_id": "chk_1"},
	}}
	var received services.StripeEvent
	checkout := &stubCheckoutService{
		stripeEventFunc: func(_ context.Context, event services.StripeEvent) error {
			received = event
			return nil
		},
	}

	rr := postStripeWebhook(NewWebhookHandlers(verifier, checkout))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if received.SessionID != "cs_1" || received.Metadata["checkout_id"] != "chk_1" {
		t.Fatalf("unexpected event %+v", received)
	}
}

func TestWebhookHandlersStripeInvalidSignature(t *testing.T) {
	verifier := &fakeStripeVerifier{err: fmt.Errorf("verify: %w", payments.ErrInvalidWebhookSignature)}
	called := false
	checkout := &stubCheckoutService{
		stripeEventFunc: func(context.Context, services.StripeEvent) error {
			called = true
			return nil
		},
	}

	rr := postStripeWebhook(NewWebhookHandlers(verifier, checkout))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if called {
		t.Fatalf("checkout must not see unverified events")
	}
}

func TestWebhookHandlersStripeOutcomes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "expired checkout is acknowledged", err: services.ErrCheckoutExpired, status: http.StatusOK},
		{name: "already converted is acknowledged", err: fmt.Errorf("apply: %w", services.ErrCheckoutInvalidState), status: http.StatusOK},
		{name: "provider failure is retried", err: services.ErrCheckoutProvider, status: http.StatusBadGateway},
		{name: "unknown failure is retried", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := &fakeStripeVerifier{event: payments.WebhookEvent{ID: "evt_2", Type: "checkout.session.completed"}}
			checkout := &stubCheckoutService{
				stripeEventFunc: func(context.Context, services.StripeEvent) error { return tc.err },
			}
			rr := postStripeWebhook(NewWebhookHandlers(verifier, checkout))
			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rr.Code)
			}
		})
	}
}

func TestWebhookHandlersUnconfigured(t *testing.T) {
	rr := postStripeWebhook(NewWebhookHandlers(nil, nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
