package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripePaymentIntentAPI interface {
	Capture(id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
	intents  stripePaymentIntentAPI
	refunds  stripeRefundAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey     string
	AccountID  string
	SessionTTL time.Duration
	Backends   *stripe.Backends
	Logger     StripeLogger
	Clock      func() time.Time
	Clients    *stripeClients
}

// StripeProvider implements Provider on top of Stripe Checkout and Payment Intents.
type StripeProvider struct {
	api        stripeClients
	account    string
	sessionTTL time.Duration
	clock      func() time.Time
	logger     StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			sessions: sc.CheckoutSessions,
			intents:  sc.PaymentIntents,
			refunds:  sc.Refunds,
		}
	}
	if clients.sessions == nil || clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	ttl := cfg.SessionTTL
	if ttl < 30*time.Minute {
		// Stripe rejects checkout expirations shorter than 30 minutes.
		ttl = time.Hour
	}

	return &StripeProvider{
		api:        clients,
		account:    strings.TrimSpace(cfg.AccountID),
		sessionTTL: ttl,
		clock:      func() time.Time { return clock().UTC() },
		logger:     logger,
	}, nil
}

// CreateCheckoutSession creates a hosted Stripe Checkout session for req.Amount.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if req.Amount <= 0 {
		return CheckoutSession{}, errors.New("stripe: amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return CheckoutSession{}, errors.New("stripe: currency is required")
	}
	expiresAt := p.clock().Add(p.sessionTTL)

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		ExpiresAt:  stripe.Int64(expiresAt.Unix()),
	}
	params.Context = ctx
	p.applyRequestOptions(&params.Params, req.IdempotencyKey)
	if req.ReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ReferenceID)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.Locale != "" {
		params.Locale = stripe.String(req.Locale)
	}
	params.Metadata = copyMetadata(req.Metadata)
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
		Metadata: copyMetadata(req.Metadata),
	}
	if req.Description != "" {
		params.PaymentIntentData.Description = stripe.String(req.Description)
	}
	params.LineItems = stripeLineItems(req, currency)

	session, err := p.api.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	intentID := ""
	if session.PaymentIntent != nil {
		intentID = session.PaymentIntent.ID
	}
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId": session.ID,
		"amount":    req.Amount,
		"currency":  currency,
	})

	return CheckoutSession{
		ID:          session.ID,
		Provider:    ProviderStripe,
		RedirectURL: session.URL,
		IntentID:    intentID,
		Amount:      req.Amount,
		Currency:    strings.ToUpper(currency),
		ExpiresAt:   expiresAt,
	}, nil
}

// Confirm reads back the Checkout session; Stripe captures automatically once the payer completes it.
func (p *StripeProvider) Confirm(ctx context.Context, req ConfirmRequest) (PaymentDetails, error) {
	return p.LookupPayment(ctx, LookupRequest{SessionID: req.SessionID})
}

// Capture captures a manually-captured Payment Intent.
func (p *StripeProvider) Capture(ctx context.Context, req CaptureRequest) (PaymentDetails, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	p.applyRequestOptions(&params.Params, req.IdempotencyKey)
	if req.Amount != nil {
		params.AmountToCapture = stripe.Int64(*req.Amount)
	}
	intent, err := p.api.intents.Capture(req.IntentID, params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: capture payment intent: %w", err)
	}
	p.logger(ctx, "payments.stripe.intent.captured", map[string]any{
		"paymentIntent":  intent.ID,
		"amountReceived": intent.AmountReceived,
	})
	return stripeIntentDetails(intent), nil
}

// Refund refunds a Payment Intent, fully or for req.Amount.
func (p *StripeProvider) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	if strings.TrimSpace(req.IntentID) == "" {
		return PaymentDetails{}, errors.New("stripe: payment intent id is required")
	}
	params := &stripe.RefundParams{PaymentIntent: stripe.String(req.IntentID)}
	params.Context = ctx
	p.applyRequestOptions(&params.Params, req.IdempotencyKey)
	if req.Amount != nil {
		params.Amount = stripe.Int64(*req.Amount)
	}
	if reason := mapStripeRefundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}
	params.Metadata = copyMetadata(req.Metadata)

	refund, err := p.api.refunds.New(params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: refund payment intent: %w", err)
	}
	if refund.Status == stripe.RefundStatusFailed || refund.Status == stripe.RefundStatusCanceled {
		return PaymentDetails{}, fmt.Errorf("stripe: refund %s ended with status %s", refund.ID, refund.Status)
	}
	p.logger(ctx, "payments.stripe.intent.refunded", map[string]any{
		"paymentIntent": req.IntentID,
		"refundId":      refund.ID,
		"status":        string(refund.Status),
	})

	refundedAt := p.clock()
	if refund.Created != 0 {
		refundedAt = time.Unix(refund.Created, 0).UTC()
	}
	return PaymentDetails{
		Provider:   ProviderStripe,
		IntentID:   req.IntentID,
		RefundID:   refund.ID,
		Status:     StatusRefunded,
		Amount:     refund.Amount,
		Currency:   strings.ToUpper(string(refund.Currency)),
		Captured:   true,
		RefundedAt: &refundedAt,
		Metadata:   copyMetadata(req.Metadata),
	}, nil
}

// LookupPayment retrieves a Checkout session (with its intent) or a bare Payment Intent.
func (p *StripeProvider) LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	if sessionID := strings.TrimSpace(req.SessionID); sessionID != "" {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		params.AddExpand("payment_intent")
		p.applyRequestOptions(&params.Params, "")
		session, err := p.api.sessions.Get(sessionID, params)
		if err != nil {
			return PaymentDetails{}, fmt.Errorf("stripe: lookup checkout session: %w", err)
		}
		return stripeSessionDetails(session), nil
	}
	if strings.TrimSpace(req.IntentID) == "" {
		return PaymentDetails{}, errors.New("stripe: session or payment intent id is required")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	p.applyRequestOptions(&params.Params, "")
	intent, err := p.api.intents.Get(req.IntentID, params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: lookup payment intent: %w", err)
	}
	return stripeIntentDetails(intent), nil
}

func (p *StripeProvider) applyRequestOptions(params *stripe.Params, idempotencyKey string) {
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
}

// stripeLineItems itemises the session when the items add up to the amount due, otherwise it
// charges a single line for the amount (deposits are a fraction of the cart).
func stripeLineItems(req CheckoutSessionRequest, currency string) []*stripe.CheckoutSessionLineItemParams {
	var sum int64
	for _, item := range req.Items {
		sum += item.Amount * max(item.Quantity, 1)
	}
	if len(req.Items) > 0 && sum == req.Amount {
		lines := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items))
		for _, item := range req.Items {
			product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(item.Name)}
			if item.SKU != "" {
				product.Metadata = map[string]string{"sku": item.SKU}
			}
			lines = append(lines, &stripe.CheckoutSessionLineItemParams{
				Quantity: stripe.Int64(max(item.Quantity, 1)),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(currency),
					UnitAmount:  stripe.Int64(item.Amount),
					ProductData: product,
				},
			})
		}
		return lines
	}
	name := strings.TrimSpace(req.Description)
	if name == "" {
		name = "Order payment"
	}
	return []*stripe.CheckoutSessionLineItemParams{{
		Quantity: stripe.Int64(1),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:    stripe.String(currency),
			UnitAmount:  stripe.Int64(req.Amount),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(name)},
		},
	}}
}

func stripeSessionDetails(session *stripe.CheckoutSession) PaymentDetails {
	if session == nil {
		return PaymentDetails{Provider: ProviderStripe, Status: StatusPending}
	}
	details := PaymentDetails{
		Provider:  ProviderStripe,
		SessionID: session.ID,
		Status:    StatusPending,
		Amount:    session.AmountTotal,
		Currency:  strings.ToUpper(string(session.Currency)),
		Metadata:  copyMetadata(session.Metadata),
	}
	if session.PaymentIntent != nil {
		intent := stripeIntentDetails(session.PaymentIntent)
		details.IntentID = intent.IntentID
		details.Captured = intent.Captured
		details.CapturedAt = intent.CapturedAt
		details.RefundedAt = intent.RefundedAt
		if intent.Status == StatusRefunded || intent.Status == StatusFailed {
			details.Status = intent.Status
		}
	}
	switch {
	case details.Status != StatusPending:
	case session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		details.Status = StatusSucceeded
		details.Captured = true
	case session.Status == stripe.CheckoutSessionStatusExpired:
		details.Status = StatusFailed
	}
	return details
}

func stripeIntentDetails(intent *stripe.PaymentIntent) PaymentDetails {
	if intent == nil {
		return PaymentDetails{Provider: ProviderStripe, Status: StatusPending}
	}

	status := StatusPending
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		status = StatusFailed
	}

	var capturedAt, refundedAt *time.Time
	captured := intent.Status == stripe.PaymentIntentStatusSucceeded
	if charge := intent.LatestCharge; charge != nil {
		if charge.Captured {
			t := time.Unix(charge.Created, 0).UTC()
			capturedAt = &t
			captured = true
		}
		if charge.AmountRefunded > 0 {
			t := time.Unix(charge.Created, 0).UTC()
			refundedAt = &t
			if charge.AmountRefunded >= charge.Amount && charge.Amount > 0 {
				status = StatusRefunded
			}
		}
	}

	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}
	return PaymentDetails{
		Provider:   ProviderStripe,
		IntentID:   intent.ID,
		Status:     status,
		Amount:     amount,
		Currency:   strings.ToUpper(string(intent.Currency)),
		Captured:   captured,
		CapturedAt: capturedAt,
		RefundedAt: refundedAt,
		Metadata:   copyMetadata(intent.Metadata),
	}
}

func mapStripeRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case RefundReasonDuplicate:
		return string(stripe.RefundReasonDuplicate)
	case RefundReasonFraudulent:
		return string(stripe.RefundReasonFraudulent)
	case RefundReasonRequestedByCustomer:
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}
