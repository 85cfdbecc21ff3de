package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	PayPalSandboxURL = "https://api-m.sandbox.paypal.com"
	PayPalLiveURL    = "https://api-m.paypal.com"

	paypalTokenSkew     = time.Minute
	paypalMaxErrorBody  = 4 << 10
	paypalDefaultExpiry = 3 * time.Hour
)

// paypalReferenceKeys maps a checkout kind to the metadata key its reference is reported under.
// PayPal orders carry no free-form metadata, so custom_id holds "<kind>:<reference>".
var paypalReferenceKeys = map[string]string{
	"deposit":   "checkout_id",
	"remaining": "order_id",
}

// PayPalProviderConfig configures the PayPal Orders v2 adapter.
type PayPalProviderConfig struct {
	ClientID   string
	Secret     string
	BaseURL    string
	BrandName  string
	HTTPClient *http.Client
	Logger     func(ctx context.Context, event string, fields map[string]any)
	Clock      func() time.Time
}

// PayPalProvider implements Provider over the PayPal REST Orders v2 API.
// Session IDs are PayPal order IDs; intent IDs are capture IDs.
type PayPalProvider struct {
	clientID  string
	secret    string
	baseURL   string
	brandName string
	http      *http.Client
	logger    func(context.Context, string, map[string]any)
	clock     func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// PayPalError captures a non-2xx response from the PayPal API.
type PayPalError struct {
	Status  int
	Name    string
	Message string
	DebugID string
}

func (e *PayPalError) Error() string {
	return fmt.Sprintf("paypal: %d %s: %s (debug_id=%s)", e.Status, e.Name, e.Message, e.DebugID)
}

// NewPayPalProvider constructs the PayPal adapter.
func NewPayPalProvider(cfg PayPalProviderConfig) (*PayPalProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.Secret)
	if clientID == "" || secret == "" {
		return nil, errors.New("paypal: client id and secret are required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = PayPalSandboxURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("paypal: invalid base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PayPalProvider{
		clientID:  clientID,
		secret:    secret,
		baseURL:   baseURL,
		brandName: strings.TrimSpace(cfg.BrandName),
		http:      httpClient,
		logger:    logger,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalCapture struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	Amount     paypalMoney `json:"amount"`
	CreateTime string      `json:"create_time"`
}

type paypalPurchaseUnit struct {
	ReferenceID string      `json:"reference_id,omitempty"`
	CustomID    string      `json:"custom_id,omitempty"`
	Description string      `json:"description,omitempty"`
	Amount      paypalMoney `json:"amount"`
	Payments    *struct {
		Captures []paypalCapture `json:"captures"`
	} `json:"payments,omitempty"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalOrder struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
	Links         []paypalLink         `json:"links"`
}

type paypalRefund struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"`
	Amount     paypalMoney `json:"amount"`
	CreateTime string      `json:"create_time"`
}

// CreateCheckoutSession creates a PayPal order the payer approves on PayPal's site.
func (p *PayPalProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if req.Amount <= 0 {
		return CheckoutSession{}, errors.New("paypal: amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		return CheckoutSession{}, errors.New("paypal: currency is required")
	}
	appContext := map[string]any{
		"return_url":          req.SuccessURL,
		"cancel_url":          req.CancelURL,
		"user_action":         "PAY_NOW",
		"shipping_preference": "NO_SHIPPING",
	}
	if req.Locale != "" {
		appContext["locale"] = req.Locale
	}
	if p.brandName != "" {
		appContext["brand_name"] = p.brandName
	}
	unit := paypalPurchaseUnit{
		ReferenceID: req.ReferenceID,
		CustomID:    paypalCustomID(req),
		Description: req.Description,
		Amount:      paypalMoney{CurrencyCode: currency, Value: FormatAmount(req.Amount, currency)},
	}
	body := map[string]any{
		"intent":              "CAPTURE",
		"purchase_units":      []paypalPurchaseUnit{unit},
		"application_context": appContext,
	}

	var order paypalOrder
	if err := p.do(ctx, http.MethodPost, "/v2/checkout/orders", req.IdempotencyKey, body, &order); err != nil {
		return CheckoutSession{}, fmt.Errorf("paypal: create order: %w", err)
	}
	approveURL := ""
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			approveURL = link.Href
			break
		}
	}
	p.logger(ctx, "payments.paypal.order.created", map[string]any{
		"orderId":  order.ID,
		"amount":   req.Amount,
		"currency": currency,
	})
	return CheckoutSession{
		ID:          order.ID,
		Provider:    ProviderPayPal,
		RedirectURL: approveURL,
		Amount:      req.Amount,
		Currency:    currency,
		ExpiresAt:   p.clock().Add(paypalDefaultExpiry),
	}, nil
}

// Confirm captures the approved PayPal order.
func (p *PayPalProvider) Confirm(ctx context.Context, req ConfirmRequest) (PaymentDetails, error) {
	return p.captureOrder(ctx, req.SessionID, req.IdempotencyKey)
}

// Capture captures the approved PayPal order identified by IntentID.
func (p *PayPalProvider) Capture(ctx context.Context, req CaptureRequest) (PaymentDetails, error) {
	return p.captureOrder(ctx, req.IntentID, req.IdempotencyKey)
}

func (p *PayPalProvider) captureOrder(ctx context.Context, orderID, idempotencyKey string) (PaymentDetails, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return PaymentDetails{}, errors.New("paypal: order id is required")
	}
	var order paypalOrder
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	err := p.do(ctx, http.MethodPost, path, idempotencyKey, map[string]any{}, &order)
	if err != nil {
		var apiErr *PayPalError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
			// Already captured (or not yet approved): report the order as it stands.
			return p.LookupPayment(ctx, LookupRequest{SessionID: orderID})
		}
		return PaymentDetails{}, fmt.Errorf("paypal: capture order: %w", err)
	}
	details, err := paypalOrderDetails(order)
	if err != nil {
		return PaymentDetails{}, err
	}
	p.logger(ctx, "payments.paypal.order.captured", map[string]any{
		"orderId":   order.ID,
		"captureId": details.IntentID,
		"status":    string(details.Status),
	})
	return details, nil
}

// Refund refunds a PayPal capture.
func (p *PayPalProvider) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	captureID := strings.TrimSpace(req.IntentID)
	if captureID == "" {
		return PaymentDetails{}, errors.New("paypal: capture id is required")
	}
	body := map[string]any{}
	if req.Amount != nil {
		currency := strings.ToUpper(strings.TrimSpace(req.Currency))
		if currency == "" {
			return PaymentDetails{}, errors.New("paypal: currency is required for partial refunds")
		}
		body["amount"] = paypalMoney{CurrencyCode: currency, Value: FormatAmount(*req.Amount, currency)}
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		body["note_to_payer"] = reason
	}
	var refund paypalRefund
	path := "/v2/payments/captures/" + url.PathEscape(captureID) + "/refund"
	if err := p.do(ctx, http.MethodPost, path, req.IdempotencyKey, body, &refund); err != nil {
		return PaymentDetails{}, fmt.Errorf("paypal: refund capture: %w", err)
	}
	if refund.Status == "FAILED" || refund.Status == "CANCELLED" {
		return PaymentDetails{}, fmt.Errorf("paypal: refund %s ended with status %s", refund.ID, refund.Status)
	}
	amount, err := ParseAmount(refund.Amount.Value, refund.Amount.CurrencyCode)
	if err != nil && req.Amount != nil {
		amount = *req.Amount
	}
	refundedAt := parsePayPalTime(refund.CreateTime, p.clock())
	p.logger(ctx, "payments.paypal.capture.refunded", map[string]any{
		"captureId": captureID,
		"refundId":  refund.ID,
		"status":    refund.Status,
	})
	return PaymentDetails{
		Provider:   ProviderPayPal,
		IntentID:   captureID,
		RefundID:   refund.ID,
		Status:     StatusRefunded,
		Amount:     amount,
		Currency:   refund.Amount.CurrencyCode,
		Captured:   true,
		RefundedAt: &refundedAt,
		Metadata:   copyMetadata(req.Metadata),
	}, nil
}

// LookupPayment fetches a PayPal order by SessionID (order id).
func (p *PayPalProvider) LookupPayment(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	orderID := strings.TrimSpace(req.SessionID)
	if orderID == "" {
		orderID = strings.TrimSpace(req.IntentID)
	}
	if orderID == "" {
		return PaymentDetails{}, errors.New("paypal: order id is required")
	}
	var order paypalOrder
	if err := p.do(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), "", nil, &order); err != nil {
		return PaymentDetails{}, fmt.Errorf("paypal: lookup order: %w", err)
	}
	return paypalOrderDetails(order)
}

func paypalOrderDetails(order paypalOrder) (PaymentDetails, error) {
	details := PaymentDetails{Provider: ProviderPayPal, SessionID: order.ID, Status: StatusPending}
	switch order.Status {
	case "COMPLETED":
		details.Status = StatusSucceeded
	case "VOIDED":
		details.Status = StatusFailed
	}
	if len(order.PurchaseUnits) == 0 {
		return details, nil
	}
	unit := order.PurchaseUnits[0]
	details.Currency = unit.Amount.CurrencyCode
	details.Metadata = paypalMetadata(unit)
	if unit.Payments == nil || len(unit.Payments.Captures) == 0 {
		if unit.Amount.Value != "" {
			amount, err := ParseAmount(unit.Amount.Value, unit.Amount.CurrencyCode)
			if err != nil {
				return PaymentDetails{}, err
			}
			details.Amount = amount
		}
		return details, nil
	}
	capture := unit.Payments.Captures[0]
	amount, err := ParseAmount(capture.Amount.Value, capture.Amount.CurrencyCode)
	if err != nil {
		return PaymentDetails{}, err
	}
	details.IntentID = capture.ID
	details.Amount = amount
	details.Currency = capture.Amount.CurrencyCode
	switch capture.Status {
	case "COMPLETED":
		details.Status = StatusSucceeded
		details.Captured = true
		if at, err := time.Parse(time.RFC3339, capture.CreateTime); err == nil {
			at = at.UTC()
			details.CapturedAt = &at
		}
	case "REFUNDED", "PARTIALLY_REFUNDED":
		details.Status = StatusRefunded
		details.Captured = true
	case "DECLINED", "FAILED":
		details.Status = StatusFailed
	default:
		details.Status = StatusPending
	}
	return details, nil
}

func paypalCustomID(req CheckoutSessionRequest) string {
	kind := strings.TrimSpace(req.Metadata["kind"])
	if key, ok := paypalReferenceKeys[kind]; ok {
		if ref := strings.TrimSpace(req.Metadata[key]); ref != "" {
			return kind + ":" + ref
		}
	}
	return req.ReferenceID
}

func paypalMetadata(unit paypalPurchaseUnit) map[string]string {
	metadata := make(map[string]string, 3)
	if ref := strings.TrimSpace(unit.ReferenceID); ref != "" {
		metadata["reference_id"] = ref
	}
	if kind, ref, ok := strings.Cut(strings.TrimSpace(unit.CustomID), ":"); ok && ref != "" {
		if key, known := paypalReferenceKeys[kind]; known {
			metadata["kind"] = kind
			metadata[key] = ref
		}
	}
	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func (p *PayPalProvider) do(ctx context.Context, method, path, requestID string, body any, out any) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID = strings.TrimSpace(requestID); requestID != "" {
		req.Header.Set("PayPal-Request-Id", requestID)
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		p.resetToken()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodePayPalError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (p *PayPalProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.clock().Before(p.tokenExpiry) {
		return p.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal: fetch access token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal: fetch access token: %w", decodePayPalError(resp))
	}
	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("paypal: decode access token: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("paypal: empty access token")
	}
	p.token = payload.AccessToken
	p.tokenExpiry = p.clock().Add(time.Duration(payload.ExpiresIn)*time.Second - paypalTokenSkew)
	return p.token, nil
}

func (p *PayPalProvider) resetToken() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

func decodePayPalError(resp *http.Response) error {
	apiErr := &PayPalError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, paypalMaxErrorBody))
	var payload struct {
		Name             string `json:"name"`
		Message          string `json:"message"`
		DebugID          string `json:"debug_id"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(data, &payload) == nil {
		apiErr.Name = payload.Name
		apiErr.Message = payload.Message
		apiErr.DebugID = payload.DebugID
		if apiErr.Name == "" {
			apiErr.Name = payload.Error
			apiErr.Message = payload.ErrorDescription
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func parsePayPalTime(value string, fallback time.Time) time.Time {
	if at, err := time.Parse(time.RFC3339, value); err == nil {
		return at.UTC()
	}
	return fallback
}
