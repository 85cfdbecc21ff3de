package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/services"
)

const maxOrderBodySize = 4 * 1024

const cascadeWarning = "order updated but its lines or stock were not fully updated"

// OrderHandlers exposes the customer view of orders, payments and receipts.
type OrderHandlers struct {
	orders   services.OrderService
	checkout services.CheckoutService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, checkout services.CheckoutService) *OrderHandlers {
	return &OrderHandlers{orders: orders, checkout: checkout}
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type remainingPaymentRequest struct {
	Locale     string `json:"locale"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type confirmRemainingRequest struct {
	PaymentID string `json:"payment_id"`
}

type receiptUploadRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

type receiptUploadResponse struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers,omitempty"`
	ObjectPath string            `json:"object_path"`
	ExpiresAt  string            `json:"expires_at"`
}

type orderDetailsResponse struct {
	Items []orderDetailPayload `json:"items"`
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Get("/{orderID}/details", h.listDetails)
	r.Post("/{orderID}/cancel", h.cancelOrder)
	r.Post("/{orderID}/remaining-payment", h.createRemainingPayment)
	r.Post("/{orderID}/remaining-payment/confirm", h.confirmRemainingPayment)
	r.Post("/{orderID}/receipt", h.createReceiptUpload)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	filter := services.OrderListFilter{UserID: identity.UID, Pagination: page}
	for _, status := range splitCSV(r.URL.Query()["status"]) {
		filter.Status = append(filter.Status, domain.OrderStatus(status))
	}

	result, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeOrderList(w, result)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	order, ok := h.ownedOrder(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, ok := h.ownedOrder(w, r)
	if !ok {
		return
	}
	details, err := h.orders.ListOrderDetails(ctx, order.ID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderDetailsResponse{Items: buildOrderDetailPayloads(details)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if !decodeBody(w, r, &req, maxOrderBodySize, true) {
		return
	}
	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID:      strings.TrimSpace(chi.URLParam(r, "orderID")),
		Reason:       req.Reason,
		ActorID:      identity.UID,
		ActorIsStaff: false,
	})
	writeOrderResult(w, r, http.StatusOK, order, err)
}

func (h *OrderHandlers) createRemainingPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		serviceUnavailable(ctx, w, "checkout")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req remainingPaymentRequest
	if !decodeBody(w, r, &req, maxOrderBodySize, true) {
		return
	}
	locale := strings.TrimSpace(req.Locale)
	if locale == "" {
		locale = identity.Locale
	}
	session, err := h.checkout.CreateRemainingPaymentSession(ctx, services.RemainingPaymentCommand{
		OrderID:    strings.TrimSpace(chi.URLParam(r, "orderID")),
		UserID:     identity.UID,
		Locale:     locale,
		SuccessURL: strings.TrimSpace(req.SuccessURL),
		CancelURL:  strings.TrimSpace(req.CancelURL),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, checkoutSessionResponse{Session: buildProviderSessionPayload(session)})
}

func (h *OrderHandlers) confirmRemainingPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		serviceUnavailable(ctx, w, "checkout")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req confirmRemainingRequest
	if !decodeBody(w, r, &req, maxOrderBodySize, false) {
		return
	}
	if strings.TrimSpace(req.PaymentID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "payment_id is required", http.StatusBadRequest))
		return
	}
	order, err := h.checkout.ConfirmRemainingPayment(ctx, services.ConfirmRemainingPaymentCommand{
		OrderID:   strings.TrimSpace(chi.URLParam(r, "orderID")),
		UserID:    identity.UID,
		PaymentID: strings.TrimSpace(req.PaymentID),
	})
	writeOrderResult(w, r, http.StatusOK, order, err)
}

func (h *OrderHandlers) createReceiptUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		serviceUnavailable(ctx, w, "checkout")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req receiptUploadRequest
	if !decodeBody(w, r, &req, maxOrderBodySize, false) {
		return
	}
	upload, err := h.checkout.CreateReceiptUploadURL(ctx, services.ReceiptUploadCommand{
		OrderID:     strings.TrimSpace(chi.URLParam(r, "orderID")),
		UserID:      identity.UID,
		FileName:    strings.TrimSpace(req.FileName),
		ContentType: strings.TrimSpace(req.ContentType),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, receiptUploadResponse{
		URL:        upload.URL,
		Method:     upload.Method,
		Headers:    upload.Headers,
		ObjectPath: upload.ObjectPath,
		ExpiresAt:  formatTime(upload.ExpiresAt),
	})
}

// ownedOrder loads the path order and hides orders owned by other customers.
func (h *OrderHandlers) ownedOrder(w http.ResponseWriter, r *http.Request) (services.Order, bool) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return services.Order{}, false
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return services.Order{}, false
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return services.Order{}, false
	}
	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return services.Order{}, false
	}
	if order.UserID != identity.UID && !identity.IsOperator() {
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "order not found", http.StatusNotFound))
		return services.Order{}, false
	}
	return order, true
}

// writeOrderResult reports a transition whose detail cascade failed as a success with a warning,
// since the order itself was persisted.
func writeOrderResult(w http.ResponseWriter, r *http.Request, status int, order services.Order, err error) {
	if err != nil {
		if errors.Is(err, services.ErrOrderCascadeFailed) && order.ID != "" {
			writeJSONResponse(w, status, orderResponse{Order: buildOrderPayload(order), Warning: cascadeWarning})
			return
		}
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, status, orderResponse{Order: buildOrderPayload(order)})
}

func writeOrderList(w http.ResponseWriter, page domain.CursorPage[services.Order]) {
	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{Items: items, NextPageToken: page.NextPageToken})
}
