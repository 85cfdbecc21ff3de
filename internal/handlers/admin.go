package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/auth"
	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/services"
)

const maxAdminBodySize = 8 * 1024

// AdminHandlers exposes staff operations on orders, deposit tiers, returns and stock.
type AdminHandlers struct {
	orders    services.OrderService
	deposits  services.DepositService
	returns   services.ReturnService
	inventory services.InventoryService
}

// AdminDeps bundles the services behind the admin routes.
type AdminDeps struct {
	Orders    services.OrderService
	Deposits  services.DepositService
	Returns   services.ReturnService
	Inventory services.InventoryService
}

// NewAdminHandlers constructs admin handlers. The router restricts them to staff and admins.
func NewAdminHandlers(deps AdminDeps) *AdminHandlers {
	return &AdminHandlers{
		orders:    deps.Orders,
		deposits:  deps.Deposits,
		returns:   deps.Returns,
		inventory: deps.Inventory,
	}
}

type adminReasonRequest struct {
	Reason string `json:"reason"`
}

type adminPaymentRequest struct {
	Provider  string `json:"provider"`
	SessionID string `json:"session_id"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	PaidAt    string `json:"paid_at"`
}

type depositSettingRequest struct {
	MinTotal int64   `json:"min_total"`
	MaxTotal int64   `json:"max_total"`
	Percent  float64 `json:"percent"`
	Active   *bool   `json:"active"`
}

type stockRequest struct {
	Stock *int `json:"stock"`
}

type depositSettingResponse struct {
	Setting depositSettingPayload `json:"setting"`
}

type depositSettingListResponse struct {
	Items []depositSettingPayload `json:"items"`
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/orders", func(rt chi.Router) {
		rt.Get("/", h.listOrders)
		rt.Get("/{orderID}", h.getOrder)
		rt.Get("/{orderID}/details", h.listOrderDetails)
		rt.Post("/{orderID}/approve", h.approveOrder)
		rt.Post("/{orderID}/reject", h.rejectOrder)
		rt.Post("/{orderID}/payment", h.recordPayment)
		rt.Post("/{orderID}/complete", h.completeOrder)
		rt.Post("/{orderID}/cancel", h.cancelOrder)
	})
	r.Route("/deposit-settings", func(rt chi.Router) {
		rt.Get("/", h.listDepositSettings)
		rt.Post("/", h.createDepositSetting)
		rt.Put("/{settingID}", h.updateDepositSetting)
		rt.Delete("/{settingID}", h.deleteDepositSetting)
	})
	r.Route("/returns", func(rt chi.Router) {
		rt.Get("/", h.listReturns)
		rt.Post("/{returnID}/complete", h.completeReturn)
		rt.Post("/{returnID}/cancel", h.cancelReturn)
	})
	r.Put("/products/{productID}/stock", h.setStock)
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := services.OrderListFilter{
		UserID:     strings.TrimSpace(query.Get("user_id")),
		Pagination: page,
	}
	for _, status := range splitCSV(query["status"]) {
		filter.Status = append(filter.Status, domain.OrderStatus(status))
	}
	for _, approval := range splitCSV(query["approval"]) {
		filter.Approval = append(filter.Approval, domain.ApprovalStatus(approval))
	}
	result, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeOrderList(w, result)
}

func (h *AdminHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	order, err := h.orders.GetOrder(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) listOrderDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	details, err := h.orders.ListOrderDetails(ctx, strings.TrimSpace(chi.URLParam(r, "orderID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderDetailsResponse{Items: buildOrderDetailPayloads(details)})
}

func (h *AdminHandlers) approveOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(actor *auth.Identity, orderID string, req adminReasonRequest) (services.Order, error) {
		return h.orders.UpdateApproval(r.Context(), services.UpdateApprovalCommand{
			OrderID:  orderID,
			Approval: domain.ApprovalStatusApproved,
			Reason:   req.Reason,
			ActorID:  actor.UID,
		})
	})
}

func (h *AdminHandlers) rejectOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(actor *auth.Identity, orderID string, req adminReasonRequest) (services.Order, error) {
		return h.orders.RejectOrder(r.Context(), services.RejectOrderCommand{
			OrderID: orderID,
			Reason:  req.Reason,
			ActorID: actor.UID,
		})
	})
}

func (h *AdminHandlers) completeOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(actor *auth.Identity, orderID string, _ adminReasonRequest) (services.Order, error) {
		return h.orders.MarkCompleted(r.Context(), services.OrderActionCommand{OrderID: orderID, ActorID: actor.UID})
	})
}

func (h *AdminHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.orderAction(w, r, func(actor *auth.Identity, orderID string, req adminReasonRequest) (services.Order, error) {
		return h.orders.CancelOrder(r.Context(), services.CancelOrderCommand{
			OrderID:      orderID,
			Reason:       req.Reason,
			ActorID:      actor.UID,
			ActorIsStaff: true,
		})
	})
}

func (h *AdminHandlers) orderAction(w http.ResponseWriter, r *http.Request, fn func(*auth.Identity, string, adminReasonRequest) (services.Order, error)) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req adminReasonRequest
	if !decodeBody(w, r, &req, maxAdminBodySize, true) {
		return
	}
	order, err := fn(identity, strings.TrimSpace(chi.URLParam(r, "orderID")), req)
	writeOrderResult(w, r, http.StatusOK, order, err)
}

func (h *AdminHandlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req adminPaymentRequest
	if !decodeBody(w, r, &req, maxAdminBodySize, false) {
		return
	}
	payment := services.PaymentRecord{
		Provider:  strings.ToLower(strings.TrimSpace(req.Provider)),
		SessionID: strings.TrimSpace(req.SessionID),
		IntentID:  strings.TrimSpace(req.Reference),
		Amount:    req.Amount,
	}
	if raw := strings.TrimSpace(req.PaidAt); raw != "" {
		paidAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "paid_at must be an RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		payment.PaidAt = paidAt.UTC()
	}
	order, err := h.orders.UpdatePaymentInfo(ctx, services.UpdatePaymentInfoCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		Payment: payment,
		ActorID: identity.UID,
	})
	writeOrderResult(w, r, http.StatusOK, order, err)
}

func (h *AdminHandlers) listDepositSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.deposits == nil {
		serviceUnavailable(ctx, w, "deposit")
		return
	}
	includeDeleted, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("include_deleted")))
	settings, err := h.deposits.ListSettings(ctx, includeDeleted)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]depositSettingPayload, 0, len(settings))
	for _, setting := range settings {
		items = append(items, buildDepositSettingPayload(setting))
	}
	writeJSONResponse(w, http.StatusOK, depositSettingListResponse{Items: items})
}

func (h *AdminHandlers) createDepositSetting(w http.ResponseWriter, r *http.Request) {
	h.saveDepositSetting(w, r, false)
}

func (h *AdminHandlers) updateDepositSetting(w http.ResponseWriter, r *http.Request) {
	h.saveDepositSetting(w, r, true)
}

func (h *AdminHandlers) saveDepositSetting(w http.ResponseWriter, r *http.Request, update bool) {
	ctx := r.Context()
	if h.deposits == nil {
		serviceUnavailable(ctx, w, "deposit")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req depositSettingRequest
	if !decodeBody(w, r, &req, maxAdminBodySize, false) {
		return
	}
	cmd := services.DepositSettingCommand{
		MinTotal: req.MinTotal,
		MaxTotal: req.MaxTotal,
		Percent:  req.Percent,
		Active:   req.Active == nil || *req.Active,
		ActorID:  identity.UID,
	}
	var (
		setting services.DepositSetting
		err     error
		status  = http.StatusCreated
	)
	if update {
		cmd.ID = strings.TrimSpace(chi.URLParam(r, "settingID"))
		setting, err = h.deposits.UpdateSetting(ctx, cmd)
		status = http.StatusOK
	} else {
		setting, err = h.deposits.CreateSetting(ctx, cmd)
	}
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, status, depositSettingResponse{Setting: buildDepositSettingPayload(setting)})
}

func (h *AdminHandlers) deleteDepositSetting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.deposits == nil {
		serviceUnavailable(ctx, w, "deposit")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if err := h.deposits.DeleteSetting(ctx, strings.TrimSpace(chi.URLParam(r, "settingID")), identity.UID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandlers) listReturns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		serviceUnavailable(ctx, w, "return")
		return
	}
	page, ok := parsePage(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	listReturns(w, r, h.returns, services.ReturnListFilter{
		UserID:     strings.TrimSpace(query.Get("user_id")),
		OrderID:    strings.TrimSpace(query.Get("order_id")),
		Pagination: page,
	})
}

func (h *AdminHandlers) completeReturn(w http.ResponseWriter, r *http.Request) {
	if h.returns == nil {
		serviceUnavailable(r.Context(), w, "return")
		return
	}
	h.returnAction(w, r, h.returns.CompleteReturn)
}

func (h *AdminHandlers) cancelReturn(w http.ResponseWriter, r *http.Request) {
	if h.returns == nil {
		serviceUnavailable(r.Context(), w, "return")
		return
	}
	h.returnAction(w, r, h.returns.CancelReturn)
}

func (h *AdminHandlers) returnAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, cmd services.ReturnActionCommand) (services.ReturnRequest, error)) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	ret, err := fn(ctx, services.ReturnActionCommand{
		ReturnID: strings.TrimSpace(chi.URLParam(r, "returnID")),
		ActorID:  identity.UID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, returnResponse{Return: buildReturnPayload(ret)})
}

func (h *AdminHandlers) setStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		serviceUnavailable(ctx, w, "inventory")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req stockRequest
	if !decodeBody(w, r, &req, maxAdminBodySize, false) {
		return
	}
	if req.Stock == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "stock is required", http.StatusBadRequest))
		return
	}
	product, err := h.inventory.SetStock(ctx, services.SetStockCommand{
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
		Stock:     *req.Stock,
		ActorID:   identity.UID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}
