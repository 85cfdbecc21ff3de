package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/services"
)

// ReturnHandlers lets customers request exchanges for completed orders.
type ReturnHandlers struct {
	returns services.ReturnService
}

// NewReturnHandlers constructs the return handlers.
func NewReturnHandlers(returns services.ReturnService) *ReturnHandlers {
	return &ReturnHandlers{returns: returns}
}

type createReturnRequest struct {
	OrderID              string   `json:"order_id"`
	OrderDetailIDs       []string `json:"order_detail_ids"`
	ReplacementProductID string   `json:"replacement_product_id"`
	Reason               string   `json:"reason"`
}

type returnResponse struct {
	Return returnPayload `json:"return"`
}

type returnListResponse struct {
	Items         []returnPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

// Routes wires the /returns endpoints.
func (h *ReturnHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listReturns)
	r.Post("/", h.createReturn)
	r.Get("/{returnID}", h.getReturn)
}

func (h *ReturnHandlers) createReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		serviceUnavailable(ctx, w, "return")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req createReturnRequest
	if !decodeBody(w, r, &req, maxOrderBodySize, false) {
		return
	}
	if strings.TrimSpace(req.OrderID) == "" || len(req.OrderDetailIDs) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_id and order_detail_ids are required", http.StatusBadRequest))
		return
	}
	created, err := h.returns.CreateReturn(ctx, services.CreateReturnCommand{
		UserID:               identity.UID,
		OrderID:              strings.TrimSpace(req.OrderID),
		OrderDetailIDs:       req.OrderDetailIDs,
		ReplacementProductID: strings.TrimSpace(req.ReplacementProductID),
		Reason:               req.Reason,
		ActorIsStaff:         identity.IsOperator(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, returnResponse{Return: buildReturnPayload(created)})
}

func (h *ReturnHandlers) listReturns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		serviceUnavailable(ctx, w, "return")
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
	filter := services.ReturnListFilter{
		UserID:     identity.UID,
		OrderID:    strings.TrimSpace(r.URL.Query().Get("order_id")),
		Pagination: page,
	}
	listReturns(w, r, h.returns, filter)
}

func (h *ReturnHandlers) getReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		serviceUnavailable(ctx, w, "return")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	ret, err := h.returns.GetReturn(ctx, strings.TrimSpace(chi.URLParam(r, "returnID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if ret.UserID != identity.UID && !identity.IsOperator() {
		httpx.WriteError(ctx, w, httpx.NewError("not_found", "return not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, returnResponse{Return: buildReturnPayload(ret)})
}

func listReturns(w http.ResponseWriter, r *http.Request, returns services.ReturnService, filter services.ReturnListFilter) {
	ctx := r.Context()
	for _, status := range splitCSV(r.URL.Query()["status"]) {
		filter.Status = append(filter.Status, domain.ReturnStatus(status))
	}
	page, err := returns.ListReturns(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]returnPayload, 0, len(page.Items))
	for _, ret := range page.Items {
		items = append(items, buildReturnPayload(ret))
	}
	writeJSONResponse(w, http.StatusOK, returnListResponse{Items: items, NextPageToken: page.NextPageToken})
}
