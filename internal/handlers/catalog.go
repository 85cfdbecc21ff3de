package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/services"
)

// CatalogHandlers exposes product lookups and deposit resolution to signed-in customers.
type CatalogHandlers struct {
	inventory services.InventoryService
	deposits  services.DepositService
}

// NewCatalogHandlers constructs the catalogue handlers.
func NewCatalogHandlers(inventory services.InventoryService, deposits services.DepositService) *CatalogHandlers {
	return &CatalogHandlers{inventory: inventory, deposits: deposits}
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type depositResolveResponse struct {
	Total     int64   `json:"total"`
	Percent   float64 `json:"percent"`
	Deposit   int64   `json:"deposit"`
	Remaining int64   `json:"remaining"`
}

// Routes registers /products and /deposit-settings lookups.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/deposit-settings/resolve", h.resolveDeposit)
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		serviceUnavailable(ctx, w, "inventory")
		return
	}
	product, err := h.inventory.GetProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *CatalogHandlers) resolveDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.deposits == nil {
		serviceUnavailable(ctx, w, "deposit")
		return
	}
	raw := strings.TrimSpace(r.URL.Query().Get("total"))
	total, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || total <= 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "total must be a positive integer amount in minor units", http.StatusBadRequest))
		return
	}
	percent, err := h.deposits.ResolvePercent(ctx, total)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	deposit, remaining := services.ComputeDeposit(total, percent)
	writeJSONResponse(w, http.StatusOK, depositResolveResponse{
		Total:     total,
		Percent:   percent,
		Deposit:   deposit,
		Remaining: remaining,
	})
}
