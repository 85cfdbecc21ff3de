package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hanko-field/commerce/internal/platform/auth"
	"github.com/hanko-field/commerce/internal/platform/httpx"
	"github.com/hanko-field/commerce/internal/platform/pagination"
	"github.com/hanko-field/commerce/internal/repositories"
	"github.com/hanko-field/commerce/internal/services"
)

const defaultBodyLimit = 16 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeBody reads a bounded JSON body into dst and writes the error response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, limit int64, optional bool) bool {
	ctx := r.Context()
	data, err := readLimitedBody(r, limit)
	switch {
	case err == nil:
	case errors.Is(err, errEmptyBody) && optional:
		return true
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return false
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return false
	}
	return true
}

func parsePage(w http.ResponseWriter, r *http.Request) (services.Pagination, bool) {
	params, err := pagination.Parse(r.URL.Query(), pagination.Options{DefaultPageSize: 20})
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.Pagination{}, false
	}
	return services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken}, true
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func splitCSV(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

type errorMapping struct {
	targets []error
	code    string
	status  int
}

var serviceErrorMappings = []errorMapping{
	{
		targets: []error{
			services.ErrOrderNotFound, services.ErrDepositNotFound, services.ErrReturnNotFound,
			services.ErrCheckoutNotFound, services.ErrInventoryNotFound, services.ErrCartProductNotFound,
			services.ErrWishlistProductNotFound, services.ErrWishlistItemNotFound,
		},
		code:   "not_found",
		status: http.StatusNotFound,
	},
	{
		targets: []error{
			services.ErrOrderForbidden, services.ErrReturnForbidden, services.ErrCheckoutForbidden,
		},
		code:   "forbidden",
		status: http.StatusForbidden,
	},
	{
		targets: []error{
			services.ErrOrderInsufficientStock, services.ErrInventoryInsufficientStock, services.ErrCartInsufficientStock,
			services.ErrReturnInsufficientStock, services.ErrCheckoutOutOfStock,
		},
		code:   "insufficient_stock",
		status: http.StatusConflict,
	},
	{
		targets: []error{
			services.ErrOrderInvalidState, services.ErrReturnInvalidState, services.ErrCheckoutInvalidState,
		},
		code:   "invalid_state",
		status: http.StatusConflict,
	},
	{
		targets: []error{services.ErrDepositOverlap},
		code:    "deposit_range_overlap",
		status:  http.StatusConflict,
	},
	{
		targets: []error{
			services.ErrOrderConflict, services.ErrReturnConflict, services.ErrCartConflict,
			services.ErrInventoryConflict, services.ErrWishlistConflict,
		},
		code:   "conflict",
		status: http.StatusConflict,
	},
	{
		targets: []error{services.ErrCartCurrencyMismatch},
		code:    "currency_mismatch",
		status:  http.StatusConflict,
	},
	{
		targets: []error{services.ErrReturnOrderNotCompleted},
		code:    "order_not_completed",
		status:  http.StatusUnprocessableEntity,
	},
	{
		targets: []error{services.ErrCartProductUnavailable},
		code:    "product_unavailable",
		status:  http.StatusUnprocessableEntity,
	},
	{
		targets: []error{services.ErrCheckoutEmptyCart},
		code:    "cart_empty",
		status:  http.StatusUnprocessableEntity,
	},
	{
		targets: []error{services.ErrCheckoutExpired},
		code:    "checkout_expired",
		status:  http.StatusGone,
	},
	{
		targets: []error{services.ErrCheckoutPaymentIncomplete},
		code:    "payment_incomplete",
		status:  http.StatusPaymentRequired,
	},
	{
		targets: []error{services.ErrCheckoutProvider},
		code:    "payment_provider_error",
		status:  http.StatusBadGateway,
	},
	{
		targets: []error{
			services.ErrOrderInvalidInput, services.ErrDepositInvalidInput, services.ErrReturnInvalidInput,
			services.ErrCartInvalidInput, services.ErrWishlistInvalidInput, services.ErrInventoryInvalidInput,
			services.ErrCheckoutInvalidInput,
		},
		code:   "invalid_request",
		status: http.StatusBadRequest,
	},
}

// writeServiceError maps service sentinels onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	for _, mapping := range serviceErrorMappings {
		for _, target := range mapping.targets {
			if errors.Is(err, target) {
				httpx.WriteError(ctx, w, httpx.NewError(mapping.code, err.Error(), mapping.status))
				return
			}
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "backing store unavailable", http.StatusServiceUnavailable))
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal error", http.StatusInternalServerError))
}

func serviceUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_service_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}
