package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/commerce/internal/domain"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

const returnRequestsCollection = "returnRequests"

// ReturnRequestRepository persists exchange requests.
type ReturnRequestRepository struct {
	base *pfirestore.BaseRepository[returnRequestDocument]
}

var _ repositories.ReturnRequestRepository = (*ReturnRequestRepository)(nil)

func NewReturnRequestRepository(provider *pfirestore.Provider) (*ReturnRequestRepository, error) {
	if provider == nil {
		return nil, errors.New("return request repository requires firestore provider")
	}
	return &ReturnRequestRepository{base: pfirestore.NewBaseRepository[returnRequestDocument](provider, returnRequestsCollection)}, nil
}

func (r *ReturnRequestRepository) Insert(ctx context.Context, request domain.ReturnRequest) error {
	if strings.TrimSpace(request.ID) == "" {
		return errors.New("return request repository: id is required")
	}
	return r.base.Create(ctx, request.ID, newReturnRequestDocument(request))
}

func (r *ReturnRequestRepository) Update(ctx context.Context, request domain.ReturnRequest) error {
	if strings.TrimSpace(request.ID) == "" {
		return errors.New("return request repository: id is required")
	}
	return r.base.Set(ctx, request.ID, newReturnRequestDocument(request))
}

func (r *ReturnRequestRepository) FindByID(ctx context.Context, returnID string) (domain.ReturnRequest, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(returnID))
	if err != nil {
		return domain.ReturnRequest{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *ReturnRequestRepository) List(ctx context.Context, filter repositories.ReturnListFilter) (domain.CursorPage[domain.ReturnRequest], error) {
	window, err := newPageWindow(filter.Pagination)
	if err != nil {
		return domain.CursorPage[domain.ReturnRequest]{}, err
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			q = q.Where("userId", "==", userID)
		}
		if orderID := strings.TrimSpace(filter.OrderID); orderID != "" {
			q = q.Where("orderId", "==", orderID)
		}
		if statuses := statusStrings(filter.Status); len(statuses) > 0 {
			q = q.Where("status", "in", statuses)
		}
		return window.apply(q)
	})
	if err != nil {
		return domain.CursorPage[domain.ReturnRequest]{}, err
	}
	return collectPage(window, docs,
		func(d returnRequestDocument) time.Time { return d.CreatedAt },
		func(id string, d returnRequestDocument) domain.ReturnRequest { return d.toDomain(id) },
	), nil
}

type returnItemDocument struct {
	OrderDetailID string `firestore:"orderDetailId"`
	ProductID     string `firestore:"productId"`
	ProductName   string `firestore:"productName"`
	Quantity      int    `firestore:"quantity"`
	UnitPrice     int64  `firestore:"unitPrice"`
}

type returnRequestDocument struct {
	OrderID              string               `firestore:"orderId"`
	UserID               string               `firestore:"userId"`
	Items                []returnItemDocument `firestore:"items"`
	ReplacementProductID string               `firestore:"replacementProductId"`
	TotalQuantity        int                  `firestore:"totalQuantity"`
	Reason               string               `firestore:"reason,omitempty"`
	Status               string               `firestore:"status"`
	CreatedAt            time.Time            `firestore:"createdAt"`
	UpdatedAt            time.Time            `firestore:"updatedAt"`
	CompletedAt          *time.Time           `firestore:"completedAt,omitempty"`
	CancelledAt          *time.Time           `firestore:"cancelledAt,omitempty"`
}

func newReturnRequestDocument(r domain.ReturnRequest) returnRequestDocument {
	items := make([]returnItemDocument, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, returnItemDocument{
			OrderDetailID: item.OrderDetailID,
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
		})
	}
	return returnRequestDocument{
		OrderID:              r.OrderID,
		UserID:               r.UserID,
		Items:                items,
		ReplacementProductID: r.ReplacementProductID,
		TotalQuantity:        r.TotalQuantity,
		Reason:               r.Reason,
		Status:               string(r.Status),
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
		CompletedAt:          utcPtr(r.CompletedAt),
		CancelledAt:          utcPtr(r.CancelledAt),
	}
}

func (d returnRequestDocument) toDomain(id string) domain.ReturnRequest {
	items := make([]domain.ReturnItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.ReturnItem{
			OrderDetailID: item.OrderDetailID,
			ProductID:     item.ProductID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
		})
	}
	return domain.ReturnRequest{
		ID:                   id,
		OrderID:              d.OrderID,
		UserID:               d.UserID,
		Items:                items,
		ReplacementProductID: d.ReplacementProductID,
		TotalQuantity:        d.TotalQuantity,
		Reason:               d.Reason,
		Status:               domain.ReturnStatus(d.Status),
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
		CompletedAt:          d.CompletedAt,
		CancelledAt:          d.CancelledAt,
	}
}
