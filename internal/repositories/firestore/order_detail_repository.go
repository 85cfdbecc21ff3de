package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/commerce/internal/domain"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

const orderDetailsCollection = "orderDetails"

// OrderDetailRepository persists order lines in a flat collection keyed by detail id.
type OrderDetailRepository struct {
	base *pfirestore.BaseRepository[orderDetailDocument]
}

var _ repositories.OrderDetailRepository = (*OrderDetailRepository)(nil)

// NewOrderDetailRepository constructs a Firestore-backed order detail repository.
func NewOrderDetailRepository(provider *pfirestore.Provider) (*OrderDetailRepository, error) {
	if provider == nil {
		return nil, errors.New("order detail repository requires firestore provider")
	}
	return &OrderDetailRepository{base: pfirestore.NewBaseRepository[orderDetailDocument](provider, orderDetailsCollection)}, nil
}

func (r *OrderDetailRepository) InsertMany(ctx context.Context, details []domain.OrderDetail) error {
	for _, detail := range details {
		if strings.TrimSpace(detail.ID) == "" {
			return errors.New("order detail repository: detail id is required")
		}
		if err := r.base.Create(ctx, detail.ID, newOrderDetailDocument(detail)); err != nil {
			return err
		}
	}
	return nil
}

// ListByOrder returns the lines of an order in insertion order.
func (r *OrderDetailRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.OrderDetail, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("order detail repository: order id is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID)
	})
	if err != nil {
		return nil, err
	}
	details := make([]domain.OrderDetail, 0, len(docs))
	for _, doc := range docs {
		details = append(details, doc.Data.toDomain(doc.ID))
	}
	sort.SliceStable(details, func(i, j int) bool {
		if details[i].CreatedAt.Equal(details[j].CreatedAt) {
			return details[i].ID < details[j].ID
		}
		return details[i].CreatedAt.Before(details[j].CreatedAt)
	})
	return details, nil
}

// UpdateStatus sets the status of every listed line in one batch.
func (r *OrderDetailRepository) UpdateStatus(ctx context.Context, detailIDs []string, status domain.OrderDetailStatus, at time.Time) error {
	if len(detailIDs) == 0 {
		return nil
	}
	updates := make(map[string][]firestore.Update, len(detailIDs))
	for _, id := range detailIDs {
		updates[id] = []firestore.Update{
			{Path: "status", Value: string(status)},
			{Path: "updatedAt", Value: at.UTC()},
		}
	}
	return r.base.BatchUpdate(ctx, updates)
}

type orderDetailDocument struct {
	OrderID      string    `firestore:"orderId"`
	ProductID    string    `firestore:"productId"`
	ProductName  string    `firestore:"productName"`
	ProductSKU   string    `firestore:"productSku,omitempty"`
	ProductImage string    `firestore:"productImage,omitempty"`
	Quantity     int       `firestore:"quantity"`
	UnitPrice    int64     `firestore:"unitPrice"`
	TotalPrice   int64     `firestore:"totalPrice"`
	Status       string    `firestore:"status"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func newOrderDetailDocument(d domain.OrderDetail) orderDetailDocument {
	return orderDetailDocument{
		OrderID:      d.OrderID,
		ProductID:    d.ProductID,
		ProductName:  d.ProductName,
		ProductSKU:   d.ProductSKU,
		ProductImage: d.ProductImage,
		Quantity:     d.Quantity,
		UnitPrice:    d.UnitPrice,
		TotalPrice:   d.TotalPrice,
		Status:       string(d.Status),
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func (d orderDetailDocument) toDomain(id string) domain.OrderDetail {
	return domain.OrderDetail{
		ID:           id,
		OrderID:      d.OrderID,
		ProductID:    d.ProductID,
		ProductName:  d.ProductName,
		ProductSKU:   d.ProductSKU,
		ProductImage: d.ProductImage,
		Quantity:     d.Quantity,
		UnitPrice:    d.UnitPrice,
		TotalPrice:   d.TotalPrice,
		Status:       domain.OrderDetailStatus(d.Status),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}
