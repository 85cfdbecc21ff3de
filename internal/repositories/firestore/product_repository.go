package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/commerce/internal/domain"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

const productsCollection = "products"

// ProductRepository owns product stock. Decrements read every product inside one transaction and
// write only when all of them can absorb the requested quantity.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
	uow  *pfirestore.UnitOfWork
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider, opts ...pfirestore.TxOption) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productsCollection),
		uow:  pfirestore.NewUnitOfWork(provider, opts...),
	}, nil
}

func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindMany returns the products that exist among productIDs.
func (r *ProductRepository) FindMany(ctx context.Context, productIDs []string) ([]domain.Product, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	docs, err := r.base.GetAll(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	return products, nil
}

// Upsert writes a full product document. Used by seeding.
func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product) error {
	if strings.TrimSpace(product.ID) == "" {
		return errors.New("product repository: id is required")
	}
	if product.Stock < 0 {
		return repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity, product.ID, "stock must be >= 0", nil)
	}
	return r.base.Set(ctx, product.ID, newProductDocument(product))
}

// DecrementStock subtracts every change or none of them.
func (r *ProductRepository) DecrementStock(ctx context.Context, changes []domain.StockChange, at time.Time) ([]domain.Product, error) {
	return r.adjust(ctx, "products.decrement", changes, at, -1)
}

// IncrementStock adds every change in one transaction.
func (r *ProductRepository) IncrementStock(ctx context.Context, changes []domain.StockChange, at time.Time) ([]domain.Product, error) {
	return r.adjust(ctx, "products.increment", changes, at, 1)
}

// SetStock overwrites the stock level of one product.
func (r *ProductRepository) SetStock(ctx context.Context, productID string, stock int, at time.Time) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if stock < 0 {
		return domain.Product{}, &repositories.InventoryError{Op: "products.set", Code: repositories.InventoryErrorInvalidQuantity, ProductID: productID, Message: "stock must be >= 0"}
	}
	var product domain.Product
	err := r.uow.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := r.base.Get(ctx, productID)
		if err != nil {
			return err
		}
		if err := r.base.Update(ctx, productID, []firestore.Update{
			{Path: "stock", Value: stock},
			{Path: "updatedAt", Value: at.UTC()},
		}); err != nil {
			return err
		}
		doc.Data.Stock = stock
		doc.Data.UpdatedAt = at.UTC()
		product = doc.Data.toDomain(doc.ID)
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

func (r *ProductRepository) adjust(ctx context.Context, op string, changes []domain.StockChange, at time.Time, sign int) ([]domain.Product, error) {
	merged, err := mergeStockChanges(op, changes)
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var products []domain.Product
	err = r.uow.RunInTx(ctx, func(ctx context.Context) error {
		products = products[:0]
		docs, err := r.base.GetAll(ctx, ids)
		if err != nil {
			return err
		}
		byID := make(map[string]productDocument, len(docs))
		for _, doc := range docs {
			byID[doc.ID] = doc.Data
		}

		// All reads happen above; Firestore rejects reads after the first write.
		next := make(map[string]int, len(ids))
		for _, id := range ids {
			doc, ok := byID[id]
			if !ok {
				return &repositories.InventoryError{Op: op, Code: repositories.InventoryErrorProductNotFound, ProductID: id, Message: fmt.Sprintf("product %s not found", id)}
			}
			stock := doc.Stock + sign*merged[id]
			if stock < 0 {
				return &repositories.InventoryError{Op: op, Code: repositories.InventoryErrorInsufficientStock, ProductID: id, Message: fmt.Sprintf("insufficient stock for %s", id)}
			}
			next[id] = stock
		}
		for _, id := range ids {
			if err := r.base.Update(ctx, id, []firestore.Update{
				{Path: "stock", Value: next[id]},
				{Path: "updatedAt", Value: at.UTC()},
			}); err != nil {
				return err
			}
			doc := byID[id]
			doc.Stock = next[id]
			doc.UpdatedAt = at.UTC()
			products = append(products, doc.toDomain(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}

func mergeStockChanges(op string, changes []domain.StockChange) (map[string]int, error) {
	merged := make(map[string]int, len(changes))
	for _, change := range changes {
		id := strings.TrimSpace(change.ProductID)
		if id == "" {
			return nil, &repositories.InventoryError{Op: op, Code: repositories.InventoryErrorProductNotFound, Message: "product id is required"}
		}
		if change.Quantity <= 0 {
			return nil, &repositories.InventoryError{Op: op, Code: repositories.InventoryErrorInvalidQuantity, ProductID: id, Message: fmt.Sprintf("quantity for %s must be > 0", id)}
		}
		merged[id] += change.Quantity
	}
	return merged, nil
}

type productDocument struct {
	Name      string    `firestore:"name"`
	SKU       string    `firestore:"sku,omitempty"`
	Price     int64     `firestore:"price"`
	Currency  string    `firestore:"currency"`
	Image     string    `firestore:"image,omitempty"`
	Stock     int       `firestore:"stock"`
	Active    bool      `firestore:"active"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func newProductDocument(p domain.Product) productDocument {
	return productDocument{
		Name:      p.Name,
		SKU:       p.SKU,
		Price:     p.Price,
		Currency:  strings.ToUpper(strings.TrimSpace(p.Currency)),
		Image:     p.Image,
		Stock:     p.Stock,
		Active:    p.Active,
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      d.Name,
		SKU:       d.SKU,
		Price:     d.Price,
		Currency:  d.Currency,
		Image:     d.Image,
		Stock:     d.Stock,
		Active:    d.Active,
		UpdatedAt: d.UpdatedAt,
	}
}
