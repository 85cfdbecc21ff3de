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

const (
	cartCollection     = "carts"
	wishlistCollection = "wishlists"
)

// CartRepository persists one cart document per user, keyed by user id.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection)}, nil
}

func (r *CartRepository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CartRepository) Save(ctx context.Context, cart domain.Cart) error {
	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		return errors.New("cart repository: user id is required")
	}
	return r.base.Set(ctx, userID, newCartDocument(cart))
}

func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	return r.base.Delete(ctx, strings.TrimSpace(userID))
}

// ListStale returns the ids of carts not updated since before, oldest first.
func (r *CartRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 200
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("updatedAt", "<", before.UTC()).OrderBy("updatedAt", firestore.Asc).Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

type cartItemDocument struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	SKU       string `firestore:"sku,omitempty"`
	Image     string `firestore:"image,omitempty"`
	UnitPrice int64  `firestore:"unitPrice"`
	Quantity  int    `firestore:"quantity"`
}

type cartDocument struct {
	Items      []cartItemDocument `firestore:"items"`
	ItemsCount int                `firestore:"itemsCount"`
	Currency   string             `firestore:"currency"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

func newCartItemDocuments(items []domain.CartItem) []cartItemDocument {
	docs := make([]cartItemDocument, 0, len(items))
	for _, item := range items {
		docs = append(docs, cartItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			SKU:       item.SKU,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return docs
}

func cartItemsFromDocuments(docs []cartItemDocument) []domain.CartItem {
	items := make([]domain.CartItem, 0, len(docs))
	for _, doc := range docs {
		items = append(items, domain.CartItem{
			ProductID: doc.ProductID,
			Name:      doc.Name,
			SKU:       doc.SKU,
			Image:     doc.Image,
			UnitPrice: doc.UnitPrice,
			Quantity:  doc.Quantity,
		})
	}
	return items
}

func newCartDocument(cart domain.Cart) cartDocument {
	return cartDocument{
		Items:      newCartItemDocuments(cart.Items),
		ItemsCount: len(cart.Items),
		Currency:   strings.ToUpper(strings.TrimSpace(cart.Currency)),
		UpdatedAt:  cart.UpdatedAt.UTC(),
	}
}

func (d cartDocument) toDomain(userID string) domain.Cart {
	return domain.Cart{
		UserID:    userID,
		Items:     cartItemsFromDocuments(d.Items),
		Currency:  d.Currency,
		UpdatedAt: d.UpdatedAt,
	}
}

// WishlistRepository persists one wishlist document per user.
type WishlistRepository struct {
	base *pfirestore.BaseRepository[wishlistDocument]
}

var _ repositories.WishlistRepository = (*WishlistRepository)(nil)

// NewWishlistRepository constructs a Firestore-backed wishlist repository.
func NewWishlistRepository(provider *pfirestore.Provider) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}
	return &WishlistRepository{base: pfirestore.NewBaseRepository[wishlistDocument](provider, wishlistCollection)}, nil
}

func (r *WishlistRepository) Get(ctx context.Context, userID string) (domain.Wishlist, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.Wishlist{}, err
	}
	items := make([]domain.WishlistItem, 0, len(doc.Data.Items))
	for _, item := range doc.Data.Items {
		items = append(items, domain.WishlistItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			AddedAt:   item.AddedAt,
		})
	}
	return domain.Wishlist{UserID: doc.ID, Items: items, UpdatedAt: doc.Data.UpdatedAt}, nil
}

func (r *WishlistRepository) Save(ctx context.Context, wishlist domain.Wishlist) error {
	userID := strings.TrimSpace(wishlist.UserID)
	if userID == "" {
		return errors.New("wishlist repository: user id is required")
	}
	doc := wishlistDocument{Items: make([]wishlistItemDocument, 0, len(wishlist.Items)), UpdatedAt: wishlist.UpdatedAt.UTC()}
	for _, item := range wishlist.Items {
		doc.Items = append(doc.Items, wishlistItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			AddedAt:   item.AddedAt.UTC(),
		})
	}
	return r.base.Set(ctx, userID, doc)
}

type wishlistItemDocument struct {
	ProductID string    `firestore:"productId"`
	Name      string    `firestore:"name"`
	Image     string    `firestore:"image,omitempty"`
	UnitPrice int64     `firestore:"unitPrice"`
	AddedAt   time.Time `firestore:"addedAt"`
}

type wishlistDocument struct {
	Items     []wishlistItemDocument `firestore:"items"`
	UpdatedAt time.Time              `firestore:"updatedAt"`
}
