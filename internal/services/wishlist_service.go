package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hanko-field/commerce/internal/repositories"
)

const maxWishlistItems = 100

var (
	// ErrWishlistInvalidInput signals malformed wishlist commands.
	ErrWishlistInvalidInput = errors.New("wishlist: invalid input")
	// ErrWishlistProductNotFound indicates the product does not exist.
	ErrWishlistProductNotFound = errors.New("wishlist: product not found")
	// ErrWishlistItemNotFound indicates the product is not on the wishlist.
	ErrWishlistItemNotFound = errors.New("wishlist: item not found")
	// ErrWishlistConflict indicates concurrent wishlist updates.
	ErrWishlistConflict = errors.New("wishlist: conflict")
)

// WishlistServiceDeps bundles collaborators required to construct the wishlist service.
type WishlistServiceDeps struct {
	Wishlists  repositories.WishlistRepository
	Products   repositories.ProductRepository
	Carts      CartService
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type wishlistService struct {
	wishlists  repositories.WishlistRepository
	products   repositories.ProductRepository
	carts      CartService
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewWishlistService constructs the wishlist service.
func NewWishlistService(deps WishlistServiceDeps) (WishlistService, error) {
	if deps.Wishlists == nil || deps.Products == nil || deps.Carts == nil {
		return nil, errors.New("wishlist service: wishlist repository, product repository and cart service are required")
	}
	svc := &wishlistService{
		wishlists:  deps.Wishlists,
		products:   deps.Products,
		carts:      deps.Carts,
		unitOfWork: deps.UnitOfWork,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
	if svc.unitOfWork == nil {
		svc.unitOfWork = noopUnitOfWork{}
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.logger == nil {
		svc.logger = noopLogger
	}
	return svc, nil
}

func (s *wishlistService) GetWishlist(ctx context.Context, userID string) (Wishlist, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Wishlist{}, fmt.Errorf("%w: user id is required", ErrWishlistInvalidInput)
	}
	return s.load(ctx, userID)
}

// AddItem saves productID; adding a product that is already saved is a no-op.
func (s *wishlistService) AddItem(ctx context.Context, userID string, productID string) (Wishlist, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Wishlist{}, fmt.Errorf("%w: product id is required", ErrWishlistInvalidInput)
	}
	return s.mutate(ctx, userID, func(wishlist *Wishlist) (bool, error) {
		if wishlistIndex(wishlist.Items, productID) >= 0 {
			return false, nil
		}
		if len(wishlist.Items) >= maxWishlistItems {
			return false, fmt.Errorf("%w: wishlist is limited to %d items", ErrWishlistInvalidInput, maxWishlistItems)
		}
		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			if isRepoNotFound(err) {
				return false, fmt.Errorf("%w: %s", ErrWishlistProductNotFound, productID)
			}
			return false, err
		}
		wishlist.Items = append(wishlist.Items, WishlistItem{
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			UnitPrice: product.Price,
			AddedAt:   s.clock().UTC(),
		})
		return true, nil
	})
}

func (s *wishlistService) RemoveItem(ctx context.Context, userID string, productID string) (Wishlist, error) {
	productID = strings.TrimSpace(productID)
	return s.mutate(ctx, userID, func(wishlist *Wishlist) (bool, error) {
		before := len(wishlist.Items)
		wishlist.Items = slices.DeleteFunc(wishlist.Items, func(item WishlistItem) bool { return item.ProductID == productID })
		return len(wishlist.Items) != before, nil
	})
}

// MoveToCart adds one unit of the saved product to the cart, then drops it from the wishlist.
func (s *wishlistService) MoveToCart(ctx context.Context, userID string, productID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	productID = strings.TrimSpace(productID)
	wishlist, err := s.GetWishlist(ctx, userID)
	if err != nil {
		return Cart{}, err
	}
	if wishlistIndex(wishlist.Items, productID) < 0 {
		return Cart{}, fmt.Errorf("%w: %s", ErrWishlistItemNotFound, productID)
	}
	cart, err := s.carts.AddItem(ctx, CartItemCommand{UserID: userID, ProductID: productID, Quantity: 1})
	if err != nil {
		return Cart{}, err
	}
	if _, err := s.RemoveItem(ctx, userID, productID); err != nil {
		s.logger(ctx, "wishlist.move.remove_failed", map[string]any{"userId": userID, "productId": productID, "error": err.Error()})
	}
	return cart, nil
}

func (s *wishlistService) mutate(ctx context.Context, userID string, fn func(*Wishlist) (bool, error)) (Wishlist, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Wishlist{}, fmt.Errorf("%w: user id is required", ErrWishlistInvalidInput)
	}
	var result Wishlist
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		wishlist, err := s.load(txCtx, userID)
		if err != nil {
			return err
		}
		changed, err := fn(&wishlist)
		if err != nil {
			return err
		}
		if changed {
			wishlist.UpdatedAt = s.clock().UTC()
			if err := s.wishlists.Save(txCtx, wishlist); err != nil {
				return err
			}
		}
		result = wishlist
		return nil
	})
	if err != nil {
		return Wishlist{}, mapRepoError(err, ErrWishlistItemNotFound, ErrWishlistConflict, "wishlist")
	}
	return result, nil
}

func (s *wishlistService) load(ctx context.Context, userID string) (Wishlist, error) {
	wishlist, err := s.wishlists.Get(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return Wishlist{UserID: userID}, nil
		}
		return Wishlist{}, mapRepoError(err, ErrWishlistItemNotFound, ErrWishlistConflict, "wishlist")
	}
	wishlist.UserID = userID
	return wishlist, nil
}

func wishlistIndex(items []WishlistItem, productID string) int {
	return slices.IndexFunc(items, func(item WishlistItem) bool { return item.ProductID == productID })
}
