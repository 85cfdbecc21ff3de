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

const (
	maxCartLines        = 50
	maxCartLineQuantity = 99
	defaultPurgeBatch   = 200
)

var (
	// ErrCartInvalidInput signals malformed cart commands.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartProductNotFound indicates the product does not exist.
	ErrCartProductNotFound = errors.New("cart: product not found")
	// ErrCartProductUnavailable indicates the product is inactive.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
	// ErrCartInsufficientStock indicates the requested quantity exceeds stock.
	ErrCartInsufficientStock = errors.New("cart: insufficient stock")
	// ErrCartCurrencyMismatch indicates the product is priced in a different currency than the cart.
	ErrCartCurrencyMismatch = errors.New("cart: currency mismatch")
	// ErrCartConflict indicates concurrent cart updates.
	ErrCartConflict = errors.New("cart: conflict")
)

// CartServiceDeps bundles collaborators required to construct the cart service.
type CartServiceDeps struct {
	Carts      repositories.CartRepository
	Products   repositories.ProductRepository
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(ctx context.Context, event string, fields map[string]any)
}

type cartService struct {
	carts      repositories.CartRepository
	products   repositories.ProductRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	logger     func(context.Context, string, map[string]any)
}

// NewCartService constructs the cart service.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	svc := &cartService{
		carts:      deps.Carts,
		products:   deps.Products,
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

func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.load(ctx, userID)
}

func (s *cartService) AddItem(ctx context.Context, cmd CartItemCommand) (Cart, error) {
	if cmd.Quantity <= 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be > 0", ErrCartInvalidInput)
	}
	return s.mutate(ctx, cmd.UserID, func(cart *Cart) error {
		productID := strings.TrimSpace(cmd.ProductID)
		quantity := cmd.Quantity
		idx := cartLineIndex(cart.Items, productID)
		if idx >= 0 {
			quantity += cart.Items[idx].Quantity
		}
		return s.setLine(ctx, cart, productID, quantity)
	})
}

func (s *cartService) UpdateItemQuantity(ctx context.Context, cmd CartItemCommand) (Cart, error) {
	if cmd.Quantity < 0 {
		return Cart{}, fmt.Errorf("%w: quantity must be >= 0", ErrCartInvalidInput)
	}
	return s.mutate(ctx, cmd.UserID, func(cart *Cart) error {
		productID := strings.TrimSpace(cmd.ProductID)
		if cmd.Quantity == 0 {
			removeCartLines(cart, productID)
			return nil
		}
		if cartLineIndex(cart.Items, productID) < 0 {
			return fmt.Errorf("%w: product %s is not in the cart", ErrCartInvalidInput, productID)
		}
		return s.setLine(ctx, cart, productID, cmd.Quantity)
	})
}

func (s *cartService) RemoveItem(ctx context.Context, userID string, productID string) (Cart, error) {
	return s.mutate(ctx, userID, func(cart *Cart) error {
		removeCartLines(cart, strings.TrimSpace(productID))
		return nil
	})
}

func (s *cartService) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if err := s.carts.Delete(ctx, userID); err != nil && !isRepoNotFound(err) {
		return mapRepoError(err, ErrCartInvalidInput, ErrCartConflict, "cart")
	}
	return nil
}

func (s *cartService) RemoveProducts(ctx context.Context, userID string, productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	_, err := s.mutate(ctx, userID, func(cart *Cart) error {
		removeCartLines(cart, productIDs...)
		return nil
	})
	return err
}

// PurgeStale deletes up to limit carts untouched for olderThan and reports how many were removed.
func (s *cartService) PurgeStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("%w: staleness window must be positive", ErrCartInvalidInput)
	}
	if limit <= 0 {
		limit = defaultPurgeBatch
	}
	before := s.clock().UTC().Add(-olderThan)
	userIDs, err := s.carts.ListStale(ctx, before, limit)
	if err != nil {
		return 0, mapRepoError(err, ErrCartInvalidInput, ErrCartConflict, "cart")
	}
	purged := 0
	var errs []error
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.carts.Delete(ctx, userID); err != nil && !isRepoNotFound(err) {
			errs = append(errs, fmt.Errorf("delete cart %s: %w", userID, err))
			continue
		}
		purged++
	}
	s.logger(ctx, "cart.purge.completed", map[string]any{
		"before":  before,
		"scanned": len(userIDs),
		"purged":  purged,
	})
	return purged, errors.Join(errs...)
}

func (s *cartService) mutate(ctx context.Context, userID string, fn func(*Cart) error) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	var result Cart
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.load(txCtx, userID)
		if err != nil {
			return err
		}
		before := len(cart.Items)
		if err := fn(&cart); err != nil {
			return err
		}
		if len(cart.Items) == 0 {
			cart.Currency = ""
			if before == 0 {
				result = cart
				return nil
			}
		}
		cart.UpdatedAt = s.clock().UTC()
		if err := s.carts.Save(txCtx, cart); err != nil {
			return err
		}
		result = cart
		return nil
	})
	if err != nil {
		return Cart{}, mapRepoError(err, ErrCartProductNotFound, ErrCartConflict, "cart")
	}
	return result, nil
}

// setLine snapshots the current product price and validates availability for quantity.
func (s *cartService) setLine(ctx context.Context, cart *Cart, productID string, quantity int) error {
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if quantity > maxCartLineQuantity {
		return fmt.Errorf("%w: quantity exceeds %d", ErrCartInvalidInput, maxCartLineQuantity)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return fmt.Errorf("%w: %s", ErrCartProductNotFound, productID)
		}
		return err
	}
	if !product.Active {
		return fmt.Errorf("%w: %s", ErrCartProductUnavailable, productID)
	}
	currency := strings.ToUpper(product.Currency)
	if cart.Currency != "" && len(cart.Items) > 0 && cart.Currency != currency {
		return fmt.Errorf("%w: cart is %s, product %s is %s", ErrCartCurrencyMismatch, cart.Currency, productID, currency)
	}
	if quantity > product.Stock {
		return fmt.Errorf("%w: %s has %d left", ErrCartInsufficientStock, productID, product.Stock)
	}

	line := CartItem{
		ProductID: product.ID,
		Name:      product.Name,
		SKU:       product.SKU,
		Image:     product.Image,
		UnitPrice: product.Price,
		Quantity:  quantity,
	}
	if idx := cartLineIndex(cart.Items, productID); idx >= 0 {
		cart.Items[idx] = line
	} else {
		if len(cart.Items) >= maxCartLines {
			return fmt.Errorf("%w: cart is limited to %d lines", ErrCartInvalidInput, maxCartLines)
		}
		cart.Items = append(cart.Items, line)
	}
	cart.Currency = currency
	return nil
}

func (s *cartService) load(ctx context.Context, userID string) (Cart, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{UserID: userID}, nil
		}
		return Cart{}, mapRepoError(err, ErrCartInvalidInput, ErrCartConflict, "cart")
	}
	cart.UserID = userID
	return cart, nil
}

func cartLineIndex(items []CartItem, productID string) int {
	return slices.IndexFunc(items, func(item CartItem) bool { return item.ProductID == productID })
}

func removeCartLines(cart *Cart, productIDs ...string) {
	cart.Items = slices.DeleteFunc(cart.Items, func(item CartItem) bool {
		return slices.Contains(productIDs, item.ProductID)
	})
}
