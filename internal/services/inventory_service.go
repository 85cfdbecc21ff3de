package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hanko-field/commerce/internal/repositories"
)

const inventoryMeterName = "github.com/hanko-field/commerce/internal/services/inventory"

var (
	// ErrInventoryInvalidInput indicates malformed stock changes.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryNotFound indicates a product referenced by a change is missing.
	ErrInventoryNotFound = errors.New("inventory: product not found")
	// ErrInventoryInsufficientStock indicates a decrement would drive stock below zero.
	ErrInventoryInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInventoryConflict indicates the transaction lost a concurrent update race.
	ErrInventoryConflict = errors.New("inventory: conflict")
)

// InventoryServiceDeps bundles collaborators required to construct the inventory service.
type InventoryServiceDeps struct {
	Products repositories.ProductRepository
	Clock    func() time.Time
	Meter    metric.Meter
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	products  repositories.ProductRepository
	clock     func() time.Time
	conflicts metric.Int64Counter
	logger    func(context.Context, string, map[string]any)
}

// NewInventoryService constructs the stock service.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter(inventoryMeterName)
	}
	conflicts, err := meter.Int64Counter("inventory.stock_conflicts",
		metric.WithDescription("Stock decrements rejected for insufficient stock"))
	if err != nil {
		return nil, fmt.Errorf("inventory service: create counter: %w", err)
	}
	svc := &inventoryService{products: deps.Products, clock: deps.Clock, conflicts: conflicts, logger: deps.Logger}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.logger == nil {
		svc.logger = noopLogger
	}
	return svc, nil
}

func (s *inventoryService) Decrement(ctx context.Context, changes []StockChange) ([]Product, error) {
	if err := validateStockChanges(changes); err != nil {
		return nil, err
	}
	products, err := s.products.DecrementStock(ctx, changes, s.clock().UTC())
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return products, nil
}

func (s *inventoryService) Increment(ctx context.Context, changes []StockChange) ([]Product, error) {
	if err := validateStockChanges(changes); err != nil {
		return nil, err
	}
	products, err := s.products.IncrementStock(ctx, changes, s.clock().UTC())
	if err != nil {
		return nil, s.mapError(ctx, err)
	}
	return products, nil
}

func (s *inventoryService) SetStock(ctx context.Context, cmd SetStockCommand) (Product, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must be >= 0", ErrInventoryInvalidInput)
	}
	product, err := s.products.SetStock(ctx, productID, cmd.Stock, s.clock().UTC())
	if err != nil {
		return Product{}, s.mapError(ctx, err)
	}
	s.logger(ctx, "inventory.stock.set", map[string]any{"productId": productID, "stock": cmd.Stock, "actorId": cmd.ActorID})
	return product, nil
}

func (s *inventoryService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, s.mapError(ctx, err)
	}
	return product, nil
}

func (s *inventoryService) mapError(ctx context.Context, err error) error {
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			s.conflicts.Add(ctx, 1, metric.WithAttributes(attribute.String("product_id", invErr.ProductID)))
			s.logger(ctx, "inventory.insufficient_stock", map[string]any{"productId": invErr.ProductID})
			return fmt.Errorf("%w: %s", ErrInventoryInsufficientStock, invErr.ProductID)
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrInventoryNotFound, invErr.ProductID)
		case repositories.InventoryErrorInvalidQuantity:
			return fmt.Errorf("%w: %s", ErrInventoryInvalidInput, invErr.Message)
		}
	}
	return mapRepoError(err, ErrInventoryNotFound, ErrInventoryConflict, "inventory")
}

func validateStockChanges(changes []StockChange) error {
	if len(changes) == 0 {
		return fmt.Errorf("%w: at least one change is required", ErrInventoryInvalidInput)
	}
	for _, change := range changes {
		if strings.TrimSpace(change.ProductID) == "" {
			return fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
		}
		if change.Quantity <= 0 {
			return fmt.Errorf("%w: quantity for %s must be > 0", ErrInventoryInvalidInput, change.ProductID)
		}
	}
	return nil
}
